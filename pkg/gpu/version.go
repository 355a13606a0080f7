package gpu

import (
	"regexp"

	"golang.org/x/mod/semver"
)

var glVersionRe = regexp.MustCompile(`(\d+)\.(\d+)`)

// ParseGLVersion extracts a semver version from a GL_VERSION string such as
// "OpenGL ES 3.2 build 1.13". It returns "" when no version is present.
func ParseGLVersion(s string) string {
	m := glVersionRe.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return "v" + m[1] + "." + m[2]
}

// VersionAtLeast reports whether the GL_VERSION string have satisfies the
// semver minimum min. An empty min always passes.
func VersionAtLeast(have, min string) bool {
	if min == "" {
		return true
	}
	v := ParseGLVersion(have)
	if v == "" || !semver.IsValid(min) {
		return false
	}
	return semver.Compare(v, min) >= 0
}
