// Package cache resolves where fetched Skia shim libraries are kept.
//
// Priority order: --cache-dir flag > SURFACEKIT_CACHE_DIR env > ~/.surfacekit.
package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/mod/module"
	"golang.org/x/mod/semver"
)

// NormalizeVersion returns a release version ("v0.2.0", "v0.2.0-rc1"), or
// empty for dev builds, pseudo-versions and anything that is not semver.
//
//	"0.1.0"                          -> "v0.1.0"
//	"surfacekit-v0.1.0"              -> "v0.1.0"
//	"0.1.0-dev"                      -> ""
//	"v0.2.1-0.20260122153045-abc123" -> ""
func NormalizeVersion(version string) string {
	version = strings.TrimPrefix(strings.TrimSpace(version), "surfacekit-")
	if version == "" || strings.HasSuffix(version, "-dev") {
		return ""
	}
	if !strings.HasPrefix(version, "v") {
		version = "v" + version
	}
	if !semver.IsValid(version) || semver.Build(version) != "" || module.IsPseudoVersion(version) {
		return ""
	}
	// vX and vX.Y are valid semver shorthands but not release tags.
	if semver.Canonical(version) != version {
		return ""
	}
	return version
}

// Root returns the cache root. override wins when non-empty.
func Root(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	if dir := os.Getenv("SURFACEKIT_CACHE_DIR"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".surfacekit"), nil
}

// LibDir returns <root>/lib/<version>.
func LibDir(root, version string) string {
	return filepath.Join(root, "lib", version)
}

// Cached returns the paths, relative to LibDir, of the libraries cached for
// platform. Directories prefixed with the platform name count, so "ios"
// includes ios-simulator.
func Cached(root, version, platform, library string) []string {
	matches, _ := filepath.Glob(filepath.Join(LibDir(root, version), platform+"*", "*", library))
	base := LibDir(root, version)
	rel := make([]string, 0, len(matches))
	for _, m := range matches {
		if r, err := filepath.Rel(base, m); err == nil {
			rel = append(rel, r)
		}
	}
	return rel
}
