package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	// Repo hosts the release artifacts.
	Repo = "go-drift/surfacekit"

	// LatestReleaseAPI returns the newest release as JSON.
	LatestReleaseAPI = "https://api.github.com/repos/" + Repo + "/releases/latest"

	// ReleaseBase is the root of release asset downloads.
	ReleaseBase = "https://github.com/" + Repo + "/releases/download"
)

// Library is the archive member linked by pkg/skia.
const Library = "libsurfacekit_skia.a"

// Manifest is a release's manifest.json.
type Manifest struct {
	Android *Artifact `json:"android,omitempty"`
	IOS     *Artifact `json:"ios,omitempty"`
}

// Artifact describes one platform tarball.
type Artifact struct {
	SHA256 string `json:"sha256"`
	// Skia is the upstream milestone the shim was built against ("m126").
	Skia string `json:"skia,omitempty"`
}

// Platform returns the artifact for name ("android" or "ios"), or nil.
func (m *Manifest) Platform(name string) *Artifact {
	switch name {
	case "android":
		return m.Android
	case "ios":
		return m.IOS
	}
	return nil
}

// LatestRelease returns the tag of the newest release.
func (d *Downloader) LatestRelease(ctx context.Context) (string, error) {
	body, err := d.Fetch(ctx, d.API)
	if err != nil {
		return "", fmt.Errorf("failed to fetch latest release: %w", err)
	}
	var resp struct {
		TagName string `json:"tag_name"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to parse release response: %w", err)
	}
	if resp.TagName == "" {
		return "", errors.New("no tag_name in release response")
	}
	return resp.TagName, nil
}

// Manifest downloads and parses the manifest of version.
func (d *Downloader) Manifest(ctx context.Context, version string) (*Manifest, error) {
	body, err := d.Fetch(ctx, d.ManifestURL(version))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &m, nil
}

// ManifestURL returns the manifest.json location of version.
func (d *Downloader) ManifestURL(version string) string {
	return fmt.Sprintf("%s/%s/manifest.json", d.Base, version)
}

// TarballName is the asset name of a platform tarball.
func TarballName(version, platform string) string {
	return fmt.Sprintf("surfacekit-skia-%s-%s.tar.gz", version, platform)
}

// TarballURL returns the download location of a platform tarball.
func (d *Downloader) TarballURL(version, platform string) string {
	return fmt.Sprintf("%s/%s/%s", d.Base, version, TarballName(version, platform))
}
