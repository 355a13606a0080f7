// Package fetch downloads the prebuilt surfacekit Skia shim from GitHub
// releases and unpacks it.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// Downloader performs HTTP downloads against a release host.
type Downloader struct {
	client *http.Client
	// Base is the release download root; ReleaseBase by default.
	Base string
	// API is the latest-release endpoint; LatestReleaseAPI by default.
	API string
}

// NewDownloader creates a downloader with the given timeout.
func NewDownloader(timeout time.Duration) *Downloader {
	return &Downloader{
		client: &http.Client{Timeout: timeout},
		Base:   ReleaseBase,
		API:    LatestReleaseAPI,
	}
}

// DefaultDownloader returns a downloader with a 5-minute timeout.
func DefaultDownloader() *Downloader {
	return NewDownloader(5 * time.Minute)
}

// Download fetches url into destPath. The body is written to a temporary
// file in the same directory and renamed on success.
func (d *Downloader) Download(ctx context.Context, url, destPath string) error {
	dir := filepath.Dir(destPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".download-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	ok := false
	defer func() {
		if !ok {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	body, err := d.get(ctx, url)
	if err != nil {
		return err
	}
	defer body.Close()

	if _, err := io.Copy(tmp, body); err != nil {
		return fmt.Errorf("failed to write download: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	ok = true
	return nil
}

// Fetch returns the body of a small response such as a manifest.
func (d *Downloader) Fetch(ctx context.Context, url string) ([]byte, error) {
	body, err := d.get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return data, nil
}

func (d *Downloader) get(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch failed: %s returned %s", url, resp.Status)
	}
	return resp.Body, nil
}
