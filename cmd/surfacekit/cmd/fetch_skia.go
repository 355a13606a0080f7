package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-drift/surfacekit/cmd/surfacekit/internal/cache"
	"github.com/go-drift/surfacekit/cmd/surfacekit/internal/fetch"
)

func init() {
	RegisterCommand(&Command{
		Name:  "fetch-skia",
		Short: "Download the prebuilt Skia shim",
		Long: `Download the prebuilt libsurfacekit_skia static libraries the gl and
metal backends link against, and install them under --dest.

By default both platforms are fetched. Use --android or --ios to pick one;
the ios tarball also carries the ios-simulator libraries.

The version is determined in this order:
  1. --version flag
  2. SURFACEKIT_VERSION environment variable
  3. CLI version (for release builds)
  4. Latest release from GitHub

Tarballs are verified against the release manifest and unpacked into
<cache>/lib/<version>/<platform>/<arch>/, then copied to
<dest>/<platform>/<arch>/. A version already in the cache is not downloaded
again.`,
		Usage: "surfacekit fetch-skia [--android] [--ios] [--version V] [--dest DIR] [--cache-dir DIR]",
		Run:   runFetchSkia,
	})
}

type fetchSkiaOptions struct {
	android  bool
	ios      bool
	version  string
	dest     string
	cacheDir string
}

func parseFetchSkiaArgs(args []string) (fetchSkiaOptions, error) {
	opts := fetchSkiaOptions{dest: filepath.Join("third_party", "skia")}
	values := map[string]*string{
		"--version":   &opts.version,
		"--dest":      &opts.dest,
		"--cache-dir": &opts.cacheDir,
	}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch arg {
		case "--android":
			opts.android = true
			continue
		case "--ios":
			opts.ios = true
			continue
		}
		if dst, ok := values[arg]; ok {
			if i+1 >= len(args) {
				return opts, fmt.Errorf("%s requires a value", arg)
			}
			*dst = args[i+1]
			i++
			continue
		}
		if name, value, ok := strings.Cut(arg, "="); ok {
			if dst, ok := values[name]; ok {
				*dst = value
				continue
			}
		}
		return opts, fmt.Errorf("unknown flag: %s", arg)
	}
	if !opts.android && !opts.ios {
		opts.android, opts.ios = true, true
	}
	if opts.dest == "" {
		return opts, fmt.Errorf("--dest must not be empty")
	}
	return opts, nil
}

func runFetchSkia(args []string) error {
	opts, err := parseFetchSkiaArgs(args)
	if err != nil {
		return err
	}
	return fetchSkia(context.Background(), fetch.DefaultDownloader(), opts)
}

func resolveSkiaVersion(ctx context.Context, d *fetch.Downloader, flag string) (string, error) {
	if flag != "" {
		v := cache.NormalizeVersion(flag)
		if v == "" {
			return "", fmt.Errorf("invalid version %q (pseudo-versions and dev builds are not supported)", flag)
		}
		return v, nil
	}
	for _, candidate := range []string{os.Getenv("SURFACEKIT_VERSION"), Version} {
		if v := cache.NormalizeVersion(candidate); v != "" {
			return v, nil
		}
	}
	fmt.Println("Fetching latest release version from GitHub...")
	latest, err := d.LatestRelease(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to determine version: %w\n\nSet SURFACEKIT_VERSION or use --version", err)
	}
	v := cache.NormalizeVersion(latest)
	if v == "" {
		return "", fmt.Errorf("latest release tag %q is not a valid version", latest)
	}
	return v, nil
}

func fetchSkia(ctx context.Context, d *fetch.Downloader, opts fetchSkiaOptions) error {
	version, err := resolveSkiaVersion(ctx, d, opts.version)
	if err != nil {
		return err
	}
	root, err := cache.Root(opts.cacheDir)
	if err != nil {
		return err
	}
	libDir := cache.LibDir(root, version)

	fmt.Printf("Fetching surfacekit Skia %s...\n", version)
	var manifest *fetch.Manifest
	for _, p := range []struct {
		name    string
		enabled bool
	}{{"android", opts.android}, {"ios", opts.ios}} {
		if !p.enabled {
			continue
		}
		libs := cache.Cached(root, version, p.name, fetch.Library)
		if len(libs) == 0 {
			if manifest == nil {
				fmt.Println("  Downloading manifest...")
				if manifest, err = d.Manifest(ctx, version); err != nil {
					return err
				}
			}
			art := manifest.Platform(p.name)
			if art == nil {
				fmt.Printf("  Warning: no %s artifact in manifest, skipping\n", p.name)
				continue
			}
			if libs, err = fetchPlatform(ctx, d, version, p.name, art.SHA256, libDir); err != nil {
				return fmt.Errorf("failed to fetch %s: %w", p.name, err)
			}
		} else {
			fmt.Printf("  Using cached %s libraries\n", p.name)
		}
		for _, rel := range libs {
			if err := fetch.CopyFile(filepath.Join(libDir, rel), filepath.Join(opts.dest, rel)); err != nil {
				return fmt.Errorf("failed to install %s: %w", rel, err)
			}
			fmt.Printf("  Installed %s\n", filepath.Join(opts.dest, rel))
		}
	}
	return nil
}

// fetchPlatform downloads, verifies and unpacks one platform tarball and
// returns the libraries it contained.
func fetchPlatform(ctx context.Context, d *fetch.Downloader, version, platform, sha, libDir string) ([]string, error) {
	tmpDir, err := os.MkdirTemp("", "surfacekit-fetch-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	name := fetch.TarballName(version, platform)
	tarPath := filepath.Join(tmpDir, name)
	fmt.Printf("  Downloading %s...\n", name)
	if err := d.Download(ctx, d.TarballURL(version, platform), tarPath); err != nil {
		return nil, err
	}
	if err := fetch.VerifyChecksum(tarPath, sha); err != nil {
		return nil, err
	}

	fmt.Printf("  Extracting %s...\n", platform)
	files, err := fetch.ExtractTarGz(tarPath, libDir)
	if err != nil {
		return nil, fmt.Errorf("failed to extract tarball: %w", err)
	}
	var libs []string
	for _, f := range files {
		if filepath.Base(f) == fetch.Library {
			libs = append(libs, f)
		}
	}
	if len(libs) == 0 {
		return nil, fmt.Errorf("%s contains no %s", name, fetch.Library)
	}
	return libs, nil
}
