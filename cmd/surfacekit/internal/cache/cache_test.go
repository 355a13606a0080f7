package cache

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNormalizeVersion(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"v0.1.0", "v0.1.0"},
		{"0.1.0", "v0.1.0"},
		{"surfacekit-v0.1.0", "v0.1.0"},
		{"v0.2.0-rc1", "v0.2.0-rc1"},
		{"0.1.0-dev", ""},
		{"v0.2.1-0.20260122153045-abc123def456", ""},
		{"v1.2", ""},
		{"v1.2.3+meta", ""},
		{"latest", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeVersion(tt.in); got != tt.want {
			t.Errorf("NormalizeVersion(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRoot(t *testing.T) {
	t.Setenv("SURFACEKIT_CACHE_DIR", "/env/cache")
	if got, _ := Root("/flag"); got != "/flag" {
		t.Errorf("Root(flag) = %s", got)
	}
	if got, _ := Root(""); got != "/env/cache" {
		t.Errorf("Root(env) = %s", got)
	}
}

func TestCached(t *testing.T) {
	root := t.TempDir()
	for _, p := range []string{"ios/arm64", "ios-simulator/amd64", "android/arm64"} {
		dir := filepath.Join(LibDir(root, "v0.3.0"), p)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "lib.a"), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if got := Cached(root, "v0.3.0", "ios", "lib.a"); len(got) != 2 {
		t.Errorf("ios libs = %v, want 2", got)
	}
	if got := Cached(root, "v0.4.0", "android", "lib.a"); len(got) != 0 {
		t.Errorf("uncached version reported %v", got)
	}
}
