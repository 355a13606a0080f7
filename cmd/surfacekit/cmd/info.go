package cmd

import (
	"fmt"

	"github.com/go-drift/surfacekit/pkg/gpu"
	"github.com/go-drift/surfacekit/pkg/video"
)

func init() {
	RegisterCommand(&Command{
		Name:  "info",
		Short: "Show backends, video openers and configuration",
		Long: `Show the GPU backends available on this platform (highest priority
first), the registered video openers and the resolved configuration.`,
		Usage: "surfacekit info",
		Run:   runInfo,
	})
}

func runInfo(args []string) error {
	cfg, err := resolveConfig()
	if err != nil {
		return err
	}

	fmt.Println("Backends:")
	for _, name := range gpu.Backends() {
		fmt.Printf("  %s\n", name)
	}
	fmt.Println()
	fmt.Println("Video openers:")
	for _, name := range video.Openers() {
		fmt.Printf("  %s\n", name)
	}
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Printf("  %-16s %s\n", "backend:", cfg.Backend)
	fmt.Printf("  %-16s %s\n", "gl min version:", orNone(cfg.GLMinVersion))
	fmt.Printf("  %-16s %d\n", "swap interval:", cfg.SwapInterval)
	fmt.Printf("  %-16s %t\n", "srgb:", cfg.SRGB)
	fmt.Printf("  %-16s %s\n", "pixel format:", cfg.PixelFormat)
	fmt.Printf("  %-16s %d\n", "max inflight:", cfg.MaxInflight)
	fmt.Printf("  %-16s %t (capacity %d)\n", "texture cache:", cfg.TextureCache, cfg.CacheCapacity)
	fmt.Printf("  %-16s %t\n", "prefer nv12:", cfg.PreferNV12)
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
