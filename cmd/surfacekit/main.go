// Command surfacekit inspects backends and exercises the surface and video
// pipelines from the command line.
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/go-drift/surfacekit/cmd/surfacekit/cmd"
)

// GPU contexts are bound to OS threads.
func init() { runtime.LockOSThread() }

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
