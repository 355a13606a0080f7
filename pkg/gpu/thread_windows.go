//go:build windows

package gpu

import "golang.org/x/sys/windows"

// ThreadID returns the calling OS thread's id.
func ThreadID() uint64 {
	return uint64(windows.GetCurrentThreadId())
}
