//go:build !linux && !windows && !(darwin && cgo)

package gpu

// ThreadID returns 0: thread ids are unavailable, so all threads share one
// context.
func ThreadID() uint64 {
	return 0
}
