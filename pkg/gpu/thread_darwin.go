//go:build darwin && cgo

package gpu

/*
#include <pthread.h>
#include <stdint.h>

static uint64_t sk_thread_id(void) {
	uint64_t tid = 0;
	pthread_threadid_np(NULL, &tid);
	return tid;
}
*/
import "C"

// ThreadID returns the calling OS thread's id.
func ThreadID() uint64 {
	return uint64(C.sk_thread_id())
}
