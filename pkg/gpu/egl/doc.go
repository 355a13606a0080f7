// Package egl is the Android backend: EGL window surfaces drawn with the
// rendering library's GL context.
package egl
