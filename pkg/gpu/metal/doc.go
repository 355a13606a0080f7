// Package metal is the Apple backend: CAMetalLayer drawables rendered with
// the library's Metal context, and a CoreVideo texture cache for importing
// decoded video frames.
package metal
