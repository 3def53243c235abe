// Package backing supplies raw page memory to the pools.
//
// Pages come from outside the Go heap so that the pools may thread
// intrusive freelist headers through them without the garbage
// collector ever observing an interior pointer. Two variants are
// provided: Heap, which maps anonymous private pages, and Mapped,
// which backs pages with a file on disk.
package backing

import "unsafe"

// Allocator produces and releases raw buffers. Implementations must be
// safe for concurrent use; the pools call them from multiple tiers.
type Allocator interface {
	// Acquire returns a buffer of exactly n bytes, page-aligned when n
	// is a multiple of the system page size.
	Acquire(n int) (unsafe.Pointer, error)

	// Release returns a buffer previously obtained from Acquire. The
	// length must match the original request.
	Release(p unsafe.Pointer, n int) error
}
