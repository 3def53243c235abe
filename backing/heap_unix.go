//go:build unix

package backing

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// Heap maps anonymous private pages. It is the default backing
// allocator for the pool tiers.
type Heap struct{}

// NewHeap returns the default heap-backed allocator.
func NewHeap() *Heap {
	return &Heap{}
}

// Acquire maps n bytes of zeroed, private, anonymous memory.
func (h *Heap) Acquire(n int) (unsafe.Pointer, error) {
	if n <= 0 {
		return nil, ErrBadSize
	}
	data, err := unix.Mmap(-1, 0, n, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, err
	}
	return unsafe.Pointer(unsafe.SliceData(data)), nil
}

// Release unmaps a buffer returned by Acquire.
func (h *Heap) Release(p unsafe.Pointer, n int) error {
	if p == nil || n <= 0 {
		return ErrBadSize
	}
	return unix.Munmap(unsafe.Slice((*byte)(p), n))
}
