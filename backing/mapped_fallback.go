//go:build !unix

package backing

import "unsafe"

// Mapped degrades to plain heap buffers on platforms without mmap.
type Mapped struct {
	heap *Heap
}

// NewMapped returns a heap-backed stand-in; the file parameters are
// ignored on this platform.
func NewMapped(dir, prefix, kind string, autoRemove bool, maxSize int) *Mapped {
	return &Mapped{heap: NewHeap()}
}

func (m *Mapped) Acquire(n int) (unsafe.Pointer, error) {
	return m.heap.Acquire(n)
}

func (m *Mapped) Release(p unsafe.Pointer, n int) error {
	return m.heap.Release(p, n)
}
