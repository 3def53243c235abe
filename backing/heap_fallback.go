//go:build !unix

package backing

import (
	"sync"
	"unsafe"
)

// Heap hands out Go-heap buffers on platforms without mmap support.
// A registry pins every live buffer so the garbage collector keeps the
// pages alive while pool freelists thread through them.
type Heap struct {
	mu    sync.Mutex
	pages map[unsafe.Pointer][]byte
}

// NewHeap returns the default heap-backed allocator.
func NewHeap() *Heap {
	return &Heap{pages: make(map[unsafe.Pointer][]byte)}
}

func (h *Heap) Acquire(n int) (unsafe.Pointer, error) {
	if n <= 0 {
		return nil, ErrBadSize
	}
	buf := make([]byte, n)
	p := unsafe.Pointer(unsafe.SliceData(buf))
	h.mu.Lock()
	h.pages[p] = buf
	h.mu.Unlock()
	return p, nil
}

func (h *Heap) Release(p unsafe.Pointer, n int) error {
	if p == nil || n <= 0 {
		return ErrBadSize
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.pages[p]; !ok {
		return ErrUnknownBuffer
	}
	delete(h.pages, p)
	return nil
}
