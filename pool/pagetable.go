package pool

import (
	"sort"
	"unsafe"
)

// pageSpan records one manufactured page: its base address and the
// block total size it was carved into.
type pageSpan struct {
	base unsafe.Pointer
	size int // block total size of every block on this page
}

// pageTable is the side-table of page base addresses owned by a pool.
// It classifies arbitrary pointers: a pointer is pool-born if and only
// if it falls inside a recorded span. Classification never trusts
// bytes at the pointer, so foreign memory is never misread.
type pageTable struct {
	spans []pageSpan // sorted by base address
}

func (pt *pageTable) searchAddr(addr uintptr) int {
	return sort.Search(len(pt.spans), func(i int) bool {
		return uintptr(pt.spans[i].base) >= addr
	})
}

// insert records a page span.
func (pt *pageTable) insert(base unsafe.Pointer, size int) {
	i := pt.searchAddr(uintptr(base))
	pt.spans = append(pt.spans, pageSpan{})
	copy(pt.spans[i+1:], pt.spans[i:])
	pt.spans[i] = pageSpan{base: base, size: size}
}

// remove drops the span starting at base.
func (pt *pageTable) remove(base unsafe.Pointer) {
	i := pt.searchAddr(uintptr(base))
	if i >= len(pt.spans) || pt.spans[i].base != base {
		return
	}
	pt.spans = append(pt.spans[:i], pt.spans[i+1:]...)
}

// spanOf classifies p. On a hit it returns the span holding p.
func (pt *pageTable) spanOf(p unsafe.Pointer) (pageSpan, bool) {
	addr := uintptr(p)
	i := pt.searchAddr(addr + 1) // first span strictly above addr
	if i == 0 {
		return pageSpan{}, false
	}
	span := pt.spans[i-1]
	if addr < uintptr(span.base)+uintptr(PageSize) {
		return span, true
	}
	return pageSpan{}, false
}

// takeClass removes every span carved for the given block size and
// hands them to the callback, in base order.
func (pt *pageTable) takeClass(size int, fn func(pageSpan)) {
	kept := pt.spans[:0]
	for _, span := range pt.spans {
		if span.size == size {
			fn(span)
			continue
		}
		kept = append(kept, span)
	}
	pt.spans = kept
}
