package pool

import "unsafe"

// freeBlock is the in-band header at the start of every pool block.
// While the block sits on a freelist the header threads the list;
// while the block is in user hands the size survives untouched ahead
// of the user region, enabling size-free deallocation.
//
// The header is only ever written into memory obtained from a backing
// allocator, never into Go-heap objects, so the garbage collector
// never scans one.
type freeBlock struct {
	size int            // total block size, header included
	next unsafe.Pointer // next free block, nil terminates
}

func headerOf(block unsafe.Pointer) *freeBlock {
	return (*freeBlock)(block)
}

// userPtr converts a block start to the pointer handed to callers.
func userPtr(block unsafe.Pointer) unsafe.Pointer {
	return unsafe.Add(block, HeaderSize)
}

// blockPtr recovers the block start from a user pointer.
func blockPtr(user unsafe.Pointer) unsafe.Pointer {
	return unsafe.Add(user, -HeaderSize)
}
