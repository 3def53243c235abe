package pool

import "unsafe"

const (
	// MinUserSize is the smallest user request a pool serves; zero-byte
	// requests are normalized up to it.
	MinUserSize = 8

	// MaxUserSize is the largest pooled request. Anything bigger is
	// refused by the pool tiers and served by the fallback tier.
	MaxUserSize = 2048

	// BlockAlignment is the step between seeded size classes and the
	// alignment of every block total size. Must be a power of two.
	BlockAlignment = 8

	// PageSize is the unit of batch manufacture from the backing
	// allocator. One page is sliced into blocks of a single class.
	PageSize = 4096

	// MaxGlobalFreeMemory is the high-water mark on the global pool's
	// free bytes; crossing it after a deallocate or transfer triggers
	// reclamation.
	MaxGlobalFreeMemory = 10 << 20

	// ReserveBlockCount is the per-class block count reclamation leaves
	// behind as a warm reserve.
	ReserveBlockCount = 4
)

// HeaderSize is the size of the in-band block header. The header is
// preserved while the block is allocated, so the user pointer is
// always the block start plus HeaderSize.
const HeaderSize = int(unsafe.Sizeof(freeBlock{}))
