package pool

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// MemoryStats is a point-in-time sample of one pool tier.
type MemoryStats struct {
	AllocateCount        uint64 // cumulative successful allocations
	DeallocateCount      uint64 // cumulative deallocations into freelists
	TotalFreeMemory      uint64 // bytes currently on freelists
	TotalUsedMemory      uint64 // TotalAllocatedMemory - TotalFreeMemory
	TotalAllocatedMemory uint64 // bytes of manufactured blocks currently managed
}

func (s MemoryStats) String() string {
	return fmt.Sprintf("allocs=%d frees=%d free=%s used=%s managed=%s",
		s.AllocateCount, s.DeallocateCount,
		humanize.IBytes(s.TotalFreeMemory),
		humanize.IBytes(s.TotalUsedMemory),
		humanize.IBytes(s.TotalAllocatedMemory))
}
