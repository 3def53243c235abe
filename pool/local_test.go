package pool

import (
	"sync"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func TestLocalSmallPath(t *testing.T) {
	g := NewGlobal(newCountingBacking())
	l := g.Local()
	defer l.Close()

	ptr := l.Allocate(64)
	require.NotNil(t, ptr)
	require.Zero(t, (uintptr(ptr)-uintptr(HeaderSize))%BlockAlignment)
	require.Equal(t, uint64(1), l.Stats().AllocateCount)

	l.Deallocate(ptr)
	stats := l.Stats()
	require.Equal(t, uint64(1), stats.DeallocateCount)
	require.Zero(t, stats.TotalUsedMemory)
}

func TestLocalOversizeBypassesPools(t *testing.T) {
	g := NewGlobal(newCountingBacking())
	l := g.Local()
	defer l.Close()

	ptr := l.Allocate(PageSize)
	require.NotNil(t, ptr)
	require.False(t, l.pool.Owns(ptr), "oversize buffers are not pool blocks")

	localBefore := l.Stats()
	globalBefore := g.Stats()
	l.Deallocate(ptr)
	require.Equal(t, localBefore, l.Stats(), "oversize free bypasses the local freelists")
	require.Equal(t, globalBefore, g.Stats())
	require.Empty(t, g.direct)
}

func TestDirectBufferFreedFromOtherLocal(t *testing.T) {
	b := newCountingBacking()
	g := NewGlobal(b)
	producer := g.Local()
	defer producer.Close()
	consumer := g.Local()
	defer consumer.Close()

	ptr := producer.Allocate(PageSize)
	require.NotNil(t, ptr)
	live := b.live()

	// The direct registry lives on the global tier, so a different
	// Local releases the buffer back to the backing allocator.
	consumer.Deallocate(ptr)
	require.Equal(t, live-1, b.live(), "the backing buffer must be released")
	require.Empty(t, g.direct)
}

func TestLocalDeallocateRoutesToGlobal(t *testing.T) {
	g := NewGlobal(newCountingBacking())
	l := g.Local()
	defer l.Close()

	ptr := g.Allocate(64)
	require.NotNil(t, ptr)

	// The block was minted by the global tier; the facade must route
	// it home instead of swallowing it.
	l.Deallocate(ptr)
	require.Equal(t, uint64(1), g.Stats().DeallocateCount)
	require.Zero(t, l.Stats().DeallocateCount)
}

func TestLocalCloseDonatesToGlobal(t *testing.T) {
	g := NewGlobal(newCountingBacking())
	l := g.Local()

	var ptrs []unsafe.Pointer
	for i := 0; i < 300; i++ {
		ptrs = append(ptrs, l.Allocate(64))
	}
	for _, ptr := range ptrs {
		l.Deallocate(ptr)
	}

	donated := l.Stats().TotalFreeMemory
	require.NotZero(t, donated)
	require.Zero(t, g.Stats().TotalFreeMemory)

	l.Close()
	require.Equal(t, donated, g.Stats().TotalFreeMemory)
}

func TestLocalCloseIdempotentAndGuarded(t *testing.T) {
	g := NewGlobal(newCountingBacking())
	l := g.Local()
	l.Close()
	l.Close()

	require.Panics(t, func() { l.Allocate(8) })
	require.Panics(t, func() { l.Deallocate(nil) })
}

func TestWorkerDonationScenario(t *testing.T) {
	g := NewGlobal(newCountingBacking())

	const workers = 4
	donations := make([]uint64, workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			l := g.Local()

			var ptrs []unsafe.Pointer
			for i := 0; i < 300; i++ {
				ptr := l.Allocate(64)
				if ptr == nil {
					t.Error("local allocation failed")
					return
				}
				ptrs = append(ptrs, ptr)
			}
			for _, ptr := range ptrs {
				l.Deallocate(ptr)
			}

			donations[w] = l.Stats().TotalFreeMemory
			l.Close()
		}(w)
	}
	wg.Wait()

	sum := uint64(0)
	for _, d := range donations {
		sum += d
	}
	require.NotZero(t, sum)
	require.Equal(t, sum, g.Stats().TotalFreeMemory,
		"global free bytes must equal the donated amounts")
	require.LessOrEqual(t, g.Stats().TotalFreeMemory, uint64(MaxGlobalFreeMemory))
}

func TestBlockFreedAfterDonation(t *testing.T) {
	g := NewGlobal(newCountingBacking())
	l := g.Local()

	ptr := l.Allocate(64)
	require.NotNil(t, ptr)
	l.Close()

	// The minting Local is gone; the block finds its way home through
	// the global pool's page table.
	other := g.Local()
	defer other.Close()
	other.Deallocate(ptr)
	require.Equal(t, uint64(1), g.Stats().DeallocateCount)
}
