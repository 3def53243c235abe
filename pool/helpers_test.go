package pool

import (
	"errors"
	"sync"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/poolkit/backing"
)

// countingBacking wraps the heap allocator, counting page traffic and
// optionally failing every acquisition.
type countingBacking struct {
	mu       sync.Mutex
	inner    *backing.Heap
	acquires int
	releases int
	fail     bool
}

func newCountingBacking() *countingBacking {
	return &countingBacking{inner: backing.NewHeap()}
}

var errInjected = errors.New("injected backing failure")

func (c *countingBacking) Acquire(n int) (unsafe.Pointer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return nil, errInjected
	}
	c.acquires++
	return c.inner.Acquire(n)
}

func (c *countingBacking) Release(p unsafe.Pointer, n int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.releases++
	return c.inner.Release(p, n)
}

func (c *countingBacking) live() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.acquires - c.releases
}

// checkInvariants verifies the structural invariants of a pool: every
// freelist's length matches its count, every threaded block carries
// its class size, and the counters foot to the freelist contents.
// The caller must own the pool exclusively.
func checkInvariants(t *testing.T, p *Pool) {
	t.Helper()

	sumFree := uint64(0)
	for i, total := range p.classes.sizes {
		walked := 0
		for b := p.classes.heads[i]; b != nil; b = headerOf(b).next {
			require.Equal(t, total, headerOf(b).size,
				"block header size mismatch in class %d", total)
			walked++
		}
		require.Equal(t, p.classes.counts[i], walked,
			"freelist length mismatch in class %d", total)
		sumFree += uint64(p.classes.counts[i] * total)
	}

	stats := p.Stats()
	require.Equal(t, sumFree, stats.TotalFreeMemory, "free byte counter out of sync")
	require.GreaterOrEqual(t, stats.TotalAllocatedMemory, stats.TotalFreeMemory)
	require.Equal(t, stats.TotalAllocatedMemory-stats.TotalFreeMemory, stats.TotalUsedMemory)
}

// freeBlocksOf returns the freelist length of the class serving
// userSize, 0 when the class is absent.
func freeBlocksOf(p *Pool, userSize int) int {
	idx := p.classes.find(totalSizeFor(userSize))
	if idx < 0 {
		return 0
	}
	return p.classes.counts[idx]
}
