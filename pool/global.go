package pool

import (
	"sync"
	"unsafe"

	"github.com/joshuapare/poolkit/backing"
)

// Global is the shared middle tier: one Pool behind a mutex. Frees and
// transfers that push its free bytes past MaxGlobalFreeMemory trigger
// reclamation before the call returns.
type Global struct {
	mu      sync.Mutex
	backing backing.Allocator
	pool    *Pool

	// direct records buffers minted straight from the backing
	// allocator when every pool tier missed. They carry no header, so
	// their sizes live here; keeping the registry on the shared tier
	// lets any Local route such a buffer home.
	direct map[unsafe.Pointer]int
}

var (
	defaultGlobal     *Global
	defaultGlobalOnce sync.Once
)

// Default returns the process-wide global pool, constructing it on
// first use over the default heap backing.
func Default() *Global {
	defaultGlobalOnce.Do(func() {
		defaultGlobal = NewGlobal(backing.NewHeap())
	})
	return defaultGlobal
}

// NewGlobal builds an isolated global tier over the given backing.
// Tests and embedders use this; most callers want Default.
func NewGlobal(b backing.Allocator) *Global {
	return &Global{
		backing: b,
		pool:    New(b),
		direct:  make(map[unsafe.Pointer]int),
	}
}

// Allocate serves a request from the shared pool.
func (g *Global) Allocate(userSize int) unsafe.Pointer {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pool.Allocate(userSize)
}

// Deallocate returns a block minted by the shared pool or a
// direct-fallback buffer, reporting false for pointers it does not
// own.
func (g *Global) Deallocate(user unsafe.Pointer) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pool.Deallocate(user) {
		g.maybeReclaim()
		return true
	}
	if n, ok := g.direct[user]; ok {
		delete(g.direct, user)
		g.backing.Release(user, n)
		return true
	}
	return false
}

// allocateDirect acquires an unheadered buffer straight from the
// backing allocator and records it so any tier can release it later.
func (g *Global) allocateDirect(n int) unsafe.Pointer {
	p, err := g.backing.Acquire(n)
	if err != nil {
		return nil
	}
	g.mu.Lock()
	g.direct[p] = n
	g.mu.Unlock()
	return p
}

// TransferFrom splices all of src's freelists and page ownership into
// the shared pool. src must not be used concurrently by its owner.
func (g *Global) TransferFrom(src *Pool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	src.TransferTo(g.pool)
	g.maybeReclaim()
}

func (g *Global) maybeReclaim() {
	if g.pool.totalFree.Load() > MaxGlobalFreeMemory {
		g.pool.ReclaimIdle()
	}
}

// ReclaimIdle forces a reclamation pass, returning the bytes released.
func (g *Global) ReclaimIdle() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pool.ReclaimIdle()
}

// Stats samples the shared pool.
func (g *Global) Stats() MemoryStats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pool.Stats()
}

// GlobalStats samples the process-wide global pool.
func GlobalStats() MemoryStats {
	return Default().Stats()
}
