package pool

import (
	"unsafe"

	"github.com/joshuapare/poolkit/internal/align"
)

// Local is the fast tier and the public allocation facade. It owns a
// private Pool touched without locking, so a Local must stay confined
// to the goroutine that created it. Close donates everything the pool
// holds to the global tier, the way a thread-local pool drains on
// thread exit.
type Local struct {
	global *Global
	pool   *Pool
	closed bool
}

// Local creates a fast-tier pool that escalates to g and donates back
// to g when closed.
func (g *Global) Local() *Local {
	return &Local{
		global: g,
		pool:   New(g.backing),
	}
}

// NewLocal creates a Local over the process-wide global pool.
func NewLocal() *Local {
	return Default().Local()
}

// Allocate returns at least userSize bytes, trying the private pool,
// then the global pool, then the backing allocator directly. Buffers
// from the direct tier carry no header and are recorded in the global
// registry so any Local can free them. Allocate returns nil only when
// the backing allocator is exhausted.
func (l *Local) Allocate(userSize int) unsafe.Pointer {
	l.assertOpen()
	if p := l.pool.Allocate(userSize); p != nil {
		return p
	}
	if p := l.global.Allocate(userSize); p != nil {
		return p
	}

	n := align.Up(userSize, BlockAlignment)
	if n == 0 {
		n = BlockAlignment
	}
	return l.global.allocateDirect(n)
}

// Deallocate routes a pointer back to whichever tier minted it: the
// private pool, the global pool, or the global direct-buffer registry.
// A nil pointer and a pointer from none of the tiers are no-ops.
func (l *Local) Deallocate(user unsafe.Pointer) {
	l.assertOpen()
	if user == nil {
		return
	}
	if l.pool.Deallocate(user) {
		return
	}
	l.global.Deallocate(user)
}

// Stats samples the private pool only; GlobalStats covers the tier
// above.
func (l *Local) Stats() MemoryStats {
	return l.pool.Stats()
}

// Close donates the private pool's freelists and page ownership to the
// global tier. Blocks of this pool still in user hands stay valid and
// find their way home through the global pool's page table; direct
// buffers likewise live in the global registry and outlive their
// minting Local. Close is idempotent.
func (l *Local) Close() {
	if l.closed {
		return
	}
	l.closed = true
	l.global.TransferFrom(l.pool)
}

func (l *Local) assertOpen() {
	if l.closed {
		panic("pool: use of closed Local")
	}
}
