// Package pool implements a tiered small-object allocator.
//
// # Tiers
//
// Allocation flows through three tiers:
//
//   - Local: a per-goroutine pool touched without locking. This is the
//     facade most callers hold; Allocate and Deallocate on it fall
//     through to the tiers below on a miss.
//   - Global: one process-wide pool behind a mutex, fed by Locals as
//     they close. Its free bytes are capped by MaxGlobalFreeMemory;
//     crossing the cap triggers reclamation of fully-idle pages.
//   - Backing: raw pages from the backing allocator, used directly for
//     requests above MaxUserSize or when the pools cannot manufacture.
//
// # Blocks and classes
//
// Requests are rounded up to size classes aligned to BlockAlignment.
// Blocks of one class are manufactured a page at a time and threaded
// through an in-band header into per-class freelists. The header keeps
// the block's total size in front of the user region, so Deallocate
// needs no size argument.
//
// Every pool also keeps a side-table of the pages it manufactured.
// Pointers are classified against that table, never by reading memory
// they point at, so freeing a foreign pointer is harmless.
//
// # Usage
//
//	l := pool.NewLocal()
//	defer l.Close()
//
//	p := l.Allocate(64)
//	...
//	l.Deallocate(p)
//
// A Local must stay on the goroutine that created it. Close splices
// its freelists into the global pool, after which blocks it minted may
// be freed from any goroutine via the global tier.
package pool
