package pool

import (
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"

	"github.com/joshuapare/poolkit/backing"
	"github.com/joshuapare/poolkit/internal/align"
)

// Runtime debug flag for allocation logging - controlled by POOLKIT_LOG_ALLOC env var.
var logAlloc = os.Getenv("POOLKIT_LOG_ALLOC") != ""

func debugf(format string, args ...any) {
	if logAlloc {
		fmt.Fprintf(os.Stderr, "[pool] "+format+"\n", args...)
	}
}

// Pool is the base allocator: a table of size-classed freelists fed by
// page-batched manufacture from a backing allocator.
//
// A Pool is not safe for concurrent use. The global tier wraps one in
// a mutex; the local tier confines one to its owning goroutine.
type Pool struct {
	backing backing.Allocator
	classes classTable
	pages   pageTable

	// Counters are atomic so observers can sample stats without the
	// owning tier's lock. Mutation still follows the tier discipline.
	allocateCount   atomic.Uint64
	deallocateCount atomic.Uint64
	totalFree       atomic.Uint64
	totalAllocated  atomic.Uint64
}

// New returns a pool seeded with classes for every aligned user size
// from MinUserSize through MaxUserSize.
func New(b backing.Allocator) *Pool {
	p := &Pool{backing: b}
	for user := MinUserSize; user <= MaxUserSize; user += BlockAlignment {
		p.classes.insertIfAbsent(totalSizeFor(user))
	}
	return p
}

// totalSizeFor computes the aligned block total for a user request.
func totalSizeFor(userSize int) int {
	if userSize == 0 {
		userSize = MinUserSize
	}
	return align.Up(userSize+HeaderSize, BlockAlignment)
}

// Allocate returns a pointer with at least userSize usable bytes, or
// nil when the request exceeds MaxUserSize or backing pages cannot be
// acquired. The returned pointer sits HeaderSize bytes into its block.
func (p *Pool) Allocate(userSize int) unsafe.Pointer {
	if userSize > MaxUserSize {
		return nil
	}
	total := totalSizeFor(userSize)
	idx := p.classes.insertIfAbsent(total)

	if p.classes.heads[idx] == nil && !p.batchAllocate(total, idx) {
		return nil
	}

	block := p.classes.pop(idx)
	p.totalFree.Add(^uint64(total - 1))
	p.allocateCount.Add(1)
	return userPtr(block)
}

// Deallocate pushes a pool-born block back onto its class freelist.
// It reports false for pointers this pool never minted, leaving the
// caller to route them to another tier. A nil pointer is a no-op.
func (p *Pool) Deallocate(user unsafe.Pointer) bool {
	if user == nil {
		return true
	}
	block := blockPtr(user)
	span, ok := p.pages.spanOf(block)
	if !ok {
		return false
	}

	total := span.size
	idx := p.classes.insertIfAbsent(total)

	// Rewrite the header from the span record rather than trusting
	// whatever the caller left behind.
	headerOf(block).size = total
	p.classes.push(idx, block)
	p.totalFree.Add(uint64(total))
	p.deallocateCount.Add(1)
	return true
}

// batchAllocate manufactures one page of blocks for class idx and
// threads them onto its freelist.
func (p *Pool) batchAllocate(total int, idx int) bool {
	if total <= 0 || total > PageSize {
		return false
	}
	count := PageSize / total
	if count == 0 {
		return false
	}

	page, err := p.backing.Acquire(PageSize)
	if err != nil {
		debugf("batch acquire failed for class %d: %v", total, err)
		return false
	}

	// Thread the page's blocks into a forward-linked run, then splice
	// the run ahead of whatever the freelist already holds.
	for i := 0; i < count; i++ {
		block := unsafe.Add(page, i*total)
		hdr := headerOf(block)
		hdr.size = total
		if i+1 < count {
			hdr.next = unsafe.Add(page, (i+1)*total)
		} else {
			hdr.next = p.classes.heads[idx]
		}
	}
	p.classes.heads[idx] = page
	p.classes.counts[idx] += count

	p.pages.insert(page, total)
	p.totalFree.Add(uint64(count * total))
	p.totalAllocated.Add(uint64(count * total))
	debugf("manufactured %d blocks of %dB", count, total)
	return true
}

// TransferTo splices every freelist into dst's matching class and
// migrates page ownership, leaving this pool empty. Pages whose
// freelist is momentarily empty migrate too: their outstanding blocks
// must classify against dst once they come back.
func (p *Pool) TransferTo(dst *Pool) {
	for i, total := range p.classes.sizes {
		movedPages := 0
		p.pages.takeClass(total, func(span pageSpan) {
			dst.pages.insert(span.base, span.size)
			movedPages++
		})
		if movedPages > 0 {
			blocksPerPage := PageSize / total
			moved := uint64(movedPages * blocksPerPage * total)
			p.totalAllocated.Add(^(moved - 1))
			dst.totalAllocated.Add(moved)
		}

		head := p.classes.heads[i]
		if head == nil {
			continue
		}
		count := p.classes.counts[i]

		di := dst.classes.insertIfAbsent(total)
		tail := head
		for headerOf(tail).next != nil {
			tail = headerOf(tail).next
		}
		headerOf(tail).next = dst.classes.heads[di]
		dst.classes.heads[di] = head
		dst.classes.counts[di] += count

		freed := uint64(count * total)
		dst.totalFree.Add(freed)
		p.totalFree.Add(^(freed - 1))

		p.classes.heads[i] = nil
		p.classes.counts[i] = 0
	}
}

// ReclaimIdle returns fully-idle pages to the backing allocator,
// keeping ReserveBlockCount blocks per class warm. Only pages whose
// every block sits on the freelist are eligible; the released byte
// count is returned.
func (p *Pool) ReclaimIdle() int {
	released := 0

	for i, total := range p.classes.sizes {
		count := p.classes.counts[i]
		if count <= ReserveBlockCount {
			continue
		}
		blocksPerPage := PageSize / total
		if blocksPerPage == 0 {
			continue
		}
		releasable := (count - ReserveBlockCount) / blocksPerPage * blocksPerPage
		if releasable == 0 {
			continue
		}
		maxPages := releasable / blocksPerPage

		// Count freelist residency per page.
		idle := make(map[unsafe.Pointer]int)
		for b := p.classes.heads[i]; b != nil; b = headerOf(b).next {
			if span, ok := p.pages.spanOf(b); ok {
				idle[span.base]++
			}
		}

		victims := make(map[unsafe.Pointer]bool)
		for base, free := range idle {
			if free == blocksPerPage {
				victims[base] = true
				if len(victims) == maxPages {
					break
				}
			}
		}
		if len(victims) == 0 {
			continue
		}

		// Unthread every block living on a victim page.
		var head unsafe.Pointer
		var tail unsafe.Pointer
		kept := 0
		for b := p.classes.heads[i]; b != nil; b = headerOf(b).next {
			span, ok := p.pages.spanOf(b)
			if ok && victims[span.base] {
				continue
			}
			if head == nil {
				head = b
			} else {
				headerOf(tail).next = b
			}
			tail = b
			kept++
		}
		if tail != nil {
			headerOf(tail).next = nil
		}
		p.classes.heads[i] = head
		p.classes.counts[i] = kept

		for base := range victims {
			if err := p.backing.Release(base, PageSize); err != nil {
				debugf("release of page %p failed: %v", base, err)
			}
			p.pages.remove(base)
		}

		bytes := uint64(len(victims) * blocksPerPage * total)
		p.totalFree.Add(^(bytes - 1))
		p.totalAllocated.Add(^(bytes - 1))
		released += int(bytes)
		debugf("reclaimed %d pages of %dB blocks", len(victims), total)
	}

	return released
}

// Stats samples the pool's counters.
func (p *Pool) Stats() MemoryStats {
	free := p.totalFree.Load()
	allocated := p.totalAllocated.Load()
	return MemoryStats{
		AllocateCount:        p.allocateCount.Load(),
		DeallocateCount:      p.deallocateCount.Load(),
		TotalFreeMemory:      free,
		TotalUsedMemory:      allocated - free,
		TotalAllocatedMemory: allocated,
	}
}

// Owns reports whether p minted the block behind the user pointer.
func (p *Pool) Owns(user unsafe.Pointer) bool {
	if user == nil {
		return false
	}
	_, ok := p.pages.spanOf(blockPtr(user))
	return ok
}
