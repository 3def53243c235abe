package scoped

import (
	"fmt"
	"sync"

	"github.com/joshuapare/poolkit/backing"
	"github.com/joshuapare/poolkit/internal/align"
)

// Scoped is a chunk allocator built for worker-pool execution. Between
// BarrierBegin and BarrierEnd, concurrent workers open private groups
// and allocate without contending on the common freelist; the residual
// free chunks of every group merge back when the barrier closes.
//
// Outside a barrier the allocator is single-threaded and groups nest
// on a stack.
type Scoped struct {
	mu sync.Mutex

	backing   backing.Allocator
	alignment int
	cap       int // soft limit on managed bytes, 0 = unbounded
	total     int // bytes currently acquired or pending acquisition

	common   frame
	stack    []*Group        // open groups, single-threaded nesting
	groups   map[*Group]bool // all open groups, barrier mode included
	parked   []*frame        // frames retired while the barrier is open
	barrier  bool
	deferred []*chunkNode
	roots    map[*chunkNode]bool
}

// Group is one open group frame. Allocations and frees on it stay
// isolated from sibling groups until the frame is merged back.
type Group struct {
	s     *Scoped
	frame frame
	ended bool
}

// New builds a scoped allocator over the given backing. alignment must
// be a power of two; cap soft-limits the total managed bytes, with 0
// meaning unbounded.
func New(b backing.Allocator, alignment, cap int) *Scoped {
	if !align.IsPowerOfTwo(alignment) {
		panic(fmt.Sprintf("scoped: alignment %d is not a power of two", alignment))
	}
	return &Scoped{
		backing:   b,
		alignment: alignment,
		cap:       cap,
		groups:    make(map[*Group]bool),
		roots:     make(map[*chunkNode]bool),
	}
}

// Alloc carves a chunk of at least size bytes from the current scope.
// With deferRealloc the backing memory is not acquired until Sync; the
// chunk is valid but its pointer stays nil until then. Failure is
// reported as an invalid chunk.
func (s *Scoped) Alloc(size int, deferRealloc bool) MemChunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.allocFrom(s.currentFrame(), size, deferRealloc, true)
}

// Free returns a chunk to the current scope's freelist.
func (s *Scoped) Free(c MemChunk) {
	if c.Invalid() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.freeInto(s.currentFrame(), c)
}

// BeginGroup opens a group frame. Inside a barrier window each worker
// calls it on its own goroutine; outside one, groups nest on the
// calling thread.
func (s *Scoped) BeginGroup() *Group {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := &Group{s: s}
	s.groups[g] = true
	if !s.barrier {
		s.stack = append(s.stack, g)
	}
	return g
}

// Alloc carves a chunk from the group's private freelist, falling back
// to fresh backing memory; it never touches the common freelist.
func (g *Group) Alloc(size int, deferRealloc bool) MemChunk {
	if g.ended {
		panic("scoped: Alloc on ended group")
	}
	return g.s.allocFrom(&g.frame, size, deferRealloc, false)
}

// Free returns a chunk to the group's private freelist.
func (g *Group) Free(c MemChunk) {
	if g.ended {
		panic("scoped: Free on ended group")
	}
	if c.Invalid() {
		return
	}
	g.s.freeInto(&g.frame, c)
}

// End closes the group. Inside a barrier the frame is parked until
// BarrierEnd merges it; outside one it merges into the enclosing scope
// immediately. Groups must end in stack order.
func (g *Group) End() {
	s := g.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if g.ended {
		panic("scoped: group ended twice")
	}

	if s.barrier {
		g.ended = true
		delete(s.groups, g)
		parked := g.frame
		s.parked = append(s.parked, &parked)
		return
	}

	if len(s.stack) == 0 || s.stack[len(s.stack)-1] != g {
		panic("scoped: group end out of order")
	}
	g.ended = true
	delete(s.groups, g)
	s.stack = s.stack[:len(s.stack)-1]
	g.frame.mergeInto(s.currentFrame())
}

// BarrierBegin opens the multi-threaded window. No group may be open.
func (s *Scoped) BarrierBegin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.barrier {
		panic("scoped: barrier already open")
	}
	if len(s.groups) != 0 {
		panic("scoped: barrier inside open group")
	}
	s.barrier = true
}

// BarrierEnd closes the window and merges every parked group frame
// into the common freelist. All groups must have ended.
func (s *Scoped) BarrierEnd() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.barrier {
		panic("scoped: barrier not open")
	}
	if len(s.groups) != 0 {
		panic("scoped: barrier end with open groups")
	}
	for _, f := range s.parked {
		f.mergeInto(&s.common)
	}
	s.parked = nil
	s.barrier = false
}

// Sync realizes every deferred chunk, acquiring its backing memory.
func (s *Scoped) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	remaining := s.deferred[:0]
	var firstErr error
	for _, n := range s.deferred {
		p, err := s.backing.Acquire(n.size)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			remaining = append(remaining, n)
			continue
		}
		n.base = p
		n.deferred = false
	}
	s.deferred = remaining
	return firstErr
}

// Release drops managed memory. With all=false only unused whole
// regions on the common freelist are returned to the backing; with
// all=true every region goes back and outstanding chunks become
// dangling.
func (s *Scoped) Release(all bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if all {
		for n := range s.roots {
			if n.base != nil {
				s.backing.Release(n.base, n.size)
			}
			delete(s.roots, n)
		}
		s.common = frame{}
		s.parked = nil
		s.deferred = nil
		s.total = 0
		return
	}

	kept := s.common.free[:0]
	for _, n := range s.common.free {
		if n.parent == nil && !n.deferred {
			s.backing.Release(n.base, n.size)
			delete(s.roots, n)
			s.total -= n.size
			continue
		}
		kept = append(kept, n)
	}
	s.common.free = kept
}

// TotalSize returns the bytes currently managed, deferred included.
func (s *Scoped) TotalSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// currentFrame is the innermost open group outside a barrier, or the
// common frame. Callers hold s.mu.
func (s *Scoped) currentFrame() *frame {
	if !s.barrier && len(s.stack) > 0 {
		return &s.stack[len(s.stack)-1].frame
	}
	return &s.common
}

// allocFrom is the shared allocation path. Group callers pass their
// private frame without holding s.mu; the frame is confined to the
// calling goroutine, and the shared counters are taken under the lock
// inside newNode. locked states whether the caller already holds s.mu.
func (s *Scoped) allocFrom(f *frame, size int, deferRealloc, locked bool) MemChunk {
	if size <= 0 {
		return MemChunk{}
	}
	size = align.Up(size, s.alignment)

	if n := f.takeBestFit(size); n != nil {
		return MemChunk{node: s.carve(f, n, size)}
	}

	var n *chunkNode
	if locked {
		n = s.newNodeLocked(size, deferRealloc)
	} else {
		n = s.newNode(size, deferRealloc)
	}
	if n == nil {
		return MemChunk{}
	}
	return MemChunk{node: n}
}

// carve trims node n to size, returning the allocated node and leaving
// any remainder on the frame's freelist.
func (s *Scoped) carve(f *frame, n *chunkNode, size int) *chunkNode {
	if n.size-size < s.alignment {
		return n
	}
	used := &chunkNode{size: size, parent: n}
	rest := &chunkNode{size: n.size - size, offset: size, parent: n}
	n.children = []*chunkNode{used, rest}
	f.insert(rest)
	return used
}

// freeInto returns the chunk's node to frame f and merges split
// siblings back into their parent when the whole parent is idle in
// this frame.
func (s *Scoped) freeInto(f *frame, c MemChunk) {
	n := c.node
	f.insert(n)

	for p := n.parent; p != nil; p = p.parent {
		idle := true
		for _, child := range p.children {
			if !child.free {
				idle = false
				break
			}
		}
		if !idle {
			break
		}
		// All siblings are free; they merge only if this frame holds
		// every one of them.
		resident := true
		for _, child := range p.children {
			found := false
			for _, fn := range f.free {
				if fn == child {
					found = true
					break
				}
			}
			if !found {
				resident = false
				break
			}
		}
		if !resident {
			break
		}
		for _, child := range p.children {
			f.removeNode(child)
		}
		p.children = nil
		f.insert(p)
	}
}

// newNode acquires a fresh region of exactly size bytes, honoring the
// soft cap. Deferred nodes are realized later by Sync.
func (s *Scoped) newNode(size int, deferRealloc bool) *chunkNode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.newNodeLocked(size, deferRealloc)
}

func (s *Scoped) newNodeLocked(size int, deferRealloc bool) *chunkNode {
	if s.cap > 0 && s.total+size > s.cap {
		return nil
	}
	n := &chunkNode{size: size}
	if deferRealloc {
		n.deferred = true
		s.deferred = append(s.deferred, n)
	} else {
		p, err := s.backing.Acquire(size)
		if err != nil {
			return nil
		}
		n.base = p
	}
	s.roots[n] = true
	s.total += size
	return n
}
