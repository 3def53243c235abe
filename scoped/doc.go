// Package scoped provides a group/barrier chunk allocator for
// worker-pool execution.
//
// A Scoped allocator hands out MemChunk handles carved best-fit from
// previously freed regions, splitting and re-merging them at alignment
// granularity. Two scoping constructs isolate concurrent workers:
//
//   - Groups: BeginGroup opens a private freelist; allocations and
//     frees inside the group never touch the common freelist, so
//     sibling groups cannot contend or exchange memory.
//   - Barrier window: the controlling thread brackets a multi-threaded
//     phase with BarrierBegin and BarrierEnd. Inside the window each
//     worker runs its own group; frames retired by Group.End park
//     until BarrierEnd merges them all into the common freelist.
//
// Typical worker-pool shape:
//
//	s := scoped.New(backing.NewHeap(), 16, 0)
//	s.BarrierBegin()
//	for range workers {
//		go func() {
//			g := s.BeginGroup()
//			defer g.End()
//			c := g.Alloc(2048, false)
//			...
//			g.Free(c)
//		}()
//	}
//	// join workers
//	s.BarrierEnd()
//
// Allocation failure is reported as an invalid chunk, never a panic;
// mismatched group or barrier calls are programmer errors and panic.
package scoped
