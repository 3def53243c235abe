package scoped

import "sort"

// frame is one freelist scope: the common scope, or the private scope
// of an open group. Nodes are kept sorted by size so allocation is a
// best-fit binary search.
type frame struct {
	free []*chunkNode
}

func (f *frame) insert(n *chunkNode) {
	n.free = true
	i := sort.Search(len(f.free), func(i int) bool {
		return f.free[i].size >= n.size
	})
	f.free = append(f.free, nil)
	copy(f.free[i+1:], f.free[i:])
	f.free[i] = n
}

// takeBestFit removes and returns the smallest free node of at least
// need bytes, or nil.
func (f *frame) takeBestFit(need int) *chunkNode {
	i := sort.Search(len(f.free), func(i int) bool {
		return f.free[i].size >= need
	})
	if i == len(f.free) {
		return nil
	}
	n := f.free[i]
	f.free = append(f.free[:i], f.free[i+1:]...)
	n.free = false
	return n
}

// removeNode drops a specific node; it reports whether the node was
// present in this frame.
func (f *frame) removeNode(n *chunkNode) bool {
	for i, c := range f.free {
		if c == n {
			f.free = append(f.free[:i], f.free[i+1:]...)
			return true
		}
	}
	return false
}

// mergeInto drains every node of f into dst.
func (f *frame) mergeInto(dst *frame) {
	for _, n := range f.free {
		dst.insert(n)
	}
	f.free = nil
}
