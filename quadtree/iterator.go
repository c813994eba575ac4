package quadtree

import "github.com/SyedAnees21/spatial/geometry"

// NodeInfo is one traversed node: its depth, its rectangle and the ids held
// directly at it. Items aliases tree storage and must not be modified.
type NodeInfo struct {
	Depth    int
	Boundary geometry.Geometry
	Items    []EntityID
}

// LevelIterator yields, per call, all entity ids stored at one depth,
// breadth-first from depth 0 through the deepest subtree. The depth range
// is captured at creation; each IterateLevels call restarts from the top.
type LevelIterator struct {
	root     *node
	level    int
	maxDepth int
}

func (t *Tree) IterateLevels() *LevelIterator {
	return &LevelIterator{
		root:     t.root,
		maxDepth: t.root.maxSubtreeDepth(),
	}
}

// Next returns the ids at the current depth and advances. ok is false once
// every depth has been produced.
func (it *LevelIterator) Next() (ids []EntityID, ok bool) {
	if it.level > it.maxDepth {
		return nil, false
	}

	gatherAtDepth(it.root, it.level, &ids)
	it.level++
	return ids, true
}

func gatherAtDepth(n *node, level int, out *[]EntityID) {
	if n.depth == level {
		*out = append(*out, n.items...)
		return
	}
	if n.depth < level {
		for _, child := range n.children {
			gatherAtDepth(child, level, out)
		}
	}
}

// NodeIterator walks the tree pre-order using an explicit stack.
type NodeIterator struct {
	stack []*node
}

func (t *Tree) IterateNodes() *NodeIterator {
	return &NodeIterator{stack: []*node{t.root}}
}

func (it *NodeIterator) Next() (NodeInfo, bool) {
	if len(it.stack) == 0 {
		return NodeInfo{}, false
	}

	n := it.stack[len(it.stack)-1]
	it.stack = it.stack[:len(it.stack)-1]
	it.stack = append(it.stack, n.children...)

	return NodeInfo{
		Depth:    n.depth,
		Boundary: n.boundary,
		Items:    n.items,
	}, true
}
