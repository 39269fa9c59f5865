// Copyright ©2025 The Hmat Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cluster

import "sort"

// Strategy selects how a cluster's index range is split.
type Strategy int

const (
	// Geometric splits along the longest box axis at its midpoint.
	Geometric Strategy = iota
	// Median splits along the longest box axis at the median
	// coordinate, balancing child sizes.
	Median
	// Hybrid tries the geometric split and falls back to median when
	// the geometric cut leaves the child sizes too unbalanced.
	Hybrid
)

// hybridImbalance is the largest child-size ratio a hybrid geometric
// split may produce before the median split takes over.
const hybridImbalance = 10.0

// Node is a cluster: a contiguous index range [Begin, End) in the
// permuted ordering, with its bounding box. Nodes are immutable once
// the tree is built.
type Node struct {
	begin, end  int
	bbox        Box
	maxRadius   float64
	left, right *Node
}

// Begin returns the first permuted index of the cluster.
func (n *Node) Begin() int { return n.begin }

// End returns one past the last permuted index of the cluster.
func (n *Node) End() int { return n.end }

// Size returns the number of degrees of freedom in the cluster.
func (n *Node) Size() int { return n.end - n.begin }

// IsLeaf reports whether the cluster has no children.
func (n *Node) IsLeaf() bool { return n.left == nil }

// Left returns the first child, nil for a leaf.
func (n *Node) Left() *Node { return n.left }

// Right returns the second child, nil for a leaf.
func (n *Node) Right() *Node { return n.right }

// BBox returns the cluster's axis-aligned bounding box.
func (n *Node) BBox() Box { return n.bbox }

// Diameter returns the length of the bounding box diagonal.
func (n *Node) Diameter() float64 { return n.bbox.Diameter() }

// DistanceTo returns the distance between the bounding boxes of two
// clusters, zero when they overlap.
func (n *Node) DistanceTo(o *Node) float64 { return n.bbox.Distance(o.bbox) }

// MaxRadius returns the largest influence radius in the cluster, zero
// when the point set carries none.
func (n *Node) MaxRadius() float64 { return n.maxRadius }

// Tree is a binary spatial partition of a point set. Every node covers
// a contiguous range of the permuted ordering; the permutation maps
// between permuted positions and original point indices.
type Tree struct {
	set        *Set
	root       *Node
	permToOrig []int
	origToPerm []int
}

// NewTree builds a cluster tree over set. Recursion stops when a
// cluster holds at most maxLeafSize points or all its points coincide
// along the split axis. An empty set yields a tree with a nil root.
func NewTree(set *Set, strategy Strategy, maxLeafSize int) *Tree {
	if maxLeafSize < 1 {
		maxLeafSize = 1
	}
	n := set.Len()
	t := &Tree{set: set, permToOrig: make([]int, n), origToPerm: make([]int, n)}
	for i := range t.permToOrig {
		t.permToOrig[i] = i
	}
	if n > 0 {
		b := &builder{set: set, perm: t.permToOrig, strategy: strategy, maxLeafSize: maxLeafSize}
		t.root = b.build(0, n)
	}
	for pos, orig := range t.permToOrig {
		t.origToPerm[orig] = pos
	}
	return t
}

// Set returns the underlying point set.
func (t *Tree) Set() *Set { return t.set }

// Root returns the root cluster, nil for an empty tree.
func (t *Tree) Root() *Node { return t.root }

// PermToOrig returns the permutation: the original index of each
// permuted position.
func (t *Tree) PermToOrig() []int { return t.permToOrig }

// OrigToPerm returns the inverse permutation.
func (t *Tree) OrigToPerm() []int { return t.origToPerm }

// Depth returns the number of node levels on the longest root-to-leaf
// path; an empty tree has depth 0.
func (t *Tree) Depth() int {
	var depth func(n *Node) int
	depth = func(n *Node) int {
		if n == nil {
			return 0
		}
		return 1 + max(depth(n.left), depth(n.right))
	}
	return depth(t.root)
}

// Leaves appends the tree's leaf clusters to dst in permuted order.
func (t *Tree) Leaves(dst []*Node) []*Node {
	var walk func(n *Node)
	walk = func(n *Node) {
		if n == nil {
			return
		}
		if n.IsLeaf() {
			dst = append(dst, n)
			return
		}
		walk(n.left)
		walk(n.right)
	}
	walk(t.root)
	return dst
}

type builder struct {
	set         *Set
	perm        []int
	strategy    Strategy
	maxLeafSize int
}

func (b *builder) bounds(begin, end int) (Box, float64) {
	box := emptyBox(b.set.Dim())
	var maxR float64
	for _, orig := range b.perm[begin:end] {
		box.extend(b.set.Coord(orig))
		if r := b.set.Radius(orig); r > maxR {
			maxR = r
		}
	}
	return box, maxR
}

func (b *builder) build(begin, end int) *Node {
	n := &Node{begin: begin, end: end}
	n.bbox, n.maxRadius = b.bounds(begin, end)
	if end-begin <= b.maxLeafSize {
		return n
	}
	axis := n.bbox.longestAxis()
	if n.bbox.Max[axis] == n.bbox.Min[axis] {
		// All points coincide; the cluster stays a leaf whatever
		// maxLeafSize says.
		return n
	}
	split := b.split(begin, end, axis, n.bbox)
	n.left = b.build(begin, split)
	n.right = b.build(split, end)
	return n
}

func (b *builder) split(begin, end, axis int, box Box) int {
	switch b.strategy {
	case Geometric:
		if split := b.geometricSplit(begin, end, axis, box); split > begin && split < end {
			return split
		}
		// Degenerate cut; fall through to the median.
	case Hybrid:
		// Trial geometric split, kept unless the child sizes come out
		// more than hybridImbalance apart.
		if split := b.geometricSplit(begin, end, axis, box); split > begin && split < end {
			large, small := split-begin, end-split
			if large < small {
				large, small = small, large
			}
			if float64(large) <= hybridImbalance*float64(small) {
				return split
			}
		}
	}
	return b.medianSplit(begin, end, axis)
}

// geometricSplit partitions the range about the box midpoint along
// axis and returns the split position.
func (b *builder) geometricSplit(begin, end, axis int, box Box) int {
	mid := (box.Min[axis] + box.Max[axis]) / 2
	split := begin
	for i := begin; i < end; i++ {
		if b.set.Coord(b.perm[i])[axis] <= mid {
			b.perm[split], b.perm[i] = b.perm[i], b.perm[split]
			split++
		}
	}
	return split
}

// medianSplit sorts the range along axis and cuts it in half.
func (b *builder) medianSplit(begin, end, axis int) int {
	sub := b.perm[begin:end]
	sort.SliceStable(sub, func(i, j int) bool {
		return b.set.Coord(sub[i])[axis] < b.set.Coord(sub[j])[axis]
	})
	return begin + (end-begin)/2
}
