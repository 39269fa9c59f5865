// Copyright ©2025 The Hmat Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hmat

import (
	"math"

	"github.com/openhmat/hmat/cluster"
	"github.com/openhmat/hmat/dense"
	"github.com/openhmat/hmat/rk"
	"github.com/openhmat/hmat/scalar"
)

// Kind tags the three block-tree node variants.
type Kind int

const (
	// Internal nodes hold a 2×2 grid of children.
	Internal Kind = iota
	// DenseLeaf nodes own a dense tile.
	DenseLeaf
	// RkLeaf nodes own a low-rank factor pair.
	RkLeaf
)

// Matrix is a node of the block tree. The root represents the whole
// operator over the permuted ordering of its cluster trees; every node
// spans the index ranges of its row and column clusters. A nil *Matrix
// is the empty matrix.
//
// Factorizations overwrite the matrix in place; use FactorizedCopy to
// keep the original.
type Matrix[T scalar.Scalar] struct {
	opts             *Options[T]
	rowTree, colTree *cluster.Tree
	rows, cols       *cluster.Node

	kind  Kind
	child [2][2]*Matrix[T] // Internal: [rowHalf][colHalf], cells may be nil
	dense *dense.Matrix[T] // DenseLeaf payload, nil until assembled
	rk    *rk.Matrix[T]    // RkLeaf payload, nil until assembled

	piv  []int         // LU pivots of a factored dense diagonal leaf
	fact Factorization // root only: the factorization held

	report AssemblyReport // root only: events of the last Assemble
}

// New builds the block-tree skeleton pairing the two cluster trees
// under the admissibility condition. Leaves are shells until Assemble
// populates them. An empty tree on either side yields a nil matrix.
func New[T scalar.Scalar](rowTree, colTree *cluster.Tree, adm cluster.Condition, opts *Options[T]) *Matrix[T] {
	if rowTree.Root() == nil || colTree.Root() == nil {
		return nil
	}
	b := &blockBuilder[T]{opts: opts, rowTree: rowTree, colTree: colTree, adm: adm}
	return b.build(rowTree.Root(), colTree.Root())
}

type blockBuilder[T scalar.Scalar] struct {
	opts             *Options[T]
	rowTree, colTree *cluster.Tree
	adm              cluster.Condition
}

func (b *blockBuilder[T]) node(r, c *cluster.Node, kind Kind) *Matrix[T] {
	return &Matrix[T]{
		opts: b.opts, rowTree: b.rowTree, colTree: b.colTree,
		rows: r, cols: c, kind: kind,
	}
}

func (b *blockBuilder[T]) build(r, c *cluster.Node) *Matrix[T] {
	if r == nil || c == nil || r.Size() == 0 || c.Size() == 0 {
		return nil
	}
	pc, isPair := b.adm.(cluster.PairCondition)
	var rowAdm, colAdm bool
	if isPair {
		rowAdm, colAdm = pc.RowColAdmissible(r, c)
	} else {
		a := b.adm.Admissible(r, c)
		rowAdm, colAdm = a, a
	}
	if limit := b.opts.Settings.MaxElementsPerBlock; limit > 0 && r.Size()*c.Size() > limit {
		rowAdm, colAdm = false, false
	}
	if rowAdm && colAdm {
		if min(r.Size(), c.Size()) < b.opts.Settings.CompressionMinLeafSize {
			return b.node(r, c, DenseLeaf)
		}
		return b.node(r, c, RkLeaf)
	}
	rSplit, cSplit := !r.IsLeaf(), !c.IsLeaf()
	if isPair {
		// Split only the non-admissible axes.
		rSplit = rSplit && !rowAdm
		cSplit = cSplit && !colAdm
	} else if r.IsLeaf() || c.IsLeaf() {
		rSplit, cSplit = false, false
	}
	if !rSplit && !cSplit {
		return b.node(r, c, DenseLeaf)
	}
	n := b.node(r, c, Internal)
	rowParts := [2]*cluster.Node{r, nil}
	if rSplit {
		rowParts = [2]*cluster.Node{r.Left(), r.Right()}
	}
	colParts := [2]*cluster.Node{c, nil}
	if cSplit {
		colParts = [2]*cluster.Node{c.Left(), c.Right()}
	}
	for i, rp := range rowParts {
		for j, cp := range colParts {
			if rp == nil || cp == nil {
				continue
			}
			n.child[i][j] = b.build(rp, cp)
		}
	}
	return n
}

// wrapDense builds a transient dense leaf over an aliasing tile view;
// used to restrict leaf operands to a sub-range during mixed-variant
// recursion.
func (h *Matrix[T]) wrapDense(r, c *cluster.Node, d *dense.Matrix[T]) *Matrix[T] {
	return &Matrix[T]{opts: h.opts, rowTree: h.rowTree, colTree: h.colTree, rows: r, cols: c, kind: DenseLeaf, dense: d}
}

// Dims returns the shape of the block.
func (h *Matrix[T]) Dims() (r, c int) {
	if h == nil {
		return 0, 0
	}
	return h.rows.Size(), h.cols.Size()
}

// Kind returns the node variant.
func (h *Matrix[T]) Kind() Kind { return h.kind }

// RowCluster returns the row cluster the node spans.
func (h *Matrix[T]) RowCluster() *cluster.Node { return h.rows }

// ColCluster returns the column cluster the node spans.
func (h *Matrix[T]) ColCluster() *cluster.Node { return h.cols }

// Child returns the (i, j) cell of an Internal node's grid; it is nil
// for absent cells and panics on a leaf.
func (h *Matrix[T]) Child(i, j int) *Matrix[T] {
	if h.kind != Internal {
		panic(ErrStructure)
	}
	return h.child[i][j]
}

// DenseBlock returns the tile of a DenseLeaf.
func (h *Matrix[T]) DenseBlock() *dense.Matrix[T] {
	if h.kind != DenseLeaf {
		panic(ErrStructure)
	}
	return h.dense
}

// RkBlock returns the factor pair of an RkLeaf.
func (h *Matrix[T]) RkBlock() *rk.Matrix[T] {
	if h.kind != RkLeaf {
		panic(ErrStructure)
	}
	return h.rk
}

// Factorization returns the factorization the matrix currently holds.
func (h *Matrix[T]) Factorization() Factorization {
	if h == nil {
		return FactorizationNone
	}
	return h.fact
}

// leaves appends all leaf nodes to dst in row-major walk order.
func (h *Matrix[T]) leaves(dst []*Matrix[T]) []*Matrix[T] {
	if h == nil {
		return dst
	}
	if h.kind != Internal {
		return append(dst, h)
	}
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			dst = h.child[i][j].leaves(dst)
		}
	}
	return dst
}

func (h *Matrix[T]) assertAssembled() {
	switch h.kind {
	case DenseLeaf:
		if h.dense == nil {
			panic(ErrNotAssembled)
		}
	case RkLeaf:
		if h.rk == nil {
			panic(ErrNotAssembled)
		}
	}
}

// Norm returns the Frobenius norm of the matrix, accumulated exactly
// over the leaves.
func (h *Matrix[T]) Norm() float64 {
	var s float64
	for _, l := range h.leaves(nil) {
		l.assertAssembled()
		var n float64
		if l.kind == DenseLeaf {
			n = l.dense.Norm()
		} else {
			n = l.rk.Norm(l.opts.Kernel)
		}
		s += n * n
	}
	return math.Sqrt(s)
}

// Scale multiplies the matrix by alpha.
func (h *Matrix[T]) Scale(alpha T) {
	for _, l := range h.leaves(nil) {
		l.assertAssembled()
		if l.kind == DenseLeaf {
			l.dense.Scale(alpha)
		} else {
			l.rk.Scale(alpha)
		}
	}
}

// Clone returns a deep copy of the matrix.
func (h *Matrix[T]) Clone() *Matrix[T] {
	if h == nil {
		return nil
	}
	n := &Matrix[T]{
		opts: h.opts, rowTree: h.rowTree, colTree: h.colTree,
		rows: h.rows, cols: h.cols, kind: h.kind, fact: h.fact,
	}
	n.report = h.report
	n.report.RankExceededBlocks = append([]string(nil), h.report.RankExceededBlocks...)
	switch h.kind {
	case Internal:
		for i := 0; i < 2; i++ {
			for j := 0; j < 2; j++ {
				n.child[i][j] = h.child[i][j].Clone()
			}
		}
	case DenseLeaf:
		if h.dense != nil {
			n.dense = h.dense.Clone()
		}
	case RkLeaf:
		if h.rk != nil {
			n.rk = h.rk.Clone()
		}
	}
	if h.piv != nil {
		n.piv = append([]int(nil), h.piv...)
	}
	return n
}

// Full reconstructs the matrix as a dense tile in the permuted
// ordering.
func (h *Matrix[T]) Full() *dense.Matrix[T] {
	if h == nil {
		return dense.New[T](0, 0)
	}
	m, n := h.Dims()
	d := dense.New[T](m, n)
	h.fullInto(d, h.rows.Begin(), h.cols.Begin())
	return d
}

// FullOriginal reconstructs the matrix as a dense tile in the original
// (pre-permutation) ordering.
func (h *Matrix[T]) FullOriginal() *dense.Matrix[T] {
	if h == nil {
		return dense.New[T](0, 0)
	}
	perm := h.Full()
	m, n := perm.Dims()
	rp := h.rowTree.PermToOrig()
	cp := h.colTree.PermToOrig()
	d := dense.New[T](m, n)
	for j := 0; j < n; j++ {
		src := perm.ColView(j)
		dst := d.ColView(cp[j+h.cols.Begin()])
		for i := range src {
			dst[rp[i+h.rows.Begin()]] = src[i]
		}
	}
	return d
}

func (h *Matrix[T]) fullInto(d *dense.Matrix[T], rbase, cbase int) {
	if h == nil {
		return
	}
	if h.kind == Internal {
		for i := 0; i < 2; i++ {
			for j := 0; j < 2; j++ {
				h.child[i][j].fullInto(d, rbase, cbase)
			}
		}
		return
	}
	h.assertAssembled()
	m, n := h.Dims()
	view := d.View(h.rows.Begin()-rbase, h.cols.Begin()-cbase, m, n)
	if h.kind == DenseLeaf {
		view.Copy(h.dense)
		return
	}
	h.rk.ExpandInto(h.opts.Kernel, view)
}

// toDense materializes any node as a compact dense tile.
func (h *Matrix[T]) toDense() *dense.Matrix[T] {
	m, n := h.Dims()
	d := dense.New[T](m, n)
	h.fullInto(d, h.rows.Begin(), h.cols.Begin())
	return d
}

// AddScaled performs h += alpha*x for a matrix x of the same shape
// built over the same cluster trees.
func (h *Matrix[T]) AddScaled(alpha T, x *Matrix[T]) error {
	if h == nil || x == nil {
		return nil
	}
	if h.rows != x.rows || h.cols != x.cols {
		panic(ErrShape)
	}
	switch x.kind {
	case DenseLeaf:
		x.assertAssembled()
		return h.addDenseScaled(alpha, x.dense)
	case RkLeaf:
		x.assertAssembled()
		return h.addRkScaled(alpha, x.rk)
	}
	if h.kind == Internal && alignedGrids(h, x) {
		for i := 0; i < 2; i++ {
			for j := 0; j < 2; j++ {
				if x.child[i][j] == nil {
					continue
				}
				if err := h.child[i][j].AddScaled(alpha, x.child[i][j]); err != nil {
					return err
				}
			}
		}
		return nil
	}
	// Structures disagree below this node; go through a dense
	// materialization of x.
	return h.addDenseScaled(alpha, x.toDense())
}

// alignedGrids reports whether two Internal nodes split their shared
// clusters identically.
func alignedGrids[T scalar.Scalar](a, b *Matrix[T]) bool {
	if a.kind != Internal || b.kind != Internal {
		return false
	}
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			ac, bc := a.child[i][j], b.child[i][j]
			if (ac == nil) != (bc == nil) {
				return false
			}
			if ac != nil && (ac.rows != bc.rows || ac.cols != bc.cols) {
				return false
			}
		}
	}
	return true
}

// addDenseScaled adds alpha*d into the subtree, distributing views of
// d over the children.
func (h *Matrix[T]) addDenseScaled(alpha T, d *dense.Matrix[T]) error {
	if h == nil {
		return nil
	}
	m, n := h.Dims()
	if dr, dc := d.Dims(); dr != m || dc != n {
		panic(ErrShape)
	}
	switch h.kind {
	case Internal:
		for i := 0; i < 2; i++ {
			for j := 0; j < 2; j++ {
				c := h.child[i][j]
				if c == nil {
					continue
				}
				cm, cn := c.Dims()
				v := d.View(c.rows.Begin()-h.rows.Begin(), c.cols.Begin()-h.cols.Begin(), cm, cn)
				if err := c.addDenseScaled(alpha, v); err != nil {
					return err
				}
			}
		}
		return nil
	case DenseLeaf:
		h.assertAssembled()
		h.dense.AddScaled(alpha, d)
		return nil
	}
	h.assertAssembled()
	dr, err := rk.FromDense(h.opts.Kernel, d, h.opts.Settings.RecompressionEpsilon)
	if err != nil {
		return err
	}
	h.rk.AddScaled(alpha, dr)
	return h.maybeRecompress()
}

// addRkScaled adds alpha times the low-rank block r into the subtree,
// restricting the factor pair to child ranges without copying.
func (h *Matrix[T]) addRkScaled(alpha T, r *rk.Matrix[T]) error {
	if h == nil {
		return nil
	}
	m, n := h.Dims()
	if rm, rn := r.Dims(); rm != m || rn != n {
		panic(ErrShape)
	}
	if r.Rank() == 0 {
		return nil
	}
	switch h.kind {
	case Internal:
		for i := 0; i < 2; i++ {
			for j := 0; j < 2; j++ {
				c := h.child[i][j]
				if c == nil {
					continue
				}
				cm, cn := c.Dims()
				v := r.View(c.rows.Begin()-h.rows.Begin(), c.cols.Begin()-h.cols.Begin(), cm, cn)
				if err := c.addRkScaled(alpha, v); err != nil {
					return err
				}
			}
		}
		return nil
	case DenseLeaf:
		h.assertAssembled()
		r.ExpandAddInto(h.opts.Kernel, alpha, h.dense)
		return nil
	}
	h.assertAssembled()
	h.rk.AddScaled(alpha, r)
	return h.maybeRecompress()
}

func (h *Matrix[T]) maybeRecompress() error {
	if !h.opts.Settings.Recompress {
		return nil
	}
	return h.rk.Truncate(h.opts.Kernel, h.opts.Settings.RecompressionEpsilon)
}

// setFromDense overwrites the subtree's content with d, recompressing
// low-rank leaves at the recompression accuracy.
func (h *Matrix[T]) setFromDense(d *dense.Matrix[T]) error {
	if h == nil {
		return nil
	}
	m, n := h.Dims()
	if dr, dc := d.Dims(); dr != m || dc != n {
		panic(ErrShape)
	}
	switch h.kind {
	case Internal:
		for i := 0; i < 2; i++ {
			for j := 0; j < 2; j++ {
				c := h.child[i][j]
				if c == nil {
					continue
				}
				cm, cn := c.Dims()
				v := d.View(c.rows.Begin()-h.rows.Begin(), c.cols.Begin()-h.cols.Begin(), cm, cn)
				if err := c.setFromDense(v); err != nil {
					return err
				}
			}
		}
		return nil
	case DenseLeaf:
		if h.dense == nil {
			h.dense = dense.New[T](m, n)
		}
		h.dense.Copy(d)
		return nil
	}
	nr, err := rk.FromDense(h.opts.Kernel, d, h.opts.Settings.RecompressionEpsilon)
	if err != nil {
		return err
	}
	h.rk = nr
	return nil
}

// checkNaN walks the leaves and reports the first NaN value.
func (h *Matrix[T]) checkNaN(path string) error {
	if h == nil {
		return nil
	}
	if h.kind == Internal {
		for i := 0; i < 2; i++ {
			for j := 0; j < 2; j++ {
				if err := h.child[i][j].checkNaN(childPath(path, i, j)); err != nil {
					return err
				}
			}
		}
		return nil
	}
	h.assertAssembled()
	bad := false
	if h.kind == DenseLeaf {
		bad = h.dense.HasNaN()
	} else {
		bad = h.rk.A.HasNaN() || h.rk.B.HasNaN()
	}
	if bad {
		return &NodeError{Path: path, Err: ErrNaN}
	}
	return nil
}
