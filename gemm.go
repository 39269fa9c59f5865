// Copyright ©2025 The Hmat Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hmat

import (
	"gonum.org/v1/gonum/blas"

	"github.com/openhmat/hmat/cluster"
	"github.com/openhmat/hmat/dense"
	"github.com/openhmat/hmat/rk"
	"github.com/openhmat/hmat/scalar"
)

// opRows returns the row cluster of op(h).
func opRows[T scalar.Scalar](h *Matrix[T], t blas.Transpose) *cluster.Node {
	if t == blas.NoTrans {
		return h.rows
	}
	return h.cols
}

// opCols returns the column cluster of op(h).
func opCols[T scalar.Scalar](h *Matrix[T], t blas.Transpose) *cluster.Node {
	if t == blas.NoTrans {
		return h.cols
	}
	return h.rows
}

// childOf returns cell (i, j) of op(h)'s grid.
func childOf[T scalar.Scalar](h *Matrix[T], t blas.Transpose, i, j int) *Matrix[T] {
	if t == blas.NoTrans {
		return h.child[i][j]
	}
	return h.child[j][i]
}

// conjOp maps t to the flag computing op(h)ᴴ. For real scalars Trans
// and ConjTrans coincide; low-rank paths do not support the
// unconjugated complex transpose.
func conjOp(t blas.Transpose) blas.Transpose {
	if t == blas.NoTrans {
		return blas.ConjTrans
	}
	return blas.NoTrans
}

// opRk returns the factor pair of op(h) for an RkLeaf, sharing
// storage.
func opRk[T scalar.Scalar](h *Matrix[T], t blas.Transpose) *rk.Matrix[T] {
	if t == blas.NoTrans {
		return h.rk
	}
	return h.rk.ConjTransposed()
}

func contains(a, b *cluster.Node) bool {
	return a.Begin() <= b.Begin() && b.End() <= a.End()
}

// restrictTo returns a node spanning exactly (rowsC, colsC), a
// sub-range of the receiver. Leaves restrict by zero-copy views; an
// Internal node descends into the child covering the range and
// flattens to dense only when its grid cuts across the request.
func (h *Matrix[T]) restrictTo(rowsC, colsC *cluster.Node) *Matrix[T] {
	if h.rows == rowsC && h.cols == colsC {
		return h
	}
	switch h.kind {
	case DenseLeaf:
		h.assertAssembled()
		v := h.dense.View(rowsC.Begin()-h.rows.Begin(), colsC.Begin()-h.cols.Begin(), rowsC.Size(), colsC.Size())
		return h.wrapDense(rowsC, colsC, v)
	case RkLeaf:
		h.assertAssembled()
		v := h.rk.View(rowsC.Begin()-h.rows.Begin(), colsC.Begin()-h.cols.Begin(), rowsC.Size(), colsC.Size())
		return h.wrapRk(rowsC, colsC, v)
	}
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			c := h.child[i][j]
			if c != nil && contains(c.rows, rowsC) && contains(c.cols, colsC) {
				return c.restrictTo(rowsC, colsC)
			}
		}
	}
	// The grid cuts across the requested range: flatten.
	flat := h.wrapDense(h.rows, h.cols, h.toDense())
	return flat.restrictTo(rowsC, colsC)
}

func (h *Matrix[T]) wrapRk(r, c *cluster.Node, v *rk.Matrix[T]) *Matrix[T] {
	return &Matrix[T]{opts: h.opts, rowTree: h.rowTree, colTree: h.colTree, rows: r, cols: c, kind: RkLeaf, rk: v}
}

// GemmAdd performs c += alpha*op(a)*op(b), dispatching on the node
// variants and recursing through Internal grids; dense kernels run
// only at leaves. All three matrices must be assembled and share a
// cluster-tree family so that their partitions align.
func (c *Matrix[T]) GemmAdd(tA, tB blas.Transpose, alpha T, a, b *Matrix[T]) error {
	if c == nil || a == nil || b == nil {
		return nil
	}
	am, ak := opRows(a, tA).Size(), opCols(a, tA).Size()
	bk, bn := opRows(b, tB).Size(), opCols(b, tB).Size()
	cm, cn := c.Dims()
	if am != cm || bn != cn || ak != bk {
		panic(ErrShape)
	}
	return c.gemm(tA, tB, alpha, a, b)
}

func (c *Matrix[T]) gemm(tA, tB blas.Transpose, alpha T, a, b *Matrix[T]) error {
	if a == nil || b == nil {
		return nil
	}
	// A low-rank operand makes the product low-rank: form it and fold
	// it in with a low-rank addition.
	if a.kind == RkLeaf || b.kind == RkLeaf {
		r, err := multiplyRk(tA, tB, a, b)
		if err != nil {
			return err
		}
		return c.addRkScaled(alpha, r)
	}
	switch c.kind {
	case DenseLeaf:
		c.assertAssembled()
		return gemmDense(tA, tB, alpha, a, b, c.dense)
	case RkLeaf:
		r, err := multiplyRk(tA, tB, a, b)
		if err != nil {
			return err
		}
		return c.addRkScaled(alpha, r)
	}
	// c Internal.
	if a.kind == Internal && b.kind == Internal && c.gridsMatch(tA, tB, a, b) {
		for i := 0; i < 2; i++ {
			for j := 0; j < 2; j++ {
				cc := c.child[i][j]
				if cc == nil {
					continue
				}
				for l := 0; l < 2; l++ {
					ac := childOf(a, tA, i, l)
					bc := childOf(b, tB, l, j)
					if ac == nil || bc == nil {
						continue
					}
					if err := cc.gemm(tA, tB, alpha, ac, bc); err != nil {
						return err
					}
				}
			}
		}
		return nil
	}
	// Mixed structures: materialize the product at this level and
	// distribute it over c's subtree.
	m, n := c.Dims()
	d := dense.New[T](m, n)
	if err := gemmDense(tA, tB, alpha, a, b, d); err != nil {
		return err
	}
	return c.addDenseScaled(scalar.FromFloat[T](1), d)
}

// gridsMatch reports whether the 2×2 recursion over (c, op(a), op(b))
// is well posed: c's splits follow op(a)'s rows and op(b)'s columns,
// and the inner split is shared.
func (c *Matrix[T]) gridsMatch(tA, tB blas.Transpose, a, b *Matrix[T]) bool {
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			cc := c.child[i][j]
			if cc == nil {
				continue
			}
			for l := 0; l < 2; l++ {
				ac := childOf(a, tA, i, l)
				bc := childOf(b, tB, l, j)
				if ac == nil || bc == nil {
					continue
				}
				if opRows(ac, tA) != cc.rows || opCols(bc, tB) != cc.cols {
					return false
				}
				if opCols(ac, tA) != opRows(bc, tB) {
					return false
				}
			}
		}
	}
	return true
}

// gemmDense accumulates out += alpha*op(a)*op(b) for arbitrary node
// variants, splitting out along whichever operand is Internal and
// restricting the other to matching sub-ranges.
func gemmDense[T scalar.Scalar](tA, tB blas.Transpose, alpha T, a, b *Matrix[T], out *dense.Matrix[T]) error {
	if a == nil || b == nil {
		return nil
	}
	p := a.opts.Kernel
	one := scalar.FromFloat[T](1)
	if a.kind == RkLeaf || b.kind == RkLeaf {
		r, err := multiplyRk(tA, tB, a, b)
		if err != nil {
			return err
		}
		r.ExpandAddInto(p, alpha, out)
		return nil
	}
	if a.kind == DenseLeaf && b.kind == DenseLeaf {
		a.assertAssembled()
		b.assertAssembled()
		dense.Gemm(p, tA, tB, alpha, a.dense, b.dense, one, out)
		return nil
	}
	if a.kind == Internal {
		for i := 0; i < 2; i++ {
			for l := 0; l < 2; l++ {
				ac := childOf(a, tA, i, l)
				if ac == nil {
					continue
				}
				rowsC, innerC := opRows(ac, tA), opCols(ac, tA)
				ov := out.View(rowsC.Begin()-opRows(a, tA).Begin(), 0, rowsC.Size(), out.Cols())
				var bSub *Matrix[T]
				if tB == blas.NoTrans {
					bSub = b.restrictTo(innerC, b.cols)
				} else {
					bSub = b.restrictTo(b.rows, innerC)
				}
				if err := gemmDense(tA, tB, alpha, ac, bSub, ov); err != nil {
					return err
				}
			}
		}
		return nil
	}
	// b Internal, a DenseLeaf.
	for l := 0; l < 2; l++ {
		for j := 0; j < 2; j++ {
			bc := childOf(b, tB, l, j)
			if bc == nil {
				continue
			}
			innerC, colsC := opRows(bc, tB), opCols(bc, tB)
			ov := out.View(0, colsC.Begin()-opCols(b, tB).Begin(), out.Rows(), colsC.Size())
			var aSub *Matrix[T]
			if tA == blas.NoTrans {
				aSub = a.restrictTo(a.rows, innerC)
			} else {
				aSub = a.restrictTo(innerC, a.cols)
			}
			if err := gemmDense(tA, tB, alpha, aSub, bc, ov); err != nil {
				return err
			}
		}
	}
	return nil
}

// multiplyRk forms op(a)*op(b) as a low-rank block. When either
// operand is low-rank the product is exact factor algebra; otherwise
// the product is materialized and compressed at the recompression
// accuracy.
func multiplyRk[T scalar.Scalar](tA, tB blas.Transpose, a, b *Matrix[T]) (*rk.Matrix[T], error) {
	p := a.opts.Kernel
	one := scalar.FromFloat[T](1)
	m := opRows(a, tA).Size()
	n := opCols(b, tB).Size()
	switch {
	case a.kind == RkLeaf:
		a.assertAssembled()
		ra := opRk(a, tA)
		switch b.kind {
		case RkLeaf:
			b.assertAssembled()
			return rk.MulRkRk(p, ra, opRk(b, tB)), nil
		case DenseLeaf:
			b.assertAssembled()
			return rk.MulRkDense(p, ra, tB, b.dense), nil
		}
		// b Internal: keep A, push op(b)ᴴ through the block tree.
		k := ra.Rank()
		w := dense.New[T](n, k)
		if err := hmatMulDenseAdd(conjOp(tB), one, b, ra.B, w); err != nil {
			return nil, err
		}
		return rk.New(ra.A.Clone(), w), nil
	case b.kind == RkLeaf:
		b.assertAssembled()
		rb := opRk(b, tB)
		if a.kind == DenseLeaf {
			a.assertAssembled()
			return rk.MulDenseRk(p, tA, a.dense, rb), nil
		}
		// a Internal: keep B, push op(a) through the block tree.
		k := rb.Rank()
		w := dense.New[T](m, k)
		if err := hmatMulDenseAdd(tA, one, a, rb.A, w); err != nil {
			return nil, err
		}
		return rk.New(w, rb.B.Clone()), nil
	}
	// No low-rank operand: materialize the product and compress.
	d := dense.New[T](m, n)
	if err := gemmDense(tA, tB, one, a, b, d); err != nil {
		return nil, err
	}
	return rk.FromDense(p, d, a.opts.Settings.RecompressionEpsilon)
}

// hmatMulDenseAdd accumulates out += alpha*op(h)*x for a dense
// multiplicand x, descending the block tree with aliasing views.
func hmatMulDenseAdd[T scalar.Scalar](tH blas.Transpose, alpha T, h *Matrix[T], x, out *dense.Matrix[T]) error {
	if h == nil {
		return nil
	}
	p := h.opts.Kernel
	one := scalar.FromFloat[T](1)
	switch h.kind {
	case DenseLeaf:
		h.assertAssembled()
		dense.Gemm(p, tH, blas.NoTrans, alpha, h.dense, x, one, out)
		return nil
	case RkLeaf:
		h.assertAssembled()
		r := opRk(h, tH)
		k := r.Rank()
		if k == 0 {
			return nil
		}
		w := dense.New[T](k, x.Cols())
		dense.Gemm(p, blas.ConjTrans, blas.NoTrans, one, r.B, x, 0, w)
		dense.Gemm(p, blas.NoTrans, blas.NoTrans, alpha, r.A, w, one, out)
		return nil
	}
	for i := 0; i < 2; i++ {
		for l := 0; l < 2; l++ {
			hc := childOf(h, tH, i, l)
			if hc == nil {
				continue
			}
			rowsC, innerC := opRows(hc, tH), opCols(hc, tH)
			xv := x.View(innerC.Begin()-opCols(h, tH).Begin(), 0, innerC.Size(), x.Cols())
			ov := out.View(rowsC.Begin()-opRows(h, tH).Begin(), 0, rowsC.Size(), out.Cols())
			if err := hmatMulDenseAdd(tH, alpha, hc, xv, ov); err != nil {
				return err
			}
		}
	}
	return nil
}

// MulVecAdd accumulates y += alpha*op(h)*x over the permuted ordering.
func (h *Matrix[T]) MulVecAdd(t blas.Transpose, alpha T, x, y []T) error {
	if h == nil {
		return nil
	}
	r, c := opRows(h, t).Size(), opCols(h, t).Size()
	if len(x) != c || len(y) != r {
		panic(ErrShape)
	}
	xm := dense.NewFromData(c, 1, max(c, 1), x)
	ym := dense.NewFromData(r, 1, max(r, 1), y)
	return hmatMulDenseAdd(t, alpha, h, xm, ym)
}

// Apply accumulates y += alpha*op(h)*x with x and y in the original
// (pre-permutation) ordering.
func (h *Matrix[T]) Apply(t blas.Transpose, alpha T, x, y []T) error {
	if h == nil {
		return nil
	}
	rowsP := h.rowTree.PermToOrig()
	colsP := h.colTree.PermToOrig()
	inP, outP := colsP, rowsP
	if t != blas.NoTrans {
		inP, outP = rowsP, colsP
	}
	xp := make([]T, len(x))
	for pos, orig := range inP {
		xp[pos] = x[orig]
	}
	yp := make([]T, len(y))
	for pos, orig := range outP {
		yp[pos] = y[orig]
	}
	if err := h.MulVecAdd(t, alpha, xp, yp); err != nil {
		return err
	}
	for pos, orig := range outP {
		y[orig] = yp[pos]
	}
	return nil
}
