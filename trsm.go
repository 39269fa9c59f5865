// Copyright ©2025 The Hmat Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hmat

import (
	"gonum.org/v1/gonum/blas"

	"github.com/openhmat/hmat/cluster"
	"github.com/openhmat/hmat/dense"
	"github.com/openhmat/hmat/scalar"
)

// denseMulHmatAdd accumulates out += alpha*x*op(h) for a dense
// multiplier x, descending the block tree with aliasing views.
func denseMulHmatAdd[T scalar.Scalar](alpha T, x *dense.Matrix[T], tH blas.Transpose, h *Matrix[T], out *dense.Matrix[T]) error {
	if h == nil {
		return nil
	}
	p := h.opts.Kernel
	one := scalar.FromFloat[T](1)
	switch h.kind {
	case DenseLeaf:
		h.assertAssembled()
		dense.Gemm(p, blas.NoTrans, tH, alpha, x, h.dense, one, out)
		return nil
	case RkLeaf:
		h.assertAssembled()
		r := opRk(h, tH)
		k := r.Rank()
		if k == 0 {
			return nil
		}
		w := dense.New[T](x.Rows(), k)
		dense.Gemm(p, blas.NoTrans, blas.NoTrans, one, x, r.A, 0, w)
		dense.Gemm(p, blas.NoTrans, blas.ConjTrans, alpha, w, r.B, one, out)
		return nil
	}
	for l := 0; l < 2; l++ {
		for j := 0; j < 2; j++ {
			hc := childOf(h, tH, l, j)
			if hc == nil {
				continue
			}
			innerC, colsC := opRows(hc, tH), opCols(hc, tH)
			xv := x.View(0, innerC.Begin()-opRows(h, tH).Begin(), x.Rows(), innerC.Size())
			ov := out.View(0, colsC.Begin()-opCols(h, tH).Begin(), out.Rows(), colsC.Size())
			if err := denseMulHmatAdd(alpha, xv, tH, hc, ov); err != nil {
				return err
			}
		}
	}
	return nil
}

// triUpper reports whether op(tri(l)) is effectively upper triangular,
// which fixes the sweep direction of the block solves.
func triUpper(uplo blas.Uplo, t blas.Transpose) bool {
	return (uplo == blas.Upper) == (t == blas.NoTrans)
}

// solveTriLeftDense solves op(tri(l))*X = B in place of the dense B,
// recursing over l's diagonal blocks. Row pivots recorded by LU on
// dense diagonal leaves are applied during the unit-lower forward
// sweep, matching how the factorization produced the off-diagonal
// blocks.
func solveTriLeftDense[T scalar.Scalar](l *Matrix[T], uplo blas.Uplo, t blas.Transpose, diag blas.Diag, b *dense.Matrix[T]) error {
	p := l.opts.Kernel
	one := scalar.FromFloat[T](1)
	minusOne := scalar.FromFloat[T](-1)
	switch l.kind {
	case DenseLeaf:
		l.assertAssembled()
		if l.piv != nil && uplo == blas.Lower && t == blas.NoTrans {
			dense.ApplyRowPivots(b, l.piv, true)
		}
		dense.Trsm(p, blas.Left, uplo, t, diag, one, l.dense, b)
		return nil
	case RkLeaf:
		panic(ErrStructure)
	}
	c00, c11 := l.child[0][0], l.child[1][1]
	if c00 == nil || c11 == nil {
		panic(ErrStructure)
	}
	n0 := c00.rows.Size()
	b0 := b.View(0, 0, n0, b.Cols())
	b1 := b.View(n0, 0, b.Rows()-n0, b.Cols())
	if triUpper(uplo, t) {
		off := childOf(l, t, 0, 1)
		if err := solveTriLeftDense(c11, uplo, t, diag, b1); err != nil {
			return err
		}
		if off != nil {
			if err := hmatMulDenseAdd(t, minusOne, off, b1, b0); err != nil {
				return err
			}
		}
		return solveTriLeftDense(c00, uplo, t, diag, b0)
	}
	off := childOf(l, t, 1, 0)
	if err := solveTriLeftDense(c00, uplo, t, diag, b0); err != nil {
		return err
	}
	if off != nil {
		if err := hmatMulDenseAdd(t, minusOne, off, b0, b1); err != nil {
			return err
		}
	}
	return solveTriLeftDense(c11, uplo, t, diag, b1)
}

// solveTriRightDense solves X*op(tri(l)) = B in place of the dense B.
func solveTriRightDense[T scalar.Scalar](b *dense.Matrix[T], l *Matrix[T], uplo blas.Uplo, t blas.Transpose, diag blas.Diag) error {
	p := l.opts.Kernel
	one := scalar.FromFloat[T](1)
	minusOne := scalar.FromFloat[T](-1)
	switch l.kind {
	case DenseLeaf:
		l.assertAssembled()
		dense.Trsm(p, blas.Right, uplo, t, diag, one, l.dense, b)
		return nil
	case RkLeaf:
		panic(ErrStructure)
	}
	c00, c11 := l.child[0][0], l.child[1][1]
	if c00 == nil || c11 == nil {
		panic(ErrStructure)
	}
	n0 := c00.rows.Size()
	b0 := b.View(0, 0, b.Rows(), n0)
	b1 := b.View(0, n0, b.Rows(), b.Cols()-n0)
	if triUpper(uplo, t) {
		// Forward: the first block column depends only on the first
		// diagonal block.
		off := childOf(l, t, 0, 1)
		if err := solveTriRightDense(b0, c00, uplo, t, diag); err != nil {
			return err
		}
		if off != nil {
			if err := denseMulHmatAdd(minusOne, b0, t, off, b1); err != nil {
				return err
			}
		}
		return solveTriRightDense(b1, c11, uplo, t, diag)
	}
	off := childOf(l, t, 1, 0)
	if err := solveTriRightDense(b1, c11, uplo, t, diag); err != nil {
		return err
	}
	if off != nil {
		if err := denseMulHmatAdd(minusOne, b1, t, off, b0); err != nil {
			return err
		}
	}
	return solveTriRightDense(b0, c00, uplo, t, diag)
}

// conjSolveTrans maps t to the flag solving against op(tri)ᴴ, used to
// carry a right solve onto the B factor of a low-rank block.
func conjSolveTrans(t blas.Transpose) blas.Transpose {
	if t == blas.NoTrans {
		return blas.ConjTrans
	}
	return blas.NoTrans
}

// solveTriLeft solves op(tri(l))*X = B in place of the block-tree node
// B. A low-rank B restricts the solve to its A factor; an Internal B
// whose row split matches l's recurses structurally and falls back to
// dense flattening otherwise.
func solveTriLeft[T scalar.Scalar](l *Matrix[T], uplo blas.Uplo, t blas.Transpose, diag blas.Diag, b *Matrix[T]) error {
	if b == nil {
		return nil
	}
	switch b.kind {
	case DenseLeaf:
		b.assertAssembled()
		return solveTriLeftDense(l, uplo, t, diag, b.dense)
	case RkLeaf:
		b.assertAssembled()
		if b.rk.Rank() == 0 {
			return nil
		}
		return solveTriLeftDense(l, uplo, t, diag, b.rk.A)
	}
	if l.kind == Internal {
		c00, c11 := l.child[0][0], l.child[1][1]
		if c00 == nil || c11 == nil {
			panic(ErrStructure)
		}
		if rowSplitMatches(b, c00.rows) {
			upper := triUpper(uplo, t)
			first, second := 0, 1
			if upper {
				first, second = 1, 0
			}
			diagNode := [2]*Matrix[T]{c00, c11}
			off := childOf(l, t, second, first)
			for j := 0; j < 2; j++ {
				bf, bs := b.child[first][j], b.child[second][j]
				if err := solveTriLeft(diagNode[first], uplo, t, diag, bf); err != nil {
					return err
				}
				if off != nil && bf != nil && bs != nil {
					minusOne := scalar.FromFloat[T](-1)
					if err := bs.gemm(t, blas.NoTrans, minusOne, off, bf); err != nil {
						return err
					}
				}
				if err := solveTriLeft(diagNode[second], uplo, t, diag, bs); err != nil {
					return err
				}
			}
			return nil
		}
	}
	// Structure mismatch: flatten B, solve densely, scatter back.
	d := b.toDense()
	if err := solveTriLeftDense(l, uplo, t, diag, d); err != nil {
		return err
	}
	return b.setFromDense(d)
}

// solveTriRight solves X*op(tri(l)) = B in place of the block-tree
// node B. A low-rank B carries the solve onto its B factor as a
// conjugate-transposed left solve.
func solveTriRight[T scalar.Scalar](b *Matrix[T], l *Matrix[T], uplo blas.Uplo, t blas.Transpose, diag blas.Diag) error {
	if b == nil {
		return nil
	}
	switch b.kind {
	case DenseLeaf:
		b.assertAssembled()
		return solveTriRightDense(b.dense, l, uplo, t, diag)
	case RkLeaf:
		b.assertAssembled()
		if b.rk.Rank() == 0 {
			return nil
		}
		// A·Bᴴ·op(tri)⁻¹ = A·(op(tri)⁻ᴴ·B)ᴴ.
		return solveTriLeftDense(l, uplo, conjSolveTrans(t), diag, b.rk.B)
	}
	if l.kind == Internal {
		c00, c11 := l.child[0][0], l.child[1][1]
		if c00 == nil || c11 == nil {
			panic(ErrStructure)
		}
		if colSplitMatches(b, c00.cols) {
			upper := triUpper(uplo, t)
			first, second := 1, 0
			if upper {
				first, second = 0, 1
			}
			diagNode := [2]*Matrix[T]{c00, c11}
			off := childOf(l, t, first, second)
			for i := 0; i < 2; i++ {
				bf, bs := b.child[i][first], b.child[i][second]
				if err := solveTriRight(bf, diagNode[first], uplo, t, diag); err != nil {
					return err
				}
				if off != nil && bf != nil && bs != nil {
					minusOne := scalar.FromFloat[T](-1)
					if err := bs.gemm(blas.NoTrans, t, minusOne, bf, off); err != nil {
						return err
					}
				}
				if err := solveTriRight(bs, diagNode[second], uplo, t, diag); err != nil {
					return err
				}
			}
			return nil
		}
	}
	d := b.toDense()
	if err := solveTriRightDense(d, l, uplo, t, diag); err != nil {
		return err
	}
	return b.setFromDense(d)
}

// rowSplitMatches reports whether an Internal node splits its rows at
// the same cluster as first.
func rowSplitMatches[T scalar.Scalar](b *Matrix[T], first *cluster.Node) bool {
	if b.kind != Internal {
		return false
	}
	for j := 0; j < 2; j++ {
		if c := b.child[0][j]; c != nil {
			return c.rows == first
		}
	}
	return false
}

// colSplitMatches reports whether an Internal node splits its columns
// at the same cluster as first.
func colSplitMatches[T scalar.Scalar](b *Matrix[T], first *cluster.Node) bool {
	if b.kind != Internal {
		return false
	}
	for i := 0; i < 2; i++ {
		if c := b.child[i][0]; c != nil {
			return c.cols == first
		}
	}
	return false
}

// SolveTriangular solves op(tri(h))*X = B (Left) or X*op(tri(h)) = B
// (Right) in place of B, where tri(h) is the uplo triangle of the
// (typically factored) matrix h.
func (h *Matrix[T]) SolveTriangular(side blas.Side, uplo blas.Uplo, t blas.Transpose, diag blas.Diag, b *Matrix[T]) error {
	if h == nil || b == nil {
		return nil
	}
	if side == blas.Left {
		return solveTriLeft(h, uplo, t, diag, b)
	}
	return solveTriRight(b, h, uplo, t, diag)
}
