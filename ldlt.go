// Copyright ©2025 The Hmat Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hmat

import (
	"errors"

	"gonum.org/v1/gonum/blas"

	"github.com/openhmat/hmat/dense"
	"github.com/openhmat/hmat/kernel"
	"github.com/openhmat/hmat/scalar"
)

// FactorizeLDLT overwrites the lower triangle of the matrix with its
// block LDLᵀ factorization: D on the leaf diagonals, the unit lower
// factor below. Blocks above the diagonal are not referenced and keep
// their assembled content.
func (h *Matrix[T]) FactorizeLDLT() error {
	if h == nil {
		return ErrEmpty
	}
	h.requireSquare()
	if err := h.ldltRecurse(""); err != nil {
		return err
	}
	h.fact = FactorizationLDLT
	if h.opts.Settings.CheckNaN {
		return h.checkNaN("")
	}
	return nil
}

func (h *Matrix[T]) ldltRecurse(path string) error {
	switch h.kind {
	case DenseLeaf:
		h.assertAssembled()
		err := dense.LDLT(h.opts.Kernel, blas.Lower, h.dense)
		if errors.Is(err, kernel.ErrSingular) {
			return &SingularError{Path: path}
		}
		if err != nil {
			return &NodeError{Path: path, Err: err}
		}
		return nil
	case RkLeaf:
		panic(ErrStructure)
	}
	c00, c10, c11 := h.child[0][0], h.child[1][0], h.child[1][1]
	if c00 == nil || c11 == nil {
		panic(ErrStructure)
	}
	if err := c00.ldltRecurse(childPath(path, 0, 0)); err != nil {
		return err
	}
	if c10 != nil {
		// L10 = A10·L00⁻ᴴ·D00⁻¹.
		if err := solveTriRight(c10, c00, blas.Lower, blas.ConjTrans, blas.Unit); err != nil {
			return err
		}
		d := make([]T, c00.rows.Size())
		c00.diagonalInto(d)
		c10.scaleColsByDiag(d, true)
		// Trailing symmetric update A11 -= (L10·D00)·L10ᴴ.
		w := c10.Clone()
		w.scaleColsByDiag(d, false)
		minusOne := scalar.FromFloat[T](-1)
		if err := c11.gemm(blas.NoTrans, blas.ConjTrans, minusOne, w, c10); err != nil {
			return err
		}
	}
	return c11.ldltRecurse(childPath(path, 1, 1))
}

// diagonalInto copies the diagonal of the (square) subtree into dst.
func (h *Matrix[T]) diagonalInto(dst []T) {
	switch h.kind {
	case DenseLeaf:
		h.assertAssembled()
		for i := range dst {
			dst[i] = h.dense.At(i, i)
		}
		return
	case RkLeaf:
		panic(ErrStructure)
	}
	c00, c11 := h.child[0][0], h.child[1][1]
	if c00 == nil || c11 == nil {
		panic(ErrStructure)
	}
	n0 := c00.rows.Size()
	c00.diagonalInto(dst[:n0])
	c11.diagonalInto(dst[n0:])
}

// scaleColsByDiag multiplies (invert=false) or divides (invert=true)
// block column j by d[j].
func (h *Matrix[T]) scaleColsByDiag(d []T, invert bool) {
	switch h.kind {
	case Internal:
		for i := 0; i < 2; i++ {
			for j := 0; j < 2; j++ {
				c := h.child[i][j]
				if c == nil {
					continue
				}
				off := c.cols.Begin() - h.cols.Begin()
				c.scaleColsByDiag(d[off:off+c.cols.Size()], invert)
			}
		}
		return
	case DenseLeaf:
		h.assertAssembled()
		one := scalar.FromFloat[T](1)
		for j := 0; j < h.dense.Cols(); j++ {
			f := d[j]
			if invert {
				f = one / f
			}
			col := h.dense.ColView(j)
			for i := range col {
				col[i] *= f
			}
		}
		return
	}
	h.assertAssembled()
	// Column scaling of A·Bᴴ lands on the rows of B, conjugated.
	one := scalar.FromFloat[T](1)
	b := h.rk.B
	for j := 0; j < b.Rows(); j++ {
		f := scalar.Conj(d[j])
		if invert {
			f = one / f
		}
		for l := 0; l < b.Cols(); l++ {
			b.Set(j, l, b.At(j, l)*f)
		}
	}
}

// diagDivide divides b's rows by the factored diagonal D.
func (h *Matrix[T]) diagDivide(b *dense.Matrix[T]) {
	d := make([]T, h.rows.Size())
	h.diagonalInto(d)
	for j := 0; j < b.Cols(); j++ {
		col := b.ColView(j)
		for i := range col {
			col[i] /= d[i]
		}
	}
}
