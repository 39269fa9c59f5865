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

func (h *Matrix[T]) requireSquare() {
	if h.rows != h.cols {
		panic(ErrStructure)
	}
}

// Factorize factorizes the matrix in place according to the
// Settings.Factorization preference.
func (h *Matrix[T]) Factorize() error {
	if h == nil {
		return ErrEmpty
	}
	switch h.opts.Settings.Factorization {
	case FactorizationLDLT:
		return h.FactorizeLDLT()
	case FactorizationLLT:
		return h.FactorizeLLT()
	}
	return h.FactorizeLU()
}

// FactorizedCopy returns a factorized deep copy, leaving the receiver
// untouched.
func (h *Matrix[T]) FactorizedCopy() (*Matrix[T], error) {
	if h == nil {
		return nil, ErrEmpty
	}
	c := h.Clone()
	if err := c.Factorize(); err != nil {
		return nil, err
	}
	return c, nil
}

// FactorizeLU overwrites the matrix with its block LU factorization:
// the unit lower factor below the diagonal, the upper factor on and
// above it, and row pivots local to each dense diagonal leaf.
func (h *Matrix[T]) FactorizeLU() error {
	if h == nil {
		return ErrEmpty
	}
	h.requireSquare()
	if err := h.luRecurse(""); err != nil {
		return err
	}
	h.fact = FactorizationLU
	if h.opts.Settings.CheckNaN {
		return h.checkNaN("")
	}
	return nil
}

func (h *Matrix[T]) luRecurse(path string) error {
	switch h.kind {
	case DenseLeaf:
		h.assertAssembled()
		n := h.rows.Size()
		h.piv = make([]int, n)
		err := dense.LUFactor(h.opts.Kernel, h.dense, h.piv)
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
	c00, c01 := h.child[0][0], h.child[0][1]
	c10, c11 := h.child[1][0], h.child[1][1]
	if c00 == nil || c11 == nil {
		panic(ErrStructure)
	}
	if err := c00.luRecurse(childPath(path, 0, 0)); err != nil {
		return err
	}
	// The row and column panel solves are independent.
	var tasks []func() error
	if c01 != nil {
		tasks = append(tasks, func() error {
			return solveTriLeft(c00, blas.Lower, blas.NoTrans, blas.Unit, c01)
		})
	}
	if c10 != nil {
		tasks = append(tasks, func() error {
			return solveTriRight(c10, c00, blas.Upper, blas.NoTrans, blas.NonUnit)
		})
	}
	if err := h.opts.executor().Run(tasks...); err != nil {
		return err
	}
	if c01 != nil && c10 != nil {
		minusOne := scalar.FromFloat[T](-1)
		if err := c11.gemm(blas.NoTrans, blas.NoTrans, minusOne, c10, c01); err != nil {
			return err
		}
	}
	return c11.luRecurse(childPath(path, 1, 1))
}

// Solve solves h*X = B in place of B, in the original ordering, using
// the factorization the matrix holds.
func (h *Matrix[T]) Solve(b *dense.Matrix[T]) error {
	if h == nil {
		return nil
	}
	if h.fact == FactorizationNone {
		panic(ErrNotFactorized)
	}
	if b.Rows() != h.rows.Size() {
		panic(ErrShape)
	}
	gatherRows(b, h.rowTree.PermToOrig())
	err := h.solvePermuted(b)
	scatterRows(b, h.rowTree.PermToOrig())
	return err
}

// SolveVec solves h*x = b in place of the vector b, in the original
// ordering.
func (h *Matrix[T]) SolveVec(b []T) error {
	if h == nil {
		return nil
	}
	n := len(b)
	return h.Solve(dense.NewFromData(n, 1, max(n, 1), b))
}

func (h *Matrix[T]) solvePermuted(b *dense.Matrix[T]) error {
	switch h.fact {
	case FactorizationLLT:
		if err := solveTriLeftDense(h, blas.Lower, blas.NoTrans, blas.NonUnit, b); err != nil {
			return err
		}
		return solveTriLeftDense(h, blas.Lower, blas.ConjTrans, blas.NonUnit, b)
	case FactorizationLDLT:
		if err := solveTriLeftDense(h, blas.Lower, blas.NoTrans, blas.Unit, b); err != nil {
			return err
		}
		h.diagDivide(b)
		return solveTriLeftDense(h, blas.Lower, blas.ConjTrans, blas.Unit, b)
	}
	if err := solveTriLeftDense(h, blas.Lower, blas.NoTrans, blas.Unit, b); err != nil {
		return err
	}
	return solveTriLeftDense(h, blas.Upper, blas.NoTrans, blas.NonUnit, b)
}

// gatherRows permutes b's rows into the permuted ordering:
// row pos takes the old row perm[pos].
func gatherRows[T scalar.Scalar](b *dense.Matrix[T], perm []int) {
	tmp := make([]T, b.Rows())
	for j := 0; j < b.Cols(); j++ {
		col := b.ColView(j)
		for pos, orig := range perm {
			tmp[pos] = col[orig]
		}
		copy(col, tmp)
	}
}

// scatterRows reverts gatherRows.
func scatterRows[T scalar.Scalar](b *dense.Matrix[T], perm []int) {
	tmp := make([]T, b.Rows())
	for j := 0; j < b.Cols(); j++ {
		col := b.ColView(j)
		for pos, orig := range perm {
			tmp[orig] = col[pos]
		}
		copy(col, tmp)
	}
}
