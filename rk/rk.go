// Copyright ©2025 The Hmat Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package rk implements low-rank blocks stored as a factor pair
// (A m×k, B n×k) representing the m×n matrix A·Bᴴ. Rank zero is the
// zero block. After Truncate the columns of A are orthonormal and the
// singular values absorbed into B are non-increasing.
package rk

import (
	"math"

	"gonum.org/v1/gonum/blas"

	"github.com/openhmat/hmat/dense"
	"github.com/openhmat/hmat/kernel"
	"github.com/openhmat/hmat/scalar"
)

// Matrix is a low-rank factor pair. A and B always have the same
// number of columns (the rank). The represented block is A·Bᴴ, with ᴴ
// reducing to plain transposition for real scalars.
type Matrix[T scalar.Scalar] struct {
	A, B *dense.Matrix[T]
}

// Zero returns the rank-0 (zero) block of shape m×n.
func Zero[T scalar.Scalar](m, n int) *Matrix[T] {
	return &Matrix[T]{A: dense.New[T](m, 0), B: dense.New[T](n, 0)}
}

// New wraps the factor pair (a, b). The column counts must agree.
func New[T scalar.Scalar](a, b *dense.Matrix[T]) *Matrix[T] {
	if a.Cols() != b.Cols() {
		panic(dense.ErrShape)
	}
	return &Matrix[T]{A: a, B: b}
}

// Dims returns the shape of the represented block.
func (r *Matrix[T]) Dims() (m, n int) { return r.A.Rows(), r.B.Rows() }

// Rank returns the inner dimension k.
func (r *Matrix[T]) Rank() int { return r.A.Cols() }

// Clone returns a deep copy.
func (r *Matrix[T]) Clone() *Matrix[T] {
	return &Matrix[T]{A: r.A.Clone(), B: r.B.Clone()}
}

// View returns the rows×cols sub-block starting at (i, j) as a factor
// pair sharing storage with the receiver: the row range restricts A,
// the column range restricts B.
func (r *Matrix[T]) View(i, j, rows, cols int) *Matrix[T] {
	k := r.Rank()
	return &Matrix[T]{A: r.A.View(i, 0, rows, k), B: r.B.View(j, 0, cols, k)}
}

// ConjTransposed returns the factor pair of the conjugate-transposed
// block, sharing storage: (A·Bᴴ)ᴴ = B·Aᴴ.
func (r *Matrix[T]) ConjTransposed() *Matrix[T] {
	return &Matrix[T]{A: r.B, B: r.A}
}

// Scale multiplies the block by alpha, absorbing it into B.
func (r *Matrix[T]) Scale(alpha T) {
	r.B.Scale(scalar.Conj(alpha))
}

// ExpandInto overwrites dst with A·Bᴴ.
func (r *Matrix[T]) ExpandInto(p kernel.Provider[T], dst *dense.Matrix[T]) {
	dst.Zero()
	r.ExpandAddInto(p, scalar.FromFloat[T](1), dst)
}

// ExpandAddInto adds alpha·A·Bᴴ into dst.
func (r *Matrix[T]) ExpandAddInto(p kernel.Provider[T], alpha T, dst *dense.Matrix[T]) {
	m, n := r.Dims()
	if dr, dc := dst.Dims(); dr != m || dc != n {
		panic(dense.ErrShape)
	}
	if r.Rank() == 0 {
		return
	}
	one := scalar.FromFloat[T](1)
	dense.Gemm(p, blas.NoTrans, blas.ConjTrans, alpha, r.A, r.B, one, dst)
}

// Dense returns a fresh dense expansion of the block.
func (r *Matrix[T]) Dense(p kernel.Provider[T]) *dense.Matrix[T] {
	m, n := r.Dims()
	d := dense.New[T](m, n)
	r.ExpandAddInto(p, scalar.FromFloat[T](1), d)
	return d
}

// MulVecAdd adds alpha·op(A·Bᴴ)·x into y.
func (r *Matrix[T]) MulVecAdd(p kernel.Provider[T], t blas.Transpose, alpha T, x, y []T) {
	k := r.Rank()
	if k == 0 {
		return
	}
	w := make([]T, k)
	one := scalar.FromFloat[T](1)
	if t == blas.NoTrans {
		dense.Gemv(p, blas.ConjTrans, one, r.B, x, 0, w)
		dense.Gemv(p, blas.NoTrans, alpha, r.A, w, one, y)
		return
	}
	dense.Gemv(p, blas.ConjTrans, one, r.A, x, 0, w)
	dense.Gemv(p, blas.NoTrans, alpha, r.B, w, one, y)
}

// Norm returns the Frobenius norm of the block, computed from the k×k
// Gram matrices of the factors.
func (r *Matrix[T]) Norm(p kernel.Provider[T]) float64 {
	k := r.Rank()
	if k == 0 {
		return 0
	}
	one := scalar.FromFloat[T](1)
	ga := dense.New[T](k, k)
	gb := dense.New[T](k, k)
	dense.Gemm(p, blas.ConjTrans, blas.NoTrans, one, r.A, r.A, 0, ga)
	dense.Gemm(p, blas.ConjTrans, blas.NoTrans, one, r.B, r.B, 0, gb)
	var s complex128
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			s += toC(ga.At(i, j)) * toC(gb.At(j, i))
		}
	}
	return math.Sqrt(math.Abs(real(s)))
}

func toC[T scalar.Scalar](v T) complex128 {
	switch x := any(v).(type) {
	case float32:
		return complex(float64(x), 0)
	case float64:
		return complex(x, 0)
	case complex64:
		return complex128(x)
	case complex128:
		return x
	}
	panic("rk: unreachable")
}

// Append concatenates o's factor columns onto the receiver, growing
// the rank to the sum; no recompression is performed.
func (r *Matrix[T]) Append(o *Matrix[T]) {
	m, n := r.Dims()
	om, on := o.Dims()
	if m != om || n != on {
		panic(dense.ErrShape)
	}
	r.A = concatCols(r.A, o.A)
	r.B = concatCols(r.B, o.B)
}

func concatCols[T scalar.Scalar](a, b *dense.Matrix[T]) *dense.Matrix[T] {
	m := a.Rows()
	out := dense.New[T](m, a.Cols()+b.Cols())
	out.View(0, 0, m, a.Cols()).Copy(a)
	out.View(0, a.Cols(), m, b.Cols()).Copy(b)
	return out
}

// AddScaled adds alpha·o to the receiver by factor concatenation. Call
// Truncate afterwards to restore orthogonality and compress the rank.
func (r *Matrix[T]) AddScaled(alpha T, o *Matrix[T]) {
	s := o
	if alpha != scalar.FromFloat[T](1) {
		s = o.Clone()
		s.Scale(alpha)
	}
	r.Append(s)
}
