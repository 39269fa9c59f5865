// Copyright ©2025 The Hmat Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package kernel declares the dense-kernel provider consumed by the
// hierarchical-matrix engine. All routines use column-major storage:
// element (i, j) of an m×n matrix lives at data[i+j*lda], lda ≥ m.
//
// The engine never assumes a particular BLAS/LAPACK implementation; any
// value satisfying Provider can back it. The kernel/gonum subpackage
// implements Provider[float64] on top of gonum.org/v1/gonum.
package kernel

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/blas"

	"github.com/openhmat/hmat/scalar"
)

// ErrSingular is returned by factorization routines when an exactly
// zero pivot is met. Getrf still writes the complete factorization so
// the caller can inspect it; Sytrf stops at the zero pivot.
var ErrSingular = errors.New("kernel: matrix is singular")

// ErrNotPositiveDefinite is returned by Potrf when the input is not
// positive definite.
var ErrNotPositiveDefinite = errors.New("kernel: matrix is not positive definite")

// Error reports a dense kernel routine that returned a nonzero info
// code. The code is surfaced verbatim.
type Error struct {
	Routine string
	Info    int
}

func (e Error) Error() string {
	return fmt.Sprintf("kernel: %s failed with info %d", e.Routine, e.Info)
}

// Provider supplies the dense kernels the engine calls at leaf blocks.
// Transpose, side, triangle and diagonal flags reuse the gonum blas
// vocabulary. For real element types ConjTrans is equivalent to Trans.
//
// Factorization routines overwrite their input in place and report
// breakdown through the returned error; the remaining routines have
// LAPACK's usual contracts translated to column-major storage.
type Provider[T scalar.Scalar] interface {
	// Gemm computes C = alpha*op(A)*op(B) + beta*C where C is m×n and
	// op(A) is m×k.
	Gemm(tA, tB blas.Transpose, m, n, k int, alpha T, a []T, lda int, b []T, ldb int, beta T, c []T, ldc int)

	// Gemv computes y = alpha*op(A)*x + beta*y with A m×n.
	Gemv(t blas.Transpose, m, n int, alpha T, a []T, lda int, x []T, beta T, y []T)

	// Ger performs the rank-1 update A += alpha*x*yᵀ with A m×n.
	Ger(m, n int, alpha T, x, y []T, a []T, lda int)

	// Trsm solves op(A)*X = alpha*B (Left) or X*op(A) = alpha*B
	// (Right) for X, overwriting the m×n matrix B. A is triangular of
	// order m (Left) or n (Right).
	Trsm(side blas.Side, uplo blas.Uplo, tA blas.Transpose, diag blas.Diag, m, n int, alpha T, a []T, lda int, b []T, ldb int)

	// Getrf computes the pivoted factorization P*A = L*U of the m×n
	// matrix A in place. ipiv must have length min(m, n).
	Getrf(m, n int, a []T, lda int, ipiv []int) error

	// Getrs solves op(A)*X = B using a factorization from Getrf,
	// overwriting the n×nrhs matrix B.
	Getrs(t blas.Transpose, n, nrhs int, a []T, lda int, ipiv []int, b []T, ldb int) error

	// Getri replaces the Getrf-factored n×n matrix A by its inverse.
	Getri(n int, a []T, lda int, ipiv []int) error

	// Potrf computes the Cholesky factorization of the symmetric
	// (Hermitian) positive definite matrix stored in the uplo triangle
	// of A.
	Potrf(uplo blas.Uplo, n int, a []T, lda int) error

	// Sytrf computes an LDLᵀ factorization of the symmetric matrix
	// stored in the uplo triangle of A: D on the diagonal, the unit
	// triangular factor in the strict triangle.
	Sytrf(uplo blas.Uplo, n int, a []T, lda int) error

	// Geqrf computes the QR factorization of the m×n matrix A in
	// place, storing R in the upper triangle and the Householder
	// reflectors below it. tau must have length min(m, n).
	Geqrf(m, n int, a []T, lda int, tau []T) error

	// Ormqr multiplies the m×n matrix C by the orthogonal factor of a
	// Geqrf factorization: C = op(Q)*C (Left) or C*op(Q) (Right).
	// k is the number of reflectors held in a.
	Ormqr(side blas.Side, t blas.Transpose, m, n, k int, a []T, lda int, tau []T, c []T, ldc int) error

	// Gesvd computes the thin singular value decomposition
	// A = U*diag(s)*Vᵀ of the m×n matrix A. On return u is m×min(m,n),
	// vt is min(m,n)×n and s holds the singular values in decreasing
	// order. A is destroyed.
	Gesvd(m, n int, a []T, lda int, s []float64, u []T, ldu int, vt []T, ldvt int) error
}
