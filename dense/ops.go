// Copyright ©2025 The Hmat Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dense

import (
	"gonum.org/v1/gonum/blas"

	"github.com/openhmat/hmat/kernel"
	"github.com/openhmat/hmat/scalar"
)

// opDims returns the dimensions of op(a).
func opDims[T scalar.Scalar](t blas.Transpose, a *Matrix[T]) (r, c int) {
	if t == blas.NoTrans {
		return a.rows, a.cols
	}
	return a.cols, a.rows
}

// Gemm computes c = alpha*op(a)*op(b) + beta*c.
func Gemm[T scalar.Scalar](p kernel.Provider[T], tA, tB blas.Transpose, alpha T, a, b *Matrix[T], beta T, c *Matrix[T]) {
	m, k := opDims(tA, a)
	kb, n := opDims(tB, b)
	if k != kb || m != c.rows || n != c.cols {
		panic(ErrShape)
	}
	p.Gemm(tA, tB, m, n, k, alpha, a.data, a.ld, b.data, b.ld, beta, c.data, c.ld)
}

// Gemv computes y = alpha*op(a)*x + beta*y.
func Gemv[T scalar.Scalar](p kernel.Provider[T], t blas.Transpose, alpha T, a *Matrix[T], x []T, beta T, y []T) {
	r, c := opDims(t, a)
	if len(x) != c || len(y) != r {
		panic(ErrShape)
	}
	p.Gemv(t, a.rows, a.cols, alpha, a.data, a.ld, x, beta, y)
}

// Ger performs the rank-1 update a += alpha*x*yᵀ.
func Ger[T scalar.Scalar](p kernel.Provider[T], alpha T, x, y []T, a *Matrix[T]) {
	if len(x) != a.rows || len(y) != a.cols {
		panic(ErrShape)
	}
	p.Ger(a.rows, a.cols, alpha, x, y, a.data, a.ld)
}

// Trsm solves op(tri(a))*X = alpha*b (Left) or X*op(tri(a)) = alpha*b
// (Right) in place of b, where tri(a) is the uplo triangle of a.
func Trsm[T scalar.Scalar](p kernel.Provider[T], side blas.Side, uplo blas.Uplo, tA blas.Transpose, diag blas.Diag, alpha T, a, b *Matrix[T]) {
	if a.rows != a.cols {
		panic(ErrSquare)
	}
	order := b.rows
	if side == blas.Right {
		order = b.cols
	}
	if a.rows != order {
		panic(ErrShape)
	}
	p.Trsm(side, uplo, tA, diag, b.rows, b.cols, alpha, a.data, a.ld, b.data, b.ld)
}

// LUFactor overwrites a with its pivoted LU factorization P*a = L*U.
// ipiv must have length min(rows, cols). A kernel.ErrSingular return
// means an exactly zero pivot; the factorization output is still
// complete.
func LUFactor[T scalar.Scalar](p kernel.Provider[T], a *Matrix[T], ipiv []int) error {
	if len(ipiv) != min(a.rows, a.cols) {
		panic(ErrShape)
	}
	return p.Getrf(a.rows, a.cols, a.data, a.ld, ipiv)
}

// LUSolve solves op(A)*X = b in place of b, with lu and ipiv produced
// by LUFactor on the square matrix A.
func LUSolve[T scalar.Scalar](p kernel.Provider[T], t blas.Transpose, lu *Matrix[T], ipiv []int, b *Matrix[T]) error {
	if lu.rows != lu.cols {
		panic(ErrSquare)
	}
	if b.rows != lu.rows {
		panic(ErrShape)
	}
	return p.Getrs(t, lu.rows, b.cols, lu.data, lu.ld, ipiv, b.data, b.ld)
}

// ApplyRowPivots applies (forward) or reverts (backward) the LAPACK
// row interchanges ipiv to b: row i is swapped with row ipiv[i].
func ApplyRowPivots[T scalar.Scalar](b *Matrix[T], ipiv []int, forward bool) {
	swap := func(r1, r2 int) {
		if r1 == r2 {
			return
		}
		for j := 0; j < b.cols; j++ {
			col := b.ColView(j)
			col[r1], col[r2] = col[r2], col[r1]
		}
	}
	if forward {
		for i := 0; i < len(ipiv); i++ {
			swap(i, ipiv[i])
		}
		return
	}
	for i := len(ipiv) - 1; i >= 0; i-- {
		swap(i, ipiv[i])
	}
}

// Invert replaces the square matrix a by its inverse.
func Invert[T scalar.Scalar](p kernel.Provider[T], a *Matrix[T]) error {
	if a.rows != a.cols {
		panic(ErrSquare)
	}
	ipiv := make([]int, a.rows)
	if err := p.Getrf(a.rows, a.cols, a.data, a.ld, ipiv); err != nil {
		return err
	}
	return p.Getri(a.rows, a.data, a.ld, ipiv)
}

// Cholesky overwrites the uplo triangle of the square matrix a with
// its Cholesky factor.
func Cholesky[T scalar.Scalar](p kernel.Provider[T], uplo blas.Uplo, a *Matrix[T]) error {
	if a.rows != a.cols {
		panic(ErrSquare)
	}
	return p.Potrf(uplo, a.rows, a.data, a.ld)
}

// LDLT overwrites the uplo triangle of the square matrix a with its
// LDLᵀ factorization: D on the diagonal, unit triangular factor in the
// strict triangle.
func LDLT[T scalar.Scalar](p kernel.Provider[T], uplo blas.Uplo, a *Matrix[T]) error {
	if a.rows != a.cols {
		panic(ErrSquare)
	}
	return p.Sytrf(uplo, a.rows, a.data, a.ld)
}

// SVD computes the thin singular value decomposition a = U*diag(s)*Vᵀ,
// destroying a. U is rows×k and Vᵀ is k×cols with k = min(rows, cols).
func SVD[T scalar.Scalar](p kernel.Provider[T], a *Matrix[T]) (u *Matrix[T], s []float64, vt *Matrix[T], err error) {
	k := min(a.rows, a.cols)
	u = New[T](a.rows, k)
	vt = New[T](k, a.cols)
	s = make([]float64, k)
	err = p.Gesvd(a.rows, a.cols, a.data, a.ld, s, u.data, u.ld, vt.data, vt.ld)
	if err != nil {
		return nil, nil, nil, err
	}
	return u, s, vt, nil
}

// QR holds an implicit QR factorization computed by QRFactor.
type QR[T scalar.Scalar] struct {
	qr  *Matrix[T]
	tau []T
}

// QRFactor overwrites a with its QR factorization (R in the upper
// triangle, Householder reflectors below) and returns the handle used
// to apply Q.
func QRFactor[T scalar.Scalar](p kernel.Provider[T], a *Matrix[T]) (*QR[T], error) {
	tau := make([]T, min(a.rows, a.cols))
	if err := p.Geqrf(a.rows, a.cols, a.data, a.ld, tau); err != nil {
		return nil, err
	}
	return &QR[T]{qr: a, tau: tau}, nil
}

// K returns the number of Householder reflectors.
func (q *QR[T]) K() int { return len(q.tau) }

// ApplyQ overwrites c with op(Q)*c (Left) or c*op(Q) (Right).
func (q *QR[T]) ApplyQ(p kernel.Provider[T], side blas.Side, t blas.Transpose, c *Matrix[T]) error {
	if side == blas.Left && c.rows != q.qr.rows || side == blas.Right && c.cols != q.qr.rows {
		panic(ErrShape)
	}
	return p.Ormqr(side, t, c.rows, c.cols, len(q.tau), q.qr.data, q.qr.ld, q.tau, c.data, c.ld)
}

// RTo copies the triangular factor R (k×cols, k reflectors) into r,
// zeroing the strictly lower part.
func (q *QR[T]) RTo(r *Matrix[T]) {
	k := len(q.tau)
	if r.rows != k || r.cols != q.qr.cols {
		panic(ErrShape)
	}
	for j := 0; j < r.cols; j++ {
		col := r.ColView(j)
		for i := range col {
			if i <= j {
				col[i] = q.qr.At(i, j)
			} else {
				col[i] = 0
			}
		}
	}
}
