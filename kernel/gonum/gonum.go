// Copyright ©2025 The Hmat Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package gonum provides a kernel.Provider for float64 elements backed
// by gonum.org/v1/gonum's blas64 and lapack64 packages.
//
// gonum kernels are row-major while the provider contract is
// column-major. A column-major m×n matrix with leading dimension lda
// is, viewed row-major with the same stride, exactly its transpose.
// Level-3 BLAS calls, Potrf and Gesvd exploit this duality directly
// (swap operands and sides, flip triangles); the other LAPACK routines
// go through explicit transpose copies, which are leaf-sized in this
// engine.
package gonum

import (
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/lapack"
	"gonum.org/v1/gonum/lapack/lapack64"

	"github.com/openhmat/hmat/kernel"
)

// Float64 implements kernel.Provider[float64] on gonum blas64/lapack64.
type Float64 struct{}

var _ kernel.Provider[float64] = Float64{}

// tview returns the row-major general matrix aliasing the column-major
// r×c matrix a as its transpose.
func tview(r, c int, a []float64, lda int) blas64.General {
	return blas64.General{Rows: c, Cols: r, Stride: lda, Data: a}
}

// toRowMajor copies the column-major m×n matrix a into a fresh
// row-major general with stride n.
func toRowMajor(m, n int, a []float64, lda int) blas64.General {
	g := blas64.General{Rows: m, Cols: n, Stride: max(1, n), Data: make([]float64, m*n)}
	for j := 0; j < n; j++ {
		col := a[j*lda : j*lda+m]
		for i, v := range col {
			g.Data[i*g.Stride+j] = v
		}
	}
	return g
}

// fromRowMajor copies g back into the column-major m×n matrix a.
func fromRowMajor(m, n int, a []float64, lda int, g blas64.General) {
	for j := 0; j < n; j++ {
		col := a[j*lda : j*lda+m]
		for i := range col {
			col[i] = g.Data[i*g.Stride+j]
		}
	}
}

// real trans: gonum float64 kernels treat ConjTrans as invalid input.
func noConj(t blas.Transpose) blas.Transpose {
	if t == blas.ConjTrans {
		return blas.Trans
	}
	return t
}

func flipUplo(u blas.Uplo) blas.Uplo {
	if u == blas.Upper {
		return blas.Lower
	}
	return blas.Upper
}

func flipSide(s blas.Side) blas.Side {
	if s == blas.Left {
		return blas.Right
	}
	return blas.Left
}

func (Float64) Gemm(tA, tB blas.Transpose, m, n, k int, alpha float64, a []float64, lda int, b []float64, ldb int, beta float64, c []float64, ldc int) {
	if m == 0 || n == 0 {
		return
	}
	cv := tview(m, n, c, ldc)
	if k == 0 {
		if beta == 0 {
			for i := 0; i < cv.Rows; i++ {
				row := cv.Data[i*cv.Stride : i*cv.Stride+cv.Cols]
				for j := range row {
					row[j] = 0
				}
			}
		} else if beta != 1 {
			for i := 0; i < cv.Rows; i++ {
				row := cv.Data[i*cv.Stride : i*cv.Stride+cv.Cols]
				for j := range row {
					row[j] *= beta
				}
			}
		}
		return
	}
	ar, ac := m, k
	if noConj(tA) == blas.Trans {
		ar, ac = k, m
	}
	br, bc := k, n
	if noConj(tB) == blas.Trans {
		br, bc = n, k
	}
	// C = α op(A) op(B) + βC  ⇔  Cᵀ = α op(B)ᵀ op(A)ᵀ + βCᵀ.
	blas64.Gemm(noConj(tB), noConj(tA), alpha, tview(br, bc, b, ldb), tview(ar, ac, a, lda), beta, cv)
}

func (Float64) Gemv(t blas.Transpose, m, n int, alpha float64, a []float64, lda int, x []float64, beta float64, y []float64) {
	if m == 0 || n == 0 {
		return
	}
	ft := blas.Trans
	if noConj(t) == blas.Trans {
		ft = blas.NoTrans
	}
	xv := blas64.Vector{N: len(x), Inc: 1, Data: x}
	yv := blas64.Vector{N: len(y), Inc: 1, Data: y}
	blas64.Gemv(ft, alpha, tview(m, n, a, lda), xv, beta, yv)
}

func (Float64) Ger(m, n int, alpha float64, x, y []float64, a []float64, lda int) {
	if m == 0 || n == 0 {
		return
	}
	// A += α x yᵀ  ⇔  Aᵀ += α y xᵀ.
	xv := blas64.Vector{N: m, Inc: 1, Data: x}
	yv := blas64.Vector{N: n, Inc: 1, Data: y}
	blas64.Ger(alpha, yv, xv, tview(m, n, a, lda))
}

func (Float64) Trsm(side blas.Side, uplo blas.Uplo, tA blas.Transpose, diag blas.Diag, m, n int, alpha float64, a []float64, lda int, b []float64, ldb int) {
	if m == 0 || n == 0 {
		return
	}
	order := m
	if side == blas.Right {
		order = n
	}
	tri := blas64.Triangular{N: order, Stride: lda, Data: a, Uplo: flipUplo(uplo), Diag: diag}
	blas64.Trsm(flipSide(side), noConj(tA), alpha, tri, tview(m, n, b, ldb))
}

func (Float64) Getrf(m, n int, a []float64, lda int, ipiv []int) error {
	if min(m, n) == 0 {
		return nil
	}
	rm := toRowMajor(m, n, a, lda)
	ok := lapack64.Getrf(rm, ipiv)
	fromRowMajor(m, n, a, lda, rm)
	if !ok {
		return kernel.ErrSingular
	}
	return nil
}

func (Float64) Getrs(t blas.Transpose, n, nrhs int, a []float64, lda int, ipiv []int, b []float64, ldb int) error {
	if n == 0 || nrhs == 0 {
		return nil
	}
	rmA := toRowMajor(n, n, a, lda)
	rmB := toRowMajor(n, nrhs, b, ldb)
	lapack64.Getrs(noConj(t), rmA, rmB, ipiv)
	fromRowMajor(n, nrhs, b, ldb, rmB)
	return nil
}

func (Float64) Getri(n int, a []float64, lda int, ipiv []int) error {
	if n == 0 {
		return nil
	}
	rm := toRowMajor(n, n, a, lda)
	work := []float64{0}
	lapack64.Getri(rm, ipiv, work, -1)
	work = make([]float64, int(work[0]))
	ok := lapack64.Getri(rm, ipiv, work, len(work))
	fromRowMajor(n, n, a, lda, rm)
	if !ok {
		return kernel.ErrSingular
	}
	return nil
}

func (Float64) Potrf(uplo blas.Uplo, n int, a []float64, lda int) error {
	if n == 0 {
		return nil
	}
	// The row-major view of the tile is its transpose; a symmetric
	// matrix is its own transpose, so only the triangle flag flips.
	sym := blas64.Symmetric{N: n, Stride: lda, Data: a, Uplo: flipUplo(uplo)}
	if _, ok := lapack64.Potrf(sym); !ok {
		return kernel.ErrNotPositiveDefinite
	}
	return nil
}

func (Float64) Sytrf(uplo blas.Uplo, n int, a []float64, lda int) error {
	// gonum's lapack carries no Dsytrf; this is the unpivoted LDLᵀ
	// sweep, adequate for the symmetric quasi-definite blocks met
	// during hierarchical factorization. D lands on the diagonal, the
	// unit triangular factor in the strict uplo triangle.
	w := make([]float64, n)
	if uplo == blas.Lower {
		for j := 0; j < n; j++ {
			d := a[j+j*lda]
			for k := 0; k < j; k++ {
				w[k] = a[j+k*lda] * a[k+k*lda]
				d -= a[j+k*lda] * w[k]
			}
			if d == 0 {
				return kernel.ErrSingular
			}
			a[j+j*lda] = d
			for i := j + 1; i < n; i++ {
				s := a[i+j*lda]
				for k := 0; k < j; k++ {
					s -= a[i+k*lda] * w[k]
				}
				a[i+j*lda] = s / d
			}
		}
		return nil
	}
	for j := 0; j < n; j++ {
		d := a[j+j*lda]
		for k := 0; k < j; k++ {
			w[k] = a[k+j*lda] * a[k+k*lda]
			d -= a[k+j*lda] * w[k]
		}
		if d == 0 {
			return kernel.ErrSingular
		}
		a[j+j*lda] = d
		for i := j + 1; i < n; i++ {
			s := a[j+i*lda]
			for k := 0; k < j; k++ {
				s -= a[k+i*lda] * w[k]
			}
			a[j+i*lda] = s / d
		}
	}
	return nil
}

func (Float64) Geqrf(m, n int, a []float64, lda int, tau []float64) error {
	if min(m, n) == 0 {
		return nil
	}
	rm := toRowMajor(m, n, a, lda)
	work := []float64{0}
	lapack64.Geqrf(rm, tau, work, -1)
	work = make([]float64, int(work[0]))
	lapack64.Geqrf(rm, tau, work, len(work))
	fromRowMajor(m, n, a, lda, rm)
	return nil
}

func (Float64) Ormqr(side blas.Side, t blas.Transpose, m, n, k int, a []float64, lda int, tau []float64, c []float64, ldc int) error {
	if m == 0 || n == 0 || k == 0 {
		return nil
	}
	ra := m
	if side == blas.Right {
		ra = n
	}
	rmA := toRowMajor(ra, k, a, lda)
	rmC := toRowMajor(m, n, c, ldc)
	work := []float64{0}
	lapack64.Ormqr(side, noConj(t), rmA, tau, rmC, work, -1)
	work = make([]float64, int(work[0]))
	lapack64.Ormqr(side, noConj(t), rmA, tau, rmC, work, len(work))
	fromRowMajor(m, n, c, ldc, rmC)
	return nil
}

func (Float64) Gesvd(m, n int, a []float64, lda int, s []float64, u []float64, ldu int, vt []float64, ldvt int) error {
	k := min(m, n)
	if k == 0 {
		return nil
	}
	// Aᵀ = VΣUᵀ: running LAPACK on the transposed view writes V into
	// vt's transposed view and Uᵀ into u's, so u and vt come out
	// column-major with no extra copies.
	av := tview(m, n, a, lda)
	uArg := blas64.General{Rows: n, Cols: k, Stride: ldvt, Data: vt}
	vtArg := blas64.General{Rows: k, Cols: m, Stride: ldu, Data: u}
	work := []float64{0}
	lapack64.Gesvd(lapack.SVDStore, lapack.SVDStore, av, uArg, vtArg, s, work, -1)
	work = make([]float64, int(work[0]))
	ok := lapack64.Gesvd(lapack.SVDStore, lapack.SVDStore, av, uArg, vtArg, s, work, len(work))
	if !ok {
		// gonum reports convergence failure as a boolean; LAPACK's
		// info > 0 case.
		return kernel.Error{Routine: "Dgesvd", Info: 1}
	}
	return nil
}
