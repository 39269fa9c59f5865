// Copyright ©2025 The Hmat Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rk

import (
	"gonum.org/v1/gonum/blas"

	"github.com/openhmat/hmat/dense"
	"github.com/openhmat/hmat/kernel"
	"github.com/openhmat/hmat/scalar"
)

// TruncatedRank returns the number of singular values kept for the
// target relative accuracy eps: the leading values with
// s[i] > eps*s[0]. Values at or below eps in absolute terms are always
// dropped.
func TruncatedRank(s []float64, eps float64) int {
	if len(s) == 0 || s[0] == 0 {
		return 0
	}
	k := 0
	for _, v := range s {
		if v <= eps*s[0] || v <= eps {
			break
		}
		k++
	}
	return k
}

// Truncate recompresses the receiver to the target relative accuracy
// eps: thin QR of both factors, SVD of the small core Ra·Rbᴴ, rank
// cut, and reassembly as A ← Qa·U (orthonormal), B ← Qb·V·Σ.
func (r *Matrix[T]) Truncate(p kernel.Provider[T], eps float64) error {
	k := r.Rank()
	if k == 0 {
		return nil
	}
	m, n := r.Dims()
	one := scalar.FromFloat[T](1)

	qam := r.A.Clone()
	qra, err := dense.QRFactor(p, qam)
	if err != nil {
		return err
	}
	qbm := r.B.Clone()
	qrb, err := dense.QRFactor(p, qbm)
	if err != nil {
		return err
	}
	ka, kb := min(m, k), min(n, k)
	ra := dense.New[T](ka, k)
	qra.RTo(ra)
	rb := dense.New[T](kb, k)
	qrb.RTo(rb)

	core := dense.New[T](ka, kb)
	dense.Gemm(p, blas.NoTrans, blas.ConjTrans, one, ra, rb, 0, core)
	u, s, vt, err := dense.SVD(p, core)
	if err != nil {
		return err
	}
	newK := TruncatedRank(s, eps)
	if newK == 0 {
		r.A, r.B = dense.New[T](m, 0), dense.New[T](n, 0)
		return nil
	}

	// A ← Qa·U_r: apply Q to U_r padded with zero rows.
	na := dense.New[T](m, newK)
	na.View(0, 0, ka, newK).Copy(u.View(0, 0, ka, newK))
	if err := qra.ApplyQ(p, blas.Left, blas.NoTrans, na); err != nil {
		return err
	}
	// B ← Qb·(V_r·Σ_r).
	nb := dense.New[T](n, newK)
	for j := 0; j < newK; j++ {
		sig := scalar.FromFloat[T](s[j])
		col := nb.ColView(j)
		for i := 0; i < kb; i++ {
			col[i] = scalar.Conj(vt.At(j, i)) * sig
		}
	}
	if err := qrb.ApplyQ(p, blas.Left, blas.NoTrans, nb); err != nil {
		return err
	}
	r.A, r.B = na, nb
	return nil
}

// FromDense compresses d into a low-rank block by truncated SVD at the
// target relative accuracy eps. d is not modified.
func FromDense[T scalar.Scalar](p kernel.Provider[T], d *dense.Matrix[T], eps float64) (*Matrix[T], error) {
	m, n := d.Dims()
	if min(m, n) == 0 {
		return Zero[T](m, n), nil
	}
	w := d.Clone()
	u, s, vt, err := dense.SVD(p, w)
	if err != nil {
		return nil, err
	}
	k := TruncatedRank(s, eps)
	a := dense.New[T](m, k)
	a.Copy(u.View(0, 0, m, k))
	b := dense.New[T](n, k)
	for j := 0; j < k; j++ {
		sig := scalar.FromFloat[T](s[j])
		col := b.ColView(j)
		for i := range col {
			col[i] = scalar.Conj(vt.At(j, i)) * sig
		}
	}
	return &Matrix[T]{A: a, B: b}, nil
}

// MulRkRk returns the low-rank product x·y = A₁·(B₁ᴴ·A₂)·B₂ᴴ; the
// small inner matrix is absorbed into the A factor. The result rank is
// rank(y) before any recompression, or zero when either rank is zero.
func MulRkRk[T scalar.Scalar](p kernel.Provider[T], x, y *Matrix[T]) *Matrix[T] {
	m, xn := x.Dims()
	yk, n := y.Dims()
	if xn != yk {
		panic(dense.ErrShape)
	}
	kx, ky := x.Rank(), y.Rank()
	if kx == 0 || ky == 0 {
		return Zero[T](m, n)
	}
	one := scalar.FromFloat[T](1)
	inner := dense.New[T](kx, ky)
	dense.Gemm(p, blas.ConjTrans, blas.NoTrans, one, x.B, y.A, 0, inner)
	a := dense.New[T](m, ky)
	dense.Gemm(p, blas.NoTrans, blas.NoTrans, one, x.A, inner, 0, a)
	return &Matrix[T]{A: a, B: y.B.Clone()}
}

// MulRkDense returns the low-rank product x·op(d): the A factor is
// kept and B becomes op(d)ᴴ·B.
func MulRkDense[T scalar.Scalar](p kernel.Provider[T], x *Matrix[T], tD blas.Transpose, d *dense.Matrix[T]) *Matrix[T] {
	m, xn := x.Dims()
	dr, dc := d.Dims()
	if tD != blas.NoTrans {
		dr, dc = dc, dr
	}
	if xn != dr {
		panic(dense.ErrShape)
	}
	k := x.Rank()
	if k == 0 {
		return Zero[T](m, dc)
	}
	one := scalar.FromFloat[T](1)
	b := dense.New[T](dc, k)
	// op(d)ᴴ·B: flip the transpose flag on d.
	td := blas.ConjTrans
	if tD != blas.NoTrans {
		td = blas.NoTrans
	}
	dense.Gemm(p, td, blas.NoTrans, one, d, x.B, 0, b)
	return &Matrix[T]{A: x.A.Clone(), B: b}
}

// MulDenseRk returns the low-rank product op(d)·y: the B factor is
// kept and A becomes op(d)·A.
func MulDenseRk[T scalar.Scalar](p kernel.Provider[T], tD blas.Transpose, d *dense.Matrix[T], y *Matrix[T]) *Matrix[T] {
	ym, n := y.Dims()
	dr, dc := d.Dims()
	if tD != blas.NoTrans {
		dr, dc = dc, dr
	}
	if dc != ym {
		panic(dense.ErrShape)
	}
	k := y.Rank()
	if k == 0 {
		return Zero[T](dr, n)
	}
	one := scalar.FromFloat[T](1)
	a := dense.New[T](dr, k)
	dense.Gemm(p, tD, blas.NoTrans, one, d, y.A, 0, a)
	return &Matrix[T]{A: a, B: y.B.Clone()}
}
