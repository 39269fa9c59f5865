// Copyright ©2025 The Hmat Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gonum

import (
	"math"
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/blas"
)

const tol = 1e-12

func randColMajor(rng *rand.Rand, m, n int) []float64 {
	a := make([]float64, m*n)
	for i := range a {
		a[i] = rng.NormFloat64()
	}
	return a
}

func at(a []float64, lda, i, j int) float64 { return a[i+j*lda] }

func naiveGemm(tA, tB blas.Transpose, m, n, k int, alpha float64, a []float64, lda int, b []float64, ldb int, beta float64, c []float64, ldc int) {
	opA := func(i, l int) float64 {
		if tA == blas.NoTrans {
			return at(a, lda, i, l)
		}
		return at(a, lda, l, i)
	}
	opB := func(l, j int) float64 {
		if tB == blas.NoTrans {
			return at(b, ldb, l, j)
		}
		return at(b, ldb, j, l)
	}
	for j := 0; j < n; j++ {
		for i := 0; i < m; i++ {
			var s float64
			for l := 0; l < k; l++ {
				s += opA(i, l) * opB(l, j)
			}
			c[i+j*ldc] = alpha*s + beta*c[i+j*ldc]
		}
	}
}

func maxDiff(a, b []float64) float64 {
	var d float64
	for i := range a {
		d = math.Max(d, math.Abs(a[i]-b[i]))
	}
	return d
}

func TestGemm(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 1))
	var p Float64
	const m, n, k = 7, 5, 6
	for _, tA := range []blas.Transpose{blas.NoTrans, blas.Trans} {
		for _, tB := range []blas.Transpose{blas.NoTrans, blas.Trans} {
			ar, ac := m, k
			if tA == blas.Trans {
				ar, ac = k, m
			}
			br, bc := k, n
			if tB == blas.Trans {
				br, bc = n, k
			}
			a := randColMajor(rng, ar, ac)
			b := randColMajor(rng, br, bc)
			c := randColMajor(rng, m, n)
			want := append([]float64(nil), c...)
			naiveGemm(tA, tB, m, n, k, 1.5, a, ar, b, br, -0.5, want, m)
			p.Gemm(tA, tB, m, n, k, 1.5, a, ar, b, br, -0.5, c, m)
			if d := maxDiff(c, want); d > tol {
				t.Errorf("Gemm(%v,%v): max diff %v", tA, tB, d)
			}
		}
	}
}

func TestGemv(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	var p Float64
	const m, n = 6, 4
	a := randColMajor(rng, m, n)
	x := randColMajor(rng, n, 1)
	y := randColMajor(rng, m, 1)
	want := append([]float64(nil), y...)
	naiveGemm(blas.NoTrans, blas.NoTrans, m, 1, n, 2, a, m, x, n, 3, want, m)
	p.Gemv(blas.NoTrans, m, n, 2, a, m, x, 3, y)
	if d := maxDiff(y, want); d > tol {
		t.Errorf("Gemv NoTrans: max diff %v", d)
	}

	xt := randColMajor(rng, m, 1)
	yt := randColMajor(rng, n, 1)
	want = append([]float64(nil), yt...)
	naiveGemm(blas.Trans, blas.NoTrans, n, 1, m, 2, a, m, xt, m, 3, want, n)
	p.Gemv(blas.Trans, m, n, 2, a, m, xt, 3, yt)
	if d := maxDiff(yt, want); d > tol {
		t.Errorf("Gemv Trans: max diff %v", d)
	}
}

func TestGer(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 3))
	var p Float64
	const m, n = 5, 3
	a := randColMajor(rng, m, n)
	x := randColMajor(rng, m, 1)
	y := randColMajor(rng, n, 1)
	want := append([]float64(nil), a...)
	for j := 0; j < n; j++ {
		for i := 0; i < m; i++ {
			want[i+j*m] += 0.7 * x[i] * y[j]
		}
	}
	p.Ger(m, n, 0.7, x, y, a, m)
	if d := maxDiff(a, want); d > tol {
		t.Errorf("Ger: max diff %v", d)
	}
}

func TestTrsm(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 4))
	var p Float64
	const m, n = 6, 4
	for _, side := range []blas.Side{blas.Left, blas.Right} {
		for _, uplo := range []blas.Uplo{blas.Lower, blas.Upper} {
			for _, tA := range []blas.Transpose{blas.NoTrans, blas.Trans} {
				for _, diag := range []blas.Diag{blas.NonUnit, blas.Unit} {
					order := m
					if side == blas.Right {
						order = n
					}
					a := randColMajor(rng, order, order)
					// Make the triangle well conditioned.
					for i := 0; i < order; i++ {
						a[i+i*order] += 4
					}
					tri := make([]float64, order*order)
					for j := 0; j < order; j++ {
						for i := 0; i < order; i++ {
							v := at(a, order, i, j)
							switch {
							case i == j:
								if diag == blas.Unit {
									v = 1
								}
							case uplo == blas.Lower && i < j:
								v = 0
							case uplo == blas.Upper && i > j:
								v = 0
							}
							tri[i+j*order] = v
						}
					}
					b := randColMajor(rng, m, n)
					x := append([]float64(nil), b...)
					p.Trsm(side, uplo, tA, diag, m, n, 1, a, order, x, m)
					// Multiply back: op(T)*X or X*op(T) must equal b.
					got := make([]float64, m*n)
					if side == blas.Left {
						naiveGemm(tA, blas.NoTrans, m, n, m, 1, tri, order, x, m, 0, got, m)
					} else {
						naiveGemm(blas.NoTrans, tA, m, n, n, 1, x, m, tri, order, 0, got, m)
					}
					if d := maxDiff(got, b); d > 1e-10 {
						t.Errorf("Trsm(%v,%v,%v,%v): residual %v", side, uplo, tA, diag, d)
					}
				}
			}
		}
	}
}

func TestGetrfGetrs(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 5))
	var p Float64
	const n, nrhs = 8, 3
	a := randColMajor(rng, n, n)
	for i := 0; i < n; i++ {
		a[i+i*n] += n
	}
	orig := append([]float64(nil), a...)
	b := randColMajor(rng, n, nrhs)
	x := append([]float64(nil), b...)
	ipiv := make([]int, n)
	if err := p.Getrf(n, n, a, n, ipiv); err != nil {
		t.Fatalf("Getrf: %v", err)
	}
	if err := p.Getrs(blas.NoTrans, n, nrhs, a, n, ipiv, x, n); err != nil {
		t.Fatalf("Getrs: %v", err)
	}
	got := make([]float64, n*nrhs)
	naiveGemm(blas.NoTrans, blas.NoTrans, n, nrhs, n, 1, orig, n, x, n, 0, got, n)
	if d := maxDiff(got, b); d > 1e-10 {
		t.Errorf("Getrf/Getrs: residual %v", d)
	}
}

func TestGetri(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 6))
	var p Float64
	const n = 7
	a := randColMajor(rng, n, n)
	for i := 0; i < n; i++ {
		a[i+i*n] += n
	}
	orig := append([]float64(nil), a...)
	ipiv := make([]int, n)
	if err := p.Getrf(n, n, a, n, ipiv); err != nil {
		t.Fatalf("Getrf: %v", err)
	}
	if err := p.Getri(n, a, n, ipiv); err != nil {
		t.Fatalf("Getri: %v", err)
	}
	got := make([]float64, n*n)
	naiveGemm(blas.NoTrans, blas.NoTrans, n, n, n, 1, orig, n, a, n, 0, got, n)
	for i := 0; i < n; i++ {
		got[i+i*n] -= 1
	}
	var d float64
	for _, v := range got {
		d = math.Max(d, math.Abs(v))
	}
	if d > 1e-10 {
		t.Errorf("Getri: |A*inv(A)-I| = %v", d)
	}
}

func TestPotrf(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 7))
	var p Float64
	const n = 6
	m0 := randColMajor(rng, n, n)
	a := make([]float64, n*n)
	// a = m0ᵀ*m0 + n*I is symmetric positive definite.
	naiveGemm(blas.Trans, blas.NoTrans, n, n, n, 1, m0, n, m0, n, 0, a, n)
	for i := 0; i < n; i++ {
		a[i+i*n] += n
	}
	orig := append([]float64(nil), a...)
	if err := p.Potrf(blas.Lower, n, a, n); err != nil {
		t.Fatalf("Potrf: %v", err)
	}
	l := make([]float64, n*n)
	for j := 0; j < n; j++ {
		for i := j; i < n; i++ {
			l[i+j*n] = a[i+j*n]
		}
	}
	got := make([]float64, n*n)
	naiveGemm(blas.NoTrans, blas.Trans, n, n, n, 1, l, n, l, n, 0, got, n)
	if d := maxDiff(got, orig); d > 1e-10 {
		t.Errorf("Potrf: |L*Lᵀ-A| = %v", d)
	}
}

func TestSytrf(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 8))
	var p Float64
	const n = 6
	m0 := randColMajor(rng, n, n)
	a := make([]float64, n*n)
	naiveGemm(blas.Trans, blas.NoTrans, n, n, n, 1, m0, n, m0, n, 0, a, n)
	// Indefinite but strongly non-singular.
	for i := 0; i < n; i++ {
		s := float64(n)
		if i%2 == 1 {
			s = -3 * n
		}
		a[i+i*n] += s
	}
	orig := append([]float64(nil), a...)
	if err := p.Sytrf(blas.Lower, n, a, n); err != nil {
		t.Fatalf("Sytrf: %v", err)
	}
	l := make([]float64, n*n)
	d := make([]float64, n*n)
	for j := 0; j < n; j++ {
		l[j+j*n] = 1
		d[j+j*n] = a[j+j*n]
		for i := j + 1; i < n; i++ {
			l[i+j*n] = a[i+j*n]
		}
	}
	ld := make([]float64, n*n)
	naiveGemm(blas.NoTrans, blas.NoTrans, n, n, n, 1, l, n, d, n, 0, ld, n)
	got := make([]float64, n*n)
	naiveGemm(blas.NoTrans, blas.Trans, n, n, n, 1, ld, n, l, n, 0, got, n)
	if diff := maxDiff(got, orig); diff > 1e-9 {
		t.Errorf("Sytrf: |L*D*Lᵀ-A| = %v", diff)
	}
}

// TestOrmqr validates the Q application for every (side, trans)
// combination against an explicitly accumulated Q.
func TestOrmqr(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 9))
	var p Float64
	const m, k = 8, 5
	a := randColMajor(rng, m, k)
	orig := append([]float64(nil), a...)
	tau := make([]float64, k)
	if err := p.Geqrf(m, k, a, m, tau); err != nil {
		t.Fatalf("Geqrf: %v", err)
	}
	// Accumulate Q (m×m) by applying it to the identity.
	q := make([]float64, m*m)
	for i := 0; i < m; i++ {
		q[i+i*m] = 1
	}
	if err := p.Ormqr(blas.Left, blas.NoTrans, m, m, k, a, m, tau, q, m); err != nil {
		t.Fatalf("Ormqr accumulate: %v", err)
	}
	// Q*R must reproduce the input.
	r := make([]float64, m*k)
	for j := 0; j < k; j++ {
		for i := 0; i <= j; i++ {
			r[i+j*m] = a[i+j*m]
		}
	}
	qr := make([]float64, m*k)
	naiveGemm(blas.NoTrans, blas.NoTrans, m, k, m, 1, q, m, r, m, 0, qr, m)
	if d := maxDiff(qr, orig); d > 1e-10 {
		t.Errorf("Geqrf: |Q*R-A| = %v", d)
	}
	for _, side := range []blas.Side{blas.Left, blas.Right} {
		for _, trans := range []blas.Transpose{blas.NoTrans, blas.Trans} {
			cr, cc := m, 4
			if side == blas.Right {
				cr, cc = 4, m
			}
			c := randColMajor(rng, cr, cc)
			want := make([]float64, cr*cc)
			if side == blas.Left {
				naiveGemm(trans, blas.NoTrans, cr, cc, m, 1, q, m, c, cr, 0, want, cr)
			} else {
				naiveGemm(blas.NoTrans, trans, cr, cc, m, 1, c, cr, q, m, 0, want, cr)
			}
			got := append([]float64(nil), c...)
			if err := p.Ormqr(side, trans, cr, cc, k, a, m, tau, got, cr); err != nil {
				t.Fatalf("Ormqr(%v,%v): %v", side, trans, err)
			}
			if d := maxDiff(got, want); d > 1e-10 {
				t.Errorf("Ormqr(%v,%v): max diff %v", side, trans, d)
			}
		}
	}
}

func TestGesvd(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 10))
	var p Float64
	for _, dims := range [][2]int{{6, 4}, {4, 6}, {5, 5}} {
		m, n := dims[0], dims[1]
		k := min(m, n)
		a := randColMajor(rng, m, n)
		orig := append([]float64(nil), a...)
		s := make([]float64, k)
		u := make([]float64, m*k)
		vt := make([]float64, k*n)
		if err := p.Gesvd(m, n, a, m, s, u, m, vt, k); err != nil {
			t.Fatalf("Gesvd(%d,%d): %v", m, n, err)
		}
		for i := 1; i < k; i++ {
			if s[i] > s[i-1] {
				t.Errorf("Gesvd(%d,%d): singular values not sorted", m, n)
			}
		}
		// U*diag(s)*Vᵀ must reproduce the input.
		us := make([]float64, m*k)
		for j := 0; j < k; j++ {
			for i := 0; i < m; i++ {
				us[i+j*m] = u[i+j*m] * s[j]
			}
		}
		got := make([]float64, m*n)
		naiveGemm(blas.NoTrans, blas.NoTrans, m, n, k, 1, us, m, vt, k, 0, got, m)
		if d := maxDiff(got, orig); d > 1e-10 {
			t.Errorf("Gesvd(%d,%d): |U*S*Vᵀ-A| = %v", m, n, d)
		}
		// Uᵀ*U = I.
		utu := make([]float64, k*k)
		naiveGemm(blas.Trans, blas.NoTrans, k, k, m, 1, u, m, u, m, 0, utu, k)
		for i := 0; i < k; i++ {
			utu[i+i*k] -= 1
		}
		var d float64
		for _, v := range utu {
			d = math.Max(d, math.Abs(v))
		}
		if d > 1e-12 {
			t.Errorf("Gesvd(%d,%d): U not orthonormal: %v", m, n, d)
		}
	}
}
