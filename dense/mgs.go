// Copyright ©2025 The Hmat Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dense

import (
	"math"

	"github.com/openhmat/hmat/scalar"
)

// mgsMinPrec is the smallest stopping precision MGS accepts; tighter
// (smaller) values are raised to it.
const mgsMinPrec = 1e-6

// MGS computes a column-pivoted modified Gram–Schmidt factorization of
// a: a[:, perm] ≈ q*r with q having orthonormal columns and r upper
// triangular. At each step the remaining column of largest 2-norm is
// selected; iteration stops once the largest remaining norm falls to
// prec times the largest initial norm. The returned rank is the number
// of steps taken; q is rows×rank and r is rank×cols with columns in
// pivoted order, perm[j] giving the original index of pivoted column j.
// a is not modified.
func MGS[T scalar.Scalar](a *Matrix[T], prec float64) (q, r *Matrix[T], perm []int, rank int) {
	if prec < mgsMinPrec {
		prec = mgsMinPrec
	}
	m, n := a.Dims()
	w := a.Clone()
	kmax := min(m, n)
	qf := New[T](m, kmax)
	rf := New[T](kmax, n)
	perm = make([]int, n)
	norms2 := make([]float64, n)
	var initMax float64
	for j := 0; j < n; j++ {
		perm[j] = j
		col := w.ColView(j)
		for _, v := range col {
			x := scalar.Abs(v)
			norms2[j] += x * x
		}
		initMax = math.Max(initMax, norms2[j])
	}
	stop := prec * prec * initMax

	k := 0
	for ; k < kmax; k++ {
		// Recompute the remaining norms exactly: the decremental
		// update cancels catastrophically near the stopping
		// threshold.
		for j := k; j < n; j++ {
			norms2[j] = 0
			for _, v := range w.ColView(j) {
				x := scalar.Abs(v)
				norms2[j] += x * x
			}
		}
		piv, best := k, norms2[k]
		for j := k + 1; j < n; j++ {
			if norms2[j] > best {
				piv, best = j, norms2[j]
			}
		}
		if best <= stop || best == 0 {
			break
		}
		if piv != k {
			wp, wk := w.ColView(piv), w.ColView(k)
			for i := range wk {
				wk[i], wp[i] = wp[i], wk[i]
			}
			for i := 0; i < k; i++ {
				rp, rk := rf.At(i, piv), rf.At(i, k)
				rf.Set(i, piv, rk)
				rf.Set(i, k, rp)
			}
			perm[k], perm[piv] = perm[piv], perm[k]
			norms2[k], norms2[piv] = norms2[piv], norms2[k]
		}

		nrm := math.Sqrt(norms2[k])
		qk := qf.ColView(k)
		wk := w.ColView(k)
		inv := scalar.FromFloat[T](1 / nrm)
		for i := range qk {
			qk[i] = wk[i] * inv
		}
		rf.Set(k, k, scalar.FromFloat[T](nrm))
		for j := k + 1; j < n; j++ {
			wj := w.ColView(j)
			var proj T
			for i := range wj {
				proj += scalar.Conj(qk[i]) * wj[i]
			}
			rf.Set(k, j, proj)
			for i := range wj {
				wj[i] -= proj * qk[i]
			}
		}
	}
	return qf.View(0, 0, m, k), rf.View(0, 0, k, n), perm, k
}
