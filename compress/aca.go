// Copyright ©2025 The Hmat Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package compress

import (
	"math"

	"github.com/openhmat/hmat/dense"
	"github.com/openhmat/hmat/kernel"
	"github.com/openhmat/hmat/rk"
	"github.com/openhmat/hmat/scalar"
)

// acaState accumulates the cross-approximation factors A·Bᴴ and an
// estimate of the Frobenius norm of the approximant built so far.
type acaState[T scalar.Scalar] struct {
	a, b *dense.Matrix[T]
	k    int
	est2 float64
}

func newACAState[T scalar.Scalar](m, n, capacity int) *acaState[T] {
	return &acaState[T]{a: dense.New[T](m, capacity), b: dense.New[T](n, capacity)}
}

func dotc[T scalar.Scalar](x, y []T) complex128 {
	var s complex128
	for i := range x {
		s += conjC(x[i]) * toC(y[i])
	}
	return s
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
	panic("compress: unreachable")
}

func conjC[T scalar.Scalar](v T) complex128 {
	c := toC(v)
	return complex(real(c), -imag(c))
}

func norm2[T scalar.Scalar](x []T) float64 {
	var s float64
	for _, v := range x {
		a := scalar.Abs(v)
		s += a * a
	}
	return s
}

// push appends the rank-1 term u·wᴴ and returns its Frobenius norm.
func (s *acaState[T]) push(u, w []T) float64 {
	var cross complex128
	for l := 0; l < s.k; l++ {
		cross += dotc(s.a.ColView(l), u) * dotc(w, s.b.ColView(l))
	}
	nu2, nw2 := norm2(u), norm2(w)
	s.est2 += nu2*nw2 + 2*real(cross)
	if s.est2 < 0 {
		s.est2 = 0
	}
	copy(s.a.ColView(s.k), u)
	copy(s.b.ColView(s.k), w)
	s.k++
	return math.Sqrt(nu2 * nw2)
}

// residRow fills dst with row i of the residual M − A·Bᴴ.
func (s *acaState[T]) residRow(o Oracle[T], i int, dst []T) {
	o.Row(i, dst)
	for l := 0; l < s.k; l++ {
		coef := s.a.At(i, l)
		bl := s.b.ColView(l)
		for j := range dst {
			dst[j] -= coef * scalar.Conj(bl[j])
		}
	}
}

// residCol fills dst with column j of the residual M − A·Bᴴ.
func (s *acaState[T]) residCol(o Oracle[T], j int, dst []T) {
	o.Col(j, dst)
	for l := 0; l < s.k; l++ {
		coef := scalar.Conj(s.b.At(j, l))
		al := s.a.ColView(l)
		for i := range dst {
			dst[i] -= al[i] * coef
		}
	}
}

func (s *acaState[T]) toRk() *rk.Matrix[T] {
	m, n := s.a.Rows(), s.b.Rows()
	out := rk.Zero[T](m, n)
	out.A = s.a.View(0, 0, m, s.k).Clone()
	out.B = s.b.View(0, 0, n, s.k).Clone()
	return out
}

func argmaxAbs[T scalar.Scalar](x []T, skip []bool) (int, float64) {
	idx, best := -1, 0.0
	for i, v := range x {
		if skip != nil && skip[i] {
			continue
		}
		if a := scalar.Abs(v); a > best {
			idx, best = i, a
		}
	}
	return idx, best
}

// ACAFull is adaptive cross approximation with a fully materialized
// residual: at each step the globally largest residual entry is the
// pivot. Expensive but robust; mainly an accuracy reference.
type ACAFull[T scalar.Scalar] struct {
	// MaxRank caps the produced rank; zero means min(rows, cols).
	MaxRank int
}

// Compress implements Compressor.
func (c ACAFull[T]) Compress(p kernel.Provider[T], o Oracle[T], eps float64) (*rk.Matrix[T], error) {
	m, n := o.Dims()
	if m == 0 || n == 0 {
		return rk.Zero[T](m, n), nil
	}
	res := Full(o)
	init := res.Norm()
	if init == 0 {
		return rk.Zero[T](m, n), nil
	}
	rmax := c.MaxRank
	if rmax <= 0 || rmax > min(m, n) {
		rmax = min(m, n)
	}
	st := newACAState[T](m, n, rmax)
	u := make([]T, m)
	w := make([]T, n)
	row := make([]T, n)
	for {
		if res.Norm() <= eps*init {
			return st.toRk(), nil
		}
		if st.k == rmax {
			return st.toRk(), ErrRankExceeded
		}
		i, j, v := res.MaxAbs()
		if v == 0 {
			return st.toRk(), nil
		}
		delta := res.At(i, j)
		inv := scalar.FromFloat[T](1)
		inv /= delta
		copy(u, res.ColView(j))
		for q := range u {
			u[q] *= inv
		}
		res.Row(row, i)
		for q := range w {
			w[q] = scalar.Conj(row[q])
		}
		for q := 0; q < n; q++ {
			col := res.ColView(q)
			for pI := range col {
				col[pI] -= u[pI] * row[q]
			}
		}
		st.push(u, w)
	}
}

// ACAPartial is adaptive cross approximation driven purely by the
// element oracle: pivots are chosen by maximum residual magnitude on
// the current cross, and the remaining error is tracked through a
// Frobenius norm estimate of the approximant.
type ACAPartial[T scalar.Scalar] struct {
	// MaxRank caps the produced rank; zero means min(rows, cols).
	MaxRank int
}

// Compress implements Compressor.
func (c ACAPartial[T]) Compress(p kernel.Provider[T], o Oracle[T], eps float64) (*rk.Matrix[T], error) {
	m, n := o.Dims()
	if m == 0 || n == 0 {
		return rk.Zero[T](m, n), nil
	}
	rmax := c.MaxRank
	if rmax <= 0 || rmax > min(m, n) {
		rmax = min(m, n)
	}
	st := newACAState[T](m, n, rmax)
	usedRow := make([]bool, m)
	row := make([]T, n)
	col := make([]T, m)
	u := make([]T, m)
	w := make([]T, n)

	i := 0
	for {
		usedRow[i] = true
		st.residRow(o, i, row)
		j, v := argmaxAbs(row, nil)
		if v == 0 {
			// Exactly represented row; move to the next unused one.
			next := -1
			for q := range usedRow {
				if !usedRow[q] {
					next = q
					break
				}
			}
			if next < 0 {
				return st.toRk(), nil
			}
			i = next
			continue
		}
		delta := row[j]
		st.residCol(o, j, col)
		inv := scalar.FromFloat[T](1)
		inv /= delta
		for q := range u {
			u[q] = col[q] * inv
		}
		for q := range w {
			w[q] = scalar.Conj(row[q])
		}
		last := st.push(u, w)
		if last <= eps*math.Sqrt(st.est2) {
			return st.toRk(), nil
		}
		if st.k == rmax {
			return st.toRk(), ErrRankExceeded
		}
		i, _ = argmaxAbs(u, usedRow)
		if i < 0 {
			return st.toRk(), nil
		}
	}
}

// ACAPlus is ACAPartial seeded with a fully evaluated reference row
// and column, which guides pivot selection toward the globally largest
// residual entries.
type ACAPlus[T scalar.Scalar] struct {
	// MaxRank caps the produced rank; zero means min(rows, cols).
	MaxRank int
}

// Compress implements Compressor.
func (c ACAPlus[T]) Compress(p kernel.Provider[T], o Oracle[T], eps float64) (*rk.Matrix[T], error) {
	m, n := o.Dims()
	if m == 0 || n == 0 {
		return rk.Zero[T](m, n), nil
	}
	rmax := c.MaxRank
	if rmax <= 0 || rmax > min(m, n) {
		rmax = min(m, n)
	}
	st := newACAState[T](m, n, rmax)
	cref := make([]T, m)
	rref := make([]T, n)
	row := make([]T, n)
	u := make([]T, m)
	w := make([]T, n)

	jRef := 0
	st.residCol(o, jRef, cref)
	iRef, _ := argmaxAbs(cref, nil)
	if iRef < 0 {
		iRef = 0
	}
	st.residRow(o, iRef, rref)

	for {
		jmax, vr := argmaxAbs(rref, nil)
		imax, vc := argmaxAbs(cref, nil)
		if vr == 0 && vc == 0 {
			// Both references are exhausted; re-seed from the next
			// column, or accept the approximation.
			if jRef+1 >= n {
				return st.toRk(), nil
			}
			jRef++
			st.residCol(o, jRef, cref)
			if iRef, _ = argmaxAbs(cref, nil); iRef < 0 {
				return st.toRk(), nil
			}
			st.residRow(o, iRef, rref)
			continue
		}
		if vr >= vc {
			delta := rref[jmax]
			st.residCol(o, jmax, u)
			inv := scalar.FromFloat[T](1)
			inv /= delta
			for q := range u {
				u[q] *= inv
			}
			for q := range w {
				w[q] = scalar.Conj(rref[q])
			}
		} else {
			delta := cref[imax]
			st.residRow(o, imax, row)
			inv := scalar.FromFloat[T](1)
			inv /= delta
			for q := range u {
				u[q] = cref[q] * inv
			}
			for q := range w {
				w[q] = scalar.Conj(row[q])
			}
		}
		last := st.push(u, w)
		// Keep the references consistent with the new residual.
		for q := range rref {
			rref[q] -= u[iRef] * scalar.Conj(w[q])
		}
		coef := scalar.Conj(w[jRef])
		for q := range cref {
			cref[q] -= u[q] * coef
		}
		if last <= eps*math.Sqrt(st.est2) {
			return st.toRk(), nil
		}
		if st.k == rmax {
			return st.toRk(), ErrRankExceeded
		}
	}
}
