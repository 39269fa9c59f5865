// Copyright ©2025 The Hmat Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package compress

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/openhmat/hmat/dense"
	"github.com/openhmat/hmat/kernel"
	kgonum "github.com/openhmat/hmat/kernel/gonum"
	"github.com/openhmat/hmat/rk"
)

var p kgonum.Float64

// farBlock is the oracle of the smooth kernel K(i, j) = 1/(|xᵢ-yⱼ|+1)
// between two well separated segments of the line; such blocks have
// rapidly decaying singular values.
type farBlock struct {
	m, n int
	gap  float64
}

func (o farBlock) Dims() (int, int) { return o.m, o.n }

func (o farBlock) Entry(i, j int) float64 {
	xi := float64(i)
	yj := o.gap + float64(j)
	return 1 / (math.Abs(xi-yj) + 1)
}

func (o farBlock) Row(i int, dst []float64) {
	for j := range dst {
		dst[j] = o.Entry(i, j)
	}
}

func (o farBlock) Col(j int, dst []float64) {
	for i := range dst {
		dst[i] = o.Entry(i, j)
	}
}

func relError(r *rk.Matrix[float64], ref *dense.Matrix[float64]) float64 {
	diff := ref.Clone()
	r.ExpandAddInto(p, -1, diff)
	return diff.Norm() / ref.Norm()
}

func compressors() map[string]Compressor[float64] {
	return map[string]Compressor[float64]{
		"svd":        SVD[float64]{},
		"acafull":    ACAFull[float64]{},
		"acapartial": ACAPartial[float64]{},
		"acaplus":    ACAPlus[float64]{},
	}
}

func TestCompressSmoothKernel(t *testing.T) {
	oracle := farBlock{m: 40, n: 32, gap: 200}
	ref := Full[float64](oracle)
	for name, c := range compressors() {
		r, err := c.Compress(p, oracle, 1e-8)
		if err != nil {
			t.Errorf("%s: %v", name, err)
			continue
		}
		if e := relError(r, ref); e > 1e-6 {
			t.Errorf("%s: relative error %v", name, e)
		}
		if r.Rank() >= 32 {
			t.Errorf("%s: no compression, rank %d", name, r.Rank())
		}
	}
}

func TestSVDMatchesTarget(t *testing.T) {
	oracle := farBlock{m: 24, n: 24, gap: 100}
	ref := Full[float64](oracle)
	r, err := SVD[float64]{}.Compress(p, oracle, 1e-6)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if e := relError(r, ref); e > 1e-6 {
		t.Fatalf("relative error %v above target", e)
	}
}

func TestRankCap(t *testing.T) {
	rng := rand.New(rand.NewPCG(4, 1))
	// A dense random matrix is effectively full rank.
	d := dense.New[float64](12, 12)
	for j := 0; j < 12; j++ {
		col := d.ColView(j)
		for i := range col {
			col[i] = rng.NormFloat64()
		}
	}
	oracle := MatrixOracle[float64]{M: d}
	for name, c := range map[string]Compressor[float64]{
		"acafull":    ACAFull[float64]{MaxRank: 3},
		"acapartial": ACAPartial[float64]{MaxRank: 3},
		"acaplus":    ACAPlus[float64]{MaxRank: 3},
	} {
		r, err := c.Compress(p, oracle, 1e-12)
		if !errors.Is(err, ErrRankExceeded) {
			t.Errorf("%s: error = %v, want ErrRankExceeded", name, err)
		}
		if r == nil || r.Rank() != 3 {
			t.Errorf("%s: rank cap not honored", name)
		}
	}
}

func TestExactLowRank(t *testing.T) {
	rng := rand.New(rand.NewPCG(4, 2))
	a := dense.New[float64](20, 1)
	b := dense.New[float64](15, 1)
	for i := range a.ColView(0) {
		a.ColView(0)[i] = rng.NormFloat64()
	}
	for i := range b.ColView(0) {
		b.ColView(0)[i] = rng.NormFloat64()
	}
	exact := rk.New(a, b).Dense(p)
	oracle := MatrixOracle[float64]{M: exact}
	for name, c := range compressors() {
		r, err := c.Compress(p, oracle, 1e-10)
		if err != nil {
			t.Errorf("%s: %v", name, err)
			continue
		}
		if e := relError(r, exact); e > 1e-9 {
			t.Errorf("%s: relative error %v on rank-1 input", name, e)
		}
	}
}

func TestNone(t *testing.T) {
	oracle := farBlock{m: 10, n: 8, gap: 50}
	r, err := None[float64]{}.Compress(p, oracle, 1e-6)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if r.Rank() != 0 {
		t.Fatalf("rank = %d, want 0", r.Rank())
	}
	m, n := r.Dims()
	if m != 10 || n != 8 {
		t.Fatalf("dims = (%d,%d), want (10,8)", m, n)
	}
}

func TestZeroMatrix(t *testing.T) {
	z := dense.New[float64](9, 7)
	oracle := MatrixOracle[float64]{M: z}
	for name, c := range compressors() {
		r, err := c.Compress(p, oracle, 1e-8)
		if err != nil {
			t.Errorf("%s: %v", name, err)
			continue
		}
		if r.Norm(p) != 0 {
			t.Errorf("%s: zero matrix compressed to nonzero block", name)
		}
	}
}

var _ kernel.Provider[float64] = p
