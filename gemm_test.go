// Copyright ©2025 The Hmat Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hmat

import (
	"math"
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/blas"

	"github.com/openhmat/hmat/cluster"
	"github.com/openhmat/hmat/dense"
)

// expKernel is a second smooth generator, so products do not collapse
// onto a single operator.
func expKernel() GeneratorFunc[float64] {
	return func(i, j int) float64 {
		return math.Exp(-math.Abs(float64(i-j)) / 10)
	}
}

func assembled(t *testing.T, tree *cluster.Tree, gen Generator[float64], eps float64) *Matrix[float64] {
	t.Helper()
	h := New(tree, tree, cluster.Standard{Eta: 2}, testOpts(eps, CompressSVD))
	if err := h.Assemble(gen); err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	return h
}

func TestGemmAdd(t *testing.T) {
	const n = 32
	tree := lineTree(n, 4)
	a := assembled(t, tree, invKernel(0), 1e-10)
	b := assembled(t, tree, expKernel(), 1e-10)
	zero := GeneratorFunc[float64](func(i, j int) float64 { return 0 })
	c := assembled(t, tree, zero, 1e-10)

	if err := c.GemmAdd(blas.NoTrans, blas.NoTrans, 1.5, a, b); err != nil {
		t.Fatalf("GemmAdd: %v", err)
	}
	ra := denseFromGen(invKernel(0), n, n)
	rb := denseFromGen(expKernel(), n, n)
	want := dense.New[float64](n, n)
	dense.Gemm[float64](prov, blas.NoTrans, blas.NoTrans, 1.5, ra, rb, 0, want)
	if d := relDiff(c.FullOriginal(), want); d > 1e-6 {
		t.Fatalf("relative error %v", d)
	}
}

func TestGemmAddTrans(t *testing.T) {
	const n = 32
	tree := lineTree(n, 4)
	// An asymmetric generator so the transpose matters.
	gen := GeneratorFunc[float64](func(i, j int) float64 {
		return 1/(math.Abs(float64(i-j))+1) + 0.1*float64(i-j)
	})
	a := assembled(t, tree, gen, 1e-10)
	b := assembled(t, tree, expKernel(), 1e-10)
	zero := GeneratorFunc[float64](func(i, j int) float64 { return 0 })
	c := assembled(t, tree, zero, 1e-10)

	if err := c.GemmAdd(blas.Trans, blas.NoTrans, 1, a, b); err != nil {
		t.Fatalf("GemmAdd: %v", err)
	}
	ra := denseFromGen(gen, n, n)
	rb := denseFromGen(expKernel(), n, n)
	want := dense.New[float64](n, n)
	dense.Gemm[float64](prov, blas.Trans, blas.NoTrans, 1, ra, rb, 0, want)
	if d := relDiff(c.FullOriginal(), want); d > 1e-6 {
		t.Fatalf("relative error %v", d)
	}
}

// Products into an all-dense destination exercise the mixed-variant
// dispatch: low-rank × low-rank terms land in dense tiles.
func TestGemmAddMixedStructures(t *testing.T) {
	const n = 32
	tree := lineTree(n, 4)
	a := assembled(t, tree, invKernel(0), 1e-10)
	b := assembled(t, tree, expKernel(), 1e-10)
	zero := GeneratorFunc[float64](func(i, j int) float64 { return 0 })
	c := New(tree, tree, neverAdmissible{}, testOpts(1e-10, CompressSVD))
	if err := c.Assemble(zero); err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if err := c.GemmAdd(blas.NoTrans, blas.NoTrans, 1, a, b); err != nil {
		t.Fatalf("GemmAdd: %v", err)
	}
	ra := denseFromGen(invKernel(0), n, n)
	rb := denseFromGen(expKernel(), n, n)
	want := dense.New[float64](n, n)
	dense.Gemm[float64](prov, blas.NoTrans, blas.NoTrans, 1, ra, rb, 0, want)
	if d := relDiff(c.FullOriginal(), want); d > 1e-6 {
		t.Fatalf("relative error %v", d)
	}
}

func TestMulVecAdd(t *testing.T) {
	rng := rand.New(rand.NewPCG(10, 1))
	const n = 64
	tree := lineTree(n, 8)
	h := assembled(t, tree, invKernel(0), 1e-10)
	ref := denseFromGen(invKernel(0), n, n)
	for _, tr := range []blas.Transpose{blas.NoTrans, blas.Trans} {
		x := randVec(rng, n)
		y := make([]float64, n)
		if err := h.Apply(tr, 2, x, y); err != nil {
			t.Fatalf("Apply(%v): %v", tr, err)
		}
		want := make([]float64, n)
		dense.Gemv[float64](prov, tr, 2, ref, x, 0, want)
		for i := range y {
			if math.Abs(y[i]-want[i]) > 1e-8 {
				t.Fatalf("Apply(%v) element %d: got %v, want %v", tr, i, y[i], want[i])
			}
		}
	}
}

func TestNormScaleAddScaled(t *testing.T) {
	const n = 48
	tree := lineTree(n, 8)
	h := assembled(t, tree, invKernel(0), 1e-10)
	ref := denseFromGen(invKernel(0), n, n)
	if math.Abs(h.Norm()-ref.Norm()) > 1e-8*ref.Norm() {
		t.Fatalf("Norm = %v, dense %v", h.Norm(), ref.Norm())
	}

	g := h.Clone()
	g.Scale(2)
	if math.Abs(g.Norm()-2*h.Norm()) > 1e-8*h.Norm() {
		t.Fatalf("Scale(2) norm = %v", g.Norm())
	}

	if err := g.AddScaled(-2, h); err != nil {
		t.Fatalf("AddScaled: %v", err)
	}
	if g.Norm() > 1e-8*h.Norm() {
		t.Fatalf("2h − 2h has norm %v", g.Norm())
	}
}

func TestAddScaledAcrossStructures(t *testing.T) {
	const n = 32
	tree := lineTree(n, 4)
	a := assembled(t, tree, invKernel(0), 1e-10)
	d := New(tree, tree, neverAdmissible{}, testOpts(1e-10, CompressSVD))
	zero := GeneratorFunc[float64](func(i, j int) float64 { return 0 })
	if err := d.Assemble(zero); err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if err := d.AddScaled(1, a); err != nil {
		t.Fatalf("AddScaled: %v", err)
	}
	if diff := relDiff(d.FullOriginal(), a.FullOriginal()); diff > 1e-8 {
		t.Fatalf("relative error %v", diff)
	}
}

func TestFullMatchesFullOriginal(t *testing.T) {
	// With identity permutation (line points, median split) the two
	// reconstructions agree.
	const n = 32
	tree := lineTree(n, 4)
	h := assembled(t, tree, invKernel(0), 1e-10)
	if d := relDiff(h.Full(), h.FullOriginal()); d != 0 {
		t.Fatalf("identity permutation reconstructions differ by %v", d)
	}
}
