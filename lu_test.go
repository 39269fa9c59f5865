// Copyright ©2025 The Hmat Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hmat

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/openhmat/hmat/cluster"
)

// neverAdmissible forces an all-dense block tree.
type neverAdmissible struct{}

func (neverAdmissible) Admissible(r, c *cluster.Node) bool { return false }

// Scenario: a block matrix of 4×4 dense leaves factored by block LU
// must recover the direct dense solution.
func TestBlockLUDense(t *testing.T) {
	rng := rand.New(rand.NewPCG(6, 1))
	const n = 32
	m := randDense(rng, n, n)
	for i := 0; i < n; i++ {
		m.Set(i, i, m.At(i, i)+n)
	}
	tree := lineTree(n, 4)
	h := New(tree, tree, neverAdmissible{}, testOpts(1e-12, CompressSVD))
	if err := h.Assemble(matrixGen{m}); err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if s := h.Stats(); s.RkLeaves != 0 {
		t.Fatalf("expected an all-dense tree, got %d low-rank leaves", s.RkLeaves)
	}
	if err := h.FactorizeLU(); err != nil {
		t.Fatalf("FactorizeLU: %v", err)
	}
	b := randVec(rng, n)
	got := append([]float64(nil), b...)
	if err := h.SolveVec(got); err != nil {
		t.Fatalf("SolveVec: %v", err)
	}

	var lu mat.LU
	lu.Factorize(toMat(m))
	var want mat.VecDense
	if err := lu.SolveVecTo(&want, false, mat.NewVecDense(n, b)); err != nil {
		t.Fatalf("reference solve: %v", err)
	}
	for i := range got {
		if math.Abs(got[i]-want.AtVec(i)) > 1e-10 {
			t.Fatalf("element %d: got %v, want %v", i, got[i], want.AtVec(i))
		}
	}
}

func TestLUWithRkBlocks(t *testing.T) {
	rng := rand.New(rand.NewPCG(6, 2))
	const n = 64
	gen := invKernel(2 * float64(n))
	tree := lineTree(n, 8)
	h := New(tree, tree, cluster.Standard{Eta: 2}, testOpts(1e-10, CompressSVD))
	if err := h.Assemble(gen); err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if s := h.Stats(); s.RkLeaves == 0 {
		t.Fatal("expected low-rank leaves in the test structure")
	}
	if err := h.FactorizeLU(); err != nil {
		t.Fatalf("FactorizeLU: %v", err)
	}
	b := randVec(rng, n)
	x := append([]float64(nil), b...)
	if err := h.SolveVec(x); err != nil {
		t.Fatalf("SolveVec: %v", err)
	}
	// Residual against the exact dense operator.
	ref := denseFromGen(gen, n, n)
	res := make([]float64, n)
	for i := 0; i < n; i++ {
		var s float64
		for j := 0; j < n; j++ {
			s += ref.At(i, j) * x[j]
		}
		res[i] = s - b[i]
	}
	var rn, bn float64
	for i := range res {
		rn += res[i] * res[i]
		bn += b[i] * b[i]
	}
	if math.Sqrt(rn/bn) > 1e-6 {
		t.Fatalf("relative residual %v", math.Sqrt(rn/bn))
	}
}

func TestSolveMatrixRHS(t *testing.T) {
	rng := rand.New(rand.NewPCG(6, 3))
	const n, nrhs = 32, 3
	gen := invKernel(float64(n))
	tree := lineTree(n, 4)
	h := New(tree, tree, cluster.Standard{Eta: 2}, testOpts(1e-10, CompressSVD))
	if err := h.Assemble(gen); err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if err := h.FactorizeLU(); err != nil {
		t.Fatalf("FactorizeLU: %v", err)
	}
	b := randDense(rng, n, nrhs)
	x := b.Clone()
	if err := h.Solve(x); err != nil {
		t.Fatalf("Solve: %v", err)
	}
	ref := denseFromGen(gen, n, n)
	var refLU mat.LU
	refLU.Factorize(toMat(ref))
	var want mat.Dense
	if err := refLU.SolveTo(&want, false, toMat(b)); err != nil {
		t.Fatalf("reference solve: %v", err)
	}
	for j := 0; j < nrhs; j++ {
		for i := 0; i < n; i++ {
			if math.Abs(x.At(i, j)-want.At(i, j)) > 1e-8 {
				t.Fatalf("element (%d,%d): got %v, want %v", i, j, x.At(i, j), want.At(i, j))
			}
		}
	}
}

func TestFactorizedCopy(t *testing.T) {
	rng := rand.New(rand.NewPCG(6, 4))
	const n = 32
	gen := invKernel(float64(n))
	tree := lineTree(n, 4)
	h := New(tree, tree, cluster.Standard{Eta: 2}, testOpts(1e-10, CompressSVD))
	if err := h.Assemble(gen); err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	before := h.FullOriginal()
	f, err := h.FactorizedCopy()
	if err != nil {
		t.Fatalf("FactorizedCopy: %v", err)
	}
	if h.Factorization() != FactorizationNone {
		t.Fatal("receiver was factorized in place")
	}
	if d := relDiff(h.FullOriginal(), before); d != 0 {
		t.Fatalf("receiver content changed by %v", d)
	}
	b := randVec(rng, n)
	if err := f.SolveVec(b); err != nil {
		t.Fatalf("SolveVec on copy: %v", err)
	}
}

func TestLUSingular(t *testing.T) {
	tree := lineTree(32, 4)
	h := New(tree, tree, neverAdmissible{}, testOpts(1e-10, CompressSVD))
	zero := GeneratorFunc[float64](func(i, j int) float64 { return 0 })
	if err := h.Assemble(zero); err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	err := h.FactorizeLU()
	var serr *SingularError
	if !errors.As(err, &serr) {
		t.Fatalf("err = %v, want SingularError", err)
	}
	if serr.Path == "" {
		t.Fatal("singular error carries no block path")
	}
}

func TestFactorizeEmpty(t *testing.T) {
	var h *Matrix[float64]
	if err := h.Factorize(); !errors.Is(err, ErrEmpty) {
		t.Fatalf("err = %v, want ErrEmpty", err)
	}
}

func TestFactorizePreference(t *testing.T) {
	tree := lineTree(16, 4)
	opts := testOpts(1e-10, CompressSVD)
	opts.Settings.Factorization = FactorizationLLT
	h := New(tree, tree, neverAdmissible{}, opts)
	if err := h.Assemble(invKernel(16)); err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if err := h.Factorize(); err != nil {
		t.Fatalf("Factorize: %v", err)
	}
	if h.Factorization() != FactorizationLLT {
		t.Fatalf("Factorization = %v, want LLT", h.Factorization())
	}
}
