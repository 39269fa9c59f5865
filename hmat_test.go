// Copyright ©2025 The Hmat Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hmat

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/openhmat/hmat/cluster"
	"github.com/openhmat/hmat/dense"
	kgonum "github.com/openhmat/hmat/kernel/gonum"
)

var prov kgonum.Float64

// lineTree builds a median cluster tree over n points at x = 0…n-1.
func lineTree(n, maxLeaf int) *cluster.Tree {
	coords := make([]float64, 3*n)
	for i := 0; i < n; i++ {
		coords[3*i] = float64(i)
	}
	return cluster.NewTree(cluster.NewSet(3, coords, nil), cluster.Median, maxLeaf)
}

// testOpts returns Options tuned for small test problems.
func testOpts(eps float64, method CompressionMethod) *Options[float64] {
	o := NewOptions[float64](prov)
	o.Settings.AssemblyEpsilon = eps
	o.Settings.RecompressionEpsilon = eps
	o.Settings.Compression = method
	o.Settings.CompressionMinLeafSize = 1
	return o
}

// invKernel is the smooth generator K(i, j) = 1/(|xᵢ-xⱼ|+1) over line
// points, optionally with a diagonal shift making it strongly
// diagonally dominant (and so symmetric positive definite).
func invKernel(shift float64) GeneratorFunc[float64] {
	return func(i, j int) float64 {
		v := 1 / (math.Abs(float64(i-j)) + 1)
		if i == j {
			v += shift
		}
		return v
	}
}

// denseFromGen materializes the generator over original indices.
func denseFromGen(gen Generator[float64], m, n int) *dense.Matrix[float64] {
	d := dense.New[float64](m, n)
	for j := 0; j < n; j++ {
		col := d.ColView(j)
		for i := range col {
			col[i] = gen.Entry(i, j)
		}
	}
	return d
}

// matrixGen serves entries of a precomputed dense matrix held in
// original indices.
type matrixGen struct {
	m *dense.Matrix[float64]
}

func (g matrixGen) Entry(i, j int) float64 { return g.m.At(i, j) }

func randDense(rng *rand.Rand, m, n int) *dense.Matrix[float64] {
	d := dense.New[float64](m, n)
	for j := 0; j < n; j++ {
		col := d.ColView(j)
		for i := range col {
			col[i] = rng.NormFloat64()
		}
	}
	return d
}

func relDiff(got, want *dense.Matrix[float64]) float64 {
	d := got.Clone()
	d.AddScaled(-1, want)
	if n := want.Norm(); n > 0 {
		return d.Norm() / n
	}
	return d.Norm()
}

// toMat converts a column-major tile to a gonum dense matrix.
func toMat(d *dense.Matrix[float64]) *mat.Dense {
	m, n := d.Dims()
	out := mat.NewDense(m, n, nil)
	for j := 0; j < n; j++ {
		for i, v := range d.ColView(j) {
			out.Set(i, j, v)
		}
	}
	return out
}

func nan() float64 { return math.NaN() }

func randVec(rng *rand.Rand, n int) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = rng.NormFloat64()
	}
	return x
}
