// Copyright ©2025 The Hmat Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package compress produces low-rank approximations of matrix blocks
// reachable only through an element oracle: truncated SVD and the
// adaptive cross approximation family.
package compress

import (
	"errors"

	"github.com/openhmat/hmat/dense"
	"github.com/openhmat/hmat/kernel"
	"github.com/openhmat/hmat/rk"
	"github.com/openhmat/hmat/scalar"
)

// ErrRankExceeded is returned when a compressor hits its rank cap
// before reaching the target accuracy. The approximation built so far
// is still returned; callers decide whether the miss is fatal.
var ErrRankExceeded = errors.New("compress: rank cap reached before target accuracy")

// Oracle gives element access to the block being compressed, in
// block-local indices.
type Oracle[T scalar.Scalar] interface {
	Dims() (rows, cols int)
	Entry(i, j int) T
	// Row fills dst (length cols) with row i.
	Row(i int, dst []T)
	// Col fills dst (length rows) with column j.
	Col(j int, dst []T)
}

// MatrixOracle adapts a dense tile to the Oracle interface.
type MatrixOracle[T scalar.Scalar] struct {
	M *dense.Matrix[T]
}

// Dims implements Oracle.
func (o MatrixOracle[T]) Dims() (rows, cols int) { return o.M.Dims() }

// Entry implements Oracle.
func (o MatrixOracle[T]) Entry(i, j int) T { return o.M.At(i, j) }

// Row implements Oracle.
func (o MatrixOracle[T]) Row(i int, dst []T) { o.M.Row(dst, i) }

// Col implements Oracle.
func (o MatrixOracle[T]) Col(j int, dst []T) { copy(dst, o.M.ColView(j)) }

// Full materializes the oracle's block as a dense tile.
func Full[T scalar.Scalar](o Oracle[T]) *dense.Matrix[T] {
	m, n := o.Dims()
	d := dense.New[T](m, n)
	for j := 0; j < n; j++ {
		o.Col(j, d.ColView(j))
	}
	return d
}

// Compressor produces a low-rank approximation of an oracle's block to
// a target relative accuracy.
type Compressor[T scalar.Scalar] interface {
	Compress(p kernel.Provider[T], o Oracle[T], eps float64) (*rk.Matrix[T], error)
}

// SVD compresses by materializing the block and truncating its
// singular value decomposition. It is the accuracy reference for the
// cheaper schemes.
type SVD[T scalar.Scalar] struct{}

// Compress implements Compressor.
func (SVD[T]) Compress(p kernel.Provider[T], o Oracle[T], eps float64) (*rk.Matrix[T], error) {
	return rk.FromDense(p, Full(o), eps)
}

// None performs no compression: it returns the rank-0 block, leaving
// the leaf structurally low-rank but empty.
type None[T scalar.Scalar] struct{}

// Compress implements Compressor.
func (None[T]) Compress(_ kernel.Provider[T], o Oracle[T], _ float64) (*rk.Matrix[T], error) {
	m, n := o.Dims()
	return rk.Zero[T](m, n), nil
}
