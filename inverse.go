// Copyright ©2025 The Hmat Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hmat

import (
	"errors"

	"gonum.org/v1/gonum/blas"

	"github.com/openhmat/hmat/dense"
	"github.com/openhmat/hmat/kernel"
	"github.com/openhmat/hmat/rk"
	"github.com/openhmat/hmat/scalar"
)

// Invert replaces the matrix by its inverse, by block Gauss–Jordan
// elimination over the 2×2 grids. Each step scopes its temporaries to
// the products that would otherwise alias their destination.
func (h *Matrix[T]) Invert() error {
	if h == nil {
		return ErrEmpty
	}
	h.requireSquare()
	if err := h.invertRecurse(""); err != nil {
		return err
	}
	if h.opts.Settings.CheckNaN {
		return h.checkNaN("")
	}
	return nil
}

func (h *Matrix[T]) invertRecurse(path string) error {
	switch h.kind {
	case DenseLeaf:
		h.assertAssembled()
		err := dense.Invert(h.opts.Kernel, h.dense)
		if errors.Is(err, kernel.ErrSingular) {
			return &SingularError{Path: path}
		}
		if err != nil {
			return &NodeError{Path: path, Err: err}
		}
		return nil
	case RkLeaf:
		panic(ErrStructure)
	}
	one := scalar.FromFloat[T](1)
	minusOne := scalar.FromFloat[T](-1)
	for k := 0; k < 2; k++ {
		ck := h.child[k][k]
		if ck == nil {
			panic(ErrStructure)
		}
		if err := ck.invertRecurse(childPath(path, k, k)); err != nil {
			return err
		}
		o := 1 - k
		// Row sweep: M[k,o] ← M[k,k]⁻¹·M[k,o], via a temporary since
		// the product aliases its destination.
		if h.child[k][o] != nil {
			t := h.child[k][o].cloneZero()
			if err := t.gemm(blas.NoTrans, blas.NoTrans, one, ck, h.child[k][o]); err != nil {
				return err
			}
			h.child[k][o] = t
		}
		// Trailing update: M[o,o] -= M[o,k]·M[k,o].
		if h.child[o][o] != nil && h.child[o][k] != nil && h.child[k][o] != nil {
			if err := h.child[o][o].gemm(blas.NoTrans, blas.NoTrans, minusOne, h.child[o][k], h.child[k][o]); err != nil {
				return err
			}
		}
		// Column sweep: M[o,k] ← −M[o,k]·M[k,k]⁻¹.
		if h.child[o][k] != nil {
			t := h.child[o][k].cloneZero()
			if err := t.gemm(blas.NoTrans, blas.NoTrans, minusOne, h.child[o][k], ck); err != nil {
				return err
			}
			h.child[o][k] = t
		}
	}
	return nil
}

// cloneZero returns a structural copy with zeroed payloads.
func (h *Matrix[T]) cloneZero() *Matrix[T] {
	n := &Matrix[T]{
		opts: h.opts, rowTree: h.rowTree, colTree: h.colTree,
		rows: h.rows, cols: h.cols, kind: h.kind,
	}
	switch h.kind {
	case Internal:
		for i := 0; i < 2; i++ {
			for j := 0; j < 2; j++ {
				if h.child[i][j] != nil {
					n.child[i][j] = h.child[i][j].cloneZero()
				}
			}
		}
	case DenseLeaf:
		n.dense = dense.New[T](h.rows.Size(), h.cols.Size())
	case RkLeaf:
		n.rk = rk.Zero[T](h.rows.Size(), h.cols.Size())
	}
	return n
}
