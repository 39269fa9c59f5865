// Copyright ©2025 The Hmat Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hmat

import (
	"errors"

	"gonum.org/v1/gonum/blas"

	"github.com/openhmat/hmat/dense"
	"github.com/openhmat/hmat/kernel"
	"github.com/openhmat/hmat/scalar"
)

// FactorizeLLT overwrites the lower triangle of the symmetric positive
// definite matrix with its block Cholesky factor L. Blocks above the
// diagonal are not referenced and keep their assembled content.
func (h *Matrix[T]) FactorizeLLT() error {
	if h == nil {
		return ErrEmpty
	}
	h.requireSquare()
	if err := h.lltRecurse(""); err != nil {
		return err
	}
	h.fact = FactorizationLLT
	if h.opts.Settings.CheckNaN {
		return h.checkNaN("")
	}
	return nil
}

func (h *Matrix[T]) lltRecurse(path string) error {
	switch h.kind {
	case DenseLeaf:
		h.assertAssembled()
		err := dense.Cholesky(h.opts.Kernel, blas.Lower, h.dense)
		if errors.Is(err, kernel.ErrNotPositiveDefinite) {
			// The LLᵀ analogue of a singular pivot.
			return &SingularError{Path: path}
		}
		if err != nil {
			return &NodeError{Path: path, Err: err}
		}
		return nil
	case RkLeaf:
		panic(ErrStructure)
	}
	c00, c10, c11 := h.child[0][0], h.child[1][0], h.child[1][1]
	if c00 == nil || c11 == nil {
		panic(ErrStructure)
	}
	if err := c00.lltRecurse(childPath(path, 0, 0)); err != nil {
		return err
	}
	if c10 != nil {
		// L10 = A10·L00⁻ᴴ.
		if err := solveTriRight(c10, c00, blas.Lower, blas.ConjTrans, blas.NonUnit); err != nil {
			return err
		}
		minusOne := scalar.FromFloat[T](-1)
		if err := c11.gemm(blas.NoTrans, blas.ConjTrans, minusOne, c10, c10); err != nil {
			return err
		}
	}
	return c11.lltRecurse(childPath(path, 1, 1))
}
