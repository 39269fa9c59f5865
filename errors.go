// Copyright ©2025 The Hmat Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hmat

import (
	"errors"
	"fmt"
)

// Error is the panic payload used for precondition violations: shape
// mismatches and structural misuse are programmer errors, not runtime
// conditions.
type Error struct{ string }

func (err Error) Error() string { return err.string }

var (
	// ErrShape is the panic value for incompatible operand shapes.
	ErrShape = Error{"hmat: dimension mismatch"}
	// ErrStructure is the panic value for an operation on a block tree
	// whose row and column partitions do not match the requirement.
	ErrStructure = Error{"hmat: block structure mismatch"}
	// ErrNotAssembled is the panic value for algebra on a shell tree
	// whose leaves have not been populated.
	ErrNotAssembled = Error{"hmat: matrix is not assembled"}
	// ErrNotFactorized is the panic value for a solve without a prior
	// factorization.
	ErrNotFactorized = Error{"hmat: matrix is not factorized"}
)

// ErrEmpty is returned when a factorization or an inversion is requested
// on a matrix with no degrees of freedom. Everywhere else an empty
// operand is a no-op.
var ErrEmpty = errors.New("hmat: empty matrix")

// SingularError reports a zero (or breakdown-level) pivot met during a
// factorization, with the path of the offending diagonal block. Path
// elements are [row,col] child coordinates from the root.
type SingularError struct {
	Path string
}

func (e *SingularError) Error() string {
	if e.Path == "" {
		return "hmat: singular diagonal block"
	}
	return "hmat: singular diagonal block at " + e.Path
}

// NodeError wraps a failure from a dense kernel or a numeric audit
// with the path of the block where it occurred.
type NodeError struct {
	Path string
	Err  error
}

func (e *NodeError) Error() string {
	if e.Path == "" {
		return "hmat: " + e.Err.Error()
	}
	return fmt.Sprintf("hmat: at %s: %v", e.Path, e.Err)
}

func (e *NodeError) Unwrap() error { return e.Err }

// ValidationError reports a compressed leaf whose reconstruction error
// exceeded Settings.ValidationErrorThreshold.
type ValidationError struct {
	Path     string
	RelError float64
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("hmat: compressed block at %s has relative error %.3e above threshold", e.Path, e.RelError)
}

// ErrNaN is wrapped by the NodeError returned when the opt-in NaN
// audit finds a NaN element.
var ErrNaN = errors.New("hmat: NaN encountered")

func childPath(path string, i, j int) string {
	return fmt.Sprintf("%s[%d,%d]", path, i, j)
}
