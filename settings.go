// Copyright ©2025 The Hmat Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hmat

import (
	"io"

	"github.com/openhmat/hmat/cluster"
	"github.com/openhmat/hmat/exec"
	"github.com/openhmat/hmat/kernel"
	"github.com/openhmat/hmat/scalar"
)

// CompressionMethod selects how admissible leaves are compressed
// during assembly.
type CompressionMethod int

const (
	// CompressSVD uses a truncated singular value decomposition of the
	// materialized block.
	CompressSVD CompressionMethod = iota
	// CompressACAFull is adaptive cross approximation over the full
	// residual.
	CompressACAFull
	// CompressACAPartial is adaptive cross approximation driven only
	// by the element oracle.
	CompressACAPartial
	// CompressACAPlus is ACA-partial seeded with a reference row and
	// column.
	CompressACAPlus
	// CompressNone leaves admissible blocks as rank-0 shells.
	CompressNone
)

// Factorization names the factorization held by a matrix, and the one
// Factorize prefers.
type Factorization int

const (
	// FactorizationNone marks an unfactorized matrix.
	FactorizationNone Factorization = iota
	// FactorizationLU is pivoted LU.
	FactorizationLU
	// FactorizationLDLT is the symmetric indefinite LDLᵀ.
	FactorizationLDLT
	// FactorizationLLT is Cholesky.
	FactorizationLLT
)

// Settings carries the numeric configuration threaded through
// construction, assembly and algebra. There is no process-wide
// default state; every matrix references the Settings it was built
// with.
type Settings struct {
	// AssemblyEpsilon is the target relative accuracy of leaf
	// compression during assembly.
	AssemblyEpsilon float64
	// RecompressionEpsilon is the target relative accuracy of
	// algebraic recompression (low-rank addition, coarsening).
	RecompressionEpsilon float64
	// Compression selects the assembly compressor.
	Compression CompressionMethod

	// MaxLeafSize is the largest cluster size the spatial recursion
	// leaves unsplit.
	MaxLeafSize int
	// CompressionMinLeafSize stores admissible blocks whose smaller
	// side is below this bound as dense leaves: too small to compress
	// profitably.
	CompressionMinLeafSize int
	// MaxElementsPerBlock caps |rows|·|cols| of an admissible block;
	// zero means no cap.
	MaxElementsPerBlock int

	// Coarsening merges all-low-rank sibling grids after assembly when
	// that shrinks storage within the accuracy budget.
	Coarsening bool
	// Recompress truncates low-rank blocks after algebraic updates.
	Recompress bool

	// ValidateCompression recomputes the dense reference of every
	// compressed leaf and checks the reconstruction error.
	ValidateCompression bool
	// ValidationErrorThreshold is the largest accepted relative error
	// during validation.
	ValidationErrorThreshold float64
	// ValidationReRun recompresses an offending leaf with SVD before
	// failing validation.
	ValidationReRun bool
	// ValidationDump writes the dense reference of an offending leaf
	// to Options.DumpWriter.
	ValidationDump bool

	// CheckNaN audits leaves for NaN values after assembly and
	// factorization, failing fast on the first occurrence.
	CheckNaN bool

	// MaxParallelLeaves bounds the number of leaves processed
	// concurrently when no explicit executor is configured; values
	// below two run sequentially.
	MaxParallelLeaves int

	// Factorization is the preference used by Factorize.
	Factorization Factorization
}

// DefaultSettings returns the configuration used when none is given.
func DefaultSettings() Settings {
	return Settings{
		AssemblyEpsilon:          1e-4,
		RecompressionEpsilon:     1e-4,
		Compression:              CompressACAPartial,
		MaxLeafSize:              100,
		CompressionMinLeafSize:   16,
		MaxElementsPerBlock:      0,
		Recompress:               true,
		ValidationErrorThreshold: 10,
		MaxParallelLeaves:        0,
		Factorization:            FactorizationLU,
	}
}

// Options bundles the dense-kernel provider, the task executor and the
// numeric settings for one family of matrices. The value is shared,
// immutable, by every node of the trees built from it.
type Options[T scalar.Scalar] struct {
	Kernel   kernel.Provider[T]
	Settings Settings
	// Exec, when non-nil, schedules independent sub-tree work.
	Exec exec.Executor
	// DumpWriter receives dense references of blocks failing
	// validation when Settings.ValidationDump is set.
	DumpWriter io.Writer
}

// NewOptions returns Options with DefaultSettings and a sequential
// executor around the given provider.
func NewOptions[T scalar.Scalar](p kernel.Provider[T]) *Options[T] {
	return &Options[T]{Kernel: p, Settings: DefaultSettings()}
}

// NewClusterTree builds a cluster tree over set with the configured
// MaxLeafSize.
func (o *Options[T]) NewClusterTree(set *cluster.Set, strategy cluster.Strategy) *cluster.Tree {
	return cluster.NewTree(set, strategy, o.Settings.MaxLeafSize)
}

// executor resolves the effective executor: an explicit Exec wins,
// otherwise MaxParallelLeaves picks a bounded parallel one.
func (o *Options[T]) executor() exec.Executor {
	if o.Exec != nil {
		return o.Exec
	}
	if o.Settings.MaxParallelLeaves > 1 {
		return exec.Parallel{Limit: o.Settings.MaxParallelLeaves}
	}
	return exec.Sequential{}
}
