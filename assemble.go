// Copyright ©2025 The Hmat Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hmat

import (
	"errors"
	"strconv"
	"sync"

	"github.com/openhmat/hmat/cluster"
	"github.com/openhmat/hmat/compress"
	"github.com/openhmat/hmat/dense"
	"github.com/openhmat/hmat/rk"
	"github.com/openhmat/hmat/scalar"
)

// Generator produces matrix elements in original (pre-permutation)
// indices. The engine translates permuted positions before calling it.
type Generator[T scalar.Scalar] interface {
	Entry(row, col int) T
}

// BlockGenerator optionally fills whole tiles at once: out has shape
// len(rows)×len(cols) and receives the elements coupling the listed
// original indices.
type BlockGenerator[T scalar.Scalar] interface {
	Generator[T]
	Block(rows, cols []int, out *dense.Matrix[T])
}

// GeneratorFunc adapts a plain function to Generator.
type GeneratorFunc[T scalar.Scalar] func(row, col int) T

// Entry implements Generator.
func (f GeneratorFunc[T]) Entry(row, col int) T { return f(row, col) }

// genOracle exposes a block of the generator in block-local permuted
// coordinates, as the compressors expect.
type genOracle[T scalar.Scalar] struct {
	gen        Generator[T]
	rows, cols []int // original indices
}

func (o genOracle[T]) Dims() (rows, cols int) { return len(o.rows), len(o.cols) }

func (o genOracle[T]) Entry(i, j int) T { return o.gen.Entry(o.rows[i], o.cols[j]) }

func (o genOracle[T]) Row(i int, dst []T) {
	r := o.rows[i]
	for j := range dst {
		dst[j] = o.gen.Entry(r, o.cols[j])
	}
}

func (o genOracle[T]) Col(j int, dst []T) {
	c := o.cols[j]
	for i := range dst {
		dst[i] = o.gen.Entry(o.rows[i], c)
	}
}

// origIndices lists the original indices covered by a cluster.
func origIndices(t *cluster.Tree, n *cluster.Node) []int {
	return t.PermToOrig()[n.Begin():n.End()]
}

// AssemblyReport summarizes the non-fatal events of the last Assemble
// call on a matrix.
type AssemblyReport struct {
	// RankExceeded counts compressed leaves whose compressor hit its
	// rank cap before reaching AssemblyEpsilon. Warning level: the
	// blocks carry the best approximation found, and assembly only
	// fails when validation is enabled and the block misses
	// ValidationErrorThreshold.
	RankExceeded int
	// RankExceededBlocks identifies the affected blocks by the
	// permuted index ranges they span.
	RankExceededBlocks []string
}

// assemblyRecorder collects the report across concurrently assembled
// leaves.
type assemblyRecorder struct {
	mu  sync.Mutex
	rep AssemblyReport
}

func (r *assemblyRecorder) rankExceeded(block string) {
	r.mu.Lock()
	r.rep.RankExceeded++
	r.rep.RankExceededBlocks = append(r.rep.RankExceededBlocks, block)
	r.mu.Unlock()
}

// AssemblyReport returns the report of the last Assemble call.
func (h *Matrix[T]) AssemblyReport() AssemblyReport {
	if h == nil {
		return AssemblyReport{}
	}
	return h.report
}

// compressor resolves the Settings choice to a concrete scheme.
func (o *Options[T]) compressor() compress.Compressor[T] {
	switch o.Settings.Compression {
	case CompressACAFull:
		return compress.ACAFull[T]{}
	case CompressACAPartial:
		return compress.ACAPartial[T]{}
	case CompressACAPlus:
		return compress.ACAPlus[T]{}
	case CompressNone:
		return compress.None[T]{}
	}
	return compress.SVD[T]{}
}

// Assemble populates the leaf shells from the generator: dense leaves
// element-wise (or tile-wise for a BlockGenerator), admissible leaves
// through the configured compressor at Settings.AssemblyEpsilon.
// Leaves are independent and run under the configured executor. A
// compressor hitting its rank cap is not an error unless validation is
// enabled and the block misses the validation threshold.
func (h *Matrix[T]) Assemble(gen Generator[T]) error {
	if h == nil {
		return nil
	}
	rec := &assemblyRecorder{}
	leaves := h.leaves(nil)
	tasks := make([]func() error, len(leaves))
	for i, l := range leaves {
		l := l
		tasks[i] = func() error { return l.assembleLeaf(gen, rec) }
	}
	err := h.opts.executor().Run(tasks...)
	h.report = rec.rep
	if err != nil {
		return err
	}
	if h.opts.Settings.Coarsening {
		if err := h.coarsen(); err != nil {
			return err
		}
	}
	if h.opts.Settings.CheckNaN {
		return h.checkNaN("")
	}
	return nil
}

func (h *Matrix[T]) assembleLeaf(gen Generator[T], rec *assemblyRecorder) error {
	set := h.opts.Settings
	rows := origIndices(h.rowTree, h.rows)
	cols := origIndices(h.colTree, h.cols)
	if h.kind == DenseLeaf {
		d := dense.New[T](len(rows), len(cols))
		if bg, ok := gen.(BlockGenerator[T]); ok {
			bg.Block(rows, cols, d)
		} else {
			for j, c := range cols {
				col := d.ColView(j)
				for i, r := range rows {
					col[i] = gen.Entry(r, c)
				}
			}
		}
		h.dense = d
		return nil
	}

	oracle := genOracle[T]{gen: gen, rows: rows, cols: cols}
	rkm, err := h.opts.compressor().Compress(h.opts.Kernel, oracle, set.AssemblyEpsilon)
	if err != nil {
		if !errors.Is(err, compress.ErrRankExceeded) {
			return err
		}
		rec.rankExceeded(h.pathFromRoot())
	}
	h.rk = rkm
	if !set.ValidateCompression {
		return nil
	}
	return h.validateLeaf(oracle)
}

// validateLeaf checks the compressed leaf against its dense reference,
// optionally re-running with SVD and dumping the reference on failure.
func (h *Matrix[T]) validateLeaf(oracle compress.Oracle[T]) error {
	set := h.opts.Settings
	ref := compress.Full(oracle)
	norm := ref.Norm()
	relErr := h.leafError(ref, norm)
	if relErr <= set.ValidationErrorThreshold {
		return nil
	}
	if set.ValidationReRun {
		rr, err := compress.SVD[T]{}.Compress(h.opts.Kernel, oracle, set.AssemblyEpsilon)
		if err == nil {
			h.rk = rr
			if relErr = h.leafError(ref, norm); relErr <= set.ValidationErrorThreshold {
				return nil
			}
		}
	}
	if set.ValidationDump && h.opts.DumpWriter != nil {
		ref.WriteTo(h.opts.DumpWriter)
	}
	return &ValidationError{Path: h.pathFromRoot(), RelError: relErr}
}

func (h *Matrix[T]) leafError(ref *dense.Matrix[T], norm float64) float64 {
	diff := ref.Clone()
	h.rk.ExpandAddInto(h.opts.Kernel, scalar.FromFloat[T](-1), diff)
	if norm == 0 {
		return diff.Norm()
	}
	return diff.Norm() / norm
}

// pathFromRoot is a best-effort block identifier for diagnostics: the
// permuted index ranges the leaf spans.
func (h *Matrix[T]) pathFromRoot() string {
	return blockRange(h.rows) + "×" + blockRange(h.cols)
}

func blockRange(n *cluster.Node) string {
	return "[" + strconv.Itoa(n.Begin()) + "," + strconv.Itoa(n.End()) + ")"
}

// coarsen merges Internal nodes whose children all became low-rank
// into a single low-rank leaf when that reduces storage within the
// recompression accuracy.
func (h *Matrix[T]) coarsen() error {
	if h == nil || h.kind != Internal {
		return nil
	}
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			if err := h.child[i][j].coarsen(); err != nil {
				return err
			}
		}
	}
	var childStorage int
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			c := h.child[i][j]
			if c == nil {
				continue
			}
			if c.kind != RkLeaf || c.rk == nil {
				return nil
			}
			cm, cn := c.Dims()
			childStorage += c.rk.Rank() * (cm + cn)
		}
	}
	m, n := h.Dims()
	merged := rk.Zero[T](m, n)
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			c := h.child[i][j]
			if c == nil {
				continue
			}
			merged.Append(embedRk(c.rk,
				c.rows.Begin()-h.rows.Begin(), c.cols.Begin()-h.cols.Begin(), m, n))
		}
	}
	if err := merged.Truncate(h.opts.Kernel, h.opts.Settings.RecompressionEpsilon); err != nil {
		return err
	}
	if merged.Rank()*(m+n) >= childStorage {
		return nil
	}
	h.kind = RkLeaf
	h.rk = merged
	h.child = [2][2]*Matrix[T]{}
	return nil
}

// embedRk pads a sub-block factor pair with zero rows so it spans the
// full m×n extent at the given offsets.
func embedRk[T scalar.Scalar](r *rk.Matrix[T], rowOff, colOff, m, n int) *rk.Matrix[T] {
	k := r.Rank()
	a := dense.New[T](m, k)
	b := dense.New[T](n, k)
	rm, rn := r.Dims()
	a.View(rowOff, 0, rm, k).Copy(r.A)
	b.View(colOff, 0, rn, k).Copy(r.B)
	return rk.New(a, b)
}
