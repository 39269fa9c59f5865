// Copyright ©2025 The Hmat Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dense implements the column-major scalar tile the
// hierarchical engine stores at dense leaves, together with the tile
// operations backed by a kernel.Provider and a column-pivoted modified
// Gram–Schmidt factorization.
package dense

import (
	"math"

	"github.com/openhmat/hmat/scalar"
)

// Error is the panic payload used for precondition violations.
type Error struct{ string }

func (err Error) Error() string { return err.string }

var (
	// ErrShape is the panic value for incompatible operand dimensions.
	ErrShape = Error{"dense: dimension mismatch"}
	// ErrIndexOutOfRange is the panic value for an invalid element index.
	ErrIndexOutOfRange = Error{"dense: index out of range"}
	// ErrNegativeDimension is the panic value for a negative size.
	ErrNegativeDimension = Error{"dense: negative dimension"}
	// ErrSquare is the panic value for an operation needing a square tile.
	ErrSquare = Error{"dense: matrix is not square"}
)

// Matrix is a column-major tile: element (i, j) of an r×c matrix lives
// at Data()[i+j*LD()], LD() ≥ r. A Matrix obtained from View aliases
// its parent's storage; all other constructors allocate.
type Matrix[T scalar.Scalar] struct {
	rows, cols int
	ld         int
	data       []T
}

// New returns a zeroed r×c tile with leading dimension r.
func New[T scalar.Scalar](r, c int) *Matrix[T] {
	if r < 0 || c < 0 {
		panic(ErrNegativeDimension)
	}
	ld := max(r, 1)
	return &Matrix[T]{rows: r, cols: c, ld: ld, data: make([]T, ld*c)}
}

// NewFromData wraps existing column-major storage. The slice must hold
// at least ld*(c-1)+r elements; it is aliased, not copied.
func NewFromData[T scalar.Scalar](r, c, ld int, data []T) *Matrix[T] {
	if r < 0 || c < 0 {
		panic(ErrNegativeDimension)
	}
	if ld < max(r, 1) || (c > 0 && len(data) < ld*(c-1)+r) {
		panic(ErrShape)
	}
	return &Matrix[T]{rows: r, cols: c, ld: ld, data: data}
}

// Dims returns the tile dimensions.
func (m *Matrix[T]) Dims() (r, c int) { return m.rows, m.cols }

// Rows returns the number of rows.
func (m *Matrix[T]) Rows() int { return m.rows }

// Cols returns the number of columns.
func (m *Matrix[T]) Cols() int { return m.cols }

// LD returns the leading dimension.
func (m *Matrix[T]) LD() int { return m.ld }

// Data returns the backing storage.
func (m *Matrix[T]) Data() []T { return m.data }

// At returns element (i, j).
func (m *Matrix[T]) At(i, j int) T {
	if uint(i) >= uint(m.rows) || uint(j) >= uint(m.cols) {
		panic(ErrIndexOutOfRange)
	}
	return m.data[i+j*m.ld]
}

// Set assigns element (i, j).
func (m *Matrix[T]) Set(i, j int, v T) {
	if uint(i) >= uint(m.rows) || uint(j) >= uint(m.cols) {
		panic(ErrIndexOutOfRange)
	}
	m.data[i+j*m.ld] = v
}

// View returns the r×c submatrix starting at (i, j), sharing storage
// with the receiver.
func (m *Matrix[T]) View(i, j, r, c int) *Matrix[T] {
	if r < 0 || c < 0 {
		panic(ErrNegativeDimension)
	}
	if i < 0 || j < 0 || i+r > m.rows || j+c > m.cols {
		panic(ErrIndexOutOfRange)
	}
	v := &Matrix[T]{rows: r, cols: c, ld: m.ld}
	if r == 0 || c == 0 {
		v.ld = max(r, 1)
		return v
	}
	off := i + j*m.ld
	v.data = m.data[off : off+(c-1)*m.ld+r]
	return v
}

// ColView returns column j as an aliasing slice of length Rows.
func (m *Matrix[T]) ColView(j int) []T {
	if uint(j) >= uint(m.cols) {
		panic(ErrIndexOutOfRange)
	}
	return m.data[j*m.ld : j*m.ld+m.rows]
}

// Row copies row i into dst, which must have length Cols.
func (m *Matrix[T]) Row(dst []T, i int) []T {
	if uint(i) >= uint(m.rows) {
		panic(ErrIndexOutOfRange)
	}
	if dst == nil {
		dst = make([]T, m.cols)
	}
	if len(dst) != m.cols {
		panic(ErrShape)
	}
	for j := range dst {
		dst[j] = m.data[i+j*m.ld]
	}
	return dst
}

// Zero sets every element to zero.
func (m *Matrix[T]) Zero() {
	for j := 0; j < m.cols; j++ {
		col := m.ColView(j)
		for i := range col {
			col[i] = 0
		}
	}
}

// Scale multiplies every element by alpha.
func (m *Matrix[T]) Scale(alpha T) {
	for j := 0; j < m.cols; j++ {
		col := m.ColView(j)
		for i := range col {
			col[i] *= alpha
		}
	}
}

// AddScaled performs the elementwise update m += alpha*x.
func (m *Matrix[T]) AddScaled(alpha T, x *Matrix[T]) {
	if x.rows != m.rows || x.cols != m.cols {
		panic(ErrShape)
	}
	for j := 0; j < m.cols; j++ {
		dst, src := m.ColView(j), x.ColView(j)
		for i := range dst {
			dst[i] += alpha * src[i]
		}
	}
}

// Copy assigns the elements of src, which must have the same shape.
func (m *Matrix[T]) Copy(src *Matrix[T]) {
	if src.rows != m.rows || src.cols != m.cols {
		panic(ErrShape)
	}
	for j := 0; j < m.cols; j++ {
		copy(m.ColView(j), src.ColView(j))
	}
}

// Clone returns a compact deep copy of the tile.
func (m *Matrix[T]) Clone() *Matrix[T] {
	n := New[T](m.rows, m.cols)
	n.Copy(m)
	return n
}

// CopyTransposed assigns srcᵀ to m; m must be c×r when src is r×c.
// Complex elements are conjugated.
func (m *Matrix[T]) CopyTransposed(src *Matrix[T]) {
	if src.rows != m.cols || src.cols != m.rows {
		panic(ErrShape)
	}
	for j := 0; j < m.cols; j++ {
		col := m.ColView(j)
		for i := range col {
			col[i] = scalar.Conj(src.data[j+i*src.ld])
		}
	}
}

// Norm returns the Frobenius norm of the tile.
func (m *Matrix[T]) Norm() float64 {
	var s float64
	for j := 0; j < m.cols; j++ {
		col := m.ColView(j)
		for _, v := range col {
			a := scalar.Abs(v)
			s += a * a
		}
	}
	return math.Sqrt(s)
}

// MaxAbs returns the position and magnitude of the largest element.
// For an empty tile it returns (-1, -1, 0).
func (m *Matrix[T]) MaxAbs() (i, j int, v float64) {
	i, j = -1, -1
	for jj := 0; jj < m.cols; jj++ {
		col := m.ColView(jj)
		for ii, e := range col {
			if a := scalar.Abs(e); a > v {
				i, j, v = ii, jj, a
			}
		}
	}
	return i, j, v
}

// HasNaN reports whether any element has a NaN component.
func (m *Matrix[T]) HasNaN() bool {
	for j := 0; j < m.cols; j++ {
		for _, v := range m.ColView(j) {
			if scalar.IsNaN(v) {
				return true
			}
		}
	}
	return false
}
