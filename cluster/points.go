// Copyright ©2025 The Hmat Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cluster builds binary spatial partitions of degree-of-freedom
// point sets and provides the admissibility conditions used to pair
// row and column clusters into a block tree.
package cluster

import "math"

// Error is the panic payload used for precondition violations.
type Error struct{ string }

func (err Error) Error() string { return err.string }

var (
	// ErrDimension is the panic value for inconsistent coordinate data.
	ErrDimension = Error{"cluster: coordinate data does not match dimension"}
	// ErrRadii is the panic value for a radius slice of the wrong length.
	ErrRadii = Error{"cluster: radius data does not match point count"}
)

// Set is an ordered collection of points in ℝᵈ, optionally carrying a
// per-point influence radius. Index i refers to the original position
// of a degree of freedom; Tree establishes the permuted ordering.
type Set struct {
	dim    int
	coords []float64 // point i occupies coords[i*dim : (i+1)*dim]
	radii  []float64 // nil when absent
}

// NewSet wraps the flat coordinate slice as a point set of the given
// dimension. radii may be nil; when present it must hold one influence
// radius per point.
func NewSet(dim int, coords, radii []float64) *Set {
	if dim <= 0 || len(coords)%dim != 0 {
		panic(ErrDimension)
	}
	n := len(coords) / dim
	if radii != nil && len(radii) != n {
		panic(ErrRadii)
	}
	return &Set{dim: dim, coords: coords, radii: radii}
}

// Len returns the number of points.
func (s *Set) Len() int { return len(s.coords) / s.dim }

// Dim returns the spatial dimension.
func (s *Set) Dim() int { return s.dim }

// Coord returns the coordinates of point i as an aliasing slice.
func (s *Set) Coord(i int) []float64 {
	return s.coords[i*s.dim : (i+1)*s.dim]
}

// Radius returns the influence radius of point i, zero when the set
// carries none.
func (s *Set) Radius(i int) float64 {
	if s.radii == nil {
		return 0
	}
	return s.radii[i]
}

// HasRadii reports whether the set carries influence radii.
func (s *Set) HasRadii() bool { return s.radii != nil }

// Box is an axis-aligned bounding box.
type Box struct {
	Min, Max []float64
}

func emptyBox(dim int) Box {
	b := Box{Min: make([]float64, dim), Max: make([]float64, dim)}
	for a := 0; a < dim; a++ {
		b.Min[a] = math.Inf(1)
		b.Max[a] = math.Inf(-1)
	}
	return b
}

func (b *Box) extend(p []float64) {
	for a, v := range p {
		b.Min[a] = math.Min(b.Min[a], v)
		b.Max[a] = math.Max(b.Max[a], v)
	}
}

// Diameter returns the Euclidean length of the box diagonal.
func (b Box) Diameter() float64 {
	var s float64
	for a := range b.Min {
		d := b.Max[a] - b.Min[a]
		s += d * d
	}
	return math.Sqrt(s)
}

// Distance returns the Euclidean distance between two boxes, zero when
// they overlap.
func (b Box) Distance(o Box) float64 {
	var s float64
	for a := range b.Min {
		d := math.Max(b.Min[a]-o.Max[a], o.Min[a]-b.Max[a])
		if d > 0 {
			s += d * d
		}
	}
	return math.Sqrt(s)
}

// longestAxis returns the axis of largest extent.
func (b Box) longestAxis() int {
	axis, best := 0, b.Max[0]-b.Min[0]
	for a := 1; a < len(b.Min); a++ {
		if w := b.Max[a] - b.Min[a]; w > best {
			axis, best = a, w
		}
	}
	return axis
}
