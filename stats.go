// Copyright ©2025 The Hmat Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hmat

// Stats summarizes the storage of an assembled matrix.
type Stats struct {
	InternalNodes int
	DenseLeaves   int
	RkLeaves      int

	// DenseElements and RkElements count stored scalars; FullElements
	// is the size of the equivalent dense matrix.
	DenseElements int64
	RkElements    int64
	FullElements  int64

	// MaxRank and AvgRank describe the low-rank leaves.
	MaxRank int
	AvgRank float64

	// CompressionRatio is stored elements over FullElements.
	CompressionRatio float64
}

// Stats walks the tree and reports its storage.
func (h *Matrix[T]) Stats() Stats {
	var s Stats
	if h == nil {
		return s
	}
	m, n := h.Dims()
	s.FullElements = int64(m) * int64(n)
	var sumRank int64
	var walk func(x *Matrix[T])
	walk = func(x *Matrix[T]) {
		if x == nil {
			return
		}
		xm, xn := x.Dims()
		switch x.kind {
		case Internal:
			s.InternalNodes++
			for i := 0; i < 2; i++ {
				for j := 0; j < 2; j++ {
					walk(x.child[i][j])
				}
			}
		case DenseLeaf:
			s.DenseLeaves++
			s.DenseElements += int64(xm) * int64(xn)
		case RkLeaf:
			s.RkLeaves++
			k := 0
			if x.rk != nil {
				k = x.rk.Rank()
			}
			s.RkElements += int64(k) * int64(xm+xn)
			sumRank += int64(k)
			if k > s.MaxRank {
				s.MaxRank = k
			}
		}
	}
	walk(h)
	if s.RkLeaves > 0 {
		s.AvgRank = float64(sumRank) / float64(s.RkLeaves)
	}
	if s.FullElements > 0 {
		s.CompressionRatio = float64(s.DenseElements+s.RkElements) / float64(s.FullElements)
	}
	return s
}
