// Copyright ©2025 The Hmat Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package hmat implements hierarchical matrices: data-sparse
// representations of large dense matrices in which sub-blocks coupling
// spatially well-separated degrees of freedom are stored as low-rank
// factor pairs while near-field sub-blocks stay dense.
//
// The package builds a binary cluster tree over a point cloud, pairs
// row and column clusters under an admissibility condition into a block
// tree, assembles leaf blocks from a user element generator, and
// provides recursive block linear algebra on the result: matrix-matrix
// products, triangular solves, LU, LDLᵀ and LLᵀ factorizations, and
// inversion, descending the block tree and calling dense kernels only
// at leaves.
//
// Dense kernels are consumed through the kernel.Provider abstraction;
// the kernel/gonum subpackage supplies a float64 provider backed by
// gonum.org/v1/gonum.
package hmat
