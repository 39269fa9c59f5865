// Copyright ©2025 The Hmat Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package scalar defines the scalar types the engine is generic over
// and the handful of operations the recursive algebra needs from them.
package scalar

import (
	"math"
	"math/cmplx"
)

// Scalar is the set of element types supported by the engine.
type Scalar interface {
	float32 | float64 | complex64 | complex128
}

// Conj returns the complex conjugate of v. For real types it returns v.
func Conj[T Scalar](v T) T {
	switch x := any(v).(type) {
	case complex64:
		return any(complex(real(x), -imag(x))).(T)
	case complex128:
		return any(cmplx.Conj(x)).(T)
	}
	return v
}

// Abs returns the magnitude of v as a float64.
func Abs[T Scalar](v T) float64 {
	switch x := any(v).(type) {
	case float32:
		return math.Abs(float64(x))
	case float64:
		return math.Abs(x)
	case complex64:
		return cmplx.Abs(complex128(x))
	case complex128:
		return cmplx.Abs(x)
	}
	panic("scalar: unreachable")
}

// FromFloat converts f to T with zero imaginary part.
func FromFloat[T Scalar](f float64) T {
	var z T
	switch any(z).(type) {
	case float32:
		return any(float32(f)).(T)
	case float64:
		return any(f).(T)
	case complex64:
		return any(complex(float32(f), 0)).(T)
	case complex128:
		return any(complex(f, 0)).(T)
	}
	panic("scalar: unreachable")
}

// IsComplex reports whether T is a complex type.
func IsComplex[T Scalar]() bool {
	var z T
	switch any(z).(type) {
	case complex64, complex128:
		return true
	}
	return false
}

// Epsilon returns the machine epsilon of T's underlying real type.
func Epsilon[T Scalar]() float64 {
	var z T
	switch any(z).(type) {
	case float32, complex64:
		return float64(math.Nextafter32(1, 2) - 1)
	}
	return math.Nextafter(1, 2) - 1
}

// IsNaN reports whether v has a NaN component.
func IsNaN[T Scalar](v T) bool {
	switch x := any(v).(type) {
	case float32:
		return math.IsNaN(float64(x))
	case float64:
		return math.IsNaN(x)
	case complex64:
		return cmplx.IsNaN(complex128(x))
	case complex128:
		return cmplx.IsNaN(x)
	}
	return false
}
