// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gn

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Norm maps a vector to a non-negative scalar.
// The same norm is applied to descent internals and the convergence test.
type Norm func(x []float64) float64

// MaxNorm is the ℓ∞ norm 𝚖𝚊𝚡|xᵢ|.
func MaxNorm(x []float64) float64 {
	return floats.Norm(x, math.Inf(1))
}

// TwoNorm is the ℓ₂ norm √∑xᵢ².
func TwoNorm(x []float64) float64 {
	return floats.Norm(x, 2)
}

// sumSquares is the objective ‖𝐫‖₂² of a residual vector.
func sumSquares(r []float64) float64 {
	return floats.Dot(r, r)
}
