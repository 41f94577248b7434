// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gn

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	// defaultLambda0 seeds the damping search of IndirectDual.
	defaultLambda0 = 1e-3
	// maxBracket bounds the doubling rounds while bracketing the radius.
	maxBracket = 32
	// maxBisect bounds the bisection rounds closing in on the radius.
	maxBisect = 24
	// radiusSlack accepts a step within 10% below the trust radius.
	radiusSlack = 0.1
)

// DirectDual is the directly regularized Levenberg-Marquardt direction.
// The scalar step size t plays the dual role of the damping strength
// through λ = 1/t: large steps approach the Gauss-Newton direction while
// small steps are heavily damped towards scaled steepest descent.
//
// The trial displacement solves the damped normal equations
//
//	(𝐉ᵀ𝐉 + λ𝐈)𝛅 = -𝐉ᵀ𝐫
//
// through the equivalent stacked least-squares system
//
//	⎡  𝐉  ⎤     ⎡ -𝐫 ⎤
//	⎣ √λ𝐈 ⎦ 𝛅 = ⎣  0 ⎦
//
// which keeps the conditioning of 𝐉 instead of squaring it.
type DirectDual struct{}

func (DirectDual) Init(vector []float64, op Operator) any {
	return pairState{vector: vector, op: op}
}

func (DirectDual) Update(_ any, _, vector []float64, op Operator) any {
	return pairState{vector: vector, op: op}
}

func (DirectDual) Diff(state any, size float64) ([]float64, Status) {
	st := state.(pairState)
	lambda := math.MaxFloat64
	if size > zero {
		lambda = one / size
	}
	return dampedSolve(st.op, st.vector, lambda)
}

func (DirectDual) PredictedReduction(state any, diff []float64) float64 {
	return predictReduction(state.(pairState), diff)
}

// IndirectDual is the Levenberg-Marquardt direction with the trust-region
// constraint honored directly: the step size t is a trust radius. The
// Gauss-Newton step is taken whenever it already fits inside the radius,
// otherwise the damping λ is raised until ‖𝛅(λ)‖₂ ≈ t. Since ‖𝛅(λ)‖₂
// decreases monotonically in λ the search brackets the radius by doubling
// from the seed and then bisects. An inexact match is fine, the acceptance
// test judges the step on reduction, not on radius accuracy.
type IndirectDual struct {
	// Lambda0 seeds the damping search (1e-3 when unset).
	Lambda0 float64
}

func (IndirectDual) Init(vector []float64, op Operator) any {
	return pairState{vector: vector, op: op}
}

func (IndirectDual) Update(_ any, _, vector []float64, op Operator) any {
	return pairState{vector: vector, op: op}
}

func (d IndirectDual) Diff(state any, size float64) ([]float64, Status) {
	st := state.(pairState)
	if gn, ok := lstsqSolve(st.op, st.vector); ok && floats.Norm(gn, 2) <= size {
		floats.Scale(-one, gn)
		return gn, Successful
	}

	lambda := d.Lambda0
	if lambda <= zero {
		lambda = defaultLambda0
	}
	diff, status := dampedSolve(st.op, st.vector, lambda)
	if status != Successful {
		return nil, status
	}

	lo := zero
	for k := 0; floats.Norm(diff, 2) > size && k < maxBracket; k++ {
		lo = lambda
		lambda *= two
		if diff, status = dampedSolve(st.op, st.vector, lambda); status != Successful {
			return nil, status
		}
	}

	hi := lambda
	for k := 0; k < maxBisect; k++ {
		nrm := floats.Norm(diff, 2)
		if nrm <= size && nrm >= (one-radiusSlack)*size {
			break
		}
		if nrm > size {
			lo = lambda
		} else {
			hi = lambda
		}
		lambda = (lo + hi) / two
		if diff, status = dampedSolve(st.op, st.vector, lambda); status != Successful {
			return nil, status
		}
	}
	return diff, Successful
}

func (IndirectDual) PredictedReduction(state any, diff []float64) float64 {
	return predictReduction(state.(pairState), diff)
}

// dampedSolve solves the stacked system [𝐉; √λ𝐈]𝛅 = [-𝐫; 0] directly.
func dampedSolve(op Operator, r []float64, lambda float64) ([]float64, Status) {
	m, n := op.Dims()
	aug := mat.NewDense(m+n, n, nil)
	aug.Slice(0, m, 0, n).(*mat.Dense).Copy(operatorDense(op))
	sq := math.Sqrt(lambda)
	for j := 0; j < n; j++ {
		aug.Set(m+j, j, sq)
	}
	rhs := mat.NewVecDense(m+n, nil)
	for i, ri := range r {
		rhs.SetVec(i, -ri)
	}
	var x mat.VecDense
	if err := x.SolveVec(aug, rhs); err != nil {
		return nil, SingularLinearSolve
	}
	return x.RawVector().Data, Successful
}
