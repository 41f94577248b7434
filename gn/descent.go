// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gn

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Descent turns the current residual/Jacobian pair into trial displacements
// of the parameter. Implementations own an opaque state value: the iteration
// threads it through unchanged and only replaces it via Update.
type Descent interface {
	// Init builds the strategy state from the initial pair.
	Init(vector []float64, op Operator) any
	// Update folds the last accepted displacement and the freshly
	// evaluated pair into the strategy state.
	Update(state any, prevDiff, vector []float64, op Operator) any
	// Diff maps a scalar step size to a trial displacement.
	// A failed linear solve is reported through the status.
	Diff(state any, size float64) ([]float64, Status)
	// PredictedReduction is the objective change the local model assigns
	// to a displacement, negative whenever the model predicts descent.
	PredictedReduction(state any, diff []float64) float64
}

// pairState is the memory shared by the built-in descents:
// the residual and Jacobian at the last accepted point.
type pairState struct {
	vector []float64
	op     Operator
}

// NewtonDescent is the unregularized Gauss-Newton direction: the trial
// displacement solves 𝚖𝚒𝚗‖𝐉𝛅 + 𝐫‖₂ and is scaled by the step size.
// The solve fails on a singular Jacobian, there is no damping to hide it.
type NewtonDescent struct{}

func (NewtonDescent) Init(vector []float64, op Operator) any {
	return pairState{vector: vector, op: op}
}

func (NewtonDescent) Update(_ any, _, vector []float64, op Operator) any {
	return pairState{vector: vector, op: op}
}

func (NewtonDescent) Diff(state any, size float64) ([]float64, Status) {
	st := state.(pairState)
	diff, ok := lstsqSolve(st.op, st.vector)
	if !ok {
		return nil, SingularLinearSolve
	}
	floats.Scale(-size, diff)
	return diff, Successful
}

func (NewtonDescent) PredictedReduction(state any, diff []float64) float64 {
	return predictReduction(state.(pairState), diff)
}

// lstsqSolve finds x with minimal ‖𝐉𝐱 - 𝐫‖₂.
func lstsqSolve(op Operator, r []float64) ([]float64, bool) {
	m, _ := op.Dims()
	var x mat.VecDense
	if err := x.SolveVec(operatorDense(op), mat.NewVecDense(m, r)); err != nil {
		return nil, false
	}
	return x.RawVector().Data, true
}

// predictReduction evaluates the quadratic model change for a displacement:
//
//	‖𝐫 + 𝐉𝛅‖₂² - ‖𝐫‖₂² = 2𝐫ᵀ𝐉𝛅 + ‖𝐉𝛅‖₂²
func predictReduction(st pairState, diff []float64) float64 {
	m, _ := st.op.Dims()
	jd := make([]float64, m)
	st.op.Apply(jd, diff)
	return two*floats.Dot(st.vector, jd) + floats.Dot(jd, jd)
}
