// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gn

import (
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestNewtonDirection(t *testing.T) {

	op := &denseOperator{jac: mat.NewDense(2, 2, []float64{2, 0, 0, 4})}
	r := []float64{2, 4}

	d := NewtonDescent{}
	st := d.Init(r, op)

	diff, status := d.Diff(st, 1)
	switch {
	case status != Successful:
		t.Fatal("TestNewtonDirection: Solve Failed")
	case !almostEqual(diff[0], -1, 1e-12) || !almostEqual(diff[1], -1, 1e-12):
		t.Fatal("TestNewtonDirection: Wrong Full Step")
	}

	diff, status = d.Diff(st, 0.5)
	switch {
	case status != Successful:
		t.Fatal("TestNewtonDirection: Solve Failed")
	case !almostEqual(diff[0], -0.5, 1e-12) || !almostEqual(diff[1], -0.5, 1e-12):
		t.Fatal("TestNewtonDirection: Wrong Half Step")
	}
}

func TestNewtonTallSystem(t *testing.T) {

	// consistent overdetermined system, the least-squares solution is exact
	op := &denseOperator{jac: mat.NewDense(3, 2, []float64{1, 0, 0, 1, 1, 1})}
	r := []float64{1, 2, 3}

	d := NewtonDescent{}
	diff, status := d.Diff(d.Init(r, op), 1)
	switch {
	case status != Successful:
		t.Fatal("TestNewtonTallSystem: Solve Failed")
	case !almostEqual(diff[0], -1, 1e-9) || !almostEqual(diff[1], -2, 1e-9):
		t.Fatal("TestNewtonTallSystem: Wrong Step")
	}
}

func TestNewtonSingular(t *testing.T) {

	op := &denseOperator{jac: mat.NewDense(2, 2, []float64{1, 0, 2, 0})}
	r := []float64{1, 2}

	d := NewtonDescent{}
	diff, status := d.Diff(d.Init(r, op), 1)
	switch {
	case status != SingularLinearSolve:
		t.Fatal("TestNewtonSingular: Expect Singular Status")
	case diff != nil:
		t.Fatal("TestNewtonSingular: Expect No Step")
	}
}

func TestPredictedReduction(t *testing.T) {

	op := &denseOperator{jac: mat.NewDense(2, 2, []float64{1, 0, 0, 1})}
	r := []float64{1, 2}

	d := NewtonDescent{}
	st := d.Init(r, op)

	// ‖r+Jδ‖² - ‖r‖² = 0 - 5 for the exact Newton step
	if pred := d.PredictedReduction(st, []float64{-1, -2}); !almostEqual(pred, -5, 1e-12) {
		t.Fatal("TestPredictedReduction: Wrong Descent Model")
	}
	// a step against the residual predicts an increase
	if pred := d.PredictedReduction(st, []float64{1, 0}); !almostEqual(pred, 3, 1e-12) {
		t.Fatal("TestPredictedReduction: Wrong Ascent Model")
	}
}
