// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gn

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
)

// maxSearchSteps caps the step-acceptance loop of a single outer step.
const maxSearchSteps = 100

// State carries one outer Gauss-Newton iteration to the next.
//
// Every transition produces a fresh value and earlier states stay untouched,
// so batches of independent fits are safe to drive concurrently as long as
// each goroutine threads its own state.
//
// # Iteration
//
// With the pair (𝐫ₖ, 𝐉ₖ) evaluated at the accepted point 𝐱ₖ, one outer step
//   - asks the descent strategy for a trial displacement 𝛅(t) of the scalar step size t
//   - resolves t with a bounded step-acceptance loop over 𝒇(𝐱ₖ+𝛅(t)), where 𝒇 = ‖𝐫‖₂²
//   - moves to 𝐱ₖ₊₁ = 𝐱ₖ + 𝛅 and evaluates the pair (𝐫ₖ₊₁, 𝐉ₖ₊₁) there
//   - folds the new pair into the descent memory
//
// The very first call moves nothing: it only performs the first informative
// evaluation at the starting point. The placeholder pair installed by init
// never reaches a linear solve.
//
// # Delayed aux output
//
// The acceptance loop already evaluates the residual at the point that
// becomes the next call's input. Its objective value and aux output are
// taken over directly rather than recomputed alongside the Jacobian, so the
// aux surfaced to the caller lags the parameter by exactly one call: the
// call at step k returns the aux recorded while finishing step k-1.
//
// # Failures
//
// A failed linear solve or an exhausted acceptance loop never raises. The
// status is recorded in the state, the parameter keeps its last accepted
// value and the termination test surfaces the failure. A state holding a
// failure does not iterate further.
//
// # Reference
//
// Jorge J. Moré: "The Levenberg-Marquardt algorithm: Implementation and theory".
// Numerical Analysis, Lecture Notes in Mathematics 630, 1978
type State struct {
	// memory owned by the descent strategy
	descent any
	// residual evaluated at the accepted point
	vector []float64
	// Jacobian at the same point as vector, never updated independently
	op Operator
	// displacement that produced the current pair
	diff []float64
	// failure carried as data, Successful unless an inner stage failed
	status Status
	// objective at the accepted point
	fVal float64
	// objective at the previously accepted point
	fPrev float64
	// step size hint carried into the next acceptance run
	nextInit float64
	// aux output lagging the parameter by one step
	aux any
	// outer step counter
	step int
	// residual evaluations spent so far
	neval int
}

// fail keeps the iteration where it stands and only records the failure.
func (st State) fail(status Status, nev int) State {
	ns := st
	ns.status = status
	ns.step++
	ns.neval += nev
	return ns
}

// initState builds the starting state. No user evaluation happens here:
// the pair is filled with ones so that nothing degenerates into a 0𝐱 = 0
// solve before the first real evaluation replaces it.
func (s *iterSpec) initState() State {
	vector := slices.Repeat([]float64{one}, s.m)
	op := onesOperator(s.m, s.n)
	return State{
		descent:  s.descent.Init(vector, op),
		vector:   vector,
		op:       op,
		diff:     slices.Repeat([]float64{math.Inf(1)}, s.n),
		status:   Successful,
		fVal:     math.Inf(1),
		fPrev:    math.Inf(1),
		nextInit: one,
		step:     0,
	}
}

// stepState advances the iteration by one outer step and returns the moved
// parameter, the successor state and the delayed aux output.
func (s *iterSpec) stepState(y []float64, st State) ([]float64, State, any) {
	if len(y) != s.n {
		panic("x dimension not match spec")
	}

	if st.status != Successful {
		return y, st, st.aux
	}

	if st.step == 0 {
		ev := s.evaluate(y)
		if ev.status != Successful {
			return y, st.fail(ev.status, ev.nev), st.aux
		}
		ns := State{
			descent:  s.descent.Update(st.descent, st.diff, ev.vector, ev.op),
			vector:   ev.vector,
			op:       ev.op,
			diff:     make([]float64, s.n),
			status:   Successful,
			fVal:     ev.f,
			fPrev:    st.fVal,
			nextInit: st.nextInit,
			aux:      ev.aux,
			step:     1,
			neval:    st.neval + ev.nev,
		}
		return y, ns, st.aux
	}

	nev := 0
	prob := &LineProblem{
		// the reference objective becomes trustworthy only after the
		// first real move, until then the search establishes it itself
		F0:        math.Inf(1),
		ComputeF0: st.step == 1,
		Try: func(size float64) (float64, []float64, any, Status) {
			diff, status := s.descent.Diff(st.descent, size)
			if status != Successful {
				return math.Inf(1), nil, nil, status
			}
			trial := slices.Repeat(y, 1)
			floats.Add(trial, diff)
			f, aux, status := s.evalResidual(&nev, trial)
			return f, diff, aux, status
		},
		AtBase: func() (float64, Status) {
			f, _, status := s.evalResidual(&nev, y)
			return f, status
		},
		Predict: func(diff []float64) float64 {
			return s.descent.PredictedReduction(st.descent, diff)
		},
	}
	if st.step > 1 {
		prob.F0 = st.fVal
	}

	init := st.nextInit
	if st.step <= 1 {
		init = s.search.FirstInit(st.vector, st.op)
	}

	res := s.search.Search(prob, init, maxSearchSteps)
	if res.Status != Successful {
		return y, st.fail(res.Status, nev), st.aux
	}

	yNew := slices.Repeat(y, 1)
	floats.Add(yNew, res.Diff)
	ev := s.evaluate(yNew)
	if ev.status != Successful {
		return y, st.fail(ev.status, nev+ev.nev), st.aux
	}

	ns := State{
		descent:  s.descent.Update(st.descent, st.diff, ev.vector, ev.op),
		vector:   ev.vector,
		op:       ev.op,
		diff:     res.Diff,
		status:   Successful,
		fVal:     res.F,
		fPrev:    st.fVal,
		nextInit: res.NextInit,
		aux:      res.Aux,
		step:     st.step + 1,
		neval:    st.neval + nev + ev.nev,
	}
	return yNew, ns, st.aux
}

// terminateState evaluates the dual tolerance test. Convergence needs at
// least two completed steps, the scaled last displacement and the objective
// change must both fall below their tolerance simultaneously. A recorded
// failure forces termination no matter what the test says.
func (s *iterSpec) terminateState(y []float64, st State) (bool, Status) {
	if len(y) != s.n {
		panic("x dimension not match spec")
	}
	if st.status != Successful {
		return true, st.status
	}
	if st.step < 2 {
		return false, Successful
	}
	scaled := make([]float64, s.n)
	for i, d := range st.diff {
		scaled[i] = d / (s.stop.ATol + s.stop.RTol*math.Abs(y[i]))
	}
	// both tests demand strictly less than one, a NaN scale or objective
	// compares as not converged and the iteration runs on
	if !(s.norm(scaled) < one) {
		return false, Successful
	}
	fScale := s.stop.RTol*math.Abs(st.fPrev) + s.stop.ATol
	if !(math.Abs(st.fVal-st.fPrev)/fScale < one) {
		return false, Successful
	}
	return true, Successful
}
