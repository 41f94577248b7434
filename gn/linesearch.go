// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gn

// LineProblem is the one-dimensional sub-problem a StepSearch minimizes:
// the objective along the descent direction as a function of the scalar
// step size. The closures close over the current outer state.
type LineProblem struct {
	// F0 is the reference objective at the base point.
	// It is only meaningful from the second accepted step on.
	F0 float64
	// ComputeF0 asks the search to establish the reference itself
	// with one controlled evaluation at the base point.
	ComputeF0 bool
	// Try maps a step size to the trial objective, the displacement
	// that produced it and the aux output at the trial point.
	Try func(size float64) (f float64, diff []float64, aux any, status Status)
	// AtBase evaluates the objective at the unmoved base point.
	AtBase func() (f float64, status Status)
	// Predict is the descent model's predicted objective change
	// for a displacement, negative when the model expects descent.
	Predict func(diff []float64) float64
}

// SearchResult is the outcome of one step-acceptance run.
type SearchResult struct {
	F        float64   // objective at the accepted trial point
	Diff     []float64 // accepted displacement
	Aux      any       // aux output at the accepted trial point
	NextInit float64   // step size suggestion for the next run
	Status   Status
}

// StepSearch resolves how far to move along the descent direction.
// A search never raises: it runs at most limit trials and reports
// failures through the result status.
type StepSearch interface {
	// FirstInit picks the step size guess for the earliest iterations,
	// before any accepted run produced a suggestion.
	FirstInit(vector []float64, op Operator) float64
	// Search runs the bounded acceptance loop.
	Search(p *LineProblem, init float64, limit int) SearchResult
}

// FixedStep accepts a single trial at a constant step size.
// With Rate 1 this is the classical Gauss-Newton full step.
type FixedStep struct {
	// Rate is the constant step size (1 when unset).
	Rate float64
}

func (s FixedStep) rate() float64 {
	if s.Rate <= zero {
		return one
	}
	return s.Rate
}

func (s FixedStep) FirstInit(vector []float64, op Operator) float64 {
	return s.rate()
}

func (s FixedStep) Search(p *LineProblem, init float64, limit int) SearchResult {
	f, diff, aux, status := p.Try(init)
	return SearchResult{F: f, Diff: diff, Aux: aux, NextInit: init, Status: status}
}

const (
	// trial steps recovering at least this share of the predicted
	// reduction grow the next initial radius
	highCutoff = 0.99
	growFactor = 3.5
)

// ClassicalTrustRegion judges trial steps by comparing the actual objective
// change f - f₀ against the change predicted by the descent model.
//
// A trial recovering at least BacktrackSlope of the predicted reduction is
// accepted, otherwise the radius shrinks by DecreaseFactor and the next
// trial runs. An almost exact model fit grows the radius suggested for the
// next outer iteration by 3.5. When the model predicts no descent the test
// falls back to plain objective improvement.
type ClassicalTrustRegion struct {
	// BacktrackSlope is the least acceptable share of the predicted reduction (0.1 when unset).
	BacktrackSlope float64
	// DecreaseFactor shrinks the radius after a rejected trial (0.5 when unset).
	DecreaseFactor float64
}

func (s ClassicalTrustRegion) slope() float64 {
	if s.BacktrackSlope <= zero {
		return 0.1
	}
	return s.BacktrackSlope
}

func (s ClassicalTrustRegion) decrease() float64 {
	if s.DecreaseFactor <= zero {
		return 0.5
	}
	return s.DecreaseFactor
}

func (s ClassicalTrustRegion) FirstInit(vector []float64, op Operator) float64 {
	return one
}

func (s ClassicalTrustRegion) Search(p *LineProblem, init float64, limit int) SearchResult {
	f0 := p.F0
	if p.ComputeF0 {
		var status Status
		if f0, status = p.AtBase(); status != Successful {
			return SearchResult{F: f0, NextInit: init, Status: status}
		}
	}
	size := init
	for k := 0; k < limit; k++ {
		f, diff, aux, status := p.Try(size)
		if status != Successful {
			return SearchResult{F: f, Diff: diff, Aux: aux, NextInit: size, Status: status}
		}
		pred := p.Predict(diff)
		var accept, grow bool
		if pred < zero {
			accept = f <= f0+s.slope()*pred
			grow = f <= f0+highCutoff*pred
		} else {
			accept = f < f0
		}
		if accept {
			next := size
			if grow {
				next = size * growFactor
			}
			return SearchResult{F: f, Diff: diff, Aux: aux, NextInit: next, Status: Successful}
		}
		size *= s.decrease()
	}
	return SearchResult{F: f0, NextInit: size, Status: SearchExhausted}
}
