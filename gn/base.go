// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gn

const (
	zero = 0.0
	one  = 1.0
	two  = 2.0
	eps  = float64(7)/3 - float64(4)/3 - 1.
)

// Status reports how an iteration or a whole fit ended.
// Failures inside the iteration are carried as data and interpreted
// by the termination test, they are never raised.
type Status int

const (
	// Successful iteration proceeded normally or converged normally.
	Successful Status = iota
	// SingularLinearSolve the Jacobian-derived linear system is singular or ill-conditioned.
	SingularLinearSolve
	// SearchExhausted the step-acceptance loop reached its cap without accepting a trial.
	SearchExhausted
	// MaxStepsReached the number of outer steps exceeds the configured limit.
	MaxStepsReached
	// EvalPanic the residual or Jacobian callback panicked.
	EvalPanic
)

func (s Status) String() string {
	switch s {
	case Successful:
		return "successful"
	case SingularLinearSolve:
		return "singular linear solve"
	case SearchExhausted:
		return "search exhausted"
	case MaxStepsReached:
		return "max steps reached"
	case EvalPanic:
		return "evaluation panic"
	}
	return "unknown"
}
