// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gn

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"slices"

	"github.com/curioloop/leastsq/numdiff"
)

// LogLevel controls the frequency and type of logger output
type LogLevel int

const (
	// LogNoop no output is generated (level < 0)
	LogNoop LogLevel = -1
	// LogLast print only one line when the iteration stops
	LogLast LogLevel = 0
	// LogEval print also f and the step norm at every outer step
	LogEval LogLevel = 1
	// LogTrace print details of every outer step
	LogTrace LogLevel = 99
)

// Logger handles logging output for the optimizer.
// Note the writer must be thread-safe.
type Logger struct {
	Level LogLevel
	Msg   io.Writer // Writer to output log messages.
}

func (l *Logger) enable(level LogLevel) bool {
	return l.Level >= level
}

func (l *Logger) log(format string, a ...any) {
	if len(a) > 0 {
		_, _ = fmt.Fprintf(l.Msg, format, a...)
	} else {
		_, _ = fmt.Fprint(l.Msg, format)
	}
}

// Func evaluates the residual vector 𝐫(𝐱) into r, with len(x) = n and
// len(r) = m. The returned aux value is surfaced to the caller delayed
// by one outer step, see State.
type Func func(x, r []float64) (aux any)

// JacFunc evaluates the m×n Jacobian 𝜕𝐫ᵢ/𝜕𝐱ⱼ into jac in row-major order.
type JacFunc func(x, jac []float64)

// Termination specifies the stopping criteria for the iteration.
type Termination struct {
	// The iteration stop when the scaled parameter step and the objective
	// change both satisfy:
	//   ‖ 𝛅ᵢ / (𝚊𝚝𝚘𝚕 + 𝚛𝚝𝚘𝚕·|𝐱ᵢ|) ‖ < 1
	//   |𝒇ₖ - 𝒇ₖ₋₁| / (𝚛𝚝𝚘𝚕·|𝒇ₖ₋₁| + 𝚊𝚝𝚘𝚕) < 1
	RTol, ATol float64
	// The iteration stop when the number of outer steps exceeds limit.
	MaxSteps int
}

// Method selects the strategy pair driving the iteration.
type Method struct {
	Descent Descent    // Trial displacement strategy
	Search  StepSearch // Step-acceptance strategy
	Norm    Norm       // Norm for the convergence test
}

// GaussNewton is the plain Gauss-Newton method: the unregularized Newton
// direction taken with a full fixed step. Fast near a well-posed solution,
// fails on singular Jacobians.
func GaussNewton() Method {
	return Method{Descent: NewtonDescent{}, Search: FixedStep{Rate: one}, Norm: MaxNorm}
}

// LevenbergMarquardt is the directly regularized Gauss-Newton method:
// damped trial steps judged by a classical trust region.
func LevenbergMarquardt() Method {
	return Method{Descent: DirectDual{}, Search: ClassicalTrustRegion{}, Norm: MaxNorm}
}

// IndirectLevenbergMarquardt resolves the damping against the trust radius
// instead of coupling them directly. lambda0 seeds the damping search.
func IndirectLevenbergMarquardt(lambda0 float64) Method {
	return Method{Descent: IndirectDual{Lambda0: lambda0}, Search: ClassicalTrustRegion{}, Norm: MaxNorm}
}

// Problem specifies a nonlinear least-squares problem: minimize the sum of
// squared residuals ‖𝐫(𝐱)‖₂² over the n-dimensional parameter 𝐱, where 𝐫
// is an m-vector.
type Problem struct {
	N      int            // The parameter dimension
	M      int            // The residual size
	Fn     Func           // Residual function
	Jac    JacFunc        // Optional analytic Jacobian
	Diff   numdiff.Method // Finite-difference scheme when Jac is absent
	Stop   Termination    // Stop condition
	Method Method         // Solver strategies, GaussNewton when empty
}

// New creates a new optimizer for given problem.
func (p *Problem) New(logger *Logger) (optimizer *Optimizer, err error) {

	if logger == nil {
		logger = new(Logger)
		logger.Level = LogNoop
	}
	if logger.Msg == nil {
		logger.Msg = os.Stdout
	}

	n, m := p.N, p.M
	stop := p.Stop

	method := p.Method
	if method.Descent == nil {
		method.Descent = NewtonDescent{}
	}
	if method.Search == nil {
		method.Search = FixedStep{Rate: one}
	}
	if method.Norm == nil {
		method.Norm = MaxNorm
	}

	switch {
	case n <= 0:
		err = errors.New("problem dimension must greater than 0")
	case m <= 0:
		err = errors.New("residual size must greater than 0")
	case p.Fn == nil:
		err = errors.New("residual function is required")
	case p.Diff != numdiff.Forward && p.Diff != numdiff.Central:
		err = errors.New("unknown difference method")
	case stop.MaxSteps <= 0:
		err = errors.New("max steps must greater than 0")
	case math.IsNaN(stop.RTol) || stop.RTol < zero:
		err = errors.New("relative tolerance must not less than 0")
	case math.IsNaN(stop.ATol) || stop.ATol < zero:
		err = errors.New("absolute tolerance must not less than 0")
	case stop.RTol == zero && stop.ATol == zero:
		err = errors.New("either tolerance must greater than 0")
	}

	if err != nil {
		return
	}

	optimizer = &Optimizer{
		iterSpec{
			n: n, m: m,
			fn: p.Fn, jac: p.Jac,
			diff:    p.Diff,
			stop:    stop,
			descent: method.Descent,
			search:  method.Search,
			norm:    method.Norm,
			logger:  *logger,
		},
	}
	return
}

// iterSpec is the validated, immutable problem specification.
type iterSpec struct {
	n, m    int
	fn      Func
	jac     JacFunc
	diff    numdiff.Method
	stop    Termination
	descent Descent
	search  StepSearch
	norm    Norm
	logger  Logger
}

// Optimizer implemented with the Gauss-Newton family of outer iterations.
// One optimizer may be shared by many goroutines: all per-fit data lives
// in State values and in the x slices the caller threads through.
type Optimizer struct {
	iterSpec
}

// Init produces the starting state for a fit.
// No residual evaluation happens here, the first Step call performs it.
func (o *Optimizer) Init() State {
	return o.initState()
}

// Step advances the iteration by one outer step. It returns the possibly
// moved parameter, the successor state and the aux output delayed by one
// step. The input state and parameter stay untouched.
func (o *Optimizer) Step(y []float64, s State) ([]float64, State, any) {
	return o.stepState(y, s)
}

// Terminate reports whether the iteration should stop together with the
// final status. It only reads the state, repeated calls on the same state
// return the same answer.
func (o *Optimizer) Terminate(y []float64, s State) (bool, Status) {
	return o.terminateState(y, s)
}

// Result contains the final result of the optimization process.
type Result struct {
	OK      bool      // Whether the optimization was converged.
	F       float64   // Final sum of squared residuals.
	X       []float64 // Final solution.
	Aux     any       // Aux output of the final residual evaluation.
	Summary           // Optimization summary.
}

// Summary contains a summary of the optimization process.
type Summary struct {
	Status   Status // Final status after optimization.
	NumSteps int    // Number of outer steps performed, the first one only evaluates the starting point.
	NumEval  int    // Number of residual evaluations performed.
}

// Fit runs the iteration from the initial guess x until the termination
// test stops it or the step limit is hit.
func (o *Optimizer) Fit(x []float64) *Result {

	if len(x) != o.n {
		panic("initial x dimension not match spec")
	}

	driver := fitDriver{
		optimizer: o,
		x:         slices.Repeat(x, 1),
	}

	status := driver.mainLoop()
	st := &driver.state
	return &Result{
		OK: status == Successful,
		X:  driver.x, F: st.fVal, Aux: st.aux,
		Summary: Summary{
			Status:   status,
			NumSteps: st.step,
			NumEval:  st.neval,
		},
	}
}
