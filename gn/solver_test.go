// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gn

import (
	"math"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFreshState(t *testing.T) {

	for _, fn := range []Func{
		func(x, r []float64) any { r[0] = x[0]; return nil },
		func(x, r []float64) any { r[0] = math.Exp(x[0]); return "aux" },
	} {
		p := Problem{
			N: 1, M: 1,
			Fn:   fn,
			Stop: Termination{RTol: 1e-6, ATol: 1e-6, MaxSteps: 10},
		}
		s, err := p.New(nil)
		require.NoError(t, err)

		st := s.Init()
		require.True(t, math.IsInf(st.fVal, 1))
		require.True(t, math.IsInf(st.fPrev, 1))
		require.Equal(t, 0, st.step)
		require.Equal(t, 0, st.neval)
		require.Equal(t, Successful, st.status)
		require.Equal(t, 1.0, st.nextInit)
		require.Nil(t, st.aux)
		for _, d := range st.diff {
			require.True(t, math.IsInf(d, 1))
		}
		for _, v := range st.vector {
			require.Equal(t, 1.0, v)
		}
	}
}

func TestFirstStepNoMove(t *testing.T) {

	fn := func(x, r []float64) any {
		r[0] = x[0]*x[0] - 4
		return nil
	}
	p := Problem{
		N: 1, M: 1,
		Fn: fn, Jac: func(x, jac []float64) { jac[0] = 2 * x[0] },
		Stop:   Termination{RTol: 1e-6, ATol: 1e-6, MaxSteps: 10},
		Method: GaussNewton(),
	}
	s, err := p.New(nil)
	require.NoError(t, err)

	y0 := []float64{3}
	y1, s1, aux := s.Step(y0, s.Init())

	require.Nil(t, aux)
	require.Equal(t, []float64{3}, y1)
	require.Equal(t, 1, s1.step)
	require.Equal(t, 1, s1.neval)
	require.Equal(t, 25.0, s1.fVal)
	require.Equal(t, []float64{5}, s1.vector)
	require.Equal(t, []float64{0}, s1.diff)
	require.True(t, math.IsInf(s1.fPrev, 1))
}

func TestAuxDelay(t *testing.T) {

	fn := func(x, r []float64) any {
		r[0] = x[0] - 3
		return x[0] // aux reports where the residual was evaluated
	}
	p := Problem{
		N: 1, M: 1,
		Fn: fn, Jac: func(x, jac []float64) { jac[0] = 1 },
		Stop:   Termination{RTol: 1e-6, ATol: 1e-6, MaxSteps: 10},
		Method: GaussNewton(),
	}
	s, err := p.New(nil)
	require.NoError(t, err)

	y0 := []float64{0}
	s0 := s.Init()

	// nothing was evaluated before the first step
	y1, s1, a1 := s.Step(y0, s0)
	require.Nil(t, a1)

	// the first surfaced aux belongs to the initial point
	y2, s2, a2 := s.Step(y1, s1)
	require.Equal(t, 0.0, a2)
	require.Equal(t, 3.0, y2[0])

	// from then on the aux lags the parameter by one step
	_, _, a3 := s.Step(y2, s2)
	require.Equal(t, y2[0], a3)
}

func TestStepPurity(t *testing.T) {

	fn := func(x, r []float64) any {
		r[0] = math.Exp(x[0]) - 2
		return nil
	}
	p := Problem{
		N: 1, M: 1,
		Fn: fn, Jac: func(x, jac []float64) { jac[0] = math.Exp(x[0]) },
		Stop:   Termination{RTol: 1e-6, ATol: 1e-6, MaxSteps: 10},
		Method: LevenbergMarquardt(),
	}
	s, err := p.New(nil)
	require.NoError(t, err)

	y0 := []float64{0}
	y1, s1, _ := s.Step(y0, s.Init())

	snap := s1
	diff := slices.Repeat(s1.diff, 1)
	vector := slices.Repeat(s1.vector, 1)

	y2a, s2a, _ := s.Step(y1, s1)
	y2b, s2b, _ := s.Step(y1, s1)

	// inputs stay untouched
	require.Equal(t, []float64{0}, y1)
	require.Equal(t, snap.fVal, s1.fVal)
	require.Equal(t, snap.step, s1.step)
	require.Equal(t, diff, s1.diff)
	require.Equal(t, vector, s1.vector)

	// transitions are pure
	require.Equal(t, y2a, y2b)
	require.Equal(t, s2a, s2b)
}

func TestTerminateIdempotent(t *testing.T) {

	fn := func(x, r []float64) any {
		r[0] = x[0] - 3
		return nil
	}
	p := Problem{
		N: 1, M: 1,
		Fn: fn, Jac: func(x, jac []float64) { jac[0] = 1 },
		Stop:   Termination{RTol: 1e-6, ATol: 1e-6, MaxSteps: 10},
		Method: GaussNewton(),
	}
	s, err := p.New(nil)
	require.NoError(t, err)

	y := []float64{0}
	st := s.Init()
	for k := 0; k < 10; k++ {
		if stop, _ := s.Terminate(y, st); stop {
			break
		}
		y, st, _ = s.Step(y, st)
	}

	stop, status := s.Terminate(y, st)
	require.True(t, stop)
	require.Equal(t, Successful, status)

	for k := 0; k < 3; k++ {
		again, same := s.Terminate(y, st)
		require.True(t, again)
		require.Equal(t, status, same)
	}
}

func TestTerminateNaN(t *testing.T) {

	spec := &iterSpec{n: 2, stop: Termination{RTol: 1e-6}, norm: MaxNorm}

	// with ATol = 0 a parameter resting at zero under a zero step scales
	// to 0/0, the NaN must not hide the far-off sibling component
	st := State{
		diff:   []float64{1000, 0},
		fVal:   1,
		fPrev:  1,
		status: Successful,
		step:   2,
	}
	stop, status := spec.terminateState([]float64{5, 0}, st)
	require.False(t, stop)
	require.Equal(t, Successful, status)

	// a NaN objective change must not read as converged
	spec.stop.ATol = 1e-6
	st = State{
		diff:   []float64{0, 0},
		fVal:   math.NaN(),
		fPrev:  1,
		status: Successful,
		step:   2,
	}
	stop, status = spec.terminateState([]float64{5, 0}, st)
	require.False(t, stop)
	require.Equal(t, Successful, status)

	// finite values inside both tolerances still converge
	st = State{
		diff:   []float64{1e-9, 1e-9},
		fVal:   1,
		fPrev:  1,
		status: Successful,
		step:   2,
	}
	stop, status = spec.terminateState([]float64{5, 0}, st)
	require.True(t, stop)
	require.Equal(t, Successful, status)
}

func TestFailedStateFrozen(t *testing.T) {

	fn := func(x, r []float64) any {
		r[0], r[1] = x[0]-1, 2*(x[0]-1)
		return nil
	}
	jac := func(x, jac []float64) {
		jac[0], jac[1] = 1, 0
		jac[2], jac[3] = 2, 0
	}
	p := Problem{
		N: 2, M: 2,
		Fn: fn, Jac: jac,
		Stop:   Termination{RTol: 1e-6, ATol: 1e-6, MaxSteps: 10},
		Method: GaussNewton(),
	}
	s, err := p.New(nil)
	require.NoError(t, err)

	y0 := []float64{0, 0}
	y1, s1, _ := s.Step(y0, s.Init())
	y2, s2, _ := s.Step(y1, s1)
	require.Equal(t, SingularLinearSolve, s2.status)

	// a recorded failure forces termination
	stop, status := s.Terminate(y2, s2)
	require.True(t, stop)
	require.Equal(t, SingularLinearSolve, status)

	// and freezes the iteration
	y3, s3, _ := s.Step(y2, s2)
	require.Equal(t, y2, y3)
	require.Equal(t, s2, s3)
}
