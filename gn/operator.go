// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gn

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/mat"

	"github.com/curioloop/leastsq/numdiff"
)

// Operator is the Jacobian 𝐉 of the residual at a point, exposed as an
// implicit linear map. The iteration only ever applies it, concrete
// descents may materialize it when their linear solve needs the matrix.
type Operator interface {
	// Dims returns the residual size m and the parameter dimension n.
	Dims() (m, n int)
	// Apply computes 𝐉𝐯 into dst, with len(v) = n and len(dst) = m.
	Apply(dst, v []float64)
	// ApplyTranspose computes 𝐉ᵀ𝐮 into dst, with len(u) = m and len(dst) = n.
	ApplyTranspose(dst, u []float64)
}

// denseOperator backs the operator with a row-major dense Jacobian.
type denseOperator struct {
	jac *mat.Dense
}

func (o *denseOperator) Dims() (m, n int) {
	return o.jac.Dims()
}

func (o *denseOperator) Apply(dst, v []float64) {
	m, n := o.jac.Dims()
	if len(dst) != m || len(v) != n {
		panic("bound check error")
	}
	out := mat.NewVecDense(m, dst)
	out.MulVec(o.jac, mat.NewVecDense(n, v))
}

func (o *denseOperator) ApplyTranspose(dst, u []float64) {
	m, n := o.jac.Dims()
	if len(dst) != n || len(u) != m {
		panic("bound check error")
	}
	out := mat.NewVecDense(n, dst)
	out.MulVec(o.jac.T(), mat.NewVecDense(m, u))
}

// onesOperator is the initial placeholder operator.
// Ones rather than zeros, a degenerate system 0𝐱 = 0 turns into NaN
// as soon as something solves against the placeholder.
func onesOperator(m, n int) Operator {
	return &denseOperator{jac: mat.NewDense(m, n, slices.Repeat([]float64{one}, m*n))}
}

// operatorDense materializes the operator for a direct linear solve.
func operatorDense(op Operator) *mat.Dense {
	if d, ok := op.(*denseOperator); ok {
		return d.jac
	}
	m, n := op.Dims()
	jac := mat.NewDense(m, n, nil)
	v := make([]float64, n)
	col := make([]float64, m)
	for j := 0; j < n; j++ {
		v[j] = one
		op.Apply(col, v)
		v[j] = zero
		jac.SetCol(j, col)
	}
	return jac
}

// evalResult is one full evaluation of the problem at a point.
type evalResult struct {
	vector []float64
	op     Operator
	f      float64
	aux    any
	status Status
	nev    int
}

// evaluate computes the residual vector, the Jacobian operator and the aux
// output at x. The Jacobian comes from the analytic callback when present,
// otherwise from finite differences. A panic raised by a user callback is
// folded into an EvalPanic status.
func (s *iterSpec) evaluate(x []float64) (ev evalResult) {
	ev.f = math.Inf(1)
	defer func() {
		if r := recover(); r != nil {
			ev = evalResult{f: math.Inf(1), status: EvalPanic, nev: ev.nev}
		}
	}()
	r := make([]float64, s.m)
	ev.nev++
	ev.aux = s.fn(x, r)
	ev.vector = r
	ev.f = sumSquares(r)

	jac := mat.NewDense(s.m, s.n, nil)
	raw := jac.RawMatrix().Data
	if s.jac != nil {
		s.jac(x, raw)
	} else {
		fd := numdiff.ApproxSpec{
			N: s.n, M: s.m,
			Method: s.diff,
			Object: func(x, y []float64) {
				ev.nev++
				s.fn(x, y)
			},
		}
		if err := fd.Diff(slices.Repeat(x, 1), raw); err != nil {
			panic(err)
		}
	}
	ev.op = &denseOperator{jac: jac}
	return
}

// evalResidual computes the objective and aux output at x without touching
// the Jacobian. Trial points of the step-acceptance loop go through here.
func (s *iterSpec) evalResidual(nev *int, x []float64) (f float64, aux any, status Status) {
	f = math.Inf(1)
	defer func() {
		if r := recover(); r != nil {
			f, aux, status = math.Inf(1), nil, EvalPanic
		}
	}()
	r := make([]float64, s.m)
	*nev++
	aux = s.fn(x, r)
	f = sumSquares(r)
	return
}
