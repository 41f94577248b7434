// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gn

// fitDriver drives init/step/terminate for one fit.
type fitDriver struct {
	optimizer *Optimizer
	x         []float64
	state     State
	aux       any
}

// mainLoop executes the outer iteration until the termination test stops
// it or the configured step limit is reached.
func (d *fitDriver) mainLoop() Status {
	o := d.optimizer

	d.printInit()
	d.state = o.Init()

	for {
		stop, status := o.Terminate(d.x, d.state)
		if stop {
			d.printExit(status)
			return status
		}
		if d.state.step >= o.stop.MaxSteps {
			d.printExit(MaxStepsReached)
			return MaxStepsReached
		}
		d.x, d.state, d.aux = o.Step(d.x, d.state)
		d.printIter()
	}
}

// printInit logs the run header.
func (d *fitDriver) printInit() {
	spec := &d.optimizer.iterSpec
	if log := spec.logger; log.enable(LogLast) {
		log.log("RUNNING THE GAUSS-NEWTON CODE\n")
		log.log("           * * *\n")
		log.log("Machine precision = %10.3e\n", eps)
		log.log("M = %d    N = %d\n", spec.m, spec.n)
	}
}

// printIter logs the progress of one outer step.
func (d *fitDriver) printIter() {
	spec := &d.optimizer.iterSpec
	st := &d.state
	log := spec.logger
	if log.enable(LogEval) {
		log.log("At iterate %5d    f= %12.5e    |step|= %12.5e\n", st.step, st.fVal, spec.norm(st.diff))
	}
	if log.enable(LogTrace) {
		log.log("   next init = %9.3e    evals = %d\n", st.nextInit, st.neval)
	}
}

// printExit logs the final line of a fit.
func (d *fitDriver) printExit(status Status) {
	spec := &d.optimizer.iterSpec
	st := &d.state
	if log := spec.logger; log.enable(LogLast) {
		log.log("\nSTOP: %s\n", status)
		log.log("Final f= %.8e after %d steps (%d evaluations)\n", st.fVal, st.step, st.neval)
	}
}
