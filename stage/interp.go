/*
   Copyright 2025 The DIRPX Authors

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

package stage

import (
	"errors"
	"fmt"
	"math"
	"sync"

	multierror "github.com/hashicorp/go-multierror"

	"dirpx.dev/checkify/fault"
	"dirpx.dev/checkify/site"
)

// Run executes the program directly: every op, in declared order, with no
// folding and no elision. A failed check raises its site's *fault.Error;
// kernel misuse (a plain index out of bounds, an integer division by zero)
// raises an infrastructure error instead.
func (p *Program) Run(vals ...Value) ([]Value, error) {
	env, err := bindArgs(p.Args, p.nvals, vals)
	if err != nil {
		return nil, err
	}
	for i := range p.Ops {
		if err := stepDirect(&p.Ops[i], env); err != nil {
			return nil, err
		}
	}
	outs := make([]Value, len(p.Outs))
	for i, id := range p.Outs {
		outs[i] = env[id]
	}
	return outs, nil
}

// bindArgs validates the call arguments against the program's input specs
// and seeds the value environment.
func bindArgs(argSpecs []Spec, nvals int, vals []Value) ([]Value, error) {
	if len(vals) != len(argSpecs) {
		return nil, fmt.Errorf("stage: run: program takes %d arguments, got %d: %w", len(argSpecs), len(vals), ErrShape)
	}
	env := make([]Value, nvals)
	for i, v := range vals {
		if err := v.Validate(); err != nil {
			return nil, fmt.Errorf("stage: run: argument %d: %w", i, err)
		}
		if !v.Spec().Equal(argSpecs[i]) {
			return nil, fmt.Errorf("stage: run: argument %d is %s, want %s: %w", i, v.Spec(), argSpecs[i], ErrShape)
		}
		env[i] = v
	}
	return env, nil
}

func stepDirect(op *Op, env []Value) error {
	switch op.Kind {
	case OpCheck:
		if err := evalCheck(op, env); err != nil {
			return err
		}
		env[op.Res[0]] = env[op.Args[0]]
		return nil

	case OpCond:
		pred, _ := env[op.Args[0]].AsBool()
		body := op.Sub[1]
		if pred {
			body = op.Sub[0]
		}
		outs, err := body.Run(gatherArgs(env, op.Args[1:])...)
		if err != nil {
			return err
		}
		storeResults(op, env, outs)
		return nil

	case OpPmap:
		body := op.Sub[0]
		outs, err := runPmap(op, env, func(args []Value) ([]Value, error) {
			return body.Run(args...)
		})
		if err != nil {
			return err
		}
		storeResults(op, env, outs)
		return nil

	case OpCall:
		// A staged call goes through the compiler even under direct
		// execution; that is what makes checks inside it refuse.
		c, err := Compile(op.Sub[0])
		if err != nil {
			return err
		}
		outs, err := c.Run(gatherArgs(env, op.Args)...)
		if err != nil {
			return err
		}
		storeResults(op, env, outs)
		return nil
	}

	v, err := evalPure(op, env)
	if err != nil {
		return err
	}
	env[op.Res[0]] = v
	return nil
}

func gatherArgs(env []Value, ids []int) []Value {
	vals := make([]Value, len(ids))
	for i, id := range ids {
		vals[i] = env[id]
	}
	return vals
}

func storeResults(op *Op, env []Value, outs []Value) {
	for j, id := range op.Res {
		env[id] = outs[j]
	}
}

// evalCheck scans the predicate lanes in order and raises the first false
// one as the raise form of its site.
func evalCheck(op *Op, env []Value) error {
	pred := env[op.Args[0]]
	code := env[op.Args[1]]
	lanes := pred.Elems()
	for lane := 0; lane < lanes; lane++ {
		if bAt(pred, lane) {
			continue
		}
		c := int32(iAt(code, lane))
		st, ok := op.Sites.Lookup(c)
		if !ok {
			return fmt.Errorf("stage: check: code %d: %w", c, site.ErrCodeUnknown)
		}
		fe := st.Err(c)
		if pred.Rank() == 1 {
			fe = fe.WithWorker(lane)
		}
		return fe
	}
	return nil
}

// runPmap executes one worker per element of the leading axis, sharing
// scalar operands, and stacks the scalar worker outputs back into vectors.
// Worker errors are aggregated in worker order; a fault raised inside a
// worker is tagged with its index.
func runPmap(op *Op, env []Value, runBody func(args []Value) ([]Value, error)) ([]Value, error) {
	args := gatherArgs(env, op.Args)
	workers := -1
	for _, a := range args {
		if a.Rank() == 1 {
			workers = a.Elems()
			break
		}
	}
	if workers < 0 {
		return nil, fmt.Errorf("stage: pmap: no vector operand to replicate over: %w", ErrShape)
	}

	outsPer := make([][]Value, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			wargs := make([]Value, len(args))
			for i, a := range args {
				if a.Rank() == 1 {
					wargs[i] = elemValue(a, w)
				} else {
					wargs[i] = a
				}
			}
			outsPer[w], errs[w] = runBody(wargs)
		}(w)
	}
	wg.Wait()

	var merr *multierror.Error
	for w, err := range errs {
		if err == nil {
			continue
		}
		var fe *fault.Error
		if errors.As(err, &fe) {
			err = fe.WithWorker(w)
		} else {
			err = fmt.Errorf("stage: pmap: worker %d: %w", w, err)
		}
		merr = multierror.Append(merr, err)
	}
	if merr != nil {
		return nil, merr.ErrorOrNil()
	}

	stacked := make([]Value, len(op.Out))
	for j, os := range op.Out {
		switch os.DType {
		case DTBool:
			xs := make([]bool, workers)
			for w := 0; w < workers; w++ {
				xs[w] = outsPer[w][j].Data.(bool)
			}
			stacked[j] = Value{Tag: DTBool, Dims: os.Dims, Data: xs}
		case DTInt:
			xs := make([]int64, workers)
			for w := 0; w < workers; w++ {
				xs[w] = outsPer[w][j].Data.(int64)
			}
			stacked[j] = Value{Tag: DTInt, Dims: os.Dims, Data: xs}
		case DTFloat:
			xs := make([]float64, workers)
			for w := 0; w < workers; w++ {
				xs[w] = outsPer[w][j].Data.(float64)
			}
			stacked[j] = Value{Tag: DTFloat, Dims: os.Dims, Data: xs}
		}
	}
	return stacked, nil
}

// elemValue extracts element i of a vector as a scalar value.
func elemValue(v Value, i int) Value {
	switch v.Tag {
	case DTBool:
		return Bool(bAt(v, i))
	case DTInt:
		return Int(iAt(v, i))
	}
	return Float(fAt(v, i))
}

// evalPure evaluates one pure single-result op against the environment.
// It is shared by the direct evaluator, the compiled evaluator and the
// compiler's constant folder, so the three can never disagree on kernel
// semantics.
func evalPure(op *Op, env []Value) (Value, error) {
	out := op.Out[0]
	switch op.Kind {
	case OpConst:
		return op.Const, nil

	case OpNeg:
		x := env[op.Args[0]]
		if out.DType == DTInt {
			return makeInts(out, func(i int) int64 { return -iAt(x, i) }), nil
		}
		return makeFloats(out, func(i int) float64 { return -fAt(x, i) }), nil

	case OpSin:
		return mapFloat(out, env[op.Args[0]], math.Sin), nil
	case OpCos:
		return mapFloat(out, env[op.Args[0]], math.Cos), nil
	case OpLog:
		return mapFloat(out, env[op.Args[0]], math.Log), nil
	case OpSqrt:
		return mapFloat(out, env[op.Args[0]], math.Sqrt), nil

	case OpAdd, OpSub, OpMul:
		x, y := env[op.Args[0]], env[op.Args[1]]
		if out.DType == DTInt {
			return makeInts(out, func(i int) int64 {
				a, b := iAt(x, i), iAt(y, i)
				switch op.Kind {
				case OpAdd:
					return a + b
				case OpSub:
					return a - b
				}
				return a * b
			}), nil
		}
		return makeFloats(out, func(i int) float64 {
			a, b := fAt(x, i), fAt(y, i)
			switch op.Kind {
			case OpAdd:
				return a + b
			case OpSub:
				return a - b
			}
			return a * b
		}), nil

	case OpDiv:
		x, y := env[op.Args[0]], env[op.Args[1]]
		if out.DType == DTFloat {
			return makeFloats(out, func(i int) float64 { return fAt(x, i) / fAt(y, i) }), nil
		}
		n := out.Elems()
		xs := make([]int64, n)
		for i := 0; i < n; i++ {
			d := iAt(y, i)
			if d == 0 {
				return Value{}, fmt.Errorf("stage: div: %d / 0: %w", iAt(x, i), ErrDivZero)
			}
			xs[i] = iAt(x, i) / d
		}
		if out.Rank() == 0 {
			return Int(xs[0]), nil
		}
		return Value{Tag: DTInt, Dims: out.Dims, Data: xs}, nil

	case OpPow:
		x, y := env[op.Args[0]], env[op.Args[1]]
		return makeFloats(out, func(i int) float64 { return math.Pow(fAt(x, i), fAt(y, i)) }), nil

	case OpLt, OpLe, OpGt, OpGe:
		x, y := env[op.Args[0]], env[op.Args[1]]
		if x.Tag == DTInt {
			return makeBools(out, func(i int) bool { return intCmp(op.Kind, iAt(x, i), iAt(y, i)) }), nil
		}
		return makeBools(out, func(i int) bool { return floatCmp(op.Kind, fAt(x, i), fAt(y, i)) }), nil

	case OpEq, OpNe:
		x, y := env[op.Args[0]], env[op.Args[1]]
		eq := func(i int) bool {
			switch x.Tag {
			case DTBool:
				return bAt(x, i) == bAt(y, i)
			case DTInt:
				return iAt(x, i) == iAt(y, i)
			}
			return fAt(x, i) == fAt(y, i)
		}
		if op.Kind == OpEq {
			return makeBools(out, eq), nil
		}
		return makeBools(out, func(i int) bool { return !eq(i) }), nil

	case OpNot:
		x := env[op.Args[0]]
		return makeBools(out, func(i int) bool { return !bAt(x, i) }), nil

	case OpAnd:
		x, y := env[op.Args[0]], env[op.Args[1]]
		return makeBools(out, func(i int) bool { return bAt(x, i) && bAt(y, i) }), nil

	case OpOr:
		x, y := env[op.Args[0]], env[op.Args[1]]
		return makeBools(out, func(i int) bool { return bAt(x, i) || bAt(y, i) }), nil

	case OpAll:
		x := env[op.Args[0]]
		all := true
		for i := 0; i < x.Elems(); i++ {
			if !bAt(x, i) {
				all = false
				break
			}
		}
		return Bool(all), nil

	case OpSelect:
		p, t, f := env[op.Args[0]], env[op.Args[1]], env[op.Args[2]]
		switch out.DType {
		case DTBool:
			return makeBools(out, func(i int) bool {
				if bAt(p, i) {
					return bAt(t, i)
				}
				return bAt(f, i)
			}), nil
		case DTInt:
			return makeInts(out, func(i int) int64 {
				if bAt(p, i) {
					return iAt(t, i)
				}
				return iAt(f, i)
			}), nil
		}
		return makeFloats(out, func(i int) float64 {
			if bAt(p, i) {
				return fAt(t, i)
			}
			return fAt(f, i)
		}), nil

	case OpIsNaN:
		x := env[op.Args[0]]
		return makeBools(out, func(i int) bool { return math.IsNaN(fAt(x, i)) }), nil

	case OpIndex:
		x, i := env[op.Args[0]], env[op.Args[1]]
		idx := i.Data.(int64)
		n := int64(x.Elems())
		if idx < 0 || idx >= n {
			return Value{}, fmt.Errorf("stage: index %d out of range [0, %d): %w", idx, n, ErrBadIndex)
		}
		return elemValue(x, int(idx)), nil

	case OpIndexClamp:
		x, i := env[op.Args[0]], env[op.Args[1]]
		idx := i.Data.(int64)
		if idx < 0 {
			idx = 0
		}
		if max := int64(x.Elems()) - 1; idx > max {
			idx = max
		}
		return elemValue(x, int(idx)), nil
	}

	return Value{}, fmt.Errorf("stage: cannot evaluate op %s", op.Kind)
}

func intCmp(k OpKind, a, b int64) bool {
	switch k {
	case OpLt:
		return a < b
	case OpLe:
		return a <= b
	case OpGt:
		return a > b
	}
	return a >= b
}

func floatCmp(k OpKind, a, b float64) bool {
	switch k {
	case OpLt:
		return a < b
	case OpLe:
		return a <= b
	case OpGt:
		return a > b
	}
	return a >= b
}

func mapFloat(out Spec, x Value, fn func(float64) float64) Value {
	return makeFloats(out, func(i int) float64 { return fn(fAt(x, i)) })
}

func makeBools(out Spec, f func(int) bool) Value {
	if out.Rank() == 0 {
		return Bool(f(0))
	}
	xs := make([]bool, out.Elems())
	for i := range xs {
		xs[i] = f(i)
	}
	return Value{Tag: DTBool, Dims: out.Dims, Data: xs}
}

func makeInts(out Spec, f func(int) int64) Value {
	if out.Rank() == 0 {
		return Int(f(0))
	}
	xs := make([]int64, out.Elems())
	for i := range xs {
		xs[i] = f(i)
	}
	return Value{Tag: DTInt, Dims: out.Dims, Data: xs}
}

func makeFloats(out Spec, f func(int) float64) Value {
	if out.Rank() == 0 {
		return Float(f(0))
	}
	xs := make([]float64, out.Elems())
	for i := range xs {
		xs[i] = f(i)
	}
	return Value{Tag: DTFloat, Dims: out.Dims, Data: xs}
}
