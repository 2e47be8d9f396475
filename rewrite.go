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

package checkify

import (
	"fmt"

	"dirpx.dev/checkify/apis"
	"dirpx.dev/checkify/fault"
	"dirpx.dev/checkify/site"
	"dirpx.dev/checkify/stage"
)

// accPair is the fault accumulator threaded through a rewrite: one occurred
// flag and one site code, as staged values. Scalar along ordinary control
// flow; one lane per worker after a parallel region.
type accPair struct {
	occ  stage.Node
	code stage.Node
}

// rewrite replays p into a new program in which no check op remains.
//
// The replay walks p.Ops in declared order. Pure ops are re-emitted as they
// are; checks become merges into the accumulator; indexing and division are
// guarded and replaced by their total forms; float-producing numeric ops get
// a trailing NaN guard. The rewritten program returns the accumulator's two
// halves followed by p's outputs, and its codes index the returned table.
//
// Sites enter the table in replay order, which is declared program order
// with branch bodies visited depth-first, true branch first.
func rewrite(p *stage.Program, pol apis.Policy, logf func(string, ...interface{})) (*stage.Program, site.Table, error) {
	tb := site.NewBuilder()
	var replayErr error
	fn := func(b *stage.Builder, args []stage.Node) []stage.Node {
		b.Logf = logf
		acc := accPair{
			occ:  b.Const(stage.Bool(false)),
			code: b.Const(stage.Int(0)),
		}
		outs, acc, err := replayInto(b, p, args, acc, pol, tb)
		if err != nil {
			replayErr = err
			return nil
		}
		return append([]stage.Node{acc.occ, acc.code}, outs...)
	}
	rp, err := stage.Trace(fn, p.Args)
	if replayErr != nil {
		return nil, site.Table{}, fmt.Errorf("checkify: rewriting: %w", replayErr)
	}
	if err != nil {
		return nil, site.Table{}, fmt.Errorf("checkify: rewriting: %w", err)
	}
	return rp, tb.Table(), nil
}

// replayInto replays every op of p against b, threading the accumulator,
// and returns the nodes holding p's outputs plus the final accumulator.
func replayInto(b *stage.Builder, p *stage.Program, args []stage.Node, acc accPair, pol apis.Policy, tb *site.Builder) ([]stage.Node, accPair, error) {
	env := make(map[int]stage.Node, len(p.Args)+len(p.Ops))
	for i, a := range args {
		env[i] = a
	}
	for i := range p.Ops {
		if err := b.Err(); err != nil {
			return nil, acc, err
		}
		var err error
		acc, err = replayOp(b, &p.Ops[i], env, acc, pol, tb)
		if err != nil {
			return nil, acc, err
		}
	}
	if err := b.Err(); err != nil {
		return nil, acc, err
	}
	outs := make([]stage.Node, len(p.Outs))
	for i, id := range p.Outs {
		outs[i] = env[id]
	}
	return outs, acc, nil
}

// replayOp replays one op, defining its result nodes in env and returning
// the possibly advanced accumulator.
func replayOp(b *stage.Builder, op *stage.Op, env map[int]stage.Node, acc accPair, pol apis.Policy, tb *site.Builder) (accPair, error) {
	switch op.Kind {
	case stage.OpConst:
		env[op.Res[0]] = b.Const(op.Const)
		return acc, nil
	case stage.OpCheck:
		return replayCheck(b, op, env, acc, pol, tb)
	case stage.OpIndex:
		return replayIndex(b, op, env, acc, pol, tb)
	case stage.OpDiv:
		return replayDiv(b, op, env, acc, pol, tb)
	case stage.OpCond:
		return replayCond(b, op, env, acc, pol, tb)
	case stage.OpPmap:
		return replayPmap(b, op, env, acc, pol, tb)
	case stage.OpCall:
		return replayCall(b, op, env, acc, pol, tb)
	}

	res := emitPure(b, op.Kind, gather(env, op.Args))
	if err := b.Err(); err != nil {
		return acc, err
	}
	if res.Spec().DType == stage.DTInvalid {
		return acc, fmt.Errorf("op %s has no replay rule", op.Kind)
	}
	env[op.Res[0]] = res
	if nanGuarded[op.Kind] {
		return guardNaN(b, op.Kind, res, acc, pol, tb)
	}
	return acc, nil
}

// nanGuarded is the set of numeric primitives that get a trailing NaN guard
// when they produce floats. Division is absent only because it has its own
// replay rule, which applies the same guard after the zero-denominator one.
var nanGuarded = map[stage.OpKind]bool{
	stage.OpSin:  true,
	stage.OpCos:  true,
	stage.OpLog:  true,
	stage.OpSqrt: true,
	stage.OpAdd:  true,
	stage.OpSub:  true,
	stage.OpMul:  true,
	stage.OpPow:  true,
}

// emitPure re-emits one effect-free op. Returns the zero node for kinds that
// need a dedicated replay rule.
func emitPure(b *stage.Builder, k stage.OpKind, args []stage.Node) stage.Node {
	switch k {
	case stage.OpNeg:
		return b.Neg(args[0])
	case stage.OpSin:
		return b.Sin(args[0])
	case stage.OpCos:
		return b.Cos(args[0])
	case stage.OpLog:
		return b.Log(args[0])
	case stage.OpSqrt:
		return b.Sqrt(args[0])
	case stage.OpAdd:
		return b.Add(args[0], args[1])
	case stage.OpSub:
		return b.Sub(args[0], args[1])
	case stage.OpMul:
		return b.Mul(args[0], args[1])
	case stage.OpPow:
		return b.Pow(args[0], args[1])
	case stage.OpLt:
		return b.Lt(args[0], args[1])
	case stage.OpLe:
		return b.Le(args[0], args[1])
	case stage.OpGt:
		return b.Gt(args[0], args[1])
	case stage.OpGe:
		return b.Ge(args[0], args[1])
	case stage.OpEq:
		return b.Eq(args[0], args[1])
	case stage.OpNe:
		return b.Ne(args[0], args[1])
	case stage.OpNot:
		return b.Not(args[0])
	case stage.OpAnd:
		return b.And(args[0], args[1])
	case stage.OpOr:
		return b.Or(args[0], args[1])
	case stage.OpAll:
		return b.All(args[0])
	case stage.OpSelect:
		return b.Select(args[0], args[1], args[2])
	case stage.OpIsNaN:
		return b.IsNaN(args[0])
	case stage.OpIndexClamp:
		return b.IndexClamp(args[0], args[1])
	}
	return stage.Node{}
}

// replayCheck rewrites a check op into an accumulator merge.
//
// The check's result is its predicate, passed through. A plain check or
// assert consults the policy and is dropped entirely when its site is
// disarmed; a re-assertion is never dropped, since its data already passed
// an arming decision when it was captured. Codes are remapped by the offset
// at which the op's table lands in the union table.
func replayCheck(b *stage.Builder, op *stage.Op, env map[int]stage.Node, acc accPair, pol apis.Policy, tb *site.Builder) (accPair, error) {
	pred := env[op.Args[0]]
	env[op.Res[0]] = pred
	if !op.Reassert {
		if sites := op.Sites.Sites(); len(sites) > 0 && !armed(pol, sites[0].Class, sites[0].Path) {
			return acc, nil
		}
	}
	off := tb.Append(op.Sites)
	code := b.Add(env[op.Args[1]], b.Const(stage.Int(int64(off))))
	return mergeAcc(b, acc, pred, code), nil
}

// replayIndex guards a plain indexing op and replaces it with the clamping
// form, so a faulting lane still produces a value. An empty operand cannot
// be clamped into, so indexing into a zero-length vector is replayed as-is
// and keeps its runtime error.
func replayIndex(b *stage.Builder, op *stage.Op, env map[int]stage.Node, acc accPair, pol apis.Policy, tb *site.Builder) (accPair, error) {
	x, i := env[op.Args[0]], env[op.Args[1]]
	xs := x.Spec()
	if !armed(pol, fault.OOB, "oob.index") || xs.Elems() < 1 {
		env[op.Res[0]] = b.Index(x, i)
		return acc, nil
	}
	n := xs.Dims[0]
	st, err := site.New(fault.OOB, "oob.index", "out-of-bounds indexing of vector of length %d", n)
	if err != nil {
		return acc, err
	}
	code, err := tb.Add(st)
	if err != nil {
		return acc, err
	}
	inb := b.And(
		b.Ge(i, b.Const(stage.Int(0))),
		b.Lt(i, b.Const(stage.Int(int64(n)))),
	)
	acc = mergeAcc(b, acc, inb, b.Const(stage.Int(int64(code))))
	env[op.Res[0]] = b.IndexClamp(x, i)
	return acc, nil
}

// replayDiv guards a division's denominator, divides by a safe substitute on
// faulting lanes, and then applies the ordinary NaN guard to the result.
func replayDiv(b *stage.Builder, op *stage.Op, env map[int]stage.Node, acc accPair, pol apis.Policy, tb *site.Builder) (accPair, error) {
	x, y := env[op.Args[0]], env[op.Args[1]]
	if armed(pol, fault.Div, "div.div") {
		st, err := site.New(fault.Div, "div.div", "division by zero")
		if err != nil {
			return acc, err
		}
		code, err := tb.Add(st)
		if err != nil {
			return acc, err
		}
		var zero, one stage.Node
		if y.Spec().DType == stage.DTInt {
			zero, one = b.Const(stage.Int(0)), b.Const(stage.Int(1))
		} else {
			zero, one = b.Const(stage.Float(0)), b.Const(stage.Float(1))
		}
		nz := b.Ne(y, zero)
		acc = mergeAcc(b, acc, b.All(nz), b.Const(stage.Int(int64(code))))
		y = b.Select(nz, y, one)
	}
	res := b.Div(x, y)
	if err := b.Err(); err != nil {
		return acc, err
	}
	env[op.Res[0]] = res
	return guardNaN(b, stage.OpDiv, res, acc, pol, tb)
}

// replayCond rewrites both branch bodies with the incoming accumulator
// spliced in as two extra leading operands and returned as two extra leading
// outputs, so branch selection selects the accumulator too. Both branches
// register their sites; only the taken branch contributes content.
func replayCond(b *stage.Builder, op *stage.Op, env map[int]stage.Node, acc accPair, pol apis.Policy, tb *site.Builder) (accPair, error) {
	var replayErr error
	branch := func(body *stage.Program) stage.Func {
		return func(bb *stage.Builder, bargs []stage.Node) []stage.Node {
			in := accPair{occ: bargs[0], code: bargs[1]}
			outs, out, err := replayInto(bb, body, bargs[2:], in, pol, tb)
			if err != nil {
				if replayErr == nil {
					replayErr = err
				}
				return nil
			}
			return append([]stage.Node{out.occ, out.code}, outs...)
		}
	}
	xs := append([]stage.Node{acc.occ, acc.code}, gather(env, op.Args[1:])...)
	outs := b.Cond(env[op.Args[0]], branch(op.Sub[0]), branch(op.Sub[1]), xs...)
	if replayErr != nil {
		return acc, replayErr
	}
	if err := b.Err(); err != nil {
		return acc, err
	}
	acc = accPair{occ: outs[0], code: outs[1]}
	for j, id := range op.Res {
		env[id] = outs[2+j]
	}
	return acc, nil
}

// replayPmap rewrites the worker body once, broadcasting the incoming
// accumulator to every worker. The per-worker accumulators come back stacked
// as vectors: the fault lanes. Workers never merge with each other.
func replayPmap(b *stage.Builder, op *stage.Op, env map[int]stage.Node, acc accPair, pol apis.Policy, tb *site.Builder) (accPair, error) {
	var replayErr error
	body := op.Sub[0]
	bodyFn := func(bb *stage.Builder, bargs []stage.Node) []stage.Node {
		in := accPair{occ: bargs[0], code: bargs[1]}
		outs, out, err := replayInto(bb, body, bargs[2:], in, pol, tb)
		if err != nil {
			if replayErr == nil {
				replayErr = err
			}
			return nil
		}
		return append([]stage.Node{out.occ, out.code}, outs...)
	}
	xs := append([]stage.Node{acc.occ, acc.code}, gather(env, op.Args)...)
	outs := stage.Pmap(bodyFn)(b, xs)
	if replayErr != nil {
		return acc, replayErr
	}
	if err := b.Err(); err != nil {
		return acc, err
	}
	acc = accPair{occ: outs[0], code: outs[1]}
	for j, id := range op.Res {
		env[id] = outs[2+j]
	}
	return acc, nil
}

// replayCall rewrites a staged call's body and re-stages it. The rewritten
// body carries no check ops, so the call compiles unconditionally.
func replayCall(b *stage.Builder, op *stage.Op, env map[int]stage.Node, acc accPair, pol apis.Policy, tb *site.Builder) (accPair, error) {
	var replayErr error
	body := op.Sub[0]
	bodyFn := func(bb *stage.Builder, bargs []stage.Node) []stage.Node {
		in := accPair{occ: bargs[0], code: bargs[1]}
		outs, out, err := replayInto(bb, body, bargs[2:], in, pol, tb)
		if err != nil {
			if replayErr == nil {
				replayErr = err
			}
			return nil
		}
		return append([]stage.Node{out.occ, out.code}, outs...)
	}
	xs := append([]stage.Node{acc.occ, acc.code}, gather(env, op.Args)...)
	outs := stage.Jit(bodyFn)(b, xs)
	if replayErr != nil {
		return acc, replayErr
	}
	if err := b.Err(); err != nil {
		return acc, err
	}
	acc = accPair{occ: outs[0], code: outs[1]}
	for j, id := range op.Res {
		env[id] = outs[2+j]
	}
	return acc, nil
}

// guardNaN merges a NaN guard over a float result into the accumulator.
// Non-float results and disarmed sites pass through untouched.
func guardNaN(b *stage.Builder, k stage.OpKind, res stage.Node, acc accPair, pol apis.Policy, tb *site.Builder) (accPair, error) {
	if res.Spec().DType != stage.DTFloat {
		return acc, nil
	}
	path := "nan." + k.String()
	if !armed(pol, fault.NaN, fault.Path(path)) {
		return acc, nil
	}
	st, err := site.New(fault.NaN, path, "nan generated by primitive %s", k)
	if err != nil {
		return acc, err
	}
	code, err := tb.Add(st)
	if err != nil {
		return acc, err
	}
	ok := b.All(b.Not(b.IsNaN(res)))
	return mergeAcc(b, acc, ok, b.Const(stage.Int(int64(code)))), nil
}

// mergeAcc folds one check outcome into the accumulator: the occurred flag
// picks up pred's failure, and the code keeps its current value on lanes
// that had already faulted. This is what makes the first fault in declared
// order win.
func mergeAcc(b *stage.Builder, acc accPair, pred, code stage.Node) accPair {
	return accPair{
		occ:  b.Or(acc.occ, b.Not(pred)),
		code: b.Select(acc.occ, acc.code, code),
	}
}

// armed resolves one arming decision. A nil policy arms everything.
func armed(pol apis.Policy, c fault.Class, p fault.Path) bool {
	if pol == nil {
		return true
	}
	return pol.Armed(c, p)
}

// gather resolves value ids to their replayed nodes.
func gather(env map[int]stage.Node, ids []int) []stage.Node {
	nodes := make([]stage.Node, len(ids))
	for i, id := range ids {
		nodes[i] = env[id]
	}
	return nodes
}
