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
	"fmt"

	"dirpx.dev/checkify/fault"
)

// Compiled is a staged program: constant-folded, dead-code-eliminated and
// ready to run repeatedly. It is immutable and safe for concurrent Run
// calls.
type Compiled struct {
	args  []Spec
	outs  []int
	nvals int
	ops   []compiledOp
}

type compiledOp struct {
	op   Op
	subs []*Compiled
}

// Compile stages a program.
//
// It refuses any program containing a check op — reachable or not — with an
// error wrapping ErrCannotStage: a staged program cannot halt mid-flight,
// so checks must first be rewritten into fault data by the checkify
// transform. Beyond that it folds constant subgraphs and drops ops whose
// results are unused. The surviving ops keep their declared order; staging
// never reorders, because fault priority is defined by that order.
//
// The input program is not modified and can be compiled again or run
// directly afterwards.
func Compile(p *Program) (*Compiled, error) {
	if op, ok := firstCheck(p); ok {
		if sites := op.Sites.Sites(); len(sites) > 0 && sites[0].Path != fault.NoPath {
			return nil, fmt.Errorf("%w: site %s", ErrCannotStage, sites[0].Path)
		}
		return nil, fmt.Errorf("%w: unnamed check", ErrCannotStage)
	}

	// 1) Fold: any pure op whose operands are all literals becomes a
	// literal itself. The shared kernel evaluates it, so folding cannot
	// diverge from execution; a kernel error (a static out-of-bounds
	// index, say) fails the compile.
	ops := make([]Op, len(p.Ops))
	copy(ops, p.Ops)
	consts := make(map[int]bool, len(ops))
	env := make([]Value, p.nvals)
	for i := range ops {
		op := &ops[i]
		switch op.Kind {
		case OpConst:
			consts[op.Res[0]] = true
			env[op.Res[0]] = op.Const
			continue
		case OpCond, OpPmap, OpCall:
			continue
		}
		foldable := true
		for _, a := range op.Args {
			if !consts[a] {
				foldable = false
				break
			}
		}
		if !foldable {
			continue
		}
		v, err := evalPure(op, env)
		if err != nil {
			return nil, fmt.Errorf("stage: compile: folding %s: %w", op.Kind, err)
		}
		ops[i] = Op{Kind: OpConst, Const: v, Res: op.Res, Out: op.Out}
		consts[op.Res[0]] = true
		env[op.Res[0]] = v
	}

	// 2) Sweep: liveness flows backward from the outputs. Ops whose every
	// result is dead are dropped; the rest keep their relative order.
	live := make([]bool, p.nvals)
	for _, id := range p.Outs {
		live[id] = true
	}
	for i := len(ops) - 1; i >= 0; i-- {
		op := &ops[i]
		keep := false
		for _, id := range op.Res {
			if live[id] {
				keep = true
				break
			}
		}
		if !keep {
			continue
		}
		for _, a := range op.Args {
			live[a] = true
		}
	}

	// 3) Assemble, compiling sub-programs of the survivors.
	c := &Compiled{
		args:  p.Args,
		outs:  p.Outs,
		nvals: p.nvals,
	}
	for i := range ops {
		op := ops[i]
		keep := false
		for _, id := range op.Res {
			if live[id] {
				keep = true
				break
			}
		}
		if !keep {
			continue
		}
		co := compiledOp{op: op}
		if len(op.Sub) > 0 {
			co.subs = make([]*Compiled, len(op.Sub))
			for j, sub := range op.Sub {
				sc, err := Compile(sub)
				if err != nil {
					return nil, err
				}
				co.subs[j] = sc
			}
		}
		c.ops = append(c.ops, co)
	}
	return c, nil
}

// Run executes the staged program.
func (c *Compiled) Run(vals ...Value) ([]Value, error) {
	env, err := bindArgs(c.args, c.nvals, vals)
	if err != nil {
		return nil, err
	}
	for i := range c.ops {
		co := &c.ops[i]
		op := &co.op
		switch op.Kind {
		case OpCond:
			pred, _ := env[op.Args[0]].AsBool()
			sub := co.subs[1]
			if pred {
				sub = co.subs[0]
			}
			outs, err := sub.Run(gatherArgs(env, op.Args[1:])...)
			if err != nil {
				return nil, err
			}
			storeResults(op, env, outs)

		case OpPmap:
			body := co.subs[0]
			outs, err := runPmap(op, env, func(args []Value) ([]Value, error) {
				return body.Run(args...)
			})
			if err != nil {
				return nil, err
			}
			storeResults(op, env, outs)

		case OpCall:
			outs, err := co.subs[0].Run(gatherArgs(env, op.Args)...)
			if err != nil {
				return nil, err
			}
			storeResults(op, env, outs)

		default:
			v, err := evalPure(op, env)
			if err != nil {
				return nil, err
			}
			env[op.Res[0]] = v
		}
	}
	outs := make([]Value, len(c.outs))
	for i, id := range c.outs {
		outs[i] = env[id]
	}
	return outs, nil
}

// NumOps returns the number of ops that survived staging at this level.
func (c *Compiled) NumOps() int { return len(c.ops) }

// String renders the staged program in the same text form as
// Program.String, with sub-programs shown in their staged form too.
func (c *Compiled) String() string {
	return c.program().String()
}

func (c *Compiled) program() *Program {
	ops := make([]Op, len(c.ops))
	for i := range c.ops {
		op := c.ops[i].op
		if len(c.ops[i].subs) > 0 {
			subs := make([]*Program, len(c.ops[i].subs))
			for j, sc := range c.ops[i].subs {
				subs[j] = sc.program()
			}
			op.Sub = subs
		}
		ops[i] = op
	}
	return &Program{Args: c.args, Ops: ops, Outs: c.outs}
}

func firstCheck(p *Program) (*Op, bool) {
	for i := range p.Ops {
		op := &p.Ops[i]
		if op.Kind == OpCheck {
			return op, true
		}
		for _, sub := range op.Sub {
			if c, ok := firstCheck(sub); ok {
				return c, true
			}
		}
	}
	return nil, false
}
