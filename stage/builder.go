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
	"dirpx.dev/checkify/site"
)

// Node is a symbolic value inside one trace. The zero Node is invalid;
// nodes are only produced by a Builder and are bound to it — passing a node
// into a different trace is a recorded error, not silent misbehavior.
type Node struct {
	b    *Builder
	id   int
	spec Spec
}

// Spec returns the static type of the node. The zero Node returns the zero
// Spec.
func (n Node) Spec() Spec { return n.spec }

// Builder records ops while a function is being traced. All methods follow
// the same discipline: the first failure (bad dtype, mismatched shapes, a
// node from another trace) is recorded and every later call becomes a
// no-op, so user functions can be written straight-line and the error is
// reported once, by Trace.
type Builder struct {
	// Logf is an optional debug hook. When nil, nothing is logged. The
	// engine itself only logs structural events (check registration,
	// branch and replica tracing), never per-element data.
	Logf func(format string, v ...interface{})

	prog *Program
	next int
	err  error
}

// Err reports the first trace error recorded so far, or nil. Callers that
// drive a builder from outside a Func, such as program transformations, use
// it to stop replaying once an emission has been refused.
func (b *Builder) Err() error {
	return b.err
}

func (b *Builder) logf(format string, v ...interface{}) {
	if b.Logf != nil {
		b.Logf(format, v...)
	}
}

// fail records the first error and returns an invalid node.
func (b *Builder) fail(format string, args ...interface{}) Node {
	if b.err == nil {
		b.err = fmt.Errorf(format, args...)
	}
	return Node{}
}

// operand resolves a node for use as an argument of the named primitive.
func (b *Builder) operand(n Node, what string) (int, Spec, bool) {
	if b.err != nil {
		return 0, Spec{}, false
	}
	if n.b == nil {
		b.fail("stage: %s: operand is the zero Node: %w", what, ErrShape)
		return 0, Spec{}, false
	}
	if n.b != b {
		b.fail("stage: %s: operand belongs to a different trace: %w", what, ErrShape)
		return 0, Spec{}, false
	}
	return n.id, n.spec, true
}

// emit appends the op, assigns result ids and returns the result nodes.
func (b *Builder) emit(op Op) []Node {
	if b.err != nil {
		return nil
	}
	nodes := make([]Node, len(op.Out))
	ids := make([]int, len(op.Out))
	for i, s := range op.Out {
		ids[i] = b.next
		b.next++
		nodes[i] = Node{b: b, id: ids[i], spec: s}
	}
	op.Res = ids
	b.prog.Ops = append(b.prog.Ops, op)
	return nodes
}

func (b *Builder) emit1(op Op) Node {
	nodes := b.emit(op)
	if len(nodes) == 0 {
		return Node{}
	}
	return nodes[0]
}

// broadcastDims resolves the result dims of an elementwise primitive:
// scalars broadcast against vectors, vectors must agree on length.
func broadcastDims(x, y Spec) ([]int, bool) {
	switch {
	case x.Rank() == 0 && y.Rank() == 0:
		return nil, true
	case x.Rank() == 0:
		return y.Dims, true
	case y.Rank() == 0:
		return x.Dims, true
	case x.Dims[0] == y.Dims[0]:
		return x.Dims, true
	}
	return nil, false
}

// Const materializes a literal. The value is validated here so that a
// malformed hand-built Value fails the trace instead of the run.
func (b *Builder) Const(v Value) Node {
	if b.err != nil {
		return Node{}
	}
	if err := v.Validate(); err != nil {
		return b.fail("stage: const: %w", err)
	}
	return b.emit1(Op{Kind: OpConst, Const: v, Out: []Spec{v.Spec()}})
}

// unary numeric primitives

// Neg negates an int or float operand elementwise.
func (b *Builder) Neg(x Node) Node {
	id, s, ok := b.operand(x, "neg")
	if !ok {
		return Node{}
	}
	if s.DType != DTInt && s.DType != DTFloat {
		return b.fail("stage: neg(%s): operand must be numeric: %w", s, ErrShape)
	}
	return b.emit1(Op{Kind: OpNeg, Args: []int{id}, Out: []Spec{s}})
}

// Sin applies math.Sin elementwise.
func (b *Builder) Sin(x Node) Node { return b.unaryFloat(OpSin, x) }

// Cos applies math.Cos elementwise.
func (b *Builder) Cos(x Node) Node { return b.unaryFloat(OpCos, x) }

// Log applies math.Log elementwise. Negative operands yield NaN, exactly
// as the IEEE kernel does; pair with a check to surface them.
func (b *Builder) Log(x Node) Node { return b.unaryFloat(OpLog, x) }

// Sqrt applies math.Sqrt elementwise. Negative operands yield NaN.
func (b *Builder) Sqrt(x Node) Node { return b.unaryFloat(OpSqrt, x) }

func (b *Builder) unaryFloat(k OpKind, x Node) Node {
	id, s, ok := b.operand(x, k.String())
	if !ok {
		return Node{}
	}
	if s.DType != DTFloat {
		return b.fail("stage: %s(%s): operand must be float: %w", k, s, ErrShape)
	}
	return b.emit1(Op{Kind: k, Args: []int{id}, Out: []Spec{s}})
}

// binary numeric primitives

// Add adds two numeric operands elementwise, broadcasting scalars.
func (b *Builder) Add(x, y Node) Node { return b.arith(OpAdd, x, y) }

// Sub subtracts y from x elementwise, broadcasting scalars.
func (b *Builder) Sub(x, y Node) Node { return b.arith(OpSub, x, y) }

// Mul multiplies two numeric operands elementwise, broadcasting scalars.
func (b *Builder) Mul(x, y Node) Node { return b.arith(OpMul, x, y) }

// Div divides x by y elementwise. Float division follows IEEE-754 (a zero
// divisor yields Inf or NaN); integer division by zero is a runtime error.
func (b *Builder) Div(x, y Node) Node { return b.arith(OpDiv, x, y) }

func (b *Builder) arith(k OpKind, x, y Node) Node {
	xid, xs, ok := b.operand(x, k.String())
	if !ok {
		return Node{}
	}
	yid, ys, ok := b.operand(y, k.String())
	if !ok {
		return Node{}
	}
	if xs.DType != ys.DType || (xs.DType != DTInt && xs.DType != DTFloat) {
		return b.fail("stage: %s(%s, %s): operands must share a numeric dtype: %w", k, xs, ys, ErrShape)
	}
	dims, ok := broadcastDims(xs, ys)
	if !ok {
		return b.fail("stage: %s(%s, %s): vector lengths differ: %w", k, xs, ys, ErrShape)
	}
	return b.emit1(Op{Kind: k, Args: []int{xid, yid}, Out: []Spec{{DType: xs.DType, Dims: dims}}})
}

// Pow raises x to the power y elementwise. Both operands must be float.
func (b *Builder) Pow(x, y Node) Node {
	xid, xs, ok := b.operand(x, "pow")
	if !ok {
		return Node{}
	}
	yid, ys, ok := b.operand(y, "pow")
	if !ok {
		return Node{}
	}
	if xs.DType != DTFloat || ys.DType != DTFloat {
		return b.fail("stage: pow(%s, %s): operands must be float: %w", xs, ys, ErrShape)
	}
	dims, ok := broadcastDims(xs, ys)
	if !ok {
		return b.fail("stage: pow(%s, %s): vector lengths differ: %w", xs, ys, ErrShape)
	}
	return b.emit1(Op{Kind: OpPow, Args: []int{xid, yid}, Out: []Spec{{DType: DTFloat, Dims: dims}}})
}

// comparisons

// Lt compares x < y elementwise on numeric operands.
func (b *Builder) Lt(x, y Node) Node { return b.compare(OpLt, x, y) }

// Le compares x <= y elementwise on numeric operands.
func (b *Builder) Le(x, y Node) Node { return b.compare(OpLe, x, y) }

// Gt compares x > y elementwise on numeric operands.
func (b *Builder) Gt(x, y Node) Node { return b.compare(OpGt, x, y) }

// Ge compares x >= y elementwise on numeric operands.
func (b *Builder) Ge(x, y Node) Node { return b.compare(OpGe, x, y) }

func (b *Builder) compare(k OpKind, x, y Node) Node {
	xid, xs, ok := b.operand(x, k.String())
	if !ok {
		return Node{}
	}
	yid, ys, ok := b.operand(y, k.String())
	if !ok {
		return Node{}
	}
	if xs.DType != ys.DType || (xs.DType != DTInt && xs.DType != DTFloat) {
		return b.fail("stage: %s(%s, %s): operands must share a numeric dtype: %w", k, xs, ys, ErrShape)
	}
	dims, ok := broadcastDims(xs, ys)
	if !ok {
		return b.fail("stage: %s(%s, %s): vector lengths differ: %w", k, xs, ys, ErrShape)
	}
	return b.emit1(Op{Kind: k, Args: []int{xid, yid}, Out: []Spec{{DType: DTBool, Dims: dims}}})
}

// Eq compares two operands of the same dtype elementwise. NaN compares
// unequal to everything, including itself.
func (b *Builder) Eq(x, y Node) Node { return b.eqne(OpEq, x, y) }

// Ne is the elementwise negation of Eq.
func (b *Builder) Ne(x, y Node) Node { return b.eqne(OpNe, x, y) }

func (b *Builder) eqne(k OpKind, x, y Node) Node {
	xid, xs, ok := b.operand(x, k.String())
	if !ok {
		return Node{}
	}
	yid, ys, ok := b.operand(y, k.String())
	if !ok {
		return Node{}
	}
	if xs.DType != ys.DType {
		return b.fail("stage: %s(%s, %s): operands must share a dtype: %w", k, xs, ys, ErrShape)
	}
	dims, ok := broadcastDims(xs, ys)
	if !ok {
		return b.fail("stage: %s(%s, %s): vector lengths differ: %w", k, xs, ys, ErrShape)
	}
	return b.emit1(Op{Kind: k, Args: []int{xid, yid}, Out: []Spec{{DType: DTBool, Dims: dims}}})
}

// boolean primitives

// Not negates a boolean operand elementwise.
func (b *Builder) Not(x Node) Node {
	id, s, ok := b.operand(x, "not")
	if !ok {
		return Node{}
	}
	if s.DType != DTBool {
		return b.fail("stage: not(%s): operand must be bool: %w", s, ErrShape)
	}
	return b.emit1(Op{Kind: OpNot, Args: []int{id}, Out: []Spec{s}})
}

// And conjoins two boolean operands elementwise, broadcasting scalars.
func (b *Builder) And(x, y Node) Node { return b.boolBin(OpAnd, x, y) }

// Or disjoins two boolean operands elementwise, broadcasting scalars.
func (b *Builder) Or(x, y Node) Node { return b.boolBin(OpOr, x, y) }

func (b *Builder) boolBin(k OpKind, x, y Node) Node {
	xid, xs, ok := b.operand(x, k.String())
	if !ok {
		return Node{}
	}
	yid, ys, ok := b.operand(y, k.String())
	if !ok {
		return Node{}
	}
	if xs.DType != DTBool || ys.DType != DTBool {
		return b.fail("stage: %s(%s, %s): operands must be bool: %w", k, xs, ys, ErrShape)
	}
	dims, ok := broadcastDims(xs, ys)
	if !ok {
		return b.fail("stage: %s(%s, %s): vector lengths differ: %w", k, xs, ys, ErrShape)
	}
	return b.emit1(Op{Kind: k, Args: []int{xid, yid}, Out: []Spec{{DType: DTBool, Dims: dims}}})
}

// All reduces a boolean operand to a scalar that is true iff every element
// is true. A scalar operand passes through unchanged in value.
func (b *Builder) All(x Node) Node {
	id, s, ok := b.operand(x, "all")
	if !ok {
		return Node{}
	}
	if s.DType != DTBool {
		return b.fail("stage: all(%s): operand must be bool: %w", s, ErrShape)
	}
	return b.emit1(Op{Kind: OpAll, Args: []int{id}, Out: []Spec{ScalarSpec(DTBool)}})
}

// Select picks elementwise: pred true takes onTrue, otherwise onFalse.
// Scalars broadcast in any position.
func (b *Builder) Select(pred, onTrue, onFalse Node) Node {
	pid, ps, ok := b.operand(pred, "select")
	if !ok {
		return Node{}
	}
	tid, ts, ok := b.operand(onTrue, "select")
	if !ok {
		return Node{}
	}
	fid, fs, ok := b.operand(onFalse, "select")
	if !ok {
		return Node{}
	}
	if ps.DType != DTBool {
		return b.fail("stage: select(%s, ...): predicate must be bool: %w", ps, ErrShape)
	}
	if ts.DType != fs.DType {
		return b.fail("stage: select(..., %s, %s): branches must share a dtype: %w", ts, fs, ErrShape)
	}
	dims, ok := broadcastDims(ps, ts)
	if !ok {
		return b.fail("stage: select(%s, %s, ...): vector lengths differ: %w", ps, ts, ErrShape)
	}
	dims2, ok := broadcastDims(Spec{DType: ts.DType, Dims: dims}, fs)
	if !ok {
		return b.fail("stage: select(..., %s, %s): vector lengths differ: %w", ts, fs, ErrShape)
	}
	return b.emit1(Op{Kind: OpSelect, Args: []int{pid, tid, fid}, Out: []Spec{{DType: ts.DType, Dims: dims2}}})
}

// IsNaN tests a float operand elementwise for NaN.
func (b *Builder) IsNaN(x Node) Node {
	id, s, ok := b.operand(x, "isnan")
	if !ok {
		return Node{}
	}
	if s.DType != DTFloat {
		return b.fail("stage: isnan(%s): operand must be float: %w", s, ErrShape)
	}
	return b.emit1(Op{Kind: OpIsNaN, Args: []int{id}, Out: []Spec{{DType: DTBool, Dims: s.Dims}}})
}

// Index reads element i of the vector x. The index must be a scalar int.
// An out-of-bounds index is a runtime error under direct execution and
// when compiled without instrumentation; the checkify transform replaces
// it with a guarded IndexClamp.
func (b *Builder) Index(x, i Node) Node { return b.index(OpIndex, x, i) }

// IndexClamp reads element i of the vector x with the index clamped into
// range. It is total: no runtime error is possible. This is the primitive
// the checkify transform emits after recording the bounds guard, and it is
// exported so rewritten programs can be replayed and inspected.
func (b *Builder) IndexClamp(x, i Node) Node { return b.index(OpIndexClamp, x, i) }

func (b *Builder) index(k OpKind, x, i Node) Node {
	xid, xs, ok := b.operand(x, k.String())
	if !ok {
		return Node{}
	}
	iid, is, ok := b.operand(i, k.String())
	if !ok {
		return Node{}
	}
	if xs.Rank() != 1 {
		return b.fail("stage: %s(%s, ...): operand must be a vector: %w", k, xs, ErrShape)
	}
	if is.DType != DTInt || is.Rank() != 0 {
		return b.fail("stage: %s(..., %s): index must be a scalar int: %w", k, is, ErrShape)
	}
	if k == OpIndexClamp && xs.Dims[0] < 1 {
		return b.fail("stage: %s(%s, ...): cannot clamp into an empty vector: %w", k, xs, ErrShape)
	}
	return b.emit1(Op{Kind: k, Args: []int{xid, iid}, Out: []Spec{ScalarSpec(xs.DType)}})
}

// Check records a functional assertion: pred must hold, and if it does not,
// the named site faults with the message formatted now, at trace time.
//
// A vector predicate is reduced with All first — it faults when any lane is
// false. Under direct execution a failed check raises a *fault.Error; under
// compilation a check refuses to stage; under the checkify transform it is
// rewritten into fault data and execution continues.
//
// The returned node is the (possibly reduced) predicate and may be ignored.
func (b *Builder) Check(pred Node, class fault.Class, path string, format string, args ...interface{}) Node {
	pid, ps, ok := b.operand(pred, "check")
	if !ok {
		return Node{}
	}
	if ps.DType != DTBool {
		return b.fail("stage: check(%s): predicate must be bool: %w", ps, ErrShape)
	}
	st, err := site.New(class, path, format, args...)
	if err != nil {
		if b.err == nil {
			b.err = fmt.Errorf("stage: check: %w", err)
		}
		return Node{}
	}
	if ps.Rank() == 1 {
		reduced := b.All(pred)
		pid, ps, ok = b.operand(reduced, "check")
		if !ok {
			return Node{}
		}
	}
	code := b.Const(Int(0))
	if b.err != nil {
		return Node{}
	}
	b.logf("stage: check: site %s", st)
	return b.emit1(Op{Kind: OpCheck, Args: []int{pid, code.id}, Out: []Spec{ps}, Sites: site.Of(st)})
}

// Assert is Check with the user assertion identity: class fault.User, path
// "user.assert". This is the spelling user programs normally use:
//
//	b.Assert(b.Gt(x, zero), "must be positive!")
func (b *Builder) Assert(pred Node, format string, args ...interface{}) Node {
	return b.Check(pred, fault.User, "user.assert", format, args...)
}

// Recheck re-imposes previously captured fault data: pred carries "no fault
// here" per lane, code carries the site code per lane, and msgs is the
// table those codes index. Unlike Check, a vector predicate is NOT reduced:
// lanes stay independent, which is what lets replicated fault data flow
// back in without cross-worker merging.
//
// Direct execution raises the first false lane's site; the checkify
// transform merges each lane into its accumulator.
func (b *Builder) Recheck(pred, code Node, msgs site.Table) Node {
	pid, ps, ok := b.operand(pred, "recheck")
	if !ok {
		return Node{}
	}
	cid, cs, ok := b.operand(code, "recheck")
	if !ok {
		return Node{}
	}
	if ps.DType != DTBool {
		return b.fail("stage: recheck(%s, ...): predicate must be bool: %w", ps, ErrShape)
	}
	if cs.DType != DTInt {
		return b.fail("stage: recheck(..., %s): code must be int: %w", cs, ErrShape)
	}
	if ps.Rank() != cs.Rank() || ps.Elems() != cs.Elems() {
		return b.fail("stage: recheck(%s, %s): predicate and code shapes differ: %w", ps, cs, ErrShape)
	}
	b.logf("stage: recheck: %d sites over %d lanes", msgs.Len(), ps.Elems())
	return b.emit1(Op{Kind: OpCheck, Args: []int{pid, cid}, Out: []Spec{ps}, Sites: msgs, Reassert: true})
}

// Cond stages a two-way branch. Both branches are traced now, against the
// specs of xs, and must return outputs with identical specs; only the taken
// branch executes at run time. The predicate must be a scalar bool.
func (b *Builder) Cond(pred Node, onTrue, onFalse Func, xs ...Node) []Node {
	pid, ps, ok := b.operand(pred, "cond")
	if !ok {
		return nil
	}
	if ps.DType != DTBool || ps.Rank() != 0 {
		b.fail("stage: cond(%s, ...): predicate must be a scalar bool: %w", ps, ErrShape)
		return nil
	}
	ids := make([]int, len(xs))
	specs := make([]Spec, len(xs))
	for i, x := range xs {
		id, s, ok := b.operand(x, "cond")
		if !ok {
			return nil
		}
		ids[i] = id
		specs[i] = s
	}
	pt, err := trace(onTrue, specs, b.Logf)
	if err != nil {
		if b.err == nil {
			b.err = fmt.Errorf("stage: cond: true branch: %w", err)
		}
		return nil
	}
	pf, err := trace(onFalse, specs, b.Logf)
	if err != nil {
		if b.err == nil {
			b.err = fmt.Errorf("stage: cond: false branch: %w", err)
		}
		return nil
	}
	if len(pt.Outs) != len(pf.Outs) {
		b.fail("stage: cond: branches return %d vs %d outputs: %w", len(pt.Outs), len(pf.Outs), ErrShape)
		return nil
	}
	outs := make([]Spec, len(pt.Outs))
	for i := range pt.Outs {
		ts, fs := pt.spec(pt.Outs[i]), pf.spec(pf.Outs[i])
		if !ts.Equal(fs) {
			b.fail("stage: cond: branch output %d specs differ (%s vs %s): %w", i, ts, fs, ErrShape)
			return nil
		}
		outs[i] = ts
	}
	b.logf("stage: cond: traced branches (%d/%d ops)", len(pt.Ops), len(pf.Ops))
	return b.emit(Op{
		Kind: OpCond,
		Args: append([]int{pid}, ids...),
		Out:  outs,
		Sub:  []*Program{pt, pf},
	})
}
