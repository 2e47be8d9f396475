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
	"strings"

	"dirpx.dev/checkify/site"
)

// OpKind enumerates the primitives a traced program is made of.
type OpKind uint8

const (
	OpInvalid OpKind = iota

	// OpConst materializes a literal value.
	OpConst

	// Unary numeric primitives.
	OpNeg
	OpSin
	OpCos
	OpLog
	OpSqrt

	// Binary numeric primitives.
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpPow

	// Comparisons. Result dtype is bool.
	OpLt
	OpLe
	OpGt
	OpGe
	OpEq
	OpNe

	// Boolean primitives.
	OpNot
	OpAnd
	OpOr
	OpAll

	// OpSelect picks elementwise between two operands by a predicate.
	OpSelect

	// OpIsNaN tests floats elementwise for NaN.
	OpIsNaN

	// OpIndex reads one element of a vector. Out-of-bounds indices are a
	// runtime error. OpIndexClamp is the total variant that clamps the
	// index into range; the checkify transform pairs it with a bounds
	// guard so the clamp is never silent.
	OpIndex
	OpIndexClamp

	// OpCheck asserts a predicate against a site table. It is an effect:
	// direct execution raises on failure, and compilation refuses it.
	OpCheck

	// OpCond executes one of two sub-programs by a scalar predicate.
	OpCond

	// OpPmap replicates a sub-program over the leading axis of its vector
	// operands, one worker per element.
	OpPmap

	// OpCall invokes a sub-program through the compiler (a staged call).
	OpCall
)

// String returns the lowercase mnemonic of the op kind. For the numeric
// primitives this doubles as the primitive name used in instrumentation
// paths such as "nan.sin".
func (k OpKind) String() string {
	switch k {
	case OpConst:
		return "const"
	case OpNeg:
		return "neg"
	case OpSin:
		return "sin"
	case OpCos:
		return "cos"
	case OpLog:
		return "log"
	case OpSqrt:
		return "sqrt"
	case OpAdd:
		return "add"
	case OpSub:
		return "sub"
	case OpMul:
		return "mul"
	case OpDiv:
		return "div"
	case OpPow:
		return "pow"
	case OpLt:
		return "lt"
	case OpLe:
		return "le"
	case OpGt:
		return "gt"
	case OpGe:
		return "ge"
	case OpEq:
		return "eq"
	case OpNe:
		return "ne"
	case OpNot:
		return "not"
	case OpAnd:
		return "and"
	case OpOr:
		return "or"
	case OpAll:
		return "all"
	case OpSelect:
		return "select"
	case OpIsNaN:
		return "isnan"
	case OpIndex:
		return "index"
	case OpIndexClamp:
		return "index_clamp"
	case OpCheck:
		return "check"
	case OpCond:
		return "cond"
	case OpPmap:
		return "pmap"
	case OpCall:
		return "call"
	}
	return fmt.Sprintf("op(%d)", uint8(k))
}

// Op is one recorded primitive application.
//
// Args and Res are value ids: ids 0..len(Program.Args)-1 name the program
// inputs, and every op's results extend the id space in recording order.
// Most ops define exactly one result; OpCond, OpPmap and OpCall define one
// per sub-program output.
type Op struct {
	Kind OpKind

	// Args are the operand value ids, in primitive order.
	Args []int

	// Res are the value ids this op defines.
	Res []int

	// Out are the result specs, parallel to Res.
	Out []Spec

	// Const is the literal payload of an OpConst.
	Const Value

	// Sites is the code→site table of an OpCheck. A plain check or assert
	// carries a single site under code 0; a re-assertion carries the full
	// table of the fault data it re-imposes.
	Sites site.Table

	// Reassert marks an OpCheck recorded by Recheck rather than Check.
	// Re-assertions re-impose fault data that already passed an arming
	// decision, so transforms must not drop them.
	Reassert bool

	// Sub holds sub-programs: {onTrue, onFalse} for OpCond, {body} for
	// OpPmap and OpCall.
	Sub []*Program
}

// Program is a traced computation: inputs, ops in declared order, and the
// value ids of the outputs. Programs are immutable once traced and safe for
// concurrent Run calls.
type Program struct {
	// Args are the input specs. Input i has value id i.
	Args []Spec

	// Ops is the op list in declared (trace) order. Direct execution runs
	// every op in this order; the compiler may drop ops but never reorders
	// the ones it keeps.
	Ops []Op

	// Outs are the value ids of the program outputs.
	Outs []int

	nvals int    // total number of value ids
	specs []Spec // spec per value id, filled by Trace
}

// NumOutputs returns the number of program outputs.
func (p *Program) NumOutputs() int { return len(p.Outs) }

// spec returns the spec of a value id. Ids are dense, so this is a slice
// read.
func (p *Program) spec(id int) Spec { return p.specs[id] }

// buildSpecs fills the id→spec index. Called once at the end of a trace.
func (p *Program) buildSpecs() {
	specs := make([]Spec, p.nvals)
	copy(specs, p.Args)
	for i := range p.Ops {
		op := &p.Ops[i]
		for j, id := range op.Res {
			specs[id] = op.Out[j]
		}
	}
	p.specs = specs
}

// String renders the program as stable, indented text. The format is meant
// for debugging and golden tests:
//
//	program(%0:float, %1:float[3]) -> (%3)
//	  %2 = const 1 : float
//	  %3 = add(%0, %2) : float[3]
//
// Sub-programs print nested beneath their owning op.
func (p *Program) String() string {
	var sb strings.Builder
	p.write(&sb, "")
	return strings.TrimRight(sb.String(), "\n") + "\n"
}

func (p *Program) write(sb *strings.Builder, indent string) {
	sb.WriteString(indent)
	sb.WriteString("program(")
	for i, s := range p.Args {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(sb, "%%%d:%s", i, s)
	}
	sb.WriteString(") -> (")
	for i, id := range p.Outs {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(sb, "%%%d", id)
	}
	sb.WriteString(")\n")
	inner := indent + "  "
	for i := range p.Ops {
		p.Ops[i].write(sb, inner)
	}
}

func (o *Op) write(sb *strings.Builder, indent string) {
	sb.WriteString(indent)
	for i, id := range o.Res {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(sb, "%%%d", id)
	}
	fmt.Fprintf(sb, " = %s", o.Kind)
	if o.Kind == OpConst {
		fmt.Fprintf(sb, " %s", o.Const)
	}
	if len(o.Args) > 0 {
		sb.WriteString("(")
		for i, id := range o.Args {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(sb, "%%%d", id)
		}
		sb.WriteString(")")
	}
	sb.WriteString(" : ")
	for i, s := range o.Out {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(s.String())
	}
	if o.Kind == OpCheck {
		sb.WriteString(" sites={")
		for i, s := range o.Sites.Sites() {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(sb, "%d:%s", i, s.Path)
		}
		sb.WriteString("}")
	}
	sb.WriteString("\n")
	for i, sub := range o.Sub {
		label := "body"
		if o.Kind == OpCond {
			if i == 0 {
				label = "true"
			} else {
				label = "false"
			}
		}
		fmt.Fprintf(sb, "%s%s:\n", indent, label)
		sub.write(sb, indent+"  ")
	}
}
