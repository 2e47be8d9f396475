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
	"math"
	"strings"
	"testing"
)

func TestCompileRefusesChecks(t *testing.T) {
	fn := func(b *Builder, args []Node) []Node {
		b.Assert(b.Gt(args[0], b.Const(Float(0))), "must be positive!")
		return []Node{b.Sin(args[0])}
	}
	p, err := Trace(fn, []Spec{ScalarSpec(DTFloat)})
	if err != nil {
		t.Fatalf("Trace: unexpected error: %+v", err)
	}
	_, err = Compile(p)
	if err == nil {
		t.Fatalf("Compile: expected a staging refusal")
	}
	if !errors.Is(err, ErrCannotStage) {
		t.Errorf("error %v does not wrap ErrCannotStage", err)
	}
	if !strings.Contains(err.Error(), "user.assert") {
		t.Errorf("error %q does not name the refusing site", err)
	}
}

func TestCompileRefusesChecksInsideBranches(t *testing.T) {
	fn := func(b *Builder, args []Node) []Node {
		pred := b.Gt(args[0], b.Const(Float(0)))
		return b.Cond(pred,
			func(bb *Builder, xs []Node) []Node {
				bb.Assert(bb.Gt(xs[0], bb.Const(Float(1))), "too small")
				return []Node{xs[0]}
			},
			func(bb *Builder, xs []Node) []Node { return []Node{xs[0]} },
			args[0])
	}
	p, err := Trace(fn, []Spec{ScalarSpec(DTFloat)})
	if err != nil {
		t.Fatalf("Trace: unexpected error: %+v", err)
	}
	if _, err := Compile(p); !errors.Is(err, ErrCannotStage) {
		t.Errorf("got %v, want ErrCannotStage", err)
	}
}

func TestCompileFoldsConstants(t *testing.T) {
	fn := func(b *Builder, args []Node) []Node {
		y := b.Add(b.Const(Float(2)), b.Const(Float(3)))
		return []Node{b.Mul(args[0], y)}
	}
	p, err := Trace(fn, []Spec{ScalarSpec(DTFloat)})
	if err != nil {
		t.Fatalf("Trace: unexpected error: %+v", err)
	}
	c, err := Compile(p)
	if err != nil {
		t.Fatalf("Compile: unexpected error: %+v", err)
	}
	if got := c.NumOps(); got != 2 { // folded const + mul
		t.Errorf("NumOps: got %d, want 2\n%s", got, c)
	}
	if s := c.String(); !strings.Contains(s, "const 5") || strings.Contains(s, "add") {
		t.Errorf("folded program should carry const 5 and no add:\n%s", s)
	}
	outs, err := c.Run(Float(4))
	if err != nil {
		t.Fatalf("Run: unexpected error: %+v", err)
	}
	if want := Float(20); !outs[0].Equal(want) {
		t.Errorf("got %s, want %s", outs[0], want)
	}
}

func TestCompileDropsDeadOps(t *testing.T) {
	fn := func(b *Builder, args []Node) []Node {
		b.Sin(args[0]) // result never used
		return []Node{b.Add(args[0], args[0])}
	}
	p, err := Trace(fn, []Spec{ScalarSpec(DTFloat)})
	if err != nil {
		t.Fatalf("Trace: unexpected error: %+v", err)
	}
	c, err := Compile(p)
	if err != nil {
		t.Fatalf("Compile: unexpected error: %+v", err)
	}
	if strings.Contains(c.String(), "sin") {
		t.Errorf("dead sin survived staging:\n%s", c)
	}
	if got := c.NumOps(); got != 1 {
		t.Errorf("NumOps: got %d, want 1", got)
	}
}

func TestCompileKeepsDeclaredOrder(t *testing.T) {
	fn := func(b *Builder, args []Node) []Node {
		a := b.Sin(args[0])
		c := b.Cos(args[0])
		return []Node{b.Sub(a, c), b.Mul(a, c)}
	}
	p, err := Trace(fn, []Spec{ScalarSpec(DTFloat)})
	if err != nil {
		t.Fatalf("Trace: unexpected error: %+v", err)
	}
	c, err := Compile(p)
	if err != nil {
		t.Fatalf("Compile: unexpected error: %+v", err)
	}
	s := c.String()
	if strings.Index(s, "sin") > strings.Index(s, "cos") {
		t.Errorf("staging reordered live ops:\n%s", s)
	}
}

func TestCompiledRunMatchesDirect(t *testing.T) {
	fn := func(b *Builder, args []Node) []Node {
		x, i := args[0], args[1]
		elem := b.Index(x, i)
		safe := b.IndexClamp(x, b.Const(Int(99)))
		isnan := b.IsNaN(b.Log(elem))
		picked := b.Select(isnan, b.Const(Float(-1)), elem)
		return []Node{picked, safe, b.Pow(elem, b.Const(Float(2)))}
	}
	vals := []Value{FloatVec([]float64{-1, 4, 9}), Int(1)}

	direct, err := Apply(fn, vals...)
	if err != nil {
		t.Fatalf("Apply: unexpected error: %+v", err)
	}
	p, err := Trace(fn, SpecsOf(vals...))
	if err != nil {
		t.Fatalf("Trace: unexpected error: %+v", err)
	}
	c, err := Compile(p)
	if err != nil {
		t.Fatalf("Compile: unexpected error: %+v", err)
	}
	staged, err := c.Run(vals...)
	if err != nil {
		t.Fatalf("Run: unexpected error: %+v", err)
	}
	if len(direct) != len(staged) {
		t.Fatalf("output arity differs: %d vs %d", len(direct), len(staged))
	}
	for i := range direct {
		if !direct[i].Equal(staged[i]) {
			t.Errorf("output %d differs: direct %s, staged %s", i, direct[i], staged[i])
		}
	}
}

func TestCompiledRunMatchesDirectPmap(t *testing.T) {
	body := func(b *Builder, args []Node) []Node {
		return []Node{b.Mul(args[0], args[1])}
	}
	fn := func(b *Builder, args []Node) []Node {
		return Pmap(body)(b, args)
	}
	vals := []Value{FloatVec([]float64{1, 2, 3}), Float(10)}

	direct, err := Apply(fn, vals...)
	if err != nil {
		t.Fatalf("Apply: unexpected error: %+v", err)
	}
	p, err := Trace(fn, SpecsOf(vals...))
	if err != nil {
		t.Fatalf("Trace: unexpected error: %+v", err)
	}
	c, err := Compile(p)
	if err != nil {
		t.Fatalf("Compile: unexpected error: %+v", err)
	}
	staged, err := c.Run(vals...)
	if err != nil {
		t.Fatalf("Run: unexpected error: %+v", err)
	}
	if !direct[0].Equal(staged[0]) {
		t.Errorf("pmap outputs differ: direct %s, staged %s", direct[0], staged[0])
	}
}

func TestCompileStaticOutOfBoundsFails(t *testing.T) {
	fn := func(b *Builder, args []Node) []Node {
		xs := b.Const(FloatVec([]float64{1, 2}))
		return []Node{b.Add(args[0], b.Index(xs, b.Const(Int(5))))}
	}
	p, err := Trace(fn, []Spec{ScalarSpec(DTFloat)})
	if err != nil {
		t.Fatalf("Trace: unexpected error: %+v", err)
	}
	if _, err := Compile(p); !errors.Is(err, ErrBadIndex) {
		t.Errorf("folding a static out-of-bounds index: got %v, want ErrBadIndex", err)
	}
}

func TestCompileDoesNotMutateProgram(t *testing.T) {
	fn := func(b *Builder, args []Node) []Node {
		return []Node{b.Add(b.Const(Float(1)), b.Const(Float(2)))}
	}
	p, err := Trace(fn, nil)
	if err != nil {
		t.Fatalf("Trace: unexpected error: %+v", err)
	}
	before := p.String()
	if _, err := Compile(p); err != nil {
		t.Fatalf("Compile: unexpected error: %+v", err)
	}
	if after := p.String(); after != before {
		t.Errorf("Compile mutated the source program:\nbefore:\n%s\nafter:\n%s", before, after)
	}
}

func TestCompiledNaNSemanticsMatchDirect(t *testing.T) {
	fn := func(b *Builder, args []Node) []Node {
		return []Node{b.Sqrt(args[0])}
	}
	p, err := Trace(fn, []Spec{ScalarSpec(DTFloat)})
	if err != nil {
		t.Fatalf("Trace: unexpected error: %+v", err)
	}
	c, err := Compile(p)
	if err != nil {
		t.Fatalf("Compile: unexpected error: %+v", err)
	}
	outs, err := c.Run(Float(-4))
	if err != nil {
		t.Fatalf("Run: unexpected error: %+v", err)
	}
	if f, _ := outs[0].AsFloat(); !math.IsNaN(f) {
		t.Errorf("sqrt(-4): got %v, want NaN", f)
	}
}
