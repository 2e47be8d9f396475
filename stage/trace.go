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
)

// Func is a stageable function: it consumes symbolic nodes and returns the
// nodes it wants as outputs. Returning no outputs is allowed for functions
// that exist only for their checks.
//
// A Func must be deterministic over specs: tracing it twice with the same
// argument specs must record the same program. All the combinators (Jit,
// Pmap, the checkify transform) cache by argument signature and rely on
// this.
type Func func(b *Builder, args []Node) []Node

// Trace records fn against the given argument specs and returns the traced
// program. Typing errors inside fn (collected by the Builder) are returned
// here, wrapped around ErrShape.
func Trace(fn Func, specs []Spec) (*Program, error) {
	return trace(fn, specs, nil)
}

func trace(fn Func, specs []Spec, logf func(string, ...interface{})) (*Program, error) {
	for i, s := range specs {
		if err := s.validate(); err != nil {
			return nil, fmt.Errorf("stage: trace: argument %d: %w", i, err)
		}
	}
	p := &Program{Args: append([]Spec(nil), specs...)}
	b := &Builder{Logf: logf, prog: p, next: len(specs)}
	args := make([]Node, len(specs))
	for i, s := range specs {
		args[i] = Node{b: b, id: i, spec: s}
	}
	outs := fn(b, args)
	if b.err != nil {
		return nil, b.err
	}
	p.Outs = make([]int, len(outs))
	for i, n := range outs {
		if n.b != b {
			return nil, fmt.Errorf("stage: trace: output %d is not a node of this trace: %w", i, ErrShape)
		}
		p.Outs[i] = n.id
	}
	p.nvals = b.next
	p.buildSpecs()
	return p, nil
}

// Apply traces fn against the specs of vals and executes the program
// directly: every op runs in declared order, and a failed check surfaces
// immediately as a *fault.Error.
func Apply(fn Func, vals ...Value) ([]Value, error) {
	p, err := Trace(fn, SpecsOf(vals...))
	if err != nil {
		return nil, err
	}
	return p.Run(vals...)
}

// signature derives the cache key for a list of argument specs. Spec
// strings are unambiguous, so joining them is collision-free.
func signature(specs []Spec) string {
	parts := make([]string, len(specs))
	for i, s := range specs {
		parts[i] = s.String()
	}
	return strings.Join(parts, ",")
}
