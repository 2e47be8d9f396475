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
	"strings"
	"sync"

	"dirpx.dev/checkify/site"
	"dirpx.dev/checkify/stage"
)

// Checked is a checkified function: it runs the wrapped function with every
// check rewritten into fault data and returns that data next to the outputs.
//
// A Checked traces and rewrites lazily, once per argument-spec signature,
// and caches the result, so repeated Calls with same-shaped arguments pay
// for the rewrite only once. It is safe for concurrent use.
type Checked struct {
	fn  stage.Func
	cfg config

	mu    sync.Mutex
	cache map[string]*rewritten
}

// rewritten is one cached rewrite: the transformed program, its site table,
// and, when staging is enabled, the compiled form.
type rewritten struct {
	prog     *stage.Program
	table    site.Table
	compiled *stage.Compiled
}

// Checkify wraps fn into its checkified form.
//
// The wrapped function is not traced yet; each distinct argument-spec
// signature is traced and rewritten on first Call. Checks inside fn — user
// Check and Assert ops, re-assertions, and the automatic guards the rewrite
// inserts around numeric primitives — no longer halt execution: they set the
// returned Error instead, first fault in declared order winning.
func Checkify(fn stage.Func, opts ...Option) *Checked {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}
	run := fn
	if cfg.logf != nil {
		logf := cfg.logf
		run = func(b *stage.Builder, args []stage.Node) []stage.Node {
			b.Logf = logf
			return fn(b, args)
		}
	}
	return &Checked{fn: run, cfg: cfg, cache: make(map[string]*rewritten)}
}

// Call runs the checkified function on concrete values.
//
// The Error is the fault data of this call: the zero Error when every armed
// check passed, otherwise the first fault in declared order (per lane, for
// parallel regions). Outputs are always the wrapped function's outputs,
// computed to completion; a faulting lane still produces values, with
// clamped indices and IEEE semantics standing in where a raise would have
// stopped direct execution.
//
// The error result reports infrastructure failures only — trace errors,
// shape mismatches, arity mismatches — never a captured fault.
func (c *Checked) Call(vals ...stage.Value) (Error, []stage.Value, error) {
	rw, err := c.lookup(stage.SpecsOf(vals...))
	if err != nil {
		return Error{}, nil, err
	}
	var outs []stage.Value
	if rw.compiled != nil {
		outs, err = rw.compiled.Run(vals...)
	} else {
		outs, err = rw.prog.Run(vals...)
	}
	if err != nil {
		return Error{}, nil, err
	}
	ferr, err := errorFromAcc(outs[0], outs[1], rw.table)
	if err != nil {
		return Error{}, nil, err
	}
	return ferr, outs[2:], nil
}

// lookup returns the cached rewrite for the given signature, tracing and
// rewriting on first use.
func (c *Checked) lookup(specs []stage.Spec) (*rewritten, error) {
	key := signatureKey(specs)
	c.mu.Lock()
	defer c.mu.Unlock()
	if rw, ok := c.cache[key]; ok {
		return rw, nil
	}
	prog, err := stage.Trace(c.fn, specs)
	if err != nil {
		return nil, fmt.Errorf("checkify: tracing: %w", err)
	}
	rp, tbl, err := rewrite(prog, c.cfg.policy, c.cfg.logf)
	if err != nil {
		return nil, err
	}
	rw := &rewritten{prog: rp, table: tbl}
	if c.cfg.staged {
		rw.compiled, err = stage.Compile(rp)
		if err != nil {
			return nil, fmt.Errorf("checkify: staging rewritten program: %w", err)
		}
	}
	c.cache[key] = rw
	return rw, nil
}

// signatureKey renders an argument-spec list as a cache key.
func signatureKey(specs []stage.Spec) string {
	parts := make([]string, len(specs))
	for i, s := range specs {
		parts[i] = s.String()
	}
	return strings.Join(parts, ",")
}

// errorFromAcc converts the two leading outputs of a rewritten program, the
// occurred and code accumulator lanes, into an Error over the given table.
func errorFromAcc(occ, code stage.Value, tbl site.Table) (Error, error) {
	if occ.Rank() == 0 {
		o, ok := occ.AsBool()
		if !ok {
			return Error{}, fmt.Errorf("checkify: occurred accumulator is %s, want bool", occ.Spec())
		}
		cv, ok := code.AsInt()
		if !ok {
			return Error{}, fmt.Errorf("checkify: code accumulator is %s, want int", code.Spec())
		}
		return Error{occ: []bool{o}, codes: []int32{int32(cv)}, table: tbl}, nil
	}
	os, ok := occ.AsBools()
	if !ok {
		return Error{}, fmt.Errorf("checkify: occurred accumulator is %s, want bool vector", occ.Spec())
	}
	codes := make([]int32, len(os))
	if code.Rank() == 0 {
		cv, ok := code.AsInt()
		if !ok {
			return Error{}, fmt.Errorf("checkify: code accumulator is %s, want int", code.Spec())
		}
		for i := range codes {
			codes[i] = int32(cv)
		}
	} else {
		cs, ok := code.AsInts()
		if !ok || len(cs) != len(os) {
			return Error{}, fmt.Errorf("checkify: code accumulator is %s, want %d int lanes", code.Spec(), len(os))
		}
		for i, cv := range cs {
			codes[i] = int32(cv)
		}
	}
	return Error{occ: os, codes: codes, table: tbl}, nil
}
