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
	"sync"
)

// Jit wraps fn so that its body always executes through the compiler, as a
// staged call. The body is traced once per argument signature and cached;
// the wrapper is safe for concurrent use.
//
// Two consequences follow from "through the compiler". First, the body is
// folded and swept like any staged program. Second, a check inside the
// body refuses to stage — Apply of a jitted checked function fails with
// ErrCannotStage instead of raising, which is exactly the behavior the
// checkify transform exists to lift.
func Jit(fn Func) Func {
	j := &jitted{fn: fn, traces: make(map[string]*Program)}
	return j.stage
}

type jitted struct {
	fn Func

	mu     sync.Mutex
	traces map[string]*Program
}

func (j *jitted) stage(b *Builder, args []Node) []Node {
	if b.err != nil {
		return nil
	}
	ids := make([]int, len(args))
	specs := make([]Spec, len(args))
	for i, a := range args {
		id, s, ok := b.operand(a, "call")
		if !ok {
			return nil
		}
		ids[i], specs[i] = id, s
	}
	key := signature(specs)

	j.mu.Lock()
	body, ok := j.traces[key]
	if !ok {
		var err error
		body, err = trace(j.fn, specs, b.Logf)
		if err != nil {
			j.mu.Unlock()
			if b.err == nil {
				b.err = fmt.Errorf("stage: jit: %w", err)
			}
			return nil
		}
		j.traces[key] = body
		b.logf("stage: jit: traced signature (%s)", key)
	}
	j.mu.Unlock()

	outs := make([]Spec, len(body.Outs))
	for i, id := range body.Outs {
		outs[i] = body.spec(id)
	}
	return b.emit(Op{Kind: OpCall, Args: ids, Out: outs, Sub: []*Program{body}})
}
