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

import "fmt"

// Pmap replicates fn over the leading axis of its vector operands: worker w
// sees element w of each vector argument and every scalar argument as-is.
// The worker count is the (shared) length of the vector operands, so at
// least one operand must be a vector. Body outputs must be scalars; they
// come back stacked into vectors, one lane per worker.
//
// Workers run as goroutines, one per element, and never exchange data.
// Worker errors are reported in worker order, each fault tagged with its
// worker index; one worker failing does not suppress another's report.
func Pmap(fn Func) Func {
	return func(b *Builder, args []Node) []Node {
		if b.err != nil {
			return nil
		}
		ids := make([]int, len(args))
		specs := make([]Spec, len(args))
		for i, a := range args {
			id, s, ok := b.operand(a, "pmap")
			if !ok {
				return nil
			}
			ids[i], specs[i] = id, s
		}
		workers := -1
		for _, s := range specs {
			if s.Rank() != 1 {
				continue
			}
			if workers == -1 {
				workers = s.Dims[0]
				continue
			}
			if s.Dims[0] != workers {
				b.fail("stage: pmap: vector operands disagree on worker count (%d vs %d): %w", workers, s.Dims[0], ErrShape)
				return nil
			}
		}
		if workers == -1 {
			b.fail("stage: pmap: at least one operand must be a vector to set the worker count: %w", ErrShape)
			return nil
		}
		wspecs := make([]Spec, len(specs))
		for i, s := range specs {
			if s.Rank() == 1 {
				wspecs[i] = ScalarSpec(s.DType)
			} else {
				wspecs[i] = s
			}
		}
		body, err := trace(fn, wspecs, b.Logf)
		if err != nil {
			if b.err == nil {
				b.err = fmt.Errorf("stage: pmap: body: %w", err)
			}
			return nil
		}
		outs := make([]Spec, len(body.Outs))
		for i, id := range body.Outs {
			s := body.spec(id)
			if s.Rank() != 0 {
				b.fail("stage: pmap: body output %d is %s; outputs must be scalar to stack: %w", i, s, ErrShape)
				return nil
			}
			outs[i] = VecSpec(s.DType, workers)
		}
		b.logf("stage: pmap: %d workers, %d outputs", workers, len(outs))
		return b.emit(Op{Kind: OpPmap, Args: ids, Out: outs, Sub: []*Program{body}})
	}
}
