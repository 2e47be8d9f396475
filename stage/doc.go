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

// Package stage is a small tracing and staging engine for numeric programs:
// the host that the checkify transform instruments.
//
// # Model
//
// A user program is a Go function over symbolic Nodes:
//
//	func(b *stage.Builder, args []stage.Node) []stage.Node
//
// Running it against a Builder records a Program: a linear list of ops in
// declared order, each producing one or more typed values. Shapes and dtypes
// are inferred while tracing; malformed programs surface as errors from
// Trace, never as panics.
//
// The same Program can then execute two ways:
//
//   - eagerly — Apply / Program.Run interpret ops in declared order. Check
//     ops raise a *fault.Error the moment their predicate is false.
//   - staged — Compile folds constants, drops dead ops (never reordering
//     live ones) and returns a Compiled evaluator. Check ops refuse to
//     stage: Compile fails with ErrCannotStage, because a staged program
//     has no way to halt mid-flight. The checkify transform exists to
//     rewrite checks into data before staging.
//
// Jit wraps a function so its body always goes through the compiler, and
// Pmap replicates a function over the leading axis of its vector operands,
// one worker goroutine per element. Cond traces both branches up front and
// executes only the taken one.
//
// Values are scalars or rank-1 vectors of bool/int/float. That is all the
// checkify semantics need; the engine is a reference host, not a tensor
// library.
package stage
