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

import "dirpx.dev/checkify/stage"

// Recharge re-asserts a discharged Error inside a trace.
//
// A checkified call discharges faults into data; Recharge is the way back: it
// records a re-assertion whose predicate and codes are the Error's lanes as
// constants and whose message table is the Error's own. Eagerly the
// re-assertion raises the Error's first fault again; under an enclosing
// Checkify it merges into that transform's accumulator, codes remapped, so
// the fault reports with its original class, path and message.
//
// The returned node is the re-assertion's predicate, per lane, and is mainly
// useful for sequencing. Recharging a clean Error records a passing check.
func Recharge(b *stage.Builder, e Error) stage.Node {
	if e.Lanes() == 1 {
		o, c := e.Lane(0)
		return b.Recheck(
			b.Const(stage.Bool(!o)),
			b.Const(stage.Int(int64(c))),
			e.table,
		)
	}
	preds := make([]bool, e.Lanes())
	codes := make([]int64, e.Lanes())
	for i := range preds {
		o, c := e.Lane(i)
		preds[i] = !o
		codes[i] = int64(c)
	}
	return b.Recheck(
		b.Const(stage.BoolVec(preds)),
		b.Const(stage.IntVec(codes)),
		e.table,
	)
}
