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

package fault

// Canonical fault classes
//
// These classes describe the families of faults the transform knows how to
// capture. User code and policies will use these most often; additional
// classes are allowed as long as they pass ValidateClass.
const (
	// User indicates a failed user-declared predicate: an assertion or an
	// explicit check inserted into the traced computation. The message is
	// whatever the author of the check wrote.
	//
	// Armed by default. Disarming it removes every user check site from the
	// rewritten program.
	User Class = "user"

	// NaN indicates that a numeric primitive produced an invalid value
	// (not-a-number) from inputs that made the operation undefined, such as
	// sin(+Inf) or log(-1).
	//
	// Sites in this class are inserted automatically by the transform, one
	// per producing primitive, with paths like "nan.sin" or "nan.log".
	// Armed by default.
	NaN Class = "nan"

	// OOB indicates an out-of-bounds access: an index outside the valid
	// range of the indexed operand. Under the transform the access is
	// clamped so execution can continue, and the fault is recorded instead.
	//
	// Sites in this class are inserted automatically with the path
	// "oob.index". Armed by default.
	OOB Class = "oob"

	// Div indicates a division by zero. The guard is evaluated before the
	// division so the fault position matches the declaration order of the
	// division itself.
	//
	// Sites in this class are inserted automatically with the path
	// "div.div". Armed by default.
	Div Class = "div"
)

// Canonical returns the built-in classes in a stable order.
//
// The slice is freshly allocated on every call: callers may append to or
// reorder the result without affecting this package.
func Canonical() []Class {
	return []Class{User, NaN, OOB, Div}
}
