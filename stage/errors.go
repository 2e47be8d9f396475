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

import "errors"

var (
	// ErrShape is the sentinel wrapped by every trace-time typing failure:
	// dtype mismatches, rank or length mismatches, invalid specs and
	// malformed values. Errors carrying it come from the program being
	// staged, not from the engine.
	ErrShape = errors.New("stage: shape mismatch")

	// ErrBadIndex is wrapped by runtime out-of-bounds failures of the
	// plain index primitive. The clamping variant never produces it.
	ErrBadIndex = errors.New("stage: index out of bounds")

	// ErrDivZero is wrapped when an integer division divides by zero.
	// Float division follows IEEE-754 and never errors.
	ErrDivZero = errors.New("stage: integer division by zero")

	// ErrCannotStage is wrapped when compilation encounters a check op. A
	// staged program cannot halt mid-flight, so checks must be rewritten
	// into data (see the checkify transform) before they can compile.
	ErrCannotStage = errors.New("stage: check effects cannot be staged")
)
