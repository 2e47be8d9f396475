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

package policy

import (
	"dirpx.dev/checkify/fault"
)

// defaultArming defines the library's built-in arming for the canonical fault
// classes. These are only defaults: callers are expected to adjust them at the
// boundary where the transform is actually applied (debug builds arm more,
// production builds arm less).
//
// The intent is "everything on": a freshly built policy behaves like a fully
// instrumented debug run, and disarming is always an explicit decision.
var defaultArming = map[fault.Class]bool{
	fault.User: true, // User checks and assertions express invariants; dropping them silently is surprising.
	fault.NaN:  true, // NaN generation is the most common silent corruption; catch it by default.
	fault.OOB:  true, // Out-of-bounds reads clamp instead of trapping in staged mode; must be reported.
	fault.Div:  true, // Division by zero produces Inf/NaN downstream; report at the source.
}
