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

package apis

import (
	"dirpx.dev/checkify/fault"
)

// Policy is an immutable, concurrency-safe view of the instrumentation rules.
// It resolves a fault class (and optionally a site path) into an arming
// decision: whether the transform should emit the corresponding check at all.
type Policy interface {
	// Armed reports whether a check site with the given class and path should
	// be instrumented. If no path-specific rule exists, the policy must fall
	// back to the class-level rule.
	Armed(c fault.Class, p fault.Path) bool

	// Decide resolves the full arming decision in a single call, using the
	// same matching logic as Armed.
	Decide(c fault.Class, p fault.Path) Decision

	// Explain returns a human-readable description of which rule matched.
	// Implementations may return an empty string in production builds.
	Explain(c fault.Class, p fault.Path) string
}

// Decision represents a resolved arming decision for a single check site.
// It is the final output of the policy and records where the answer came from.
type Decision struct {
	Armed  bool   // Whether the site is instrumented.
	Source Source // Which tier of the rule chain produced the answer.
}

// Source identifies the tier of the policy rule chain that produced a
// Decision. The tiers are tried in order; the first match wins.
type Source string

const (
	// SourceOverride means an exact per-site override matched the path.
	SourceOverride Source = "override"

	// SourcePrefix means a prefix rule matched the path (longest prefix wins).
	SourcePrefix Source = "prefix"

	// SourceClass means the class-level default applied.
	SourceClass Source = "class"

	// SourceFallback means no rule matched and the built-in fallback applied.
	SourceFallback Source = "fallback"
)
