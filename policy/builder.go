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

type prefixRule struct {
	// prefix is the raw, dot-separated site-path prefix (may contain "*").
	// It is validated/normalized when we build the per-class trie.
	prefix string
	// armed is the arming decision to apply when this prefix matches.
	armed bool
}

type siteRule struct {
	// path is the raw, exact site path of the override. It is parsed and
	// normalized in New(); registration order decides on duplicates
	// (the last rule wins).
	path string
	// armed is the arming decision for that exact site.
	armed bool
}

type builder struct {
	// user-provided adjustments (applied on top of library defaults)

	// classDefaults holds per-class arming defaults that override library
	// defaults.
	classDefaults map[fault.Class]bool

	// siteOverrides holds exact per-path overrides (higher than prefixes).
	// Kept as an ordered slice so that later registrations of the same path
	// deterministically win.
	siteOverrides []siteRule

	// classPrefixes holds per-class LPM rules, defined as raw prefixRule
	// and later compiled into a segment trie.
	classPrefixes map[fault.Class][]prefixRule

	// global fallback used when a class has no default at all.
	fallbackArmed bool
}

// newBuilder creates an empty builder with maps pre-sized
// to hold typical numbers of entries.
func newBuilder() *builder {
	return &builder{
		// we size the map roughly to the number of built-in defaults
		classDefaults: make(map[fault.Class]bool, len(defaultArming)),

		// prefixes are usually few
		classPrefixes: make(map[fault.Class][]prefixRule),

		// hard fallback if the class was never seen: checks are on by
		// default, so an unknown class still gets instrumented
		fallbackArmed: true,
	}
}
