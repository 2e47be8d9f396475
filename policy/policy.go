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
	"fmt"
	"strings"

	"dirpx.dev/checkify/apis"
	"dirpx.dev/checkify/fault"
	"dirpx.dev/checkify/policy/internal/pathtrie"
)

// New constructs an immutable apis.Policy snapshot.
//
// The resulting apis.Policy is fully thread-safe and designed for long-lived reuse.
// Each build creates a self-contained policy instance — no shared references
// to global state or user-provided structures remain.
//
// Build process overview:
//
//  1. Seed the builder with library defaults (every canonical class armed).
//  2. Apply user-provided options (defaults, overrides, prefix rules).
//  3. Normalize and validate all site overrides (via fault.ParsePath).
//  4. Build per-class segment tries supporting longest-prefix-match
//     with '*' as a single-segment wildcard.
//  5. Freeze all maps and tries into immutable copies (fresh allocations).
//
// Errors returned from this function indicate invalid paths, prefixes or
// configuration issues during normalization or trie construction.
func New(opts ...Option) (apis.Policy, error) {
	// (0) Start with an empty builder.
	// We do not assume any pre-seeded state.
	b := newBuilder()

	// (1) Seed the builder with package-level defaults.
	// Copy into builder-owned maps to prevent external mutation.
	for k, v := range defaultArming {
		b.classDefaults[k] = v
	}

	// (2) Apply user-supplied options (defaults, overrides, prefixes, etc.).
	for _, opt := range opts {
		opt(b)
	}

	// (3) Parse and normalize exact site overrides.
	// The slice preserves registration order, so a later rule for the same
	// path deterministically wins.
	override := make(map[fault.Path]bool, len(b.siteOverrides))
	for _, r := range b.siteOverrides {
		p, err := fault.ParsePath(r.path)
		if err != nil {
			return nil, fmt.Errorf("policy: invalid site override %q: %w", r.path, err)
		}
		if p == fault.NoPath {
			return nil, fmt.Errorf("policy: empty site override is not allowed")
		}
		override[p] = r.armed
	}

	// (4) Build per-class prefix tries.
	// Each rule prefix is normalized and validated before insertion.
	trie := make(map[fault.Class]*pathtrie.Trie[bool], len(b.classPrefixes))
	for c, rules := range b.classPrefixes {
		if len(rules) == 0 {
			continue
		}
		t := pathtrie.New[bool]()
		for _, r := range rules {
			p, err := normalizeAndValidatePrefix(r.prefix)
			if err != nil {
				return nil, fmt.Errorf("policy: invalid path-prefix %q for class %q: %w", r.prefix, c, err)
			}
			if err := t.Insert(p, r.armed); err != nil {
				return nil, fmt.Errorf("policy: cannot insert prefix %q for class %q: %w", p, c, err)
			}
		}
		trie[c] = t
	}

	// (5) Freeze everything into a read-only snapshot.
	// Each map is freshly allocated; tries are shallow-copied (they are immutable).
	p := &policy{
		classDefault: freezeClassDefaults(b.classDefaults),
		siteOverride: freezeSiteOverrides(override),
		trie:         freezeTries(trie),

		fallbackArmed: b.fallbackArmed,
	}

	return p, nil
}

// policy is an immutable policy implementation that combines per-class
// defaults, exact per-path overrides, and per-class segment-aware prefix
// tries for site paths. Lookups are O(depth) and safe for concurrent use
// once constructed.
type policy struct {
	// classDefault holds the base arming decision for a given fault class.
	// Used when no path-specific rule and no override are present.
	classDefault map[fault.Class]bool

	// siteOverride holds explicit arming decisions for exact site paths.
	// These take precedence over prefix rules and class defaults.
	siteOverride map[fault.Path]bool

	// trie stores per-class tries that resolve arming decisions based on
	// path prefixes (dot-separated, with "*" for one-segment wildcards).
	trie map[fault.Class]*pathtrie.Trie[bool]

	// fallbackArmed is used when there is no rule at all for a class.
	// Armed by default: unknown classes get instrumented.
	fallbackArmed bool
}

// Armed resolves the arming decision for the given class and path.
//
// Resolution order (highest to lowest):
//  1. exact per-path override (explicitly registered);
//  2. per-class longest-prefix-match rule on the path;
//  3. per-class default (library or user overridden);
//  4. global fallback (armed).
//
// The path is treated as a dot-separated string; LPM rules are stored per class.
func (p *policy) Armed(c fault.Class, pth fault.Path) bool {
	armed, _, _ := p.resolve(c, pth)
	return armed
}

// Decide resolves the full arming decision, recording which tier answered.
// It uses the same precedence as Armed.
func (p *policy) Decide(c fault.Class, pth fault.Path) apis.Decision {
	armed, src, _ := p.resolve(c, pth)
	return apis.Decision{
		Armed:  armed,
		Source: src,
	}
}

// resolve walks the rule chain and returns the decision, its source tier
// and, for prefix matches, the pattern that won. All callers share this
// logic so Armed, Decide and Explain can never disagree.
func (p *policy) resolve(c fault.Class, pth fault.Path) (armed bool, src apis.Source, pattern string) {
	// 1. Fast path: exact override for this site path.
	if pth != fault.NoPath {
		if v, ok := p.siteOverride[pth]; ok {
			return v, apis.SourceOverride, string(pth)
		}
	}

	// 2. Per-class prefix LPM over the path.
	if idx, ok := p.trie[c]; ok && idx != nil {
		if v, ok2, pat := idx.MatchWithPattern(string(pth)); ok2 {
			return v, apis.SourcePrefix, pat
		}
	}

	// 3. Per-class default.
	if v, ok := p.classDefault[c]; ok {
		return v, apis.SourceClass, ""
	}

	// 4. Ultimate fallback: unknown classes follow the global switch.
	return p.fallbackArmed, apis.SourceFallback, ""
}

// Explain produces a textual trace of how the policy resolved the arming
// decision for a particular (class, path) pair.
//
// This is primarily a diagnostic tool: it shows which tier matched
// (override, prefix, class, or fallback) and, for prefix matches,
// which pattern was used.
//
// Example output:
//
//	class="nan" path="nan.sin.fast"
//	armed: source=prefix pattern="nan.sin" -> false
//
// Notes:
//   - source ∈ {override | prefix | class | fallback}
//   - pattern is the rule as it was stored in the trie (may contain "*")
func (p *policy) Explain(c fault.Class, pth fault.Path) string {
	var b strings.Builder
	_, _ = fmt.Fprintf(&b, "class=%q path=%q\n", c, pth)

	switch armed, src, pat := p.resolve(c, pth); src {
	case apis.SourceOverride:
		_, _ = fmt.Fprintf(&b, "armed: source=override -> %t", armed)
	case apis.SourcePrefix:
		_, _ = fmt.Fprintf(&b, "armed: source=prefix pattern=%q -> %t", pat, armed)
	case apis.SourceClass:
		_, _ = fmt.Fprintf(&b, "armed: source=class -> %t", armed)
	case apis.SourceFallback:
		_, _ = fmt.Fprintf(&b, "armed: source=fallback -> %t", armed)
	default:
		// Defensive: unexpected source.
		_, _ = fmt.Fprintf(&b, "armed: source=unknown")
	}

	return b.String()
}

// normalizeAndValidatePrefix ensures a path prefix is canonical and valid.
// It forbids empty strings as prefixes and delegates per-segment checks to
// validPrefixSegment.
func normalizeAndValidatePrefix(raw string) (string, error) {
	p := fault.NormalizePath(raw)
	if p == "" {
		return "", fmt.Errorf("empty prefix")
	}
	segs := strings.Split(p, ".")
	allWild := true
	for _, seg := range segs {
		if !validPrefixSegment(seg) { // allows "*" or [a-z][a-z0-9_]*
			return "", fmt.Errorf("invalid segment %q", seg)
		}
		if seg != "*" {
			allWild = false
		}
	}
	if allWild {
		return "", fmt.Errorf("prefix cannot consist of '*' only")
	}
	return p, nil
}

// validPrefixSegment reports whether seg is a valid trie segment for prefixes.
// Rules:
//   - empty segments are invalid;
//   - the segment "*" is allowed;
//   - otherwise the segment must match: [a-z][a-z0-9_]*
func validPrefixSegment(seg string) bool {
	if seg == "" {
		return false
	}
	if seg == "*" {
		return true
	}
	// [a-z][a-z0-9_]*
	if seg[0] < 'a' || seg[0] > 'z' {
		return false
	}
	for i := 1; i < len(seg); i++ {
		c := seg[i]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '_' {
			continue
		}
		return false
	}
	return true
}
