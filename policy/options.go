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

// Option configures the Policy at build time.
// All options are applied to an internal builder and then frozen into
// an immutable Policy.
type Option func(*builder)

// WithClassDefault sets or replaces the library-level arming default for the
// given fault class. This affects the fallback value used when no
// path-specific rule matches.
func WithClassDefault(c fault.Class, armed bool) Option {
	return func(b *builder) { b.classDefaults[c] = armed }
}

// WithSiteOverride registers an exact arming override for the given site
// path. Overrides take precedence over prefix rules and class defaults.
// The path is normalized and validated in New; registering the same path
// twice keeps the later value.
func WithSiteOverride(path string, armed bool) Option {
	return func(b *builder) { b.siteOverrides = append(b.siteOverrides, siteRule{path, armed}) }
}

// WithPrefix adds a longest-prefix-match arming rule for the given class.
// The rule is evaluated against the site path (dot-separated). A more
// specific prefix wins. Use "*" to match a single segment.
func WithPrefix(c fault.Class, prefix string, armed bool) Option {
	return func(b *builder) { b.classPrefixes[c] = append(b.classPrefixes[c], prefixRule{prefix, armed}) }
}

// WithFallback sets the global arming fallback used when a class has no
// default at all. The library fallback is armed, so unknown classes get
// instrumented; pass false to flip that for locked-down builds.
func WithFallback(armed bool) Option {
	return func(b *builder) { b.fallbackArmed = armed }
}

// WithAllDisarmed disarms every canonical class and the global fallback in
// one step. Use it as a base for allow-listing: apply it first, then arm the
// classes or sites you want with further options.
func WithAllDisarmed() Option {
	return func(b *builder) {
		for _, c := range fault.Canonical() {
			b.classDefaults[c] = false
		}
		b.fallbackArmed = false
	}
}
