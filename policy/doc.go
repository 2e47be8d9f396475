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

// Package policy provides deterministic, immutable arming rules that decide
// which check sites (dirpx.dev/checkify/fault classes and site paths) the
// transform instruments and which it skips.
//
// # Overview
//
// In checkify a check site is identified by two parts:
//
//  1. a high-level fault Class (e.g. fault.NaN, fault.User),
//  2. an optional, more specific site Path (e.g. "nan.sin", "user.balance").
//
// The transform needs to turn this pair into a concrete yes/no answer: emit
// the check, or leave the site uninstrumented. Package policy does that in a
// way that is:
//
//   - immutable — a Policy is a snapshot, safe for concurrent reuse;
//   - overridable — callers can change class-level defaults per Class;
//   - prefix-aware — callers can add fine-grained rules for specific paths;
//   - explainable — every decision can be traced back to the rule that made it.
//
// # Resolution model
//
// A Policy resolves arming decisions in the following order:
//
//  1. exact override for the Path;
//  2. per-Class longest-prefix-match (LPM) on the Path;
//  3. per-Class default (library or user-adjusted);
//  4. global fallback (armed).
//
// Prefix rules are segment-aware: paths are treated as "."-separated segments,
// and "*" matches exactly one segment. For example:
//
//	WithPrefix(fault.NaN, "nan.sin", false)
//	WithPrefix(fault.OOB, "oob.*.gather", false)
//
// The more specific prefix wins.
//
// # Library defaults
//
// The package ships with every canonical fault class armed: a freshly built
// Policy instruments all user checks and all automatic nan/oob/div checks.
// Production deployments typically disarm entire classes or specific hot
// sites at build time.
//
// # Building a policy
//
// A Policy is created once and reused:
//
//	p, err := policy.New(
//	    policy.WithClassDefault(fault.OOB, false),   // skip all oob checks
//	    policy.WithPrefix(fault.NaN, "nan.sin", false),
//	)
//	if err != nil {
//	    // invalid prefix, etc.
//	}
//
//	armed := p.Armed(fault.NaN, fault.MustParsePath("nan.sin.fast"))
//	// armed == false (prefix rule)
//
// Policies can also be loaded from YAML, see Parse and Load.
//
// # Diagnostics
//
// For debugging and tests, Policy.Explain returns a human-readable trace of
// how a particular (class, path) was resolved, including which tier matched
// and, for prefixes, which pattern was used.
//
// This is intended for inspection and logging, not for stable machine parsing.
//
// # Immutability
//
// All user-provided inputs are copied during New. After construction, the
// Policy does not observe further changes to the caller's maps or slices.
// This makes it safe to share a single instance across transforms, executions
// and goroutines.
package policy
