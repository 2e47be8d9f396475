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

import "dirpx.dev/checkify/apis"

// Option is a functional option for Checkify. Options are applied once, at
// construction; a Checked never changes configuration afterwards.
type Option func(*config)

type config struct {
	policy apis.Policy
	staged bool
	logf   func(format string, v ...interface{})
}

// WithPolicy sets the arming policy consulted while rewriting. Disarmed user
// checks are dropped and disarmed automatic guards are not emitted. A nil
// policy arms everything, which is also the default.
func WithPolicy(p apis.Policy) Option {
	return func(c *config) {
		c.policy = p
	}
}

// WithStaged compiles each rewritten trace and runs the compiled form on
// every call. The rewritten program carries no check ops, so staging it
// cannot be refused; results are identical to direct execution.
func WithStaged() Option {
	return func(c *config) {
		c.staged = true
	}
}

// WithLogf installs a trace logger, used while tracing the wrapped function
// and while replaying it under the rewrite. Primarily for tests.
func WithLogf(logf func(format string, v ...interface{})) Option {
	return func(c *config) {
		c.logf = logf
	}
}
