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

package site

import (
	"fmt"

	"dirpx.dev/checkify/fault"
)

// Site describes one instrumented point in a traced computation.
//
// It carries:
//   - Class: the fault family the site belongs to (required);
//   - Path: the site's dot-separated identity, e.g. "nan.sin" (optional,
//     but every site registered by the staging layer has one);
//   - Message: the human-readable message reported when the site's
//     predicate fails.
//
// The message is fixed at registration time. Formatting payloads are
// interpolated then and never again — this is what keeps the table static
// and lets it travel through staged compilation as ordinary data.
type Site struct {
	// Class is the fault family, e.g. fault.User or fault.NaN.
	Class fault.Class

	// Path identifies the site for arming policies and reports.
	Path fault.Path

	// Message is the trace-time formatted failure message.
	Message string
}

// New constructs a Site with a message formatted immediately.
//
// The path string is normalized and validated; the class is validated as-is.
// This is the constructor the staging layer uses when a check primitive is
// traced:
//
//	site.New(fault.User, "user.assert", "must be positive! (got %v)", x0)
func New(c fault.Class, path string, format string, args ...any) (Site, error) {
	if err := fault.ValidateClass(c); err != nil {
		return Site{}, fmt.Errorf("site: class %q: %w", c, err)
	}
	p, err := fault.ParsePath(path)
	if err != nil {
		return Site{}, fmt.Errorf("site: path %q: %w", path, err)
	}
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return Site{Class: c, Path: p, Message: msg}, nil
}

// String renders the site for diagnostics: "<path>: <message>", or just the
// message when no path was provided.
func (s Site) String() string {
	if s.Path == fault.NoPath {
		return s.Message
	}
	return fmt.Sprintf("%s: %s", s.Path, s.Message)
}

// Err converts the site into its raise form with the given code.
func (s Site) Err(code int32) *fault.Error {
	return fault.New(s.Class, s.Path, code, s.Message)
}
