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

import "fmt"

// Error is the raise form of a fault: the Go error produced when a check
// fails under direct (unstaged, untransformed) execution, or when a caller
// explicitly converts a captured fault back into control flow.
//
// It carries:
//   - Class: the fault family (required);
//   - Path: the identity of the failing check site;
//   - Code: the site's index in the table it was registered in;
//   - Message: the site's trace-time formatted message;
//   - Worker: the replica that faulted, or -1 for unreplicated execution.
//
// Error values are plain data. The mutation helper (WithWorker) returns a
// shallow copy, so instances can be safely shared in a functional style.
type Error struct {
	// Class is the primary classification of the fault, e.g. fault.User,
	// fault.NaN. Must be a normalized class from this package.
	Class Class

	// Path identifies the failing check site, e.g. "nan.sin". May be empty
	// when the site did not declare one.
	Path Path

	// Code is the site's code in the table that produced this fault. It is
	// only meaningful together with that table; it is carried so that the
	// data form and the raise form of a fault can be converted losslessly.
	Code int32

	// Message is the human-readable explanation formatted when the site was
	// registered. This is what should end up in logs or test failures.
	Message string

	// Worker is the index of the replica whose execution path faulted.
	// It is -1 for unreplicated execution.
	Worker int
}

// New constructs a raise-form fault for the given site identity.
// The Worker field is initialized to -1 (unreplicated).
func New(c Class, p Path, code int32, message string) *Error {
	return &Error{Class: c, Path: p, Code: code, Message: message, Worker: -1}
}

// Error implements the built-in error interface.
//
// The format is:
//
//	<class>: <message>
//
// or, when Path is present:
//
//	<class>:<path>: <message>
//
// This makes the fault both human- and machine-scannable in logs.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Path != NoPath {
		return fmt.Sprintf("%s:%s: %s", e.Class, e.Path, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Class, e.Message)
}

// ErrorClass returns the machine-readable fault class.
// It satisfies the apis.ClassedError contract.
func (e *Error) ErrorClass() string { return string(e.Class) }

// ErrorPath returns the failing site's path. May be empty.
// It satisfies the apis.PathedError contract.
func (e *Error) ErrorPath() string { return string(e.Path) }

// ErrorCode returns the site code within its table.
// It satisfies the apis.CodedError contract.
func (e *Error) ErrorCode() int32 { return e.Code }

// ErrorWorker returns the faulting replica index, or -1 when the fault did
// not come from replicated execution.
func (e *Error) ErrorWorker() int { return e.Worker }

// WithWorker returns a shallow copy of e with the given replica index set.
// The original error is not modified.
func (e *Error) WithWorker(w int) *Error {
	cp := *e
	cp.Worker = w
	return &cp
}
