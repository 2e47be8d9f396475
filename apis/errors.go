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

// ClassedError represents a fault that is classified into a well-defined,
// machine-readable fault *class*.
//
// A class denotes a broad category of runtime fault, such as:
//   - "user" — a user-written check or assertion failed,
//   - "nan"  — a floating-point primitive produced NaN,
//   - "oob"  — an index landed outside its operand,
//   - "div"  — a division by zero.
//
// Classes are intended to be stable and enumerable. They are the primary
// value that higher-level adapters (HTTP, gRPC) use to decide which status
// to return to the client, and that policies use to arm or disarm whole
// families of checks at once.
//
// Implementations are expected to return a *canonicalized* class string —
// i.e., normalized to the format enforced by the checkify/fault package
// (lowercase, underscores, length limits, etc.). Adapters should treat
// unknown or empty classes as internal/server errors.
type ClassedError interface {
	error

	// ErrorClass returns the machine-readable fault class.
	//
	// The returned value MUST be non-empty and MUST already be normalized
	// according to the rules of the checkify/fault package. Callers should
	// not try to "fix" or "guess" the value here — if it's invalid, it
	// should be handled as an internal error at the boundary.
	ErrorClass() string
}

// PathedError represents a fault that provides a more specific, contextual
// *site path* in addition to the high-level class.
//
// While the class answers the question "what kind of fault is this?", the
// path answers "which exact check site raised it?".
//
// Examples:
//
//	class: "nan"
//	path:  "nan.sin" -> the sin primitive produced a NaN
//
//	class: "user"
//	path:  "user.balance" -> the balance invariant check failed
//
// Paths are hierarchical, dot-separated strings, and are expected to be
// validated/normalized by the checkify/fault package.
//
// Having a separate interface for paths allows code to gracefully degrade:
// if a fault does not provide a path, the caller can still act on the class.
type PathedError interface {
	error

	// ErrorPath returns the specific check-site path.
	//
	// The returned value MAY be empty if the fault does not provide a more
	// specific sub-classification. Callers should be prepared to handle the
	// empty case.
	ErrorPath() string
}

// CodedError represents a fault that carries the numeric code of the check
// site that raised it, relative to the site table of the transformed program
// it came out of.
//
// Codes are dense, program-local integers assigned in declared program
// order. They are NOT stable across programs: the same source-level check
// may get a different code in a different transform. Callers that need a
// stable identity should use ErrorClass/ErrorPath instead; the code exists
// so a fault can be re-imposed on another program via recharging.
type CodedError interface {
	error

	// ErrorCode returns the program-local site code of the fault.
	ErrorCode() int32
}

// ReplicatedError represents a fault raised inside a replicated (per-worker)
// execution, and exposes which worker lane it came from.
//
// Implementations SHOULD return the zero-based worker index, or a negative
// value when the fault did not come out of a replicated region. Callers must
// be prepared to handle the negative case.
type ReplicatedError interface {
	error

	// ErrorWorker returns the zero-based worker index that raised the
	// fault, or a negative value for unreplicated execution.
	ErrorWorker() int
}
