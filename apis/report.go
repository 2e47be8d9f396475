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

// ReportProvider is implemented by faults that can produce a transport-
// friendly, self-contained representation of themselves.
//
// This is useful for HTTP/gRPC adapters that want to send "the canonical
// form" of the fault to the client without having to know about the concrete
// fault type.
//
// The returned report MUST be safe to marshal (to JSON/proto) and SHOULD
// contain all information that is safe to disclose to the client.
type ReportProvider interface {
	error

	// ErrorReport returns a transport-friendly snapshot of the fault.
	ErrorReport() Report
}

// Report is a minimal, serializable representation of a checked execution's
// fault state.
//
// This is *not* the concrete accumulator type used internally — it is the
// shape that we are comfortable exposing over the wire or logging. Keeping
// it here (in apis) allows both HTTP and gRPC adapters to share the same
// struct.
type Report struct {
	// RunID identifies the checked execution this report came out of.
	//
	// It MAY be empty when the producer did not assign one.
	RunID string `json:"run_id,omitempty"`

	// Occurred reports whether any lane of the execution faulted.
	Occurred bool `json:"occurred"`

	// Class is the fault class of the first faulting lane, e.g. "nan",
	// "oob", "user".
	//
	// It MAY be empty when Occurred is false. Implementations SHOULD store
	// only normalized, validated classes here.
	Class string `json:"class,omitempty"`

	// Message is the human-friendly message of the first faulting lane.
	//
	// It MAY be empty when Occurred is false.
	Message string `json:"message,omitempty"`

	// Lanes holds the per-worker fault state of a replicated execution, one
	// entry per worker in worker order.
	//
	// For unreplicated executions it holds exactly one entry. It MAY be nil
	// on reports that were reduced to the first fault only.
	Lanes []Lane `json:"lanes,omitempty"`

	// Sites optionally carries the site table of the producing program, so
	// that a consumer can re-impose the fault on another program. A nil
	// slice means the table was not disclosed.
	Sites []SiteDescriptor `json:"sites,omitempty"`
}

// Lane represents the fault state of a single worker in a replicated
// execution. This is a *view type* — small, transport-friendly, and suitable
// for JSON or proto adapters.
//
// We keep it in apis so that different parts of the system (checked
// executions, HTTP/gRPC adapters, loggers) can speak about per-worker faults
// without importing the concrete accumulator implementation.
type Lane struct {
	// Worker is the zero-based worker index of this lane. For unreplicated
	// executions it is 0.
	Worker int `json:"worker"`

	// Occurred reports whether this lane faulted.
	Occurred bool `json:"occurred"`

	// Class is the fault class of this lane, e.g. "nan", "oob", "user".
	// Empty when Occurred is false.
	Class string `json:"class,omitempty"`

	// Path is the check-site path of this lane's fault, e.g. "nan.sin".
	// It MAY be empty even for a faulted lane.
	Path string `json:"path,omitempty"`

	// Code is the program-local site code of this lane's fault. Only
	// meaningful when Occurred is true.
	Code int32 `json:"code"`

	// Message is the human-friendly message of this lane's fault. Empty
	// when Occurred is false.
	Message string `json:"message,omitempty"`
}
