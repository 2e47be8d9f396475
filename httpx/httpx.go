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

// Package httpx renders captured fault data as HTTP responses.
//
// The body is the fault report encoded as JSON; the status code is derived
// from the fault class, so coordinators polling workers over plain HTTP can
// route on status alone and only parse the body when they need lane detail.
package httpx

import (
	"net/http"

	"google.golang.org/protobuf/encoding/protojson"

	"dirpx.dev/checkify"
	"dirpx.dev/checkify/adapter"
	"dirpx.dev/checkify/fault"
)

// StatusFor maps a fault class to an HTTP status. A clean run is 200; user
// assertions are the caller's fault (400); automatically instrumented numeric
// faults mean the inputs were unprocessable (422); unknown classes are 500.
func StatusFor(c fault.Class) int {
	switch c {
	case "":
		return http.StatusOK
	case fault.User:
		return http.StatusBadRequest
	case fault.NaN, fault.OOB, fault.Div:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Writer is a thin adapter that knows how to turn an Error into an HTTP
// response. The zero value uses StatusFor; set Status to override the
// class-to-status mapping.
type Writer struct {
	Status func(fault.Class) int
}

// WriteFault serializes the fault report and writes it to the response
// writer. A clean Error is written too, as a 200 with Occurred false, so a
// run endpoint can answer uniformly.
//
// No redaction is performed here: whatever the report carries is exposed
// as-is. Handlers that must hide site messages should disarm the relevant
// checks instead.
func (w Writer) WriteFault(rw http.ResponseWriter, e checkify.Error, opts ...adapter.Option) {
	sp, err := adapter.ToProto(adapter.ToReport(e, opts...))
	if err != nil {
		http.Error(rw, "encoding fault report", http.StatusInternalServerError)
		return
	}

	statusFor := w.Status
	if statusFor == nil {
		statusFor = StatusFor
	}

	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(statusFor(e.Class()))

	// structpb.Struct is a well-known type: through protojson it renders as
	// the plain JSON object, not as a field-and-kind envelope.
	b, _ := (protojson.MarshalOptions{
		EmitUnpopulated: false,
	}).Marshal(sp)
	_, _ = rw.Write(b)
}
