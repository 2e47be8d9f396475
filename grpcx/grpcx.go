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

// Package grpcx carries fault data across gRPC boundaries.
//
// A server encodes an Error's report as a protobuf Struct detail on the
// status it returns; a client decodes the detail back into a report and,
// when the report discloses its site table, rebuilds the Error and recharges
// it locally. This is the remote half of the replicated pattern: workers
// return fault data, the coordinator re-imposes it.
package grpcx

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"dirpx.dev/checkify"
	"dirpx.dev/checkify/adapter"
	"dirpx.dev/checkify/apis"
	"dirpx.dev/checkify/fault"
)

// CodeFor maps a fault class to the gRPC status code a fault of that class
// travels under. The empty class, a clean Error, maps to OK.
func CodeFor(c fault.Class) codes.Code {
	switch c {
	case "":
		return codes.OK
	case fault.User:
		return codes.FailedPrecondition
	case fault.NaN, fault.OOB:
		return codes.OutOfRange
	case fault.Div:
		return codes.InvalidArgument
	}
	return codes.Unknown
}

// ToStatus encodes fault data as a gRPC status: the first fault picks the
// code and message, and the full report rides along as a structpb detail.
// A clean Error yields a bare OK status; gRPC forbids details on OK.
func ToStatus(e checkify.Error, opts ...adapter.Option) *status.Status {
	if !e.Occurred() {
		return status.New(codes.OK, "no fault")
	}
	st := status.New(CodeFor(e.Class()), e.String())
	sp, err := adapter.ToProto(adapter.ToReport(e, opts...))
	if err != nil {
		return st
	}
	if with, err := st.WithDetails(sp); err == nil {
		return with
	}
	return st
}

// ToError is ToStatus in error form: nil when the Error is clean.
func ToError(e checkify.Error, opts ...adapter.Option) error {
	if !e.Occurred() {
		return nil
	}
	return ToStatus(e, opts...).Err()
}

// FromStatus decodes the report detail from a status, if one is attached.
func FromStatus(st *status.Status) (apis.Report, bool) {
	if st == nil {
		return apis.Report{}, false
	}
	for _, d := range st.Details() {
		sp, ok := d.(*structpb.Struct)
		if !ok {
			continue
		}
		r, err := adapter.FromProto(sp)
		if err != nil {
			continue
		}
		return r, true
	}
	return apis.Report{}, false
}

// ExtractReport pulls the report detail out of a gRPC error, if present.
// Useful in clients and tests.
func ExtractReport(err error) (apis.Report, bool) {
	if err == nil {
		return apis.Report{}, false
	}
	st, ok := status.FromError(err)
	if !ok {
		return apis.Report{}, false
	}
	return FromStatus(st)
}

// ExtractError rebuilds fault data from a gRPC error: the report detail is
// decoded and converted back into an Error. The second result is false when
// the error carries no report.
func ExtractError(err error) (checkify.Error, bool) {
	r, ok := ExtractReport(err)
	if !ok {
		return checkify.Error{}, false
	}
	e, cerr := adapter.FromReport(r)
	if cerr != nil {
		return checkify.Error{}, false
	}
	return e, true
}

// UnaryServerInterceptor converts faults escaping a handler into rich gRPC
// statuses.
//
// A handler error that provides its own report (apis.ReportProvider) is
// encoded as-is; a raised *fault.Error, wrapped or not, is lifted into fault
// data first. Any other error passes through untouched.
func UnaryServerInterceptor(opts ...adapter.Option) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		resp, err := handler(ctx, req)
		if err == nil {
			return resp, nil
		}
		if rp, ok := err.(apis.ReportProvider); ok {
			return nil, reportStatus(rp.ErrorReport(), err.Error()).Err()
		}
		if e, ok := checkify.FromFault(err); ok {
			return nil, ToStatus(e, opts...).Err()
		}
		return nil, err
	}
}

// reportStatus encodes an already-built report under its class's code.
func reportStatus(r apis.Report, msg string) *status.Status {
	st := status.New(CodeFor(fault.Class(r.Class)), msg)
	sp, err := adapter.ToProto(r)
	if err != nil {
		return st
	}
	if with, err := st.WithDetails(sp); err == nil {
		return with
	}
	return st
}
