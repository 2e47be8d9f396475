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

package grpcx

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"dirpx.dev/checkify"
	"dirpx.dev/checkify/adapter"
	"dirpx.dev/checkify/apis"
	"dirpx.dev/checkify/fault"
	"dirpx.dev/checkify/stage"
)

func positiveSqrt(b *stage.Builder, args []stage.Node) []stage.Node {
	b.Assert(b.Gt(args[0], b.Const(stage.Float(0))), "must be positive!")
	return []stage.Node{b.Sqrt(args[0])}
}

func userFault(t *testing.T) checkify.Error {
	t.Helper()
	e, _, err := checkify.Checkify(positiveSqrt).Call(stage.Float(-3))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if !e.Occurred() {
		t.Fatal("seed call did not fault")
	}
	return e
}

func TestCodeFor(t *testing.T) {
	cases := []struct {
		class fault.Class
		want  codes.Code
	}{
		{"", codes.OK},
		{fault.User, codes.FailedPrecondition},
		{fault.NaN, codes.OutOfRange},
		{fault.OOB, codes.OutOfRange},
		{fault.Div, codes.InvalidArgument},
		{fault.Class("custom"), codes.Unknown},
	}
	for _, tc := range cases {
		if got := CodeFor(tc.class); got != tc.want {
			t.Errorf("CodeFor(%q) = %v, want %v", tc.class, got, tc.want)
		}
	}
}

func TestToStatus_Clean(t *testing.T) {
	st := ToStatus(checkify.Error{})
	if st.Code() != codes.OK {
		t.Fatalf("Code() = %v, want OK", st.Code())
	}
	if len(st.Details()) != 0 {
		t.Fatal("OK status carries details")
	}
	if err := ToError(checkify.Error{}); err != nil {
		t.Fatalf("ToError(clean) = %v, want nil", err)
	}
}

func TestToStatus_Fault(t *testing.T) {
	e := userFault(t)
	st := ToStatus(e, adapter.WithRunID("run-1"))

	if st.Code() != codes.FailedPrecondition {
		t.Fatalf("Code() = %v, want FailedPrecondition", st.Code())
	}
	if got, want := st.Message(), "user:user.assert: must be positive!"; got != want {
		t.Fatalf("Message() = %q, want %q", got, want)
	}
	r, ok := FromStatus(st)
	if !ok {
		t.Fatal("status carries no report detail")
	}
	if r.RunID != "run-1" || !r.Occurred || r.Message != "must be positive!" {
		t.Fatalf("report = %+v", r)
	}
}

func TestExtract_RemoteRecharge(t *testing.T) {
	// Worker side: run checkified, ship the fault data in the status.
	e := userFault(t)
	wireErr := ToError(e)
	if wireErr == nil {
		t.Fatal("ToError(faulted) = nil")
	}

	// Coordinator side: decode and re-impose under its own transform.
	remote, ok := ExtractError(wireErr)
	if !ok {
		t.Fatal("ExtractError found no report")
	}
	if !remote.Equal(e) {
		t.Fatalf("wire round trip lost fault data: %v vs %v", remote, e)
	}

	reassert := func(b *stage.Builder, args []stage.Node) []stage.Node {
		checkify.Recharge(b, remote)
		return []stage.Node{args[0]}
	}
	e2, _, err := checkify.Checkify(reassert).Call(stage.Float(1))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if got, want := e2.Message(), e.Message(); got != want {
		t.Fatalf("recharged Message() = %q, want %q", got, want)
	}
	if got, want := e2.Class(), e.Class(); got != want {
		t.Fatalf("recharged Class() = %q, want %q", got, want)
	}
}

func TestExtract_NoReport(t *testing.T) {
	if _, ok := ExtractReport(nil); ok {
		t.Fatal("nil error yielded a report")
	}
	if _, ok := ExtractReport(errors.New("plain")); ok {
		t.Fatal("plain error yielded a report")
	}
	if _, ok := ExtractError(status.Error(codes.Internal, "boom")); ok {
		t.Fatal("detail-less status yielded an Error")
	}
}

// reportError is a handler error that carries its own report.
type reportError struct {
	r apis.Report
}

func (e *reportError) Error() string { return e.r.Message }

func (e *reportError) ErrorReport() apis.Report { return e.r }

func TestUnaryServerInterceptor(t *testing.T) {
	icept := UnaryServerInterceptor(adapter.WithRunID("run-9"))
	info := &grpc.UnaryServerInfo{FullMethod: "/numeric.Engine/Run"}
	invoke := func(err error) (any, error) {
		return icept(context.Background(), struct{}{}, info,
			func(ctx context.Context, req any) (any, error) {
				if err != nil {
					return nil, err
				}
				return "resp", nil
			})
	}

	t.Run("success passes through", func(t *testing.T) {
		resp, err := invoke(nil)
		if err != nil || resp != "resp" {
			t.Fatalf("resp=%v err=%v", resp, err)
		}
	})

	t.Run("raised fault becomes a status", func(t *testing.T) {
		_, raiseErr := stage.Apply(positiveSqrt, stage.Float(-3))
		if raiseErr == nil {
			t.Fatal("eager check did not raise")
		}
		_, err := invoke(raiseErr)
		st, ok := status.FromError(err)
		if !ok {
			t.Fatalf("interceptor returned a non-status error: %v", err)
		}
		if st.Code() != codes.FailedPrecondition {
			t.Fatalf("Code() = %v", st.Code())
		}
		r, ok := FromStatus(st)
		if !ok {
			t.Fatal("no report detail")
		}
		if r.Message != "must be positive!" || r.RunID != "run-9" {
			t.Fatalf("report = %+v", r)
		}
	})

	t.Run("report provider is encoded as-is", func(t *testing.T) {
		provided := &reportError{r: apis.Report{
			RunID:    "run-x",
			Occurred: true,
			Class:    "oob",
			Message:  "out-of-bounds indexing of vector of length 3",
			Lanes:    []apis.Lane{{Worker: 0, Occurred: true, Class: "oob", Path: "oob.index", Code: 0, Message: "out-of-bounds indexing of vector of length 3"}},
		}}
		_, err := invoke(provided)
		st, ok := status.FromError(err)
		if !ok {
			t.Fatalf("non-status error: %v", err)
		}
		if st.Code() != codes.OutOfRange {
			t.Fatalf("Code() = %v", st.Code())
		}
		r, ok := FromStatus(st)
		if !ok || r.RunID != "run-x" {
			t.Fatalf("report = %+v ok=%v", r, ok)
		}
	})

	t.Run("other errors pass through", func(t *testing.T) {
		plain := errors.New("disk full")
		_, err := invoke(plain)
		if !errors.Is(err, plain) {
			t.Fatalf("plain error was rewritten: %v", err)
		}
	})
}
