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

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"dirpx.dev/checkify/fault"
	"dirpx.dev/checkify/site"
)

func mustSite(t *testing.T, c fault.Class, path, msg string) site.Site {
	t.Helper()
	s, err := site.New(c, path, msg)
	if err != nil {
		t.Fatalf("site.New(%s, %q): %v", c, path, err)
	}
	return s
}

func TestError_Zero(t *testing.T) {
	var e Error
	if e.Occurred() {
		t.Fatal("zero Error reports a fault")
	}
	if got := e.Lanes(); got != 1 {
		t.Fatalf("Lanes() = %d, want 1", got)
	}
	if o, c := e.Lane(0); o || c != 0 {
		t.Fatalf("Lane(0) = (%v, %d), want clean", o, c)
	}
	if err := e.Err(); err != nil {
		t.Fatalf("Err() = %v, want nil", err)
	}
	if got := e.Message(); got != "" {
		t.Fatalf("Message() = %q, want empty", got)
	}
	if _, ok := e.Code(); ok {
		t.Fatal("Code() reports a code on the zero Error")
	}
	if got := e.String(); got != "no fault" {
		t.Fatalf("String() = %q", got)
	}
}

func TestError_SingleLane(t *testing.T) {
	tbl := site.Of(
		mustSite(t, fault.User, "user.assert", "must be positive!"),
		mustSite(t, fault.NaN, "nan.sin", "nan generated by primitive sin"),
	)
	e := Error{occ: []bool{true}, codes: []int32{1}, table: tbl}

	if !e.Occurred() {
		t.Fatal("Occurred() = false")
	}
	if got, ok := e.Code(); !ok || got != 1 {
		t.Fatalf("Code() = (%d, %v), want (1, true)", got, ok)
	}
	if got := e.Class(); got != fault.NaN {
		t.Fatalf("Class() = %q, want %q", got, fault.NaN)
	}
	if got := e.Path(); got != "nan.sin" {
		t.Fatalf("Path() = %q", got)
	}
	if got := e.Message(); got != "nan generated by primitive sin" {
		t.Fatalf("Message() = %q", got)
	}

	err := e.Err()
	if err == nil {
		t.Fatal("Err() = nil for an occurred Error")
	}
	var ferr *fault.Error
	if !errors.As(err, &ferr) {
		t.Fatalf("Err() = %T, want *fault.Error", err)
	}
	if ferr.Worker != -1 {
		t.Fatalf("single-lane fault has Worker %d, want -1", ferr.Worker)
	}
	if got, want := err.Error(), "nan:nan.sin: nan generated by primitive sin"; got != want {
		t.Fatalf("Err().Error() = %q, want %q", got, want)
	}
}

func TestError_MultiLane(t *testing.T) {
	tbl := site.Of(mustSite(t, fault.User, "user.assert", "boom"))
	e := Error{occ: []bool{false, true, false}, codes: []int32{0, 0, 0}, table: tbl}

	if got := e.Lanes(); got != 3 {
		t.Fatalf("Lanes() = %d, want 3", got)
	}
	if o, _ := e.Lane(0); o {
		t.Fatal("lane 0 reports a fault")
	}
	if o, _ := e.Lane(1); !o {
		t.Fatal("lane 1 reports clean")
	}
	var ferr *fault.Error
	if !errors.As(e.Err(), &ferr) {
		t.Fatalf("Err() = %T, want *fault.Error", e.Err())
	}
	if ferr.Worker != 1 {
		t.Fatalf("Worker = %d, want 1", ferr.Worker)
	}
}

func TestError_LaneClamps(t *testing.T) {
	tbl := site.Of(mustSite(t, fault.User, "user.assert", "boom"))
	e := Error{occ: []bool{true}, codes: []int32{0}, table: tbl}
	if o, c := e.Lane(5); !o || c != 0 {
		t.Fatalf("Lane(5) = (%v, %d), want the broadcast single lane", o, c)
	}
	if o, _ := e.Lane(-1); !o {
		t.Fatal("Lane(-1) did not clamp to lane 0")
	}
}

func TestError_UnknownCode(t *testing.T) {
	e := Error{occ: []bool{true}, codes: []int32{7}}
	err := e.Err()
	if err == nil {
		t.Fatal("Err() = nil")
	}
	if !errors.Is(err, site.ErrCodeUnknown) {
		t.Fatalf("Err() = %v, want ErrCodeUnknown", err)
	}
	if got := e.Message(); got != "" {
		t.Fatalf("Message() = %q, want empty for unknown code", got)
	}
}

func TestError_Equal(t *testing.T) {
	tbl := site.Of(mustSite(t, fault.User, "user.assert", "boom"))
	other := site.Of(mustSite(t, fault.User, "user.assert", "different"))

	cases := []struct {
		name string
		a, b Error
		want bool
	}{
		{"zero vs zero", Error{}, Error{}, true},
		{"zero vs explicit clean", Error{}, Error{occ: []bool{false}, codes: []int32{0}}, true},
		{"clean lanes ignore codes", Error{occ: []bool{false}, codes: []int32{9}}, Error{}, true},
		{"same fault", Error{occ: []bool{true}, codes: []int32{0}, table: tbl}, Error{occ: []bool{true}, codes: []int32{0}, table: tbl}, true},
		{"different tables", Error{table: tbl}, Error{table: other}, false},
		{"occurred vs clean", Error{occ: []bool{true}, codes: []int32{0}, table: tbl}, Error{table: tbl}, false},
		{"broadcast lanes", Error{occ: []bool{true}, codes: []int32{0}, table: tbl}, Error{occ: []bool{true, true}, codes: []int32{0, 0}, table: tbl}, true},
		{"broadcast mismatch", Error{occ: []bool{true}, codes: []int32{0}, table: tbl}, Error{occ: []bool{true, false}, codes: []int32{0, 0}, table: tbl}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.a.Equal(tc.b); got != tc.want {
				t.Fatalf("Equal = %v, want %v", got, tc.want)
			}
			if got := tc.b.Equal(tc.a); got != tc.want {
				t.Fatalf("Equal (flipped) = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestMerge_FirstWins(t *testing.T) {
	ta := site.Of(mustSite(t, fault.User, "user.first", "first fault"))
	tb := site.Of(mustSite(t, fault.NaN, "nan.sin", "second fault"))

	a := Error{occ: []bool{true}, codes: []int32{0}, table: ta}
	b := Error{occ: []bool{true}, codes: []int32{0}, table: tb}

	m := Merge(a, b)
	if got := m.Message(); got != "first fault" {
		t.Fatalf("Message() = %q, want the first region's fault", got)
	}
	if got := m.Table().Len(); got != 2 {
		t.Fatalf("merged table has %d sites, want 2", got)
	}
}

func TestMerge_SecondRemapped(t *testing.T) {
	ta := site.Of(
		mustSite(t, fault.User, "user.a", "a0"),
		mustSite(t, fault.User, "user.b", "a1"),
	)
	tb := site.Of(
		mustSite(t, fault.NaN, "nan.sin", "b0"),
		mustSite(t, fault.Div, "div.div", "b1"),
	)

	a := Error{occ: []bool{false}, codes: []int32{0}, table: ta}
	b := Error{occ: []bool{true}, codes: []int32{1}, table: tb}

	m := Merge(a, b)
	if !m.Occurred() {
		t.Fatal("merge of an occurred Error is clean")
	}
	if got, _ := m.Code(); got != 3 {
		t.Fatalf("Code() = %d, want 3 (1 offset by a's 2 sites)", got)
	}
	if got := m.Message(); got != "b1" {
		t.Fatalf("Message() = %q, want %q", got, "b1")
	}
	if got := m.Class(); got != fault.Div {
		t.Fatalf("Class() = %q, want %q", got, fault.Div)
	}
}

func TestMerge_Broadcast(t *testing.T) {
	tb := site.Of(mustSite(t, fault.User, "user.assert", "lane fault"))
	a := Error{}
	b := Error{occ: []bool{false, false, true}, codes: []int32{0, 0, 0}, table: tb}

	m := Merge(a, b)
	if got := m.Lanes(); got != 3 {
		t.Fatalf("Lanes() = %d, want 3", got)
	}
	if o, _ := m.Lane(2); !o {
		t.Fatal("lane 2 lost its fault")
	}
	if o, _ := m.Lane(0); o {
		t.Fatal("lane 0 gained a fault")
	}

	// Flipped: single faulted lane broadcast against three clean lanes.
	a2 := Error{occ: []bool{true}, codes: []int32{0}, table: tb}
	b2 := Error{occ: []bool{false, false, false}, codes: []int32{0, 0, 0}}
	m2 := Merge(a2, b2)
	if got := m2.Lanes(); got != 3 {
		t.Fatalf("Lanes() = %d, want 3", got)
	}
	for i := 0; i < 3; i++ {
		if o, _ := m2.Lane(i); !o {
			t.Fatalf("lane %d lost the broadcast fault", i)
		}
	}
}

func TestMerge_BothClean(t *testing.T) {
	m := Merge(Error{}, Error{})
	if m.Occurred() {
		t.Fatal("merge of clean Errors reports a fault")
	}
	if !m.Equal(Error{}) {
		t.Fatal("merge of clean Errors is not Equal to the zero Error")
	}
}

func TestFromFault(t *testing.T) {
	raised := fault.New(fault.User, "user.balance", 3, "balance must stay positive")

	e, ok := FromFault(raised)
	if !ok {
		t.Fatal("FromFault rejected a *fault.Error")
	}
	if !e.Occurred() {
		t.Fatal("lifted Error is clean")
	}
	if got := e.Message(); got != "balance must stay positive" {
		t.Fatalf("Message() = %q", got)
	}
	if got := e.Class(); got != fault.User {
		t.Fatalf("Class() = %q", got)
	}
	if got, _ := e.Code(); got != 0 {
		t.Fatalf("Code() = %d, want 0 in the fresh table", got)
	}

	wrapped := fmt.Errorf("handling request: %w", raised)
	if _, ok := FromFault(wrapped); !ok {
		t.Fatal("FromFault rejected a wrapped *fault.Error")
	}

	if _, ok := FromFault(errors.New("plain")); ok {
		t.Fatal("FromFault accepted a plain error")
	}
	if _, ok := FromFault(nil); ok {
		t.Fatal("FromFault accepted nil")
	}
}

func TestError_String(t *testing.T) {
	tbl := site.Of(mustSite(t, fault.User, "user.assert", "boom"))
	e := Error{occ: []bool{true}, codes: []int32{0}, table: tbl}
	if got := e.String(); !strings.Contains(got, "user:user.assert: boom") {
		t.Fatalf("String() = %q", got)
	}
}
