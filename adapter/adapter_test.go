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

package adapter

import (
	"strings"
	"testing"

	"github.com/kylelemons/godebug/pretty"

	"dirpx.dev/checkify"
	"dirpx.dev/checkify/apis"
	"dirpx.dev/checkify/fault"
	"dirpx.dev/checkify/stage"
)

// laneFault produces a three-lane Error with worker 1 faulted on the user
// check, via a real replicated call.
func laneFault(t *testing.T) checkify.Error {
	t.Helper()
	body := func(b *stage.Builder, args []stage.Node) []stage.Node {
		b.Assert(b.Gt(args[0], b.Const(stage.Float(0))), "must be positive!")
		return []stage.Node{b.Sqrt(args[0])}
	}
	e, _, err := checkify.Checkify(stage.Pmap(body)).Call(stage.FloatVec([]float64{1, -4, 9}))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if !e.Occurred() {
		t.Fatal("seed call did not fault")
	}
	return e
}

func TestToReport_Clean(t *testing.T) {
	r := ToReport(checkify.Error{})
	if r.Occurred {
		t.Fatal("clean Error reported as occurred")
	}
	if r.RunID == "" {
		t.Fatal("no run id assigned")
	}
	if len(r.Lanes) != 1 || r.Lanes[0].Occurred {
		t.Fatalf("lanes = %+v, want one clean lane", r.Lanes)
	}
	if len(r.Sites) != 0 {
		t.Fatalf("empty table produced %d site descriptors", len(r.Sites))
	}

	r2 := ToReport(checkify.Error{})
	if r2.RunID == r.RunID {
		t.Fatal("two reports share a run id")
	}
}

func TestToReport_RunID(t *testing.T) {
	r := ToReport(checkify.Error{}, WithRunID("run-42"))
	if r.RunID != "run-42" {
		t.Fatalf("RunID = %q", r.RunID)
	}
}

func TestToReport_Lanes(t *testing.T) {
	e := laneFault(t)
	r := ToReport(e, WithRunID("run-1"))

	if !r.Occurred {
		t.Fatal("Occurred = false")
	}
	if r.Class != string(fault.User) {
		t.Fatalf("Class = %q", r.Class)
	}
	if r.Message != "must be positive!" {
		t.Fatalf("Message = %q", r.Message)
	}
	if len(r.Lanes) != 3 {
		t.Fatalf("got %d lanes, want 3", len(r.Lanes))
	}
	want := apis.Lane{
		Worker:   1,
		Occurred: true,
		Class:    "user",
		Path:     "user.assert",
		Code:     0,
		Message:  "must be positive!",
	}
	if diff := pretty.Compare(want, r.Lanes[1]); diff != "" {
		t.Fatalf("lane 1 mismatch (-want +got):\n%s", diff)
	}
	for _, i := range []int{0, 2} {
		if r.Lanes[i].Occurred || r.Lanes[i].Class != "" {
			t.Fatalf("lane %d = %+v, want clean", i, r.Lanes[i])
		}
	}
	if got := len(r.Sites); got != e.Table().Len() {
		t.Fatalf("got %d site descriptors, want %d", got, e.Table().Len())
	}
}

func TestReport_RoundTrip(t *testing.T) {
	e := laneFault(t)
	back, err := FromReport(ToReport(e))
	if err != nil {
		t.Fatalf("FromReport: %v", err)
	}
	if !back.Equal(e) {
		t.Fatalf("round trip lost fault data: %v vs %v", back, e)
	}
}

func TestFromReport_WithoutSites(t *testing.T) {
	e := laneFault(t)
	r := ToReport(e, WithoutSites())
	if len(r.Sites) != 0 {
		t.Fatalf("sites disclosed despite WithoutSites: %d", len(r.Sites))
	}
	back, err := FromReport(r)
	if err != nil {
		t.Fatalf("FromReport: %v", err)
	}
	if !back.Occurred() {
		t.Fatal("fault lost")
	}
	if got, want := back.Message(), e.Message(); got != want {
		t.Fatalf("Message = %q, want %q", got, want)
	}
	if got, want := back.Class(), e.Class(); got != want {
		t.Fatalf("Class = %q, want %q", got, want)
	}
	if back.Lanes() != 1 {
		t.Fatalf("site-less reconstruction kept %d lanes, want 1", back.Lanes())
	}
}

func TestFromReport_CleanWithoutSites(t *testing.T) {
	back, err := FromReport(apis.Report{RunID: "r", Occurred: false})
	if err != nil {
		t.Fatalf("FromReport: %v", err)
	}
	if back.Occurred() {
		t.Fatal("clean report rebuilt as occurred")
	}
}

func TestFromReport_Malformed(t *testing.T) {
	cases := []struct {
		name string
		r    apis.Report
		want string
	}{
		{
			"non-dense codes",
			apis.Report{Sites: []apis.SiteDescriptor{{Code: 1, Class: "user", Message: "m"}}},
			"dense",
		},
		{
			"bad class",
			apis.Report{Sites: []apis.SiteDescriptor{{Code: 0, Class: "NOT VALID", Message: "m"}}},
			"class",
		},
		{
			"lane code outside table",
			apis.Report{
				Sites: []apis.SiteDescriptor{{Code: 0, Class: "user", Path: "user.assert", Message: "m"}},
				Lanes: []apis.Lane{{Worker: 0, Occurred: true, Code: 9}},
			},
			"code 9",
		},
		{
			"occurred without lanes or sites",
			apis.Report{Occurred: true},
			"no faulted lane",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := FromReport(tc.r)
			if err == nil {
				t.Fatal("no error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestProto_RoundTrip(t *testing.T) {
	e := laneFault(t)
	r := ToReport(e, WithRunID("run-7"))

	sp, err := ToProto(r)
	if err != nil {
		t.Fatalf("ToProto: %v", err)
	}
	back, err := FromProto(sp)
	if err != nil {
		t.Fatalf("FromProto: %v", err)
	}
	if diff := pretty.Compare(r, back); diff != "" {
		t.Fatalf("report changed across proto round trip (-want +got):\n%s", diff)
	}

	// And the decoded report still rebuilds the original Error.
	rebuilt, err := FromReport(back)
	if err != nil {
		t.Fatalf("FromReport: %v", err)
	}
	if !rebuilt.Equal(e) {
		t.Fatal("proto round trip lost fault data")
	}
}

func TestProto_NilStruct(t *testing.T) {
	if _, err := FromProto(nil); err == nil {
		t.Fatal("nil struct decoded")
	}
}
