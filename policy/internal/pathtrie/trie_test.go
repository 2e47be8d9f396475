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

package pathtrie

import "testing"

func TestInsertAndMatch_Simple(t *testing.T) {
	tr := New[bool]()
	must(t, tr.Insert("nan.sin", false))
	must(t, tr.Insert("user.balance.deposit", true))
	must(t, tr.Insert("oob.gather.axis0", false))

	if v, ok, p := tr.MatchWithPattern("nan.sin"); !ok || v != false || p != "nan.sin" {
		t.Fatalf("match nan.sin => ok=%v v=%v p=%q; want ok=true v=false p=nan.sin", ok, v, p)
	}
	if v, ok, p := tr.MatchWithPattern("user.balance.deposit"); !ok || v != true || p != "user.balance.deposit" {
		t.Fatalf("match user.balance.deposit => ok=%v v=%v p=%q; want ok=true v=true", ok, v, p)
	}
	if v, ok, p := tr.MatchWithPattern("oob.gather.axis0.fast"); !ok || v != false || p != "oob.gather.axis0" {
		t.Fatalf("match oob.gather.axis0.fast => ok=%v v=%v p=%q; want prefix oob.gather.axis0", ok, v, p)
	}
}

func TestWildcard_OneSegment(t *testing.T) {
	tr := New[int]()
	must(t, tr.Insert("user.*.check", 498))
	must(t, tr.Insert("user.jwt.check", 401)) // exact should beat wildcard at same depth

	// exact match wins
	if v, ok, p := tr.MatchWithPattern("user.jwt.check"); !ok || v != 401 || p != "user.jwt.check" {
		t.Fatalf("exact must win over wildcard, got ok=%v v=%v p=%q", ok, v, p)
	}
	// wildcard matches a different middle segment
	if v, ok, p := tr.MatchWithPattern("user.saml.check.token"); !ok || v != 498 || p != "user.*.check" {
		t.Fatalf("wildcard match failed: ok=%v v=%v p=%q", ok, v, p)
	}
	// wildcard must match exactly one segment, not zero
	if _, ok, _ := tr.MatchWithPattern("user.check"); ok {
		t.Fatalf("wildcard should not match zero segments")
	}
}

func TestLPM_PrefersDeeperEvenIfExactBranchExists(t *testing.T) {
	tr := New[int]()
	// wildcard path can produce deeper match than an existing (but shallow) exact branch
	must(t, tr.Insert("a.*.c", 7))
	// create an exact branch that doesn't lead to a value at the same depth
	// (common pitfall for greedy algorithms)
	must(t, tr.Insert("a.b", 1))

	if v, ok, p := tr.MatchWithPattern("a.b.c"); !ok || v != 7 || p != "a.*.c" {
		t.Fatalf("LPM must choose wildcard path: ok=%v v=%v p=%q", ok, v, p)
	}
}

func TestInvalidInputs(t *testing.T) {
	tr := New[int]()
	if err := tr.Insert("", 1); err == nil {
		t.Fatalf("empty prefix must be invalid")
	}
	if err := tr.Insert("UPPER.case", 1); err == nil {
		t.Fatalf("uppercase must be invalid")
	}
	if err := tr.Insert("a..b", 1); err == nil {
		t.Fatalf("empty segment must be invalid")
	}
	if err := tr.Insert("*", 1); err == nil {
		t.Fatalf("single wildcard without context should be invalid (segment OK, but prefix must have at least one seg before/after)")
	}

	if _, ok, _ := tr.MatchWithPattern("UPPER.case"); ok {
		t.Fatalf("match should be false for invalid path")
	}
	if _, ok, _ := tr.MatchWithPattern("a..b"); ok {
		t.Fatalf("match should be false for invalid path")
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
