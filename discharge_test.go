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
	"testing"

	"dirpx.dev/checkify/fault"
	"dirpx.dev/checkify/stage"
)

func TestRecharge_RoundTrip(t *testing.T) {
	ck := Checkify(positiveSqrt)
	e1, _ := mustCall(t, ck, stage.Float(-3))
	if !e1.Occurred() {
		t.Fatal("seed call did not fault")
	}

	double := func(b *stage.Builder, args []stage.Node) []stage.Node {
		Recharge(b, e1)
		return []stage.Node{b.Add(args[0], args[0])}
	}
	e2, outs := mustCall(t, Checkify(double), stage.Float(1))
	if !e2.Occurred() {
		t.Fatal("recharged fault was lost")
	}
	if got, want := e2.Message(), e1.Message(); got != want {
		t.Fatalf("Message() = %q, want %q", got, want)
	}
	if got, want := e2.Class(), e1.Class(); got != want {
		t.Fatalf("Class() = %q, want %q", got, want)
	}
	wantFloat(t, outs[0], 2)
}

func TestRecharge_EagerRaise(t *testing.T) {
	ck := Checkify(positiveSqrt)
	e1, _ := mustCall(t, ck, stage.Float(-3))

	reassert := func(b *stage.Builder, args []stage.Node) []stage.Node {
		Recharge(b, e1)
		return []stage.Node{args[0]}
	}
	_, err := stage.Apply(reassert, stage.Float(1))
	var ferr *fault.Error
	if !errors.As(err, &ferr) {
		t.Fatalf("Apply error = %v, want *fault.Error", err)
	}
	if got, want := ferr.Message, e1.Message(); got != want {
		t.Fatalf("raised message = %q, want %q", got, want)
	}
	if ferr.Class != fault.User {
		t.Fatalf("raised class = %q, want %q", ferr.Class, fault.User)
	}
}

func TestRecharge_Clean(t *testing.T) {
	var clean Error
	f := func(b *stage.Builder, args []stage.Node) []stage.Node {
		Recharge(b, clean)
		return []stage.Node{args[0]}
	}

	outs, err := stage.Apply(f, stage.Float(5))
	if err != nil {
		t.Fatalf("recharging a clean Error raised: %v", err)
	}
	wantFloat(t, outs[0], 5)

	e, outs2 := mustCall(t, Checkify(f), stage.Float(5))
	if e.Occurred() {
		t.Fatalf("recharging a clean Error faulted: %v", e)
	}
	wantFloat(t, outs2[0], 5)
}

func TestRecharge_MultiLane(t *testing.T) {
	pm := Checkify(stage.Pmap(positiveSqrt))
	e1, _ := mustCall(t, pm, stage.FloatVec([]float64{1, -4, 9}))
	if got := e1.Lanes(); got != 3 {
		t.Fatalf("seed Lanes() = %d, want 3", got)
	}

	reassert := func(b *stage.Builder, args []stage.Node) []stage.Node {
		Recharge(b, e1)
		return []stage.Node{args[0]}
	}

	// Eagerly the first faulted lane raises, tagged with its index.
	_, err := stage.Apply(reassert, stage.Float(0))
	var ferr *fault.Error
	if !errors.As(err, &ferr) {
		t.Fatalf("Apply error = %v, want *fault.Error", err)
	}
	if ferr.Worker != 1 {
		t.Fatalf("Worker = %d, want 1", ferr.Worker)
	}

	// Under a transform the lanes survive as lanes.
	e2, _ := mustCall(t, Checkify(reassert), stage.Float(0))
	if got := e2.Lanes(); got != 3 {
		t.Fatalf("recharged Lanes() = %d, want 3", got)
	}
	if o, _ := e2.Lane(1); !o {
		t.Fatal("lane 1 lost its fault")
	}
	if o, _ := e2.Lane(0); o {
		t.Fatal("lane 0 gained a fault")
	}
	if got, want := e2.Message(), e1.Message(); got != want {
		t.Fatalf("Message() = %q, want %q", got, want)
	}
}

func TestFromFault_RechargeBridge(t *testing.T) {
	_, err := stage.Apply(positiveSqrt, stage.Float(-3))
	if err == nil {
		t.Fatal("eager check did not raise")
	}
	e, ok := FromFault(err)
	if !ok {
		t.Fatalf("FromFault rejected %v", err)
	}

	reassert := func(b *stage.Builder, args []stage.Node) []stage.Node {
		Recharge(b, e)
		return []stage.Node{args[0]}
	}
	e2, outs := mustCall(t, Checkify(reassert), stage.Float(7))
	if got := e2.Message(); got != "must be positive!" {
		t.Fatalf("Message() = %q", got)
	}
	if got := e2.Class(); got != fault.User {
		t.Fatalf("Class() = %q", got)
	}
	wantFloat(t, outs[0], 7)
}
