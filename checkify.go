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

// Package checkify rewrites traced programs so that check failures travel as
// ordinary data instead of halting execution. A checkified call returns an
// Error value alongside the program outputs; the Error says whether any
// instrumented site fired and, if so, which one fired first.
package checkify

import (
	"errors"
	"fmt"

	"dirpx.dev/checkify/fault"
	"dirpx.dev/checkify/site"
)

// Error is the fault payload of one checkified call.
//
// It carries:
//   - one occurred flag and one site code per lane — a single lane for
//     ordinary execution, one lane per worker for parallel execution;
//   - the static code→site table of the trace that produced it.
//
// A lane's code is only meaningful while its occurred flag is set. The zero
// Error reads as a single clean lane and is what a fault-free call returns.
//
// Error is a value: it is immutable, safe to copy and safe to share. Two
// Errors are only comparable when their tables match, which holds exactly
// when they came from the same rewritten trace.
type Error struct {
	occ   []bool
	codes []int32
	table site.Table
}

// Lanes reports the number of fault lanes. The zero Error has one.
func (e Error) Lanes() int {
	if len(e.occ) == 0 {
		return 1
	}
	return len(e.occ)
}

// Lane returns the occurred flag and site code of one lane. Out-of-range
// indices clamp to the nearest lane, so single-lane data broadcasts cleanly
// when merged against multi-lane data.
func (e Error) Lane(i int) (occurred bool, code int32) {
	if len(e.occ) == 0 {
		return false, 0
	}
	if i < 0 {
		i = 0
	}
	if i >= len(e.occ) {
		i = len(e.occ) - 1
	}
	return e.occ[i], e.codes[i]
}

// Occurred reports whether any lane holds a fault.
func (e Error) Occurred() bool {
	for _, o := range e.occ {
		if o {
			return true
		}
	}
	return false
}

// firstFault returns the lowest-numbered faulted lane and its code.
func (e Error) firstFault() (lane int, code int32, ok bool) {
	for i, o := range e.occ {
		if o {
			return i, e.codes[i], true
		}
	}
	return 0, 0, false
}

// Code returns the site code of the first faulted lane. The second result is
// false when no lane faulted.
func (e Error) Code() (int32, bool) {
	_, code, ok := e.firstFault()
	return code, ok
}

// Class returns the fault class of the first faulted lane, or the empty
// class when no lane faulted or the code is not in the table.
func (e Error) Class() fault.Class {
	s, ok := e.firstSite()
	if !ok {
		return ""
	}
	return s.Class
}

// Path returns the site path of the first faulted lane, or NoPath when no
// lane faulted or the code is not in the table.
func (e Error) Path() fault.Path {
	s, ok := e.firstSite()
	if !ok {
		return fault.NoPath
	}
	return s.Path
}

// Message returns the registered message of the first faulted lane, or the
// empty string when no lane faulted.
func (e Error) Message() string {
	s, ok := e.firstSite()
	if !ok {
		return ""
	}
	return s.Message
}

func (e Error) firstSite() (site.Site, bool) {
	_, code, ok := e.firstFault()
	if !ok {
		return site.Site{}, false
	}
	return e.table.Lookup(code)
}

// Table returns the code→site table this Error's codes index into.
func (e Error) Table() site.Table {
	return e.table
}

// Err converts the Error into Go's error form.
//
// It returns nil when no lane faulted. Otherwise it returns the *fault.Error
// of the first faulted lane, tagged with the lane index as its worker when
// the Error carries more than one lane. Callers that only want to throw on
// fault write:
//
//	e, outs, err := checked.Call(xs...)
//	if err != nil { ... }        // infrastructure failure
//	if ferr := e.Err(); ferr != nil { ... } // computation fault
func (e Error) Err() error {
	lane, code, ok := e.firstFault()
	if !ok {
		return nil
	}
	s, found := e.table.Lookup(code)
	if !found {
		return fmt.Errorf("checkify: lane %d: code %d: %w", lane, code, site.ErrCodeUnknown)
	}
	ferr := s.Err(code)
	if e.Lanes() > 1 {
		ferr = ferr.WithWorker(lane)
	}
	return ferr
}

// Equal reports whether two Errors carry the same fault data: the same
// normalized lanes and the same table. Codes of clean lanes are ignored.
func (e Error) Equal(o Error) bool {
	if !e.table.Equal(o.table) {
		return false
	}
	n := e.Lanes()
	if o.Lanes() > n {
		n = o.Lanes()
	}
	for i := 0; i < n; i++ {
		eo, ec := e.Lane(i)
		oo, oc := o.Lane(i)
		if eo != oo {
			return false
		}
		if eo && ec != oc {
			return false
		}
	}
	return true
}

// String renders the first fault, or "no fault".
func (e Error) String() string {
	if err := e.Err(); err != nil {
		return err.Error()
	}
	return "no fault"
}

// Merge combines fault data from two sequenced regions, a first. Per lane: a
// fault in a wins, a lane clean in a but faulted in b takes b's code, and
// codes from b are remapped into the merged table.
//
// Lanes broadcast: merging single-lane data against n-lane data reads the
// single lane for every i. The merged table is a's sites followed by b's.
func Merge(a, b Error) Error {
	lanes := a.Lanes()
	if b.Lanes() > lanes {
		lanes = b.Lanes()
	}
	tb := site.NewBuilder()
	tb.Append(a.table)
	off := tb.Append(b.table)
	occ := make([]bool, lanes)
	codes := make([]int32, lanes)
	for i := 0; i < lanes; i++ {
		ao, ac := a.Lane(i)
		bo, bc := b.Lane(i)
		switch {
		case ao:
			occ[i], codes[i] = true, ac
		case bo:
			occ[i], codes[i] = true, bc+off
		}
	}
	return Error{occ: occ, codes: codes, table: tb.Table()}
}

// FromLanes assembles an Error from explicit lane data: occ and codes must
// have the same nonzero length, and every faulted lane's code must resolve
// in tbl. This is the constructor wire adapters use to rebuild fault data
// received from another process; in-process fault data comes from the
// transform and Merge.
func FromLanes(occ []bool, codes []int32, tbl site.Table) (Error, error) {
	if len(occ) == 0 || len(occ) != len(codes) {
		return Error{}, fmt.Errorf("checkify: %d occurred lanes against %d codes", len(occ), len(codes))
	}
	for i, o := range occ {
		if !o {
			continue
		}
		if _, ok := tbl.Lookup(codes[i]); !ok {
			return Error{}, fmt.Errorf("checkify: lane %d: code %d: %w", i, codes[i], site.ErrCodeUnknown)
		}
	}
	e := Error{
		occ:   append([]bool(nil), occ...),
		codes: append([]int32(nil), codes...),
		table: tbl,
	}
	return e, nil
}

// FromFault converts a raised *fault.Error back into data form: a single
// faulted lane over a fresh one-site table. The second result is false when
// err is not a *fault.Error (wrapped or not), in which case the first is the
// zero Error.
//
// This is the bridge for code that calls a raising API inside a checkified
// region: recover the raise into data, then let the transform thread it.
func FromFault(err error) (Error, bool) {
	var ferr *fault.Error
	if !errors.As(err, &ferr) {
		return Error{}, false
	}
	st := site.Site{Class: ferr.Class, Path: ferr.Path, Message: ferr.Message}
	tb := site.NewBuilder()
	if _, aerr := tb.Add(st); aerr != nil {
		return Error{}, false
	}
	return Error{occ: []bool{true}, codes: []int32{0}, table: tb.Table()}, true
}
