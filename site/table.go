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

package site

import (
	"errors"
	"fmt"

	"dirpx.dev/checkify/fault"
)

var (
	// ErrCodeUnknown is returned when a code has no entry in the table.
	ErrCodeUnknown = errors.New("checkify: unknown site code")

	// ErrSiteInvalid is returned when a site cannot be registered, e.g.
	// because its class is missing or malformed.
	ErrSiteInvalid = errors.New("checkify: invalid site")
)

// Table is an immutable code→Site mapping.
//
// Codes are dense int32 indices assigned in registration order, so the table
// is backed by a slice rather than a map. The zero value is the empty table
// ("no sites"), which is what a fault-free computation carries.
//
// Tables are snapshots: once built they are never mutated and are safe for
// concurrent reads. Every accessor that hands out sites copies, so callers
// cannot reach the backing array.
type Table struct {
	sites []Site
}

// Of builds a table directly from the given sites, assigning codes in
// argument order. It copies its input. This is the constructor used for
// the msgs block of a re-assertion and in tests.
func Of(sites ...Site) Table {
	if len(sites) == 0 {
		return Table{}
	}
	cp := make([]Site, len(sites))
	copy(cp, sites)
	return Table{sites: cp}
}

// Len returns the number of registered sites.
func (t Table) Len() int { return len(t.sites) }

// Lookup returns the site registered under the given code.
func (t Table) Lookup(code int32) (Site, bool) {
	if code < 0 || int(code) >= len(t.sites) {
		return Site{}, false
	}
	return t.sites[code], true
}

// Message returns the message registered under the given code, or the empty
// string when the code is unknown. Use Lookup when the distinction matters.
func (t Table) Message(code int32) string {
	s, ok := t.Lookup(code)
	if !ok {
		return ""
	}
	return s.Message
}

// Sites returns a copy of all registered sites in code order.
func (t Table) Sites() []Site {
	if len(t.sites) == 0 {
		return nil
	}
	cp := make([]Site, len(t.sites))
	copy(cp, t.sites)
	return cp
}

// Equal reports whether two tables register the same sites in the same
// order. Fault data from two traces is only comparable when this holds.
func (t Table) Equal(o Table) bool {
	if len(t.sites) != len(o.sites) {
		return false
	}
	for i := range t.sites {
		if t.sites[i] != o.sites[i] {
			return false
		}
	}
	return true
}

// Builder accumulates sites during one trace and freezes them into a Table.
//
// A Builder is owned by a single trace and is not safe for concurrent use;
// the frozen Table it produces is.
type Builder struct {
	sites []Site
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Add registers one site and returns its assigned code.
//
// The site's class must be valid; the path may be empty. Codes are assigned
// densely in call order — this order IS the declared program order used for
// fault priority, so callers must register sites as they encounter them.
func (b *Builder) Add(s Site) (int32, error) {
	if err := fault.ValidateClass(s.Class); err != nil {
		return 0, fmt.Errorf("%w: class %q: %v", ErrSiteInvalid, s.Class, err)
	}
	if err := fault.ValidatePath(s.Path); err != nil {
		return 0, fmt.Errorf("%w: path %q: %v", ErrSiteInvalid, s.Path, err)
	}
	code := int32(len(b.sites))
	b.sites = append(b.sites, s)
	return code, nil
}

// Append registers every site of the given table, preserving its internal
// order, and returns the code offset: a code c in the appended table becomes
// offset+c in this builder. This is the union-with-remap operation behind
// the recharge bridge.
func (b *Builder) Append(t Table) int32 {
	offset := int32(len(b.sites))
	b.sites = append(b.sites, t.sites...)
	return offset
}

// Len returns the number of sites registered so far.
func (b *Builder) Len() int { return len(b.sites) }

// Table freezes the builder's current contents into an immutable Table.
// The builder remains usable; later additions do not affect earlier tables.
func (b *Builder) Table() Table {
	return Of(b.sites...)
}
