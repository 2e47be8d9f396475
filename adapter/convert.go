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

// Package adapter converts fault data between its in-process form
// (checkify.Error) and the transport-friendly apis.Report. The gRPC and HTTP
// adapters build on these conversions rather than touching Error internals.
package adapter

import (
	"fmt"

	"github.com/google/uuid"

	"dirpx.dev/checkify"
	"dirpx.dev/checkify/apis"
	"dirpx.dev/checkify/fault"
	"dirpx.dev/checkify/site"
)

// Option configures a single conversion.
type Option func(*config)

type config struct {
	runID     string
	withSites bool
}

// WithRunID pins the report's run id. Without it, ToReport assigns a fresh
// random id to each report it produces.
func WithRunID(id string) Option {
	return func(c *config) {
		c.runID = id
	}
}

// WithoutSites withholds the site table from the report. The report still
// carries the resolved class/path/message per lane, but a consumer cannot
// rebuild the exact fault data; FromReport falls back to a one-site table.
func WithoutSites() Option {
	return func(c *config) {
		c.withSites = false
	}
}

// ToReport snapshots an Error into its wire form.
//
// The report carries one entry per lane in lane order, each faulted lane
// resolved against the Error's table, plus the table itself so the receiving
// side can rebuild the Error with FromReport. Clean Errors produce a report
// with Occurred false and all lanes clean.
func ToReport(e checkify.Error, opts ...Option) apis.Report {
	cfg := config{withSites: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.runID == "" {
		cfg.runID = uuid.NewString()
	}

	r := apis.Report{
		RunID:    cfg.runID,
		Occurred: e.Occurred(),
		Class:    string(e.Class()),
		Message:  e.Message(),
		Lanes:    make([]apis.Lane, e.Lanes()),
	}
	for i := range r.Lanes {
		o, code := e.Lane(i)
		lane := apis.Lane{Worker: i, Occurred: o, Code: code}
		if o {
			if s, ok := e.Table().Lookup(code); ok {
				lane.Class = string(s.Class)
				lane.Path = string(s.Path)
				lane.Message = s.Message
			}
		}
		r.Lanes[i] = lane
	}
	if cfg.withSites {
		for code, s := range e.Table().Sites() {
			r.Sites = append(r.Sites, apis.SiteDescriptor{
				Code:    int32(code),
				Class:   string(s.Class),
				Path:    string(s.Path),
				Message: s.Message,
			})
		}
	}
	return r
}

// FromReport rebuilds an Error from its wire form.
//
// When the report discloses its site table, the rebuilt Error is Equal to
// the one ToReport snapshotted (up to the table the producer disclosed).
// Without sites, only the first fault's identity survives: the result is a
// single faulted lane over a one-site table, or the zero Error when the
// report is clean.
func FromReport(r apis.Report) (checkify.Error, error) {
	if len(r.Sites) == 0 {
		return fromLaneSummary(r)
	}
	tb := site.NewBuilder()
	for i, d := range r.Sites {
		if int(d.Code) != i {
			return checkify.Error{}, fmt.Errorf("adapter: site %d carries code %d; codes must be dense and ordered", i, d.Code)
		}
		s, err := descriptorSite(d)
		if err != nil {
			return checkify.Error{}, err
		}
		if _, err := tb.Add(s); err != nil {
			return checkify.Error{}, fmt.Errorf("adapter: site %d: %w", i, err)
		}
	}
	occ := make([]bool, len(r.Lanes))
	codes := make([]int32, len(r.Lanes))
	for i, lane := range r.Lanes {
		occ[i] = lane.Occurred
		codes[i] = lane.Code
	}
	if len(occ) == 0 {
		occ, codes = []bool{false}, []int32{0}
	}
	e, err := checkify.FromLanes(occ, codes, tb.Table())
	if err != nil {
		return checkify.Error{}, fmt.Errorf("adapter: %w", err)
	}
	return e, nil
}

// fromLaneSummary rebuilds as much of the Error as a site-less report can
// carry: the first fault's identity, or nothing.
func fromLaneSummary(r apis.Report) (checkify.Error, error) {
	if !r.Occurred {
		return checkify.Error{}, nil
	}
	var first *apis.Lane
	for i := range r.Lanes {
		if r.Lanes[i].Occurred {
			first = &r.Lanes[i]
			break
		}
	}
	if first == nil {
		return checkify.Error{}, fmt.Errorf("adapter: report occurred with no faulted lane")
	}
	s, err := descriptorSite(apis.SiteDescriptor{
		Class:   first.Class,
		Path:    first.Path,
		Message: first.Message,
	})
	if err != nil {
		return checkify.Error{}, err
	}
	tb := site.NewBuilder()
	if _, err := tb.Add(s); err != nil {
		return checkify.Error{}, fmt.Errorf("adapter: %w", err)
	}
	e, err := checkify.FromLanes([]bool{true}, []int32{0}, tb.Table())
	if err != nil {
		return checkify.Error{}, fmt.Errorf("adapter: %w", err)
	}
	return e, nil
}

// descriptorSite validates one wire descriptor into a Site.
func descriptorSite(d apis.SiteDescriptor) (site.Site, error) {
	c, err := fault.ParseClass(d.Class)
	if err != nil {
		return site.Site{}, fmt.Errorf("adapter: class %q: %w", d.Class, err)
	}
	p := fault.NoPath
	if d.Path != "" {
		p, err = fault.ParsePath(d.Path)
		if err != nil {
			return site.Site{}, fmt.Errorf("adapter: path %q: %w", d.Path, err)
		}
	}
	return site.Site{Class: c, Path: p, Message: d.Message}, nil
}
