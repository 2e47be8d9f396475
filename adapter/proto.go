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
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"dirpx.dev/checkify/apis"
)

// ToProto encodes a report as a protobuf Struct, the well-known type both
// wire adapters attach: the gRPC bridge puts it in status details, the HTTP
// writer renders it with protojson. Field names match the Report's JSON
// tags, so either transport yields the same object shape.
func ToProto(r apis.Report) (*structpb.Struct, error) {
	m := map[string]interface{}{
		"run_id":   r.RunID,
		"occurred": r.Occurred,
		"class":    r.Class,
		"message":  r.Message,
	}
	lanes := make([]interface{}, len(r.Lanes))
	for i, lane := range r.Lanes {
		lanes[i] = map[string]interface{}{
			"worker":   lane.Worker,
			"occurred": lane.Occurred,
			"class":    lane.Class,
			"path":     lane.Path,
			"code":     lane.Code,
			"message":  lane.Message,
		}
	}
	m["lanes"] = lanes
	if len(r.Sites) > 0 {
		sites := make([]interface{}, len(r.Sites))
		for i, s := range r.Sites {
			sites[i] = map[string]interface{}{
				"code":    s.Code,
				"class":   s.Class,
				"path":    s.Path,
				"message": s.Message,
			}
		}
		m["sites"] = sites
	}
	sp, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("adapter: encoding report: %w", err)
	}
	return sp, nil
}

// FromProto decodes a report encoded by ToProto. Scalar fields that are
// absent decode to their zero values; a lanes or sites entry that is not an
// object is an error.
func FromProto(sp *structpb.Struct) (apis.Report, error) {
	if sp == nil {
		return apis.Report{}, fmt.Errorf("adapter: decoding report: nil struct")
	}
	m := sp.AsMap()
	r := apis.Report{
		RunID:    mapString(m, "run_id"),
		Occurred: mapBool(m, "occurred"),
		Class:    mapString(m, "class"),
		Message:  mapString(m, "message"),
	}
	lanes, err := mapObjects(m, "lanes")
	if err != nil {
		return apis.Report{}, err
	}
	for _, lm := range lanes {
		r.Lanes = append(r.Lanes, apis.Lane{
			Worker:   int(mapNumber(lm, "worker")),
			Occurred: mapBool(lm, "occurred"),
			Class:    mapString(lm, "class"),
			Path:     mapString(lm, "path"),
			Code:     int32(mapNumber(lm, "code")),
			Message:  mapString(lm, "message"),
		})
	}
	sites, err := mapObjects(m, "sites")
	if err != nil {
		return apis.Report{}, err
	}
	for _, sm := range sites {
		r.Sites = append(r.Sites, apis.SiteDescriptor{
			Code:    int32(mapNumber(sm, "code")),
			Class:   mapString(sm, "class"),
			Path:    mapString(sm, "path"),
			Message: mapString(sm, "message"),
		})
	}
	return r, nil
}

func mapString(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

func mapBool(m map[string]interface{}, key string) bool {
	b, _ := m[key].(bool)
	return b
}

// mapNumber reads a Struct number, which AsMap always surfaces as float64.
func mapNumber(m map[string]interface{}, key string) float64 {
	f, _ := m[key].(float64)
	return f
}

func mapObjects(m map[string]interface{}, key string) ([]map[string]interface{}, error) {
	raw, ok := m[key]
	if !ok {
		return nil, nil
	}
	list, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("adapter: decoding report: %q is not a list", key)
	}
	out := make([]map[string]interface{}, 0, len(list))
	for i, el := range list {
		obj, ok := el.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("adapter: decoding report: %s[%d] is not an object", key, i)
		}
		out = append(out, obj)
	}
	return out, nil
}
