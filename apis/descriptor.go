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

package apis

// SiteDescriptor is a flat, transport-friendly description of a single
// registered check site.
//
// This type intentionally uses strings (not the internal Class / Path value
// types) so that it can live in the public "apis" layer and be used by
// adapters (HTTP, gRPC) and by consumers that rebuild site tables on their
// side of the wire.
//
// Implementations may choose to store a richer site internally, but this
// shape is what the rest of the system can rely on.
type SiteDescriptor struct {
	// Code is the dense, program-local code of the site, assigned in
	// declared program order during tracing.
	Code int32 `json:"code"`

	// Class is the canonical fault class, e.g. "user", "nan", "oob".
	//
	// Implementations SHOULD store only normalized, validated classes here.
	Class string `json:"class"`

	// Path is the hierarchical site path, e.g. "nan.sin", "oob.index".
	//
	// It MAY be empty when the site was registered without a path.
	// Implementations SHOULD store only normalized, validated paths here.
	Path string `json:"path,omitempty"`

	// Message is the human-friendly message registered for this site. It is
	// fully formatted at registration time; no placeholders survive here.
	Message string `json:"message,omitempty"`
}
