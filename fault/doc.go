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

// Package fault provides the vocabulary shared by every layer of checkify:
// fault classes, site paths, and the raise-form error.
//
// A "class" is the top-level, machine-readable family of a fault, such as
// "user" (a failed user assertion), "nan" (an invalid value produced by a
// numeric primitive), "oob" (an out-of-bounds access) or "div" (division by
// zero). Classes are meant to be:
//
//   - short and stable;
//   - lowercased;
//   - underscore-separated (not dash-separated);
//   - suitable for use in JSON/proto payloads and for lookup in policies.
//
// A "path" is the dot-separated identity of one check site within a class,
// such as "nan.sin" or "user.assert". Paths let arming policies and
// reporting adapters match whole families of sites with prefix rules.
//
// IMPORTANT: Empty classes ("") are NOT allowed. Every check site MUST have
// a non-empty class. Paths may be empty only in the sense of "not provided";
// sites registered through the staging layer always carry one.
//
// This package defines the canonical representations and the functions that
// convert arbitrary user input to those canonical forms. It deliberately has
// no dependencies on the rest of the module so that both the staging engine
// and the transform can share it.
package fault
