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

// Package site defines check sites and the static code→site tables that
// accompany captured faults.
//
// A Site is one instrumented point in a traced computation: its fault class,
// its dot-separated path, and its message — formatted once, when the site is
// registered, never from runtime data. A Table is the immutable union of
// every site reachable in one traced function; the integer codes carried by
// fault data are dense indices into that table.
//
// # Lifetime
//
// Sites are ephemeral: they exist while a trace is being built and survive
// only inside the frozen Table. Tables are snapshots — safe for concurrent
// reads, shared by every fault value produced from the same trace, and never
// mutated after Build.
//
// # Union and remapping
//
// When a previously captured fault is re-asserted inside a new trace (the
// recharge bridge), its table is appended to the new trace's Builder and its
// codes are shifted by the returned offset. This keeps code assignment dense
// and trace-local while letting fault data cross staging boundaries.
package site
