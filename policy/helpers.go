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

package policy

import (
	"dirpx.dev/checkify/fault"
	"dirpx.dev/checkify/policy/internal/pathtrie"
)

// freezeClassDefaults makes an immutable copy of the class defaults map.
// Used when finalizing the policy so later mutations to the builder
// (or caller-owned maps) cannot affect the policy.
func freezeClassDefaults(src map[fault.Class]bool) map[fault.Class]bool {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[fault.Class]bool, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// freezeSiteOverrides makes an immutable copy of the exact-path overrides map.
func freezeSiteOverrides(src map[fault.Path]bool) map[fault.Path]bool {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[fault.Path]bool, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// freezeTries makes a shallow copy of the per-class tries.
// Each trie is considered immutable after build, so we only need to
// protect the top-level map.
func freezeTries(src map[fault.Class]*pathtrie.Trie[bool]) map[fault.Class]*pathtrie.Trie[bool] {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[fault.Class]*pathtrie.Trie[bool], len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
