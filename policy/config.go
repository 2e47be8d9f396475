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
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"dirpx.dev/checkify/apis"
	"dirpx.dev/checkify/fault"
)

// Config is the on-disk (YAML) form of a policy. It mirrors the build-time
// options one to one, so anything expressible with Options is expressible in
// a config file:
//
//	fallback: true
//	classes:
//	  nan: true
//	  oob: false
//	prefixes:
//	  - class: nan
//	    prefix: nan.sin
//	    armed: false
//	overrides:
//	  user.balance: false
//
// Class names and paths are normalized on load; malformed entries surface as
// errors from Parse/Load, never as silently dropped rules.
type Config struct {
	// Fallback sets the global arming fallback. Absent means "keep the
	// library fallback" (armed).
	Fallback *bool `yaml:"fallback,omitempty"`

	// Classes holds per-class arming defaults, keyed by class name.
	Classes map[string]bool `yaml:"classes,omitempty"`

	// Prefixes holds longest-prefix-match rules, evaluated per class.
	Prefixes []PrefixConfig `yaml:"prefixes,omitempty"`

	// Overrides holds exact per-path arming decisions, keyed by site path.
	Overrides map[string]bool `yaml:"overrides,omitempty"`
}

// PrefixConfig is one longest-prefix-match rule in a Config.
type PrefixConfig struct {
	Class  string `yaml:"class"`
	Prefix string `yaml:"prefix"`
	Armed  bool   `yaml:"armed"`
}

// Options converts the config into build-time options, validating class
// names along the way. Prefixes and override paths are validated later, in
// New, with the same rules as hand-written options.
//
// Map-backed sections are applied in sorted key order so that repeated loads
// of the same file produce identical builders.
func (c *Config) Options() ([]Option, error) {
	var opts []Option

	if c.Fallback != nil {
		opts = append(opts, WithFallback(*c.Fallback))
	}

	// Per-class defaults, sorted for determinism.
	classes := make([]string, 0, len(c.Classes))
	for name := range c.Classes {
		classes = append(classes, name)
	}
	sort.Strings(classes)
	for _, name := range classes {
		cls, err := fault.ParseClass(name)
		if err != nil {
			return nil, fmt.Errorf("policy: invalid class %q in config: %w", name, err)
		}
		opts = append(opts, WithClassDefault(cls, c.Classes[name]))
	}

	// Prefix rules keep file order: within one (class, prefix) the last
	// instance wins, same as repeated WithPrefix calls.
	for _, r := range c.Prefixes {
		cls, err := fault.ParseClass(r.Class)
		if err != nil {
			return nil, fmt.Errorf("policy: invalid class %q in prefix rule: %w", r.Class, err)
		}
		opts = append(opts, WithPrefix(cls, r.Prefix, r.Armed))
	}

	// Exact overrides, sorted for determinism. Two spellings of the same
	// path (e.g. "NAN.SIN" and "nan.sin") would race on normalization, so
	// reject that outright.
	paths := make([]string, 0, len(c.Overrides))
	for raw := range c.Overrides {
		paths = append(paths, raw)
	}
	sort.Strings(paths)
	seen := make(map[fault.Path]string, len(paths))
	for _, raw := range paths {
		p, err := fault.ParsePath(raw)
		if err != nil {
			return nil, fmt.Errorf("policy: invalid override path %q in config: %w", raw, err)
		}
		if prev, dup := seen[p]; dup {
			return nil, fmt.Errorf("policy: override paths %q and %q normalize to the same site %q", prev, raw, p)
		}
		seen[p] = raw
		opts = append(opts, WithSiteOverride(raw, c.Overrides[raw]))
	}

	return opts, nil
}

// Parse unmarshals a YAML policy config and builds an immutable Policy
// from it. Extra options are applied after the config, so callers can
// layer programmatic adjustments on top of a file.
func Parse(data []byte, extra ...Option) (apis.Policy, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("policy: cannot parse config: %w", err)
	}
	opts, err := c.Options()
	if err != nil {
		return nil, err
	}
	return New(append(opts, extra...)...)
}

// Load reads a YAML policy config from a file and builds an immutable
// Policy from it. See Parse for layering semantics.
func Load(path string, extra ...Option) (apis.Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("policy: cannot read config %q: %w", path, err)
	}
	return Parse(data, extra...)
}
