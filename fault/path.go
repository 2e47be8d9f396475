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

package fault

import (
	"bytes"
	"encoding"
	"errors"
	"regexp"
	"strings"
)

// Path is the canonical, validated identity of a check site.
//
// Paths are dot-separated hierarchical identifiers with a small, fixed
// depth. By convention the first segment is the fault class and the
// remaining segments name the primitive or the user-facing entry point that
// owns the site.
//
// Example valid paths:
//
//   - "user.assert"
//   - "user.check.positive_input"
//   - "nan.sin"
//   - "oob.index"
//   - "div.div"
//
// The intent is to make it easy to programmatically build such identifiers
// from known class/primitive names, and later to let arming policies and
// reporting adapters quickly match on these prefixes.
type Path string

// MinPathLength and MaxPathLength define the allowed length range for a
// canonical path string.
//
// We allow paths to be a bit longer than classes, because they often contain
// multiple segments (class.primitive.variant).
const (
	// MinPathLength is the minimum length for a non-empty path.
	// We keep it at 3 so that trivial values like "x" are not considered
	// meaningful paths. Remember: the empty string is still allowed and
	// means "no path provided".
	MinPathLength = 3

	// MaxPathLength is the maximum length for a valid path.
	// 128 characters is enough even for 4 segments with descriptive names.
	MaxPathLength = 128
)

const (
	// pathFmt is the canonical regular expression used to validate paths.
	//
	// We accept 1 to 4 segments, dot-separated, each segment:
	//
	//   - starts with a lowercase ASCII letter [a-z]
	//   - continues with lowercase letters, digits, or underscore [a-z0-9_]*
	//
	// Examples that match:
	//
	//	"nan.sin"
	//	"user.assert"
	//	"user.check.positive_input"
	//	"oob.index"
	//
	// Examples that DO NOT match:
	//
	//	"NaN.sin"     (uppercase)
	//	"nan/sin"     (slash)
	//	"nan..sin"    (empty segment)
	//	"1nan.sin"    (digit first)
	//
	// NOTE: empty string ("") is treated separately as "optional path" and
	// does not go through this regexp.
	pathFmt = `^[a-z][a-z0-9_]*(\.[a-z][a-z0-9_]*){0,3}$`
)

var (
	// pathRe is the compiled regexp for the above pattern.
	pathRe = regexp.MustCompile(pathFmt)
)

var (
	// ErrPathInvalidFormat is returned when a path does not conform to the
	// expected format.
	ErrPathInvalidFormat = errors.New("checkify: invalid site path format")
	// ErrPathInvalidLength is returned when a path is too short or too long.
	ErrPathInvalidLength = errors.New("checkify: invalid site path length")
)

// Ensure Path implements encoding.TextMarshaler / encoding.TextUnmarshaler.
var (
	_ encoding.TextMarshaler   = (*Path)(nil)
	_ encoding.TextUnmarshaler = (*Path)(nil)
)

// NoPath is the zero-value path. It is considered "not provided" and is
// valid to store in site structs. Callers that require a non-empty,
// canonical path should explicitly call ValidatePath.
var NoPath Path = ""

// NormalizePath takes an arbitrary string and tries to bring it closer to
// the canonical path form.
//
// We do *very* conservative transformations:
//
//   - trim spaces
//   - lower-case
//   - convert "/" to "." (because callers may build paths with slashes)
//   - replace "-" with "_" (to align with class-style identifiers)
//
// It does NOT guarantee validity — callers should still call
// ParsePath/ValidatePath.
func NormalizePath(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "/", ".")
	s = strings.ReplaceAll(s, "-", "_")
	return s
}

// ParsePath takes a user-provided string, normalizes it and validates it.
// On success it returns a canonical Path value.
//
// ParsePath also accepts the empty string and returns NoPath without error.
// This is what makes Path an "optional" part of the site model.
func ParsePath(s string) (Path, error) {
	s = NormalizePath(s)
	if s == "" {
		return NoPath, nil
	}
	if err := validatePath(s); err != nil {
		return NoPath, err
	}
	return Path(s), nil
}

// MustParsePath is the panic-on-error variant of ParsePath. It is useful for
// declaring package-level path constants in var/const blocks.
//
// NOTE: unlike ParsePath, MustParsePath does NOT allow the empty string —
// passing an empty string here is almost always a programmer error.
func MustParsePath(s string) Path {
	p, err := ParsePath(s)
	if err != nil {
		panic(err)
	}
	if p == NoPath {
		panic("checkify: empty path in MustParsePath")
	}
	return p
}

// ValidatePath checks whether the provided Path is in canonical form.
//
// The empty path ("") is considered valid here, because the whole point of
// this type is to be optional. If you need to enforce "must be non-empty",
// add that check at call site.
func ValidatePath(p Path) error {
	if p == NoPath {
		return nil
	}
	return validatePath(string(p))
}

// Join builds a path from individual segments, normalizing each one.
// It is a convenience for call sites that assemble paths from a class and
// a primitive name:
//
//	fault.Join(string(fault.NaN), "sin") // "nan.sin"
//
// The result is validated; invalid segments surface as an error.
func Join(segments ...string) (Path, error) {
	return ParsePath(strings.Join(segments, "."))
}

// Class returns the first segment of the path, parsed as a Class.
// For paths that follow the "class.site" convention this is the fault
// class that owns the site. Returns an error for empty or malformed paths.
func (p Path) Class() (Class, error) {
	if p == NoPath {
		return "", ErrClassInvalid
	}
	s := string(p)
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	return ParseClass(s)
}

// String returns the canonical string representation of the path.
func (p Path) String() string {
	return string(p)
}

// MarshalText implements encoding.TextMarshaler.
//
// We allow marshaling of the empty path as an empty slice to not break
// JSON/YAML encoders that rely on TextMarshaler.
func (p Path) MarshalText() ([]byte, error) {
	if err := ValidatePath(p); err != nil {
		return nil, err
	}
	if p == NoPath {
		return []byte{}, nil
	}
	return []byte(p), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
//
// It normalizes and validates the provided text before assigning.
// An empty or whitespace-only input will produce NoPath.
func (p *Path) UnmarshalText(text []byte) error {
	s := string(bytes.TrimSpace(text))
	parsed, err := ParsePath(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// validatePath is the internal helper that checks length and format.
func validatePath(s string) error {
	if len(s) < MinPathLength || len(s) > MaxPathLength {
		return ErrPathInvalidLength
	}
	if !pathRe.MatchString(s) {
		return ErrPathInvalidFormat
	}
	return nil
}
