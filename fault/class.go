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

// Class is the canonical, validated representation of a fault class.
//
// It is defined as a separate type (not just string) so that other packages
// can explicitly declare which values they expect and to avoid accidental
// mixing of raw user input with normalized values.
//
// IMPORTANT: Empty classes ("") are NOT allowed. Every check site MUST have
// a non-empty class.
type Class string

// MinClassLength and MaxClassLength define the allowed length range for a
// canonical fault class.
//
// We keep these values as separate constants so they can be referenced in
// validation errors, tests, or in other packages that want to mirror the
// same constraints.
const (
	// MinClassLength is the minimum length for a valid class.
	// Three characters admit the short canonical families ("nan", "oob",
	// "div") while keeping single-letter identifiers out.
	MinClassLength = 3

	// MaxClassLength is the maximum length for a valid class.
	// 32 characters is enough for descriptive user-defined families like
	// "shape_mismatch" while still preventing unbounded strings.
	MaxClassLength = 32
)

const (
	// classFmt is the canonical regular expression used to validate classes.
	//
	// Pattern breakdown:
	//
	//	^ - start of string;
	//	[a-z] - first character must be a lowercase ASCII letter;
	//	[a-z0-9_]{2,31} - the remaining characters may be lowercase letters,
	//	                  digits or underscore; the quantifier {2,31} makes
	//	                  the total length 3..32 characters (1 + 2..31);
	//	$ - end of string;
	//
	// IMPORTANT: the numeric range {2,31} is tied to MinClassLength /
	// MaxClassLength above. If you change those, adjust this pattern too.
	classFmt = `^[a-z][a-z0-9_]{2,31}$`
)

var (
	// classRe is the compiled regular expression used at runtime to validate
	// that a string is a canonical fault class.
	//
	// We precompile it so that repeated validations (e.g. in policies or in
	// hot paths) do not pay the compilation cost over and over again.
	//
	// Examples of valid classes:
	//   - "user"
	//   - "nan"
	//   - "oob"
	//   - "div"
	//
	// Examples of invalid classes:
	//   - "NaN"        (uppercase)
	//   - "out-of-bnd" (dash instead of underscore)
	//   - "x"          (too short)
	//   - "1div"       (does not start with a letter)
	classRe = regexp.MustCompile(classFmt)
)

var (
	// ErrClassInvalid is returned when a value cannot be parsed or validated
	// as a fault class.
	//
	// Having a dedicated sentinel error makes it easier for callers and
	// tests to detect "this is about class format" vs "some other error".
	ErrClassInvalid = errors.New("checkify: invalid fault class")
)

// Ensure Class implements encoding.TextMarshaler / encoding.TextUnmarshaler
// so it can be embedded into larger config or API structs.
var (
	_ encoding.TextMarshaler   = (*Class)(nil)
	_ encoding.TextUnmarshaler = (*Class)(nil)
)

// ParseClass takes a user-provided string, normalizes it and validates it.
// On success it returns a canonical Class value.
func ParseClass(s string) (Class, error) {
	s = NormalizeClass(s)
	if err := validateClass(s); err != nil {
		return "", err
	}
	return Class(s), nil
}

// MustParseClass is the panic-on-error variant of ParseClass. It is useful
// for declaring package-level constants in init() or var blocks.
func MustParseClass(s string) Class {
	c, err := ParseClass(s)
	if err != nil {
		panic(err)
	}
	return c
}

// NormalizeClass takes an arbitrary string and tries to bring it closer to
// the canonical class form.
//
// This function is intentionally conservative: it only performs obvious,
// non-lossy transformations:
//
//   - trims surrounding spaces;
//   - lowercases the value;
//   - replaces '-' with '_';
//
// It does NOT guarantee that the result is valid — callers should still call
// ValidateClass/ParseClass after normalization.
func NormalizeClass(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "-", "_")
	return s
}

// ValidateClass checks whether the provided Class is valid.
// The empty class ("") is considered invalid.
func ValidateClass(c Class) error {
	return validateClass(string(c))
}

// String returns the canonical string representation of the class.
func (c Class) String() string {
	return string(c)
}

// MarshalText implements encoding.TextMarshaler.
//
// It always returns the canonical string representation.
func (c Class) MarshalText() ([]byte, error) {
	if err := ValidateClass(c); err != nil {
		return nil, err
	}
	return []byte(c), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
//
// It normalizes and validates the provided text before assigning.
func (c *Class) UnmarshalText(text []byte) error {
	s := string(bytes.TrimSpace(text))
	parsed, err := ParseClass(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// validateClass is a helper that checks whether the provided string is a
// valid class.
func validateClass(s string) error {
	if !classRe.MatchString(s) {
		return ErrClassInvalid
	}
	return nil
}
