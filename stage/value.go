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

package stage

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DType enumerates the element types a staged value can carry.
type DType uint8

const (
	// DTInvalid is the zero DType. It is never valid in a Spec.
	DTInvalid DType = iota

	// DTBool is the boolean element type.
	DTBool

	// DTInt is the 64-bit signed integer element type.
	DTInt

	// DTFloat is the 64-bit IEEE-754 element type.
	DTFloat
)

// String returns the lowercase name of the dtype.
func (d DType) String() string {
	switch d {
	case DTBool:
		return "bool"
	case DTInt:
		return "int"
	case DTFloat:
		return "float"
	}
	return fmt.Sprintf("dtype(%d)", uint8(d))
}

// Spec is the static type of a staged value: an element dtype plus dims.
// Dims of nil means a scalar; a one-element Dims means a rank-1 vector of
// that length. Higher ranks are not supported.
type Spec struct {
	DType DType
	Dims  []int
}

// ScalarSpec returns the Spec of a scalar of dtype d.
func ScalarSpec(d DType) Spec { return Spec{DType: d} }

// VecSpec returns the Spec of a rank-1 vector of dtype d and length n.
func VecSpec(d DType, n int) Spec { return Spec{DType: d, Dims: []int{n}} }

// Rank returns 0 for scalars and 1 for vectors.
func (s Spec) Rank() int { return len(s.Dims) }

// Elems returns the number of elements: 1 for scalars, the length for
// vectors.
func (s Spec) Elems() int {
	if len(s.Dims) == 0 {
		return 1
	}
	return s.Dims[0]
}

// Equal reports whether two specs have the same dtype and dims.
func (s Spec) Equal(o Spec) bool {
	if s.DType != o.DType || len(s.Dims) != len(o.Dims) {
		return false
	}
	for i := range s.Dims {
		if s.Dims[i] != o.Dims[i] {
			return false
		}
	}
	return true
}

// String renders the spec as e.g. "float" or "float[3]".
func (s Spec) String() string {
	if len(s.Dims) == 0 {
		return s.DType.String()
	}
	return fmt.Sprintf("%s[%d]", s.DType, s.Dims[0])
}

// validate checks the spec is well formed: a known dtype and rank <= 1 with
// a non-negative length.
func (s Spec) validate() error {
	switch s.DType {
	case DTBool, DTInt, DTFloat:
	default:
		return fmt.Errorf("stage: spec has invalid dtype %s: %w", s.DType, ErrShape)
	}
	if len(s.Dims) > 1 {
		return fmt.Errorf("stage: spec rank %d exceeds 1: %w", len(s.Dims), ErrShape)
	}
	if len(s.Dims) == 1 && s.Dims[0] < 0 {
		return fmt.Errorf("stage: spec has negative length %d: %w", s.Dims[0], ErrShape)
	}
	return nil
}

// Value is a runtime value: a tagged union of a scalar or rank-1 vector.
// Data holds bool/int64/float64 for scalars and []bool/[]int64/[]float64
// for vectors. Values are immutable by convention: the vector constructors
// copy their input, and the engine never writes through Data.
type Value struct {
	Tag  DType
	Dims []int
	Data interface{}
}

// Bool returns a scalar boolean value.
func Bool(b bool) Value { return Value{Tag: DTBool, Data: b} }

// Int returns a scalar integer value.
func Int(n int64) Value { return Value{Tag: DTInt, Data: n} }

// Float returns a scalar float value.
func Float(f float64) Value { return Value{Tag: DTFloat, Data: f} }

// BoolVec returns a rank-1 boolean vector. The slice is copied.
func BoolVec(xs []bool) Value {
	cp := make([]bool, len(xs))
	copy(cp, xs)
	return Value{Tag: DTBool, Dims: []int{len(cp)}, Data: cp}
}

// IntVec returns a rank-1 integer vector. The slice is copied.
func IntVec(xs []int64) Value {
	cp := make([]int64, len(xs))
	copy(cp, xs)
	return Value{Tag: DTInt, Dims: []int{len(cp)}, Data: cp}
}

// FloatVec returns a rank-1 float vector. The slice is copied.
func FloatVec(xs []float64) Value {
	cp := make([]float64, len(xs))
	copy(cp, xs)
	return Value{Tag: DTFloat, Dims: []int{len(cp)}, Data: cp}
}

// Spec returns the static type of the value.
func (v Value) Spec() Spec { return Spec{DType: v.Tag, Dims: v.Dims} }

// Rank returns 0 for scalars and 1 for vectors.
func (v Value) Rank() int { return len(v.Dims) }

// Elems returns the number of elements: 1 for scalars, the length for
// vectors.
func (v Value) Elems() int { return v.Spec().Elems() }

// AsBool returns the scalar boolean payload. The second result is false if
// the value is not a scalar bool.
func (v Value) AsBool() (bool, bool) {
	b, ok := v.Data.(bool)
	return b, ok && v.Rank() == 0 && v.Tag == DTBool
}

// AsInt returns the scalar integer payload. The second result is false if
// the value is not a scalar int.
func (v Value) AsInt() (int64, bool) {
	n, ok := v.Data.(int64)
	return n, ok && v.Rank() == 0 && v.Tag == DTInt
}

// AsFloat returns the scalar float payload. The second result is false if
// the value is not a scalar float.
func (v Value) AsFloat() (float64, bool) {
	f, ok := v.Data.(float64)
	return f, ok && v.Rank() == 0 && v.Tag == DTFloat
}

// AsBools returns a copy of the vector boolean payload. The second result
// is false if the value is not a bool vector.
func (v Value) AsBools() ([]bool, bool) {
	xs, ok := v.Data.([]bool)
	if !ok || v.Rank() != 1 || v.Tag != DTBool {
		return nil, false
	}
	cp := make([]bool, len(xs))
	copy(cp, xs)
	return cp, true
}

// AsInts returns a copy of the vector integer payload. The second result is
// false if the value is not an int vector.
func (v Value) AsInts() ([]int64, bool) {
	xs, ok := v.Data.([]int64)
	if !ok || v.Rank() != 1 || v.Tag != DTInt {
		return nil, false
	}
	cp := make([]int64, len(xs))
	copy(cp, xs)
	return cp, true
}

// AsFloats returns a copy of the vector float payload. The second result is
// false if the value is not a float vector.
func (v Value) AsFloats() ([]float64, bool) {
	xs, ok := v.Data.([]float64)
	if !ok || v.Rank() != 1 || v.Tag != DTFloat {
		return nil, false
	}
	cp := make([]float64, len(xs))
	copy(cp, xs)
	return cp, true
}

// Validate checks that the payload matches the tag and dims. Values built
// with the package constructors always validate; this exists for values
// assembled by hand before they enter Run.
func (v Value) Validate() error {
	if err := v.Spec().validate(); err != nil {
		return err
	}
	switch v.Rank() {
	case 0:
		var ok bool
		switch v.Tag {
		case DTBool:
			_, ok = v.Data.(bool)
		case DTInt:
			_, ok = v.Data.(int64)
		case DTFloat:
			_, ok = v.Data.(float64)
		}
		if !ok {
			return fmt.Errorf("stage: scalar %s value holds %T: %w", v.Tag, v.Data, ErrShape)
		}
	case 1:
		n := -1
		switch v.Tag {
		case DTBool:
			if xs, ok := v.Data.([]bool); ok {
				n = len(xs)
			}
		case DTInt:
			if xs, ok := v.Data.([]int64); ok {
				n = len(xs)
			}
		case DTFloat:
			if xs, ok := v.Data.([]float64); ok {
				n = len(xs)
			}
		}
		if n < 0 {
			return fmt.Errorf("stage: vector %s value holds %T: %w", v.Tag, v.Data, ErrShape)
		}
		if n != v.Dims[0] {
			return fmt.Errorf("stage: vector length %d does not match dims %d: %w", n, v.Dims[0], ErrShape)
		}
	}
	return nil
}

// Equal reports whether two values have the same spec and the same
// elements. Unlike ==, float comparison treats NaN as equal to NaN, so a
// program output carrying a deliberate NaN can be asserted against.
func (v Value) Equal(o Value) bool {
	if !v.Spec().Equal(o.Spec()) {
		return false
	}
	n := v.Elems()
	switch v.Tag {
	case DTBool:
		for i := 0; i < n; i++ {
			if bAt(v, i) != bAt(o, i) {
				return false
			}
		}
	case DTInt:
		for i := 0; i < n; i++ {
			if iAt(v, i) != iAt(o, i) {
				return false
			}
		}
	case DTFloat:
		for i := 0; i < n; i++ {
			a, b := fAt(v, i), fAt(o, i)
			if a != b && !(math.IsNaN(a) && math.IsNaN(b)) {
				return false
			}
		}
	}
	return true
}

// String renders scalars bare ("3.5", "true", "7") and vectors in brackets
// ("[0 1 +Inf]").
func (v Value) String() string {
	if v.Rank() == 0 {
		return elemString(v, 0)
	}
	var sb strings.Builder
	sb.WriteByte('[')
	for i := 0; i < v.Elems(); i++ {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(elemString(v, i))
	}
	sb.WriteByte(']')
	return sb.String()
}

func elemString(v Value, i int) string {
	switch v.Tag {
	case DTBool:
		return strconv.FormatBool(bAt(v, i))
	case DTInt:
		return strconv.FormatInt(iAt(v, i), 10)
	case DTFloat:
		return strconv.FormatFloat(fAt(v, i), 'g', -1, 64)
	}
	return "?"
}

// SpecsOf returns the specs of a value list, in order.
func SpecsOf(vals ...Value) []Spec {
	specs := make([]Spec, len(vals))
	for i, v := range vals {
		specs[i] = v.Spec()
	}
	return specs
}

// bAt, iAt and fAt read element i with scalars broadcast: a scalar yields
// its payload for every index. Callers must have validated tags.

func bAt(v Value, i int) bool {
	if v.Rank() == 0 {
		return v.Data.(bool)
	}
	return v.Data.([]bool)[i]
}

func iAt(v Value, i int) int64 {
	if v.Rank() == 0 {
		return v.Data.(int64)
	}
	return v.Data.([]int64)[i]
}

func fAt(v Value, i int) float64 {
	if v.Rank() == 0 {
		return v.Data.(float64)
	}
	return v.Data.([]float64)[i]
}
