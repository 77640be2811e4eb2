// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"fmt"
	"slices"
	"strings"

	"github.com/pkg/errors"
)

// AttrType is the type of the value held by an Attr.
type AttrType int

const (
	AttrInvalid AttrType = iota
	AttrBool
	AttrInt
	AttrFloat
	AttrString
	AttrEnum
)

// String implements fmt.Stringer.
func (t AttrType) String() string {
	switch t {
	case AttrBool:
		return "bool"
	case AttrInt:
		return "int"
	case AttrFloat:
		return "float"
	case AttrString:
		return "string"
	case AttrEnum:
		return "enum"
	}
	return "invalid"
}

// Attr is a tagged union holding one attribute value: a bool, int, float, string or enum.
//
// Enum values are symbolic names (e.g. "NCX" for a data format) and are kept distinct from free strings.
// The zero value is invalid.
type Attr struct {
	typ AttrType
	b   bool
	i   int64
	f   float64
	s   string
}

// Bool creates a boolean Attr.
func Bool(v bool) Attr { return Attr{typ: AttrBool, b: v} }

// Int creates an integer Attr.
func Int(v int64) Attr { return Attr{typ: AttrInt, i: v} }

// Float creates a floating point Attr.
func Float(v float64) Attr { return Attr{typ: AttrFloat, f: v} }

// String creates a string Attr.
func String(v string) Attr { return Attr{typ: AttrString, s: v} }

// Enum creates an enum Attr with the symbolic value v.
func Enum(v string) Attr { return Attr{typ: AttrEnum, s: v} }

// Type of the attribute value.
func (a Attr) Type() AttrType { return a.typ }

// Ok returns whether the attribute holds a value.
func (a Attr) Ok() bool { return a.typ != AttrInvalid }

func (a Attr) checkType(want AttrType) error {
	if a.typ != want {
		return errors.Wrapf(ErrTypeMismatch, "attribute is %s, not %s", a.typ, want)
	}
	return nil
}

// AsBool returns the boolean value, or ErrTypeMismatch.
func (a Attr) AsBool() (bool, error) {
	return a.b, a.checkType(AttrBool)
}

// AsInt returns the integer value, or ErrTypeMismatch.
func (a Attr) AsInt() (int64, error) {
	return a.i, a.checkType(AttrInt)
}

// AsFloat returns the floating point value, or ErrTypeMismatch.
func (a Attr) AsFloat() (float64, error) {
	return a.f, a.checkType(AttrFloat)
}

// AsString returns the string value, or ErrTypeMismatch. Enum attributes are not strings.
func (a Attr) AsString() (string, error) {
	return a.s, a.checkType(AttrString)
}

// AsEnum returns the symbolic value of an enum attribute, or ErrTypeMismatch.
func (a Attr) AsEnum() (string, error) {
	return a.s, a.checkType(AttrEnum)
}

// Equal returns whether a and b have the same type and value.
func (a Attr) Equal(b Attr) bool {
	return a == b
}

// String implements fmt.Stringer.
func (a Attr) String() string {
	switch a.typ {
	case AttrBool:
		return fmt.Sprintf("%v", a.b)
	case AttrInt:
		return fmt.Sprintf("%d", a.i)
	case AttrFloat:
		return fmt.Sprintf("%g", a.f)
	case AttrString:
		return fmt.Sprintf("%q", a.s)
	case AttrEnum:
		return a.s
	}
	return "<invalid>"
}

// Attrs maps attribute keys to their values.
type Attrs map[string]Attr

// Has returns whether the key is set.
func (as Attrs) Has(key string) bool {
	_, found := as[key]
	return found
}

// Get returns the attribute for key and whether it was found.
func (as Attrs) Get(key string) (Attr, bool) {
	a, found := as[key]
	return a, found
}

func (as Attrs) lookup(key string) (Attr, error) {
	a, found := as[key]
	if !found {
		return Attr{}, errors.Wrapf(ErrAttrNotFound, "attribute %q", key)
	}
	return a, nil
}

// Bool returns the boolean attribute for key. It fails with ErrAttrNotFound or ErrTypeMismatch.
func (as Attrs) Bool(key string) (bool, error) {
	a, err := as.lookup(key)
	if err != nil {
		return false, err
	}
	v, err := a.AsBool()
	return v, errors.WithMessagef(err, "attribute %q", key)
}

// Int returns the integer attribute for key. It fails with ErrAttrNotFound or ErrTypeMismatch.
func (as Attrs) Int(key string) (int64, error) {
	a, err := as.lookup(key)
	if err != nil {
		return 0, err
	}
	v, err := a.AsInt()
	return v, errors.WithMessagef(err, "attribute %q", key)
}

// Float returns the floating point attribute for key. It fails with ErrAttrNotFound or ErrTypeMismatch.
func (as Attrs) Float(key string) (float64, error) {
	a, err := as.lookup(key)
	if err != nil {
		return 0, err
	}
	v, err := a.AsFloat()
	return v, errors.WithMessagef(err, "attribute %q", key)
}

// String returns the string attribute for key. It fails with ErrAttrNotFound or ErrTypeMismatch.
func (as Attrs) String(key string) (string, error) {
	a, err := as.lookup(key)
	if err != nil {
		return "", err
	}
	v, err := a.AsString()
	return v, errors.WithMessagef(err, "attribute %q", key)
}

// Enum returns the enum attribute for key. It fails with ErrAttrNotFound or ErrTypeMismatch.
func (as Attrs) Enum(key string) (string, error) {
	a, err := as.lookup(key)
	if err != nil {
		return "", err
	}
	v, err := a.AsEnum()
	return v, errors.WithMessagef(err, "attribute %q", key)
}

// BoolOr returns the boolean attribute for key, or defaultValue if it is missing or of a different type.
func (as Attrs) BoolOr(key string, defaultValue bool) bool {
	if v, err := as.Bool(key); err == nil {
		return v
	}
	return defaultValue
}

// IntOr returns the integer attribute for key, or defaultValue if it is missing or of a different type.
func (as Attrs) IntOr(key string, defaultValue int64) int64 {
	if v, err := as.Int(key); err == nil {
		return v
	}
	return defaultValue
}

// FloatOr returns the float attribute for key, or defaultValue if it is missing or of a different type.
func (as Attrs) FloatOr(key string, defaultValue float64) float64 {
	if v, err := as.Float(key); err == nil {
		return v
	}
	return defaultValue
}

// StringOr returns the string attribute for key, or defaultValue if it is missing or of a different type.
func (as Attrs) StringOr(key string, defaultValue string) string {
	if v, err := as.String(key); err == nil {
		return v
	}
	return defaultValue
}

// Keys returns the attribute keys, sorted.
func (as Attrs) Keys() []string {
	keys := make([]string, 0, len(as))
	for k := range as {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Clone returns a copy of the attributes map.
func (as Attrs) Clone() Attrs {
	as2 := make(Attrs, len(as))
	for k, v := range as {
		as2[k] = v
	}
	return as2
}

// Pretty prints the attributes sorted by key, e.g. `{groups=1, matched_pattern=true}`.
func (as Attrs) Pretty() string {
	if len(as) == 0 {
		return "{}"
	}
	parts := make([]string, 0, len(as))
	for _, k := range as.Keys() {
		parts = append(parts, fmt.Sprintf("%s=%s", k, as[k]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
