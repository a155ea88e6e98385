// Package model defines the versioned entity data model shared by every
// claimwatch component: typed statement values, statements with stable
// identity, and immutable per-revision entity snapshots.
package model

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// ValueKind discriminates the typed value union carried by a snak.
type ValueKind string

const (
	ValueKindEntity      ValueKind = "wikibase-entityid"
	ValueKindQuantity    ValueKind = "quantity"
	ValueKindString      ValueKind = "string"
	ValueKindMonolingual ValueKind = "monolingualtext"
	ValueKindTime        ValueKind = "time"
	ValueKindCoordinate  ValueKind = "globecoordinate"

	// Sentinel kinds: the statement asserts that no value exists, or that
	// some unknown value exists. Neither carries a payload.
	ValueKindNoValue   ValueKind = "novalue"
	ValueKindSomeValue ValueKind = "somevalue"
)

// Quantity is a decimal amount with an optional unit and optional bounds.
// The amount is kept as the raw signed decimal string ("+5.2") so that no
// precision is lost before a checker needs to compare it.
type Quantity struct {
	Amount     string `json:"amount"`
	Unit       string `json:"unit,omitempty"` // unit entity ID, empty for dimensionless
	LowerBound string `json:"lower_bound,omitempty"`
	UpperBound string `json:"upper_bound,omitempty"`
}

// HasBounds reports whether either bound is set.
func (q Quantity) HasBounds() bool {
	return q.LowerBound != "" || q.UpperBound != ""
}

// IsInteger reports whether the amount has no fractional part.
func (q Quantity) IsInteger() bool {
	return !strings.Contains(q.Amount, ".")
}

// CompareAmounts compares two raw decimal amount strings.
// Returns -1, 0 or +1, or an error if either string is not a decimal.
// Rationals keep the comparison exact at any number of digits; a float
// mantissa would collapse amounts differing past ~19 significant digits.
func CompareAmounts(a, b string) (int, error) {
	ra, ok := new(big.Rat).SetString(a)
	if !ok {
		return 0, fmt.Errorf("not a decimal amount: %q", a)
	}
	rb, ok := new(big.Rat).SetString(b)
	if !ok {
		return 0, fmt.Errorf("not a decimal amount: %q", b)
	}
	return ra.Cmp(rb), nil
}

// Time is a wikibase-style timestamp with an explicit precision.
// Precision follows the wikibase scale: 9=year, 10=month, 11=day,
// 12=hour, 13=minute, 14=second.
type Time struct {
	Time      string `json:"time"` // "+2001-01-15T00:00:00Z"
	Precision int    `json:"precision"`
	Calendar  string `json:"calendar,omitempty"`
}

// parts decomposes the timestamp into (year, month, day, hour, minute,
// second). The leading sign is honoured for BCE years.
func (t Time) parts() ([6]int, error) {
	var out [6]int
	s := strings.TrimSuffix(t.Time, "Z")
	sign := 1
	switch {
	case strings.HasPrefix(s, "-"):
		sign = -1
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	datetime := strings.SplitN(s, "T", 2)
	date := strings.SplitN(datetime[0], "-", 3)
	if len(date) != 3 {
		return out, fmt.Errorf("malformed time value: %q", t.Time)
	}
	var clock []string
	if len(datetime) == 2 {
		clock = strings.SplitN(datetime[1], ":", 3)
	}
	fields := append(date, clock...)
	for i, f := range fields {
		if i >= len(out) {
			break
		}
		n, err := strconv.Atoi(f)
		if err != nil {
			return out, fmt.Errorf("malformed time value: %q", t.Time)
		}
		out[i] = n
	}
	out[0] *= sign
	return out, nil
}

// Compare compares two timestamps truncated to the coarser of the two
// precisions, so a year-precision date never sorts against a day-precision
// one at day granularity.
func (t Time) Compare(other Time) (int, error) {
	a, err := t.parts()
	if err != nil {
		return 0, err
	}
	b, err := other.parts()
	if err != nil {
		return 0, err
	}
	prec := t.Precision
	if other.Precision < prec {
		prec = other.Precision
	}
	// Precision 9 compares years only, 10 adds months, and so on.
	n := prec - 8
	if n < 1 {
		n = 1
	}
	if n > len(a) {
		n = len(a)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1, nil
			}
			return 1, nil
		}
	}
	return 0, nil
}

// Coordinate is a globe coordinate value.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Precision float64 `json:"precision,omitempty"`
	Globe     string  `json:"globe,omitempty"`
}

// Monolingual is a language-tagged text value.
type Monolingual struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// Value is the typed value union of a snak. Exactly one payload field is
// populated, selected by Kind; the sentinel kinds carry no payload.
type Value struct {
	Kind        ValueKind    `json:"kind"`
	Entity      string       `json:"entity,omitempty"`
	Str         string       `json:"string,omitempty"`
	Quantity    *Quantity    `json:"quantity,omitempty"`
	Monolingual *Monolingual `json:"monolingual,omitempty"`
	Time        *Time        `json:"time,omitempty"`
	Coordinate  *Coordinate  `json:"coordinate,omitempty"`
}

// EntityValue returns an entity-reference value.
func EntityValue(id string) Value {
	return Value{Kind: ValueKindEntity, Entity: id}
}

// StringValue returns a plain string value.
func StringValue(s string) Value {
	return Value{Kind: ValueKindString, Str: s}
}

// QuantityValue returns a quantity value.
func QuantityValue(q Quantity) Value {
	return Value{Kind: ValueKindQuantity, Quantity: &q}
}

// TimeValue returns a time value.
func TimeValue(t Time) Value {
	return Value{Kind: ValueKindTime, Time: &t}
}

// CoordinateValue returns a globe-coordinate value.
func CoordinateValue(c Coordinate) Value {
	return Value{Kind: ValueKindCoordinate, Coordinate: &c}
}

// MonolingualValue returns a language-tagged text value.
func MonolingualValue(text, language string) Value {
	return Value{Kind: ValueKindMonolingual, Monolingual: &Monolingual{Text: text, Language: language}}
}

// NoValue returns the "no value" sentinel.
func NoValue() Value {
	return Value{Kind: ValueKindNoValue}
}

// SomeValue returns the "unknown value" sentinel.
func SomeValue() Value {
	return Value{Kind: ValueKindSomeValue}
}

// IsSentinel reports whether the value is a novalue/somevalue sentinel.
func (v Value) IsSentinel() bool {
	return v.Kind == ValueKindNoValue || v.Kind == ValueKindSomeValue
}

// EntityID returns the referenced entity ID when the value is an entity
// reference.
func (v Value) EntityID() (string, bool) {
	if v.Kind == ValueKindEntity {
		return v.Entity, true
	}
	return "", false
}

// InValues reports whether the value matches a constraint value list.
// Sentinel values match by their kind name ("novalue"/"somevalue"), entity
// references by ID; other kinds never match.
func (v Value) InValues(values []string) bool {
	var key string
	switch v.Kind {
	case ValueKindNoValue, ValueKindSomeValue:
		key = string(v.Kind)
	case ValueKindEntity:
		key = v.Entity
	default:
		return false
	}
	for _, val := range values {
		if val == key {
			return true
		}
	}
	return false
}

// Equal reports deep value equality.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case ValueKindEntity:
		return v.Entity == o.Entity
	case ValueKindString:
		return v.Str == o.Str
	case ValueKindQuantity:
		return equalPtr(v.Quantity, o.Quantity)
	case ValueKindMonolingual:
		return equalPtr(v.Monolingual, o.Monolingual)
	case ValueKindTime:
		return equalPtr(v.Time, o.Time)
	case ValueKindCoordinate:
		return equalPtr(v.Coordinate, o.Coordinate)
	default:
		// Sentinels carry no payload.
		return true
	}
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
