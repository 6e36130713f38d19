// Package records holds the value model shared by every pipeline stage: field
// type tags, the composite values produced by casting (SSN, Date, Timestamp),
// per-source structured rows and the unified records built by the join.
//
// All values in this package are immutable once constructed. Rows and records
// never hold references back to the source that produced them.
package records

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FieldType selects the casting policy for one field position.
type FieldType uint8

const (
	TypeString FieldType = iota
	TypeInt
	TypeDate
	TypeSSN
	TypeDateTime
)

var fieldTypeNames = [...]string{
	TypeString:   "STRING",
	TypeInt:      "INT",
	TypeDate:     "DATE",
	TypeSSN:      "SSN",
	TypeDateTime: "DATETIME",
}

func (t FieldType) String() string {
	if int(t) < len(fieldTypeNames) {
		return fieldTypeNames[t]
	}
	return fmt.Sprintf("FieldType(%d)", uint8(t))
}

// ParseFieldType maps a textual type tag to a FieldType. Matching is
// case-insensitive, so both "DATETIME" and "DateTime" are accepted.
func ParseFieldType(s string) (FieldType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "STRING", "TEXT":
		return TypeString, nil
	case "INT", "INTEGER":
		return TypeInt, nil
	case "DATE":
		return TypeDate, nil
	case "SSN":
		return TypeSSN, nil
	case "DATETIME", "TIMESTAMP":
		return TypeDateTime, nil
	}
	return 0, fmt.Errorf("unknown field type %q", s)
}

// ParseFieldTypes parses a list of type tags, failing on the first unknown one.
func ParseFieldTypes(tags []string) ([]FieldType, error) {
	out := make([]FieldType, len(tags))
	for i, s := range tags {
		t, err := ParseFieldType(s)
		if err != nil {
			return nil, fmt.Errorf("type[%d]: %w", i, err)
		}
		out[i] = t
	}
	return out, nil
}

// SSN is a three-part identifier ("AAA-GG-SSSS"). It is comparable, so it can
// be used directly as a map key or with ==.
type SSN struct {
	Area   string
	Group  string
	Serial string
}

// ParseSSN splits s on '-' into exactly three parts.
func ParseSSN(s string) (SSN, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 3 {
		return SSN{}, fmt.Errorf("want 3 dash-separated parts, got %d", len(parts))
	}
	return SSN{Area: parts[0], Group: parts[1], Serial: parts[2]}, nil
}

func (s SSN) String() string { return s.Area + "-" + s.Group + "-" + s.Serial }

// Date is a month/day/year triple kept as text. No calendar validation.
type Date struct {
	Month string
	Day   string
	Year  string
}

// ParseDate splits s on '/' into exactly three parts.
func ParseDate(s string) (Date, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return Date{}, fmt.Errorf("want 3 slash-separated parts, got %d", len(parts))
	}
	return Date{Month: parts[0], Day: parts[1], Year: parts[2]}, nil
}

func (d Date) String() string { return d.Month + "/" + d.Day + "/" + d.Year }

// Timestamp is an absolute instant in UTC with second precision.
type Timestamp struct{ t time.Time }

// TimestampLayout is the textual form accepted by ParseTimestamp and produced
// by Timestamp.String.
const TimestampLayout = "2006-01-02T15:04:05Z"

// NewTimestamp builds a Timestamp from its six components. Out-of-range
// components are rejected rather than normalised.
func NewTimestamp(year, month, day, hour, minute, second int) (Timestamp, error) {
	switch {
	case year < 1 || year > 9999:
		return Timestamp{}, fmt.Errorf("year %d out of range", year)
	case month < 1 || month > 12:
		return Timestamp{}, fmt.Errorf("month %d out of range", month)
	case day < 1 || day > daysIn(year, time.Month(month)):
		return Timestamp{}, fmt.Errorf("day %d out of range for %04d-%02d", day, year, month)
	case hour < 0 || hour > 23:
		return Timestamp{}, fmt.Errorf("hour %d out of range", hour)
	case minute < 0 || minute > 59:
		return Timestamp{}, fmt.Errorf("minute %d out of range", minute)
	case second < 0 || second > 59:
		return Timestamp{}, fmt.Errorf("second %d out of range", second)
	}
	return Timestamp{t: time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC)}, nil
}

// MustTimestamp is NewTimestamp for constants; it panics on invalid input.
func MustTimestamp(year, month, day, hour, minute, second int) Timestamp {
	ts, err := NewTimestamp(year, month, day, hour, minute, second)
	if err != nil {
		panic(err)
	}
	return ts
}

// ParseTimestamp parses "YYYY-MM-DDTHH:MM:SSZ". The value is split on the
// literal 'T'; the date half on '-'; the time half must end in 'Z', which is
// stripped before splitting on ':'. Exactly six integer components are
// required.
func ParseTimestamp(s string) (Timestamp, error) {
	halves := strings.Split(s, "T")
	if len(halves) != 2 {
		return Timestamp{}, fmt.Errorf("want exactly one 'T' separator in %q", s)
	}
	clock, ok := strings.CutSuffix(halves[1], "Z")
	if !ok || strings.Contains(clock, "Z") {
		return Timestamp{}, fmt.Errorf("time %q must end with a single 'Z'", halves[1])
	}
	parts := append(strings.Split(halves[0], "-"), strings.Split(clock, ":")...)
	if len(parts) != 6 {
		return Timestamp{}, fmt.Errorf("want 6 components, got %d", len(parts))
	}
	var c [6]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Timestamp{}, fmt.Errorf("component %d: %w", i, err)
		}
		c[i] = n
	}
	return NewTimestamp(c[0], c[1], c[2], c[3], c[4], c[5])
}

// Time returns the instant as a time.Time in UTC.
func (ts Timestamp) Time() time.Time { return ts.t }

// IsZero reports whether ts was never set.
func (ts Timestamp) IsZero() bool { return ts.t.IsZero() }

// Components returns (year, month, day, hour, minute, second).
func (ts Timestamp) Components() [6]int {
	return [6]int{ts.t.Year(), int(ts.t.Month()), ts.t.Day(), ts.t.Hour(), ts.t.Minute(), ts.t.Second()}
}

func (ts Timestamp) Before(o Timestamp) bool { return ts.t.Before(o.t) }

func (ts Timestamp) After(o Timestamp) bool { return ts.t.After(o.t) }

func (ts Timestamp) Equal(o Timestamp) bool { return ts.t.Equal(o.t) }

// Compare returns -1, 0 or +1 as ts is before, equal to or after o.
func (ts Timestamp) Compare(o Timestamp) int { return ts.t.Compare(o.t) }

func (ts Timestamp) String() string { return ts.t.Format(TimestampLayout) }

func (ts Timestamp) MarshalText() ([]byte, error) { return []byte(ts.String()), nil }

func (ts *Timestamp) UnmarshalText(b []byte) error {
	v, err := ParseTimestamp(string(b))
	if err != nil {
		return err
	}
	*ts = v
	return nil
}

func daysIn(year int, m time.Month) int {
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
