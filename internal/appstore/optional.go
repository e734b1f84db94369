package appstore

import "time"

// OptString is a string that may be absent. Optional reference fields
// normalize missing or empty upstream values to the absent state instead
// of a sentinel, so broken links never reach the dashboard.
type OptString struct {
	Value string `json:"value"`
	Valid bool   `json:"valid"`
}

// SomeString wraps a present string. Empty input stays absent.
func SomeString(v string) OptString {
	if v == "" {
		return OptString{}
	}
	return OptString{Value: v, Valid: true}
}

// OptInt is an int64 counter that may be absent. Rating and install
// counts exceed 32-bit range on the largest apps.
type OptInt struct {
	Value int64 `json:"value"`
	Valid bool  `json:"valid"`
}

// SomeInt wraps a present int64.
func SomeInt(v int64) OptInt {
	return OptInt{Value: v, Valid: true}
}

// OptFloat is a float64 that may be absent.
type OptFloat struct {
	Value float64 `json:"value"`
	Valid bool    `json:"valid"`
}

// SomeFloat wraps a present float64.
func SomeFloat(v float64) OptFloat {
	return OptFloat{Value: v, Valid: true}
}

// OptTime is a timestamp that may be absent.
type OptTime struct {
	Value time.Time `json:"value"`
	Valid bool      `json:"valid"`
}

// SomeTime wraps a present timestamp, normalized to UTC.
func SomeTime(v time.Time) OptTime {
	if v.IsZero() {
		return OptTime{}
	}
	return OptTime{Value: v.UTC(), Valid: true}
}

// TriBool is a tri-state boolean: upstream sources frequently omit
// monetization flags, and "unknown" must stay distinguishable from false.
type TriBool int8

// Tri-state values.
const (
	TriUnknown TriBool = iota
	TriFalse
	TriTrue
)

// TriFrom converts a known bool into a TriBool.
func TriFrom(v bool) TriBool {
	if v {
		return TriTrue
	}
	return TriFalse
}

// String renders the tri-state for canonical serialization.
func (t TriBool) String() string {
	switch t {
	case TriTrue:
		return "true"
	case TriFalse:
		return "false"
	default:
		return "unknown"
	}
}
