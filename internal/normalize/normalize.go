// Package normalize converts heterogeneous per-store payloads into the
// unified app schema. Five upstream sources disagree wildly on what is
// present; this package owns the empty-value policies every downstream
// component (hashing, aggregation, display) depends on.
package normalize

import (
	"strconv"
	"strings"
	"time"

	"github.com/appradar/appradar/internal/appstore"
)

// RequiredText applies the required-field policy: trimmed text, or the
// "not available" sentinel when the upstream supplied nothing.
func RequiredText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return appstore.NotAvailable
	}
	return s
}

// OptionalURL applies the optional-reference policy: absent for missing
// or non-URL values. Sentinel strings here would corrupt links.
func OptionalURL(s string) appstore.OptString {
	s = strings.TrimSpace(s)
	if s == "" || (!strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://")) {
		return appstore.OptString{}
	}
	return appstore.SomeString(s)
}

var countSuffixes = map[byte]int64{
	'K': 1_000,
	'M': 1_000_000,
	'B': 1_000_000_000,
}

// ParseCount parses loose counter notation ("1.2M", "10,000", "3400")
// into an int64, absent on failure. Counters routinely exceed 32-bit
// range, so the parse is 64-bit throughout.
func ParseCount(s string) appstore.OptInt {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return appstore.OptInt{}
	}
	mult := int64(1)
	last := s[len(s)-1]
	if m, ok := countSuffixes[last&^0x20]; ok { // tolerate lower case
		mult = m
		s = s[:len(s)-1]
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n < 0 {
			return appstore.OptInt{}
		}
		return appstore.SomeInt(n * mult)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return appstore.OptInt{}
	}
	return appstore.SomeInt(int64(f * float64(mult)))
}

// ParseInstalls parses an install-range label ("10,000+") into its
// bounds. The trailing plus widens the upper bound to the next bucket.
func ParseInstalls(s string) (minCount, maxCount appstore.OptInt) {
	s = strings.TrimSpace(s)
	open := strings.HasSuffix(s, "+")
	s = strings.TrimSuffix(s, "+")
	n := ParseCount(s)
	if !n.Valid {
		return appstore.OptInt{}, appstore.OptInt{}
	}
	if !open || n.Value == 0 {
		return n, n
	}
	return n, appstore.SomeInt(n.Value * 10)
}

// ParseScore parses a 0..5 rating score, tolerating comma decimals,
// absent on failure or out-of-range values.
func ParseScore(s string) appstore.OptFloat {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" {
		return appstore.OptFloat{}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || f > 5 {
		return appstore.OptFloat{}
	}
	return appstore.SomeFloat(f)
}

// ParsePrice parses a price label ("$1.99", "1,99 €", "Free") into a
// numeric amount, absent on failure.
func ParsePrice(s string) appstore.OptFloat {
	s = strings.TrimSpace(s)
	if s == "" {
		return appstore.OptFloat{}
	}
	if strings.EqualFold(s, "free") {
		return appstore.SomeFloat(0)
	}
	var b strings.Builder
	for _, r := range strings.ReplaceAll(s, ",", ".") {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	f, err := strconv.ParseFloat(strings.Trim(b.String(), "."), 64)
	if err != nil || f < 0 {
		return appstore.OptFloat{}
	}
	return appstore.SomeFloat(f)
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
}

// ParseTime parses a date in any of the layouts the stores emit,
// absent on failure.
func ParseTime(s string) appstore.OptTime {
	s = strings.TrimSpace(s)
	if s == "" {
		return appstore.OptTime{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return appstore.SomeTime(t)
		}
	}
	return appstore.OptTime{}
}

// ParseUnixMillis converts an epoch-milliseconds value, absent for
// non-positive input.
func ParseUnixMillis(ms int64) appstore.OptTime {
	if ms <= 0 {
		return appstore.OptTime{}
	}
	return appstore.SomeTime(time.UnixMilli(ms))
}

// TriFromPtr lifts an optional bool into the tri-state.
func TriFromPtr(v *bool) appstore.TriBool {
	if v == nil {
		return appstore.TriUnknown
	}
	return appstore.TriFrom(*v)
}

// Placeholder synthesizes the minimal sentinel-filled record the dummy
// fallback tier returns. Every required field carries the sentinel, all
// optionals stay absent.
func Placeholder(m appstore.Marketplace, appID string) appstore.AppPayload {
	return appstore.AppPayload{
		Marketplace: m,
		AppID:       appID,
		Title:       appstore.NotAvailable,
		Developer:   appstore.NotAvailable,
		Category:    appstore.NotAvailable,
		Description: appstore.NotAvailable,
	}
}
