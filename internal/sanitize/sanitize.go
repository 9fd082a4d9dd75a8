// Package sanitize bounds and cleans untrusted client input before it enters
// room state.
//
// The only markup defence here is stripping '<' and '>'. Values are relayed
// to other clients' renderers, which must still escape what they display:
// this package is an injection guard, not a security boundary.
package sanitize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

const dataURIPrefix = "data:"

var angleStripper = strings.NewReplacer("<", "", ">", "")

// String strips angle brackets and truncates to max runes.
// Anything that is not a string yields "".
func String(v any, max int) string {
	s, ok := v.(string)
	if !ok || max <= 0 {
		return ""
	}
	s = angleStripper.Replace(s)
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}

// Number coerces a declared numeric value. Unparseable or non-finite input is 0.
func Number(v any) int64 {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		return int64(n)
	case int64:
		return n
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0
		}
		f = parsed
	case string:
		t := strings.TrimSpace(n)
		if t == "" {
			return 0
		}
		parsed, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0
		}
		f = parsed
	case bool:
		if n {
			return 1
		}
		return 0
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	if f >= math.MaxInt64 {
		return math.MaxInt64
	}
	if f <= math.MinInt64 {
		return math.MinInt64
	}
	return int64(f)
}

// Truthy reports whether a loosely typed flag is set.
func Truthy(v any) bool {
	switch b := v.(type) {
	case nil:
		return false
	case bool:
		return b
	case string:
		return b != ""
	case float64:
		return b != 0 && !math.IsNaN(b)
	case json.Number:
		f, err := b.Float64()
		return err == nil && f != 0
	case int:
		return b != 0
	default:
		return true
	}
}

// IsDataURI reports whether v is a data: URI string of at most max bytes.
func IsDataURI(v any, max int) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	return len(s) <= max && strings.HasPrefix(s, dataURIPrefix)
}
