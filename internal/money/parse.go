// Package money turns market value text such as "€14.00m" into integers.
package money

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// currencyReplacer strips currency symbols, including the double-encoded
// renderings of € and £ that some responses carry.
var currencyReplacer = strings.NewReplacer(
	"â‚¬", "",
	"Â£", "",
	"€", "",
	"$", "",
	"£", "",
	"\u00a0", "",
	" ", "",
)

var (
	suffixed = regexp.MustCompile(`^([0-9]+(?:[.,][0-9]+)?)([mMkK])?$`)
	nonDigit = regexp.MustCompile(`[^0-9]`)
)

// Parse converts value text to an integer. The boolean is false when the
// text is blank, null-like, or carries no usable number. Parse is pure.
func Parse(text string) (int64, bool) {
	s := strings.TrimSpace(text)
	switch strings.ToLower(s) {
	case "", "null", "none", "nan":
		return 0, false
	}

	s = currencyReplacer.Replace(s)

	if m := suffixed.FindStringSubmatch(s); m != nil {
		if m[2] == "" && !strings.ContainsAny(m[1], ".,") {
			v, err := strconv.ParseInt(m[1], 10, 64)
			if err != nil {
				return 0, false
			}
			return v, true
		}
		base, err := strconv.ParseFloat(strings.Replace(m[1], ",", ".", 1), 64)
		if err != nil {
			return 0, false
		}
		switch m[2] {
		case "m", "M":
			base *= 1_000_000
		case "k", "K":
			base *= 1_000
		}
		return round(base)
	}

	digits := nonDigit.ReplaceAllString(s, "")
	if digits == "" {
		return 0, false
	}
	v, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// FromAny parses a cell that may already be numeric. Integers pass through,
// floats are rounded, strings go through Parse.
func FromAny(v any) (int64, bool) {
	switch x := v.(type) {
	case nil:
		return 0, false
	case int:
		return int64(x), true
	case int64:
		return x, true
	case int32:
		return int64(x), true
	case float64:
		return round(x)
	case float32:
		return FromAny(float64(x))
	case string:
		return Parse(x)
	default:
		return 0, false
	}
}

// maxExact is 2^63, the first float64 past the int64 range.
const maxExact = float64(1 << 63)

// round converts f to the nearest int64, rejecting values outside its range.
func round(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	r := math.Round(f)
	if r >= maxExact || r < -maxExact {
		return 0, false
	}
	return int64(r), true
}
