package pricing

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var nonPriceChars = regexp.MustCompile(`[^0-9.,]`)

// SanitizePrice coerces a raw price into a number. Strings lose every
// character except digits, dots and commas, and commas are read as decimal
// separators ("SAR 12,50" → 12.5). Empty and unparseable input is not ok.
func SanitizePrice(raw any) (float64, bool) {
	switch v := raw.(type) {
	case nil:
		return 0, false
	case float64:
		return finite(v)
	case float32:
		return finite(float64(v))
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return finite(f)
	case string:
		return parsePriceString(v)
	default:
		return 0, false
	}
}

// Coerce is SanitizePrice with zero for anything unusable.
func Coerce(raw any) float64 {
	v, ok := SanitizePrice(raw)
	if !ok {
		return 0
	}
	return v
}

func parsePriceString(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	digits := nonPriceChars.ReplaceAllString(s, "")
	digits = strings.ReplaceAll(digits, ",", ".")
	if digits == "" {
		// Text without any digits reads as zero.
		return 0, true
	}
	f, err := strconv.ParseFloat(digits, 64)
	if err != nil {
		return 0, false
	}
	return finite(f)
}

func finite(v float64) (float64, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
