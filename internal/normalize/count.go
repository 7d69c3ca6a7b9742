// internal/normalize/count.go
package normalize

import (
	"strconv"
	"strings"

	"golang.org/x/text/width"
)

// Multipliers for the platform's abbreviated display counts. The latin
// suffix forms ("w", "b") show up when the page was served with
// transliterated numerals.
const (
	tenThousand    = 10_000
	hundredMillion = 100_000_000
)

// ParseCount parses a display count ("1.2万", "5亿", "301", 42) into a
// non-negative integer. It returns nil when the value is absent or cannot be
// parsed; callers must not collapse nil into zero before the final mapping
// step, since "unparseable" and "explicitly zero" are different answers.
func ParseCount(value interface{}) *int64 {
	switch v := value.(type) {
	case nil:
		return nil
	case int:
		return nonNegative(int64(v))
	case int64:
		return nonNegative(v)
	case float64:
		return nonNegative(int64(v))
	case string:
		return parseCountString(v)
	default:
		return nil
	}
}

func nonNegative(n int64) *int64 {
	if n < 0 {
		return nil
	}
	return &n
}

func parseCountString(s string) *int64 {
	// Fold full-width digits and punctuation before matching suffixes.
	s = width.Narrow.String(s)
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return nil
	}

	multiplier := int64(1)
	switch {
	case strings.ContainsAny(s, "万w"):
		s = strings.NewReplacer("万", "", "w", "").Replace(s)
		multiplier = tenThousand
	case strings.ContainsAny(s, "亿b"):
		s = strings.NewReplacer("亿", "", "b", "").Replace(s)
		multiplier = hundredMillion
	}

	num, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}
	return nonNegative(int64(num * float64(multiplier)))
}
