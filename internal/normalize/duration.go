// internal/normalize/duration.go
package normalize

import (
	"strconv"
	"strings"
)

// ParseDuration converts a raw duration value into whole seconds. Numeric
// input is treated as milliseconds; non-positive numbers yield 0 rather than
// nil, an asymmetry with ParseCount kept for compatibility with the upstream
// data. Colon-delimited strings are read as SS, MM:SS, or HH:MM:SS. Anything
// else yields nil.
func ParseDuration(value interface{}) *int64 {
	switch v := value.(type) {
	case nil:
		return nil
	case int:
		return millisToSeconds(int64(v))
	case int64:
		return millisToSeconds(v)
	case float64:
		return millisToSeconds(int64(v))
	case string:
		return parseClockString(v)
	default:
		return nil
	}
}

func millisToSeconds(ms int64) *int64 {
	var s int64
	if ms > 0 {
		s = ms / 1000
	}
	return &s
}

func parseClockString(s string) *int64 {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) == 0 || len(parts) > 3 {
		return nil
	}

	nums := make([]int64, len(parts))
	for i, p := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil || n < 0 {
			return nil
		}
		nums[i] = n
	}

	var seconds int64
	switch len(nums) {
	case 1:
		seconds = nums[0]
	case 2:
		seconds = nums[0]*60 + nums[1]
	case 3:
		seconds = nums[0]*3600 + nums[1]*60 + nums[2]
	}
	return &seconds
}
