package market

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// secondsCeiling separates epoch seconds from epoch milliseconds.
const secondsCeiling = 10_000_000_000

const dateTimeLayout = "2006-01-02 15:04:05"

var integerPattern = regexp.MustCompile(`^-?\d+$`)

// NormalizeTimestamp converts the heterogeneous start_time encodings the provider
// uses into epoch milliseconds. Unknown shapes yield 0.
func NormalizeTimestamp(v any) int64 {
	switch t := v.(type) {
	case nil:
		return 0
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return scale(i)
		}
		f, err := t.Float64()
		if err != nil {
			return 0
		}
		return fromFloat(f)
	case float64:
		return fromFloat(t)
	case float32:
		return fromFloat(float64(t))
	case int:
		return scale(int64(t))
	case int32:
		return scale(int64(t))
	case int64:
		return scale(t)
	case uint32:
		return scale(int64(t))
	case uint64:
		if t > math.MaxInt64 {
			return 0
		}
		return scale(int64(t))
	case string:
		s := strings.TrimSpace(t)
		if integerPattern.MatchString(s) {
			i, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return 0
			}
			return scale(i)
		}
		ts, err := time.ParseInLocation(dateTimeLayout, s, time.UTC)
		if err != nil {
			return 0
		}
		return ts.UnixMilli()
	}
	return 0
}

func fromFloat(f float64) int64 {
	if math.IsNaN(f) || math.IsInf(f, 0) || f >= math.MaxInt64 || f <= math.MinInt64/1000 {
		return 0
	}
	return scale(int64(f))
}

// scale treats v as seconds unless it is above secondsCeiling. Values that
// would overflow once converted to milliseconds yield 0.
func scale(v int64) int64 {
	if v > secondsCeiling {
		return v
	}
	if v < math.MinInt64/1000 {
		return 0
	}
	return v * 1000
}
