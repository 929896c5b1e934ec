package transform

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/SkyFlyTeam/Atmos-processador-dados/services/processor/internal/models"
)

const (
	// millisThreshold separates second and millisecond epoch values.
	millisThreshold = 1e12
	// maxEpochMillis is the widest instant a timestamp may name, ±100M days.
	maxEpochMillis = 8.64e15
)

// TimestampParser turns a raw unixtime field into an instant.
type TimestampParser func(models.Value) (time.Time, bool)

// ParseNumber accepts finite numbers and numeric strings. Blank strings,
// booleans, NaN and infinities are rejected.
func ParseNumber(v models.Value) (float64, bool) {
	switch v.Kind {
	case models.KindNumber:
		return v.Number, isFinite(v.Number)
	case models.KindString:
		s := strings.TrimSpace(v.Str)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, isFinite(f)
	default:
		return 0, false
	}
}

// ParseTimestamp reads native dates as-is and numeric values as epoch
// seconds, or epoch milliseconds when they exceed 10^12.
func ParseTimestamp(v models.Value) (time.Time, bool) {
	if v.Kind == models.KindTime {
		return v.Time, true
	}
	n, ok := ParseNumber(v)
	if !ok {
		return time.Time{}, false
	}
	if n <= millisThreshold {
		n *= 1000
	}
	return fromMillis(n)
}

// ParseUnixSeconds reads numeric values as epoch seconds only.
func ParseUnixSeconds(v models.Value) (time.Time, bool) {
	n, ok := ParseNumber(v)
	if !ok {
		return time.Time{}, false
	}
	return fromMillis(n * 1000)
}

func fromMillis(ms float64) (time.Time, bool) {
	if !isFinite(ms) || math.Abs(ms) > maxEpochMillis {
		return time.Time{}, false
	}
	return time.UnixMilli(int64(math.Trunc(ms))).UTC(), true
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
