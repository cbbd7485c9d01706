// Package timefmt converts timestamps of unknown shape into short
// chart labels. Firmware publishes composite YYYYMMDD_HHMMSS strings,
// the store keys readings by millisecond epoch, and older records may
// carry second epochs; all of them must render as a clock label
// without ever failing.
package timefmt

import (
	"strconv"
	"time"
)

// Numeric values below this are treated as second epochs and scaled
// to milliseconds. Millisecond epochs passed 1e12 back in 2001, so
// any plausible live timestamp is well above it.
const millisThreshold = 1_000_000_000_000

const clockLayout = "15:04"

// Label converts a raw timestamp into a short display label.
//
// A composite "<digits>_<digits>" string with a time part of at least
// four characters yields "HH:MM" taken from the time part. A numeric
// value is interpreted as a Unix epoch (seconds or milliseconds by
// magnitude) and formatted as a clock time in loc. Anything else is
// returned unchanged.
func Label(raw string, loc *time.Location) string {
	if hh, mm, ok := splitComposite(raw); ok {
		return hh + ":" + mm
	}

	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return Millis(normalizeEpoch(int64(n)), loc)
	}

	return raw
}

// Millis formats a millisecond Unix epoch as a clock label in loc.
func Millis(ms int64, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return time.UnixMilli(ms).In(loc).Format(clockLayout)
}

// normalizeEpoch scales second epochs up to milliseconds.
func normalizeEpoch(v int64) int64 {
	if v < millisThreshold {
		return v * 1000
	}
	return v
}

// splitComposite matches "<digits>_<digits>" where the second group
// has at least four characters, and extracts hour and minute from its
// leading positions.
func splitComposite(raw string) (hh, mm string, ok bool) {
	sep := -1
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c == '_' {
			if sep != -1 || i == 0 {
				return "", "", false
			}
			sep = i
			continue
		}
		if c < '0' || c > '9' {
			return "", "", false
		}
	}
	if sep == -1 || len(raw)-sep-1 < 4 {
		return "", "", false
	}
	timePart := raw[sep+1:]
	return timePart[0:2], timePart[2:4], true
}
