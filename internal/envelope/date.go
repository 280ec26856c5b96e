package envelope

import (
	"fmt"
	"time"
)

// LegacyDateLayout is the date form written into envelopes and the only
// form accepted by the legacy document store.
const LegacyDateLayout = "2006-01-02 15:04:05"

// naive layouts carry no zone and are read as UTC.
var naiveLayouts = []string{
	LegacyDateLayout,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
}

// ParseDate reads an envelope date. Dates with an offset are converted to
// UTC; dates without one are taken as UTC. Sub-second precision is dropped.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC().Truncate(time.Second), nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.Truncate(time.Second), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

// IsLegacyDate reports whether s is written exactly in LegacyDateLayout.
func IsLegacyDate(s string) bool {
	t, err := time.ParseInLocation(LegacyDateLayout, s, time.UTC)
	return err == nil && t.Format(LegacyDateLayout) == s
}

// FormatDate renders t in LegacyDateLayout after converting it to UTC.
func FormatDate(t time.Time) string {
	return t.UTC().Format(LegacyDateLayout)
}
