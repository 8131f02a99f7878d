package soundscape

import (
	"fmt"
	"strings"
	"time"
)

// timeLayouts are tried in order when parsing capture timestamps. Time-only layouts come
// first because recorder metadata tables carry an HHMMSS column.
var timeLayouts = []string{
	"150405",
	"15:04:05",
	"15:04",
	"1504",
	"20060102_150405",
	"20060102150405",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	time.RFC3339,
	time.RFC3339Nano,
}

// ParseCaptureTime parses a capture timestamp. Only the hour-of-day matters downstream, so
// time-only values are accepted and anchored on the zero date.
func ParseCaptureTime(value string) (time.Time, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return time.Time{}, NewDataFormatError("", "empty capture time", nil)
	}

	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}

	return time.Time{}, NewDataFormatError("", fmt.Sprintf("unrecognised capture time %q", value), nil)
}
