package earnings

import "strings"

// OffsetsFor maps a timing to the session offsets of the baseline and reaction bars,
// relative to the session nearest the report date.
func OffsetsFor(t Timing) (pre, post int) {
	switch t {
	case BeforeOpen:
		return -1, 0
	default:
		// AMC, and the conservative choice when the timing is unknown.
		return 0, 1
	}
}

// ClassifyHour applies the Yahoo calendar convention: 15:00 or later is after the close.
func ClassifyHour(hour int) Timing {
	if hour >= 15 {
		return AfterClose
	}
	return BeforeOpen
}

// ClassifySessionHour applies the stricter convention used for clock times reported by
// the primary calendar: 16–23 after the close, 5–15 before the open, anything else unknown.
func ClassifySessionHour(hour int) Timing {
	switch {
	case hour >= 16 && hour < 24:
		return AfterClose
	case hour >= 5 && hour < 16:
		return BeforeOpen
	default:
		return Unknown
	}
}

// ClassifyLabel reads textual calendar labels such as "amc", "bmo", "After Market Close".
func ClassifyLabel(label string) Timing {
	l := strings.ToLower(label)
	switch {
	case strings.Contains(l, "amc"), strings.Contains(l, "after"):
		return AfterClose
	case strings.Contains(l, "bmo"), strings.Contains(l, "before"):
		return BeforeOpen
	default:
		return Unknown
	}
}
