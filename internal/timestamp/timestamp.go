// Package timestamp converts between timestamp strings and playback offsets
// expressed in seconds.
//
// Two input shapes are accepted: M:SS, used in authored feedback and
// comments, and H:MM:SS[.mmm], used in machine-generated transcripts and
// event logs.
package timestamp

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var ErrMalformedTimestamp = errors.New("malformed timestamp")

func malformed(text string) error {
	return fmt.Errorf("%w: %q", ErrMalformedTimestamp, text)
}

// Parse converts a timestamp string into seconds since the start of the video.
// A fraction on the seconds field is decimal, so ".5" and ".500" are both
// half a second.
func Parse(text string) (float64, error) {
	normalized := strings.Replace(strings.TrimSpace(text), ",", ".", 1)

	parts := strings.Split(normalized, ":")
	switch len(parts) {
	case 2:
		minutes, ok := digits(parts[0], 1, 0)
		if !ok {
			return 0, malformed(text)
		}
		seconds, ok := digits(parts[1], 2, 2)
		if !ok || seconds > 59 {
			return 0, malformed(text)
		}
		return float64(minutes*60 + seconds), nil
	case 3:
		hours, ok := digits(parts[0], 1, 0)
		if !ok {
			return 0, malformed(text)
		}
		minutes, ok := digits(parts[1], 1, 2)
		if !ok || minutes > 59 {
			return 0, malformed(text)
		}
		whole, frac, hasFrac := strings.Cut(parts[2], ".")
		seconds, ok := digits(whole, 1, 2)
		if !ok || seconds > 59 {
			return 0, malformed(text)
		}
		total := float64(hours*3600 + minutes*60 + seconds)
		if hasFrac {
			if _, ok := digits(frac, 1, 0); !ok {
				return 0, malformed(text)
			}
			fraction, err := strconv.ParseFloat("0."+frac, 64)
			if err != nil {
				return 0, malformed(text)
			}
			total += fraction
		}
		return total, nil
	default:
		return 0, malformed(text)
	}
}

// digits parses s as an unsigned decimal integer whose length lies within
// [minLen, maxLen]. A maxLen of zero means unbounded.
func digits(s string, minLen, maxLen int) (int, bool) {
	if len(s) < minLen || (maxLen > 0 && len(s) > maxLen) {
		return 0, false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Format renders an offset for human display, e.g. "2m 5s".
func Format(offset float64) string {
	total := WholeSeconds(offset)
	return fmt.Sprintf("%dm %ds", total/60, total%60)
}

// LinkText renders an offset in the M:SS form embedded in clickable references.
func LinkText(offset float64) string {
	total := WholeSeconds(offset)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// WholeSeconds floors offset to an integer number of seconds. Negative and
// non-finite values become zero.
func WholeSeconds(offset float64) int {
	if math.IsNaN(offset) || math.IsInf(offset, 0) || offset < 0 {
		return 0
	}
	return int(math.Floor(offset))
}

// ParseOffsetParam reads a position parameter such as the "t" query value.
// It accepts plain seconds ("80"), seconds with a unit suffix ("80s") and any
// timestamp string accepted by Parse.
func ParseOffsetParam(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	if strings.Contains(raw, ":") {
		offset, err := Parse(raw)
		if err != nil {
			return 0, false
		}
		return offset, true
	}
	raw = strings.TrimSuffix(raw, "s")
	offset, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(offset) || math.IsInf(offset, 0) || offset < 0 {
		return 0, false
	}
	return offset, true
}

// ParseBound reads a segment bound, which upstream data supplies either as a
// timestamp string or as a plain number of seconds.
func ParseBound(text string) (float64, error) {
	text = strings.TrimSpace(text)
	if strings.Contains(text, ":") {
		return Parse(text)
	}
	offset, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(offset) || math.IsInf(offset, 0) || offset < 0 {
		return 0, malformed(text)
	}
	return offset, nil
}

// KnownDuration reports whether duration holds a usable video length. Players
// report NaN until metadata has loaded.
func KnownDuration(duration float64) bool {
	return !math.IsNaN(duration) && !math.IsInf(duration, 0) && duration > 0
}

// Clamp bounds offset to [0, duration]. When the duration is unknown only the
// lower bound applies.
func Clamp(offset, duration float64) float64 {
	if math.IsNaN(offset) || offset < 0 {
		return 0
	}
	if KnownDuration(duration) && offset > duration {
		return duration
	}
	return offset
}
