package segment

import (
	"fmt"

	"github.com/presentable/presentable/internal/timestamp"
)

// Transcript is the machine-generated transcript of a recording. Interval and
// sentence bounds are timestamp strings or plain seconds.
type Transcript struct {
	RecordingID string               `json:"RecordingID"`
	Intervals   []TranscriptInterval `json:"Intervals"`
}

type TranscriptInterval struct {
	Start     string     `json:"start"`
	End       string     `json:"end"`
	Text      string     `json:"text"`
	Sentences []Sentence `json:"sentences"`
}

type Sentence struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Text  string `json:"text"`
}

// Events is the output of the automatic event detector for a recording.
type Events struct {
	RecordingID string  `json:"RecordingID"`
	Intervals   []Event `json:"Intervals"`
}

type Event struct {
	ID          int        `json:"id"`
	Start       string     `json:"start"`
	End         string     `json:"end"`
	Annotations Annotation `json:"annotations"`
}

type Annotation struct {
	FeedbackFired    bool            `json:"feedbackFired"`
	FeedbackMessage  string          `json:"feedbackMessage"`
	ExpertValidation ValidationState `json:"expertValidation"`
}

// Span is a half-open interval [Start, End) in seconds.
type Span struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Contains reports whether offset lies in the span. Adjacent spans sharing a
// boundary never both contain it.
func (s Span) Contains(offset float64) bool {
	return s.Start <= offset && offset < s.End
}

// ParseSpan converts textual bounds into a Span.
func ParseSpan(start, end string) (Span, error) {
	s, err := timestamp.ParseBound(start)
	if err != nil {
		return Span{}, fmt.Errorf("segment start: %w", err)
	}
	e, err := timestamp.ParseBound(end)
	if err != nil {
		return Span{}, fmt.Errorf("segment end: %w", err)
	}
	return Span{Start: s, End: e}, nil
}

// TranscriptSpans parses the bounds of every interval and sentence. A
// malformed bound yields an empty span at its index, so indices keep matching
// the transcript, and the error is returned alongside.
func TranscriptSpans(t Transcript) (parents []Span, children [][]Span, errs []error) {
	parents = make([]Span, len(t.Intervals))
	children = make([][]Span, len(t.Intervals))
	for i, interval := range t.Intervals {
		span, err := ParseSpan(interval.Start, interval.End)
		if err != nil {
			errs = append(errs, fmt.Errorf("interval %d: %w", i, err))
		} else {
			parents[i] = span
		}

		children[i] = make([]Span, len(interval.Sentences))
		for j, sentence := range interval.Sentences {
			span, err := ParseSpan(sentence.Start, sentence.End)
			if err != nil {
				errs = append(errs, fmt.Errorf("interval %d sentence %d: %w", i, j, err))
				continue
			}
			children[i][j] = span
		}
	}
	return parents, children, errs
}

// EventSpans parses event bounds with the same policy as TranscriptSpans.
func EventSpans(events []Event) ([]Span, []error) {
	spans := make([]Span, len(events))
	var errs []error
	for i, e := range events {
		span, err := ParseSpan(e.Start, e.End)
		if err != nil {
			errs = append(errs, fmt.Errorf("event %d: %w", e.ID, err))
			continue
		}
		spans[i] = span
	}
	return spans, errs
}

// Marker places an event on the timeline bar under the player.
type Marker struct {
	EventID  int     `json:"eventId"`
	Offset   float64 `json:"offset"`
	Position float64 `json:"position"`
	Message  string  `json:"message"`
}

// MarkerPosition returns start as a percentage of duration. It reports false
// while the duration is unknown.
func MarkerPosition(start, duration float64) (float64, bool) {
	if !timestamp.KnownDuration(duration) {
		return 0, false
	}
	return timestamp.Clamp(start, duration) / duration * 100, true
}

// Markers builds timeline markers for the given events, skipping events whose
// start cannot be parsed.
func Markers(events []Event, duration float64) []Marker {
	markers := []Marker{}
	for _, e := range events {
		start, err := timestamp.ParseBound(e.Start)
		if err != nil {
			continue
		}
		position, ok := MarkerPosition(start, duration)
		if !ok {
			continue
		}
		markers = append(markers, Marker{
			EventID:  e.ID,
			Offset:   start,
			Position: position,
			Message:  e.Annotations.FeedbackMessage,
		})
	}
	return markers
}
