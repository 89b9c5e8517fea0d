// Package segment models transcript and event segments, decides which of
// them are active at a playback offset and governs expert validation of
// detected events.
package segment

import (
	"slices"
	"sync"
)

// ActiveIndices returns the indices of spans containing offset, in order.
// Offsets past the last span yield an empty result.
func ActiveIndices(offset float64, spans []Span) []int {
	active := []int{}
	for i, s := range spans {
		if s.Contains(offset) {
			active = append(active, i)
		}
	}
	return active
}

// ActiveSentence finds the sentence containing offset. A sentence only counts
// while the offset is also before its interval's end.
func ActiveSentence(offset float64, parents []Span, children [][]Span) (parent, child int, ok bool) {
	for i, p := range parents {
		if offset >= p.End || i >= len(children) {
			continue
		}
		for j, c := range children[i] {
			if c.Contains(offset) {
				return i, j, true
			}
		}
	}
	return -1, -1, false
}

// Active is the highlighting state at one offset. Parent and Child are -1
// when no sentence is active.
type Active struct {
	Offset   float64 `json:"offset"`
	Segments []int   `json:"segments"`
	Parent   int     `json:"parent"`
	Child    int     `json:"child"`
}

func (a Active) equalHighlight(b Active) bool {
	return a.Parent == b.Parent && a.Child == b.Child && slices.Equal(a.Segments, b.Segments)
}

// Tracker recomputes the active segment on every playback tick and notifies
// listeners when the highlight changes.
type Tracker struct {
	parents  []Span
	children [][]Span

	mu        sync.RWMutex
	current   Active
	listeners []func(Active)
}

// NewTracker tracks parents and, optionally, their nested children.
func NewTracker(parents []Span, children [][]Span) *Tracker {
	return &Tracker{
		parents:  parents,
		children: children,
		current:  Active{Segments: []int{}, Parent: -1, Child: -1},
	}
}

// NewTranscriptTracker builds a tracker over a transcript's intervals and
// sentences. Malformed bounds are returned but do not prevent tracking.
func NewTranscriptTracker(t Transcript) (*Tracker, []error) {
	parents, children, errs := TranscriptSpans(t)
	return NewTracker(parents, children), errs
}

// Compute returns the active state at offset without recording it.
func (t *Tracker) Compute(offset float64) Active {
	parent, child, ok := ActiveSentence(offset, t.parents, t.children)
	if !ok {
		parent, child = -1, -1
	}
	return Active{
		Offset:   offset,
		Segments: ActiveIndices(offset, t.parents),
		Parent:   parent,
		Child:    child,
	}
}

// OffsetChanged records the active state for a new playback offset.
func (t *Tracker) OffsetChanged(offset float64) {
	next := t.Compute(offset)

	t.mu.Lock()
	changed := !t.current.equalHighlight(next)
	t.current = next
	listeners := slices.Clone(t.listeners)
	t.mu.Unlock()

	if !changed {
		return
	}
	for _, fn := range listeners {
		fn(next)
	}
}

// Current returns the state computed for the last reported offset.
func (t *Tracker) Current() Active {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current
}

// OnChange registers fn to run whenever the highlighted segment changes.
func (t *Tracker) OnChange(fn func(Active)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, fn)
}
