// Package review is a terminal reviewer for a recorded presentation. It plays
// a simulated timeline over the transcript, highlights the active sentence
// and event, and collects timestamped feedback notes.
package review

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/presentable/presentable/internal/segment"
	"github.com/presentable/presentable/internal/timestamp"
)

// Document is a presentation exported as a single JSON file.
type Document struct {
	ID         string             `json:"id"`
	Title      string             `json:"title"`
	Duration   string             `json:"duration"`
	Transcript segment.Transcript `json:"transcript"`
	Events     segment.Events     `json:"events"`
}

func Load(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("read presentation: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("decode presentation %s: %w", path, err)
	}
	return doc, nil
}

// DurationSeconds returns the document's duration, NaN when absent or
// malformed.
func (d Document) DurationSeconds() float64 {
	seconds, err := timestamp.ParseBound(d.Duration)
	if err != nil {
		return math.NaN()
	}
	return seconds
}
