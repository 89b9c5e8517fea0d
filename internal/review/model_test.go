package review

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jonboulle/clockwork"
	"github.com/presentable/presentable/internal/segment"
)

func testDocument() Document {
	return Document{
		ID:       "p-1",
		Title:    "Thesis defense",
		Duration: "2:00",
		Transcript: segment.Transcript{Intervals: []segment.TranscriptInterval{
			{Start: "0:00", End: "0:30", Text: "Welcome.", Sentences: []segment.Sentence{{Start: "0:00", End: "0:30", Text: "Welcome."}}},
			{Start: "0:30", End: "1:30", Sentences: []segment.Sentence{
				{Start: "0:30", End: "1:00", Text: "Results."},
				{Start: "1:00", End: "1:30", Text: "Questions."},
			}},
			{Start: "1:30", End: "2:00", Text: "Thanks."},
		}},
		Events: segment.Events{Intervals: []segment.Event{
			{ID: 1, Start: "0:10", End: "0:50", Annotations: segment.Annotation{FeedbackFired: true, FeedbackMessage: "Speaking too fast"}},
			{ID: 2, Start: "1:05", End: "1:10", Annotations: segment.Annotation{FeedbackFired: true, FeedbackMessage: "Long pause"}},
			{ID: 3, Start: "0:40", End: "0:45", Annotations: segment.Annotation{FeedbackFired: false, FeedbackMessage: "Filler"}},
		}},
	}
}

func newTestModel(t *testing.T) Model {
	t.Helper()
	return New(testDocument(), Options{Clock: clockwork.NewFakeClock()})
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msgs ...tea.Msg) Model {
	t.Helper()
	for _, msg := range msgs {
		updated, _ := m.Update(msg)
		m = updated.(Model)
	}
	return m
}

func TestNew_FlattensTranscript(t *testing.T) {
	m := newTestModel(t)

	if len(m.rows) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(m.rows))
	}
	if m.rows[3].child != -1 || m.rows[3].text != "Thanks." {
		t.Errorf("expected sentence-less interval as its own row, got %+v", m.rows[3])
	}
	if len(m.events) != 2 {
		t.Errorf("expected only fired events, got %d", len(m.events))
	}
	if m.status != "" {
		t.Errorf("expected no warnings, got %q", m.status)
	}
}

func TestNew_ReportsUnreadableBounds(t *testing.T) {
	doc := testDocument()
	doc.Transcript.Intervals[1].Sentences[0].End = "soon"

	m := New(doc, Options{Clock: clockwork.NewFakeClock()})

	if !strings.Contains(m.status, "1 segments") {
		t.Errorf("expected warning about one segment, got %q", m.status)
	}
}

func TestTick_AdvancesOnlyWhilePlaying(t *testing.T) {
	m := newTestModel(t)

	m = update(t, m, tickMsg{})
	if m.Offset() != 0 {
		t.Fatalf("expected paused player to stay at 0, got %v", m.Offset())
	}

	m = update(t, m, tea.KeyMsg{Type: tea.KeySpace}, tickMsg{}, tickMsg{})
	if m.Offset() != 0.5 {
		t.Errorf("expected offset 0.5 after two ticks, got %v", m.Offset())
	}
	if !m.player.Playing() {
		t.Error("expected player to be playing")
	}
}

func TestEnter_SeeksToSentenceAndKeepsPlaying(t *testing.T) {
	m := newTestModel(t)
	m = update(t, m, tea.KeyMsg{Type: tea.KeySpace}, runes("j"), runes("j"), tea.KeyMsg{Type: tea.KeyEnter})

	if m.Offset() != 60 {
		t.Fatalf("expected offset 60, got %v", m.Offset())
	}
	if !m.player.Playing() {
		t.Error("expected playback to continue after a sentence jump")
	}
	active := m.tracker.Current()
	if active.Parent != 1 || active.Child != 1 {
		t.Errorf("expected interval 1 sentence 1 active, got %+v", active)
	}
	if m.location.query.Get("t") != "60" {
		t.Errorf("expected t=60 in location, got %q", m.location.String())
	}

	m = update(t, m, tickMsg{})
	if m.Offset() != 60.25 {
		t.Errorf("expected playback to continue from the jump, got %v", m.Offset())
	}
}

func TestCursorStaysInBounds(t *testing.T) {
	m := newTestModel(t)
	m = update(t, m, runes("k"))
	if m.cursor != 0 {
		t.Errorf("expected cursor 0, got %d", m.cursor)
	}
	m = update(t, m, runes("j"), runes("j"), runes("j"), runes("j"), runes("j"))
	if m.cursor != 3 {
		t.Errorf("expected cursor 3, got %d", m.cursor)
	}
}

func TestNextEvent_SeeksAndPauses(t *testing.T) {
	m := newTestModel(t)
	m = update(t, m, tea.KeyMsg{Type: tea.KeySpace}, runes("e"))

	if m.Offset() != 10 {
		t.Fatalf("expected offset 10, got %v", m.Offset())
	}
	if m.player.Playing() {
		t.Error("expected player paused on event")
	}
	if !strings.Contains(m.status, "Speaking too fast") {
		t.Errorf("expected event message in status, got %q", m.status)
	}
	if active := m.activeEvents(); len(active) != 1 || active[0] != 0 {
		t.Errorf("expected first event active, got %v", active)
	}

	m = update(t, m, runes("e"))
	if m.Offset() != 65 {
		t.Errorf("expected offset 65, got %v", m.Offset())
	}
	m = update(t, m, runes("e"))
	if m.status != "no more events" || m.Offset() != 65 {
		t.Errorf("expected to stay on last event, got %v %q", m.Offset(), m.status)
	}
}

func TestNote_LinksTimestamp(t *testing.T) {
	m := newTestModel(t)
	m = update(t, m, runes("e"), runes("n"), runes("rushed"), tea.KeyMsg{Type: tea.KeySpace}, runes("intro"))

	if m.mode != ModeNote || m.input != "rushed intro" {
		t.Fatalf("expected note input, got mode %d input %q", m.mode, m.input)
	}

	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	if m.mode != ModeBrowse {
		t.Errorf("expected browse mode after submit, got %d", m.mode)
	}
	expected := "[0:10](placeholder://new?t=10) rushed intro"
	if m.Notes() != expected {
		t.Errorf("expected %q, got %q", expected, m.Notes())
	}
}

func TestNote_LinksPastHundredMinutes(t *testing.T) {
	doc := testDocument()
	doc.Duration = "2:00:00"
	doc.Events.Intervals = []segment.Event{
		{ID: 7, Start: "1:41:40", End: "1:42:00", Annotations: segment.Annotation{FeedbackFired: true, FeedbackMessage: "Long pause"}},
	}
	m := New(doc, Options{Clock: clockwork.NewFakeClock()})

	m = update(t, m, runes("e"), runes("n"), runes("late"), tea.KeyMsg{Type: tea.KeyEnter})

	expected := "[101:40](placeholder://new?t=6100) late"
	if m.Notes() != expected {
		t.Errorf("expected %q, got %q", expected, m.Notes())
	}
}

func TestNote_EmptyStaysOpen(t *testing.T) {
	m := newTestModel(t)
	m = update(t, m, runes("n"), tea.KeyMsg{Type: tea.KeyEnter})

	if m.mode != ModeNote {
		t.Errorf("expected note input to stay open, got %d", m.mode)
	}
	if m.Notes() != "" {
		t.Errorf("expected no notes, got %q", m.Notes())
	}
}

func TestAnnotate_QuotesSelectedSentence(t *testing.T) {
	m := newTestModel(t)
	m = update(t, m, runes("j"), runes("a"))

	if m.mode != ModeAnnotate {
		t.Fatalf("expected annotate mode, got %d (%s)", m.mode, m.status)
	}

	m = update(t, m, runes("more"), tea.KeyMsg{Type: tea.KeySpace}, runes("dataa"), tea.KeyMsg{Type: tea.KeyBackspace}, tea.KeyMsg{Type: tea.KeyEnter})

	expected := `"Results." — more data`
	if m.Notes() != expected {
		t.Errorf("expected %q, got %q", expected, m.Notes())
	}
	if m.mode != ModeBrowse {
		t.Errorf("expected browse mode, got %d", m.mode)
	}
}

func TestAnnotate_EscDiscards(t *testing.T) {
	m := newTestModel(t)
	m = update(t, m, runes("a"), runes("never mind"), tea.KeyMsg{Type: tea.KeyEsc})

	if m.mode != ModeBrowse || m.Notes() != "" {
		t.Errorf("expected discarded comment, got mode %d notes %q", m.mode, m.Notes())
	}
	if _, ok := m.flow.Anchor(); ok {
		t.Error("expected anchor cleared")
	}
}

func TestQuit(t *testing.T) {
	m := newTestModel(t)
	_, cmd := m.Update(runes("q"))
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
}

func TestQuitKeyIsTextWhileTyping(t *testing.T) {
	m := newTestModel(t)
	m = update(t, m, runes("n"), runes("q"))
	if m.input != "q" {
		t.Errorf("expected q typed into the note, got %q", m.input)
	}
}

func TestView_RendersState(t *testing.T) {
	m := newTestModel(t)
	m = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 40}, runes("e"))

	view := m.View()
	for _, want := range []string{"Thesis defense", "0:10 / 2:00", "Speaking too fast", "NOT_VALIDATED", "/presentations/p-1/feedbacks/new?t=10"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected view to contain %q", want)
		}
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presentation.json")
	data := `{"id":"p-9","title":"Demo","duration":"1:00","transcript":{"Intervals":[{"start":"0:00","end":"0:10","text":"Hi."}]},"events":{"Intervals":[]}}`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	doc, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.ID != "p-9" || doc.DurationSeconds() != 60 || len(doc.Transcript.Intervals) != 1 {
		t.Errorf("unexpected document %+v", doc)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
