package review

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jonboulle/clockwork"
	"github.com/presentable/presentable/internal/anchor"
	"github.com/presentable/presentable/internal/annotation"
	"github.com/presentable/presentable/internal/playback"
	"github.com/presentable/presentable/internal/segment"
	"github.com/presentable/presentable/internal/timestamp"
)

const DefaultTickInterval = 250 * time.Millisecond

// Mode tracks what keystrokes are routed to.
type Mode int

const (
	ModeBrowse Mode = iota
	ModeNote
	ModeAnnotate
)

type tickMsg time.Time

type Options struct {
	Clock        clockwork.Clock
	Role         segment.Role
	TickInterval time.Duration
}

// row is one selectable transcript line. child is -1 for intervals without
// sentences.
type row struct {
	parent int
	child  int
	start  string
	text   string
}

// location holds the reviewer's shareable position the way a browser URL
// would.
type location struct {
	path  string
	query url.Values
}

func (l *location) Path() string { return l.path }

func (l *location) Query() url.Values {
	q := url.Values{}
	for k, v := range l.query {
		q[k] = append([]string(nil), v...)
	}
	return q
}

func (l *location) Push(path string, query url.Values) {
	l.path = path
	l.query = query
}

func (l *location) String() string {
	if len(l.query) == 0 {
		return l.path
	}
	return l.path + "?" + l.query.Encode()
}

// Model is the root bubbletea model of the reviewer.
type Model struct {
	doc        Document
	player     *Player
	controller *playback.Controller
	tracker    *segment.Tracker
	location   *location
	draft      *annotation.Draft
	scanner    anchor.Scanner
	flow       *annotation.Flow

	rows        []row
	events      []segment.Event
	eventSpans  []segment.Span
	eventStarts []float64

	cursor int
	mode   Mode
	input  string
	status string
	tick   time.Duration
	width  int
	height int
}

func New(doc Document, opts Options) Model {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Role == "" {
		opts.Role = segment.RoleTeacher
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}

	player := NewPlayer(doc.DurationSeconds())
	loc := &location{path: "/presentations/" + doc.ID + "/feedbacks/new", query: url.Values{}}
	controller := playback.New(playback.Config{Video: player, Location: loc, Clock: opts.Clock})

	tracker, transcriptErrs := segment.NewTranscriptTracker(doc.Transcript)
	controller.Observe(tracker)

	events := segment.VisibleEvents(doc.Events.Intervals, opts.Role)
	spans, eventErrs := segment.EventSpans(events)
	starts := make([]float64, len(events))
	for i, e := range events {
		start, err := timestamp.ParseBound(e.Start)
		if err != nil {
			start = math.NaN()
		}
		starts[i] = start
	}

	scanner := anchor.Scanner{Syntax: anchor.Markdown}
	draft := annotation.NewDraft("")
	draft.OnBlur(scanner.Scan)

	m := Model{
		doc:         doc,
		player:      player,
		controller:  controller,
		tracker:     tracker,
		location:    loc,
		draft:       draft,
		scanner:     scanner,
		flow:        annotation.NewFlow(draft, loc.Path),
		rows:        transcriptRows(doc.Transcript),
		events:      events,
		eventSpans:  spans,
		eventStarts: starts,
		tick:        opts.TickInterval,
		width:       80,
	}
	if n := len(transcriptErrs) + len(eventErrs); n > 0 {
		m.status = fmt.Sprintf("%d segments have unreadable bounds and are never highlighted", n)
	}
	return m
}

func transcriptRows(t segment.Transcript) []row {
	var rows []row
	for i, interval := range t.Intervals {
		if len(interval.Sentences) == 0 {
			rows = append(rows, row{parent: i, child: -1, start: interval.Start, text: interval.Text})
			continue
		}
		for j, s := range interval.Sentences {
			rows = append(rows, row{parent: i, child: j, start: s.Start, text: s.Text})
		}
	}
	return rows
}

func tickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) Init() tea.Cmd {
	return tickCmd(m.tick)
}

// Notes returns the feedback written during the session, with timestamps
// linked.
func (m Model) Notes() string {
	return m.draft.SerializedContent()
}

// Offset returns the authoritative playback position.
func (m Model) Offset() float64 {
	return m.controller.Offset()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.player.Advance(m.tick)
		m.controller.ReportNativeTime(m.player.CurrentTime())
		return m, tickCmd(m.tick)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.mode != ModeBrowse {
			return m.handleInputKey(msg)
		}
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit

	case " ":
		m.player.Toggle()

	case "j", "down":
		if m.cursor < len(m.rows)-1 {
			m.cursor++
		}

	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
		}

	case "enter":
		if len(m.rows) == 0 {
			return m, nil
		}
		offset, err := m.controller.SeekToTimestamp(m.rows[m.cursor].start, playback.SeekOptions{})
		if err != nil {
			m.status = "cannot seek: " + err.Error()
			return m, nil
		}
		m.status = "jumped to " + timestamp.LinkText(offset)

	case "e":
		m.nextEvent()

	case "n":
		m.mode = ModeNote
		m.input = ""

	case "a":
		if len(m.rows) == 0 {
			return m, nil
		}
		m.flow.PointerDown()
		if _, ok := m.flow.PointerUp(annotation.Selection{
			Text:      m.rows[m.cursor].text,
			Container: &annotation.Rect{},
		}); !ok {
			m.status = "nothing to annotate"
			return m, nil
		}
		if err := m.flow.OpenComposer(); err != nil {
			m.status = err.Error()
			return m, nil
		}
		m.mode = ModeAnnotate
		m.input = ""
	}
	return m, nil
}

func (m Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.flow.Cancel()
		m.mode = ModeBrowse
		m.input = ""
		m.status = "discarded"
	case tea.KeyEnter:
		m.submit()
	case tea.KeyBackspace:
		if r := []rune(m.input); len(r) > 0 {
			m.input = string(r[:len(r)-1])
		}
	case tea.KeySpace:
		m.input += " "
	case tea.KeyRunes:
		m.input += string(msg.Runes)
	}
	return m, nil
}

func (m *Model) submit() {
	switch m.mode {
	case ModeNote:
		text := strings.TrimSpace(m.input)
		if text == "" {
			m.status = "note cannot be empty"
			return
		}
		if err := m.draft.InsertAtEnd(m.scanner.Link(m.controller.Offset()) + " " + text); err != nil {
			m.status = err.Error()
			return
		}
	case ModeAnnotate:
		if _, err := m.flow.Submit(m.input); err != nil {
			m.status = err.Error()
			if errors.Is(err, annotation.ErrEmptyComment) {
				return
			}
			m.flow.Cancel()
			m.mode = ModeBrowse
			return
		}
	}

	m.draft.Focus()
	m.draft.Blur()
	m.mode = ModeBrowse
	m.input = ""
	m.status = "note added"
}

// nextEvent pauses on the first event starting after the current position.
func (m *Model) nextEvent() {
	offset := m.controller.Offset()
	next := -1
	for i, start := range m.eventStarts {
		if math.IsNaN(start) || start <= offset {
			continue
		}
		if next < 0 || start < m.eventStarts[next] {
			next = i
		}
	}
	if next < 0 {
		m.status = "no more events"
		return
	}
	m.controller.SeekTo(m.eventStarts[next], playback.SeekOptions{PauseAfter: true})
	e := m.events[next]
	m.status = fmt.Sprintf("event %d: %s", e.ID, e.Annotations.FeedbackMessage)
}

// activeEvents returns indices into m.events active at the current offset.
func (m Model) activeEvents() []int {
	return segment.ActiveIndices(m.controller.Offset(), m.eventSpans)
}
