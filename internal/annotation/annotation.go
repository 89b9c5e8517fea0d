// Package annotation turns a text selection made while authoring new feedback
// into a quoted comment appended to the open editor.
package annotation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"
)

type State int

const (
	Idle State = iota
	Selecting
	AnchorShown
	Composing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Selecting:
		return "selecting"
	case AnchorShown:
		return "anchor-shown"
	case Composing:
		return "composing"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

var (
	ErrNoAnchor      = errors.New("no selection anchor")
	ErrNotComposing  = errors.New("no comment is being composed")
	ErrEmptyComment  = errors.New("comment cannot be empty")
	ErrSelectionLost = errors.New("selection lost")
	ErrNoEditor      = errors.New("no editor open")
)

// Editor is the rich-text editor the composed comment is appended to.
type Editor interface {
	SerializedContent() string
	InsertAtEnd(fragment string) error
	Focused() bool
}

type Rect struct {
	Top    float64
	Left   float64
	Width  float64
	Height float64
}

type Position struct {
	Top  float64 `json:"top"`
	Left float64 `json:"left"`
}

// Selection describes a finished pointer selection. Container is the nearest
// enclosing segment container, nil when the selection is outside one.
type Selection struct {
	Text      string
	Bounds    Rect
	Container *Rect
}

// Anchor is the ephemeral handle shown next to a selection.
type Anchor struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	Position Position `json:"position"`
}

var authoringPath = regexp.MustCompile(`/feedbacks?/new/?$`)

// IsAuthoringPath reports whether path is a "create new feedback" view.
func IsAuthoringPath(path string) bool {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	return authoringPath.MatchString(path)
}

// Compose renders the fragment appended to the editor.
func Compose(selected, commentary string) string {
	return `"` + strings.TrimSpace(selected) + `" — ` + strings.TrimSpace(commentary)
}

// Flow is the selection state machine for one authoring view.
type Flow struct {
	editor Editor
	path   func() string

	mu     sync.Mutex
	state  State
	anchor *Anchor
}

// NewFlow creates a flow that appends to editor. path reports the current
// navigation path and gates the whole flow.
func NewFlow(editor Editor, path func() string) *Flow {
	return &Flow{editor: editor, path: path}
}

func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Anchor returns the anchor currently shown, if any.
func (f *Flow) Anchor() (Anchor, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.anchor == nil {
		return Anchor{}, false
	}
	return *f.anchor, true
}

func (f *Flow) enabled() bool {
	return f.path != nil && IsAuthoringPath(f.path())
}

func (f *Flow) reset() {
	f.state = Idle
	f.anchor = nil
}

// PointerDown starts a selection. An anchor already shown is discarded.
func (f *Flow) PointerDown() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == Composing || !f.enabled() {
		return
	}
	f.anchor = nil
	f.state = Selecting
}

// PointerUp finishes a selection and shows an anchor for it when the
// selection is non-empty and inside a segment container. Selections made
// while the editor has focus belong to the editor and are ignored.
func (f *Flow) PointerUp(sel Selection) (Anchor, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == Composing {
		return Anchor{}, false
	}
	text := strings.TrimSpace(sel.Text)
	if !f.enabled() || text == "" || sel.Container == nil || (f.editor != nil && f.editor.Focused()) {
		f.reset()
		return Anchor{}, false
	}

	f.anchor = &Anchor{
		ID:   uuid.NewString(),
		Text: text,
		Position: Position{
			Top:  sel.Bounds.Top - sel.Container.Top,
			Left: sel.Bounds.Left - sel.Container.Left + sel.Bounds.Width/2,
		},
	}
	f.state = AnchorShown
	return *f.anchor, true
}

// ClickAway dismisses a shown anchor.
func (f *Flow) ClickAway() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == Composing {
		return
	}
	f.reset()
}

// OpenComposer moves from a shown anchor to composing a comment on it.
func (f *Flow) OpenComposer() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != AnchorShown || f.anchor == nil {
		return ErrNoAnchor
	}
	f.state = Composing
	return nil
}

// Submit appends the quoted selection and commentary to the editor. Blank
// commentary is rejected and composing continues. A failed insert also keeps
// the composer open so the user can retry.
func (f *Flow) Submit(commentary string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != Composing {
		return "", ErrNotComposing
	}
	if strings.TrimSpace(commentary) == "" {
		return "", ErrEmptyComment
	}
	if f.anchor == nil {
		f.reset()
		return "", ErrSelectionLost
	}
	if f.editor == nil {
		return "", ErrNoEditor
	}

	fragment := Compose(f.anchor.Text, commentary)
	if err := f.editor.InsertAtEnd(fragment); err != nil {
		return "", fmt.Errorf("insert comment: %w", err)
	}
	f.reset()
	return fragment, nil
}

// Cancel closes the composer without touching the editor.
func (f *Flow) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reset()
}

// SelectionLost handles a collapsed selection or a vanished container. It
// behaves as an implicit cancel from any state.
func (f *Flow) SelectionLost() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reset()
}
