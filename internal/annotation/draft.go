package annotation

import (
	"strings"
	"sync"
)

var _ Editor = (*Draft)(nil)

// Draft is an in-memory Editor holding markdown feedback being written.
type Draft struct {
	mu      sync.Mutex
	content string
	focused bool
	onBlur  []func(content string) string
}

func NewDraft(content string) *Draft {
	return &Draft{content: content}
}

func (d *Draft) SerializedContent() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.content
}

// InsertAtEnd appends fragment as a new paragraph.
func (d *Draft) InsertAtEnd(fragment string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if strings.TrimSpace(d.content) == "" {
		d.content = fragment
		return nil
	}
	d.content = strings.TrimRight(d.content, "\n") + "\n\n" + fragment
	return nil
}

func (d *Draft) SetContent(content string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.content = content
}

// OnBlur registers a rewrite applied to the content whenever the draft loses
// focus, such as linking timestamps.
func (d *Draft) OnBlur(fn func(content string) string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onBlur = append(d.onBlur, fn)
}

func (d *Draft) Focus() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.focused = true
}

func (d *Draft) Focused() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.focused
}

func (d *Draft) Blur() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.focused {
		return
	}
	d.focused = false
	for _, fn := range d.onBlur {
		d.content = fn(d.content)
	}
}
