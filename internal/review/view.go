package review

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/presentable/presentable/internal/segment"
	"github.com/presentable/presentable/internal/timestamp"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	activeStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("11"))
	cursorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	markerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	panelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("8")).Padding(0, 1)

	validationStyles = map[segment.ValidationState]lipgloss.Style{
		segment.Validated:   lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		segment.Invalidated: lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Strikethrough(true),
		segment.ToReview:    lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
	}
)

func (m Model) View() string {
	var b strings.Builder

	state := "paused"
	if m.player.Playing() {
		state = "playing"
	}
	duration := "?"
	if d := m.player.Duration(); timestamp.KnownDuration(d) {
		duration = timestamp.LinkText(d)
	}
	b.WriteString(titleStyle.Render(m.doc.Title))
	fmt.Fprintf(&b, "  %s %s / %s\n", state, timestamp.LinkText(m.controller.Offset()), duration)
	b.WriteString(m.renderTimeline())
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(m.location.String()))
	b.WriteString("\n\n")

	b.WriteString(m.renderTranscript())
	b.WriteString("\n")
	b.WriteString(m.renderEvents())

	if m.mode != ModeBrowse {
		b.WriteString("\n")
		b.WriteString(m.renderInput())
	}
	if notes := m.Notes(); notes != "" {
		b.WriteString("\n")
		b.WriteString(panelStyle.Render(notes))
	}

	b.WriteString("\n")
	if m.status != "" {
		b.WriteString(m.status)
		b.WriteString("\n")
	}
	b.WriteString(dimStyle.Render("space play/pause  j/k move  enter jump  e next event  n note  a annotate  q quit"))
	return b.String()
}

func (m Model) timelineWidth() int {
	return max(10, min(m.width-4, 60))
}

func (m Model) renderTimeline() string {
	width := m.timelineWidth()
	bar := []rune(strings.Repeat("─", width))
	marked := make([]bool, width)

	duration := m.player.Duration()
	for _, marker := range segment.Markers(m.events, duration) {
		i := min(int(marker.Position/100*float64(width-1)), width-1)
		bar[i] = '┃'
		marked[i] = true
	}
	head := -1
	if pos, ok := segment.MarkerPosition(m.controller.Offset(), duration); ok {
		head = min(int(pos/100*float64(width-1)), width-1)
	}

	var b strings.Builder
	for i, r := range bar {
		switch {
		case i == head:
			b.WriteString(cursorStyle.Render("●"))
		case marked[i]:
			b.WriteString(markerStyle.Render(string(r)))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (m Model) isActive(r row, active segment.Active) bool {
	if r.child < 0 {
		return slices.Contains(active.Segments, r.parent)
	}
	return r.parent == active.Parent && r.child == active.Child
}

func (m Model) renderTranscript() string {
	if len(m.rows) == 0 {
		return dimStyle.Render("no transcript") + "\n"
	}
	active := m.tracker.Current()

	var b strings.Builder
	for i, r := range m.rows {
		prefix := "  "
		if i == m.cursor {
			prefix = cursorStyle.Render("> ")
		}
		line := fmt.Sprintf("[%s] %s", r.start, r.text)
		if m.isActive(r, active) {
			line = activeStyle.Render(line)
		}
		b.WriteString(prefix + line + "\n")
	}
	return b.String()
}

func (m Model) renderEvents() string {
	if len(m.events) == 0 {
		return dimStyle.Render("no events") + "\n"
	}
	active := m.activeEvents()

	var b strings.Builder
	for i, e := range m.events {
		state := e.Annotations.ExpertValidation
		if state == "" {
			state = segment.NotValidated
		}
		badge := dimStyle.Render(string(state))
		if style, ok := validationStyles[state]; ok {
			badge = style.Render(string(state))
		}
		line := fmt.Sprintf("%s-%s %s", e.Start, e.End, e.Annotations.FeedbackMessage)
		if slices.Contains(active, i) {
			line = activeStyle.Render(line)
		}
		fmt.Fprintf(&b, "  %s %s\n", line, badge)
	}
	return b.String()
}

func (m Model) renderInput() string {
	label := "note at " + timestamp.LinkText(m.controller.Offset())
	if m.mode == ModeAnnotate {
		if a, ok := m.flow.Anchor(); ok {
			label = fmt.Sprintf("comment on %q", a.Text)
		}
	}
	return cursorStyle.Render(label+": ") + m.input + "_"
}
