package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/presentable/presentable/internal/review"
	"github.com/presentable/presentable/internal/segment"
)

func main() {
	file := flag.String("file", "", "presentation JSON file with transcript and events")
	duration := flag.String("duration", "", "video duration, overrides the file (e.g. 12:30 or 750)")
	role := flag.String("role", string(segment.RoleTeacher), "reviewing role: TEACHER, ADMIN or STUDENT")
	out := flag.String("out", "", "write notes taken during the session to this file")
	flag.Parse()

	if *file == "" {
		fmt.Fprintln(os.Stderr, "usage: presentable-review -file presentation.json [-duration 12:30] [-out notes.md]")
		os.Exit(2)
	}

	doc, err := review.Load(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *duration != "" {
		doc.Duration = *duration
	}

	m := review.New(doc, review.Options{Role: segment.Role(strings.ToUpper(*role))})
	final, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	notes := final.(review.Model).Notes()
	if notes == "" {
		return
	}
	if *out == "" {
		fmt.Println(notes)
		return
	}
	if err := os.WriteFile(*out, []byte(notes+"\n"), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
