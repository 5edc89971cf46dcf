package flow

import (
	"html"
	"html/template"
	"strings"
)

// State is the state of the display region.
type State int

const (
	StateIdle State = iota
	StateAwaitingResponse
	StateSuccess
	StateError
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingResponse:
		return "awaiting_response"
	case StateSuccess:
		return "success"
	case StateError:
		return "error"
	case StateRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Category is the visual class a surface uses to style the display text.
type Category string

const (
	CategoryNone    Category = ""
	CategoryNote    Category = "note"
	CategoryLoading Category = "loading"
	CategorySuccess Category = "success"
	CategoryError   Category = "error"
	CategoryAlert   Category = "alert"
)

// Display is what the display region currently shows.
type Display struct {
	State    State
	Category Category
	Text     string
}

// Empty reports whether the region shows nothing.
func (d Display) Empty() bool {
	return d.Category == CategoryNone && d.Text == ""
}

// Lines splits the text into visual lines.
func (d Display) Lines() []string {
	if d.Text == "" {
		return nil
	}
	return strings.Split(strings.ReplaceAll(d.Text, "\r\n", "\n"), "\n")
}

// HTML escapes each line and joins them with <br>.
func (d Display) HTML() template.HTML {
	lines := d.Lines()
	for i, l := range lines {
		lines[i] = html.EscapeString(l)
	}
	return template.HTML(strings.Join(lines, "<br>")) //nolint:gosec // every line is escaped above
}
