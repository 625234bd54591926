package ui

import (
	"fmt"

	"github.com/alfredjeanlab/pairing/internal/model"
)

// ANSI256 color codes.
const (
	colorAccent  = 74  // blue
	colorCmd     = 250 // light gray
	colorMuted   = 245 // medium gray
	colorPending = 179 // amber
	colorClaimed = 114 // green
	colorError   = 167 // red
)

var noColor bool

func render(code int, s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderAccent returns s in the accent (blue) color.
func RenderAccent(s string) string { return render(colorAccent, s) }

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string { return render(colorMuted, s) }

// RenderCommand returns s styled as a command name (light gray).
func RenderCommand(s string) string { return render(colorCmd, s) }

// RenderError returns s in red.
func RenderError(s string) string { return render(colorError, s) }

// RenderStatus colors a request status: amber while waiting for an agent,
// blue while leased, green once claimed.
func RenderStatus(s model.Status) string {
	switch s {
	case model.StatusPending:
		return render(colorPending, string(s))
	case model.StatusPolled:
		return render(colorAccent, string(s))
	case model.StatusClaimed:
		return render(colorClaimed, string(s))
	}
	return string(s)
}

// RenderEvent colors an audit event kind like the status it leads to.
func RenderEvent(k model.EventKind) string {
	switch k {
	case model.EventRequestInit:
		return render(colorPending, string(k))
	case model.EventRequestPolled:
		return render(colorAccent, string(k))
	case model.EventRequestClaimed:
		return render(colorClaimed, string(k))
	}
	return string(k)
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}
