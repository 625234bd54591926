package main

import (
	"strings"
	"testing"
)

func TestColorizeHelpOutput(t *testing.T) {
	in := `Usage:
  pairctl <command>

Pairing:
  claim       Finalize a leased request
  poll        Lease the oldest pending request of a client

Flags:
      --lease duration   lease duration (default 30s)
      --json             output as JSON
`
	out := colorizeHelpOutput(in)

	for _, tc := range []struct {
		name string
		want string
	}{
		{"header", "\x1b[38;5;74mPairing:\x1b[0m"},
		{"command", "  \x1b[38;5;250mclaim\x1b[0m  "},
		{"flag type", "--lease \x1b[38;5;245mduration\x1b[0m"},
		{"default", "\x1b[38;5;245m(default 30s)\x1b[0m"},
	} {
		if !strings.Contains(out, tc.want) {
			t.Errorf("%s: %q not found in\n%s", tc.name, tc.want, out)
		}
	}
	if !strings.Contains(out, "\x1b[38;5;74mUsage:") {
		t.Errorf("Usage header not styled:\n%s", out)
	}
}

func TestColorizeHelpOutput_PlainTextUnchanged(t *testing.T) {
	in := "just a sentence with no structure\n"
	if got := colorizeHelpOutput(in); got != in {
		t.Errorf("got %q, want %q", got, in)
	}
}
