package main

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/pairing/internal/ui"
)

// helpRule styles every match of re in cobra's plain help text.
type helpRule struct {
	re    *regexp.Regexp
	style func(groups []string) string
}

var helpRules = []helpRule{
	// Group headers such as "Pairing:" and "Flags:".
	{
		re:    regexp.MustCompile(`(?m)^([A-Z][^\n]*:)[ \t]*$`),
		style: func(g []string) string { return ui.RenderAccent(g[1]) },
	},
	// Command names in the command listing.
	{
		re:    regexp.MustCompile(`(?m)^(  )(\S+)(  )`),
		style: func(g []string) string { return g[1] + ui.RenderCommand(g[2]) + g[3] },
	},
	// Flag value types, e.g. "--client string" or "--lease duration".
	{
		re:    regexp.MustCompile(`(--?\S+\s+)(string|int|duration|stringSlice)\b`),
		style: func(g []string) string { return g[1] + ui.RenderMuted(g[2]) },
	},
	{
		re:    regexp.MustCompile(`\(default [^)]*\)`),
		style: func(g []string) string { return ui.RenderMuted(g[0]) },
	},
}

// colorizedHelpFunc renders cobra's usage text and styles it when stdout
// is a color terminal.
func colorizedHelpFunc() func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, _ []string) {
		out := cmd.OutOrStdout()
		if !ui.ShouldUseColor() {
			_ = cmd.Usage()
			return
		}

		var buf bytes.Buffer
		cmd.SetOut(&buf)
		_ = cmd.Usage()
		cmd.SetOut(out)

		fmt.Fprint(out, colorizeHelpOutput(buf.String()))
	}
}

func colorizeHelpOutput(s string) string {
	for _, r := range helpRules {
		s = r.re.ReplaceAllStringFunc(s, func(match string) string {
			groups := r.re.FindStringSubmatch(match)
			if groups == nil {
				return match
			}
			return r.style(groups)
		})
	}
	return strings.TrimRight(s, "\n") + "\n"
}
