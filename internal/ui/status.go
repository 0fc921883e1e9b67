package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	skipColor = color.New(color.FgYellow)
	failColor = color.New(color.FgRed, color.Bold)
)

// StatusLine prints "<label> <subject> <detail>" with the label colored by
// state. Colors are dropped when w is not a terminal.
func StatusLine(w io.Writer, state, subject, detail string) {
	label := fmt.Sprintf("%-8s", strings.ToUpper(state))
	if IsTerminalWriter(w) && !color.NoColor {
		switch state {
		case "applied", "done", "restarted":
			label = okColor.Sprint(label)
		case "noop", "skipped":
			label = skipColor.Sprint(label)
		case "failed":
			label = failColor.Sprint(label)
		}
	}
	line := label + " " + subject
	if detail != "" {
		line += "  " + detail
	}
	fmt.Fprintln(w, line)
}
