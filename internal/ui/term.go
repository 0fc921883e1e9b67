// File: internal/ui/term.go
// Brief: Terminal detection helpers for prompts and status output.

package ui

import (
	"io"

	"golang.org/x/term"
)

type fdProvider interface {
	Fd() uintptr
}

func TerminalWidth(w io.Writer) (int, bool) {
	if v, ok := w.(fdProvider); ok {
		if cols, _, err := term.GetSize(int(v.Fd())); err == nil {
			return cols, true
		}
	}
	return 0, false
}

func IsTerminalReader(r io.Reader) bool {
	v, ok := r.(fdProvider)
	return ok && term.IsTerminal(int(v.Fd()))
}

func IsTerminalWriter(w io.Writer) bool {
	v, ok := w.(fdProvider)
	return ok && term.IsTerminal(int(v.Fd()))
}
