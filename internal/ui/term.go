// File: internal/ui/term.go
// Brief: Terminal detection helpers.

package ui

import "golang.org/x/term"

type fdProvider interface {
	Fd() uintptr
}

// IsTerminal reports whether v is attached to a terminal.
func IsTerminal(v any) bool {
	f, ok := v.(fdProvider)
	return ok && term.IsTerminal(int(f.Fd()))
}
