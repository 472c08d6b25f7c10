// File: internal/ui/console.go
// Brief: Colored console sections and service summaries.

package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
)

var (
	headerColor  = color.New(color.FgBlue, color.Bold)
	successColor = color.New(color.FgGreen, color.Bold)
	serviceColor = color.New(color.FgCyan, color.Bold)
	warnColor    = color.New(color.FgYellow, color.Bold)
	faintColor   = color.New(color.FgHiBlack)
)

// NoDescription is shown for services without a description.
const NoDescription = "no description"

// Section prints a banner line such as "=== Container status ===".
func Section(w io.Writer, title string) {
	fmt.Fprintln(w)
	headerColor.Fprintf(w, "=== %s ===\n", title)
}

// Success prints a highlighted completion line.
func Success(w io.Writer, msg string) {
	successColor.Fprintln(w, msg)
}

// Warn prints a highlighted advisory line followed by indented items.
func Warn(w io.Writer, msg string, items ...string) {
	warnColor.Fprintln(w, msg)
	for _, item := range items {
		fmt.Fprintf(w, "  - %s\n", item)
	}
}

// ServiceSummary prints a service name with its description and ports.
func ServiceSummary(w io.Writer, name, description string, ports []string) {
	if strings.TrimSpace(description) == "" {
		description = NoDescription
	}
	fmt.Fprintf(w, "%s: %s\n", serviceColor.Sprint(name), description)
	if len(ports) > 0 {
		fmt.Fprintf(w, "  ports: %s\n", strings.Join(ports, ", "))
	}
}

// MenuItem is one service row in the selection menu.
type MenuItem struct {
	Name        string
	Description string
	Ports       []string
	Deps        []string
}

// FormatMenu renders menu rows with the names padded to a common display
// width.
func FormatMenu(items []MenuItem) []string {
	width := 15
	for _, it := range items {
		if w := runewidth.StringWidth(it.Name); w > width {
			width = w
		}
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		desc := it.Description
		if strings.TrimSpace(desc) == "" {
			desc = NoDescription
		}
		line := runewidth.FillRight(it.Name, width) + " - " + desc
		if len(it.Ports) > 0 {
			line += " (ports: " + strings.Join(it.Ports, ", ") + ")"
		}
		if len(it.Deps) > 0 {
			line += faintColor.Sprint(" [deps: " + strings.Join(it.Deps, ", ") + "]")
		}
		out = append(out, line)
	}
	return out
}
