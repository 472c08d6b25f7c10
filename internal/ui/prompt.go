// File: internal/ui/prompt.go
// Brief: promptui-backed list selection and yes/no confirmation.

package ui

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/manifoldco/promptui"
)

// ErrAborted is returned when the user interrupts a prompt.
var ErrAborted = errors.New("aborted by user")

// PromptUI implements interactive selection on a terminal.
type PromptUI struct {
	Stdin  io.ReadCloser
	Stdout io.WriteCloser
	// Size is the number of visible rows; zero shows everything up to 20.
	Size int
}

func (p PromptUI) Select(label string, items []string) (int, error) {
	size := p.Size
	if size == 0 {
		size = len(items)
		if size > 20 {
			size = 20
		}
	}
	prompt := promptui.Select{
		Label: label,
		Items: items,
		Size:  size,
		Templates: &promptui.SelectTemplates{
			Label:    "{{ . }}",
			Active:   "> {{ . | cyan }}",
			Inactive: "  {{ . }}",
			Selected: "* {{ . | green }}",
		},
		Stdin:  p.Stdin,
		Stdout: p.Stdout,
	}
	i, _, err := prompt.Run()
	if err != nil {
		return -1, wrapError(err)
	}
	return i, nil
}

func (p PromptUI) Confirm(label string, defaultYes bool) (bool, error) {
	hint := "y/N"
	if defaultYes {
		hint = "Y/n"
	}
	prompt := promptui.Prompt{
		Label:  fmt.Sprintf("%s [%s]", label, hint),
		Stdin:  p.Stdin,
		Stdout: p.Stdout,
	}
	result, err := prompt.Run()
	if err != nil {
		return false, wrapError(err)
	}
	return ParseYesNo(result, defaultYes), nil
}

// ParseYesNo interprets a confirmation reply; blank means the default.
func ParseYesNo(reply string, defaultYes bool) bool {
	switch strings.ToLower(strings.TrimSpace(reply)) {
	case "":
		return defaultYes
	case "y", "yes", "s", "sim":
		return true
	default:
		return false
	}
}

func wrapError(err error) error {
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
		return ErrAborted
	}
	return err
}
