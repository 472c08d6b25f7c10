// File: internal/verify/verify.go
// Brief: Build recipe and binary presence checks for discovered services.

package verify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/example/stackup/internal/graph"
	"github.com/example/stackup/internal/ui"
)

type OutputFormat string

const (
	OutputTable OutputFormat = "table"
	OutputJSON  OutputFormat = "json"
)

// Tally counts how many of the expected artifacts exist. Missing holds the
// full paths that were checked and not found, in discovery order.
type Tally struct {
	Found   int      `json:"found"`
	Total   int      `json:"total"`
	Missing []string `json:"missing,omitempty"`
}

func (t Tally) Complete() bool { return t.Found == t.Total }

type Report struct {
	Recipes  Tally `json:"recipes"`
	Binaries Tally `json:"binaries"`
}

// Verify checks the declared build recipe and binaries of every service
// against the files under sourceRoot/<service>/. It never fails; absent
// files are only counted.
func Verify(g *graph.Graph, sourceRoot string) Report {
	return verify(g, sourceRoot, os.Stat)
}

func verify(g *graph.Graph, sourceRoot string, stat func(string) (os.FileInfo, error)) Report {
	var rep Report
	if g == nil {
		return rep
	}
	check := func(t *Tally, service, rel string) {
		t.Total++
		path := filepath.Join(sourceRoot, service, rel)
		if _, err := stat(path); err == nil {
			t.Found++
			return
		}
		t.Missing = append(t.Missing, path)
	}
	for _, d := range g.Descriptors().All() {
		if strings.TrimSpace(d.Dockerfile) != "" {
			check(&rep.Recipes, d.Name, d.Dockerfile)
		}
		for _, bin := range d.Binaries {
			check(&rep.Binaries, d.Name, bin)
		}
	}
	return rep
}

func WriteReport(w io.Writer, rep Report, format OutputFormat) error {
	if w == nil {
		return nil
	}
	switch format {
	case "", OutputTable:
		return writeTable(w, rep)
	case OutputJSON:
		raw, err := json.MarshalIndent(rep, "", "  ")
		if err != nil {
			return err
		}
		_, _ = w.Write(append(raw, '\n'))
		return nil
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func writeTable(w io.Writer, rep Report) error {
	ui.PrintTable(w, []string{"check", "found", "total"}, [][]string{
		{"build recipes", fmt.Sprint(rep.Recipes.Found), fmt.Sprint(rep.Recipes.Total)},
		{"binaries", fmt.Sprint(rep.Binaries.Found), fmt.Sprint(rep.Binaries.Total)},
	})
	var b bytes.Buffer
	if len(rep.Recipes.Missing) > 0 {
		ui.Warn(&b, "Missing build recipes:", rep.Recipes.Missing...)
	}
	if len(rep.Binaries.Missing) > 0 {
		ui.Warn(&b, "Missing binaries:", rep.Binaries.Missing...)
	}
	_, _ = w.Write(b.Bytes())
	return nil
}
