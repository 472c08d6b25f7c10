package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"
)

func TestParseYesNo(t *testing.T) {
	cases := []struct {
		reply      string
		defaultYes bool
		want       bool
	}{
		{"", true, true},
		{"  ", false, false},
		{"y", false, true},
		{"YES", false, true},
		{"sim", false, true},
		{"n", true, false},
		{"maybe", true, false},
	}
	for _, tc := range cases {
		if got := ParseYesNo(tc.reply, tc.defaultYes); got != tc.want {
			t.Fatalf("ParseYesNo(%q, %v) = %v, want %v", tc.reply, tc.defaultYes, got, tc.want)
		}
	}
}

func TestFormatMenuAlignsNames(t *testing.T) {
	color.NoColor = true
	lines := FormatMenu([]MenuItem{
		{Name: "web", Description: "Frontend", Ports: []string{"80:80"}},
		{Name: "api", Deps: []string{"web"}},
	})
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0] != "web             - Frontend (ports: 80:80)" {
		t.Fatalf("unexpected first line %q", lines[0])
	}
	if !strings.Contains(lines[1], NoDescription) || !strings.HasSuffix(lines[1], "[deps: web]") {
		t.Fatalf("unexpected second line %q", lines[1])
	}
}

func TestServiceSummaryFallsBackToNoDescription(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	ServiceSummary(&buf, "cache", " ", []string{"6379:6379"})
	want := "cache: no description\n  ports: 6379:6379\n"
	if buf.String() != want {
		t.Fatalf("got %q, want %q", buf.String(), want)
	}
}

func TestPrintTable(t *testing.T) {
	var buf bytes.Buffer
	PrintTable(&buf, []string{"service", "state"}, [][]string{{"web", "running"}})
	out := buf.String()
	if !strings.Contains(out, "SERVICE") || !strings.Contains(out, "running") {
		t.Fatalf("unexpected table output:\n%s", out)
	}
}
