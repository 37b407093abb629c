package templates

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/JonMunkholm/applicants/internal/core"
	"github.com/JonMunkholm/applicants/internal/schema"
)

func TestIndex(t *testing.T) {
	var buf bytes.Buffer
	err := Index(IndexParams{
		Stats:   schema.Stats{Applicants: 42},
		History: []core.Summary{{Filename: "<script>.xlsx", Mode: core.ModeExtended, Applicants: 3}},
		Limiter: core.IngestLimiterStatus{MaxConcurrent: 1},
		Modes:   []core.Mode{core.ModeExtended, core.ModeSimple},
	}).Render(context.Background(), &buf)
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	out := buf.String()

	for _, want := range []string{`name="file"`, `<option value="simple">`, "<td>42</td>", "&lt;script&gt;.xlsx"} {
		if !strings.Contains(out, want) {
			t.Errorf("Index output missing %q", want)
		}
	}
	if strings.Contains(out, "<script>") {
		t.Error("Index output contains unescaped file name")
	}
}

func TestSummaryPage(t *testing.T) {
	var buf bytes.Buffer
	sum := core.Summary{
		Filename:   "rating.xlsx",
		Applicants: 7,
		Created:    map[schema.EntityKind]int{schema.KindDivision: 2},
		Warnings:   []core.Warning{{Code: core.WarnLevelMiss, Message: "no education level", Sheet: "Лист1", Row: 3}},
	}
	if err := SummaryPage(sum).Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"rating.xlsx", "<td>7</td>", "New divisions", "Лист1 row 4"} {
		if !strings.Contains(out, want) {
			t.Errorf("SummaryPage output missing %q", want)
		}
	}
}

func TestErrorAlert(t *testing.T) {
	tests := []struct {
		name    string
		message string
		action  string
		want    string
	}{
		{
			"without action",
			"Bad <file>", "",
			`<div class="error" role="alert"><strong>Bad &lt;file&gt;</strong> <code>ING001</code></div>`,
		},
		{
			"with action",
			"Bad file", "Save as .xlsx & retry",
			`<div class="error" role="alert"><strong>Bad file</strong> <span>Save as .xlsx &amp; retry</span><code>ING001</code></div>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := ErrorAlert(tt.message, tt.action, "ING001").Render(context.Background(), &buf); err != nil {
				t.Fatalf("Render() error: %v", err)
			}
			if buf.String() != tt.want {
				t.Errorf("ErrorAlert() = %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestIndex_PageLayout(t *testing.T) {
	var buf bytes.Buffer
	if err := Index(IndexParams{}).Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "<!doctype html><html lang=\"ru\">") || !strings.HasSuffix(out, "</body></html>") {
		t.Errorf("Index output is not a full page: %q", out)
	}
	for _, want := range []string{`accept=".xlsx,.xlsm,.xls"`, "No documents ingested yet."} {
		if !strings.Contains(out, want) {
			t.Errorf("Index output missing %q", want)
		}
	}
}

func TestCreatedCounts(t *testing.T) {
	got := createdCounts(map[schema.EntityKind]int{
		schema.KindEduProgram: 2,
		schema.KindDivision:   1,
		schema.KindFinancing:  0,
	})
	if len(got) != 2 || got[0].Label != schema.KindDivision.Table() || got[1].N != 2 {
		t.Errorf("createdCounts() = %+v, want divisions then programs", got)
	}
}
