package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/applicants/internal/core"
	"github.com/JonMunkholm/applicants/internal/schema"
)

// writeList saves a one-block university list with n applicants to dir.
func writeList(t *testing.T, dir, name string, n int) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	headers := []string{
		"Институт экономики и управления",
		"форма обучения: очная",
		"Договор",
		"бакалавриат по направлению «Экономика» Профиль: Финансы",
	}
	for i, h := range headers {
		first, _ := excelize.CoordinatesToCellName(1, i+1)
		last, _ := excelize.CoordinatesToCellName(13, i+1)
		f.SetCellValue("Sheet1", first, h)
		if err := f.MergeCell("Sheet1", first, last); err != nil {
			t.Fatal(err)
		}
	}
	rows := [][]any{{"№ п/п", "ФИО", "Оригинал", "Согласие", "Математика", "Обществознание", "Русский язык", "ИД"}}
	for i := 1; i <= n; i++ {
		rows = append(rows, []any{fmt.Sprint(i), fmt.Sprintf("Абитуриент %d", i), "Оригинал", "Да", "70", "80", "90"})
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, len(headers)+i+1)
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatal(err)
		}
	}

	path := filepath.Join(dir, name)
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommand_Subcommands(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"ingest", "serve", "stats"} {
		found := false
		for _, sub := range cmd.Commands() {
			if sub.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}

	for _, flag := range []string{"log-level", "log-format", "output"} {
		if cmd.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("persistent flag %q not registered", flag)
		}
	}
}

func TestRootCommand_InvalidOutput(t *testing.T) {
	t.Setenv("DB_DRIVER", "memory")
	_, err := execute(t, "stats", "-o", "yaml")
	if err == nil || !strings.Contains(err.Error(), "invalid output") {
		t.Errorf("error = %v, want invalid output", err)
	}
}

func TestRootCommand_InvalidConfig(t *testing.T) {
	t.Setenv("DB_DRIVER", "oracle")
	if _, err := execute(t, "stats"); err == nil {
		t.Error("expected config validation error")
	}
}

func TestIngest_DryRun(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", filepath.Join(dir, "untouched.db"))
	path := writeList(t, dir, "rating.xlsx", 3)

	out, err := execute(t, "ingest", "--dry-run", "-o", "json", path)
	if err != nil {
		t.Fatalf("ingest error: %v", err)
	}

	var sum core.Summary
	if err := json.Unmarshal([]byte(out), &sum); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if sum.Applicants != 3 || sum.Blocks != 1 || sum.Filename != "rating.xlsx" {
		t.Errorf("summary = %+v, want 3 applicants in 1 block", sum)
	}
	if got := sum.Created[schema.KindFinancing]; got != 1 {
		t.Errorf("created financing = %d, want 1", got)
	}
	if matches, _ := filepath.Glob(filepath.Join(dir, "*.db")); len(matches) != 0 {
		t.Errorf("dry run created %v", matches)
	}
}

func TestIngest_SQLiteThenStats(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", filepath.Join(dir, "applicants.db"))
	first := writeList(t, dir, "day1.xlsx", 2)
	second := writeList(t, dir, "day2.xlsx", 4)

	out, err := execute(t, "ingest", first, second)
	if err != nil {
		t.Fatalf("ingest error: %v", err)
	}
	for _, want := range []string{"day1.xlsx: 2 applicants in 1 blocks", "day2.xlsx: 4 applicants in 1 blocks"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}

	out, err = execute(t, "stats", "-o", "json")
	if err != nil {
		t.Fatalf("stats error: %v", err)
	}
	var stats schema.Stats
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	want := schema.Stats{Divisions: 1, EduForms: 1, Financings: 1, EduLevels: 1, EduPrograms: 1, Applicants: 6, SourceFiles: 2}
	if stats != want {
		t.Errorf("stats = %+v, want %+v", stats, want)
	}

	out, err = execute(t, "stats")
	if err != nil {
		t.Fatalf("stats error: %v", err)
	}
	if !strings.Contains(out, "applicants    6") {
		t.Errorf("text stats = %q", out)
	}
}

func TestIngest_PartialFailure(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DB_DRIVER", "memory")
	good := writeList(t, dir, "rating.xlsx", 1)

	out, err := execute(t, "ingest", "-o", "json", filepath.Join(dir, "notes.csv"), good)
	if code := GetExitCode(err); code != ExitFailure {
		t.Fatalf("exit code = %d (%v), want %d", code, err, ExitFailure)
	}

	dec := json.NewDecoder(strings.NewReader(out))
	var failure ingestFailure
	if err := dec.Decode(&failure); err != nil {
		t.Fatalf("decode failure: %v", err)
	}
	if failure.Code != "ING001" || !strings.HasSuffix(failure.Location, "notes.csv") {
		t.Errorf("failure = %+v, want ING001 for notes.csv", failure)
	}
	var sum core.Summary
	if err := dec.Decode(&sum); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if sum.Applicants != 1 {
		t.Errorf("second document applicants = %d, want 1", sum.Applicants)
	}
}

func TestIngest_InvalidMode(t *testing.T) {
	t.Setenv("DB_DRIVER", "memory")
	_, err := execute(t, "ingest", "--mode", "fancy", "list.xlsx")
	if code := GetExitCode(err); code != ExitCommandError {
		t.Errorf("exit code = %d (%v), want %d", code, err, ExitCommandError)
	}
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"plain", errors.New("boom"), ExitFailure},
		{"exit error", NewExitError(ExitCommandError, "bad flag"), ExitCommandError},
		{"wrapped", fmt.Errorf("run: %w", WrapExitError(ExitFailure, "ingest", errors.New("x"))), ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetExitCode(tt.err); got != tt.want {
				t.Errorf("GetExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}
