package core

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestClassifier_HeaderBlock(t *testing.T) {
	c := DefaultClassifier()

	div := c.Classify("Институт информационных технологий")
	if div.Division != "Институт информационных технологий" {
		t.Errorf("Division = %q, want the whole cell text", div.Division)
	}
	if div.EduForm != "" || div.Financing != "" || div.Program != nil {
		t.Errorf("division header also classified as %+v", div)
	}

	form := c.Classify("форма обучения: очная")
	if form.EduForm != "форма обучения: очная" {
		t.Errorf("EduForm = %q, want the whole cell text", form.EduForm)
	}
	if form.Division != "" || form.Program != nil {
		t.Errorf("form header also classified as %+v", form)
	}

	prog := c.Classify("бакалавриат по направлению «Информатика» Профиль: Программирование")
	if prog.Program == nil {
		t.Fatal("program header not classified")
	}
	want := ProgramHeader{Level: "бакалавриат", Title: "Информатика", Profile: "Программирование"}
	if *prog.Program != want {
		t.Errorf("Program = %+v, want %+v", *prog.Program, want)
	}
}

func TestClassifier_Financing(t *testing.T) {
	c := DefaultClassifier()
	tests := []struct {
		text string
		want string
	}{
		{"БЮДЖЕТ", "бюджет"},
		{"Места по договорам об оказании платных услуг", "места по договорам об оказании платных услуг"},
		{"Общий конкурс", ""},
	}
	for _, tt := range tests {
		if got := c.Classify(tt.text).Financing; got != tt.want {
			t.Errorf("Classify(%q).Financing = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestClassifier_Levels(t *testing.T) {
	c := DefaultClassifier()
	tests := []struct {
		name    string
		text    string
		level   string
		college bool
	}{
		{"bachelor", "бакалавриат «Экономика»", "бакалавриат", false},
		{"master", "программа магистратуры «Юриспруденция»", "магистратура", false},
		{"postgraduate", "программа подготовки кадров высшей квалификации «Физика»", "аспирантура", false},
		{"specialist", "программа специалитета «Лечебное дело»", "специалитет", false},
		{"college", "«Сестринское дело» на базе основного общего образования", "специалитет СПО", true},
		{"college wins over specialist by order", "программа специалитета на базе среднего общего образования", "специалитет СПО", true},
		{"multiline college", "«Право»\nна базе среднего общего образования", "специалитет СПО", true},
		{"no canonical level", "программа специалитет «Лечебное дело»", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.text)
			if got.Program == nil {
				t.Fatalf("Classify(%q) found no program header", tt.text)
			}
			if got.Program.Level != tt.level {
				t.Errorf("Level = %q, want %q", got.Program.Level, tt.level)
			}
			if got.Program.College != tt.college {
				t.Errorf("College = %v, want %v", got.Program.College, tt.college)
			}
		})
	}
}

func TestClassifier_ProgramTitles(t *testing.T) {
	c := DefaultClassifier()
	tests := []struct {
		name    string
		text    string
		title   string
		profile string
	}{
		{
			name:    "profile marker",
			text:    "бакалавриат по направлению «Информатика» Профиль: Программирование",
			title:   "Информатика",
			profile: "Программирование",
		},
		{
			name:    "whitespace collapsed",
			text:    "бакалавриат\n«Прикладная   математика»\nПрофиль:\n  Анализ\tданных  ",
			title:   "Прикладная математика",
			profile: "Анализ данных",
		},
		{
			name:    "profile falls back to base education",
			text:    "«Сестринское дело» на базе основного общего образования",
			title:   "Сестринское дело",
			profile: "на базе основного общего образования",
		},
		{
			name:    "no profile",
			text:    "программа магистратуры «Юриспруденция»",
			title:   "Юриспруденция",
			profile: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.text).Program
			if got == nil {
				t.Fatalf("Classify(%q) found no program header", tt.text)
			}
			if got.Title != tt.title {
				t.Errorf("Title = %q, want %q", got.Title, tt.title)
			}
			if got.Profile != tt.profile {
				t.Errorf("Profile = %q, want %q", got.Profile, tt.profile)
			}
		})
	}
}

func TestClassifier_Unclassified(t *testing.T) {
	c := DefaultClassifier()
	for _, text := range []string{"Список поступающих", "", "Дата: 20.07.2024"} {
		if got := c.Classify(text); !got.Empty() {
			t.Errorf("Classify(%q) = %+v, want empty", text, got)
		}
	}
}

func TestClassifier_NonExclusive(t *testing.T) {
	got := DefaultClassifier().Classify("Институт экономики, бюджет")
	if got.Division == "" || got.Financing == "" {
		t.Errorf("Classify() = %+v, want both division and financing", got)
	}
}

func TestCompile_Errors(t *testing.T) {
	valid := func() RuleSet {
		return RuleSet{
			Fields:  []FieldRule{{Field: HeaderDivision, Pattern: "институт"}},
			Levels:  []LevelRule{{Pattern: "бакалавриат", Title: "бакалавриат"}},
			Program: ProgramRules{Profile: "Профиль:(.*)"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*RuleSet)
		wantErr string
	}{
		{"valid", func(*RuleSet) {}, ""},
		{"no fields", func(rs *RuleSet) { rs.Fields = nil }, "no field rules"},
		{"unknown field", func(rs *RuleSet) { rs.Fields[0].Field = "campus" }, "unknown field"},
		{"bad pattern", func(rs *RuleSet) { rs.Fields[0].Pattern = "(" }, "field rule 0"},
		{"no levels", func(rs *RuleSet) { rs.Levels = nil }, "no level rules"},
		{"empty level title", func(rs *RuleSet) { rs.Levels[0].Title = "" }, "empty title"},
		{"profile without group", func(rs *RuleSet) { rs.Program.Profile = "Профиль:" }, "capture group"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs := valid()
			tt.mutate(&rs)
			_, err := Compile(rs)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Compile() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Compile() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadClassifier(t *testing.T) {
	c, err := LoadClassifier("")
	if err != nil || c == nil {
		t.Fatalf("LoadClassifier(\"\") = %v, %v; want embedded rules", c, err)
	}

	if _, err := LoadClassifier(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadClassifier(missing) succeeded, want error")
	}

	path := filepath.Join(t.TempDir(), "rules.yaml")
	rules := `
fields:
  - field: division
    pattern: '(?i)кафедра'
levels:
  - pattern: '(?i)бакалавриат'
    title: бакалавриат
`
	if err := os.WriteFile(path, []byte(rules), 0o600); err != nil {
		t.Fatal(err)
	}
	c, err = LoadClassifier(path)
	if err != nil {
		t.Fatalf("LoadClassifier(file) error = %v", err)
	}
	if got := c.Classify("Кафедра физики").Division; got != "Кафедра физики" {
		t.Errorf("custom rules Division = %q, want Кафедра физики", got)
	}
	if got := c.Classify("Институт физики").Division; got != "" {
		t.Errorf("custom rules still match институт: %q", got)
	}

	if err := os.WriteFile(path, []byte("fields: [oops"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadClassifier(path); err == nil {
		t.Error("LoadClassifier(malformed) succeeded, want error")
	}
}
