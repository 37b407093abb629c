package core

// classifier.go decides what a merged header cell describes.
//
// Header cells are free Russian text such as
//
//	Институт информационных технологий
//	форма обучения: очная
//	бюджет
//	бакалавриат по направлению «Информатика» Профиль: Программирование
//
// The rule table (rules.yaml, embedded) maps patterns to header fields. A
// different table can be loaded from a file without rebuilding.

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// HeaderField is the header attribute a rule assigns.
type HeaderField string

const (
	HeaderDivision  HeaderField = "division"
	HeaderEduForm   HeaderField = "edu_form"
	HeaderFinancing HeaderField = "financing"
	HeaderProgram   HeaderField = "program"
)

// RuleSet is the YAML form of the classification rules.
type RuleSet struct {
	Fields  []FieldRule  `yaml:"fields"`
	Levels  []LevelRule  `yaml:"levels"`
	Program ProgramRules `yaml:"program"`
}

// FieldRule assigns the whole cell text to a header field.
type FieldRule struct {
	Field     HeaderField `yaml:"field"`
	Pattern   string      `yaml:"pattern"`
	Lowercase bool        `yaml:"lowercase"`
}

// LevelRule maps a phrase to a canonical education level title.
type LevelRule struct {
	Pattern string `yaml:"pattern"`
	Title   string `yaml:"title"`
}

// ProgramRules extract program and profile titles from a program header.
type ProgramRules struct {
	Title           string `yaml:"title"`
	Profile         string `yaml:"profile"`
	ProfileFallback string `yaml:"profile_fallback"`
	CollegePrefix   string `yaml:"college_prefix"`
}

// Classification is the outcome of classifying one header cell.
// Empty strings and a nil Program mean the corresponding rule did not fire.
type Classification struct {
	Division  string
	EduForm   string
	Financing string
	Program   *ProgramHeader
}

// Empty reports whether no rule fired.
func (c Classification) Empty() bool {
	return c.Division == "" && c.EduForm == "" && c.Financing == "" && c.Program == nil
}

// ProgramHeader is a decomposed level/program header.
// Level is empty when the text matched no canonical level.
type ProgramHeader struct {
	Level   string
	Title   string
	Profile string
	College bool
}

type fieldMatcher struct {
	field     HeaderField
	re        *regexp.Regexp
	lowercase bool
}

type levelMatcher struct {
	re    *regexp.Regexp
	title string
}

// Classifier applies a compiled rule set to header text.
type Classifier struct {
	fields          []fieldMatcher
	levels          []levelMatcher
	programTitle    *regexp.Regexp
	profile         *regexp.Regexp
	profileFallback *regexp.Regexp
	collegePrefix   string
}

// DefaultClassifier returns the classifier built from the embedded rules.
func DefaultClassifier() *Classifier {
	c, err := ParseRules(defaultRulesYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded header rules: %v", err))
	}
	return c
}

// LoadClassifier reads a rule file. An empty path selects the embedded rules.
func LoadClassifier(path string) (*Classifier, error) {
	if path == "" {
		return DefaultClassifier(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	c, err := ParseRules(data)
	if err != nil {
		return nil, fmt.Errorf("rules file %s: %w", path, err)
	}
	return c, nil
}

// ParseRules compiles a YAML rule set.
func ParseRules(data []byte) (*Classifier, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	return Compile(rs)
}

// Compile validates a rule set and compiles its patterns.
func Compile(rs RuleSet) (*Classifier, error) {
	c := &Classifier{collegePrefix: rs.Program.CollegePrefix}

	if len(rs.Fields) == 0 {
		return nil, fmt.Errorf("no field rules")
	}
	for i, r := range rs.Fields {
		switch r.Field {
		case HeaderDivision, HeaderEduForm, HeaderFinancing, HeaderProgram:
		default:
			return nil, fmt.Errorf("field rule %d: unknown field %q", i, r.Field)
		}
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("field rule %d (%s): %w", i, r.Field, err)
		}
		c.fields = append(c.fields, fieldMatcher{field: r.Field, re: re, lowercase: r.Lowercase})
	}

	if len(rs.Levels) == 0 {
		return nil, fmt.Errorf("no level rules")
	}
	for i, r := range rs.Levels {
		if r.Title == "" {
			return nil, fmt.Errorf("level rule %d: empty title", i)
		}
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("level rule %d (%s): %w", i, r.Title, err)
		}
		c.levels = append(c.levels, levelMatcher{re: re, title: r.Title})
	}

	var err error
	if c.programTitle, err = compileOptional(rs.Program.Title); err != nil {
		return nil, fmt.Errorf("program title: %w", err)
	}
	if c.profile, err = compileOptional(rs.Program.Profile); err != nil {
		return nil, fmt.Errorf("profile: %w", err)
	}
	if c.profileFallback, err = compileOptional(rs.Program.ProfileFallback); err != nil {
		return nil, fmt.Errorf("profile fallback: %w", err)
	}
	if c.profile != nil && c.profile.NumSubexp() < 1 {
		return nil, fmt.Errorf("profile pattern needs a capture group")
	}

	return c, nil
}

func compileOptional(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}
	return regexp.Compile(pattern)
}

// Classify evaluates every field rule against text.
func (c *Classifier) Classify(text string) Classification {
	var out Classification
	for _, m := range c.fields {
		if !m.re.MatchString(text) {
			continue
		}
		value := text
		if m.lowercase {
			value = LowerTitle(value)
		}
		switch m.field {
		case HeaderDivision:
			out.Division = value
		case HeaderEduForm:
			out.EduForm = value
		case HeaderFinancing:
			out.Financing = value
		case HeaderProgram:
			p := c.program(text)
			out.Program = &p
		}
	}
	return out
}

// Level returns the canonical level named by text, or "" if none matches.
func (c *Classifier) Level(text string) string {
	for _, l := range c.levels {
		if l.re.MatchString(text) {
			return l.title
		}
	}
	return ""
}

func (c *Classifier) program(text string) ProgramHeader {
	p := ProgramHeader{Level: c.Level(text)}

	if c.programTitle != nil {
		p.Title = NormalizeTitle(c.programTitle.FindString(text))
	}
	if c.profile != nil {
		if m := c.profile.FindStringSubmatch(text); m != nil {
			p.Profile = NormalizeTitle(m[1])
		}
	}
	if p.Profile == "" && c.profileFallback != nil {
		p.Profile = NormalizeTitle(c.profileFallback.FindString(text))
	}

	p.College = p.Level != "" && c.collegePrefix != "" &&
		strings.HasPrefix(strings.ToLower(p.Level), strings.ToLower(c.collegePrefix))
	return p
}
