package core

// convert.go turns display strings from ranking list cells into typed values.
//
// Source lists are typed by hand in Russian-locale spreadsheets, so numbers
// arrive as "85,5", "1 234" or "85.5" and titles carry guillemets, line
// breaks and runs of spaces. Every To* function is best effort: input that
// does not parse yields a value with Valid=false, never an error.

import (
	"math/big"
	"regexp"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// decimalRegex validates a decimal after separators have been normalized.
var decimalRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)$`)

var ruLower = cases.Lower(language.Russian)

// titleQuotes are stripped from program and profile titles.
var titleQuotes = strings.NewReplacer("«", "", "»", "", "\"", "", "“", "", "”", "", "„", "")

// ToPgNumeric parses a decimal cell value.
// Accepts both comma and dot decimal separators and space thousands separators.
func ToPgNumeric(s string) pgtype.Numeric {
	s = stripSpaces(s)
	if s == "" {
		return pgtype.Numeric{Valid: false}
	}

	if strings.Contains(s, ",") {
		if strings.Contains(s, ".") {
			return pgtype.Numeric{Valid: false}
		}
		s = strings.Replace(s, ",", ".", 1)
	}

	if !decimalRegex.MatchString(s) {
		return pgtype.Numeric{Valid: false}
	}

	var n pgtype.Numeric
	if err := n.Scan(s); err != nil {
		return pgtype.Numeric{Valid: false}
	}
	return n
}

// ToPgInteger parses a cell holding a whole number into a numeric value.
// Fractional input is rejected.
func ToPgInteger(s string) pgtype.Numeric {
	i, ok := parseInt(s)
	if !ok {
		return pgtype.Numeric{Valid: false}
	}
	return pgtype.Numeric{Int: big.NewInt(i), Valid: true}
}

// ToPgInt4 parses a cell holding a rank or ordinal number.
func ToPgInt4(s string) pgtype.Int4 {
	i, ok := parseInt(s)
	if !ok || i > int64(^uint32(0)>>1) || i < -int64(^uint32(0)>>1)-1 {
		return pgtype.Int4{Valid: false}
	}
	return pgtype.Int4{Int32: int32(i), Valid: true}
}

func parseInt(s string) (int64, bool) {
	s = stripSpaces(s)
	if s == "" {
		return 0, false
	}
	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return i, true
}

// stripSpaces removes all whitespace, including the no-break spaces
// spreadsheets use as thousands separators.
func stripSpaces(s string) string {
	return strings.Join(strings.Fields(s), "")
}

// NormalizeTitle removes quote characters, collapses whitespace runs
// (including line breaks and tabs) into single spaces and trims the result.
func NormalizeTitle(s string) string {
	s = norm.NFC.String(s)
	s = titleQuotes.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// LowerTitle lower-cases a title using Russian casing rules.
func LowerTitle(s string) string {
	return ruLower.String(s)
}

// MatchesLiteral reports whether a cell value equals a literal marker,
// ignoring case.
func MatchesLiteral(value, literal string) bool {
	return strings.EqualFold(strings.TrimSpace(value), literal)
}

// parseRate parses an exam or total rate according to the column type.
func parseRate(t FieldType, s string) pgtype.Numeric {
	if t == FieldInteger {
		return ToPgInteger(s)
	}
	return ToPgNumeric(s)
}
