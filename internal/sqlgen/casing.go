package sqlgen

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// CaseConversion controls the case of identifiers, aliases and table-name
// literals in rendered SQL. Keywords are never converted.
type CaseConversion int

const (
	CaseNone CaseConversion = iota
	CaseUpper
	CaseLower
)

// ParseCaseConversion accepts NONE, TO_UPPER and TO_LOWER (case-insensitive).
// The empty string means NONE.
func ParseCaseConversion(s string) (CaseConversion, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "NONE":
		return CaseNone, nil
	case "TO_UPPER":
		return CaseUpper, nil
	case "TO_LOWER":
		return CaseLower, nil
	}
	return CaseNone, fmt.Errorf("unknown case conversion %q", s)
}

func (c CaseConversion) String() string {
	switch c {
	case CaseUpper:
		return "TO_UPPER"
	case CaseLower:
		return "TO_LOWER"
	}
	return "NONE"
}

// converter returns a function applying c. A cases.Caser holds state, so each
// render call gets its own.
func (c CaseConversion) converter() func(string) string {
	var caser cases.Caser
	switch c {
	case CaseUpper:
		caser = cases.Upper(language.Und)
	case CaseLower:
		caser = cases.Lower(language.Und)
	default:
		return func(s string) string { return s }
	}
	return caser.String
}
