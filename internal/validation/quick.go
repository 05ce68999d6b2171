package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/callmeahab/catalog-titles/internal/textnorm"
)

// Abbreviation is an ERP shorthand that stands for a suspect phrase.
type Abbreviation struct {
	Phrase string   // the suspect phrase it stands for, lower case
	Forms  []string // spellings in the ERP title, upper case
	// ParaPrefixed forms already carry the "para" (P/SELLADO) and justify the
	// whole phrase. Bare forms only justify the noun.
	ParaPrefixed bool
}

// Rules are the fixed data the quick validator checks against.
type Rules struct {
	SuspectPhrases     []string
	Abbreviations      []Abbreviation
	ForbiddenTerms     []string
	MeasurementPattern *regexp.Regexp
}

var (
	measurementPattern = regexp.MustCompile(`(\d+(?:/\d+)?\s*(?:mm|cm|m|plg|pulgadas?|Hp|HP|L/min|W))(?:\P{L}|$)`)
	unitGapPattern     = regexp.MustCompile(`(\d)\s+(mm|cm|m|plg|pulgadas?|HP|L/min|W)(\P{L}|$)`)
)

// DefaultRules returns the production rule data.
func DefaultRules() Rules {
	return Rules{
		SuspectPhrases: []string{
			"para agua sucia", "para agua limpia",
			"para sellado de roscas", "para sellado",
			"para drenajes y tuberías", "para drenajes",
			"para construcción", "para plomería",
			"para tubería", "para ferretería",
		},
		Abbreviations: []Abbreviation{
			{Phrase: "para agua sucia", Forms: []string{"A.SUCIA", "A SUCIA"}},
			{Phrase: "para agua limpia", Forms: []string{"A.LIMP", "A LIMP"}},
			{Phrase: "para sellado", Forms: []string{"P/SELLADO", "P SELLADO"}, ParaPrefixed: true},
		},
		ForbiddenTerms:     textnorm.BuildForbiddenTerms(),
		MeasurementPattern: measurementPattern,
	}
}

// QuickValidator runs the deterministic checks that decide whether a title
// needs the correction pass. It never changes the text it inspects.
type QuickValidator struct {
	rules Rules
}

func NewQuickValidator(rules Rules) *QuickValidator {
	if rules.MeasurementPattern == nil {
		rules.MeasurementPattern = measurementPattern
	}
	return &QuickValidator{rules: rules}
}

// Check compares a generated title with the original it came from and returns
// every issue found, in check order.
func (q *QuickValidator) Check(original, generated string) []string {
	if original == "" || generated == "" {
		return nil
	}
	var issues []string
	issues = append(issues, q.checkPhrases(original, generated)...)
	issues = append(issues, q.checkTerms(original, generated)...)
	issues = append(issues, q.checkMeasurements(original, generated)...)
	return issues
}

func (q *QuickValidator) checkPhrases(original, generated string) []string {
	var issues []string
	genLower := strings.ToLower(generated)
	origLower := strings.ToLower(original)
	origUpper := strings.ToUpper(original)

	for _, phrase := range q.rules.SuspectPhrases {
		if !strings.Contains(genLower, phrase) || strings.Contains(origLower, phrase) {
			continue
		}
		justified := false
	forms:
		for _, abbr := range q.rules.Abbreviations {
			if abbr.Phrase != phrase {
				continue
			}
			for _, form := range abbr.Forms {
				if !strings.Contains(origUpper, form) {
					continue
				}
				justified = true
				if !abbr.ParaPrefixed && !hasParaPrefix(origUpper, form) {
					issues = append(issues, fmt.Sprintf("Incorrectly added 'para' with abbreviation: '%s' (original has '%s')", phrase, form))
				}
				break forms
			}
		}
		if !justified {
			issues = append(issues, fmt.Sprintf("Added generic phrase not in original: '%s'", phrase))
		}
	}
	return issues
}

// hasParaPrefix reports whether form appears right after a "P/" in text.
func hasParaPrefix(text, form string) bool {
	return strings.Contains(text, "P/"+form) || strings.Contains(text, "P/ "+form)
}

func (q *QuickValidator) checkTerms(original, generated string) []string {
	var issues []string
	genLower := strings.ToLower(generated)
	origLower := strings.ToLower(original)
	for _, term := range q.rules.ForbiddenTerms {
		t := strings.ToLower(term)
		if strings.Contains(genLower, t) && !strings.Contains(origLower, t) {
			issues = append(issues, fmt.Sprintf("Invented technical term: '%s'", term))
		}
	}
	return issues
}

func (q *QuickValidator) checkMeasurements(original, generated string) []string {
	var issues []string
	gen := canonicalMeasure(generated)
	for _, match := range q.rules.MeasurementPattern.FindAllStringSubmatch(original, -1) {
		m := match[0]
		if len(match) > 1 && match[1] != "" {
			m = match[1]
		}
		if !containsMeasure(gen, canonicalMeasure(m)) {
			issues = append(issues, fmt.Sprintf("Missing critical measurement: '%s'", m))
		}
	}
	return issues
}

// containsMeasure reports whether m occurs in s followed by a non-letter, so
// "5m" is not found in "5mm" or "5mangueras".
func containsMeasure(s, m string) bool {
	for from := 0; m != ""; {
		i := strings.Index(s[from:], m)
		if i < 0 {
			return false
		}
		end := from + i + len(m)
		if r, _ := utf8.DecodeRuneInString(s[end:]); end == len(s) || !unicode.IsLetter(r) {
			return true
		}
		from += i + 1
	}
	return false
}

// canonicalMeasure upper-cases horsepower and drops the gap between a number
// and its unit, so "1/2HP" and "1/2 hp" compare equal.
func canonicalMeasure(s string) string {
	s = strings.ReplaceAll(s, "Hp", "HP")
	s = strings.ReplaceAll(s, "hp", "HP")
	return unitGapPattern.ReplaceAllString(s, "${1}${2}${3}")
}
