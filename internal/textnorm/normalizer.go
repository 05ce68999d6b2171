package textnorm

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/callmeahab/catalog-titles/internal/catalog"
)

// shoutAffixes are stripped from a token before deciding whether it shouts.
const shoutAffixes = ".,;:()[]{}-/"

// Lists holds the fixed vocabularies the normalizer works with.
type Lists struct {
	Acronyms        []string
	ForbiddenTerms  []string
	GenericSuffixes []string // regular expressions anchored at the end of the title
}

// DefaultLists returns the vocabularies used in production.
func DefaultLists() Lists {
	return Lists{
		Acronyms:        BuildAcronymList(),
		ForbiddenTerms:  BuildForbiddenTerms(),
		GenericSuffixes: BuildGenericSuffixPatterns(),
	}
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithUnitNormalization toggles the unit canonicalization step of Clean.
func WithUnitNormalization(enabled bool) Option {
	return func(n *Normalizer) { n.normalizeUnits = enabled }
}

type compiledUnitRule struct {
	re      *regexp.Regexp
	replace string
}

// Normalizer sanitizes generated titles. It is immutable once built and safe
// for concurrent use.
type Normalizer struct {
	acronyms       map[string]struct{}
	forbidden      []*regexp.Regexp
	genericTails   []*regexp.Regexp
	unitRules      []compiledUnitRule
	normalizeUnits bool
}

var (
	parenCodePattern = regexp.MustCompile(`\s*\([^)]*\)`)
)

// New compiles the lists into a Normalizer.
func New(lists Lists, opts ...Option) (*Normalizer, error) {
	n := &Normalizer{
		acronyms:       make(map[string]struct{}, len(lists.Acronyms)),
		normalizeUnits: true,
	}
	for _, a := range lists.Acronyms {
		n.acronyms[strings.ToLower(a)] = struct{}{}
	}
	for _, term := range lists.ForbiddenTerms {
		if strings.TrimSpace(term) == "" {
			continue
		}
		n.forbidden = append(n.forbidden, regexp.MustCompile(`(?i)`+regexp.QuoteMeta(term)))
	}
	for _, p := range lists.GenericSuffixes {
		re, err := regexp.Compile(`(?i)` + p)
		if err != nil {
			return nil, fmt.Errorf("generic suffix %q: %w", p, err)
		}
		n.genericTails = append(n.genericTails, re)
	}
	for _, r := range buildUnitRules() {
		n.unitRules = append(n.unitRules, compiledUnitRule{re: regexp.MustCompile(r.pattern), replace: r.replace})
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// NormalizeTaxValue turns "Plomeria (0024)" into "PLOMERIA". Used only for
// taxonomy matching.
func NormalizeTaxValue(v string) string {
	v = parenCodePattern.ReplaceAllString(v, "")
	return strings.ToUpper(strings.TrimSpace(v))
}

// ApplyTransformations replaces whole-word occurrences of each memory key,
// plural included, in memory order. Each entry sees the output of the previous
// ones.
func (n *Normalizer) ApplyTransformations(text string, mem *catalog.Memory) string {
	for _, e := range mem.Entries() {
		re, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(e.Original) + `(s)?`)
		if err != nil {
			continue
		}
		text = replaceWholeWords(text, re, e.Replacement)
	}
	return collapse(text)
}

// DeShout capitalizes all-caps tokens that are not known acronyms, keeping
// leading and trailing punctuation in place.
func (n *Normalizer) DeShout(text string) string {
	tokens := strings.Fields(text)
	for i, tok := range tokens {
		left := strings.TrimLeft(tok, shoutAffixes)
		bare := strings.TrimRight(left, shoutAffixes)
		if utf8.RuneCountInString(bare) <= 1 || !isShouting(bare) || n.IsAcronym(bare) {
			continue
		}
		prefix := tok[:len(tok)-len(left)]
		suffix := left[len(bare):]
		tokens[i] = prefix + capitalize(bare) + suffix
	}
	return strings.Join(tokens, " ")
}

// IsAcronym reports whether token is on the acronym allow-list. The match
// ignores case, so "PLG" and "plg" are both protected.
func (n *Normalizer) IsAcronym(token string) bool {
	_, ok := n.acronyms[strings.ToLower(token)]
	return ok
}

// RemoveBrandOccurrences strips the brand as typed, upper-cased, lower-cased
// and capitalized. This is plain substring removal.
func RemoveBrandOccurrences(text, brand string) string {
	brand = strings.TrimSpace(brand)
	if brand == "" {
		return collapse(text)
	}
	lower := strings.ToLower(brand)
	for _, form := range []string{brand, strings.ToUpper(brand), lower, capitalize(lower)} {
		text = strings.ReplaceAll(text, form, "")
	}
	return collapse(text)
}

// RemoveForbiddenTerms drops every forbidden technical term, whole words only.
func (n *Normalizer) RemoveForbiddenTerms(text string) string {
	for _, re := range n.forbidden {
		text = replaceWholeWords(text, re, "")
	}
	return collapse(text)
}

// RemoveGenericParaPhrases strips generic "para ..." tails until none is left.
func (n *Normalizer) RemoveGenericParaPhrases(text string) string {
	text = collapse(text)
	for {
		before := text
		for _, re := range n.genericTails {
			text = re.ReplaceAllString(text, "")
		}
		text = collapse(text)
		if text == before {
			return text
		}
	}
}

// NormalizeUnits canonicalizes flow, length and horsepower spellings.
func (n *Normalizer) NormalizeUnits(text string) string {
	for _, r := range n.unitRules {
		text = r.re.ReplaceAllString(text, r.replace)
	}
	return text
}

// maxCleanPasses bounds how often Clean reruns the chain looking for a fixed
// point.
const maxCleanPasses = 4

// Clean runs the whole chain on one title: transformations, brand removal,
// case repair, units, forbidden terms, generic tails and whitespace. Removing
// a term can expose a memory key, so the chain repeats until the text stops
// changing.
func (n *Normalizer) Clean(text, brand string, mem *catalog.Memory) string {
	text = norm.NFC.String(text)
	for i := 0; i < maxCleanPasses; i++ {
		next := n.cleanOnce(text, brand, mem)
		if next == text {
			break
		}
		text = next
	}
	return text
}

func (n *Normalizer) cleanOnce(text, brand string, mem *catalog.Memory) string {
	text = n.ApplyTransformations(text, mem)
	text = RemoveBrandOccurrences(text, brand)
	text = n.DeShout(text)
	if n.normalizeUnits {
		text = n.NormalizeUnits(text)
	}
	text = n.RemoveForbiddenTerms(text)
	text = n.RemoveGenericParaPhrases(text)
	return collapse(text)
}

// capitalize upper-cases the first rune and lower-cases the rest.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	_, size := utf8.DecodeRuneInString(s)
	return cases.Upper(language.Und).String(s[:size]) + cases.Lower(language.Und).String(s[size:])
}
