package taxonomy

import (
	"fmt"
	"sort"
	"strings"

	"github.com/callmeahab/catalog-titles/internal/catalog"
	"github.com/callmeahab/catalog-titles/internal/textnorm"
)

type indexedRule struct {
	rule     catalog.NomenclatureRule
	dept     string
	fam      string
	cat      string
	catWords map[string]struct{}
}

// RuleSet is the loaded nomenclature sheet. It is never mutated after
// construction, so lookups are deterministic and safe from any goroutine.
type RuleSet struct {
	rules []indexedRule
}

// NewRuleSet indexes rules, keeping their source order.
func NewRuleSet(rules []catalog.NomenclatureRule) *RuleSet {
	s := &RuleSet{rules: make([]indexedRule, 0, len(rules))}
	for _, r := range rules {
		cat := textnorm.NormalizeTaxValue(r.Category)
		s.rules = append(s.rules, indexedRule{
			rule:     r,
			dept:     textnorm.NormalizeTaxValue(r.Department),
			fam:      textnorm.NormalizeTaxValue(r.Family),
			cat:      cat,
			catWords: wordSet(cat),
		})
	}
	return s
}

func (s *RuleSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.rules)
}

// Rules returns a copy of the rules in source order.
func (s *RuleSet) Rules() []catalog.NomenclatureRule {
	out := make([]catalog.NomenclatureRule, 0, s.Len())
	for _, r := range s.rules {
		out = append(out, r.rule)
	}
	return out
}

// FindPatternRow resolves a taxonomy triple to a rule and its source index.
//
// Candidates are the rules sharing the normalized department and family; none
// means the triple is uncovered. An exact category match wins. Otherwise the
// candidate whose category shares the most words with the query wins, the
// earliest row on ties. A query without a category gets the first candidate.
func (s *RuleSet) FindPatternRow(dept, fam, cat string) (catalog.NomenclatureRule, int, bool) {
	if s == nil {
		return catalog.NomenclatureRule{}, -1, false
	}
	d := textnorm.NormalizeTaxValue(dept)
	f := textnorm.NormalizeTaxValue(fam)
	c := textnorm.NormalizeTaxValue(cat)

	var candidates []int
	for i, r := range s.rules {
		if r.dept == d && r.fam == f {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return catalog.NomenclatureRule{}, -1, false
	}

	for _, i := range candidates {
		if s.rules[i].cat == c {
			return s.rules[i].rule, i, true
		}
	}

	query := wordSet(c)
	if len(query) == 0 {
		i := candidates[0]
		return s.rules[i].rule, i, true
	}

	best, bestScore := candidates[0], -1
	for _, i := range candidates {
		score := 0
		for w := range s.rules[i].catWords {
			if _, ok := query[w]; ok {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return s.rules[best].rule, best, true
}

// Resolve looks a record's triple up, returning catalog.ErrNoRule with the
// triple in the message when it is uncovered.
func (s *RuleSet) Resolve(rec catalog.ProductRecord) (catalog.NomenclatureRule, int, error) {
	rule, idx, ok := s.FindPatternRow(rec.Department, rec.Family, rec.Category)
	if !ok {
		return rule, idx, fmt.Errorf("%s: %w", rec.TaxonomyKey(), catalog.ErrNoRule)
	}
	return rule, idx, nil
}

// Departments lists the distinct departments, sorted.
func (s *RuleSet) Departments() []string {
	return s.distinct(func(indexedRule) bool { return true }, func(r indexedRule) string { return r.rule.Department })
}

// Families lists the distinct families of a department, sorted.
func (s *RuleSet) Families(dept string) []string {
	d := textnorm.NormalizeTaxValue(dept)
	return s.distinct(
		func(r indexedRule) bool { return r.dept == d },
		func(r indexedRule) string { return r.rule.Family },
	)
}

// Categories lists the distinct categories of a department and family, sorted.
func (s *RuleSet) Categories(dept, fam string) []string {
	d, f := textnorm.NormalizeTaxValue(dept), textnorm.NormalizeTaxValue(fam)
	return s.distinct(
		func(r indexedRule) bool { return r.dept == d && r.fam == f },
		func(r indexedRule) string { return r.rule.Category },
	)
}

func (s *RuleSet) distinct(keep func(indexedRule) bool, value func(indexedRule) string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, r := range s.rules {
		if !keep(r) {
			continue
		}
		v := value(r)
		if _, ok := seen[v]; ok || v == "" {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func wordSet(s string) map[string]struct{} {
	words := strings.Fields(s)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
