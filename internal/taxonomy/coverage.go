package taxonomy

import (
	"github.com/callmeahab/catalog-titles/internal/catalog"
	"github.com/callmeahab/catalog-titles/internal/textnorm"
)

// UncoveredCategory counts records of one taxonomy triple without a rule.
type UncoveredCategory struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// Coverage summarizes how many records the rule set can serve.
type Coverage struct {
	Total               int                 `json:"total"`
	Covered             int                 `json:"covered"`
	Uncovered           int                 `json:"uncovered"`
	Percent             float64             `json:"coverage_percent"`
	UncoveredCategories []UncoveredCategory `json:"uncovered_categories"`
}

// AnalyzeCoverage resolves every record without generating anything.
// Uncovered triples are listed in order of first appearance.
func (s *RuleSet) AnalyzeCoverage(records []catalog.ProductRecord) Coverage {
	cov := Coverage{Total: len(records)}
	pos := map[string]int{}
	for _, rec := range records {
		if _, _, ok := s.FindPatternRow(rec.Department, rec.Family, rec.Category); ok {
			cov.Covered++
			continue
		}
		key := rec.TaxonomyKey()
		if i, seen := pos[key]; seen {
			cov.UncoveredCategories[i].Count++
			continue
		}
		pos[key] = len(cov.UncoveredCategories)
		cov.UncoveredCategories = append(cov.UncoveredCategories, UncoveredCategory{Key: key, Count: 1})
	}
	cov.Uncovered = cov.Total - cov.Covered
	if cov.Total > 0 {
		cov.Percent = float64(cov.Covered) / float64(cov.Total) * 100
	}
	return cov
}

// Filter narrows a batch to one department, family or category. Blank
// fields match everything; values compare after tax normalization.
type Filter struct {
	Department string `json:"departamento,omitempty"`
	Family     string `json:"familia,omitempty"`
	Category   string `json:"categoria,omitempty"`
}

func (f Filter) IsZero() bool {
	return f.Department == "" && f.Family == "" && f.Category == ""
}

// Apply returns the matching records in their original order.
func (f Filter) Apply(records []catalog.ProductRecord) []catalog.ProductRecord {
	if f.IsZero() {
		return records
	}
	match := func(want, got string) bool {
		return want == "" || textnorm.NormalizeTaxValue(want) == textnorm.NormalizeTaxValue(got)
	}
	out := make([]catalog.ProductRecord, 0, len(records))
	for _, r := range records {
		if match(f.Department, r.Department) && match(f.Family, r.Family) && match(f.Category, r.Category) {
			out = append(out, r)
		}
	}
	return out
}
