package engine

import (
	"context"
	"strings"

	"github.com/callmeahab/catalog-titles/internal/catalog"
	"github.com/callmeahab/catalog-titles/internal/validation"
)

// Stub is a deterministic engine for dry runs and tests. It echoes the input
// title as system and label title and appends the category for SEO. Its
// correction pass accepts everything.
type Stub struct {
	Err error
	// Short drops this many triples from every answer.
	Short int
}

var (
	_ Generator            = (*Stub)(nil)
	_ validation.Corrector = (*Stub)(nil)
)

func (s *Stub) Generate(_ context.Context, req GenerationRequest) ([]catalog.TitleTriple, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	out := make([]catalog.TitleTriple, 0, len(req.Products))
	for _, p := range req.Products {
		base := p.OriginalTitle()
		if base == "" {
			base = strings.Join(nonEmpty(p.Type, p.Material, p.Dimensions, p.Color), " ")
		}
		out = append(out, catalog.TitleTriple{
			SystemTitle: base,
			LabelTitle:  base,
			SEOTitle:    strings.TrimSpace(base + " " + p.Category),
		})
	}
	if s.Short > 0 {
		if s.Short >= len(out) {
			return nil, nil
		}
		out = out[:len(out)-s.Short]
	}
	return out, nil
}

func (s *Stub) Correct(_ context.Context, _, generated string) (validation.CorrectionResult, error) {
	return validation.CorrectionResult{
		IsValid:        true,
		CorrectedTitle: generated,
		IssuesFound:    []string{},
		RemovedPhrases: []string{},
		Confidence:     validation.ConfidenceLow,
	}, nil
}

func nonEmpty(values ...string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
