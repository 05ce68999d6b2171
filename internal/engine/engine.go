// Package engine talks to the language model that writes titles and reviews
// them. Everything above it depends only on the Generator and
// validation.Corrector interfaces.
package engine

import (
	"context"
	"errors"

	"github.com/callmeahab/catalog-titles/internal/catalog"
)

var (
	ErrEmptyResponse     = errors.New("empty engine response")
	ErrMalformedResponse = errors.New("malformed engine response")
)

// GenerationRequest is one engine call: every product shares the pattern.
type GenerationRequest struct {
	Pattern  string
	Example  string
	Memory   *catalog.Memory
	Products []catalog.ProductRecord
}

// Generator returns one title triple per product, in product order. Callers
// must check the count.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) ([]catalog.TitleTriple, error)
}
