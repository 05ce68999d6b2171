package engine

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/callmeahab/catalog-titles/internal/catalog"
	"github.com/callmeahab/catalog-titles/internal/validation"
)

// StripFences removes markdown code fences around a JSON payload.
func StripFences(text string) string {
	t := strings.TrimSpace(text)
	t = strings.ReplaceAll(t, "```json", "")
	t = strings.ReplaceAll(t, "```", "")
	return strings.TrimSpace(t)
}

func parseBody(text string) (gjson.Result, error) {
	body := StripFences(text)
	if body == "" {
		return gjson.Result{}, ErrEmptyResponse
	}
	if !gjson.Valid(body) {
		return gjson.Result{}, fmt.Errorf("%w: not valid JSON", ErrMalformedResponse)
	}
	return gjson.Parse(body), nil
}

// ParseTriples reads either a single title object or an array of them.
func ParseTriples(text string) ([]catalog.TitleTriple, error) {
	root, err := parseBody(text)
	if err != nil {
		return nil, err
	}

	switch {
	case root.IsObject():
		t, err := tripleFrom(root, 0)
		if err != nil {
			return nil, err
		}
		return []catalog.TitleTriple{t}, nil

	case root.IsArray():
		items := root.Array()
		out := make([]catalog.TitleTriple, 0, len(items))
		for i, item := range items {
			t, err := tripleFrom(item, i)
			if err != nil {
				return nil, err
			}
			out = append(out, t)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: expected an object or an array", ErrMalformedResponse)
}

func tripleFrom(v gjson.Result, idx int) (catalog.TitleTriple, error) {
	if !v.IsObject() {
		return catalog.TitleTriple{}, fmt.Errorf("%w: item %d is not an object", ErrMalformedResponse, idx)
	}
	sys, label, seo := v.Get("titulo_sistema"), v.Get("titulo_etiqueta"), v.Get("titulo_seo")
	if !sys.Exists() && !label.Exists() && !seo.Exists() {
		return catalog.TitleTriple{}, fmt.Errorf("%w: item %d has no title fields", ErrMalformedResponse, idx)
	}

	t := catalog.TitleTriple{
		SystemTitle: sys.String(),
		LabelTitle:  label.String(),
		SEOTitle:    seo.String(),
		Notes:       v.Get("notas").String(),
	}
	for _, tr := range v.Get("transformaciones_aplicadas").Array() {
		if s := strings.TrimSpace(tr.String()); s != "" {
			t.AppliedTransformations = append(t.AppliedTransformations, s)
		}
	}
	if c := v.Get("cumple_nomenclatura"); c.Type == gjson.True || c.Type == gjson.False {
		ok := c.Bool()
		t.Compliant = &ok
	}
	return t, nil
}

// ParseCorrection reads the correction pass answer. A missing is_valid counts
// as valid.
func ParseCorrection(text string) (validation.CorrectionResult, error) {
	root, err := parseBody(text)
	if err != nil {
		return validation.CorrectionResult{}, err
	}
	if !root.IsObject() {
		return validation.CorrectionResult{}, fmt.Errorf("%w: expected an object", ErrMalformedResponse)
	}

	res := validation.CorrectionResult{
		IsValid:        true,
		CorrectedTitle: strings.TrimSpace(root.Get("corrected_title").String()),
		IssuesFound:    stringList(root.Get("issues_found")),
		RemovedPhrases: stringList(root.Get("removed_phrases")),
		Confidence:     strings.ToLower(root.Get("confidence").String()),
	}
	if v := root.Get("is_valid"); v.Exists() {
		res.IsValid = v.Bool()
	}
	return res, nil
}

func stringList(v gjson.Result) []string {
	out := []string{}
	for _, item := range v.Array() {
		if s := item.String(); s != "" {
			out = append(out, s)
		}
	}
	return out
}
