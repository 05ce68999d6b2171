package validation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callmeahab/catalog-titles/internal/catalog"
	"github.com/callmeahab/catalog-titles/internal/textnorm"
)

type fakeCorrector struct {
	result CorrectionResult
	err    error
	calls  int
}

func (f *fakeCorrector) Correct(_ context.Context, _, _ string) (CorrectionResult, error) {
	f.calls++
	return f.result, f.err
}

func TestQuickValidator(t *testing.T) {
	q := NewQuickValidator(DefaultRules())

	t.Run("ShouldFlagParaAddedToBareAbbreviation", func(t *testing.T) {
		issues := q.Check("BOMBA SUM A.SUCIA 1 1/2HP", "Bomba Sumergible para Agua Sucia 1 1/2 HP")
		assert.Equal(t, []string{
			"Incorrectly added 'para' with abbreviation: 'para agua sucia' (original has 'A.SUCIA')",
		}, issues)
	})

	t.Run("ShouldFlagGenericPhrases", func(t *testing.T) {
		issues := q.Check("CINTA TEFLON 1/2X7M", "Cinta de Teflón 1/2 plg x 7 m para sellado de roscas")
		assert.Equal(t, []string{
			"Added generic phrase not in original: 'para sellado de roscas'",
			"Added generic phrase not in original: 'para sellado'",
		}, issues)
	})

	t.Run("ShouldAcceptParaPrefixedAbbreviations", func(t *testing.T) {
		assert.Empty(t, q.Check("CINTA TEFLON P/SELLADO 3/4", "Cinta Teflón para sellado 3/4"))
		assert.Empty(t, q.Check("BOMBA P/A.SUCIA 1HP", "Bomba para Agua Sucia 1 HP"))
	})

	t.Run("ShouldAcceptPhrasesPresentInOriginal", func(t *testing.T) {
		assert.Empty(t, q.Check("Sellador para plomería 300 ml", "Sellador para plomería 300 ml"))
	})

	t.Run("ShouldFlagInventedTerms", func(t *testing.T) {
		issues := q.Check("ACEITE MULTIUSO 400ML", "Aceite Penetrante Multiuso 400 ml")
		assert.Equal(t, []string{"Invented technical term: 'penetrante'"}, issues)
		assert.Empty(t, q.Check("ACEITE PENETRANTE 400ML", "Aceite Penetrante 400 ml"))
	})

	t.Run("ShouldFlagMissingMeasurements", func(t *testing.T) {
		issues := q.Check("Tubo PVC 1/2 plg 6 m", "Tubo PVC 6 m")
		assert.Equal(t, []string{"Missing critical measurement: '1/2 plg'"}, issues)
	})

	t.Run("ShouldNotMistakeWordsForUnits", func(t *testing.T) {
		assert.Equal(t, []string{"Missing critical measurement: '5m'"}, q.Check("Manguera 5m", "Juego de 5 mangueras"))
		assert.Equal(t, []string{"Missing critical measurement: '5m'"}, q.Check("Cable 5m", "Cable 5mm"))
		assert.Empty(t, q.Check("Juego 5 mangueras", "Juego de mangueras"))
		assert.Empty(t, q.Check("Manguera 5m", "Manguera 5 m Verde"))
	})

	t.Run("ShouldNormalizeHorsepower", func(t *testing.T) {
		assert.Empty(t, q.Check("MOTOR 2Hp", "Motor 2 hp"))
	})

	t.Run("ShouldAccumulateAcrossChecks", func(t *testing.T) {
		issues := q.Check("BOMBA A.SUCIA 1HP", "Bomba Neumático para Agua Sucia")
		require.Len(t, issues, 3)
		assert.Contains(t, issues[0], "Incorrectly added 'para'")
		assert.Equal(t, "Invented technical term: 'neumático'", issues[1])
		assert.Equal(t, "Missing critical measurement: '1HP'", issues[2])
	})

	t.Run("ShouldIgnoreEmptyInput", func(t *testing.T) {
		assert.Empty(t, q.Check("", "Bomba para plomería"))
		assert.Empty(t, q.Check("BOMBA", ""))
	})
}

func newTestProtocol(t *testing.T, c Corrector, enableAI bool, trail *[]string) *Protocol {
	t.Helper()
	n, err := textnorm.New(textnorm.DefaultLists())
	require.NoError(t, err)
	return NewProtocol(NewQuickValidator(DefaultRules()), c, enableAI,
		WithNormalizer(n),
		WithTransitionHook(func(event, _, _ string) { *trail = append(*trail, event) }),
	)
}

func TestProtocol(t *testing.T) {
	ctx := context.Background()

	t.Run("ShouldCorrectParaInsertion", func(t *testing.T) {
		var trail []string
		c := &fakeCorrector{result: CorrectionResult{
			IsValid:        false,
			CorrectedTitle: "Bomba Sumergible Agua Sucia 1 1/2 HP",
			IssuesFound:    []string{"Agregó 'para'"},
			RemovedPhrases: []string{"para"},
			Confidence:     ConfidenceHigh,
		}}
		p := newTestProtocol(t, c, true, &trail)
		triple := catalog.TitleTriple{
			SystemTitle: "Bomba Sumergible Agua Sucia 1 1/2 HP",
			LabelTitle:  "Bomba Sum Agua Sucia 1 1/2 HP",
			SEOTitle:    "Bomba Sumergible para Agua Sucia 1 1/2 HP",
		}
		out, meta := p.Run(ctx, Input{Original: "BOMBA SUM A.SUCIA 1 1/2HP", Triple: triple})

		assert.Equal(t, "Bomba Sumergible Agua Sucia 1 1/2 HP", out.SEOTitle)
		assert.Equal(t, triple.SystemTitle, out.SystemTitle)
		assert.Equal(t, triple.LabelTitle, out.LabelTitle)
		assert.Equal(t, catalog.MethodAIValidated, meta.Method)
		assert.Equal(t, catalog.StatusCorrected, meta.Status)
		assert.True(t, meta.Corrected)
		require.Len(t, meta.Issues, 2)
		assert.Contains(t, meta.Issues[0], "Incorrectly added 'para' with abbreviation")
		assert.Equal(t, "Agregó 'para'", meta.Issues[1])
		assert.Equal(t, []string{EventQuickCheck, EventEscalate, EventFinalize}, trail)
	})

	t.Run("ShouldRemoveGenericPhraseThroughCorrection", func(t *testing.T) {
		var trail []string
		c := &fakeCorrector{result: CorrectionResult{IsValid: false, CorrectedTitle: "Cinta de Teflón 1/2 plg x 7 m", Confidence: ConfidenceHigh}}
		p := newTestProtocol(t, c, true, &trail)
		out, meta := p.Run(ctx, Input{
			Original: "CINTA TEFLON 1/2X7M",
			Triple:   catalog.TitleTriple{SEOTitle: "Cinta de Teflón 1/2 plg x 7 m para sellado de roscas"},
		})
		assert.NotContains(t, out.SEOTitle, "para sellado")
		assert.Equal(t, catalog.StatusCorrected, meta.Status)
		assert.Equal(t, 1, c.calls)
	})

	t.Run("ShouldPassCleanTitlesWithoutCorrector", func(t *testing.T) {
		var trail []string
		c := &fakeCorrector{}
		p := newTestProtocol(t, c, true, &trail)
		out, meta := p.Run(ctx, Input{
			Original: "TUBO PVC 1/2 plg",
			Triple:   catalog.TitleTriple{SEOTitle: "Tubo de PVC 1/2 plg"},
		})
		assert.Equal(t, "Tubo de PVC 1/2 plg", out.SEOTitle)
		assert.Equal(t, catalog.MethodNone, meta.Method)
		assert.Equal(t, catalog.StatusPassed, meta.Status)
		assert.Empty(t, meta.Issues)
		assert.Zero(t, c.calls)
		assert.Equal(t, []string{EventQuickCheck, EventPass, EventFinalize}, trail)
	})

	t.Run("ShouldOnlyFlagWhenAIDisabled", func(t *testing.T) {
		var trail []string
		c := &fakeCorrector{}
		p := newTestProtocol(t, c, false, &trail)
		seo := "Cinta de Teflón 1/2 plg x 7 m para sellado de roscas"
		out, meta := p.Run(ctx, Input{Original: "CINTA TEFLON 1/2X7M", Triple: catalog.TitleTriple{SEOTitle: seo}})
		assert.Equal(t, seo, out.SEOTitle)
		assert.Equal(t, catalog.MethodRulesOnly, meta.Method)
		assert.Equal(t, catalog.StatusWarnings, meta.Status)
		assert.Len(t, meta.Issues, 2)
		assert.False(t, meta.Corrected)
		assert.Zero(t, c.calls)
		assert.Equal(t, []string{EventQuickCheck, EventFlag}, trail)
	})

	t.Run("ShouldDegradeOnCorrectorFailure", func(t *testing.T) {
		var trail []string
		c := &fakeCorrector{err: errors.New("boom")}
		p := newTestProtocol(t, c, true, &trail)
		seo := "Bomba Sumergible para Agua Sucia 1 1/2 HP"
		out, meta := p.Run(ctx, Input{Original: "BOMBA SUM A.SUCIA 1 1/2HP", Triple: catalog.TitleTriple{SEOTitle: seo}})
		assert.Equal(t, seo, out.SEOTitle)
		assert.Equal(t, catalog.MethodAIValidated, meta.Method)
		assert.Equal(t, catalog.StatusWarnings, meta.Status)
		assert.False(t, meta.Corrected)
		assert.Contains(t, meta.Issues, "Validation error: boom")
	})

	t.Run("ShouldKeepTextWhenCorrectorAgrees", func(t *testing.T) {
		var trail []string
		c := &fakeCorrector{result: CorrectionResult{IsValid: true, IssuesFound: []string{}, Confidence: ConfidenceMedium}}
		p := newTestProtocol(t, c, true, &trail)
		seo := "Bomba Sumergible para Agua Sucia 1 1/2 HP"
		out, meta := p.Run(ctx, Input{Original: "BOMBA SUM A.SUCIA 1 1/2HP", Triple: catalog.TitleTriple{SEOTitle: seo}})
		assert.Equal(t, seo, out.SEOTitle)
		assert.Equal(t, catalog.StatusPassedWithWarnings, meta.Status)
		assert.Len(t, meta.Issues, 1)
	})

	t.Run("ShouldNotCountIdenticalCorrection", func(t *testing.T) {
		var trail []string
		seo := "Bomba Sumergible para Agua Sucia 1 1/2 HP"
		c := &fakeCorrector{result: CorrectionResult{IsValid: false, CorrectedTitle: seo}}
		p := newTestProtocol(t, c, true, &trail)
		_, meta := p.Run(ctx, Input{Original: "BOMBA SUM A.SUCIA 1 1/2HP", Triple: catalog.TitleTriple{SEOTitle: seo}})
		assert.Equal(t, catalog.StatusWarnings, meta.Status)
		assert.False(t, meta.Corrected)
	})

	t.Run("ShouldTreatMissingCorrectorAsRulesOnly", func(t *testing.T) {
		p := NewProtocol(NewQuickValidator(DefaultRules()), nil, true)
		assert.False(t, p.AIEnabled())
		_, meta := p.Run(ctx, Input{Original: "CINTA TEFLON 1/2X7M", Triple: catalog.TitleTriple{SEOTitle: "Cinta para plomería"}})
		assert.Equal(t, catalog.MethodRulesOnly, meta.Method)
	})
}

func TestCorrectionFailure(t *testing.T) {
	r := CorrectionFailure("Bomba", errors.New("timeout"))
	assert.False(t, r.IsValid)
	assert.Equal(t, "Bomba", r.CorrectedTitle)
	assert.Equal(t, []string{"Validation error: timeout"}, r.IssuesFound)
	assert.Equal(t, ConfidenceLow, r.Confidence)
}
