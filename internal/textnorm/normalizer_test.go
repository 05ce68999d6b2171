package textnorm

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callmeahab/catalog-titles/internal/catalog"
)

func newNormalizer(t *testing.T) *Normalizer {
	t.Helper()
	n, err := New(DefaultLists())
	require.NoError(t, err)
	return n
}

func TestNormalizeTaxValue(t *testing.T) {
	assert.Equal(t, "PLOMERIA", NormalizeTaxValue("Plomeria (0024)"))
	assert.Equal(t, "TUBOS Y CONEXIONES", NormalizeTaxValue("  Tubos y conexiones (A1) (B2) "))
	assert.Equal(t, "", NormalizeTaxValue("(0001)"))
}

func TestApplyTransformations(t *testing.T) {
	n := newNormalizer(t)

	t.Run("ShouldOnlyCollapseWhitespaceWithEmptyMemory", func(t *testing.T) {
		assert.Equal(t, "Tubo 1/2 pulgadas", n.ApplyTransformations("  Tubo   1/2\tpulgadas ", catalog.NewMemory()))
		assert.Equal(t, "a b", n.ApplyTransformations("a   b", nil))
	})

	t.Run("ShouldReplaceSingularAndPlural", func(t *testing.T) {
		mem := catalog.NewMemory(catalog.MemoryEntry{Original: "pulgada", Replacement: "plg"})
		assert.Equal(t, "Tubo 1/2 plg cobre", n.ApplyTransformations("Tubo 1/2 pulgadas cobre", mem))
		assert.Equal(t, "Tubo 1/2 plg", n.ApplyTransformations("Tubo 1/2 PULGADA", mem))
		assert.Equal(t, "Tubo pulgadasx", n.ApplyTransformations("Tubo pulgadasx", mem))
	})

	t.Run("ShouldRespectUnicodeWordBoundaries", func(t *testing.T) {
		mem := catalog.NewMemory(catalog.MemoryEntry{Original: "tubería", Replacement: "tub"})
		assert.Equal(t, "tub cobre", n.ApplyTransformations("Tubería cobre", mem))
		assert.Equal(t, "subtubería cobre", n.ApplyTransformations("subtubería cobre", mem))
	})

	t.Run("ShouldCascadeInInsertionOrder", func(t *testing.T) {
		mem := catalog.NewMemory(
			catalog.MemoryEntry{Original: "pulgadas", Replacement: "pulg"},
			catalog.MemoryEntry{Original: "pulg", Replacement: "plg"},
		)
		assert.Equal(t, "Codo 2 plg", n.ApplyTransformations("Codo 2 pulgadas", mem))
	})
}

func TestDeShout(t *testing.T) {
	n := newNormalizer(t)

	assert.Equal(t, "Valvula PVC 1/2 PLG", n.DeShout("VALVULA PVC 1/2 PLG"))
	assert.Equal(t, "Foco LED (Nuevo),", n.DeShout("FOCO LED (NUEVO),"))
	assert.Equal(t, "Tubo X mm", n.DeShout("TUBO X mm"))
	assert.Equal(t, "Bomba Mixed", n.DeShout("Bomba Mixed"))
	assert.Equal(t, "Llave Ángulo", n.DeShout("LLAVE ÁNGULO"))
	assert.True(t, n.IsAcronym("plg"))
	assert.True(t, n.IsAcronym("PLG"))
	assert.False(t, n.IsAcronym("BOMBA"))
}

func TestRemoveBrandOccurrences(t *testing.T) {
	assert.Equal(t, "Taladro 1/2", RemoveBrandOccurrences("Taladro TRUPER truper Truper 1/2", "Truper"))
	assert.Equal(t, "a b", RemoveBrandOccurrences("  a   b ", ""))
	assert.Equal(t, "a b", RemoveBrandOccurrences("a b", "   "))
}

func TestRemoveForbiddenTerms(t *testing.T) {
	n := newNormalizer(t)

	assert.Equal(t, "Aceite multiuso", n.RemoveForbiddenTerms("Aceite Penetrante multiuso"))
	assert.Equal(t, "Sello", n.RemoveForbiddenTerms("Sello HIDRÁULICO"))
	assert.Equal(t, "Pegamento transparente", n.RemoveForbiddenTerms("Pegamento epóxico transparente"))
	assert.Equal(t, "Aceites penetrantes", n.RemoveForbiddenTerms("Aceites penetrantes"))
}

func TestRemoveGenericParaPhrases(t *testing.T) {
	n := newNormalizer(t)

	assert.Equal(t, "Cinta teflon", n.RemoveGenericParaPhrases("Cinta teflon para plomería"))
	assert.Equal(t, "Cinta teflon", n.RemoveGenericParaPhrases("Cinta teflon PARA PLOMERIA"))
	assert.Equal(t, "Valvula para gas", n.RemoveGenericParaPhrases("Valvula para gas"))
	assert.Equal(t, "Llave para plomería exterior", n.RemoveGenericParaPhrases("Llave para plomería exterior"))
	assert.Equal(t, "Tubo", n.RemoveGenericParaPhrases("Tubo para hogar para plomería"))
}

func TestNormalizeUnits(t *testing.T) {
	n := newNormalizer(t)

	cases := map[string]string{
		"Bomba 40 litros por minuto": "Bomba 40 L/min",
		"Bomba 30 Lts/min":           "Bomba 30 L/min",
		"Bomba 30 l / min":           "Bomba 30 L/min",
		"Manguera 10 metros":         "Manguera 10 m",
		"Escalera 5 m altura":        "Escalera 5 m",
		"Bomba 1/2hp":                "Bomba 1/2 HP",
		"Motor 2.5hp":                "Motor 2.5 HP",
		"Motor 3 Hp":                 "Motor 3 HP",
	}
	for in, want := range cases {
		assert.Equal(t, want, n.NormalizeUnits(in), in)
	}
}

func TestClean(t *testing.T) {
	n := newNormalizer(t)

	t.Run("ShouldRunStepsInOrder", func(t *testing.T) {
		got := n.Clean("BOMBA SUMERGIBLE TRUPER 1/2HP para plomería", "Truper", nil)
		assert.Equal(t, "Bomba Sumergible 1/2 HP", got)
	})

	t.Run("ShouldNormalizeShoutedUnits", func(t *testing.T) {
		assert.Equal(t, "Bomba Periferica 40 L/min", n.Clean("BOMBA PERIFERICA 40 LITROS POR MINUTO", "", nil))
	})

	t.Run("ShouldComposeToNFC", func(t *testing.T) {
		assert.Equal(t, "Cinta Téflon", n.Clean("Cinta Téflon", "", nil))
	})

	t.Run("ShouldSkipUnitsWhenDisabled", func(t *testing.T) {
		raw, err := New(DefaultLists(), WithUnitNormalization(false))
		require.NoError(t, err)
		assert.Equal(t, "Manguera 10 metros", raw.Clean("Manguera 10 metros", "", nil))
	})

	t.Run("ShouldBeIdempotent", func(t *testing.T) {
		mem := catalog.NewMemory(catalog.MemoryEntry{Original: "pulgadas", Replacement: "plg"})
		inputs := []string{
			"BOMBA SUMERGIBLE TRUPER 1/2HP para plomería",
			"Aceite Penetrante WD-40 para el hogar",
			"Cinta de Teflón 1/2 plg x 7 m para sellado de roscas",
			"MANGUERA 10 METROS",
			"Tubo 1/2 PULGADAS",
			"Bomba 40 litros por minuto 1 1/2 HP",
			"BOMBA PERIFERICA 40 LITROS POR MINUTO",
		}
		for _, in := range inputs {
			once := n.Clean(in, "Truper", mem)
			assert.Equal(t, once, n.Clean(once, "Truper", mem), in)
		}
	})

	t.Run("ShouldReachFixedPointWhenTermRemovalExposesKey", func(t *testing.T) {
		mem := catalog.NewMemory(catalog.MemoryEntry{Original: "tubo pvc", Replacement: "Tubo PVC Cédula 40"})
		once := n.Clean("tubo hidráulico pvc", "", mem)
		assert.Equal(t, "Tubo PVC Cédula 40", once)
		assert.Equal(t, once, n.Clean(once, "", mem))
	})

	t.Run("ShouldUseInjectedLists", func(t *testing.T) {
		custom, err := New(Lists{ForbiddenTerms: []string{"magico"}})
		require.NoError(t, err)
		assert.Equal(t, "Aceite penetrante", custom.Clean("Aceite magico penetrante", "", nil))
	})

	t.Run("ShouldRejectBadSuffixPattern", func(t *testing.T) {
		_, err := New(Lists{GenericSuffixes: []string{"(unclosed"}})
		assert.Error(t, err)
	})
}

func TestShorten(t *testing.T) {
	assert.Equal(t, "Bomba Sumergible Agua Sucia 1 1/2 HP",
		Shorten("Bomba Sumergible Agua Sucia 1 1/2 HP Acero Inoxidable", 40))
	assert.Equal(t, "Super", Shorten("Supercalifragilistico", 5))
	assert.Equal(t, "Tubo corto", Shorten("Tubo corto", 36))

	t.Run("ShouldKeepMeasurementWithUnit", func(t *testing.T) {
		assert.Equal(t, "Abrazadera Sin Fin Acero 3/4 plg", Shorten("Abrazadera Sin Fin Acero Inoxidable 3/4 plg", 40))
		assert.Equal(t, "Cople de 1/2 plg", Shorten("Cople de cobre con rosca de 1/2 plg", 20))
		assert.Equal(t, "Cinta de Teflón 1/2 plg x 7 m", Shorten("Cinta de Teflón Blanca 1/2 plg x 7 m", 29))
	})

	t.Run("ShouldDropWholeMeasurementsWhenOnlyTheyRemain", func(t *testing.T) {
		assert.Equal(t, "Tubo 1/2 plg", Shorten("Tubo 1/2 plg 6 m", 14))
	})
}

func TestCleanTriple(t *testing.T) {
	n := newNormalizer(t)

	t.Run("ShouldReuseSystemTitleForLabel", func(t *testing.T) {
		out, notes := n.CleanTriple(catalog.TitleTriple{
			SystemTitle: "Bomba Sumergible Agua Sucia 1 1/2 HP Acero Inoxidable",
			SEOTitle:    "Bomba Sumergible",
			Notes:       "ok",
		}, "", nil)
		assert.Equal(t, "Bomba Sumergible Agua Sucia 1 1/2 HP", out.SystemTitle)
		assert.Equal(t, out.SystemTitle, out.LabelTitle)
		assert.Equal(t, "ok", out.Notes)
		assert.Len(t, notes, 2)
	})

	t.Run("ShouldShortenLongLabel", func(t *testing.T) {
		out, notes := n.CleanTriple(catalog.TitleTriple{
			SystemTitle: "Abrazadera Sin Fin Acero Inoxidable 3/4 plg",
			LabelTitle:  "Abrazadera Sin Fin Acero Inoxidable 3/4 plg",
			SEOTitle:    "Abrazadera Sin Fin de Acero Inoxidable de 3/4 plg para Manguera",
		}, "", nil)
		assert.Equal(t, "Abrazadera Sin Fin Acero 3/4 plg", out.SystemTitle)
		assert.Equal(t, out.SystemTitle, out.LabelTitle)
		assert.LessOrEqual(t, utf8.RuneCountInString(out.SystemTitle), catalog.MaxSystemTitle)
		assert.LessOrEqual(t, utf8.RuneCountInString(out.LabelTitle), catalog.MaxLabelTitle)
		assert.Len(t, notes, 2)
	})
}
