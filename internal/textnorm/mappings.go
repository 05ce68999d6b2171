package textnorm

// Fixed vocabularies used by the title post-processing chain.
// Collected from reviewing generated titles for the hardware/plumbing catalog.

// BuildAcronymList returns tokens that must keep their casing.
func BuildAcronymList() []string {
	return []string{
		"PVC", "CPVC", "AC", "DC", "LED", "RGB",
		"IP", "UV", "USB", "HDMI",
		"mm", "cm", "m", "plg",
	}
}

// BuildForbiddenTerms returns technical terms the model tends to invent.
// Accented and unaccented spellings are both listed.
func BuildForbiddenTerms() []string {
	return []string{
		"penetrante",
		"hidráulico", "hidraulico",
		"neumático", "neumatico",
		"amortiguador",
		"dieléctrico", "dielektrico",
		"epóxico", "epoxico", "epóxica", "epoxica",
		"antigripante",
		"dieléctrica", "dielektrica",
	}
}

// BuildGenericSuffixPatterns returns generic "para ..." endings. Specific uses
// (para gas, para agua fría, para exterior) are intentionally absent.
func BuildGenericSuffixPatterns() []string {
	return []string{
		`\s*para\s+plomer[ií]a$`,
		`\s*para\s+tuber[ií]a$`,
		`\s*para\s+ferreter[ií]a$`,
		`\s*para\s+construcci[oó]n$`,
		`\s*para\s+el\s+hogar$`,
		`\s*para\s+hogar$`,
	}
}

// unitRule rewrites one spelling of a unit.
type unitRule struct {
	pattern string
	replace string
}

// buildUnitRules returns the semi-technical unit canonicalization table, in
// application order.
func buildUnitRules() []unitRule {
	return []unitRule{
		// flow rate
		{`(?i)litros\s+por\s+minuto`, "L/min"},
		{`(?i)litros\s*/\s*minuto`, "L/min"},
		{`(?i)litros\s+minuto`, "L/min"},
		{`(?i)lts?\.?\s*/\s*min`, "L/min"},
		{`(?i)l\s*/\s*minuto`, "L/min"},
		{`(?i)l\s*/\s*min\b`, "L/min"},
		// length
		{`(\d+)\s*[Mm]etros\b`, "${1} m"},
		{`m\s+[Aa]ltura`, "m"},
		// horsepower
		{`(\d+/\d+)\s*[Hh][Pp]\b`, "${1} HP"},
		{`(\d+(?:\.\d+)?)\s*[Hh][Pp]\b`, "${1} HP"},
	}
}

// connectorWords are dropped when shortening leaves them dangling at the end.
var connectorWords = map[string]struct{}{
	"de": {}, "del": {}, "con": {}, "para": {}, "x": {}, "y": {},
	"en": {}, "sin": {}, "a": {}, "e": {}, "o": {},
}
