package textnorm

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/callmeahab/catalog-titles/internal/catalog"
)

var (
	quantityPattern    = regexp.MustCompile(`^\d+(?:[.,/]\d+)*(?:"|\p{L}{1,4})?$`)
	measureUnitPattern = regexp.MustCompile(`^(?i:plg|pulg|pulgadas?|"|hp|w|v|a|amp|kg|g|lb|lbs|l|ml|gal|m|mm|cm|mts?|lpm|gpm|psi|oz)$`)
)

// segment is a run of words Shorten keeps or drops as a whole. A measurement
// such as "1 1/2 HP" or "1/2 plg x 7 m" is one segment.
type segment struct {
	words   []string
	measure bool
}

func (s segment) connector() bool {
	if s.measure || len(s.words) != 1 {
		return false
	}
	_, ok := connectorWords[strings.ToLower(strings.Trim(s.words[0], ",;:-/"))]
	return ok
}

func segmentWords(words []string) []segment {
	var segs []segment
	for i := 0; i < len(words); {
		if !quantityPattern.MatchString(words[i]) {
			segs = append(segs, segment{words: words[i : i+1]})
			i++
			continue
		}
		j := i + 1
		for j < len(words) && quantityPattern.MatchString(words[j]) && !measureUnitPattern.MatchString(words[j]) {
			j++
		}
		if j < len(words) && measureUnitPattern.MatchString(words[j]) {
			j++
		}
		segs = append(segs, segment{words: words[i:j], measure: true})
		i = j
	}
	// "1/2 plg x 7 m" stays together
	for i := 0; i+2 < len(segs); i++ {
		if segs[i].measure && segs[i+2].measure && len(segs[i+1].words) == 1 && strings.EqualFold(segs[i+1].words[0], "x") {
			merged := append(append(append([]string{}, segs[i].words...), "x"), segs[i+2].words...)
			segs = append(segs[:i], append([]segment{{words: merged, measure: true}}, segs[i+3:]...)...)
			i--
		}
	}
	return segs
}

func joinSegments(segs []segment) string {
	// trailing connectors and the first of two adjacent connectors read badly
	var kept []segment
	for i, s := range segs {
		if s.connector() && i+1 < len(segs) && segs[i+1].connector() {
			continue
		}
		kept = append(kept, s)
	}
	for len(kept) > 1 && kept[len(kept)-1].connector() {
		kept = kept[:len(kept)-1]
	}
	var words []string
	for _, s := range kept {
		words = append(words, s.words...)
	}
	return strings.TrimRight(strings.Join(words, " "), ",;:-/ ")
}

// Shorten makes text fit in max runes without splitting a measurement from
// its unit. Descriptive words go first, rightmost first, keeping the leading
// word. If measurements alone still overflow, whole segments are dropped from
// the end. A single word longer than max is truncated.
func Shorten(text string, max int) string {
	text = collapse(text)
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	segs := segmentWords(strings.Fields(text))

	trimmed := append([]segment(nil), segs...)
	for {
		drop := -1
		for i := len(trimmed) - 1; i > 0; i-- {
			if !trimmed[i].measure {
				drop = i
				break
			}
		}
		if drop < 0 {
			break
		}
		trimmed = append(trimmed[:drop], trimmed[drop+1:]...)
		if candidate := joinSegments(trimmed); candidate != "" && utf8.RuneCountInString(candidate) <= max {
			return candidate
		}
	}

	for len(segs) > 1 {
		segs = segs[:len(segs)-1]
		if candidate := joinSegments(segs); candidate != "" && utf8.RuneCountInString(candidate) <= max {
			return candidate
		}
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:max]))
}

// CleanTriple cleans the three titles of a triple and enforces the hard
// length limits. It returns notes describing any shortening and an SEO title
// outside the recommended range.
func (n *Normalizer) CleanTriple(t catalog.TitleTriple, brand string, mem *catalog.Memory) (catalog.TitleTriple, []string) {
	var notes []string
	out := t

	out.SystemTitle = n.Clean(t.SystemTitle, brand, mem)
	if utf8.RuneCountInString(out.SystemTitle) > catalog.MaxSystemTitle {
		out.SystemTitle = Shorten(out.SystemTitle, catalog.MaxSystemTitle)
		notes = append(notes, fmt.Sprintf("titulo_sistema shortened to %d characters", catalog.MaxSystemTitle))
	}

	out.LabelTitle = n.Clean(t.LabelTitle, brand, mem)
	switch {
	case out.LabelTitle == "" && utf8.RuneCountInString(out.SystemTitle) <= catalog.MaxLabelTitle:
		out.LabelTitle = out.SystemTitle
	case out.LabelTitle == "":
		out.LabelTitle = Shorten(out.SystemTitle, catalog.MaxLabelTitle)
		notes = append(notes, fmt.Sprintf("titulo_etiqueta shortened to %d characters", catalog.MaxLabelTitle))
	case utf8.RuneCountInString(out.LabelTitle) > catalog.MaxLabelTitle:
		if utf8.RuneCountInString(out.SystemTitle) <= catalog.MaxLabelTitle {
			out.LabelTitle = out.SystemTitle
		} else {
			out.LabelTitle = Shorten(out.LabelTitle, catalog.MaxLabelTitle)
		}
		notes = append(notes, fmt.Sprintf("titulo_etiqueta shortened to %d characters", catalog.MaxLabelTitle))
	}

	out.SEOTitle = n.Clean(t.SEOTitle, brand, mem)
	if l := utf8.RuneCountInString(out.SEOTitle); l < catalog.MinSEOTitle || l > catalog.MaxSEOTitle {
		notes = append(notes, fmt.Sprintf("titulo_seo has %d characters, recommended %d-%d", l, catalog.MinSEOTitle, catalog.MaxSEOTitle))
	}
	return out, notes
}
