package textnorm

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// isWordRune mirrors a Unicode-aware \w.
func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}

// boundaryAt reports whether a \b assertion holds at byte offset i.
func boundaryAt(text string, i int) bool {
	before, after := false, false
	if i > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:i])
		before = isWordRune(r)
	}
	if i < len(text) {
		r, _ := utf8.DecodeRuneInString(text[i:])
		after = isWordRune(r)
	}
	return before != after
}

// replaceWholeWords replaces matches of re that sit on word boundaries at both
// ends. Go's \b is ASCII-only, which breaks on accented Spanish words, so the
// boundaries are checked here instead of in the pattern. When re has an
// optional trailing group (like a plural "s") and the long form fails the end
// boundary, the shorter form is tried. When repl extends the match and the
// text already reads as repl, ignoring case, the match is left alone.
func replaceWholeWords(text string, re *regexp.Regexp, repl string) string {
	var b strings.Builder
	pos, last := 0, 0
	changed := false
	for pos <= len(text) {
		loc := re.FindStringSubmatchIndex(text[pos:])
		if loc == nil {
			break
		}
		start, end := pos+loc[0], pos+loc[1]
		ok := end > start && boundaryAt(text, start) && boundaryAt(text, end)
		if !ok && end > start && len(loc) >= 4 && loc[2] >= 0 && loc[2] > loc[0] {
			alt := pos + loc[2]
			if boundaryAt(text, start) && boundaryAt(text, alt) {
				end, ok = alt, true
			}
		}
		if ok && len(repl) > end-start && hasFoldPrefix(text[start:], repl) && boundaryAt(text, start+len(repl)) {
			pos = start + len(repl)
			continue
		}
		if ok {
			b.WriteString(text[last:start])
			b.WriteString(repl)
			last, pos = end, end
			changed = true
			continue
		}
		// step one rune past the rejected match start
		_, size := utf8.DecodeRuneInString(text[start:])
		if size == 0 {
			break
		}
		pos = start + size
	}
	if !changed {
		return text
	}
	b.WriteString(text[last:])
	return b.String()
}

func hasFoldPrefix(s, prefix string) bool {
	return prefix != "" && len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

// collapse squeezes whitespace runs and trims the ends.
func collapse(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// isShouting reports whether s has cased letters and all of them are upper case.
func isShouting(s string) bool {
	hasUpper := false
	for _, r := range s {
		switch {
		case unicode.IsLower(r), unicode.IsTitle(r):
			return false
		case unicode.IsUpper(r):
			hasUpper = true
		}
	}
	return hasUpper
}
