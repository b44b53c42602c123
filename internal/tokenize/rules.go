package tokenize

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

var abbreviations = map[string]bool{
	"mr.": true, "mrs.": true, "ms.": true, "dr.": true, "prof.": true,
	"sr.": true, "jr.": true, "vs.": true, "etc.": true, "e.g.": true, "i.e.": true,
	"inc.": true, "ltd.": true, "co.": true, "corp.": true,
	"jan.": true, "feb.": true, "mar.": true, "apr.": true, "jun.": true, "jul.": true,
	"aug.": true, "sep.": true, "oct.": true, "nov.": true, "dec.": true,
	"st.": true, "rd.": true, "ave.": true, "fig.": true,
	"no.": true, "vol.": true, "pp.": true, "pg.": true, "approx.": true,
}

// Rules is a deterministic punctuation-based sentence splitter. A sentence
// ends at '.', '!' or '?' (plus trailing quotes/brackets) when followed by
// whitespace and an upper-case letter, digit or opening quote, unless the
// period belongs to an abbreviation, an initial or a decimal number.
type Rules struct{}

func NewRules() *Rules { return &Rules{} }

func (Rules) Tokenize(text string) ([]string, error) {
	text = normalize(text)
	if !isValidText(text) {
		return nil, fmt.Errorf("rules: input is not valid UTF-8")
	}

	runes := []rune(text)
	var parts []string
	start := 0
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if r == '.' && !periodEndsSentence(runes, i) {
			continue
		}
		end := i + 1
		for end < len(runes) && isCloser(runes[end]) {
			end++
		}
		if end < len(runes) && !startsSentence(runes, end) {
			continue
		}
		parts = append(parts, string(runes[start:end]))
		start = end
		i = end - 1
	}
	if start < len(runes) {
		parts = append(parts, string(runes[start:]))
	}
	return clean(parts), nil
}

func periodEndsSentence(runes []rune, i int) bool {
	if i == 0 {
		return true
	}
	prev := runes[i-1]

	// Decimal number such as 3.14.
	if unicode.IsDigit(prev) && i+1 < len(runes) && unicode.IsDigit(runes[i+1]) {
		return false
	}

	// Word before the period, including inner periods ("e.g.").
	ws := i
	for ws > 0 && (unicode.IsLetter(runes[ws-1]) || runes[ws-1] == '.') {
		ws--
	}
	word := string(runes[ws : i+1])
	if abbreviations[strings.ToLower(word)] {
		return false
	}

	// Single upper-case initial ("J. Smith").
	if utf8.RuneCountInString(word) == 2 && unicode.IsUpper(prev) {
		return false
	}
	return true
}

// startsSentence reports whether whitespace at pos is followed by text that
// can open a new sentence.
func startsSentence(runes []rune, pos int) bool {
	if !unicode.IsSpace(runes[pos]) {
		return false
	}
	for pos < len(runes) && unicode.IsSpace(runes[pos]) {
		pos++
	}
	if pos >= len(runes) {
		return true
	}
	next := runes[pos]
	return unicode.IsUpper(next) || unicode.IsDigit(next) || isOpener(next)
}

func isCloser(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '”', '’':
		return true
	}
	return false
}

func isOpener(r rune) bool {
	switch r {
	case '"', '\'', '(', '[', '“', '‘':
		return true
	}
	return false
}

func isValidText(s string) bool {
	return utf8.ValidString(s)
}
