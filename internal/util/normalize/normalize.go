// Package normalize implements the single deterministic text normalization
// function applied everywhere substring matching or retrieval tokenization
// occurs: NFC composition, typographic-character folding, lowercasing,
// whitespace collapse, trimming. Grounded on original_source/backend/app/
// utils/text_normalizer.py's TextNormalizer.normalize, with NFC delegated to
// golang.org/x/text instead of hand-rolled unicode category scanning.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// typographicReplacer folds the punctuation and space variants that differ
// only cosmetically between PDF-extracted text and LLM-emitted quotes.
var typographicReplacer = strings.NewReplacer(
	"“", `"`, "”", `"`, // left/right double quotation mark
	"‘", "'", "’", "'", // left/right single quotation mark
	"«", `"`, "»", `"`, // guillemets
	"–", "-", "—", "-", // en dash, em dash
	"−", "-", // minus sign
	" ", " ", // non-breaking space
	" ", " ", " ", " ", " ", " ", " ", " ",
	" ", " ", " ", " ", " ", " ", " ", " ",
	" ", " ", " ", " ", " ", " ", " ", " ",
	" ", " ", "　", " ",
)

// zeroWidth is the set of zero-width code points that survive NFC
// composition and would otherwise split a substring invisibly.
var zeroWidth = map[rune]bool{
	'​': true, // zero width space
	'‌': true, // zero width non-joiner
	'‍': true, // zero width joiner
	'⁠': true, // word joiner
	'\uFEFF': true, // byte order mark
}

// Text applies the deterministic normalization pipeline to s. The result
// satisfies Text(Text(s)) == Text(s) for all s.
func Text(s string) string {
	if s == "" {
		return ""
	}

	s = norm.NFC.String(s)
	s = typographicReplacer.Replace(s)
	s = dropZeroWidth(s)
	s = strings.ToLower(s)
	// Recompose: dropping a zero-width code point or lowercasing can leave a
	// base letter next to a combining mark that NFC composes.
	s = norm.NFC.String(s)
	s = collapseWhitespace(s)
	return strings.TrimSpace(s)
}

func dropZeroWidth(s string) string {
	return strings.Map(func(r rune) rune {
		if zeroWidth[r] {
			return -1
		}
		return r
	}, s)
}

// collapseWhitespace replaces every run of Unicode whitespace with a single
// ASCII space. Newlines and tabs collapse the same as runs of plain spaces.
func collapseWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inRun := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !inRun {
				b.WriteByte(' ')
				inRun = true
			}
			continue
		}
		inRun = false
		b.WriteRune(r)
	}
	return b.String()
}

// Tokenize splits already-normalized text into non-empty alphanumeric
// tokens, as used by the retriever for both indexing and queries.
// Callers must pass text through Text first.
func Tokenize(normalized string) []string {
	return strings.FieldsFunc(normalized, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
