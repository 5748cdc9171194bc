package pdfproc

import (
	"strings"
	"unicode"

	anyascii "github.com/anyascii/go"

	"github.com/docshield/redactor/internal/document"
	"github.com/docshield/redactor/internal/geometry"
)

// normalizeWords prepares text for exact-match comparison: punctuation is
// transliterated to its closest ASCII form (curly apostrophes become '),
// everything is lowercased, and each word is stripped of surrounding
// punctuation and whitespace.
func normalizeWords(text string) []string {
	var b strings.Builder
	for _, r := range text {
		if unicode.IsPunct(r) {
			if ascii := anyascii.Transliterate(string(r)); ascii != "" {
				b.WriteString(ascii)
				continue
			}
		}
		b.WriteRune(r)
	}

	var words []string
	for _, word := range strings.Split(strings.ToLower(b.String()), " ") {
		word = strings.TrimSpace(word)
		word = strings.Trim(word, punctuation)
		if word != "" {
			words = append(words, word)
		}
	}
	return words
}

const punctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// isFullMatch reports whether the text found at rect is an exact occurrence
// of term rather than a partial hit inside a longer word. The rect is widened
// by a quarter character on each side so a surrounding word leaks into view:
// searching "he" inside "the" reads back "the" and is rejected. The text
// found at the widened rect is also returned for line-break stitching.
func isFullMatch(page document.Page, term string, rect geometry.Rect) (bool, string) {
	termWords := normalizeWords(term)
	normalizedTerm := strings.Join(termWords, " ")

	widened := rect
	if len(term) > 0 {
		quarterChar := rect.Width() / float64(len(term)) / 4
		widened = rect.Expand(quarterChar, 0)
	}
	actual := strings.TrimSpace(page.TextAt(widened))
	foundWords := normalizeWords(actual)

	// Multi-word terms slide a window of the same word count over the found
	// text; single words compare directly.
	var candidates []string
	if n := len(termWords); n > 1 && len(foundWords) >= n {
		for i := 0; i+n <= len(foundWords); i++ {
			candidates = append(candidates, strings.Join(foundWords[i:i+n], " "))
		}
	} else {
		candidates = foundWords
	}

	for _, candidate := range candidates {
		if normalizedTerm == candidate {
			return true, actual
		}
		// A possessive suffix on the found text is ignorable.
		if trimmed, ok := strings.CutSuffix(candidate, "'s"); ok && normalizedTerm == trimmed {
			return true, actual
		}
	}
	return false, actual
}

// stitchesAcrossBreak checks whether term is split over a line break: the
// longest leading sub-phrase of the term must sit at the end of the current
// rect's text, and the remainder must be a full match at the next candidate's
// rect. Returns false when the term fits entirely in the current rect or no
// leading sub-phrase is present.
func stitchesAcrossBreak(term, textAtRect string, nextPage document.Page, nextRect geometry.Rect) bool {
	words := strings.Split(term, " ")

	var head string
	for len(words) > 0 {
		head = strings.Join(words, " ")
		if strings.Contains(textAtRect, head) {
			break
		}
		words = words[:len(words)-1]
	}
	if len(words) == 0 || head == term {
		return false
	}

	remainder := strings.TrimSpace(strings.Replace(term, head, "", 1))
	ok, _ := isFullMatch(nextPage, remainder, nextRect)
	return ok
}
