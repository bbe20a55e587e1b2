package livy

import (
	"strings"
)

// Version returns the current version of the package.
func Version() string { return "0.2.0" }

// diacritics maps every accented letter the tokenizer accepts to its plain form. Ligatures
// expand to two letters.
var diacritics = map[rune]string{
	'ā': "a", 'ē': "e", 'ī': "i", 'ō': "o", 'ū': "u",
	'Ā': "a", 'Ē': "e", 'Ī': "i", 'Ō': "o", 'Ū': "u",
	'à': "a", 'è': "e", 'ì': "i", 'ò': "o", 'ù': "u",
	'À': "a", 'È': "e", 'Ì': "i", 'Ò': "o", 'Ù': "u",
	'ë': "e", 'ï': "i", 'ü': "u",
	'Ë': "e", 'Ï': "i", 'Ü': "u",
	'æ': "ae", 'œ': "oe",
	'Æ': "ae", 'Œ': "oe",
}

// IsLatinLetter reports whether r can be part of a token: an ASCII letter or one of the
// accented letters in the normalization table.
func IsLatinLetter(r rune) bool {
	if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
		return true
	}
	_, ok := diacritics[r]
	return ok
}

// NormalizeWord replaces accented letters rune by rune and then lowercases the result.
// Normalizing an already normalized word returns it unchanged.
func NormalizeWord(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if rep, ok := diacritics[r]; ok {
			b.WriteString(rep)
			continue
		}
		b.WriteRune(r)
	}
	return strings.ToLower(b.String())
}

// Tokenizer splits text into maximal runs of Latin letters.
type Tokenizer struct {
	// Normalize strips diacritics and lowercases each token.
	Normalize bool
}

// NewTokenizer returns a normalizing tokenizer, the mode used to build the index.
func NewTokenizer() *Tokenizer {
	return &Tokenizer{Normalize: true}
}

// Tokenize returns the tokens of text in order. Punctuation, digits, whitespace and letters
// outside the Latin set are boundaries. Invalid UTF-8 decodes to U+FFFD and is a boundary too.
func (t *Tokenizer) Tokenize(text string) []string {
	tokens := make([]string, 0)
	start := -1
	flush := func(end int) {
		if start < 0 {
			return
		}
		tok := text[start:end]
		if t.Normalize {
			tok = NormalizeWord(tok)
		}
		tokens = append(tokens, tok)
		start = -1
	}

	for i, r := range text {
		if IsLatinLetter(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		flush(i)
	}
	flush(len(text))
	return tokens
}

var (
	normalizing = NewTokenizer()
	raw         = &Tokenizer{}
)

// Tokenize splits and normalizes text.
func Tokenize(text string) []string { return normalizing.Tokenize(text) }

// TokenizeRaw splits text keeping original case and diacritics.
func TokenizeRaw(text string) []string { return raw.Tokenize(text) }
