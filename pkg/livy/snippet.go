package livy

import (
	"strings"
	"unicode"
)

const (
	DefaultContextChars = 50
	DefaultMaxSnippets  = 5
	ellipsis            = "..."
)

// SnippetOptions bounds snippet extraction.
type SnippetOptions struct {
	ContextChars int // characters kept on each side of a match
	MaxSnippets  int // matches returned per word
}

// DefaultSnippetOptions returns the window and cap used when building the index.
func DefaultSnippetOptions() SnippetOptions {
	return SnippetOptions{ContextChars: DefaultContextChars, MaxSnippets: DefaultMaxSnippets}
}

func (o SnippetOptions) withDefaults() SnippetOptions {
	if o.ContextChars < 0 {
		o.ContextChars = DefaultContextChars
	}
	if o.MaxSnippets <= 0 {
		o.MaxSnippets = DefaultMaxSnippets
	}
	return o
}

// Snippet is a context window around one occurrence of a word.
type Snippet struct {
	Context  string
	Position int // character offset of the match start
}

// ExtractSnippets finds whole-word, case-insensitive occurrences of word in text and returns
// up to MaxSnippets context windows in document order. Diacritics are not stripped, so the
// word must appear literally (up to case).
func ExtractSnippets(text, word string, opts SnippetOptions) []Snippet {
	out := ExtractAll(text, []string{word}, opts)[word]
	if out == nil {
		return []Snippet{}
	}
	return out
}

// ExtractAll runs ExtractSnippets for many words in one pass over text. The result maps each
// word with at least one match to its snippets; words without matches are absent.
func ExtractAll(text string, words []string, opts SnippetOptions) map[string][]Snippet {
	opts = opts.withDefaults()
	out := make(map[string][]Snippet)

	wanted := make(map[string]string, len(words))
	for _, w := range words {
		if w == "" {
			continue
		}
		wanted[foldKey([]rune(w))] = w
	}
	if len(wanted) == 0 {
		return out
	}

	runes := []rune(text)
	n := len(runes)
	for i := 0; i < n; {
		if !isWordRune(runes[i]) {
			i++
			continue
		}
		j := i
		for j < n && isWordRune(runes[j]) {
			j++
		}
		// A whole-word match of a word made of word runes is exactly a maximal run.
		if w, ok := wanted[foldKey(runes[i:j])]; ok && len(out[w]) < opts.MaxSnippets {
			out[w] = append(out[w], window(runes, i, j, opts.ContextChars))
		}
		i = j
	}
	return out
}

func window(runes []rune, matchStart, matchEnd, ctx int) Snippet {
	start := matchStart - ctx
	if start < 0 {
		start = 0
	}
	end := matchEnd + ctx
	if end > len(runes) {
		end = len(runes)
	}
	context := string(runes[start:end])
	if start > 0 {
		context = ellipsis + context
	}
	if end < len(runes) {
		context = context + ellipsis
	}
	return Snippet{Context: context, Position: matchStart}
}

// isWordRune matches the \w class of a Unicode-aware regex word boundary.
func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}

// foldKey maps every rune to the smallest member of its case-folding orbit so that two
// strings have equal keys exactly when they are equal under simple case folding.
func foldKey(rs []rune) string {
	out := make([]rune, len(rs))
	for i, r := range rs {
		min := r
		for f := unicode.SimpleFold(r); f != r; f = unicode.SimpleFold(f) {
			if f < min {
				min = f
			}
		}
		out[i] = min
	}
	return string(out)
}

// Highlight wraps every whole-word, case-insensitive occurrence of word in text with mark,
// using the same word boundaries as ExtractSnippets. Text between matches is unchanged.
func Highlight(text, word string, mark func(string) string) string {
	target := foldKey([]rune(word))
	if target == "" || mark == nil {
		return text
	}
	runes := []rune(text)
	var b strings.Builder
	last := 0
	for i := 0; i < len(runes); {
		if !isWordRune(runes[i]) {
			i++
			continue
		}
		j := i
		for j < len(runes) && isWordRune(runes[j]) {
			j++
		}
		if foldKey(runes[i:j]) == target {
			b.WriteString(string(runes[last:i]))
			b.WriteString(mark(string(runes[i:j])))
			last = j
		}
		i = j
	}
	b.WriteString(string(runes[last:]))
	return b.String()
}
