package ingest

import (
	"errors"
	"fmt"
	"sort"

	"github.com/japaniel/livyfreq/pkg/db"
	"github.com/japaniel/livyfreq/pkg/livy"
)

// ErrInvalidManifest is returned when the books handed to the pipeline do not form a valid
// sequence: duplicate ids, duplicate or negative sequence indexes.
var ErrInvalidManifest = errors.New("invalid book manifest")

// ErrNoBooks is returned when there is nothing to index.
var ErrNoBooks = errors.New("no books to index")

// Document is the plain text of one book together with its place in the corpus.
type Document struct {
	BookID        string
	Title         string
	SequenceIndex int
	Text          string
}

// BookCounts is the per-book output of the counting stage.
type BookCounts struct {
	BookID        string
	Title         string
	SequenceIndex int
	TotalWords    int
	Counts        map[string]int
}

// UniqueWords is the number of distinct words in the book.
func (b BookCounts) UniqueWords() int { return len(b.Counts) }

// Result is the corpus-wide output of Aggregate. Books are ordered by sequence index,
// Frequencies by word then book sequence, and Stats by word.
type Result struct {
	Books       []db.Book
	Frequencies []db.WordFrequency
	Stats       []db.WordStat
	TotalWords  int
}

// CountBook tokenizes a document with the normalizing tokenizer and counts its words.
func CountBook(doc Document) BookCounts {
	tokens := livy.Tokenize(doc.Text)
	counts := make(map[string]int)
	for _, w := range tokens {
		counts[w]++
	}
	return BookCounts{
		BookID:        doc.BookID,
		Title:         doc.Title,
		SequenceIndex: doc.SequenceIndex,
		TotalWords:    len(tokens),
		Counts:        counts,
	}
}

// RelativeFrequency is count per 10,000 tokens. An empty book has relative frequency 0.
func RelativeFrequency(count, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(count) / float64(total) * 10000
}

// ValidateDocuments checks that book ids and sequence indexes are unique and non-negative.
func ValidateDocuments(docs []Document) error {
	ids := make(map[string]struct{}, len(docs))
	seqs := make(map[int]string, len(docs))
	for _, d := range docs {
		if d.BookID == "" {
			return fmt.Errorf("%w: empty book id", ErrInvalidManifest)
		}
		if d.SequenceIndex < 0 {
			return fmt.Errorf("%w: book %s has negative sequence index %d", ErrInvalidManifest, d.BookID, d.SequenceIndex)
		}
		if _, ok := ids[d.BookID]; ok {
			return fmt.Errorf("%w: duplicate book id %s", ErrInvalidManifest, d.BookID)
		}
		if other, ok := seqs[d.SequenceIndex]; ok {
			return fmt.Errorf("%w: books %s and %s share sequence index %d", ErrInvalidManifest, other, d.BookID, d.SequenceIndex)
		}
		ids[d.BookID] = struct{}{}
		seqs[d.SequenceIndex] = d.BookID
	}
	return nil
}

type wordAcc struct {
	total    int
	books    int
	weighted int64
	freqs    []db.WordFrequency
}

// Aggregate merges per-book counts into frequencies and word statistics. The input order does
// not matter: books are folded in sequence order and every output slice is sorted, so the result
// is identical whatever order the counting workers finished in.
func Aggregate(counts []BookCounts) Result {
	ordered := make([]BookCounts, len(counts))
	copy(ordered, counts)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].SequenceIndex != ordered[j].SequenceIndex {
			return ordered[i].SequenceIndex < ordered[j].SequenceIndex
		}
		return ordered[i].BookID < ordered[j].BookID
	})

	res := Result{Books: make([]db.Book, 0, len(ordered))}
	acc := make(map[string]*wordAcc)
	for _, bc := range ordered {
		res.Books = append(res.Books, db.Book{
			BookID:        bc.BookID,
			Title:         bc.Title,
			SequenceIndex: bc.SequenceIndex,
			TotalWords:    bc.TotalWords,
			UniqueWords:   bc.UniqueWords(),
		})
		res.TotalWords += bc.TotalWords
		for _, w := range sortedWords(bc.Counts) {
			c := bc.Counts[w]
			if c <= 0 {
				continue
			}
			a := acc[w]
			if a == nil {
				a = &wordAcc{}
				acc[w] = a
			}
			a.total += c
			a.books++
			a.weighted += int64(bc.SequenceIndex) * int64(c)
			a.freqs = append(a.freqs, db.WordFrequency{
				Word:              w,
				BookID:            bc.BookID,
				Count:             c,
				RelativeFrequency: RelativeFrequency(c, bc.TotalWords),
			})
		}
	}

	words := make([]string, 0, len(acc))
	for w := range acc {
		words = append(words, w)
	}
	sort.Strings(words)

	res.Stats = make([]db.WordStat, 0, len(words))
	for _, w := range words {
		a := acc[w]
		res.Stats = append(res.Stats, db.WordStat{
			Word:         w,
			TotalCount:   a.total,
			BookCount:    a.books,
			MeanPosition: float64(a.weighted) / float64(a.total),
		})
		res.Frequencies = append(res.Frequencies, a.freqs...)
	}
	if res.Frequencies == nil {
		res.Frequencies = []db.WordFrequency{}
	}
	return res
}

// Eligible returns the words whose corpus total reaches minFreq, in word order.
func (r Result) Eligible(minFreq int) []string {
	out := make([]string, 0)
	for _, s := range r.Stats {
		if s.TotalCount >= minFreq {
			out = append(out, s.Word)
		}
	}
	return out
}

func sortedWords(counts map[string]int) []string {
	words := make([]string, 0, len(counts))
	for w := range counts {
		words = append(words, w)
	}
	sort.Strings(words)
	return words
}
