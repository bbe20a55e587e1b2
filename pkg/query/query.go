// Package query answers questions about a built word index. An Index is read-only and safe for
// concurrent use.
package query

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/japaniel/livyfreq/pkg/db"
	"github.com/japaniel/livyfreq/pkg/livy"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// ErrIndexNotReady is returned when there is no usable index at the given path: the file is
// missing, was never migrated, or holds no books.
var ErrIndexNotReady = errors.New("word index not built yet")

const (
	DefaultPositionLimit = 100
	DefaultSearchLimit   = 20
	DefaultMinCount      = 10
	// MaxCompareWords caps how many words Compare takes.
	MaxCompareWords = 5
)

// Index is an open, read-only word index.
type Index struct {
	db   *sql.DB
	path string
	// Logger receives a debug line per query and the reason an index was rejected.
	Logger *logrus.Entry
}

// Info describes the build that produced an index.
type Info struct {
	Path          string
	BuildID       string
	BuiltAt       string
	SchemaVersion string
	MinWordFreq   string
}

// Open opens the index at path for reading, logging through the standard logrus logger.
func Open(path string) (*Index, error) {
	return OpenWithLogger(path, nil)
}

// OpenWithLogger is Open with a caller supplied logger. A nil logger means the standard one.
func OpenWithLogger(path string, logger *logrus.Entry) (*Index, error) {
	if logger == nil {
		logger = logrus.WithField("component", "query")
	}
	logger = logger.WithField("path", path)
	idx, err := open(path, logger)
	if err != nil {
		if errors.Is(err, ErrIndexNotReady) {
			logger.WithError(err).Debug("index not ready")
		} else {
			logger.WithError(err).Warn("failed to open index")
		}
		return nil, err
	}
	logger.Debug("index opened")
	return idx, nil
}

func open(path string, logger *logrus.Entry) (*Index, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s does not exist", ErrIndexNotReady, path)
		}
		return nil, err
	}
	conn, err := sql.Open("sqlite3", db.ReadOnlyDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	idx := &Index{db: conn, path: path, Logger: logger}
	if err := idx.checkReady(context.Background()); err != nil {
		conn.Close()
		return nil, err
	}
	return idx, nil
}

func (x *Index) checkReady(ctx context.Context) error {
	var tables int
	err := x.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('books', 'word_frequencies', 'word_stats', 'snippets', 'index_meta')`,
	).Scan(&tables)
	if err != nil {
		return fmt.Errorf("inspect index %s: %w", x.path, err)
	}
	if tables < 5 {
		return fmt.Errorf("%w: %s has no index schema", ErrIndexNotReady, x.path)
	}
	version, err := db.GetMeta(ctx, x.db, "schema_version")
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != db.SchemaVersion {
		return fmt.Errorf("%w: %s has schema version %q, want %q", ErrIndexNotReady, x.path, version, db.SchemaVersion)
	}
	n, err := db.CountBooks(ctx, x.db)
	if err != nil {
		return fmt.Errorf("count books: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s has no books", ErrIndexNotReady, x.path)
	}
	return nil
}

// Close releases the database handle.
func (x *Index) Close() error {
	return x.db.Close()
}

// Path returns the file the index was opened from.
func (x *Index) Path() string { return x.path }

// normalizeInput maps user input onto index keys: trimmed, diacritics replaced, lowercased,
// the same normalization the tokenizer applies when counting.
func normalizeInput(s string) string {
	return livy.NormalizeWord(strings.TrimSpace(s))
}

// observe logs the outcome of one query.
func (x *Index) observe(op, arg string, start time.Time, results int, err error) {
	entry := x.Logger.WithFields(logrus.Fields{
		"op":      op,
		"arg":     arg,
		"elapsed": time.Since(start),
	})
	if err != nil {
		entry.WithError(err).Warn("query failed")
		return
	}
	entry.WithField("results", results).Debug("query")
}

// FrequenciesForWord returns the count and relative frequency of word in every book, in
// sequence order. Books without the word are included with zeros.
func (x *Index) FrequenciesForWord(ctx context.Context, word string) ([]db.BookFrequency, error) {
	start := time.Now()
	word = normalizeInput(word)
	out, err := db.FrequenciesForWord(ctx, x.db, word)
	x.observe("frequencies", word, start, len(out), err)
	if err != nil {
		return nil, fmt.Errorf("frequencies for %q: %w", word, err)
	}
	return out, nil
}

// SnippetsForWord returns the stored contexts of word ordered by book sequence, then position.
func (x *Index) SnippetsForWord(ctx context.Context, word string) ([]db.BookSnippet, error) {
	start := time.Now()
	word = normalizeInput(word)
	out, err := db.SnippetsForWord(ctx, x.db, word)
	x.observe("snippets", word, start, len(out), err)
	if err != nil {
		return nil, fmt.Errorf("snippets for %q: %w", word, err)
	}
	return out, nil
}

// WordsByPosition lists words with at least minCount occurrences ordered by mean position,
// earliest first when ascending. Non-positive minCount and limit use the defaults.
func (x *Index) WordsByPosition(ctx context.Context, ascending bool, minCount, limit int) ([]db.WordStat, error) {
	if minCount <= 0 {
		minCount = DefaultMinCount
	}
	if limit <= 0 {
		limit = DefaultPositionLimit
	}
	start := time.Now()
	out, err := db.WordsByPosition(ctx, x.db, ascending, minCount, limit)
	x.observe("position", fmt.Sprintf("asc=%t min=%d", ascending, minCount), start, len(out), err)
	if err != nil {
		return nil, fmt.Errorf("words by position: %w", err)
	}
	return out, nil
}

// SearchWords returns up to limit words starting with prefix, most frequent first.
func (x *Index) SearchWords(ctx context.Context, prefix string, limit int) ([]string, error) {
	prefix = normalizeInput(prefix)
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	start := time.Now()
	out, err := db.SearchWords(ctx, x.db, prefix, limit)
	x.observe("search", prefix, start, len(out), err)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", prefix, err)
	}
	return out, nil
}

// WordSeries is the per-book frequency of one word, in book sequence order.
type WordSeries struct {
	Word        string
	Frequencies []db.BookFrequency
}

// Total is the corpus count of the word.
func (w WordSeries) Total() int {
	n := 0
	for _, f := range w.Frequencies {
		n += f.Count
	}
	return n
}

// ParseWordList splits a comma or whitespace separated list into normalized words, dropping
// empty entries and duplicates and keeping at most MaxCompareWords.
func ParseWordList(list string) []string {
	fields := strings.FieldsFunc(list, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	seen := map[string]bool{}
	out := make([]string, 0, MaxCompareWords)
	for _, f := range fields {
		w := normalizeInput(f)
		if w == "" || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
		if len(out) == MaxCompareWords {
			break
		}
	}
	return out
}

// Compare returns the per-book frequencies of up to MaxCompareWords words, in the given order.
// Words beyond the cap are ignored.
func (x *Index) Compare(ctx context.Context, words []string) ([]WordSeries, error) {
	out := make([]WordSeries, 0, len(words))
	seen := map[string]bool{}
	for _, w := range words {
		w = normalizeInput(w)
		if w == "" || seen[w] {
			continue
		}
		if len(out) == MaxCompareWords {
			break
		}
		seen[w] = true
		freqs, err := x.FrequenciesForWord(ctx, w)
		if err != nil {
			return nil, err
		}
		out = append(out, WordSeries{Word: w, Frequencies: freqs})
	}
	return out, nil
}

// Stats returns the corpus totals.
func (x *Index) Stats(ctx context.Context) (db.CorpusStats, error) {
	st, err := db.GetCorpusStats(ctx, x.db)
	if err != nil {
		return st, fmt.Errorf("corpus stats: %w", err)
	}
	return st, nil
}

// Info returns the build metadata stored in the index.
func (x *Index) Info(ctx context.Context) (Info, error) {
	info := Info{Path: x.path}
	fields := []struct {
		key string
		dst *string
	}{
		{"build_id", &info.BuildID},
		{"built_at", &info.BuiltAt},
		{"schema_version", &info.SchemaVersion},
		{"min_word_freq", &info.MinWordFreq},
	}
	for _, f := range fields {
		v, err := db.GetMeta(ctx, x.db, f.key)
		if err != nil {
			return info, fmt.Errorf("read %s: %w", f.key, err)
		}
		*f.dst = v
	}
	return info, nil
}
