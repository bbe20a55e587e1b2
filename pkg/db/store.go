package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"unicode/utf8"
)

// DBExecutor is an interface that allows methods to accept either *sql.DB or *sql.Tx
type DBExecutor interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// Querier is the context-aware read side, satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// InsertBook stores a book row.
func InsertBook(db DBExecutor, b Book) error {
	if strings.TrimSpace(b.BookID) == "" {
		return fmt.Errorf("book id must be non-empty")
	}
	_, err := db.Exec(
		`INSERT INTO books (book_id, title, sequence_index, total_words, unique_words) VALUES (?, ?, ?, ?, ?)`,
		b.BookID, b.Title, b.SequenceIndex, b.TotalWords, b.UniqueWords,
	)
	if err != nil {
		return fmt.Errorf("insert book %s: %w", b.BookID, err)
	}
	return nil
}

// InsertWordFrequency stores the count of a word in one book.
func InsertWordFrequency(db DBExecutor, wf WordFrequency) error {
	if wf.Count <= 0 {
		return fmt.Errorf("count must be positive for %q in %s, got %d", wf.Word, wf.BookID, wf.Count)
	}
	_, err := db.Exec(
		`INSERT INTO word_frequencies (word, book_id, count, relative_frequency) VALUES (?, ?, ?, ?)`,
		wf.Word, wf.BookID, wf.Count, wf.RelativeFrequency,
	)
	if err != nil {
		return fmt.Errorf("insert frequency %q/%s: %w", wf.Word, wf.BookID, err)
	}
	return nil
}

// InsertWordStat stores the corpus-wide statistics of a word.
func InsertWordStat(db DBExecutor, ws WordStat) error {
	_, err := db.Exec(
		`INSERT INTO word_stats (word, total_count, book_count, mean_position) VALUES (?, ?, ?, ?)`,
		ws.Word, ws.TotalCount, ws.BookCount, ws.MeanPosition,
	)
	if err != nil {
		return fmt.Errorf("insert word stat %q: %w", ws.Word, err)
	}
	return nil
}

// InsertSnippet stores a snippet and returns its id.
func InsertSnippet(db DBExecutor, s Snippet) (int64, error) {
	res, err := db.Exec(
		`INSERT INTO snippets (word, book_id, context, position_in_book) VALUES (?, ?, ?, ?)`,
		s.Word, s.BookID, s.Context, s.PositionInBook,
	)
	if err != nil {
		return 0, fmt.Errorf("insert snippet %q/%s: %w", s.Word, s.BookID, err)
	}
	return res.LastInsertId()
}

// SetMeta upserts a key in index_meta.
func SetMeta(db DBExecutor, key, value string) error {
	_, err := db.Exec(`INSERT INTO index_meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// GetMeta returns the value stored under key, or "" when it is not set.
func GetMeta(ctx context.Context, db Querier, key string) (string, error) {
	var v string
	err := db.QueryRowContext(ctx, `SELECT value FROM index_meta WHERE key = ?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return v, err
}

// CountBooks returns the number of rows in books.
func CountBooks(ctx context.Context, db Querier) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM books`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// FrequenciesForWord returns one row per book ordered by sequence index. Books without the
// word get a zero count and relative frequency.
func FrequenciesForWord(ctx context.Context, db Querier, word string) ([]BookFrequency, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT b.book_id, b.title, b.sequence_index,
		       COALESCE(wf.count, 0), COALESCE(wf.relative_frequency, 0.0)
		FROM books b
		LEFT JOIN word_frequencies wf ON wf.book_id = b.book_id AND wf.word = ?
		ORDER BY b.sequence_index`, word)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []BookFrequency{}
	for rows.Next() {
		var f BookFrequency
		if err := rows.Scan(&f.BookID, &f.Title, &f.SequenceIndex, &f.Count, &f.RelativeFrequency); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// SnippetsForWord returns the stored snippets of a word ordered by book sequence, then position.
func SnippetsForWord(ctx context.Context, db Querier, word string) ([]BookSnippet, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT b.book_id, b.title, b.sequence_index, s.context, s.position_in_book
		FROM snippets s
		JOIN books b ON b.book_id = s.book_id
		WHERE s.word = ?
		ORDER BY b.sequence_index, s.position_in_book`, word)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []BookSnippet{}
	for rows.Next() {
		var s BookSnippet
		if err := rows.Scan(&s.BookID, &s.Title, &s.SequenceIndex, &s.Context, &s.PositionInBook); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// WordsByPosition returns words with total_count >= minCount sorted by mean position.
func WordsByPosition(ctx context.Context, db Querier, ascending bool, minCount, limit int) ([]WordStat, error) {
	order := "DESC"
	if ascending {
		order = "ASC"
	}
	rows, err := db.QueryContext(ctx, `
		SELECT word, total_count, book_count, mean_position
		FROM word_stats
		WHERE total_count >= ?
		ORDER BY mean_position `+order+`, word ASC
		LIMIT ?`, minCount, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []WordStat{}
	for rows.Next() {
		var ws WordStat
		if err := rows.Scan(&ws.Word, &ws.TotalCount, &ws.BookCount, &ws.MeanPosition); err != nil {
			return nil, err
		}
		out = append(out, ws)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// SearchWords returns words starting with prefix, most frequent first. The prefix is matched
// as a key range so '%' and '_' are literal.
func SearchWords(ctx context.Context, db Querier, prefix string, limit int) ([]string, error) {
	upper := prefix + string(utf8.MaxRune)
	rows, err := db.QueryContext(ctx, `
		SELECT word FROM word_stats
		WHERE word >= ? AND word < ?
		ORDER BY total_count DESC, word ASC
		LIMIT ?`, prefix, upper, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var w string
		if err := rows.Scan(&w); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetCorpusStats returns book and word totals.
func GetCorpusStats(ctx context.Context, db Querier) (CorpusStats, error) {
	var st CorpusStats
	err := db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(total_words), 0) FROM books`).Scan(&st.Books, &st.TotalWords)
	if err != nil {
		return st, err
	}
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM word_stats`).Scan(&st.DistinctWords); err != nil {
		return st, err
	}
	return st, nil
}
