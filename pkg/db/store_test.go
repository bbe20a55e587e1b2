package db

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	// Ensure single connection to avoid separate in-memory DBs per connection.
	db.SetMaxOpenConns(1)
	if err := InitDB(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// seedScenario loads the two-book corpus: book_a "arma virumque arma", book_b "arma cano".
func seedScenario(t *testing.T, db DBExecutor) {
	t.Helper()
	require.NoError(t, InsertBook(db, Book{BookID: "book_b", Title: "Book B", SequenceIndex: 5, TotalWords: 2, UniqueWords: 2}))
	require.NoError(t, InsertBook(db, Book{BookID: "book_a", Title: "Book A", SequenceIndex: 0, TotalWords: 3, UniqueWords: 2}))
	for _, wf := range []WordFrequency{
		{Word: "arma", BookID: "book_a", Count: 2, RelativeFrequency: 2.0 / 3 * 10000},
		{Word: "virumque", BookID: "book_a", Count: 1, RelativeFrequency: 1.0 / 3 * 10000},
		{Word: "arma", BookID: "book_b", Count: 1, RelativeFrequency: 5000},
		{Word: "cano", BookID: "book_b", Count: 1, RelativeFrequency: 5000},
	} {
		require.NoError(t, InsertWordFrequency(db, wf))
	}
	for _, ws := range []WordStat{
		{Word: "arma", TotalCount: 3, BookCount: 2, MeanPosition: 5.0 / 3},
		{Word: "virumque", TotalCount: 1, BookCount: 1, MeanPosition: 0},
		{Word: "cano", TotalCount: 1, BookCount: 1, MeanPosition: 5},
	} {
		require.NoError(t, InsertWordStat(db, ws))
	}
	for _, s := range []Snippet{
		{Word: "arma", BookID: "book_b", Context: "arma cano", PositionInBook: 0},
		{Word: "arma", BookID: "book_a", Context: "arma virumque arma", PositionInBook: 14},
		{Word: "arma", BookID: "book_a", Context: "arma virumque arma", PositionInBook: 0},
	} {
		_, err := InsertSnippet(db, s)
		require.NoError(t, err)
	}
}

func TestFrequenciesForWordZeroFills(t *testing.T) {
	db := setupTestDB(t)
	seedScenario(t, db)
	ctx := context.Background()

	got, err := FrequenciesForWord(ctx, db, "virumque")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "book_a", got[0].BookID)
	assert.Equal(t, 1, got[0].Count)
	assert.InDelta(t, 3333.33, got[0].RelativeFrequency, 0.01)
	assert.Equal(t, "book_b", got[1].BookID)
	assert.Equal(t, 0, got[1].Count)
	assert.Equal(t, 0.0, got[1].RelativeFrequency)

	missing, err := FrequenciesForWord(ctx, db, "troia")
	require.NoError(t, err)
	require.Len(t, missing, 2)
	for _, f := range missing {
		assert.Zero(t, f.Count)
	}
}

func TestSnippetsForWordOrdering(t *testing.T) {
	db := setupTestDB(t)
	seedScenario(t, db)

	got, err := SnippetsForWord(context.Background(), db, "arma")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []int{0, 14, 0}, []int{got[0].PositionInBook, got[1].PositionInBook, got[2].PositionInBook})
	assert.Equal(t, "book_a", got[0].BookID)
	assert.Equal(t, "book_b", got[2].BookID)

	none, err := SnippetsForWord(context.Background(), db, "cano")
	require.NoError(t, err)
	assert.Empty(t, none)
	assert.NotNil(t, none)
}

func TestWordsByPosition(t *testing.T) {
	db := setupTestDB(t)
	seedScenario(t, db)
	ctx := context.Background()

	asc, err := WordsByPosition(ctx, db, true, 1, 10)
	require.NoError(t, err)
	require.Len(t, asc, 3)
	assert.Equal(t, []string{"virumque", "arma", "cano"}, []string{asc[0].Word, asc[1].Word, asc[2].Word})

	desc, err := WordsByPosition(ctx, db, false, 1, 2)
	require.NoError(t, err)
	require.Len(t, desc, 2)
	assert.Equal(t, "cano", desc[0].Word)

	filtered, err := WordsByPosition(ctx, db, true, 2, 10)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "arma", filtered[0].Word)
	assert.InDelta(t, 1.667, filtered[0].MeanPosition, 0.001)
}

func TestSearchWordsPrefix(t *testing.T) {
	db := setupTestDB(t)
	seedScenario(t, db)
	require.NoError(t, InsertWordStat(db, WordStat{Word: "armis", TotalCount: 7, BookCount: 1, MeanPosition: 5}))
	ctx := context.Background()

	got, err := SearchWords(ctx, db, "ar", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"armis", "arma"}, got)

	limited, err := SearchWords(ctx, db, "ar", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"armis"}, limited)

	wildcard, err := SearchWords(ctx, db, "a%", 5)
	require.NoError(t, err)
	assert.Empty(t, wildcard)
}

func TestInsertWordFrequencyRejectsZeroCount(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, InsertBook(db, Book{BookID: "1", Title: "Book 1", SequenceIndex: 1}))
	assert.Error(t, InsertWordFrequency(db, WordFrequency{Word: "urbs", BookID: "1", Count: 0}))
}

func TestCorpusStatsAndMeta(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	n, err := CountBooks(ctx, db)
	require.NoError(t, err)
	assert.Zero(t, n)

	seedScenario(t, db)
	st, err := GetCorpusStats(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, CorpusStats{Books: 2, TotalWords: 5, DistinctWords: 3}, st)

	v, err := GetMeta(ctx, db, "build_id")
	require.NoError(t, err)
	assert.Empty(t, v)
	require.NoError(t, SetMeta(db, "build_id", "x"))
	require.NoError(t, SetMeta(db, "build_id", "y"))
	v, err = GetMeta(ctx, db, "build_id")
	require.NoError(t, err)
	assert.Equal(t, "y", v)
}
