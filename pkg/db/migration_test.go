package db

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// TestInitDBCreatesSchema verifies InitDB creates the four index tables plus index_meta and
// the indexes backing word lookup, position sort, count filter and prefix search.
func TestInitDBCreatesSchema(t *testing.T) {
	dbConn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer dbConn.Close()
	dbConn.SetMaxOpenConns(1)

	if err := InitDB(dbConn); err != nil {
		t.Fatalf("InitDB failed: %v", err)
	}

	for _, table := range []string{"books", "word_frequencies", "word_stats", "snippets", "index_meta"} {
		var name string
		if err := dbConn.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name); err != nil {
			t.Fatalf("%s table missing: %v", table, err)
		}
	}

	for _, idx := range []string{"idx_word_freq_word", "idx_snippets_word", "idx_word_stats_position", "idx_word_stats_count"} {
		var name string
		if err := dbConn.QueryRow("SELECT name FROM sqlite_master WHERE type='index' AND name=?", idx).Scan(&name); err != nil {
			t.Fatalf("%s index missing: %v", idx, err)
		}
	}

	rows, err := dbConn.Query("PRAGMA table_info(snippets)")
	if err != nil {
		t.Fatalf("pragmas: %v", err)
	}
	defer rows.Close()
	cols := map[string]bool{}
	for rows.Next() {
		var cid int
		var colName, ctype string
		var notnull, pk int
		var dfltVal interface{}
		if err := rows.Scan(&cid, &colName, &ctype, &notnull, &dfltVal, &pk); err != nil {
			t.Fatalf("scan col: %v", err)
		}
		cols[colName] = true
	}
	for _, c := range []string{"id", "word", "book_id", "context", "position_in_book"} {
		if !cols[c] {
			t.Fatalf("expected column %s in snippets, got %v", c, cols)
		}
	}
}

func TestInitDBIsRepeatable(t *testing.T) {
	dbConn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer dbConn.Close()
	dbConn.SetMaxOpenConns(1)

	for i := 0; i < 2; i++ {
		if err := InitDB(dbConn); err != nil {
			t.Fatalf("InitDB run %d failed: %v", i, err)
		}
	}
}
