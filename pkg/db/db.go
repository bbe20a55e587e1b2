package db

import (
	"database/sql"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// SchemaVersion is recorded in index_meta so readers can reject indexes written by an
// incompatible build.
const SchemaVersion = "1"

const migrationsSQL = `
CREATE TABLE IF NOT EXISTS books (
    book_id        TEXT PRIMARY KEY,
    title          TEXT NOT NULL,
    sequence_index INTEGER NOT NULL UNIQUE,
    total_words    INTEGER NOT NULL,
    unique_words   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS word_frequencies (
    word               TEXT NOT NULL,
    book_id            TEXT NOT NULL REFERENCES books(book_id),
    count              INTEGER NOT NULL,
    relative_frequency REAL NOT NULL,
    PRIMARY KEY (word, book_id)
);

CREATE TABLE IF NOT EXISTS word_stats (
    word          TEXT PRIMARY KEY,
    total_count   INTEGER NOT NULL,
    book_count    INTEGER NOT NULL,
    mean_position REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS snippets (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    word             TEXT NOT NULL,
    book_id          TEXT NOT NULL REFERENCES books(book_id),
    context          TEXT NOT NULL,
    position_in_book INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS index_meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_word_freq_word ON word_frequencies(word);
CREATE INDEX IF NOT EXISTS idx_snippets_word ON snippets(word, book_id, position_in_book);
CREATE INDEX IF NOT EXISTS idx_word_stats_position ON word_stats(mean_position);
CREATE INDEX IF NOT EXISTS idx_word_stats_count ON word_stats(total_count);
`

// InitDB runs migrations on the given DB connection using the embedded SQL.
func InitDB(db *sql.DB) error {
	stmts := strings.Split(migrationsSQL, ";")
	for _, s := range stmts {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// writeDSN enables foreign keys so orphan frequency or snippet rows fail the build.
func writeDSN(path string) string {
	return "file:" + path + "?_foreign_keys=on&_journal_mode=DELETE&_synchronous=NORMAL"
}

// ReadOnlyDSN opens an existing index without the ability to create or modify it.
func ReadOnlyDSN(path string) string {
	return "file:" + path + "?mode=ro&_query_only=true"
}
