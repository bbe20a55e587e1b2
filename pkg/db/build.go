package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Build is a fresh index file written next to the live index. Nothing is visible at the live
// path until Commit renames the file into place.
type Build struct {
	ID   string
	DB   *sql.DB
	path string
	dest string
	done bool
}

// NewBuild creates an empty, migrated index file in the directory of dest.
func NewBuild(dest string) (*Build, error) {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}
	id := uuid.NewString()
	path := filepath.Join(dir, fmt.Sprintf(".%s.%s.build", filepath.Base(dest), id))

	conn, err := sql.Open("sqlite3", writeDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open build file: %w", err)
	}
	// One connection: sqlite serializes writers anyway and PRAGMAs are per connection.
	conn.SetMaxOpenConns(1)
	if err := InitDB(conn); err != nil {
		conn.Close()
		os.Remove(path)
		return nil, fmt.Errorf("migrate build file: %w", err)
	}
	b := &Build{ID: id, DB: conn, path: path, dest: dest}
	if err := SetMeta(conn, "build_id", id); err != nil {
		b.Abort()
		return nil, fmt.Errorf("write build id: %w", err)
	}
	if err := SetMeta(conn, "schema_version", SchemaVersion); err != nil {
		b.Abort()
		return nil, fmt.Errorf("write schema version: %w", err)
	}
	return b, nil
}

// Path returns the location of the in-progress build file.
func (b *Build) Path() string { return b.path }

// Commit stamps the build time, closes the build file and atomically replaces the live index.
func (b *Build) Commit() error {
	if b.done {
		return fmt.Errorf("build %s already finished", b.ID)
	}
	if err := SetMeta(b.DB, "built_at", time.Now().UTC().Format(time.RFC3339)); err != nil {
		b.Abort()
		return fmt.Errorf("write build time: %w", err)
	}
	if err := b.DB.Close(); err != nil {
		b.Abort()
		return fmt.Errorf("close build file: %w", err)
	}
	b.done = true
	if err := os.Rename(b.path, b.dest); err != nil {
		os.Remove(b.path)
		return fmt.Errorf("swap index into place: %w", err)
	}
	return nil
}

// Abort discards the build file. The live index is left untouched. Safe to call after Commit.
func (b *Build) Abort() {
	if b.done {
		return
	}
	b.done = true
	_ = b.DB.Close()
	_ = os.Remove(b.path)
	_ = os.Remove(b.path + "-journal")
}
