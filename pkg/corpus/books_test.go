package corpus

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLivyBooksManifest(t *testing.T) {
	books := LivyBooks()
	require.Len(t, books, 36)

	assert.Equal(t, Book{BookID: "praefatio", Title: "Praefatio", URLPath: "livy/liv.pr.shtml", SequenceIndex: 0}, books[0])
	assert.Equal(t, "10", books[10].BookID)
	assert.Equal(t, "21", books[11].BookID, "books 11-20 are lost")
	assert.Equal(t, 11, books[11].SequenceIndex)
	assert.Equal(t, "Book 45", books[35].Title)

	seen := map[string]bool{}
	for i, b := range books {
		assert.Equal(t, i, b.SequenceIndex)
		assert.False(t, seen[b.BookID], "duplicate %s", b.BookID)
		seen[b.BookID] = true
	}
}

func TestLoadManifestObjectAndArray(t *testing.T) {
	dir := t.TempDir()
	obj := filepath.Join(dir, "obj.json")
	arr := filepath.Join(dir, "arr.json")
	require.NoError(t, os.WriteFile(obj, []byte(`{"books":[{"book_id":"1","url_path":"livy/liv.1.shtml","sequence_index":1}]}`), 0o644))
	require.NoError(t, os.WriteFile(arr, []byte(`[{"book_id":"praefatio","sequence_index":0},{"book_id":"x","title":"Custom","sequence_index":4}]`), 0o644))

	books, err := LoadManifest(obj)
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "Book 1", books[0].Title)

	books, err = LoadManifest(arr)
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, "Praefatio", books[0].Title)
	assert.Equal(t, "Custom", books[1].Title)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`not json`), 0o644))
	_, err = LoadManifest(bad)
	assert.Error(t, err)
}

func TestResolveManifestDefaultsToBuiltIn(t *testing.T) {
	books, err := ResolveManifest("")
	require.NoError(t, err)
	assert.Len(t, books, 36)
}

func TestTextStoreRoundTrip(t *testing.T) {
	store := NewTextStore(filepath.Join(t.TempDir(), "texts"))

	_, err := store.Load("1")
	assert.ErrorIs(t, err, ErrTextNotFound)

	require.NoError(t, store.Save("1", "Facturusne operae pretium sim"))
	got, err := store.Load("1")
	require.NoError(t, err)
	assert.Equal(t, "Facturusne operae pretium sim", got)
}
