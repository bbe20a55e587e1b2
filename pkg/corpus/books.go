package corpus

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// Book is a manifest entry: where a book lives online and where it sits in the narrative.
type Book struct {
	BookID        string `json:"book_id"`
	Title         string `json:"title"`
	URLPath       string `json:"url_path"`
	SequenceIndex int    `json:"sequence_index"`
}

// Books 11-20 are lost, so sequence indexes are continuous while book numbers skip.
var livyBooks = []struct {
	id   string
	path string
}{
	{"praefatio", "livy/liv.pr.shtml"},
	{"1", "livy/liv.1.shtml"}, {"2", "livy/liv.2.shtml"}, {"3", "livy/liv.3.shtml"},
	{"4", "livy/liv.4.shtml"}, {"5", "livy/liv.5.shtml"}, {"6", "livy/liv.6.shtml"},
	{"7", "livy/liv.7.shtml"}, {"8", "livy/liv.8.shtml"}, {"9", "livy/liv.9.shtml"},
	{"10", "livy/liv.10.shtml"},
	{"21", "livy/liv.21.shtml"}, {"22", "livy/liv.22.shtml"}, {"23", "livy/liv.23.shtml"},
	{"24", "livy/liv.24.shtml"}, {"25", "livy/liv.25.shtml"}, {"26", "livy/liv.26.shtml"},
	{"27", "livy/liv.27.shtml"}, {"28", "livy/liv.28.shtml"}, {"29", "livy/liv.29.shtml"},
	{"30", "livy/liv.30.shtml"}, {"31", "livy/liv.31.shtml"}, {"32", "livy/liv.32.shtml"},
	{"33", "livy/liv.33.shtml"}, {"34", "livy/liv.34.shtml"}, {"35", "livy/liv.35.shtml"},
	{"36", "livy/liv.36.shtml"}, {"37", "livy/liv.37.shtml"}, {"38", "livy/liv.38.shtml"},
	{"39", "livy/liv.39.shtml"}, {"40", "livy/liv.40.shtml"}, {"41", "livy/liv.41.shtml"},
	{"42", "livy/liv.42.shtml"}, {"43", "livy/liv.43.shtml"}, {"44", "livy/liv.44.shtml"},
	{"45", "livy/liv.45.shtml"},
}

// BookTitle returns the display name of a book id.
func BookTitle(bookID string) string {
	if bookID == "praefatio" {
		return "Praefatio"
	}
	if _, err := strconv.Atoi(bookID); err == nil {
		return "Book " + bookID
	}
	return bookID
}

// LivyBooks returns the built-in manifest of the surviving books of Ab Urbe Condita.
func LivyBooks() []Book {
	out := make([]Book, 0, len(livyBooks))
	for i, b := range livyBooks {
		out = append(out, Book{
			BookID:        b.id,
			Title:         BookTitle(b.id),
			URLPath:       b.path,
			SequenceIndex: i,
		})
	}
	return out
}

// LoadManifest reads a JSON manifest, either {"books": [...]} or a bare array. Missing titles
// are filled from BookTitle.
func LoadManifest(path string) ([]Book, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var wrapped struct {
		Books []Book `json:"books"`
	}
	// Try parsing as full object wrapper first { "books": [...] }
	dec := json.NewDecoder(f)
	books := []Book(nil)
	if err := dec.Decode(&wrapped); err == nil && len(wrapped.Books) > 0 {
		books = wrapped.Books
	} else {
		// Reset and try as array [...]
		if _, err := f.Seek(0, 0); err != nil {
			return nil, err
		}
		dec = json.NewDecoder(f)
		if err := dec.Decode(&books); err != nil {
			return nil, fmt.Errorf("failed to parse manifest as object or array: %w", err)
		}
	}
	for i := range books {
		if books[i].Title == "" {
			books[i].Title = BookTitle(books[i].BookID)
		}
	}
	return books, nil
}

// ResolveManifest returns the manifest at path, or the built-in one when path is empty.
func ResolveManifest(path string) ([]Book, error) {
	if path == "" {
		return LivyBooks(), nil
	}
	return LoadManifest(path)
}

// RawFileName is the on-disk name of a downloaded book page.
func RawFileName(bookID string) string {
	return "liv." + bookID + ".html"
}
