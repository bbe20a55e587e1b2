package corpus

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrTextNotFound is returned when a book has no extracted text on disk.
var ErrTextNotFound = errors.New("text not found")

// TextStore keeps one plain-text file per book.
type TextStore struct {
	Dir string
}

func NewTextStore(dir string) *TextStore {
	return &TextStore{Dir: dir}
}

// Path returns the text file location of a book.
func (s *TextStore) Path(bookID string) string {
	return filepath.Join(s.Dir, bookID+".txt")
}

// Load returns the text of a book, or an error wrapping ErrTextNotFound.
func (s *TextStore) Load(bookID string) (string, error) {
	data, err := os.ReadFile(s.Path(bookID))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%s: %w", s.Path(bookID), ErrTextNotFound)
		}
		return "", err
	}
	return string(data), nil
}

// Save writes the text of a book, creating the directory when needed.
func (s *TextStore) Save(bookID, text string) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create text directory: %w", err)
	}
	if err := os.WriteFile(s.Path(bookID), []byte(text), 0o644); err != nil {
		return fmt.Errorf("failed to write text %s: %w", bookID, err)
	}
	return nil
}
