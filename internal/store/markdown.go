package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// MarkdownStore keeps generated notes as plain .md files in one directory.
type MarkdownStore struct {
	dir string
}

// NewMarkdownStore creates the directory if needed.
func NewMarkdownStore(dir string) (*MarkdownStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create markdowns directory: %w", err)
	}
	return &MarkdownStore{dir: dir}, nil
}

// Path returns the file path for a note name.
func (s *MarkdownStore) Path(name string) (string, error) {
	if err := ValidateID(name); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, name), nil
}

// Write stores content under name, replacing any previous note.
func (s *MarkdownStore) Write(ctx context.Context, name, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.Path(name)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(path, []byte(content)); err != nil {
		return fmt.Errorf("failed to write markdown %s: %w", name, err)
	}
	return nil
}

// Read returns the note content.
func (s *MarkdownStore) Read(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path, err := s.Path(name)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to read markdown %s: %w", name, err)
	}
	return string(data), nil
}

// Exists reports whether a note with name exists.
func (s *MarkdownStore) Exists(name string) bool {
	path, err := s.Path(name)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// NoteFileName picks the stored name for a note: the polisher's suggestion
// reduced to a base name and used as given, or <id>.md when the suggestion
// is empty or unusable.
func NoteFileName(suggested, id string) string {
	name := strings.TrimSpace(suggested)
	if name != "" {
		name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	}
	if ValidateID(name) != nil {
		return id + ".md"
	}
	return name
}
