package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/samber/lo"
	"github.com/timmy/scribe/internal/domain"
)

const recordExt = ".json"

var (
	// ErrNotFound is returned when no record exists for an id.
	ErrNotFound = errors.New("transcription not found")

	// ErrInvalidID is returned for ids that cannot name a file in the store.
	ErrInvalidID = errors.New("invalid transcription id")
)

// FileStore persists job records as one pretty-printed JSON file per id.
// There is no per-record locking: each write replaces the file atomically,
// so concurrent writers resolve last-write-wins and readers never observe
// a partially written record.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed and returns a store rooted at it.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create transcriptions directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the directory holding the record files.
func (s *FileStore) Dir() string {
	return s.dir
}

// Path returns the file path for id.
func (s *FileStore) Path(id string) (string, error) {
	if err := ValidateID(id); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, id+recordExt), nil
}

// Create writes a new record, silently replacing any record with the same id.
func (s *FileStore) Create(ctx context.Context, rec *domain.Transcription) error {
	return s.Save(ctx, rec)
}

// Save overwrites the whole record. Callers read-modify-write.
func (s *FileStore) Save(ctx context.Context, rec *domain.Transcription) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.Path(rec.ID)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal transcription %s: %w", rec.ID, err)
	}

	if err := writeFileAtomic(path, data); err != nil {
		return fmt.Errorf("failed to write transcription %s: %w", rec.ID, err)
	}
	return nil
}

// Load reads the record for id.
func (s *FileStore) Load(ctx context.Context, id string) (*domain.Transcription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.Path(id)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read transcription %s: %w", id, err)
	}

	var rec domain.Transcription
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode transcription %s: %w", id, err)
	}
	// Files written before ids were stored carry the id only in their name.
	if rec.ID == "" {
		rec.ID = id
	}
	return &rec, nil
}

// Delete removes the record file for id.
func (s *FileStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.Path(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete transcription %s: %w", id, err)
	}
	return nil
}

// Exists reports whether a record file exists for id.
func (s *FileStore) Exists(ctx context.Context, id string) (bool, error) {
	path, err := s.Path(id)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// List returns every record id, newest first by reverse lexical order.
func (s *FileStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read transcriptions directory: %w", err)
	}

	ids := lo.FilterMap(entries, func(e os.DirEntry, _ int) (string, bool) {
		name := e.Name()
		if !e.Type().IsRegular() || !strings.HasSuffix(name, recordExt) || strings.HasPrefix(name, ".") {
			return "", false
		}
		return IDFromFileName(name), true
	})
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))
	return ids, nil
}

// ValidateID rejects ids that are empty, hidden (leading dot, which also
// covers the atomic-write temp files) or would escape the store directory.
func ValidateID(id string) error {
	if id == "" || strings.HasPrefix(id, ".") || strings.ContainsAny(id, `/\`) || strings.ContainsRune(id, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

// FileName maps an id to its record file name ("clip.json").
func FileName(id string) string {
	return id + recordExt
}

// IDFromFileName maps a record file name ("clip.json") to its id.
func IDFromFileName(name string) string {
	return strings.TrimSuffix(name, recordExt)
}

// writeFileAtomic writes to a temp file in the same directory and renames it over path.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
