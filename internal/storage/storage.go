// Package storage saves uploaded video files to local disk. Filenames
// are namespaced by user and randomized with a UUID so concurrent
// uploads of the same original name never collide.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Store writes and reads uploads under a single base directory.
type Store struct {
	Dir string
}

// New creates the upload directory if needed and returns a store over it.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Store{Dir: dir}, nil
}

// Save writes the content to disk and returns the generated filename.
// The original name is sanitized to its base path component.
func (s *Store) Save(userID uint64, originalName string, content []byte) (string, error) {
	base := filepath.Base(strings.TrimSpace(originalName))
	if base == "." || base == string(filepath.Separator) {
		base = "upload"
	}
	filename := fmt.Sprintf("%d_%s_%s", userID, uuid.NewString(), base)
	if err := os.WriteFile(filepath.Join(s.Dir, filename), content, 0o644); err != nil {
		return "", fmt.Errorf("save upload: %w", err)
	}
	return filename, nil
}

// Read returns the content of a previously saved upload.
func (s *Store) Read(filename string) ([]byte, error) {
	// Reject traversal attempts; stored names never contain separators.
	if filepath.Base(filename) != filename {
		return nil, fmt.Errorf("invalid filename %q", filename)
	}
	return os.ReadFile(filepath.Join(s.Dir, filename))
}
