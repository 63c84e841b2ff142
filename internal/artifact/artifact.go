// Package artifact stores ciphertext blobs in a content-addressed directory.
//
// Each artifact is a single file named exactly by its identifier and holding
// only ciphertext. All operations go through os.Root so a name can never
// resolve outside the directory.
package artifact

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/illarion/cryptkeeper/internal/crypto"
	"github.com/illarion/cryptkeeper/internal/storage"
)

const (
	DirPermSecure  = 0700 // Directory: owner rwx only
	FilePermSecure = 0600 // File: owner rw only
	stagePrefix    = ".stage-"
)

var (
	ErrInvalidIdentifier = errors.New("invalid artifact identifier")
	ErrNotFound          = errors.New("artifact not found")
)

// Dir is an open artifact directory
type Dir struct {
	root *os.Root
	path string
}

// Open opens the artifact directory at path, creating it if needed
func Open(path string) (*Dir, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}
	if err := os.MkdirAll(absPath, DirPermSecure); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}

	root, err := os.OpenRoot(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact directory: %w", err)
	}
	return &Dir{root: root, path: absPath}, nil
}

// Close releases the directory handle
func (d *Dir) Close() error {
	if d.root != nil {
		return d.root.Close()
	}
	return nil
}

// Path returns the absolute directory path
func (d *Dir) Path() string {
	return d.path
}

// PathOf returns the absolute path of an artifact
func (d *Dir) PathOf(id string) string {
	return filepath.Join(d.path, id)
}

func validate(id string) error {
	if !storage.IsIdentifier(id) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, id)
	}
	return nil
}

// Read returns the ciphertext stored under id
func (d *Dir) Read(id string) ([]byte, error) {
	if err := validate(id); err != nil {
		return nil, err
	}
	data, err := d.root.ReadFile(id)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return data, err
}

// Exists reports whether an artifact is stored under id
func (d *Dir) Exists(id string) bool {
	if validate(id) != nil {
		return false
	}
	_, err := d.root.Stat(id)
	return err == nil
}

// Staged is ciphertext written next to its final location but not yet
// visible under the identifier
type Staged struct {
	dir  *Dir
	id   string
	name string
	done bool
}

// Stage writes data to a temporary file in the directory. Commit moves it
// over the artifact; Discard removes it.
func (d *Dir) Stage(id string, data []byte) (*Staged, error) {
	if err := validate(id); err != nil {
		return nil, err
	}

	suffix, err := crypto.GenerateRandom(8)
	if err != nil {
		return nil, err
	}
	name := stagePrefix + id + "-" + hex.EncodeToString(suffix)

	f, err := d.root.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, FilePermSecure)
	if err != nil {
		return nil, fmt.Errorf("failed to create staging file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		d.root.Remove(name)
		return nil, fmt.Errorf("failed to write staging file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		d.root.Remove(name)
		return nil, fmt.Errorf("failed to sync staging file: %w", err)
	}
	if err := f.Close(); err != nil {
		d.root.Remove(name)
		return nil, fmt.Errorf("failed to close staging file: %w", err)
	}

	return &Staged{dir: d, id: id, name: name}, nil
}

// ID returns the identifier the staged data will be stored under
func (s *Staged) ID() string {
	return s.id
}

// Commit replaces the artifact with the staged data
func (s *Staged) Commit() error {
	if s.done {
		return fmt.Errorf("staged artifact %s already finished", s.id)
	}
	if err := s.dir.root.Rename(s.name, s.id); err != nil {
		return fmt.Errorf("failed to commit artifact %s: %w", s.id, err)
	}
	s.done = true
	return nil
}

// Discard removes the staged data. Safe to call after Commit.
func (s *Staged) Discard() error {
	if s.done {
		return nil
	}
	s.done = true
	if err := s.dir.root.Remove(s.name); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
