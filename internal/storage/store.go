package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/illarion/cryptkeeper/internal/prompt"
)

var (
	ErrUserAborted         = errors.New("operation aborted")
	ErrMetadataUnavailable = errors.New("metadata unavailable")
	ErrCorruptMetadata     = errors.New("corrupt metadata")
	ErrIOFailure           = errors.New("i/o failure")
)

// Backend reads and writes the raw metadata document.
// Read must return an error matching fs.ErrNotExist when no document exists.
type Backend interface {
	Location() string
	Read() ([]byte, error)
	Write(data []byte) error
}

// Store loads and saves the metadata document through a Backend
type Store struct {
	backend Backend
	confirm prompt.Confirmer
	logger  *slog.Logger
}

// NewStore creates a store. confirm gates the creation of a missing document.
func NewStore(backend Backend, confirm prompt.Confirmer, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		backend: backend,
		confirm: confirm,
		logger:  logger,
	}
}

// Location describes where the document lives
func (s *Store) Location() string {
	return s.backend.Location()
}

// Load returns the persisted document.
//
// A missing document is created only after the operator agrees. An existing
// but empty document is initialized without asking. Content that does not
// parse is reported as ErrCorruptMetadata and left in place.
func (s *Store) Load() (*Document, error) {
	data, err := s.backend.Read()
	if errors.Is(err, fs.ErrNotExist) {
		question := fmt.Sprintf("Unable to locate metadata %s. Create it?", s.backend.Location())
		if !s.confirm.Confirm(question) {
			return nil, ErrUserAborted
		}
		doc := NewDocument()
		if err := s.write(doc); err != nil {
			return nil, fmt.Errorf("%w: cannot create %s: %v", ErrMetadataUnavailable, s.backend.Location(), err)
		}
		s.logger.Info("metadata created", slog.String("location", s.backend.Location()))
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMetadataUnavailable, err)
	}

	if len(data) == 0 {
		doc := NewDocument()
		if err := s.write(doc); err != nil {
			return nil, fmt.Errorf("%w: cannot initialize %s: %v", ErrMetadataUnavailable, s.backend.Location(), err)
		}
		s.logger.Info("metadata initialized", slog.String("location", s.backend.Location()))
		return doc, nil
	}

	doc, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptMetadata, s.backend.Location(), err)
	}
	return doc, nil
}

// Save merges local into the currently persisted document and writes the
// result back in full
func (s *Store) Save(local *Document) error {
	persisted, err := s.Load()
	if err != nil {
		return err
	}

	merged := Merge(persisted, local)
	if err := s.write(merged); err != nil {
		return fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	s.logger.Debug("metadata saved",
		slog.String("location", s.backend.Location()),
		slog.Int("vaults", len(merged.Vaults)))
	return nil
}

func (s *Store) write(d *Document) error {
	data, err := Encode(d)
	if err != nil {
		return err
	}
	return s.backend.Write(data)
}
