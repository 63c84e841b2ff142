package core

import (
	"errors"

	"github.com/illarion/cryptkeeper/internal/storage"
)

// Store errors, re-exported so callers only need this package.
var (
	ErrUserAborted         = storage.ErrUserAborted
	ErrMetadataUnavailable = storage.ErrMetadataUnavailable
	ErrCorruptMetadata     = storage.ErrCorruptMetadata
	ErrIOFailure           = storage.ErrIOFailure
)

var (
	ErrSourceFileNotFound = errors.New("source file not found")
	ErrVaultNotFound      = errors.New("vault not found")
	ErrFileNotTracked     = errors.New("file not tracked in vault")
	ErrNotEncrypted       = errors.New("file not encrypted yet")
	ErrInvalidName        = errors.New("invalid vault name")
)
