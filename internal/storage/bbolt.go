package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Bucket and key holding the document
var (
	MetadataBucket = []byte("metadata")
	DocumentKey    = []byte("document")
)

// boltTimeout bounds how long we wait for another process holding the file lock
const boltTimeout = time.Second

// BoltBackend keeps the document inside a BBolt database.
//
// The database is opened for each call and closed before returning, so no
// file lock is held between a load and the following save. A database file
// that exists without a stored document reads as empty.
type BoltBackend struct {
	path string
}

// NewBoltBackend creates a backend for the database at path
func NewBoltBackend(path string) *BoltBackend {
	return &BoltBackend{path: path}
}

// Location returns the database path
func (b *BoltBackend) Location() string {
	return b.path
}

// Read returns the stored document
func (b *BoltBackend) Read() ([]byte, error) {
	if _, err := os.Stat(b.path); err != nil {
		return nil, err
	}

	db, err := bolt.Open(b.path, FilePermSecure, &bolt.Options{ReadOnly: true, Timeout: boltTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	var data []byte
	err = db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(MetadataBucket)
		if bucket == nil {
			return nil
		}
		// Make a copy since the slice is only valid during the transaction
		data = append([]byte(nil), bucket.Get(DocumentKey)...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	return data, nil
}

// Write stores the document, creating the database if needed
func (b *BoltBackend) Write(data []byte) error {
	if err := os.MkdirAll(filepath.Dir(b.path), DirPermSecure); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := bolt.Open(b.path, FilePermSecure, &bolt.Options{Timeout: boltTimeout})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	return db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(MetadataBucket)
		if err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", MetadataBucket, err)
		}
		return bucket.Put(DocumentKey, data)
	})
}

var _ Backend = (*BoltBackend)(nil)
