package core

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/illarion/cryptkeeper/internal/artifact"
	"github.com/illarion/cryptkeeper/internal/clock"
	"github.com/illarion/cryptkeeper/internal/crypto"
	"github.com/illarion/cryptkeeper/internal/prompt"
	"github.com/illarion/cryptkeeper/internal/storage"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type testEnv struct {
	dir   string
	store *storage.Store
	arts  *artifact.Dir
	clock *clock.FakeClock
	m     *Manager
}

// newEnv builds a Manager over a temp directory. The metadata document is
// created without asking; confirm answers every other question.
func newEnv(t *testing.T, confirm prompt.Confirmer) *testEnv {
	t.Helper()
	dir := t.TempDir()

	store := storage.NewStore(storage.NewFileBackend(filepath.Join(dir, "metadata.json")), prompt.Always(true), discardLogger)
	arts, err := artifact.Open(filepath.Join(dir, "crypt"))
	if err != nil {
		t.Fatalf("Failed to open artifact dir: %v", err)
	}
	t.Cleanup(func() { arts.Close() })

	c := clock.Fake(base)
	m, err := New(Options{Store: store, Artifacts: arts, Confirm: confirm, Clock: c, Logger: discardLogger})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return &testEnv{dir: dir, store: store, arts: arts, clock: c, m: m}
}

// writeSource writes a source file and pins its modification time
func writeSource(t *testing.T, path, content string, mtime time.Time) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("Failed to set mtime on %s: %v", path, err)
	}
}

// persisted loads the document as stored on disk
func (e *testEnv) persisted(t *testing.T) *storage.Document {
	t.Helper()
	doc, err := e.store.Load()
	if err != nil {
		t.Fatalf("Failed to load metadata: %v", err)
	}
	return doc
}

func (e *testEnv) record(t *testing.T, vault, path string) storage.TrackedFile {
	t.Helper()
	v, ok := e.persisted(t).Vault(vault)
	if !ok {
		t.Fatalf("Vault %s not persisted", vault)
	}
	rec, ok := v.Files[path]
	if !ok {
		t.Fatalf("File %s not tracked in %s", path, vault)
	}
	return rec
}

// artifactNames lists the files in the artifact directory
func (e *testEnv) artifactNames(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(e.arts.Path())
	if err != nil {
		t.Fatalf("Failed to read artifact dir: %v", err)
	}
	var names []string
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names
}

// decryptArtifact decrypts an artifact with the vault's persisted key
func (e *testEnv) decryptArtifact(t *testing.T, vault, id string) string {
	t.Helper()
	v, _ := e.persisted(t).Vault(vault)
	enc, err := encryptor(v)
	if err != nil {
		t.Fatalf("Failed to build encryptor: %v", err)
	}
	defer enc.Destroy()

	ciphertext, err := os.ReadFile(filepath.Join(e.arts.Path(), id))
	if err != nil {
		t.Fatalf("Failed to read artifact %s: %v", id, err)
	}
	plain, err := enc.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("Failed to decrypt artifact %s: %v", id, err)
	}
	defer crypto.ClearBytes(plain)
	return string(plain)
}

// setup creates a vault and tracks the given files
func (e *testEnv) setup(t *testing.T, vault string, paths ...string) {
	t.Helper()
	ctx := context.Background()
	if _, ok := e.persisted(t).Vault(vault); !ok {
		if err := e.m.CreateVault(ctx, vault); err != nil {
			t.Fatalf("CreateVault failed: %v", err)
		}
	}
	for _, p := range paths {
		if _, err := e.m.AddFile(ctx, vault, p); err != nil {
			t.Fatalf("AddFile(%s) failed: %v", p, err)
		}
	}
}
