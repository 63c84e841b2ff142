package core

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/illarion/cryptkeeper/internal/artifact"
	"github.com/illarion/cryptkeeper/internal/clock"
	"github.com/illarion/cryptkeeper/internal/crypto"
	"github.com/illarion/cryptkeeper/internal/keyring"
	"github.com/illarion/cryptkeeper/internal/prompt"
	"github.com/illarion/cryptkeeper/internal/storage"
)

// Options configures a Manager. Store and Artifacts are required.
type Options struct {
	Store     *storage.Store
	Artifacts *artifact.Dir
	Confirm   prompt.Confirmer // nil answers no to everything
	Clock     clock.Clock      // nil means the wall clock
	Logger    *slog.Logger

	// UseKeyring keeps newly generated keys in the OS keyring
	UseKeyring bool
}

// Manager owns the local working copy of the metadata document and runs
// every vault operation against it.
//
// Each public operation first syncs: a working copy with unsaved changes is
// merged into the store, then the persisted document is loaded as the new
// working copy.
type Manager struct {
	store      *storage.Store
	artifacts  *artifact.Dir
	confirm    prompt.Confirmer
	clock      clock.Clock
	logger     *slog.Logger
	useKeyring bool

	local *storage.Document
	dirty bool
}

// New creates a Manager
func New(opts Options) (*Manager, error) {
	if opts.Store == nil {
		return nil, errors.New("core: metadata store is required")
	}
	if opts.Artifacts == nil {
		return nil, errors.New("core: artifact directory is required")
	}
	if opts.Confirm == nil {
		opts.Confirm = prompt.Always(false)
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Manager{
		store:      opts.Store,
		artifacts:  opts.Artifacts,
		confirm:    opts.Confirm,
		clock:      opts.Clock,
		logger:     opts.Logger,
		useKeyring: opts.UseKeyring,
	}, nil
}

// sync flushes unsaved local changes, then reloads the persisted document
func (m *Manager) sync() error {
	if m.dirty && m.local != nil {
		if err := m.store.Save(m.local); err != nil {
			return err
		}
		m.dirty = false
	}

	doc, err := m.store.Load()
	if err != nil {
		return err
	}
	m.local = doc
	return nil
}

// persist saves the working copy. On failure it stays dirty so the next
// sync retries the save.
func (m *Manager) persist() error {
	m.dirty = true
	if err := m.store.Save(m.local); err != nil {
		return err
	}
	m.dirty = false
	return nil
}

func validName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidName)
	}
	return nil
}

// absPath makes a source path absolute and clean so records match no matter
// which directory the command runs from
func absPath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%w: empty path", ErrFileNotTracked)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	return abs, nil
}

// newKey generates vault key material, returning the value to store in the
// document
func (m *Manager) newKey() (string, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return "", err
	}
	if !m.useKeyring {
		return key, nil
	}
	return keyring.Store(key)
}

// encryptor builds an Encryptor for a vault key field, resolving keyring
// references
func encryptor(v *storage.Vault) (*crypto.Encryptor, error) {
	key, err := keyring.Resolve(v.Key)
	if err != nil {
		return nil, err
	}
	return crypto.NewEncryptorFromString(key)
}

// ensureVault returns the named vault from the working copy, offering to
// create it when missing. created reports whether it was just made.
func (m *Manager) ensureVault(name string) (v *storage.Vault, created bool, err error) {
	if v, ok := m.local.Vault(name); ok {
		return v, false, nil
	}
	if !m.confirm.Confirm(fmt.Sprintf("Vault %s does not exist. Create it?", name)) {
		return nil, false, ErrUserAborted
	}
	v, err = m.createVault(name)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// lookup finds an existing vault and tracked file without prompting
func (m *Manager) lookup(vaultName, path string) (*storage.Vault, string, storage.TrackedFile, error) {
	v, ok := m.local.Vault(vaultName)
	if !ok {
		return nil, "", storage.TrackedFile{}, fmt.Errorf("%w: %s", ErrVaultNotFound, vaultName)
	}
	abs, err := absPath(path)
	if err != nil {
		return nil, "", storage.TrackedFile{}, err
	}
	rec, ok := v.Files[abs]
	if !ok {
		return nil, "", storage.TrackedFile{}, fmt.Errorf("%w: %s", ErrFileNotTracked, abs)
	}
	return v, abs, rec, nil
}
