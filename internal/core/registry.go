package core

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/illarion/cryptkeeper/internal/keyring"
	"github.com/illarion/cryptkeeper/internal/storage"
)

// FileView describes one tracked file
type FileView struct {
	Path        string
	State       storage.FileState
	Identifier  string
	EncryptedAt time.Time // zero while pending
	Stale       bool      // source modified after EncryptedAt
	Missing     bool      // source no longer exists
	NoArtifact  bool      // encrypted, but the artifact file is gone
}

// VaultView describes a vault and its files, sorted by path
type VaultView struct {
	Name      string
	Key       string
	InKeyring bool
	Files     []FileView
}

// VaultSummary is one line of ListVaults
type VaultSummary struct {
	Name      string
	Files     int
	Encrypted int
}

// createVault adds a fresh vault to the working copy and persists it
func (m *Manager) createVault(name string) (*storage.Vault, error) {
	key, err := m.newKey()
	if err != nil {
		return nil, err
	}
	v := storage.NewVault(key)
	m.local.Vaults[name] = v
	if err := m.persist(); err != nil {
		return nil, err
	}
	m.logger.Info("vault created", slog.String("vault", name))
	return v, nil
}

// CreateVault creates a vault with a new key. For an existing vault the
// operator is asked whether to overwrite it, which goes through Recreate.
// Touches: Persisted (load, save) and Local.
func (m *Manager) CreateVault(ctx context.Context, name string) error {
	if err := validName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.sync(); err != nil {
		return err
	}

	if _, ok := m.local.Vault(name); ok {
		confirmed := m.confirm.Confirm(fmt.Sprintf("Vault %s already exists, overwrite it?", name))
		return m.Recreate(ctx, name, confirmed)
	}

	_, err := m.createVault(name)
	return err
}

// Recreate replaces a vault with an empty one under a new key. Nothing
// happens unless confirmed. Existing artifacts are left on disk.
// Touches: Persisted (load, save) and Local.
func (m *Manager) Recreate(ctx context.Context, name string, confirmed bool) error {
	if err := validName(name); err != nil {
		return err
	}
	if !confirmed {
		return ErrUserAborted
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.sync(); err != nil {
		return err
	}

	old, existed := m.local.Vault(name)
	key, err := m.newKey()
	if err != nil {
		return err
	}
	m.local.Vaults[name] = storage.NewVault(key)
	if err := m.persist(); err != nil {
		return err
	}

	if existed {
		if err := keyring.Delete(old.Key); err != nil {
			m.logger.Warn("old key left in keyring", slog.String("vault", name), slog.Any("error", err))
		}
	}
	m.logger.Info("vault recreated", slog.String("vault", name))
	return nil
}

// AddFile starts tracking path in the vault as a pending file. Adding a
// file that is already tracked changes nothing. A missing vault is created
// first if the operator agrees.
// Touches: Persisted (load, save) and Local.
func (m *Manager) AddFile(ctx context.Context, vaultName, path string) (added bool, err error) {
	if err := validName(vaultName); err != nil {
		return false, err
	}
	abs, err := absPath(path)
	if err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := m.sync(); err != nil {
		return false, err
	}

	v, _, err := m.ensureVault(vaultName)
	if err != nil {
		return false, err
	}
	if _, ok := v.Files[abs]; ok {
		m.logger.Debug("file already tracked", slog.String("vault", vaultName), slog.String("path", abs))
		return false, nil
	}

	v.Files[abs] = storage.TrackedFile{}
	if err := m.persist(); err != nil {
		return false, err
	}
	m.logger.Info("file added", slog.String("vault", vaultName), slog.String("path", abs))
	return true, nil
}

// DescribeVault reports the vault's key and the state of every file. A
// missing vault is created first if the operator agrees.
// Touches: Persisted (load, and save when created) and Local.
func (m *Manager) DescribeVault(ctx context.Context, name string) (*VaultView, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := m.sync(); err != nil {
		return nil, err
	}

	v, _, err := m.ensureVault(name)
	if err != nil {
		return nil, err
	}

	view := &VaultView{
		Name:      name,
		Key:       v.Key,
		InKeyring: keyring.IsRef(v.Key),
		Files:     make([]FileView, 0, len(v.Files)),
	}
	for _, path := range v.Paths() {
		rec := v.Files[path]
		fv := FileView{
			Path:        path,
			State:       rec.State(),
			Identifier:  rec.Identifier,
			EncryptedAt: rec.EncryptedTime(),
		}
		info, err := os.Stat(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			fv.Missing = true
		case err != nil:
			m.logger.Warn("cannot stat source", slog.String("path", path), slog.Any("error", err))
		case fv.State == storage.StateEncrypted:
			fv.Stale = info.ModTime().After(fv.EncryptedAt)
		}
		if fv.State == storage.StateEncrypted {
			fv.NoArtifact = !m.artifacts.Exists(rec.Identifier)
		}
		view.Files = append(view.Files, fv)
	}
	return view, nil
}

// ListVaults summarizes every vault, sorted by name.
// Touches: Persisted (load) and Local.
func (m *Manager) ListVaults(ctx context.Context) ([]VaultSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := m.sync(); err != nil {
		return nil, err
	}

	names := m.local.Names()
	summaries := make([]VaultSummary, 0, len(names))
	for _, name := range names {
		v := m.local.Vaults[name]
		s := VaultSummary{Name: name, Files: len(v.Files)}
		for _, f := range v.Files {
			if f.State() == storage.StateEncrypted {
				s.Encrypted++
			}
		}
		summaries = append(summaries, s)
	}
	return summaries, nil
}
