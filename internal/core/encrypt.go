package core

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/illarion/cryptkeeper/internal/artifact"
	"github.com/illarion/cryptkeeper/internal/crypto"
	"github.com/illarion/cryptkeeper/internal/storage"
)

// EncryptedFile is one file written by Encrypt
type EncryptedFile struct {
	Path        string
	Identifier  string
	EncryptedAt time.Time
}

// EncryptResult lists the files Encrypt committed, in path order
type EncryptResult struct {
	Vault string
	Files []EncryptedFile
}

// Encrypt encrypts one tracked file, or every file in the vault when path
// is empty, into the artifact directory.
//
// The batch is all-or-nothing up to the commit: every source is read and
// encrypted, then every ciphertext is staged, before any artifact is
// replaced. A missing source aborts the batch with ErrSourceFileNotFound and
// nothing is written. Only committed files get their identifier and
// timestamp recorded. The timestamp is taken after the commit and rounded up
// to the next whole second, so it never predates the ciphertext on disk.
// Touches: Persisted (load, save), Local and the artifact directory.
func (m *Manager) Encrypt(ctx context.Context, vaultName, path string) (*EncryptResult, error) {
	if err := validName(vaultName); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := m.sync(); err != nil {
		return nil, err
	}

	result := &EncryptResult{Vault: vaultName}

	v, created, err := m.ensureVault(vaultName)
	if err != nil {
		return nil, err
	}
	if created {
		m.logger.Info("nothing to encrypt", slog.String("vault", vaultName))
		return result, nil
	}

	var targets []string
	if path != "" {
		abs, err := absPath(path)
		if err != nil {
			return nil, err
		}
		if _, ok := v.Files[abs]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrFileNotTracked, abs)
		}
		targets = []string{abs}
	} else {
		targets = v.Paths()
	}
	if len(targets) == 0 {
		m.logger.Info("nothing to encrypt", slog.String("vault", vaultName))
		return result, nil
	}

	enc, err := encryptor(v)
	if err != nil {
		return nil, fmt.Errorf("vault %s: %w", vaultName, err)
	}
	defer enc.Destroy()

	type pendingFile struct {
		path       string
		identifier string
		ciphertext []byte
		staged     *artifact.Staged
	}

	var pending []*pendingFile
	clearPending := func() {
		for _, p := range pending {
			crypto.ClearBytes(p.ciphertext)
		}
	}
	taken := m.local.Identifiers()

	// Phase 1: read and encrypt everything before touching the disk
	for _, target := range targets {
		if err := ctx.Err(); err != nil {
			clearPending()
			return nil, err
		}

		info, err := os.Stat(target)
		if errors.Is(err, fs.ErrNotExist) {
			clearPending()
			return nil, fmt.Errorf("%w: %s", ErrSourceFileNotFound, target)
		}
		if err != nil {
			clearPending()
			return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
		}
		if info.IsDir() {
			clearPending()
			return nil, fmt.Errorf("%w: %s is a directory", ErrIOFailure, target)
		}

		id := v.Files[target].Identifier
		if id == "" {
			if len(targets) == 1 {
				id, err = storage.Allocate(m.local)
			} else {
				id, err = storage.NewIdentifier(taken)
			}
			if err != nil {
				clearPending()
				return nil, err
			}
		}

		data, err := os.ReadFile(target)
		if errors.Is(err, fs.ErrNotExist) {
			clearPending()
			return nil, fmt.Errorf("%w: %s", ErrSourceFileNotFound, target)
		}
		if err != nil {
			clearPending()
			return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
		}

		ciphertext, err := enc.Encrypt(data)
		crypto.ClearBytes(data)
		if err != nil {
			clearPending()
			return nil, fmt.Errorf("failed to encrypt %s: %w", target, err)
		}

		pending = append(pending, &pendingFile{
			path:       target,
			identifier: id,
			ciphertext: ciphertext,
		})
	}
	defer clearPending()

	discard := func(from int) {
		for _, p := range pending[from:] {
			if p.staged == nil {
				continue
			}
			if err := p.staged.Discard(); err != nil {
				m.logger.Warn("cannot remove staged artifact", slog.String("identifier", p.staged.ID()), slog.Any("error", err))
			}
		}
	}

	// Phase 2: stage every artifact, then commit them one by one
	for _, p := range pending {
		staged, err := m.artifacts.Stage(p.identifier, p.ciphertext)
		if err != nil {
			discard(0)
			return nil, fmt.Errorf("%w: staging %s: %w", ErrIOFailure, p.path, err)
		}
		p.staged = staged
	}

	var commitErr error
	for i, p := range pending {
		if err := p.staged.Commit(); err != nil {
			discard(i)
			commitErr = fmt.Errorf("%w: committing %s: %w", ErrIOFailure, p.path, err)
			break
		}
		stamp := ceilSecond(m.clock.Now())
		v.Files[p.path] = storage.TrackedFile{Identifier: p.identifier, EncryptedAt: stamp}
		result.Files = append(result.Files, EncryptedFile{
			Path:        p.path,
			Identifier:  p.identifier,
			EncryptedAt: time.Unix(stamp, 0),
		})
		m.logger.Debug("file encrypted",
			slog.String("vault", vaultName),
			slog.String("path", p.path),
			slog.String("identifier", p.identifier))
	}

	if len(result.Files) > 0 {
		if err := m.persist(); err != nil {
			return result, err
		}
	}
	if commitErr != nil {
		return result, commitErr
	}
	return result, nil
}

// ceilSecond returns t as Unix seconds, rounded up when t has a fractional part
func ceilSecond(t time.Time) int64 {
	sec := t.Unix()
	if t.Nanosecond() > 0 {
		sec++
	}
	return sec
}

// plaintext decrypts the artifact of an encrypted file
func (m *Manager) plaintext(v *storage.Vault, path string, rec storage.TrackedFile) ([]byte, error) {
	if rec.State() != storage.StateEncrypted {
		return nil, fmt.Errorf("%w: %s", ErrNotEncrypted, path)
	}

	ciphertext, err := m.artifacts.Read(rec.Identifier)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}

	enc, err := encryptor(v)
	if err != nil {
		return nil, err
	}
	defer enc.Destroy()

	data, err := enc.Decrypt(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt %s: %w", path, err)
	}
	return data, nil
}

// Decrypt restores an encrypted file from its artifact to dest, or to the
// tracked path when dest is empty, and returns the path written. An
// existing destination is only overwritten if the operator agrees.
// Touches: Persisted (load) and the artifact directory.
func (m *Manager) Decrypt(ctx context.Context, vaultName, path, dest string) (string, error) {
	if err := validName(vaultName); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := m.sync(); err != nil {
		return "", err
	}

	v, abs, rec, err := m.lookup(vaultName, path)
	if err != nil {
		return "", err
	}
	if dest == "" {
		dest = abs
	}
	if dest, err = filepath.Abs(dest); err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", dest, err)
	}

	data, err := m.plaintext(v, abs, rec)
	if err != nil {
		return "", err
	}
	defer crypto.ClearBytes(data)

	if _, err := os.Stat(dest); err == nil {
		if !m.confirm.Confirm(fmt.Sprintf("File %s exists, overwrite it?", dest)) {
			return "", ErrUserAborted
		}
	}

	if err := os.MkdirAll(filepath.Dir(dest), artifact.DirPermSecure); err != nil {
		return "", fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	if err := os.WriteFile(dest, data, artifact.FilePermSecure); err != nil {
		return "", fmt.Errorf("%w: %w", ErrIOFailure, err)
	}

	m.logger.Info("file decrypted", slog.String("vault", vaultName), slog.String("path", abs), slog.String("dest", dest))
	return dest, nil
}

// Diff returns a unified diff from the encrypted version of a file to its
// current source. Identical content yields "".
// Touches: Persisted (load) and the artifact directory.
func (m *Manager) Diff(ctx context.Context, vaultName, path string) (string, error) {
	if err := validName(vaultName); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := m.sync(); err != nil {
		return "", err
	}

	v, abs, rec, err := m.lookup(vaultName, path)
	if err != nil {
		return "", err
	}

	encrypted, err := m.plaintext(v, abs, rec)
	if err != nil {
		return "", err
	}
	defer crypto.ClearBytes(encrypted)

	current, err := os.ReadFile(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrSourceFileNotFound, abs)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	defer crypto.ClearBytes(current)

	return unifiedDiff(abs, encrypted, current), nil
}
