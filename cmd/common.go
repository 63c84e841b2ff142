package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/illarion/cryptkeeper/internal/artifact"
	"github.com/illarion/cryptkeeper/internal/config"
	"github.com/illarion/cryptkeeper/internal/core"
	"github.com/illarion/cryptkeeper/internal/prompt"
	"github.com/illarion/cryptkeeper/internal/storage"
)

// Env is everything a command needs: the loaded config, an open Manager
// and the terminal streams
type Env struct {
	Config  *config.Config
	Manager *core.Manager
	In      io.Reader
	Out     io.Writer

	artifacts *artifact.Dir
}

// Open wires a Manager from cfg. The caller must Close the Env.
func Open(cfg *config.Config, confirm prompt.Confirmer, logger *slog.Logger) (*Env, error) {
	var backend storage.Backend
	switch cfg.Metadata.Backend {
	case config.BackendBolt:
		backend = storage.NewBoltBackend(cfg.Metadata.Path)
	default:
		backend = storage.NewFileBackend(cfg.Metadata.Path)
	}

	arts, err := artifact.Open(cfg.Artifacts.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact directory: %w", err)
	}

	m, err := core.New(core.Options{
		Store:      storage.NewStore(backend, confirm, logger),
		Artifacts:  arts,
		Confirm:    confirm,
		Logger:     logger,
		UseKeyring: cfg.Keys.Keyring,
	})
	if err != nil {
		arts.Close()
		return nil, err
	}

	return &Env{
		Config:    cfg,
		Manager:   m,
		In:        os.Stdin,
		Out:       os.Stdout,
		artifacts: arts,
	}, nil
}

// Close releases the artifact directory
func (e *Env) Close() error {
	if e.artifacts != nil {
		return e.artifacts.Close()
	}
	return nil
}

// Report prints err for the user and returns the exit code
func Report(w io.Writer, err error) int {
	switch {
	case errors.Is(err, core.ErrUserAborted):
		fmt.Fprintln(w, "Operation aborted.")
		return 0
	case errors.Is(err, core.ErrCorruptMetadata):
		fmt.Fprintf(w, "Error: %s\n", err)
		fmt.Fprintf(w, "Fix the metadata file by hand; it was left unchanged\n")
	case errors.Is(err, core.ErrMetadataUnavailable):
		fmt.Fprintf(w, "Error: %s\n", err)
		fmt.Fprintf(w, "Check metadata.path in the config or pass --metadata\n")
	case errors.Is(err, core.ErrVaultNotFound):
		fmt.Fprintf(w, "Error: %s\n", err)
		fmt.Fprintf(w, "Run 'cryptkeeper create <vault>' first\n")
	case errors.Is(err, core.ErrFileNotTracked):
		fmt.Fprintf(w, "Error: %s\n", err)
		fmt.Fprintf(w, "Use 'cryptkeeper add <vault> <path>' to track it\n")
	case errors.Is(err, core.ErrNotEncrypted):
		fmt.Fprintf(w, "Error: %s\n", err)
		fmt.Fprintf(w, "Run 'cryptkeeper encrypt <vault>' first\n")
	case errors.Is(err, core.ErrSourceFileNotFound):
		fmt.Fprintf(w, "Error: %s\n", err)
		fmt.Fprintf(w, "Nothing was encrypted; restore the file or use 'cryptkeeper show <vault>'\n")
	default:
		fmt.Fprintf(w, "Error: %s\n", err)
	}
	return 1
}

// HandleError reports err and exits
func HandleError(err error) {
	os.Exit(Report(os.Stderr, err))
}
