package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/illarion/cryptkeeper/internal/core"
)

// Show prints a vault's key and the state of every file
func Show(ctx context.Context, env *Env, vault string) error {
	view, err := env.Manager.DescribeVault(ctx, vault)
	if err != nil {
		return err
	}
	printView(env, view)
	return nil
}

func printView(env *Env, view *core.VaultView) {
	fmt.Fprintf(env.Out, "Vault: %s\n", view.Name)
	if view.InKeyring {
		fmt.Fprintf(env.Out, "Key: %s (OS keyring)\n", view.Key)
	} else {
		fmt.Fprintf(env.Out, "Key: %s\n", view.Key)
	}

	fmt.Fprintln(env.Out, "Files:")
	if len(view.Files) == 0 {
		fmt.Fprintln(env.Out, "  (none)")
		return
	}
	for _, f := range view.Files {
		details := []string{f.State.String()}
		if f.Identifier != "" {
			details = append(details, f.Identifier)
		}
		if !f.EncryptedAt.IsZero() {
			details = append(details, f.EncryptedAt.Local().Format(time.RFC3339))
		}
		if f.Stale {
			details = append(details, "modified")
		}
		if f.Missing {
			details = append(details, "missing")
		}
		if f.NoArtifact {
			details = append(details, "artifact lost")
		}
		fmt.Fprintf(env.Out, "  %s (%s)\n", f.Path, strings.Join(details, ", "))
	}
}
