package cmd

import (
	"context"
	"fmt"
)

// Add tracks files in a vault
func Add(ctx context.Context, env *Env, vault string, paths []string) error {
	for _, path := range paths {
		added, err := env.Manager.AddFile(ctx, vault, path)
		if err != nil {
			return err
		}
		if added {
			fmt.Fprintf(env.Out, "added: %s\n", path)
		} else {
			fmt.Fprintf(env.Out, "already tracked: %s\n", path)
		}
	}
	return nil
}
