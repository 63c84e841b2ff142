package cmd

import (
	"context"
	"fmt"
)

// Encrypt encrypts one file, or the whole vault when path is empty
func Encrypt(ctx context.Context, env *Env, vault, path string) error {
	res, err := env.Manager.Encrypt(ctx, vault, path)
	if res != nil {
		for _, f := range res.Files {
			fmt.Fprintf(env.Out, "encrypted: %s\n", f.Path)
		}
	}
	if err != nil {
		return err
	}

	if len(res.Files) == 0 {
		fmt.Fprintf(env.Out, "nothing to encrypt in %s\n", vault)
		return nil
	}
	fmt.Fprintf(env.Out, "encrypted: %d files into %s\n", len(res.Files), env.Config.Artifacts.Dir)
	return nil
}
