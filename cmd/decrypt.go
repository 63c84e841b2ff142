package cmd

import (
	"context"
	"fmt"
)

// Decrypt restores a file from its artifact, to dest when given
func Decrypt(ctx context.Context, env *Env, vault, path, dest string) error {
	written, err := env.Manager.Decrypt(ctx, vault, path, dest)
	if err != nil {
		return err
	}
	fmt.Fprintf(env.Out, "decrypted: %s\n", written)
	return nil
}
