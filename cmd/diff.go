package cmd

import (
	"context"
	"fmt"
)

// Diff shows how a file changed since it was last encrypted
func Diff(ctx context.Context, env *Env, vault, path string) error {
	out, err := env.Manager.Diff(ctx, vault, path)
	if err != nil {
		return err
	}
	if out == "" {
		fmt.Fprintf(env.Out, "unchanged: %s\n", path)
		return nil
	}
	fmt.Fprint(env.Out, out)
	return nil
}
