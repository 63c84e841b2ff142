package cmd

import (
	"context"
	"fmt"
)

// Create creates a vault, asking before replacing an existing one
func Create(ctx context.Context, env *Env, name string) error {
	if err := env.Manager.CreateVault(ctx, name); err != nil {
		return err
	}
	fmt.Fprintf(env.Out, "created: %s\n", name)
	return nil
}
