package cmd

import (
	"context"
	"fmt"
)

// List shows every vault with its file counts
func List(ctx context.Context, env *Env) error {
	vaults, err := env.Manager.ListVaults(ctx)
	if err != nil {
		return err
	}

	if len(vaults) == 0 {
		fmt.Fprintln(env.Out, "No vaults")
		return nil
	}
	for _, v := range vaults {
		fmt.Fprintf(env.Out, "%s (%d files, %d encrypted)\n", v.Name, v.Files, v.Encrypted)
	}
	return nil
}
