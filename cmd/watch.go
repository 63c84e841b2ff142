package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/illarion/cryptkeeper/internal/core"
	"github.com/illarion/cryptkeeper/internal/keypress"
	"golang.org/x/sync/errgroup"
)

// Watch re-encrypts changed files until the cancel key is entered or ctx
// ends
func Watch(ctx context.Context, env *Env, vault string) error {
	cfg := env.Config.Watch
	w := env.Manager.NewWatcher(vault,
		core.WithInterval(cfg.Interval),
		core.WithNotify(cfg.Notify),
	)

	listener := keypress.New(env.In, cfg.CancelKey)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	fmt.Fprintf(env.Out, "watching: %s\n", vault)
	if hint := listener.Hint(os.Stdin); hint != "" {
		fmt.Fprintln(env.Out, hint)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return listener.Listen(gctx, cancel)
	})
	g.Go(func() error {
		defer cancel()
		return w.Run(gctx)
	})
	if err := g.Wait(); err != nil {
		return err
	}

	fmt.Fprintf(env.Out, "stopped: %s\n", vault)
	return nil
}
