package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/illarion/cryptkeeper/cmd"
	"github.com/illarion/cryptkeeper/internal/config"
	"github.com/illarion/cryptkeeper/internal/prompt"
	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.Command{
		Name:                  "cryptkeeper",
		Usage:                 "Encrypt groups of files into a local vault and keep them up to date",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file (default: " + config.DefaultFile + ")",
				Sources: cli.EnvVars(config.EnvFile),
			},
			&cli.StringFlag{
				Name:  "metadata",
				Usage: "Metadata document path, overrides metadata.path",
			},
			&cli.StringFlag{
				Name:  "artifacts",
				Usage: "Artifact directory, overrides artifacts.dir",
			},
			&cli.BoolFlag{
				Name:    "yes",
				Aliases: []string{"y"},
				Usage:   "Answer yes to every confirmation",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Log debug output",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "create",
				Usage:     "Create a vault, or replace one with a new key",
				ArgsUsage: "<vault>",
				Action: withEnv(1, 1, func(ctx context.Context, c *cli.Command, env *cmd.Env) error {
					return cmd.Create(ctx, env, c.Args().First())
				}),
			},
			{
				Name:      "add",
				Usage:     "Track files in a vault",
				ArgsUsage: "<vault> <path>...",
				Action: withEnv(2, -1, func(ctx context.Context, c *cli.Command, env *cmd.Env) error {
					return cmd.Add(ctx, env, c.Args().First(), c.Args().Tail())
				}),
			},
			{
				Name:      "show",
				Usage:     "Show a vault's key and file states",
				ArgsUsage: "<vault>",
				Action: withEnv(1, 1, func(ctx context.Context, c *cli.Command, env *cmd.Env) error {
					return cmd.Show(ctx, env, c.Args().First())
				}),
			},
			{
				Name:  "list",
				Usage: "List vaults",
				Action: withEnv(0, 0, func(ctx context.Context, _ *cli.Command, env *cmd.Env) error {
					return cmd.List(ctx, env)
				}),
			},
			{
				Name:      "encrypt",
				Usage:     "Encrypt every file of a vault, or a single one",
				ArgsUsage: "<vault> [path]",
				Action: withEnv(1, 2, func(ctx context.Context, c *cli.Command, env *cmd.Env) error {
					return cmd.Encrypt(ctx, env, c.Args().First(), c.Args().Get(1))
				}),
			},
			{
				Name:      "decrypt",
				Usage:     "Restore a file from its encrypted copy",
				ArgsUsage: "<vault> <path>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"o"},
						Usage:   "Write to this file instead of the tracked path",
					},
				},
				Action: withEnv(2, 2, func(ctx context.Context, c *cli.Command, env *cmd.Env) error {
					return cmd.Decrypt(ctx, env, c.Args().First(), c.Args().Get(1), c.String("out"))
				}),
			},
			{
				Name:      "diff",
				Usage:     "Compare a file with its encrypted copy",
				ArgsUsage: "<vault> <path>",
				Action: withEnv(2, 2, func(ctx context.Context, c *cli.Command, env *cmd.Env) error {
					return cmd.Diff(ctx, env, c.Args().First(), c.Args().Get(1))
				}),
			},
			{
				Name:      "watch",
				Usage:     "Re-encrypt files of a vault as they change",
				ArgsUsage: "<vault>",
				Action: withQuietEnv(1, 1, func(ctx context.Context, c *cli.Command, env *cmd.Env) error {
					return cmd.Watch(ctx, env, c.Args().First())
				}),
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		cmd.HandleError(err)
	}
}

type envAction func(ctx context.Context, c *cli.Command, env *cmd.Env) error

// withEnv checks the argument count (maxArgs < 0 means unbounded), loads the
// config and opens the Env around action
func withEnv(minArgs, maxArgs int, action envAction) cli.ActionFunc {
	return runEnv(minArgs, maxArgs, true, action)
}

// withQuietEnv is withEnv for commands that read stdin themselves. Every
// question is answered no unless --yes is set.
func withQuietEnv(minArgs, maxArgs int, action envAction) cli.ActionFunc {
	return runEnv(minArgs, maxArgs, false, action)
}

func runEnv(minArgs, maxArgs int, interactive bool, action envAction) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		if n := c.NArg(); n < minArgs || (maxArgs >= 0 && n > maxArgs) {
			return fmt.Errorf("usage: cryptkeeper %s %s", c.Name, c.ArgsUsage)
		}

		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}

		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
		slog.SetDefault(logger)

		term := prompt.NewTerminal(os.Stdin, os.Stderr)
		env, err := cmd.Open(cfg, confirmer(term, c.Bool("yes"), interactive), logger)
		if err != nil {
			return err
		}
		defer env.Close()
		env.In = term.Reader()

		return action(ctx, c, env)
	}
}

// confirmer picks who answers questions: always yes with --yes, the
// terminal when interactive, otherwise always no
func confirmer(term prompt.Confirmer, yes, interactive bool) prompt.Confirmer {
	switch {
	case yes:
		return prompt.Always(true)
	case interactive:
		return term
	default:
		return prompt.Always(false)
	}
}

// loadConfig reads the config file and applies flag overrides. A file named
// explicitly must exist.
func loadConfig(c *cli.Command) (*config.Config, error) {
	explicit := c.String("config")
	cfg, err := config.Load(config.Resolve(explicit), explicit != "")
	if err != nil {
		return nil, err
	}

	if path := c.String("metadata"); path != "" {
		cfg.Metadata.Path = path
	}
	if dir := c.String("artifacts"); dir != "" {
		cfg.Artifacts.Dir = dir
	}
	if c.Bool("verbose") {
		cfg.LogLevel = slog.LevelDebug
	}
	return cfg, nil
}
