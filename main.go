package main

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/pstuifzand/minders/internal/commands"
	"github.com/pstuifzand/minders/internal/logging"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	version = "dev"
	commit  = "HEAD"
)

func build() string {
	v, c := version, commit
	if v == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok {
			if mv := info.Main.Version; mv != "" && mv != "(devel)" {
				v = mv
			}
			for _, s := range info.Settings {
				if s.Key == "vcs.revision" {
					c = s.Value
				}
			}
		}
	}
	if len(c) > 7 {
		c = c[:7]
	}
	return fmt.Sprintf("%s (%s)", v, c)
}

func main() {
	ctx := context.Background()

	var (
		logCloser func()
		minders   = &commands.App{}
	)

	flags := &commands.Flags{}

	app := &cli.Command{
		Name:      "minders",
		Usage:     "Keep track of what needs doing in an outline",
		UsageText: "minders [global options] command [command options]",
		Description: `Minders keeps your reminders in a single outline. Every item has a state
(urgent, current, new, waiting, soon, later, closed, obsolete) and views
like focus and review pick the items that need attention now.

Run 'minders' with no arguments to list the focus view.`,
		Version: build(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file",
				Sources:     cli.EnvVars("MINDERS_CONFIG"),
				Value:       commands.DefaultConfigPath(),
				Destination: &flags.ConfigPath,
			},
			&cli.StringFlag{
				Name:        "owner",
				Usage:       "whose outline to open",
				Sources:     cli.EnvVars("MINDERS_OWNER"),
				Destination: &flags.Owner,
			},
			&cli.StringFlag{
				Name:        "backend",
				Usage:       "storage backend (sqlite, json, memory)",
				Sources:     cli.EnvVars("MINDERS_BACKEND"),
				Destination: &flags.Backend,
			},
			&cli.StringFlag{
				Name:        "data-dir",
				Usage:       "path to data directory",
				Sources:     cli.EnvVars("MINDERS_DATA_DIR"),
				Destination: &flags.DataDir,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error, fatal)",
				Sources:     cli.EnvVars("MINDERS_LOG_LEVEL"),
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "path to log file (defaults to stderr)",
				Sources:     cli.EnvVars("MINDERS_LOG_FILE"),
				Destination: &flags.LogFile,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			cfg, err := flags.Apply(c.IsSet)
			if err != nil {
				return ctx, fmt.Errorf("load config: %w", err)
			}

			logger, closer, err := logging.New(cfg.LogLevel, cfg.LogFile)
			if err != nil {
				return ctx, fmt.Errorf("setup logger: %w", err)
			}
			log.Logger = logger
			logCloser = closer

			// Commands already hold a pointer to the app
			minders.Init(cfg, logging.Component("minders"))
			return ctx, nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			if err := minders.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close storage")
				return err
			}
			if logCloser != nil {
				logCloser()
			}
			return nil
		},
	}

	lsCmd := commands.NewLsCmd(flags, minders)

	app = commands.NewAddCmd(flags, minders).Register(app)
	app = lsCmd.Register(app)
	app = commands.NewItemCmd(flags, minders).Register(app)
	app = commands.NewSearchCmd(flags, minders).Register(app)
	app = commands.NewExportCmd(flags, minders).Register(app)
	app = commands.NewBackupsCmd(flags, minders).Register(app)
	app = commands.NewDumpCmd(flags, minders).Register(app)
	app = commands.NewConfigCmd(flags).Register(app)

	app.Action = func(ctx context.Context, c *cli.Command) error {
		if c.Args().Len() > 0 {
			return fmt.Errorf("unknown command %q. Run 'minders --help' for usage", c.Args().First())
		}
		return lsCmd.Focus(ctx, c)
	}

	exitCode := 0
	if err := app.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		exitCode = 1
	}
	os.Exit(exitCode)
}
