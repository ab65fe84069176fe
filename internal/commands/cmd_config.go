package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/pstuifzand/minders/internal/config"
)

type ConfigCmd struct {
	flags *Flags

	force bool
}

// NewConfigCmd creates a new config command.
func NewConfigCmd(flags *Flags) *ConfigCmd {
	return &ConfigCmd{flags: flags}
}

// Register adds the config command to the application.
func (cmd *ConfigCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "config",
		Usage: "Inspect and create the configuration file",
		Commands: []*cli.Command{
			{
				Name:      "show",
				Usage:     "Print the effective configuration",
				UsageText: "minders config show",
				Action:    cmd.runShow,
			},
			{
				Name:      "init",
				Usage:     "Write a configuration file with the defaults",
				UsageText: "minders config init [--force]",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:        "force",
						Usage:       "overwrite an existing file",
						Destination: &cmd.force,
					},
				},
				Action: cmd.runInit,
			},
		},
	})
	return app
}

func (cmd *ConfigCmd) runShow(_ context.Context, c *cli.Command) error {
	data, err := cmd.flags.Config.Marshal()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(c.Root().Writer, "# %s\n%s", cmd.flags.ConfigPath, data)
	return err
}

func (cmd *ConfigCmd) runInit(_ context.Context, c *cli.Command) error {
	path := cmd.flags.ConfigPath
	if _, err := os.Stat(path); err == nil && !cmd.force {
		return fmt.Errorf("%s already exists, use --force to overwrite", path)
	}
	if err := config.Default().SaveTo(path); err != nil {
		return err
	}
	_, err := fmt.Fprintf(c.Root().Writer, "wrote %s\n", path)
	return err
}
