package commands

import (
	"context"

	"github.com/davecgh/go-spew/spew"
	"github.com/urfave/cli/v3"

	"github.com/pstuifzand/minders/internal/persist"
)

type DumpCmd struct {
	flags *Flags
	app   *App
}

// NewDumpCmd creates a new dump command.
func NewDumpCmd(flags *Flags, app *App) *DumpCmd {
	return &DumpCmd{flags: flags, app: app}
}

// Register adds the dump command to the application.
func (cmd *DumpCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "dump",
		Usage:     "Print the in-memory structure of the outline or of one item",
		UsageText: "minders dump [ID]",
		Hidden:    true,
		Action:    cmd.run,
	})
	return app
}

func (cmd *DumpCmd) run(ctx context.Context, c *cli.Command) error {
	cfg := spew.ConfigState{Indent: "  ", SortKeys: true, DisablePointerAddresses: true}
	return cmd.app.WithSession(ctx, func(s *persist.Session) error {
		t := s.Tree()
		if c.NArg() == 0 {
			o, rev := t.Snapshot()
			cfg.Fdump(c.Root().Writer, rev, o)
			return nil
		}
		id, err := ResolveID(t, c.Args().First())
		if err != nil {
			return err
		}
		it, err := t.Get(id)
		if err != nil {
			return err
		}
		cfg.Fdump(c.Root().Writer, it)
		return nil
	})
}
