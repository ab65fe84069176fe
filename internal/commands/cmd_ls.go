package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/pstuifzand/minders/internal/persist"
	"github.com/pstuifzand/minders/internal/policy"
)

type LsCmd struct {
	flags *Flags
	app   *App

	filter        string
	includeDone   bool
	includeHidden bool
}

// NewLsCmd creates the ls and tree commands.
func NewLsCmd(flags *Flags, app *App) *LsCmd {
	return &LsCmd{flags: flags, app: app}
}

// Register adds the ls and tree commands to the application.
func (cmd *LsCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands,
		&cli.Command{
			Name:      "ls",
			Usage:     "List items through a view filter",
			UsageText: "minders ls [--filter NAME]",
			Description: `Lists the items that a view filter shows, sorted with pinned items first,
then by state and recency.

Filters:
  focus    urgent and current items that are not snoozed (default)
  review   new and waiting items, and soon items not touched within the
           review window
  pile     soon and later items
  waiting  items waiting on someone else
  snoozed  open items that are snoozed
  done     closed and obsolete items
  all      everything`,
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:        "filter",
					Aliases:     []string{"f"},
					Usage:       "view filter",
					Value:       string(policy.FilterFocus),
					Destination: &cmd.filter,
				},
			},
			Action: cmd.runLs,
		},
		&cli.Command{
			Name:      "tree",
			Usage:     "Print the outline, or the subtree below ID",
			UsageText: "minders tree [--done] [--hidden] [ID]",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:        "done",
					Usage:       "include closed and obsolete items",
					Destination: &cmd.includeDone,
				},
				&cli.BoolFlag{
					Name:        "hidden",
					Usage:       "include hidden items",
					Destination: &cmd.includeHidden,
				},
			},
			Action: cmd.runTree,
		},
	)
	return app
}

// Focus lists the focus view; it is the default action of the root command.
func (cmd *LsCmd) Focus(ctx context.Context, c *cli.Command) error {
	return cmd.list(ctx, c, policy.FilterFocus)
}

func (cmd *LsCmd) runLs(ctx context.Context, c *cli.Command) error {
	filter, err := policy.ParseFilter(cmd.filter)
	if err != nil {
		return err
	}
	return cmd.list(ctx, c, filter)
}

func (cmd *LsCmd) list(ctx context.Context, c *cli.Command, filter policy.Filter) error {
	return cmd.app.WithSession(ctx, func(s *persist.Session) error {
		items := s.Tree().View(filter)
		if len(items) == 0 {
			_, err := fmt.Fprintln(c.Root().Writer, "nothing here")
			return err
		}
		return printItems(c.Root().Writer, items, cmd.app.Selection)
	})
}

func (cmd *LsCmd) runTree(ctx context.Context, c *cli.Command) error {
	return cmd.app.WithSession(ctx, func(s *persist.Session) error {
		t := s.Tree()
		rootID := t.Root().ID
		if c.NArg() > 0 {
			id, err := ResolveID(t, c.Args().First())
			if err != nil {
				return err
			}
			rootID = id
		} else if focused, ok := t.Focused(); ok {
			rootID = focused.ID
		}
		return printTree(c.Root().Writer, t, rootID, treeOptions{
			includeDone:   cmd.includeDone,
			includeHidden: cmd.includeHidden,
			selection:     cmd.app.Selection,
		})
	})
}
