package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/pstuifzand/minders/internal/model"
	"github.com/pstuifzand/minders/internal/persist"
	"github.com/pstuifzand/minders/internal/selection"
)

type AddCmd struct {
	flags *Flags
	app   *App

	after string
	under string
	state string
	pin   bool
}

// NewAddCmd creates a new add command.
func NewAddCmd(flags *Flags, app *App) *AddCmd {
	return &AddCmd{flags: flags, app: app}
}

// Register adds the add command to the application.
func (cmd *AddCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "add",
		Usage:     "Add an item",
		UsageText: "minders add [--after ID | --under ID] [--state STATE] [--pin] TEXT...",
		Description: `Creates a new item. Without --after or --under the item is added as the
first top-level item. New items start in the "new" state.

Expressions like {{date}}, {{tomorrow|date:%d %B}} or {{weekday(1)}} in the
text are expanded when the item is added.

Examples:
  minders add Buy milk
  minders add --under 3f2a Call the plumber
  minders add --after 3f2a --state urgent Renew passport
  minders add 'Weekly review {{weekday(5)|date:%d %b}}'`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "after",
				Aliases:     []string{"a"},
				Usage:       "add as the next sibling of this item",
				Destination: &cmd.after,
			},
			&cli.StringFlag{
				Name:        "under",
				Aliases:     []string{"u"},
				Usage:       "add as the last child of this item",
				Destination: &cmd.under,
			},
			&cli.StringFlag{
				Name:        "state",
				Aliases:     []string{"s"},
				Usage:       "initial state",
				Destination: &cmd.state,
			},
			&cli.BoolFlag{
				Name:        "pin",
				Usage:       "pin the new item",
				Destination: &cmd.pin,
			},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *AddCmd) run(ctx context.Context, c *cli.Command) error {
	text, err := cmd.app.ExpandText(strings.Join(c.Args().Slice(), " "))
	if err != nil {
		return err
	}
	if cmd.after != "" && cmd.under != "" {
		return fmt.Errorf("--after and --under are mutually exclusive")
	}
	var fields model.Fields
	if cmd.state != "" {
		st, err := model.ParseState(cmd.state)
		if err != nil {
			return err
		}
		fields.State = &st
	}
	if cmd.pin {
		fields.Pinned = &cmd.pin
	}

	return cmd.app.WithSession(ctx, func(s *persist.Session) error {
		t := s.Tree()
		var (
			it  model.Item
			err error
		)
		switch {
		case cmd.after != "":
			id, rerr := ResolveID(t, cmd.after)
			if rerr != nil {
				return rerr
			}
			it, err = t.CreateItemAfter(id, text)
		case cmd.under != "":
			id, rerr := ResolveID(t, cmd.under)
			if rerr != nil {
				return rerr
			}
			it, err = t.CreateChild(id, text)
		default:
			it, err = t.CreateTopItem(text)
		}
		if err != nil {
			return err
		}
		if !fields.Empty() {
			if it, err = t.UpdateOutlineItem(it.ID, fields, false); err != nil {
				return err
			}
		}
		cmd.app.Selection.RequestSelect(it.ID, selection.SelectEnd)
		return printItem(c.Root().Writer, it)
	})
}
