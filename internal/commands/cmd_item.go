package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/pstuifzand/minders/internal/model"
	"github.com/pstuifzand/minders/internal/outline"
	"github.com/pstuifzand/minders/internal/persist"
)

// ItemCmd groups the commands that change a single item.
type ItemCmd struct {
	flags *Flags
	app   *App

	subtree    bool
	clearFocus bool
}

// NewItemCmd creates the item commands.
func NewItemCmd(flags *Flags, app *App) *ItemCmd {
	return &ItemCmd{flags: flags, app: app}
}

// mutation changes the item id; args are the remaining arguments
type mutation func(t *outline.Tree, id string, args []string) (model.Item, error)

// Register adds the item commands to the application.
func (cmd *ItemCmd) Register(app *cli.Command) *cli.Command {
	simple := []struct {
		name, usage, args string
		minArgs           int
		fn                mutation
	}{
		{"edit", "Replace the text of an item", "ID TEXT...", 1, func(t *outline.Tree, id string, args []string) (model.Item, error) {
			text, err := cmd.app.ExpandText(strings.Join(args, " "))
			if err != nil {
				return model.Item{}, err
			}
			return t.SetText(id, text)
		}},
		{"state", "Set the state of an item", "ID STATE", 2, func(t *outline.Tree, id string, args []string) (model.Item, error) {
			st, err := model.ParseState(args[0])
			if err != nil {
				return model.Item{}, err
			}
			return t.SetState(id, st)
		}},
		{"snooze", "Snooze an item, indefinitely or for a duration like 3d or 2h", "ID [DURATION]", 1, func(t *outline.Tree, id string, args []string) (model.Item, error) {
			var until time.Time
			if len(args) > 0 {
				d, err := parseSpan(args[0])
				if err != nil {
					return model.Item{}, err
				}
				until = cmd.app.Clock().Add(d)
			}
			return t.Snooze(id, until)
		}},
		{"unsnooze", "Wake a snoozed item", "ID", 1, func(t *outline.Tree, id string, _ []string) (model.Item, error) {
			return t.Unsnooze(id)
		}},
		{"pin", "Pin an item", "ID", 1, func(t *outline.Tree, id string, _ []string) (model.Item, error) {
			return t.SetPinned(id, true)
		}},
		{"unpin", "Unpin an item", "ID", 1, func(t *outline.Tree, id string, _ []string) (model.Item, error) {
			return t.SetPinned(id, false)
		}},
		{"hide", "Hide an item from views", "ID", 1, func(t *outline.Tree, id string, _ []string) (model.Item, error) {
			hidden := true
			return t.UpdateOutlineItem(id, model.Fields{Hidden: &hidden}, false)
		}},
		{"unhide", "Show a hidden item again", "ID", 1, func(t *outline.Tree, id string, _ []string) (model.Item, error) {
			hidden := false
			return t.UpdateOutlineItem(id, model.Fields{Hidden: &hidden}, false)
		}},
		{"touch", "Mark an item as reviewed", "ID", 1, func(t *outline.Tree, id string, _ []string) (model.Item, error) {
			return t.Touch(id)
		}},
		{"bump", "Move an item to the top of its siblings", "ID", 1, func(t *outline.Tree, id string, _ []string) (model.Item, error) {
			return t.Bump(id)
		}},
		{"nest", "Make an item the last child of its previous sibling", "ID", 1, func(t *outline.Tree, id string, _ []string) (model.Item, error) {
			return t.Nest(id)
		}},
		{"unnest", "Move an item out to follow its parent", "ID", 1, func(t *outline.Tree, id string, _ []string) (model.Item, error) {
			return t.Unnest(id)
		}},
		{"mv", "Move an item below a new parent, at INDEX or at the end", "ID PARENT [INDEX]", 2, func(t *outline.Tree, id string, args []string) (model.Item, error) {
			parent, err := ResolveID(t, args[0])
			if err != nil {
				return model.Item{}, err
			}
			index := -1
			if len(args) > 1 {
				if index, err = strconv.Atoi(args[1]); err != nil {
					return model.Item{}, fmt.Errorf("invalid index %q", args[1])
				}
			}
			return t.Move(id, parent, index)
		}},
	}

	for _, sc := range simple {
		fn, minArgs := sc.fn, sc.minArgs
		app.Commands = append(app.Commands, &cli.Command{
			Name:      sc.name,
			Usage:     sc.usage,
			UsageText: "minders " + sc.name + " " + sc.args,
			Action: func(ctx context.Context, c *cli.Command) error {
				return cmd.mutate(ctx, c, minArgs, fn)
			},
		})
	}

	app.Commands = append(app.Commands,
		&cli.Command{
			Name:      "rm",
			Usage:     "Delete an item",
			UsageText: "minders rm [--subtree] ID",
			Description: `Deletes an item. Its children move up into its place unless --subtree
is given, which deletes them too.`,
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:        "subtree",
					Aliases:     []string{"r"},
					Usage:       "delete the children as well",
					Destination: &cmd.subtree,
				},
			},
			Action: cmd.runRemove,
		},
		&cli.Command{
			Name:      "sort",
			Usage:     "Sort the children of an item by state, pin and age",
			UsageText: "minders sort [ID]",
			Action:    cmd.runSort,
		},
		&cli.Command{
			Name:      "focus",
			Usage:     "Show, set or clear the focused item",
			UsageText: "minders focus [--clear] [ID]",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:        "clear",
					Usage:       "remove the focus",
					Destination: &cmd.clearFocus,
				},
			},
			Action: cmd.runFocus,
		},
	)
	return app
}

func (cmd *ItemCmd) mutate(ctx context.Context, c *cli.Command, minArgs int, fn mutation) error {
	args := c.Args().Slice()
	if len(args) < minArgs {
		return fmt.Errorf("usage: %s", c.UsageText)
	}
	return cmd.app.WithSession(ctx, func(s *persist.Session) error {
		id, err := ResolveID(s.Tree(), args[0])
		if err != nil {
			return err
		}
		it, err := fn(s.Tree(), id, args[1:])
		if err != nil {
			return err
		}
		return printItem(c.Root().Writer, it)
	})
}

func (cmd *ItemCmd) runRemove(ctx context.Context, c *cli.Command) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one item id")
	}
	mode := outline.DeletePromoteChildren
	if cmd.subtree {
		mode = outline.DeleteSubtree
	}
	return cmd.app.WithSession(ctx, func(s *persist.Session) error {
		id, err := ResolveID(s.Tree(), c.Args().First())
		if err != nil {
			return err
		}
		removed, err := s.Tree().DeleteItem(id, mode)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(c.Root().Writer, "removed %d item(s)\n", len(removed))
		return err
	})
}

func (cmd *ItemCmd) runSort(ctx context.Context, c *cli.Command) error {
	return cmd.app.WithSession(ctx, func(s *persist.Session) error {
		t := s.Tree()
		id := t.Root().ID
		if c.NArg() > 0 {
			var err error
			if id, err = ResolveID(t, c.Args().First()); err != nil {
				return err
			}
		}
		if err := t.SortChildren(id); err != nil {
			return err
		}
		return printTree(c.Root().Writer, t, id, treeOptions{})
	})
}

func (cmd *ItemCmd) runFocus(ctx context.Context, c *cli.Command) error {
	return cmd.app.WithSession(ctx, func(s *persist.Session) error {
		t := s.Tree()
		w := c.Root().Writer
		switch {
		case cmd.clearFocus:
			return t.SetFocus("")
		case c.NArg() > 0:
			id, err := ResolveID(t, c.Args().First())
			if err != nil {
				return err
			}
			if err := t.SetFocus(id); err != nil {
				return err
			}
			it, err := t.Get(id)
			if err != nil {
				return err
			}
			return printItem(w, it)
		default:
			it, ok := t.Focused()
			if !ok {
				_, err := fmt.Fprintln(w, "no focus")
				return err
			}
			return printItem(w, it)
		}
	})
}

// parseSpan reads durations with day and week units on top of the ones
// time.ParseDuration knows.
func parseSpan(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if n := len(s); n > 1 {
		unit := time.Duration(0)
		switch s[n-1] {
		case 'd':
			unit = 24 * time.Hour
		case 'w':
			unit = 7 * 24 * time.Hour
		}
		if unit != 0 {
			v, err := strconv.Atoi(s[:n-1])
			if err != nil || v <= 0 {
				return 0, fmt.Errorf("invalid duration %q", s)
			}
			return time.Duration(v) * unit, nil
		}
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return d, nil
}
