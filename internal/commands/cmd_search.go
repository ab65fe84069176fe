package commands

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/pstuifzand/minders/internal/model"
	"github.com/pstuifzand/minders/internal/persist"
	"github.com/pstuifzand/minders/internal/search"
)

type SearchCmd struct {
	flags *Flags
	app   *App

	explain     bool
	first       bool
	showHistory bool
}

// NewSearchCmd creates a new search command.
func NewSearchCmd(flags *Flags, app *App) *SearchCmd {
	return &SearchCmd{flags: flags, app: app}
}

// Register adds the search command to the application.
func (cmd *SearchCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "search",
		Aliases:   []string{"s"},
		Usage:     "Find items with a query",
		UsageText: "minders search [--explain] [--first] QUERY...\n   minders search --history",
		Description: `Searches every item below the root, hidden ones included.

Terms are matched case-insensitively against the text and joined with AND.
Use | for OR, - to negate and parentheses to group.

  "exact phrase"       quoted text
  ~term                fuzzy match
  /regex/              regular expression
  d:2  d:>1            depth, top level is 1
  c:>7d  m:<2024-01-01 created, modified; x: for closed
  children:0           number of children
  state:urgent,soon    state in list
  is:pinned            pinned, hidden, focus, snoozed, done, open
  p:work               direct parent matches
  a:work               some ancestor matches
  child:milk           some child matches; child*: for descendants
  s:milk               some sibling matches

Prefix a relational filter with + to require all instead of some, or with
- to require none.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "explain",
				Aliases:     []string{"x"},
				Usage:       "print the parsed query and why each item matched",
				Destination: &cmd.explain,
			},
			&cli.BoolFlag{
				Name:        "first",
				Usage:       "print only the first match",
				Destination: &cmd.first,
			},
			&cli.BoolFlag{
				Name:        "history",
				Usage:       "list recent queries, newest first",
				Destination: &cmd.showHistory,
			},
		},
		Action: cmd.run,
	})
	return app
}

const searchHistory = "search"

func (cmd *SearchCmd) run(ctx context.Context, c *cli.Command) error {
	w := c.Root().Writer
	if cmd.showHistory {
		return cmd.printHistory(w)
	}

	query := strings.Join(c.Args().Slice(), " ")
	expr, err := search.ParseQuery(query)
	if err != nil {
		return fmt.Errorf("invalid query: %w", err)
	}
	cmd.remember(query)

	if cmd.explain {
		if _, err := fmt.Fprintf(w, "%s\n\n", search.Describe(expr)); err != nil {
			return err
		}
	}

	return cmd.app.WithSession(ctx, func(s *persist.Session) error {
		var matches []model.Item
		if cmd.first {
			o, _ := s.Tree().Snapshot()
			if it := search.First(o, expr); it != nil {
				matches = append(matches, *it)
			}
		} else {
			matches = s.Tree().Search(expr)
		}

		if len(matches) == 0 {
			_, err := fmt.Fprintln(w, "no matches")
			return err
		}
		if !cmd.explain {
			return printItems(w, matches, nil)
		}

		o, _ := s.Tree().Snapshot()
		for _, it := range matches {
			x := search.Explain(o.FindItemByID(it.ID), o, expr)
			if _, err := fmt.Fprintf(w, "%s\n%s\n", shortID(it.ID), x); err != nil {
				return err
			}
		}
		return nil
	})
}

// remember records a query; failures only get logged
func (cmd *SearchCmd) remember(query string) {
	h, err := cmd.app.History()
	if err == nil {
		err = h.Add(searchHistory, query)
	}
	if err != nil {
		cmd.app.Logger.Warn().Err(err).Msg("failed to record search history")
	}
}

func (cmd *SearchCmd) printHistory(w io.Writer) error {
	h, err := cmd.app.History()
	if err != nil {
		return err
	}
	entries, err := h.Load(searchHistory)
	if err != nil {
		return err
	}
	for _, q := range slices.Backward(entries) {
		if _, err := fmt.Fprintln(w, q); err != nil {
			return err
		}
	}
	return nil
}
