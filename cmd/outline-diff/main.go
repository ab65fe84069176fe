package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/pstuifzand/minders/internal/diff"
	"github.com/pstuifzand/minders/internal/model"
	"github.com/pstuifzand/minders/internal/storage"
)

type diffCmd struct {
	verbose bool
	summary bool
	dir     string
	owner   string
}

func newApp() *cli.Command {
	cmd := &diffCmd{}
	return &cli.Command{
		Name:  "outline-diff",
		Usage: "Show the changes between saved outlines item by item",
		UsageText: `outline-diff [options] OLD.json NEW.json
   outline-diff [options] --dir DIR --owner OWNER`,
		Description: `Two-file mode compares two outline files, such as backups or files of the
json backend.

History mode walks the backups of one owner in a backup directory and shows
the changes between each backup and the next.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "verbose",
				Aliases:     []string{"v"},
				Usage:       "show full details, including items that were only touched",
				Destination: &cmd.verbose,
			},
			&cli.BoolFlag{
				Name:        "summary",
				Aliases:     []string{"s"},
				Usage:       "print only the change counts",
				Destination: &cmd.summary,
			},
			&cli.StringFlag{
				Name:        "dir",
				Usage:       "backup directory for history mode",
				Destination: &cmd.dir,
			},
			&cli.StringFlag{
				Name:        "owner",
				Usage:       "owner whose backups to walk in history mode",
				Destination: &cmd.owner,
			},
		},
		Action: cmd.run,
	}
}

func (cmd *diffCmd) run(ctx context.Context, c *cli.Command) error {
	w := c.Root().Writer
	if cmd.dir != "" {
		if c.Args().Len() != 0 {
			return fmt.Errorf("history mode takes no file arguments")
		}
		return cmd.history(w)
	}
	if c.Args().Len() != 2 {
		return fmt.Errorf("expected two outline files, got %d", c.Args().Len())
	}

	old, err := readOutline(c.Args().Get(0))
	if err != nil {
		return err
	}
	current, err := readOutline(c.Args().Get(1))
	if err != nil {
		return err
	}
	return cmd.write(w, old, current)
}

func (cmd *diffCmd) history(w io.Writer) error {
	if cmd.owner == "" {
		return fmt.Errorf("history mode needs --owner")
	}
	bm, err := storage.NewBackupManager(cmd.dir)
	if err != nil {
		return err
	}
	backups, err := bm.FindBackups(cmd.owner)
	if err != nil {
		return err
	}
	if len(backups) < 2 {
		_, err := fmt.Fprintf(w, "need at least two backups of %s in %s, found %d\n", cmd.owner, cmd.dir, len(backups))
		return err
	}

	prev, err := readOutline(backups[0].FilePath)
	if err != nil {
		return err
	}
	for _, b := range backups[1:] {
		next, err := readOutline(b.FilePath)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "### %s\n", b.Timestamp.Format("2006-01-02 15:04:05")); err != nil {
			return err
		}
		if err := cmd.write(w, prev, next); err != nil {
			return err
		}
		prev = next
	}
	return nil
}

func (cmd *diffCmd) write(w io.Writer, old, current *model.Outline) error {
	result := diff.ComputeDiff(old, current)
	if result.Empty() {
		_, err := fmt.Fprintln(w, "no changes")
		return err
	}
	lines := diff.BuildDiffLines(result, cmd.verbose)
	if cmd.summary {
		var summary []diff.DiffLine
		for _, l := range lines {
			if l.Type == diff.DiffTypeSummary {
				summary = append(summary, l)
			}
		}
		lines = summary
	}
	return diff.WriteLines(w, lines)
}

func readOutline(path string) (*model.Outline, error) {
	doc, err := storage.ReadDocumentFile(path)
	if err != nil {
		return nil, err
	}
	o, err := model.Deserialize(doc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return o, nil
}

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}
