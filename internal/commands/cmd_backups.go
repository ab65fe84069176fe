package commands

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/pstuifzand/minders/internal/diff"
	"github.com/pstuifzand/minders/internal/model"
	"github.com/pstuifzand/minders/internal/persist"
	"github.com/pstuifzand/minders/internal/storage"
)

type BackupsCmd struct {
	flags *Flags
	app   *App

	limit   int
	verbose bool
}

// NewBackupsCmd creates the backups and log commands.
func NewBackupsCmd(flags *Flags, app *App) *BackupsCmd {
	return &BackupsCmd{flags: flags, app: app}
}

// Register adds the backups and log commands to the application.
func (cmd *BackupsCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands,
		&cli.Command{
			Name:  "backups",
			Usage: "List and restore backups",
			Commands: []*cli.Command{
				{
					Name:      "list",
					Usage:     "List the backups of the owner, oldest first",
					UsageText: "minders backups list",
					Action:    cmd.runList,
				},
				{
					Name:      "restore",
					Usage:     "Replace the outline with a backup",
					UsageText: "minders backups restore PATH",
					Description: `Replaces the current outline with the one stored in the backup and saves
it as a new version. The outline it replaces stays available through its
own backup.`,
					Action: cmd.runRestore,
				},
				{
					Name:      "diff",
					Usage:     "Show what changed since a backup",
					UsageText: "minders backups diff [--verbose] PATH",
					Flags: []cli.Flag{
						&cli.BoolFlag{
							Name:        "verbose",
							Aliases:     []string{"v"},
							Usage:       "include items whose only change is the modified time",
							Destination: &cmd.verbose,
						},
					},
					Action: cmd.runDiff,
				},
			},
		},
		&cli.Command{
			Name:      "log",
			Usage:     "Show recent save attempts (sqlite backend only)",
			UsageText: "minders log [--limit N]",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:        "limit",
					Aliases:     []string{"n"},
					Usage:       "number of entries",
					Value:       20,
					Destination: &cmd.limit,
				},
			},
			Action: cmd.runLog,
		},
	)
	return app
}

func (cmd *BackupsCmd) manager() (*storage.BackupManager, error) {
	bm, err := cmd.app.Backups()
	if err != nil {
		return nil, err
	}
	if bm == nil {
		return nil, errors.New("backups are disabled in the configuration")
	}
	return bm, nil
}

func (cmd *BackupsCmd) runList(_ context.Context, c *cli.Command) error {
	bm, err := cmd.manager()
	if err != nil {
		return err
	}
	backups, err := bm.FindBackups(cmd.app.Config.Owner)
	if err != nil {
		return err
	}
	w := c.Root().Writer
	if len(backups) == 0 {
		_, err := fmt.Fprintf(w, "no backups in %s\n", bm.Dir())
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "TIME\tPATH")
	for _, b := range backups {
		_, _ = fmt.Fprintf(tw, "%s\t%s\n", formatTime(b.Timestamp), b.FilePath)
	}
	return tw.Flush()
}

// readBackup loads and checks the backup named by the only argument
func (cmd *BackupsCmd) readBackup(c *cli.Command) (*model.Outline, error) {
	if c.NArg() != 1 {
		return nil, fmt.Errorf("expected exactly one backup path")
	}
	bm, err := cmd.manager()
	if err != nil {
		return nil, err
	}
	doc, err := bm.ReadBackup(c.Args().First())
	if err != nil {
		return nil, err
	}
	o, err := model.Deserialize(doc)
	if err != nil {
		return nil, err
	}
	if o.OwnerID != cmd.app.Config.Owner {
		return nil, fmt.Errorf("backup belongs to %q, not %q", o.OwnerID, cmd.app.Config.Owner)
	}
	if errs := model.Validate(o); len(errs) > 0 {
		return nil, fmt.Errorf("backup is invalid: %v", errs[0])
	}
	return o, nil
}

func (cmd *BackupsCmd) runDiff(ctx context.Context, c *cli.Command) error {
	old, err := cmd.readBackup(c)
	if err != nil {
		return err
	}
	return cmd.app.WithSession(ctx, func(s *persist.Session) error {
		current, _ := s.Tree().Snapshot()
		result := diff.ComputeDiff(old, current)
		lines := diff.BuildDiffLines(result, cmd.verbose)
		if len(lines) == 0 {
			_, err := fmt.Fprintln(c.Root().Writer, "no changes")
			return err
		}
		return diff.WriteLines(c.Root().Writer, lines)
	})
}

func (cmd *BackupsCmd) runRestore(ctx context.Context, c *cli.Command) error {
	restored, err := cmd.readBackup(c)
	if err != nil {
		return err
	}

	return cmd.app.WithSession(ctx, func(s *persist.Session) error {
		// Restoring builds on the stored version like any other edit.
		current := s.Tree().Version()
		restored.Version = current
		restored.BaseVersion = current
		s.Tree().Replace(restored)
		if err := s.Save(ctx); err != nil {
			return err
		}
		_, err := fmt.Fprintf(c.Root().Writer, "restored %d item(s) as version %d\n", s.Tree().Len(), s.Tree().Version())
		return err
	})
}

func (cmd *BackupsCmd) runLog(ctx context.Context, c *cli.Command) error {
	backend, err := cmd.app.Backend(ctx)
	if err != nil {
		return err
	}
	store, ok := backend.(*storage.SQLiteStore)
	if !ok {
		return fmt.Errorf("the save log needs the sqlite backend, not %q", cmd.app.Config.Backend)
	}
	records, err := store.History(ctx, cmd.app.Config.Owner, cmd.limit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(c.Root().Writer, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "TIME\tBASE\tVERSION\tRESULT")
	for _, r := range records {
		result := "accepted"
		if !r.Accepted {
			result = "rejected"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", formatTime(r.At), r.Base, r.Version, result)
	}
	return tw.Flush()
}
