package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/pstuifzand/minders/internal/export"
	"github.com/pstuifzand/minders/internal/persist"
	"github.com/pstuifzand/minders/internal/seed"
	"github.com/pstuifzand/minders/internal/textimport"
)

const (
	formatMarkdown = "markdown"
	formatYAML     = "yaml"
)

type ExportCmd struct {
	flags *Flags
	app   *App

	format        string
	includeDone   bool
	includeHidden bool
	showState     bool
	under         string
	importFormat  string
}

// NewExportCmd creates the export and import commands.
func NewExportCmd(flags *Flags, app *App) *ExportCmd {
	return &ExportCmd{flags: flags, app: app}
}

// Register adds the export and import commands to the application.
func (cmd *ExportCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands,
		&cli.Command{
			Name:      "export",
			Usage:     "Write the outline as markdown or YAML",
			UsageText: "minders export [--format markdown|yaml] [--done] [--hidden] [--state] [FILE]",
			Description: `Writes the outline to FILE, or to stdout when FILE is omitted or "-".

The YAML format is the one import reads, so an export can be imported into
another outline.`,
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:        "format",
					Usage:       "output format (markdown, yaml)",
					Value:       formatMarkdown,
					Destination: &cmd.format,
				},
				&cli.BoolFlag{
					Name:        "done",
					Usage:       "include closed and obsolete items",
					Destination: &cmd.includeDone,
				},
				&cli.BoolFlag{
					Name:        "hidden",
					Usage:       "include hidden items (markdown only)",
					Destination: &cmd.includeHidden,
				},
				&cli.BoolFlag{
					Name:        "state",
					Usage:       "prefix every bullet with its state (markdown only)",
					Destination: &cmd.showState,
				},
			},
			Action: cmd.runExport,
		},
		&cli.Command{
			Name:      "import",
			Usage:     "Add the items of a YAML, markdown or indented text file",
			UsageText: "minders import [--format auto|yaml|markdown|indented] [--under ID] FILE",
			Description: `Appends the items of a file below the root, or below --under. Use "-" to
read from stdin. With --format auto the format follows the file extension:
.yaml and .yml are YAML, .md is markdown, anything else is indented text.

Markdown headers and list items become items, "[state] " prefixes and
task list boxes set the state. In indented text every deeper indented
line is a child of the line above.

Example file:
  items:
    - text: Groceries
      state: soon
      children:
        - text: Milk`,
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:        "under",
					Aliases:     []string{"u"},
					Usage:       "parent of the imported items",
					Destination: &cmd.under,
				},
				&cli.StringFlag{
					Name:        "format",
					Usage:       "input format (auto, yaml, markdown, indented)",
					Value:       string(textimport.FormatAuto),
					Destination: &cmd.importFormat,
				},
			},
			Action: cmd.runImport,
		},
	)
	return app
}

func (cmd *ExportCmd) runExport(ctx context.Context, c *cli.Command) error {
	if cmd.format != formatMarkdown && cmd.format != formatYAML {
		return fmt.Errorf("unknown format %q", cmd.format)
	}
	return cmd.app.WithSession(ctx, func(s *persist.Session) error {
		w := c.Root().Writer
		if path := c.Args().First(); path != "" && path != "-" {
			f, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("create export file: %w", err)
			}
			defer func() { _ = f.Close() }()
			w = f
		}

		t := s.Tree()
		if cmd.format == formatMarkdown {
			return export.WriteMarkdown(w, t, export.Options{
				IncludeDone:   cmd.includeDone,
				IncludeHidden: cmd.includeHidden,
				ShowState:     cmd.showState,
			})
		}

		doc, err := seed.Capture(t, t.Root().ID, cmd.includeDone)
		if err != nil {
			return err
		}
		data, err := seed.Marshal(doc)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	})
}

func (cmd *ExportCmd) runImport(ctx context.Context, c *cli.Command) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one file")
	}
	path := c.Args().First()
	format, err := textimport.ParseFormat(cmd.importFormat)
	if err != nil {
		return err
	}
	if format == textimport.FormatAuto {
		format = textimport.FormatYAML
		if path != "-" {
			format = textimport.DetectFormat(path)
		}
	}
	data, err := readInput(path)
	if err != nil {
		return err
	}
	doc, err := textimport.Parse(string(data), format)
	if err != nil {
		return err
	}
	return cmd.app.WithSession(ctx, func(s *persist.Session) error {
		t := s.Tree()
		parentID := t.Root().ID
		if cmd.under != "" {
			if parentID, err = ResolveID(t, cmd.under); err != nil {
				return err
			}
		}
		n, err := seed.Import(t, parentID, doc)
		if err != nil {
			return fmt.Errorf("import stopped after %d item(s): %w", n, err)
		}
		_, err = fmt.Fprintf(c.Root().Writer, "imported %d item(s)\n", n)
		return err
	})
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}
