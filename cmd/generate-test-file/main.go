package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"github.com/pstuifzand/minders/internal/model"
	"github.com/pstuifzand/minders/internal/outline"
	"github.com/pstuifzand/minders/internal/storage"
)

func main() {
	var (
		numNodes int
		depth    int
		owner    string
		dir      string
		force    bool
	)

	app := &cli.Command{
		Name:      "generate-test-file",
		Usage:     "Write a large outline into a JSON data directory",
		UsageText: "generate-test-file [--nodes N] [--depth D] [--owner NAME] [--force] --dir DIR",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "nodes", Usage: "number of items to generate", Value: 1000, Destination: &numNodes},
			&cli.IntFlag{Name: "depth", Usage: "maximum nesting depth", Value: 3, Destination: &depth},
			&cli.StringFlag{Name: "owner", Usage: "owner of the outline", Value: "loadtest", Destination: &owner},
			&cli.StringFlag{Name: "dir", Usage: "data directory of the json backend", Required: true, Destination: &dir},
			&cli.BoolFlag{Name: "force", Usage: "replace an existing outline", Destination: &force},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if numNodes < 1 {
				return errors.New("nodes must be at least 1")
			}
			now := time.Now()
			o := generateOutline(owner, numNodes, depth, now)
			if errs := model.Validate(o); len(errs) > 0 {
				return fmt.Errorf("generated outline is invalid: %v", errs[0])
			}

			store := storage.NewJSONStore(dir, zerolog.Nop())
			if current, err := store.Load(ctx, owner); err == nil {
				if !force {
					return fmt.Errorf("%s already has an outline, use --force to replace it", owner)
				}
				o.BaseVersion = current.Version
				o.Version = max(current.Version+1, now.UnixMilli())
			} else if !errors.Is(err, storage.ErrNotFound) {
				return err
			} else {
				o.Version = now.UnixMilli()
			}

			doc, err := model.Serialize(o)
			if err != nil {
				return err
			}
			res, err := store.Save(ctx, owner, doc)
			if err != nil {
				return err
			}
			if !res.Accepted {
				return fmt.Errorf("outline changed while generating, stored version is %d", res.CurrentVersion)
			}

			fmt.Fprintf(c.Root().Writer, "Generated outline with %d items\n", len(o.Items)-1)
			fmt.Fprintf(c.Root().Writer, "Owner %s, version %d, saved in %s\n", owner, o.Version, dir)
			return nil
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// generateOutline builds a balanced outline of totalNodes items below the
// root, at most maxDepth levels deep.
func generateOutline(owner string, totalNodes, maxDepth int, now time.Time) *model.Outline {
	o := model.NewOutline(owner, outline.NewID(), now)
	remaining := totalNodes
	for remaining > 0 {
		generateItem(o, o.Root(), &remaining, 1, maxDepth, now)
	}
	return o
}

func generateItem(o *model.Outline, parent *model.Item, remaining *int, depth, maxDepth int, now time.Time) {
	if *remaining <= 0 {
		return
	}
	index := *remaining
	it := model.NewItem(outline.NewID(), generateUniqueText(index), now.Add(-time.Duration(index)*time.Hour))
	it.IsNew = false
	it.State = model.States[index%len(model.States)]
	if it.State.Terminal() {
		it.Closed = it.Modified
	}
	it.Pinned = index%97 == 0
	it.ParentID = parent.ID
	o.Items[it.ID] = it
	parent.ChildIDs = append(parent.ChildIDs, it.ID)
	*remaining--

	if depth < maxDepth && *remaining > 0 {
		n := getChildCount(*remaining, maxDepth-depth)
		for i := 0; i < n && *remaining > 0; i++ {
			generateItem(o, it, remaining, depth+1, maxDepth, now)
		}
	}
}

func getChildCount(remaining int, depthLeft int) int {
	// Distribute nodes across children based on remaining nodes
	if depthLeft == 1 {
		if remaining > 10 {
			return 5
		}
		return remaining / 2
	}
	if remaining > 50 {
		return 3
	}
	return 2
}

func generateUniqueText(index int) string {
	categories := []string{
		"Call", "Buy", "Email", "Fix", "Plan", "Book",
		"Renew", "Pay", "Review", "Clean", "Send", "Check",
	}
	subjects := []string{
		"dentist",
		"groceries",
		"landlord",
		"bike tyre",
		"holiday",
		"train tickets",
		"passport",
		"insurance",
		"quarterly report",
		"garage",
		"birthday card",
		"car service",
	}
	return fmt.Sprintf("%s %s #%d", categories[index%len(categories)], subjects[(index/len(categories))%len(subjects)], index)
}
