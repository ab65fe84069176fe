package commands

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pstuifzand/minders/internal/config"
	"github.com/pstuifzand/minders/internal/eventbus"
	"github.com/pstuifzand/minders/internal/history"
	"github.com/pstuifzand/minders/internal/model"
	"github.com/pstuifzand/minders/internal/outline"
	"github.com/pstuifzand/minders/internal/persist"
	"github.com/pstuifzand/minders/internal/policy"
	"github.com/pstuifzand/minders/internal/selection"
	"github.com/pstuifzand/minders/internal/storage"
	"github.com/pstuifzand/minders/internal/template"
)

// App is the composition root shared by all commands. The Before hook of
// the root command calls Init.
type App struct {
	Config    *config.Config
	Logger    zerolog.Logger
	Bus       *eventbus.Bus
	Selection *selection.Tracker

	// Clock is used for sessions and snooze deadlines
	Clock func() time.Time

	backend storage.Backend
	limiter *persist.BackupLimiter
}

// Init wires the bus and the selection tracker. Removed items drop out of
// the tracker. A select request saved by an earlier command is restored.
func (a *App) Init(cfg *config.Config, logger zerolog.Logger) {
	a.Config = cfg
	a.Logger = logger
	a.Bus = eventbus.New()
	a.Selection = selection.NewTracker()
	if path, err := a.selectionPath(); err == nil {
		err = a.Selection.LoadRequest(path)
		if err != nil {
			logger.Warn().Err(err).Msg("dropping saved selection")
		}
	}
	if a.Clock == nil {
		a.Clock = time.Now
	}
	eventbus.RegisterDebugLogger(a.Bus, logger.With().Str("cmp", "bus").Logger())
	a.Bus.Listen(eventbus.KindItem, eventbus.Wildcard, func(id string, op eventbus.Op) {
		if op == eventbus.OpRemove {
			a.Selection.Forget(id)
		}
	})
}

func (a *App) selectionPath() (string, error) {
	dataDir, err := a.Config.ResolveDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "selection.toml"), nil
}

// saveSelection keeps the pending select request for the next command
func (a *App) saveSelection() {
	path, err := a.selectionPath()
	if err == nil {
		err = a.Selection.SaveRequest(path)
	}
	if err != nil {
		a.Logger.Warn().Err(err).Msg("failed to save selection")
	}
}

// Backend opens the configured storage backend once
func (a *App) Backend(ctx context.Context) (storage.Backend, error) {
	if a.backend != nil {
		return a.backend, nil
	}
	dataDir, err := a.Config.ResolveDataDir()
	if err != nil {
		return nil, fmt.Errorf("resolve data dir: %w", err)
	}
	logger := a.Logger.With().Str("cmp", "storage").Logger()

	switch a.Config.Backend {
	case config.BackendSQLite:
		store, err := storage.OpenSQLite(ctx, dataDir, logger)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		a.backend = store
	case config.BackendJSON:
		a.backend = storage.NewJSONStore(filepath.Join(dataDir, "outlines"), logger)
	case config.BackendMemory:
		a.backend = storage.NewMemoryStore()
	default:
		return nil, fmt.Errorf("unknown backend %q", a.Config.Backend)
	}
	return a.backend, nil
}

// Backups returns the backup manager, or nil when backups are disabled
func (a *App) Backups() (*storage.BackupManager, error) {
	if !a.Config.Backup.Enabled {
		return nil, nil
	}
	return storage.NewBackupManager(a.Config.Backup.Dir)
}

// History returns the store of recent inputs in the data directory
func (a *App) History() (*history.Manager, error) {
	dataDir, err := a.Config.ResolveDataDir()
	if err != nil {
		return nil, fmt.Errorf("resolve data dir: %w", err)
	}
	return history.NewManager(filepath.Join(dataDir, "history"))
}

// ExpandText replaces {{...}} expressions in item text, evaluated at the
// current time in the review timezone.
func (a *App) ExpandText(text string) (string, error) {
	loc, err := a.Config.ReviewLocation()
	if err != nil {
		return "", err
	}
	return template.Expand(text, template.Context{Now: a.Clock().In(loc), WeekStart: time.Monday})
}

// Policy returns the item state policy from the review settings
func (a *App) Policy() (policy.Policy, error) {
	loc, err := a.Config.ReviewLocation()
	if err != nil {
		return policy.Policy{}, err
	}
	return policy.Policy{
		Now:          a.Clock,
		ReviewWindow: a.Config.Review.Window.Duration,
		Location:     loc,
	}, nil
}

// Close releases the backend
func (a *App) Close() error {
	if a.backend == nil {
		return nil
	}
	err := a.backend.Close()
	a.backend = nil
	return err
}

// OpenSession loads the outline of the configured owner
func (a *App) OpenSession(ctx context.Context) (*persist.Session, error) {
	backend, err := a.Backend(ctx)
	if err != nil {
		return nil, err
	}
	backups, err := a.Backups()
	if err != nil {
		return nil, err
	}
	pol, err := a.Policy()
	if err != nil {
		return nil, err
	}
	logger := a.Logger.With().Str("cmp", "session").Logger()
	if a.limiter == nil {
		interval := a.Config.Backup.Interval.Duration
		if interval <= 0 {
			interval = persist.DefaultBackupInterval
		}
		a.limiter = persist.NewBackupLimiter(interval, a.Clock, logger)
	}
	return persist.Open(ctx, persist.Options{
		Backend:        backend,
		OwnerID:        a.Config.Owner,
		Debounce:       a.Config.Save.Debounce.Duration,
		Timeout:        a.Config.Save.Timeout.Duration,
		Backups:        backups,
		BackupInterval: a.Config.Backup.Interval.Duration,
		BackupKeep:     a.Config.Backup.Keep,
		BackupLimiter:  a.limiter,
		Clock:          a.Clock,
		TreeOptions:    []outline.Option{outline.WithBus(a.Bus), outline.WithPolicy(pol)},
		Logger:         logger,
	})
}

// WithSession opens a session, runs fn and flushes whatever fn changed.
func (a *App) WithSession(ctx context.Context, fn func(s *persist.Session) error) error {
	s, err := a.OpenSession(ctx)
	if err != nil {
		return err
	}
	runErr := fn(s)
	closeErr := s.Close(ctx)
	a.saveSelection()
	if runErr != nil {
		return runErr
	}
	var conflict *model.ConflictError
	if errors.As(closeErr, &conflict) {
		return fmt.Errorf("not saved: %w", closeErr)
	}
	return closeErr
}

// ResolveID maps a full id or an unambiguous id prefix to an item id
func ResolveID(t *outline.Tree, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", &model.InvalidReferenceError{ID: ref, Reason: "empty id"}
	}
	if _, err := t.Get(ref); err == nil {
		return ref, nil
	}
	var matches []string
	t.Walk(func(it model.Item, depth int) bool {
		if depth > 0 && strings.HasPrefix(it.ID, ref) {
			matches = append(matches, it.ID)
		}
		return true
	})
	switch len(matches) {
	case 0:
		return "", &model.InvalidReferenceError{ID: ref, Reason: "no such item"}
	case 1:
		return matches[0], nil
	default:
		return "", &model.InvalidReferenceError{ID: ref, Reason: fmt.Sprintf("ambiguous, matches %d items", len(matches))}
	}
}
