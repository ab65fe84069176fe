// Package persist ties a live outline tree to a storage backend with the
// versioned save protocol.
//
// Every save cycle moves Idle -> Saving -> Committed or Rejected and back to
// Idle. A save carries the version the tree was loaded or last committed at
// as its base; the backend only accepts it while the stored version still
// equals that base. A rejected save freezes the tree until Reload.
package persist

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pstuifzand/minders/internal/model"
	"github.com/pstuifzand/minders/internal/outline"
	"github.com/pstuifzand/minders/internal/seed"
	"github.com/pstuifzand/minders/internal/storage"
)

// State is the phase of the save cycle
type State int

const (
	StateIdle State = iota
	StateSaving
	StateCommitted
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSaving:
		return "saving"
	case StateCommitted:
		return "committed"
	case StateRejected:
		return "rejected"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

const (
	DefaultDebounce       = 2 * time.Second
	DefaultTimeout        = 10 * time.Second
	DefaultBackupInterval = 10 * time.Minute
)

// SeedFunc builds the outline of an owner that has none stored yet
type SeedFunc func(ownerID string, now time.Time, newID func() string) (*model.Outline, error)

// Options configures Open
type Options struct {
	Backend storage.Backend
	OwnerID string

	// Debounce is the quiet period before a scheduled save runs.
	Debounce time.Duration
	// Timeout bounds a single backend call.
	Timeout time.Duration

	// Backups receives a copy of the outline after committed saves, at most
	// once per BackupInterval. Nil disables backups.
	Backups        *storage.BackupManager
	BackupInterval time.Duration
	// BackupLimiter is shared by sessions of one process. Nil creates one
	// per session.
	BackupLimiter *BackupLimiter
	// BackupKeep is the number of backups kept per owner; 0 keeps all.
	BackupKeep int

	// ErrorReporter receives errors of saves that run in the background.
	ErrorReporter func(error)
	// OnState observes every state transition.
	OnState func(State)

	Seed        SeedFunc
	Clock       func() time.Time
	IDGenerator func() string
	TreeOptions []outline.Option
	Logger      zerolog.Logger
}

// Session owns the loaded outline of one owner.
type Session struct {
	backend  storage.Backend
	owner    string
	tree     *outline.Tree
	debounce time.Duration
	timeout  time.Duration
	now      func() time.Time
	versions *VersionClock
	backups  *storage.BackupManager
	limiter  *BackupLimiter
	keep     int
	report   func(error)
	onState  func(State)
	log      zerolog.Logger

	// saveMu serializes save cycles and reloads.
	saveMu sync.Mutex

	mu       sync.Mutex
	state    State
	savedRev uint64
	timer    *time.Timer
	pending  bool
	running  bool
	closed   bool
}

// Open loads the outline of opts.OwnerID. An owner without a stored outline
// gets a seeded one, which is saved right away.
func Open(ctx context.Context, opts Options) (*Session, error) {
	if opts.Backend == nil {
		return nil, errors.New("persist: no backend")
	}
	if opts.OwnerID == "" {
		return nil, errors.New("persist: no owner")
	}
	s := &Session{
		backend:  opts.Backend,
		owner:    opts.OwnerID,
		debounce: opts.Debounce,
		timeout:  opts.Timeout,
		now:      opts.Clock,
		backups:  opts.Backups,
		keep:     opts.BackupKeep,
		report:   opts.ErrorReporter,
		onState:  opts.OnState,
		log:      opts.Logger,
	}
	if s.debounce <= 0 {
		s.debounce = DefaultDebounce
	}
	if s.timeout <= 0 {
		s.timeout = DefaultTimeout
	}
	if s.now == nil {
		s.now = time.Now
	}
	newID := opts.IDGenerator
	if newID == nil {
		newID = outline.NewID
	}
	seedFn := opts.Seed
	if seedFn == nil {
		seedFn = seed.Default
	}
	if s.report == nil {
		s.report = func(err error) {
			s.log.Error().Err(err).Str("owner", s.owner).Msg("background save failed")
		}
	}
	s.versions = NewVersionClock(s.now)
	s.limiter = opts.BackupLimiter
	if s.limiter == nil {
		interval := opts.BackupInterval
		if interval <= 0 {
			interval = DefaultBackupInterval
		}
		s.limiter = NewBackupLimiter(interval, s.now, s.log)
	}
	s.observeBackups()

	o, err := s.load(ctx)
	seeded := false
	if errors.Is(err, storage.ErrNotFound) {
		o, err = seedFn(s.owner, s.now(), newID)
		seeded = true
	}
	if err != nil {
		return nil, err
	}

	treeOpts := []outline.Option{
		outline.WithClock(s.now),
		outline.WithIDGenerator(newID),
		outline.WithLogger(s.log),
	}
	treeOpts = append(treeOpts, opts.TreeOptions...)
	treeOpts = append(treeOpts, outline.WithSaveScheduler(s))
	s.tree = outline.New(o, treeOpts...)

	if seeded {
		s.log.Info().Str("owner", s.owner).Msg("created seeded outline")
		if err := s.Save(ctx); err != nil {
			return nil, err
		}
	} else {
		s.savedRev = s.tree.Revision()
	}
	return s, nil
}

// load returns ErrNotFound unwrapped; every other failure is a
// PersistenceError.
func (s *Session) load(ctx context.Context) (*model.Outline, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	doc, err := s.backend.Load(ctx, s.owner)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, &model.PersistenceError{Op: "load", Err: err}
	}
	o, err := model.Deserialize(doc)
	if err != nil {
		return nil, &model.PersistenceError{Op: "load", Err: err}
	}
	if o.OwnerID == "" {
		o.OwnerID = s.owner
	}
	if errs := model.Validate(o); len(errs) > 0 {
		return nil, &model.PersistenceError{Op: "load", Err: fmt.Errorf("stored outline is invalid: %v", errs[0])}
	}
	s.log.Debug().Str("owner", s.owner).Int64("version", o.Version).Int("items", len(o.Items)).Msg("outline loaded")
	return o, nil
}

// Tree returns the live outline
func (s *Session) Tree() *outline.Tree {
	return s.tree
}

// OwnerID returns the owner of the session
func (s *Session) OwnerID() string {
	return s.owner
}

// State returns the current phase of the save cycle
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Conflicted reports whether a rejected save froze the tree
func (s *Session) Conflicted() bool {
	return errors.Is(s.tree.Frozen(), model.ErrConflict)
}

// Dirty reports whether the tree changed since the last committed save
func (s *Session) Dirty() bool {
	rev := s.tree.Revision()
	s.mu.Lock()
	defer s.mu.Unlock()
	return rev != s.savedRev
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	s.log.Debug().Str("owner", s.owner).Stringer("state", st).Msg("save state")
	if s.onState != nil {
		s.onState(st)
	}
}

// Schedule implements outline.SaveScheduler. A debounced save runs once no
// further Schedule call arrived for the debounce period; an immediate one
// starts right away. Errors go to the error reporter.
func (s *Session) Schedule(immediate bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.pending = true
	delay := s.debounce
	if immediate {
		delay = 0
	}
	if s.timer == nil {
		s.timer = time.AfterFunc(delay, s.onTimer)
		return
	}
	s.timer.Reset(delay)
}

func (s *Session) onTimer() {
	s.mu.Lock()
	if s.running {
		// A save is in flight; try again after it to pick up the changes.
		if s.timer != nil {
			s.timer.Reset(s.debounce)
		}
		s.mu.Unlock()
		return
	}
	if !s.pending || s.closed {
		s.mu.Unlock()
		return
	}
	s.pending = false
	s.running = true
	s.mu.Unlock()

	err := s.Flush(context.Background())
	if err != nil {
		s.report(err)
	}

	s.mu.Lock()
	s.running = false
	if s.pending && s.timer != nil && !s.closed {
		s.timer.Reset(s.debounce)
	}
	s.mu.Unlock()
}

// Flush saves now if the tree changed since the last committed save.
func (s *Session) Flush(ctx context.Context) error {
	if !s.Dirty() {
		return nil
	}
	return s.Save(ctx)
}

// Save runs one save cycle with the current tree. It returns a
// ConflictError when the stored version moved past the tree's version and a
// PersistenceError when the backend failed. Neither is retried.
func (s *Session) Save(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	if err := s.tree.Frozen(); err != nil {
		return err
	}

	snap, rev := s.tree.Snapshot()
	base := snap.Version
	version := s.versions.Next(base)
	snap.BaseVersion = base
	snap.Version = version
	doc, err := model.Serialize(snap)
	if err != nil {
		return &model.PersistenceError{Op: "save", Err: err}
	}

	s.setState(StateSaving)
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	res, err := s.backend.Save(callCtx, s.owner, doc)
	cancel()
	if err != nil {
		s.setState(StateIdle)
		return &model.PersistenceError{Op: "save", Err: err}
	}

	if !res.Accepted {
		conflict := &model.ConflictError{OwnerID: s.owner, BaseVersion: base, CurrentVersion: res.CurrentVersion}
		s.tree.Freeze(conflict)
		s.setState(StateRejected)
		s.setState(StateIdle)
		return conflict
	}

	s.tree.MarkSaved(version)
	s.mu.Lock()
	s.savedRev = rev
	s.mu.Unlock()
	s.setState(StateCommitted)
	s.log.Info().Str("owner", s.owner).Int64("base", base).Int64("version", version).Msg("outline saved")

	s.backup(doc)
	s.setState(StateIdle)
	return nil
}

// observeBackups starts the backup interval at the newest backup on disk
func (s *Session) observeBackups() {
	if s.backups == nil {
		return
	}
	backups, err := s.backups.FindBackups(s.owner)
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to list backups")
		return
	}
	if len(backups) > 0 {
		s.limiter.Observe(backups[len(backups)-1].Timestamp)
	}
}

func (s *Session) backup(doc model.SerializedOutline) {
	if s.backups == nil {
		return
	}
	s.limiter.Trigger(func() error {
		path, err := s.backups.CreateBackup(doc, s.now())
		if err != nil {
			return err
		}
		s.log.Debug().Str("path", path).Msg("backup written")
		if _, err := s.backups.Prune(s.owner, s.keep); err != nil {
			return err
		}
		return nil
	})
}

// Reload replaces the tree with the stored outline and lifts a conflict
// freeze. Local changes that were not saved are dropped.
func (s *Session) Reload(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	o, err := s.load(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return &model.PersistenceError{Op: "load", Err: err}
		}
		return err
	}
	s.mu.Lock()
	s.pending = false
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()

	s.tree.Replace(o)
	rev := s.tree.Revision()
	s.mu.Lock()
	s.savedRev = rev
	s.mu.Unlock()
	return nil
}

// Close stops scheduled saves and flushes pending changes.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.pending = false
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()

	if s.Conflicted() {
		return s.tree.Frozen()
	}
	return s.Flush(ctx)
}
