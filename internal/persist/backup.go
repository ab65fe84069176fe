package persist

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// BackupLimiter runs a backup at most once per interval. Triggers that
// arrive while a backup runs or before the interval passed are dropped, not
// queued. Backup failures are logged and never returned.
type BackupLimiter struct {
	interval time.Duration
	now      func() time.Time
	log      zerolog.Logger

	mu      sync.Mutex
	last    time.Time
	running bool
}

func NewBackupLimiter(interval time.Duration, now func() time.Time, logger zerolog.Logger) *BackupLimiter {
	if now == nil {
		now = time.Now
	}
	return &BackupLimiter{interval: interval, now: now, log: logger}
}

// Observe records a backup that was written elsewhere, e.g. by an earlier
// process, so that the interval counts from it.
func (l *BackupLimiter) Observe(at time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if at.After(l.last) {
		l.last = at
	}
}

// Trigger runs fn unless it is dropped and reports whether it ran.
func (l *BackupLimiter) Trigger(fn func() error) bool {
	l.mu.Lock()
	now := l.now()
	if l.running || (!l.last.IsZero() && now.Sub(l.last) < l.interval) {
		l.mu.Unlock()
		l.log.Debug().Msg("backup skipped")
		return false
	}
	l.running = true
	l.last = now
	l.mu.Unlock()

	err := fn()

	l.mu.Lock()
	l.running = false
	l.mu.Unlock()

	if err != nil {
		l.log.Warn().Err(err).Msg("backup failed")
	}
	return true
}
