package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/pstuifzand/minders/internal/model"
)

//go:embed schema.sql
var schemaSQL string

const (
	maxRetries   = 5
	initialWait  = 100 * time.Millisecond
	maxOpenConns = 4
	maxIdleConns = 2
	busyTimeout  = 5000 // milliseconds

	// DatabaseFile is the file name of the database inside the data dir
	DatabaseFile = "minders.db"
)

// SQLiteStore keeps outlines in a SQLite database. The version check is a
// compare-and-swap update, so concurrent processes are safe.
type SQLiteStore struct {
	conn *sql.DB
	log  zerolog.Logger
}

// SaveRecord is one entry of the save log
type SaveRecord struct {
	OwnerID  string
	Version  int64
	Base     int64
	Accepted bool
	At       time.Time
}

// OpenSQLite opens (and creates) the database in dataDir.
func OpenSQLite(ctx context.Context, dataDir string, logger zerolog.Logger) (*SQLiteStore, error) {
	return OpenSQLiteFile(ctx, filepath.Join(dataDir, DatabaseFile), logger)
}

// OpenSQLiteFile opens the database at dbPath
func OpenSQLiteFile(ctx context.Context, dbPath string, logger zerolog.Logger) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)", dbPath, busyTimeout)
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	conn.SetMaxOpenConns(maxOpenConns)
	conn.SetMaxIdleConns(maxIdleConns)
	conn.SetConnMaxLifetime(0)

	s := &SQLiteStore{conn: conn, log: logger}
	if err := s.pingWithRetry(ctx); err != nil {
		_ = conn.Close()
		return nil, s.classify(fmt.Errorf("failed to connect to database: %w", err))
	}
	if _, err := conn.ExecContext(ctx, schemaSQL); err != nil {
		_ = conn.Close()
		return nil, s.classify(fmt.Errorf("failed to initialize schema: %w", err))
	}
	logger.Debug().Str("path", dbPath).Msg("database opened")
	return s, nil
}

func (s *SQLiteStore) pingWithRetry(ctx context.Context) error {
	wait := initialWait
	var err error
	for i := 0; i < maxRetries; i++ {
		if err = s.conn.PingContext(ctx); err == nil {
			return nil
		}
		if IsCorruptionError(err) {
			return err
		}
		if i < maxRetries-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			wait *= 2
		}
	}
	return fmt.Errorf("failed to ping database after %d retries: %w", maxRetries, err)
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}

// Load reads the outline of ownerID
func (s *SQLiteStore) Load(ctx context.Context, ownerID string) (model.SerializedOutline, error) {
	var document string
	err := s.conn.QueryRowContext(ctx,
		`SELECT document FROM outlines WHERE owner_id = ?`, ownerID).Scan(&document)
	if errors.Is(err, sql.ErrNoRows) {
		return model.SerializedOutline{}, ErrNotFound
	}
	if err != nil {
		return model.SerializedOutline{}, s.classify(fmt.Errorf("failed to load outline: %w", err))
	}
	return decodeDocument([]byte(document))
}

// Save stores doc if the stored version still equals doc.BaseVersion.
func (s *SQLiteStore) Save(ctx context.Context, ownerID string, doc model.SerializedOutline) (SaveResult, error) {
	data, err := encodeDocument(doc)
	if err != nil {
		return SaveResult{}, err
	}

	var result SaveResult
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		now := time.Now().UnixMilli()
		var stored int64
		err := tx.QueryRowContext(ctx,
			`SELECT version FROM outlines WHERE owner_id = ?`, ownerID).Scan(&stored)
		exists := true
		if errors.Is(err, sql.ErrNoRows) {
			exists = false
		} else if err != nil {
			return fmt.Errorf("failed to read version: %w", err)
		}

		switch {
		case !exists:
			result, err = insertFirst(ctx, tx, ownerID, doc.Version, data, now)
		case accepts(stored, doc.BaseVersion, exists):
			var res sql.Result
			res, err = tx.ExecContext(ctx,
				`UPDATE outlines SET version = ?, document = ?, updated_at = ? WHERE owner_id = ? AND version = ?`,
				doc.Version, string(data), now, ownerID, doc.BaseVersion)
			if err == nil {
				n, _ := res.RowsAffected()
				result = SaveResult{Accepted: n == 1, CurrentVersion: doc.Version}
				if n != 1 {
					result.CurrentVersion = stored
				}
			}
		default:
			result = SaveResult{Accepted: false, CurrentVersion: stored}
		}
		if err != nil {
			return fmt.Errorf("failed to write outline: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO outline_saves (owner_id, version, base, accepted, created_at) VALUES (?, ?, ?, ?, ?)`,
			ownerID, doc.Version, doc.BaseVersion, result.Accepted, now)
		if err != nil {
			return fmt.Errorf("failed to log save: %w", err)
		}
		return nil
	})
	if err != nil {
		if IsBusyError(err) {
			s.log.Warn().Str("owner", ownerID).Msg("database busy")
		}
		return SaveResult{}, s.classify(err)
	}
	s.log.Debug().
		Str("owner", ownerID).
		Int64("version", doc.Version).
		Int64("base", doc.BaseVersion).
		Bool("accepted", result.Accepted).
		Msg("outline save")
	return result, nil
}

// insertFirst stores the first outline of ownerID. When another writer got
// there first the save is refused with the stored version.
func insertFirst(ctx context.Context, tx *sql.Tx, ownerID string, version int64, data []byte, now int64) (SaveResult, error) {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO outlines (owner_id, version, document, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (owner_id) DO NOTHING`,
		ownerID, version, string(data), now)
	if err != nil {
		return SaveResult{}, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return SaveResult{}, err
	} else if n == 1 {
		return SaveResult{Accepted: true, CurrentVersion: version}, nil
	}

	var stored int64
	err = tx.QueryRowContext(ctx, `SELECT version FROM outlines WHERE owner_id = ?`, ownerID).Scan(&stored)
	if err != nil {
		return SaveResult{}, fmt.Errorf("failed to read version: %w", err)
	}
	return SaveResult{Accepted: false, CurrentVersion: stored}, nil
}

// classify logs corruption, which no retry will fix
func (s *SQLiteStore) classify(err error) error {
	if IsCorruptionError(err) {
		s.log.Error().Err(err).Msg("database is corrupt, restore a backup")
		return fmt.Errorf("database is corrupt, restore a backup: %w", err)
	}
	return err
}

// History returns the most recent save attempts of ownerID, newest first.
func (s *SQLiteStore) History(ctx context.Context, ownerID string, limit int) ([]SaveRecord, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT owner_id, version, base, accepted, created_at FROM outline_saves
		 WHERE owner_id = ? ORDER BY id DESC LIMIT ?`, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query save log: %w", err)
	}
	defer rows.Close()

	var out []SaveRecord
	for rows.Next() {
		var r SaveRecord
		var at int64
		if err := rows.Scan(&r.OwnerID, &r.Version, &r.Base, &r.Accepted, &at); err != nil {
			return nil, fmt.Errorf("failed to scan save log: %w", err)
		}
		r.At = time.UnixMilli(at)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// IsBusyError returns true if the error is a SQLITE_BUSY error.
func IsBusyError(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == sqlite3.SQLITE_BUSY
	}
	return false
}

// IsCorruptionError returns true if the error indicates database corruption.
func IsCorruptionError(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		return code == sqlite3.SQLITE_CORRUPT ||
			code == sqlite3.SQLITE_NOTADB ||
			code == sqlite3.SQLITE_CANTOPEN
	}
	errStr := err.Error()
	return strings.Contains(errStr, "database disk image is malformed") ||
		strings.Contains(errStr, "file is not a database")
}
