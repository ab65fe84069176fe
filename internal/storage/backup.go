package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/pstuifzand/minders/internal/model"
)

const (
	backupTimeFormat = "20060102_150405.000"
	// Names written before millisecond precision are still listed.
	backupSecondsFormat = "20060102_150405"
	backupExt           = ".json"
)

// BackupManager writes full copies of outlines into a backup directory
type BackupManager struct {
	backupDir string
}

// NewBackupManager creates a backup manager writing into dir. An empty dir
// uses DefaultBackupDir.
func NewBackupManager(dir string) (*BackupManager, error) {
	if dir == "" {
		dir = DefaultBackupDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}
	return &BackupManager{backupDir: dir}, nil
}

// Dir returns the backup directory
func (bm *BackupManager) Dir() string {
	return bm.backupDir
}

// CreateBackup writes doc as <YYYYMMDD_HHMMSS.mmm>_<owner>.json and returns
// the path of the backup. An existing backup is never replaced: when the name
// is taken the timestamp moves forward a millisecond at a time.
func (bm *BackupManager) CreateBackup(doc model.SerializedOutline, now time.Time) (string, error) {
	if err := ValidateOwner(doc.OwnerID); err != nil {
		return "", err
	}
	backupPath, err := bm.freePath(doc.OwnerID, now)
	if err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal backup JSON: %w", err)
	}
	if err := atomicWriteFile(backupPath, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write backup file: %w", err)
	}
	return backupPath, nil
}

func (bm *BackupManager) freePath(ownerID string, now time.Time) (string, error) {
	now = now.Truncate(time.Millisecond)
	for range 1000 {
		path := filepath.Join(bm.backupDir, generateBackupFilename(ownerID, now))
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			return path, nil
		} else if err != nil {
			return "", fmt.Errorf("failed to check backup path: %w", err)
		}
		now = now.Add(time.Millisecond)
	}
	return "", fmt.Errorf("no free backup name for %s near %s", ownerID, now.UTC().Format(time.RFC3339))
}

func generateBackupFilename(ownerID string, now time.Time) string {
	return fmt.Sprintf("%s_%s%s", now.UTC().Format(backupTimeFormat), ownerID, backupExt)
}

// DefaultBackupDir returns the path of the default backup directory
func DefaultBackupDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".minders", "backups")
	}
	return filepath.Join(homeDir, ".local", "share", "minders", "backups")
}

// BackupMetadata holds parsed information about a backup file
type BackupMetadata struct {
	FilePath  string    // Full path to backup file
	Timestamp time.Time // Parsed timestamp from filename (UTC)
	OwnerID   string
}

// FindBackups returns the backups of ownerID sorted chronologically. An
// empty ownerID returns the backups of every owner.
func (bm *BackupManager) FindBackups(ownerID string) ([]BackupMetadata, error) {
	entries, err := os.ReadDir(bm.backupDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	var backups []BackupMetadata
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), backupExt) {
			continue
		}
		metadata, err := parseBackupFilename(entry.Name(), filepath.Join(bm.backupDir, entry.Name()))
		if err != nil {
			continue
		}
		if ownerID != "" && metadata.OwnerID != ownerID {
			continue
		}
		backups = append(backups, metadata)
	}

	slices.SortFunc(backups, func(a, b BackupMetadata) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		return strings.Compare(a.FilePath, b.FilePath)
	})
	return backups, nil
}

// ReadBackup loads the outline stored in a backup file
func (bm *BackupManager) ReadBackup(path string) (model.SerializedOutline, error) {
	return ReadDocumentFile(path)
}

// ReadDocumentFile loads a serialized outline from a JSON file, such as a
// backup or a file of the json backend.
func ReadDocumentFile(path string) (model.SerializedOutline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.SerializedOutline{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return decodeDocument(data)
}

// Prune removes the oldest backups of ownerID so that at most keep remain.
// It returns the number of removed files.
func (bm *BackupManager) Prune(ownerID string, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}
	backups, err := bm.FindBackups(ownerID)
	if err != nil {
		return 0, err
	}
	removed := 0
	for len(backups)-removed > keep {
		if err := os.Remove(backups[removed].FilePath); err != nil {
			return removed, fmt.Errorf("failed to remove backup: %w", err)
		}
		removed++
	}
	return removed, nil
}

// parseBackupFilename extracts metadata from a backup filename
// Expected format: YYYYMMDD_HHMMSS.mmm_<owner>.json, or without the
// milliseconds for older backups.
func parseBackupFilename(filename string, fullPath string) (BackupMetadata, error) {
	name, ok := strings.CutSuffix(filename, backupExt)
	if !ok || len(name) < len(backupSecondsFormat)+2 {
		return BackupMetadata{}, fmt.Errorf("filename too short")
	}
	layout := backupSecondsFormat
	if name[len(backupSecondsFormat)] == '.' {
		layout = backupTimeFormat
	}
	if len(name) < len(layout)+2 || name[len(layout)] != '_' {
		return BackupMetadata{}, fmt.Errorf("missing owner separator")
	}

	timestamp, err := time.Parse(layout, name[:len(layout)])
	if err != nil {
		return BackupMetadata{}, fmt.Errorf("invalid timestamp format: %w", err)
	}
	return BackupMetadata{
		FilePath:  fullPath,
		Timestamp: timestamp,
		OwnerID:   name[len(layout)+1:],
	}, nil
}
