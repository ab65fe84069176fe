package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/rs/zerolog"

	"github.com/pstuifzand/minders/internal/model"
)

// JSONStore keeps one JSON file per owner in a directory. The version check
// is serialized within the process only.
type JSONStore struct {
	Dir string

	mu  sync.Mutex
	log zerolog.Logger
}

// NewJSONStore creates a JSON store rooted at dir
func NewJSONStore(dir string, logger zerolog.Logger) *JSONStore {
	return &JSONStore{Dir: dir, log: logger}
}

func (s *JSONStore) path(ownerID string) string {
	return filepath.Join(s.Dir, ownerID+".json")
}

// Load reads the outline of ownerID
func (s *JSONStore) Load(ctx context.Context, ownerID string) (model.SerializedOutline, error) {
	if err := ValidateOwner(ownerID); err != nil {
		return model.SerializedOutline{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(ownerID)
}

func (s *JSONStore) read(ownerID string) (model.SerializedOutline, error) {
	data, err := os.ReadFile(s.path(ownerID))
	if err != nil {
		if os.IsNotExist(err) {
			return model.SerializedOutline{}, ErrNotFound
		}
		return model.SerializedOutline{}, fmt.Errorf("failed to read file: %w", err)
	}
	return decodeDocument(data)
}

// Save writes doc when the stored version equals doc.BaseVersion
func (s *JSONStore) Save(ctx context.Context, ownerID string, doc model.SerializedOutline) (SaveResult, error) {
	if err := ValidateOwner(ownerID); err != nil {
		return SaveResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return SaveResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.read(ownerID)
	exists := err == nil
	if err != nil && err != ErrNotFound {
		return SaveResult{}, err
	}
	if !accepts(current.Version, doc.BaseVersion, exists) {
		return SaveResult{Accepted: false, CurrentVersion: current.Version}, nil
	}

	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return SaveResult{}, fmt.Errorf("failed to create directory: %w", err)
	}
	data, err := encodeDocument(doc)
	if err != nil {
		return SaveResult{}, err
	}
	if err := atomicWriteFile(s.path(ownerID), data, 0o644); err != nil {
		return SaveResult{}, err
	}
	s.log.Debug().Str("owner", ownerID).Int64("version", doc.Version).Msg("outline written")
	return SaveResult{Accepted: true, CurrentVersion: doc.Version}, nil
}

// Close implements Backend
func (s *JSONStore) Close() error {
	return nil
}

// atomicWriteFile writes data next to path and renames it into place.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanupTmp := true
	defer func() {
		_ = tmp.Close()
		if cleanupTmp {
			_ = os.Remove(tmpName)
		}
	}()

	if err := tmp.Chmod(perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename temp file into place: %w", err)
	}
	cleanupTmp = false

	if runtime.GOOS != "windows" {
		if d, err := os.Open(dir); err == nil {
			_ = d.Sync()
			_ = d.Close()
		}
	}
	return nil
}
