// Package history keeps short lists of recent inputs, such as search
// queries, in TOML files.
package history

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/pelletier/go-toml/v2"
)

// DefaultLimit is the number of entries Add keeps
const DefaultLimit = 100

// Manager handles loading and saving history to TOML files
type Manager struct {
	historyDir string
	limit      int
}

// HistoryFile represents the structure of a history TOML file
type HistoryFile struct {
	Entries []string `toml:"entries"`
}

// NewManager creates a history manager keeping its files in dir
func NewManager(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	return &Manager{historyDir: dir, limit: DefaultLimit}, nil
}

// Load loads history entries from a TOML file, oldest first
func (m *Manager) Load(name string) ([]string, error) {
	data, err := os.ReadFile(m.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}

	var histFile HistoryFile
	if err := toml.Unmarshal(data, &histFile); err != nil {
		// A corrupted file starts over
		return []string{}, nil
	}
	return histFile.Entries, nil
}

// Save saves history entries to a TOML file
func (m *Manager) Save(name string, entries []string) error {
	data, err := toml.Marshal(HistoryFile{Entries: entries})
	if err != nil {
		return err
	}
	return os.WriteFile(m.path(name), data, 0o644)
}

// Add appends entry as the newest one. An earlier copy of the same entry is
// dropped, and the oldest entries go once the limit is reached.
func (m *Manager) Add(name, entry string) error {
	if entry == "" {
		return nil
	}
	entries, err := m.Load(name)
	if err != nil {
		return err
	}
	entries = slices.DeleteFunc(entries, func(e string) bool { return e == entry })
	entries = append(entries, entry)
	if len(entries) > m.limit {
		entries = entries[len(entries)-m.limit:]
	}
	return m.Save(name, entries)
}

func (m *Manager) path(name string) string {
	return filepath.Join(m.historyDir, name+".toml")
}
