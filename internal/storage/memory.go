package storage

import (
	"context"
	"sync"

	"github.com/pstuifzand/minders/internal/model"
)

// MemoryStore keeps encoded outlines in memory. Documents are stored encoded
// so callers never share maps with the store.
type MemoryStore struct {
	mu   sync.Mutex
	docs map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: map[string][]byte{}}
}

func (s *MemoryStore) Load(ctx context.Context, ownerID string) (model.SerializedOutline, error) {
	if err := ctx.Err(); err != nil {
		return model.SerializedOutline{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.docs[ownerID]
	if !ok {
		return model.SerializedOutline{}, ErrNotFound
	}
	return decodeDocument(data)
}

func (s *MemoryStore) Save(ctx context.Context, ownerID string, doc model.SerializedOutline) (SaveResult, error) {
	if err := ctx.Err(); err != nil {
		return SaveResult{}, err
	}
	data, err := encodeDocument(doc)
	if err != nil {
		return SaveResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var stored int64
	prev, exists := s.docs[ownerID]
	if exists {
		cur, err := decodeDocument(prev)
		if err != nil {
			return SaveResult{}, err
		}
		stored = cur.Version
	}
	if !accepts(stored, doc.BaseVersion, exists) {
		return SaveResult{Accepted: false, CurrentVersion: stored}, nil
	}
	s.docs[ownerID] = data
	return SaveResult{Accepted: true, CurrentVersion: doc.Version}, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
