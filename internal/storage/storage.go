// Package storage contains the persistence backends for outlines.
//
// Every backend implements the same versioned contract: a save is only
// accepted while the stored version still equals the document's base
// version.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/pstuifzand/minders/internal/model"
)

// ErrNotFound is returned by Load when the owner has no outline yet
var ErrNotFound = errors.New("outline not found")

// SaveResult reports the outcome of a versioned save. When the save is
// rejected CurrentVersion holds the version that is stored.
type SaveResult struct {
	Accepted       bool
	CurrentVersion int64
}

// Backend loads and saves serialized outlines per owner.
type Backend interface {
	Load(ctx context.Context, ownerID string) (model.SerializedOutline, error)
	Save(ctx context.Context, ownerID string, doc model.SerializedOutline) (SaveResult, error)
	Close() error
}

var ownerPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._@-]*$`)

// ValidateOwner checks that an owner id is usable as a storage key and file
// name.
func ValidateOwner(ownerID string) error {
	if !ownerPattern.MatchString(ownerID) {
		return fmt.Errorf("invalid owner id %q", ownerID)
	}
	return nil
}

// accepts reports whether a save based on base may replace stored.
func accepts(stored, base int64, exists bool) bool {
	if !exists {
		return true
	}
	return stored == base
}

func encodeDocument(doc model.SerializedOutline) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal outline: %w", err)
	}
	return data, nil
}

func decodeDocument(data []byte) (model.SerializedOutline, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc model.SerializedOutline
	if err := dec.Decode(&doc); err != nil {
		return model.SerializedOutline{}, fmt.Errorf("failed to parse outline: %w", err)
	}
	return doc, nil
}
