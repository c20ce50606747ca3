// Package autosave keeps a local, non-authoritative snapshot of the draft so
// an accidentally closed session can be resumed.
package autosave

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/kingrea/trailhead/internal/draft"
)

var (
	// ErrSnapshotNotFound is returned when no snapshot exists for a key.
	ErrSnapshotNotFound = errors.New("autosave: snapshot not found")
	// ErrInvalidKey is returned for keys that normalize to nothing.
	ErrInvalidKey = errors.New("autosave: key is empty")
)

// Snapshot is one saved draft. Key is always the draft identifier.
type Snapshot struct {
	Key     string          `json:"key"`
	Step    string          `json:"step"`
	Draft   draft.TripDraft `json:"draft"`
	SavedAt time.Time       `json:"saved_at"`
}

// Slot stores snapshots by key.
type Slot interface {
	Load(ctx context.Context, key string) (Snapshot, error)
	Save(ctx context.Context, snap Snapshot) error
	Discard(ctx context.Context, key string) error
}

// Key normalizes a draft identifier into a slot key. Characters outside
// [A-Za-z0-9._-] become underscores.
func Key(id string) (string, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return "", ErrInvalidKey
	}
	key := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '_' || r == '-':
			return r
		default:
			return '_'
		}
	}, trimmed)
	if strings.Trim(key, "._") == "" {
		return "", ErrInvalidKey
	}
	return key, nil
}

// Nop is the slot used when autosave is disabled.
type Nop struct{}

func (Nop) Load(context.Context, string) (Snapshot, error) { return Snapshot{}, ErrSnapshotNotFound }
func (Nop) Save(context.Context, Snapshot) error             { return nil }
func (Nop) Discard(context.Context, string) error            { return nil }
