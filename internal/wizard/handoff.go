package wizard

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kingrea/trailhead/internal/autosave"
	"github.com/kingrea/trailhead/internal/draft"
)

// HandoffSink receives the finished draft. The downstream preview stage
// addresses it by the draft id alone.
type HandoffSink interface {
	Handoff(ctx context.Context, d draft.TripDraft) error
}

// HandoffFunc adapts a function to HandoffSink.
type HandoffFunc func(ctx context.Context, d draft.TripDraft) error

// Handoff implements HandoffSink.
func (f HandoffFunc) Handoff(ctx context.Context, d draft.TripDraft) error {
	return f(ctx, d)
}

// FileHandoff writes each finished draft to <dir>/<id>.json.
type FileHandoff struct {
	dir string
}

// NewFileHandoff creates a sink rooted at dir.
func NewFileHandoff(dir string) *FileHandoff {
	return &FileHandoff{dir: dir}
}

// Path returns where the draft with id is written.
func (h *FileHandoff) Path(id string) (string, error) {
	key, err := autosave.Key(id)
	if err != nil {
		return "", err
	}
	return filepath.Join(h.dir, key+".json"), nil
}

// Handoff implements HandoffSink.
func (h *FileHandoff) Handoff(_ context.Context, d draft.TripDraft) error {
	path, err := h.Path(d.ID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(h.dir, 0o755); err != nil {
		return err
	}
	encoded, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("wizard: encode draft %s: %w", d.ID, err)
	}
	return os.WriteFile(path, append(encoded, '\n'), 0o644)
}
