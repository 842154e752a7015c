package upload

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/yourorg/rucio-tools/internal/types"
)

// Summary is the outcome of one Upload call, in item order.
type Summary struct {
	DryRun bool               `json:"dry_run"`
	Files  []types.FileReport `json:"files"`
}

// Count returns the number of files in state.
func (s Summary) Count(state types.UploadState) int {
	n := 0
	for _, f := range s.Files {
		if f.State == state {
			n++
		}
	}
	return n
}

// Err maps the per-file states onto the upload client's errors.
func (s Summary) Err() error {
	failed := s.Count(types.StateFailed)
	switch {
	case len(s.Files) == 0:
		return ErrNoFilesUploaded
	case failed == len(s.Files):
		return ErrNoFilesUploaded
	case failed > 0:
		return fmt.Errorf("%w: %d of %d failed", ErrNotAllFilesUploaded, failed, len(s.Files))
	}
	return nil
}

// WriteJSON writes the summary keyed by scope:name.
func (s Summary) WriteJSON(path string) error {
	byDID := make(map[string]types.FileReport, len(s.Files))
	for _, f := range s.Files {
		byDID[f.Item.DID()] = f
	}
	b, err := json.MarshalIndent(byDID, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0o644)
}
