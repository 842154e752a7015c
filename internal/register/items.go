package register

import (
	"errors"
	"fmt"

	"github.com/yourorg/rucio-tools/internal/did"
	"github.com/yourorg/rucio-tools/internal/types"
)

var (
	// ErrInvalidRequest indicates the CLI inputs cannot be turned into upload items.
	ErrInvalidRequest = errors.New("invalid upload request")
)

// Request is the raw CLI input: files and DID names are paired by position.
type Request struct {
	FilePaths []string
	DIDNames  []string
	Scope     string
	RSE       string
}

// BuildUploadItems pairs every file path with the DID name at the same position.
// Each file is attached to the dataset named by the parent directory of its
// DID name, in the same scope.
func BuildUploadItems(req Request) ([]types.UploadItem, error) {
	if len(req.FilePaths) == 0 {
		return nil, fmt.Errorf("%w: no file paths", ErrInvalidRequest)
	}
	if len(req.FilePaths) != len(req.DIDNames) {
		return nil, fmt.Errorf("%w: %d file paths but %d DID names", ErrInvalidRequest, len(req.FilePaths), len(req.DIDNames))
	}
	if req.RSE == "" {
		return nil, fmt.Errorf("%w: no RSE", ErrInvalidRequest)
	}
	if err := did.ValidateScope(req.Scope); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	items := make([]types.UploadItem, 0, len(req.FilePaths))
	seen := make(map[string]struct{}, len(req.DIDNames))
	for i, p := range req.FilePaths {
		name := req.DIDNames[i]
		if p == "" {
			return nil, fmt.Errorf("%w: empty file path at position %d", ErrInvalidRequest, i+1)
		}
		if err := did.ValidateName(name); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		if _, ok := seen[name]; ok {
			return nil, fmt.Errorf("%w: duplicate DID name %q", ErrInvalidRequest, name)
		}
		seen[name] = struct{}{}

		item := types.UploadItem{
			Path:     p,
			RSE:      req.RSE,
			DIDScope: req.Scope,
			DIDName:  name,
		}
		if ds := did.DatasetName(name); ds != "" {
			item.DatasetScope = req.Scope
			item.DatasetName = ds
		}
		items = append(items, item)
	}
	return items, nil
}
