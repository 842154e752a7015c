package register

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/rucio-tools/internal/types"
)

func TestBuildUploadItems(t *testing.T) {
	items, err := BuildUploadItems(Request{
		FilePaths: []string{"/scratch/a.root", "/scratch/b.root"},
		DIDNames:  []string{"RECO/26.10/a.root", "b.root"},
		Scope:     "epic",
		RSE:       "EIC-XRD",
	})
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, types.UploadItem{
		Path:         "/scratch/a.root",
		RSE:          "EIC-XRD",
		DIDScope:     "epic",
		DIDName:      "RECO/26.10/a.root",
		DatasetScope: "epic",
		DatasetName:  "RECO/26.10",
	}, items[0])

	assert.Equal(t, "b.root", items[1].DIDName)
	assert.False(t, items[1].HasDataset(), "top-level names have no dataset")
	assert.Equal(t, "epic:b.root", items[1].DID())
}

func TestBuildUploadItemsRejects(t *testing.T) {
	base := func() Request {
		return Request{
			FilePaths: []string{"/a", "/b"},
			DIDNames:  []string{"x/a", "x/b"},
			Scope:     "epic",
			RSE:       "EIC-XRD",
		}
	}
	tests := []struct {
		name   string
		modify func(*Request)
	}{
		{"no files", func(r *Request) { r.FilePaths, r.DIDNames = nil, nil }},
		{"length mismatch", func(r *Request) { r.DIDNames = r.DIDNames[:1] }},
		{"no rse", func(r *Request) { r.RSE = "" }},
		{"bad scope", func(r *Request) { r.Scope = "bad scope" }},
		{"bad name", func(r *Request) { r.DIDNames[1] = "/abs" }},
		{"empty path", func(r *Request) { r.FilePaths[0] = "" }},
		{"duplicate name", func(r *Request) { r.DIDNames[1] = "x/a" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base()
			tt.modify(&req)
			_, err := BuildUploadItems(req)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
}
