package upload

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/rucio-tools/internal/config"
	"github.com/yourorg/rucio-tools/internal/ledger"
	"github.com/yourorg/rucio-tools/internal/rucio"
	"github.com/yourorg/rucio-tools/internal/storage"
	"github.com/yourorg/rucio-tools/internal/types"
)

// fakeCatalogue keeps DIDs, replicas and attachments in memory.
type fakeCatalogue struct {
	writeBlocked map[string]bool
	meta         map[string]rucio.FileMeta
	datasets     map[string]bool
	replicas     map[string][]rucio.ReplicaFile
	attached     map[string][]string
	calls        []string
}

func newFakeCatalogue() *fakeCatalogue {
	return &fakeCatalogue{
		writeBlocked: map[string]bool{},
		meta:         map[string]rucio.FileMeta{},
		datasets:     map[string]bool{},
		replicas:     map[string][]rucio.ReplicaFile{},
		attached:     map[string][]string{},
	}
}

func (f *fakeCatalogue) GetRSE(ctx context.Context, rse string) (rucio.RSEInfo, error) {
	f.calls = append(f.calls, "GetRSE "+rse)
	return rucio.RSEInfo{Name: rse, Deterministic: true, AvailabilityWrite: !f.writeBlocked[rse]}, nil
}

func (f *fakeCatalogue) GetMetadata(ctx context.Context, scope, name string) (rucio.FileMeta, error) {
	f.calls = append(f.calls, "GetMetadata "+scope+":"+name)
	m, ok := f.meta[scope+":"+name]
	if !ok {
		return rucio.FileMeta{}, &rucio.APIError{Status: 404, Class: "DataIdentifierNotFound"}
	}
	return m, nil
}

func (f *fakeCatalogue) AddDataset(ctx context.Context, scope, name string) error {
	f.calls = append(f.calls, "AddDataset "+scope+":"+name)
	if f.datasets[scope+":"+name] {
		return &rucio.APIError{Status: 409, Class: "DataIdentifierAlreadyExists"}
	}
	f.datasets[scope+":"+name] = true
	return nil
}

func (f *fakeCatalogue) AddReplicas(ctx context.Context, rse string, files []rucio.ReplicaFile) error {
	f.calls = append(f.calls, "AddReplicas "+rse)
	for _, file := range files {
		f.meta[file.Scope+":"+file.Name] = rucio.FileMeta{Scope: file.Scope, Name: file.Name, Bytes: file.Bytes, Adler32: file.Adler32, MD5: file.MD5}
	}
	f.replicas[rse] = append(f.replicas[rse], files...)
	return nil
}

func (f *fakeCatalogue) Attach(ctx context.Context, scope, name string, dids []rucio.DIDRef) error {
	f.calls = append(f.calls, "Attach "+scope+":"+name)
	for _, d := range dids {
		f.attached[scope+":"+name] = append(f.attached[scope+":"+name], d.Scope+":"+d.Name)
	}
	return nil
}

type fixture struct {
	cat    *fakeCatalogue
	rseDir string
	srcDir string
	ledger *ledger.Ledger
	client *Client
}

func newFixture(t *testing.T, dryRun bool) *fixture {
	t.Helper()
	rseDir := t.TempDir()
	l, err := ledger.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	f := &fixture{cat: newFakeCatalogue(), rseDir: rseDir, srcDir: t.TempDir(), ledger: l}
	f.client = New(f.cat, Options{
		RSEs: map[string]config.RSE{
			"LOCAL": {Name: "LOCAL", Prefix: "file://" + filepath.ToSlash(rseDir), LFN2PFN: config.LFN2PFNIdentity, PFNPrefix: "root://dtn//rse"},
		},
		DryRun:  dryRun,
		Journal: l,
	})
	return f
}

func (f *fixture) file(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(f.srcDir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func item(path, name string) types.UploadItem {
	it := types.UploadItem{Path: path, RSE: "LOCAL", DIDScope: "epic", DIDName: name}
	if i := strings.LastIndex(name, "/"); i > 0 {
		it.DatasetScope, it.DatasetName = "epic", name[:i]
	}
	return it
}

func TestUploadRegistersAndAttaches(t *testing.T) {
	f := newFixture(t, false)
	p := f.file(t, "a.root", "hello world")

	sum, err := f.client.Upload(context.Background(), []types.UploadItem{item(p, "RECO/26.10/a.root")})
	require.NoError(t, err)
	require.Len(t, sum.Files, 1)

	rep := sum.Files[0]
	assert.Equal(t, types.StateDone, rep.State)
	assert.Equal(t, int64(11), rep.Bytes)
	assert.Equal(t, "1a0b045d", rep.Adler32)
	assert.Equal(t, "5eb63bbbe01eeed093cb22bb8f5acdc3", rep.MD5)
	assert.Equal(t, "root://dtn//rse/epic/RECO/26.10/a.root", rep.PFN)

	b, err := os.ReadFile(filepath.Join(f.rseDir, "epic", "RECO", "26.10", "a.root"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(b))

	assert.True(t, f.cat.datasets["epic:RECO/26.10"])
	assert.Equal(t, []string{"epic:RECO/26.10/a.root"}, f.cat.attached["epic:RECO/26.10"])
	require.Len(t, f.cat.replicas["LOCAL"], 1)
	assert.Equal(t, "root://dtn//rse/epic/RECO/26.10/a.root", f.cat.replicas["LOCAL"][0].PFN)

	tr, err := f.ledger.Latest("epic", "RECO/26.10/a.root")
	require.NoError(t, err)
	assert.Equal(t, "done", tr.State)
	assert.Equal(t, "epic:RECO/26.10", tr.Dataset)
}

func TestUploadTwiceSkips(t *testing.T) {
	f := newFixture(t, false)
	p := f.file(t, "a.root", "hello world")
	items := []types.UploadItem{item(p, "RECO/a.root")}

	_, err := f.client.Upload(context.Background(), items)
	require.NoError(t, err)

	sum, err := f.client.Upload(context.Background(), items)
	require.NoError(t, err, "existing dataset and identical file are not errors")
	assert.Equal(t, types.StateSkipped, sum.Files[0].State)
}

func TestUploadChecksumMismatch(t *testing.T) {
	f := newFixture(t, false)
	good := f.file(t, "good.root", "payload")
	bad := f.file(t, "bad.root", "hello world")
	f.cat.meta["epic:RECO/bad.root"] = rucio.FileMeta{Adler32: "deadbeef"}

	sum, err := f.client.Upload(context.Background(), []types.UploadItem{
		item(good, "RECO/good.root"),
		item(bad, "RECO/bad.root"),
	})
	assert.ErrorIs(t, err, ErrNotAllFilesUploaded)
	assert.Equal(t, types.StateDone, sum.Files[0].State)
	assert.Equal(t, "0bdd02eb", sum.Files[0].Adler32)
	assert.Equal(t, types.StateFailed, sum.Files[1].State)
	assert.Contains(t, sum.Files[1].Error, "checksum mismatch")

	_, err = os.Stat(filepath.Join(f.rseDir, "epic", "RECO", "bad.root"))
	assert.True(t, os.IsNotExist(err), "mismatching file must not be transferred")
}

// flippingStore serves objects with their first byte altered.
type flippingStore struct {
	storage.ObjectStore
}

func (s flippingStore) Get(ctx context.Context, uri string) (io.ReadCloser, int64, error) {
	rc, n, err := s.ObjectStore.Get(ctx, uri)
	if err != nil {
		return nil, 0, err
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		return nil, 0, err
	}
	if len(b) > 0 {
		b[0] ^= 0xff
	}
	return io.NopCloser(strings.NewReader(string(b))), n, nil
}

func TestUploadReadBackMismatch(t *testing.T) {
	f := newFixture(t, false)
	f.client.opts.OpenStore = func(ctx context.Context, rse config.RSE) (storage.ObjectStore, error) {
		s, err := storage.Open(ctx, rse)
		if err != nil {
			return nil, err
		}
		return flippingStore{s}, nil
	}
	p := f.file(t, "a.root", "hello world")

	sum, err := f.client.Upload(context.Background(), []types.UploadItem{item(p, "a.root")})
	assert.ErrorIs(t, err, ErrNoFilesUploaded)
	assert.Equal(t, types.StateFailed, sum.Files[0].State)
	assert.Contains(t, sum.Files[0].Error, "checksum mismatch")
	assert.Contains(t, sum.Files[0].Error, "after upload")
	assert.Empty(t, f.cat.replicas["LOCAL"], "a corrupted copy is not registered")
}

func TestUploadAllFail(t *testing.T) {
	f := newFixture(t, false)
	p := f.file(t, "a.root", "x")
	f.cat.meta["epic:a.root"] = rucio.FileMeta{Adler32: "00000000"}

	_, err := f.client.Upload(context.Background(), []types.UploadItem{item(p, "a.root")})
	assert.ErrorIs(t, err, ErrNoFilesUploaded)
}

func TestUploadExistingOnRSE(t *testing.T) {
	f := newFixture(t, false)
	p := f.file(t, "a.root", "hello world")
	dest := filepath.Join(f.rseDir, "epic", "a.root")
	require.NoError(t, os.MkdirAll(filepath.Dir(dest), 0o755))
	require.NoError(t, os.WriteFile(dest, []byte("hello world"), 0o644))

	sum, err := f.client.Upload(context.Background(), []types.UploadItem{item(p, "a.root")})
	require.NoError(t, err)
	assert.Equal(t, types.StateDone, sum.Files[0].State, "registered without transfer")
	assert.Len(t, f.cat.replicas["LOCAL"], 1)
	assert.Empty(t, f.cat.datasets, "top-level names have no dataset")
}

func TestUploadInputValidation(t *testing.T) {
	f := newFixture(t, false)
	p := f.file(t, "a.root", "x")

	tests := []struct {
		name  string
		items []types.UploadItem
	}{
		{"empty", nil},
		{"missing file", []types.UploadItem{item(p, "a.root"), item(filepath.Join(f.srcDir, "nope.root"), "b.root")}},
		{"directory", []types.UploadItem{item(f.srcDir, "a.root")}},
		{"bad scope", []types.UploadItem{{Path: p, RSE: "LOCAL", DIDScope: "bad scope", DIDName: "a"}}},
		{"unknown rse", []types.UploadItem{{Path: p, RSE: "NOPE", DIDScope: "epic", DIDName: "a"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.client.Upload(context.Background(), tt.items)
			assert.ErrorIs(t, err, ErrInputValidation)
		})
	}
	assert.Empty(t, f.cat.calls, "validation happens before any catalogue call")
}

func TestUploadWriteBlocked(t *testing.T) {
	f := newFixture(t, false)
	p := f.file(t, "a.root", "x")
	f.cat.writeBlocked["LOCAL"] = true

	_, err := f.client.Upload(context.Background(), []types.UploadItem{item(p, "a.root")})
	assert.ErrorIs(t, err, ErrRSEWriteBlocked)
	assert.Equal(t, []string{"GetRSE LOCAL"}, f.cat.calls)
}

func TestDryRun(t *testing.T) {
	f := newFixture(t, true)
	p := f.file(t, "a.root", "hello world")

	sum, err := f.client.Upload(context.Background(), []types.UploadItem{item(p, "RECO/a.root")})
	require.NoError(t, err)
	assert.True(t, sum.DryRun)
	assert.Equal(t, types.StatePlanned, sum.Files[0].State)
	assert.Equal(t, int64(11), sum.Files[0].Bytes)
	assert.Equal(t, "file://"+filepath.ToSlash(f.rseDir)+"/epic/RECO/a.root", sum.Files[0].ObjectURI)
	assert.Empty(t, f.cat.calls)

	traces, err := f.ledger.List(0)
	require.NoError(t, err)
	assert.Empty(t, traces, "dry runs are not journaled")
}

func TestSummaryWriteJSON(t *testing.T) {
	sum := Summary{Files: []types.FileReport{
		{Item: types.UploadItem{DIDScope: "epic", DIDName: "a.root"}, State: types.StateDone, Bytes: 3},
	}}
	p := filepath.Join(t.TempDir(), "summary.json")
	require.NoError(t, sum.WriteJSON(p))

	var got map[string]types.FileReport
	b, err := os.ReadFile(p)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, types.StateDone, got["epic:a.root"].State)
}

func TestChecksumReader(t *testing.T) {
	sums, err := checksumReader(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, "00000001", sums.Adler32)
	assert.Equal(t, int64(0), sums.Bytes)
}
