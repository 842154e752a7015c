package upload

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/yourorg/rucio-tools/internal/config"
	"github.com/yourorg/rucio-tools/internal/did"
	"github.com/yourorg/rucio-tools/internal/ledger"
	"github.com/yourorg/rucio-tools/internal/logging"
	"github.com/yourorg/rucio-tools/internal/metrics"
	"github.com/yourorg/rucio-tools/internal/rucio"
	"github.com/yourorg/rucio-tools/internal/storage"
	"github.com/yourorg/rucio-tools/internal/types"
)

// Catalogue is the part of the catalogue API the upload client uses.
type Catalogue interface {
	GetRSE(ctx context.Context, rse string) (rucio.RSEInfo, error)
	GetMetadata(ctx context.Context, scope, name string) (rucio.FileMeta, error)
	AddDataset(ctx context.Context, scope, name string) error
	AddReplicas(ctx context.Context, rse string, files []rucio.ReplicaFile) error
	Attach(ctx context.Context, scope, name string, dids []rucio.DIDRef) error
}

// Journal receives one trace per handled file.
type Journal interface {
	Record(ctx context.Context, t ledger.Trace) error
}

// Options configures a Client.
type Options struct {
	RSEs    map[string]config.RSE
	DryRun  bool
	Logger  *zap.Logger
	Journal Journal
	// OpenStore returns the storage of an RSE; defaults to storage.Open.
	OpenStore func(ctx context.Context, rse config.RSE) (storage.ObjectStore, error)
}

// Client places local files on RSEs and registers them in the catalogue.
type Client struct {
	cat    Catalogue
	opts   Options
	log    *zap.Logger
	stores map[string]storage.ObjectStore
}

func New(cat Catalogue, opts Options) *Client {
	if opts.OpenStore == nil {
		opts.OpenStore = storage.Open
	}
	return &Client{
		cat:    cat,
		opts:   opts,
		log:    logging.OrNop(opts.Logger).Named("upload"),
		stores: map[string]storage.ObjectStore{},
	}
}

// Upload handles items in order. Every item is validated first; a single bad
// item aborts the run with ErrInputValidation before anything is sent.
func (c *Client) Upload(ctx context.Context, items []types.UploadItem) (Summary, error) {
	sum := Summary{DryRun: c.opts.DryRun}
	if err := c.validate(items); err != nil {
		return sum, err
	}

	if c.opts.DryRun {
		for _, it := range items {
			rep := c.plan(it)
			if rep.State != types.StateFailed {
				rep.State = types.StatePlanned
			}
			c.log.Info("dry run", zap.String("did", it.DID()), zap.String("path", it.Path), zap.String("dest", rep.ObjectURI))
			sum.Files = append(sum.Files, rep)
		}
		return sum, sum.Err()
	}

	if err := c.checkRSEs(ctx, items); err != nil {
		return sum, err
	}

	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		rep := c.uploadOne(ctx, it)
		sum.Files = append(sum.Files, rep)
		c.record(ctx, rep)
	}
	return sum, sum.Err()
}

func (c *Client) validate(items []types.UploadItem) error {
	if len(items) == 0 {
		return fmt.Errorf("%w: nothing to upload", ErrInputValidation)
	}
	for _, it := range items {
		info, err := os.Stat(it.Path)
		if err != nil {
			return fmt.Errorf("%w: the file %s does not exist", ErrInputValidation, it.Path)
		}
		if !info.Mode().IsRegular() {
			return fmt.Errorf("%w: %s is not a regular file", ErrInputValidation, it.Path)
		}
		if err := (did.DID{Scope: it.DIDScope, Name: it.DIDName}).Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInputValidation, err)
		}
		if it.HasDataset() {
			if err := (did.DID{Scope: it.DatasetScope, Name: it.DatasetName}).Validate(); err != nil {
				return fmt.Errorf("%w: dataset: %w", ErrInputValidation, err)
			}
		}
		if _, ok := c.opts.RSEs[it.RSE]; !ok {
			return fmt.Errorf("%w: %w: %s", ErrInputValidation, config.ErrUnknownRSE, it.RSE)
		}
	}
	return nil
}

func (c *Client) checkRSEs(ctx context.Context, items []types.UploadItem) error {
	checked := map[string]bool{}
	for _, it := range items {
		if checked[it.RSE] {
			continue
		}
		checked[it.RSE] = true
		info, err := c.cat.GetRSE(ctx, it.RSE)
		if err != nil {
			return fmt.Errorf("rse %s: %w", it.RSE, err)
		}
		if !info.AvailabilityWrite {
			return fmt.Errorf("%w: %s", ErrRSEWriteBlocked, it.RSE)
		}
	}
	return nil
}

// plan fills in the destination of it.
func (c *Client) plan(it types.UploadItem) types.FileReport {
	rep := types.FileReport{Item: it}
	rse := c.opts.RSEs[it.RSE]
	uri, pfn, err := storage.Destination(rse, it.DIDScope, it.DIDName)
	if err != nil {
		rep.State = types.StateFailed
		rep.Error = err.Error()
		return rep
	}
	rep.ObjectURI, rep.PFN = uri, pfn
	if info, err := os.Stat(it.Path); err == nil {
		rep.Bytes = info.Size()
	}
	return rep
}

func (c *Client) store(ctx context.Context, name string) (storage.ObjectStore, error) {
	if s, ok := c.stores[name]; ok {
		return s, nil
	}
	s, err := c.opts.OpenStore(ctx, c.opts.RSEs[name])
	if err != nil {
		return nil, err
	}
	c.stores[name] = s
	return s, nil
}

func (c *Client) uploadOne(ctx context.Context, it types.UploadItem) types.FileReport {
	log := c.log.With(zap.String("did", it.DID()), zap.String("rse", it.RSE))
	rep := c.plan(it)
	if rep.State == types.StateFailed {
		return rep
	}
	fail := func(err error) types.FileReport {
		log.Error("upload failed", zap.String("path", it.Path), zap.Error(err))
		rep.State = types.StateFailed
		rep.Error = err.Error()
		return rep
	}

	sums, err := ComputeChecksums(it.Path)
	if err != nil {
		return fail(err)
	}
	rep.Bytes, rep.Adler32, rep.MD5 = sums.Bytes, sums.Adler32, sums.MD5

	if it.HasDataset() {
		err := c.cat.AddDataset(ctx, it.DatasetScope, it.DatasetName)
		switch {
		case err == nil:
			log.Info("dataset created", zap.String("dataset", it.DatasetScope+":"+it.DatasetName))
		case errors.Is(err, rucio.ErrDataIdentifierAlreadyExists):
		default:
			return fail(fmt.Errorf("add dataset: %w", err))
		}
	}

	registered := false
	meta, err := c.cat.GetMetadata(ctx, it.DIDScope, it.DIDName)
	switch {
	case err == nil:
		if meta.Adler32 != sums.Adler32 {
			return fail(fmt.Errorf("%w: %s is registered with adler32 %s, local file has %s",
				ErrChecksumMismatch, it.DID(), meta.Adler32, sums.Adler32))
		}
		registered = true
	case errors.Is(err, rucio.ErrDataIdentifierNotFound):
	default:
		return fail(fmt.Errorf("get metadata: %w", err))
	}

	store, err := c.store(ctx, it.RSE)
	if err != nil {
		return fail(err)
	}
	transferred := false
	size, err := store.Stat(ctx, rep.ObjectURI)
	switch {
	case err == nil && size == sums.Bytes:
		log.Info("file already exists on RSE, skipping upload", zap.String("dest", rep.ObjectURI))
	case err == nil && registered:
		return fail(fmt.Errorf("%w: %s has %d bytes on the RSE, local file has %d", ErrSizeMismatch, rep.ObjectURI, size, sums.Bytes))
	case err == nil, errors.Is(err, storage.ErrNotFound):
		if err := c.transfer(ctx, store, it.Path, rep.ObjectURI, sums); err != nil {
			return fail(err)
		}
		transferred = true
		log.Info("file uploaded", zap.String("dest", rep.ObjectURI), zap.Int64("bytes", sums.Bytes))
	default:
		return fail(fmt.Errorf("stat %s: %w", rep.ObjectURI, err))
	}

	replica := rucio.ReplicaFile{
		Scope:   it.DIDScope,
		Name:    it.DIDName,
		Bytes:   sums.Bytes,
		Adler32: sums.Adler32,
		MD5:     sums.MD5,
		PFN:     rep.PFN,
	}
	if err := c.cat.AddReplicas(ctx, it.RSE, []rucio.ReplicaFile{replica}); err != nil &&
		!errors.Is(err, rucio.ErrDuplicate) && !errors.Is(err, rucio.ErrFileAlreadyExists) {
		return fail(fmt.Errorf("add replica: %w", err))
	}

	if it.HasDataset() {
		dids := []rucio.DIDRef{{Scope: it.DIDScope, Name: it.DIDName}}
		if err := c.cat.Attach(ctx, it.DatasetScope, it.DatasetName, dids); err != nil &&
			!errors.Is(err, rucio.ErrFileAlreadyExists) {
			return fail(fmt.Errorf("attach to %s:%s: %w", it.DatasetScope, it.DatasetName, err))
		}
	}

	rep.State = types.StateDone
	if registered && !transferred {
		rep.State = types.StateSkipped
	}
	if transferred {
		metrics.BytesUploaded.Add(float64(sums.Bytes))
	}
	log.Info("file registered", zap.String("state", string(rep.State)))
	return rep
}

// transfer copies path to uri, then reads the object back and compares its
// size and adler32 with the local file.
func (c *Client) transfer(ctx context.Context, store storage.ObjectStore, path, uri string, want Checksums) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := store.Put(ctx, uri, f); err != nil {
		return fmt.Errorf("put %s: %w", uri, err)
	}
	got, err := store.Stat(ctx, uri)
	if err != nil {
		return fmt.Errorf("verify %s: %w", uri, err)
	}
	if got != want.Bytes {
		return fmt.Errorf("%w: wrote %d bytes to %s, expected %d", ErrSizeMismatch, got, uri, want.Bytes)
	}

	body, _, err := store.Get(ctx, uri)
	if err != nil {
		return fmt.Errorf("read back %s: %w", uri, err)
	}
	defer body.Close()
	stored, err := checksumReader(body)
	if err != nil {
		return fmt.Errorf("read back %s: %w", uri, err)
	}
	if stored.Adler32 != want.Adler32 {
		return fmt.Errorf("%w: %s has adler32 %s after upload, local file has %s",
			ErrChecksumMismatch, uri, stored.Adler32, want.Adler32)
	}
	return nil
}

func (c *Client) record(ctx context.Context, rep types.FileReport) {
	metrics.FilesUploaded.WithLabelValues(string(rep.State)).Inc()
	if c.opts.Journal == nil {
		return
	}
	t := ledger.Trace{
		Scope:   rep.Item.DIDScope,
		Name:    rep.Item.DIDName,
		RSE:     rep.Item.RSE,
		Path:    rep.Item.Path,
		Bytes:   rep.Bytes,
		Adler32: rep.Adler32,
		State:   string(rep.State),
		Error:   rep.Error,
	}
	if rep.Item.HasDataset() {
		t.Dataset = rep.Item.DatasetScope + ":" + rep.Item.DatasetName
	}
	if err := c.opts.Journal.Record(ctx, t); err != nil {
		c.log.Warn("ledger record failed", zap.String("did", rep.Item.DID()), zap.Error(err))
	}
}
