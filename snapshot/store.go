package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/hupe1980/embeddb/blobstore"
	"github.com/hupe1980/embeddb/codec"
	"github.com/hupe1980/embeddb/internal/resource"
)

const (
	// CurrentName is the blob holding the name of the latest snapshot.
	CurrentName = "CURRENT"
	// Prefix is the blob name prefix of snapshot versions.
	Prefix = "snapshots/"
	suffix = ".snap"
)

// ErrNoSnapshot is returned by Load when nothing has been saved yet.
var ErrNoSnapshot = errors.New("snapshot: no snapshot")

// Options configures a Store.
type Options struct {
	// Codec encodes snapshot payloads. Default: msgpack.
	Codec codec.Codec

	// Compression is applied to payloads. Default: CompressionNone.
	Compression Compression

	// Retention is the number of snapshot versions kept. Default: 2.
	Retention int

	// Resources limits snapshot IO throughput. Optional.
	Resources *resource.Controller
}

// DefaultOptions returns the default store options.
func DefaultOptions() Options {
	return Options{
		Codec:       codec.Default,
		Compression: CompressionNone,
		Retention:   2,
	}
}

// Store saves and loads versioned snapshots in a blob store.
type Store struct {
	mu      sync.Mutex
	blobs   blobstore.BlobStore
	opts    Options
	version uint64
	scanned bool
}

// NewStore creates a snapshot store on top of blobs.
func NewStore(blobs blobstore.BlobStore, optFns ...func(o *Options)) *Store {
	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Codec == nil {
		opts.Codec = codec.Default
	}
	if opts.Retention < 1 {
		opts.Retention = 1
	}
	return &Store{blobs: blobs, opts: opts}
}

// Blobs returns the underlying blob store.
func (s *Store) Blobs() blobstore.BlobStore {
	return s.blobs
}

// Version returns the last version loaded or saved by this Store.
func (s *Store) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Load reads the snapshot CURRENT points to.
func (s *Store) Load(ctx context.Context) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := blobstore.ReadAll(ctx, s.blobs, CurrentName)
	if errors.Is(err, blobstore.ErrNotFound) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot: read %s: %w", CurrentName, err)
	}

	name := strings.TrimSpace(string(current))
	version, ok := parseName(name)
	if !ok {
		return nil, fmt.Errorf("snapshot: %s points to invalid name %q", CurrentName, name)
	}

	data, err := blobstore.ReadAll(ctx, s.blobs, name)
	if err != nil {
		return nil, fmt.Errorf("snapshot: read %s: %w", name, err)
	}

	if err := s.opts.Resources.AcquireIO(ctx, len(data)); err != nil {
		return nil, err
	}

	var snap Snapshot
	if _, err := Decode(data, &snap); err != nil {
		return nil, fmt.Errorf("snapshot: decode %s: %w", name, err)
	}

	if version > s.version {
		s.version = version
	}

	return &snap, nil
}

// Save writes snap as the next version, points CURRENT at it and prunes
// versions beyond the retention count. It returns the new version.
func (s *Store) Save(ctx context.Context, snap *Snapshot) (uint64, error) {
	data, err := Encode(snap, s.opts.Codec, s.opts.Compression)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.scan(ctx); err != nil {
		return 0, err
	}

	version := s.version + 1
	name := versionName(version)

	if err := s.opts.Resources.AcquireIO(ctx, len(data)); err != nil {
		return 0, err
	}

	if err := s.blobs.Put(ctx, name, data); err != nil {
		return 0, fmt.Errorf("snapshot: write %s: %w", name, err)
	}

	if err := s.blobs.Put(ctx, CurrentName, []byte(name)); err != nil {
		// CURRENT still names the previous version.
		_ = s.blobs.Delete(ctx, name)
		return 0, fmt.Errorf("snapshot: commit %s: %w", name, err)
	}

	s.version = version

	if err := s.prune(ctx); err != nil {
		return version, fmt.Errorf("snapshot: prune: %w", err)
	}

	return version, nil
}

// Versions returns the stored versions in ascending order.
func (s *Store) Versions(ctx context.Context) ([]uint64, error) {
	names, err := s.blobs.List(ctx, Prefix)
	if err != nil {
		return nil, err
	}

	versions := make([]uint64, 0, len(names))
	for _, name := range names {
		if v, ok := parseName(name); ok {
			versions = append(versions, v)
		}
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
	return versions, nil
}

// scan finds the highest stored version once, so a fresh Store never
// overwrites an existing snapshot.
func (s *Store) scan(ctx context.Context) error {
	if s.scanned {
		return nil
	}

	versions, err := s.Versions(ctx)
	if err != nil {
		return fmt.Errorf("snapshot: list versions: %w", err)
	}
	if n := len(versions); n > 0 && versions[n-1] > s.version {
		s.version = versions[n-1]
	}

	s.scanned = true
	return nil
}

func (s *Store) prune(ctx context.Context) error {
	versions, err := s.Versions(ctx)
	if err != nil {
		return err
	}

	var errs []error
	for len(versions) > s.opts.Retention {
		v := versions[0]
		versions = versions[1:]
		if v == s.version {
			continue
		}
		if err := s.blobs.Delete(ctx, versionName(v)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func versionName(v uint64) string {
	return fmt.Sprintf("%s%020d%s", Prefix, v, suffix)
}

func parseName(name string) (uint64, bool) {
	if !strings.HasPrefix(name, Prefix) || !strings.HasSuffix(name, suffix) {
		return 0, false
	}
	v, err := strconv.ParseUint(strings.TrimSuffix(strings.TrimPrefix(name, Prefix), suffix), 10, 64)
	if err != nil || v == 0 {
		return 0, false
	}
	return v, true
}
