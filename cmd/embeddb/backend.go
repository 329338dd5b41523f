package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/hupe1980/embeddb"
	"github.com/hupe1980/embeddb/blobstore"
	"github.com/hupe1980/embeddb/blobstore/badger"
	"github.com/hupe1980/embeddb/blobstore/minio"
	"github.com/hupe1980/embeddb/blobstore/s3"
	"github.com/hupe1980/embeddb/blobstore/sqlite"
	"github.com/hupe1980/embeddb/codec"
	"github.com/hupe1980/embeddb/embedding"
	"github.com/hupe1980/embeddb/embedding/openai"
	"github.com/hupe1980/embeddb/snapshot"
)

// session is an open client plus the resources it holds.
type session struct {
	client *embeddb.Client
	cfg    *Config
	closer io.Closer
}

// Close flushes the client and releases the blob store.
func (s *session) Close() error {
	err := s.client.Close()
	if s.closer != nil {
		if cerr := s.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// embedder returns the configured embedding function.
func (s *session) embedder() embedding.Func {
	return newEmbedder(s.cfg.Embedding)
}

// openSession connects the configured backend and loads the latest snapshot.
func openSession(ctx context.Context, cfg *Config, stderr io.Writer) (*session, error) {
	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	compression, err := snapshot.ParseCompression(cfg.Storage.Compression)
	if err != nil {
		return nil, err
	}

	payloadCodec, ok := codec.ByName(cfg.Storage.Codec)
	if !ok {
		return nil, fmt.Errorf("unknown codec %q", cfg.Storage.Codec)
	}

	logger := embeddb.NewLogger(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	blobs, closer, err := openBlobStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	client, err := embeddb.NewClient(ctx,
		embeddb.WithLogger(logger),
		embeddb.WithCompactionInterval(0),
		embeddb.WithBlobStore(blobs, func(o *snapshot.Options) {
			o.Codec = payloadCodec
			o.Compression = compression
			o.Retention = cfg.Storage.Retention
		}),
	)
	if err != nil {
		if closer != nil {
			_ = closer.Close()
		}
		return nil, err
	}

	return &session{client: client, cfg: cfg, closer: closer}, nil
}

// openBlobStore builds the blob store for cfg.Storage.Backend. The returned
// closer is nil for backends without resources to release.
func openBlobStore(ctx context.Context, cfg *Config) (blobstore.BlobStore, io.Closer, error) {
	switch cfg.Storage.Backend {
	case "local":
		return blobstore.NewLocalStore(cfg.DataDir), nil, nil

	case "badger":
		store, err := badger.New(func(o *badger.Options) {
			o.Dir = filepath.Join(cfg.DataDir, "badger")
		})
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil

	case "sqlite":
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("creating data dir: %w", err)
		}
		store, err := sqlite.New(filepath.Join(cfg.DataDir, "embeddb.db"))
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil

	case "s3":
		c := cfg.Storage.S3
		optFns := []func(o *s3.Options){s3.WithPrefix(c.Prefix)}
		if c.Region != "" {
			optFns = append(optFns, s3.WithRegion(c.Region))
		}
		if c.Endpoint != "" {
			optFns = append(optFns, s3.WithEndpoint(c.Endpoint))
		}
		if c.Table != "" {
			store, err := s3.NewCommitStore(ctx, c.Bucket, c.Table, optFns...)
			if err != nil {
				return nil, nil, err
			}
			return store, nil, nil
		}
		store, err := s3.New(ctx, c.Bucket, optFns...)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil

	case "minio":
		c := cfg.Storage.Minio
		store, err := minio.Dial(ctx, c.Endpoint, c.Bucket, func(o *minio.Options) {
			o.Prefix = c.Prefix
			o.AccessKey = c.AccessKey
			o.SecretKey = c.SecretKey
			o.Secure = c.Secure
			o.CreateBucket = c.CreateBucket
		})
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

func newEmbedder(cfg EmbeddingConfig) embedding.Func {
	if cfg.Provider == "openai" {
		return openai.New(func(o *openai.Options) {
			if cfg.APIKey != "" {
				o.APIKey = cfg.APIKey
			}
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
			o.BaseURL = cfg.BaseURL
			o.Dimensions = cfg.Dimension
		}).Func()
	}
	return embedding.NewHash(cfg.Dimension)
}
