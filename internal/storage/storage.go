// Package storage abstracts call-recording storage: local disk for
// single-node/dev deployments, S3-compatible object storage for
// production. Ingestion (C8) writes through AudioStore before producing
// CallReceived; projectors never read audio directly.
package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/snarg/call-dossier/internal/config"
)

// AudioStore abstracts call-recording storage backends.
type AudioStore interface {
	// Save stores audio data. key format: {callId}/{filename}.
	Save(ctx context.Context, key string, data []byte, contentType string) error

	// URL returns a presigned URL for the recording. Returns "" for
	// local-only backends.
	URL(ctx context.Context, key string) (string, error)

	// Open returns a reader for the recording.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists checks whether a recording exists.
	Exists(ctx context.Context, key string) bool

	// Type returns "local" or "s3".
	Type() string
}

// New builds an AudioStore from config.
func New(cfg *config.Config, log zerolog.Logger) (AudioStore, error) {
	if cfg.StorageBackend != "s3" {
		return NewLocalStore(cfg.AudioDir), nil
	}

	s3store, err := NewS3Store(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("S3 init failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s3store.HeadBucket(ctx); err != nil {
		return nil, fmt.Errorf("S3 startup check failed (bucket=%q endpoint=%q): %w",
			cfg.S3Bucket, cfg.S3Endpoint, err)
	}
	log.Info().Str("bucket", cfg.S3Bucket).Str("endpoint", cfg.S3Endpoint).Msg("S3 connection verified")
	return s3store, nil
}
