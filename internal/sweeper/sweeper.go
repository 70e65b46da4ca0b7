// Package sweeper reconciles orphaned video binaries: objects written
// during uploads whose persist stage never completed, leaving no record
// that references them.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/pitchside/video-pipeline/internal/metrics"
	"github.com/pitchside/video-pipeline/internal/storage"
)

var tracer = otel.Tracer("pitchside-sweeper")

// UploadPrefix is the object-key prefix all upload binaries live under.
const UploadPrefix = "uploads/"

// ObjectLister is the object-store surface the sweeper needs.
type ObjectLister interface {
	List(ctx context.Context, prefix string) ([]storage.StoredObject, error)
	Delete(ctx context.Context, key string) error
}

// KeyIndex resolves which storage keys are referenced by a record.
type KeyIndex interface {
	ListStorageKeys(ctx context.Context) (map[string]struct{}, error)
}

// Sweeper deletes unreferenced upload binaries older than the grace
// period. The grace period keeps it from racing an in-flight upload
// whose persist stage has not run yet.
type Sweeper struct {
	store       ObjectLister
	index       KeyIndex
	gracePeriod time.Duration
	dryRun      bool
	log         *slog.Logger
}

// Config holds sweeper dependencies.
type Config struct {
	Store       ObjectLister
	Index       KeyIndex
	GracePeriod time.Duration
	DryRun      bool
	Logger      *slog.Logger
}

// New creates a Sweeper.
func New(cfg *Config) *Sweeper {
	return &Sweeper{
		store:       cfg.Store,
		index:       cfg.Index,
		gracePeriod: cfg.GracePeriod,
		dryRun:      cfg.DryRun,
		log:         cfg.Logger,
	}
}

// Result summarizes one sweep.
type Result struct {
	Scanned int
	Orphans int
	Deleted int
}

// Sweep lists every object under the upload prefix and deletes those
// with no referencing record that are older than the grace period.
func (s *Sweeper) Sweep(ctx context.Context) (*Result, error) {
	ctx, span := tracer.Start(ctx, "orphan-sweep")
	defer span.End()

	referenced, err := s.index.ListStorageKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list referenced keys: %w", err)
	}

	objects, err := s.store.List(ctx, UploadPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list stored objects: %w", err)
	}

	cutoff := time.Now().Add(-s.gracePeriod)
	result := &Result{Scanned: len(objects)}

	for _, obj := range objects {
		if _, ok := referenced[obj.Key]; ok {
			continue
		}
		if obj.LastModified.After(cutoff) {
			// Could be an upload whose persist stage hasn't run yet.
			continue
		}

		result.Orphans++
		if s.dryRun {
			s.log.InfoContext(ctx, "Orphaned binary found (dry run)",
				"key", obj.Key,
				"lastModified", obj.LastModified,
			)
			continue
		}

		if err := s.store.Delete(ctx, obj.Key); err != nil {
			s.log.ErrorContext(ctx, "Failed to delete orphan", "key", obj.Key, "error", err)
			continue
		}

		result.Deleted++
		metrics.OrphansSwept.Inc()
		s.log.InfoContext(ctx, "Deleted orphaned binary",
			"key", obj.Key,
			"lastModified", obj.LastModified,
		)
	}

	span.SetAttributes(
		attribute.Int("sweep.scanned", result.Scanned),
		attribute.Int("sweep.orphans", result.Orphans),
		attribute.Int("sweep.deleted", result.Deleted),
	)

	s.log.InfoContext(ctx, "Sweep finished",
		"scanned", result.Scanned,
		"orphans", result.Orphans,
		"deleted", result.Deleted,
	)
	return result, nil
}
