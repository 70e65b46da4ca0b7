package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pitchside/video-pipeline/internal/metrics"
	"github.com/pitchside/video-pipeline/pkg/models"
)

// VideoFinder is the repository surface the duplicate resolver needs.
type VideoFinder interface {
	FindByTitle(ctx context.Context, teamID, title string) ([]models.VideoRecord, error)
	DeleteVideo(ctx context.Context, videoID string) error
}

// DuplicateResolver reconciles multiple records that describe the same
// logical upload. Title plus team is a non-unique natural key, so two
// uncoordinated uploads can race and both persist; resolution is
// most-recent-wins, run on demand rather than proactively.
type DuplicateResolver struct {
	videos VideoFinder
	log    *slog.Logger
}

// NewDuplicateResolver creates a resolver over the given repository.
func NewDuplicateResolver(videos VideoFinder, log *slog.Logger) *DuplicateResolver {
	return &DuplicateResolver{videos: videos, log: log}
}

// Resolve keeps the most recently created record for (title, team) and
// deletes the rest. No analysis data is merged: an older completed
// analysis is discarded with its record. Returns the surviving record.
func (r *DuplicateResolver) Resolve(ctx context.Context, title, teamID string) (*models.VideoRecord, error) {
	records, err := r.videos.FindByTitle(ctx, teamID, title)
	if err != nil {
		return nil, fmt.Errorf("failed to look up duplicates: %w", err)
	}
	if len(records) == 0 {
		return nil, models.ErrVideoNotFound
	}

	newest := records[0]
	for _, rec := range records[1:] {
		if rec.CreatedTime().After(newest.CreatedTime()) {
			newest = rec
		}
	}

	for _, rec := range records {
		if rec.VideoID == newest.VideoID {
			continue
		}
		if err := r.videos.DeleteVideo(ctx, rec.VideoID); err != nil {
			return nil, fmt.Errorf("failed to delete duplicate %s: %w", rec.VideoID, err)
		}
		metrics.DuplicatesResolved.Inc()
		r.log.InfoContext(ctx, "Deleted duplicate video record",
			"videoId", rec.VideoID,
			"kept", newest.VideoID,
			"title", title,
			"teamId", teamID,
		)
	}

	return &newest, nil
}
