package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/pitchside/video-pipeline/pkg/models"
)

type fakeFinder struct {
	records []models.VideoRecord
	deleted []string
	findErr error
}

func (f *fakeFinder) FindByTitle(_ context.Context, teamID, title string) ([]models.VideoRecord, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	var out []models.VideoRecord
	for _, r := range f.records {
		if r.TeamID == teamID && r.Title == title {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeFinder) DeleteVideo(_ context.Context, videoID string) error {
	f.deleted = append(f.deleted, videoID)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestResolveKeepsNewestDeletesRest(t *testing.T) {
	finder := &fakeFinder{records: []models.VideoRecord{
		{VideoID: "old", TeamID: "T1", Title: "Final", CreatedAt: "2026-01-01T10:00:00Z"},
		{VideoID: "new", TeamID: "T1", Title: "Final", CreatedAt: "2026-01-02T10:00:00Z"},
	}}
	resolver := NewDuplicateResolver(finder, testLogger())

	got, err := resolver.Resolve(context.Background(), "Final", "T1")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if got.VideoID != "new" {
		t.Errorf("Resolve() kept %s, want new", got.VideoID)
	}
	if len(finder.deleted) != 1 || finder.deleted[0] != "old" {
		t.Errorf("deleted = %v, want [old]", finder.deleted)
	}
}

func TestResolveSingleRecordNoDeletes(t *testing.T) {
	finder := &fakeFinder{records: []models.VideoRecord{
		{VideoID: "only", TeamID: "T1", Title: "Final", CreatedAt: "2026-01-01T10:00:00Z"},
	}}
	resolver := NewDuplicateResolver(finder, testLogger())

	got, err := resolver.Resolve(context.Background(), "Final", "T1")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got.VideoID != "only" {
		t.Errorf("Resolve() = %s, want only", got.VideoID)
	}
	if len(finder.deleted) != 0 {
		t.Errorf("deleted = %v, want none", finder.deleted)
	}
}

func TestResolveNotFound(t *testing.T) {
	resolver := NewDuplicateResolver(&fakeFinder{}, testLogger())

	_, err := resolver.Resolve(context.Background(), "Missing", "T1")
	if !errors.Is(err, models.ErrVideoNotFound) {
		t.Errorf("Resolve() error = %v, want ErrVideoNotFound", err)
	}
}

func TestResolveThreeWayRace(t *testing.T) {
	finder := &fakeFinder{records: []models.VideoRecord{
		{VideoID: "b", TeamID: "T1", Title: "Final", CreatedAt: "2026-01-02T10:00:00Z"},
		{VideoID: "a", TeamID: "T1", Title: "Final", CreatedAt: "2026-01-01T10:00:00Z"},
		{VideoID: "c", TeamID: "T1", Title: "Final", CreatedAt: "2026-01-03T10:00:00Z"},
	}}
	resolver := NewDuplicateResolver(finder, testLogger())

	got, err := resolver.Resolve(context.Background(), "Final", "T1")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got.VideoID != "c" {
		t.Errorf("Resolve() kept %s, want c", got.VideoID)
	}
	if len(finder.deleted) != 2 {
		t.Errorf("deleted %d records, want 2", len(finder.deleted))
	}
}
