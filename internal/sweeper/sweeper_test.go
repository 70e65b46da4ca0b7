package sweeper

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/pitchside/video-pipeline/internal/storage"
)

type fakeStore struct {
	objects []storage.StoredObject
	deleted []string
	listErr error
	delErr  error
}

func (f *fakeStore) List(ctx context.Context, prefix string) ([]storage.StoredObject, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.objects, nil
}

func (f *fakeStore) Delete(ctx context.Context, key string) error {
	if f.delErr != nil {
		return f.delErr
	}
	f.deleted = append(f.deleted, key)
	return nil
}

type fakeIndex struct {
	keys map[string]struct{}
	err  error
}

func (f *fakeIndex) ListStorageKeys(ctx context.Context) (map[string]struct{}, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.keys, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, nil))
}

func TestSweep_DeletesOldOrphans(t *testing.T) {
	old := time.Now().Add(-48 * time.Hour)
	fresh := time.Now().Add(-time.Minute)

	store := &fakeStore{objects: []storage.StoredObject{
		{Key: "uploads/team-1/referenced.mp4", LastModified: old},
		{Key: "uploads/team-1/orphan-old.mp4", LastModified: old},
		{Key: "uploads/team-1/orphan-fresh.mp4", LastModified: fresh},
	}}
	index := &fakeIndex{keys: map[string]struct{}{
		"uploads/team-1/referenced.mp4": {},
	}}

	s := New(&Config{
		Store:       store,
		Index:       index,
		GracePeriod: 24 * time.Hour,
		Logger:      testLogger(),
	})

	result, err := s.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}

	if result.Scanned != 3 {
		t.Errorf("Scanned = %d, want 3", result.Scanned)
	}
	if result.Orphans != 1 {
		t.Errorf("Orphans = %d, want 1 (fresh orphan is within grace period)", result.Orphans)
	}
	if result.Deleted != 1 {
		t.Errorf("Deleted = %d, want 1", result.Deleted)
	}
	if len(store.deleted) != 1 || store.deleted[0] != "uploads/team-1/orphan-old.mp4" {
		t.Errorf("deleted keys = %v, want only the old orphan", store.deleted)
	}
}

func TestSweep_DryRun(t *testing.T) {
	old := time.Now().Add(-48 * time.Hour)

	store := &fakeStore{objects: []storage.StoredObject{
		{Key: "uploads/team-1/orphan.mp4", LastModified: old},
	}}
	index := &fakeIndex{keys: map[string]struct{}{}}

	s := New(&Config{
		Store:       store,
		Index:       index,
		GracePeriod: 24 * time.Hour,
		DryRun:      true,
		Logger:      testLogger(),
	})

	result, err := s.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}

	if result.Orphans != 1 {
		t.Errorf("Orphans = %d, want 1", result.Orphans)
	}
	if result.Deleted != 0 {
		t.Errorf("Deleted = %d, want 0 in dry run", result.Deleted)
	}
	if len(store.deleted) != 0 {
		t.Errorf("deleted keys = %v, want none in dry run", store.deleted)
	}
}

func TestSweep_IndexError(t *testing.T) {
	s := New(&Config{
		Store:       &fakeStore{},
		Index:       &fakeIndex{err: errors.New("scan failed")},
		GracePeriod: time.Hour,
		Logger:      testLogger(),
	})

	if _, err := s.Sweep(context.Background()); err == nil {
		t.Error("Sweep() expected error when the key index fails")
	}
}

func TestSweep_DeleteErrorContinues(t *testing.T) {
	old := time.Now().Add(-48 * time.Hour)

	store := &fakeStore{
		objects: []storage.StoredObject{
			{Key: "uploads/team-1/orphan-a.mp4", LastModified: old},
			{Key: "uploads/team-1/orphan-b.mp4", LastModified: old},
		},
		delErr: errors.New("access denied"),
	}
	index := &fakeIndex{keys: map[string]struct{}{}}

	s := New(&Config{
		Store:       store,
		Index:       index,
		GracePeriod: 24 * time.Hour,
		Logger:      testLogger(),
	})

	result, err := s.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep() error = %v, delete failures should not abort the sweep", err)
	}
	if result.Orphans != 2 {
		t.Errorf("Orphans = %d, want 2", result.Orphans)
	}
	if result.Deleted != 0 {
		t.Errorf("Deleted = %d, want 0", result.Deleted)
	}
}
