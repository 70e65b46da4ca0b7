package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pitchside/video-pipeline/internal/analysis"
	"github.com/pitchside/video-pipeline/pkg/models"
)

// Fake collaborators

type fakeCompressor struct {
	out string
	err error
}

func (f *fakeCompressor) Compress(ctx context.Context, inputPath string, report func(percent int)) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if report != nil {
		report(50)
		report(100)
	}
	if f.out != "" {
		return f.out, nil
	}
	return inputPath, nil
}

type fakeStore struct {
	putKeys []string
	err     error
}

func (f *fakeStore) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if _, err := io.Copy(io.Discard, body); err != nil {
		return "", err
	}
	f.putKeys = append(f.putKeys, key)
	return "https://cdn.test/" + key, nil
}

type fakeVideoStore struct {
	created    []*models.VideoRecord
	statuses   map[string]models.AnalysisStatus
	analyses   map[string]*models.AnalysisData
	failures   map[string]*models.AnalysisFailure
	createErr  error
	markErr    error
	retryCount int
}

func newFakeVideoStore() *fakeVideoStore {
	return &fakeVideoStore{
		statuses: make(map[string]models.AnalysisStatus),
		analyses: make(map[string]*models.AnalysisData),
		failures: make(map[string]*models.AnalysisFailure),
	}
}

func (f *fakeVideoStore) CreateVideo(ctx context.Context, rec *models.VideoRecord) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, rec)
	f.statuses[rec.VideoID] = rec.Status
	return nil
}

func (f *fakeVideoStore) MarkAnalyzing(ctx context.Context, videoID string) error {
	if f.markErr != nil {
		return f.markErr
	}
	if f.statuses[videoID] != models.StatusPending {
		return models.ErrInvalidStatus
	}
	f.statuses[videoID] = models.StatusAnalyzing
	return nil
}

func (f *fakeVideoStore) RetryAnalyzing(ctx context.Context, videoID string) error {
	if f.statuses[videoID] != models.StatusFailed {
		return models.ErrInvalidStatus
	}
	f.retryCount++
	f.statuses[videoID] = models.StatusAnalyzing
	return nil
}

func (f *fakeVideoStore) CompleteAnalysis(ctx context.Context, videoID string, data *models.AnalysisData) error {
	if f.statuses[videoID] != models.StatusAnalyzing {
		return models.ErrInvalidStatus
	}
	f.statuses[videoID] = models.StatusCompleted
	f.analyses[videoID] = data
	return nil
}

func (f *fakeVideoStore) FailAnalysis(ctx context.Context, videoID string, failure *models.AnalysisFailure) error {
	if f.statuses[videoID] == models.StatusCompleted {
		return models.ErrInvalidStatus
	}
	f.statuses[videoID] = models.StatusFailed
	f.failures[videoID] = failure
	return nil
}

type fakeAnalyzer struct {
	response json.RawMessage
	err      error
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, req *analysis.Request) (json.RawMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

// Helpers

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, nil))
}

func writeUploadFile(t *testing.T) *Upload {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "match.mp4")
	if err := os.WriteFile(path, []byte("not really a video"), 0o644); err != nil {
		t.Fatalf("failed to write upload file: %v", err)
	}
	return &Upload{
		Path:        path,
		Filename:    "match.mp4",
		ContentType: "video/mp4",
		Size:        18,
	}
}

func matchMeta() *models.UploadMetadata {
	return &models.UploadMetadata{
		Title:    "vs Rovers",
		Type:     models.TypeMatch,
		Opponent: "Rovers",
		Venue:    "Home",
	}
}

var matchResponse = json.RawMessage(`{
	"summary": "A tight match decided late.",
	"events": [
		{"time": 120, "type": "Goal", "detail": "Close range finish", "confidence": 0.95, "players": ["Osei"]},
		{"time": 300, "type": "Save", "detail": "Fingertip save", "confidence": 0.9, "players": ["Keeper"]},
		{"time": 2700, "type": "Goal", "detail": "Winner from the edge of the box", "confidence": 0.92, "players": ["Silva"]}
	],
	"key_moments": [
		{"time": 2700, "type": "Goal", "detail": "The decisive moment", "importance": "critical", "players": ["Silva"]}
	],
	"performance_rating": 8.1,
	"confidence": 0.9
}`)

func newTestPipeline(videos *fakeVideoStore, analyzer Analyzer) (*Pipeline, *fakeStore) {
	store := &fakeStore{}
	p := New(&Config{
		Compressor: &fakeCompressor{},
		Store:      store,
		Videos:     videos,
		Analyzer:   analyzer,
		Logger:     testLogger(),
	})
	return p, store
}

// Tests

func TestRun_MatchUploadCompletes(t *testing.T) {
	videos := newFakeVideoStore()
	p, store := newTestPipeline(videos, &fakeAnalyzer{response: matchResponse})
	state := NewState()

	rec, err := p.Run(context.Background(),
		UploadContext{TeamID: "team-1", UploaderID: "coach", TeamSport: "football"},
		writeUploadFile(t), matchMeta(), state)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if rec.Status != models.StatusCompleted {
		t.Errorf("Status = %s, want %s", rec.Status, models.StatusCompleted)
	}
	if rec.Analysis == nil {
		t.Fatal("Analysis is nil after completed run")
	}
	if got := len(rec.Analysis.PlayerActions); got != 3 {
		t.Errorf("len(PlayerActions) = %d, want 3", got)
	}
	if got := len(rec.Analysis.KeyMoments); got != 1 {
		t.Errorf("len(KeyMoments) = %d, want 1", got)
	}
	if rec.Match == nil || rec.Match.Opponent != "Rovers" {
		t.Errorf("Match = %+v, want opponent Rovers", rec.Match)
	}
	if len(store.putKeys) != 1 {
		t.Fatalf("expected exactly one stored object, got %d", len(store.putKeys))
	}
	if rec.StorageKey != store.putKeys[0] {
		t.Errorf("StorageKey = %q, want the stored key %q", rec.StorageKey, store.putKeys[0])
	}
	if len(videos.created) != 1 {
		t.Errorf("expected exactly one created record, got %d", len(videos.created))
	}

	snap := state.Snapshot()
	if !snap.Finished {
		t.Error("state not finished after successful run")
	}
	if snap.Error != "" {
		t.Errorf("state error = %q, want empty", snap.Error)
	}
}

func TestRun_AnalyzerFailureIsPartialSuccess(t *testing.T) {
	videos := newFakeVideoStore()
	p, _ := newTestPipeline(videos, &fakeAnalyzer{err: errors.New("model overloaded")})

	rec, err := p.Run(context.Background(),
		UploadContext{TeamID: "team-1"},
		writeUploadFile(t), matchMeta(), nil)
	if err != nil {
		t.Fatalf("Run() error = %v, analyze failure must not fail the upload", err)
	}

	if rec.Status != models.StatusFailed {
		t.Errorf("Status = %s, want %s", rec.Status, models.StatusFailed)
	}
	if rec.AnalysisError == nil {
		t.Fatal("AnalysisError is nil after failed analysis")
	}
	if rec.AnalysisError.Message == "" || rec.AnalysisError.FailedAt == "" {
		t.Errorf("diagnostic payload incomplete: %+v", rec.AnalysisError)
	}
	// The record itself survives with its upload fields intact.
	if rec.URL == "" || rec.StorageKey == "" || rec.Title != "vs Rovers" {
		t.Errorf("record fields lost on analysis failure: %+v", rec)
	}
	if len(videos.created) != 1 {
		t.Errorf("expected the record to be kept, got %d records", len(videos.created))
	}
}

func TestRun_ValidationFailuresAbortBeforeStages(t *testing.T) {
	tests := []struct {
		name   string
		uctx   UploadContext
		mutate func(*Upload, *models.UploadMetadata)
		want   error
	}{
		{
			name: "missing team",
			uctx: UploadContext{},
			want: models.ErrMissingTeamID,
		},
		{
			name: "not a video",
			uctx: UploadContext{TeamID: "team-1"},
			mutate: func(u *Upload, m *models.UploadMetadata) {
				u.ContentType = "application/pdf"
			},
			want: models.ErrNotVideo,
		},
		{
			name: "missing title",
			uctx: UploadContext{TeamID: "team-1"},
			mutate: func(u *Upload, m *models.UploadMetadata) {
				m.Title = ""
			},
			want: models.ErrValidation,
		},
		{
			name: "match without opponent",
			uctx: UploadContext{TeamID: "team-1"},
			mutate: func(u *Upload, m *models.UploadMetadata) {
				m.Opponent = ""
			},
			want: models.ErrValidation,
		},
		{
			name: "unknown type",
			uctx: UploadContext{TeamID: "team-1"},
			mutate: func(u *Upload, m *models.UploadMetadata) {
				m.Type = "vlog"
			},
			want: models.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			videos := newFakeVideoStore()
			store := &fakeStore{}
			p := New(&Config{
				Compressor: &fakeCompressor{},
				Store:      store,
				Videos:     videos,
				Analyzer:   &fakeAnalyzer{response: matchResponse},
				Logger:     testLogger(),
			})

			upload := writeUploadFile(t)
			meta := matchMeta()
			if tt.mutate != nil {
				tt.mutate(upload, meta)
			}

			_, err := p.Run(context.Background(), tt.uctx, upload, meta, nil)
			if !errors.Is(err, tt.want) {
				t.Errorf("Run() error = %v, want %v", err, tt.want)
			}
			if len(store.putKeys) != 0 {
				t.Error("object stored despite failed preconditions")
			}
			if len(videos.created) != 0 {
				t.Error("record created despite failed preconditions")
			}
		})
	}
}

func TestRun_FileTooLarge(t *testing.T) {
	videos := newFakeVideoStore()
	store := &fakeStore{}
	p := New(&Config{
		Compressor:   &fakeCompressor{},
		Store:        store,
		Videos:       videos,
		Analyzer:     &fakeAnalyzer{response: matchResponse},
		Logger:       testLogger(),
		MaxFileBytes: 10,
	})

	upload := writeUploadFile(t)
	_, err := p.Run(context.Background(), UploadContext{TeamID: "team-1"}, upload, matchMeta(), nil)
	if !errors.Is(err, models.ErrFileTooLarge) {
		t.Errorf("Run() error = %v, want %v", err, models.ErrFileTooLarge)
	}
}

func TestRun_CompressFailureIsStageTagged(t *testing.T) {
	videos := newFakeVideoStore()
	p := New(&Config{
		Compressor: &fakeCompressor{err: errors.New("codec exploded")},
		Store:      &fakeStore{},
		Videos:     videos,
		Analyzer:   &fakeAnalyzer{response: matchResponse},
		Logger:     testLogger(),
	})

	state := NewState()
	_, err := p.Run(context.Background(), UploadContext{TeamID: "team-1"}, writeUploadFile(t), matchMeta(), state)
	if !errors.Is(err, models.ErrCompressionFailed) {
		t.Fatalf("Run() error = %v, want %v", err, models.ErrCompressionFailed)
	}

	var stageErr *models.StageError
	if !errors.As(err, &stageErr) {
		t.Fatal("error is not stage-tagged")
	}
	if stageErr.Stage != models.StageCompress {
		t.Errorf("Stage = %s, want %s", stageErr.Stage, models.StageCompress)
	}
	if len(videos.created) != 0 {
		t.Error("record created despite aborted pipeline")
	}

	snap := state.Snapshot()
	if snap.Stage != models.StageIdle {
		t.Errorf("state stage = %s, want idle after abort", snap.Stage)
	}
}

func TestRun_UploadFailureIsStageTagged(t *testing.T) {
	videos := newFakeVideoStore()
	p := New(&Config{
		Compressor: &fakeCompressor{},
		Store:      &fakeStore{err: errors.New("bucket gone")},
		Videos:     videos,
		Analyzer:   &fakeAnalyzer{response: matchResponse},
		Logger:     testLogger(),
	})

	_, err := p.Run(context.Background(), UploadContext{TeamID: "team-1"}, writeUploadFile(t), matchMeta(), nil)
	if !errors.Is(err, models.ErrUploadFailed) {
		t.Fatalf("Run() error = %v, want %v", err, models.ErrUploadFailed)
	}

	var stageErr *models.StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != models.StageUpload {
		t.Errorf("error = %v, want upload stage tag", err)
	}
	if len(videos.created) != 0 {
		t.Error("record created despite failed upload stage")
	}
}

func TestRun_PersistFailureOrphansBinary(t *testing.T) {
	videos := newFakeVideoStore()
	videos.createErr = errors.New("table throttled")
	store := &fakeStore{}
	p := New(&Config{
		Compressor: &fakeCompressor{},
		Store:      store,
		Videos:     videos,
		Analyzer:   &fakeAnalyzer{response: matchResponse},
		Logger:     testLogger(),
	})

	_, err := p.Run(context.Background(), UploadContext{TeamID: "team-1"}, writeUploadFile(t), matchMeta(), nil)
	if !errors.Is(err, models.ErrPersistFailed) {
		t.Fatalf("Run() error = %v, want %v", err, models.ErrPersistFailed)
	}

	// The binary stays in the store for the sweeper; the pipeline does
	// not roll it back.
	if len(store.putKeys) != 1 {
		t.Errorf("stored objects = %d, want 1 orphan", len(store.putKeys))
	}
}

func TestRunAnalysis_RetryFromFailed(t *testing.T) {
	videos := newFakeVideoStore()
	p, _ := newTestPipeline(videos, &fakeAnalyzer{response: matchResponse})

	rec := &models.VideoRecord{
		VideoID: "vid-1",
		TeamID:  "team-1",
		Title:   "vs Rovers",
		Type:    models.TypeMatch,
		Status:  models.StatusFailed,
		URL:     "https://cdn.test/uploads/team-1/vid.mp4",
	}
	videos.statuses["vid-1"] = models.StatusFailed

	p.RunAnalysis(context.Background(), rec, "football", NewState())

	if rec.Status != models.StatusCompleted {
		t.Errorf("Status = %s, want %s after retry", rec.Status, models.StatusCompleted)
	}
	if videos.retryCount != 1 {
		t.Errorf("retryCount = %d, want 1 (retry path, not fresh mark)", videos.retryCount)
	}
	if rec.Analysis == nil || len(rec.Analysis.PlayerActions) != 3 {
		t.Errorf("Analysis = %+v, want 3 actions", rec.Analysis)
	}
}

func TestRunAnalysis_CompletedIsImmutable(t *testing.T) {
	videos := newFakeVideoStore()
	p, _ := newTestPipeline(videos, &fakeAnalyzer{response: matchResponse})

	rec := &models.VideoRecord{
		VideoID: "vid-1",
		Status:  models.StatusCompleted,
		Type:    models.TypeMatch,
	}
	videos.statuses["vid-1"] = models.StatusCompleted

	p.RunAnalysis(context.Background(), rec, "", NewState())

	// The status transition is refused, the analysis attempt fails,
	// and the conditional FailAnalysis refuses to downgrade completed.
	if videos.statuses["vid-1"] != models.StatusCompleted {
		t.Errorf("stored status = %s, completed must never be downgraded", videos.statuses["vid-1"])
	}
}

func TestRun_CanceledContext(t *testing.T) {
	videos := newFakeVideoStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := New(&Config{
		Compressor: &fakeCompressor{err: ctx.Err()},
		Store:      &fakeStore{},
		Videos:     videos,
		Analyzer:   &fakeAnalyzer{response: matchResponse},
		Logger:     testLogger(),
	})

	_, err := p.Run(ctx, UploadContext{TeamID: "team-1"}, writeUploadFile(t), matchMeta(), nil)
	if !errors.Is(err, models.ErrContextCanceled) {
		t.Errorf("Run() error = %v, want %v", err, models.ErrContextCanceled)
	}
	if len(videos.created) != 0 {
		t.Error("record created despite canceled context")
	}
}

func TestStorageKey(t *testing.T) {
	key1 := StorageKey("team-1", "match.mp4")
	key2 := StorageKey("team-1", "match.mp4")

	if key1 == key2 {
		t.Error("identical inputs must still produce distinct keys")
	}
	for _, key := range []string{key1, key2} {
		if !strings.HasPrefix(key, "uploads/team-1/") {
			t.Errorf("key %q does not carry the team prefix", key)
		}
		if filepath.Ext(key) != ".mp4" {
			t.Errorf("key %q lost the file extension", key)
		}
	}
}

func TestTracker(t *testing.T) {
	tr := NewTracker()

	id, state := tr.Begin()
	if tr.Get(id) != state {
		t.Error("Get() did not return the registered state")
	}

	adopted := tr.Track("custom-id")
	if tr.Get("custom-id") != adopted {
		t.Error("Track() did not register under the supplied id")
	}

	tr.Release(id)
	if tr.Get(id) != nil {
		t.Error("Get() returned a released state")
	}
	if tr.Get("unknown") != nil {
		t.Error("Get() returned a state for an unknown id")
	}
}

func TestState_ProgressClampsAndIgnoresStaleStage(t *testing.T) {
	s := NewState()
	s.transition(models.StageUpload)

	s.progress(models.StageUpload, 150)
	if snap := s.Snapshot(); snap.Progress != 100 {
		t.Errorf("Progress = %d, want clamped to 100", snap.Progress)
	}

	s.progress(models.StageCompress, 10)
	if snap := s.Snapshot(); snap.Progress != 100 {
		t.Errorf("Progress = %d, stale stage report must be ignored", snap.Progress)
	}

	s.transition(models.StageAnalyze)
	if snap := s.Snapshot(); snap.Progress != 0 {
		t.Errorf("Progress = %d, want reset to 0 on stage transition", snap.Progress)
	}
}
