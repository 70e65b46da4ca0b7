// Package pipeline drives an uploaded video through the ordered stages
// compress, upload, persist and analyze, tracking per-stage progress.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/pitchside/video-pipeline/internal/analysis"
	"github.com/pitchside/video-pipeline/internal/classifier"
	"github.com/pitchside/video-pipeline/internal/metrics"
	"github.com/pitchside/video-pipeline/pkg/models"
)

var tracer = otel.Tracer("pitchside-pipeline")

// DefaultMaxFileBytes is the upload size ceiling.
const DefaultMaxFileBytes = 2 << 30 // 2 GB

// Compressor is the external compression collaborator. It may return
// the input path unchanged and must not mutate the input file.
type Compressor interface {
	Compress(ctx context.Context, inputPath string, report func(percent int)) (string, error)
}

// ObjectStore writes a binary under a unique path and returns its
// public URL.
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
}

// VideoStore is the metadata-store surface the pipeline needs.
type VideoStore interface {
	CreateVideo(ctx context.Context, rec *models.VideoRecord) error
	MarkAnalyzing(ctx context.Context, videoID string) error
	RetryAnalyzing(ctx context.Context, videoID string) error
	CompleteAnalysis(ctx context.Context, videoID string, data *models.AnalysisData) error
	FailAnalysis(ctx context.Context, videoID string, failure *models.AnalysisFailure) error
}

// Analyzer is the external AI analysis collaborator. Latency is
// unbounded; implementations must honor ctx cancellation.
type Analyzer interface {
	Analyze(ctx context.Context, req *analysis.Request) (json.RawMessage, error)
}

// UploadContext identifies who is uploading on behalf of which team.
// It is passed in explicitly rather than derived from ambient state.
type UploadContext struct {
	TeamID     string
	UploaderID string
	TeamSport  string
}

// Upload describes the selected file, already spooled to local disk.
type Upload struct {
	Path        string
	Filename    string
	ContentType string
	Size        int64
}

// Config holds pipeline dependencies.
type Config struct {
	Compressor   Compressor
	Store        ObjectStore
	Videos       VideoStore
	Analyzer     Analyzer
	Logger       *slog.Logger
	MaxFileBytes int64
}

// Pipeline runs uploads through the four stages. One Pipeline is safe
// for concurrent use; each Run owns its own State.
type Pipeline struct {
	compressor   Compressor
	store        ObjectStore
	videos       VideoStore
	analyzer     Analyzer
	log          *slog.Logger
	maxFileBytes int64
	validate     *validator.Validate
}

// New creates a Pipeline with the given configuration.
func New(cfg *Config) *Pipeline {
	maxBytes := cfg.MaxFileBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxFileBytes
	}
	return &Pipeline{
		compressor:   cfg.Compressor,
		store:        cfg.Store,
		videos:       cfg.Videos,
		analyzer:     cfg.Analyzer,
		log:          cfg.Logger,
		maxFileBytes: maxBytes,
		validate:     validator.New(),
	}
}

// Run drives the upload through all four stages and resolves with the
// persisted VideoRecord. Stages are strictly sequential; a stage failure
// aborts with a stage-tagged error, except the analyze stage, whose
// failure is a partial success: the record survives with status failed
// and a diagnostic payload.
func (p *Pipeline) Run(ctx context.Context, uctx UploadContext, upload *Upload, meta *models.UploadMetadata, state *State) (*models.VideoRecord, error) {
	ctx, span := tracer.Start(ctx, "pipeline-run")
	defer span.End()

	if state == nil {
		state = NewState()
	}

	// Preconditions. No stage is entered on failure.
	if err := p.checkPreconditions(uctx, upload, meta); err != nil {
		return nil, err
	}

	metrics.UploadsInitiated.Inc()
	metrics.ActivePipelines.Inc()
	defer metrics.ActivePipelines.Dec()

	span.SetAttributes(
		attribute.String("video.team_id", uctx.TeamID),
		attribute.String("video.type", string(meta.Type)),
		attribute.Int64("video.size_bytes", upload.Size),
	)

	// Stage 1: compress. No durable state yet; failure returns the
	// pipeline to idle.
	compressedPath, err := p.runCompress(ctx, upload, state)
	if err != nil {
		state.fail(models.StageIdle, err)
		return nil, err
	}

	// Stage 2: upload the (possibly compressed) binary.
	publicURL, storageKey, err := p.runUpload(ctx, uctx, upload, compressedPath, state)
	if err != nil {
		state.fail(models.StageIdle, err)
		return nil, err
	}

	// Stage 3: persist metadata. On failure the uploaded binary is
	// orphaned until the reconciliation sweep collects it.
	rec, err := p.runPersist(ctx, uctx, upload, meta, publicURL, storageKey, compressedPath, state)
	if err != nil {
		state.fail(models.StageIdle, err)
		return nil, err
	}

	// Stage 4: analyze. Failure here is terminal for the analysis,
	// not for the upload.
	p.RunAnalysis(ctx, rec, uctx.TeamSport, state)

	state.finish()
	metrics.UploadsCompleted.Inc()

	p.log.InfoContext(ctx, "Upload pipeline finished",
		"videoId", rec.VideoID,
		"status", rec.Status,
		"title", rec.Title,
	)

	return rec, nil
}

func (p *Pipeline) checkPreconditions(uctx UploadContext, upload *Upload, meta *models.UploadMetadata) error {
	if uctx.TeamID == "" {
		return models.ErrMissingTeamID
	}
	if upload == nil || upload.Path == "" {
		return models.ErrMissingFile
	}
	if !strings.HasPrefix(upload.ContentType, "video/") {
		return fmt.Errorf("%w: got %q", models.ErrNotVideo, upload.ContentType)
	}
	if upload.Size > p.maxFileBytes {
		return fmt.Errorf("%w: %d bytes (limit %d)", models.ErrFileTooLarge, upload.Size, p.maxFileBytes)
	}

	if err := p.validate.Struct(meta); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return &models.ValidationError{
				Field:  verrs[0].Field(),
				Reason: "failed " + verrs[0].Tag(),
			}
		}
		return fmt.Errorf("%w: %v", models.ErrValidation, err)
	}

	return nil
}

func (p *Pipeline) runCompress(ctx context.Context, upload *Upload, state *State) (string, error) {
	ctx, span := tracer.Start(ctx, "stage-compress")
	defer span.End()

	state.transition(models.StageCompress)
	start := time.Now()

	out, err := p.compressor.Compress(ctx, upload.Path, func(percent int) {
		state.progress(models.StageCompress, percent)
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", models.NewStageError(models.StageCompress, fmt.Errorf("%w: %v", models.ErrContextCanceled, err))
		}
		return "", models.NewStageError(models.StageCompress, fmt.Errorf("%w: %v", models.ErrCompressionFailed, err))
	}

	metrics.StageDuration.WithLabelValues(string(models.StageCompress)).Observe(time.Since(start).Seconds())
	state.progress(models.StageCompress, 100)
	return out, nil
}

func (p *Pipeline) runUpload(ctx context.Context, uctx UploadContext, upload *Upload, path string, state *State) (publicURL, storageKey string, err error) {
	ctx, span := tracer.Start(ctx, "stage-upload")
	defer span.End()

	state.transition(models.StageUpload)
	start := time.Now()

	file, err := os.Open(path)
	if err != nil {
		return "", "", models.NewStageError(models.StageUpload, fmt.Errorf("%w: %v", models.ErrUploadFailed, err))
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", "", models.NewStageError(models.StageUpload, fmt.Errorf("%w: %v", models.ErrUploadFailed, err))
	}

	storageKey = StorageKey(uctx.TeamID, upload.Filename)

	body := &progressReader{
		r:     file,
		total: info.Size(),
		report: func(percent int) {
			state.progress(models.StageUpload, percent)
		},
	}

	publicURL, err = p.store.Put(ctx, storageKey, body, info.Size(), upload.ContentType)
	if err != nil {
		if ctx.Err() != nil {
			return "", "", models.NewStageError(models.StageUpload, fmt.Errorf("%w: %v", models.ErrContextCanceled, err))
		}
		return "", "", models.NewStageError(models.StageUpload, fmt.Errorf("%w: %v", models.ErrUploadFailed, err))
	}

	metrics.StageDuration.WithLabelValues(string(models.StageUpload)).Observe(time.Since(start).Seconds())
	state.progress(models.StageUpload, 100)
	span.SetAttributes(attribute.String("storage.key", storageKey))
	return publicURL, storageKey, nil
}

func (p *Pipeline) runPersist(ctx context.Context, uctx UploadContext, upload *Upload, meta *models.UploadMetadata, publicURL, storageKey, compressedPath string, state *State) (*models.VideoRecord, error) {
	ctx, span := tracer.Start(ctx, "stage-persist")
	defer span.End()

	state.transition(models.StagePersist)
	start := time.Now()

	now := time.Now().UTC().Format(time.RFC3339)
	rec := &models.VideoRecord{
		VideoID:         uuid.New().String(),
		TeamID:          uctx.TeamID,
		UploaderID:      uctx.UploaderID,
		Title:           meta.Title,
		Description:     meta.Description,
		Type:            meta.Type,
		Status:          models.StatusPending,
		StorageKey:      storageKey,
		URL:             publicURL,
		DurationSeconds: meta.Duration,
		FileSizeBytes:   upload.Size,
		TaggedPlayers:   meta.TaggedPlayers,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if compressedPath != upload.Path {
		rec.CompressedURL = publicURL
	}
	if meta.Type == models.TypeMatch {
		rec.Match = &models.MatchInfo{
			Opponent:    meta.Opponent,
			Venue:       meta.Venue,
			MatchDate:   meta.MatchDate,
			Competition: meta.Competition,
		}
	}

	if err := p.videos.CreateVideo(ctx, rec); err != nil {
		// The binary at storageKey is now orphaned; the sweeper
		// reconciles it later.
		return nil, models.NewStageError(models.StagePersist, fmt.Errorf("%w: %v", models.ErrPersistFailed, err))
	}

	metrics.StageDuration.WithLabelValues(string(models.StagePersist)).Observe(time.Since(start).Seconds())
	state.progress(models.StagePersist, 100)
	span.SetAttributes(attribute.String("video.id", rec.VideoID))
	return rec, nil
}

// RunAnalysis runs the analyze stage for rec: it transitions the status
// to analyzing (from pending, or from failed for an explicit retry),
// invokes the analyzer, normalizes the response and attaches the result.
// On failure the record is marked failed with a diagnostic payload; it
// is never rolled back or deleted. The updated status and analysis are
// reflected on rec.
//
// teamSport is the owning team's declared sport, if known; an empty
// value degrades to content-based sport detection.
func (p *Pipeline) RunAnalysis(ctx context.Context, rec *models.VideoRecord, teamSport string, state *State) {
	ctx, span := tracer.Start(ctx, "stage-analyze")
	defer span.End()

	state.transition(models.StageAnalyze)
	start := time.Now()

	transition := p.videos.MarkAnalyzing
	if rec.Status == models.StatusFailed {
		transition = p.videos.RetryAnalyzing
	}
	if err := transition(ctx, rec.VideoID); err != nil {
		p.failAnalysis(ctx, rec, fmt.Errorf("%w: %v", models.ErrAnalysisFailed, err))
		return
	}
	rec.Status = models.StatusAnalyzing

	// A missing or unrecognized team sport degrades to content-based
	// detection and ultimately the default; it never fails the run.
	sport := classifier.Classify(classifier.Input{
		TeamSport:   teamSport,
		Title:       rec.Title,
		Description: rec.Description,
		Tags:        playerNames(rec.TaggedPlayers),
	})

	req := &analysis.Request{
		VideoURL:      rec.URL,
		VideoType:     rec.Type,
		Sport:         sport,
		Duration:      rec.DurationSeconds,
		TaggedPlayers: rec.TaggedPlayers,
		Match:         rec.Match,
	}

	raw, err := p.analyzer.Analyze(ctx, req)
	if err != nil {
		p.failAnalysis(ctx, rec, fmt.Errorf("%w: %v", models.ErrAnalysisFailed, err))
		return
	}
	state.progress(models.StageAnalyze, 80)

	data, err := analysis.Normalize(rec.Type, raw)
	if err != nil {
		p.failAnalysis(ctx, rec, fmt.Errorf("%w: %v", models.ErrAnalysisFailed, err))
		return
	}

	if err := p.videos.CompleteAnalysis(ctx, rec.VideoID, data); err != nil {
		p.failAnalysis(ctx, rec, fmt.Errorf("%w: %v", models.ErrAnalysisFailed, err))
		return
	}

	rec.Status = models.StatusCompleted
	rec.Analysis = data
	rec.AnalyzedAt = time.Now().UTC().Format(time.RFC3339)
	state.progress(models.StageAnalyze, 100)
	metrics.StageDuration.WithLabelValues(string(models.StageAnalyze)).Observe(time.Since(start).Seconds())
	metrics.RecordAnalysis("completed")
}

func (p *Pipeline) failAnalysis(ctx context.Context, rec *models.VideoRecord, cause error) {
	failure := &models.AnalysisFailure{
		Message:  cause.Error(),
		FailedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := p.videos.FailAnalysis(ctx, rec.VideoID, failure); err != nil {
		p.log.ErrorContext(ctx, "Failed to mark analysis as failed",
			"videoId", rec.VideoID,
			"error", err,
		)
	}
	rec.Status = models.StatusFailed
	rec.AnalysisError = failure
	metrics.RecordAnalysis("failed")
	p.log.WarnContext(ctx, "Analysis failed", "videoId", rec.VideoID, "error", cause)
}

func playerNames(players []models.TaggedPlayer) []string {
	names := make([]string, 0, len(players))
	for _, p := range players {
		names = append(names, p.Name)
	}
	return names
}

// StorageKey builds a collision-avoiding object key from the owning
// team, the upload time and a randomized suffix. It is deliberately not
// content-addressed.
func StorageKey(teamID, filename string) string {
	suffix := uuid.New().String()
	ext := filepath.Ext(filename)
	return fmt.Sprintf("uploads/%s/%s-%s%s",
		teamID,
		time.Now().UTC().Format("20060102T150405"),
		suffix,
		ext,
	)
}

// progressReader reports read progress as a 0-100 percentage of total.
type progressReader struct {
	r      io.Reader
	total  int64
	read   int64
	last   int
	report func(percent int)
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.r.Read(p)
	pr.read += int64(n)
	if pr.total > 0 && pr.report != nil {
		percent := int(pr.read * 100 / pr.total)
		if percent > 100 {
			percent = 100
		}
		if percent != pr.last {
			pr.last = percent
			pr.report(percent)
		}
	}
	return n, err
}
