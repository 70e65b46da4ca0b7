package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/pitchside/video-pipeline/internal/analysis"
	"github.com/pitchside/video-pipeline/internal/auth"
	"github.com/pitchside/video-pipeline/internal/config"
	"github.com/pitchside/video-pipeline/internal/pipeline"
	"github.com/pitchside/video-pipeline/internal/storage"
	"github.com/pitchside/video-pipeline/pkg/models"
)

var tracer = otel.Tracer("pitchside-api")

// Configuration constants
const (
	MaxFilenameLength   = 255
	MaxMetadataBodySize = 1 << 20  // 1 MB
	multipartMemory     = 32 << 20 // 32 MB before spooling
	sniffLen            = 512
	DefaultListLimit    = 50
)

// Allowed video extensions
var AllowedExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".avi":  true,
	".mkv":  true,
	".webm": true,
}

// Handlers contains all HTTP handlers for the API.
type Handlers struct {
	cfg        *config.Config
	log        *slog.Logger
	pipeline   *pipeline.Pipeline
	tracker    *pipeline.Tracker
	videoRepo  *storage.VideoRepository
	resolver   *storage.DuplicateResolver
	sqsClient  *sqs.Client
	jwtService *auth.JWTService
}

// HandlersConfig holds dependencies for handlers.
type HandlersConfig struct {
	Config     *config.Config
	Logger     *slog.Logger
	Pipeline   *pipeline.Pipeline
	Tracker    *pipeline.Tracker
	VideoRepo  *storage.VideoRepository
	Resolver   *storage.DuplicateResolver
	SQSClient  *sqs.Client
	JWTService *auth.JWTService
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(cfg *HandlersConfig) *Handlers {
	return &Handlers{
		cfg:        cfg.Config,
		log:        cfg.Logger,
		pipeline:   cfg.Pipeline,
		tracker:    cfg.Tracker,
		videoRepo:  cfg.VideoRepo,
		resolver:   cfg.Resolver,
		sqsClient:  cfg.SQSClient,
		jwtService: cfg.JWTService,
	}
}

// writeJSON writes a JSON response.
func (h *Handlers) writeJSON(ctx context.Context, w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.ErrorContext(ctx, "Failed to encode JSON response", "error", err)
	}
}

// writeError writes an error response.
func (h *Handlers) writeError(ctx context.Context, w http.ResponseWriter, status int, message string) {
	h.writeJSON(ctx, w, status, map[string]string{"error": message})
}

// LoginHandler handles user authentication and returns a JWT token.
func (h *Handlers) LoginHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	clientIP := auth.GetClientIP(r)

	username, password, ok := r.BasicAuth()
	if !ok {
		h.writeError(ctx, w, http.StatusUnauthorized, "Missing credentials")
		return
	}

	expectedUsername, expectedPassword, err := h.cfg.GetAPICredentials()
	if err != nil {
		h.log.ErrorContext(ctx, "Failed to get API credentials", "error", err)
		h.writeError(ctx, w, http.StatusInternalServerError, "Server configuration error")
		return
	}

	if username != expectedUsername || password != expectedPassword {
		h.log.WarnContext(ctx, "Failed login attempt", "username", username, "ip", clientIP)
		h.writeError(ctx, w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := h.jwtService.GenerateToken(username)
	if err != nil {
		h.log.ErrorContext(ctx, "Failed to generate token", "error", err)
		h.writeError(ctx, w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	h.log.InfoContext(ctx, "Successful login", "username", username, "ip", clientIP)
	h.writeJSON(ctx, w, http.StatusOK, map[string]string{"token": token})
}

// UploadVideoResponse is the response payload for a finished upload.
type UploadVideoResponse struct {
	UploadID string              `json:"uploadId"`
	Video    *models.VideoRecord `json:"video"`
}

// UploadVideoHandler receives a multipart upload and drives it through
// the full pipeline. The request blocks until the run resolves; clients
// wanting live progress supply their own uploadId form field and poll
// the progress endpoint concurrently.
func (h *Handlers) UploadVideoHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	requestID := uuid.New().String()
	ctx, span := tracer.Start(ctx, "upload-video-handler",
		trace.WithAttributes(
			attribute.String("handler", "upload-video"),
			attribute.String("request.id", requestID),
		))
	defer span.End()

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.Pipeline.MaxFileBytes+MaxMetadataBodySize)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		span.RecordError(err)
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.writeError(ctx, w, http.StatusRequestEntityTooLarge, "Upload too large")
			return
		}
		h.writeError(ctx, w, http.StatusBadRequest, "Invalid multipart request")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("video")
	if err != nil {
		h.writeError(ctx, w, http.StatusBadRequest, models.ErrMissingFile.Error())
		return
	}
	defer file.Close()

	if err := validateFilename(header.Filename); err != nil {
		span.RecordError(err)
		h.writeError(ctx, w, http.StatusBadRequest, err.Error())
		return
	}

	var meta models.UploadMetadata
	if err := json.Unmarshal([]byte(r.FormValue("metadata")), &meta); err != nil {
		h.writeError(ctx, w, http.StatusBadRequest, "Invalid metadata payload")
		return
	}

	uctx := pipeline.UploadContext{
		TeamID:    r.FormValue("teamId"),
		TeamSport: r.FormValue("teamSport"),
	}
	if claims, ok := auth.GetClaimsFromContext(ctx); ok {
		uctx.UploaderID = claims.Username
	}

	uploadID := r.FormValue("uploadId")
	if uploadID == "" {
		uploadID = uuid.New().String()
	}
	state := h.tracker.Track(uploadID)
	defer h.tracker.Release(uploadID)

	span.SetAttributes(
		attribute.String("upload.id", uploadID),
		attribute.String("video.team_id", uctx.TeamID),
		attribute.String("video.filename", header.Filename),
	)

	// Spool to local disk so the compressor can run against a file
	// and so we can sniff the real content type.
	spooled, contentType, size, err := h.spoolUpload(file, header.Filename)
	if err != nil {
		span.RecordError(err)
		h.log.ErrorContext(ctx, "Failed to spool upload", "error", err, "requestId", requestID)
		h.writeError(ctx, w, http.StatusInternalServerError, "Failed to receive file")
		return
	}
	defer os.Remove(spooled)

	upload := &pipeline.Upload{
		Path:        spooled,
		Filename:    header.Filename,
		ContentType: contentType,
		Size:        size,
	}

	rec, err := h.pipeline.Run(ctx, uctx, upload, &meta, state)
	if err != nil {
		span.RecordError(err)
		h.log.WarnContext(ctx, "Upload pipeline failed",
			"error", err,
			"uploadId", uploadID,
			"requestId", requestID,
		)
		h.writeError(ctx, w, uploadErrorStatus(err), err.Error())
		return
	}

	h.writeJSON(ctx, w, http.StatusCreated, UploadVideoResponse{
		UploadID: uploadID,
		Video:    rec,
	})
}

// spoolUpload copies the multipart part to a scratch file and sniffs
// its content type from the leading bytes.
func (h *Handlers) spoolUpload(file io.Reader, filename string) (path, contentType string, size int64, err error) {
	if err := os.MkdirAll(h.cfg.Pipeline.ScratchDir, 0o755); err != nil {
		return "", "", 0, fmt.Errorf("failed to create scratch dir: %w", err)
	}

	tmp, err := os.CreateTemp(h.cfg.Pipeline.ScratchDir, "upload-*"+filepath.Ext(filename))
	if err != nil {
		return "", "", 0, fmt.Errorf("failed to create scratch file: %w", err)
	}
	defer tmp.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(file, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		os.Remove(tmp.Name())
		return "", "", 0, fmt.Errorf("failed to read upload: %w", err)
	}
	head = head[:n]

	size, err = io.Copy(tmp, io.MultiReader(bytes.NewReader(head), file))
	if err != nil {
		os.Remove(tmp.Name())
		return "", "", 0, fmt.Errorf("failed to spool upload: %w", err)
	}

	contentType = http.DetectContentType(head)
	// DetectContentType does not know every video container; fall back
	// to the extension for common ones it reports as octet-stream.
	if contentType == "application/octet-stream" {
		if byExt := contentTypeForExtension(filepath.Ext(filename)); byExt != "" {
			contentType = byExt
		}
	}

	return tmp.Name(), contentType, size, nil
}

func contentTypeForExtension(ext string) string {
	switch strings.ToLower(ext) {
	case ".mp4":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	case ".avi":
		return "video/x-msvideo"
	case ".mkv":
		return "video/x-matroska"
	case ".webm":
		return "video/webm"
	}
	return ""
}

// uploadErrorStatus maps pipeline errors to HTTP status codes.
func uploadErrorStatus(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation),
		errors.Is(err, models.ErrMissingFile),
		errors.Is(err, models.ErrNotVideo),
		errors.Is(err, models.ErrMissingTeamID):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, models.ErrContextCanceled):
		return 499 // client closed request
	default:
		return http.StatusInternalServerError
	}
}

// UploadProgressHandler reports the per-stage progress of an in-flight
// upload.
func (h *Handlers) UploadProgressHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	state := h.tracker.Get(r.PathValue("id"))
	if state == nil {
		h.writeError(ctx, w, http.StatusNotFound, "Unknown upload")
		return
	}

	h.writeJSON(ctx, w, http.StatusOK, state.Snapshot())
}

// ListVideosHandler returns a team's videos, newest first.
func (h *Handlers) ListVideosHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	teamID := r.URL.Query().Get("teamId")
	if teamID == "" {
		h.writeError(ctx, w, http.StatusBadRequest, "teamId is required")
		return
	}

	videos, err := h.videoRepo.ListTeamVideos(ctx, teamID, DefaultListLimit)
	if err != nil {
		h.log.ErrorContext(ctx, "Failed to list team videos", "error", err, "teamId", teamID)
		h.writeError(ctx, w, http.StatusInternalServerError, "Failed to list videos")
		return
	}

	h.writeJSON(ctx, w, http.StatusOK, map[string]any{"videos": videos})
}

// GetVideoHandler returns a single video record.
func (h *Handlers) GetVideoHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rec, ok := h.fetchVideo(ctx, w, r.PathValue("id"))
	if !ok {
		return
	}

	h.writeJSON(ctx, w, http.StatusOK, rec)
}

// GetAnalysisHandler returns the canonical analysis for a video.
func (h *Handlers) GetAnalysisHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rec, ok := h.fetchVideo(ctx, w, r.PathValue("id"))
	if !ok {
		return
	}
	if rec.Analysis == nil {
		h.writeAnalysisUnavailable(ctx, w, rec)
		return
	}

	h.writeJSON(ctx, w, http.StatusOK, rec.Analysis)
}

// GetActionsHandler returns a video's player actions, aggregated and
// filtered by the query parameters.
func (h *Handlers) GetActionsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rec, ok := h.fetchVideo(ctx, w, r.PathValue("id"))
	if !ok {
		return
	}
	if rec.Analysis == nil {
		h.writeAnalysisUnavailable(ctx, w, rec)
		return
	}

	actions := analysis.AggregateActions(rec.Analysis)
	actions = analysis.FilterActions(actions, filterSpecFromQuery(r))

	h.writeJSON(ctx, w, http.StatusOK, map[string]any{"actions": actions})
}

// GetMomentsHandler returns a video's key moments, aggregated and
// filtered by the query parameters.
func (h *Handlers) GetMomentsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rec, ok := h.fetchVideo(ctx, w, r.PathValue("id"))
	if !ok {
		return
	}
	if rec.Analysis == nil {
		h.writeAnalysisUnavailable(ctx, w, rec)
		return
	}

	moments := analysis.AggregateMoments(rec.Analysis)
	moments = analysis.FilterMoments(moments, filterSpecFromQuery(r))

	h.writeJSON(ctx, w, http.StatusOK, map[string]any{"moments": moments})
}

func filterSpecFromQuery(r *http.Request) analysis.FilterSpec {
	q := r.URL.Query()
	return analysis.FilterSpec{
		Type:   q.Get("type"),
		Query:  q.Get("q"),
		Player: q.Get("player"),
		Status: q.Get("status"),
	}
}

// ReanalyzeRequest is the optional body for re-analysis requests.
type ReanalyzeRequest struct {
	TeamSport string `json:"teamSport,omitempty"`
}

// ReanalyzeHandler queues a failed video for another analysis attempt.
// Only failed records may be retried; the worker performs the actual
// failed -> analyzing transition.
func (h *Handlers) ReanalyzeHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	videoID := r.PathValue("id")

	ctx, span := tracer.Start(ctx, "reanalyze-handler",
		trace.WithAttributes(attribute.String("video.id", videoID)))
	defer span.End()

	rec, ok := h.fetchVideo(ctx, w, videoID)
	if !ok {
		return
	}
	if rec.Status != models.StatusFailed {
		h.writeError(ctx, w, http.StatusConflict,
			fmt.Sprintf("video status is %s; only failed analyses can be retried", rec.Status))
		return
	}

	var req ReanalyzeRequest
	if r.Body != nil {
		r.Body = http.MaxBytesReader(w, r.Body, MaxMetadataBodySize)
		// An empty or absent body is fine.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	message, err := json.Marshal(map[string]string{
		"videoId":   videoID,
		"teamSport": req.TeamSport,
	})
	if err != nil {
		h.writeError(ctx, w, http.StatusInternalServerError, "Internal server error")
		return
	}

	_, err = h.sqsClient.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(h.cfg.AWS.SQSQueueURL),
		MessageBody: aws.String(string(message)),
	})
	if err != nil {
		span.RecordError(err)
		h.log.ErrorContext(ctx, "Failed to queue re-analysis", "error", err, "videoId", videoID)
		h.writeError(ctx, w, http.StatusInternalServerError, "Failed to queue re-analysis")
		return
	}

	h.log.InfoContext(ctx, "Re-analysis queued", "videoId", videoID)
	h.writeJSON(ctx, w, http.StatusAccepted, map[string]string{
		"videoId": videoID,
		"status":  "queued",
	})
}

// ResolveDuplicatesRequest identifies the duplicated logical upload.
type ResolveDuplicatesRequest struct {
	TeamID string `json:"teamId"`
	Title  string `json:"title"`
}

// ResolveDuplicatesHandler collapses duplicate records for one
// (team, title) pair, keeping the newest.
func (h *Handlers) ResolveDuplicatesHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, MaxMetadataBodySize)
	var req ResolveDuplicatesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.TeamID == "" || req.Title == "" {
		h.writeError(ctx, w, http.StatusBadRequest, "teamId and title are required")
		return
	}

	kept, err := h.resolver.Resolve(ctx, req.Title, req.TeamID)
	if err != nil {
		if errors.Is(err, models.ErrVideoNotFound) {
			h.writeError(ctx, w, http.StatusNotFound, "No videos with that title")
			return
		}
		h.log.ErrorContext(ctx, "Failed to resolve duplicates",
			"error", err,
			"teamId", req.TeamID,
			"title", req.Title,
		)
		h.writeError(ctx, w, http.StatusInternalServerError, "Failed to resolve duplicates")
		return
	}

	h.writeJSON(ctx, w, http.StatusOK, map[string]any{"kept": kept})
}

// fetchVideo loads a record by id, writing the error response itself on
// failure.
func (h *Handlers) fetchVideo(ctx context.Context, w http.ResponseWriter, videoID string) (*models.VideoRecord, bool) {
	if videoID == "" {
		h.writeError(ctx, w, http.StatusBadRequest, models.ErrMissingVideoID.Error())
		return nil, false
	}

	rec, err := h.videoRepo.GetVideo(ctx, videoID)
	if err != nil {
		if errors.Is(err, models.ErrVideoNotFound) {
			h.writeError(ctx, w, http.StatusNotFound, "Video not found")
			return nil, false
		}
		h.log.ErrorContext(ctx, "Failed to get video", "error", err, "videoId", videoID)
		h.writeError(ctx, w, http.StatusInternalServerError, "Failed to retrieve video")
		return nil, false
	}

	return rec, true
}

func (h *Handlers) writeAnalysisUnavailable(ctx context.Context, w http.ResponseWriter, rec *models.VideoRecord) {
	resp := map[string]any{
		"error":  "Analysis not available",
		"status": rec.Status,
	}
	if rec.AnalysisError != nil {
		resp["analysisError"] = rec.AnalysisError
	}
	h.writeJSON(ctx, w, http.StatusConflict, resp)
}

// Validation functions

func validateFilename(filename string) error {
	if filename == "" {
		return errors.New("filename is required")
	}
	if len(filename) > MaxFilenameLength {
		return errors.New("filename too long")
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if !AllowedExtensions[ext] {
		return fmt.Errorf("%w: allowed extensions are mp4, mov, avi, mkv, webm", models.ErrNotVideo)
	}

	return nil
}
