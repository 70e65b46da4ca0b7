// Package worker polls the re-analysis queue and reruns the analyze
// stage for failed videos.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/pitchside/video-pipeline/internal/config"
	"github.com/pitchside/video-pipeline/internal/pipeline"
	"github.com/pitchside/video-pipeline/internal/storage"
	"github.com/pitchside/video-pipeline/pkg/models"
)

// SQS configuration constants
const (
	SQSMaxMessages       = 1
	SQSWaitTimeSeconds   = 20
	SQSVisibilityTimeout = 900 // 15 minutes
	RetryBackoffPeriod   = 5 * time.Second
)

var tracer = otel.Tracer("pitchside-worker")

var errBadJob = errors.New("unparseable re-analysis job")

// ReanalysisJob is the queue message queued by the API when a failed
// analysis is retried.
type ReanalysisJob struct {
	VideoID   string `json:"videoId"`
	TeamSport string `json:"teamSport,omitempty"`
}

// Validate checks the job's required fields.
func (j *ReanalysisJob) Validate() error {
	if j.VideoID == "" {
		return models.ErrMissingVideoID
	}
	return nil
}

// Worker handles re-analysis jobs from SQS.
type Worker struct {
	sqsClient *sqs.Client
	videoRepo *storage.VideoRepository
	pipeline  *pipeline.Pipeline
	cfg       *config.Config
	log       *slog.Logger
}

// Config holds worker dependencies.
type Config struct {
	SQSClient *sqs.Client
	VideoRepo *storage.VideoRepository
	Pipeline  *pipeline.Pipeline
	AppConfig *config.Config
	Logger    *slog.Logger
}

// New creates a new Worker with the given configuration.
func New(cfg *Config) *Worker {
	return &Worker{
		sqsClient: cfg.SQSClient,
		videoRepo: cfg.VideoRepo,
		pipeline:  cfg.Pipeline,
		cfg:       cfg.AppConfig,
		log:       cfg.Logger,
	}
}

// Run starts the worker and blocks until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	w.log.InfoContext(ctx, "Starting queue polling",
		"queueURL", w.cfg.AWS.SQSQueueURL,
		"maxConcurrent", w.cfg.Worker.MaxConcurrentJobs,
	)

	sem := make(chan struct{}, w.cfg.Worker.MaxConcurrentJobs)
	var wg sync.WaitGroup

messageLoop:
	for {
		select {
		case <-ctx.Done():
			w.log.InfoContext(ctx, "Waiting for in-progress jobs to complete...")
			wg.Wait()
			w.log.InfoContext(ctx, "All jobs completed, shutting down")
			return
		default:
		}

		result, err := w.sqsClient.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(w.cfg.AWS.SQSQueueURL),
			MaxNumberOfMessages: SQSMaxMessages,
			WaitTimeSeconds:     SQSWaitTimeSeconds,
			VisibilityTimeout:   SQSVisibilityTimeout,
		})
		if err != nil {
			if ctx.Err() != nil {
				continue // Shutting down
			}
			w.log.ErrorContext(ctx, "Failed to receive messages", "error", err)
			time.Sleep(RetryBackoffPeriod)
			continue
		}

		for _, msg := range result.Messages {
			select {
			case sem <- struct{}{}:
				wg.Add(1)
				go func(msg types.Message) {
					defer wg.Done()
					defer func() { <-sem }()

					if err := w.processMessage(ctx, msg); err != nil {
						w.log.ErrorContext(ctx, "Failed to process message",
							"error", err,
							"messageId", safeStringDeref(msg.MessageId),
						)
						// A malformed job never becomes processable;
						// drop it rather than let it cycle forever.
						if errors.Is(err, errBadJob) {
							w.deleteMessage(ctx, msg)
						}
						return
					}
					w.deleteMessage(ctx, msg)
				}(msg)
			case <-ctx.Done():
				w.log.InfoContext(ctx, "Context cancelled, stopping message processing")
				break messageLoop
			}
		}
	}
}

func (w *Worker) deleteMessage(ctx context.Context, msg types.Message) {
	_, err := w.sqsClient.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(w.cfg.AWS.SQSQueueURL),
		ReceiptHandle: msg.ReceiptHandle,
	})
	if err != nil {
		w.log.ErrorContext(ctx, "Failed to delete message", "error", err)
	}
}

func safeStringDeref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (w *Worker) processMessage(ctx context.Context, msg types.Message) error {
	ctx, span := tracer.Start(ctx, "process-reanalysis")
	defer span.End()

	if msg.Body == nil {
		return fmt.Errorf("%w: empty message body", errBadJob)
	}

	var job ReanalysisJob
	if err := json.Unmarshal([]byte(*msg.Body), &job); err != nil {
		return fmt.Errorf("%w: %v", errBadJob, err)
	}
	if err := job.Validate(); err != nil {
		return fmt.Errorf("%w: %v", errBadJob, err)
	}

	span.SetAttributes(attribute.String("video.id", job.VideoID))

	return w.reanalyze(ctx, &job)
}

func (w *Worker) reanalyze(ctx context.Context, job *ReanalysisJob) error {
	w.log.InfoContext(ctx, "Re-analyzing video", "videoId", job.VideoID)

	rec, err := w.videoRepo.GetVideo(ctx, job.VideoID)
	if err != nil {
		if errors.Is(err, models.ErrVideoNotFound) {
			// Deleted since it was queued; nothing to do.
			return fmt.Errorf("%w: video %s no longer exists", errBadJob, job.VideoID)
		}
		return fmt.Errorf("failed to load video %s: %w", job.VideoID, err)
	}

	if rec.Status != models.StatusFailed {
		w.log.InfoContext(ctx, "Skipping re-analysis, video is not failed",
			"videoId", job.VideoID,
			"status", rec.Status,
		)
		return nil
	}

	state := pipeline.NewState()
	w.pipeline.RunAnalysis(ctx, rec, job.TeamSport, state)

	w.log.InfoContext(ctx, "Re-analysis finished",
		"videoId", rec.VideoID,
		"status", rec.Status,
	)
	return nil
}
