package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"

	"github.com/pitchside/video-pipeline/internal/analysis"
	"github.com/pitchside/video-pipeline/internal/compress"
	"github.com/pitchside/video-pipeline/internal/config"
	"github.com/pitchside/video-pipeline/internal/logger"
	"github.com/pitchside/video-pipeline/internal/observability"
	"github.com/pitchside/video-pipeline/internal/pipeline"
	"github.com/pitchside/video-pipeline/internal/storage"
	"github.com/pitchside/video-pipeline/internal/worker"
)

const (
	AWSConfigTimeout      = 10 * time.Second
	TracerShutdownTimeout = 5 * time.Second
)

func main() {
	log := logger.New()
	slog.SetDefault(log)

	if err := godotenv.Load(); err != nil {
		log.Info("No .env file found, using system environment variables")
	}

	cfg, err := config.LoadWorker()
	if err != nil {
		log.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	shutdownTracer, err := observability.InitTracer(context.Background(),
		"pitchside-worker", cfg.Observability.OTLPEndpoint, cfg.Environment)
	if err != nil {
		log.Error("Failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), TracerShutdownTimeout)
		defer cancel()
		if err := shutdownTracer(ctx); err != nil {
			log.Error("Failed to shutdown tracer", "error", err)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), AWSConfigTimeout)
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	cancel()
	if err != nil {
		log.Error("Failed to load AWS config", "error", err)
		os.Exit(1)
	}
	otelaws.AppendMiddlewares(&awsCfg.APIOptions)

	sqsClient := sqs.NewFromConfig(awsCfg)
	dynamoClient := dynamodb.NewFromConfig(awsCfg)
	videoRepo := storage.NewVideoRepositoryFromClient(dynamoClient, cfg.AWS.DynamoDBTable)

	// The worker only reruns the analyze stage, so the compress and
	// upload collaborators are never invoked; passthrough keeps the
	// pipeline construction honest.
	analyzer := analysis.NewClient(cfg.Analysis.BaseURL, cfg.Analysis.APIKey, log)
	pipe := pipeline.New(&pipeline.Config{
		Compressor: compress.Passthrough{},
		Videos:     videoRepo,
		Analyzer:   analyzer,
		Logger:     log,
	})

	// Expose metrics
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		addr := fmt.Sprintf(":%d", cfg.API.MetricsPort)
		log.Info("Serving metrics", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Error("Metrics server error", "error", err)
		}
	}()

	w := worker.New(&worker.Config{
		SQSClient: sqsClient,
		VideoRepo: videoRepo,
		Pipeline:  pipe,
		AppConfig: cfg,
		Logger:    log,
	})

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w.Run(runCtx)

	log.Info("Worker shutdown complete")
}
