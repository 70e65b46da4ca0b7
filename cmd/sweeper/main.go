package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"

	"github.com/pitchside/video-pipeline/internal/config"
	"github.com/pitchside/video-pipeline/internal/logger"
	"github.com/pitchside/video-pipeline/internal/observability"
	"github.com/pitchside/video-pipeline/internal/storage"
	"github.com/pitchside/video-pipeline/internal/sweeper"
)

const (
	AWSConfigTimeout      = 10 * time.Second
	TracerShutdownTimeout = 5 * time.Second
)

// The sweeper is a one-shot job, run on a schedule (cron, EventBridge).
func main() {
	log := logger.New()
	slog.SetDefault(log)

	if err := godotenv.Load(); err != nil {
		log.Info("No .env file found, using system environment variables")
	}

	cfg, err := config.LoadSweeper()
	if err != nil {
		log.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	shutdownTracer, err := observability.InitTracer(context.Background(),
		"pitchside-sweeper", cfg.Observability.OTLPEndpoint, cfg.Environment)
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

	s3Client := s3.NewFromConfig(awsCfg)
	dynamoClient := dynamodb.NewFromConfig(awsCfg)

	objectStore := storage.NewObjectStore(s3Client, cfg.AWS.VideoBucket, cfg.AWS.CDNDomain)
	videoRepo := storage.NewVideoRepositoryFromClient(dynamoClient, cfg.AWS.DynamoDBTable)

	s := sweeper.New(&sweeper.Config{
		Store:       objectStore,
		Index:       videoRepo,
		GracePeriod: cfg.Sweeper.GracePeriod,
		DryRun:      cfg.Sweeper.DryRun,
		Logger:      log,
	})

	result, err := s.Sweep(context.Background())
	if err != nil {
		log.Error("Sweep failed", "error", err)
		os.Exit(1)
	}

	log.Info("Sweep complete",
		"scanned", result.Scanned,
		"orphans", result.Orphans,
		"deleted", result.Deleted,
	)
}
