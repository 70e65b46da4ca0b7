package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"

	"github.com/pitchside/video-pipeline/internal/analysis"
	"github.com/pitchside/video-pipeline/internal/api"
	"github.com/pitchside/video-pipeline/internal/auth"
	"github.com/pitchside/video-pipeline/internal/compress"
	"github.com/pitchside/video-pipeline/internal/config"
	"github.com/pitchside/video-pipeline/internal/health"
	"github.com/pitchside/video-pipeline/internal/logger"
	"github.com/pitchside/video-pipeline/internal/observability"
	"github.com/pitchside/video-pipeline/internal/pipeline"
	"github.com/pitchside/video-pipeline/internal/storage"
)

const (
	ShutdownTimeout       = 30 * time.Second
	TracerShutdownTimeout = 5 * time.Second
	AWSConfigTimeout      = 10 * time.Second
)

func main() {
	log := logger.New()
	slog.SetDefault(log)

	// Load .env file if present
	if err := godotenv.Load(); err != nil {
		log.Info("No .env file found, using system environment variables")
	}

	cfg, err := config.LoadAPI()
	if err != nil {
		log.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	shutdownTracer, err := observability.InitTracer(context.Background(),
		"pitchside-api", cfg.Observability.OTLPEndpoint, cfg.Environment)
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

	// Initialize AWS clients
	ctx, cancel := context.WithTimeout(context.Background(), AWSConfigTimeout)
	defer cancel()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		log.Error("Failed to load AWS config", "error", err)
		os.Exit(1)
	}
	otelaws.AppendMiddlewares(&awsCfg.APIOptions)

	s3Client := s3.NewFromConfig(awsCfg)
	sqsClient := sqs.NewFromConfig(awsCfg)
	dynamoClient := dynamodb.NewFromConfig(awsCfg)

	objectStore := storage.NewObjectStore(s3Client, cfg.AWS.VideoBucket, cfg.AWS.CDNDomain)
	videoRepo := storage.NewVideoRepositoryFromClient(dynamoClient, cfg.AWS.DynamoDBTable)
	resolver := storage.NewDuplicateResolver(videoRepo, log)
	log.Info("DynamoDB video repository initialized")

	// Assemble the upload pipeline
	var compressor pipeline.Compressor = compress.Passthrough{}
	if cfg.Pipeline.CompressionEnabled {
		compressor = compress.NewFFmpegCompressor(
			compress.DefaultFFmpegConfig(cfg.Pipeline.ScratchDir, log))
	}

	analyzer := analysis.NewClient(cfg.Analysis.BaseURL, cfg.Analysis.APIKey, log)

	pipe := pipeline.New(&pipeline.Config{
		Compressor:   compressor,
		Store:        objectStore,
		Videos:       videoRepo,
		Analyzer:     analyzer,
		Logger:       log,
		MaxFileBytes: cfg.Pipeline.MaxFileBytes,
	})
	tracker := pipeline.NewTracker()

	// Initialize JWT service
	jwtSecret, err := cfg.GetJWTSecret()
	if err != nil {
		log.Error("Failed to get JWT secret", "error", err)
		os.Exit(1)
	}
	jwtService, err := auth.NewJWTService(jwtSecret)
	if err != nil {
		log.Error("Failed to create JWT service", "error", err)
		os.Exit(1)
	}

	rateLimiter := auth.NewRateLimiter(auth.DefaultRateLimiterConfig())

	healthConfig := health.DefaultConfig("pitchside-api", log)
	healthConfig.S3Client = s3Client
	healthConfig.S3Bucket = cfg.AWS.VideoBucket
	healthConfig.SQSClient = sqsClient
	healthConfig.SQSQueueURL = cfg.AWS.SQSQueueURL
	healthConfig.DynamoDBClient = dynamoClient
	healthConfig.DynamoDBTable = cfg.AWS.DynamoDBTable
	healthChecker := health.NewChecker(healthConfig)

	server, err := api.NewServer(&api.ServerConfig{
		Config:        cfg,
		Logger:        log,
		Pipeline:      pipe,
		Tracker:       tracker,
		VideoRepo:     videoRepo,
		Resolver:      resolver,
		SQSClient:     sqsClient,
		JWTService:    jwtService,
		RateLimiter:   rateLimiter,
		HealthChecker: healthChecker,
	})
	if err != nil {
		log.Error("Failed to create server", "error", err)
		os.Exit(1)
	}

	go func() {
		if err := server.Start(); err != nil {
			log.Error("Server error", "error", err)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel = context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Server shutdown complete")
}
