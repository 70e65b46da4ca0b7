package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Environment   string
	AWS           AWSConfig
	API           APIConfig
	Analysis      AnalysisConfig
	Pipeline      PipelineConfig
	Worker        WorkerConfig
	Sweeper       SweeperConfig
	Observability ObservabilityConfig
	CORS          CORSConfig
}

// AWSConfig holds AWS-specific configuration.
type AWSConfig struct {
	Region        string
	VideoBucket   string
	SQSQueueURL   string
	DynamoDBTable string
	CDNDomain     string
}

// APIConfig holds API server configuration.
type APIConfig struct {
	Port        string
	Username    string
	Password    string
	JWTSecret   string
	MetricsPort int
}

// AnalysisConfig holds AI analysis service configuration.
type AnalysisConfig struct {
	BaseURL string
	APIKey  string
}

// PipelineConfig holds upload pipeline configuration.
type PipelineConfig struct {
	MaxFileBytes       int64
	CompressionEnabled bool
	ScratchDir         string
}

// WorkerConfig holds re-analysis worker configuration.
type WorkerConfig struct {
	MaxConcurrentJobs int
}

// SweeperConfig holds orphan reconciliation configuration.
type SweeperConfig struct {
	GracePeriod time.Duration
	DryRun      bool
}

// ObservabilityConfig holds observability configuration.
type ObservabilityConfig struct {
	OTLPEndpoint string
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	AllowedOrigins []string
}

// Default values
const (
	DefaultPort         = "8080"
	DefaultMetricsPort  = 2112
	DefaultOTLPEndpoint = "localhost:4317"
	DefaultRegion       = "eu-west-1"
	DefaultMaxFileBytes = 2 << 30 // 2 GB
	DefaultScratchDir   = "/tmp/pitchside"
	DefaultGracePeriod  = 24 * time.Hour
	DefaultMaxJobs      = 2
)

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("ENV", "dev"),
		AWS: AWSConfig{
			Region:        getEnv("AWS_REGION", DefaultRegion),
			VideoBucket:   os.Getenv("VIDEO_BUCKET"),
			SQSQueueURL:   os.Getenv("SQS_QUEUE_URL"),
			DynamoDBTable: os.Getenv("DYNAMODB_TABLE"),
			CDNDomain:     os.Getenv("CDN_DOMAIN"),
		},
		API: APIConfig{
			Port:        getEnv("PORT", DefaultPort),
			Username:    os.Getenv("API_USERNAME"),
			Password:    os.Getenv("API_PASSWORD"),
			JWTSecret:   os.Getenv("JWT_SECRET"),
			MetricsPort: getEnvInt("METRICS_PORT", DefaultMetricsPort),
		},
		Analysis: AnalysisConfig{
			BaseURL: os.Getenv("ANALYSIS_API_URL"),
			APIKey:  os.Getenv("ANALYSIS_API_KEY"),
		},
		Pipeline: PipelineConfig{
			MaxFileBytes:       getEnvInt64("MAX_FILE_BYTES", DefaultMaxFileBytes),
			CompressionEnabled: getEnvBool("COMPRESSION_ENABLED", true),
			ScratchDir:         getEnv("SCRATCH_DIR", DefaultScratchDir),
		},
		Worker: WorkerConfig{
			MaxConcurrentJobs: getEnvInt("MAX_CONCURRENT_JOBS", DefaultMaxJobs),
		},
		Sweeper: SweeperConfig{
			GracePeriod: getEnvDuration("SWEEPER_GRACE_PERIOD", DefaultGracePeriod),
			DryRun:      getEnvBool("SWEEPER_DRY_RUN", false),
		},
		Observability: ObservabilityConfig{
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", DefaultOTLPEndpoint),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS", []string{
				"https://app.pitchside.io",
			}),
		},
	}

	return cfg, nil
}

// LoadAPI loads and validates configuration for the API service.
func LoadAPI() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateAPI(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadWorker loads and validates configuration for the re-analysis
// worker.
func LoadWorker() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateWorker(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadSweeper loads and validates configuration for the orphan sweeper.
func LoadSweeper() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateSweeper(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ValidateAPI validates configuration required for the API service.
func (c *Config) ValidateAPI() error {
	var errs []string

	if c.AWS.VideoBucket == "" {
		errs = append(errs, "VIDEO_BUCKET is required")
	}
	if c.AWS.DynamoDBTable == "" {
		errs = append(errs, "DYNAMODB_TABLE is required")
	}
	if c.AWS.CDNDomain == "" {
		errs = append(errs, "CDN_DOMAIN is required")
	}
	if c.AWS.SQSQueueURL == "" {
		errs = append(errs, "SQS_QUEUE_URL is required")
	}
	if c.Analysis.BaseURL == "" {
		errs = append(errs, "ANALYSIS_API_URL is required")
	}

	if c.IsProduction() {
		if c.API.Username == "" {
			errs = append(errs, "API_USERNAME is required in production")
		}
		if c.API.Password == "" {
			errs = append(errs, "API_PASSWORD is required in production")
		}
		if c.API.JWTSecret == "" {
			errs = append(errs, "JWT_SECRET is required in production")
		}
		if len(c.API.JWTSecret) < 32 {
			errs = append(errs, "JWT_SECRET must be at least 32 characters in production")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// ValidateWorker validates configuration required for the worker.
func (c *Config) ValidateWorker() error {
	var errs []string

	if c.AWS.SQSQueueURL == "" {
		errs = append(errs, "SQS_QUEUE_URL is required")
	}
	if c.AWS.DynamoDBTable == "" {
		errs = append(errs, "DYNAMODB_TABLE is required")
	}
	if c.Analysis.BaseURL == "" {
		errs = append(errs, "ANALYSIS_API_URL is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// ValidateSweeper validates configuration required for the sweeper.
func (c *Config) ValidateSweeper() error {
	var errs []string

	if c.AWS.VideoBucket == "" {
		errs = append(errs, "VIDEO_BUCKET is required")
	}
	if c.AWS.DynamoDBTable == "" {
		errs = append(errs, "DYNAMODB_TABLE is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// IsProduction returns true if running in a production environment.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Environment)
	return env == "prod" || env == "production"
}

// GetAPICredentials returns API credentials with a development fallback.
func (c *Config) GetAPICredentials() (username, password string, err error) {
	username = c.API.Username
	password = c.API.Password

	if username == "" || password == "" {
		if c.IsProduction() {
			return "", "", errors.New("API credentials not configured")
		}
		return "admin", "secret", nil
	}

	return username, password, nil
}

// GetJWTSecret returns the JWT secret.
func (c *Config) GetJWTSecret() ([]byte, error) {
	secret := c.API.JWTSecret

	if secret == "" {
		return nil, errors.New("JWT_SECRET is required (set it even for development)")
	}
	if len(secret) < 32 && c.IsProduction() {
		return nil, errors.New("JWT_SECRET must be at least 32 characters")
	}

	return []byte(secret), nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil && intVal > 0 {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil && intVal > 0 {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}
