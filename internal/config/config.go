package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the ASR gateway service
type Config struct {
	// Server configuration
	Port string `envconfig:"PORT" default:"8080"`

	// Backend transcription engine endpoints. The gateway speaks to the same
	// engine over two transports; each has its own host/port pair.
	BackendHTTPHost string `envconfig:"BACKEND_HTTP_HOST" default:"localhost"`
	BackendHTTPPort string `envconfig:"BACKEND_HTTP_PORT" default:"9000"`
	BackendGRPCHost string `envconfig:"BACKEND_GRPC_HOST" default:"localhost"`
	BackendGRPCPort string `envconfig:"BACKEND_GRPC_PORT" default:"50051"`

	// Engine process supervision. When EngineCommand is non-empty the gateway
	// launches the engine itself and waits EngineWarmupSeconds before probing.
	EngineCommand       string `envconfig:"ENGINE_COMMAND" default:""`
	EngineWarmupSeconds int    `envconfig:"ENGINE_WARMUP_SECONDS" default:"30"`

	// Readiness probe configuration
	ProbeIntervalSeconds  int `envconfig:"PROBE_INTERVAL_SECONDS" default:"5"`
	ProbeHTTPMaxAttempts  int `envconfig:"PROBE_HTTP_MAX_ATTEMPTS" default:"120"`
	ProbeGRPCMaxAttempts  int `envconfig:"PROBE_GRPC_MAX_ATTEMPTS" default:"60"`
	BackendTimeoutSeconds int `envconfig:"BACKEND_TIMEOUT_SECONDS" default:"30"`

	// Transcription defaults
	DefaultLanguage string `envconfig:"DEFAULT_LANGUAGE" default:"en-US"`
	ModelVersion    string `envconfig:"MODEL_VERSION" default:"conformer-en-US"` // Reported in gRPC response envelopes

	// Resilience configuration
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`   // Failures before opening circuit
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // Seconds before attempting recovery

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// Load reads configuration from environment variables.
// It first attempts to load from .env file if it exists, then from environment.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.BackendHTTPPort == "" || cfg.BackendGRPCPort == "" {
		return nil, fmt.Errorf("backend ports must not be empty")
	}

	return &cfg, nil
}

// BackendHTTPURL returns the base URL of the engine's HTTP surface.
func (c *Config) BackendHTTPURL() string {
	return fmt.Sprintf("http://%s:%s", c.BackendHTTPHost, c.BackendHTTPPort)
}

// BackendGRPCAddr returns the host:port of the engine's gRPC surface.
func (c *Config) BackendGRPCAddr() string {
	return fmt.Sprintf("%s:%s", c.BackendGRPCHost, c.BackendGRPCPort)
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
