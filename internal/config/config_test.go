package config

import (
	"os"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	os.Unsetenv("PORT")
	os.Unsetenv("BACKEND_HTTP_PORT")
	os.Unsetenv("BACKEND_GRPC_PORT")
	os.Unsetenv("LOG_LEVEL")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Expected default Port '8080', got '%s'", cfg.Port)
	}

	if cfg.BackendHTTPHost != "localhost" {
		t.Errorf("Expected default BackendHTTPHost 'localhost', got '%s'", cfg.BackendHTTPHost)
	}

	if cfg.BackendHTTPPort != "9000" {
		t.Errorf("Expected default BackendHTTPPort '9000', got '%s'", cfg.BackendHTTPPort)
	}

	if cfg.BackendGRPCPort != "50051" {
		t.Errorf("Expected default BackendGRPCPort '50051', got '%s'", cfg.BackendGRPCPort)
	}

	if cfg.DefaultLanguage != "en-US" {
		t.Errorf("Expected default DefaultLanguage 'en-US', got '%s'", cfg.DefaultLanguage)
	}

	if cfg.EngineWarmupSeconds != 30 {
		t.Errorf("Expected default EngineWarmupSeconds 30, got %d", cfg.EngineWarmupSeconds)
	}

	if cfg.ProbeIntervalSeconds != 5 {
		t.Errorf("Expected default ProbeIntervalSeconds 5, got %d", cfg.ProbeIntervalSeconds)
	}

	if cfg.ProbeHTTPMaxAttempts != 120 {
		t.Errorf("Expected default ProbeHTTPMaxAttempts 120, got %d", cfg.ProbeHTTPMaxAttempts)
	}

	if cfg.ProbeGRPCMaxAttempts != 60 {
		t.Errorf("Expected default ProbeGRPCMaxAttempts 60, got %d", cfg.ProbeGRPCMaxAttempts)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("Expected default LogLevel 'info', got '%s'", cfg.LogLevel)
	}

	if cfg.LogPretty {
		t.Error("Expected default LogPretty false, got true")
	}

	if !cfg.MetricsEnabled {
		t.Error("Expected default MetricsEnabled true, got false")
	}
}

func TestLoad_Overrides(t *testing.T) {
	os.Setenv("BACKEND_HTTP_HOST", "engine.internal")
	os.Setenv("BACKEND_HTTP_PORT", "8000")
	os.Setenv("BACKEND_GRPC_HOST", "engine.internal")
	os.Setenv("BACKEND_GRPC_PORT", "50052")
	defer os.Unsetenv("BACKEND_HTTP_HOST")
	defer os.Unsetenv("BACKEND_HTTP_PORT")
	defer os.Unsetenv("BACKEND_GRPC_HOST")
	defer os.Unsetenv("BACKEND_GRPC_PORT")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}

	if got := cfg.BackendHTTPURL(); got != "http://engine.internal:8000" {
		t.Errorf("Expected BackendHTTPURL 'http://engine.internal:8000', got '%s'", got)
	}

	if got := cfg.BackendGRPCAddr(); got != "engine.internal:50052" {
		t.Errorf("Expected BackendGRPCAddr 'engine.internal:50052', got '%s'", got)
	}
}

func TestLoad_ResilienceDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.CircuitBreakerMaxFailures != 5 {
		t.Errorf("Expected default CircuitBreakerMaxFailures 5, got %d", cfg.CircuitBreakerMaxFailures)
	}

	if cfg.CircuitBreakerResetTimeout != 30 {
		t.Errorf("Expected default CircuitBreakerResetTimeout 30, got %d", cfg.CircuitBreakerResetTimeout)
	}
}

func TestGetEnv(t *testing.T) {
	os.Setenv("TEST_KEY", "test-value")
	defer os.Unsetenv("TEST_KEY")

	value := GetEnv("TEST_KEY", "default")
	if value != "test-value" {
		t.Errorf("Expected 'test-value', got '%s'", value)
	}

	value = GetEnv("NON_EXISTENT_KEY", "default")
	if value != "default" {
		t.Errorf("Expected 'default', got '%s'", value)
	}
}
