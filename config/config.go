// Package config provides configuration management for the Moraine gateway.
// It covers the HTTP server, the Bedrock model and generation parameters,
// logging preferences, and the optional rate limiter and circuit breaker.
package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the complete gateway configuration. It is loaded once
// at startup and read-only thereafter.
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	Bedrock        BedrockConfig        `yaml:"bedrock"`
	Logging        LoggingConfig        `yaml:"logging"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// ServerConfig holds server-specific configuration for the HTTP server.
type ServerConfig struct {
	// Port specifies the HTTP server port (default: 8080)
	Port int `yaml:"port"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body (default: 30s)
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response (default: 45s)
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// MaxHeaderBytes controls the maximum number of bytes the server will
	// read parsing request headers (default: 1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// ShutdownTimeout specifies how long to wait for the server to shut
	// down gracefully before forcing termination (default: 30s)
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// BedrockConfig holds the Bedrock model selection and generation parameters.
// The model id decides which request/response profile the agent uses.
type BedrockConfig struct {
	// Region is the AWS region hosting the Bedrock service
	Region string `yaml:"region"`

	// ModelID is the Bedrock model identifier
	// (e.g., "anthropic.claude-3-haiku-20240307-v1:0", "amazon.titan-text-lite-v1")
	ModelID string `yaml:"model_id"`

	// MaxTokens caps the number of tokens the model may generate
	MaxTokens int `yaml:"max_tokens" validate:"gt=0"`

	// Temperature controls sampling randomness, between 0 and 1
	Temperature float64 `yaml:"temperature" validate:"gte=0,lte=1"`

	// TopP controls nucleus sampling, between 0 and 1
	TopP float64 `yaml:"top_p" validate:"gte=0,lte=1"`

	// DefaultSystemPrompt is applied when a request carries no system prompt
	DefaultSystemPrompt string `yaml:"default_system_prompt"`

	// CredentialsFile optionally points at a key=value file holding
	// aws_access_key_id, aws_secret_access_key, and region. When unset,
	// the default AWS credential chain is used.
	CredentialsFile string `yaml:"credentials_file"`

	// VerifyModelAccess enables the startup probe that lists foundation
	// models and warns when the configured model is not accessible.
	VerifyModelAccess bool `yaml:"verify_model_access"`
}

// LoggingConfig defines logging behavior.
type LoggingConfig struct {
	// Level sets the minimum log level ("debug", "info", "warn", "error")
	Level string `yaml:"level"`

	// Format sets the log output format ("json", "text")
	Format string `yaml:"format"`
}

// RateLimitConfig defines per-client request rate limiting.
type RateLimitConfig struct {
	Enabled bool `yaml:"enabled"`

	// RequestsPerSecond is the sustained per-client rate
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	// Burst is the per-client burst allowance
	Burst int `yaml:"burst"`
}

// CircuitBreakerConfig defines the breaker guarding the Bedrock call.
type CircuitBreakerConfig struct {
	Enabled bool `yaml:"enabled"`

	// FailureThreshold is the number of consecutive failures before the
	// circuit opens
	FailureThreshold int `yaml:"failure_threshold"`

	// ResetTimeout is how long the circuit stays open before probing
	ResetTimeout time.Duration `yaml:"reset_timeout"`

	// HalfOpenRequests is the number of probe requests allowed while
	// half-open
	HalfOpenRequests int `yaml:"half_open_requests"`
}

// DefaultConfig returns the default configuration. Values follow the
// Bedrock text-model defaults; the model must still be enabled in the
// AWS account for invocations to succeed.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    45 * time.Second,
			MaxHeaderBytes:  1 << 20,
			ShutdownTimeout: 30 * time.Second,
		},
		Bedrock: BedrockConfig{
			Region:              "us-east-1",
			ModelID:             "amazon.titan-text-lite-v1",
			MaxTokens:           512,
			Temperature:         0.7,
			TopP:                0.9,
			DefaultSystemPrompt: "You are a helpful, concise assistant. Provide accurate information.",
			VerifyModelAccess:   true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		RateLimit: RateLimitConfig{
			Enabled:           false,
			RequestsPerSecond: 5,
			Burst:             10,
		},
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:          true,
			FailureThreshold: 5,
			ResetTimeout:     30 * time.Second,
			HalfOpenRequests: 1,
		},
	}
}

// expandEnvVars resolves environment variable references within
// configuration strings. It supports standard ${VAR} substitution and the
// ${VAR:-default} default-value syntax, and recursively resolves nested
// references until the result is stable.
func expandEnvVars(s string) string {
	result := os.Expand(s, func(key string) string {
		if i := strings.Index(key, ":-"); i >= 0 {
			envKey := key[:i]
			defaultValue := key[i+2:]
			if val := os.Getenv(envKey); val != "" {
				return val
			}
			return defaultValue
		}
		return os.Getenv(key)
	})

	prev := ""
	for prev != result {
		prev = result
		result = os.Expand(result, os.Getenv)
	}

	return result
}

// LoadFile loads configuration from a YAML file.
func LoadFile(filename string) (*Config, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	return Load(f)
}

// Load loads configuration from an io.Reader. The YAML is decoded on top
// of the defaults, so partial configuration files are valid.
func Load(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	config := DefaultConfig()

	dec := yaml.NewDecoder(strings.NewReader(expandEnvVars(string(data))))
	if err := dec.Decode(config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return config, nil
}

var validate = validator.New()

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeout < 0 {
		return fmt.Errorf("negative read timeout: %v", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout < 0 {
		return fmt.Errorf("negative write timeout: %v", c.Server.WriteTimeout)
	}
	if c.Server.MaxHeaderBytes < 0 {
		return fmt.Errorf("negative max header bytes: %d", c.Server.MaxHeaderBytes)
	}
	if c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("negative shutdown timeout: %v", c.Server.ShutdownTimeout)
	}

	if c.Bedrock.Region == "" {
		return fmt.Errorf("empty Bedrock region")
	}
	if c.Bedrock.ModelID == "" {
		return fmt.Errorf("empty Bedrock model id")
	}
	if err := validate.Struct(c.Bedrock); err != nil {
		return fmt.Errorf("invalid Bedrock generation parameters: %w", err)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate limit requests per second must be positive")
		}
		if c.RateLimit.Burst <= 0 {
			return fmt.Errorf("rate limit burst must be positive")
		}
	}

	if c.CircuitBreaker.Enabled {
		if c.CircuitBreaker.FailureThreshold <= 0 {
			return fmt.Errorf("circuit breaker failure threshold must be positive")
		}
		if c.CircuitBreaker.ResetTimeout <= 0 {
			return fmt.Errorf("circuit breaker reset timeout must be positive")
		}
		if c.CircuitBreaker.HalfOpenRequests <= 0 {
			return fmt.Errorf("circuit breaker half-open requests must be positive")
		}
	}

	return nil
}
