package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
//
//nolint:govet // Field alignment optimization would reduce readability
type Config struct {
	App           AppConfig
	Submission    SubmissionConfig
	Server        ServerConfig
	Logging       LoggingConfig
	Observability ObservabilityConfig
	Profiling     ProfilingConfig
	Metrics       MetricsConfig
}

type AppConfig struct {
	Env string
}

// SubmissionConfig describes the remote endpoint the form is posted to
type SubmissionConfig struct {
	Endpoint         string
	Timeout          time.Duration
	MinInterval      time.Duration // minimum gap between two submit triggers
	SubmissionsRoute string        // view shown after a successful submission
	MaxFileBytes     int64
}

// ServerConfig is only used by the local web form host
type ServerConfig struct {
	Port           string
	GinMode        string
	AllowedOrigins []string
}

type LoggingConfig struct {
	Level string
	Dir   string
}

type ObservabilityConfig struct {
	ExporterEndpoint  string
	ServiceName       string
	ServiceNamespace  string
	ServiceVersion    string
	ServiceInstanceID string
}

type ProfilingConfig struct {
	Enabled               bool
	Endpoint              string
	AppName               string
	SampleTypes           string
	UploadIntervalSeconds int
}

type MetricsConfig struct {
	PushgatewayURL string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("APP_ENV", "production")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_DIR", "")
	v.SetDefault("SUBMIT_ENDPOINT", "https://credilinq-ai.onrender.com/api/submit")
	v.SetDefault("SUBMIT_TIMEOUT_SECONDS", 30)
	v.SetDefault("SUBMIT_MIN_INTERVAL_MS", 1000)
	v.SetDefault("SUBMISSIONS_ROUTE", "/submissions")
	v.SetDefault("MAX_FILE_BYTES", 10*1024*1024)
	v.SetDefault("PORT", "3000")
	v.SetDefault("GIN_MODE", "release")
	v.SetDefault("ALLOWED_CORS_ORIGINS", "http://localhost:3000,http://127.0.0.1:3000")
	v.SetDefault("O11Y_EXPORTER_ENDPOINT", "")
	v.SetDefault("O11Y_SERVICE_NAME", "sme-healthcheck")
	v.SetDefault("O11Y_SERVICE_NAMESPACE", "credilinq")
	v.SetDefault("O11Y_SERVICE_VERSION", "1.0.0")
	v.SetDefault("O11Y_PROFILING_ENABLED", false)
	v.SetDefault("O11Y_PROFILING_APP_NAME", "sme-healthcheck")
	v.SetDefault("O11Y_PROFILING_SAMPLE_TYPES", "cpu,alloc_space,goroutines")
	v.SetDefault("O11Y_PROFILING_UPLOAD_INTERVAL_SECONDS", 15)

	// Automatically read environment variables
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read from .env file if it exists
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("..")
	_ = v.ReadInConfig() //nolint:errcheck // Ignore error if .env file doesn't exist

	cfg := &Config{
		App: AppConfig{
			Env: v.GetString("APP_ENV"),
		},
		Submission: SubmissionConfig{
			Endpoint:         strings.TrimSpace(v.GetString("SUBMIT_ENDPOINT")),
			Timeout:          time.Duration(v.GetInt("SUBMIT_TIMEOUT_SECONDS")) * time.Second,
			MinInterval:      time.Duration(v.GetInt("SUBMIT_MIN_INTERVAL_MS")) * time.Millisecond,
			SubmissionsRoute: v.GetString("SUBMISSIONS_ROUTE"),
			MaxFileBytes:     v.GetInt64("MAX_FILE_BYTES"),
		},
		Server: ServerConfig{
			Port:           v.GetString("PORT"),
			GinMode:        v.GetString("GIN_MODE"),
			AllowedOrigins: splitList(v.GetString("ALLOWED_CORS_ORIGINS")),
		},
		Logging: LoggingConfig{
			Level: v.GetString("LOG_LEVEL"),
			Dir:   v.GetString("LOG_DIR"),
		},
		Observability: ObservabilityConfig{
			ExporterEndpoint:  v.GetString("O11Y_EXPORTER_ENDPOINT"),
			ServiceName:       v.GetString("O11Y_SERVICE_NAME"),
			ServiceNamespace:  v.GetString("O11Y_SERVICE_NAMESPACE"),
			ServiceVersion:    v.GetString("O11Y_SERVICE_VERSION"),
			ServiceInstanceID: v.GetString("SERVICE_INSTANCE_ID"),
		},
		Profiling: ProfilingConfig{
			Enabled:               v.GetBool("O11Y_PROFILING_ENABLED"),
			Endpoint:              v.GetString("O11Y_PROFILING_ENDPOINT"),
			AppName:               v.GetString("O11Y_PROFILING_APP_NAME"),
			SampleTypes:           v.GetString("O11Y_PROFILING_SAMPLE_TYPES"),
			UploadIntervalSeconds: v.GetInt("O11Y_PROFILING_UPLOAD_INTERVAL_SECONDS"),
		},
		Metrics: MetricsConfig{
			PushgatewayURL: v.GetString("METRICS_PUSHGATEWAY_URL"),
		},
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// splitList parses a comma-separated value, dropping blanks
func splitList(raw string) []string {
	items := []string{}
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}

// Validate checks if required configuration values are set
func (c *Config) Validate() error {
	if c.Submission.Endpoint == "" {
		return fmt.Errorf("SUBMIT_ENDPOINT is required")
	}
	u, err := url.Parse(c.Submission.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("SUBMIT_ENDPOINT must be an absolute http(s) URL, got %q", c.Submission.Endpoint)
	}
	if c.Submission.Timeout <= 0 {
		return fmt.Errorf("SUBMIT_TIMEOUT_SECONDS must be positive")
	}
	if c.Submission.MinInterval < 0 {
		return fmt.Errorf("SUBMIT_MIN_INTERVAL_MS must not be negative")
	}
	if !strings.HasPrefix(c.Submission.SubmissionsRoute, "/") {
		return fmt.Errorf("SUBMISSIONS_ROUTE must start with '/'")
	}
	if c.Submission.MaxFileBytes <= 0 {
		return fmt.Errorf("MAX_FILE_BYTES must be positive")
	}

	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if c.Profiling.Enabled && c.Profiling.Endpoint == "" {
		return fmt.Errorf("O11Y_PROFILING_ENDPOINT is required when profiling is enabled")
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development" || c.Server.GinMode == "debug"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}
