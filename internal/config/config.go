// Package config holds the runtime configuration of the admin CLI.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"

	"github.com/Sternrassler/relaxflow-admin/pkg/client"
	"github.com/Sternrassler/relaxflow-admin/pkg/logging"
	"github.com/Sternrassler/relaxflow-admin/pkg/pagination"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("loglevel", func(fl validator.FieldLevel) bool {
		_, err := logging.ParseLevel(fl.Field().String())
		return err == nil
	})
	return v
}

// Config is assembled from flags and environment by the CLI.
type Config struct {
	BaseURL    string        `validate:"required,url"`
	Token      string        `validate:"omitempty,printascii"`
	UserAgent  string        `validate:"required"`
	Timeout    time.Duration `validate:"gt=0"`
	MaxRetries int           `validate:"gte=1,lte=10"`

	// RedisURL enables the response cache and shared rate-limit state.
	// Either redis://host:port/db or a plain host:port.
	RedisURL string

	// LogLevel is any name logging.ParseLevel accepts.
	LogLevel  string `validate:"loglevel"`
	LogPretty bool

	MetricsAddr string `validate:"omitempty,hostname_port"`

	PageSize          int `validate:"gte=1,lte=100"`
	ExportConcurrency int `validate:"gte=1,lte=32"`
}

// Default returns the configuration used when nothing is set.
// BaseURL has no default.
func Default() Config {
	return Config{
		UserAgent:         "relaxflow-admin/" + Version,
		Timeout:           30 * time.Second,
		MaxRetries:        3,
		LogLevel:          string(logging.LevelInfo),
		PageSize:          pagination.DefaultLimit,
		ExportConcurrency: 5,
	}
}

// Version is overridden at build time with -ldflags.
var Version = "0.1.0"

// Validate checks every field and reports all violations at once.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Field(), describe(fe)))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "url":
		return fmt.Sprintf("must be an absolute URL (got %q)", fe.Value())
	case "oneof":
		return fmt.Sprintf("must be one of %s", fe.Param())
	case "loglevel":
		return fmt.Sprintf("must be debug, info, warn or error (got %q)", fe.Value())
	case "hostname_port":
		return fmt.Sprintf("must be host:port (got %q)", fe.Value())
	case "gt", "gte", "lte":
		return fmt.Sprintf("must be %s %s", fe.Tag(), fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

// RedisOptions parses RedisURL. It returns nil, nil when Redis is not configured.
func (c Config) RedisOptions() (*redis.Options, error) {
	if c.RedisURL == "" {
		return nil, nil
	}
	if !strings.Contains(c.RedisURL, "://") {
		return &redis.Options{Addr: c.RedisURL}, nil
	}
	opts, err := redis.ParseURL(c.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return opts, nil
}

// ClientConfig maps the configuration onto the HTTP client's.
func (c Config) ClientConfig(rdb *redis.Client) client.Config {
	cfg := client.DefaultConfig(c.BaseURL, c.UserAgent)
	cfg.Token = c.Token
	cfg.Timeout = c.Timeout
	cfg.MaxRetries = c.MaxRetries
	cfg.Redis = rdb
	return cfg
}

// LoggingConfig maps the log settings onto logging.Config.
func (c Config) LoggingConfig() logging.Config {
	cfg := logging.DefaultConfig()
	if level, err := logging.ParseLevel(c.LogLevel); err == nil {
		cfg.Level = level
	}
	cfg.Pretty = c.LogPretty
	cfg.Service = "relaxflow-admin"
	return cfg
}

// BatchConfig maps export settings onto the batch fetcher's.
func (c Config) BatchConfig() pagination.BatchConfig {
	cfg := pagination.DefaultBatchConfig()
	cfg.PageSize = c.PageSize
	cfg.MaxConcurrency = c.ExportConcurrency
	return cfg
}
