// Package config loads process configuration from the environment, with an
// optional .env file layered underneath.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		HTTP
		Database
		Blob
		Auth
		CORS
		Log
	}

	HTTP struct {
		Host            string
		Port            int
		MaxUploadBytes  int64
		ShutdownTimeout time.Duration
	}
	Database struct {
		Driver string // sqlite | postgres
		Path   string // sqlite file, or ":memory:"
		URL    string // postgres DSN
	}
	Blob struct {
		Backend     string // sql | s3
		S3Bucket    string
		S3Region    string
		S3Endpoint  string
		S3AccessKey string
		S3SecretKey string
	}
	Auth struct {
		JWTSecret     string
		TokenTTL      time.Duration // 0 = tokens never expire
		BcryptCost    int
		SecureCookies bool
	}
	CORS struct {
		AllowedOrigins []string
	}
	Log struct {
		Level  string
		Format string // text | json
	}
)

const (
	BlobBackendSQL = "sql"
	BlobBackendS3  = "s3"
)

// Load reads configuration. A .env file (ENV_FILE, default ".env") is loaded
// first when present; variables already set in the environment win.
func Load() (*Config, error) {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: loading %s: %w", envFile, err)
	}

	cfg := fromViper(newViper())
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("host", "")
	v.SetDefault("port", 8080)
	v.SetDefault("max_upload_bytes", 10<<20)
	v.SetDefault("shutdown_timeout", "30s")

	v.SetDefault("db_driver", "sqlite")
	v.SetDefault("db_path", "flashcards.db")
	v.SetDefault("database_url", "")

	v.SetDefault("blob_backend", BlobBackendSQL)
	v.SetDefault("s3_bucket", "images")
	v.SetDefault("s3_region", "us-east-1")
	v.SetDefault("s3_endpoint", "")
	v.SetDefault("s3_access_key", "")
	v.SetDefault("s3_secret_key", "")

	v.SetDefault("jwt_secret", "")
	v.SetDefault("token_ttl", "0s")
	v.SetDefault("bcrypt_cost", 10)
	v.SetDefault("cookie_secure", false)

	v.SetDefault("cors_origins", "http://localhost:3000")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	return v
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		HTTP: HTTP{
			Host:            v.GetString("HOST"),
			Port:            v.GetInt("PORT"),
			MaxUploadBytes:  v.GetInt64("MAX_UPLOAD_BYTES"),
			ShutdownTimeout: v.GetDuration("SHUTDOWN_TIMEOUT"),
		},
		Database: Database{
			Driver: strings.ToLower(v.GetString("DB_DRIVER")),
			Path:   v.GetString("DB_PATH"),
			URL:    v.GetString("DATABASE_URL"),
		},
		Blob: Blob{
			Backend:     strings.ToLower(v.GetString("BLOB_BACKEND")),
			S3Bucket:    v.GetString("S3_BUCKET"),
			S3Region:    v.GetString("S3_REGION"),
			S3Endpoint:  v.GetString("S3_ENDPOINT"),
			S3AccessKey: v.GetString("S3_ACCESS_KEY"),
			S3SecretKey: v.GetString("S3_SECRET_KEY"),
		},
		Auth: Auth{
			JWTSecret:     v.GetString("JWT_SECRET"),
			TokenTTL:      v.GetDuration("TOKEN_TTL"),
			BcryptCost:    v.GetInt("BCRYPT_COST"),
			SecureCookies: v.GetBool("COOKIE_SECURE"),
		},
		CORS: CORS{
			AllowedOrigins: splitList(v.GetString("CORS_ORIGINS")),
		},
		Log: Log{
			Level:  strings.ToLower(v.GetString("LOG_LEVEL")),
			Format: strings.ToLower(v.GetString("LOG_FORMAT")),
		},
	}
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d out of range", c.Port))
	}
	if len(c.JWTSecret) < 16 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 16 characters"))
	}
	if c.TokenTTL < 0 {
		errs = append(errs, errors.New("TOKEN_TTL must not be negative"))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_BYTES must be positive"))
	}

	switch c.Driver {
	case "sqlite":
		if c.Path == "" {
			errs = append(errs, errors.New("DB_PATH is required for sqlite"))
		}
	case "postgres":
		if c.URL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown DB_DRIVER %q", c.Driver))
	}

	switch c.Backend {
	case BlobBackendSQL:
	case BlobBackendS3:
		if c.S3Bucket == "" {
			errs = append(errs, errors.New("S3_BUCKET is required for the s3 blob backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown BLOB_BACKEND %q", c.Backend))
	}

	if c.Format != "text" && c.Format != "json" {
		errs = append(errs, fmt.Errorf("unknown LOG_FORMAT %q", c.Format))
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SlogLevel parses the configured level name.
func (l Log) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("unknown LOG_LEVEL %q", l.Level)
	}
	return level, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
