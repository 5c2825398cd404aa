package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Environment string
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	Stream      StreamConfig
	Cache       CacheConfig
	RateLimit   RateLimitConfig
	Storage     StorageConfig
	AWS         AWSConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
	BaseExternalURL    string // prefix for signed stream URLs, e.g. https://media.example.com
	StoreTimeoutSec    int
	TrustedProxies     string // comma-separated CIDRs/IPs allowed to set X-Forwarded-For; empty trusts none
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is (e.g. postgres://localhost:5432/media?sslmode=disable)
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings. URL takes precedence over Addr.
type RedisConfig struct {
	URL           string
	Addr          string
	Password      string
	DB            int
	DialTimeoutMs int
}

// JWTConfig holds session token signing settings.
type JWTConfig struct {
	Secret        string
	ExpireMinutes int
}

// StreamConfig holds signed stream link settings. The secret must differ from JWTConfig.Secret.
type StreamConfig struct {
	SigningSecret  string
	LinkTTLSeconds int
}

// CacheConfig holds analytics cache settings.
type CacheConfig struct {
	Enabled     bool
	TTLSeconds  int
	OpTimeoutMs int
}

// RateLimitConfig holds the view-logging rate limit: Requests per IP per Window.
type RateLimitConfig struct {
	Requests  int
	WindowSec int
}

// StorageConfig selects where uploaded bytes live.
type StorageConfig struct {
	Backend     string // local or s3
	Dir         string
	MaxUploadMB int
}

// AWSConfig holds AWS credentials and the media bucket.
type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	MediaBucket     string
	Endpoint        string // optional, e.g. http://localhost:9000 for MinIO
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// DialTimeout returns the Redis dial timeout.
func (c RedisConfig) DialTimeout() time.Duration {
	return time.Duration(c.DialTimeoutMs) * time.Millisecond
}

// TTL returns the analytics cache time-to-live.
func (c CacheConfig) TTL() time.Duration { return time.Duration(c.TTLSeconds) * time.Second }

// OpTimeout returns the per-operation cache timeout.
func (c CacheConfig) OpTimeout() time.Duration { return time.Duration(c.OpTimeoutMs) * time.Millisecond }

// Window returns the rate limit window.
func (c RateLimitConfig) Window() time.Duration { return time.Duration(c.WindowSec) * time.Second }

// LinkTTL returns how long a signed stream link stays valid.
func (c StreamConfig) LinkTTL() time.Duration { return time.Duration(c.LinkTTLSeconds) * time.Second }

// MaxUploadBytes returns the upload size limit in bytes.
func (c StorageConfig) MaxUploadBytes() int64 { return int64(c.MaxUploadMB) * 1024 * 1024 }

// StoreTimeout bounds every database call made on behalf of a request.
func (c ServerConfig) StoreTimeout() time.Duration {
	return time.Duration(c.StoreTimeoutSec) * time.Second
}

// ProxyList returns TrustedProxies split into entries, or nil when none are set.
func (c ServerConfig) ProxyList() []string {
	var out []string
	for _, p := range strings.Split(c.TrustedProxies, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load() // .env

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 0),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			BaseExternalURL:    strings.TrimSuffix(getEnv("BASE_EXTERNAL_URL", "http://127.0.0.1:8080"), "/"),
			StoreTimeoutSec:    getEnvInt("STORE_TIMEOUT_SEC", 5),
			TrustedProxies:     getEnv("TRUSTED_PROXIES", ""),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "media"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			URL:           getEnv("REDIS_URL", ""),
			Addr:          getEnv("REDIS_ADDR", "localhost:6379"),
			Password:      getEnv("REDIS_PASSWORD", ""),
			DB:            getEnvInt("REDIS_DB", 0),
			DialTimeoutMs: getEnvInt("REDIS_DIAL_TIMEOUT_MS", 500),
		},
		JWT: JWTConfig{
			Secret:        getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireMinutes: getEnvInt("ACCESS_TOKEN_EXPIRE_MINUTES", 60),
		},
		Stream: StreamConfig{
			SigningSecret:  getEnv("STREAM_SIGNING_SECRET", "change-me-stream-secret"),
			LinkTTLSeconds: getEnvInt("STREAM_LINK_TTL_SECONDS", 600),
		},
		Cache: CacheConfig{
			Enabled:     getEnvBool("CACHE_ENABLED", true),
			TTLSeconds:  getEnvInt("CACHE_TTL", 300),
			OpTimeoutMs: getEnvInt("CACHE_OP_TIMEOUT_MS", 250),
		},
		RateLimit: RateLimitConfig{
			Requests:  getEnvInt("RATE_LIMIT_PER_MINUTE", 10),
			WindowSec: getEnvInt("RATE_LIMIT_WINDOW_SEC", 60),
		},
		Storage: StorageConfig{
			Backend:     strings.ToLower(getEnv("STORAGE_BACKEND", "local")),
			Dir:         getEnv("STORAGE_DIR", "./storage"),
			MaxUploadMB: getEnvInt("MAX_UPLOAD_MB", 500),
		},
		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			MediaBucket:     getEnv("AWS_S3_MEDIA_BUCKET", "media-assets"),
			Endpoint:        getEnv("AWS_S3_ENDPOINT", ""),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that would otherwise fail at request time.
func (c *Config) Validate() error {
	var errs []error
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.Stream.SigningSecret == "" {
		errs = append(errs, errors.New("STREAM_SIGNING_SECRET is required"))
	}
	if c.JWT.Secret != "" && c.JWT.Secret == c.Stream.SigningSecret {
		errs = append(errs, errors.New("STREAM_SIGNING_SECRET must differ from JWT_SECRET"))
	}
	if c.JWT.ExpireMinutes <= 0 {
		errs = append(errs, errors.New("ACCESS_TOKEN_EXPIRE_MINUTES must be positive"))
	}
	if c.Stream.LinkTTLSeconds <= 0 {
		errs = append(errs, errors.New("STREAM_LINK_TTL_SECONDS must be positive"))
	}
	if c.Cache.TTLSeconds <= 0 {
		errs = append(errs, errors.New("CACHE_TTL must be positive"))
	}
	if c.RateLimit.Requests <= 0 || c.RateLimit.WindowSec <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_PER_MINUTE and RATE_LIMIT_WINDOW_SEC must be positive"))
	}
	switch c.Storage.Backend {
	case "local", "s3":
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_BACKEND %q", c.Storage.Backend))
	}
	return errors.Join(errs...)
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
