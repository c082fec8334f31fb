package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config is loaded once at startup: defaults, then the optional YAML file,
// then environment variables.
type Config struct {
	ServerPort string `yaml:"server_port"`
	PublicURL  string `yaml:"public_url"`
	Backend    string `yaml:"backend"`

	DBHost     string `yaml:"db_host"`
	DBPort     string `yaml:"db_port"`
	DBUser     string `yaml:"db_user"`
	DBPassword string `yaml:"db_password"`
	DBName     string `yaml:"db_name"`
	DBSSLMode  string `yaml:"db_sslmode"`

	JWTSecret         string        `yaml:"jwt_secret"`
	TokenTTL          time.Duration `yaml:"token_ttl"`
	RecentLoginWindow time.Duration `yaml:"recent_login_window"`

	ListLimit         int           `yaml:"list_limit"`
	MaxImageBytes     int64         `yaml:"max_image_bytes"`
	ImageFetchTimeout time.Duration `yaml:"image_fetch_timeout"`

	AuthRatePerMinute int    `yaml:"auth_rate_per_minute"`
	CORSAllowedOrigin string `yaml:"cors_allowed_origin"`
	LogLevel          string `yaml:"log_level"`
}

func Default() *Config {
	return &Config{
		ServerPort:        "8080",
		PublicURL:         "http://localhost:8080",
		Backend:           BackendPostgres,
		DBHost:            "localhost",
		DBPort:            "5432",
		DBUser:            "board",
		DBPassword:        "board_dev_password",
		DBName:            "board",
		DBSSLMode:         "disable",
		JWTSecret:         "dev-secret-change-me",
		TokenTTL:          24 * time.Hour,
		RecentLoginWindow: 5 * time.Minute,
		ListLimit:         50,
		MaxImageBytes:     6 << 20,
		ImageFetchTimeout: 30 * time.Second,
		AuthRatePerMinute: 20,
		CORSAllowedOrigin: "*",
		LogLevel:          "info",
	}
}

// Load builds the configuration. path may be empty.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	cfg.ServerPort = getEnv("SERVER_PORT", cfg.ServerPort)
	cfg.PublicURL = getEnv("PUBLIC_URL", cfg.PublicURL)
	cfg.Backend = getEnv("BACKEND", cfg.Backend)
	cfg.DBHost = getEnv("DB_HOST", cfg.DBHost)
	cfg.DBPort = getEnv("DB_PORT", cfg.DBPort)
	cfg.DBUser = getEnv("DB_USER", cfg.DBUser)
	cfg.DBPassword = getEnv("DB_PASSWORD", cfg.DBPassword)
	cfg.DBName = getEnv("DB_NAME", cfg.DBName)
	cfg.DBSSLMode = getEnv("DB_SSLMODE", cfg.DBSSLMode)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.TokenTTL = getEnvDuration("TOKEN_TTL", cfg.TokenTTL)
	cfg.RecentLoginWindow = getEnvDuration("RECENT_LOGIN_WINDOW", cfg.RecentLoginWindow)
	cfg.ListLimit = getEnvInt("LIST_LIMIT", cfg.ListLimit)
	cfg.MaxImageBytes = int64(getEnvInt("MAX_IMAGE_BYTES", int(cfg.MaxImageBytes)))
	cfg.ImageFetchTimeout = getEnvDuration("IMAGE_FETCH_TIMEOUT", cfg.ImageFetchTimeout)
	cfg.AuthRatePerMinute = getEnvInt("AUTH_RATE_PER_MINUTE", cfg.AuthRatePerMinute)
	cfg.CORSAllowedOrigin = getEnv("CORS_ALLOWED_ORIGIN", cfg.CORSAllowedOrigin)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Backend != BackendPostgres && c.Backend != BackendMemory {
		errs = append(errs, fmt.Errorf("backend must be %q or %q, got %q", BackendPostgres, BackendMemory, c.Backend))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("jwt_secret is required"))
	}
	if c.ListLimit <= 0 {
		errs = append(errs, errors.New("list_limit must be positive"))
	}
	if c.MaxImageBytes <= 0 {
		errs = append(errs, errors.New("max_image_bytes must be positive"))
	}
	if c.RecentLoginWindow <= 0 {
		errs = append(errs, errors.New("recent_login_window must be positive"))
	}
	if _, err := url.Parse(c.PublicURL); err != nil {
		errs = append(errs, fmt.Errorf("public_url: %w", err))
	}
	return errors.Join(errs...)
}

// DatabaseURL is the pgx connection string.
func (c *Config) DatabaseURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     c.DBHost + ":" + c.DBPort,
		Path:     c.DBName,
		RawQuery: "sslmode=" + c.DBSSLMode,
	}
	return u.String()
}

// MediaBaseURL is the public prefix of stored image URLs.
func (c *Config) MediaBaseURL() string {
	return strings.TrimRight(c.PublicURL, "/") + "/media"
}

func getEnv(key, fallback string) string {
	val, exists := os.LookupEnv(key)

	if exists {
		return val
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
