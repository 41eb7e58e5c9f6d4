package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const defaultJWTSecret = "secret"

type Config struct {
	Port        string `yaml:"port"`
	AppEnv      string `yaml:"app_env"`
	BaseURL     string `yaml:"base_url"`
	FrontendURL string `yaml:"frontend_url"`

	StorageDriver  string        `yaml:"storage_driver"` // sql or redis
	DatabaseURL    string        `yaml:"database_url"`
	RedisURL       string        `yaml:"redis_url"`
	StorageTimeout time.Duration `yaml:"-"`

	TokenMode           string        `yaml:"token_mode"` // hmac or issuer
	JWTSecret           string        `yaml:"jwt_secret"`
	TokenTTL            time.Duration `yaml:"-"`
	TokenIssuer         string        `yaml:"token_issuer"`
	TokenPublicKeyFile  string        `yaml:"token_public_key_file"`
	TokenPrivateKeyFile string        `yaml:"token_private_key_file"`

	GoogleClientID     string `yaml:"google_client_id"`
	GoogleClientSecret string `yaml:"google_client_secret"`
	GoogleRedirectURL  string `yaml:"google_redirect_url"`

	AdminPassword string `yaml:"admin_password"`

	NatsURL     string `yaml:"nats_url"`
	NatsSubject string `yaml:"nats_subject"`
	GeoIPDB     string `yaml:"geoip_db"`

	// SyncClickRecording records clicks before the redirect is written
	SyncClickRecording bool `yaml:"sync_click_recording"`

	LogLevel   string `yaml:"log_level"`
	LogFormat  string `yaml:"log_format"`
	CodeLength int    `yaml:"code_length"`
}

func defaults() *Config {
	return &Config{
		Port:           "8080",
		AppEnv:         "local",
		BaseURL:        "http://localhost:8080",
		FrontendURL:    "http://localhost:8080/dashboard",
		StorageDriver:  "sql",
		DatabaseURL:    "file:db.sqlite",
		RedisURL:       "redis://localhost:6379/0",
		StorageTimeout: 3 * time.Second,
		TokenMode:      "hmac",
		JWTSecret:      defaultJWTSecret,
		TokenTTL:       7 * 24 * time.Hour,
		TokenIssuer:    "shortlink",

		GoogleRedirectURL: "http://localhost:8080/auth/google/callback",
		NatsSubject:       "shortlink.clicks",
		LogLevel:          "info",
		LogFormat:         "text",
		CodeLength:        6,
	}
}

// Load reads .env (if any), then CONFIG_FILE (if set), then the environment.
// Later sources win.
func Load() (*Config, error) {
	_ = godotenv.Load() // Ignore error if .env not found (e.g. prod)

	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var file fileConfig
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return file.applyTo(c)
}

// fileConfig mirrors Config with durations kept as strings ("3s", "168h")
type fileConfig struct {
	Config         `yaml:",inline"`
	StorageTimeout string `yaml:"storage_timeout"`
	TokenTTL       string `yaml:"token_ttl"`
}

func (f *fileConfig) applyTo(c *Config) error {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.Port, f.Port)
	set(&c.AppEnv, f.AppEnv)
	set(&c.BaseURL, f.BaseURL)
	set(&c.FrontendURL, f.FrontendURL)
	set(&c.StorageDriver, f.StorageDriver)
	set(&c.DatabaseURL, f.DatabaseURL)
	set(&c.RedisURL, f.RedisURL)
	set(&c.TokenMode, f.TokenMode)
	set(&c.JWTSecret, f.JWTSecret)
	set(&c.TokenIssuer, f.TokenIssuer)
	set(&c.TokenPublicKeyFile, f.TokenPublicKeyFile)
	set(&c.TokenPrivateKeyFile, f.TokenPrivateKeyFile)
	set(&c.GoogleClientID, f.GoogleClientID)
	set(&c.GoogleClientSecret, f.GoogleClientSecret)
	set(&c.GoogleRedirectURL, f.GoogleRedirectURL)
	set(&c.AdminPassword, f.AdminPassword)
	set(&c.NatsURL, f.NatsURL)
	set(&c.NatsSubject, f.NatsSubject)
	set(&c.GeoIPDB, f.GeoIPDB)
	set(&c.LogLevel, f.LogLevel)
	set(&c.LogFormat, f.LogFormat)
	if f.CodeLength != 0 {
		c.CodeLength = f.CodeLength
	}
	if f.SyncClickRecording {
		c.SyncClickRecording = true
	}

	if f.StorageTimeout != "" {
		d, err := time.ParseDuration(f.StorageTimeout)
		if err != nil {
			return fmt.Errorf("storage_timeout: %w", err)
		}
		c.StorageTimeout = d
	}
	if f.TokenTTL != "" {
		d, err := time.ParseDuration(f.TokenTTL)
		if err != nil {
			return fmt.Errorf("token_ttl: %w", err)
		}
		c.TokenTTL = d
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.Port = getEnv("PORT", c.Port)
	c.AppEnv = getEnv("APP_ENV", c.AppEnv)
	c.BaseURL = getEnv("BASE_URL", c.BaseURL)
	c.FrontendURL = getEnv("FRONTEND_URL", c.FrontendURL)
	c.StorageDriver = getEnv("STORAGE_DRIVER", c.StorageDriver)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.RedisURL = getEnv("REDIS_URL", c.RedisURL)
	c.TokenMode = getEnv("TOKEN_MODE", c.TokenMode)
	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.TokenIssuer = getEnv("TOKEN_ISSUER", c.TokenIssuer)
	c.TokenPublicKeyFile = getEnv("TOKEN_PUBLIC_KEY_FILE", c.TokenPublicKeyFile)
	c.TokenPrivateKeyFile = getEnv("TOKEN_PRIVATE_KEY_FILE", c.TokenPrivateKeyFile)
	c.GoogleClientID = getEnv("GOOGLE_CLIENT_ID", c.GoogleClientID)
	c.GoogleClientSecret = getEnv("GOOGLE_CLIENT_SECRET", c.GoogleClientSecret)
	c.GoogleRedirectURL = getEnv("GOOGLE_REDIRECT_URL", c.GoogleRedirectURL)
	c.AdminPassword = getEnv("ADMIN_PASSWORD", c.AdminPassword)
	c.NatsURL = getEnv("NATS_URL", c.NatsURL)
	c.NatsSubject = getEnv("NATS_SUBJECT", c.NatsSubject)
	c.GeoIPDB = getEnv("GEOIP_DB", c.GeoIPDB)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)

	var err error
	if c.StorageTimeout, err = getDuration("STORAGE_TIMEOUT", c.StorageTimeout); err != nil {
		return err
	}
	if c.TokenTTL, err = getDuration("TOKEN_TTL", c.TokenTTL); err != nil {
		return err
	}
	if c.SyncClickRecording, err = getBool("SYNC_CLICK_RECORDING", c.SyncClickRecording); err != nil {
		return err
	}
	if v, ok := os.LookupEnv("CODE_LENGTH"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CODE_LENGTH: %w", err)
		}
		c.CodeLength = n
	}
	return nil
}

// Validate rejects settings the server cannot start with
func (c *Config) Validate() error {
	var errs []error

	switch c.StorageDriver {
	case "sql", "redis":
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver))
	}

	switch c.TokenMode {
	case "hmac":
		if c.JWTSecret == "" {
			errs = append(errs, errors.New("JWT_SECRET is required"))
		}
		if c.IsProduction() && c.JWTSecret == defaultJWTSecret {
			errs = append(errs, errors.New("JWT_SECRET must be changed in production"))
		}
	case "issuer":
		if c.TokenPublicKeyFile == "" {
			errs = append(errs, errors.New("TOKEN_PUBLIC_KEY_FILE is required in issuer mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown TOKEN_MODE %q", c.TokenMode))
	}

	if c.StorageTimeout <= 0 {
		errs = append(errs, errors.New("STORAGE_TIMEOUT must be positive"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}
	if c.CodeLength < 4 || c.CodeLength > 16 {
		errs = append(errs, fmt.Errorf("CODE_LENGTH %d out of range 4-16", c.CodeLength))
	}

	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// GoogleEnabled reports whether the Google sign-in routes should be mounted
func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getBool(key string, fallback bool) (bool, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}
