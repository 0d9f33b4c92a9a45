package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the login engine
type Config struct {
	// Account credentials and optional pre-known verification code
	Account AccountConfig `yaml:"account" json:"account"`

	// Device identity settings
	Device DeviceConfig `yaml:"device" json:"device"`

	// Session persistence settings
	Session SessionConfig `yaml:"session" json:"session"`

	// Credential sealing policy
	Sealing SealingConfig `yaml:"sealing" json:"sealing"`

	// HTTP transport settings
	HTTP HTTPConfig `yaml:"http" json:"http"`

	// Rate limiting configuration
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// AccountConfig holds the account credential surface.
// The password is normally supplied via INSTAAPI_PASSWORD or a prompt,
// not written into a config file.
type AccountConfig struct {
	Username         string `yaml:"username" json:"username"`
	Password         string `yaml:"-" json:"-"`
	VerificationCode string `yaml:"verification_code" json:"verification_code"`
}

// DeviceConfig holds device identity generation settings
type DeviceConfig struct {
	// Seed keys the deterministic fingerprint. Defaults to the username.
	Seed string `yaml:"seed" json:"seed"`
	// File is where the generated identity is persisted.
	File string `yaml:"file" json:"file"`
	// Index pins a catalog entry; -1 lets the seed choose.
	Index  int    `yaml:"index" json:"index"`
	Locale string `yaml:"locale" json:"locale"`
}

// SessionConfig holds session persistence settings
type SessionConfig struct {
	File string `yaml:"file" json:"file"`
}

// SealingConfig holds the credential sealing policy.
// AllowPlaintextFallback must be opted into explicitly; when false a
// sealing failure aborts the login instead of sending an obfuscated
// plaintext credential.
type SealingConfig struct {
	AllowPlaintextFallback bool `yaml:"allow_plaintext_fallback" json:"allow_plaintext_fallback"`
}

// HTTPConfig holds transport settings
type HTTPConfig struct {
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`
	MaxRetries int           `yaml:"max_retries" json:"max_retries"`
	Proxy      string        `yaml:"proxy" json:"proxy"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
	BurstSize         int `yaml:"burst_size" json:"burst_size"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			File:  "device.json",
			Index: -1,
		},
		Session: SessionConfig{
			File: "session.json",
		},
		Sealing: SealingConfig{
			AllowPlaintextFallback: false,
		},
		HTTP: HTTPConfig{
			Timeout:    30 * time.Second,
			MaxRetries: 3,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
			BurstSize:         10,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if username := os.Getenv("INSTAAPI_USERNAME"); username != "" {
		c.Account.Username = username
	}
	if password := os.Getenv("INSTAAPI_PASSWORD"); password != "" {
		c.Account.Password = password
	}
	if code := os.Getenv("INSTAAPI_VERIFICATION_CODE"); code != "" {
		c.Account.VerificationCode = code
	}

	if seed := os.Getenv("INSTAAPI_DEVICE_SEED"); seed != "" {
		c.Device.Seed = seed
	}
	if file := os.Getenv("INSTAAPI_DEVICE_FILE"); file != "" {
		c.Device.File = file
	}
	if locale := os.Getenv("INSTAAPI_DEVICE_LOCALE"); locale != "" {
		c.Device.Locale = locale
	}

	if file := os.Getenv("INSTAAPI_SESSION_FILE"); file != "" {
		c.Session.File = file
	}

	if v := os.Getenv("INSTAAPI_ALLOW_PLAINTEXT_FALLBACK"); v != "" {
		allow, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid INSTAAPI_ALLOW_PLAINTEXT_FALLBACK: %w", err)
		}
		c.Sealing.AllowPlaintextFallback = allow
	}

	if timeout := os.Getenv("INSTAAPI_HTTP_TIMEOUT"); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			return fmt.Errorf("invalid INSTAAPI_HTTP_TIMEOUT: %w", err)
		}
		c.HTTP.Timeout = d
	}
	if retries := os.Getenv("INSTAAPI_MAX_RETRIES"); retries != "" {
		n, err := strconv.Atoi(retries)
		if err != nil {
			return fmt.Errorf("invalid INSTAAPI_MAX_RETRIES: %w", err)
		}
		c.HTTP.MaxRetries = n
	}
	if proxy := os.Getenv("INSTAAPI_PROXY"); proxy != "" {
		c.HTTP.Proxy = proxy
	}

	if rpm := os.Getenv("INSTAAPI_REQUESTS_PER_MINUTE"); rpm != "" {
		n, err := strconv.Atoi(rpm)
		if err != nil {
			return fmt.Errorf("invalid INSTAAPI_REQUESTS_PER_MINUTE: %w", err)
		}
		if n > 0 {
			c.RateLimit.RequestsPerMinute = n
		}
	}

	if level := os.Getenv("INSTAAPI_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if file := os.Getenv("INSTAAPI_LOG_FILE"); file != "" {
		c.Logging.File = file
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(content, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// SaveToFile writes the configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	content, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, content, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// findConfigFile searches the usual locations for a config file
func findConfigFile() string {
	candidates := []string{
		"instaapi.yaml",
		"instaapi.yml",
		".instaapi.yaml",
	}

	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates,
			filepath.Join(home, ".instaapi.yaml"),
			filepath.Join(home, ".config", "instaapi", "config.yaml"),
		)
	}

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	return ""
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	var errs []error

	if c.Device.Index < -1 {
		errs = append(errs, fmt.Errorf("device index must be -1 or a catalog index, got %d", c.Device.Index))
	}
	if c.Session.File == "" {
		errs = append(errs, errors.New("session file path must not be empty"))
	}
	if c.Device.File == "" {
		errs = append(errs, errors.New("device file path must not be empty"))
	}
	if c.HTTP.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("http timeout must be positive, got %v", c.HTTP.Timeout))
	}
	if c.HTTP.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("max retries must not be negative, got %d", c.HTTP.MaxRetries))
	}
	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, fmt.Errorf("requests per minute must be positive, got %d", c.RateLimit.RequestsPerMinute))
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error", "fatal", "disabled", "":
	default:
		errs = append(errs, fmt.Errorf("unknown log level %q", c.Logging.Level))
	}

	return errors.Join(errs...)
}

// Load builds the effective configuration. Precedence, lowest to highest:
// defaults, config file, .env file, environment variables.
func Load(configFile string) (*Config, error) {
	cfg := DefaultConfig()

	if configFile == "" {
		configFile = findConfigFile()
	}
	if configFile != "" {
		if err := cfg.LoadFromFile(configFile); err != nil {
			return nil, err
		}
	}

	// A missing .env file is fine; a malformed one is not.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		if _, statErr := os.Stat(".env"); statErr == nil {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}

	if cfg.Device.Seed == "" {
		cfg.Device.Seed = cfg.Account.Username
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
