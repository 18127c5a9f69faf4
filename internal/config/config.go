package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Config is the root configuration for the relay.
type Config struct {
	General  GeneralConfig  `json:"general"`
	Telegram TelegramConfig `json:"telegram"`
	ImgBB    ImgBBConfig    `json:"imgbb"`
	Metrics  MetricsConfig  `json:"metrics"`
}

type GeneralConfig struct {
	LogLevel   string `json:"logLevel"`
	CachePath  string `json:"cachePath"`  // avatar cache (JSON mapping)
	DBPath     string `json:"dbPath"`     // relay log (SQLite)
	RoutesPath string `json:"routesPath"` // routes.yaml
	BusBuffer  int    `json:"busBuffer,omitempty"`
}

type TelegramConfig struct {
	Token              string `json:"token"`
	PollTimeoutSeconds int    `json:"pollTimeoutSeconds"`
	MaxAttachmentBytes int64  `json:"maxAttachmentBytes"`
}

// ImgBBConfig configures the image host used for avatar enrichment.
// An empty key disables enrichment entirely.
type ImgBBConfig struct {
	Key               string `json:"key,omitempty"`
	ExpirationSeconds int    `json:"expirationSeconds"`
	BaseURL           string `json:"baseUrl"`
	UploadURL         string `json:"uploadUrl"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
}

// envOverrides lets secrets come from the environment instead of the config
// file.
type envOverrides struct {
	TelegramToken string `env:"TGRELAY_TELEGRAM_TOKEN"`
	ImgBBKey      string `env:"TGRELAY_IMGBB_KEY"`
}

// DefaultConfigDir returns the default config directory (~/.tgrelay).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tgrelay"
	}
	return filepath.Join(home, ".tgrelay")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

// Defaults returns a config with sane defaults; the Telegram token and the
// routes file still have to be provided.
func Defaults() *Config {
	dir := DefaultConfigDir()
	return &Config{
		General: GeneralConfig{
			LogLevel:   "info",
			CachePath:  filepath.Join(dir, "cache.json"),
			DBPath:     filepath.Join(dir, "relay.db"),
			RoutesPath: filepath.Join(dir, "routes.yaml"),
			BusBuffer:  100,
		},
		Telegram: TelegramConfig{
			PollTimeoutSeconds: 30,
			MaxAttachmentBytes: 10 * 1024 * 1024,
		},
		ImgBB: ImgBBConfig{
			ExpirationSeconds: 7 * 24 * 60 * 60,
			BaseURL:           "https://i.ibb.co/",
			UploadURL:         "https://api.imgbb.com/1/upload",
		},
		Metrics: MetricsConfig{
			Addr: "127.0.0.1:9097",
		},
	}
}

// Load reads, env-expands, validates, and returns the config. Any
// validation failure is fatal to the caller: the relay never starts on a
// broken config.
func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	var overrides envOverrides
	if err := env.Parse(&overrides); err != nil {
		return nil, fmt.Errorf("parse environment overrides: %w", err)
	}
	if overrides.TelegramToken != "" {
		cfg.Telegram.Token = overrides.TelegramToken
	}
	if overrides.ImgBBKey != "" {
		cfg.ImgBB.Key = overrides.ImgBBKey
	}

	cfg.General.CachePath = ExpandPath(cfg.General.CachePath)
	cfg.General.DBPath = ExpandPath(cfg.General.DBPath)
	cfg.General.RoutesPath = ExpandPath(cfg.General.RoutesPath)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset
// or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks that the config has valid values. All problems are
// reported at once.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Telegram.Token == "" {
		errs = append(errs, "telegram.token is required (or set TGRELAY_TELEGRAM_TOKEN)")
	}
	if cfg.Telegram.PollTimeoutSeconds < 1 {
		errs = append(errs, "telegram.pollTimeoutSeconds must be >= 1")
	}
	if cfg.Telegram.MaxAttachmentBytes < 1 {
		errs = append(errs, "telegram.maxAttachmentBytes must be >= 1")
	}

	if cfg.General.RoutesPath == "" {
		errs = append(errs, "general.routesPath is required")
	}
	if cfg.General.CachePath == "" {
		errs = append(errs, "general.cachePath is required")
	}

	switch cfg.General.LogLevel {
	case "", "debug", "info", "warn", "error":
		// valid
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}

	if cfg.ImgBB.Key != "" {
		// ImgBB accepts expirations between one minute and 180 days.
		if cfg.ImgBB.ExpirationSeconds < 60 || cfg.ImgBB.ExpirationSeconds > 15552000 {
			errs = append(errs, "imgbb.expirationSeconds must be between 60 and 15552000")
		}
		if cfg.ImgBB.BaseURL == "" || cfg.ImgBB.UploadURL == "" {
			errs = append(errs, "imgbb.baseUrl and imgbb.uploadUrl are required when a key is set")
		}
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Addr == "" {
		errs = append(errs, "metrics.addr is required when metrics are enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
