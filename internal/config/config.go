// Package config loads process configuration from environment variables,
// following the shape of the source's environment_variables.py helpers
// (VERSIONS_FRONTIER, REFRESH_FREQUENCY_IN_SECONDS, LATEST_PREFERENCE, the
// per-sink readiness gates) collected into one typed, immutable struct.
//
// An optional YAML bootstrap file (cmd/main's --config flag) can supply the
// same fields for operators who would rather check in a config manifest
// than populate a full set of env vars; environment variables always take
// priority over the file, which in turn only fills in fields the operator
// didn't set at all (see LoadWithFile).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all controller configuration read from the environment.
//
// Unlike Will-Luck-Docker-Sentinel's Config, nothing here is mutated at
// runtime by HTTP handlers — the only runtime-guarded value in this repo is
// the reachability cache, which lives in internal/reachability instead of
// being modeled as a field here (spec §9's redesign note).
type Config struct {
	// Core policy (spec §6).
	VersionsFrontier           int
	RefreshFrequency           time.Duration
	LatestPreference           bool

	// GitLab Container Registry credentials (all three required to enable).
	GitLabBaseURL   string
	GitLabToken     string
	GitLabProjectID string

	// Email/SMTP notification credentials (host, port, sender and recipient
	// required to enable; an empty password selects plain SMTP).
	EmailHost      string
	EmailPort      int
	EmailSender    string
	EmailRecipient string
	EmailPassword  string
	EmailUseTLS    bool

	// Telegram notification credentials (both required to enable).
	TelegramToken  string
	TelegramChatID string

	// NotifyRegistryDir is where internal/notify.Registry persists its
	// per-handler dedupe JSON files.
	NotifyRegistryDir string
}

// FileConfig mirrors Config's fields for the optional YAML bootstrap file,
// every field a pointer so "absent from the file" is distinguishable from
// "present with the zero value".
type FileConfig struct {
	VersionsFrontier        *int    `yaml:"versionsFrontier"`
	RefreshFrequencySeconds *int    `yaml:"refreshFrequencySeconds"`
	LatestPreference        *bool   `yaml:"latestPreference"`
	GitLabBaseURL           *string `yaml:"gitlabBaseURL"`
	GitLabToken             *string `yaml:"gitlabToken"`
	GitLabProjectID         *string `yaml:"gitlabProjectID"`
	EmailHost               *string `yaml:"emailHost"`
	EmailPort               *int    `yaml:"emailPort"`
	EmailSender             *string `yaml:"emailSender"`
	EmailRecipient          *string `yaml:"emailRecipient"`
	EmailPassword           *string `yaml:"emailPassword"`
	EmailUseTLS             *bool   `yaml:"emailUseTLS"`
	TelegramToken           *string `yaml:"telegramToken"`
	TelegramChatID          *string `yaml:"telegramChatID"`
	NotifyRegistryDir       *string `yaml:"notifyRegistryDir"`
}

// readFileConfig parses path as a FileConfig. A missing or malformed file is
// always an error — unlike an unset environment variable, an operator who
// passes --config expects that file to be read successfully.
func readFileConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading config file %s: %w", path, err)
	}
	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("config: parsing config file %s: %w", path, err)
	}
	return &fc, nil
}

// Load reads Config from the environment alone, applying the same field
// names the source's get_versions_frontier_environment_variable /
// get_refresh_frequency_in_seconds_environment_variable /
// get_latest_preference_environment_variable helpers use.
func Load() (*Config, error) {
	return loadFrom(nil)
}

// LoadWithFile behaves like Load, but first reads configPath (when
// non-empty) as a YAML bootstrap file and uses its values to fill in any
// field whose environment variable is unset — environment variables always
// take priority over the file, and the file always takes priority over the
// hardcoded defaults below.
func LoadWithFile(configPath string) (*Config, error) {
	if configPath == "" {
		return loadFrom(nil)
	}
	fc, err := readFileConfig(configPath)
	if err != nil {
		return nil, err
	}
	return loadFrom(fc)
}

func loadFrom(fc *FileConfig) (*Config, error) {
	if fc == nil {
		fc = &FileConfig{}
	}

	frontier, err := envInt("VERSIONS_FRONTIER", intOr(fc.VersionsFrontier, 0))
	if err != nil {
		return nil, err
	}
	refreshSeconds, err := envInt("REFRESH_FREQUENCY_IN_SECONDS", intOr(fc.RefreshFrequencySeconds, 300))
	if err != nil {
		return nil, err
	}
	emailPort, err := envInt("EMAIL_PORT", intOr(fc.EmailPort, 587))
	if err != nil {
		return nil, err
	}

	return &Config{
		VersionsFrontier: frontier,
		RefreshFrequency: time.Duration(refreshSeconds) * time.Second,
		LatestPreference: envBool("LATEST_PREFERENCE", boolOr(fc.LatestPreference, true)),

		GitLabBaseURL:   envStr("GITLAB_BASE_URL", strOr(fc.GitLabBaseURL, "")),
		GitLabToken:     envStr("GITLAB_TOKEN", strOr(fc.GitLabToken, "")),
		GitLabProjectID: envStr("GITLAB_PROJECT_ID", strOr(fc.GitLabProjectID, "")),

		EmailHost:      envStr("EMAIL_HOST", strOr(fc.EmailHost, "")),
		EmailPort:      emailPort,
		EmailSender:    envStr("EMAIL_SENDER", strOr(fc.EmailSender, "")),
		EmailRecipient: envStr("EMAIL_RECIPIENT", strOr(fc.EmailRecipient, "")),
		EmailPassword:  envStr("EMAIL_PASSWORD", strOr(fc.EmailPassword, "")),
		EmailUseTLS:    envBool("EMAIL_USE_TLS", boolOr(fc.EmailUseTLS, false)),

		TelegramToken:  envStr("TELEGRAM_TOKEN", strOr(fc.TelegramToken, "")),
		TelegramChatID: envStr("TELEGRAM_CHAT_ID", strOr(fc.TelegramChatID, "")),

		NotifyRegistryDir: envStr("NOTIFY_REGISTRY_DIR", strOr(fc.NotifyRegistryDir, "/data/notify-registry")),
	}, nil
}

func intOr(v *int, def int) int {
	if v != nil {
		return *v
	}
	return def
}

func strOr(v *string, def string) string {
	if v != nil {
		return *v
	}
	return def
}

func boolOr(v *bool, def bool) bool {
	if v != nil {
		return *v
	}
	return def
}

// Validate checks configuration for invalid values (spec §6 domain bounds).
func (c *Config) Validate() error {
	if c.VersionsFrontier < 0 {
		return fmt.Errorf("config: VERSIONS_FRONTIER must be >= 0, got %d", c.VersionsFrontier)
	}
	if c.RefreshFrequency <= 0 {
		return fmt.Errorf("config: REFRESH_FREQUENCY_IN_SECONDS must be > 0, got %s", c.RefreshFrequency)
	}
	return nil
}

// GitLabReady reports whether all three GitLab credential variables are set.
func (c *Config) GitLabReady() bool {
	return c.GitLabBaseURL != "" && c.GitLabToken != "" && c.GitLabProjectID != ""
}

// EmailReady reports whether host/port/sender/recipient are all set,
// mirroring _is_email_logging_ready's presence check. EmailPassword is
// deliberately excluded: per spec §6, an empty password selects plain SMTP
// rather than disabling email outright (environment_variables.py's
// _is_email_logging_ready gates on the EMAIL_PASSWORD key's presence in
// os.environ, which is true even when its value is empty).
func (c *Config) EmailReady() bool {
	return c.EmailHost != "" && c.EmailPort != 0 && c.EmailSender != "" &&
		c.EmailRecipient != ""
}

// TelegramReady reports whether both Telegram credential variables are set,
// mirroring _is_telegram_logging_ready.
func (c *Config) TelegramReady() bool {
	return c.TelegramToken != "" && c.TelegramChatID != ""
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be an integer, got %q: %w", key, v, err)
	}
	return n, nil
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
