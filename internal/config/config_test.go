package config

import (
	"os"
	"path/filepath"
	"testing"
)

func withEnv(t *testing.T, kv map[string]string, fn func()) {
	t.Helper()
	for k, v := range kv {
		t.Setenv(k, v)
	}
	fn()
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.VersionsFrontier != 0 {
		t.Errorf("expected default frontier 0, got %d", cfg.VersionsFrontier)
	}
	if cfg.RefreshFrequency.Seconds() != 300 {
		t.Errorf("expected default refresh 300s, got %s", cfg.RefreshFrequency)
	}
	if !cfg.LatestPreference {
		t.Errorf("expected default latest preference true")
	}
}

func TestLoadOverrides(t *testing.T) {
	withEnv(t, map[string]string{
		"VERSIONS_FRONTIER":             "2",
		"REFRESH_FREQUENCY_IN_SECONDS":  "60",
		"LATEST_PREFERENCE":             "false",
	}, func() {
		cfg, err := Load()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.VersionsFrontier != 2 {
			t.Errorf("expected frontier 2, got %d", cfg.VersionsFrontier)
		}
		if cfg.RefreshFrequency.Seconds() != 60 {
			t.Errorf("expected refresh 60s, got %s", cfg.RefreshFrequency)
		}
		if cfg.LatestPreference {
			t.Errorf("expected latest preference false")
		}
	})
}

func TestLoadInvalidFrontierErrors(t *testing.T) {
	withEnv(t, map[string]string{"VERSIONS_FRONTIER": "not-a-number"}, func() {
		if _, err := Load(); err == nil {
			t.Errorf("expected error for non-integer VERSIONS_FRONTIER")
		}
	})
}

func TestValidateRejectsNegativeFrontier(t *testing.T) {
	cfg := &Config{VersionsFrontier: -1, RefreshFrequency: 1}
	if err := cfg.Validate(); err == nil {
		t.Errorf("expected error for negative frontier")
	}
}

func TestValidateRejectsZeroRefresh(t *testing.T) {
	cfg := &Config{RefreshFrequency: 0}
	if err := cfg.Validate(); err == nil {
		t.Errorf("expected error for zero refresh frequency")
	}
}

func TestGitLabReady(t *testing.T) {
	cfg := &Config{}
	if cfg.GitLabReady() {
		t.Errorf("expected not ready with no credentials")
	}
	cfg.GitLabBaseURL, cfg.GitLabToken, cfg.GitLabProjectID = "https://gitlab.com", "tok", "123"
	if !cfg.GitLabReady() {
		t.Errorf("expected ready with all three credentials")
	}
}

func TestEmailReady(t *testing.T) {
	cfg := &Config{EmailHost: "smtp.example.com", EmailPort: 587, EmailSender: "a@example.com"}
	if cfg.EmailReady() {
		t.Errorf("expected not ready with missing recipient")
	}
	cfg.EmailRecipient, cfg.EmailPassword = "b@example.com", "secret"
	if !cfg.EmailReady() {
		t.Errorf("expected ready with host/port/sender/recipient/password set")
	}
}

func TestEmailReadyWithEmptyPasswordSelectsPlainSMTP(t *testing.T) {
	cfg := &Config{
		EmailHost:      "smtp.example.com",
		EmailPort:      25,
		EmailSender:    "a@example.com",
		EmailRecipient: "b@example.com",
		EmailPassword:  "",
	}
	if !cfg.EmailReady() {
		t.Errorf("expected ready with an empty password: spec §6 selects plain SMTP, not disablement")
	}
}

func TestLoadWithFileFillsUnsetEnvVars(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yamlBody := "versionsFrontier: 3\nrefreshFrequencySeconds: 120\ngitlabBaseURL: https://gitlab.example.com\ngitlabToken: file-token\ngitlabProjectID: \"42\"\n"
	if err := os.WriteFile(path, []byte(yamlBody), 0o644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	cfg, err := LoadWithFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.VersionsFrontier != 3 {
		t.Errorf("expected frontier 3 from file, got %d", cfg.VersionsFrontier)
	}
	if cfg.RefreshFrequency.Seconds() != 120 {
		t.Errorf("expected refresh 120s from file, got %s", cfg.RefreshFrequency)
	}
	if !cfg.GitLabReady() {
		t.Errorf("expected GitLab credentials to be filled in from file")
	}
}

func TestLoadWithFileEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("versionsFrontier: 3\n"), 0o644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	withEnv(t, map[string]string{"VERSIONS_FRONTIER": "7"}, func() {
		cfg, err := LoadWithFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.VersionsFrontier != 7 {
			t.Errorf("expected env var to win over file, got %d", cfg.VersionsFrontier)
		}
	})
}

func TestLoadWithFileMissingPathErrors(t *testing.T) {
	if _, err := LoadWithFile(filepath.Join(t.TempDir(), "does-not-exist.yaml")); err == nil {
		t.Errorf("expected error for missing config file")
	}
}

func TestTelegramReady(t *testing.T) {
	cfg := &Config{TelegramToken: "tok"}
	if cfg.TelegramReady() {
		t.Errorf("expected not ready with missing chat id")
	}
	cfg.TelegramChatID = "chat"
	if !cfg.TelegramReady() {
		t.Errorf("expected ready with both credentials")
	}
}
