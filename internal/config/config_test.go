package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Minimal(t *testing.T) {
	path := writeConfig(t, `{
		"telegram": {"token": "123:abc"}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Telegram.Token != "123:abc" {
		t.Errorf("token = %q", cfg.Telegram.Token)
	}
	// Defaults applied under the parsed file.
	if cfg.Telegram.MaxAttachmentBytes != 10*1024*1024 {
		t.Errorf("maxAttachmentBytes = %d", cfg.Telegram.MaxAttachmentBytes)
	}
	if cfg.ImgBB.BaseURL != "https://i.ibb.co/" {
		t.Errorf("baseUrl = %q", cfg.ImgBB.BaseURL)
	}
}

func TestLoad_MissingToken(t *testing.T) {
	path := writeConfig(t, `{}`)
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "telegram.token") {
		t.Errorf("expected token validation error, got %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_RELAY_TOKEN", "999:zzz")
	path := writeConfig(t, `{
		"telegram": {"token": "${TEST_RELAY_TOKEN}"}
	}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Telegram.Token != "999:zzz" {
		t.Errorf("token = %q", cfg.Telegram.Token)
	}
}

func TestLoad_EnvDefault(t *testing.T) {
	path := writeConfig(t, `{
		"telegram": {"token": "${TEST_RELAY_UNSET_VAR:-fallback-token}"}
	}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Telegram.Token != "fallback-token" {
		t.Errorf("token = %q", cfg.Telegram.Token)
	}
}

func TestLoad_EnvOverrideBeatsFile(t *testing.T) {
	t.Setenv("TGRELAY_TELEGRAM_TOKEN", "env:token")
	t.Setenv("TGRELAY_IMGBB_KEY", "env-key")
	path := writeConfig(t, `{
		"telegram": {"token": "file:token"},
		"imgbb": {"key": "file-key"}
	}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Telegram.Token != "env:token" {
		t.Errorf("token = %q, want env override", cfg.Telegram.Token)
	}
	if cfg.ImgBB.Key != "env-key" {
		t.Errorf("imgbb key = %q, want env override", cfg.ImgBB.Key)
	}
}

func TestValidate_ImgBBExpirationRange(t *testing.T) {
	cfg := Defaults()
	cfg.Telegram.Token = "t"
	cfg.ImgBB.Key = "k"
	cfg.ImgBB.ExpirationSeconds = 10
	if err := Validate(cfg); err == nil || !strings.Contains(err.Error(), "expirationSeconds") {
		t.Errorf("expected expiration validation error, got %v", err)
	}
}

func TestValidate_ExpirationIgnoredWithoutKey(t *testing.T) {
	cfg := Defaults()
	cfg.Telegram.Token = "t"
	cfg.ImgBB.ExpirationSeconds = 10
	if err := Validate(cfg); err != nil {
		t.Errorf("expiration should not be validated when enrichment is disabled: %v", err)
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Telegram.PollTimeoutSeconds = 0
	cfg.General.LogLevel = "loud"
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"telegram.token", "pollTimeoutSeconds", "logLevel"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q: %v", want, err)
		}
	}
}

func TestExpandEnvVars_KeepsUnknown(t *testing.T) {
	got := ExpandEnvVars("x ${DEFINITELY_NOT_SET_12345} y")
	if got != "x ${DEFINITELY_NOT_SET_12345} y" {
		t.Errorf("got %q", got)
	}
}
