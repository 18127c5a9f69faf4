package config

import "testing"

func TestGetByPath(t *testing.T) {
	cfg := Defaults()
	cfg.Telegram.PollTimeoutSeconds = 45

	val, err := GetByPath(cfg, "telegram.pollTimeoutSeconds")
	if err != nil {
		t.Fatal(err)
	}
	if n, ok := val.(float64); !ok || n != 45 {
		t.Errorf("got %v (%T), want 45", val, val)
	}

	if _, err := GetByPath(cfg, "telegram.nope"); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestSetByPath(t *testing.T) {
	cfg := Defaults()

	if err := SetByPath(cfg, "general.logLevel", "debug"); err != nil {
		t.Fatal(err)
	}
	if cfg.General.LogLevel != "debug" {
		t.Errorf("logLevel = %q", cfg.General.LogLevel)
	}

	// Numeric strings are coerced.
	if err := SetByPath(cfg, "telegram.pollTimeoutSeconds", "60"); err != nil {
		t.Fatal(err)
	}
	if cfg.Telegram.PollTimeoutSeconds != 60 {
		t.Errorf("pollTimeoutSeconds = %d", cfg.Telegram.PollTimeoutSeconds)
	}

	// Booleans too.
	if err := SetByPath(cfg, "metrics.enabled", "true"); err != nil {
		t.Fatal(err)
	}
	if !cfg.Metrics.Enabled {
		t.Error("metrics.enabled not set")
	}
}

func TestSanitizeMasksSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.Telegram.Token = "123456789:AAFakeTokenValueHere"
	cfg.ImgBB.Key = "0123456789abcdef"

	out := Sanitize(cfg)
	if out.Telegram.Token == cfg.Telegram.Token {
		t.Error("token not masked")
	}
	if out.ImgBB.Key == cfg.ImgBB.Key {
		t.Error("imgbb key not masked")
	}
	// Original untouched.
	if cfg.Telegram.Token != "123456789:AAFakeTokenValueHere" {
		t.Error("sanitize mutated the original config")
	}
}
