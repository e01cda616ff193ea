package config

import (
	"testing"
	"time"
)

type testConfig struct {
	HTTP struct {
		Port string `yaml:"port"`
	} `yaml:"http"`
	Auth struct {
		Secret   string        `yaml:"secret" env:"TEST_AUTH_SECRET"`
		TokenTTL time.Duration `yaml:"tokenTtl"`
	} `yaml:"auth"`
	Tags []string `yaml:"tags"`
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("TEST_AUTH_SECRET", "hunter2")
	t.Setenv("AUTH_TOKENTTL", "45m")
	t.Setenv("TAGS", "a, b ,c")

	var cfg testConfig
	if err := Load(&cfg); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.HTTP.Port != "9090" {
		t.Fatalf("expected derived env key override, got %q", cfg.HTTP.Port)
	}
	if cfg.Auth.Secret != "hunter2" {
		t.Fatalf("expected explicit env tag override, got %q", cfg.Auth.Secret)
	}
	if cfg.Auth.TokenTTL != 45*time.Minute {
		t.Fatalf("expected duration parsing, got %v", cfg.Auth.TokenTTL)
	}
	if len(cfg.Tags) != 3 || cfg.Tags[1] != "b" {
		t.Fatalf("expected trimmed string slice, got %v", cfg.Tags)
	}
}

func TestLoadRejectsNonStruct(t *testing.T) {
	if err := Load(nil); err == nil {
		t.Fatal("expected error for nil target")
	}
	var s string
	if err := Load(&s); err == nil {
		t.Fatal("expected error for non-struct target")
	}
}
