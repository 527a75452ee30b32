package config

import (
	"strings"
	"testing"
)

type envTestConfig struct {
	TickRate int `env:"SKIRMISH_SPACE_TEST_TICK_RATE" envDefault:"33"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg envTestConfig

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.TickRate != 33 {
		t.Fatalf("expected default tick rate 33, got %d", cfg.TickRate)
	}
}

func TestParseEnvOverride(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("SKIRMISH_SPACE_TEST_TICK_RATE", "66")

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.TickRate != 66 {
		t.Fatalf("expected tick rate 66, got %d", cfg.TickRate)
	}
}

func TestParseEnvError(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("SKIRMISH_SPACE_TEST_TICK_RATE", "not-an-int")

	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}
