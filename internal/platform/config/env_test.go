package config

import "testing"

func TestParseEnv(t *testing.T) {
	type target struct {
		Addr string `env:"POND_TEST_ADDR"`
		Max  int    `env:"POND_TEST_MAX" envDefault:"8"`
	}

	t.Setenv("POND_TEST_ADDR", "localhost:9000")

	var cfg target
	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Addr != "localhost:9000" {
		t.Errorf("addr = %q, want %q", cfg.Addr, "localhost:9000")
	}
	if cfg.Max != 8 {
		t.Errorf("max = %d, want 8", cfg.Max)
	}
}

func TestParseEnvInvalidValue(t *testing.T) {
	type target struct {
		Max int `env:"POND_TEST_BAD_MAX"`
	}

	t.Setenv("POND_TEST_BAD_MAX", "not-a-number")

	var cfg target
	if err := ParseEnv(&cfg); err == nil {
		t.Fatal("expected parse error for non-numeric int")
	}
}
