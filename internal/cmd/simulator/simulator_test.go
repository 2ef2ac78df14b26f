package simulator

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"flag"
	"testing"
	"time"
)

func TestParseConfig(t *testing.T) {
	t.Setenv("POND_SERVER_URL", "http://env-host:9000")
	t.Setenv("POND_SIM_ANGLERS", "5")

	fs := flag.NewFlagSet("simulator", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-duration", "30s", "-seed", "7"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.ServerURL != "http://env-host:9000" {
		t.Errorf("server url = %q", cfg.ServerURL)
	}
	if cfg.Anglers != 5 {
		t.Errorf("anglers = %d, want 5", cfg.Anglers)
	}
	if cfg.Duration != 30*time.Second {
		t.Errorf("duration = %v", cfg.Duration)
	}
	if cfg.Seed != 7 {
		t.Errorf("seed = %d", cfg.Seed)
	}
}

func TestParseConfigRejectsZeroAnglers(t *testing.T) {
	t.Setenv("POND_SIM_ANGLERS", "0")

	fs := flag.NewFlagSet("simulator", flag.ContinueOnError)
	if _, err := ParseConfig(fs, nil); err == nil {
		t.Fatal("expected error for zero anglers")
	}
}

func TestSigningKeyFromConfig(t *testing.T) {
	t.Parallel()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	key, err := SigningKeyFromConfig(Config{
		SigningKey: base64.StdEncoding.EncodeToString(priv),
	})
	if err != nil {
		t.Fatalf("decode key: %v", err)
	}
	if !key.Equal(priv) {
		t.Error("decoded key does not match")
	}

	if _, err := SigningKeyFromConfig(Config{}); err == nil {
		t.Error("expected error for missing key")
	}
	if _, err := SigningKeyFromConfig(Config{SigningKey: "dG9vLXNob3J0"}); err == nil {
		t.Error("expected error for short key")
	}
}
