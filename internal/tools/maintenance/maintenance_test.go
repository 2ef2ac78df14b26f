package maintenance

import (
	"bytes"
	"context"
	"flag"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestParseConfigFlagsOverrideEnv(t *testing.T) {
	t.Setenv("POND_SERVER_URL", "http://env-host:9999")
	t.Setenv("POND_MAINTENANCE_TOKEN", "env-token")

	fs := flag.NewFlagSet("maintenance", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-server-url", "http://flag-host:8080", "-timeout", "5s"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.ServerURL != "http://flag-host:8080" {
		t.Errorf("server url = %q", cfg.ServerURL)
	}
	if cfg.Token != "env-token" {
		t.Errorf("token = %q, want env value", cfg.Token)
	}
	if cfg.Timeout != 5*time.Second {
		t.Errorf("timeout = %v", cfg.Timeout)
	}
}

func TestRunRequiresToken(t *testing.T) {
	t.Parallel()

	err := Run(context.Background(), Config{ServerURL: "http://localhost:1"}, nil, nil)
	if err == nil || !strings.Contains(err.Error(), "token") {
		t.Fatalf("err = %v, want missing token error", err)
	}
}

func TestRunCallsResetEndpoint(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/internal/maintenance/reset-daily" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"users_reset": 42}`))
	}))
	defer server.Close()

	var out bytes.Buffer
	err := Run(context.Background(), Config{ServerURL: server.URL, Token: "secret"}, &out, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "42 users") {
		t.Errorf("output = %q", out.String())
	}
}

func TestRunSurfacesServerError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code":"MAINTENANCE_UNAUTHORIZED"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	var errOut bytes.Buffer
	err := Run(context.Background(), Config{ServerURL: server.URL, Token: "wrong"}, nil, &errOut)
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("err = %v, want status error", err)
	}
	if !strings.Contains(errOut.String(), "MAINTENANCE_UNAUTHORIZED") {
		t.Errorf("errOut = %q", errOut.String())
	}
}
