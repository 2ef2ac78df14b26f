// Package maintenance implements the operator command that resets every
// angler's daily catch counter. It is meant to run from cron shortly
// after the day boundary; the server endpoint it calls is idempotent, so
// overlapping runs are harmless.
package maintenance

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds maintenance command configuration.
type Config struct {
	ServerURL string        `env:"POND_SERVER_URL" envDefault:"http://localhost:8080"`
	Token     string        `env:"POND_MAINTENANCE_TOKEN"`
	Timeout   time.Duration `env:"POND_MAINTENANCE_TIMEOUT" envDefault:"30s"`
}

// ParseConfig reads the environment and then flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	fs.StringVar(&cfg.ServerURL, "server-url", cfg.ServerURL, "pond server base URL")
	fs.StringVar(&cfg.Token, "token", cfg.Token, "maintenance token (default: POND_MAINTENANCE_TOKEN)")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "overall timeout")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run calls the reset endpoint and reports how many users were reset.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return errors.New("a maintenance token is required (-token or POND_MAINTENANCE_TOKEN)")
	}

	url := strings.TrimRight(cfg.ServerURL, "/") + "/internal/maintenance/reset-daily"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+cfg.Token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("call reset endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<12))
		fmt.Fprintf(errOut, "Error: server response: %s\n", strings.TrimSpace(string(body)))
		return fmt.Errorf("reset endpoint returned status %d", resp.StatusCode)
	}

	var result struct {
		UsersReset int64 `json:"users_reset"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	fmt.Fprintf(out, "reset daily catch counters for %d users\n", result.UsersReset)
	return nil
}
