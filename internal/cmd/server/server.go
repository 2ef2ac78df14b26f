// Package server wires configuration, storage, and the HTTP API into
// the pond server process.
package server

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"golang.org/x/net/netutil"

	"github.com/lcroft/pond/internal/platform/otel"
	"github.com/lcroft/pond/internal/pond/api"
	"github.com/lcroft/pond/internal/pond/asset"
	"github.com/lcroft/pond/internal/pond/service"
	"github.com/lcroft/pond/internal/pond/session"
	"github.com/lcroft/pond/internal/pond/storage/sqlite"
)

const shutdownGrace = 10 * time.Second

// Config holds the server command configuration.
type Config struct {
	HTTPAddr         string        `env:"POND_HTTP_ADDR" envDefault:"localhost:8080"`
	DBPath           string        `env:"POND_DB_PATH" envDefault:"data/pond.db"`
	AssetsDir        string        `env:"POND_ASSETS_DIR" envDefault:"data/assets"`
	Timezone         string        `env:"POND_TIMEZONE" envDefault:"UTC"`
	BoundaryHour     int           `env:"POND_BOUNDARY_HOUR" envDefault:"4"`
	MaintenanceToken string        `env:"POND_MAINTENANCE_TOKEN"`
	StreamPoll       time.Duration `env:"POND_STREAM_POLL" envDefault:"2s"`
	StreamHeartbeat  time.Duration `env:"POND_STREAM_HEARTBEAT" envDefault:"15s"`
	MaxConns         int           `env:"POND_MAX_CONNS" envDefault:"512"`
}

// ParseConfig reads the environment and then flags into a Config; flags
// win when both are set.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP listen address")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "path to the sqlite database")
	fs.StringVar(&cfg.AssetsDir, "assets-dir", cfg.AssetsDir, "directory for fish images")
	fs.StringVar(&cfg.Timezone, "timezone", cfg.Timezone, "IANA timezone for the daily vote window")
	fs.IntVar(&cfg.BoundaryHour, "boundary-hour", cfg.BoundaryHour, "local hour at which the vote day rolls over")
	fs.DurationVar(&cfg.StreamPoll, "stream-poll", cfg.StreamPoll, "event stream poll interval")
	fs.DurationVar(&cfg.StreamHeartbeat, "stream-heartbeat", cfg.StreamHeartbeat, "event stream heartbeat interval")
	fs.IntVar(&cfg.MaxConns, "max-conns", cfg.MaxConns, "maximum concurrent connections (0 = unlimited)")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the pond server and blocks until ctx is cancelled or the
// listener fails.
func Run(ctx context.Context, cfg Config) error {
	logger := log.New(os.Stdout, "server: ", log.LstdFlags)

	shutdownTracing, err := otel.Setup(ctx, "pond-server")
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Printf("flush traces: %v", err)
		}
	}()

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}

	sessionCfg, err := session.LoadConfigFromEnv(nil)
	if err != nil {
		return fmt.Errorf("load session config: %w", err)
	}

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Printf("close store: %v", err)
		}
	}()

	pipeline, err := asset.NewPipeline(cfg.AssetsDir)
	if err != nil {
		return fmt.Errorf("init asset pipeline: %w", err)
	}

	svc, err := service.New(service.Config{
		Store:        store,
		Assets:       pipeline,
		Location:     loc,
		BoundaryHour: cfg.BoundaryHour,
	})
	if err != nil {
		return fmt.Errorf("init service: %w", err)
	}

	handler := api.NewServer(api.Config{
		Service:          svc,
		Session:          sessionCfg,
		AssetDir:         pipeline.Dir(),
		MaintenanceToken: cfg.MaintenanceToken,
		StreamPoll:       cfg.StreamPoll,
		StreamHeartbeat:  cfg.StreamHeartbeat,
		Logger:           logger,
	}).Handler()

	listener, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.HTTPAddr, err)
	}
	if cfg.MaxConns > 0 {
		listener = netutil.LimitListener(listener, cfg.MaxConns)
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(listener)
	}()
	logger.Printf("listening on %s", listener.Addr())

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Print("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
