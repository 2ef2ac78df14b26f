// Package simulator runs simulated anglers against a pond server. It
// exercises the whole client kit: snapshot reconciliation, the event
// stream, bite detection, and the claim/release calls.
package simulator

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/caarlos0/env/v11"

	apperrors "github.com/lcroft/pond/internal/platform/errors"
	"github.com/lcroft/pond/internal/pond/client"
	"github.com/lcroft/pond/internal/pond/session"
	"github.com/lcroft/pond/internal/pond/storage"
)

// Config holds the simulator configuration.
type Config struct {
	ServerURL  string        `env:"POND_SERVER_URL" envDefault:"http://localhost:8080"`
	Anglers    int           `env:"POND_SIM_ANGLERS" envDefault:"3"`
	Duration   time.Duration `env:"POND_SIM_DURATION" envDefault:"1m"`
	SigningKey string        `env:"POND_SESSION_SIGNING_KEY"`
	Issuer     string        `env:"POND_SESSION_ISSUER" envDefault:"pond-auth"`
	Audience   string        `env:"POND_SESSION_AUDIENCE" envDefault:"pond"`
	Seed       int64
}

// ParseConfig reads the environment and then flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	fs.StringVar(&cfg.ServerURL, "server-url", cfg.ServerURL, "pond server base URL")
	fs.IntVar(&cfg.Anglers, "anglers", cfg.Anglers, "number of simulated anglers")
	fs.DurationVar(&cfg.Duration, "duration", cfg.Duration, "how long to run")
	fs.Int64Var(&cfg.Seed, "seed", cfg.Seed, "random seed (0 = time-based)")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if cfg.Anglers <= 0 {
		return Config{}, errors.New("-anglers must be > 0")
	}
	return cfg, nil
}

// SigningKeyFromConfig decodes the ed25519 private key the simulator
// signs its session tokens with. The server must be configured with the
// matching public key.
func SigningKeyFromConfig(cfg Config) (ed25519.PrivateKey, error) {
	raw := cfg.SigningKey
	if raw == "" {
		return nil, errors.New("POND_SESSION_SIGNING_KEY is required")
	}
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		decoded, err = base64.RawStdEncoding.DecodeString(raw)
	}
	if err != nil {
		return nil, fmt.Errorf("decode signing key: %w", err)
	}
	if len(decoded) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("signing key must be %d bytes", ed25519.PrivateKeySize)
	}
	return ed25519.PrivateKey(decoded), nil
}

// Stats counts what the anglers did.
type Stats struct {
	Catches  atomic.Int64
	Lost     atomic.Int64
	Releases atomic.Int64
	Votes    atomic.Int64
}

// Run drives the anglers until the duration elapses or ctx is done.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	key, err := SigningKeyFromConfig(cfg)
	if err != nil {
		return err
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	sessionCfg := session.Config{Issuer: cfg.Issuer, Audience: cfg.Audience}

	var tally Stats
	var wg sync.WaitGroup
	for i := 0; i < cfg.Anglers; i++ {
		identity := session.Identity{
			UserID:   fmt.Sprintf("sim-angler-%d", i+1),
			Username: fmt.Sprintf("Angler %d", i+1),
		}
		token, err := session.Issue(key, sessionCfg, identity, cfg.Duration+time.Minute)
		if err != nil {
			return fmt.Errorf("issue token for %s: %w", identity.UserID, err)
		}

		wg.Add(1)
		go func(token string, rng *rand.Rand) {
			defer wg.Done()
			runAngler(ctx, cfg.ServerURL, token, rng, &tally)
		}(token, rand.New(rand.NewSource(seed+int64(i))))
	}
	wg.Wait()

	fmt.Fprintf(out, "catches=%d lost_races=%d releases=%d votes=%d\n",
		tally.Catches.Load(), tally.Lost.Load(), tally.Releases.Load(), tally.Votes.Load())
	return nil
}

// runAngler is one simulated player: a reconciler keeps its arena in
// sync, the hook wanders, and the bite detector decides when to claim.
// The arena is touched only from this goroutine; the reconciler hands
// snapshots over via a channel.
func runAngler(ctx context.Context, serverURL, token string, rng *rand.Rand, tally *Stats) {
	const arenaW, arenaH = 800.0, 600.0

	c := client.New(serverURL, token, nil)
	arena := client.NewArena(arenaW, arenaH, rng)

	snapshots := make(chan []storage.ObjectView, 1)
	reconciler := client.NewReconciler(client.ReconcilerConfig{
		Fetch: c.Snapshot,
		Apply: func(views []storage.ObjectView) {
			// Keep only the latest pending snapshot.
			select {
			case <-snapshots:
			default:
			}
			snapshots <- views
		},
	})
	go reconciler.Run(ctx)

	stream := c.OpenStream(ctx)
	go func() {
		for range stream.Events() {
			reconciler.Notify()
		}
	}()
	reconciler.Notify()

	detector := client.NewBiteDetector(client.BiteConfig{
		MinHold:  500 * time.Millisecond,
		Cooldown: time.Second,
		Chance:   func() bool { return rng.Float64() < 0.6 },
	})
	detector.HookDown(rng.Float64()*arenaW, rng.Float64()*arenaH)

	var heldObject string
	var releaseAt time.Time

	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case views := <-snapshots:
			arena.Merge(views)
			continue
		case now := <-tick.C:
			arena.Step(0.1)

			if heldObject != "" {
				if now.After(releaseAt) {
					if err := c.Release(ctx, heldObject); err == nil {
						tally.Releases.Add(1)
					}
					heldObject = ""
					detector.HookDown(rng.Float64()*arenaW, rng.Float64()*arenaH)
				}
				continue
			}

			var candidates []client.BiteCandidate
			for _, sprite := range arena.Sprites() {
				if !sprite.Object.InPond {
					continue
				}
				candidates = append(candidates, client.BiteCandidate{
					ID: sprite.Object.ID,
					X:  sprite.X, Y: sprite.Y,
					VX: sprite.VX, VY: sprite.VY,
				})
			}

			objectID, confirmed := detector.Observe(now, candidates)
			if !confirmed {
				continue
			}

			// Suppress refetches while the claim is in flight so a
			// re-render cannot yank the candidate mid-interaction.
			reconciler.Freeze(2 * time.Second)
			result, err := c.Catch(ctx, objectID)
			detector.Reset()
			switch {
			case err == nil:
				tally.Catches.Add(1)
				heldObject = result.Catch.ObjectID
				releaseAt = now.Add(time.Duration(2+rng.Intn(6)) * time.Second)
				if rng.Float64() < 0.5 {
					value := 1
					if rng.Float64() < 0.3 {
						value = -1
					}
					if _, err := c.Vote(ctx, objectID, value); err == nil {
						tally.Votes.Add(1)
					}
				}
			case errors.Is(err, apperrors.New(apperrors.CodeObjectAlreadyCaught, "")):
				tally.Lost.Add(1)
				detector.HookDown(rng.Float64()*arenaW, rng.Float64()*arenaH)
			default:
				detector.HookDown(rng.Float64()*arenaW, rng.Float64()*arenaH)
			}
			reconciler.Notify()
		}
	}
}
