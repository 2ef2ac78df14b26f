package client

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/lcroft/pond/internal/pond/storage"
)

const (
	defaultDebounce = 120 * time.Millisecond
	defaultFallback = 15 * time.Second
)

// Reconciler keeps a local pond view in sync with the server. Stream
// events only trigger a debounced full snapshot refetch; the push
// payload is a log entry, not an object diff, so patching locally from
// it is not attempted. A slow fallback poll covers missed pushes.
type Reconciler struct {
	fetch func(ctx context.Context) ([]storage.ObjectView, error)
	apply func(views []storage.ObjectView)

	debounce time.Duration
	fallback time.Duration
	clock    func() time.Time

	// freezeUntil suppresses refreshes while the local user is mid-claim.
	// Stored as unix nanos; a zero value means not frozen. The suppression
	// always expires on its own.
	freezeUntil atomic.Int64

	kick chan struct{}
}

// ReconcilerConfig wires a reconciler. Fetch and Apply are required;
// zero durations take the defaults.
type ReconcilerConfig struct {
	Fetch    func(ctx context.Context) ([]storage.ObjectView, error)
	Apply    func(views []storage.ObjectView)
	Debounce time.Duration
	Fallback time.Duration
	Clock    func() time.Time
}

// NewReconciler builds a reconciler; call Run to start it.
func NewReconciler(cfg ReconcilerConfig) *Reconciler {
	r := &Reconciler{
		fetch:    cfg.Fetch,
		apply:    cfg.Apply,
		debounce: cfg.Debounce,
		fallback: cfg.Fallback,
		clock:    cfg.Clock,
		kick:     make(chan struct{}, 1),
	}
	if r.debounce <= 0 {
		r.debounce = defaultDebounce
	}
	if r.fallback <= 0 {
		r.fallback = defaultFallback
	}
	if r.clock == nil {
		r.clock = time.Now
	}
	return r
}

// Notify signals that a pond event arrived. Bursts collapse into one
// pending trigger; anything arriving while a refresh is in flight
// coalesces into at most one follow-up refresh.
func (r *Reconciler) Notify() {
	select {
	case r.kick <- struct{}{}:
	default:
	}
}

// Freeze suppresses automatic refreshes for the given duration, e.g.
// while a claim attempt is in flight. Calling again extends or shortens
// the window; it always expires.
func (r *Reconciler) Freeze(d time.Duration) {
	r.freezeUntil.Store(r.clock().Add(d).UnixNano())
}

func (r *Reconciler) frozenFor() time.Duration {
	until := r.freezeUntil.Load()
	if until == 0 {
		return 0
	}
	remaining := time.Unix(0, until).Sub(r.clock())
	if remaining <= 0 {
		return 0
	}
	return remaining
}

// Run drives the loop until ctx is done. Fetch errors are dropped; the
// next trigger or fallback tick retries.
func (r *Reconciler) Run(ctx context.Context) {
	debounce := time.NewTimer(r.debounce)
	if !debounce.Stop() {
		<-debounce.C
	}
	fallback := time.NewTicker(r.fallback)
	defer fallback.Stop()

	armDebounce := func(d time.Duration) {
		if !debounce.Stop() {
			select {
			case <-debounce.C:
			default:
			}
		}
		debounce.Reset(d)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.kick:
			armDebounce(r.debounce)
		case <-debounce.C:
			if wait := r.frozenFor(); wait > 0 {
				armDebounce(wait)
				continue
			}
			r.refresh(ctx)
		case <-fallback.C:
			if r.frozenFor() > 0 {
				continue
			}
			r.refresh(ctx)
		}
	}
}

func (r *Reconciler) refresh(ctx context.Context) {
	views, err := r.fetch(ctx)
	if err != nil {
		return
	}
	r.apply(views)
}
