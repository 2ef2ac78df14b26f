// Package service implements the pond core operations on top of the
// object store: claim arbitration, release, deletion, vote toggling, and
// the feed reads. Handlers stay thin; every rule lives here.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/lcroft/pond/internal/platform/errors"
	"github.com/lcroft/pond/internal/platform/id"
	"github.com/lcroft/pond/internal/pond/asset"
	"github.com/lcroft/pond/internal/pond/domain"
	"github.com/lcroft/pond/internal/pond/session"
	"github.com/lcroft/pond/internal/pond/storage"
)

// Config defines the service inputs.
type Config struct {
	Store        storage.Store
	Assets       *asset.Pipeline
	Location     *time.Location
	BoundaryHour int
	Clock        func() time.Time
}

// Service executes pond core operations.
type Service struct {
	store        storage.Store
	assets       *asset.Pipeline
	loc          *time.Location
	boundaryHour int
	clock        func() time.Time
	tracer       trace.Tracer
}

// New builds a configured service.
func New(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	boundaryHour := cfg.BoundaryHour
	if boundaryHour <= 0 || boundaryHour > 23 {
		boundaryHour = domain.DefaultBoundaryHour
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		store:        cfg.Store,
		assets:       cfg.Assets,
		loc:          loc,
		boundaryHour: boundaryHour,
		clock:        clock,
		tracer:       otel.Tracer("pond/service"),
	}, nil
}

func (s *Service) requireIdentity(ctx context.Context) (session.Identity, error) {
	identity, ok := session.FromContext(ctx)
	if !ok {
		return session.Identity{}, apperrors.New(apperrors.CodeSessionMissing, "operation requires an authenticated caller")
	}
	return identity, nil
}

// Claim attempts to catch an object for the calling angler. Exactly one
// of any set of concurrent claims succeeds; the rest surface
// CodeObjectAlreadyCaught.
func (s *Service) Claim(ctx context.Context, objectID string) (domain.Catch, domain.Event, error) {
	ctx, span := s.tracer.Start(ctx, "pond.Claim", trace.WithAttributes(attribute.String("pond.object_id", objectID)))
	defer span.End()

	identity, err := s.requireIdentity(ctx)
	if err != nil {
		return domain.Catch{}, domain.Event{}, err
	}
	catch, event, err := s.store.ClaimObject(ctx, objectID, identity.UserID)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			return domain.Catch{}, domain.Event{}, apperrors.New(apperrors.CodeObjectNotFound, "object does not exist")
		case errors.Is(err, storage.ErrAlreadyCaught):
			return domain.Catch{}, domain.Event{}, apperrors.New(apperrors.CodeObjectAlreadyCaught, "object was already claimed")
		default:
			return domain.Catch{}, domain.Event{}, apperrors.Wrap(apperrors.CodeStorage, "claim object", err)
		}
	}
	return catch, event, nil
}

// Release returns a held object to the pond. Releasing an object the
// caller does not hold is a no-op success so duplicate client requests
// stay harmless.
func (s *Service) Release(ctx context.Context, objectID string) error {
	ctx, span := s.tracer.Start(ctx, "pond.Release", trace.WithAttributes(attribute.String("pond.object_id", objectID)))
	defer span.End()

	identity, err := s.requireIdentity(ctx)
	if err != nil {
		return err
	}
	_, err = s.store.ReleaseObject(ctx, objectID, identity.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotHolder) {
			return nil
		}
		return apperrors.Wrap(apperrors.CodeStorage, "release object", err)
	}
	return nil
}

// Delete removes an object the caller created, provided it is floating
// free in the pond.
func (s *Service) Delete(ctx context.Context, objectID string) error {
	ctx, span := s.tracer.Start(ctx, "pond.Delete", trace.WithAttributes(attribute.String("pond.object_id", objectID)))
	defer span.End()

	identity, err := s.requireIdentity(ctx)
	if err != nil {
		return err
	}
	_, err = s.store.DeleteObject(ctx, objectID, identity.UserID)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			return apperrors.New(apperrors.CodeObjectNotFound, "object does not exist")
		case errors.Is(err, storage.ErrNotCreator):
			return apperrors.New(apperrors.CodeObjectNotOwned, "only the creator may delete an object")
		case errors.Is(err, storage.ErrObjectHeld):
			return apperrors.New(apperrors.CodeObjectHeld, "object is currently held")
		default:
			return apperrors.Wrap(apperrors.CodeStorage, "delete object", err)
		}
	}
	return nil
}

// React applies the vote toggle state machine for the caller in the
// current window and returns the updated tally.
func (s *Service) React(ctx context.Context, objectID string, value int) (storage.VoteTally, error) {
	ctx, span := s.tracer.Start(ctx, "pond.React", trace.WithAttributes(
		attribute.String("pond.object_id", objectID),
		attribute.Int("pond.vote", value),
	))
	defer span.End()

	identity, err := s.requireIdentity(ctx)
	if err != nil {
		return storage.VoteTally{}, err
	}
	if !domain.ValidVoteValue(value) {
		return storage.VoteTally{}, apperrors.New(apperrors.CodeVoteInvalidValue, "vote value must be +1 or -1")
	}
	window := domain.WindowAt(s.clock(), s.loc, s.boundaryHour)
	tally, err := s.store.ToggleVote(ctx, objectID, identity.UserID, value, window)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.VoteTally{}, apperrors.New(apperrors.CodeObjectNotFound, "object does not exist")
		}
		return storage.VoteTally{}, apperrors.Wrap(apperrors.CodeStorage, "toggle vote", err)
	}
	return tally, nil
}

// AddObject stores the uploaded fish image and inserts the object with
// its ADD event. This is the export endpoint the drawing tool posts to.
func (s *Service) AddObject(ctx context.Context, name string, png io.Reader) (domain.Object, error) {
	ctx, span := s.tracer.Start(ctx, "pond.AddObject")
	defer span.End()

	identity, err := s.requireIdentity(ctx)
	if err != nil {
		return domain.Object{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Object{}, apperrors.New(apperrors.CodeObjectNameEmpty, "object name is required")
	}
	if s.assets == nil {
		return domain.Object{}, fmt.Errorf("asset pipeline is not configured")
	}

	objectID := id.New()
	stored, err := s.assets.StorePNG(objectID, png)
	if err != nil {
		return domain.Object{}, err
	}

	obj := domain.Object{
		ID:        objectID,
		Name:      name,
		ImagePath: stored.ImagePath,
		ThumbPath: stored.ThumbPath,
		Width:     stored.Width,
		Height:    stored.Height,
		CreatorID: identity.UserID,
		CreatedAt: s.clock().UTC(),
		InPond:    true,
	}
	if _, err := s.store.InsertObject(ctx, obj); err != nil {
		return domain.Object{}, apperrors.Wrap(apperrors.CodeStorage, "insert object", err)
	}
	return obj, nil
}

// Snapshot returns every pond object with holder info for full-state
// client refreshes.
func (s *Service) Snapshot(ctx context.Context) ([]storage.ObjectView, error) {
	ctx, span := s.tracer.Start(ctx, "pond.Snapshot")
	defer span.End()

	views, err := s.store.ListObjects(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorage, "list objects", err)
	}
	return views, nil
}

// EnsureUser upserts the local user row for a verified session identity.
// The transport calls this once per authenticated request so display
// names track the auth collaborator.
func (s *Service) EnsureUser(ctx context.Context, identity session.Identity) error {
	if err := s.store.EnsureUser(ctx, identity.UserID, identity.Username); err != nil {
		return apperrors.Wrap(apperrors.CodeStorage, "ensure user", err)
	}
	return nil
}

// EventsAfter returns up to limit events past the cursor in id order.
// This is the stream distributor's poll read.
func (s *Service) EventsAfter(ctx context.Context, afterID int64, limit int) ([]domain.Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	events, err := s.store.ListEventsAfter(ctx, afterID, limit)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorage, "list events after", err)
	}
	return events, nil
}

// LatestEventID returns the current top of the event log, where fresh
// stream connections begin.
func (s *Service) LatestEventID(ctx context.Context) (int64, error) {
	id, err := s.store.MaxEventID(ctx)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodeStorage, "max event id", err)
	}
	return id, nil
}

// RecentEvents returns the newest feed entries first.
func (s *Service) RecentEvents(ctx context.Context, limit int) ([]domain.Event, error) {
	ctx, span := s.tracer.Start(ctx, "pond.RecentEvents")
	defer span.End()

	if limit <= 0 || limit > 100 {
		limit = 20
	}
	events, err := s.store.ListRecentEvents(ctx, limit)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorage, "list recent events", err)
	}
	return events, nil
}

// ResetDailyCatches zeroes every angler's daily counter. Authorization
// happens at the transport layer; the service only executes.
func (s *Service) ResetDailyCatches(ctx context.Context) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "pond.ResetDailyCatches")
	defer span.End()

	affected, err := s.store.ResetDailyCatches(ctx)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodeStorage, "reset daily catches", err)
	}
	return affected, nil
}
