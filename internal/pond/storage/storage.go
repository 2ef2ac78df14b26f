// Package storage defines the persistence contract for the pond core.
//
// Mutating operations are deliberately coarse: every state transition and
// the event row describing it commit in one transaction, so a reader of
// the event log never observes a transition without its audit record or
// the other way around.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/lcroft/pond/internal/pond/domain"
)

// Sentinel errors returned by stores. Callers match with errors.Is.
var (
	// ErrNotFound indicates the referenced row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyCaught indicates the object's availability flag was
	// already false when the claim's conditional update ran.
	ErrAlreadyCaught = errors.New("object already caught")
	// ErrNotHolder indicates the caller has no open catch for the object.
	ErrNotHolder = errors.New("caller does not hold the object")
	// ErrNotCreator indicates the caller did not create the object.
	ErrNotCreator = errors.New("caller is not the object's creator")
	// ErrObjectHeld indicates the object is currently caught and cannot
	// be deleted.
	ErrObjectHeld = errors.New("object is currently held")
)

// User is the core's local record of an authenticated pond visitor.
// Rows are created lazily from session identities; the auth collaborator
// remains the source of truth for who the user is.
type User struct {
	ID           string
	Name         string
	DailyCatches int
}

// ObjectView is an object joined with its current holder, as served in
// pond snapshots.
type ObjectView struct {
	domain.Object
	HolderID   string     `json:"holder_id,omitempty"`
	HolderName string     `json:"holder_name,omitempty"`
	CaughtAt   *time.Time `json:"caught_at,omitempty"`
}

// VoteTally is the aggregate state returned after a vote toggle. Likes
// and Dislikes sum all history; MyVote is the caller's latest vote in the
// current window (0 when none).
type VoteTally struct {
	Likes    int `json:"likes"`
	Dislikes int `json:"dislikes"`
	MyVote   int `json:"my_vote"`
}

// Store is the pond object store.
type Store interface {
	// EnsureUser upserts the local user row for a session identity,
	// refreshing the display name when it changed upstream.
	EnsureUser(ctx context.Context, id, name string) error
	GetUser(ctx context.Context, id string) (User, error)

	// InsertObject adds an object to the pond and appends its ADD event.
	InsertObject(ctx context.Context, obj domain.Object) (domain.Event, error)
	GetObject(ctx context.Context, id string) (domain.Object, error)
	ListObjects(ctx context.Context) ([]ObjectView, error)

	// ClaimObject atomically flips the object's availability flag from
	// true to false, inserts the catch row, bumps the holder's daily
	// counter, and appends the CATCH event. Exactly one concurrent
	// caller wins; the rest get ErrAlreadyCaught and no rows change.
	ClaimObject(ctx context.Context, objectID, userID string) (domain.Catch, domain.Event, error)

	// ReleaseObject marks the caller's open catch released, returns the
	// object to the pond, decrements the daily counter (floored at
	// zero), and appends the RELEASE event. ErrNotHolder when the caller
	// has no open catch; nothing is mutated in that case.
	ReleaseObject(ctx context.Context, objectID, userID string) (domain.Event, error)

	// DeleteObject removes an available object created by the caller and
	// appends the DELETE event in the same transaction.
	DeleteObject(ctx context.Context, objectID, userID string) (domain.Event, error)

	// ToggleVote applies the per-window toggle state machine for one
	// (user, object) pair and returns the updated tally. The read of the
	// latest vote and the insert/delete acting on it happen in one
	// transaction.
	ToggleVote(ctx context.Context, objectID, userID string, value int, window domain.VoteWindow) (VoteTally, error)

	// ListEventsAfter returns up to limit events with id greater than
	// afterID, in ascending id order. This is the stream poll read.
	ListEventsAfter(ctx context.Context, afterID int64, limit int) ([]domain.Event, error)
	// ListRecentEvents returns the newest events first, with live-join
	// name fallback for rows whose snapshots are empty.
	ListRecentEvents(ctx context.Context, limit int) ([]domain.Event, error)
	// MaxEventID returns the highest event id, or zero when the log is
	// empty. New stream connections start from here.
	MaxEventID(ctx context.Context) (int64, error)

	// ResetDailyCatches zeroes every user's daily catch counter and
	// reports how many rows changed.
	ResetDailyCatches(ctx context.Context) (int64, error)
}
