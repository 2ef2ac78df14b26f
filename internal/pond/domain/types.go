// Package domain holds the core pond types and the pure decision logic
// shared by the service and client layers.
package domain

import "time"

// Object is a fish floating in (or caught out of) the pond.
type Object struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	ImagePath string    `json:"image_path"`
	ThumbPath string    `json:"thumb_path"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	CreatorID string    `json:"creator_id"`
	CreatedAt time.Time `json:"created_at"`

	// InPond transitions true to false only via a successful claim and
	// back only via a release.
	InPond bool `json:"in_pond"`
}

// Catch tracks one angler's current or past possession of an object.
type Catch struct {
	ID       string    `json:"id"`
	ObjectID string    `json:"object_id"`
	UserID   string    `json:"user_id"`
	CaughtAt time.Time `json:"caught_at"`
	Released bool      `json:"released"`
}

// Vote is one user's sentiment toward an object. Rows are append-mostly:
// a value change within a window inserts a new row and the superseded row
// stays behind for all-time totals.
type Vote struct {
	ID        int64     `json:"id"`
	ObjectID  string    `json:"object_id"`
	UserID    string    `json:"user_id"`
	Value     int       `json:"value"` // +1 or -1
	CreatedAt time.Time `json:"created_at"`
}

// EventType tags a pond event.
type EventType string

const (
	EventAdd     EventType = "ADD"
	EventCatch   EventType = "CATCH"
	EventRelease EventType = "RELEASE"
	EventDelete  EventType = "DELETE"
)

// Event is an immutable log entry describing a state transition. The id is
// allocated from a single monotonic sequence and defines the canonical
// delivery order for the broadcast layer. Name fields are snapshots taken
// at write time; they never change even if the referenced user or object
// is later renamed or deleted.
type Event struct {
	ID         int64     `json:"id"`
	Type       EventType `json:"type"`
	CreatedAt  time.Time `json:"created_at"`
	ActorID    string    `json:"actor_id,omitempty"`
	OwnerID    string    `json:"owner_id,omitempty"`
	ObjectID   string    `json:"object_id,omitempty"`
	ActorName  string    `json:"actor_name"`
	OwnerName  string    `json:"owner_name"`
	ObjectName string    `json:"object_name"`
}
