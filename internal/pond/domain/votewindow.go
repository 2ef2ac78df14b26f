package domain

import "time"

// DefaultBoundaryHour is the hour of day, in the pond's reference time
// zone, at which one voting day rolls over into the next. The boundary is
// deliberately not midnight so late-night voting sessions stay in one
// window.
const DefaultBoundaryHour = 4

// VoteWindow is the half-open interval [Start, End) that scopes vote
// toggle behavior. Totals are never windowed; only the caller's "my vote"
// and the toggle decision are.
type VoteWindow struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window.
func (w VoteWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// WindowAt computes the vote window the given moment falls in, using the
// pond's reference location and boundary hour. The boundary for "today"
// is boundaryHour o'clock in loc; moments before it belong to the window
// that started yesterday.
func WindowAt(now time.Time, loc *time.Location, boundaryHour int) VoteWindow {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	boundary := time.Date(local.Year(), local.Month(), local.Day(), boundaryHour, 0, 0, 0, loc)
	if local.Before(boundary) {
		boundary = boundary.AddDate(0, 0, -1)
	}
	return VoteWindow{Start: boundary, End: boundary.AddDate(0, 0, 1)}
}

// VoteAction is the decision produced by the toggle state machine.
type VoteAction int

const (
	// VoteInsert records a new latest vote with the submitted value.
	VoteInsert VoteAction = iota
	// VoteRetract deletes the latest vote in the window; submitting the
	// same value twice in a row toggles the vote off.
	VoteRetract
)

// NextVoteAction decides how a submitted value combines with the caller's
// latest vote in the current window. latest is nil when no vote exists in
// the window.
func NextVoteAction(latest *Vote, submitted int) VoteAction {
	if latest != nil && latest.Value == submitted {
		return VoteRetract
	}
	return VoteInsert
}

// ValidVoteValue reports whether v is an accepted vote value.
func ValidVoteValue(v int) bool {
	return v == 1 || v == -1
}
