// Package sqlite provides the SQLite-backed pond object store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lcroft/pond/internal/platform/id"
	sqlitemigrate "github.com/lcroft/pond/internal/platform/storage/sqlitemigrate"
	"github.com/lcroft/pond/internal/pond/domain"
	"github.com/lcroft/pond/internal/pond/storage"
	"github.com/lcroft/pond/internal/pond/storage/sqlite/migrations"
)

// Store persists pond state in SQLite.
type Store struct {
	sqlDB *sql.DB
	clock func() time.Time
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite pond store and applies embedded migrations.
//
// The pool is capped at a single connection: SQLite allows one writer at
// a time and the claim/toggle transactions rely on the database, not the
// pool, as the serialization point.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.Apply(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, clock: time.Now}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// SetClock overrides the store clock. Intended for tests.
func (s *Store) SetClock(clock func() time.Time) {
	if clock != nil {
		s.clock = clock
	}
}

func (s *Store) now() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock().UTC()
}

// EnsureUser upserts the local user row for a session identity.
func (s *Store) EnsureUser(ctx context.Context, userID, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	userID = strings.TrimSpace(userID)
	name = strings.TrimSpace(name)
	if userID == "" {
		return fmt.Errorf("user id is required")
	}
	nowMillis := toMillis(s.now())
	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO users (id, display_name, daily_catches, created_at, updated_at)
		 VALUES (?, ?, 0, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   display_name = excluded.display_name,
		   updated_at = excluded.updated_at
		 WHERE users.display_name <> excluded.display_name`,
		userID, name, nowMillis, nowMillis,
	)
	if err != nil {
		return fmt.Errorf("ensure user: %w", err)
	}
	return nil
}

// GetUser returns one user row.
func (s *Store) GetUser(ctx context.Context, userID string) (storage.User, error) {
	if err := ctx.Err(); err != nil {
		return storage.User{}, err
	}
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, display_name, daily_catches FROM users WHERE id = ?`,
		strings.TrimSpace(userID),
	)
	var user storage.User
	if err := row.Scan(&user.ID, &user.Name, &user.DailyCatches); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.User{}, storage.ErrNotFound
		}
		return storage.User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// InsertObject adds an object to the pond and appends its ADD event in
// the same transaction.
func (s *Store) InsertObject(ctx context.Context, obj domain.Object) (domain.Event, error) {
	if err := ctx.Err(); err != nil {
		return domain.Event{}, err
	}
	if strings.TrimSpace(obj.ID) == "" {
		return domain.Event{}, fmt.Errorf("object id is required")
	}
	if strings.TrimSpace(obj.Name) == "" {
		return domain.Event{}, fmt.Errorf("object name is required")
	}
	createdAt := obj.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Event{}, fmt.Errorf("begin insert object: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO pond_objects (id, name, image_path, thumb_path, width, height, creator_id, in_pond, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?)`,
		obj.ID, obj.Name, obj.ImagePath, obj.ThumbPath, obj.Width, obj.Height, obj.CreatorID, toMillis(createdAt),
	); err != nil {
		return domain.Event{}, fmt.Errorf("insert object: %w", err)
	}

	creatorName := s.userNameTx(ctx, tx, obj.CreatorID)
	event, err := s.appendEventTx(ctx, tx, domain.Event{
		Type:       domain.EventAdd,
		CreatedAt:  createdAt,
		ActorID:    obj.CreatorID,
		OwnerID:    obj.CreatorID,
		ObjectID:   obj.ID,
		ActorName:  creatorName,
		OwnerName:  creatorName,
		ObjectName: obj.Name,
	})
	if err != nil {
		return domain.Event{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Event{}, fmt.Errorf("commit insert object: %w", err)
	}
	return event, nil
}

// GetObject returns one object.
func (s *Store) GetObject(ctx context.Context, objectID string) (domain.Object, error) {
	if err := ctx.Err(); err != nil {
		return domain.Object{}, err
	}
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, name, image_path, thumb_path, width, height, creator_id, in_pond, created_at
		   FROM pond_objects WHERE id = ?`,
		strings.TrimSpace(objectID),
	)
	return scanObject(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanObject(row rowScanner) (domain.Object, error) {
	var obj domain.Object
	var inPond int
	var createdAt int64
	err := row.Scan(&obj.ID, &obj.Name, &obj.ImagePath, &obj.ThumbPath, &obj.Width, &obj.Height, &obj.CreatorID, &inPond, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Object{}, storage.ErrNotFound
		}
		return domain.Object{}, fmt.Errorf("scan object: %w", err)
	}
	obj.InPond = inPond != 0
	obj.CreatedAt = fromMillis(createdAt)
	return obj, nil
}

// ListObjects returns every object with its current holder, if any.
func (s *Store) ListObjects(ctx context.Context) ([]storage.ObjectView, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT o.id, o.name, o.image_path, o.thumb_path, o.width, o.height, o.creator_id, o.in_pond, o.created_at,
		        COALESCE(c.user_id, ''), COALESCE(u.display_name, ''), c.caught_at
		   FROM pond_objects o
		   LEFT JOIN catches c ON c.object_id = o.id AND c.released = 0
		   LEFT JOIN users u ON u.id = c.user_id
		  ORDER BY o.created_at ASC, o.id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}
	defer rows.Close()

	var views []storage.ObjectView
	for rows.Next() {
		var view storage.ObjectView
		var inPond int
		var createdAt int64
		var caughtAt sql.NullInt64
		if err := rows.Scan(
			&view.ID, &view.Name, &view.ImagePath, &view.ThumbPath, &view.Width, &view.Height,
			&view.CreatorID, &inPond, &createdAt,
			&view.HolderID, &view.HolderName, &caughtAt,
		); err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}
		view.InPond = inPond != 0
		view.CreatedAt = fromMillis(createdAt)
		if caughtAt.Valid {
			at := fromMillis(caughtAt.Int64)
			view.CaughtAt = &at
		}
		views = append(views, view)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}
	return views, nil
}

// ClaimObject implements the atomic claim protocol. The conditional
// update on in_pond is the serialization point: whichever transaction
// flips the flag wins, every other concurrent caller sees zero affected
// rows and backs out without writing anything.
func (s *Store) ClaimObject(ctx context.Context, objectID, userID string) (domain.Catch, domain.Event, error) {
	if err := ctx.Err(); err != nil {
		return domain.Catch{}, domain.Event{}, err
	}
	objectID = strings.TrimSpace(objectID)
	userID = strings.TrimSpace(userID)
	if objectID == "" || userID == "" {
		return domain.Catch{}, domain.Event{}, fmt.Errorf("object id and user id are required")
	}
	now := s.now()

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Catch{}, domain.Event{}, fmt.Errorf("begin claim: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(
		ctx,
		`UPDATE pond_objects SET in_pond = 0 WHERE id = ? AND in_pond = 1`,
		objectID,
	)
	if err != nil {
		return domain.Catch{}, domain.Event{}, fmt.Errorf("claim conditional update: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Catch{}, domain.Event{}, fmt.Errorf("claim rows affected: %w", err)
	}
	if affected == 0 {
		var one int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM pond_objects WHERE id = ?`, objectID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Catch{}, domain.Event{}, storage.ErrNotFound
		}
		if err != nil {
			return domain.Catch{}, domain.Event{}, fmt.Errorf("claim lookup: %w", err)
		}
		return domain.Catch{}, domain.Event{}, storage.ErrAlreadyCaught
	}

	catch := domain.Catch{
		ID:       id.New(),
		ObjectID: objectID,
		UserID:   userID,
		CaughtAt: now,
	}
	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO catches (id, object_id, user_id, caught_at, released) VALUES (?, ?, ?, ?, 0)`,
		catch.ID, catch.ObjectID, catch.UserID, toMillis(catch.CaughtAt),
	); err != nil {
		return domain.Catch{}, domain.Event{}, fmt.Errorf("insert catch: %w", err)
	}
	if _, err := tx.ExecContext(
		ctx,
		`UPDATE users SET daily_catches = daily_catches + 1 WHERE id = ?`,
		userID,
	); err != nil {
		return domain.Catch{}, domain.Event{}, fmt.Errorf("bump daily catches: %w", err)
	}

	objectName, ownerID := s.objectSnapshotTx(ctx, tx, objectID)
	event, err := s.appendEventTx(ctx, tx, domain.Event{
		Type:       domain.EventCatch,
		CreatedAt:  now,
		ActorID:    userID,
		OwnerID:    ownerID,
		ObjectID:   objectID,
		ActorName:  s.userNameTx(ctx, tx, userID),
		OwnerName:  s.userNameTx(ctx, tx, ownerID),
		ObjectName: objectName,
	})
	if err != nil {
		return domain.Catch{}, domain.Event{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Catch{}, domain.Event{}, fmt.Errorf("commit claim: %w", err)
	}
	return catch, event, nil
}

// ReleaseObject closes the caller's open catch and returns the object to
// the pond. ErrNotHolder when the caller has no open catch; the
// transaction is rolled back and nothing changes.
func (s *Store) ReleaseObject(ctx context.Context, objectID, userID string) (domain.Event, error) {
	if err := ctx.Err(); err != nil {
		return domain.Event{}, err
	}
	objectID = strings.TrimSpace(objectID)
	userID = strings.TrimSpace(userID)
	now := s.now()

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Event{}, fmt.Errorf("begin release: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var catchID string
	err = tx.QueryRowContext(
		ctx,
		`SELECT id FROM catches WHERE object_id = ? AND user_id = ? AND released = 0`,
		objectID, userID,
	).Scan(&catchID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Event{}, storage.ErrNotHolder
	}
	if err != nil {
		return domain.Event{}, fmt.Errorf("find open catch: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE catches SET released = 1 WHERE id = ?`, catchID); err != nil {
		return domain.Event{}, fmt.Errorf("release catch: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE pond_objects SET in_pond = 1 WHERE id = ?`, objectID); err != nil {
		return domain.Event{}, fmt.Errorf("return object: %w", err)
	}
	if _, err := tx.ExecContext(
		ctx,
		`UPDATE users SET daily_catches = MAX(daily_catches - 1, 0) WHERE id = ?`,
		userID,
	); err != nil {
		return domain.Event{}, fmt.Errorf("drop daily catches: %w", err)
	}

	objectName, ownerID := s.objectSnapshotTx(ctx, tx, objectID)
	event, err := s.appendEventTx(ctx, tx, domain.Event{
		Type:       domain.EventRelease,
		CreatedAt:  now,
		ActorID:    userID,
		OwnerID:    ownerID,
		ObjectID:   objectID,
		ActorName:  s.userNameTx(ctx, tx, userID),
		OwnerName:  s.userNameTx(ctx, tx, ownerID),
		ObjectName: objectName,
	})
	if err != nil {
		return domain.Event{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Event{}, fmt.Errorf("commit release: %w", err)
	}
	return event, nil
}

// DeleteObject removes an available object created by the caller. The
// delete and its DELETE event commit together so a crash cannot leave an
// unlogged removal or a logged removal of a still-existing object.
func (s *Store) DeleteObject(ctx context.Context, objectID, userID string) (domain.Event, error) {
	if err := ctx.Err(); err != nil {
		return domain.Event{}, err
	}
	objectID = strings.TrimSpace(objectID)
	userID = strings.TrimSpace(userID)
	now := s.now()

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Event{}, fmt.Errorf("begin delete: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var name, creatorID string
	var inPond int
	err = tx.QueryRowContext(
		ctx,
		`SELECT name, creator_id, in_pond FROM pond_objects WHERE id = ?`,
		objectID,
	).Scan(&name, &creatorID, &inPond)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Event{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.Event{}, fmt.Errorf("load object for delete: %w", err)
	}
	if creatorID != userID {
		return domain.Event{}, storage.ErrNotCreator
	}

	var openCatches int
	if err := tx.QueryRowContext(
		ctx,
		`SELECT COUNT(*) FROM catches WHERE object_id = ? AND released = 0`,
		objectID,
	).Scan(&openCatches); err != nil {
		return domain.Event{}, fmt.Errorf("count open catches: %w", err)
	}
	if inPond == 0 || openCatches > 0 {
		return domain.Event{}, storage.ErrObjectHeld
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM pond_objects WHERE id = ?`, objectID); err != nil {
		return domain.Event{}, fmt.Errorf("delete object: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM votes WHERE object_id = ?`, objectID); err != nil {
		return domain.Event{}, fmt.Errorf("delete votes: %w", err)
	}

	event, err := s.appendEventTx(ctx, tx, domain.Event{
		Type:       domain.EventDelete,
		CreatedAt:  now,
		ActorID:    userID,
		OwnerID:    creatorID,
		ObjectID:   objectID,
		ActorName:  s.userNameTx(ctx, tx, userID),
		OwnerName:  s.userNameTx(ctx, tx, creatorID),
		ObjectName: name,
	})
	if err != nil {
		return domain.Event{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Event{}, fmt.Errorf("commit delete: %w", err)
	}
	return event, nil
}

// ToggleVote applies the per-window toggle state machine. The latest-vote
// read and the row acting on it share one transaction, so two concurrent
// submissions cannot both observe the same prior state and double-apply.
func (s *Store) ToggleVote(ctx context.Context, objectID, userID string, value int, window domain.VoteWindow) (storage.VoteTally, error) {
	if err := ctx.Err(); err != nil {
		return storage.VoteTally{}, err
	}
	objectID = strings.TrimSpace(objectID)
	userID = strings.TrimSpace(userID)
	if !domain.ValidVoteValue(value) {
		return storage.VoteTally{}, fmt.Errorf("vote value must be +1 or -1, got %d", value)
	}
	now := s.now()

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.VoteTally{}, fmt.Errorf("begin vote: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var one int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM pond_objects WHERE id = ?`, objectID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.VoteTally{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.VoteTally{}, fmt.Errorf("vote object lookup: %w", err)
	}

	var latestID int64
	var latestValue int
	err = tx.QueryRowContext(
		ctx,
		`SELECT id, value FROM votes
		  WHERE object_id = ? AND user_id = ? AND created_at >= ? AND created_at < ?
		  ORDER BY id DESC LIMIT 1`,
		objectID, userID, toMillis(window.Start), toMillis(window.End),
	).Scan(&latestID, &latestValue)
	var latest *domain.Vote
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// no vote in this window
	case err != nil:
		return storage.VoteTally{}, fmt.Errorf("load latest vote: %w", err)
	default:
		latest = &domain.Vote{ID: latestID, Value: latestValue}
	}

	switch domain.NextVoteAction(latest, value) {
	case domain.VoteRetract:
		if _, err := tx.ExecContext(ctx, `DELETE FROM votes WHERE id = ?`, latest.ID); err != nil {
			return storage.VoteTally{}, fmt.Errorf("retract vote: %w", err)
		}
	case domain.VoteInsert:
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO votes (object_id, user_id, value, created_at) VALUES (?, ?, ?, ?)`,
			objectID, userID, value, toMillis(now),
		); err != nil {
			return storage.VoteTally{}, fmt.Errorf("insert vote: %w", err)
		}
	}

	tally, err := s.voteTallyTx(ctx, tx, objectID, userID, window)
	if err != nil {
		return storage.VoteTally{}, err
	}
	if err := tx.Commit(); err != nil {
		return storage.VoteTally{}, fmt.Errorf("commit vote: %w", err)
	}
	return tally, nil
}

func (s *Store) voteTallyTx(ctx context.Context, tx *sql.Tx, objectID, userID string, window domain.VoteWindow) (storage.VoteTally, error) {
	var tally storage.VoteTally
	err := tx.QueryRowContext(
		ctx,
		`SELECT
		   COUNT(CASE WHEN value = 1 THEN 1 END),
		   COUNT(CASE WHEN value = -1 THEN 1 END)
		 FROM votes WHERE object_id = ?`,
		objectID,
	).Scan(&tally.Likes, &tally.Dislikes)
	if err != nil {
		return storage.VoteTally{}, fmt.Errorf("tally votes: %w", err)
	}

	err = tx.QueryRowContext(
		ctx,
		`SELECT value FROM votes
		  WHERE object_id = ? AND user_id = ? AND created_at >= ? AND created_at < ?
		  ORDER BY id DESC LIMIT 1`,
		objectID, userID, toMillis(window.Start), toMillis(window.End),
	).Scan(&tally.MyVote)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return storage.VoteTally{}, fmt.Errorf("load my vote: %w", err)
	}
	return tally, nil
}

// ListEventsAfter returns up to limit events with id > afterID in
// ascending id order.
func (s *Store) ListEventsAfter(ctx context.Context, afterID int64, limit int) ([]domain.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, type, created_at,
		        COALESCE(actor_id, ''), COALESCE(owner_id, ''), COALESCE(object_id, ''),
		        actor_name, owner_name, object_name
		   FROM pond_events
		  WHERE id > ?
		  ORDER BY id ASC
		  LIMIT ?`,
		afterID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list events after %d: %w", afterID, err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// ListRecentEvents returns the newest events first. Snapshot names are
// preferred; rows written with empty snapshots fall back to a live join
// and finally to an empty string.
func (s *Store) ListRecentEvents(ctx context.Context, limit int) ([]domain.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT e.id, e.type, e.created_at,
		        COALESCE(e.actor_id, ''), COALESCE(e.owner_id, ''), COALESCE(e.object_id, ''),
		        COALESCE(NULLIF(e.actor_name, ''), ua.display_name, ''),
		        COALESCE(NULLIF(e.owner_name, ''), uo.display_name, ''),
		        COALESCE(NULLIF(e.object_name, ''), po.name, '')
		   FROM pond_events e
		   LEFT JOIN users ua ON ua.id = e.actor_id
		   LEFT JOIN users uo ON uo.id = e.owner_id
		   LEFT JOIN pond_objects po ON po.id = e.object_id
		  ORDER BY e.id DESC
		  LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list recent events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]domain.Event, error) {
	var events []domain.Event
	for rows.Next() {
		var event domain.Event
		var eventType string
		var createdAt int64
		if err := rows.Scan(
			&event.ID, &eventType, &createdAt,
			&event.ActorID, &event.OwnerID, &event.ObjectID,
			&event.ActorName, &event.OwnerName, &event.ObjectName,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		event.Type = domain.EventType(eventType)
		event.CreatedAt = fromMillis(createdAt)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan events: %w", err)
	}
	return events, nil
}

// MaxEventID returns the highest event id, or zero for an empty log.
func (s *Store) MaxEventID(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var maxID int64
	err := s.sqlDB.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM pond_events`).Scan(&maxID)
	if err != nil {
		return 0, fmt.Errorf("max event id: %w", err)
	}
	return maxID, nil
}

// ResetDailyCatches zeroes every user's daily catch counter.
func (s *Store) ResetDailyCatches(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	res, err := s.sqlDB.ExecContext(ctx, `UPDATE users SET daily_catches = 0 WHERE daily_catches <> 0`)
	if err != nil {
		return 0, fmt.Errorf("reset daily catches: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset rows affected: %w", err)
	}
	return affected, nil
}

func (s *Store) appendEventTx(ctx context.Context, tx *sql.Tx, event domain.Event) (domain.Event, error) {
	res, err := tx.ExecContext(
		ctx,
		`INSERT INTO pond_events (type, created_at, actor_id, owner_id, object_id, actor_name, owner_name, object_name)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(event.Type), toMillis(event.CreatedAt),
		nullIfEmpty(event.ActorID), nullIfEmpty(event.OwnerID), nullIfEmpty(event.ObjectID),
		event.ActorName, event.OwnerName, event.ObjectName,
	)
	if err != nil {
		return domain.Event{}, fmt.Errorf("append %s event: %w", event.Type, err)
	}
	eventID, err := res.LastInsertId()
	if err != nil {
		return domain.Event{}, fmt.Errorf("event id: %w", err)
	}
	event.ID = eventID
	event.CreatedAt = event.CreatedAt.UTC()
	return event, nil
}

// userNameTx resolves a display name inside the transaction so the event
// snapshot reflects the name at commit time. Missing rows snapshot as "".
func (s *Store) userNameTx(ctx context.Context, tx *sql.Tx, userID string) string {
	if strings.TrimSpace(userID) == "" {
		return ""
	}
	var name string
	err := tx.QueryRowContext(ctx, `SELECT display_name FROM users WHERE id = ?`, userID).Scan(&name)
	if err != nil {
		return ""
	}
	return name
}

func (s *Store) objectSnapshotTx(ctx context.Context, tx *sql.Tx, objectID string) (name, creatorID string) {
	err := tx.QueryRowContext(
		ctx,
		`SELECT name, creator_id FROM pond_objects WHERE id = ?`,
		objectID,
	).Scan(&name, &creatorID)
	if err != nil {
		return "", ""
	}
	return name, creatorID
}

func nullIfEmpty(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

var _ storage.Store = (*Store)(nil)
