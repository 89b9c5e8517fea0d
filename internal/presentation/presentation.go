// Package presentation serves recorded presentations together with their
// transcript, detected events and the timeline derived from them.
package presentation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/presentable/presentable/internal/database"
	"github.com/presentable/presentable/internal/segment"
	"github.com/presentable/presentable/internal/timestamp"
)

var ErrNotFound = errors.New("presentation not found")

type Presentation struct {
	ID            string
	CourseID      string
	OwnerID       string
	Title         string
	Description   string
	VideoKey      string
	VideoDuration string
	Transcript    segment.Transcript
	Events        segment.Events
	IsPrivate     bool
	CreatedAt     time.Time
}

// Duration returns the recording length in seconds, or NaN when the stored
// duration is missing or malformed.
func (p Presentation) Duration() float64 {
	d, err := timestamp.ParseBound(p.VideoDuration)
	if err != nil {
		return math.NaN()
	}
	return d
}

type PGStore struct {
	db database.DBTX
}

func NewPGStore(db database.DBTX) *PGStore {
	return &PGStore{db: db}
}

func notFound(err error) bool {
	if errors.Is(err, pgx.ErrNoRows) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22P02"
}

func (s *PGStore) Get(ctx context.Context, id string) (Presentation, error) {
	p := Presentation{ID: id}
	var transcript, events []byte
	err := s.db.QueryRow(ctx,
		`SELECT course_id, owner_id, title, description, video_key, video_duration, transcript, events, is_private, created_at
		 FROM presentations WHERE id = $1`,
		id,
	).Scan(&p.CourseID, &p.OwnerID, &p.Title, &p.Description, &p.VideoKey, &p.VideoDuration, &transcript, &events, &p.IsPrivate, &p.CreatedAt)
	if err != nil {
		if notFound(err) {
			return Presentation{}, ErrNotFound
		}
		return Presentation{}, fmt.Errorf("select presentation: %w", err)
	}

	if len(transcript) > 0 {
		if err := json.Unmarshal(transcript, &p.Transcript); err != nil {
			return Presentation{}, fmt.Errorf("decode transcript: %w", err)
		}
	}
	if len(events) > 0 {
		if err := json.Unmarshal(events, &p.Events); err != nil {
			return Presentation{}, fmt.Errorf("decode events: %w", err)
		}
	}
	return p, nil
}

func (s *PGStore) update(ctx context.Context, query string, args ...any) error {
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		if notFound(err) {
			return ErrNotFound
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// EditEvents applies edit to the stored events while holding the
// presentation's row lock, so concurrent edits to different events never
// overwrite each other. An error from edit rolls back and is returned as is.
func (s *PGStore) EditEvents(ctx context.Context, id string, edit func(*segment.Events) error) (segment.Events, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return segment.Events{}, fmt.Errorf("begin events edit: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var doc []byte
	if err := tx.QueryRow(ctx, `SELECT events FROM presentations WHERE id = $1 FOR UPDATE`, id).Scan(&doc); err != nil {
		if notFound(err) {
			return segment.Events{}, ErrNotFound
		}
		return segment.Events{}, fmt.Errorf("lock events: %w", err)
	}

	var events segment.Events
	if len(doc) > 0 {
		if err := json.Unmarshal(doc, &events); err != nil {
			return segment.Events{}, fmt.Errorf("decode events: %w", err)
		}
	}
	if err := edit(&events); err != nil {
		return segment.Events{}, err
	}

	doc, err = json.Marshal(events)
	if err != nil {
		return segment.Events{}, fmt.Errorf("encode events: %w", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE presentations SET events = $1, updated_at = now() WHERE id = $2`, doc, id); err != nil {
		return segment.Events{}, fmt.Errorf("update events: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return segment.Events{}, fmt.Errorf("commit events edit: %w", err)
	}
	return events, nil
}

func (s *PGStore) UpdateTranscript(ctx context.Context, id string, transcript segment.Transcript) error {
	doc, err := json.Marshal(transcript)
	if err != nil {
		return fmt.Errorf("encode transcript: %w", err)
	}
	if err := s.update(ctx, `UPDATE presentations SET transcript = $1, updated_at = now() WHERE id = $2`, doc, id); err != nil {
		return fmt.Errorf("update transcript: %w", err)
	}
	return nil
}

func (s *PGStore) SetVisibility(ctx context.Context, id string, isPrivate bool) error {
	if err := s.update(ctx, `UPDATE presentations SET is_private = $1, updated_at = now() WHERE id = $2`, isPrivate, id); err != nil {
		return fmt.Errorf("update visibility: %w", err)
	}
	return nil
}
