package feedback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/presentable/presentable/internal/database"
)

// PGStore keeps feedback in Postgres.
type PGStore struct {
	db database.DBTX
}

func NewPGStore(db database.DBTX) *PGStore {
	return &PGStore{db: db}
}

func isForeignKeyOrBadID(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && (pgErr.Code == "23503" || pgErr.Code == "22P02")
}

func (s *PGStore) Create(ctx context.Context, presentationID, authorID, content string) (Feedback, error) {
	fb := Feedback{PresentationID: presentationID, AuthorID: authorID, Content: content}
	err := s.db.QueryRow(ctx,
		`INSERT INTO feedbacks (presentation_id, author_id, content)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at, updated_at`,
		presentationID, authorID, content,
	).Scan(&fb.ID, &fb.CreatedAt, &fb.UpdatedAt)
	if err != nil {
		if isForeignKeyOrBadID(err) {
			return Feedback{}, ErrPresentationNotFound
		}
		return Feedback{}, fmt.Errorf("insert feedback: %w", err)
	}
	return fb, nil
}

func (s *PGStore) Edit(ctx context.Context, id, content string) (Feedback, error) {
	fb := Feedback{ID: id, Content: content}
	err := s.db.QueryRow(ctx,
		`UPDATE feedbacks SET content = $1, updated_at = now()
		 WHERE id = $2
		 RETURNING presentation_id, author_id, created_at, updated_at`,
		content, id,
	).Scan(&fb.PresentationID, &fb.AuthorID, &fb.CreatedAt, &fb.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isForeignKeyOrBadID(err) {
			return Feedback{}, ErrNotFound
		}
		return Feedback{}, fmt.Errorf("update feedback: %w", err)
	}
	return fb, nil
}

func (s *PGStore) Get(ctx context.Context, id string) (Feedback, error) {
	fb := Feedback{ID: id}
	err := s.db.QueryRow(ctx,
		`SELECT presentation_id, author_id, content, created_at, updated_at
		 FROM feedbacks WHERE id = $1`,
		id,
	).Scan(&fb.PresentationID, &fb.AuthorID, &fb.Content, &fb.CreatedAt, &fb.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isForeignKeyOrBadID(err) {
			return Feedback{}, ErrNotFound
		}
		return Feedback{}, fmt.Errorf("select feedback: %w", err)
	}
	return fb, nil
}

func (s *PGStore) ListByPresentation(ctx context.Context, presentationID string) ([]Feedback, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, author_id, content, created_at, updated_at
		 FROM feedbacks WHERE presentation_id = $1
		 ORDER BY created_at ASC`,
		presentationID,
	)
	if err != nil {
		return nil, fmt.Errorf("list feedbacks: %w", err)
	}
	defer rows.Close()

	feedbacks := []Feedback{}
	for rows.Next() {
		fb := Feedback{PresentationID: presentationID}
		if err := rows.Scan(&fb.ID, &fb.AuthorID, &fb.Content, &fb.CreatedAt, &fb.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan feedback: %w", err)
		}
		feedbacks = append(feedbacks, fb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list feedbacks: %w", err)
	}
	return feedbacks, nil
}

func (s *PGStore) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM feedbacks WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyOrBadID(err) {
			return ErrNotFound
		}
		return fmt.Errorf("delete feedback: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) CreateComment(ctx context.Context, feedbackID string, parentID *string, authorID, content string) (Comment, error) {
	if parentID != nil {
		parent, err := s.GetComment(ctx, *parentID)
		if err != nil {
			return Comment{}, err
		}
		if parent.FeedbackID != feedbackID {
			return Comment{}, ErrParentMismatch
		}
	}

	c := Comment{FeedbackID: feedbackID, ParentID: parentID, AuthorID: authorID, Content: content}
	err := s.db.QueryRow(ctx,
		`INSERT INTO feedback_comments (feedback_id, parent_id, author_id, content)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		feedbackID, parentID, authorID, content,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		if isForeignKeyOrBadID(err) {
			return Comment{}, ErrNotFound
		}
		return Comment{}, fmt.Errorf("insert comment: %w", err)
	}
	return c, nil
}

func (s *PGStore) GetComment(ctx context.Context, id string) (Comment, error) {
	c := Comment{ID: id}
	err := s.db.QueryRow(ctx,
		`SELECT feedback_id, parent_id, author_id, content, is_deleted, created_at
		 FROM feedback_comments WHERE id = $1`,
		id,
	).Scan(&c.FeedbackID, &c.ParentID, &c.AuthorID, &c.Content, &c.IsDeleted, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isForeignKeyOrBadID(err) {
			return Comment{}, ErrCommentNotFound
		}
		return Comment{}, fmt.Errorf("select comment: %w", err)
	}
	return c, nil
}

func (s *PGStore) ListComments(ctx context.Context, feedbackID string) ([]Comment, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, parent_id, author_id, content, is_deleted, created_at
		 FROM feedback_comments WHERE feedback_id = $1
		 ORDER BY created_at ASC`,
		feedbackID,
	)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	var comments []Comment
	for rows.Next() {
		var c Comment
		var createdAt time.Time
		if err := rows.Scan(&c.ID, &c.ParentID, &c.AuthorID, &c.Content, &c.IsDeleted, &createdAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		c.FeedbackID = feedbackID
		c.CreatedAt = createdAt
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return comments, nil
}

// DeleteComment soft deletes so that replies keep their parent.
func (s *PGStore) DeleteComment(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE feedback_comments SET is_deleted = true, content = '' WHERE id = $1`,
		id,
	)
	if err != nil {
		if isForeignKeyOrBadID(err) {
			return ErrCommentNotFound
		}
		return fmt.Errorf("delete comment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCommentNotFound
	}
	return nil
}
