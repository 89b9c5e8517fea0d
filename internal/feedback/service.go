package feedback

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/presentable/presentable/internal/anchor"
	"github.com/presentable/presentable/internal/webhook"
)

// Dispatcher delivers outbound events. *webhook.Client implements it.
type Dispatcher interface {
	Enabled() bool
	Dispatch(ctx context.Context, event webhook.Event) error
}

type Service struct {
	store      Store
	baseURL    string
	dispatcher Dispatcher
	scanner    anchor.Scanner
}

func NewService(store Store, baseURL string) *Service {
	return &Service{
		store:   store,
		baseURL: strings.TrimRight(baseURL, "/"),
		scanner: anchor.Scanner{Syntax: anchor.Markdown},
	}
}

func (s *Service) SetDispatcher(d Dispatcher) {
	s.dispatcher = d
}

// CreateFeedback saves new feedback in two phases. The id of a new feedback is
// only known once it is stored, so timestamps are first linked to a
// placeholder target, then rewritten to the feedback's own path. If the first
// phase fails nothing is stored. If the second fails the feedback is returned
// as stored together with an error wrapping ErrLinkResolution.
func (s *Service) CreateFeedback(ctx context.Context, presentationID, authorID, content string) (Feedback, error) {
	if strings.TrimSpace(content) == "" {
		return Feedback{}, ErrEmptyContent
	}

	draft := anchor.Scanner{Syntax: s.scanner.Syntax, Resolver: anchor.PlaceholderResolver}.Scan(content)
	fb, err := s.store.Create(ctx, presentationID, authorID, draft)
	if err != nil {
		return Feedback{}, fmt.Errorf("create feedback: %w", err)
	}

	resolved, unresolved := anchor.ResolvePlaceholders(fb.Content, PermanentBase(fb.PresentationID, fb.ID))
	for _, link := range unresolved {
		slog.Warn("feedback: placeholder link left unresolved", "feedback_id", fb.ID, "href", link.Href, "position", link.Position)
	}

	if resolved != fb.Content {
		updated, err := s.store.Edit(ctx, fb.ID, resolved)
		if err != nil {
			slog.Error("feedback: failed to resolve timestamp links", "feedback_id", fb.ID, "error", err)
			s.notifyCreated(fb)
			return fb, fmt.Errorf("%w: %w", ErrLinkResolution, err)
		}
		fb = updated
	}

	s.notifyCreated(fb)
	return fb, nil
}

// EditFeedback replaces the content of existing feedback. Its id is known, so
// timestamps link straight to the permanent path.
func (s *Service) EditFeedback(ctx context.Context, id, content string) (Feedback, error) {
	if strings.TrimSpace(content) == "" {
		return Feedback{}, ErrEmptyContent
	}
	current, err := s.store.Get(ctx, id)
	if err != nil {
		return Feedback{}, err
	}

	base := PermanentBase(current.PresentationID, current.ID)
	linked := anchor.Scanner{Syntax: s.scanner.Syntax, Resolver: anchor.PathResolver(base)}.Scan(content)
	linked, unresolved := anchor.ResolvePlaceholders(linked, base)
	for _, link := range unresolved {
		slog.Warn("feedback: placeholder link left unresolved", "feedback_id", current.ID, "href", link.Href, "position", link.Position)
	}

	fb, err := s.store.Edit(ctx, id, linked)
	if err != nil {
		return Feedback{}, fmt.Errorf("edit feedback: %w", err)
	}
	return fb, nil
}

func (s *Service) GetFeedback(ctx context.Context, id string) (Feedback, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) ListFeedback(ctx context.Context, presentationID string) ([]Feedback, error) {
	return s.store.ListByPresentation(ctx, presentationID)
}

func (s *Service) DeleteFeedback(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

// CreateComment adds a comment, or a reply when parentID is set. Timestamps
// in the comment link to the feedback it belongs to.
func (s *Service) CreateComment(ctx context.Context, feedbackID string, parentID *string, authorID, content string) (Comment, error) {
	if strings.TrimSpace(content) == "" {
		return Comment{}, ErrEmptyContent
	}
	fb, err := s.store.Get(ctx, feedbackID)
	if err != nil {
		return Comment{}, err
	}

	linked := anchor.Scanner{
		Syntax:   s.scanner.Syntax,
		Resolver: anchor.PathResolver(PermanentBase(fb.PresentationID, fb.ID)),
	}.Scan(strings.TrimSpace(content))

	c, err := s.store.CreateComment(ctx, feedbackID, parentID, authorID, linked)
	if err != nil {
		return Comment{}, fmt.Errorf("create comment: %w", err)
	}
	return c, nil
}

func (s *Service) GetComment(ctx context.Context, id string) (Comment, error) {
	return s.store.GetComment(ctx, id)
}

// ListComments returns the feedback's comments as threads.
func (s *Service) ListComments(ctx context.Context, feedbackID string) ([]Comment, error) {
	if _, err := s.store.Get(ctx, feedbackID); err != nil {
		return nil, err
	}
	flat, err := s.store.ListComments(ctx, feedbackID)
	if err != nil {
		return nil, err
	}
	return Thread(flat), nil
}

func (s *Service) DeleteComment(ctx context.Context, id string) error {
	return s.store.DeleteComment(ctx, id)
}

func (s *Service) notifyCreated(fb Feedback) {
	if s.dispatcher == nil || !s.dispatcher.Enabled() {
		return
	}
	event := webhook.NewEvent(webhook.EventFeedbackCreated, map[string]any{
		"feedbackId":     fb.ID,
		"presentationId": fb.PresentationID,
		"authorId":       fb.AuthorID,
		"url":            s.baseURL + PermanentBase(fb.PresentationID, fb.ID),
		"references":     len(anchor.ReferencesIn(fb.Content)),
	})

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.dispatcher.Dispatch(ctx, event); err != nil {
			slog.Error("webhook: dispatch failed for feedback.created", "feedback_id", fb.ID, "error", err)
		}
	}()
}
