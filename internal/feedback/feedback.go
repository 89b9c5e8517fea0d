// Package feedback stores reviewer feedback on presentations and the comment
// threads under it. Timestamps written in feedback and comments become links
// that reopen the feedback at that moment of the recording.
package feedback

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound             = errors.New("feedback not found")
	ErrCommentNotFound      = errors.New("comment not found")
	ErrPresentationNotFound = errors.New("presentation not found")
	ErrParentMismatch       = errors.New("parent comment belongs to another feedback")
	ErrEmptyContent         = errors.New("content cannot be empty")
	// ErrLinkResolution means the feedback was saved but its timestamp links
	// still point at the placeholder target.
	ErrLinkResolution = errors.New("timestamp links could not be finalized")
)

type Feedback struct {
	ID             string
	PresentationID string
	AuthorID       string
	Content        string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Comment struct {
	ID         string
	FeedbackID string
	ParentID   *string
	AuthorID   string
	Content    string
	IsDeleted  bool
	CreatedAt  time.Time
	Replies    []Comment
}

type Store interface {
	Create(ctx context.Context, presentationID, authorID, content string) (Feedback, error)
	Edit(ctx context.Context, id, content string) (Feedback, error)
	Get(ctx context.Context, id string) (Feedback, error)
	ListByPresentation(ctx context.Context, presentationID string) ([]Feedback, error)
	Delete(ctx context.Context, id string) error

	CreateComment(ctx context.Context, feedbackID string, parentID *string, authorID, content string) (Comment, error)
	GetComment(ctx context.Context, id string) (Comment, error)
	ListComments(ctx context.Context, feedbackID string) ([]Comment, error)
	DeleteComment(ctx context.Context, id string) error
}

// PermanentBase is the path a feedback's timestamp links point at.
func PermanentBase(presentationID, feedbackID string) string {
	return "/presentations/" + presentationID + "/feedbacks/" + feedbackID
}

// Thread nests replies under their parents, keeping creation order. Comments
// whose parent is missing are treated as top level. Deleted comments keep
// their place with empty content so replies stay attached.
func Thread(flat []Comment) []Comment {
	known := make(map[string]bool, len(flat))
	for _, c := range flat {
		known[c.ID] = true
	}

	children := make(map[string][]Comment)
	var roots []Comment
	for _, c := range flat {
		if c.IsDeleted {
			c.Content = ""
		}
		if c.ParentID != nil && known[*c.ParentID] && *c.ParentID != c.ID {
			children[*c.ParentID] = append(children[*c.ParentID], c)
			continue
		}
		roots = append(roots, c)
	}

	var attach func(c Comment) Comment
	attach = func(c Comment) Comment {
		for _, child := range children[c.ID] {
			c.Replies = append(c.Replies, attach(child))
		}
		return c
	}

	threaded := make([]Comment, 0, len(roots))
	for _, r := range roots {
		threaded = append(threaded, attach(r))
	}
	return threaded
}
