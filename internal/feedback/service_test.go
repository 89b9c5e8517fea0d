package feedback

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/presentable/presentable/internal/webhook"
)

type memStore struct {
	feedbacks map[string]Feedback
	comments  []Comment
	nextID    int

	createErr error
	editErr   error
	created   []string
	edited    []string
}

func newMemStore() *memStore {
	return &memStore{feedbacks: map[string]Feedback{}}
}

func (m *memStore) Create(_ context.Context, presentationID, authorID, content string) (Feedback, error) {
	m.created = append(m.created, content)
	if m.createErr != nil {
		return Feedback{}, m.createErr
	}
	m.nextID++
	fb := Feedback{
		ID:             fmt.Sprintf("fb-%d", m.nextID),
		PresentationID: presentationID,
		AuthorID:       authorID,
		Content:        content,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	m.feedbacks[fb.ID] = fb
	return fb, nil
}

func (m *memStore) Edit(_ context.Context, id, content string) (Feedback, error) {
	m.edited = append(m.edited, content)
	if m.editErr != nil {
		return Feedback{}, m.editErr
	}
	fb, ok := m.feedbacks[id]
	if !ok {
		return Feedback{}, ErrNotFound
	}
	fb.Content = content
	fb.UpdatedAt = time.Now()
	m.feedbacks[id] = fb
	return fb, nil
}

func (m *memStore) Get(_ context.Context, id string) (Feedback, error) {
	fb, ok := m.feedbacks[id]
	if !ok {
		return Feedback{}, ErrNotFound
	}
	return fb, nil
}

func (m *memStore) ListByPresentation(_ context.Context, presentationID string) ([]Feedback, error) {
	var out []Feedback
	for _, fb := range m.feedbacks {
		if fb.PresentationID == presentationID {
			out = append(out, fb)
		}
	}
	return out, nil
}

func (m *memStore) Delete(_ context.Context, id string) error {
	if _, ok := m.feedbacks[id]; !ok {
		return ErrNotFound
	}
	delete(m.feedbacks, id)
	return nil
}

func (m *memStore) CreateComment(_ context.Context, feedbackID string, parentID *string, authorID, content string) (Comment, error) {
	c := Comment{
		ID:         fmt.Sprintf("c-%d", len(m.comments)+1),
		FeedbackID: feedbackID,
		ParentID:   parentID,
		AuthorID:   authorID,
		Content:    content,
		CreatedAt:  time.Now(),
	}
	m.comments = append(m.comments, c)
	return c, nil
}

func (m *memStore) GetComment(_ context.Context, id string) (Comment, error) {
	for _, c := range m.comments {
		if c.ID == id {
			return c, nil
		}
	}
	return Comment{}, ErrCommentNotFound
}

func (m *memStore) ListComments(_ context.Context, feedbackID string) ([]Comment, error) {
	var out []Comment
	for _, c := range m.comments {
		if c.FeedbackID == feedbackID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) DeleteComment(_ context.Context, id string) error {
	for i := range m.comments {
		if m.comments[i].ID == id {
			m.comments[i].IsDeleted = true
			m.comments[i].Content = ""
			return nil
		}
	}
	return ErrCommentNotFound
}

type chanDispatcher struct {
	events chan webhook.Event
}

func (d *chanDispatcher) Enabled() bool { return true }
func (d *chanDispatcher) Dispatch(_ context.Context, e webhook.Event) error {
	d.events <- e
	return nil
}

func TestCreateFeedback_ResolvesPlaceholderLinks(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, "https://presentable.test/")

	fb, err := svc.CreateFeedback(context.Background(), "p-1", "teacher-1", "Slow down at 1:20 please")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(store.created) != 1 || store.created[0] != "Slow down at [1:20](placeholder://new?t=80) please" {
		t.Errorf("expected placeholder links on create, got %v", store.created)
	}
	expected := "Slow down at [1:20](/presentations/p-1/feedbacks/fb-1?t=80) please"
	if fb.Content != expected {
		t.Errorf("expected %q, got %q", expected, fb.Content)
	}
	if store.feedbacks["fb-1"].Content != expected {
		t.Errorf("expected stored content resolved, got %q", store.feedbacks["fb-1"].Content)
	}
}

func TestCreateFeedback_SkipsEditWithoutTimestamps(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, "")

	fb, err := svc.CreateFeedback(context.Background(), "p-1", "teacher-1", "Great structure overall.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.edited) != 0 {
		t.Errorf("expected no second write, got %v", store.edited)
	}
	if fb.Content != "Great structure overall." {
		t.Errorf("unexpected content %q", fb.Content)
	}
}

func TestCreateFeedback_CreateFailureStopsBeforeLinking(t *testing.T) {
	store := newMemStore()
	store.createErr = errors.New("connection reset")
	svc := NewService(store, "")

	_, err := svc.CreateFeedback(context.Background(), "p-1", "teacher-1", "At 0:30 the slide is unreadable")
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrLinkResolution) {
		t.Error("create failure must not be reported as a link failure")
	}
	if len(store.edited) != 0 {
		t.Errorf("expected no edit after failed create, got %v", store.edited)
	}
}

func TestCreateFeedback_EditFailureKeepsFeedback(t *testing.T) {
	store := newMemStore()
	store.editErr = errors.New("deadline exceeded")
	svc := NewService(store, "")

	fb, err := svc.CreateFeedback(context.Background(), "p-1", "teacher-1", "At 0:30 the slide is unreadable")
	if !errors.Is(err, ErrLinkResolution) {
		t.Fatalf("expected ErrLinkResolution, got %v", err)
	}
	if fb.ID != "fb-1" {
		t.Errorf("expected the created feedback to be returned, got %+v", fb)
	}
	if fb.Content != "At [0:30](placeholder://new?t=30) the slide is unreadable" {
		t.Errorf("expected phase one content, got %q", fb.Content)
	}
	if _, ok := store.feedbacks["fb-1"]; !ok {
		t.Error("expected feedback to remain stored")
	}
}

func TestCreateFeedback_LeavesForeignPlaceholders(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, "")

	fb, err := svc.CreateFeedback(context.Background(), "p-1", "teacher-1", "See [0:05](placeholder://elsewhere) and 0:10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := "See [0:05](placeholder://elsewhere) and [0:10](/presentations/p-1/feedbacks/fb-1?t=10)"
	if fb.Content != expected {
		t.Errorf("expected %q, got %q", expected, fb.Content)
	}
}

func TestCreateFeedback_RejectsEmpty(t *testing.T) {
	svc := NewService(newMemStore(), "")

	if _, err := svc.CreateFeedback(context.Background(), "p-1", "teacher-1", "   "); !errors.Is(err, ErrEmptyContent) {
		t.Errorf("expected ErrEmptyContent, got %v", err)
	}
}

func TestCreateFeedback_DispatchesWebhook(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, "https://presentable.test")
	dispatcher := &chanDispatcher{events: make(chan webhook.Event, 1)}
	svc.SetDispatcher(dispatcher)

	if _, err := svc.CreateFeedback(context.Background(), "p-1", "teacher-1", "Check 2:05"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case event := <-dispatcher.events:
		if event.Name != webhook.EventFeedbackCreated {
			t.Errorf("expected %s, got %s", webhook.EventFeedbackCreated, event.Name)
		}
		if event.Data["url"] != "https://presentable.test/presentations/p-1/feedbacks/fb-1" {
			t.Errorf("unexpected url %v", event.Data["url"])
		}
		if event.Data["references"] != 1 {
			t.Errorf("expected 1 reference, got %v", event.Data["references"])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected webhook dispatch")
	}
}

func TestEditFeedback_LinksToPermanentPath(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, "")
	fb, _ := svc.CreateFeedback(context.Background(), "p-1", "teacher-1", "First draft")

	edited, err := svc.EditFeedback(context.Background(), fb.ID, "Now mentioning 3:15")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := "Now mentioning [3:15](/presentations/p-1/feedbacks/fb-1?t=195)"
	if edited.Content != expected {
		t.Errorf("expected %q, got %q", expected, edited.Content)
	}
}

func TestEditFeedback_LogsUnresolvedPlaceholder(t *testing.T) {
	var buf bytes.Buffer
	previous := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(previous) })

	store := newMemStore()
	svc := NewService(store, "")
	fb, _ := svc.CreateFeedback(context.Background(), "p-1", "teacher-1", "First draft")

	edited, err := svc.EditFeedback(context.Background(), fb.ID, "See [0:20](placeholder://draft?x=1)")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if edited.Content != "See [0:20](placeholder://draft?x=1)" {
		t.Errorf("expected unresolved link left as-is, got %q", edited.Content)
	}

	output := buf.String()
	if !strings.Contains(output, "placeholder link left unresolved") {
		t.Errorf("expected unresolved link warning, got %q", output)
	}
	if !strings.Contains(output, `href="placeholder://draft?x=1"`) || !strings.Contains(output, "feedback_id=fb-1") {
		t.Errorf("expected href and feedback id in log, got %q", output)
	}
}

func TestEditFeedback_NotFound(t *testing.T) {
	svc := NewService(newMemStore(), "")

	if _, err := svc.EditFeedback(context.Background(), "missing", "text"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateComment_LinksToFeedback(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, "")
	fb, _ := svc.CreateFeedback(context.Background(), "p-1", "teacher-1", "Overall good")

	c, err := svc.CreateComment(context.Background(), fb.ID, nil, "student-1", " I fixed it at 0:45 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := "I fixed it at [0:45](/presentations/p-1/feedbacks/fb-1?t=45)"
	if c.Content != expected {
		t.Errorf("expected %q, got %q", expected, c.Content)
	}

	if _, err := svc.CreateComment(context.Background(), "missing", nil, "student-1", "hi"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown feedback, got %v", err)
	}
}

func TestListComments_Threads(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, "")
	fb, _ := svc.CreateFeedback(context.Background(), "p-1", "teacher-1", "Overall good")

	root, _ := svc.CreateComment(context.Background(), fb.ID, nil, "student-1", "Thanks")
	_, _ = svc.CreateComment(context.Background(), fb.ID, &root.ID, "teacher-1", "You're welcome")
	_ = svc.DeleteComment(context.Background(), root.ID)

	threads, err := svc.ListComments(context.Background(), fb.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(threads) != 1 {
		t.Fatalf("expected 1 thread, got %d", len(threads))
	}
	if !threads[0].IsDeleted || threads[0].Content != "" {
		t.Errorf("expected deleted root with empty content, got %+v", threads[0])
	}
	if len(threads[0].Replies) != 1 || threads[0].Replies[0].Content != "You're welcome" {
		t.Errorf("expected reply kept under deleted root, got %+v", threads[0].Replies)
	}
}

func TestThread_OrphansBecomeRoots(t *testing.T) {
	missing := "gone"
	a := "a"
	flat := []Comment{
		{ID: "a", Content: "root"},
		{ID: "b", ParentID: &a, Content: "reply"},
		{ID: "c", ParentID: &missing, Content: "orphan"},
		{ID: "d", ParentID: &a, Content: "second reply", IsDeleted: true},
	}

	threads := Thread(flat)

	if len(threads) != 2 || threads[0].ID != "a" || threads[1].ID != "c" {
		t.Fatalf("unexpected roots %+v", threads)
	}
	if len(threads[0].Replies) != 2 || threads[0].Replies[0].ID != "b" {
		t.Errorf("expected replies in order, got %+v", threads[0].Replies)
	}
	if threads[0].Replies[1].Content != "" {
		t.Errorf("expected deleted reply content hidden, got %q", threads[0].Replies[1].Content)
	}
}
