package feedback

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/presentable/presentable/internal/anchor"
	"github.com/presentable/presentable/internal/auth"
	"github.com/presentable/presentable/internal/httputil"
	"github.com/presentable/presentable/internal/validate"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type contentRequest struct {
	Content string `json:"content"`
}

type postCommentRequest struct {
	Content  string  `json:"content"`
	ParentID *string `json:"parentId"`
}

type feedbackResponse struct {
	ID             string             `json:"id"`
	PresentationID string             `json:"presentationId"`
	AuthorID       string             `json:"authorId"`
	Content        string             `json:"content"`
	References     []anchor.Reference `json:"references"`
	CreatedAt      string             `json:"createdAt"`
	UpdatedAt      string             `json:"updatedAt"`
	Warning        string             `json:"warning,omitempty"`
}

type commentResponse struct {
	ID         string             `json:"id"`
	ParentID   *string            `json:"parentId,omitempty"`
	AuthorID   string             `json:"authorId"`
	Content    string             `json:"content"`
	IsDeleted  bool               `json:"isDeleted"`
	References []anchor.Reference `json:"references"`
	CreatedAt  string             `json:"createdAt"`
	Replies    []commentResponse  `json:"replies"`
}

func toFeedbackResponse(fb Feedback) feedbackResponse {
	return feedbackResponse{
		ID:             fb.ID,
		PresentationID: fb.PresentationID,
		AuthorID:       fb.AuthorID,
		Content:        fb.Content,
		References:     anchor.ReferencesIn(fb.Content),
		CreatedAt:      fb.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      fb.UpdatedAt.Format(time.RFC3339),
	}
}

func toCommentResponse(c Comment) commentResponse {
	resp := commentResponse{
		ID:         c.ID,
		ParentID:   c.ParentID,
		AuthorID:   c.AuthorID,
		Content:    c.Content,
		IsDeleted:  c.IsDeleted,
		References: anchor.ReferencesIn(c.Content),
		CreatedAt:  c.CreatedAt.Format(time.RFC3339),
		Replies:    []commentResponse{},
	}
	for _, reply := range c.Replies {
		resp.Replies = append(resp.Replies, toCommentResponse(reply))
	}
	return resp
}

func writeStoreError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, ErrNotFound):
		httputil.WriteError(w, http.StatusNotFound, "feedback not found")
	case errors.Is(err, ErrCommentNotFound):
		httputil.WriteError(w, http.StatusNotFound, "comment not found")
	case errors.Is(err, ErrPresentationNotFound):
		httputil.WriteError(w, http.StatusNotFound, "presentation not found")
	case errors.Is(err, ErrParentMismatch):
		httputil.WriteError(w, http.StatusBadRequest, "parent comment belongs to another feedback")
	case errors.Is(err, ErrEmptyContent):
		httputil.WriteError(w, http.StatusBadRequest, "content is required")
	default:
		slog.Error("feedback: request failed", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, fallback)
	}
}

// canModify reports whether the caller may edit or delete content written by
// authorID.
func canModify(r *http.Request, authorID string) bool {
	return auth.UserIDFromContext(r.Context()) == authorID || auth.RoleFromContext(r.Context()) == auth.RoleAdmin
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if !auth.IsReviewer(auth.RoleFromContext(r.Context())) {
		httputil.WriteError(w, http.StatusForbidden, "only reviewers can write feedback")
		return
	}
	presentationID := chi.URLParam(r, "id")

	var req contentRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if msg := validate.FeedbackContent(req.Content); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}

	fb, err := h.svc.CreateFeedback(r.Context(), presentationID, auth.UserIDFromContext(r.Context()), req.Content)
	if err != nil {
		if errors.Is(err, ErrLinkResolution) {
			resp := toFeedbackResponse(fb)
			resp.Warning = "feedback saved, but its timestamp links could not be finalized"
			httputil.WriteJSON(w, http.StatusCreated, resp)
			return
		}
		writeStoreError(w, err, "could not save feedback")
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, toFeedbackResponse(fb))
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	feedbacks, err := h.svc.ListFeedback(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err, "could not fetch feedback")
		return
	}

	resp := make([]feedbackResponse, 0, len(feedbacks))
	for _, fb := range feedbacks {
		resp = append(resp, toFeedbackResponse(fb))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	fb, err := h.svc.GetFeedback(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err, "could not fetch feedback")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toFeedbackResponse(fb))
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req contentRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if msg := validate.FeedbackContent(req.Content); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}

	current, err := h.svc.GetFeedback(r.Context(), id)
	if err != nil {
		writeStoreError(w, err, "could not update feedback")
		return
	}
	if !canModify(r, current.AuthorID) {
		httputil.WriteError(w, http.StatusForbidden, "only the author can edit this feedback")
		return
	}

	fb, err := h.svc.EditFeedback(r.Context(), id, req.Content)
	if err != nil {
		writeStoreError(w, err, "could not update feedback")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toFeedbackResponse(fb))
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	current, err := h.svc.GetFeedback(r.Context(), id)
	if err != nil {
		writeStoreError(w, err, "could not delete feedback")
		return
	}
	if !canModify(r, current.AuthorID) {
		httputil.WriteError(w, http.StatusForbidden, "only the author can delete this feedback")
		return
	}

	if err := h.svc.DeleteFeedback(r.Context(), id); err != nil {
		writeStoreError(w, err, "could not delete feedback")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListComments(w http.ResponseWriter, r *http.Request) {
	comments, err := h.svc.ListComments(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err, "could not fetch comments")
		return
	}

	resp := make([]commentResponse, 0, len(comments))
	for _, c := range comments {
		resp = append(resp, toCommentResponse(c))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) PostComment(w http.ResponseWriter, r *http.Request) {
	feedbackID := chi.URLParam(r, "id")

	var req postCommentRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" {
		httputil.WriteError(w, http.StatusBadRequest, "comment cannot be empty")
		return
	}
	if msg := validate.CommentContent(req.Content); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}

	c, err := h.svc.CreateComment(r.Context(), feedbackID, req.ParentID, auth.UserIDFromContext(r.Context()), req.Content)
	if err != nil {
		writeStoreError(w, err, "could not save comment")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toCommentResponse(c))
}

func (h *Handler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	c, err := h.svc.GetComment(r.Context(), id)
	if err != nil {
		writeStoreError(w, err, "could not delete comment")
		return
	}
	if !canModify(r, c.AuthorID) && !auth.IsReviewer(auth.RoleFromContext(r.Context())) {
		httputil.WriteError(w, http.StatusForbidden, "only the author can delete this comment")
		return
	}

	if err := h.svc.DeleteComment(r.Context(), id); err != nil {
		writeStoreError(w, err, "could not delete comment")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
