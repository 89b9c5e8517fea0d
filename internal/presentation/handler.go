package presentation

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/presentable/presentable/internal/auth"
	"github.com/presentable/presentable/internal/httputil"
	"github.com/presentable/presentable/internal/segment"
	"github.com/presentable/presentable/internal/timestamp"
	"github.com/presentable/presentable/internal/validate"
)

const videoURLExpiry = time.Hour

type ObjectStorage interface {
	GenerateDownloadURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	ReadObject(ctx context.Context, key string) ([]byte, error)
}

type Store interface {
	Get(ctx context.Context, id string) (Presentation, error)
	EditEvents(ctx context.Context, id string, edit func(*segment.Events) error) (segment.Events, error)
	UpdateTranscript(ctx context.Context, id string, transcript segment.Transcript) error
	SetVisibility(ctx context.Context, id string, isPrivate bool) error
}

type Handler struct {
	store   Store
	storage ObjectStorage
}

func NewHandler(store Store, storage ObjectStorage) *Handler {
	return &Handler{store: store, storage: storage}
}

type presentationResponse struct {
	ID           string             `json:"id"`
	CourseID     string             `json:"courseId"`
	Title        string             `json:"title"`
	Description  string             `json:"description"`
	VideoURL     string             `json:"videoUrl,omitempty"`
	Duration     *float64           `json:"duration"`
	DurationText string             `json:"durationText,omitempty"`
	IsPrivate    bool               `json:"isPrivate"`
	Transcript   segment.Transcript `json:"transcript"`
	Events       []segment.Event    `json:"events"`
	Markers      []segment.Marker   `json:"markers"`
	CreatedAt    string             `json:"createdAt"`
}

type activeResponse struct {
	Offset   float64 `json:"offset"`
	Interval *int    `json:"interval"`
	Sentence *int    `json:"sentence"`
	Text     string  `json:"text,omitempty"`
	Events   []int   `json:"events"`
}

type validationRequest struct {
	Validation segment.ValidationState `json:"validation"`
}

type visibilityRequest struct {
	IsPrivate bool `json:"isPrivate"`
}

type transcriptImportRequest struct {
	Key string `json:"key"`
}

type transcriptImportResponse struct {
	Intervals int      `json:"intervals"`
	Warnings  []string `json:"warnings"`
}

func callerRole(r *http.Request) segment.Role {
	return segment.Role(auth.RoleFromContext(r.Context()))
}

// load fetches the presentation and hides private ones from students who do
// not own them.
func (h *Handler) load(w http.ResponseWriter, r *http.Request) (Presentation, bool) {
	p, err := h.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httputil.WriteError(w, http.StatusNotFound, "presentation not found")
			return Presentation{}, false
		}
		slog.Error("presentation: failed to load", "presentation_id", chi.URLParam(r, "id"), "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "could not fetch presentation")
		return Presentation{}, false
	}
	if p.IsPrivate && !callerRole(r).IsReviewer() && auth.UserIDFromContext(r.Context()) != p.OwnerID {
		httputil.WriteError(w, http.StatusNotFound, "presentation not found")
		return Presentation{}, false
	}
	return p, true
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := h.load(w, r)
	if !ok {
		return
	}

	resp := presentationResponse{
		ID:          p.ID,
		CourseID:    p.CourseID,
		Title:       p.Title,
		Description: p.Description,
		IsPrivate:   p.IsPrivate,
		Transcript:  p.Transcript,
		Events:      segment.VisibleEvents(p.Events.Intervals, callerRole(r)),
		CreatedAt:   p.CreatedAt.Format(time.RFC3339),
	}
	if resp.Transcript.Intervals == nil {
		resp.Transcript.Intervals = []segment.TranscriptInterval{}
	}

	duration := p.Duration()
	if timestamp.KnownDuration(duration) {
		resp.Duration = &duration
		resp.DurationText = timestamp.Format(duration)
	}
	resp.Markers = segment.Markers(resp.Events, duration)

	if p.VideoKey != "" && h.storage != nil {
		url, err := h.storage.GenerateDownloadURL(r.Context(), p.VideoKey, videoURLExpiry)
		if err != nil {
			slog.Error("presentation: failed to presign video", "presentation_id", p.ID, "error", err)
		} else {
			resp.VideoURL = url
		}
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

// Active reports which transcript sentence and which events are active at the
// offset given in the t query parameter.
func (h *Handler) Active(w http.ResponseWriter, r *http.Request) {
	offset, ok := timestamp.ParseOffsetParam(r.URL.Query().Get("t"))
	if !ok {
		httputil.WriteError(w, http.StatusBadRequest, "t must be a non-negative offset")
		return
	}

	p, ok := h.load(w, r)
	if !ok {
		return
	}
	if duration := p.Duration(); !math.IsNaN(duration) {
		offset = timestamp.Clamp(offset, duration)
	}

	parents, children, _ := segment.TranscriptSpans(p.Transcript)
	resp := activeResponse{Offset: offset, Events: []int{}}
	if parent, child, found := segment.ActiveSentence(offset, parents, children); found {
		resp.Interval = &parent
		if child >= 0 {
			resp.Sentence = &child
			resp.Text = p.Transcript.Intervals[parent].Sentences[child].Text
		} else {
			resp.Text = p.Transcript.Intervals[parent].Text
		}
	}

	visible := segment.VisibleEvents(p.Events.Intervals, callerRole(r))
	spans, _ := segment.EventSpans(visible)
	for _, i := range segment.ActiveIndices(offset, spans) {
		resp.Events = append(resp.Events, visible[i].ID)
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) ValidateEvent(w http.ResponseWriter, r *http.Request) {
	eventID, err := strconv.Atoi(chi.URLParam(r, "eventId"))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	var req validationRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if !req.Validation.Valid() {
		httputil.WriteError(w, http.StatusBadRequest, "invalid validation state")
		return
	}

	p, ok := h.load(w, r)
	if !ok {
		return
	}

	role := callerRole(r)
	if !role.IsReviewer() && auth.UserIDFromContext(r.Context()) != p.OwnerID {
		httputil.WriteError(w, http.StatusForbidden, "only reviewers or the presenter can change validation")
		return
	}

	events, err := h.store.EditEvents(r.Context(), p.ID, func(events *segment.Events) error {
		return segment.ApplyValidation(events, eventID, req.Validation, role)
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			httputil.WriteError(w, http.StatusNotFound, "presentation not found")
		case errors.Is(err, segment.ErrEventNotFound):
			httputil.WriteError(w, http.StatusNotFound, "event not found")
		case errors.Is(err, segment.ErrNotFired):
			httputil.WriteError(w, http.StatusConflict, "event did not fire")
		case errors.Is(err, segment.ErrInvalidTransition):
			httputil.WriteError(w, http.StatusConflict, err.Error())
		default:
			slog.Error("presentation: failed to save validation", "presentation_id", p.ID, "event_id", eventID, "error", err)
			httputil.WriteError(w, http.StatusInternalServerError, "could not update event")
		}
		return
	}

	for _, e := range events.Intervals {
		if e.ID == eventID {
			httputil.WriteJSON(w, http.StatusOK, e)
			return
		}
	}
}

func (h *Handler) SetVisibility(w http.ResponseWriter, r *http.Request) {
	if !callerRole(r).IsReviewer() {
		httputil.WriteError(w, http.StatusForbidden, "reviewer role required")
		return
	}

	var req visibilityRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	if err := h.store.SetVisibility(r.Context(), chi.URLParam(r, "id"), req.IsPrivate); err != nil {
		if errors.Is(err, ErrNotFound) {
			httputil.WriteError(w, http.StatusNotFound, "presentation not found")
			return
		}
		httputil.WriteError(w, http.StatusInternalServerError, "could not update visibility")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ImportTranscript replaces the transcript with a JSON document uploaded to
// object storage. Segments with unreadable bounds are kept but reported.
func (h *Handler) ImportTranscript(w http.ResponseWriter, r *http.Request) {
	if !callerRole(r).IsReviewer() {
		httputil.WriteError(w, http.StatusForbidden, "reviewer role required")
		return
	}
	if h.storage == nil {
		httputil.WriteError(w, http.StatusServiceUnavailable, "storage is not configured")
		return
	}

	var req transcriptImportRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	req.Key = strings.TrimSpace(req.Key)
	if req.Key == "" {
		httputil.WriteError(w, http.StatusBadRequest, "key is required")
		return
	}
	if msg := validate.StorageKey(req.Key); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}

	p, ok := h.load(w, r)
	if !ok {
		return
	}

	doc, err := h.storage.ReadObject(r.Context(), req.Key)
	if err != nil {
		slog.Error("presentation: failed to read transcript", "presentation_id", p.ID, "key", req.Key, "error", err)
		httputil.WriteError(w, http.StatusBadGateway, "could not read transcript")
		return
	}

	var transcript segment.Transcript
	if err := json.Unmarshal(doc, &transcript); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "transcript is not valid JSON")
		return
	}

	_, _, errs := segment.TranscriptSpans(transcript)
	resp := transcriptImportResponse{Intervals: len(transcript.Intervals), Warnings: []string{}}
	for _, e := range errs {
		resp.Warnings = append(resp.Warnings, e.Error())
	}

	if err := h.store.UpdateTranscript(r.Context(), p.ID, transcript); err != nil {
		slog.Error("presentation: failed to save transcript", "presentation_id", p.ID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "could not save transcript")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
