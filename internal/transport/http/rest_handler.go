package http

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"

	"quiz-session-service/internal/app"
	"quiz-session-service/internal/domain"
)

// RESTHandler exposes the session use cases as JSON over HTTP.
type RESTHandler struct {
	service *app.SessionService
}

func NewRESTHandler(service *app.SessionService) *RESTHandler {
	return &RESTHandler{service: service}
}

type startRequest struct {
	CatalogID         string `json:"catalogId"`
	UserID            string `json:"userId"`
	AllowAnswerChange bool   `json:"allowAnswerChange"`
}

type answerRequest struct {
	Value string `json:"value"`
}

// Index and Page are pointers so a missing field is rejected instead of
// reading as the first question or page.
type gotoRequest struct {
	Index *int `json:"index"`
}

type pageRequest struct {
	Page *int `json:"page"`
}

type restartRequest struct {
	CatalogID string `json:"catalogId"`
}

// decode reads an optional JSON body; an empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return errBadRequest
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errBadRequest
	}
	return nil
}

func (h *RESTHandler) respond(w http.ResponseWriter, snap domain.Snapshot, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *RESTHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.CatalogID == "" {
		writeJSON(w, http.StatusBadRequest, errorPayload{Code: "invalid", Message: "catalogId is required"})
		return
	}
	snap, err := h.service.Start(r.Context(), app.StartRequest{
		CatalogID:         req.CatalogID,
		UserID:            req.UserID,
		AllowAnswerChange: req.AllowAnswerChange,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

func (h *RESTHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Snapshot(r.Context(), chi.URLParam(r, "sessionID"))
	h.respond(w, snap, err)
}

func (h *RESTHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Discard(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *RESTHandler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	snap, err := h.service.SubmitAnswer(r.Context(), chi.URLParam(r, "sessionID"), chi.URLParam(r, "questionID"), req.Value)
	h.respond(w, snap, err)
}

func (h *RESTHandler) ClearAnswer(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.ClearAnswer(r.Context(), chi.URLParam(r, "sessionID"), chi.URLParam(r, "questionID"))
	h.respond(w, snap, err)
}

func (h *RESTHandler) ToggleReview(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.ToggleReview(r.Context(), chi.URLParam(r, "sessionID"), chi.URLParam(r, "questionID"))
	h.respond(w, snap, err)
}

func (h *RESTHandler) GoTo(w http.ResponseWriter, r *http.Request) {
	var req gotoRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Index == nil {
		writeError(w, errBadRequest)
		return
	}
	snap, err := h.service.GoTo(r.Context(), chi.URLParam(r, "sessionID"), *req.Index)
	h.respond(w, snap, err)
}

func (h *RESTHandler) Next(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Next(r.Context(), chi.URLParam(r, "sessionID"))
	h.respond(w, snap, err)
}

func (h *RESTHandler) Prev(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Prev(r.Context(), chi.URLParam(r, "sessionID"))
	h.respond(w, snap, err)
}

func (h *RESTHandler) SelectPage(w http.ResponseWriter, r *http.Request) {
	var req pageRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Page == nil {
		writeError(w, errBadRequest)
		return
	}
	snap, err := h.service.SelectPage(r.Context(), chi.URLParam(r, "sessionID"), *req.Page)
	h.respond(w, snap, err)
}

func (h *RESTHandler) Finish(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Finish(r.Context(), chi.URLParam(r, "sessionID"))
	h.respond(w, snap, err)
}

func (h *RESTHandler) Restart(w http.ResponseWriter, r *http.Request) {
	var req restartRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	snap, err := h.service.Restart(r.Context(), chi.URLParam(r, "sessionID"), req.CatalogID)
	h.respond(w, snap, err)
}

func (h *RESTHandler) ListStrokes(w http.ResponseWriter, r *http.Request) {
	strokes, err := h.service.Strokes(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	if strokes == nil {
		strokes = []domain.Stroke{}
	}
	writeJSON(w, http.StatusOK, strokes)
}

func (h *RESTHandler) AddStroke(w http.ResponseWriter, r *http.Request) {
	var stroke domain.Stroke
	if err := decode(r, &stroke); err != nil {
		writeError(w, err)
		return
	}
	snap, err := h.service.AddStroke(r.Context(), chi.URLParam(r, "sessionID"), stroke)
	h.respond(w, snap, err)
}

func (h *RESTHandler) ClearStrokes(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.ClearStrokes(r.Context(), chi.URLParam(r, "sessionID"))
	h.respond(w, snap, err)
}

func (h *RESTHandler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Catalog(r.Context(), chi.URLParam(r, "catalogID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *RESTHandler) UserProgress(w http.ResponseWriter, r *http.Request) {
	progress, err := h.service.Progress(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

func (h *RESTHandler) UserSessions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorPayload{Code: "invalid", Message: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	results, err := h.service.RecentResults(r.Context(), chi.URLParam(r, "userID"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}
