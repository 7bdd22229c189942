package http

import (
	"errors"
	"net/http"

	json "github.com/goccy/go-json"

	"quiz-session-service/internal/domain"
)

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// classify maps domain errors to an HTTP status and a stable error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrCatalogNotFound),
		errors.Is(err, domain.ErrQuestionNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrOptionNotFound),
		errors.Is(err, domain.ErrInvalidStroke),
		errors.Is(err, errBadRequest),
		errors.Is(err, errUnsupported):
		return http.StatusBadRequest, "invalid"
	case errors.Is(err, domain.ErrAnswerLocked):
		return http.StatusConflict, "answer_locked"
	case errors.Is(err, domain.ErrSessionComplete):
		return http.StatusConflict, "session_complete"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

var (
	errBadRequest  = errors.New("malformed request")
	errUnsupported = errors.New("unsupported message type")
)

func toErrorPayload(err error) errorPayload {
	status, code := classify(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = http.StatusText(status)
	}
	return errorPayload{Code: code, Message: msg}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, err error) {
	status, _ := classify(err)
	writeJSON(w, status, toErrorPayload(err))
}
