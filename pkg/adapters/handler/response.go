package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/wadjakorntonsri/go-shortlink/pkg/core/domain"
)

type errorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("encode response")
	}
}

// writeError maps err to a status code. Client errors carry their own code
// and message; anything else is reported as an internal error.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	rid := RequestIDFrom(r.Context())

	var de *domain.Error
	if errors.As(err, &de) && de.Kind == domain.KindClient {
		writeJSON(w, statusFor(de), errorResponse{Code: de.Code, Message: de.Message, RequestID: rid})
		return
	}

	log.Error().Err(err).Str("request_id", rid).Str("path", r.URL.Path).Msg("request failed")
	code := "B000001"
	if de != nil {
		code = de.Code
	}
	writeJSON(w, http.StatusInternalServerError, errorResponse{Code: code, Message: "internal server error", RequestID: rid})
}

func statusFor(e *domain.Error) int {
	switch {
	case errors.Is(e, domain.ErrLinkNotFound), errors.Is(e, domain.ErrGroupNotFound), errors.Is(e, domain.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(e, domain.ErrUsernameTaken), errors.Is(e, domain.ErrUserExists), errors.Is(e, domain.ErrGroupQuotaExceeded):
		return http.StatusConflict
	case errors.Is(e, domain.ErrResourceBusy):
		return http.StatusLocked
	default:
		return http.StatusBadRequest
	}
}

func badRequest(w http.ResponseWriter, r *http.Request, msg string) {
	writeError(w, r, domain.ErrInvalidRequest.Wrap(errors.New(msg)))
}

// queryInt reads a positive integer query parameter, returning def when it is
// absent or malformed.
func queryInt(r *http.Request, name string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || v < 1 {
		return def
	}
	return v
}
