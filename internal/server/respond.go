package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/spigell/rozgar/internal/jobs"
	"github.com/spigell/rozgar/internal/logger"
	"github.com/spigell/rozgar/internal/media"
	"github.com/spigell/rozgar/internal/session"
	"go.uber.org/zap"
)

const maxBodySize = 1 << 20

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// fail maps a domain error onto a status code. Unexpected errors are logged
// and hidden behind a generic message.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.FromContext(r.Context(), s.Logger).Error("request failed", zap.Error(err))
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, jobs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, jobs.ErrValidation), errors.Is(err, media.ErrEmpty):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, jobs.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, jobs.ErrRoleMismatch), errors.Is(err, jobs.ErrVersionConflict):
		return http.StatusConflict
	case errors.Is(err, media.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, jobs.ErrTerminalStatus), errors.Is(err, jobs.ErrInvalidTransition), errors.Is(err, jobs.ErrJobClosed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, media.ErrNotConfigured):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: malformed request body: %v", jobs.ErrValidation, err)
	}
	return nil
}

// jobList keeps empty results as [] on the wire.
func jobList(v *jobs.Jobs) []*jobs.Job {
	if v == nil || v.Items == nil {
		return []*jobs.Job{}
	}
	return v.Items
}
