package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/anniejean/castingdesk/internal/services"
)

// Error codes and the message sent when the handler supplies none.
var codeText = map[string]string{
	"invalid_input":       "Some fields are invalid.",
	"no_applicable_size":  "No size fits these measurements.",
	"not_found":           "Not found.",
	"conflict":            "That record already exists.",
	"invalid_credentials": "Invalid email or password.",
	"unauthorized":        "Login required.",
	"forbidden":           "Access denied.",
	"rate_limited":        "Too many submissions. Try again later.",
	"unavailable":         "Request canceled.",
	"internal":            "Something went wrong.",
}

type errorBody struct {
	Error   string            `json:"error"`
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeErrorBody(w, status, code, msg, nil)
}

func writeErrorBody(w http.ResponseWriter, status int, code, msg string, fields map[string]string) {
	if msg == "" {
		msg = codeText[code]
	}
	writeJSON(w, status, errorBody{
		Error:   http.StatusText(status),
		Code:    code,
		Message: msg,
		Fields:  fields,
	})
}

// fail maps a service error onto the response. Only unexpected errors are
// logged at error level.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var verr services.ValidationErrors
	var nse *services.NoApplicableSizeError
	switch {
	case errors.As(err, &verr):
		writeErrorBody(w, http.StatusBadRequest, "invalid_input", "", verr)
	case errors.As(err, &nse):
		writeErrorBody(w, http.StatusUnprocessableEntity, "no_applicable_size", "", map[string]string{
			"weight": nse.Weight,
			"height": nse.Height,
		})
	case errors.Is(err, gorm.ErrRecordNotFound):
		writeError(w, http.StatusNotFound, "not_found", "")
	case errors.Is(err, gorm.ErrDuplicatedKey):
		writeError(w, http.StatusConflict, "conflict", "")
	case errors.Is(err, services.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		h.Log.Warn("request canceled", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "unavailable", "")
	default:
		h.Log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "")
	}
}
