package web

import (
	"encoding/json"
	"net/http"

	"minibus-console/internal/models"
)

// Response is the envelope of every API reply.
type Response struct {
	Error   bool          `json:"error"`
	Message string        `json:"message"`
	Kind    string        `json:"kind,omitempty"`
	Details []ErrorDetail `json:"details,omitempty"`
	Data    interface{}   `json:"data,omitempty"`
}

type ErrorDetail struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func success(w http.ResponseWriter, message string, data interface{}) {
	writeJSON(w, http.StatusOK, Response{Message: message, Data: data})
}

func created(w http.ResponseWriter, message string, data interface{}) {
	writeJSON(w, http.StatusCreated, Response{Message: message, Data: data})
}

func badRequest(w http.ResponseWriter, message string, details ...ErrorDetail) {
	status := http.StatusBadRequest
	if len(details) > 0 {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, Response{Error: true, Message: message, Details: details})
}

// StatusFor maps an error kind onto an HTTP status.
func StatusFor(err error) int {
	switch models.KindOf(err) {
	case models.KindNotFound:
		return http.StatusNotFound
	case models.KindCapacityExceeded, models.KindConflict:
		return http.StatusConflict
	case models.KindInvalidSubscriptionType:
		return http.StatusBadRequest
	case models.KindInvalidArgument:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// serviceError returns the message verbatim for typed errors. Untyped
// errors are hidden behind a generic message.
func (h *Handler) serviceError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	kind := models.KindOf(err)

	message := err.Error()
	if kind == "" {
		message = "internal error"
	}
	if status == http.StatusInternalServerError {
		h.log.Error("request failed",
			logFields(r, err)...)
	}
	writeJSON(w, status, Response{Error: true, Message: message, Kind: string(kind)})
}
