package server

import (
	"encoding/json"
	"errors"
	"net/http"
)

const (
	headerContentType = "Content-Type"
	contentTypeJSON   = "application/json"
)

// HTTPError is an error with the status and client-facing detail to send.
type HTTPError struct {
	Status int
	Detail string
	Cause  error
}

func (e *HTTPError) Error() string {
	return e.Detail
}

func (e *HTTPError) Unwrap() error {
	return e.Cause
}

func newHTTPError(status int, detail string, cause error) *HTTPError {
	return &HTTPError{Status: status, Detail: detail, Cause: cause}
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set(headerContentType, contentTypeJSON)
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(payload)
}

// writeError sends err as {"detail": ...}. Errors that are not an HTTPError are
// reported as 500 with their raw message.
func writeError(w http.ResponseWriter, err error) {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		writeJSON(w, httpErr.Status, errorBody{Detail: httpErr.Detail})

		return
	}

	writeJSON(w, http.StatusInternalServerError, errorBody{Detail: err.Error()})
}
