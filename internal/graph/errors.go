package graph

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
)

// Error is a failed directory request, carrying the HTTP status and the
// decoded error envelope when the body held one.
type Error struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *Error) Error() string {
	parts := make([]string, 0, 3)
	parts = append(parts, http.StatusText(e.StatusCode))
	if e.Code != "" {
		parts = append(parts, strings.TrimPrefix(e.Code, "Request_"))
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	return strings.Join(parts, ": ")
}

// readError builds an *Error from a non-2xx response body.
func readError(statusCode int, body io.Reader) *Error {
	var envelope struct {
		Error *Error `json:"error"`
	}
	// A body that is not the standard envelope still yields a status-only error.
	if err := json.NewDecoder(body).Decode(&envelope); err == nil && envelope.Error != nil {
		envelope.Error.StatusCode = statusCode
		return envelope.Error
	}
	return &Error{StatusCode: statusCode}
}

// IsNotFound reports whether err is a directory 404.
func IsNotFound(err error) bool {
	var gerr *Error
	return errors.As(err, &gerr) && gerr.StatusCode == http.StatusNotFound
}

// isAlreadyMember reports whether an add-member failure means the principal
// is already in the group. The directory answers 400 with an "already exist"
// message for duplicate $ref additions, and 409 from some endpoints.
func isAlreadyMember(err error) bool {
	var gerr *Error
	if !errors.As(err, &gerr) {
		return false
	}
	if gerr.StatusCode == http.StatusConflict {
		return true
	}
	return gerr.StatusCode == http.StatusBadRequest &&
		strings.Contains(strings.ToLower(gerr.Message), "already exist")
}
