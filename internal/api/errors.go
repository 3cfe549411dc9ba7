package api

import (
	"errors"
	"net/http"

	"groupsync/internal/domain"
)

// httpStatusFromDomainError maps domain errors to HTTP status codes.
func httpStatusFromDomainError(err error) int {
	var notFound *domain.NotFoundError
	var auth *domain.AuthError
	var validation *domain.ValidationError
	var alreadyMember *domain.AlreadyMemberError

	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &auth):
		return http.StatusUnauthorized
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &alreadyMember):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
