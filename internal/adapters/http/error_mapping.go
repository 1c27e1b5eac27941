package httpadapter

import (
	"net/http"

	"github.com/doctriage/doctriage/internal/core/domain"
)

// statusForError maps domain error kinds onto HTTP statuses. Unsupported
// payload formats get 415 and extraction failures 422 so callers can tell
// "never send this" apart from "this file is broken".
func statusForError(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case domain.IsKind(err, domain.ErrExtractionFailed):
		return http.StatusUnprocessableEntity
	case domain.IsKind(err, domain.ErrUnknownIndustry):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrJobNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrBatchNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
