package httpadapter

import (
	"net/http"

	"github.com/kirillkom/cardsnap/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrStaleRevision):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrUndoExpired):
		return http.StatusGone
	case domain.IsKind(err, domain.ErrMissingCredential):
		return http.StatusPreconditionFailed
	case domain.IsKind(err, domain.ErrCardNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrExtraction):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
