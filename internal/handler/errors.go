package handler

import (
	"errors"
	"net/http"

	"github.com/BloggingApp/comment-service/internal/service"
)

var (
	errNotAuthorized = errors.New("user is not authorized")
	errInvalidPostID = errors.New("invalid post ID")
	errInvalidID     = errors.New("invalid ID")
)

func errorStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrPostNotFound), errors.Is(err, service.ErrCommentNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrNotCommentAuthor):
		return http.StatusForbidden
	case errors.Is(err, service.ErrCommentDeleted):
		return http.StatusGone
	case errors.Is(err, service.ErrCommentContentEmpty), errors.Is(err, service.ErrCommentContentTooLong):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
