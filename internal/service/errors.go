package service

import "errors"

var (
	ErrInternal = errors.New("internal server error")

	ErrPostNotFound    = errors.New("post not found")
	ErrCommentNotFound = errors.New("comment not found")

	ErrNotCommentAuthor = errors.New("comment belongs to another user")

	ErrCommentDeleted = errors.New("comment is deleted")

	ErrCommentContentEmpty   = errors.New("comment content must not be empty")
	ErrCommentContentTooLong = errors.New("comment content exceeds the maximum length")
)
