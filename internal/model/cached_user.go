package model

import "github.com/google/uuid"

// CachedUser is the denormalized author profile kept in the local cached_users
// table and refreshed from the user service over the message queue.
type CachedUser struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url"`
}

// UserAuthor is the author slice of CachedUser joined into comment reads.
type UserAuthor struct {
	Username    string  `json:"username"`
	DisplayName *string `json:"display_name"`
	AvatarURL   *string `json:"avatar_url"`
}
