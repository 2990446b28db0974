package model

import (
	"time"

	"github.com/google/uuid"
)

// MaxCommentLevel caps the stored nesting depth: a reply to a comment that
// already sits at this level stays at this level, while its parent_id keeps
// pointing at the actual parent.
const MaxCommentLevel = 2

type Comment struct {
	ID           int64     `json:"id"`
	ParentID     *int64    `json:"parent_id"`
	PostID       int64     `json:"post_id"`
	AuthorID     uuid.UUID `json:"author_id"`
	Content      string    `json:"content"`
	Level        int       `json:"level"`
	RepliesCount int64     `json:"replies_count"`
	LikesCount   int64     `json:"likes_count"`
	Deleted      bool      `json:"deleted"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type FullComment struct {
	Comment Comment    `json:"comment"`
	Author  UserAuthor `json:"author"`
}

type CommentView struct {
	ID                int64          `json:"id"`
	Content           string         `json:"content"`
	AuthorName        string         `json:"author_name"`
	AuthorDisplayName *string        `json:"author_display_name"`
	AuthorAvatar      *string        `json:"author_avatar"`
	ParentID          *int64         `json:"parent_id"`
	Level             int            `json:"level"`
	LikesCount        int64          `json:"likes_count"`
	RepliesCount      int64          `json:"replies_count"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	IsLiked           bool           `json:"is_liked"`
	IsOwner           bool           `json:"is_owner"`
	Deleted           bool           `json:"deleted"`
	Replies           []*CommentView `json:"replies"`
}
