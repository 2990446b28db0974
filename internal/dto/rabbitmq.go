package dto

import (
	"time"

	"github.com/google/uuid"
)

type MQCommentCreatedMsg struct {
	CommentID int64     `json:"comment_id"`
	PostID    int64     `json:"post_id"`
	ParentID  *int64    `json:"parent_id"`
	AuthorID  uuid.UUID `json:"author_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
