package dto

import "github.com/BloggingApp/comment-service/internal/model"

type CommentsPage struct {
	Comments []*model.CommentView `json:"comments"`
	Total    int64                `json:"total"`
	Limit    int                  `json:"limit"`
	Offset   int                  `json:"offset"`
}

type LikeResult struct {
	Liked bool  `json:"liked"`
	Count int64 `json:"count"`
}
