package dto

type CreateCommentDto struct {
	PostID   int64  `json:"post_id" binding:"required"`
	ParentID *int64 `json:"parent_id"`
	Content  string `json:"content" binding:"required"`
}

type UpdateCommentDto struct {
	Content string `json:"content" binding:"required"`
}

type GetCommentsDto struct {
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
	Sort   string `form:"sort"` // "asc" or "desc" by created_at, default "desc"
}
