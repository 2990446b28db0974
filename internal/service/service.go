package service

import (
	"context"

	"github.com/BloggingApp/comment-service/internal/dto"
	"github.com/BloggingApp/comment-service/internal/model"
	"github.com/BloggingApp/comment-service/internal/rabbitmq"
	"github.com/BloggingApp/comment-service/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	MAX_LIMIT     = 50
	DEFAULT_LIMIT = 10
)

func normalizeLimit(limit *int) {
	if *limit <= 0 {
		*limit = DEFAULT_LIMIT
	}
	if *limit > MAX_LIMIT {
		*limit = MAX_LIMIT
	}
}

type Comment interface {
	Create(ctx context.Context, authorID uuid.UUID, input dto.CreateCommentDto) (*model.CommentView, error)
	Update(ctx context.Context, requesterID uuid.UUID, commentID int64, content string) (*model.CommentView, error)
	Delete(ctx context.Context, requesterID uuid.UUID, commentID int64) error
	FindPostComments(ctx context.Context, postID int64, input dto.GetCommentsDto, viewerID *uuid.UUID) (*dto.CommentsPage, error)
}

type Like interface {
	ToggleComment(ctx context.Context, requesterID uuid.UUID, commentID int64) (*dto.LikeResult, error)
	TogglePost(ctx context.Context, requesterID uuid.UUID, postID int64) (*dto.LikeResult, error)
	IsCommentLiked(ctx context.Context, commentID int64, userID uuid.UUID) bool
	IsPostLiked(ctx context.Context, postID int64, userID uuid.UUID) bool
}

type Post interface {
	Create(ctx context.Context, authorID uuid.UUID, input dto.CreatePostDto) (*model.Post, error)
	FindByID(ctx context.Context, id int64) (*model.Post, error)
}

type UserCache interface {
	CreateOrGet(ctx context.Context, id uuid.UUID, accessToken string) (*model.CachedUser, error)
	Create(ctx context.Context, cachedUser model.CachedUser) error
	Update(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.CachedUser, error)
	StartConsumeUpdates(ctx context.Context)
}

type Service struct {
	Comment
	Like
	Post
	UserCache
}

func New(logger *zap.Logger, repo *repository.Repository, mq *rabbitmq.MQConn) *Service {
	return &Service{
		Comment:   newCommentService(logger, repo, mq),
		Like:      newLikeService(logger, repo),
		Post:      newPostService(logger, repo),
		UserCache: newUserCacheService(logger, repo, mq),
	}
}

func (s *Service) StartConsumeAll(ctx context.Context) {
	s.UserCache.StartConsumeUpdates(ctx)
}
