package service

import (
	"context"

	"github.com/BloggingApp/comment-service/internal/dto"
	"github.com/BloggingApp/comment-service/internal/repository"
	"github.com/BloggingApp/comment-service/internal/repository/redisrepo"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type likeService struct {
	logger *zap.Logger
	repo   *repository.Repository
}

func newLikeService(logger *zap.Logger, repo *repository.Repository) Like {
	return &likeService{
		logger: logger,
		repo:   repo,
	}
}

func (s *likeService) ToggleComment(ctx context.Context, requesterID uuid.UUID, commentID int64) (*dto.LikeResult, error) {
	comment, err := s.repo.Postgres.Comment.FindByID(ctx, commentID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrCommentNotFound
		}
		s.logger.Sugar().Errorf("failed to find comment(%d): %s", commentID, err.Error())
		return nil, ErrInternal
	}
	if comment.Deleted {
		return nil, ErrCommentNotFound
	}

	like, count, err := s.repo.Postgres.Like.ToggleCommentLike(ctx, commentID, requesterID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrCommentNotFound
		}
		s.logger.Sugar().Errorf("failed to toggle user(%s) like on comment(%d): %s", requesterID.String(), commentID, err.Error())
		return nil, ErrInternal
	}

	s.invalidateThreadCache(ctx, comment.PostID)

	return &dto.LikeResult{Liked: like.Liked, Count: count}, nil
}

func (s *likeService) TogglePost(ctx context.Context, requesterID uuid.UUID, postID int64) (*dto.LikeResult, error) {
	if _, err := s.repo.Postgres.Post.FindByID(ctx, postID); err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrPostNotFound
		}
		s.logger.Sugar().Errorf("failed to find post(%d): %s", postID, err.Error())
		return nil, ErrInternal
	}

	like, count, err := s.repo.Postgres.Like.TogglePostLike(ctx, postID, requesterID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrPostNotFound
		}
		s.logger.Sugar().Errorf("failed to toggle user(%s) like on post(%d): %s", requesterID.String(), postID, err.Error())
		return nil, ErrInternal
	}

	if err := s.repo.Redis.Default.Del(ctx, redisrepo.PostKey(postID)).Err(); err != nil {
		s.logger.Sugar().Errorf("failed to invalidate post(%d) cache: %s", postID, err.Error())
	}

	return &dto.LikeResult{Liked: like.Liked, Count: count}, nil
}

func (s *likeService) IsCommentLiked(ctx context.Context, commentID int64, userID uuid.UUID) bool {
	liked, err := s.repo.Postgres.Like.IsCommentLiked(ctx, commentID, userID)
	if err != nil {
		if err != pgx.ErrNoRows {
			s.logger.Sugar().Errorf("failed to check user(%s) like on comment(%d): %s", userID.String(), commentID, err.Error())
		}
		return false
	}

	return liked
}

func (s *likeService) IsPostLiked(ctx context.Context, postID int64, userID uuid.UUID) bool {
	liked, err := s.repo.Postgres.Like.IsPostLiked(ctx, postID, userID)
	if err != nil {
		if err != pgx.ErrNoRows {
			s.logger.Sugar().Errorf("failed to check user(%s) like on post(%d): %s", userID.String(), postID, err.Error())
		}
		return false
	}

	return liked
}

func (s *likeService) invalidateThreadCache(ctx context.Context, postID int64) {
	keys, err := s.repo.Redis.Default.Keys(ctx, redisrepo.PostCommentsPattern(postID)).Result()
	if err != nil {
		s.logger.Sugar().Errorf("failed to list post(%d) comment cache keys: %s", postID, err.Error())
		return
	}
	if len(keys) == 0 {
		return
	}

	if err := s.repo.Redis.Default.Del(ctx, keys...).Err(); err != nil {
		s.logger.Sugar().Errorf("failed to invalidate post(%d) comment cache: %s", postID, err.Error())
	}
}
