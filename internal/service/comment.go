package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/BloggingApp/comment-service/internal/dto"
	"github.com/BloggingApp/comment-service/internal/model"
	"github.com/BloggingApp/comment-service/internal/rabbitmq"
	"github.com/BloggingApp/comment-service/internal/repository"
	"github.com/BloggingApp/comment-service/internal/repository/postgres"
	"github.com/BloggingApp/comment-service/internal/repository/redisrepo"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// maxAncestorChain bounds the parent-by-parent walk: the stored reply chain is
// unbounded even though the rendered depth is capped at model.MaxCommentLevel.
const maxAncestorChain = 512

const defaultMaxContentLength = 2000

type commentService struct {
	logger *zap.Logger
	repo   *repository.Repository
	mq     rabbitmq.Publisher
}

func newCommentService(logger *zap.Logger, repo *repository.Repository, mq rabbitmq.Publisher) Comment {
	return &commentService{
		logger: logger,
		repo:   repo,
		mq:     mq,
	}
}

func maxContentLength() int {
	if max := viper.GetInt("comments.max-content-length"); max > 0 {
		return max
	}
	return defaultMaxContentLength
}

func validateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrCommentContentEmpty
	}
	if utf8.RuneCountInString(content) > maxContentLength() {
		return ErrCommentContentTooLong
	}
	return nil
}

func (s *commentService) Create(ctx context.Context, authorID uuid.UUID, input dto.CreateCommentDto) (*model.CommentView, error) {
	if err := validateContent(input.Content); err != nil {
		return nil, err
	}

	if _, err := s.repo.Postgres.Post.FindByID(ctx, input.PostID); err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrPostNotFound
		}
		s.logger.Sugar().Errorf("failed to find post(%d): %s", input.PostID, err.Error())
		return nil, ErrInternal
	}

	level := 0
	if input.ParentID != nil {
		parent, err := s.repo.Postgres.Comment.FindByID(ctx, *input.ParentID)
		if err != nil {
			if err == pgx.ErrNoRows {
				return nil, ErrCommentNotFound
			}
			s.logger.Sugar().Errorf("failed to find parent comment(%d): %s", *input.ParentID, err.Error())
			return nil, ErrInternal
		}
		if parent.PostID != input.PostID {
			return nil, ErrCommentNotFound
		}

		if err := s.ensureAncestryActive(ctx, parent); err != nil {
			return nil, err
		}

		level = parent.Level + 1
		if level > model.MaxCommentLevel {
			level = model.MaxCommentLevel
		}
	}

	comment := model.Comment{
		ParentID: input.ParentID,
		PostID:   input.PostID,
		AuthorID: authorID,
		Content:  strings.TrimSpace(input.Content),
		Level:    level,
	}
	created, err := s.repo.Postgres.Comment.Create(ctx, comment)
	if err != nil {
		// the parent may have been cascade-deleted after the liveness check
		if err == postgres.ErrCommentDeleted {
			return nil, ErrCommentDeleted
		}
		if err == pgx.ErrNoRows {
			return nil, ErrCommentNotFound
		}
		s.logger.Sugar().Errorf("failed to create user(%s) comment: %s", authorID.String(), err.Error())
		return nil, ErrInternal
	}

	s.invalidateThreadCache(ctx, created.PostID)
	s.publishCommentCreated(created)

	return s.viewOf(ctx, created, &authorID), nil
}

func (s *commentService) Update(ctx context.Context, requesterID uuid.UUID, commentID int64, content string) (*model.CommentView, error) {
	if err := validateContent(content); err != nil {
		return nil, err
	}

	comment, err := s.findComment(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if comment.AuthorID != requesterID {
		return nil, ErrNotCommentAuthor
	}

	if err := s.ensureAncestryActive(ctx, comment); err != nil {
		return nil, err
	}

	updated, err := s.repo.Postgres.Comment.UpdateContent(ctx, commentID, strings.TrimSpace(content))
	if err != nil {
		// the comment existed moments ago, so no rows means the deleted guard fired
		if err == pgx.ErrNoRows {
			return nil, ErrCommentDeleted
		}
		s.logger.Sugar().Errorf("failed to update comment(%d): %s", commentID, err.Error())
		return nil, ErrInternal
	}

	s.invalidateThreadCache(ctx, updated.PostID)

	return s.viewOf(ctx, updated, &requesterID), nil
}

func (s *commentService) Delete(ctx context.Context, requesterID uuid.UUID, commentID int64) error {
	comment, err := s.findComment(ctx, commentID)
	if err != nil {
		return err
	}
	if comment.AuthorID != requesterID {
		return ErrNotCommentAuthor
	}

	if err := s.ensureAncestryActive(ctx, comment); err != nil {
		return err
	}

	deleted, err := s.repo.Postgres.Comment.SoftDeleteCascade(ctx, commentID)
	if err != nil {
		// a concurrent cascade may have reached this comment first
		if err == postgres.ErrCommentDeleted {
			return ErrCommentDeleted
		}
		if err == pgx.ErrNoRows {
			return ErrCommentNotFound
		}
		s.logger.Sugar().Errorf("failed to cascade delete comment(%d): %s", commentID, err.Error())
		return ErrInternal
	}

	s.logger.Sugar().Debugf("cascade delete of comment(%d) marked %d comments", commentID, deleted)
	s.invalidateThreadCache(ctx, comment.PostID)

	return nil
}

func (s *commentService) FindPostComments(ctx context.Context, postID int64, input dto.GetCommentsDto, viewerID *uuid.UUID) (*dto.CommentsPage, error) {
	normalizeLimit(&input.Limit)
	if input.Offset < 0 {
		input.Offset = 0
	}
	sortKey := "desc"
	if strings.EqualFold(input.Sort, "asc") {
		sortKey = "asc"
	}

	if _, err := s.repo.Postgres.Post.FindByID(ctx, postID); err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrPostNotFound
		}
		s.logger.Sugar().Errorf("failed to find post(%d): %s", postID, err.Error())
		return nil, ErrInternal
	}

	// viewer-specific trees carry is_liked/is_owner, only anonymous pages are cacheable
	if viewerID == nil {
		cached, err := redisrepo.Get[dto.CommentsPage](s.repo.Redis.Default, ctx, redisrepo.PostCommentsKey(postID, sortKey, input.Limit, input.Offset))
		if err == nil && cached != nil {
			return cached, nil
		}
		if err != nil && err != redis.Nil {
			s.logger.Sugar().Errorf("failed to get post(%d) comments from redis: %s", postID, err.Error())
		}
	}

	roots, err := s.repo.Postgres.Comment.FindRootComments(ctx, postID, input.Limit, input.Offset, sortKey == "desc")
	if err != nil {
		s.logger.Sugar().Errorf("failed to find post(%d) root comments: %s", postID, err.Error())
		return nil, ErrInternal
	}

	all, err := s.repo.Postgres.Comment.FindPostComments(ctx, postID)
	if err != nil {
		s.logger.Sugar().Errorf("failed to find post(%d) comments: %s", postID, err.Error())
		return nil, ErrInternal
	}

	total, err := s.repo.Postgres.Comment.CountRootComments(ctx, postID)
	if err != nil {
		s.logger.Sugar().Errorf("failed to count post(%d) root comments: %s", postID, err.Error())
		return nil, ErrInternal
	}

	var liked map[int64]struct{}
	if viewerID != nil {
		liked, err = s.repo.Postgres.Like.FindLikedCommentIDs(ctx, postID, *viewerID)
		if err != nil {
			s.logger.Sugar().Errorf("failed to find user(%s) liked comments for post(%d): %s", viewerID.String(), postID, err.Error())
			return nil, ErrInternal
		}
	}

	page := &dto.CommentsPage{
		Comments: buildThread(roots, all, viewerID, liked),
		Total:    total,
		Limit:    input.Limit,
		Offset:   input.Offset,
	}

	if viewerID == nil {
		if err := s.repo.Redis.Default.SetJSON(ctx, redisrepo.PostCommentsKey(postID, sortKey, input.Limit, input.Offset), page, time.Minute); err != nil {
			s.logger.Sugar().Errorf("failed to set post(%d) comments in redis: %s", postID, err.Error())
		}
	}

	return page, nil
}

func (s *commentService) findComment(ctx context.Context, commentID int64) (*model.Comment, error) {
	comment, err := s.repo.Postgres.Comment.FindByID(ctx, commentID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrCommentNotFound
		}
		s.logger.Sugar().Errorf("failed to find comment(%d): %s", commentID, err.Error())
		return nil, ErrInternal
	}

	return comment, nil
}

// ensureAncestryActive fails with ErrCommentDeleted if the comment or any
// comment on its parent chain is soft-deleted. The walk is bounded because
// the stored chain length has no cap.
func (s *commentService) ensureAncestryActive(ctx context.Context, comment *model.Comment) error {
	cur := comment
	for i := 0; i < maxAncestorChain; i++ {
		if cur.Deleted {
			return ErrCommentDeleted
		}
		if cur.ParentID == nil {
			return nil
		}

		parent, err := s.repo.Postgres.Comment.FindByID(ctx, *cur.ParentID)
		if err != nil {
			if err == pgx.ErrNoRows {
				return ErrCommentNotFound
			}
			s.logger.Sugar().Errorf("failed to find ancestor comment(%d): %s", *cur.ParentID, err.Error())
			return ErrInternal
		}
		cur = parent
	}

	s.logger.Sugar().Errorf("comment(%d) ancestor chain exceeds %d", comment.ID, maxAncestorChain)
	return ErrInternal
}

func (s *commentService) viewOf(ctx context.Context, comment *model.Comment, viewerID *uuid.UUID) *model.CommentView {
	full := model.FullComment{Comment: *comment}

	author, err := s.repo.Postgres.UserCache.FindByID(ctx, comment.AuthorID)
	if err != nil {
		if err != pgx.ErrNoRows {
			s.logger.Sugar().Errorf("failed to find cached user(%s): %s", comment.AuthorID.String(), err.Error())
		}
	} else {
		full.Author = model.UserAuthor{
			Username:    author.Username,
			DisplayName: &author.DisplayName,
			AvatarURL:   &author.AvatarURL,
		}
	}

	return newCommentView(&full, viewerID, nil)
}

func (s *commentService) invalidateThreadCache(ctx context.Context, postID int64) {
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

func (s *commentService) publishCommentCreated(comment *model.Comment) {
	msg := dto.MQCommentCreatedMsg{
		CommentID: comment.ID,
		PostID:    comment.PostID,
		ParentID:  comment.ParentID,
		AuthorID:  comment.AuthorID,
		Content:   comment.Content,
		CreatedAt: comment.CreatedAt,
	}

	msgJSON, err := json.Marshal(msg)
	if err != nil {
		s.logger.Sugar().Errorf("failed to marshal comment(%d) created message: %s", comment.ID, err.Error())
		return
	}

	if err := s.mq.Publish(rabbitmq.COMMENT_CREATED_QUEUE, msgJSON); err != nil {
		s.logger.Sugar().Errorf("failed to publish comment(%d) created message: %s", comment.ID, err.Error())
	}
}
