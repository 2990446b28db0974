package postgres

import (
	"context"
	"errors"

	"github.com/BloggingApp/comment-service/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const MAX_LIMIT = 50

func maxLimit(limit *int) {
	if *limit > MAX_LIMIT {
		*limit = MAX_LIMIT
	}
}

var (
	ErrCommentDeleted           = errors.New("comment is already deleted")
	ErrFieldsNotAllowedToUpdate = errors.New("fields are not allowed to update")
)

type Comment interface {
	Create(ctx context.Context, comment model.Comment) (*model.Comment, error)
	FindByID(ctx context.Context, id int64) (*model.Comment, error)
	FindPostComments(ctx context.Context, postID int64) ([]*model.FullComment, error)
	FindRootComments(ctx context.Context, postID int64, limit int, offset int, newestFirst bool) ([]*model.FullComment, error)
	CountRootComments(ctx context.Context, postID int64) (int64, error)
	UpdateContent(ctx context.Context, id int64, content string) (*model.Comment, error)
	SoftDeleteCascade(ctx context.Context, id int64) (int64, error)
}

type Post interface {
	Create(ctx context.Context, post model.Post) (*model.Post, error)
	FindByID(ctx context.Context, id int64) (*model.Post, error)
}

type Like interface {
	ToggleCommentLike(ctx context.Context, commentID int64, userID uuid.UUID) (*model.Like, int64, error)
	TogglePostLike(ctx context.Context, postID int64, userID uuid.UUID) (*model.Like, int64, error)
	IsCommentLiked(ctx context.Context, commentID int64, userID uuid.UUID) (bool, error)
	IsPostLiked(ctx context.Context, postID int64, userID uuid.UUID) (bool, error)
	FindLikedCommentIDs(ctx context.Context, postID int64, userID uuid.UUID) (map[int64]struct{}, error)
}

type UserCache interface {
	Create(ctx context.Context, cachedUser model.CachedUser) error
	Update(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.CachedUser, error)
}

type PostgresRepository struct {
	Comment
	Post
	Like
	UserCache
}

func New(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{
		Comment:   newCommentRepo(db),
		Post:      newPostRepo(db),
		Like:      newLikeRepo(db),
		UserCache: newUserCacheRepo(db),
	}
}
