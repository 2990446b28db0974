package postgres

import (
	"context"

	"github.com/BloggingApp/comment-service/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type likeRepo struct {
	db *pgxpool.Pool
}

func newLikeRepo(db *pgxpool.Pool) Like {
	return &likeRepo{
		db: db,
	}
}

// ToggleCommentLike flips (or inserts) the requester's like row and rewrites
// the cached likes_count from a fresh COUNT over the like rows, all in one
// transaction. The target row is locked first so interleaved toggles by
// different users serialize their recounts.
func (r *likeRepo) ToggleCommentLike(ctx context.Context, commentID int64, userID uuid.UUID) (*model.Like, int64, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, 0, err
	}
	defer tx.Rollback(ctx)

	var targetID int64
	if err := tx.QueryRow(ctx, "SELECT c.id FROM comments c WHERE c.id = $1 FOR UPDATE", commentID).Scan(&targetID); err != nil {
		return nil, 0, err
	}

	like := model.Like{TargetID: commentID, UserID: userID}
	if err := tx.QueryRow(
		ctx,
		`INSERT INTO comment_likes(comment_id, user_id, liked, updated_at)
		VALUES($1, $2, true, now())
		ON CONFLICT (comment_id, user_id) DO UPDATE SET liked = NOT comment_likes.liked, updated_at = now()
		RETURNING id, liked, updated_at`,
		commentID,
		userID,
	).Scan(&like.ID, &like.Liked, &like.UpdatedAt); err != nil {
		return nil, 0, err
	}

	var count int64
	if err := tx.QueryRow(ctx, "SELECT COUNT(*) FROM comment_likes l WHERE l.comment_id = $1 AND l.liked = true", commentID).Scan(&count); err != nil {
		return nil, 0, err
	}

	if _, err := tx.Exec(ctx, "UPDATE comments SET likes_count = $1 WHERE id = $2", count, commentID); err != nil {
		return nil, 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, 0, err
	}

	return &like, count, nil
}

func (r *likeRepo) TogglePostLike(ctx context.Context, postID int64, userID uuid.UUID) (*model.Like, int64, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, 0, err
	}
	defer tx.Rollback(ctx)

	var targetID int64
	if err := tx.QueryRow(ctx, "SELECT p.id FROM posts p WHERE p.id = $1 FOR UPDATE", postID).Scan(&targetID); err != nil {
		return nil, 0, err
	}

	like := model.Like{TargetID: postID, UserID: userID}
	if err := tx.QueryRow(
		ctx,
		`INSERT INTO post_likes(post_id, user_id, liked, updated_at)
		VALUES($1, $2, true, now())
		ON CONFLICT (post_id, user_id) DO UPDATE SET liked = NOT post_likes.liked, updated_at = now()
		RETURNING id, liked, updated_at`,
		postID,
		userID,
	).Scan(&like.ID, &like.Liked, &like.UpdatedAt); err != nil {
		return nil, 0, err
	}

	var count int64
	if err := tx.QueryRow(ctx, "SELECT COUNT(*) FROM post_likes l WHERE l.post_id = $1 AND l.liked = true", postID).Scan(&count); err != nil {
		return nil, 0, err
	}

	if _, err := tx.Exec(ctx, "UPDATE posts SET likes_count = $1 WHERE id = $2", count, postID); err != nil {
		return nil, 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, 0, err
	}

	return &like, count, nil
}

func (r *likeRepo) IsCommentLiked(ctx context.Context, commentID int64, userID uuid.UUID) (bool, error) {
	var liked bool
	if err := r.db.QueryRow(
		ctx,
		"SELECT l.liked FROM comment_likes l WHERE l.comment_id = $1 AND l.user_id = $2",
		commentID,
		userID,
	).Scan(&liked); err != nil {
		return false, err
	}

	return liked, nil
}

func (r *likeRepo) IsPostLiked(ctx context.Context, postID int64, userID uuid.UUID) (bool, error) {
	var liked bool
	if err := r.db.QueryRow(
		ctx,
		"SELECT l.liked FROM post_likes l WHERE l.post_id = $1 AND l.user_id = $2",
		postID,
		userID,
	).Scan(&liked); err != nil {
		return false, err
	}

	return liked, nil
}

func (r *likeRepo) FindLikedCommentIDs(ctx context.Context, postID int64, userID uuid.UUID) (map[int64]struct{}, error) {
	rows, err := r.db.Query(
		ctx,
		`SELECT l.comment_id
		FROM comment_likes l
		JOIN comments c ON l.comment_id = c.id
		WHERE c.post_id = $1 AND l.user_id = $2 AND l.liked = true`,
		postID,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	liked := make(map[int64]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		liked[id] = struct{}{}
	}

	return liked, rows.Err()
}
