package postgres

import (
	"context"
	"time"

	"github.com/BloggingApp/comment-service/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
)

type postRepo struct {
	db *pgxpool.Pool
}

func newPostRepo(db *pgxpool.Pool) Post {
	return &postRepo{
		db: db,
	}
}

func (r *postRepo) Create(ctx context.Context, post model.Post) (*model.Post, error) {
	now := time.Now()
	post.CreatedAt = now
	post.UpdatedAt = now
	post.CommentsCount = 0
	post.LikesCount = 0

	if err := r.db.QueryRow(
		ctx,
		`INSERT INTO posts(author_id, title, comments_count, likes_count, created_at, updated_at)
		VALUES($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		post.AuthorID,
		post.Title,
		post.CommentsCount,
		post.LikesCount,
		post.CreatedAt,
		post.UpdatedAt,
	).Scan(&post.ID); err != nil {
		return nil, err
	}

	return &post, nil
}

func (r *postRepo) FindByID(ctx context.Context, id int64) (*model.Post, error) {
	var post model.Post
	if err := r.db.QueryRow(
		ctx,
		`SELECT p.id, p.author_id, p.title, p.comments_count, p.likes_count, p.created_at, p.updated_at
		FROM posts p
		WHERE p.id = $1`,
		id,
	).Scan(
		&post.ID,
		&post.AuthorID,
		&post.Title,
		&post.CommentsCount,
		&post.LikesCount,
		&post.CreatedAt,
		&post.UpdatedAt,
	); err != nil {
		return nil, err
	}

	return &post, nil
}
