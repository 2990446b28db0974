package postgres

import (
	"context"
	"time"

	"github.com/BloggingApp/comment-service/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type commentRepo struct {
	db *pgxpool.Pool
}

func newCommentRepo(db *pgxpool.Pool) Comment {
	return &commentRepo{
		db: db,
	}
}

func (r *commentRepo) Create(ctx context.Context, comment model.Comment) (*model.Comment, error) {
	now := time.Now()
	comment.CreatedAt = now
	comment.UpdatedAt = now
	comment.RepliesCount = 0
	comment.LikesCount = 0
	comment.Deleted = false

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// re-check the parent under a row lock: a cascade delete committed after
	// the service's liveness check must not gain a live child
	if comment.ParentID != nil {
		var parentDeleted bool
		if err := tx.QueryRow(
			ctx,
			"SELECT c.deleted FROM comments c WHERE c.id = $1 FOR UPDATE",
			*comment.ParentID,
		).Scan(&parentDeleted); err != nil {
			return nil, err
		}
		if parentDeleted {
			return nil, ErrCommentDeleted
		}
	}

	if err := tx.QueryRow(
		ctx,
		`INSERT INTO comments(parent_id, post_id, author_id, content, level, replies_count, likes_count, deleted, created_at, updated_at)
		VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		comment.ParentID,
		comment.PostID,
		comment.AuthorID,
		comment.Content,
		comment.Level,
		comment.RepliesCount,
		comment.LikesCount,
		comment.Deleted,
		comment.CreatedAt,
		comment.UpdatedAt,
	).Scan(&comment.ID); err != nil {
		return nil, err
	}

	if comment.ParentID != nil {
		if _, err := tx.Exec(ctx, "UPDATE comments SET replies_count = replies_count + 1 WHERE id = $1", *comment.ParentID); err != nil {
			return nil, err
		}
	}

	if _, err := tx.Exec(ctx, "UPDATE posts SET comments_count = comments_count + 1 WHERE id = $1", comment.PostID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return &comment, nil
}

func (r *commentRepo) FindByID(ctx context.Context, id int64) (*model.Comment, error) {
	var comment model.Comment
	if err := r.db.QueryRow(
		ctx,
		`SELECT c.id, c.parent_id, c.post_id, c.author_id, c.content, c.level, c.replies_count, c.likes_count, c.deleted, c.created_at, c.updated_at
		FROM comments c
		WHERE c.id = $1`,
		id,
	).Scan(
		&comment.ID,
		&comment.ParentID,
		&comment.PostID,
		&comment.AuthorID,
		&comment.Content,
		&comment.Level,
		&comment.RepliesCount,
		&comment.LikesCount,
		&comment.Deleted,
		&comment.CreatedAt,
		&comment.UpdatedAt,
	); err != nil {
		return nil, err
	}

	return &comment, nil
}

func (r *commentRepo) FindPostComments(ctx context.Context, postID int64) ([]*model.FullComment, error) {
	rows, err := r.db.Query(
		ctx,
		`SELECT
		c.id, c.parent_id, c.post_id, c.author_id, c.content, c.level, c.replies_count, c.likes_count, c.deleted, c.created_at, c.updated_at,
		u.username, u.display_name, u.avatar_url
		FROM comments c
		JOIN cached_users u ON c.author_id = u.id
		WHERE c.post_id = $1
		ORDER BY c.created_at ASC`,
		postID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanFullComments(rows)
}

func (r *commentRepo) FindRootComments(ctx context.Context, postID int64, limit int, offset int, newestFirst bool) ([]*model.FullComment, error) {
	maxLimit(&limit)

	order := "ASC"
	if newestFirst {
		order = "DESC"
	}

	rows, err := r.db.Query(
		ctx,
		`SELECT
		c.id, c.parent_id, c.post_id, c.author_id, c.content, c.level, c.replies_count, c.likes_count, c.deleted, c.created_at, c.updated_at,
		u.username, u.display_name, u.avatar_url
		FROM comments c
		JOIN cached_users u ON c.author_id = u.id
		WHERE c.post_id = $1 AND c.parent_id IS NULL
		ORDER BY c.created_at `+order+`
		LIMIT $2
		OFFSET $3`,
		postID,
		limit,
		offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanFullComments(rows)
}

func (r *commentRepo) CountRootComments(ctx context.Context, postID int64) (int64, error) {
	var count int64
	if err := r.db.QueryRow(
		ctx,
		"SELECT COUNT(*) FROM comments c WHERE c.post_id = $1 AND c.parent_id IS NULL",
		postID,
	).Scan(&count); err != nil {
		return 0, err
	}

	return count, nil
}

func (r *commentRepo) UpdateContent(ctx context.Context, id int64, content string) (*model.Comment, error) {
	var comment model.Comment
	if err := r.db.QueryRow(
		ctx,
		`UPDATE comments SET content = $2, updated_at = now()
		WHERE id = $1 AND deleted = false
		RETURNING id, parent_id, post_id, author_id, content, level, replies_count, likes_count, deleted, created_at, updated_at`,
		id,
		content,
	).Scan(
		&comment.ID,
		&comment.ParentID,
		&comment.PostID,
		&comment.AuthorID,
		&comment.Content,
		&comment.Level,
		&comment.RepliesCount,
		&comment.LikesCount,
		&comment.Deleted,
		&comment.CreatedAt,
		&comment.UpdatedAt,
	); err != nil {
		return nil, err
	}

	return &comment, nil
}

// SoftDeleteCascade marks the comment and every live descendant deleted in a
// single transaction. Every visited row is locked, so two cascades over
// overlapping subtrees cannot both count the same node. Returns the number of
// rows marked, the target included.
func (r *commentRepo) SoftDeleteCascade(ctx context.Context, id int64) (int64, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var (
		parentID *int64
		postID   int64
		deleted  bool
	)
	if err := tx.QueryRow(
		ctx,
		"SELECT c.parent_id, c.post_id, c.deleted FROM comments c WHERE c.id = $1 FOR UPDATE",
		id,
	).Scan(&parentID, &postID, &deleted); err != nil {
		return 0, err
	}
	if deleted {
		return 0, ErrCommentDeleted
	}

	// pre-order walk over live descendants via parent_id adjacency
	var marked []int64
	stack := []int64{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		marked = append(marked, cur)

		children, err := lockLiveChildren(ctx, tx, cur)
		if err != nil {
			return 0, err
		}
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}

	if _, err := tx.Exec(ctx, "UPDATE comments SET deleted = true, updated_at = now() WHERE id = ANY($1)", marked); err != nil {
		return 0, err
	}

	if parentID != nil {
		if _, err := tx.Exec(ctx, "UPDATE comments SET replies_count = GREATEST(replies_count - 1, 0) WHERE id = $1", *parentID); err != nil {
			return 0, err
		}
	}

	if _, err := tx.Exec(ctx, "UPDATE posts SET comments_count = GREATEST(comments_count - $1, 0) WHERE id = $2", len(marked), postID); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}

	return int64(len(marked)), nil
}

func lockLiveChildren(ctx context.Context, tx pgx.Tx, parentID int64) ([]int64, error) {
	rows, err := tx.Query(
		ctx,
		"SELECT c.id FROM comments c WHERE c.parent_id = $1 AND c.deleted = false ORDER BY c.created_at ASC FOR UPDATE",
		parentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func scanFullComments(rows pgx.Rows) ([]*model.FullComment, error) {
	var comments []*model.FullComment
	for rows.Next() {
		var comment model.FullComment
		if err := rows.Scan(
			&comment.Comment.ID,
			&comment.Comment.ParentID,
			&comment.Comment.PostID,
			&comment.Comment.AuthorID,
			&comment.Comment.Content,
			&comment.Comment.Level,
			&comment.Comment.RepliesCount,
			&comment.Comment.LikesCount,
			&comment.Comment.Deleted,
			&comment.Comment.CreatedAt,
			&comment.Comment.UpdatedAt,
			&comment.Author.Username,
			&comment.Author.DisplayName,
			&comment.Author.AvatarURL,
		); err != nil {
			return nil, err
		}

		comments = append(comments, &comment)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return comments, nil
}
