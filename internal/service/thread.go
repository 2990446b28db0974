package service

import (
	"sort"

	"github.com/BloggingApp/comment-service/internal/model"
	"github.com/google/uuid"
)

const (
	deletedAuthorPlaceholder  = "[deleted]"
	deletedContentPlaceholder = "[deleted]"
)

type threadBuilder struct {
	children map[int64][]*model.FullComment
	viewerID *uuid.UUID
	liked    map[int64]struct{}
}

// buildThread assembles the rendered tree for one page of root comments from
// the flat set of all comments under the post. Children are ordered by
// creation time; nodes render nested up to model.MaxCommentLevel and deeper
// descendants are flattened next to their level-capped ancestor.
func buildThread(roots []*model.FullComment, all []*model.FullComment, viewerID *uuid.UUID, liked map[int64]struct{}) []*model.CommentView {
	b := &threadBuilder{
		children: make(map[int64][]*model.FullComment),
		viewerID: viewerID,
		liked:    liked,
	}

	for _, comment := range all {
		if comment.Comment.ParentID == nil {
			continue
		}
		parentID := *comment.Comment.ParentID
		b.children[parentID] = append(b.children[parentID], comment)
	}
	for _, siblings := range b.children {
		sort.Slice(siblings, func(i, j int) bool {
			return siblings[i].Comment.CreatedAt.Before(siblings[j].Comment.CreatedAt)
		})
	}

	views := make([]*model.CommentView, 0, len(roots))
	for _, root := range roots {
		views = append(views, b.render(root, 0)...)
	}

	return views
}

// render emits the comment and its subtree. Below the cap a child's subtree
// lives inside the node's Replies; at the cap the node's descendants are
// emitted into the same slice as the node itself, so chains deeper than the
// cap stay visible without nesting further.
func (b *threadBuilder) render(comment *model.FullComment, depth int) []*model.CommentView {
	view := b.view(comment)

	if depth < model.MaxCommentLevel {
		for _, child := range b.children[comment.Comment.ID] {
			view.Replies = append(view.Replies, b.render(child, depth+1)...)
		}
		return []*model.CommentView{view}
	}

	flattened := []*model.CommentView{view}
	for _, child := range b.children[comment.Comment.ID] {
		flattened = append(flattened, b.render(child, depth+1)...)
	}

	return flattened
}

// view maps one comment row to its view node. Deleted comments keep their
// place in the tree but every author-identifying field is replaced with a
// placeholder here, before anything reaches the caller.
func (b *threadBuilder) view(comment *model.FullComment) *model.CommentView {
	view := &model.CommentView{
		ID:           comment.Comment.ID,
		ParentID:     comment.Comment.ParentID,
		Level:        comment.Comment.Level,
		LikesCount:   comment.Comment.LikesCount,
		RepliesCount: comment.Comment.RepliesCount,
		CreatedAt:    comment.Comment.CreatedAt,
		UpdatedAt:    comment.Comment.UpdatedAt,
		Deleted:      comment.Comment.Deleted,
		Replies:      []*model.CommentView{},
	}

	if comment.Comment.Deleted {
		view.AuthorName = deletedAuthorPlaceholder
		view.Content = deletedContentPlaceholder
		return view
	}

	view.Content = comment.Comment.Content
	view.AuthorName = comment.Author.Username
	view.AuthorDisplayName = comment.Author.DisplayName
	view.AuthorAvatar = comment.Author.AvatarURL

	if b.viewerID != nil {
		_, view.IsLiked = b.liked[comment.Comment.ID]
		view.IsOwner = comment.Comment.AuthorID == *b.viewerID
	}

	return view
}

func newCommentView(comment *model.FullComment, viewerID *uuid.UUID, liked map[int64]struct{}) *model.CommentView {
	b := &threadBuilder{
		children: make(map[int64][]*model.FullComment),
		viewerID: viewerID,
		liked:    liked,
	}

	return b.view(comment)
}
