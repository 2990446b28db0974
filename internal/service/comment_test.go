package service

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/BloggingApp/comment-service/internal/dto"
	"github.com/BloggingApp/comment-service/internal/model"
	"github.com/BloggingApp/comment-service/internal/repository"
	"github.com/BloggingApp/comment-service/internal/repository/postgres"
	"github.com/BloggingApp/comment-service/internal/repository/redisrepo"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type likeKey struct {
	target int64
	user   uuid.UUID
}

// fakeStore is an in-memory stand-in for the postgres repositories, with the
// same counter and cascade semantics the SQL implementations have.
type fakeStore struct {
	mu         sync.Mutex
	nextID     int64
	nextLikeID int64
	clock      time.Time

	comments     map[int64]*model.Comment
	posts        map[int64]*model.Post
	users        map[uuid.UUID]*model.CachedUser
	commentLikes map[likeKey]*model.Like
	postLikes    map[likeKey]*model.Like
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		clock:        time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		comments:     make(map[int64]*model.Comment),
		posts:        make(map[int64]*model.Post),
		users:        make(map[uuid.UUID]*model.CachedUser),
		commentLikes: make(map[likeKey]*model.Like),
		postLikes:    make(map[likeKey]*model.Like),
	}
}

func (f *fakeStore) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fakeStore) Create(ctx context.Context, comment model.Comment) (*model.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if comment.ParentID != nil {
		// store the value, not the caller's pointer, like the SQL layer does
		parentID := *comment.ParentID
		comment.ParentID = &parentID

		parent, ok := f.comments[parentID]
		if !ok {
			return nil, pgx.ErrNoRows
		}
		if parent.Deleted {
			return nil, postgres.ErrCommentDeleted
		}
	}

	f.nextID++
	comment.ID = f.nextID
	now := f.tick()
	comment.CreatedAt = now
	comment.UpdatedAt = now
	comment.RepliesCount = 0
	comment.LikesCount = 0
	comment.Deleted = false

	stored := comment
	f.comments[comment.ID] = &stored

	if comment.ParentID != nil {
		if parent, ok := f.comments[*comment.ParentID]; ok {
			parent.RepliesCount++
		}
	}
	if post, ok := f.posts[comment.PostID]; ok {
		post.CommentsCount++
	}

	return &comment, nil
}

func (f *fakeStore) FindByID(ctx context.Context, id int64) (*model.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	comment, ok := f.comments[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}

	copied := *comment
	return &copied, nil
}

func (f *fakeStore) fullComment(comment *model.Comment) *model.FullComment {
	full := model.FullComment{Comment: *comment}
	if user, ok := f.users[comment.AuthorID]; ok {
		full.Author = model.UserAuthor{
			Username:    user.Username,
			DisplayName: &user.DisplayName,
			AvatarURL:   &user.AvatarURL,
		}
	}
	return &full
}

func (f *fakeStore) FindPostComments(ctx context.Context, postID int64) ([]*model.FullComment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var comments []*model.FullComment
	for _, comment := range f.comments {
		if comment.PostID == postID {
			comments = append(comments, f.fullComment(comment))
		}
	}
	sort.Slice(comments, func(i, j int) bool {
		return comments[i].Comment.CreatedAt.Before(comments[j].Comment.CreatedAt)
	})

	return comments, nil
}

func (f *fakeStore) FindRootComments(ctx context.Context, postID int64, limit int, offset int, newestFirst bool) ([]*model.FullComment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var roots []*model.FullComment
	for _, comment := range f.comments {
		if comment.PostID == postID && comment.ParentID == nil {
			roots = append(roots, f.fullComment(comment))
		}
	}
	sort.Slice(roots, func(i, j int) bool {
		if newestFirst {
			return roots[i].Comment.CreatedAt.After(roots[j].Comment.CreatedAt)
		}
		return roots[i].Comment.CreatedAt.Before(roots[j].Comment.CreatedAt)
	})

	if offset >= len(roots) {
		return nil, nil
	}
	roots = roots[offset:]
	if limit < len(roots) {
		roots = roots[:limit]
	}

	return roots, nil
}

func (f *fakeStore) CountRootComments(ctx context.Context, postID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var count int64
	for _, comment := range f.comments {
		if comment.PostID == postID && comment.ParentID == nil {
			count++
		}
	}

	return count, nil
}

func (f *fakeStore) UpdateContent(ctx context.Context, id int64, content string) (*model.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	comment, ok := f.comments[id]
	if !ok || comment.Deleted {
		return nil, pgx.ErrNoRows
	}

	comment.Content = content
	comment.UpdatedAt = f.tick()

	copied := *comment
	return &copied, nil
}

func (f *fakeStore) SoftDeleteCascade(ctx context.Context, id int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	target, ok := f.comments[id]
	if !ok {
		return 0, pgx.ErrNoRows
	}
	if target.Deleted {
		return 0, postgres.ErrCommentDeleted
	}

	var marked []int64
	stack := []int64{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		marked = append(marked, cur)

		var children []*model.Comment
		for _, comment := range f.comments {
			if comment.ParentID != nil && *comment.ParentID == cur && !comment.Deleted {
				children = append(children, comment)
			}
		}
		sort.Slice(children, func(i, j int) bool {
			return children[i].CreatedAt.Before(children[j].CreatedAt)
		})
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i].ID)
		}
	}

	now := f.tick()
	for _, markedID := range marked {
		f.comments[markedID].Deleted = true
		f.comments[markedID].UpdatedAt = now
	}

	if target.ParentID != nil {
		if parent, ok := f.comments[*target.ParentID]; ok && parent.RepliesCount > 0 {
			parent.RepliesCount--
		}
	}
	if post, ok := f.posts[target.PostID]; ok {
		post.CommentsCount -= int64(len(marked))
		if post.CommentsCount < 0 {
			post.CommentsCount = 0
		}
	}

	return int64(len(marked)), nil
}

func (f *fakeStore) CreatePost(authorID uuid.UUID, title string) *model.Post {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	post := &model.Post{
		ID:        f.nextID,
		AuthorID:  authorID,
		Title:     title,
		CreatedAt: f.tick(),
	}
	f.posts[post.ID] = post

	return post
}

func (f *fakeStore) AddUser(username string) uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := uuid.New()
	f.users[id] = &model.CachedUser{
		ID:          id,
		Username:    username,
		DisplayName: username,
		AvatarURL:   "https://cdn.example.com/" + username + ".png",
	}

	return id
}

func newTestEnv(t *testing.T) (*fakeStore, *repository.Repository) {
	t.Helper()

	store := newFakeStore()
	repo := &repository.Repository{
		Postgres: &postgres.PostgresRepository{
			Comment:   store,
			Post:      fakePostRepo{store},
			Like:      fakeLikeRepo{store},
			UserCache: fakeUserCacheRepo{store},
		},
		Redis: &redisrepo.RedisRepository{Default: fakeRedis{}},
	}

	return store, repo
}

func newTestCommentService(t *testing.T) (*fakeStore, Comment) {
	t.Helper()

	store, repo := newTestEnv(t)
	return store, newCommentService(zap.NewNop(), repo, nopPublisher{})
}

type nopPublisher struct{}

func (nopPublisher) Publish(queue string, body []byte) error { return nil }

// fakePostRepo, fakeLikeRepo and fakeUserCacheRepo expose the remaining
// repository interfaces over the same fakeStore state.
type fakePostRepo struct{ s *fakeStore }

func (f fakePostRepo) Create(ctx context.Context, post model.Post) (*model.Post, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()

	f.s.nextID++
	post.ID = f.s.nextID
	now := f.s.tick()
	post.CreatedAt = now
	post.UpdatedAt = now
	post.CommentsCount = 0
	post.LikesCount = 0

	stored := post
	f.s.posts[post.ID] = &stored

	return &post, nil
}

func (f fakePostRepo) FindByID(ctx context.Context, id int64) (*model.Post, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()

	post, ok := f.s.posts[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}

	copied := *post
	return &copied, nil
}

type fakeLikeRepo struct{ s *fakeStore }

func (f fakeLikeRepo) ToggleCommentLike(ctx context.Context, commentID int64, userID uuid.UUID) (*model.Like, int64, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()

	comment, ok := f.s.comments[commentID]
	if !ok {
		return nil, 0, pgx.ErrNoRows
	}

	key := likeKey{target: commentID, user: userID}
	like, ok := f.s.commentLikes[key]
	if ok {
		like.Liked = !like.Liked
		like.UpdatedAt = f.s.tick()
	} else {
		f.s.nextLikeID++
		like = &model.Like{
			ID:        f.s.nextLikeID,
			TargetID:  commentID,
			UserID:    userID,
			Liked:     true,
			UpdatedAt: f.s.tick(),
		}
		f.s.commentLikes[key] = like
	}

	var count int64
	for k, row := range f.s.commentLikes {
		if k.target == commentID && row.Liked {
			count++
		}
	}
	comment.LikesCount = count

	copied := *like
	return &copied, count, nil
}

func (f fakeLikeRepo) TogglePostLike(ctx context.Context, postID int64, userID uuid.UUID) (*model.Like, int64, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()

	post, ok := f.s.posts[postID]
	if !ok {
		return nil, 0, pgx.ErrNoRows
	}

	key := likeKey{target: postID, user: userID}
	like, ok := f.s.postLikes[key]
	if ok {
		like.Liked = !like.Liked
		like.UpdatedAt = f.s.tick()
	} else {
		f.s.nextLikeID++
		like = &model.Like{
			ID:        f.s.nextLikeID,
			TargetID:  postID,
			UserID:    userID,
			Liked:     true,
			UpdatedAt: f.s.tick(),
		}
		f.s.postLikes[key] = like
	}

	var count int64
	for k, row := range f.s.postLikes {
		if k.target == postID && row.Liked {
			count++
		}
	}
	post.LikesCount = count

	copied := *like
	return &copied, count, nil
}

func (f fakeLikeRepo) IsCommentLiked(ctx context.Context, commentID int64, userID uuid.UUID) (bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()

	like, ok := f.s.commentLikes[likeKey{target: commentID, user: userID}]
	if !ok {
		return false, pgx.ErrNoRows
	}

	return like.Liked, nil
}

func (f fakeLikeRepo) IsPostLiked(ctx context.Context, postID int64, userID uuid.UUID) (bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()

	like, ok := f.s.postLikes[likeKey{target: postID, user: userID}]
	if !ok {
		return false, pgx.ErrNoRows
	}

	return like.Liked, nil
}

func (f fakeLikeRepo) FindLikedCommentIDs(ctx context.Context, postID int64, userID uuid.UUID) (map[int64]struct{}, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()

	liked := make(map[int64]struct{})
	for key, row := range f.s.commentLikes {
		if key.user != userID || !row.Liked {
			continue
		}
		if comment, ok := f.s.comments[key.target]; ok && comment.PostID == postID {
			liked[key.target] = struct{}{}
		}
	}

	return liked, nil
}

type fakeUserCacheRepo struct{ s *fakeStore }

func (f fakeUserCacheRepo) Create(ctx context.Context, cachedUser model.CachedUser) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()

	stored := cachedUser
	f.s.users[cachedUser.ID] = &stored

	return nil
}

func (f fakeUserCacheRepo) Update(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	return nil
}

func (f fakeUserCacheRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.CachedUser, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()

	user, ok := f.s.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}

	copied := *user
	return &copied, nil
}

type fakeRedis struct{}

func (fakeRedis) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return nil
}

func (fakeRedis) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return nil
}

func (fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	return redis.NewStringResult("", redis.Nil)
}

func (fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	return redis.NewIntResult(0, nil)
}

func (fakeRedis) Keys(ctx context.Context, pattern string) *redis.StringSliceCmd {
	return redis.NewStringSliceResult(nil, nil)
}

func TestCommentCreate_LevelsAndCounters(t *testing.T) {
	ctx := context.Background()
	store, comments := newTestCommentService(t)

	author := store.AddUser("alice")
	post := store.CreatePost(author, "hello world")

	c1, err := comments.Create(ctx, author, dto.CreateCommentDto{PostID: post.ID, Content: "Hello"})
	require.NoError(t, err)
	assert.Equal(t, 0, c1.Level)
	assert.Equal(t, int64(1), store.posts[post.ID].CommentsCount)

	c2, err := comments.Create(ctx, author, dto.CreateCommentDto{PostID: post.ID, ParentID: &c1.ID, Content: "Hi"})
	require.NoError(t, err)
	assert.Equal(t, 1, c2.Level)
	assert.Equal(t, int64(1), store.comments[c1.ID].RepliesCount)
	assert.Equal(t, int64(2), store.posts[post.ID].CommentsCount)

	c3, err := comments.Create(ctx, author, dto.CreateCommentDto{PostID: post.ID, ParentID: &c2.ID, Content: "Nested"})
	require.NoError(t, err)
	assert.Equal(t, 2, c3.Level)
	assert.Equal(t, int64(3), store.posts[post.ID].CommentsCount)

	// replies below the cap stay at the capped level
	c4, err := comments.Create(ctx, author, dto.CreateCommentDto{PostID: post.ID, ParentID: &c3.ID, Content: "Deep"})
	require.NoError(t, err)
	assert.Equal(t, 2, c4.Level)
	assert.Equal(t, int64(1), store.comments[c3.ID].RepliesCount)
	assert.Equal(t, int64(4), store.posts[post.ID].CommentsCount)
}

func TestCommentCreate_Validation(t *testing.T) {
	ctx := context.Background()
	store, comments := newTestCommentService(t)

	author := store.AddUser("alice")
	post := store.CreatePost(author, "post")

	_, err := comments.Create(ctx, author, dto.CreateCommentDto{PostID: post.ID, Content: "   "})
	assert.ErrorIs(t, err, ErrCommentContentEmpty)

	_, err = comments.Create(ctx, author, dto.CreateCommentDto{PostID: post.ID, Content: strings.Repeat("x", defaultMaxContentLength+1)})
	assert.ErrorIs(t, err, ErrCommentContentTooLong)
}

func TestCommentCreate_MissingTargets(t *testing.T) {
	ctx := context.Background()
	store, comments := newTestCommentService(t)

	author := store.AddUser("alice")
	post := store.CreatePost(author, "post")

	_, err := comments.Create(ctx, author, dto.CreateCommentDto{PostID: post.ID + 100, Content: "hey"})
	assert.ErrorIs(t, err, ErrPostNotFound)

	missingParent := int64(12345)
	_, err = comments.Create(ctx, author, dto.CreateCommentDto{PostID: post.ID, ParentID: &missingParent, Content: "hey"})
	assert.ErrorIs(t, err, ErrCommentNotFound)
}

// staleReadStore answers FindByID with every comment reported live while the
// underlying rows keep their real state, standing in for reads that complete
// just before a concurrent cascade delete commits.
type staleReadStore struct{ *fakeStore }

func (s staleReadStore) FindByID(ctx context.Context, id int64) (*model.Comment, error) {
	comment, err := s.fakeStore.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	comment.Deleted = false
	return comment, nil
}

func newStaleReadCommentService(t *testing.T) (*fakeStore, Comment) {
	t.Helper()

	store := newFakeStore()
	repo := &repository.Repository{
		Postgres: &postgres.PostgresRepository{
			Comment:   staleReadStore{store},
			Post:      fakePostRepo{store},
			Like:      fakeLikeRepo{store},
			UserCache: fakeUserCacheRepo{store},
		},
		Redis: &redisrepo.RedisRepository{Default: fakeRedis{}},
	}

	return store, newCommentService(zap.NewNop(), repo, nopPublisher{})
}

func TestCommentCreate_ParentDeletedMidFlight(t *testing.T) {
	ctx := context.Background()
	store, comments := newStaleReadCommentService(t)

	author := store.AddUser("alice")
	post := store.CreatePost(author, "post")

	c1, err := comments.Create(ctx, author, dto.CreateCommentDto{PostID: post.ID, Content: "root"})
	require.NoError(t, err)

	// cascade delete commits between the liveness check and the insert
	store.comments[c1.ID].Deleted = true

	_, err = comments.Create(ctx, author, dto.CreateCommentDto{PostID: post.ID, ParentID: &c1.ID, Content: "reply"})
	assert.ErrorIs(t, err, ErrCommentDeleted)

	assert.Len(t, store.comments, 1)
	assert.Equal(t, int64(0), store.comments[c1.ID].RepliesCount)
	assert.Equal(t, int64(1), store.posts[post.ID].CommentsCount)
}

func TestCommentUpdate_DeletedMidFlight(t *testing.T) {
	ctx := context.Background()
	store, comments := newStaleReadCommentService(t)

	author := store.AddUser("alice")
	post := store.CreatePost(author, "post")

	c1, err := comments.Create(ctx, author, dto.CreateCommentDto{PostID: post.ID, Content: "root"})
	require.NoError(t, err)

	// cascade delete commits between the liveness check and the rewrite
	store.comments[c1.ID].Deleted = true

	_, err = comments.Update(ctx, author, c1.ID, "rewrite")
	assert.ErrorIs(t, err, ErrCommentDeleted)
	assert.Equal(t, "root", store.comments[c1.ID].Content)
}

func TestCommentCreate_UnderDeletedAncestor(t *testing.T) {
	ctx := context.Background()
	store, comments := newTestCommentService(t)

	author := store.AddUser("alice")
	post := store.CreatePost(author, "post")

	c1, err := comments.Create(ctx, author, dto.CreateCommentDto{PostID: post.ID, Content: "root"})
	require.NoError(t, err)
	c2, err := comments.Create(ctx, author, dto.CreateCommentDto{PostID: post.ID, ParentID: &c1.ID, Content: "reply"})
	require.NoError(t, err)

	// deleted parent
	store.comments[c2.ID].Deleted = true
	_, err = comments.Create(ctx, author, dto.CreateCommentDto{PostID: post.ID, ParentID: &c2.ID, Content: "under deleted"})
	assert.ErrorIs(t, err, ErrCommentDeleted)

	// live parent, deleted grandparent
	store.comments[c2.ID].Deleted = false
	store.comments[c1.ID].Deleted = true
	_, err = comments.Create(ctx, author, dto.CreateCommentDto{PostID: post.ID, ParentID: &c2.ID, Content: "under deleted chain"})
	assert.ErrorIs(t, err, ErrCommentDeleted)
}

func TestCommentDelete_Cascade(t *testing.T) {
	ctx := context.Background()
	store, comments := newTestCommentService(t)

	author := store.AddUser("alice")
	post := store.CreatePost(author, "post")

	c1, err := comments.Create(ctx, author, dto.CreateCommentDto{PostID: post.ID, Content: "Hello"})
	require.NoError(t, err)
	c2, err := comments.Create(ctx, author, dto.CreateCommentDto{PostID: post.ID, ParentID: &c1.ID, Content: "Hi"})
	require.NoError(t, err)
	c3, err := comments.Create(ctx, author, dto.CreateCommentDto{PostID: post.ID, ParentID: &c2.ID, Content: "Nested"})
	require.NoError(t, err)
	c4, err := comments.Create(ctx, author, dto.CreateCommentDto{PostID: post.ID, ParentID: &c3.ID, Content: "Deep"})
	require.NoError(t, err)

	require.NoError(t, comments.Delete(ctx, author, c2.ID))

	for _, id := range []int64{c2.ID, c3.ID, c4.ID} {
		assert.True(t, store.comments[id].Deleted)
	}
	assert.False(t, store.comments[c1.ID].Deleted)
	assert.Equal(t, int64(0), store.comments[c1.ID].RepliesCount)
	assert.Equal(t, int64(1), store.posts[post.ID].CommentsCount)
}

func TestCommentDelete_Idempotence(t *testing.T) {
	ctx := context.Background()
	store, comments := newTestCommentService(t)

	author := store.AddUser("alice")
	post := store.CreatePost(author, "post")

	c1, err := comments.Create(ctx, author, dto.CreateCommentDto{PostID: post.ID, Content: "root"})
	require.NoError(t, err)
	c2, err := comments.Create(ctx, author, dto.CreateCommentDto{PostID: post.ID, ParentID: &c1.ID, Content: "reply"})
	require.NoError(t, err)

	require.NoError(t, comments.Delete(ctx, author, c2.ID))
	repliesAfter := store.comments[c1.ID].RepliesCount
	commentsAfter := store.posts[post.ID].CommentsCount

	err = comments.Delete(ctx, author, c2.ID)
	assert.ErrorIs(t, err, ErrCommentDeleted)
	assert.Equal(t, repliesAfter, store.comments[c1.ID].RepliesCount)
	assert.Equal(t, commentsAfter, store.posts[post.ID].CommentsCount)
}

func TestCommentDelete_CountersFlooredAtZero(t *testing.T) {
	ctx := context.Background()
	store, comments := newTestCommentService(t)

	author := store.AddUser("alice")
	post := store.CreatePost(author, "post")

	c1, err := comments.Create(ctx, author, dto.CreateCommentDto{PostID: post.ID, Content: "root"})
	require.NoError(t, err)
	c2, err := comments.Create(ctx, author, dto.CreateCommentDto{PostID: post.ID, ParentID: &c1.ID, Content: "reply"})
	require.NoError(t, err)

	// counters already at zero must not go negative
	store.comments[c1.ID].RepliesCount = 0
	store.posts[post.ID].CommentsCount = 0

	require.NoError(t, comments.Delete(ctx, author, c2.ID))
	assert.Equal(t, int64(0), store.comments[c1.ID].RepliesCount)
	assert.Equal(t, int64(0), store.posts[post.ID].CommentsCount)
}

func TestCommentDelete_Permissions(t *testing.T) {
	ctx := context.Background()
	store, comments := newTestCommentService(t)

	author := store.AddUser("alice")
	other := store.AddUser("bob")
	post := store.CreatePost(author, "post")

	c1, err := comments.Create(ctx, author, dto.CreateCommentDto{PostID: post.ID, Content: "root"})
	require.NoError(t, err)

	err = comments.Delete(ctx, other, c1.ID)
	assert.ErrorIs(t, err, ErrNotCommentAuthor)

	err = comments.Delete(ctx, author, c1.ID+100)
	assert.ErrorIs(t, err, ErrCommentNotFound)
}

func TestCommentUpdate(t *testing.T) {
	ctx := context.Background()
	store, comments := newTestCommentService(t)

	author := store.AddUser("alice")
	other := store.AddUser("bob")
	post := store.CreatePost(author, "post")

	c1, err := comments.Create(ctx, author, dto.CreateCommentDto{PostID: post.ID, Content: "before"})
	require.NoError(t, err)

	updated, err := comments.Update(ctx, author, c1.ID, "after")
	require.NoError(t, err)
	assert.Equal(t, "after", updated.Content)
	assert.Equal(t, "after", store.comments[c1.ID].Content)

	_, err = comments.Update(ctx, other, c1.ID, "hijack")
	assert.ErrorIs(t, err, ErrNotCommentAuthor)

	store.comments[c1.ID].Deleted = true
	_, err = comments.Update(ctx, author, c1.ID, "too late")
	assert.ErrorIs(t, err, ErrCommentDeleted)
}

func TestFindPostComments_TreeShape(t *testing.T) {
	ctx := context.Background()
	store, comments := newTestCommentService(t)

	author := store.AddUser("alice")
	post := store.CreatePost(author, "post")

	c1, err := comments.Create(ctx, author, dto.CreateCommentDto{PostID: post.ID, Content: "Hello"})
	require.NoError(t, err)
	c2, err := comments.Create(ctx, author, dto.CreateCommentDto{PostID: post.ID, ParentID: &c1.ID, Content: "Hi"})
	require.NoError(t, err)
	c3, err := comments.Create(ctx, author, dto.CreateCommentDto{PostID: post.ID, ParentID: &c2.ID, Content: "Nested"})
	require.NoError(t, err)
	c4, err := comments.Create(ctx, author, dto.CreateCommentDto{PostID: post.ID, ParentID: &c3.ID, Content: "Deep"})
	require.NoError(t, err)

	page, err := comments.FindPostComments(ctx, post.ID, dto.GetCommentsDto{}, nil)
	require.NoError(t, err)
	require.Len(t, page.Comments, 1)

	root := page.Comments[0]
	assert.Equal(t, c1.ID, root.ID)
	require.Len(t, root.Replies, 1)

	second := root.Replies[0]
	assert.Equal(t, c2.ID, second.ID)

	// c4 is flattened next to c3, not nested inside it
	require.Len(t, second.Replies, 2)
	assert.Equal(t, c3.ID, second.Replies[0].ID)
	assert.Equal(t, c4.ID, second.Replies[1].ID)
	assert.Empty(t, second.Replies[0].Replies)
	assert.Empty(t, second.Replies[1].Replies)
}

func TestFindPostComments_FlattensDeepChainsChronologically(t *testing.T) {
	ctx := context.Background()
	store, comments := newTestCommentService(t)

	author := store.AddUser("alice")
	post := store.CreatePost(author, "post")

	c1, err := comments.Create(ctx, author, dto.CreateCommentDto{PostID: post.ID, Content: "root"})
	require.NoError(t, err)

	parentID := c1.ID
	var chain []int64
	for i := 0; i < 5; i++ {
		reply, err := comments.Create(ctx, author, dto.CreateCommentDto{PostID: post.ID, ParentID: &parentID, Content: "reply"})
		require.NoError(t, err)
		chain = append(chain, reply.ID)
		parentID = reply.ID
	}

	page, err := comments.FindPostComments(ctx, post.ID, dto.GetCommentsDto{}, nil)
	require.NoError(t, err)
	require.Len(t, page.Comments, 1)

	level1 := page.Comments[0].Replies
	require.Len(t, level1, 1)
	assert.Equal(t, chain[0], level1[0].ID)

	// everything from the second reply down renders flat, in creation order
	flat := level1[0].Replies
	require.Len(t, flat, 4)
	for i, view := range flat {
		assert.Equal(t, chain[i+1], view.ID)
		assert.LessOrEqual(t, view.Level, model.MaxCommentLevel)
		assert.Empty(t, view.Replies)
	}
}

func TestFindPostComments_RedactsDeleted(t *testing.T) {
	ctx := context.Background()
	store, comments := newTestCommentService(t)

	author := store.AddUser("alice")
	post := store.CreatePost(author, "post")

	c1, err := comments.Create(ctx, author, dto.CreateCommentDto{PostID: post.ID, Content: "root"})
	require.NoError(t, err)
	c2, err := comments.Create(ctx, author, dto.CreateCommentDto{PostID: post.ID, ParentID: &c1.ID, Content: "secret"})
	require.NoError(t, err)
	c3, err := comments.Create(ctx, author, dto.CreateCommentDto{PostID: post.ID, ParentID: &c2.ID, Content: "still here"})
	require.NoError(t, err)

	// only the middle node is deleted; its child stays attached under it
	store.comments[c2.ID].Deleted = true

	page, err := comments.FindPostComments(ctx, post.ID, dto.GetCommentsDto{}, &author)
	require.NoError(t, err)
	require.Len(t, page.Comments, 1)
	require.Len(t, page.Comments[0].Replies, 1)

	redacted := page.Comments[0].Replies[0]
	assert.Equal(t, c2.ID, redacted.ID)
	assert.True(t, redacted.Deleted)
	assert.Equal(t, deletedContentPlaceholder, redacted.Content)
	assert.Equal(t, deletedAuthorPlaceholder, redacted.AuthorName)
	assert.Nil(t, redacted.AuthorDisplayName)
	assert.Nil(t, redacted.AuthorAvatar)
	assert.False(t, redacted.IsLiked)
	assert.False(t, redacted.IsOwner)

	require.Len(t, redacted.Replies, 1)
	assert.Equal(t, c3.ID, redacted.Replies[0].ID)
	assert.Equal(t, "still here", redacted.Replies[0].Content)
}

func TestFindPostComments_DeletedRootStaysAsPlaceholder(t *testing.T) {
	ctx := context.Background()
	store, comments := newTestCommentService(t)

	author := store.AddUser("alice")
	post := store.CreatePost(author, "post")

	c1, err := comments.Create(ctx, author, dto.CreateCommentDto{PostID: post.ID, Content: "root"})
	require.NoError(t, err)
	c2, err := comments.Create(ctx, author, dto.CreateCommentDto{PostID: post.ID, ParentID: &c1.ID, Content: "reply"})
	require.NoError(t, err)

	store.comments[c1.ID].Deleted = true

	page, err := comments.FindPostComments(ctx, post.ID, dto.GetCommentsDto{}, nil)
	require.NoError(t, err)
	require.Len(t, page.Comments, 1)

	root := page.Comments[0]
	assert.True(t, root.Deleted)
	assert.Equal(t, deletedContentPlaceholder, root.Content)
	require.Len(t, root.Replies, 1)
	assert.Equal(t, c2.ID, root.Replies[0].ID)
}

// cannedRedis always answers Get with the same stored value.
type cannedRedis struct {
	fakeRedis
	value string
}

func (c cannedRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	return redis.NewStringResult(c.value, nil)
}

func TestFindPostComments_MissingPostBeatsCachedPage(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()

	stalePage, err := json.Marshal(dto.CommentsPage{Total: 7, Limit: 10})
	require.NoError(t, err)

	repo := &repository.Repository{
		Postgres: &postgres.PostgresRepository{
			Comment:   store,
			Post:      fakePostRepo{store},
			Like:      fakeLikeRepo{store},
			UserCache: fakeUserCacheRepo{store},
		},
		Redis: &redisrepo.RedisRepository{Default: cannedRedis{value: string(stalePage)}},
	}
	comments := newCommentService(zap.NewNop(), repo, nopPublisher{})

	// the cached page for a deleted post must not outlive the post
	_, err = comments.FindPostComments(ctx, 12345, dto.GetCommentsDto{}, nil)
	assert.ErrorIs(t, err, ErrPostNotFound)
}

func TestFindPostComments_SortAndViewerFlags(t *testing.T) {
	ctx := context.Background()
	store, repo := newTestEnv(t)
	comments := newCommentService(zap.NewNop(), repo, nopPublisher{})
	likes := newLikeService(zap.NewNop(), repo)

	alice := store.AddUser("alice")
	bob := store.AddUser("bob")
	post := store.CreatePost(alice, "post")

	first, err := comments.Create(ctx, alice, dto.CreateCommentDto{PostID: post.ID, Content: "first"})
	require.NoError(t, err)
	second, err := comments.Create(ctx, bob, dto.CreateCommentDto{PostID: post.ID, Content: "second"})
	require.NoError(t, err)

	_, err = likes.ToggleComment(ctx, bob, first.ID)
	require.NoError(t, err)

	// default sort is newest-first
	page, err := comments.FindPostComments(ctx, post.ID, dto.GetCommentsDto{}, &bob)
	require.NoError(t, err)
	require.Len(t, page.Comments, 2)
	assert.Equal(t, second.ID, page.Comments[0].ID)
	assert.Equal(t, first.ID, page.Comments[1].ID)
	assert.Equal(t, int64(2), page.Total)

	assert.True(t, page.Comments[0].IsOwner)
	assert.False(t, page.Comments[0].IsLiked)
	assert.False(t, page.Comments[1].IsOwner)
	assert.True(t, page.Comments[1].IsLiked)
	assert.Equal(t, "alice", page.Comments[1].AuthorName)

	asc, err := comments.FindPostComments(ctx, post.ID, dto.GetCommentsDto{Sort: "asc"}, nil)
	require.NoError(t, err)
	assert.Equal(t, first.ID, asc.Comments[0].ID)

	_, err = comments.FindPostComments(ctx, post.ID+100, dto.GetCommentsDto{}, nil)
	assert.ErrorIs(t, err, ErrPostNotFound)
}
