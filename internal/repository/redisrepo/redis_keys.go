package redisrepo

import "fmt"

const (
	POST_KEY              = "post:%d"                     // <postID>
	POST_COMMENTS_KEY     = "post-comments:%d:%s:%d:%d"   // <postID>:<sort>:<limit>:<offset>
	POST_COMMENTS_PATTERN = "post-comments:%d:*"          // <postID>
	USER_CACHE_KEY        = "user-cache:%s"               // <userID>
)

func PostKey(postID int64) string {
	return fmt.Sprintf(POST_KEY, postID)
}

func PostCommentsKey(postID int64, sort string, limit int, offset int) string {
	return fmt.Sprintf(POST_COMMENTS_KEY, postID, sort, limit, offset)
}

func PostCommentsPattern(postID int64) string {
	return fmt.Sprintf(POST_COMMENTS_PATTERN, postID)
}

func UserCacheKey(userID string) string {
	return fmt.Sprintf(USER_CACHE_KEY, userID)
}
