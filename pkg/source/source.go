package source

import (
	"context"
	"regexp"
	"strings"
)

// Item is a single post or comment returned by a fetcher. CommentID is
// empty when the item is a post; PostID always refers to the containing
// post. CreatedAt is the origin platform's creation time in unix seconds,
// not the time we fetched the item.
type Item struct {
	PostID    string `json:"post_id"`
	CommentID string `json:"comment_id,omitempty"`
	Subreddit string `json:"subreddit"`
	Text      string `json:"text"`
	CreatedAt int64  `json:"created_at"`
}

// IsComment reports whether the item represents a comment.
func (i Item) IsComment() bool { return i.CommentID != "" }

// Fetcher retrieves recent posts and comments for a subreddit, newest
// first, with text already normalized for extraction.
type Fetcher interface {
	FetchPosts(ctx context.Context, subreddit string) ([]Item, error)
	FetchComments(ctx context.Context, subreddit, postID string) ([]Item, error)
}

var (
	// URLs are stripped before extraction to avoid ticker-like strings
	// inside links.
	urlPattern        = regexp.MustCompile(`http\S+|www\S+`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// NormalizeText strips URLs and collapses whitespace runs to single spaces.
func NormalizeText(s string) string {
	s = urlPattern.ReplaceAllString(s, "")
	s = whitespacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
