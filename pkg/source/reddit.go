package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const defaultBaseURL = "https://www.reddit.com"

// Reddit fetches new posts and comments from the public listing endpoints.
type Reddit struct {
	client       *http.Client
	baseURL      string
	userAgent    string
	postLimit    int
	commentLimit int
	maxRetries   int
	retryBackoff time.Duration
}

// RedditOpts configures a Reddit fetcher.
type RedditOpts struct {
	BaseURL      string // override for tests; defaults to reddit.com
	UserAgent    string
	PostLimit    int
	CommentLimit int
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

// NewReddit creates a Reddit fetcher.
func NewReddit(opts RedditOpts) *Reddit {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "tickerwatch/1.0"
	}
	if opts.PostLimit <= 0 {
		opts.PostLimit = 5
	}
	if opts.CommentLimit <= 0 {
		opts.CommentLimit = 10
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 2 * time.Second
	}
	return &Reddit{
		client:       &http.Client{Timeout: opts.Timeout},
		baseURL:      opts.BaseURL,
		userAgent:    opts.UserAgent,
		postLimit:    opts.PostLimit,
		commentLimit: opts.CommentLimit,
		maxRetries:   opts.MaxRetries,
		retryBackoff: opts.RetryBackoff,
	}
}

// PostLimit returns how many posts a single FetchPosts call requests. The
// ingestion cache sizes its post window to this value.
func (r *Reddit) PostLimit() int { return r.postLimit }

// CommentLimit returns how many comments per post a single FetchComments
// call requests.
func (r *Reddit) CommentLimit() int { return r.commentLimit }

// FetchPosts returns the newest posts of a subreddit, title and body
// joined and normalized.
func (r *Reddit) FetchPosts(ctx context.Context, subreddit string) ([]Item, error) {
	reqURL := fmt.Sprintf("%s/r/%s/new.json?limit=%d", r.baseURL, subreddit, r.postLimit)

	var listing redditListing
	if err := r.getJSON(ctx, reqURL, &listing); err != nil {
		return nil, fmt.Errorf("fetch posts r/%s: %w", subreddit, err)
	}

	var items []Item
	for _, child := range listing.Data.Children {
		p := child.Data
		items = append(items, Item{
			PostID:    p.ID,
			Subreddit: subreddit,
			Text:      NormalizeText(p.Title + " " + p.Selftext),
			CreatedAt: int64(p.CreatedUTC),
		})
	}
	return items, nil
}

// FetchComments returns the newest top-level comments of a post. Listing
// children that are not comments ("more" placeholders) and AutoModerator
// comments are skipped.
func (r *Reddit) FetchComments(ctx context.Context, subreddit, postID string) ([]Item, error) {
	reqURL := fmt.Sprintf("%s/r/%s/comments/%s/.json?sort=new&depth=1&limit=%d",
		r.baseURL, subreddit, postID, r.commentLimit)

	// The endpoint returns two listings: the post itself, then its comments.
	var listings []redditListing
	if err := r.getJSON(ctx, reqURL, &listings); err != nil {
		return nil, fmt.Errorf("fetch comments %s in r/%s: %w", postID, subreddit, err)
	}
	if len(listings) < 2 {
		return nil, fmt.Errorf("fetch comments %s in r/%s: unexpected listing shape", postID, subreddit)
	}

	var items []Item
	for _, child := range listings[1].Data.Children {
		if child.Kind != "t1" {
			continue
		}
		c := child.Data
		if c.Author == "AutoModerator" {
			continue
		}
		items = append(items, Item{
			PostID:    postID,
			CommentID: c.ID,
			Subreddit: subreddit,
			Text:      NormalizeText(c.Body),
			CreatedAt: int64(c.CreatedUTC),
		})
	}
	return items, nil
}

// getJSON performs a GET with bounded retry. Retries apply only here, at
// the fetch boundary; storage operations stay single-attempt.
func (r *Reddit) getJSON(ctx context.Context, reqURL string, out any) error {
	var lastErr error
	backoff := r.retryBackoff

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		lastErr = r.doGet(ctx, reqURL, out)
		if lastErr == nil {
			return nil
		}
	}
	return lastErr
}

func (r *Reddit) doGet(ctx context.Context, reqURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type redditListing struct {
	Data struct {
		Children []struct {
			Kind string      `json:"kind"`
			Data redditThing `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditThing struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Selftext   string  `json:"selftext"`
	Body       string  `json:"body"`
	Author     string  `json:"author"`
	CreatedUTC float64 `json:"created_utc"`
}
