// Package ingest orchestrates one polling tick: fetch recent items per
// subreddit, gate them through the sliding-window cache, run extraction on
// admitted items, and record confirmed mentions.
package ingest

import (
	"context"
	"fmt"
	"sort"

	"github.com/greyotoc/tickerwatch/internal/store"
	"github.com/greyotoc/tickerwatch/pkg/extract"
	"github.com/greyotoc/tickerwatch/pkg/source"
)

// Summary reports what a single tick did.
type Summary struct {
	Subreddits  []string
	NewPosts    int
	NewComments int
	NewMentions int
	Tickers     []string // distinct tickers newly recorded this tick, sorted
}

// Pipeline runs the fetch -> admit -> extract -> record flow. Subreddits
// are processed sequentially and items within a subreddit are serialized,
// so per-scope eviction decisions never race.
type Pipeline struct {
	store         store.Store
	fetcher       source.Fetcher
	engine        *extract.Engine
	subreddits    []string
	postWindow    int
	commentWindow int
}

// New creates a pipeline. postWindow and commentWindow must equal the
// fetcher's post and comment limits so evicted cache entries are
// unreachable in future polls.
func New(s store.Store, fetcher source.Fetcher, engine *extract.Engine, subreddits []string, postWindow, commentWindow int) *Pipeline {
	return &Pipeline{
		store:         s,
		fetcher:       fetcher,
		engine:        engine,
		subreddits:    subreddits,
		postWindow:    postWindow,
		commentWindow: commentWindow,
	}
}

// RunTick processes every configured subreddit once. Any fetch or storage
// error aborts the tick; nothing is retried here.
func (p *Pipeline) RunTick(ctx context.Context) (Summary, error) {
	summary := Summary{Subreddits: p.subreddits}
	tickers := make(map[string]struct{})

	for _, subreddit := range p.subreddits {
		posts, err := p.fetcher.FetchPosts(ctx, subreddit)
		if err != nil {
			return summary, fmt.Errorf("tick r/%s: %w", subreddit, err)
		}

		for _, post := range posts {
			fresh, err := p.store.Admit(ctx, "posts/"+subreddit, post.PostID, post.CreatedAt, p.postWindow)
			if err != nil {
				return summary, fmt.Errorf("tick r/%s: %w", subreddit, err)
			}
			if fresh {
				summary.NewPosts++
				n, err := p.process(ctx, post, tickers)
				if err != nil {
					return summary, fmt.Errorf("tick r/%s: %w", subreddit, err)
				}
				summary.NewMentions += n
			}

			comments, err := p.fetcher.FetchComments(ctx, subreddit, post.PostID)
			if err != nil {
				return summary, fmt.Errorf("tick r/%s: %w", subreddit, err)
			}
			for _, comment := range comments {
				fresh, err := p.store.Admit(ctx, "comments/"+post.PostID, comment.CommentID, comment.CreatedAt, p.commentWindow)
				if err != nil {
					return summary, fmt.Errorf("tick r/%s: %w", subreddit, err)
				}
				if !fresh {
					continue
				}
				summary.NewComments++
				n, err := p.process(ctx, comment, tickers)
				if err != nil {
					return summary, fmt.Errorf("tick r/%s: %w", subreddit, err)
				}
				summary.NewMentions += n
			}
		}
	}

	for t := range tickers {
		summary.Tickers = append(summary.Tickers, t)
	}
	sort.Strings(summary.Tickers)
	return summary, nil
}

func (p *Pipeline) process(ctx context.Context, item source.Item, seen map[string]struct{}) (int, error) {
	confirmed := p.engine.Extract(item.Text)
	if len(confirmed) == 0 {
		return 0, nil
	}
	n, err := p.store.RecordMentions(ctx, item, confirmed)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		for _, t := range confirmed {
			seen[t] = struct{}{}
		}
	}
	return n, nil
}
