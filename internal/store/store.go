package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/greyotoc/tickerwatch/pkg/source"
)

// Mention is one recorded fact: a ticker appeared in a post or comment.
// CommentID is empty for post-level mentions.
type Mention struct {
	ID          int64  `db:"id" json:"-"`
	Ticker      string `db:"ticker" json:"ticker"`
	Subreddit   string `db:"subreddit" json:"subreddit"`
	PostID      string `db:"post_id" json:"post_id"`
	CommentID   string `db:"comment_id" json:"comment_id,omitempty"`
	MentionedAt int64  `db:"mentioned_at" json:"mentioned_at"`
}

// TickerCount is one row of the ranked-by-mention-count view.
type TickerCount struct {
	Ticker string `db:"ticker" json:"ticker"`
	Count  int    `db:"mention_count" json:"mention_count"`
}

// Store is the persistence interface for the dedup cache and the mention
// ledger.
type Store interface {
	Admit(ctx context.Context, scope, itemID string, originTS int64, window int) (bool, error)
	RecordMentions(ctx context.Context, item source.Item, tickers []string) (int, error)
	RankedByMentionCount(ctx context.Context, since int64) ([]TickerCount, error)
	MentionsForTicker(ctx context.Context, ticker string) ([]Mention, error)
	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// New opens a SQLite database and runs migrations.
func New(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Admit reports whether (scope, itemID) has not been seen before, and if
// so records it. When the scope's entry count exceeds the window after the
// insert, the single oldest entry by origin timestamp is evicted (ties:
// lowest item id). The whole call is one transaction: a failed admit
// leaves no trace, so the item is not falsely marked as seen.
func (s *SQLiteStore) Admit(ctx context.Context, scope, itemID string, originTS int64, window int) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("admit %s/%s: begin: %w", scope, itemID, err)
	}
	defer tx.Rollback()

	var one int
	err = tx.GetContext(ctx, &one,
		"SELECT 1 FROM cache_entries WHERE scope = ? AND item_id = ?", scope, itemID)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("admit %s/%s: lookup: %w", scope, itemID, err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO cache_entries (scope, item_id, origin_ts) VALUES (?, ?, ?)",
		scope, itemID, originTS); err != nil {
		return false, fmt.Errorf("admit %s/%s: insert: %w", scope, itemID, err)
	}

	var count int
	if err := tx.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM cache_entries WHERE scope = ?", scope); err != nil {
		return false, fmt.Errorf("admit %s/%s: count: %w", scope, itemID, err)
	}

	if count > window {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM cache_entries
			WHERE scope = ? AND item_id = (
				SELECT item_id FROM cache_entries
				WHERE scope = ?
				ORDER BY origin_ts ASC, item_id ASC
				LIMIT 1
			)`, scope, scope); err != nil {
			return false, fmt.Errorf("admit %s/%s: evict: %w", scope, itemID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("admit %s/%s: commit: %w", scope, itemID, err)
	}
	return true, nil
}

// RecordMentions inserts one mention row per ticker for the given item,
// all in one transaction. A row whose (post, comment, ticker) key already
// exists is skipped: that means the cache admitted an item whose mentions
// were already recorded, which is expected under retries and must not
// corrupt the ledger. Returns the number of newly inserted rows.
func (s *SQLiteStore) RecordMentions(ctx context.Context, item source.Item, tickers []string) (int, error) {
	if len(tickers) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("record mentions %s: begin: %w", item.PostID, err)
	}
	defer tx.Rollback()

	inserted := 0
	for _, ticker := range tickers {
		res, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO mentions (ticker, subreddit, post_id, comment_id, mentioned_at)
			VALUES (?, ?, ?, ?, ?)`,
			ticker, item.Subreddit, item.PostID, item.CommentID, item.CreatedAt)
		if err != nil {
			return 0, fmt.Errorf("record mention %s for %s: %w", ticker, item.PostID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("record mention %s for %s: %w", ticker, item.PostID, err)
		}
		if n == 0 {
			fmt.Fprintf(os.Stderr,
				"store: mention %s already recorded for post %s comment %q in r/%s\n",
				ticker, item.PostID, item.CommentID, item.Subreddit)
			continue
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("record mentions %s: commit: %w", item.PostID, err)
	}
	return inserted, nil
}

// RankedByMentionCount returns tickers mentioned after the given unix
// timestamp, most-mentioned first. Ties break by symbol for determinism.
func (s *SQLiteStore) RankedByMentionCount(ctx context.Context, since int64) ([]TickerCount, error) {
	var ranked []TickerCount
	err := s.db.SelectContext(ctx, &ranked, `
		SELECT ticker, COUNT(*) AS mention_count
		FROM mentions
		WHERE mentioned_at > ?
		GROUP BY ticker
		ORDER BY mention_count DESC, ticker ASC`, since)
	if err != nil {
		return nil, fmt.Errorf("ranked mentions since %d: %w", since, err)
	}
	return ranked, nil
}

// MentionsForTicker returns every recorded mention of one ticker, newest
// first.
func (s *SQLiteStore) MentionsForTicker(ctx context.Context, ticker string) ([]Mention, error) {
	var mentions []Mention
	err := s.db.SelectContext(ctx, &mentions, `
		SELECT id, ticker, subreddit, post_id, comment_id, mentioned_at
		FROM mentions
		WHERE ticker = ?
		ORDER BY mentioned_at DESC`, ticker)
	if err != nil {
		return nil, fmt.Errorf("mentions for %s: %w", ticker, err)
	}
	return mentions, nil
}
