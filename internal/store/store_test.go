package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greyotoc/tickerwatch/pkg/source"
)

// openTestStore creates a migrated store on a throwaway database file.
func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func (s *SQLiteStore) scopeIDs(t *testing.T, scope string) []string {
	t.Helper()
	var ids []string
	require.NoError(t, s.db.Select(&ids,
		"SELECT item_id FROM cache_entries WHERE scope = ? ORDER BY item_id", scope))
	return ids
}

// --- Admit ---

func TestAdmit_NewThenDuplicate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	fresh, err := s.Admit(ctx, "posts/stocks", "p1", 100, 5)
	require.NoError(t, err)
	assert.True(t, fresh)

	fresh, err = s.Admit(ctx, "posts/stocks", "p1", 100, 5)
	require.NoError(t, err)
	assert.False(t, fresh)

	assert.Equal(t, []string{"p1"}, s.scopeIDs(t, "posts/stocks"))
}

func TestAdmit_WindowEvictsOldest(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// Window of 2: admitting P1(t=1), P2(t=2), P3(t=3) leaves {P2, P3}.
	for _, p := range []struct {
		id string
		ts int64
	}{{"p1", 1}, {"p2", 2}, {"p3", 3}} {
		fresh, err := s.Admit(ctx, "posts/g", p.id, p.ts, 2)
		require.NoError(t, err)
		assert.True(t, fresh)
	}

	assert.Equal(t, []string{"p2", "p3"}, s.scopeIDs(t, "posts/g"))

	// P1 aged out, so re-polling it looks new again.
	fresh, err := s.Admit(ctx, "posts/g", "p1", 1, 2)
	require.NoError(t, err)
	assert.True(t, fresh, "evicted item should be admitted again")
}

func TestAdmit_EvictsByTimestampNotInsertionOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// Insert out of order; the oldest by origin time goes, not the first
	// inserted.
	_, err := s.Admit(ctx, "posts/g", "newer", 50, 2)
	require.NoError(t, err)
	_, err = s.Admit(ctx, "posts/g", "oldest", 10, 2)
	require.NoError(t, err)
	_, err = s.Admit(ctx, "posts/g", "middle", 30, 2)
	require.NoError(t, err)

	assert.Equal(t, []string{"middle", "newer"}, s.scopeIDs(t, "posts/g"))
}

func TestAdmit_EvictionTieBreaksByLowestID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Admit(ctx, "posts/g", "b", 10, 2)
	require.NoError(t, err)
	_, err = s.Admit(ctx, "posts/g", "a", 10, 2)
	require.NoError(t, err)
	_, err = s.Admit(ctx, "posts/g", "c", 20, 2)
	require.NoError(t, err)

	assert.Equal(t, []string{"b", "c"}, s.scopeIDs(t, "posts/g"))
}

func TestAdmit_ScopesAreIndependent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i, scope := range []string{"posts/stocks", "posts/wallstreetbets", "comments/p1"} {
		fresh, err := s.Admit(ctx, scope, "x", int64(i), 1)
		require.NoError(t, err)
		assert.True(t, fresh, "same id in scope %s is a distinct entry", scope)
	}

	// Filling one scope never evicts from another.
	_, err := s.Admit(ctx, "posts/stocks", "y", 99, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, s.scopeIDs(t, "posts/wallstreetbets"))
	assert.Equal(t, []string{"x"}, s.scopeIDs(t, "comments/p1"))
}

func TestAdmit_NeverExceedsWindow(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	const window = 3
	for i := 0; i < 20; i++ {
		_, err := s.Admit(ctx, "posts/g", string(rune('a'+i)), int64(i), window)
		require.NoError(t, err)

		var count int
		require.NoError(t, s.db.Get(&count,
			"SELECT COUNT(*) FROM cache_entries WHERE scope = ?", "posts/g"))
		assert.LessOrEqual(t, count, window)
	}

	// Retained entries are the window most recent by origin time.
	assert.Equal(t, []string{"r", "s", "t"}, s.scopeIDs(t, "posts/g"))
}

// --- RecordMentions ---

func TestRecordMentions_InsertAndIdempotentRepeat(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	item := source.Item{PostID: "p1", Subreddit: "stocks", CreatedAt: 500}

	n, err := s.RecordMentions(ctx, item, []string{"AAPL", "GME"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Re-recording the same item is a no-op, not an error.
	n, err = s.RecordMentions(ctx, item, []string{"AAPL", "GME"})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	var count int
	require.NoError(t, s.db.Get(&count, "SELECT COUNT(*) FROM mentions"))
	assert.Equal(t, 2, count)
}

func TestRecordMentions_PostLevelKeyDedupes(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// Two post-level mentions of the same ticker share one key even though
	// neither has a comment id.
	item := source.Item{PostID: "p1", Subreddit: "stocks", CreatedAt: 500}
	n, err := s.RecordMentions(ctx, item, []string{"AAPL"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.RecordMentions(ctx, item, []string{"AAPL"})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestRecordMentions_PostAndCommentAreDistinctKeys(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	post := source.Item{PostID: "p1", Subreddit: "stocks", CreatedAt: 500}
	comment := source.Item{PostID: "p1", CommentID: "c1", Subreddit: "stocks", CreatedAt: 501}

	n, err := s.RecordMentions(ctx, post, []string{"AAPL"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.RecordMentions(ctx, comment, []string{"AAPL"})
	require.NoError(t, err)
	assert.Equal(t, 1, n, "comment mention is a separate fact from the post mention")
}

func TestRecordMentions_EmptySet(t *testing.T) {
	s := openTestStore(t)

	n, err := s.RecordMentions(context.Background(), source.Item{PostID: "p1"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

// --- Queries ---

func seedMentions(t *testing.T, s *SQLiteStore) {
	t.Helper()
	ctx := context.Background()

	items := []struct {
		item    source.Item
		tickers []string
	}{
		{source.Item{PostID: "p1", Subreddit: "stocks", CreatedAt: 100}, []string{"GME", "AAPL"}},
		{source.Item{PostID: "p1", CommentID: "c1", Subreddit: "stocks", CreatedAt: 150}, []string{"GME"}},
		{source.Item{PostID: "p2", Subreddit: "wallstreetbets", CreatedAt: 200}, []string{"GME", "TSLA"}},
		{source.Item{PostID: "p3", Subreddit: "stocks", CreatedAt: 300}, []string{"AAPL"}},
	}
	for _, i := range items {
		_, err := s.RecordMentions(ctx, i.item, i.tickers)
		require.NoError(t, err)
	}
}

func TestRankedByMentionCount_AllTime(t *testing.T) {
	s := openTestStore(t)
	seedMentions(t, s)

	ranked, err := s.RankedByMentionCount(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, []TickerCount{
		{Ticker: "GME", Count: 3},
		{Ticker: "AAPL", Count: 2},
		{Ticker: "TSLA", Count: 1},
	}, ranked)
}

func TestRankedByMentionCount_SinceExcludesOlder(t *testing.T) {
	s := openTestStore(t)
	seedMentions(t, s)

	// Strictly greater than: the t=150 comment is excluded at since=150.
	ranked, err := s.RankedByMentionCount(context.Background(), 150)
	require.NoError(t, err)

	assert.Equal(t, []TickerCount{
		{Ticker: "AAPL", Count: 1},
		{Ticker: "GME", Count: 1},
		{Ticker: "TSLA", Count: 1},
	}, ranked)
}

func TestRankedByMentionCount_TiesBreakBySymbol(t *testing.T) {
	s := openTestStore(t)
	seedMentions(t, s)

	ranked, err := s.RankedByMentionCount(context.Background(), 150)
	require.NoError(t, err)

	// All tied at one mention: alphabetical for determinism.
	var symbols []string
	for _, tc := range ranked {
		symbols = append(symbols, tc.Ticker)
	}
	assert.Equal(t, []string{"AAPL", "GME", "TSLA"}, symbols)
}

func TestMentionsForTicker_NewestFirst(t *testing.T) {
	s := openTestStore(t)
	seedMentions(t, s)

	mentions, err := s.MentionsForTicker(context.Background(), "GME")
	require.NoError(t, err)
	require.Len(t, mentions, 3)

	assert.Equal(t, int64(200), mentions[0].MentionedAt)
	assert.Equal(t, int64(150), mentions[1].MentionedAt)
	assert.Equal(t, int64(100), mentions[2].MentionedAt)

	assert.Equal(t, "wallstreetbets", mentions[0].Subreddit)
	assert.Equal(t, "c1", mentions[1].CommentID)
	assert.Equal(t, "", mentions[2].CommentID)
}

func TestMentionsForTicker_Unknown(t *testing.T) {
	s := openTestStore(t)
	seedMentions(t, s)

	mentions, err := s.MentionsForTicker(context.Background(), "ZZZZ")
	require.NoError(t, err)
	assert.Empty(t, mentions)
}
