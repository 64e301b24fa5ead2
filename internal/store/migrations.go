package store

const schema = `
CREATE TABLE IF NOT EXISTS cache_entries (
    scope     TEXT NOT NULL,
    item_id   TEXT NOT NULL,
    origin_ts INTEGER NOT NULL,
    PRIMARY KEY (scope, item_id)
);

CREATE INDEX IF NOT EXISTS idx_cache_scope_ts ON cache_entries(scope, origin_ts);

-- comment_id is '' for post-level mentions so the uniqueness key stays
-- null-free; SQLite treats NULLs in a UNIQUE constraint as pairwise
-- distinct, which would break the idempotency key.
CREATE TABLE IF NOT EXISTS mentions (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    ticker       TEXT NOT NULL,
    subreddit    TEXT NOT NULL,
    post_id      TEXT NOT NULL,
    comment_id   TEXT NOT NULL DEFAULT '',
    mentioned_at INTEGER NOT NULL,
    UNIQUE (post_id, comment_id, ticker)
);

CREATE INDEX IF NOT EXISTS idx_mentions_ticker ON mentions(ticker);
CREATE INDEX IF NOT EXISTS idx_mentions_ts ON mentions(mentioned_at);
`
