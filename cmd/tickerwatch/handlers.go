package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/greyotoc/tickerwatch/internal/config"
	"github.com/greyotoc/tickerwatch/internal/ingest"
	"github.com/greyotoc/tickerwatch/internal/scheduler"
	"github.com/greyotoc/tickerwatch/internal/store"
	"github.com/greyotoc/tickerwatch/pkg/alert"
	"github.com/greyotoc/tickerwatch/pkg/extract"
	"github.com/greyotoc/tickerwatch/pkg/reference"
	"github.com/greyotoc/tickerwatch/pkg/server"
	"github.com/greyotoc/tickerwatch/pkg/source"
)

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

// buildPipeline loads the reference data and wires the fetcher, engine,
// and store into an ingestion pipeline. Missing reference data fails here,
// before any processing begins.
func buildPipeline(cfg *config.Config, db store.Store) (*ingest.Pipeline, error) {
	ref, err := reference.Load(reference.Paths{
		BlacklistDir: cfg.Reference.BlacklistDir,
		RegularWords: cfg.Reference.RegularWords,
		SlangWords:   cfg.Reference.SlangWords,
		TickersCSV:   cfg.Reference.TickersCSV,
	})
	if err != nil {
		return nil, fmt.Errorf("load reference data: %w", err)
	}

	fetcher := source.NewReddit(source.RedditOpts{
		UserAgent:    cfg.Reddit.UserAgent,
		PostLimit:    cfg.Reddit.PostLimit,
		CommentLimit: cfg.Reddit.CommentLimit,
		Timeout:      cfg.Reddit.ParseTimeout(),
		MaxRetries:   cfg.Reddit.MaxRetries,
		RetryBackoff: cfg.Reddit.ParseRetryBackoff(),
	})

	engine := extract.New(ref)
	return ingest.New(db, fetcher, engine, cfg.Reddit.Subreddits,
		fetcher.PostLimit(), fetcher.CommentLimit()), nil
}

func buildAlertManager(cfg *config.Config) *alert.Manager {
	var notifiers []alert.Notifier

	if cfg.Alerts.Slack.Enabled && cfg.Alerts.Slack.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewSlack(cfg.Alerts.Slack.WebhookURL))
	}
	if cfg.Alerts.Discord.Enabled && cfg.Alerts.Discord.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewDiscord(cfg.Alerts.Discord.WebhookURL))
	}
	if cfg.Alerts.Webhook.Enabled && cfg.Alerts.Webhook.URL != "" {
		notifiers = append(notifiers, alert.NewWebhook(cfg.Alerts.Webhook.URL, cfg.Alerts.Webhook.Secret))
	}

	return alert.NewManager(notifiers)
}

func runScrape(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	pipeline, err := buildPipeline(cfg, db)
	if err != nil {
		return err
	}

	summary, err := pipeline.RunTick(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "%d new posts, %d new comments, %d new mentions",
		summary.NewPosts, summary.NewComments, summary.NewMentions)
	if len(summary.Tickers) > 0 {
		fmt.Fprintf(os.Stderr, " (%v)", summary.Tickers)
	}
	fmt.Fprintln(os.Stderr)
	return nil
}

func runRank(ctx context.Context, jsonOutput bool, since string, limit int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	var sinceTS int64
	if since != "" {
		d, err := time.ParseDuration(since)
		if err != nil {
			return fmt.Errorf("parse --since %q: %w", since, err)
		}
		sinceTS = time.Now().Add(-d).Unix()
	}

	ranked, err := db.RankedByMentionCount(ctx, sinceTS)
	if err != nil {
		return err
	}
	if limit > 0 && limit < len(ranked) {
		ranked = ranked[:limit]
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(ranked)
	}

	if len(ranked) == 0 {
		fmt.Println("no mentions recorded (try scraping first: tickerwatch scrape)")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TICKER\tMENTIONS")
	for _, tc := range ranked {
		fmt.Fprintf(w, "%s\t%d\n", tc.Ticker, tc.Count)
	}
	return w.Flush()
}

func runMentions(ctx context.Context, ticker string, jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	mentions, err := db.MentionsForTicker(ctx, ticker)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(mentions)
	}

	if len(mentions) == 0 {
		fmt.Printf("no mentions recorded for %s\n", ticker)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TICKER\tSUBREDDIT\tPOST\tCOMMENT\tMENTIONED AT")
	for _, m := range mentions {
		comment := m.CommentID
		if comment == "" {
			comment = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			m.Ticker, m.Subreddit, m.PostID, comment,
			time.Unix(m.MentionedAt, 0).UTC().Format(time.RFC3339))
	}
	return w.Flush()
}

func runUpdateTickers(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	fetcher := reference.NewUniverseFetcher("", cfg.Reddit.ParseTimeout())
	tickers, err := fetcher.Fetch(ctx)
	if err != nil {
		return err
	}
	if err := reference.SaveTickerCSV(cfg.Reference.TickersCSV, tickers); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "saved %d tickers to %s\n", len(tickers), cfg.Reference.TickersCSV)
	return nil
}

func runServe(port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if port == 0 {
		port = cfg.Server.Port
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	srv := server.New(db, port)
	return srv.ListenAndServe()
}

func runDaemon(port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if port == 0 {
		port = cfg.Server.Port
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	pipeline, err := buildPipeline(cfg, db)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sched := scheduler.New(
		pipeline,
		reference.NewUniverseFetcher("", cfg.Reddit.ParseTimeout()),
		cfg.Reference.TickersCSV,
		buildAlertManager(cfg),
		cfg.Schedule.ParseScrapeInterval(),
		cfg.Schedule.ParseRefreshInterval(),
	)

	errCh := make(chan error, 2)
	go func() { errCh <- sched.Run(ctx) }()

	srv := server.New(db, port)
	go func() { errCh <- srv.ListenAndServe() }()

	// A scheduler or server failure terminates the daemon with a non-zero
	// status so the supervisor restarts it from a clean state.
	err = <-errCh
	if ctx.Err() != nil {
		fmt.Fprintln(os.Stderr, "\nshutting down...")
		return nil
	}
	return err
}
