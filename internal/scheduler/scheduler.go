package scheduler

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/greyotoc/tickerwatch/internal/ingest"
	"github.com/greyotoc/tickerwatch/pkg/alert"
	"github.com/greyotoc/tickerwatch/pkg/reference"
)

// Scheduler runs periodic ingestion ticks and ticker-list refreshes. Ticks
// never overlap: the loop is a single goroutine and a tick runs to
// completion before the next fires.
type Scheduler struct {
	pipeline   *ingest.Pipeline
	universe   *reference.UniverseFetcher
	tickersCSV string
	alertMgr   *alert.Manager
	scrapeInt  time.Duration
	refreshInt time.Duration
}

// New creates a new scheduler.
func New(
	pipeline *ingest.Pipeline,
	universe *reference.UniverseFetcher,
	tickersCSV string,
	alertMgr *alert.Manager,
	scrapeInt, refreshInt time.Duration,
) *Scheduler {
	if scrapeInt == 0 {
		scrapeInt = 10 * time.Minute
	}
	if refreshInt == 0 {
		refreshInt = 24 * time.Hour
	}
	return &Scheduler{
		pipeline:   pipeline,
		universe:   universe,
		tickersCSV: tickersCSV,
		alertMgr:   alertMgr,
		scrapeInt:  scrapeInt,
		refreshInt: refreshInt,
	}
}

// Run starts the scheduler loop and blocks until ctx is cancelled or a
// tick fails. A tick error is returned rather than swallowed: the process
// exits non-zero and the external supervisor restarts it, instead of
// continuing in a possibly inconsistent state.
func (s *Scheduler) Run(ctx context.Context) error {
	scrapeTicker := time.NewTicker(s.scrapeInt)
	refreshTicker := time.NewTicker(s.refreshInt)
	defer scrapeTicker.Stop()
	defer refreshTicker.Stop()

	fmt.Fprintln(os.Stderr, "scheduler: initial scrape...")
	if err := s.scrape(ctx); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "scheduler: running (scrape every %s, refresh tickers every %s)\n",
		s.scrapeInt, s.refreshInt)

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(os.Stderr, "scheduler: stopped")
			return ctx.Err()
		case <-scrapeTicker.C:
			if err := s.scrape(ctx); err != nil {
				return err
			}
		case <-refreshTicker.C:
			if err := s.refreshTickers(ctx); err != nil {
				return err
			}
		}
	}
}

func (s *Scheduler) scrape(ctx context.Context) error {
	summary, err := s.pipeline.RunTick(ctx)
	if err != nil {
		return fmt.Errorf("scrape tick: %w", err)
	}

	fmt.Fprintf(os.Stderr, "scheduler: %d new posts, %d new comments, %d new mentions\n",
		summary.NewPosts, summary.NewComments, summary.NewMentions)

	if summary.NewMentions > 0 && s.alertMgr != nil && s.alertMgr.HasNotifiers() {
		notification := &alert.Notification{
			Title: "tickerwatch scrape summary",
			Body: fmt.Sprintf("Recorded %d new mentions across r/%s",
				summary.NewMentions, strings.Join(summary.Subreddits, ", r/")),
			NewMentions: summary.NewMentions,
			Tickers:     summary.Tickers,
			Subreddits:  summary.Subreddits,
		}
		if err := s.alertMgr.Broadcast(ctx, notification); err != nil {
			// Alert delivery is best-effort; a dead webhook should not
			// stop ingestion.
			fmt.Fprintf(os.Stderr, "scheduler: alert error: %v\n", err)
		}
	}
	return nil
}

// refreshTickers rewrites the ticker-universe CSV from the screener API.
// The in-memory universe stays immutable for the run; the refreshed list
// takes effect on the next start.
func (s *Scheduler) refreshTickers(ctx context.Context) error {
	fmt.Fprintln(os.Stderr, "scheduler: refreshing ticker list...")
	tickers, err := s.universe.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("refresh tickers: %w", err)
	}
	if err := reference.SaveTickerCSV(s.tickersCSV, tickers); err != nil {
		return fmt.Errorf("refresh tickers: %w", err)
	}
	fmt.Fprintf(os.Stderr, "scheduler: saved %d tickers\n", len(tickers))
	return nil
}
