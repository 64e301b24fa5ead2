package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tickerwatch",
		Short: "Track stock ticker mentions across subreddits",
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")

	root.AddCommand(scrapeCmd())
	root.AddCommand(rankCmd())
	root.AddCommand(mentionsCmd())
	root.AddCommand(updateTickersCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(runCmd())

	return root
}

func scrapeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scrape",
		Short: "Run one ingestion tick over the configured subreddits",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScrape(cmd.Context())
		},
	}
}

func rankCmd() *cobra.Command {
	var (
		jsonOutput bool
		since      string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Show tickers ranked by mention count",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRank(cmd.Context(), jsonOutput, since, limit)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	cmd.Flags().StringVar(&since, "since", "", "only count mentions newer than this duration ago (e.g. 24h; default: all time)")
	cmd.Flags().IntVar(&limit, "limit", 20, "max tickers to show")
	return cmd
}

func mentionsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "mentions <ticker>",
		Short: "Show recorded mentions for one ticker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMentions(cmd.Context(), args[0], jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func updateTickersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update-tickers",
		Short: "Refresh the ticker universe CSV from the Nasdaq screener",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpdateTickers(cmd.Context())
		},
	}
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}

func runCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start daemon with scheduler and HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}
