package reference

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Screener endpoint behind the Nasdaq stock screener page; covers NYSE,
// NASDAQ, and AMEX listings.
const screenerURL = "https://api.nasdaq.com/api/screener/stocks?tableonly=true&limit=0&download=true"

// Nasdaq blocks bare clients, so requests mimic a browser.
var screenerHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Accept":          "application/json, text/plain, */*",
	"Accept-Language": "en-US,en;q=0.9",
	"Origin":          "https://www.nasdaq.com",
	"Referer":         "https://www.nasdaq.com/",
}

// UniverseFetcher retrieves the full ticker symbol list.
type UniverseFetcher struct {
	client  *http.Client
	baseURL string
}

// NewUniverseFetcher creates a fetcher for the Nasdaq screener API. An
// empty baseURL uses the real endpoint; tests pass their own.
func NewUniverseFetcher(baseURL string, timeout time.Duration) *UniverseFetcher {
	if baseURL == "" {
		baseURL = screenerURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &UniverseFetcher{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// Fetch returns every listed symbol reported by the screener.
func (u *UniverseFetcher) Fetch(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.baseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create screener request: %w", err)
	}
	for k, v := range screenerHeaders {
		req.Header.Set(k, v)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch ticker list: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch ticker list: status %d", resp.StatusCode)
	}

	var payload struct {
		Data struct {
			Rows []struct {
				Symbol string `json:"symbol"`
			} `json:"rows"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode ticker list: %w", err)
	}
	if len(payload.Data.Rows) == 0 {
		return nil, fmt.Errorf("received an empty ticker list from screener")
	}

	tickers := make([]string, 0, len(payload.Data.Rows))
	for _, row := range payload.Data.Rows {
		tickers = append(tickers, row.Symbol)
	}
	return tickers, nil
}
