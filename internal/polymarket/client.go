// Package polymarket provides clients for the Polymarket Gamma API (events
// and markets) and CLOB API (price histories).
package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rewired-gh/polygraph/internal/models"
)

// Client provides access to the Polymarket APIs.
type Client struct {
	gammaAPIURL    string
	clobAPIURL     string
	httpClient     *http.Client
	maxRetries     int
	retryDelayBase time.Duration
}

// ClientConfig tunes the HTTP behavior of a Client.
type ClientConfig struct {
	Timeout        time.Duration
	MaxRetries     int
	RetryDelayBase time.Duration
}

// gammaEvent is an event as returned by the Gamma API.
type gammaEvent struct {
	ID       string        `json:"id"`
	Ticker   string        `json:"ticker"`
	Title    string        `json:"title"`
	Category string        `json:"category"`
	Active   bool          `json:"active"`
	Closed   bool          `json:"closed"`
	EndDate  string        `json:"endDate"`
	Markets  []gammaMarket `json:"markets"`
}

// gammaMarket is a market as returned by the Gamma API. Several fields are
// JSON strings containing JSON arrays.
type gammaMarket struct {
	ID            string  `json:"id"`
	Question      string  `json:"question"`
	Outcomes      string  `json:"outcomes"`      // JSON string: "[\"Yes\", \"No\"]"
	OutcomePrices string  `json:"outcomePrices"` // JSON string: "[\"0.75\", \"0.25\"]"
	ClobTokenIds  string  `json:"clobTokenIds"`  // JSON string: "[\"token1\", \"token2\"]"
	EndDate       string  `json:"endDate"`
	Volume        float64 `json:"volumeNum"`
	Volume24hr    float64 `json:"volume24hr"`
}

// NewClient creates a new Polymarket client.
func NewClient(gammaAPIURL, clobAPIURL string, cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelayBase <= 0 {
		cfg.RetryDelayBase = time.Second
	}
	return &Client{
		gammaAPIURL:    gammaAPIURL,
		clobAPIURL:     clobAPIURL,
		httpClient:     &http.Client{Timeout: cfg.Timeout},
		maxRetries:     cfg.MaxRetries,
		retryDelayBase: cfg.RetryDelayBase,
	}
}

// FetchEvents retrieves active events with their markets from the Gamma API,
// ordered by 24h volume, optionally filtered by category, trimmed to limit.
func (c *Client) FetchEvents(ctx context.Context, categories []string, limit int) ([]models.EventRecord, error) {
	u, err := url.Parse(c.gammaAPIURL + "/events")
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	q := u.Query()
	q.Set("active", "true")
	q.Set("closed", "false")
	q.Set("limit", fmt.Sprintf("%d", limit*3)) // Fetch 3x to allow for filtering
	q.Set("order", "volume24hr")
	q.Set("ascending", "false")
	u.RawQuery = q.Encode()

	resp, err := c.doRequest(ctx, u.String())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch events: %w", err)
	}
	defer resp.Body.Close()

	// Response is an array directly, not wrapped.
	var gevents []gammaEvent
	if err := json.NewDecoder(resp.Body).Decode(&gevents); err != nil {
		return nil, fmt.Errorf("failed to decode events: %w", err)
	}

	categoryMap := make(map[string]bool)
	for _, cat := range categories {
		categoryMap[cat] = true
	}

	var events []models.EventRecord
	for _, ge := range gevents {
		if !ge.Active || ge.Closed {
			continue
		}
		if len(categories) > 0 && !categoryMap[ge.Category] {
			continue
		}

		ev := models.EventRecord{
			ID:             ge.ID,
			Title:          ge.Title,
			ResolutionDate: parseDate(ge.EndDate),
		}
		for _, gm := range ge.Markets {
			m, err := parseMarket(gm, ge)
			if err != nil {
				continue // Skip invalid markets
			}
			ev.Markets = append(ev.Markets, m)
		}
		if len(ev.Markets) == 0 {
			continue
		}
		events = append(events, ev)
	}

	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

// parseMarket converts a Gamma market into a MarketRecord.
func parseMarket(gm gammaMarket, ge gammaEvent) (models.MarketRecord, error) {
	prob, err := parseYesProbability(gm)
	if err != nil {
		return models.MarketRecord{}, err
	}

	var tokens []string
	if gm.ClobTokenIds != "" {
		if err := json.Unmarshal([]byte(gm.ClobTokenIds), &tokens); err != nil {
			return models.MarketRecord{}, fmt.Errorf("failed to parse clob token ids: %w", err)
		}
	}

	return models.MarketRecord{
		ID:             gm.ID,
		EventID:        ge.ID,
		Question:       gm.Question,
		Volume:         gm.Volume,
		Volume24hr:     gm.Volume24hr,
		Probability:    prob,
		ResolutionDate: parseDate(gm.EndDate),
		TokenIDs:       tokens,
		Category:       ge.Category,
	}, nil
}

// parseYesProbability extracts the "Yes" outcome price from a market,
// falling back to the first listed price.
func parseYesProbability(gm gammaMarket) (float64, error) {
	var outcomes []string
	if err := json.Unmarshal([]byte(gm.Outcomes), &outcomes); err != nil {
		return 0, fmt.Errorf("failed to parse outcomes: %w", err)
	}
	var outcomePrices []string
	if err := json.Unmarshal([]byte(gm.OutcomePrices), &outcomePrices); err != nil {
		return 0, fmt.Errorf("failed to parse outcome prices: %w", err)
	}
	if len(outcomePrices) == 0 {
		return 0, fmt.Errorf("no outcome prices")
	}

	for i, outcome := range outcomes {
		if i >= len(outcomePrices) {
			break
		}
		if outcome == "Yes" {
			var price float64
			fmt.Sscanf(outcomePrices[i], "%f", &price)
			return price, nil
		}
	}

	var price float64
	fmt.Sscanf(outcomePrices[0], "%f", &price)
	return price, nil
}

func parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}

// doRequest performs a GET with linear-backoff retry on transport errors and
// 5xx responses.
func (c *Client) doRequest(ctx context.Context, urlStr string) (*http.Response, error) {
	var lastErr error

	for i := 0; i < c.maxRetries; i++ {
		req, err := http.NewRequestWithContext(ctx, "GET", urlStr, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			time.Sleep(c.retryDelayBase * time.Duration(i+1))
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			time.Sleep(c.retryDelayBase * time.Duration(i+1))
			continue
		}
		if resp.StatusCode >= 400 {
			resp.Body.Close()
			return nil, fmt.Errorf("request failed: %d", resp.StatusCode)
		}

		return resp, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
