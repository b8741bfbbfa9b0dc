package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/rewired-gh/polygraph/internal/logger"
	"github.com/rewired-gh/polygraph/internal/models"
)

// DefaultHistoryBatchSize bounds concurrent price-history requests.
const DefaultHistoryBatchSize = 5

// clobHistory is the CLOB /prices-history response.
type clobHistory struct {
	History []clobPoint `json:"history"`
}

type clobPoint struct {
	T int64   `json:"t"`
	P float64 `json:"p"`
}

// windowParams maps a history window to the CLOB interval and sampling
// fidelity (minutes per point).
func windowParams(w models.Window) (interval string, fidelity string) {
	switch w {
	case models.Window1h:
		return "1h", "1"
	case models.Window7d:
		return "1w", "30"
	default:
		return "1d", "5"
	}
}

// FetchPriceHistory retrieves the price series for one CLOB token over the
// given window. The returned series is in source order; consumers sort it.
func (c *Client) FetchPriceHistory(ctx context.Context, tokenID string, window models.Window) (models.PriceSeries, error) {
	u, err := url.Parse(c.clobAPIURL + "/prices-history")
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	interval, fidelity := windowParams(window)
	q := u.Query()
	q.Set("market", tokenID)
	q.Set("interval", interval)
	q.Set("fidelity", fidelity)
	u.RawQuery = q.Encode()

	resp, err := c.doRequest(ctx, u.String())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch price history: %w", err)
	}
	defer resp.Body.Close()

	var h clobHistory
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return nil, fmt.Errorf("failed to decode price history: %w", err)
	}

	series := make(models.PriceSeries, 0, len(h.History))
	for _, p := range h.History {
		series = append(series, models.PricePoint{
			Timestamp: time.Unix(p.T, 0).UTC(),
			Price:     p.P,
		})
	}
	return series, nil
}

// GatherHistories fetches the price series for a set of tokens in fixed-size
// batches. Within a batch the requests run concurrently; a batch completes
// when all of its requests have settled. A failed or empty fetch leaves its
// key absent from the result rather than failing the gather.
func (c *Client) GatherHistories(ctx context.Context, tokenIDs []string, window models.Window, batchSize int) map[string]models.PriceSeries {
	if batchSize <= 0 {
		batchSize = DefaultHistoryBatchSize
	}

	result := make(map[string]models.PriceSeries)
	var mu sync.Mutex

	for start := 0; start < len(tokenIDs); start += batchSize {
		end := start + batchSize
		if end > len(tokenIDs) {
			end = len(tokenIDs)
		}

		var wg sync.WaitGroup
		for _, tokenID := range tokenIDs[start:end] {
			wg.Add(1)
			go func(tokenID string) {
				defer wg.Done()
				series, err := c.FetchPriceHistory(ctx, tokenID, window)
				if err != nil {
					logger.Debug("Price history fetch failed for %s: %v", tokenID, err)
					return
				}
				if len(series) == 0 {
					return
				}
				mu.Lock()
				result[tokenID] = series
				mu.Unlock()
			}(tokenID)
		}
		wg.Wait()
	}

	return result
}
