// Package catalog provides an immutable in-memory index over the fetched
// market/event records. It is rebuilt wholesale on every poll and is safe for
// concurrent reads.
package catalog

import (
	"sort"

	"github.com/rewired-gh/polygraph/internal/models"
)

// Catalog indexes events and their markets by id.
type Catalog struct {
	events        []models.EventRecord
	markets       map[string]*models.MarketRecord
	eventByMarket map[string]*models.EventRecord
	ordered       []*models.MarketRecord
}

// New builds a catalog from fully materialized event records. When a market
// id appears in more than one event, the first event wins.
func New(events []models.EventRecord) *Catalog {
	c := &Catalog{
		events:        events,
		markets:       make(map[string]*models.MarketRecord),
		eventByMarket: make(map[string]*models.EventRecord),
	}
	for i := range c.events {
		ev := &c.events[i]
		for j := range ev.Markets {
			m := &ev.Markets[j]
			if _, exists := c.markets[m.ID]; exists {
				continue
			}
			c.markets[m.ID] = m
			c.eventByMarket[m.ID] = ev
			c.ordered = append(c.ordered, m)
		}
	}
	return c
}

// Market looks up a market by id.
func (c *Catalog) Market(id string) (*models.MarketRecord, bool) {
	m, ok := c.markets[id]
	return m, ok
}

// EventFor returns the event containing the given market.
func (c *Catalog) EventFor(marketID string) (*models.EventRecord, bool) {
	ev, ok := c.eventByMarket[marketID]
	return ev, ok
}

// Markets returns all markets in catalog order.
func (c *Catalog) Markets() []*models.MarketRecord {
	return c.ordered
}

// Events returns all event records.
func (c *Catalog) Events() []models.EventRecord {
	return c.events
}

// Len reports the number of distinct markets.
func (c *Catalog) Len() int {
	return len(c.ordered)
}

// TopByVolume returns up to n markets ordered by 24h volume descending.
// Ties break by id so the result is stable across rebuilds.
func (c *Catalog) TopByVolume(n int) []*models.MarketRecord {
	top := make([]*models.MarketRecord, len(c.ordered))
	copy(top, c.ordered)
	sort.Slice(top, func(i, j int) bool {
		if top[i].Volume24hr != top[j].Volume24hr {
			return top[i].Volume24hr > top[j].Volume24hr
		}
		return top[i].ID < top[j].ID
	})
	if n > 0 && len(top) > n {
		top = top[:n]
	}
	return top
}
