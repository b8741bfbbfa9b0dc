// Package models defines the core domain entities: markets, events, price
// series, and the dependency graph computed over them.
package models

import (
	"errors"
	"time"
)

// MarketRecord is an immutable snapshot of a single prediction market as
// fetched from the Polymarket Gamma API. The engine never mutates it.
type MarketRecord struct {
	ID             string     `json:"id"`
	EventID        string     `json:"event_id,omitempty"`
	Question       string     `json:"question"`
	Volume         float64    `json:"volume"`
	Volume24hr     float64    `json:"volume_24hr"`
	Probability    float64    `json:"probability"`
	ResolutionDate *time.Time `json:"resolution_date,omitempty"`
	TokenIDs       []string   `json:"token_ids,omitempty"`
	Category       string     `json:"category,omitempty"`
}

// Validate checks market field constraints.
func (m *MarketRecord) Validate() error {
	if m.ID == "" {
		return errors.New("market ID must not be empty")
	}
	if m.Question == "" {
		return errors.New("market question must not be empty")
	}
	if m.Probability < 0.0 || m.Probability > 1.0 {
		return errors.New("probability must be between 0.0 and 1.0")
	}
	if m.Volume < 0 {
		return errors.New("volume must not be negative")
	}
	if m.Volume24hr < 0 {
		return errors.New("volume 24hr must not be negative")
	}
	return nil
}

// EventRecord groups the markets belonging to a single Polymarket event.
// A market belongs to at most one event.
type EventRecord struct {
	ID             string         `json:"id"`
	Title          string         `json:"title"`
	ResolutionDate *time.Time     `json:"resolution_date,omitempty"`
	Markets        []MarketRecord `json:"markets"`
}

// Validate checks event field constraints.
func (e *EventRecord) Validate() error {
	if e.ID == "" {
		return errors.New("event ID must not be empty")
	}
	if e.Title == "" {
		return errors.New("event title must not be empty")
	}
	return nil
}

// PricePoint is a single (timestamp, price) sample of a market's price
// history. Prices are probabilities in [0, 1].
type PricePoint struct {
	Timestamp time.Time `json:"t"`
	Price     float64   `json:"p"`
}

// PriceSeries is an ordered sequence of price samples. Ascending timestamp
// order is not guaranteed by the source; consumers must sort before use.
type PriceSeries []PricePoint

// Window selects the sampling range for price-history fetches.
type Window string

const (
	Window1h  Window = "1h"
	Window24h Window = "24h"
	Window7d  Window = "7d"
)

// ValidWindow reports whether w is one of the supported history windows.
func ValidWindow(w Window) bool {
	switch w {
	case Window1h, Window24h, Window7d:
		return true
	}
	return false
}
