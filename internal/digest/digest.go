// Package digest periodically scans the highest-volume markets for strong
// correlation pairs and prepares cooldown-filtered notifications.
package digest

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rewired-gh/polygraph/internal/catalog"
	"github.com/rewired-gh/polygraph/internal/graph"
	"github.com/rewired-gh/polygraph/internal/models"
	"github.com/rewired-gh/polygraph/internal/storage"
)

// scanMaxEdges bounds the edges kept per market during a scan; the digest
// cares about every pair above threshold, not a display limit.
const scanMaxEdges = 100

// Config tunes the digest scan.
type Config struct {
	Threshold float64
	TopK      int
	Cooldown  time.Duration
}

// Pair is one notable correlation between two markets.
type Pair struct {
	SourceID       string
	TargetID       string
	SourceQuestion string
	TargetQuestion string
	Correlation    float64
	Confidence     float64
	DetectedAt     time.Time
}

// Digest finds strong new correlation pairs among top-volume markets.
type Digest struct {
	store *storage.Storage
	cfg   Config
}

// New creates a digest over the given storage.
func New(store *storage.Storage, cfg Config) *Digest {
	return &Digest{store: store, cfg: cfg}
}

// Scan assembles correlation-only graphs for the top-K markets by 24h volume
// and returns the pairs above threshold that have not been notified within
// the cooldown window, strongest first.
func (d *Digest) Scan(asm *graph.Assembler, cat *catalog.Catalog, histories map[string]models.PriceSeries, window models.Window) ([]Pair, error) {
	f := models.Filter{
		CorrelationThreshold: d.cfg.Threshold,
		Window:               window,
		Type:                 string(models.DependencyCorrelation),
		CrossEvent:           true,
		MaxEdges:             scanMaxEdges,
		MinSharedEntities:    1,
		MaxDaysDiff:          1,
	}

	now := time.Now()
	seen := make(map[string]bool)
	var pairs []Pair

	for _, m := range cat.TopByVolume(d.cfg.TopK) {
		g := asm.Assemble(m.ID, histories, f)
		if g == nil {
			continue
		}
		for _, e := range g.Edges {
			if e.Correlation == nil {
				continue
			}
			key := graph.PairKey(e.SourceID, e.TargetID)
			if seen[key] {
				continue
			}
			seen[key] = true

			last, err := d.store.LastNotified(key)
			if err != nil {
				return nil, fmt.Errorf("failed to check cooldown for %s: %w", key, err)
			}
			if !last.IsZero() && now.Sub(last) < d.cfg.Cooldown {
				continue
			}

			pair := Pair{
				SourceID:    e.SourceID,
				TargetID:    e.TargetID,
				Correlation: e.Correlation.Value,
				Confidence:  e.Correlation.Confidence,
				DetectedAt:  now,
			}
			if src, ok := cat.Market(e.SourceID); ok {
				pair.SourceQuestion = src.Question
			}
			if tgt, ok := cat.Market(e.TargetID); ok {
				pair.TargetQuestion = tgt.Question
			}
			pairs = append(pairs, pair)
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		si, sj := math.Abs(pairs[i].Correlation), math.Abs(pairs[j].Correlation)
		if si != sj {
			return si > sj
		}
		return graph.PairKey(pairs[i].SourceID, pairs[i].TargetID) < graph.PairKey(pairs[j].SourceID, pairs[j].TargetID)
	})
	return pairs, nil
}

// RecordSent logs the pairs so the cooldown suppresses them on later scans.
func (d *Digest) RecordSent(pairs []Pair) error {
	for _, p := range pairs {
		key := graph.PairKey(p.SourceID, p.TargetID)
		if err := d.store.RecordNotified(key, p.Correlation); err != nil {
			return err
		}
	}
	return nil
}
