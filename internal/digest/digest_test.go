package digest

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/rewired-gh/polygraph/internal/catalog"
	"github.com/rewired-gh/polygraph/internal/entity"
	"github.com/rewired-gh/polygraph/internal/graph"
	"github.com/rewired-gh/polygraph/internal/models"
	"github.com/rewired-gh/polygraph/internal/storage"
)

func testFixtures(t *testing.T) (*Digest, *graph.Assembler, *catalog.Catalog, map[string]models.PriceSeries) {
	t.Helper()
	store, err := storage.New(100, filepath.Join(t.TempDir(), "digest.db"))
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	events := []models.EventRecord{
		{
			ID: "event-1", Title: "Rates",
			Markets: []models.MarketRecord{
				{ID: "m1", EventID: "event-1", Question: "Rate cut in March?", Volume24hr: 900},
			},
		},
		{
			ID: "event-2", Title: "Inflation",
			Markets: []models.MarketRecord{
				{ID: "m2", EventID: "event-2", Question: "CPI above 3%?", Volume24hr: 700},
			},
		},
	}
	cat := catalog.New(events)

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	co := make(models.PriceSeries, 0, 8)
	for i, p := range []float64{0.40, 0.45, 0.42, 0.50, 0.48, 0.55, 0.52, 0.58} {
		co = append(co, models.PricePoint{Timestamp: start.Add(time.Duration(i) * time.Hour), Price: p})
	}
	histories := map[string]models.PriceSeries{"m1": co, "m2": co}

	d := New(store, Config{Threshold: 0.8, TopK: 10, Cooldown: time.Hour})
	return d, graph.NewAssembler(cat, entity.NewExtractor()), cat, histories
}

func TestScanFindsStrongPairs(t *testing.T) {
	d, asm, cat, histories := testFixtures(t)

	pairs, err := d.Scan(asm, cat, histories, models.Window24h)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(pairs) != 1 {
		t.Fatalf("Expected 1 pair, got %d", len(pairs))
	}
	p := pairs[0]
	if math.Abs(p.Correlation-1.0) > 1e-9 {
		t.Errorf("Correlation = %f, want 1.0", p.Correlation)
	}
	if p.SourceQuestion == "" || p.TargetQuestion == "" {
		t.Errorf("Pair missing questions: %+v", p)
	}
}

func TestScanCooldownSuppression(t *testing.T) {
	d, asm, cat, histories := testFixtures(t)

	pairs, err := d.Scan(asm, cat, histories, models.Window24h)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(pairs) != 1 {
		t.Fatalf("Expected 1 pair, got %d", len(pairs))
	}

	if err := d.RecordSent(pairs); err != nil {
		t.Fatalf("RecordSent failed: %v", err)
	}

	again, err := d.Scan(asm, cat, histories, models.Window24h)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("Expected 0 pairs within cooldown, got %d", len(again))
	}
}

func TestScanNoHistories(t *testing.T) {
	d, asm, cat, _ := testFixtures(t)

	pairs, err := d.Scan(asm, cat, nil, models.Window24h)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(pairs) != 0 {
		t.Errorf("Expected 0 pairs without histories, got %d", len(pairs))
	}
}
