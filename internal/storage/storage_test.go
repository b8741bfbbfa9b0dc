package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rewired-gh/polygraph/internal/models"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(100, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Failed to close storage: %v", err)
		}
	})
	return s
}

func TestSaveAndLoadCatalog(t *testing.T) {
	s := newTestStorage(t)

	res := time.Date(2026, 11, 3, 0, 0, 0, 0, time.UTC)
	events := []models.EventRecord{
		{
			ID:             "event-1",
			Title:          "Election",
			ResolutionDate: &res,
			Markets: []models.MarketRecord{
				{
					ID: "m1", EventID: "event-1", Question: "Q1",
					Probability: 0.6, Volume: 1000, Volume24hr: 50,
					ResolutionDate: &res,
					TokenIDs:       []string{"tok-1", "tok-2"},
					Category:       "politics",
				},
				{
					ID: "m2", EventID: "event-1", Question: "Q2",
					Probability: 0.3,
				},
			},
		},
		{
			ID:    "event-2",
			Title: "Rates",
			Markets: []models.MarketRecord{
				{ID: "m3", EventID: "event-2", Question: "Q3", Probability: 0.5},
			},
		},
	}

	if err := s.SaveCatalog(events); err != nil {
		t.Fatalf("SaveCatalog failed: %v", err)
	}

	loaded, err := s.LoadCatalog()
	if err != nil {
		t.Fatalf("LoadCatalog failed: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(loaded))
	}
	if loaded[0].ID != "event-1" || loaded[1].ID != "event-2" {
		t.Errorf("Event order not preserved: %s, %s", loaded[0].ID, loaded[1].ID)
	}
	if len(loaded[0].Markets) != 2 {
		t.Fatalf("Expected 2 markets in event-1, got %d", len(loaded[0].Markets))
	}
	m := loaded[0].Markets[0]
	if m.ID != "m1" || m.Question != "Q1" || m.Probability != 0.6 {
		t.Errorf("Unexpected market: %+v", m)
	}
	if len(m.TokenIDs) != 2 || m.TokenIDs[0] != "tok-1" {
		t.Errorf("Unexpected token ids: %v", m.TokenIDs)
	}
	if m.ResolutionDate == nil || !m.ResolutionDate.Equal(res) {
		t.Errorf("Unexpected resolution date: %v", m.ResolutionDate)
	}
	if loaded[0].Markets[1].ResolutionDate != nil {
		t.Error("Expected nil resolution date for m2")
	}
}

func TestSaveCatalogReplaces(t *testing.T) {
	s := newTestStorage(t)

	first := []models.EventRecord{{
		ID: "event-1", Title: "First",
		Markets: []models.MarketRecord{{ID: "m1", EventID: "event-1", Question: "Q", Probability: 0.5}},
	}}
	second := []models.EventRecord{{
		ID: "event-2", Title: "Second",
		Markets: []models.MarketRecord{{ID: "m2", EventID: "event-2", Question: "Q", Probability: 0.5}},
	}}

	if err := s.SaveCatalog(first); err != nil {
		t.Fatalf("SaveCatalog failed: %v", err)
	}
	if err := s.SaveCatalog(second); err != nil {
		t.Fatalf("SaveCatalog failed: %v", err)
	}

	loaded, err := s.LoadCatalog()
	if err != nil {
		t.Fatalf("LoadCatalog failed: %v", err)
	}
	if len(loaded) != 1 || loaded[0].ID != "event-2" {
		t.Errorf("Expected only event-2 after replace, got %+v", loaded)
	}
}

func TestSaveCatalogRejectsInvalid(t *testing.T) {
	s := newTestStorage(t)

	bad := []models.EventRecord{{
		ID: "event-1", Title: "Bad",
		Markets: []models.MarketRecord{{ID: "", Question: "Q"}},
	}}
	if err := s.SaveCatalog(bad); err == nil {
		t.Error("SaveCatalog should reject an invalid market")
	}

	loaded, err := s.LoadCatalog()
	if err != nil {
		t.Fatalf("LoadCatalog failed: %v", err)
	}
	if len(loaded) != 0 {
		t.Errorf("Rejected save must not leave partial data, got %d events", len(loaded))
	}
}

func TestNotifiedPairs(t *testing.T) {
	s := newTestStorage(t)

	last, err := s.LastNotified("a|b")
	if err != nil {
		t.Fatalf("LastNotified failed: %v", err)
	}
	if !last.IsZero() {
		t.Errorf("Expected zero time for unseen pair, got %v", last)
	}

	if err := s.RecordNotified("a|b", 0.91); err != nil {
		t.Fatalf("RecordNotified failed: %v", err)
	}

	last, err = s.LastNotified("a|b")
	if err != nil {
		t.Fatalf("LastNotified failed: %v", err)
	}
	if last.IsZero() || time.Since(last) > time.Minute {
		t.Errorf("Unexpected notification time: %v", last)
	}

	if err := s.PruneNotified(time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("PruneNotified failed: %v", err)
	}
	last, err = s.LastNotified("a|b")
	if err != nil {
		t.Fatalf("LastNotified failed: %v", err)
	}
	if !last.IsZero() {
		t.Errorf("Expected pair pruned, got %v", last)
	}
}
