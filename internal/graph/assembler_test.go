package graph

import (
	"math"
	"testing"
	"time"

	"github.com/rewired-gh/polygraph/internal/catalog"
	"github.com/rewired-gh/polygraph/internal/entity"
	"github.com/rewired-gh/polygraph/internal/models"
)

func datePtr(t time.Time) *time.Time { return &t }

var testStart = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func priceSeries(prices ...float64) models.PriceSeries {
	s := make(models.PriceSeries, len(prices))
	for i, p := range prices {
		s[i] = models.PricePoint{Timestamp: testStart.Add(time.Duration(i) * time.Hour), Price: p}
	}
	return s
}

func testAssembler() *Assembler {
	events := []models.EventRecord{
		{
			ID:    "event-1",
			Title: "Pennsylvania outcomes",
			Markets: []models.MarketRecord{
				{
					ID: "A", EventID: "event-1",
					Question:       "Will Trump win Pennsylvania?",
					Volume24hr:     500,
					ResolutionDate: datePtr(testStart.AddDate(0, 0, 60)),
				},
				{
					ID: "B", EventID: "event-1",
					Question:   "Will turnout exceed 2022?",
					Volume24hr: 300,
				},
				{
					ID: "C", EventID: "event-1",
					Question:   "Will the margin be under 1%?",
					Volume24hr: 100,
				},
			},
		},
		{
			ID:    "event-2",
			Title: "Pardons",
			Markets: []models.MarketRecord{
				{
					ID: "D", EventID: "event-2",
					Question:       "Will Trump issue a pardon this year?",
					Volume24hr:     400,
					ResolutionDate: datePtr(testStart.AddDate(0, 0, 70)),
				},
			},
		},
	}
	return NewAssembler(catalog.New(events), entity.NewExtractor())
}

func structuralOnly() models.Filter {
	f := models.DefaultFilter()
	f.Type = string(models.DependencyStructural)
	return f
}

func TestAssembleUnknownCenter(t *testing.T) {
	a := testAssembler()
	if g := a.Assemble("nope", nil, models.DefaultFilter()); g != nil {
		t.Errorf("Assemble(unknown) = %v, want nil", g)
	}
}

func TestAssembleStructuralSiblings(t *testing.T) {
	a := testAssembler()

	g := a.Assemble("A", nil, structuralOnly())
	if g == nil {
		t.Fatal("Assemble returned nil")
	}
	if len(g.Edges) != 2 {
		t.Fatalf("Expected 2 structural edges, got %d", len(g.Edges))
	}
	targets := map[string]bool{}
	for _, e := range g.Edges {
		if e.Type != models.DependencyStructural {
			t.Errorf("Edge type = %s, want structural", e.Type)
		}
		if e.Weight != 0.5 {
			t.Errorf("Edge weight = %f, want 0.5", e.Weight)
		}
		if e.SharedEvent == nil || e.SharedEvent.EventID != "event-1" {
			t.Errorf("Edge missing shared-event payload: %+v", e)
		}
		targets[e.TargetID] = true
	}
	if !targets["B"] || !targets["C"] {
		t.Errorf("Expected edges to B and C, got %v", targets)
	}
	if g.CenterNodeID != "A" {
		t.Errorf("CenterNodeID = %s, want A", g.CenterNodeID)
	}
	if g.Stats.EdgesByType[models.DependencyStructural] != 2 {
		t.Errorf("Stats by type = %v", g.Stats.EdgesByType)
	}
}

func TestAssembleCorrelationOverridesStructural(t *testing.T) {
	a := testAssembler()

	co := priceSeries(0.40, 0.45, 0.42, 0.50, 0.48, 0.55, 0.52)
	histories := map[string]models.PriceSeries{
		"A": co,
		"B": co,
	}

	g := a.Assemble("A", histories, models.DefaultFilter())
	if g == nil {
		t.Fatal("Assemble returned nil")
	}

	var abEdges []models.DependencyEdge
	for _, e := range g.Edges {
		if PairKey(e.SourceID, e.TargetID) == PairKey("A", "B") {
			abEdges = append(abEdges, e)
		}
	}
	if len(abEdges) != 1 {
		t.Fatalf("Expected exactly 1 edge for pair A-B, got %d", len(abEdges))
	}
	e := abEdges[0]
	if e.Type != models.DependencyCorrelation {
		t.Errorf("A-B edge type = %s, want correlation", e.Type)
	}
	if e.Correlation == nil || math.Abs(e.Correlation.Value-1.0) > 1e-9 {
		t.Errorf("A-B correlation payload = %+v, want value 1.0", e.Correlation)
	}
	if math.Abs(e.Weight-1.0) > 1e-9 {
		t.Errorf("A-B weight = %f, want 1.0", e.Weight)
	}
}

func TestAssembleTruncationDropsUnreferencedNodes(t *testing.T) {
	a := testAssembler()

	co := priceSeries(0.40, 0.45, 0.42, 0.50, 0.48, 0.55, 0.52)
	histories := map[string]models.PriceSeries{
		"A": co,
		"B": co,
	}

	f := structuralOnly()
	f.Type = models.DependencyTypeAll
	f.MaxEdges = 1

	g := a.Assemble("A", histories, f)
	if g == nil {
		t.Fatal("Assemble returned nil")
	}
	if len(g.Edges) != 1 {
		t.Fatalf("Expected 1 edge after truncation, got %d", len(g.Edges))
	}
	// The correlation edge (weight 1.0) outranks the structural edges (0.5).
	if g.Edges[0].Type != models.DependencyCorrelation || g.Edges[0].TargetID != "B" {
		t.Errorf("Retained edge = %+v, want correlation A-B", g.Edges[0])
	}
	for _, n := range g.Nodes {
		if n.ID == "C" {
			t.Error("Node C should have been dropped with its truncated edge")
		}
	}
	if len(g.Nodes) != 2 {
		t.Errorf("Expected nodes [A, B], got %d nodes", len(g.Nodes))
	}
}

func TestAssembleEntityEdges(t *testing.T) {
	a := testAssembler()

	f := models.DefaultFilter()
	f.Type = string(models.DependencyEntity)

	// A and D both mention Trump across different events.
	g := a.Assemble("A", nil, f)
	if g == nil {
		t.Fatal("Assemble returned nil")
	}

	var toD *models.DependencyEdge
	for i := range g.Edges {
		if g.Edges[i].TargetID == "D" {
			toD = &g.Edges[i]
		}
	}
	if toD == nil {
		t.Fatal("Expected an entity edge A-D")
	}
	if len(toD.SharedEntities) == 0 || toD.SharedEntities[0] != "Trump" {
		t.Errorf("SharedEntities = %v, want [Trump]", toD.SharedEntities)
	}
	if math.Abs(toD.Weight-0.3) > 1e-9 {
		t.Errorf("Entity edge weight = %f, want 0.3 for one shared entity", toD.Weight)
	}
}

func TestAssembleCrossEventDisabled(t *testing.T) {
	a := testAssembler()

	co := priceSeries(0.40, 0.45, 0.42, 0.50, 0.48, 0.55, 0.52)
	histories := map[string]models.PriceSeries{
		"A": co,
		"B": co,
		"D": co,
	}

	f := models.DefaultFilter()
	f.CrossEvent = false
	f.Type = string(models.DependencyCorrelation)

	g := a.Assemble("A", histories, f)
	if g == nil {
		t.Fatal("Assemble returned nil")
	}
	for _, e := range g.Edges {
		if e.TargetID == "D" {
			t.Error("Correlation edge to out-of-event market D should be dropped when cross-event is disabled")
		}
	}
	found := false
	for _, e := range g.Edges {
		if e.TargetID == "B" {
			found = true
		}
	}
	if !found {
		t.Error("Same-event correlation edge A-B should survive when cross-event is disabled")
	}

	// Entity edges apply the opposite sense: only out-of-event targets are
	// kept when cross-event is disabled.
	f.Type = string(models.DependencyEntity)
	g = a.Assemble("A", nil, f)
	for _, e := range g.Edges {
		if e.TargetID != "D" {
			t.Errorf("Entity edge to same-event market %s should be dropped when cross-event is disabled", e.TargetID)
		}
	}
}

func TestAssembleTemporalEdges(t *testing.T) {
	a := testAssembler()

	f := models.DefaultFilter()
	f.Type = string(models.DependencyTemporal)
	f.MaxDaysDiff = 30

	// A resolves day 60, D day 70; B and C have no resolution date.
	g := a.Assemble("A", nil, f)
	if g == nil {
		t.Fatal("Assemble returned nil")
	}
	if len(g.Edges) != 1 {
		t.Fatalf("Expected 1 temporal edge, got %d", len(g.Edges))
	}
	e := g.Edges[0]
	if e.TargetID != "D" || e.Temporal == nil {
		t.Fatalf("Edge = %+v, want temporal edge to D", e)
	}
	if math.Abs(e.Temporal.DaysDiff-10) > 1e-9 {
		t.Errorf("DaysDiff = %f, want 10", e.Temporal.DaysDiff)
	}
	if e.Temporal.Precedence != "after" {
		t.Errorf("Precedence = %q, want after", e.Temporal.Precedence)
	}
	if math.Abs(e.Weight-(1-10.0/30.0)) > 1e-9 {
		t.Errorf("Weight = %f, want %f", e.Weight, 1-10.0/30.0)
	}
}

func TestAssembleDeterministicOrdering(t *testing.T) {
	a := testAssembler()

	first := a.Assemble("A", nil, structuralOnly())
	second := a.Assemble("A", nil, structuralOnly())

	if len(first.Edges) != len(second.Edges) {
		t.Fatal("Edge counts differ between runs")
	}
	for i := range first.Edges {
		if first.Edges[i].ID != second.Edges[i].ID {
			t.Errorf("Edge order differs at %d: %s vs %s", i, first.Edges[i].ID, second.Edges[i].ID)
		}
	}
	for i := range first.Nodes {
		if first.Nodes[i].ID != second.Nodes[i].ID {
			t.Errorf("Node order differs at %d", i)
		}
	}
}

func TestEdgeIDDeterministic(t *testing.T) {
	ab := EdgeID(models.DependencyCorrelation, "A", "B")
	ba := EdgeID(models.DependencyCorrelation, "B", "A")
	if ab != ba {
		t.Errorf("EdgeID not pair-symmetric: %s vs %s", ab, ba)
	}
	if EdgeID(models.DependencyStructural, "A", "B") == ab {
		t.Error("EdgeID should differ across types")
	}
}
