// Package graph assembles the market dependency graph: it runs the four
// relationship producers (shared event, return correlation, shared entities,
// resolution-date proximity) against a center market, merges their candidate
// edges under an explicit priority ranking, and truncates to the requested
// edge limit.
package graph

import (
	"math"
	"sort"

	"github.com/rewired-gh/polygraph/internal/catalog"
	"github.com/rewired-gh/polygraph/internal/entity"
	"github.com/rewired-gh/polygraph/internal/models"
	"github.com/rewired-gh/polygraph/internal/series"
)

// Merge priority: correlation beats everything, structural beats entity and
// temporal, entity and temporal tie (first writer wins). An existing edge is
// replaced only by a strictly higher-priority one, so producer call order
// cannot change the merged result.
func priority(t models.DependencyType) int {
	switch t {
	case models.DependencyCorrelation:
		return 3
	case models.DependencyStructural:
		return 2
	default:
		return 1
	}
}

var edgePrefix = map[models.DependencyType]string{
	models.DependencyStructural:  "struct",
	models.DependencyCorrelation: "corr",
	models.DependencyEntity:      "ent",
	models.DependencyTemporal:    "temp",
}

// PairKey is the unordered dedup key for a market pair.
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}

// EdgeID derives a deterministic edge id from the type and unordered pair.
func EdgeID(t models.DependencyType, a, b string) string {
	return edgePrefix[t] + ":" + PairKey(a, b)
}

// Assembler computes dependency graphs over a catalog. It is a pure,
// synchronous computation; price histories are supplied pre-fetched.
type Assembler struct {
	cat      *catalog.Catalog
	entities entity.Source
}

// NewAssembler creates an assembler over the given catalog and entity source.
func NewAssembler(cat *catalog.Catalog, entities entity.Source) *Assembler {
	return &Assembler{cat: cat, entities: entities}
}

// candidate is a producer's proposed edge together with its target market.
type candidate struct {
	edge   models.DependencyEdge
	target *models.MarketRecord
}

// Assemble computes the dependency graph centered on centerID. The histories
// map is keyed by market id and holds only the series the caller chose to
// fetch; markets without a series simply produce no correlation signal and
// zero volatility. An unknown center yields nil.
func (a *Assembler) Assemble(centerID string, histories map[string]models.PriceSeries, f models.Filter) *models.DependencyGraph {
	center, ok := a.cat.Market(centerID)
	if !ok {
		return nil
	}

	var centerEventID string
	if ev, ok := a.cat.EventFor(centerID); ok {
		centerEventID = ev.ID
	}

	enabled := func(t models.DependencyType) bool {
		return f.Type == models.DependencyTypeAll || f.Type == string(t)
	}

	merged := make(map[string]models.DependencyEdge)
	nodes := map[string]models.DependencyNode{
		centerID: a.buildNode(center, histories),
	}

	add := func(c candidate) {
		if !allowedCrossEvent(f, c.edge.Type, centerEventID, c.target.EventID) {
			return
		}
		c.edge.Weight = clampWeight(c.edge.Weight)
		nodes[c.target.ID] = a.buildNode(c.target, histories)

		key := PairKey(c.edge.SourceID, c.edge.TargetID)
		if existing, ok := merged[key]; ok && priority(c.edge.Type) <= priority(existing.Type) {
			return
		}
		merged[key] = c.edge
	}

	if enabled(models.DependencyStructural) {
		for _, c := range a.structuralCandidates(center) {
			add(c)
		}
	}
	if enabled(models.DependencyCorrelation) {
		for _, c := range a.correlationCandidates(center, histories, f) {
			add(c)
		}
	}
	if enabled(models.DependencyEntity) {
		for _, c := range a.entityCandidates(center, f) {
			add(c)
		}
	}
	if enabled(models.DependencyTemporal) {
		for _, c := range a.temporalCandidates(center, f) {
			add(c)
		}
	}

	edges := make([]models.DependencyEdge, 0, len(merged))
	for _, e := range merged {
		edges = append(edges, e)
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Weight != edges[j].Weight {
			return edges[i].Weight > edges[j].Weight
		}
		return edges[i].ID < edges[j].ID
	})
	if f.MaxEdges > 0 && len(edges) > f.MaxEdges {
		edges = edges[:f.MaxEdges]
	}

	// Only nodes still referenced by a retained edge survive truncation.
	referenced := map[string]bool{centerID: true}
	for _, e := range edges {
		referenced[e.SourceID] = true
		referenced[e.TargetID] = true
	}

	outNodes := []models.DependencyNode{nodes[centerID]}
	var otherIDs []string
	for id := range nodes {
		if id != centerID && referenced[id] {
			otherIDs = append(otherIDs, id)
		}
	}
	sort.Strings(otherIDs)
	for _, id := range otherIDs {
		outNodes = append(outNodes, nodes[id])
	}

	byType := make(map[models.DependencyType]int)
	for _, e := range edges {
		byType[e.Type]++
	}

	return &models.DependencyGraph{
		Nodes:        outNodes,
		Edges:        edges,
		CenterNodeID: centerID,
		Stats: models.GraphStats{
			TotalNodes:  len(outNodes),
			TotalEdges:  len(edges),
			EdgesByType: byType,
		},
	}
}

// allowedCrossEvent applies the cross-event inclusion rule. The senses are
// asymmetric on purpose: with cross-event disabled, correlation keeps only
// same-event targets while entity and temporal keep only out-of-event
// targets. Structural candidates originate in the center's own event, so
// their check never rejects anything.
func allowedCrossEvent(f models.Filter, typ models.DependencyType, centerEventID, targetEventID string) bool {
	if f.CrossEvent {
		return true
	}
	switch typ {
	case models.DependencyStructural, models.DependencyCorrelation:
		return targetEventID == centerEventID
	default:
		return targetEventID != centerEventID
	}
}

func (a *Assembler) buildNode(m *models.MarketRecord, histories map[string]models.PriceSeries) models.DependencyNode {
	n := models.DependencyNode{
		ID:             m.ID,
		Question:       m.Question,
		EventID:        m.EventID,
		Category:       m.Category,
		Probability:    m.Probability,
		Volume24hr:     m.Volume24hr,
		ResolutionDate: m.ResolutionDate,
	}
	if ev, ok := a.cat.EventFor(m.ID); ok {
		n.EventID = ev.ID
		n.EventTitle = ev.Title
	}
	if s, ok := histories[m.ID]; ok {
		n.Volatility = series.Volatility(s)
	}
	return n
}

func clampWeight(w float64) float64 {
	if math.IsNaN(w) || math.IsInf(w, 0) {
		return 0
	}
	return math.Max(0, math.Min(1, w))
}
