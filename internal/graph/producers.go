package graph

import (
	"fmt"
	"math"
	"strings"

	"github.com/rewired-gh/polygraph/internal/entity"
	"github.com/rewired-gh/polygraph/internal/models"
	"github.com/rewired-gh/polygraph/internal/series"
	"github.com/rewired-gh/polygraph/internal/temporal"
)

const (
	// structuralWeight is the fixed weight of a shared-event edge.
	structuralWeight = 0.5
	// entityWeightPerShared scales the entity edge weight: one shared entity
	// scores below a structural sibling, two above.
	entityWeightPerShared = 0.3
	// minCorrelationSamples is the minimum number of aligned raw points for a
	// correlation edge.
	minCorrelationSamples = 5
	// minCorrelationConfidence gates correlation edges on sample-size
	// reliability, independent of the correlation's magnitude.
	minCorrelationConfidence = 0.3
)

// structuralCandidates links the center to its siblings within the single
// event containing it, all at the fixed structural weight.
func (a *Assembler) structuralCandidates(center *models.MarketRecord) []candidate {
	ev, ok := a.cat.EventFor(center.ID)
	if !ok {
		return nil
	}

	var out []candidate
	for i := range ev.Markets {
		m := &ev.Markets[i]
		if m.ID == center.ID {
			continue
		}
		out = append(out, candidate{
			target: m,
			edge: models.DependencyEdge{
				ID:       EdgeID(models.DependencyStructural, center.ID, m.ID),
				SourceID: center.ID,
				TargetID: m.ID,
				Type:     models.DependencyStructural,
				Weight:   structuralWeight,
				SharedEvent: &models.SharedEventDetail{
					EventID: ev.ID,
					Title:   ev.Title,
				},
				Explanation: fmt.Sprintf("Both markets belong to the event %q", ev.Title),
			},
		})
	}
	return out
}

// correlationCandidates correlates the center's price series against every
// other market with a fetched series. Edges require enough aligned samples,
// confidence above the floor, and |r| at or above the configured threshold.
func (a *Assembler) correlationCandidates(center *models.MarketRecord, histories map[string]models.PriceSeries, f models.Filter) []candidate {
	centerSeries, ok := histories[center.ID]
	if !ok {
		return nil
	}

	var out []candidate
	for _, m := range a.cat.Markets() {
		if m.ID == center.ID {
			continue
		}
		s, ok := histories[m.ID]
		if !ok {
			continue
		}

		res := series.Correlate(centerSeries, s)
		if res.Samples < minCorrelationSamples {
			continue
		}
		if res.Confidence <= minCorrelationConfidence {
			continue
		}
		strength := math.Abs(res.Correlation)
		if strength < f.CorrelationThreshold {
			continue
		}

		direction := "positively"
		if res.Correlation < 0 {
			direction = "negatively"
		}
		out = append(out, candidate{
			target: m,
			edge: models.DependencyEdge{
				ID:       EdgeID(models.DependencyCorrelation, center.ID, m.ID),
				SourceID: center.ID,
				TargetID: m.ID,
				Type:     models.DependencyCorrelation,
				Weight:   strength,
				Correlation: &models.CorrelationDetail{
					Value:      res.Correlation,
					Window:     string(f.Window),
					Samples:    res.Samples,
					Confidence: res.Confidence,
				},
				Explanation: fmt.Sprintf("Prices moved %s (r=%.2f) over the %s window", direction, res.Correlation, f.Window),
			},
		})
	}
	return out
}

// entityCandidates links markets whose question text shares named entities
// with the center's. Event titles contribute to the matched text on both
// sides.
func (a *Assembler) entityCandidates(center *models.MarketRecord, f models.Filter) []candidate {
	centerEntities := a.entities.Extract(a.marketText(center))
	if len(centerEntities) == 0 {
		return nil
	}

	var out []candidate
	for _, m := range a.cat.Markets() {
		if m.ID == center.ID {
			continue
		}
		shared := entity.Shared(centerEntities, a.entities.Extract(a.marketText(m)))
		if len(shared) < f.MinSharedEntities {
			continue
		}
		out = append(out, candidate{
			target: m,
			edge: models.DependencyEdge{
				ID:             EdgeID(models.DependencyEntity, center.ID, m.ID),
				SourceID:       center.ID,
				TargetID:       m.ID,
				Type:           models.DependencyEntity,
				Weight:         math.Min(1, entityWeightPerShared*float64(len(shared))),
				SharedEntities: shared,
				Explanation:    fmt.Sprintf("Both mention %s", strings.Join(shared, ", ")),
			},
		})
	}
	return out
}

// temporalCandidates links markets whose resolution dates fall within the
// configured day distance; the weight decays linearly with distance.
// Markets without a resolution date produce nothing.
func (a *Assembler) temporalCandidates(center *models.MarketRecord, f models.Filter) []candidate {
	if center.ResolutionDate == nil {
		return nil
	}

	var out []candidate
	for _, m := range a.cat.Markets() {
		if m.ID == center.ID || m.ResolutionDate == nil {
			continue
		}
		prox := temporal.Compare(*center.ResolutionDate, *m.ResolutionDate)
		if prox.DaysDiff > f.MaxDaysDiff {
			continue
		}

		explanation := fmt.Sprintf("Resolves %.1f days %s the center market", prox.DaysDiff, prox.Precedence)
		if prox.Precedence == temporal.Same {
			explanation = "Resolves within a day of the center market"
		}
		out = append(out, candidate{
			target: m,
			edge: models.DependencyEdge{
				ID:       EdgeID(models.DependencyTemporal, center.ID, m.ID),
				SourceID: center.ID,
				TargetID: m.ID,
				Type:     models.DependencyTemporal,
				Weight:   temporal.Weight(prox.DaysDiff, f.MaxDaysDiff),
				Temporal: &models.TemporalDetail{
					DaysDiff:   prox.DaysDiff,
					Precedence: string(prox.Precedence),
				},
				Explanation: explanation,
			},
		})
	}
	return out
}

// marketText is the text an entity producer sees for a market: its question
// plus the containing event's title.
func (a *Assembler) marketText(m *models.MarketRecord) string {
	if ev, ok := a.cat.EventFor(m.ID); ok {
		return m.Question + " " + ev.Title
	}
	return m.Question
}
