package models

import (
	"errors"
	"time"
)

// DependencyType discriminates the four relationship signals.
type DependencyType string

const (
	DependencyStructural  DependencyType = "structural"
	DependencyCorrelation DependencyType = "correlation"
	DependencyEntity      DependencyType = "entity"
	DependencyTemporal    DependencyType = "temporal"
)

// DependencyTypeAll selects every producer in a Filter.
const DependencyTypeAll = "all"

// EntityType classifies a dictionary-matched named entity.
type EntityType string

const (
	EntityPerson       EntityType = "person"
	EntityCompany      EntityType = "company"
	EntityCrypto       EntityType = "crypto"
	EntityCountry      EntityType = "country"
	EntityOrganization EntityType = "organization"
)

// ExtractedEntity is a named entity matched in market or event text.
// Key is the lowercased canonical name used for identity and matching.
type ExtractedEntity struct {
	Name string     `json:"name"`
	Type EntityType `json:"type"`
	Key  string     `json:"key"`
}

// CorrelationDetail is the payload of a correlation edge.
type CorrelationDetail struct {
	Value      float64 `json:"value"`
	Window     string  `json:"window"`
	Samples    int     `json:"samples"`
	Confidence float64 `json:"confidence"`
}

// SharedEventDetail is the payload of a structural edge.
type SharedEventDetail struct {
	EventID string `json:"event_id"`
	Title   string `json:"title"`
}

// TemporalDetail is the payload of a temporal edge.
type TemporalDetail struct {
	DaysDiff   float64 `json:"days_diff"`
	Precedence string  `json:"precedence"`
}

// DependencyEdge is a weighted, typed relationship between two markets.
// IDs are deterministic for a given unordered market pair and type; weights
// are finite and clamped to [0, 1].
type DependencyEdge struct {
	ID          string         `json:"id"`
	SourceID    string         `json:"source_id"`
	TargetID    string         `json:"target_id"`
	Type        DependencyType `json:"type"`
	Weight      float64        `json:"weight"`
	Explanation string         `json:"explanation"`

	Correlation    *CorrelationDetail `json:"correlation,omitempty"`
	SharedEvent    *SharedEventDetail `json:"shared_event,omitempty"`
	SharedEntities []string           `json:"shared_entities,omitempty"`
	Temporal       *TemporalDetail    `json:"temporal,omitempty"`
}

// DependencyNode is a derived view of a market for graph consumers. It
// carries no identity beyond the source market's ID.
type DependencyNode struct {
	ID             string     `json:"id"`
	Question       string     `json:"question"`
	EventID        string     `json:"event_id,omitempty"`
	EventTitle     string     `json:"event_title,omitempty"`
	Category       string     `json:"category,omitempty"`
	Probability    float64    `json:"probability"`
	Volume24hr     float64    `json:"volume_24hr"`
	Volatility     float64    `json:"volatility"`
	ResolutionDate *time.Time `json:"resolution_date,omitempty"`
}

// GraphStats summarizes a computed graph for display purposes only.
type GraphStats struct {
	TotalNodes  int                    `json:"total_nodes"`
	TotalEdges  int                    `json:"total_edges"`
	EdgesByType map[DependencyType]int `json:"edges_by_type"`
}

// DependencyGraph is the assembler's output: the center market, every market
// reachable through a retained edge, and the retained edges themselves.
// Every node other than the center is the endpoint of at least one edge.
type DependencyGraph struct {
	Nodes        []DependencyNode `json:"nodes"`
	Edges        []DependencyEdge `json:"edges"`
	CenterNodeID string           `json:"center_node_id"`
	Stats        GraphStats       `json:"stats"`
}

// Filter configures a single graph assembly.
type Filter struct {
	CorrelationThreshold float64 `json:"correlation_threshold"`
	Window               Window  `json:"window"`
	Type                 string  `json:"type"` // "all" or a DependencyType
	CrossEvent           bool    `json:"cross_event"`
	MaxEdges             int     `json:"max_edges"`
	MinSharedEntities    int     `json:"min_shared_entities"`
	MaxDaysDiff          float64 `json:"max_days_diff"`
}

// DefaultFilter returns the filter used when a caller supplies nothing.
func DefaultFilter() Filter {
	return Filter{
		CorrelationThreshold: 0.3,
		Window:               Window24h,
		Type:                 DependencyTypeAll,
		CrossEvent:           true,
		MaxEdges:             25,
		MinSharedEntities:    1,
		MaxDaysDiff:          30,
	}
}

// Validate checks filter field constraints.
func (f *Filter) Validate() error {
	if f.CorrelationThreshold < 0.0 || f.CorrelationThreshold > 1.0 {
		return errors.New("correlation threshold must be between 0.0 and 1.0")
	}
	if !ValidWindow(f.Window) {
		return errors.New("window must be one of: 1h, 24h, 7d")
	}
	switch f.Type {
	case DependencyTypeAll,
		string(DependencyStructural), string(DependencyCorrelation),
		string(DependencyEntity), string(DependencyTemporal):
	default:
		return errors.New("type must be \"all\" or one of: structural, correlation, entity, temporal")
	}
	if f.MaxEdges < 1 {
		return errors.New("max edges must be at least 1")
	}
	if f.MinSharedEntities < 1 {
		return errors.New("min shared entities must be at least 1")
	}
	if f.MaxDaysDiff <= 0 {
		return errors.New("max days diff must be positive")
	}
	return nil
}
