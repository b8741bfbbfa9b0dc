// Package server exposes the dependency graph over a small HTTP API for the
// dashboard frontend.
package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/rewired-gh/polygraph/internal/catalog"
	"github.com/rewired-gh/polygraph/internal/entity"
	"github.com/rewired-gh/polygraph/internal/graph"
	"github.com/rewired-gh/polygraph/internal/logger"
	"github.com/rewired-gh/polygraph/internal/models"
)

// CatalogFunc returns the current catalog, or nil before the first
// successful refresh.
type CatalogFunc func() *catalog.Catalog

// HistoryFunc fetches price series for the given markets, keyed by market
// id. Markets whose fetch failed are simply absent from the map.
type HistoryFunc func(ctx context.Context, markets []*models.MarketRecord, window models.Window) map[string]models.PriceSeries

// Config tunes the HTTP server.
type Config struct {
	ListenAddr     string
	AllowedOrigins []string
	DefaultFilter  models.Filter
	HistoryMarkets int
}

// Server serves the dashboard API.
type Server struct {
	cfg       Config
	catalogFn CatalogFunc
	histories HistoryFunc
	entities  entity.Source
	srv       *http.Server
}

// New creates a server. The catalog function is consulted per request so the
// server always sees the latest refresh.
func New(cfg Config, catalogFn CatalogFunc, histories HistoryFunc, entities entity.Source) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		cfg:       cfg,
		catalogFn: catalogFn,
		histories: histories,
		entities:  entities,
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	corsCfg := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	engine.Use(cors.New(corsCfg))

	engine.GET("/healthz", s.handleHealth)
	engine.GET("/api/markets", s.handleMarkets)
	engine.GET("/api/graph", s.handleGraph)

	s.srv = &http.Server{Addr: cfg.ListenAddr, Handler: engine}
	return s
}

// Start runs the server until Shutdown; it returns http.ErrServerClosed on a
// clean shutdown.
func (s *Server) Start() error {
	logger.Info("HTTP server listening on %s", s.cfg.ListenAddr)
	return s.srv.ListenAndServe()
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Handler exposes the underlying handler for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

func (s *Server) handleHealth(c *gin.Context) {
	status := "ok"
	if s.catalogFn() == nil {
		status = "warming"
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

// marketSummary is the list view of a market.
type marketSummary struct {
	ID          string  `json:"id"`
	EventID     string  `json:"event_id"`
	EventTitle  string  `json:"event_title"`
	Question    string  `json:"question"`
	Probability float64 `json:"probability"`
	Volume24hr  float64 `json:"volume_24hr"`
	Category    string  `json:"category,omitempty"`
}

func (s *Server) handleMarkets(c *gin.Context) {
	cat := s.catalogFn()
	if cat == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "catalog not loaded yet"})
		return
	}

	summaries := make([]marketSummary, 0, cat.Len())
	for _, m := range cat.Markets() {
		sum := marketSummary{
			ID:          m.ID,
			EventID:     m.EventID,
			Question:    m.Question,
			Probability: m.Probability,
			Volume24hr:  m.Volume24hr,
			Category:    m.Category,
		}
		if ev, ok := cat.EventFor(m.ID); ok {
			sum.EventTitle = ev.Title
		}
		summaries = append(summaries, sum)
	}
	c.JSON(http.StatusOK, gin.H{"markets": summaries, "total": len(summaries)})
}

func (s *Server) handleGraph(c *gin.Context) {
	cat := s.catalogFn()
	if cat == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "catalog not loaded yet"})
		return
	}

	centerID := c.Query("market")
	if centerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "market query parameter is required"})
		return
	}
	if _, ok := cat.Market(centerID); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "market not found"})
		return
	}

	f, err := s.parseFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	histories := s.histories(c.Request.Context(), s.fetchPlan(cat, centerID), f.Window)

	asm := graph.NewAssembler(cat, s.entities)
	g := asm.Assemble(centerID, histories, f)
	if g == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "market not found"})
		return
	}
	c.JSON(http.StatusOK, g)
}

// fetchPlan selects the markets whose price series a graph request needs:
// the center's event siblings plus the top markets by 24h volume.
func (s *Server) fetchPlan(cat *catalog.Catalog, centerID string) []*models.MarketRecord {
	seen := make(map[string]bool)
	var plan []*models.MarketRecord

	add := func(m *models.MarketRecord) {
		if !seen[m.ID] {
			seen[m.ID] = true
			plan = append(plan, m)
		}
	}

	if center, ok := cat.Market(centerID); ok {
		add(center)
	}
	if ev, ok := cat.EventFor(centerID); ok {
		for i := range ev.Markets {
			add(&ev.Markets[i])
		}
	}
	for _, m := range cat.TopByVolume(s.cfg.HistoryMarkets) {
		add(m)
	}
	return plan
}

// parseFilter overlays query parameters on the configured default filter.
func (s *Server) parseFilter(c *gin.Context) (models.Filter, error) {
	f := s.cfg.DefaultFilter

	if v := c.Query("type"); v != "" {
		f.Type = v
	}
	if v := c.Query("window"); v != "" {
		f.Window = models.Window(v)
	}
	if v := c.Query("cross_event"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, err
		}
		f.CrossEvent = b
	}
	if v := c.Query("max_edges"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return f, err
		}
		f.MaxEdges = n
	}
	if v := c.Query("min_correlation"); v != "" {
		x, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return f, err
		}
		f.CorrelationThreshold = x
	}
	if v := c.Query("min_shared_entities"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return f, err
		}
		f.MinSharedEntities = n
	}
	if v := c.Query("max_days"); v != "" {
		x, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return f, err
		}
		f.MaxDaysDiff = x
	}

	if err := f.Validate(); err != nil {
		return f, err
	}
	return f, nil
}
