package statushttp

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"pricewatch/internal/config"
	"pricewatch/internal/gateway"
	"pricewatch/internal/market"
	"pricewatch/internal/presentation"
)

type SourceLister interface {
	Describe() []gateway.SourceInfo
}

type BoardReader interface {
	Entry(id market.MarketID) (presentation.BoardEntry, bool)
	Headline() (presentation.Headline, bool)
}

type ConfigStore interface {
	Snapshot() config.Snapshot
	AddAlarm(a market.Alarm) (market.Alarm, error)
	RemoveAlarm(id string) (bool, error)
}

type Router struct {
	sources SourceLister
	board   BoardReader
	config  ConfigStore
}

func NewRouter(sources SourceLister, board BoardReader, cfg ConfigStore) *Router {
	return &Router{sources: sources, board: board, config: cfg}
}

func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("/sources", r.handleSources)
	group.GET("/markets", r.handleMarkets)
	group.GET("/markets/:exchange/:market/graph", r.handleGraph)
	group.GET("/alarms", r.handleAlarms)
	group.POST("/alarms", r.handleAddAlarm)
	group.DELETE("/alarms/:id", r.handleRemoveAlarm)
}

func (r *Router) handleSources(c *gin.Context) {
	var sources []gateway.SourceInfo
	if r.sources != nil {
		sources = r.sources.Describe()
	}
	if sources == nil {
		sources = []gateway.SourceInfo{}
	}
	c.JSON(http.StatusOK, gin.H{"sources": sources})
}

type marketRow struct {
	market.TrackedMarket
	Price     string     `json:"price,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

func (r *Router) handleMarkets(c *gin.Context) {
	cfg := r.config.Snapshot().Config
	rows := make([]marketRow, 0, len(cfg.Markets))
	for _, tm := range cfg.Markets {
		row := marketRow{TrackedMarket: tm}
		id := tm.ID()
		row.Source, row.Market = id.Source, id.Market
		if e, ok := r.board.Entry(id); ok {
			row.Price = e.Price
			if !e.UpdatedAt.IsZero() {
				at := e.UpdatedAt
				row.UpdatedAt = &at
			}
		}
		rows = append(rows, row)
	}
	resp := gin.H{"markets": rows, "graph_currency": cfg.GraphCurrency}
	if h, ok := r.board.Headline(); ok {
		resp["headline"] = h
	}
	c.JSON(http.StatusOK, resp)
}

func (r *Router) handleGraph(c *gin.Context) {
	id := market.NewMarketID(c.Param("exchange"), c.Param("market"))
	if err := id.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	e, ok := r.board.Entry(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "market not tracked"})
		return
	}
	points := e.Graph
	if points == nil {
		points = []presentation.GraphPoint{}
	}
	c.JSON(http.StatusOK, gin.H{
		"exchange": id.Source,
		"market":   id.Market,
		"currency": r.config.Snapshot().Config.GraphCurrency,
		"points":   points,
	})
}

func (r *Router) handleAlarms(c *gin.Context) {
	alarms := r.config.Snapshot().Config.Alarms
	if alarms == nil {
		alarms = []market.Alarm{}
	}
	c.JSON(http.StatusOK, gin.H{"alarms": alarms})
}

type alarmRequest struct {
	Exchange  string  `json:"exchange" binding:"required"`
	Market    string  `json:"market" binding:"required"`
	Direction string  `json:"direction" binding:"required"`
	Price     float64 `json:"price" binding:"required"`
}

func (r *Router) handleAddAlarm(c *gin.Context) {
	var req alarmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	dir, err := market.ParseDirection(req.Direction)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id := market.NewMarketID(req.Exchange, req.Market)
	if err := id.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Price <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "price must be positive"})
		return
	}
	a, err := r.config.AddAlarm(market.Alarm{
		Source:    id.Source,
		Market:    id.Market,
		Direction: dir,
		Threshold: req.Price,
	})
	if errors.Is(err, config.ErrNotPersisted) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "alarm": a})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, a)
}

func (r *Router) handleRemoveAlarm(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	removed, err := r.config.RemoveAlarm(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, gin.H{"error": "alarm not found"})
		return
	}
	c.Status(http.StatusNoContent)
}
