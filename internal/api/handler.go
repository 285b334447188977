package api

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/w1r2p1/moonshot/internal/backtest"
	"github.com/w1r2p1/moonshot/internal/costs"
	"github.com/w1r2p1/moonshot/internal/observability"
	"github.com/w1r2p1/moonshot/internal/panel"
	"github.com/w1r2p1/moonshot/internal/reporting"
	"github.com/w1r2p1/moonshot/internal/storage"
	"github.com/w1r2p1/moonshot/internal/strategy"
	"github.com/w1r2p1/moonshot/internal/trading"
)

// Handler serves the backtest and order generation endpoints.
type Handler struct {
	loader    *panel.Loader
	accounts  storage.AccountStore
	rates     storage.ExchangeRateStore
	positions storage.PositionStore
	logger    *log.Logger
}

// NewHandler creates a new Handler.
func NewHandler(loader *panel.Loader, accounts storage.AccountStore, rates storage.ExchangeRateStore, positions storage.PositionStore, logger *log.Logger) *Handler {
	return &Handler{
		loader:    loader,
		accounts:  accounts,
		rates:     rates,
		positions: positions,
		logger:    logger,
	}
}

// StrategyRequest is the strategy and data selection shared by both
// endpoints.
type StrategyRequest struct {
	Code               string             `json:"code" binding:"required"`
	Strategy           strategy.Spec      `json:"strategy" binding:"required"`
	DB                 string             `json:"db" binding:"required"`
	Fields             []string           `json:"fields,omitempty"`
	Instruments        []string           `json:"instruments,omitempty"`
	Universes          []string           `json:"universes,omitempty"`
	ExcludeInstruments []string           `json:"exclude_instruments,omitempty"`
	ExcludeUniverses   []string           `json:"exclude_universes,omitempty"`
	LookbackWindow     int                `json:"lookback_window,omitempty"`
	NLV                map[string]float64 `json:"nlv,omitempty"`
	CommissionRate     float64            `json:"commission_rate,omitempty"`
	SlippageBPS        float64            `json:"slippage_bps,omitempty"`
}

// BacktestRequest is the body of POST /api/v1/backtest.
type BacktestRequest struct {
	StrategyRequest
	Start      string  `json:"start,omitempty"` // YYYY-MM-DD
	End        string  `json:"end,omitempty"`   // YYYY-MM-DD
	Allocation float64 `json:"allocation,omitempty"`
}

// OrdersRequest is the body of POST /api/v1/orders.
type OrdersRequest struct {
	StrategyRequest
	Allocations map[string]float64 `json:"allocations" binding:"required"`
}

// config converts the request into a validated strategy config.
func (r *StrategyRequest) config() strategy.Config {
	cfg := strategy.Config{
		Code:               r.Code,
		DB:                 r.DB,
		DBFields:           r.Fields,
		Instruments:        r.Instruments,
		Universes:          r.Universes,
		ExcludeInstruments: r.ExcludeInstruments,
		ExcludeUniverses:   r.ExcludeUniverses,
		LookbackWindow:     r.LookbackWindow,
		NLV:                r.NLV,
		SlippageBPS:        r.SlippageBPS,
	}
	if r.CommissionRate > 0 {
		cfg.Commission.Single = costs.PercentageCommission{Rate: r.CommissionRate}
	}
	return cfg
}

// RunBacktest executes a backtest and responds with the results as CSV.
func (h *Handler) RunBacktest(c *gin.Context) {
	var req BacktestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	start, end, err := parseDateRange(req.Start, req.End)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	strat, err := strategy.FromSpec(req.Code, req.Strategy)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	runner, err := backtest.NewRunner(strat, req.config(), h.loader)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	began := time.Now()
	results, err := runner.Run(c.Request.Context(), backtest.RunOptions{
		Start:      start,
		End:        end,
		Allocation: req.Allocation,
	})
	if err != nil {
		observability.RecordBacktestRun(req.Code, "error", time.Since(began).Seconds())
		h.logger.Printf("backtest %s failed: %v", req.Code, err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "error": err.Error()})
		return
	}
	observability.RecordBacktestRun(req.Code, "ok", time.Since(began).Seconds())

	c.Data(http.StatusOK, "text/csv; charset=utf-8", []byte(reporting.RenderResultsCSV(results)))
}

// CreateOrders generates orders for the given account allocations and
// responds with them as JSON.
func (h *Handler) CreateOrders(c *gin.Context) {
	var req OrdersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	strat, err := strategy.FromSpec(req.Code, req.Strategy)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	trader, err := trading.NewTrader(trading.TraderOptions{
		Strategy:      strat,
		Config:        req.config(),
		Loader:        h.loader,
		AccountStore:  h.accounts,
		RateStore:     h.rates,
		PositionStore: h.positions,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	orders, err := trader.CreateOrders(c.Request.Context(), req.Allocations)
	if err != nil {
		observability.RecordTradeRun(req.Code, "error")
		h.logger.Printf("create orders %s failed: %v", req.Code, err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "error": err.Error()})
		return
	}
	observability.RecordTradeRun(req.Code, "ok")
	for _, o := range orders {
		observability.RecordOrder(req.Code, string(o.Action))
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "orders": orders})
}

const dateLayout = "2006-01-02"

func parseDateRange(start, end string) (time.Time, time.Time, error) {
	var s, e time.Time
	var err error
	if start != "" {
		if s, err = time.Parse(dateLayout, start); err != nil {
			return s, e, err
		}
	}
	if end != "" {
		if e, err = time.Parse(dateLayout, end); err != nil {
			return s, e, err
		}
	}
	return s, e, nil
}
