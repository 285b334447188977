// Package api exposes backtesting and order generation over HTTP.
package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/w1r2p1/moonshot/internal/observability"
	"github.com/w1r2p1/moonshot/internal/panel"
	"github.com/w1r2p1/moonshot/internal/storage"
)

// Server is the HTTP front end.
type Server struct {
	engine *gin.Engine
	server *http.Server
	logger *log.Logger
}

// ServerOptions holds the collaborators for creating a Server.
type ServerOptions struct {
	Port          int
	Loader        *panel.Loader
	AccountStore  storage.AccountStore
	RateStore     storage.ExchangeRateStore
	PositionStore storage.PositionStore
	Logger        *log.Logger
}

// NewServer creates the HTTP server and registers all routes.
func NewServer(opts ServerOptions) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	engine.Use(loggerMiddleware(logger))

	s := &Server{
		engine: engine,
		logger: logger,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", opts.Port),
			Handler: engine,
		},
	}

	handler := NewHandler(opts.Loader, opts.AccountStore, opts.RateStore, opts.PositionStore, logger)

	api := s.engine.Group("/api/v1")
	{
		api.POST("/backtest", handler.RunBacktest)
		api.POST("/orders", handler.CreateOrders)
	}

	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.engine.GET("/metrics", gin.WrapH(observability.Handler()))

	return s
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Printf("listening on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func loggerMiddleware(logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.Printf("%s %s %d %v", c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
