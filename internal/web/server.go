package web

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/denggit/crypto-trading/internal/domain"
	"github.com/denggit/crypto-trading/internal/usecase"
)

// Server exposes the read-only reporting API. It never mutates portfolio
// state; every trading decision stays inside the usecase layer.
type Server struct {
	router    *http.ServeMux
	server    *http.Server
	portfolio *usecase.PortfolioService
	stats     *usecase.StatsService
	archive   domain.TradeArchive
	logger    *zap.Logger
}

func NewServer(
	port int,
	portfolio *usecase.PortfolioService,
	stats *usecase.StatsService,
	archive domain.TradeArchive,
	logger *zap.Logger,
) *Server {
	s := &Server{
		router:    http.NewServeMux(),
		portfolio: portfolio,
		stats:     stats,
		archive:   archive,
		logger:    logger,
	}
	s.routes()
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.router,
	}
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("GET /positions", s.handlePositions)
	s.router.HandleFunc("GET /trades", s.handleTrades)
	s.router.HandleFunc("GET /stats", s.handleStats)
	s.router.HandleFunc("GET /counts/{mint}", s.handleCounts)
	s.router.HandleFunc("GET /summaries", s.handleSummaries)
	s.router.HandleFunc("GET /healthz", s.handleHealth)
}

func (s *Server) Start() error {
	s.logger.Info("Starting web server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
