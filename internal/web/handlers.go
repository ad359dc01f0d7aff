package web

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"
)

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.portfolio.Positions())
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	trades, err := s.archive.ListTrades(r.Context(), limit)
	if err != nil {
		s.logger.Error("Failed to list trades", zap.Error(err))
		http.Error(w, "Failed to list trades", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, trades)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.stats.Snapshot(r.Context())
	if err != nil {
		s.logger.Error("Failed to build stats", zap.Error(err))
		http.Error(w, "Failed to build stats", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, stats)
}

func (s *Server) handleCounts(w http.ResponseWriter, r *http.Request) {
	mint := r.PathValue("mint")
	if mint == "" {
		http.Error(w, "missing mint", http.StatusBadRequest)
		return
	}
	s.writeJSON(w, map[string]int{
		"buys":  s.portfolio.BuyCount(mint),
		"sells": s.portfolio.SellCount(mint),
	})
}

func (s *Server) handleSummaries(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.archive.ListDailySummaries(r.Context(), 30)
	if err != nil {
		s.logger.Error("Failed to list summaries", zap.Error(err))
		http.Error(w, "Failed to list summaries", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, summaries)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	buys, sells := s.portfolio.TradeTotals()
	s.writeJSON(w, map[string]interface{}{
		"status":    "ok",
		"positions": len(s.portfolio.Positions()),
		"buys":      buys,
		"sells":     sells,
	})
}
