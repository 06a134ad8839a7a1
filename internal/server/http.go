package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"BetLedger/internal/observability"
	"BetLedger/internal/projection"
	"BetLedger/internal/query"
)

// HTTPServer serves the read API and admin endpoints as plain JSON over
// net/http. Writes never go through here; bets, resolutions, and
// redemptions only enter via NATS.
type HTTPServer struct {
	addr       string
	deps       *ServerDeps
	httpServer *http.Server
}

// ServerDeps carries the dependencies the handlers need.
type ServerDeps struct {
	DB            *sql.DB
	QueryService  *query.QueryService
	HealthChecker *observability.HealthChecker
	StartTime     time.Time
}

func NewHTTPServer(addr string, deps *ServerDeps) *HTTPServer {
	return &HTTPServer{addr: addr, deps: deps}
}

// Start blocks until the listener fails or ctx is canceled.
func (s *HTTPServer) Start(ctx context.Context) error {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/traders/{trader_id}", s.handleGetAccount)
	mux.HandleFunc("GET /v1/traders/{trader_id}/markets/{market_id}", s.handleGetParticipation)
	mux.HandleFunc("GET /v1/traders/{trader_id}/daily", s.handleGetDailyProfits)
	mux.HandleFunc("GET /v1/bets/{bet_id}", s.handleGetBet)
	mux.HandleFunc("GET /v1/markets/{market_id}/bets", s.handleGetMarketBets)
	mux.HandleFunc("GET /v1/stats", s.handleGetGlobalStats)
	mux.HandleFunc("GET /v1/leaderboard", s.handleGetLeaderboard)
	mux.HandleFunc("GET /v1/status", s.handleGetStatus)

	mux.HandleFunc("GET /v1/admin/integrity", s.handleVerifyIntegrity)
	mux.HandleFunc("POST /v1/admin/leaderboard/rebuild", s.handleRebuildLeaderboard)

	mux.HandleFunc("/healthz", s.deps.HealthChecker.LivenessHandler)
	mux.HandleFunc("/readyz", s.deps.HealthChecker.ReadinessHandler)

	s.httpServer = &http.Server{
		Addr:         s.addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutCtx)
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	traderID, err := uuid.Parse(r.PathValue("trader_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid trader_id")
		return
	}

	resp, err := s.deps.QueryService.GetAccount(r.Context(), traderID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if resp == nil {
		writeError(w, http.StatusNotFound, "trader not found")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) handleGetParticipation(w http.ResponseWriter, r *http.Request) {
	traderID, err := uuid.Parse(r.PathValue("trader_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid trader_id")
		return
	}
	marketID := r.PathValue("market_id")

	resp, err := s.deps.QueryService.GetParticipation(r.Context(), traderID, marketID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if resp == nil {
		writeError(w, http.StatusNotFound, "participation not found")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) handleGetDailyProfits(w http.ResponseWriter, r *http.Request) {
	traderID, err := uuid.Parse(r.PathValue("trader_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid trader_id")
		return
	}

	fromDay := queryInt64(r, "from", 0)
	toDay := queryInt64(r, "to", time.Now().UTC().Unix())
	limit := int(queryInt64(r, "limit", 90))
	if limit <= 0 || limit > 1000 {
		limit = 90
	}

	records, err := s.deps.QueryService.GetDailyProfits(r.Context(), traderID, fromDay, toDay, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"records": records})
}

func (s *HTTPServer) handleGetBet(w http.ResponseWriter, r *http.Request) {
	betID, err := uuid.Parse(r.PathValue("bet_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid bet_id")
		return
	}

	resp, err := s.deps.QueryService.GetBet(r.Context(), betID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if resp == nil {
		writeError(w, http.StatusNotFound, "bet not found")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) handleGetMarketBets(w http.ResponseWriter, r *http.Request) {
	marketID := r.PathValue("market_id")

	limit := int(queryInt64(r, "limit", 100))
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	var afterBet *uuid.UUID
	if after := r.URL.Query().Get("after"); after != "" {
		id, err := uuid.Parse(after)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid after cursor")
			return
		}
		afterBet = &id
	}

	bets, err := s.deps.QueryService.GetMarketBets(r.Context(), marketID, limit, afterBet)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"bets": bets})
}

func (s *HTTPServer) handleGetGlobalStats(w http.ResponseWriter, r *http.Request) {
	resp, err := s.deps.QueryService.GetGlobalStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := int(queryInt64(r, "limit", 50))
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	entries, err := s.deps.QueryService.GetLeaderboard(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}

func (s *HTTPServer) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	var lastSeq int64
	err := s.deps.DB.QueryRowContext(r.Context(), `
		SELECT COALESCE(MAX(sequence), 0) FROM betledger.events
	`).Scan(&lastSeq)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"last_sequence": lastSeq,
		"uptime":        time.Since(s.deps.StartTime).String(),
		"ready":         s.deps.HealthChecker.IsReady(),
	})
}

func (s *HTTPServer) handleVerifyIntegrity(w http.ResponseWriter, r *http.Request) {
	report, err := s.deps.QueryService.VerifyIntegrity(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *HTTPServer) handleRebuildLeaderboard(w http.ResponseWriter, r *http.Request) {
	if err := projection.RebuildLeaderboard(r.Context(), s.deps.DB); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "rebuilt"})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func queryInt64(r *http.Request, key string, defaultVal int64) int64 {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}
