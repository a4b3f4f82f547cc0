// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package api serves the observer's HTTP surface: recent history, stored
// observation queries, aggregate stats, the websocket live feed, health,
// and Prometheus metrics.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"grimm.is/dhcpscry/internal/clock"
	"grimm.is/dhcpscry/internal/logging"
	"grimm.is/dhcpscry/internal/store"
)

// Server handles API requests.
type Server struct {
	router    *mux.Router
	store     *store.Store
	history   *History
	hub       *Hub
	logger    *logging.Logger
	clock     clock.Clock
	startTime time.Time

	httpServer *http.Server
}

// NewServer wires the routes. history and hub are shared with the pipeline
// as sinks; store may be nil when persistence is disabled, which turns the
// database-backed endpoints into 503s.
func NewServer(st *store.Store, history *History, hub *Hub, clk clock.Clock) *Server {
	if clk == nil {
		clk = clock.Real()
	}
	s := &Server{
		router:    mux.NewRouter(),
		store:     st,
		history:   history,
		hub:       hub,
		logger:    logging.WithComponent("api"),
		clock:     clk,
		startTime: clk.Now(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/api/history", s.handleHistory).Methods("GET")
	s.router.HandleFunc("/api/stats", s.handleStats).Methods("GET")
	s.router.HandleFunc("/api/search", s.handleSearch).Methods("GET")
	s.router.HandleFunc("/api/logs", s.handleLogs).Methods("GET")
	s.router.HandleFunc("/api/logs/count", s.handleLogsCount).Methods("GET")
	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	s.router.Handle("/ws", s.hub).Methods("GET")

	// Embedded dashboard; registered last so the API routes win.
	s.router.PathPrefix("/").Handler(s.dashboardHandler()).Methods("GET")
}

// Router exposes the handler for tests and embedding.
func (s *Server) Router() http.Handler {
	return s.router
}

// ListenAndServe blocks serving HTTP on addr until Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.logger.Info("web interface listening", "addr", addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 0)
	recent := s.history.Recent(limit)
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"observations": recent,
		"count":        len(recent),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	now := s.clock.Now()
	snap := s.history.Snapshot(now)
	stats := map[string]interface{}{
		"uptime_seconds":      int64(now.Sub(s.startTime).Seconds()),
		"observations_total":  snap.Total,
		"unique_macs":         snap.UniqueMACs,
		"by_message_type":     snap.ByMessageType,
		"by_vendor_class":     snap.ByVendorClass,
		"requests_per_minute": snap.PerMinute,
		"websocket_clients":   s.hub.ClientCount(),
	}

	if s.store != nil {
		if byOS, err := s.store.CountByOS(); err == nil {
			stats["by_os"] = byOS
		}
		if byMethod, err := s.store.CountByMethod(); err == nil {
			stats["by_method"] = byMethod
		}
		if stored, err := s.store.Count(store.Filter{}); err == nil {
			stats["stored_total"] = stored
		}
	}

	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, http.StatusServiceUnavailable, "persistence disabled", nil)
		return
	}
	term := r.URL.Query().Get("q")
	if term == "" {
		s.writeError(w, http.StatusBadRequest, "query parameter q required", nil)
		return
	}

	results, err := s.store.Search(term, queryInt(r, "limit", 100))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "search failed", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"observations": results,
		"count":        len(results),
	})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, http.StatusServiceUnavailable, "persistence disabled", nil)
		return
	}
	f, err := filterFromQuery(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid filter", err)
		return
	}

	results, err := s.store.Query(f)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "query failed", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"observations": results,
		"count":        len(results),
	})
}

func (s *Server) handleLogsCount(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, http.StatusServiceUnavailable, "persistence disabled", nil)
		return
	}
	f, err := filterFromQuery(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid filter", err)
		return
	}

	n, err := s.store.Count(f)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "count failed", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int64{"count": n})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func filterFromQuery(r *http.Request) (store.Filter, error) {
	q := r.URL.Query()
	f := store.Filter{
		MAC:    q.Get("mac"),
		OSName: q.Get("os"),
		Method: q.Get("method"),
		Limit:  queryInt(r, "limit", 100),
		Offset: queryInt(r, "offset", 0),
	}
	if v := q.Get("from"); v != "" {
		ts, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return f, err
		}
		f.From = time.Unix(ts, 0)
	}
	if v := q.Get("to"); v != "" {
		ts, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return f, err
		}
		f.To = time.Unix(ts, 0)
	}
	return f, nil
}

func queryInt(r *http.Request, name string, fallback int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response
func (s *Server) writeError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]interface{}{
		"error":  message,
		"status": status,
	}
	if err != nil {
		response["details"] = err.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}
