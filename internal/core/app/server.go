package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthStatus is the /health payload.
type HealthStatus struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components"`
}

// Health reports component liveness. "up" means every component responded.
func (a *App) Health(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:     "up",
		Timestamp:  time.Now().UTC(),
		Components: make(map[string]string),
	}

	if a.Store == nil {
		status.Status = "degraded"
		status.Components["store"] = "missing"
	} else if c, ok := a.Store.(graphCounter); ok {
		stats := Stats{Nodes: c.NodeCount(), Edges: c.EdgeCount()}
		status.Components["store"] = statusLine(stats)
	} else {
		status.Components["store"] = "ok"
	}

	if a.Extractor == nil {
		status.Status = "degraded"
		status.Components["extractor"] = "missing"
	} else {
		status.Components["extractor"] = "ok"
	}

	if a.Realtime == nil {
		status.Components["realtime"] = "disabled"
	} else {
		rt := a.Realtime.Stats()
		status.Components["realtime"] = statusCounts(rt.ActiveConnections, rt.ActiveQueries, rt.ActiveSubscriptions)
	}

	return status
}

func statusLine(s Stats) string {
	b, _ := json.Marshal(map[string]int{"nodes": s.Nodes, "edges": s.Edges})
	return "ok " + string(b)
}

func statusCounts(conns, queries, subs int) string {
	b, _ := json.Marshal(map[string]int{
		"connections":   conns,
		"queries":       queries,
		"subscriptions": subs,
	})
	return "ok " + string(b)
}

// Server is one of the app's HTTP listeners.
type Server struct {
	addr   string
	server *http.Server
}

// NewObservabilityServer serves Prometheus metrics and the health check.
func (a *App) NewObservabilityServer() *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		status := a.Health(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if status.Status != "up" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(status)
	})

	return &Server{
		addr:   a.Config.Observability.Address,
		server: &http.Server{Addr: a.Config.Observability.Address, Handler: mux},
	}
}

// NewRealtimeServer serves the live-query websocket endpoint and a stats
// snapshot.
func (a *App) NewRealtimeServer() *Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", a.Realtime.Handler())
	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(a.Realtime.Stats())
	})

	return &Server{
		addr:   a.Config.Realtime.Address,
		server: &http.Server{Addr: a.Config.Realtime.Address, Handler: mux},
	}
}

// Start begins serving in the background. Listen failures are logged, not
// returned; the rest of the app keeps running without the endpoint.
func (s *Server) Start() {
	slog.Info("http server starting", "addr", s.addr)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server failed", "addr", s.addr, "error", err)
		}
	}()
}

func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
