package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"flowlens/internal/shared/util"
)

type HealthStatus struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components"`
}

// HealthFunc reports component health; the server marks any answer whose
// Status is not "up" as 503.
type HealthFunc func(ctx context.Context) HealthStatus

type Server struct {
	addr   string
	health HealthFunc
	server *http.Server
}

func NewServer(addr string, health HealthFunc) *Server {
	if health == nil {
		health = func(context.Context) HealthStatus {
			return HealthStatus{Status: "up", Timestamp: time.Now().UTC()}
		}
	}
	return &Server{addr: addr, health: health}
}

func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()

	// Prometheus metrics
	mux.Handle("/metrics", promhttp.Handler())

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		status := s.health(r.Context())
		if status.Components == nil {
			status.Components = make(map[string]string)
		}
		status.Components["heap"] = fmt.Sprintf("%d MB", util.GetHeapAllocMB())
		w.Header().Set("Content-Type", "application/json")
		if status.Status != "up" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(status)
	})

	s.server = &http.Server{
		Addr:    s.addr,
		Handler: mux,
	}

	slog.Info("observability server starting", "addr", s.addr)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("observability server failed", "error", err)
		}
	}()

	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
