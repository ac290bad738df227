package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"visaintake/pkg/platform/httputil"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthResponse is the JSON response for /health and /ready.
type HealthResponse struct {
	Status     string                `json:"status"`
	Version    string                `json:"version,omitempty"`
	Components map[string]CompStatus `json:"components,omitempty"`
	Timestamp  time.Time             `json:"timestamp"`
}

// CompStatus is the status of one dependency.
type CompStatus struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
}

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	components map[string]Pinger
	version    string
}

// NewHealthHandler creates a HealthHandler over the named dependencies.
func NewHealthHandler(version string, components map[string]Pinger) *HealthHandler {
	return &HealthHandler{components: components, version: version}
}

// Live always returns 200.
func (h *HealthHandler) Live(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, HealthResponse{Status: "ok", Timestamp: time.Now()})
}

// Ready pings every dependency: 200 when all answer, 503 otherwise.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.components))
	for name := range h.components {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := HealthResponse{
		Status:     "ok",
		Version:    h.version,
		Components: make(map[string]CompStatus, len(names)),
	}
	for _, name := range names {
		start := time.Now()
		err := h.components[name].Ping(ctx)
		latency := time.Since(start)
		if err != nil {
			resp.Components[name] = CompStatus{Status: "down"}
			resp.Status = "down"
			continue
		}
		resp.Components[name] = CompStatus{Status: "ok", Latency: latency.String()}
	}
	resp.Timestamp = time.Now()

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, status, resp)
}
