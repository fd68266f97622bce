package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/quantgrid/marketdata-service/internal/adapters/security"
	"github.com/quantgrid/marketdata-service/internal/application"
	"github.com/quantgrid/marketdata-service/internal/domain"
	"github.com/quantgrid/marketdata-service/internal/health"
)

// Handler is the HTTP adapter entrypoint. The health aggregator is the only
// fully implemented collaborator; the application service is still a scaffold.
type Handler struct {
	aggregator *health.Aggregator
	verifier   *security.TokenVerifier
	service    *application.Service
}

// NewHandler constructs the HTTP handler from its collaborators.
func NewHandler(aggregator *health.Aggregator, verifier *security.TokenVerifier, service *application.Service) *Handler {
	return &Handler{aggregator: aggregator, verifier: verifier, service: service}
}

type memoryResponse struct {
	Used       uint64  `json:"used"`
	Total      uint64  `json:"total"`
	Percentage float64 `json:"percentage"`
}

type checkResponse struct {
	Status       string `json:"status"`
	ResponseTime int64  `json:"responseTime"`
	Details      string `json:"details,omitempty"`
}

type healthResponse struct {
	Status      string                   `json:"status"`
	Timestamp   string                   `json:"timestamp"`
	Uptime      int64                    `json:"uptime"`
	Memory      memoryResponse           `json:"memory"`
	Checks      map[string]checkResponse `json:"checks"`
	Version     string                   `json:"version"`
	Environment string                   `json:"environment"`
}

type livenessResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

type readinessResponse struct {
	Status       string          `json:"status"`
	Timestamp    string          `json:"timestamp"`
	Dependencies map[string]bool `json:"dependencies"`
}

// getHealth is the deep view for humans and dashboards. A degraded dependency
// is reported in the body and via 503, never as a handler error.
func (h *Handler) getHealth(w http.ResponseWriter, r *http.Request) {
	snap := h.aggregator.Check(r.Context())

	checks := make(map[string]checkResponse, len(snap.Checks))
	for name, res := range snap.Checks {
		status := "up"
		if !res.Healthy {
			status = "down"
		}
		checks[name] = checkResponse{
			Status:       status,
			ResponseTime: res.LatencyMillis,
			Details:      res.Detail,
		}
	}

	statusCode := http.StatusOK
	if snap.Status != health.StatusOK {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, statusCode, healthResponse{
		Status:    snap.Status,
		Timestamp: snap.Timestamp.Format(time.RFC3339),
		Uptime:    snap.UptimeSeconds,
		Memory: memoryResponse{
			Used:       snap.Memory.Used,
			Total:      snap.Memory.Total,
			Percentage: snap.Memory.Percentage,
		},
		Checks:      checks,
		Version:     snap.Version,
		Environment: snap.Environment,
	})
}

// getLive never touches dependencies; it only proves the process responds.
func (h *Handler) getLive(w http.ResponseWriter, _ *http.Request) {
	live := h.aggregator.Live()
	writeJSON(w, http.StatusOK, livenessResponse{
		Status:    live.Status,
		Timestamp: live.Timestamp.Format(time.RFC3339),
	})
}

// getReady drives orchestrator traffic admission: 200 when every dependency
// answers, 503 otherwise.
func (h *Handler) getReady(w http.ResponseWriter, r *http.Request) {
	ready := h.aggregator.Ready(r.Context())

	statusCode := http.StatusOK
	if ready.Status != health.StatusReady {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, statusCode, readinessResponse{
		Status:       ready.Status,
		Timestamp:    ready.Timestamp.Format(time.RFC3339),
		Dependencies: ready.Dependencies,
	})
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	h.notImplemented(w, h.service.Register(r.Context()))
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	h.notImplemented(w, h.service.Login(r.Context()))
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	h.notImplemented(w, h.service.PlaceOrder(r.Context()))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	h.notImplemented(w, h.service.ListOrders(r.Context()))
}

func (h *Handler) listCandles(w http.ResponseWriter, r *http.Request) {
	query := domain.CandleQuery{
		Symbol:   r.URL.Query().Get("symbol"),
		Interval: r.URL.Query().Get("interval"),
		Limit:    parseIntDefault(r.URL.Query().Get("limit"), 0),
	}
	if from, err := time.Parse(time.RFC3339, r.URL.Query().Get("from")); err == nil {
		query.From = from
	}
	if to, err := time.Parse(time.RFC3339, r.URL.Query().Get("to")); err == nil {
		query.To = to
	}

	rows, err := h.service.ListCandles(r.Context(), query)
	if err != nil {
		status, code, msg := mapDomainError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"candles": rows})
}

func parseIntDefault(raw string, fallback int) int {
	if strings.TrimSpace(raw) == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func (h *Handler) notImplemented(w http.ResponseWriter, err error) {
	if err == nil {
		err = domain.ErrNotImplemented
	}
	status, code, msg := mapDomainError(err)
	writeError(w, status, code, msg)
}
