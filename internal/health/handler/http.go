package handler

import (
	"context"
	"net/http"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"virtual-wallet/backend/internal/server/respond"
)

// Database states reported by /health.
const (
	DBConnected     = "connected"
	DBDisconnected  = "disconnected"
	DBNotConfigured = "not_configured"
)

const checkTimeout = 2 * time.Second

// Pinger checks database connectivity. *sqlx.DB and *sql.DB implement it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker checks that the login policy engine is ready.
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Handler reports liveness and dependency state over HTTP and mirrors it into the gRPC health service.
type Handler struct {
	pinger     Pinger
	policy     PolicyChecker
	appName    string
	appVersion string
}

// NewHandler returns a Handler. pinger and policy may be nil.
func NewHandler(pinger Pinger, policy PolicyChecker, appName, appVersion string) *Handler {
	return &Handler{pinger: pinger, policy: policy, appName: appName, appVersion: appVersion}
}

type healthResponse struct {
	Status     string `json:"status"`
	AppName    string `json:"app_name"`
	AppVersion string `json:"app_version"`
	Database   string `json:"database"`
	Policy     string `json:"policy,omitempty"`
}

// DatabaseStatus pings the database.
func (h *Handler) DatabaseStatus(ctx context.Context) string {
	if h.pinger == nil {
		return DBNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	if err := h.pinger.PingContext(ctx); err != nil {
		return DBDisconnected
	}
	return DBConnected
}

func (h *Handler) policyStatus(ctx context.Context) string {
	if h.policy == nil {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	if err := h.policy.HealthCheck(ctx); err != nil {
		return "unavailable"
	}
	return "ok"
}

// ServeHTTP answers GET /health. The process is up, so status is always "ok"; dependencies are reported alongside.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, healthResponse{
		Status:     "ok",
		AppName:    h.appName,
		AppVersion: h.appVersion,
		Database:   h.DatabaseStatus(r.Context()),
		Policy:     h.policyStatus(r.Context()),
	})
}

// Serving reports whether every configured dependency is reachable.
func (h *Handler) Serving(ctx context.Context) bool {
	return h.DatabaseStatus(ctx) != DBDisconnected && h.policyStatus(ctx) != "unavailable"
}

// SyncGRPC sets the overall serving status on hs now and then every interval until ctx is done.
func (h *Handler) SyncGRPC(ctx context.Context, hs *health.Server, interval time.Duration) {
	h.updateGRPC(ctx, hs)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			h.updateGRPC(ctx, hs)
		}
	}
}

func (h *Handler) updateGRPC(ctx context.Context, hs *health.Server) {
	status := healthpb.HealthCheckResponse_SERVING
	if !h.Serving(ctx) {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	hs.SetServingStatus("", status)
}
