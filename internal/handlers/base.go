package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"amocrm-leads/internal/common/logging"
	"amocrm-leads/internal/leads"
	"amocrm-leads/internal/oauth2"
)

// LeadsService produces the lead report
type LeadsService interface {
	GetLeads(ctx context.Context, query string) []leads.Lead
}

// AuthState reports the CRM authorization state
type AuthState interface {
	State() oauth2.State
}

// HealthChecker is an optional dependency checked by the health endpoint
type HealthChecker interface {
	Health() error
}

type Handlers struct {
	leads   LeadsService
	auth    AuthState
	redis   HealthChecker
	version string
}

// New creates the HTTP handlers. redis may be nil when Redis is not configured.
func New(leadsService LeadsService, auth AuthState, redis HealthChecker, version string) *Handlers {
	return &Handlers{
		leads:   leadsService,
		auth:    auth,
		redis:   redis,
		version: version,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("Failed to encode response", err)
	}
}
