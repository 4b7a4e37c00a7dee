package handlers

import (
	"net/http"
	"time"
)

// healthStatus values.
const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"
)

// healthResponse reports the service and collaborator health.
type healthResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Health reports liveness of the service and its optional collaborators.
// Missing collaborators are reported as disabled, not unhealthy.
func (s *Service) Health(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"pipeline": statusHealthy}
	status := statusHealthy

	if s.Warehouse != nil {
		if err := s.Warehouse.Ping(r.Context()); err != nil {
			checks["warehouse"] = "unreachable: " + err.Error()
			status = statusDegraded
		} else {
			checks["warehouse"] = statusHealthy
		}
	} else {
		checks["warehouse"] = "disabled"
	}

	if s.Generator != nil {
		if len(s.Generator.Providers()) == 0 {
			checks["providers"] = "none connected"
			status = statusDegraded
		} else {
			checks["providers"] = statusHealthy
		}
	} else {
		checks["providers"] = "disabled"
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status:    status,
		Checks:    checks,
		UpdatedAt: time.Now().UTC(),
	})
}
