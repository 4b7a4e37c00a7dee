package handlers

import "net/http"

// providerState describes one configured provider.
type providerState struct {
	Kind      string `json:"kind"`
	Model     string `json:"model"`
	Connected bool   `json:"connected"`
}

// Providers lists the LLM providers held by the generator and their liveness
// state. Providers whose liveness check failed at startup were dropped by the
// generator and are not listed.
func (s *Service) Providers(w http.ResponseWriter, r *http.Request) {
	states := []providerState{}
	if s.Generator != nil {
		for _, p := range s.Generator.Providers() {
			states = append(states, providerState{
				Kind:      string(p.Kind()),
				Model:     p.Model(),
				Connected: p.Connected(),
			})
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"providers": states})
}

// Schema exposes the registry view the pipeline works from.
func (s *Service) Schema(w http.ResponseWriter, r *http.Request) {
	qc, substituted := s.Orchestrator.BuildContext("")
	writeJSON(w, http.StatusOK, map[string]any{
		"dialect":         s.Orchestrator.Dialect(),
		"tables":          qc.TablesAvailable,
		"columns":         qc.ColumnsAvailable,
		"schema_text":     qc.SchemaInfo,
		"default_catalog": substituted,
	})
}
