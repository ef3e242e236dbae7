package handlers

import (
	"net/http"
)

// GetLeads returns the lead report for the "query" parameter.
// The response is always 200 with a JSON array; failures yield [].
func (h *Handlers) GetLeads(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	writeJSON(w, http.StatusOK, h.leads.GetLeads(r.Context(), query))
}
