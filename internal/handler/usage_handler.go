package handler

import (
	"net/http"

	"github.com/FieldDesk/agent-provisioning-service/pkg/usage"
	"github.com/gorilla/mux"
)

// UsageHandler handles HTTP requests for plan usage lookups.
type UsageHandler struct {
	monitor *usage.Monitor
}

// NewUsageHandler creates a new usage handler
func NewUsageHandler(monitor *usage.Monitor) *UsageHandler {
	return &UsageHandler{monitor: monitor}
}

// Get returns the tenant's minute usage with the derived banner level.
func (h *UsageHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID := mux.Vars(r)["tenantId"]

	counter, err := h.monitor.Fetch(r.Context(), tenantID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"minutes_used":     counter.MinutesUsed,
		"minutes_included": counter.MinutesIncluded,
		"percent":          usage.Percent(counter),
		"banner":           usage.BannerFor(counter),
	})
}
