package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/FieldDesk/agent-provisioning-service/internal/domain"
	"github.com/FieldDesk/agent-provisioning-service/internal/repository"
	"github.com/FieldDesk/agent-provisioning-service/internal/services/provisioning"
	"github.com/gorilla/mux"
)

// AgentHandler handles HTTP requests for agent configuration and
// provisioning.
type AgentHandler struct {
	repoMgr repository.RepositoryManager
	svc     *provisioning.Service
}

// NewAgentHandler creates a new agent handler
func NewAgentHandler(repoMgr repository.RepositoryManager, svc *provisioning.Service) *AgentHandler {
	return &AgentHandler{repoMgr: repoMgr, svc: svc}
}

// GetProfile returns the tenant's agent configuration record.
func (h *AgentHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	tenantID := mux.Vars(r)["tenantId"]

	profile, err := h.repoMgr.AgentProfile().GetByTenantID(r.Context(), tenantID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error(), Kind: "not_found"})
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// SaveDraft persists a partial configuration for one wizard step.
func (h *AgentHandler) SaveDraft(w http.ResponseWriter, r *http.Request) {
	tenantID := mux.Vars(r)["tenantId"]

	step, err := strconv.Atoi(r.URL.Query().Get("step"))
	if err != nil {
		writeError(w, &domain.ValidationError{Field: "step", Message: "step query parameter must be an integer"})
		return
	}

	var req domain.UpdateAgentProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	profile, err := h.svc.SaveDraft(r.Context(), tenantID, step, &req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// Activate runs the terminal wizard action.
func (h *AgentHandler) Activate(w http.ResponseWriter, r *http.Request) {
	tenantID := mux.Vars(r)["tenantId"]

	var req domain.UpdateAgentProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	profile, err := h.svc.Activate(r.Context(), tenantID, &req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// Retry re-runs provisioning after a failure.
func (h *AgentHandler) Retry(w http.ResponseWriter, r *http.Request) {
	tenantID := mux.Vars(r)["tenantId"]

	profile, err := h.svc.RetryProvisioning(r.Context(), tenantID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// Update reconciles configuration changes onto the live agent.
func (h *AgentHandler) Update(w http.ResponseWriter, r *http.Request) {
	tenantID := mux.Vars(r)["tenantId"]

	var req domain.UpdateAgentProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	profile, err := h.svc.UpdateProvisioned(r.Context(), tenantID, &req)
	if err != nil {
		// A sync failure still carries the locally-saved profile so the UI
		// can show the edits alongside the warning.
		if domain.IsRemoteSyncError(err) && profile != nil {
			writeJSON(w, http.StatusBadGateway, map[string]interface{}{
				"profile": profile,
				"error":   err.Error(),
				"kind":    "remote_sync",
			})
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// Pause suspends the hosted agent.
func (h *AgentHandler) Pause(w http.ResponseWriter, r *http.Request) {
	tenantID := mux.Vars(r)["tenantId"]

	if err := h.svc.Pause(r.Context(), tenantID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(domain.StatusPaused)})
}

// Resume re-enables a paused agent.
func (h *AgentHandler) Resume(w http.ResponseWriter, r *http.Request) {
	tenantID := mux.Vars(r)["tenantId"]

	if err := h.svc.Resume(r.Context(), tenantID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(domain.StatusActive)})
}

// LastAttempt returns the most recent provisioning attempt for display.
func (h *AgentHandler) LastAttempt(w http.ResponseWriter, r *http.Request) {
	tenantID := mux.Vars(r)["tenantId"]

	attempt := h.svc.LastAttempt(tenantID)
	if attempt == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "no provisioning attempt recorded", Kind: "not_found"})
		return
	}
	writeJSON(w, http.StatusOK, attempt)
}
