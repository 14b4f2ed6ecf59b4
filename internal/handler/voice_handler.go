package handler

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/FieldDesk/agent-provisioning-service/internal/cache"
	"github.com/FieldDesk/agent-provisioning-service/internal/domain"
	"github.com/FieldDesk/agent-provisioning-service/internal/events"
	"github.com/FieldDesk/agent-provisioning-service/internal/provider"
	"github.com/FieldDesk/agent-provisioning-service/internal/repository"
	"github.com/FieldDesk/agent-provisioning-service/internal/services/voice"
	"github.com/gorilla/mux"
)

// VoiceHandler handles HTTP requests for voice browsing, preview and
// selection. Selectors are per tenant so preview playback state never
// bleeds between operator sessions.
type VoiceHandler struct {
	repoMgr  repository.RepositoryManager
	provider provider.API
	catalog  *cache.VoiceCatalog
	bus      events.Bus

	mu        sync.Mutex
	selectors map[string]*voice.Selector
}

// NewVoiceHandler creates a new voice handler. catalog and bus may be nil.
func NewVoiceHandler(repoMgr repository.RepositoryManager, providerAPI provider.API, catalog *cache.VoiceCatalog, bus events.Bus) *VoiceHandler {
	return &VoiceHandler{
		repoMgr:   repoMgr,
		provider:  providerAPI,
		catalog:   catalog,
		bus:       bus,
		selectors: make(map[string]*voice.Selector),
	}
}

func (h *VoiceHandler) selectorFor(tenantID string) *voice.Selector {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.selectors[tenantID]
	if !ok {
		s = voice.NewSelector(h.repoMgr, h.provider, voice.NewStreamPlayer())
		if h.catalog != nil {
			s.SetCatalogCache(h.catalog)
		}
		h.selectors[tenantID] = s
	}
	return s
}

// List returns the voice catalog filtered by optional query parameters.
func (h *VoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID := mux.Vars(r)["tenantId"]

	voices, err := h.selectorFor(tenantID).List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	q := r.URL.Query()
	filtered := voice.Filter(voices, domain.VoiceFilter{
		Gender:   q.Get("gender"),
		Provider: q.Get("provider"),
		Search:   q.Get("search"),
	})
	writeJSON(w, http.StatusOK, filtered)
}

// Preview toggles sample playback for one voice.
func (h *VoiceHandler) Preview(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	tenantID := vars["tenantId"]
	voiceID := vars["voiceId"]

	sel := h.selectorFor(tenantID)
	if err := sel.Preview(r.Context(), voiceID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"playing": sel.Playing()})
}

// Select commits a voice choice to the live agent.
func (h *VoiceHandler) Select(w http.ResponseWriter, r *http.Request) {
	tenantID := mux.Vars(r)["tenantId"]

	var req struct {
		VoiceID string `json:"voice_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.VoiceID == "" {
		writeError(w, &domain.ValidationError{Field: "voice_id", Message: "voice_id is required"})
		return
	}

	if err := h.selectorFor(tenantID).Select(r.Context(), tenantID, req.VoiceID); err != nil {
		writeError(w, err)
		return
	}
	if h.bus != nil {
		_ = h.bus.Publish(events.VoiceSelected, tenantID, map[string]string{"voice_id": req.VoiceID})
	}
	writeJSON(w, http.StatusOK, map[string]string{"voice_id": req.VoiceID})
}
