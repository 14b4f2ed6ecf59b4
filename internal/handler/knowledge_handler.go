package handler

import (
	"encoding/json"
	"net/http"

	"github.com/FieldDesk/agent-provisioning-service/internal/domain"
	"github.com/FieldDesk/agent-provisioning-service/internal/services/knowledge"
	"github.com/gorilla/mux"
)

// KnowledgeHandler handles HTTP requests for knowledge base management.
type KnowledgeHandler struct {
	manager *knowledge.Manager
}

// NewKnowledgeHandler creates a new knowledge base handler
func NewKnowledgeHandler(manager *knowledge.Manager) *KnowledgeHandler {
	return &KnowledgeHandler{manager: manager}
}

// List returns every knowledge base owned by the tenant.
func (h *KnowledgeHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID := mux.Vars(r)["tenantId"]

	bases, err := h.manager.List(r.Context(), tenantID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bases)
}

// Create provisions a new empty knowledge base.
func (h *KnowledgeHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenantID := mux.Vars(r)["tenantId"]

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		writeError(w, &domain.ValidationError{Field: "name", Message: "name is required"})
		return
	}

	kb, err := h.manager.Create(r.Context(), tenantID, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, kb)
}

// AddSource ingests a text or url source into a knowledge base.
func (h *KnowledgeHandler) AddSource(w http.ResponseWriter, r *http.Request) {
	kbID := mux.Vars(r)["kbId"]

	var req struct {
		Type  domain.SourceType `json:"type"`
		Title string            `json:"title"`
		Body  string            `json:"body"`
		URL   string            `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var (
		kb  *domain.KnowledgeBase
		err error
	)
	switch req.Type {
	case domain.SourceTypeText:
		if req.Title == "" || req.Body == "" {
			writeError(w, &domain.ValidationError{Field: "body", Message: "text sources require a title and body"})
			return
		}
		kb, err = h.manager.AddText(r.Context(), kbID, req.Title, req.Body)
	case domain.SourceTypeURL:
		if req.URL == "" {
			writeError(w, &domain.ValidationError{Field: "url", Message: "url sources require a url"})
			return
		}
		kb, err = h.manager.AddURL(r.Context(), kbID, req.URL)
	default:
		writeError(w, &domain.ValidationError{Field: "type", Message: "type must be text or url"})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, kb)
}

// RefreshStatus polls the provider for the latest ingestion status.
func (h *KnowledgeHandler) RefreshStatus(w http.ResponseWriter, r *http.Request) {
	kbID := mux.Vars(r)["kbId"]

	kb, err := h.manager.RefreshStatus(r.Context(), kbID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, kb)
}

// Attach binds the selected knowledge bases to the tenant's live agent.
func (h *KnowledgeHandler) Attach(w http.ResponseWriter, r *http.Request) {
	tenantID := mux.Vars(r)["tenantId"]

	var req struct {
		KnowledgeBaseIDs []string `json:"knowledge_base_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.manager.Attach(r.Context(), tenantID, req.KnowledgeBaseIDs); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"attached": req.KnowledgeBaseIDs})
}

// Delete removes a knowledge base remotely and locally.
func (h *KnowledgeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	kbID := mux.Vars(r)["kbId"]

	if err := h.manager.Delete(r.Context(), kbID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": kbID})
}
