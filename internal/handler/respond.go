package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/FieldDesk/agent-provisioning-service/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// errorBody is the uniform error payload. Kind lets the UI shell pick the
// right treatment (warning toast vs blocking dialog) without parsing text.
type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// writeError maps the error taxonomy onto HTTP statuses. The message is
// passed through verbatim: operators need the provider's raw text.
func writeError(w http.ResponseWriter, err error) {
	var (
		validationErr  *domain.ValidationError
		capabilityErr  *domain.CapabilityError
		syncErr        *domain.RemoteSyncError
		provisionErr   *domain.RemoteProvisioningError
		persistenceErr *domain.LocalPersistenceError
	)

	switch {
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Kind: "validation"})
	case errors.As(err, &capabilityErr):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error(), Kind: "capability"})
	case errors.As(err, &syncErr):
		writeJSON(w, http.StatusBadGateway, errorBody{Error: err.Error(), Kind: "remote_sync"})
	case errors.As(err, &provisionErr):
		writeJSON(w, http.StatusBadGateway, errorBody{Error: err.Error(), Kind: "remote_provisioning"})
	case errors.As(err, &persistenceErr):
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error(), Kind: "local_persistence"})
	default:
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error(), Kind: "internal"})
	}
}
