package events

import (
	"time"
)

// EventType represents the type of event
type EventType string

// Tenant lifecycle events
const (
	// Provisioning lifecycle
	AgentProvisioned      EventType = "agent.provisioned"
	AgentProvisioningFail EventType = "agent.provisioning_failed"
	AgentConfigSynced     EventType = "agent.config_synced"
	AgentConfigSyncFailed EventType = "agent.config_sync_failed"
	AgentPaused           EventType = "agent.paused"
	AgentResumed          EventType = "agent.resumed"

	// Knowledge base lifecycle
	KnowledgeBaseCreated  EventType = "kb.created"
	KnowledgeBaseComplete EventType = "kb.ingestion_complete"
	KnowledgeBaseError    EventType = "kb.ingestion_error"
	KnowledgeBaseAttached EventType = "kb.attached"

	// Voice selection
	VoiceSelected EventType = "voice.selected"

	// Internal/system events
	HandlerPanic EventType = "handler.panic"
)

// TenantEvent represents a tenant-scoped lifecycle event
type TenantEvent struct {
	Type      EventType   `json:"type"`
	TenantID  string      `json:"tenant_id"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
	Error     error       `json:"error,omitempty"`
}

// NewTenantEvent creates an event stamped with the current time
func NewTenantEvent(eventType EventType, tenantID string) *TenantEvent {
	return &TenantEvent{
		Type:      eventType,
		TenantID:  tenantID,
		Timestamp: time.Now(),
	}
}

// WithData attaches a payload to the event
func (e *TenantEvent) WithData(data interface{}) *TenantEvent {
	e.Data = data
	return e
}

// WithError attaches an error to the event
func (e *TenantEvent) WithError(err error) *TenantEvent {
	e.Error = err
	return e
}

// IsError reports whether the event carries an error
func (e *TenantEvent) IsError() bool {
	return e.Error != nil
}

// ProvisioningEventData carries provisioning outcome details
type ProvisioningEventData struct {
	RemoteAgentID string `json:"remote_agent_id,omitempty"`
	PhoneNumber   string `json:"phone_number,omitempty"`
	FailureReason string `json:"failure_reason,omitempty"`
}

// KnowledgeEventData carries knowledge base event details
type KnowledgeEventData struct {
	KnowledgeBaseID string `json:"knowledge_base_id"`
	RemoteKBID      string `json:"remote_kb_id,omitempty"`
	Status          string `json:"status,omitempty"`
}
