package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ToneStyle describes the persona tone of the agent.
type ToneStyle string

const (
	ToneProfessional ToneStyle = "professional"
	ToneFriendly     ToneStyle = "friendly"
	ToneCasual       ToneStyle = "casual"
	ToneFormal       ToneStyle = "formal"
)

// Valid reports whether the tone is one of the supported values.
func (t ToneStyle) Valid() bool {
	switch t {
	case ToneProfessional, ToneFriendly, ToneCasual, ToneFormal:
		return true
	}
	return false
}

// HandlingPreference describes how incoming calls are routed.
type HandlingPreference string

const (
	HandleAutomatically HandlingPreference = "handle_automatically"
	HandleNotifyTeam    HandlingPreference = "notify_team"
	HandleTransferNow   HandlingPreference = "transfer_immediately"
)

// FallbackBehavior describes what the agent does when it cannot help.
type FallbackBehavior string

const (
	FallbackTakeMessage   FallbackBehavior = "take_message"
	FallbackVoicemail     FallbackBehavior = "transfer_to_voicemail"
	FallbackCallback      FallbackBehavior = "schedule_callback"
	FallbackHumanTransfer FallbackBehavior = "transfer_to_human"
)

// ProvisioningStatus tracks the lifecycle of the hosted agent.
type ProvisioningStatus string

const (
	StatusUnconfigured ProvisioningStatus = "unconfigured"
	StatusDraft        ProvisioningStatus = "draft"
	StatusProvisioning ProvisioningStatus = "provisioning"
	StatusActive       ProvisioningStatus = "active"
	StatusPaused       ProvisioningStatus = "paused"
	StatusFailed       ProvisioningStatus = "failed"
)

// AgentProfile is the per-tenant agent configuration record. It is the single
// source of truth for intended state; the hosted agent is a best-effort mirror
// reconciled against it, never the reverse.
//
// RemoteAgentID and PhoneNumber are set only after a successful provisioning
// call. Their presence is the sole authority for "is this tenant provisioned" -
// SetupCompleted can be true before the remote call ever succeeds.
type AgentProfile struct {
	ID       string `json:"id" gorm:"type:uuid;primary_key"`
	TenantID string `json:"tenant_id" gorm:"type:varchar(255);not null;uniqueIndex"`

	// Identity
	AgentName           string `json:"agent_name" gorm:"type:varchar(255)"`
	BusinessName        string `json:"business_name" gorm:"type:varchar(255)"`
	Industry            string `json:"industry" gorm:"type:varchar(255)"`
	BusinessDescription string `json:"business_description" gorm:"type:text"`
	OwnerContact        string `json:"owner_contact" gorm:"type:varchar(255)"`

	// Persona
	Tone ToneStyle `json:"tone" gorm:"type:varchar(50);default:'professional'"`

	// Structured configuration blocks stored as JSONB
	CallHandling *CallHandlingData `json:"call_handling" gorm:"type:jsonb"`
	Memory       *MemoryFlagsData  `json:"memory" gorm:"type:jsonb"`
	Booking      *BookingRulesData `json:"booking" gorm:"type:jsonb"`
	Prompt       *HostedPromptData `json:"prompt" gorm:"type:jsonb"`

	// Setup wizard progress
	SetupStep      int  `json:"setup_step" gorm:"default:0"`
	SetupCompleted bool `json:"setup_completed" gorm:"default:false"`

	// Provisioning state
	ProvisioningStatus ProvisioningStatus `json:"provisioning_status" gorm:"type:varchar(50);default:'unconfigured'"`
	ProvisioningError  string             `json:"provisioning_error" gorm:"type:text"`

	// Remote resource identifiers, populated only on provisioning success
	RemoteAgentID  *string `json:"remote_agent_id" gorm:"type:varchar(255)"`
	PhoneNumber    *string `json:"phone_number" gorm:"type:varchar(50)"`
	CurrentVoiceID *string `json:"current_voice_id" gorm:"type:varchar(255)"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName sets the table name for AgentProfile
func (AgentProfile) TableName() string {
	return "agent_profiles"
}

// Provisioned reports whether the tenant owns a hosted agent. This is the
// only correct check: never infer provisioning from SetupCompleted.
func (p *AgentProfile) Provisioned() bool {
	return p.RemoteAgentID != nil && *p.RemoteAgentID != ""
}

// CallHandlingData describes the call-handling policy for the agent.
type CallHandlingData struct {
	Preference  HandlingPreference `json:"preference,omitempty"`
	Fallback    FallbackBehavior   `json:"fallback,omitempty"`
	CallReasons []string           `json:"call_reasons,omitempty"`
}

// MemoryFlagsData holds the four independent memory toggles.
type MemoryFlagsData struct {
	Enabled       bool `json:"enabled"`
	CallHistory   bool `json:"call_history"`
	CustomerNotes bool `json:"customer_notes"`
	CalendarTasks bool `json:"calendar_tasks"`
}

// BookingRulesData defines when bookings may be scheduled.
type BookingRulesData struct {
	Timezone string            `json:"timezone,omitempty"`
	Schedule map[string]string `json:"schedule,omitempty"` // day -> "09:00-17:00"
}

// HostedPromptData mirrors the provider-hosted LLM prompt.
type HostedPromptData struct {
	GeneralPrompt string `json:"general_prompt,omitempty"`
	BeginMessage  string `json:"begin_message,omitempty"`
}

// UpdateAgentProfileRequest carries a partial configuration write. Nil fields
// are left untouched.
type UpdateAgentProfileRequest struct {
	AgentName           *string           `json:"agent_name,omitempty"`
	BusinessName        *string           `json:"business_name,omitempty"`
	Industry            *string           `json:"industry,omitempty"`
	BusinessDescription *string           `json:"business_description,omitempty"`
	OwnerContact        *string           `json:"owner_contact,omitempty"`
	Tone                *ToneStyle        `json:"tone,omitempty"`
	CallHandling        *CallHandlingData `json:"call_handling,omitempty"`
	Memory              *MemoryFlagsData  `json:"memory,omitempty"`
	Booking             *BookingRulesData `json:"booking,omitempty"`
	Prompt              *HostedPromptData `json:"prompt,omitempty"`
}

// ProvisioningAttempt records the outcome of the last provisioning call for a
// tenant. It is ephemeral and kept in memory only.
type ProvisioningAttempt struct {
	TenantID    string        `json:"tenant_id"`
	Input       *AgentProfile `json:"input"`
	Succeeded   bool          `json:"succeeded"`
	Error       string        `json:"error,omitempty"`
	PhoneNumber string        `json:"phone_number,omitempty"`
	At          time.Time     `json:"at"`
}

func jsonbValue(v interface{}) (driver.Value, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(data) == "{}" {
		return nil, nil
	}
	return data, nil
}

func jsonbScan(value interface{}, dest interface{}) error {
	if value == nil {
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into %T", value, dest)
	}
	return json.Unmarshal(bytes, dest)
}

// Valuer/Scanner implementations so the nested config blocks round-trip
// through a jsonb column.

func (d CallHandlingData) Value() (driver.Value, error) { return jsonbValue(d) }

func (d *CallHandlingData) Scan(value interface{}) error {
	if value == nil {
		*d = CallHandlingData{}
		return nil
	}
	return jsonbScan(value, d)
}

func (d MemoryFlagsData) Value() (driver.Value, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (d *MemoryFlagsData) Scan(value interface{}) error {
	if value == nil {
		*d = MemoryFlagsData{}
		return nil
	}
	return jsonbScan(value, d)
}

func (d BookingRulesData) Value() (driver.Value, error) { return jsonbValue(d) }

func (d *BookingRulesData) Scan(value interface{}) error {
	if value == nil {
		*d = BookingRulesData{}
		return nil
	}
	return jsonbScan(value, d)
}

func (d HostedPromptData) Value() (driver.Value, error) { return jsonbValue(d) }

func (d *HostedPromptData) Scan(value interface{}) error {
	if value == nil {
		*d = HostedPromptData{}
		return nil
	}
	return jsonbScan(value, d)
}
