package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/FieldDesk/agent-provisioning-service/internal/domain"
)

// API is the surface of the hosted conversational-AI provider consumed by
// the service layer. Implemented by Client; faked in tests.
type API interface {
	CreateAgent(ctx context.Context, req *CreateAgentRequest) (*CreateAgentResponse, error)
	UpdateAgent(ctx context.Context, agentID string, req *UpdateAgentRequest) error
	UpdateHostedPrompt(ctx context.Context, agentID string, req *UpdateHostedPromptRequest) error
	SetAgentActive(ctx context.Context, agentID string, active bool) error

	ListVoices(ctx context.Context) ([]domain.VoiceProfile, error)
	SetVoice(ctx context.Context, agentID, voiceID string) error

	CreateKnowledgeBase(ctx context.Context, name string) (string, error)
	AddTextSource(ctx context.Context, kbID, title, body string) error
	AddURLSource(ctx context.Context, kbID, url string) error
	GetKnowledgeBaseStatus(ctx context.Context, kbID string) (domain.KnowledgeBaseStatus, error)
	AttachKnowledgeBases(ctx context.Context, agentID string, kbIDs []string) error
	DeleteKnowledgeBase(ctx context.Context, kbID string) error
}

// APIError is the normalized failure shape for every provider call. The
// message is the raw provider error text, retained verbatim because
// operators need it when contacting support.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider error: %s", e.Message)
}

// NumberHints narrows the phone number assigned during provisioning.
type NumberHints struct {
	AreaCode   string   `json:"area_code,omitempty"`
	Candidates []string `json:"candidates,omitempty"`
}

// CreateAgentRequest is the full parameter set for provisioning a hosted
// agent bound to a telephony number.
type CreateAgentRequest struct {
	Name         string       `json:"name"`
	BusinessName string       `json:"business_name"`
	Industry     string       `json:"industry,omitempty"`
	OwnerContact string       `json:"owner_contact,omitempty"`
	Instructions string       `json:"instructions"`
	BeginMessage string       `json:"begin_message,omitempty"`
	NumberHints  *NumberHints `json:"number_hints,omitempty"`
}

// Validate checks the request before it leaves the process.
func (r *CreateAgentRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return &domain.ValidationError{Field: "name", Message: "agent name is required"}
	}
	if strings.TrimSpace(r.BusinessName) == "" {
		return &domain.ValidationError{Field: "business_name", Message: "business name is required"}
	}
	if r.NumberHints != nil {
		for _, n := range r.NumberHints.Candidates {
			if !validPhoneNumber(n) {
				return &domain.ValidationError{Field: "number_hints", Message: fmt.Sprintf("malformed phone number: %s", n)}
			}
		}
	}
	return nil
}

// CreateAgentResponse carries the remote resource identifiers issued by the
// provider.
type CreateAgentResponse struct {
	AgentID     string `json:"agent_id"`
	PhoneNumber string `json:"phone_number"`
}

// UpdateAgentRequest reconciles agent-level fields that have a remote
// equivalent. Nil fields are omitted from the payload.
type UpdateAgentRequest struct {
	Name         *string                  `json:"name,omitempty"`
	BusinessName *string                  `json:"business_name,omitempty"`
	OwnerContact *string                  `json:"owner_contact,omitempty"`
	Tone         *domain.ToneStyle        `json:"tone,omitempty"`
	CallHandling *domain.CallHandlingData `json:"call_handling,omitempty"`
	Memory       *domain.MemoryFlagsData  `json:"memory,omitempty"`
	Booking      *domain.BookingRulesData `json:"booking,omitempty"`
}

// Validate checks the request before it leaves the process.
func (r *UpdateAgentRequest) Validate() error {
	if r.Tone != nil && !r.Tone.Valid() {
		return &domain.ValidationError{Field: "tone", Message: fmt.Sprintf("unsupported tone: %s", *r.Tone)}
	}
	return nil
}

// UpdateHostedPromptRequest replaces the hosted LLM prompt.
type UpdateHostedPromptRequest struct {
	GeneralPrompt string `json:"general_prompt"`
	BeginMessage  string `json:"begin_message,omitempty"`
}

// Validate checks the request before it leaves the process.
func (r *UpdateHostedPromptRequest) Validate() error {
	if strings.TrimSpace(r.GeneralPrompt) == "" {
		return &domain.ValidationError{Field: "general_prompt", Message: "general prompt is required"}
	}
	return nil
}

// validPhoneNumber accepts E.164-shaped numbers.
func validPhoneNumber(n string) bool {
	if len(n) < 8 || len(n) > 16 || !strings.HasPrefix(n, "+") {
		return false
	}
	for _, c := range n[1:] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
