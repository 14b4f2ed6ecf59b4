package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/FieldDesk/agent-provisioning-service/internal/domain"
	"github.com/FieldDesk/agent-provisioning-service/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Client is the REST adapter for the hosted conversational-AI provider. It
// holds no state beyond the credential and normalizes every failure into
// *APIError so callers never see transport-level panics or raw JSON.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
}

// NewClient creates a provider client. The provider API is rate limited, so
// outgoing calls go through a small token bucket.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(10), 20),
	}
}

// do issues one JSON request and decodes the response into out (when out is
// non-nil). Non-2xx responses become *APIError with the body text verbatim.
func (c *Client) do(ctx context.Context, method, path string, payload, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &APIError{Message: fmt.Sprintf("rate limiter aborted: %v", err)}
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return &APIError{Message: fmt.Sprintf("failed to marshal request: %v", err)}
		}
		body = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &APIError{Message: fmt.Sprintf("failed to create request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return &APIError{Message: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("failed to read response: %v", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.Base().Warn("provider call failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
		)
		return &APIError{StatusCode: resp.StatusCode, Message: providerMessage(respBody)}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return &APIError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("failed to parse response: %v", err)}
		}
	}
	return nil
}

// providerMessage extracts the provider's error text, falling back to the
// raw body so nothing is lost for operator display.
func providerMessage(body []byte) string {
	var e struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &e); err == nil {
		if e.Error != "" {
			return e.Error
		}
		if e.Message != "" {
			return e.Message
		}
	}
	return string(body)
}

// CreateAgent provisions a hosted agent and a bound phone number.
func (c *Client) CreateAgent(ctx context.Context, req *CreateAgentRequest) (*CreateAgentResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var resp CreateAgentResponse
	if err := c.do(ctx, http.MethodPost, "/v1/agents", req, &resp); err != nil {
		return nil, err
	}

	logger.Base().Info("provisioned hosted agent",
		zap.String("agent_id", resp.AgentID),
		zap.String("phone_number", resp.PhoneNumber),
	)
	return &resp, nil
}

// UpdateAgent pushes agent-level fields to the provider.
func (c *Client) UpdateAgent(ctx context.Context, agentID string, req *UpdateAgentRequest) error {
	if agentID == "" {
		return &domain.ValidationError{Field: "agent_id", Message: "agent id is required"}
	}
	if err := req.Validate(); err != nil {
		return err
	}
	return c.do(ctx, http.MethodPatch, "/v1/agents/"+agentID, req, nil)
}

// UpdateHostedPrompt replaces the hosted LLM prompt for the agent.
func (c *Client) UpdateHostedPrompt(ctx context.Context, agentID string, req *UpdateHostedPromptRequest) error {
	if agentID == "" {
		return &domain.ValidationError{Field: "agent_id", Message: "agent id is required"}
	}
	if err := req.Validate(); err != nil {
		return err
	}
	return c.do(ctx, http.MethodPut, "/v1/agents/"+agentID+"/prompt", req, nil)
}

// SetAgentActive toggles the agent between active and paused on the
// provider side.
func (c *Client) SetAgentActive(ctx context.Context, agentID string, active bool) error {
	if agentID == "" {
		return &domain.ValidationError{Field: "agent_id", Message: "agent id is required"}
	}
	payload := map[string]bool{"active": active}
	return c.do(ctx, http.MethodPost, "/v1/agents/"+agentID+"/status", payload, nil)
}

// ListVoices fetches the voice catalog.
func (c *Client) ListVoices(ctx context.Context) ([]domain.VoiceProfile, error) {
	var resp struct {
		Voices []domain.VoiceProfile `json:"voices"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/voices", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Voices, nil
}

// SetVoice assigns a catalog voice to the agent.
func (c *Client) SetVoice(ctx context.Context, agentID, voiceID string) error {
	if agentID == "" {
		return &domain.ValidationError{Field: "agent_id", Message: "agent id is required"}
	}
	if voiceID == "" {
		return &domain.ValidationError{Field: "voice_id", Message: "voice id is required"}
	}
	payload := map[string]string{"voice_id": voiceID}
	return c.do(ctx, http.MethodPost, "/v1/agents/"+agentID+"/voice", payload, nil)
}

// CreateKnowledgeBase allocates a new empty hosted knowledge base and
// returns its id. Attachment is a separate call.
func (c *Client) CreateKnowledgeBase(ctx context.Context, name string) (string, error) {
	if name == "" {
		return "", &domain.ValidationError{Field: "name", Message: "knowledge base name is required"}
	}

	var resp struct {
		KnowledgeBaseID string `json:"knowledge_base_id"`
	}
	payload := map[string]string{"name": name}
	if err := c.do(ctx, http.MethodPost, "/v1/knowledge-bases", payload, &resp); err != nil {
		return "", err
	}
	return resp.KnowledgeBaseID, nil
}

// AddTextSource appends an inline text source to a knowledge base.
func (c *Client) AddTextSource(ctx context.Context, kbID, title, body string) error {
	if kbID == "" {
		return &domain.ValidationError{Field: "kb_id", Message: "knowledge base id is required"}
	}
	if title == "" || body == "" {
		return &domain.ValidationError{Field: "source", Message: "text source requires title and body"}
	}
	payload := map[string]string{"type": "text", "title": title, "body": body}
	return c.do(ctx, http.MethodPost, "/v1/knowledge-bases/"+kbID+"/sources", payload, nil)
}

// AddURLSource appends a URL source. The provider scrapes it asynchronously;
// the call returns before ingestion completes.
func (c *Client) AddURLSource(ctx context.Context, kbID, url string) error {
	if kbID == "" {
		return &domain.ValidationError{Field: "kb_id", Message: "knowledge base id is required"}
	}
	if url == "" {
		return &domain.ValidationError{Field: "url", Message: "url is required"}
	}
	payload := map[string]string{"type": "url", "url": url}
	return c.do(ctx, http.MethodPost, "/v1/knowledge-bases/"+kbID+"/sources", payload, nil)
}

// GetKnowledgeBaseStatus polls ingestion progress.
func (c *Client) GetKnowledgeBaseStatus(ctx context.Context, kbID string) (domain.KnowledgeBaseStatus, error) {
	if kbID == "" {
		return "", &domain.ValidationError{Field: "kb_id", Message: "knowledge base id is required"}
	}

	var resp struct {
		Status domain.KnowledgeBaseStatus `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/knowledge-bases/"+kbID, nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// AttachKnowledgeBases binds the given bases to the agent. Re-attaching an
// already-attached set is a no-op on the provider side.
func (c *Client) AttachKnowledgeBases(ctx context.Context, agentID string, kbIDs []string) error {
	if agentID == "" {
		return &domain.ValidationError{Field: "agent_id", Message: "agent id is required"}
	}
	payload := map[string][]string{"knowledge_base_ids": kbIDs}
	return c.do(ctx, http.MethodPost, "/v1/agents/"+agentID+"/knowledge-bases", payload, nil)
}

// DeleteKnowledgeBase removes the hosted resource.
func (c *Client) DeleteKnowledgeBase(ctx context.Context, kbID string) error {
	if kbID == "" {
		return &domain.ValidationError{Field: "kb_id", Message: "knowledge base id is required"}
	}
	return c.do(ctx, http.MethodDelete, "/v1/knowledge-bases/"+kbID, nil, nil)
}
