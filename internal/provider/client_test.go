package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/FieldDesk/agent-provisioning-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAgent_SendsAuthAndDecodesResponse(t *testing.T) {
	var gotAuth, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		fmt.Fprint(w, `{"agent_id": "agent_abc", "phone_number": "+14155550123"}`)
	}))
	defer server.Close()

	c := NewClient(server.URL, "sk_test_123")
	resp, err := c.CreateAgent(context.Background(), &CreateAgentRequest{
		Name:         "Riley",
		BusinessName: "Beacon Plumbing",
		Instructions: "You are Riley.",
	})
	require.NoError(t, err)
	assert.Equal(t, "Bearer sk_test_123", gotAuth)
	assert.Equal(t, "/v1/agents", gotPath)
	assert.Equal(t, "agent_abc", resp.AgentID)
	assert.Equal(t, "+14155550123", resp.PhoneNumber)
}

func TestCreateAgent_ValidatesBeforeNetwork(t *testing.T) {
	hit := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit = true
	}))
	defer server.Close()

	c := NewClient(server.URL, "sk_test_123")
	_, err := c.CreateAgent(context.Background(), &CreateAgentRequest{Name: "Riley"})
	var vErr *domain.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "business_name", vErr.Field)
	assert.False(t, hit)
}

func TestCreateAgent_RejectsMalformedNumberHints(t *testing.T) {
	c := NewClient("http://localhost:0", "sk_test_123")
	_, err := c.CreateAgent(context.Background(), &CreateAgentRequest{
		Name:         "Riley",
		BusinessName: "Beacon Plumbing",
		NumberHints:  &NumberHints{Candidates: []string{"415-555-0123"}},
	})
	var vErr *domain.ValidationError
	require.ErrorAs(t, err, &vErr)
}

func TestDo_ExtractsProviderErrorVerbatim(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"error field", `{"error": "no numbers available in area code 415"}`, "no numbers available in area code 415"},
		{"message field", `{"message": "agent limit reached"}`, "agent limit reached"},
		{"raw body fallback", `upstream exploded`, "upstream exploded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnprocessableEntity)
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			c := NewClient(server.URL, "sk_test_123")
			err := c.SetAgentActive(context.Background(), "agent_abc", true)
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
			assert.Equal(t, tt.want, apiErr.Message)
		})
	}
}

func TestListVoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/voices", r.URL.Path)
		fmt.Fprint(w, `{"voices": [{"id": "v1", "name": "Ava", "gender": "female"}]}`)
	}))
	defer server.Close()

	c := NewClient(server.URL, "sk_test_123")
	voices, err := c.ListVoices(context.Background())
	require.NoError(t, err)
	require.Len(t, voices, 1)
	assert.Equal(t, "Ava", voices[0].Name)
}

func TestKnowledgeBaseCalls(t *testing.T) {
	var gotMethod, gotPath string
	var gotPayload map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotPayload = nil
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&gotPayload)
		}
		fmt.Fprint(w, `{"knowledge_base_id": "kb_remote_1", "status": "in_progress"}`)
	}))
	defer server.Close()

	c := NewClient(server.URL, "sk_test_123")
	ctx := context.Background()

	id, err := c.CreateKnowledgeBase(ctx, "FAQ")
	require.NoError(t, err)
	assert.Equal(t, "kb_remote_1", id)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/v1/knowledge-bases", gotPath)

	require.NoError(t, c.AddURLSource(ctx, "kb_remote_1", "https://example.com/faq"))
	assert.Equal(t, "/v1/knowledge-bases/kb_remote_1/sources", gotPath)
	assert.Equal(t, "url", gotPayload["type"])

	status, err := c.GetKnowledgeBaseStatus(ctx, "kb_remote_1")
	require.NoError(t, err)
	assert.Equal(t, domain.KBStatusInProgress, status)

	require.NoError(t, c.AttachKnowledgeBases(ctx, "agent_abc", []string{"kb_remote_1"}))
	assert.Equal(t, "/v1/agents/agent_abc/knowledge-bases", gotPath)

	require.NoError(t, c.DeleteKnowledgeBase(ctx, "kb_remote_1"))
	assert.Equal(t, http.MethodDelete, gotMethod)
}

func TestValidationGuards_NoNetwork(t *testing.T) {
	c := NewClient("http://localhost:0", "sk_test_123")
	ctx := context.Background()

	var vErr *domain.ValidationError
	assert.ErrorAs(t, c.UpdateAgent(ctx, "", &UpdateAgentRequest{}), &vErr)
	assert.ErrorAs(t, c.SetVoice(ctx, "agent_abc", ""), &vErr)
	assert.ErrorAs(t, c.AddTextSource(ctx, "kb_1", "", ""), &vErr)
	assert.ErrorAs(t, c.DeleteKnowledgeBase(ctx, ""), &vErr)

	_, err := c.CreateKnowledgeBase(ctx, "")
	assert.ErrorAs(t, err, &vErr)
}
