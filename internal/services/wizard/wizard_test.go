package wizard

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/FieldDesk/agent-provisioning-service/internal/domain"
	"github.com/FieldDesk/agent-provisioning-service/internal/provider"
	"github.com/FieldDesk/agent-provisioning-service/internal/repository"
	"github.com/FieldDesk/agent-provisioning-service/internal/services/provisioning"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	glog "gorm.io/gorm/logger"
)

// fakeAPI implements provider.API; the wizard only ever reaches CreateAgent.
type fakeAPI struct {
	createCalls int
}

func (f *fakeAPI) CreateAgent(ctx context.Context, req *provider.CreateAgentRequest) (*provider.CreateAgentResponse, error) {
	f.createCalls++
	return &provider.CreateAgentResponse{AgentID: "agent_abc", PhoneNumber: "+14155550123"}, nil
}

func (f *fakeAPI) UpdateAgent(ctx context.Context, agentID string, req *provider.UpdateAgentRequest) error {
	return nil
}
func (f *fakeAPI) UpdateHostedPrompt(ctx context.Context, agentID string, req *provider.UpdateHostedPromptRequest) error {
	return nil
}
func (f *fakeAPI) SetAgentActive(ctx context.Context, agentID string, active bool) error { return nil }
func (f *fakeAPI) ListVoices(ctx context.Context) ([]domain.VoiceProfile, error)         { return nil, nil }
func (f *fakeAPI) SetVoice(ctx context.Context, agentID, voiceID string) error           { return nil }
func (f *fakeAPI) CreateKnowledgeBase(ctx context.Context, name string) (string, error) {
	return "", nil
}
func (f *fakeAPI) AddTextSource(ctx context.Context, kbID, title, body string) error { return nil }
func (f *fakeAPI) AddURLSource(ctx context.Context, kbID, url string) error          { return nil }
func (f *fakeAPI) GetKnowledgeBaseStatus(ctx context.Context, kbID string) (domain.KnowledgeBaseStatus, error) {
	return domain.KBStatusPending, nil
}
func (f *fakeAPI) AttachKnowledgeBases(ctx context.Context, agentID string, kbIDs []string) error {
	return nil
}
func (f *fakeAPI) DeleteKnowledgeBase(ctx context.Context, kbID string) error { return nil }

func setupWizard(t *testing.T) (*provisioning.Service, *fakeAPI, repository.RepositoryManager) {
	t.Helper()

	silentLogger := glog.New(
		log.New(io.Discard, "", log.LstdFlags),
		glog.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  glog.Silent,
			IgnoreRecordNotFoundError: true,
		},
	)
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: silentLogger})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.AgentProfile{}, &domain.KnowledgeBase{}))

	repoMgr := repository.NewGormRepositoryManager(db)
	api := &fakeAPI{}
	return provisioning.NewService(repoMgr, api, nil), api, repoMgr
}

func strPtr(s string) *string { return &s }

func basicInfo() *domain.UpdateAgentProfileRequest {
	return &domain.UpdateAgentProfileRequest{
		AgentName:    strPtr("Riley"),
		BusinessName: strPtr("Beacon Plumbing"),
	}
}

func TestStepNames(t *testing.T) {
	assert.Equal(t, "Basic Info", StepBasicInfo.Name())
	assert.Equal(t, "Tone & Style", StepToneStyle.Name())
	assert.Equal(t, "Call Handling", StepCallHandling.Name())
	assert.Equal(t, "Review & Activate", StepReviewActivate.Name())
}

func TestNext_RequiresBasicInfoFields(t *testing.T) {
	svc, _, _ := setupWizard(t)
	ctx := context.Background()

	w, err := New(ctx, "tenant-1", svc)
	require.NoError(t, err)
	assert.Equal(t, StepBasicInfo, w.Current())

	err = w.Next(ctx, &domain.UpdateAgentProfileRequest{})
	var vErr *domain.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, StepBasicInfo, w.Current())

	require.NoError(t, w.Next(ctx, basicInfo()))
	assert.Equal(t, StepToneStyle, w.Current())
}

func TestBack_NeverRewindsPersistedProgress(t *testing.T) {
	svc, _, repoMgr := setupWizard(t)
	ctx := context.Background()

	w, err := New(ctx, "tenant-1", svc)
	require.NoError(t, err)
	require.NoError(t, w.Next(ctx, basicInfo()))
	require.NoError(t, w.Next(ctx, &domain.UpdateAgentProfileRequest{Tone: toneRef(domain.ToneFriendly)}))
	assert.Equal(t, StepCallHandling, w.Current())

	w.Back()
	assert.Equal(t, StepToneStyle, w.Current())

	// A save on the earlier step keeps the persisted marker at the furthest
	// point reached
	require.NoError(t, w.Save(ctx, &domain.UpdateAgentProfileRequest{Tone: toneRef(domain.ToneCasual)}))

	profile, err := repoMgr.AgentProfile().GetByTenantID(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, int(StepCallHandling), profile.SetupStep)
	assert.Equal(t, domain.ToneCasual, profile.Tone)
}

func TestNew_ResumesFromPersistedStep(t *testing.T) {
	svc, _, _ := setupWizard(t)
	ctx := context.Background()

	w, err := New(ctx, "tenant-1", svc)
	require.NoError(t, err)
	require.NoError(t, w.Next(ctx, basicInfo()))
	require.NoError(t, w.Next(ctx, nil))

	// A fresh session lands on the persisted step, not the beginning
	resumed, err := New(ctx, "tenant-1", svc)
	require.NoError(t, err)
	assert.Equal(t, StepCallHandling, resumed.Current())
}

func TestActivate_OnlyFromReviewStep(t *testing.T) {
	svc, api, _ := setupWizard(t)
	ctx := context.Background()

	w, err := New(ctx, "tenant-1", svc)
	require.NoError(t, err)
	require.NoError(t, w.Next(ctx, basicInfo()))

	_, err = w.Activate(ctx, nil)
	var cErr *domain.CapabilityError
	require.ErrorAs(t, err, &cErr)
	assert.Zero(t, api.createCalls)

	require.NoError(t, w.Next(ctx, nil))
	require.NoError(t, w.Next(ctx, nil))
	assert.Equal(t, StepReviewActivate, w.Current())

	profile, err := w.Activate(ctx, nil)
	require.NoError(t, err)
	assert.True(t, profile.Provisioned())
	assert.Equal(t, 1, api.createCalls)
}

func toneRef(t domain.ToneStyle) *domain.ToneStyle { return &t }
