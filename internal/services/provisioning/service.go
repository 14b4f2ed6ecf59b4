package provisioning

import (
	"context"
	"sync"
	"time"

	"github.com/FieldDesk/agent-provisioning-service/internal/domain"
	"github.com/FieldDesk/agent-provisioning-service/internal/events"
	"github.com/FieldDesk/agent-provisioning-service/internal/prompts"
	"github.com/FieldDesk/agent-provisioning-service/internal/provider"
	"github.com/FieldDesk/agent-provisioning-service/internal/repository"
	"github.com/FieldDesk/agent-provisioning-service/pkg/logger"
	"github.com/FieldDesk/agent-provisioning-service/pkg/telephony"
	"github.com/jinzhu/copier"
	"go.uber.org/zap"
)

// Service drives the provisioning state machine:
//
//	Unconfigured -> Draft -> Provisioning -> Active <-> Paused
//
// with Failed reachable from Provisioning and re-enterable on retry. Every
// operation reads the latest persisted profile before mutating, so re-entrant
// calls cannot corrupt state; last writer wins.
type Service struct {
	repo     repository.RepositoryManager
	provider provider.API
	numbers  *telephony.NumberService
	bus      events.Bus

	mu       sync.Mutex
	attempts map[string]*domain.ProvisioningAttempt // tenant_id -> last attempt
}

// NewService creates a provisioning service. numbers may be nil; number
// hints are then omitted from provisioning calls.
func NewService(repo repository.RepositoryManager, providerAPI provider.API, numbers *telephony.NumberService) *Service {
	return &Service{
		repo:     repo,
		provider: providerAPI,
		numbers:  numbers,
		attempts: make(map[string]*domain.ProvisioningAttempt),
	}
}

// SetEventBus attaches a lifecycle event bus. Publishing is best effort and
// never affects operation outcomes.
func (s *Service) SetEventBus(bus events.Bus) {
	s.bus = bus
}

func (s *Service) publish(eventType events.EventType, tenantID string, data interface{}) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(eventType, tenantID, data); err != nil {
		logger.Base().Debug("event publish skipped", zap.String("type", string(eventType)), zap.Error(err))
	}
}

// SaveDraft persists a partial configuration for one wizard step. No remote
// call is made. The step marker advances monotonically; saves from
// back-navigation never rewind it.
func (s *Service) SaveDraft(ctx context.Context, tenantID string, step int, req *domain.UpdateAgentProfileRequest) (*domain.AgentProfile, error) {
	if step < 0 {
		return nil, &domain.ValidationError{Field: "step", Message: "step index cannot be negative"}
	}
	if req == nil {
		req = &domain.UpdateAgentProfileRequest{}
	}

	profile, err := s.repo.AgentProfile().Ensure(ctx, tenantID)
	if err != nil {
		return nil, &domain.LocalPersistenceError{Op: "save draft", Err: err}
	}

	if _, err := s.repo.AgentProfile().Update(ctx, tenantID, req); err != nil {
		return nil, &domain.LocalPersistenceError{Op: "save draft", Err: err}
	}

	if step > profile.SetupStep {
		if err := s.repo.AgentProfile().SetSetupProgress(ctx, tenantID, step, false); err != nil {
			return nil, &domain.LocalPersistenceError{Op: "save draft", Err: err}
		}
	}

	if profile.ProvisioningStatus == domain.StatusUnconfigured {
		if err := s.repo.AgentProfile().SetProvisioningStatus(ctx, tenantID, domain.StatusDraft, ""); err != nil {
			return nil, &domain.LocalPersistenceError{Op: "save draft", Err: err}
		}
	}

	return s.repo.AgentProfile().GetByTenantID(ctx, tenantID)
}

// Activate is the terminal wizard action. It persists the final
// configuration with the completed flag, then provisions the hosted agent if
// the tenant does not own one yet. Calling Activate on an already-provisioned
// tenant never creates a second remote agent; it falls through to a
// lightweight activate-existing call.
func (s *Service) Activate(ctx context.Context, tenantID string, req *domain.UpdateAgentProfileRequest) (*domain.AgentProfile, error) {
	if _, err := s.repo.AgentProfile().Ensure(ctx, tenantID); err != nil {
		return nil, &domain.LocalPersistenceError{Op: "activate", Err: err}
	}
	if req != nil {
		if _, err := s.repo.AgentProfile().Update(ctx, tenantID, req); err != nil {
			return nil, &domain.LocalPersistenceError{Op: "activate", Err: err}
		}
	}

	profile, err := s.repo.AgentProfile().GetByTenantID(ctx, tenantID)
	if err != nil {
		return nil, &domain.LocalPersistenceError{Op: "activate", Err: err}
	}

	if err := validateForActivation(profile); err != nil {
		return nil, err
	}

	if err := s.repo.AgentProfile().SetSetupProgress(ctx, tenantID, profile.SetupStep, true); err != nil {
		return nil, &domain.LocalPersistenceError{Op: "activate", Err: err}
	}

	if profile.Provisioned() {
		// Idempotent path: the hosted agent already exists.
		if err := s.provider.SetAgentActive(ctx, *profile.RemoteAgentID, true); err != nil {
			return nil, &domain.RemoteProvisioningError{Op: "activate existing agent", Message: err.Error()}
		}
		if err := s.repo.AgentProfile().SetProvisioningStatus(ctx, tenantID, domain.StatusActive, ""); err != nil {
			return nil, &domain.LocalPersistenceError{Op: "activate", Err: err}
		}
		return s.repo.AgentProfile().GetByTenantID(ctx, tenantID)
	}

	return s.provision(ctx, tenantID)
}

// RetryProvisioning re-runs the provisioning branch of Activate. Valid only
// from the failed state.
func (s *Service) RetryProvisioning(ctx context.Context, tenantID string) (*domain.AgentProfile, error) {
	profile, err := s.repo.AgentProfile().GetByTenantID(ctx, tenantID)
	if err != nil {
		return nil, &domain.LocalPersistenceError{Op: "retry provisioning", Err: err}
	}
	if profile.ProvisioningStatus != domain.StatusFailed {
		return nil, &domain.CapabilityError{Message: "retry is only valid after a failed provisioning attempt"}
	}
	return s.provision(ctx, tenantID)
}

// provision issues the remote create call and records the outcome. On
// failure the local configuration is left intact for retry and the provider
// error text is stored verbatim.
func (s *Service) provision(ctx context.Context, tenantID string) (*domain.AgentProfile, error) {
	profile, err := s.repo.AgentProfile().GetByTenantID(ctx, tenantID)
	if err != nil {
		return nil, &domain.LocalPersistenceError{Op: "provision", Err: err}
	}

	if err := s.repo.AgentProfile().SetProvisioningStatus(ctx, tenantID, domain.StatusProvisioning, ""); err != nil {
		return nil, &domain.LocalPersistenceError{Op: "provision", Err: err}
	}

	builder := prompts.NewBuilder(profile)
	req := &provider.CreateAgentRequest{
		Name:         profile.AgentName,
		BusinessName: profile.BusinessName,
		Industry:     profile.Industry,
		OwnerContact: profile.OwnerContact,
		Instructions: builder.GeneralPrompt(),
		BeginMessage: builder.BeginMessage(),
		NumberHints:  s.numberHints(profile),
	}

	resp, err := s.provider.CreateAgent(ctx, req)
	s.recordAttempt(tenantID, profile, resp, err)
	if err != nil {
		// Keep the provider's message verbatim for operator display.
		if setErr := s.repo.AgentProfile().SetProvisioningStatus(ctx, tenantID, domain.StatusFailed, providerText(err)); setErr != nil {
			logger.Base().Error("failed to record provisioning failure",
				zap.String("tenant_id", tenantID), zap.Error(setErr))
		}
		s.publish(events.AgentProvisioningFail, tenantID, &events.ProvisioningEventData{FailureReason: providerText(err)})
		return nil, &domain.RemoteProvisioningError{Op: "create agent", Message: providerText(err)}
	}

	if err := s.repo.AgentProfile().SetProvisioned(ctx, tenantID, resp.AgentID, resp.PhoneNumber); err != nil {
		return nil, &domain.LocalPersistenceError{Op: "provision", Err: err}
	}

	logger.Base().Info("tenant provisioned",
		zap.String("tenant_id", tenantID),
		zap.String("remote_agent_id", resp.AgentID),
		zap.String("phone_number", resp.PhoneNumber),
	)
	s.publish(events.AgentProvisioned, tenantID, &events.ProvisioningEventData{
		RemoteAgentID: resp.AgentID,
		PhoneNumber:   resp.PhoneNumber,
	})
	return s.repo.AgentProfile().GetByTenantID(ctx, tenantID)
}

// UpdateProvisioned writes fields locally first, then pushes a reconciling
// update to the provider. Local truth always wins: a remote failure is
// reported as a RemoteSyncError and never rolls back the local write.
func (s *Service) UpdateProvisioned(ctx context.Context, tenantID string, req *domain.UpdateAgentProfileRequest) (*domain.AgentProfile, error) {
	profile, err := s.repo.AgentProfile().GetByTenantID(ctx, tenantID)
	if err != nil {
		return nil, &domain.LocalPersistenceError{Op: "update", Err: err}
	}
	if !profile.Provisioned() {
		return nil, domain.ErrProvisionFirst
	}

	// Local write must complete before the remote push so a local failure
	// never sends stale data remote.
	updated, err := s.repo.AgentProfile().Update(ctx, tenantID, req)
	if err != nil {
		return nil, &domain.LocalPersistenceError{Op: "update", Err: err}
	}
	updated, err = s.repo.AgentProfile().GetByTenantID(ctx, tenantID)
	if err != nil {
		return nil, &domain.LocalPersistenceError{Op: "update", Err: err}
	}

	agentID := *updated.RemoteAgentID
	push := &provider.UpdateAgentRequest{
		Name:         &updated.AgentName,
		BusinessName: &updated.BusinessName,
		OwnerContact: &updated.OwnerContact,
		Tone:         &updated.Tone,
		CallHandling: updated.CallHandling,
		Memory:       updated.Memory,
		Booking:      updated.Booking,
	}
	if err := s.provider.UpdateAgent(ctx, agentID, push); err != nil {
		s.publish(events.AgentConfigSyncFailed, tenantID, &events.ProvisioningEventData{FailureReason: providerText(err)})
		return updated, &domain.RemoteSyncError{Op: "update agent", Message: providerText(err)}
	}

	builder := prompts.NewBuilder(updated)
	promptReq := &provider.UpdateHostedPromptRequest{
		GeneralPrompt: builder.GeneralPrompt(),
		BeginMessage:  builder.BeginMessage(),
	}
	if err := s.provider.UpdateHostedPrompt(ctx, agentID, promptReq); err != nil {
		s.publish(events.AgentConfigSyncFailed, tenantID, &events.ProvisioningEventData{FailureReason: providerText(err)})
		return updated, &domain.RemoteSyncError{Op: "update hosted prompt", Message: providerText(err)}
	}

	s.publish(events.AgentConfigSynced, tenantID, nil)
	return updated, nil
}

// Pause suspends the hosted agent. The local status flips only after the
// provider confirms.
func (s *Service) Pause(ctx context.Context, tenantID string) error {
	return s.setActive(ctx, tenantID, false)
}

// Resume re-enables a paused agent.
func (s *Service) Resume(ctx context.Context, tenantID string) error {
	return s.setActive(ctx, tenantID, true)
}

func (s *Service) setActive(ctx context.Context, tenantID string, active bool) error {
	profile, err := s.repo.AgentProfile().GetByTenantID(ctx, tenantID)
	if err != nil {
		return &domain.LocalPersistenceError{Op: "pause/resume", Err: err}
	}
	if !profile.Provisioned() {
		return domain.ErrProvisionFirst
	}

	if err := s.provider.SetAgentActive(ctx, *profile.RemoteAgentID, active); err != nil {
		return &domain.RemoteProvisioningError{Op: "set agent status", Message: providerText(err)}
	}

	status := domain.StatusPaused
	if active {
		status = domain.StatusActive
	}
	if err := s.repo.AgentProfile().SetProvisioningStatus(ctx, tenantID, status, ""); err != nil {
		return &domain.LocalPersistenceError{Op: "pause/resume", Err: err}
	}

	if active {
		s.publish(events.AgentResumed, tenantID, nil)
	} else {
		s.publish(events.AgentPaused, tenantID, nil)
	}
	return nil
}

// LastAttempt returns the most recent provisioning attempt for the tenant,
// or nil if none was made in this process.
func (s *Service) LastAttempt(tenantID string) *domain.ProvisioningAttempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts[tenantID]
}

func (s *Service) recordAttempt(tenantID string, input *domain.AgentProfile, resp *provider.CreateAgentResponse, err error) {
	attempt := &domain.ProvisioningAttempt{
		TenantID:  tenantID,
		Succeeded: err == nil,
		At:        time.Now(),
	}

	// Snapshot the input so later edits do not mutate the attempt record.
	snapshot := &domain.AgentProfile{}
	if copyErr := copier.CopyWithOption(snapshot, input, copier.Option{DeepCopy: true}); copyErr == nil {
		attempt.Input = snapshot
	}

	if err != nil {
		attempt.Error = providerText(err)
	} else if resp != nil {
		attempt.PhoneNumber = resp.PhoneNumber
	}

	s.mu.Lock()
	s.attempts[tenantID] = attempt
	s.mu.Unlock()
}

// numberHints asks the carrier for available numbers near the business. Any
// search failure just drops the hints; provisioning proceeds without them.
func (s *Service) numberHints(profile *domain.AgentProfile) *provider.NumberHints {
	if s.numbers == nil || !s.numbers.Enabled() {
		return nil
	}

	areaCode := areaCodeFromContact(profile.OwnerContact)
	candidates, err := s.numbers.SearchAvailable(areaCode, 5)
	if err != nil {
		logger.Base().Warn("number hint search failed, provisioning without hints",
			zap.String("tenant_id", profile.TenantID), zap.Error(err))
		return nil
	}
	if len(candidates) == 0 && areaCode == "" {
		return nil
	}
	return &provider.NumberHints{AreaCode: areaCode, Candidates: candidates}
}

// areaCodeFromContact pulls the area code out of an E.164 US owner number.
func areaCodeFromContact(contact string) string {
	if len(contact) == 12 && contact[:2] == "+1" {
		return contact[2:5]
	}
	return ""
}

func validateForActivation(profile *domain.AgentProfile) error {
	if profile.AgentName == "" {
		return &domain.ValidationError{Field: "agent_name", Message: "agent name is required before activation"}
	}
	if profile.BusinessName == "" {
		return &domain.ValidationError{Field: "business_name", Message: "business name is required before activation"}
	}
	if profile.Tone != "" && !profile.Tone.Valid() {
		return &domain.ValidationError{Field: "tone", Message: "unsupported tone"}
	}
	return nil
}

// providerText unwraps to the raw provider message when possible so the
// operator sees exactly what the provider said.
func providerText(err error) string {
	if apiErr, ok := err.(*provider.APIError); ok {
		return apiErr.Message
	}
	return err.Error()
}
