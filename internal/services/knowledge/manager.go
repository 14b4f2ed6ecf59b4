package knowledge

import (
	"context"

	"github.com/FieldDesk/agent-provisioning-service/internal/domain"
	"github.com/FieldDesk/agent-provisioning-service/internal/events"
	"github.com/FieldDesk/agent-provisioning-service/internal/provider"
	"github.com/FieldDesk/agent-provisioning-service/internal/repository"
	"github.com/FieldDesk/agent-provisioning-service/pkg/logger"
	"go.uber.org/zap"
)

// Manager owns the tenant-local mirror of provider-hosted knowledge bases.
// Ingestion completion is learned by explicit polling (RefreshStatus), never
// a background timer.
type Manager struct {
	repo     repository.RepositoryManager
	provider provider.API
	bus      events.Bus
}

// NewManager creates a knowledge base manager.
func NewManager(repo repository.RepositoryManager, providerAPI provider.API) *Manager {
	return &Manager{repo: repo, provider: providerAPI}
}

// SetEventBus attaches a lifecycle event bus. Publishing is best effort.
func (m *Manager) SetEventBus(bus events.Bus) {
	m.bus = bus
}

func (m *Manager) publish(eventType events.EventType, tenantID string, data interface{}) {
	if m.bus == nil {
		return
	}
	if err := m.bus.Publish(eventType, tenantID, data); err != nil {
		logger.Base().Debug("event publish skipped", zap.String("type", string(eventType)), zap.Error(err))
	}
}

// Create allocates an empty hosted knowledge base and records it locally.
// Attachment to the agent is a separate call because attachment is also used
// for pre-existing bases.
func (m *Manager) Create(ctx context.Context, tenantID, name string) (*domain.KnowledgeBase, error) {
	if name == "" {
		return nil, &domain.ValidationError{Field: "name", Message: "knowledge base name is required"}
	}

	remoteID, err := m.provider.CreateKnowledgeBase(ctx, name)
	if err != nil {
		return nil, &domain.RemoteProvisioningError{Op: "create knowledge base", Message: err.Error()}
	}

	kb := &domain.KnowledgeBase{
		TenantID:   tenantID,
		RemoteKBID: remoteID,
		Name:       name,
		Status:     domain.KBStatusPending,
	}
	created, err := m.repo.KnowledgeBase().Create(ctx, kb)
	if err != nil {
		// The hosted base exists but we lost the local record; surface the
		// remote id so the operator can recover it.
		logger.Base().Error("created hosted knowledge base but failed to persist local record",
			zap.String("remote_kb_id", remoteID), zap.Error(err))
		return nil, &domain.LocalPersistenceError{Op: "create knowledge base", Err: err}
	}

	m.publish(events.KnowledgeBaseCreated, tenantID, &events.KnowledgeEventData{
		KnowledgeBaseID: created.ID,
		RemoteKBID:      remoteID,
	})
	return created, nil
}

// AddText appends an inline text source. Text sources ingest quickly but the
// base still reports completion through polling.
func (m *Manager) AddText(ctx context.Context, kbID, title, body string) (*domain.KnowledgeBase, error) {
	kb, err := m.repo.KnowledgeBase().GetByID(ctx, kbID)
	if err != nil {
		return nil, &domain.LocalPersistenceError{Op: "add text source", Err: err}
	}

	if err := m.provider.AddTextSource(ctx, kb.RemoteKBID, title, body); err != nil {
		return nil, &domain.RemoteProvisioningError{Op: "add text source", Message: err.Error()}
	}

	kb, err = m.repo.KnowledgeBase().AppendSource(ctx, kbID, domain.KnowledgeSource{
		Type:  domain.SourceTypeText,
		Title: title,
		Body:  body,
	})
	if err != nil {
		return nil, &domain.LocalPersistenceError{Op: "add text source", Err: err}
	}

	if err := m.advanceStatus(ctx, kb, domain.KBStatusInProgress); err != nil {
		return nil, err
	}
	return m.repo.KnowledgeBase().GetByID(ctx, kbID)
}

// AddURL appends a URL source. The provider scrapes it asynchronously; the
// base moves to in_progress and the caller polls RefreshStatus to learn when
// ingestion finishes.
func (m *Manager) AddURL(ctx context.Context, kbID, url string) (*domain.KnowledgeBase, error) {
	kb, err := m.repo.KnowledgeBase().GetByID(ctx, kbID)
	if err != nil {
		return nil, &domain.LocalPersistenceError{Op: "add url source", Err: err}
	}

	if err := m.provider.AddURLSource(ctx, kb.RemoteKBID, url); err != nil {
		return nil, &domain.RemoteProvisioningError{Op: "add url source", Message: err.Error()}
	}

	kb, err = m.repo.KnowledgeBase().AppendSource(ctx, kbID, domain.KnowledgeSource{
		Type: domain.SourceTypeURL,
		URL:  url,
	})
	if err != nil {
		return nil, &domain.LocalPersistenceError{Op: "add url source", Err: err}
	}

	if err := m.advanceStatus(ctx, kb, domain.KBStatusInProgress); err != nil {
		return nil, err
	}
	return m.repo.KnowledgeBase().GetByID(ctx, kbID)
}

// RefreshStatus polls the provider for ingestion progress. Status only moves
// forward along pending -> in_progress -> {complete, error}; a stale or
// out-of-order provider response never regresses an advanced base.
func (m *Manager) RefreshStatus(ctx context.Context, kbID string) (*domain.KnowledgeBase, error) {
	kb, err := m.repo.KnowledgeBase().GetByID(ctx, kbID)
	if err != nil {
		return nil, &domain.LocalPersistenceError{Op: "refresh status", Err: err}
	}

	remote, err := m.provider.GetKnowledgeBaseStatus(ctx, kb.RemoteKBID)
	if err != nil {
		return nil, &domain.RemoteProvisioningError{Op: "refresh status", Message: err.Error()}
	}

	if remote != kb.Status && kb.Status.CanTransitionTo(remote) {
		if err := m.repo.KnowledgeBase().SetStatus(ctx, kbID, remote); err != nil {
			return nil, &domain.LocalPersistenceError{Op: "refresh status", Err: err}
		}
		kb.Status = remote

		switch remote {
		case domain.KBStatusComplete:
			m.publish(events.KnowledgeBaseComplete, kb.TenantID, &events.KnowledgeEventData{
				KnowledgeBaseID: kb.ID, RemoteKBID: kb.RemoteKBID, Status: string(remote),
			})
		case domain.KBStatusError:
			m.publish(events.KnowledgeBaseError, kb.TenantID, &events.KnowledgeEventData{
				KnowledgeBaseID: kb.ID, RemoteKBID: kb.RemoteKBID, Status: string(remote),
			})
		}
	}
	return kb, nil
}

// Attach binds the given bases to the hosted agent. Idempotent: re-attaching
// an already-attached set must not error.
func (m *Manager) Attach(ctx context.Context, tenantID string, kbIDs []string) error {
	profile, err := m.repo.AgentProfile().GetByTenantID(ctx, tenantID)
	if err != nil {
		return &domain.LocalPersistenceError{Op: "attach knowledge bases", Err: err}
	}
	if !profile.Provisioned() {
		return domain.ErrProvisionFirst
	}

	remoteIDs := make([]string, 0, len(kbIDs))
	for _, id := range kbIDs {
		kb, err := m.repo.KnowledgeBase().GetByID(ctx, id)
		if err != nil {
			return &domain.LocalPersistenceError{Op: "attach knowledge bases", Err: err}
		}
		remoteIDs = append(remoteIDs, kb.RemoteKBID)
	}

	if err := m.provider.AttachKnowledgeBases(ctx, *profile.RemoteAgentID, remoteIDs); err != nil {
		return &domain.RemoteProvisioningError{Op: "attach knowledge bases", Message: err.Error()}
	}

	if err := m.repo.KnowledgeBase().SetAttached(ctx, kbIDs, true); err != nil {
		return &domain.LocalPersistenceError{Op: "attach knowledge bases", Err: err}
	}

	for _, id := range kbIDs {
		m.publish(events.KnowledgeBaseAttached, tenantID, &events.KnowledgeEventData{KnowledgeBaseID: id})
	}
	return nil
}

// Delete removes the hosted base first and clears the local record only on
// remote success, so the UI never believes a still-live remote resource is
// gone.
func (m *Manager) Delete(ctx context.Context, kbID string) error {
	kb, err := m.repo.KnowledgeBase().GetByID(ctx, kbID)
	if err != nil {
		return &domain.LocalPersistenceError{Op: "delete knowledge base", Err: err}
	}

	if err := m.provider.DeleteKnowledgeBase(ctx, kb.RemoteKBID); err != nil {
		return &domain.RemoteProvisioningError{Op: "delete knowledge base", Message: err.Error()}
	}

	if err := m.repo.KnowledgeBase().Delete(ctx, kbID); err != nil {
		return &domain.LocalPersistenceError{Op: "delete knowledge base", Err: err}
	}
	return nil
}

// List returns all bases owned by a tenant.
func (m *Manager) List(ctx context.Context, tenantID string) ([]*domain.KnowledgeBase, error) {
	kbs, err := m.repo.KnowledgeBase().ListByTenantID(ctx, tenantID)
	if err != nil {
		return nil, &domain.LocalPersistenceError{Op: "list knowledge bases", Err: err}
	}
	return kbs, nil
}

// advanceStatus moves the base forward only; it never regresses.
func (m *Manager) advanceStatus(ctx context.Context, kb *domain.KnowledgeBase, next domain.KnowledgeBaseStatus) error {
	if kb.Status == next || !kb.Status.CanTransitionTo(next) {
		return nil
	}
	if err := m.repo.KnowledgeBase().SetStatus(ctx, kb.ID, next); err != nil {
		return &domain.LocalPersistenceError{Op: "advance status", Err: err}
	}
	return nil
}
