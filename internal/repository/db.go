package repository

import (
	"context"

	"github.com/FieldDesk/agent-provisioning-service/internal/domain"
	"gorm.io/gorm"
)

// AgentProfileRepository defines the interface for per-tenant agent
// configuration records.
type AgentProfileRepository interface {
	// Ensure returns the profile for a tenant, creating an empty one if the
	// tenant has never saved anything.
	Ensure(ctx context.Context, tenantID string) (*domain.AgentProfile, error)

	// Read operations
	GetByTenantID(ctx context.Context, tenantID string) (*domain.AgentProfile, error)

	// Update operations
	Update(ctx context.Context, tenantID string, req *domain.UpdateAgentProfileRequest) (*domain.AgentProfile, error)
	SetSetupProgress(ctx context.Context, tenantID string, step int, completed bool) error
	SetProvisioningStatus(ctx context.Context, tenantID string, status domain.ProvisioningStatus, errMsg string) error
	SetProvisioned(ctx context.Context, tenantID string, remoteAgentID, phoneNumber string) error
	SetCurrentVoice(ctx context.Context, tenantID string, voiceID string) error
}

// KnowledgeBaseRepository defines the interface for the tenant-local mirror
// of provider-hosted knowledge bases.
type KnowledgeBaseRepository interface {
	Create(ctx context.Context, kb *domain.KnowledgeBase) (*domain.KnowledgeBase, error)
	GetByID(ctx context.Context, id string) (*domain.KnowledgeBase, error)
	GetByRemoteID(ctx context.Context, remoteKBID string) (*domain.KnowledgeBase, error)
	ListByTenantID(ctx context.Context, tenantID string) ([]*domain.KnowledgeBase, error)
	ListUnfinished(ctx context.Context) ([]*domain.KnowledgeBase, error)
	AppendSource(ctx context.Context, id string, src domain.KnowledgeSource) (*domain.KnowledgeBase, error)
	SetStatus(ctx context.Context, id string, status domain.KnowledgeBaseStatus) error
	SetAttached(ctx context.Context, ids []string, attached bool) error
	Delete(ctx context.Context, id string) error
}

// RepositoryManager combines all repositories
type RepositoryManager interface {
	AgentProfile() AgentProfileRepository
	KnowledgeBase() KnowledgeBaseRepository

	// Transaction support
	WithTx(ctx context.Context, fn func(ctx context.Context, repos RepositoryManager) error) error

	// Health check
	Ping(ctx context.Context) error

	// Close connection
	Close() error
}

// GormRepositoryManager implements RepositoryManager using GORM
type GormRepositoryManager struct {
	db               *gorm.DB
	agentProfileRepo *GormAgentProfileRepository
	knowledgeRepo    *GormKnowledgeBaseRepository
}

// NewGormRepositoryManager creates a new GORM repository manager
func NewGormRepositoryManager(db *gorm.DB) *GormRepositoryManager {
	return &GormRepositoryManager{
		db:               db,
		agentProfileRepo: NewGormAgentProfileRepository(db),
		knowledgeRepo:    NewGormKnowledgeBaseRepository(db),
	}
}

// AgentProfile returns the agent profile repository
func (m *GormRepositoryManager) AgentProfile() AgentProfileRepository {
	return m.agentProfileRepo
}

// KnowledgeBase returns the knowledge base repository
func (m *GormRepositoryManager) KnowledgeBase() KnowledgeBaseRepository {
	return m.knowledgeRepo
}

// WithTx executes a function within a database transaction
func (m *GormRepositoryManager) WithTx(ctx context.Context, fn func(ctx context.Context, repos RepositoryManager) error) error {
	return m.db.Transaction(func(tx *gorm.DB) error {
		return fn(ctx, NewGormRepositoryManager(tx))
	})
}

// Ping checks database connectivity
func (m *GormRepositoryManager) Ping(ctx context.Context) error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (m *GormRepositoryManager) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
