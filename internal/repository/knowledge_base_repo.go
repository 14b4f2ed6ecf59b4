package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/FieldDesk/agent-provisioning-service/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormKnowledgeBaseRepository implements KnowledgeBaseRepository using GORM
type GormKnowledgeBaseRepository struct {
	db *gorm.DB
}

// NewGormKnowledgeBaseRepository creates a new GORM knowledge base repository
func NewGormKnowledgeBaseRepository(db *gorm.DB) *GormKnowledgeBaseRepository {
	return &GormKnowledgeBaseRepository{db: db}
}

// Create persists a new local knowledge base record
func (r *GormKnowledgeBaseRepository) Create(ctx context.Context, kb *domain.KnowledgeBase) (*domain.KnowledgeBase, error) {
	if kb.ID == "" {
		kb.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(kb).Error; err != nil {
		return nil, fmt.Errorf("failed to create knowledge base: %w", err)
	}
	return kb, nil
}

// GetByID retrieves a knowledge base by local id
func (r *GormKnowledgeBaseRepository) GetByID(ctx context.Context, id string) (*domain.KnowledgeBase, error) {
	var kb domain.KnowledgeBase
	if err := r.db.WithContext(ctx).First(&kb, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("knowledge base not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get knowledge base: %w", err)
	}
	return &kb, nil
}

// GetByRemoteID retrieves a knowledge base by the provider-side id
func (r *GormKnowledgeBaseRepository) GetByRemoteID(ctx context.Context, remoteKBID string) (*domain.KnowledgeBase, error) {
	var kb domain.KnowledgeBase
	if err := r.db.WithContext(ctx).First(&kb, "remote_kb_id = ?", remoteKBID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("knowledge base not found for remote id: %s", remoteKBID)
		}
		return nil, fmt.Errorf("failed to get knowledge base: %w", err)
	}
	return &kb, nil
}

// ListByTenantID retrieves all knowledge bases owned by a tenant
func (r *GormKnowledgeBaseRepository) ListByTenantID(ctx context.Context, tenantID string) ([]*domain.KnowledgeBase, error) {
	var kbs []*domain.KnowledgeBase
	if err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).
		Order("created_at ASC").Find(&kbs).Error; err != nil {
		return nil, fmt.Errorf("failed to list knowledge bases: %w", err)
	}
	return kbs, nil
}

// ListUnfinished retrieves every base still waiting on ingestion, across all
// tenants
func (r *GormKnowledgeBaseRepository) ListUnfinished(ctx context.Context) ([]*domain.KnowledgeBase, error) {
	var kbs []*domain.KnowledgeBase
	if err := r.db.WithContext(ctx).
		Where("status IN ?", []domain.KnowledgeBaseStatus{domain.KBStatusPending, domain.KBStatusInProgress}).
		Order("created_at ASC").Find(&kbs).Error; err != nil {
		return nil, fmt.Errorf("failed to list unfinished knowledge bases: %w", err)
	}
	return kbs, nil
}

// AppendSource adds a source entry to the ordered list
func (r *GormKnowledgeBaseRepository) AppendSource(ctx context.Context, id string, src domain.KnowledgeSource) (*domain.KnowledgeBase, error) {
	kb, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	kb.Sources = append(kb.Sources, src)
	if err := r.db.WithContext(ctx).Model(kb).Update("sources", kb.Sources).Error; err != nil {
		return nil, fmt.Errorf("failed to append knowledge source: %w", err)
	}
	return kb, nil
}

// SetStatus updates the ingestion status
func (r *GormKnowledgeBaseRepository) SetStatus(ctx context.Context, id string, status domain.KnowledgeBaseStatus) error {
	result := r.db.WithContext(ctx).Model(&domain.KnowledgeBase{}).
		Where("id = ?", id).Update("status", status)
	if result.Error != nil {
		return fmt.Errorf("failed to set knowledge base status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("knowledge base not found: %s", id)
	}
	return nil
}

// SetAttached marks the given bases as attached (or detached) to the agent
func (r *GormKnowledgeBaseRepository) SetAttached(ctx context.Context, ids []string, attached bool) error {
	if len(ids) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Model(&domain.KnowledgeBase{}).
		Where("id IN ?", ids).Update("attached", attached).Error; err != nil {
		return fmt.Errorf("failed to update attachment state: %w", err)
	}
	return nil
}

// Delete removes the local record
func (r *GormKnowledgeBaseRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&domain.KnowledgeBase{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete knowledge base: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("knowledge base not found: %s", id)
	}
	return nil
}
