package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/FieldDesk/agent-provisioning-service/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormAgentProfileRepository implements AgentProfileRepository using GORM
type GormAgentProfileRepository struct {
	db *gorm.DB
}

// NewGormAgentProfileRepository creates a new GORM agent profile repository
func NewGormAgentProfileRepository(db *gorm.DB) *GormAgentProfileRepository {
	return &GormAgentProfileRepository{db: db}
}

// Ensure returns the tenant's profile, creating an empty record on first use.
func (r *GormAgentProfileRepository) Ensure(ctx context.Context, tenantID string) (*domain.AgentProfile, error) {
	profile, err := r.GetByTenantID(ctx, tenantID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	profile = &domain.AgentProfile{
		ID:                 uuid.New().String(),
		TenantID:           tenantID,
		Tone:               domain.ToneProfessional,
		ProvisioningStatus: domain.StatusUnconfigured,
	}
	if err := r.db.WithContext(ctx).Create(profile).Error; err != nil {
		return nil, fmt.Errorf("failed to create agent profile: %w", err)
	}
	return profile, nil
}

// GetByTenantID retrieves the profile for a tenant
func (r *GormAgentProfileRepository) GetByTenantID(ctx context.Context, tenantID string) (*domain.AgentProfile, error) {
	var profile domain.AgentProfile
	if err := r.db.WithContext(ctx).First(&profile, "tenant_id = ?", tenantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("agent profile not found for tenant %s: %w", tenantID, err)
		}
		return nil, fmt.Errorf("failed to get agent profile: %w", err)
	}
	return &profile, nil
}

// Update applies a partial configuration write. Nil request fields are left
// untouched.
func (r *GormAgentProfileRepository) Update(ctx context.Context, tenantID string, req *domain.UpdateAgentProfileRequest) (*domain.AgentProfile, error) {
	var profile domain.AgentProfile
	if err := r.db.WithContext(ctx).First(&profile, "tenant_id = ?", tenantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("agent profile not found for tenant %s: %w", tenantID, err)
		}
		return nil, fmt.Errorf("failed to find agent profile: %w", err)
	}

	updates := make(map[string]interface{})

	if req.AgentName != nil {
		updates["agent_name"] = *req.AgentName
	}
	if req.BusinessName != nil {
		updates["business_name"] = *req.BusinessName
	}
	if req.Industry != nil {
		updates["industry"] = *req.Industry
	}
	if req.BusinessDescription != nil {
		updates["business_description"] = *req.BusinessDescription
	}
	if req.OwnerContact != nil {
		updates["owner_contact"] = *req.OwnerContact
	}
	if req.Tone != nil {
		updates["tone"] = *req.Tone
	}
	if req.CallHandling != nil {
		updates["call_handling"] = *req.CallHandling
	}
	if req.Memory != nil {
		updates["memory"] = *req.Memory
	}
	if req.Booking != nil {
		updates["booking"] = *req.Booking
	}
	if req.Prompt != nil {
		updates["prompt"] = *req.Prompt
	}

	if len(updates) == 0 {
		return &profile, nil // No changes
	}

	if err := r.db.WithContext(ctx).Model(&profile).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update agent profile: %w", err)
	}

	return &profile, nil
}

// SetSetupProgress records the wizard position. Completed is sticky once set.
func (r *GormAgentProfileRepository) SetSetupProgress(ctx context.Context, tenantID string, step int, completed bool) error {
	updates := map[string]interface{}{"setup_step": step}
	if completed {
		updates["setup_completed"] = true
	}

	result := r.db.WithContext(ctx).Model(&domain.AgentProfile{}).
		Where("tenant_id = ?", tenantID).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to set setup progress: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("agent profile not found for tenant %s", tenantID)
	}
	return nil
}

// SetProvisioningStatus updates the lifecycle status. The error message is
// stored verbatim; pass "" to clear it.
func (r *GormAgentProfileRepository) SetProvisioningStatus(ctx context.Context, tenantID string, status domain.ProvisioningStatus, errMsg string) error {
	result := r.db.WithContext(ctx).Model(&domain.AgentProfile{}).
		Where("tenant_id = ?", tenantID).
		Updates(map[string]interface{}{
			"provisioning_status": status,
			"provisioning_error":  errMsg,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to set provisioning status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("agent profile not found for tenant %s", tenantID)
	}
	return nil
}

// SetProvisioned stores the remote resource identifiers returned by a
// successful provisioning call and moves the profile to active.
func (r *GormAgentProfileRepository) SetProvisioned(ctx context.Context, tenantID string, remoteAgentID, phoneNumber string) error {
	result := r.db.WithContext(ctx).Model(&domain.AgentProfile{}).
		Where("tenant_id = ?", tenantID).
		Updates(map[string]interface{}{
			"remote_agent_id":     remoteAgentID,
			"phone_number":        phoneNumber,
			"provisioning_status": domain.StatusActive,
			"provisioning_error":  "",
		})
	if result.Error != nil {
		return fmt.Errorf("failed to store provisioned identifiers: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("agent profile not found for tenant %s", tenantID)
	}
	return nil
}

// SetCurrentVoice records the selected voice id and nothing else.
func (r *GormAgentProfileRepository) SetCurrentVoice(ctx context.Context, tenantID string, voiceID string) error {
	result := r.db.WithContext(ctx).Model(&domain.AgentProfile{}).
		Where("tenant_id = ?", tenantID).Update("current_voice_id", voiceID)
	if result.Error != nil {
		return fmt.Errorf("failed to set current voice: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("agent profile not found for tenant %s", tenantID)
	}
	return nil
}
