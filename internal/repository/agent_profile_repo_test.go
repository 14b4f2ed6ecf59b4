package repository

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/FieldDesk/agent-provisioning-service/internal/domain"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	glog "gorm.io/gorm/logger"
)

// setupTestDB creates an in-memory database with silent logger to suppress
// SQL logs
func setupTestDB(t *testing.T) *gorm.DB {
	silentLogger := glog.New(
		log.New(io.Discard, "", log.LstdFlags),
		glog.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  glog.Silent,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: silentLogger,
	})
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}

	if err := db.AutoMigrate(&domain.AgentProfile{}, &domain.KnowledgeBase{}); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	return db
}

func strPtr(s string) *string { return &s }

func TestEnsure_CreatesEmptyProfile(t *testing.T) {
	repo := NewGormAgentProfileRepository(setupTestDB(t))
	ctx := context.Background()

	profile, err := repo.Ensure(ctx, "tenant-1")
	require.NoError(t, err)
	assert.NotEmpty(t, profile.ID)
	assert.Equal(t, "tenant-1", profile.TenantID)
	assert.Equal(t, domain.StatusUnconfigured, profile.ProvisioningStatus)
	assert.Equal(t, domain.ToneProfessional, profile.Tone)
	assert.False(t, profile.Provisioned())

	// Second Ensure returns the same record
	again, err := repo.Ensure(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, profile.ID, again.ID)
}

func TestUpdate_PartialFields(t *testing.T) {
	repo := NewGormAgentProfileRepository(setupTestDB(t))
	ctx := context.Background()

	_, err := repo.Ensure(ctx, "tenant-1")
	require.NoError(t, err)

	_, err = repo.Update(ctx, "tenant-1", &domain.UpdateAgentProfileRequest{
		AgentName:    strPtr("Riley"),
		BusinessName: strPtr("Beacon Plumbing"),
		Memory:       &domain.MemoryFlagsData{Enabled: true, CallHistory: true},
	})
	require.NoError(t, err)

	got, err := repo.GetByTenantID(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, "Riley", got.AgentName)
	assert.Equal(t, "Beacon Plumbing", got.BusinessName)
	require.NotNil(t, got.Memory)
	assert.True(t, got.Memory.Enabled)
	assert.True(t, got.Memory.CallHistory)
	assert.False(t, got.Memory.CustomerNotes)
	// Untouched fields stay at defaults
	assert.Equal(t, domain.ToneProfessional, got.Tone)
	assert.Empty(t, got.Industry)
}

func TestUpdate_EmptyRequestIsNoop(t *testing.T) {
	repo := NewGormAgentProfileRepository(setupTestDB(t))
	ctx := context.Background()

	_, err := repo.Ensure(ctx, "tenant-1")
	require.NoError(t, err)

	got, err := repo.Update(ctx, "tenant-1", &domain.UpdateAgentProfileRequest{})
	require.NoError(t, err)
	assert.Equal(t, "tenant-1", got.TenantID)
}

func TestUpdate_UnknownTenant(t *testing.T) {
	repo := NewGormAgentProfileRepository(setupTestDB(t))

	_, err := repo.Update(context.Background(), "nope", &domain.UpdateAgentProfileRequest{
		AgentName: strPtr("x"),
	})
	assert.Error(t, err)
}

func TestSetSetupProgress_CompletedIsSticky(t *testing.T) {
	repo := NewGormAgentProfileRepository(setupTestDB(t))
	ctx := context.Background()

	_, err := repo.Ensure(ctx, "tenant-1")
	require.NoError(t, err)

	require.NoError(t, repo.SetSetupProgress(ctx, "tenant-1", 2, false))
	require.NoError(t, repo.SetSetupProgress(ctx, "tenant-1", 3, true))
	// A later save without the completed flag never clears it
	require.NoError(t, repo.SetSetupProgress(ctx, "tenant-1", 3, false))

	got, err := repo.GetByTenantID(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, 3, got.SetupStep)
	assert.True(t, got.SetupCompleted)
}

func TestSetProvisioned_StoresIdentifiersAndClearsError(t *testing.T) {
	repo := NewGormAgentProfileRepository(setupTestDB(t))
	ctx := context.Background()

	_, err := repo.Ensure(ctx, "tenant-1")
	require.NoError(t, err)
	require.NoError(t, repo.SetProvisioningStatus(ctx, "tenant-1", domain.StatusFailed, "area code 415 exhausted"))

	require.NoError(t, repo.SetProvisioned(ctx, "tenant-1", "agent_abc", "+14155550123"))

	got, err := repo.GetByTenantID(ctx, "tenant-1")
	require.NoError(t, err)
	assert.True(t, got.Provisioned())
	assert.Equal(t, "agent_abc", *got.RemoteAgentID)
	assert.Equal(t, "+14155550123", *got.PhoneNumber)
	assert.Equal(t, domain.StatusActive, got.ProvisioningStatus)
	assert.Empty(t, got.ProvisioningError)
}

func TestSetProvisioningStatus_KeepsMessageVerbatim(t *testing.T) {
	repo := NewGormAgentProfileRepository(setupTestDB(t))
	ctx := context.Background()

	_, err := repo.Ensure(ctx, "tenant-1")
	require.NoError(t, err)

	msg := "no numbers available in area code 212, try 646"
	require.NoError(t, repo.SetProvisioningStatus(ctx, "tenant-1", domain.StatusFailed, msg))

	got, err := repo.GetByTenantID(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, got.ProvisioningStatus)
	assert.Equal(t, msg, got.ProvisioningError)
}

func TestSetProvisioningStatus_NotFound(t *testing.T) {
	repo := NewGormAgentProfileRepository(setupTestDB(t))

	err := repo.SetProvisioningStatus(context.Background(), "nope", domain.StatusActive, "")
	assert.Error(t, err)
}

func TestSetCurrentVoice(t *testing.T) {
	repo := NewGormAgentProfileRepository(setupTestDB(t))
	ctx := context.Background()

	_, err := repo.Ensure(ctx, "tenant-1")
	require.NoError(t, err)

	require.NoError(t, repo.SetCurrentVoice(ctx, "tenant-1", "voice-11"))

	got, err := repo.GetByTenantID(ctx, "tenant-1")
	require.NoError(t, err)
	require.NotNil(t, got.CurrentVoiceID)
	assert.Equal(t, "voice-11", *got.CurrentVoiceID)
}
