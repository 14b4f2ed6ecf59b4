package voice

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/FieldDesk/agent-provisioning-service/internal/domain"
	"github.com/FieldDesk/agent-provisioning-service/internal/provider"
	"github.com/FieldDesk/agent-provisioning-service/internal/repository"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	glog "gorm.io/gorm/logger"
)

var testCatalog = []domain.VoiceProfile{
	{ID: "v1", Name: "Ava", Gender: "female", Accent: "american", Age: "young", Provider: "elevenlabs", PreviewURL: "https://cdn.example.com/v1.mp3"},
	{ID: "v2", Name: "Marcus", Gender: "male", Accent: "british", Age: "middle_aged", Provider: "elevenlabs", PreviewURL: "https://cdn.example.com/v2.mp3"},
	{ID: "v3", Name: "Noor", Gender: "female", Accent: "indian", Age: "young", Provider: "playht", PreviewURL: "https://cdn.example.com/v3.mp3"},
	{ID: "v4", Name: "Silent", Gender: "male", Accent: "american", Age: "old", Provider: "playht"},
}

// fakeAPI implements provider.API for voice flows.
type fakeAPI struct {
	listCalls     int
	setVoiceCalls int
	lastVoiceID   string
	setVoiceErr   error
}

func (f *fakeAPI) ListVoices(ctx context.Context) ([]domain.VoiceProfile, error) {
	f.listCalls++
	return testCatalog, nil
}

func (f *fakeAPI) SetVoice(ctx context.Context, agentID, voiceID string) error {
	f.setVoiceCalls++
	f.lastVoiceID = voiceID
	return f.setVoiceErr
}

func (f *fakeAPI) CreateAgent(ctx context.Context, req *provider.CreateAgentRequest) (*provider.CreateAgentResponse, error) {
	return nil, nil
}
func (f *fakeAPI) UpdateAgent(ctx context.Context, agentID string, req *provider.UpdateAgentRequest) error {
	return nil
}
func (f *fakeAPI) UpdateHostedPrompt(ctx context.Context, agentID string, req *provider.UpdateHostedPromptRequest) error {
	return nil
}
func (f *fakeAPI) SetAgentActive(ctx context.Context, agentID string, active bool) error { return nil }
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

// fakePlayer records playback commands and exposes the done callback so
// tests can finish playback deterministically.
type fakePlayer struct {
	started []string
	stops   int
	done    func(error)
}

func (p *fakePlayer) Start(url string, done func(err error)) error {
	p.started = append(p.started, url)
	p.done = done
	return nil
}

func (p *fakePlayer) Stop() { p.stops++ }

func setupSelector(t *testing.T) (*Selector, *fakeAPI, *fakePlayer, repository.RepositoryManager) {
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
	player := &fakePlayer{}
	return NewSelector(repoMgr, api, player), api, player, repoMgr
}

func TestList_FetchesOncePerSession(t *testing.T) {
	sel, api, _, _ := setupSelector(t)
	ctx := context.Background()

	first, err := sel.List(ctx)
	require.NoError(t, err)
	assert.Len(t, first, 4)

	_, err = sel.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, api.listCalls)
}

func TestFilter(t *testing.T) {
	tests := []struct {
		name   string
		filter domain.VoiceFilter
		want   []string
	}{
		{"no filter matches all", domain.VoiceFilter{}, []string{"v1", "v2", "v3", "v4"}},
		{"gender", domain.VoiceFilter{Gender: "female"}, []string{"v1", "v3"}},
		{"gender case insensitive", domain.VoiceFilter{Gender: "FEMALE"}, []string{"v1", "v3"}},
		{"provider", domain.VoiceFilter{Provider: "playht"}, []string{"v3", "v4"}},
		{"search accent", domain.VoiceFilter{Search: "british"}, []string{"v2"}},
		{"search name", domain.VoiceFilter{Search: "ava"}, []string{"v1"}},
		{"combined", domain.VoiceFilter{Gender: "female", Provider: "elevenlabs"}, []string{"v1"}},
		{"no match", domain.VoiceFilter{Search: "nonexistent"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filter(testCatalog, tt.filter)
			ids := make([]string, 0, len(got))
			for _, v := range got {
				ids = append(ids, v.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestPreview_SinglePlaybackChannel(t *testing.T) {
	sel, _, player, _ := setupSelector(t)
	ctx := context.Background()

	require.NoError(t, sel.Preview(ctx, "v1"))
	assert.Equal(t, "v1", sel.Playing())

	// Starting a second preview stops the first
	require.NoError(t, sel.Preview(ctx, "v2"))
	assert.Equal(t, "v2", sel.Playing())
	assert.Equal(t, 1, player.stops)
	assert.Equal(t, []string{"https://cdn.example.com/v1.mp3", "https://cdn.example.com/v2.mp3"}, player.started)
}

func TestPreview_ToggleStopsCurrentVoice(t *testing.T) {
	sel, _, player, _ := setupSelector(t)
	ctx := context.Background()

	require.NoError(t, sel.Preview(ctx, "v1"))
	require.NoError(t, sel.Preview(ctx, "v1"))
	assert.Empty(t, sel.Playing())
	assert.Equal(t, 1, player.stops)
	assert.Len(t, player.started, 1)
}

func TestPreview_CompletionClearsMarker(t *testing.T) {
	sel, _, player, _ := setupSelector(t)
	ctx := context.Background()

	require.NoError(t, sel.Preview(ctx, "v1"))
	player.done(nil)
	assert.Empty(t, sel.Playing())
}

func TestPreview_StaleCompletionKeepsNewerPlayback(t *testing.T) {
	sel, _, player, _ := setupSelector(t)
	ctx := context.Background()

	require.NoError(t, sel.Preview(ctx, "v1"))
	firstDone := player.done
	require.NoError(t, sel.Preview(ctx, "v2"))

	// The first preview finishing late must not clear the second's marker
	firstDone(nil)
	assert.Equal(t, "v2", sel.Playing())
}

func TestPreview_StaleCompletionOfSameVoiceKeepsReplay(t *testing.T) {
	sel, _, player, _ := setupSelector(t)
	ctx := context.Background()

	require.NoError(t, sel.Preview(ctx, "v1"))
	firstDone := player.done
	require.NoError(t, sel.Preview(ctx, "v2"))
	require.NoError(t, sel.Preview(ctx, "v1"))

	// The cancelled first stream played the same voice that is now playing
	// again. Its late completion belongs to an older playback and must not
	// clear the replay's marker.
	firstDone(nil)
	assert.Equal(t, "v1", sel.Playing())

	// The live playback's own completion still clears it.
	player.done(nil)
	assert.Empty(t, sel.Playing())
}

func TestPreview_UnknownVoice(t *testing.T) {
	sel, _, _, _ := setupSelector(t)

	err := sel.Preview(context.Background(), "v999")
	var vErr *domain.ValidationError
	require.ErrorAs(t, err, &vErr)
}

func TestPreview_VoiceWithoutSample(t *testing.T) {
	sel, _, player, _ := setupSelector(t)

	err := sel.Preview(context.Background(), "v4")
	var vErr *domain.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Empty(t, player.started)
}

func TestSelect_GatedUntilProvisioned(t *testing.T) {
	sel, api, _, repoMgr := setupSelector(t)
	ctx := context.Background()

	_, err := repoMgr.AgentProfile().Ensure(ctx, "tenant-1")
	require.NoError(t, err)

	err = sel.Select(ctx, "tenant-1", "v1")
	assert.ErrorIs(t, err, domain.ErrProvisionFirst)
	assert.Zero(t, api.setVoiceCalls, "no network call may be issued for an unprovisioned tenant")
}

func TestSelect_PushesRemoteThenPersistsLocally(t *testing.T) {
	sel, api, _, repoMgr := setupSelector(t)
	ctx := context.Background()

	_, err := repoMgr.AgentProfile().Ensure(ctx, "tenant-1")
	require.NoError(t, err)
	require.NoError(t, repoMgr.AgentProfile().SetProvisioned(ctx, "tenant-1", "agent_abc", "+14155550123"))

	require.NoError(t, sel.Select(ctx, "tenant-1", "v2"))
	assert.Equal(t, 1, api.setVoiceCalls)
	assert.Equal(t, "v2", api.lastVoiceID)

	profile, err := repoMgr.AgentProfile().GetByTenantID(ctx, "tenant-1")
	require.NoError(t, err)
	require.NotNil(t, profile.CurrentVoiceID)
	assert.Equal(t, "v2", *profile.CurrentVoiceID)
}

func TestSelect_RemoteFailureLeavesLocalUntouched(t *testing.T) {
	sel, api, _, repoMgr := setupSelector(t)
	ctx := context.Background()

	_, err := repoMgr.AgentProfile().Ensure(ctx, "tenant-1")
	require.NoError(t, err)
	require.NoError(t, repoMgr.AgentProfile().SetProvisioned(ctx, "tenant-1", "agent_abc", "+14155550123"))

	api.setVoiceErr = &provider.APIError{StatusCode: 502, Message: "gateway timeout"}
	err = sel.Select(ctx, "tenant-1", "v2")
	var sErr *domain.RemoteSyncError
	require.ErrorAs(t, err, &sErr)

	profile, err := repoMgr.AgentProfile().GetByTenantID(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Nil(t, profile.CurrentVoiceID)
}
