package voice

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/FieldDesk/agent-provisioning-service/internal/domain"
	"github.com/FieldDesk/agent-provisioning-service/internal/provider"
	"github.com/FieldDesk/agent-provisioning-service/internal/repository"
	"github.com/FieldDesk/agent-provisioning-service/pkg/logger"
	"go.uber.org/zap"
)

// PreviewPlayer plays a voice sample. Start returns once playback has begun;
// done is invoked exactly once when playback finishes or fails. Stop halts
// an in-flight playback, after which done must still fire.
type PreviewPlayer interface {
	Start(url string, done func(err error)) error
	Stop()
}

// Selector manages the voice catalog and preview playback for one operator
// session. The preview channel is the only mutually-exclusive resource in
// this subsystem: at most one voice is ever playing, enforced
// stop-before-start. Instances are independent so tests (and concurrent
// sessions) do not share playback state.
// CatalogCache is a shared catalog layer consulted before the provider.
type CatalogCache interface {
	Get(ctx context.Context) ([]domain.VoiceProfile, bool)
	Set(ctx context.Context, voices []domain.VoiceProfile)
}

type Selector struct {
	repo     repository.RepositoryManager
	provider provider.API
	player   PreviewPlayer
	shared   CatalogCache

	mu        sync.Mutex
	catalog   []domain.VoiceProfile
	fetchedAt time.Time
	playingID string
	playGen   uint64
}

// catalogTTL bounds how long a session reuses its fetched catalog.
const catalogTTL = 15 * time.Minute

// NewSelector creates a voice selector for one session.
func NewSelector(repo repository.RepositoryManager, providerAPI provider.API, player PreviewPlayer) *Selector {
	return &Selector{
		repo:     repo,
		provider: providerAPI,
		player:   player,
	}
}

// SetCatalogCache attaches a shared catalog cache consulted on session misses.
func (s *Selector) SetCatalogCache(shared CatalogCache) {
	s.shared = shared
}

// List returns the voice catalog, fetching it from the provider once per
// session and serving later calls from memory.
func (s *Selector) List(ctx context.Context) ([]domain.VoiceProfile, error) {
	s.mu.Lock()
	if s.catalog != nil && time.Since(s.fetchedAt) < catalogTTL {
		cached := s.catalog
		s.mu.Unlock()
		return cached, nil
	}
	s.mu.Unlock()

	if s.shared != nil {
		if voices, ok := s.shared.Get(ctx); ok {
			s.mu.Lock()
			s.catalog = voices
			s.fetchedAt = time.Now()
			s.mu.Unlock()
			return voices, nil
		}
	}

	voices, err := s.provider.ListVoices(ctx)
	if err != nil {
		return nil, &domain.RemoteProvisioningError{Op: "list voices", Message: err.Error()}
	}

	s.mu.Lock()
	s.catalog = voices
	s.fetchedAt = time.Now()
	s.mu.Unlock()

	if s.shared != nil {
		s.shared.Set(ctx, voices)
	}
	return voices, nil
}

// Filter narrows a catalog client-side. Pure, no remote calls: gender and
// provider match exactly (case-insensitive), search matches free text across
// name, accent, age and provider label.
func Filter(voices []domain.VoiceProfile, f domain.VoiceFilter) []domain.VoiceProfile {
	search := strings.ToLower(strings.TrimSpace(f.Search))

	out := make([]domain.VoiceProfile, 0, len(voices))
	for _, v := range voices {
		if f.Gender != "" && !strings.EqualFold(v.Gender, f.Gender) {
			continue
		}
		if f.Provider != "" && !strings.EqualFold(v.Provider, f.Provider) {
			continue
		}
		if search != "" && !matchesSearch(v, search) {
			continue
		}
		out = append(out, v)
	}
	return out
}

func matchesSearch(v domain.VoiceProfile, search string) bool {
	haystack := strings.ToLower(strings.Join([]string{v.Name, v.Accent, v.Age, v.Provider}, " "))
	return strings.Contains(haystack, search)
}

// Preview toggles sample playback for a voice. Starting a new preview stops
// any in-flight one first; previewing the currently-playing voice stops it
// instead of restarting. Completion or error clears the playing marker.
func (s *Selector) Preview(ctx context.Context, voiceID string) error {
	voices, err := s.List(ctx)
	if err != nil {
		return err
	}

	var profile *domain.VoiceProfile
	for i := range voices {
		if voices[i].ID == voiceID {
			profile = &voices[i]
			break
		}
	}
	if profile == nil {
		return &domain.ValidationError{Field: "voice_id", Message: "unknown voice: " + voiceID}
	}
	if profile.PreviewURL == "" {
		return &domain.ValidationError{Field: "voice_id", Message: "voice has no preview sample"}
	}

	s.mu.Lock()
	if s.playingID == voiceID {
		// Toggle: stop the running preview.
		s.playGen++
		s.playingID = ""
		s.mu.Unlock()
		s.player.Stop()
		return nil
	}
	wasPlaying := s.playingID != ""
	s.playGen++
	gen := s.playGen
	s.playingID = voiceID
	s.mu.Unlock()

	if wasPlaying {
		s.player.Stop()
	}

	// The callback captures the generation, not the voice id. A delayed
	// completion from a cancelled stream of the same voice would otherwise
	// clear the marker for the playback that superseded it.
	err = s.player.Start(profile.PreviewURL, func(playErr error) {
		s.mu.Lock()
		if s.playGen == gen {
			s.playingID = ""
		}
		s.mu.Unlock()
		if playErr != nil {
			logger.Base().Warn("voice preview playback failed",
				zap.String("voice_id", voiceID), zap.Error(playErr))
		}
	})
	if err != nil {
		s.mu.Lock()
		if s.playGen == gen {
			s.playGen++
			s.playingID = ""
		}
		s.mu.Unlock()
		return &domain.RemoteProvisioningError{Op: "preview voice", Message: err.Error()}
	}
	return nil
}

// Playing returns the id of the voice currently previewing, or "".
func (s *Selector) Playing() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playingID
}

// Select applies a voice to the tenant's hosted agent. Only permitted once
// the tenant is provisioned; no network call is issued otherwise. On success
// only currentVoiceId changes on the profile.
func (s *Selector) Select(ctx context.Context, tenantID, voiceID string) error {
	if voiceID == "" {
		return &domain.ValidationError{Field: "voice_id", Message: "voice id is required"}
	}

	profile, err := s.repo.AgentProfile().GetByTenantID(ctx, tenantID)
	if err != nil {
		return &domain.LocalPersistenceError{Op: "select voice", Err: err}
	}
	if !profile.Provisioned() {
		return domain.ErrProvisionFirst
	}

	if err := s.provider.SetVoice(ctx, *profile.RemoteAgentID, voiceID); err != nil {
		return &domain.RemoteSyncError{Op: "set voice", Message: err.Error()}
	}

	if err := s.repo.AgentProfile().SetCurrentVoice(ctx, tenantID, voiceID); err != nil {
		return &domain.LocalPersistenceError{Op: "select voice", Err: err}
	}
	return nil
}
