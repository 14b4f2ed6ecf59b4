package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/FieldDesk/agent-provisioning-service/internal/domain"
	"github.com/FieldDesk/agent-provisioning-service/pkg/logger"
	"github.com/FieldDesk/agent-provisioning-service/pkg/redis"
	"github.com/jinzhu/copier"
	"go.uber.org/zap"
)

// catalogKey is the shared redis key; the catalog is global, not per tenant.
const catalogKey = "all"

// VoiceCatalog is a thread-safe shared cache for the provider voice catalog.
// It layers an in-process copy over an optional redis snapshot so catalog
// fetches survive process restarts and are shared across pods. Reads return
// deep copies to prevent external modification.
type VoiceCatalog struct {
	redisService redis.RedisServiceInterface
	ttl          time.Duration

	mutex     sync.RWMutex
	voices    []domain.VoiceProfile
	fetchedAt time.Time
}

// NewVoiceCatalog creates a catalog cache. redisService may be nil; the cache
// is then process-local only.
func NewVoiceCatalog(redisService redis.RedisServiceInterface, ttl time.Duration) *VoiceCatalog {
	return &VoiceCatalog{
		redisService: redisService,
		ttl:          ttl,
	}
}

// Get returns the cached catalog and whether it was usable. A redis failure
// is treated as a miss, never an error.
func (c *VoiceCatalog) Get(ctx context.Context) ([]domain.VoiceProfile, bool) {
	c.mutex.RLock()
	if c.voices != nil && time.Since(c.fetchedAt) < c.ttl {
		voices := c.copyVoices(c.voices)
		c.mutex.RUnlock()
		return voices, true
	}
	c.mutex.RUnlock()

	if c.redisService == nil {
		return nil, false
	}

	key := c.redisService.GenerateKey(redis.VOICE_CATALOG, catalogKey)
	val, err := c.redisService.GetValue(ctx, key)
	if err != nil {
		if err != redis.ErrKeyNotExist {
			logger.Base().Warn("failed to read voice catalog from cache", zap.Error(err))
		}
		return nil, false
	}

	var voices []domain.VoiceProfile
	if err := json.Unmarshal([]byte(val), &voices); err != nil {
		logger.Base().Warn("failed to unmarshal cached voice catalog", zap.Error(err))
		return nil, false
	}

	c.mutex.Lock()
	c.voices = voices
	c.fetchedAt = time.Now()
	c.mutex.Unlock()
	return c.copyVoices(voices), true
}

// Set stores a freshly fetched catalog in memory and, when available, redis.
func (c *VoiceCatalog) Set(ctx context.Context, voices []domain.VoiceProfile) {
	c.mutex.Lock()
	c.voices = c.copyVoices(voices)
	c.fetchedAt = time.Now()
	c.mutex.Unlock()

	if c.redisService == nil {
		return
	}
	data, err := json.Marshal(voices)
	if err != nil {
		return
	}
	key := c.redisService.GenerateKey(redis.VOICE_CATALOG, catalogKey)
	if err := c.redisService.SetValue(ctx, key, string(data), c.ttl); err != nil {
		logger.Base().Warn("failed to cache voice catalog", zap.Error(err))
	}
}

// Len returns the number of cached voices (thread-safe read)
func (c *VoiceCatalog) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.voices)
}

// copyVoices deep copies the catalog so callers cannot mutate cached entries.
func (c *VoiceCatalog) copyVoices(voices []domain.VoiceProfile) []domain.VoiceProfile {
	out := make([]domain.VoiceProfile, 0, len(voices))
	if err := copier.CopyWithOption(&out, &voices, copier.Option{DeepCopy: true}); err != nil {
		logger.Base().Warn("failed to copy voice catalog", zap.Error(err))
		return append([]domain.VoiceProfile(nil), voices...)
	}
	return out
}
