package usage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/FieldDesk/agent-provisioning-service/internal/domain"
	"github.com/FieldDesk/agent-provisioning-service/pkg/logger"
	"github.com/FieldDesk/agent-provisioning-service/pkg/redis"
	"go.uber.org/zap"
)

// Banner is the threshold signal derived from a usage counter.
type Banner string

const (
	BannerNone     Banner = "none"
	BannerWarning  Banner = "warning"  // >= 80% of included minutes
	BannerBlocking Banner = "blocking" // >= 100% of included minutes
)

const snapshotTTL = 5 * time.Minute

// Monitor reads minutes-used vs minutes-included for the active billing
// period from the backing usage service. It never writes usage; enforcement
// lives on the provider side, this component only reflects it.
type Monitor struct {
	BaseURL      string
	Client       *http.Client
	redisService redis.RedisServiceInterface
}

// NewMonitor creates a usage monitor. redisService may be nil; snapshots are
// then fetched from the backing service on every call.
func NewMonitor(baseURL string, redisService redis.RedisServiceInterface) *Monitor {
	return &Monitor{
		BaseURL: baseURL,
		Client: &http.Client{
			Timeout: 30 * time.Second,
		},
		redisService: redisService,
	}
}

// Fetch returns the usage counter for the tenant's active period, preferring
// a cached snapshot. A cache failure is treated as a miss, never an error.
func (m *Monitor) Fetch(ctx context.Context, tenantID string) (*domain.UsageCounter, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenant id is required")
	}

	if m.redisService != nil {
		key := m.redisService.GenerateKey(redis.USAGE_SNAPSHOT, tenantID)
		val, err := m.redisService.GetValue(ctx, key)
		if err != nil && err != redis.ErrKeyNotExist {
			logger.Base().Warn("failed to read usage snapshot from cache",
				zap.String("tenant_id", tenantID), zap.Error(err))
		}
		if val != "" {
			var counter domain.UsageCounter
			if err := json.Unmarshal([]byte(val), &counter); err == nil {
				return &counter, nil
			}
			logger.Base().Warn("failed to unmarshal cached usage snapshot, refetching",
				zap.String("tenant_id", tenantID))
		}
	}

	counter, err := m.fetchFromService(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	if m.redisService != nil {
		data, err := json.Marshal(counter)
		if err == nil {
			key := m.redisService.GenerateKey(redis.USAGE_SNAPSHOT, tenantID)
			if err := m.redisService.SetValue(ctx, key, string(data), snapshotTTL); err != nil {
				logger.Base().Warn("failed to cache usage snapshot",
					zap.String("tenant_id", tenantID), zap.Error(err))
			}
		}
	}

	return counter, nil
}

func (m *Monitor) fetchFromService(ctx context.Context, tenantID string) (*domain.UsageCounter, error) {
	url := fmt.Sprintf("%s/usage/v1/minutes/%s", m.BaseURL, tenantID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("usage request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var counter domain.UsageCounter
	if err := json.Unmarshal(body, &counter); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &counter, nil
}

// Percent returns display percent, clamped at 100.
func Percent(counter *domain.UsageCounter) float64 {
	if counter == nil || counter.MinutesIncluded <= 0 {
		return 0
	}
	pct := float64(counter.MinutesUsed) / float64(counter.MinutesIncluded) * 100
	if pct > 100 {
		return 100
	}
	return pct
}

// BannerFor maps a usage counter onto its threshold banner. The blocking
// banner does not disable calling here; the provider enforces that.
func BannerFor(counter *domain.UsageCounter) Banner {
	if counter == nil || counter.MinutesIncluded <= 0 {
		return BannerNone
	}
	ratio := float64(counter.MinutesUsed) / float64(counter.MinutesIncluded)
	switch {
	case ratio >= 1.0:
		return BannerBlocking
	case ratio >= 0.8:
		return BannerWarning
	default:
		return BannerNone
	}
}
