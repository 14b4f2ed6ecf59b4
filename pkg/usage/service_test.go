package usage

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/FieldDesk/agent-provisioning-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBannerFor_Thresholds(t *testing.T) {
	tests := []struct {
		name    string
		used    int64
		include int64
		want    Banner
	}{
		{"no usage", 0, 100, BannerNone},
		{"below warning", 79, 100, BannerNone},
		{"warning boundary", 80, 100, BannerWarning},
		{"above warning", 85, 100, BannerWarning},
		{"blocking boundary", 100, 100, BannerBlocking},
		{"over plan", 120, 100, BannerBlocking},
		{"zero plan", 0, 0, BannerNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counter := &domain.UsageCounter{MinutesUsed: tt.used, MinutesIncluded: tt.include}
			assert.Equal(t, tt.want, BannerFor(counter))
		})
	}
}

func TestPercent_ClampedAt100(t *testing.T) {
	assert.InDelta(t, 85.0, Percent(&domain.UsageCounter{MinutesUsed: 85, MinutesIncluded: 100}), 0.001)
	assert.InDelta(t, 100.0, Percent(&domain.UsageCounter{MinutesUsed: 120, MinutesIncluded: 100}), 0.001)
	assert.Zero(t, Percent(&domain.UsageCounter{MinutesUsed: 5, MinutesIncluded: 0}))
	assert.Zero(t, Percent(nil))
}

func TestFetch_ReadsBackingService(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		fmt.Fprint(w, `{"minutes_used": 42, "minutes_included": 300}`)
	}))
	defer server.Close()

	m := NewMonitor(server.URL, nil)
	counter, err := m.Fetch(context.Background(), "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, "/usage/v1/minutes/tenant-1", gotPath)
	assert.Equal(t, int64(42), counter.MinutesUsed)
	assert.Equal(t, int64(300), counter.MinutesIncluded)
}

func TestFetch_ErrorOnUpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "billing backend down", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	m := NewMonitor(server.URL, nil)
	_, err := m.Fetch(context.Background(), "tenant-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestFetch_RequiresTenant(t *testing.T) {
	m := NewMonitor("http://localhost:0", nil)
	_, err := m.Fetch(context.Background(), "")
	assert.Error(t, err)
}
