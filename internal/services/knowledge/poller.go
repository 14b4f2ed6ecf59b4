package knowledge

import (
	"context"
	"sync"
	"time"

	"github.com/FieldDesk/agent-provisioning-service/internal/domain"
	"github.com/FieldDesk/agent-provisioning-service/pkg/logger"
	"go.uber.org/zap"
)

// defaultPollInterval is how often the poller sweeps unfinished bases.
const defaultPollInterval = 30 * time.Second

// Poller periodically refreshes ingestion status for every base that is
// still pending or in progress. It is a convenience on top of the explicit
// RefreshStatus call, so the UI sees progress without the operator clicking
// refresh. Failures are logged and retried on the next sweep.
type Poller struct {
	manager  *Manager
	interval time.Duration

	ctx        context.Context
	cancel     context.CancelFunc
	isStarted  bool
	startMutex sync.Mutex
}

// NewPoller creates a poller. interval <= 0 selects the default.
func NewPoller(manager *Manager, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Poller{
		manager:  manager,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the background sweep goroutine. Calling Start twice is a
// no-op.
func (p *Poller) Start() {
	p.startMutex.Lock()
	defer p.startMutex.Unlock()

	if p.isStarted {
		return
	}
	p.isStarted = true

	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-p.ctx.Done():
				return
			case <-ticker.C:
				p.sweep()
			}
		}
	}()

	logger.Base().Info("Knowledge base poller started", zap.Duration("interval", p.interval))
}

// Stop halts the background sweep.
func (p *Poller) Stop() {
	p.cancel()
}

// sweep refreshes every unfinished base once. Each refresh gets its own
// timeout so one slow provider call cannot stall the sweep indefinitely.
func (p *Poller) sweep() {
	ctx, cancel := context.WithTimeout(p.ctx, p.interval)
	defer cancel()

	kbs, err := p.manager.repo.KnowledgeBase().ListUnfinished(ctx)
	if err != nil {
		logger.Base().Warn("Knowledge base sweep failed to list", zap.Error(err))
		return
	}

	for _, kb := range kbs {
		refreshed, err := p.manager.RefreshStatus(ctx, kb.ID)
		if err != nil {
			logger.Base().Warn("Knowledge base refresh failed",
				zap.String("kb_id", kb.ID), zap.Error(err))
			continue
		}
		if refreshed.Status != kb.Status {
			logger.Base().Info("Knowledge base ingestion progressed",
				zap.String("kb_id", kb.ID),
				zap.String("from", string(kb.Status)),
				zap.String("to", string(refreshed.Status)))
		}
		if refreshed.Status == domain.KBStatusError {
			logger.Base().Warn("Knowledge base ingestion failed",
				zap.String("kb_id", kb.ID))
		}
	}
}
