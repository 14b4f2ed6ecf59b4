package events

import (
	"sync"
	"time"
)

// failureEvents are the event types that represent something going wrong for
// a tenant. The tracker keeps the most recent one for operator display.
var failureEvents = map[EventType]bool{
	AgentProvisioningFail: true,
	AgentConfigSyncFailed: true,
	KnowledgeBaseError:    true,
	HandlerPanic:          true,
}

// TenantLifecycleState is the accumulated lifecycle view of one tenant,
// built from the events flowing over the bus.
type TenantLifecycleState struct {
	TenantID      string           `json:"tenant_id"`
	LastEvent     EventType        `json:"last_event"`
	LastEventAt   time.Time        `json:"last_event_at"`
	LastFailure   string           `json:"last_failure,omitempty"`
	LastFailureAt time.Time        `json:"last_failure_at,omitempty"`
	EventCounts   map[string]int64 `json:"event_counts"`
}

// LifecycleTracker subscribes to every lifecycle event type and maintains a
// per-tenant state map. It is the bus's standing consumer; ad-hoc
// subscribers can still attach alongside it.
type LifecycleTracker struct {
	bus     Bus
	mutex   sync.RWMutex
	tenants map[string]*TenantLifecycleState
}

// NewLifecycleTracker creates a tracker and registers its subscriptions on
// the given bus.
func NewLifecycleTracker(bus Bus) *LifecycleTracker {
	tracker := &LifecycleTracker{
		bus:     bus,
		tenants: make(map[string]*TenantLifecycleState),
	}
	tracker.setupEventSubscriptions()
	return tracker
}

func (t *LifecycleTracker) setupEventSubscriptions() {
	for _, eventType := range []EventType{
		AgentProvisioned,
		AgentProvisioningFail,
		AgentConfigSynced,
		AgentConfigSyncFailed,
		AgentPaused,
		AgentResumed,
		KnowledgeBaseCreated,
		KnowledgeBaseComplete,
		KnowledgeBaseError,
		KnowledgeBaseAttached,
		VoiceSelected,
		HandlerPanic,
	} {
		t.bus.Subscribe(eventType, t.record)
	}
}

// record folds one event into the tenant's state.
func (t *LifecycleTracker) record(event *TenantEvent) {
	if event.TenantID == "" {
		return
	}

	t.mutex.Lock()
	defer t.mutex.Unlock()

	state, ok := t.tenants[event.TenantID]
	if !ok {
		state = &TenantLifecycleState{
			TenantID:    event.TenantID,
			EventCounts: make(map[string]int64),
		}
		t.tenants[event.TenantID] = state
	}

	state.LastEvent = event.Type
	state.LastEventAt = event.Timestamp
	state.EventCounts[string(event.Type)]++

	if failureEvents[event.Type] {
		state.LastFailure = failureText(event)
		state.LastFailureAt = event.Timestamp
	}
}

// failureText extracts the most specific failure description the event
// carries.
func failureText(event *TenantEvent) string {
	if event.Error != nil {
		return event.Error.Error()
	}
	if data, ok := event.Data.(*ProvisioningEventData); ok && data.FailureReason != "" {
		return data.FailureReason
	}
	return string(event.Type)
}

// Snapshot returns a copy of the tenant's lifecycle state, or false when no
// event has been seen for the tenant.
func (t *LifecycleTracker) Snapshot(tenantID string) (*TenantLifecycleState, bool) {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	state, ok := t.tenants[tenantID]
	if !ok {
		return nil, false
	}

	out := *state
	out.EventCounts = make(map[string]int64, len(state.EventCounts))
	for k, v := range state.EventCounts {
		out.EventCounts[k] = v
	}
	return &out, true
}

// TenantCount returns how many tenants have produced at least one event.
func (t *LifecycleTracker) TenantCount() int {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	return len(t.tenants)
}
