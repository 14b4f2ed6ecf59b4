package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/FieldDesk/agent-provisioning-service/pkg/logger"
	"go.uber.org/zap"
)

// EventHandler represents a function that handles events
type EventHandler func(event *TenantEvent)

// EventMiddleware represents middleware that can wrap event handlers
type EventMiddleware func(next EventHandler) EventHandler

// Bus defines the interface for event bus operations
type Bus interface {
	Publish(eventType EventType, tenantID string, data interface{}) error
	PublishEvent(event *TenantEvent) error
	Subscribe(eventType EventType, handler EventHandler)
	Use(middleware EventMiddleware)
	Close() error
	GetStats() BusStats
}

// BusStats contains statistics about the event bus
type BusStats struct {
	TotalEvents     int64            `json:"total_events"`
	EventsByType    map[string]int64 `json:"events_by_type"`
	SubscriberCount map[string]int   `json:"subscriber_count"`
}

// DefaultBus is the default in-process implementation of Bus
type DefaultBus struct {
	subscribers map[EventType][]EventHandler
	middleware  []EventMiddleware
	mutex       sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
	stats       BusStats
	statsMutex  sync.Mutex
}

// NewBus creates a new event bus instance
func NewBus() Bus {
	ctx, cancel := context.WithCancel(context.Background())

	return &DefaultBus{
		subscribers: make(map[EventType][]EventHandler),
		middleware:  make([]EventMiddleware, 0),
		ctx:         ctx,
		cancel:      cancel,
		stats: BusStats{
			EventsByType:    make(map[string]int64),
			SubscriberCount: make(map[string]int),
		},
	}
}

// Publish publishes an event with the given type, tenant and data
func (b *DefaultBus) Publish(eventType EventType, tenantID string, data interface{}) error {
	event := NewTenantEvent(eventType, tenantID)
	if data != nil {
		event.Data = data
	}
	return b.PublishEvent(event)
}

// PublishEvent publishes a complete event to all subscribers asynchronously
func (b *DefaultBus) PublishEvent(event *TenantEvent) error {
	select {
	case <-b.ctx.Done():
		return fmt.Errorf("event bus is closed")
	default:
	}

	b.mutex.RLock()
	handlers, exists := b.subscribers[event.Type]
	if !exists {
		b.mutex.RUnlock()
		return nil
	}
	handlersCopy := make([]EventHandler, len(handlers))
	copy(handlersCopy, handlers)
	middleware := b.middleware
	b.mutex.RUnlock()

	b.updateStats(event.Type)

	for _, handler := range handlersCopy {
		wrapped := handler
		for i := len(middleware) - 1; i >= 0; i-- {
			wrapped = middleware[i](wrapped)
		}
		go func(h EventHandler) {
			defer func() {
				if r := recover(); r != nil {
					logger.Base().Error("Event handler panic",
						zap.String("type", string(event.Type)),
						zap.String("tenant_id", event.TenantID),
						zap.Any("panic", r))
				}
			}()
			h(event)
		}(wrapped)
	}
	return nil
}

// Subscribe registers a handler for the given event type
func (b *DefaultBus) Subscribe(eventType EventType, handler EventHandler) {
	b.mutex.Lock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
	count := len(b.subscribers[eventType])
	b.mutex.Unlock()

	b.statsMutex.Lock()
	b.stats.SubscriberCount[string(eventType)] = count
	b.statsMutex.Unlock()
}

// Use adds middleware applied to every handler on publish
func (b *DefaultBus) Use(middleware EventMiddleware) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.middleware = append(b.middleware, middleware)
}

// Close stops the bus; later publishes return an error
func (b *DefaultBus) Close() error {
	b.cancel()
	return nil
}

// GetStats returns a snapshot of bus statistics
func (b *DefaultBus) GetStats() BusStats {
	b.statsMutex.Lock()
	defer b.statsMutex.Unlock()

	snapshot := BusStats{
		TotalEvents:     b.stats.TotalEvents,
		EventsByType:    make(map[string]int64, len(b.stats.EventsByType)),
		SubscriberCount: make(map[string]int, len(b.stats.SubscriberCount)),
	}
	for k, v := range b.stats.EventsByType {
		snapshot.EventsByType[k] = v
	}
	for k, v := range b.stats.SubscriberCount {
		snapshot.SubscriberCount[k] = v
	}
	return snapshot
}

func (b *DefaultBus) updateStats(eventType EventType) {
	b.statsMutex.Lock()
	defer b.statsMutex.Unlock()
	b.stats.TotalEvents++
	b.stats.EventsByType[string(eventType)]++
}

// LoggingMiddleware provides logging for all events
func LoggingMiddleware(next EventHandler) EventHandler {
	return func(event *TenantEvent) {
		if event.IsError() {
			logger.Base().Warn("Processing event",
				zap.String("type", string(event.Type)),
				zap.String("tenant_id", event.TenantID),
				zap.Error(event.Error))
		} else {
			logger.Base().Info("Processing event",
				zap.String("type", string(event.Type)),
				zap.String("tenant_id", event.TenantID))
		}
		next(event)
	}
}
