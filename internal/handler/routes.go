package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/FieldDesk/agent-provisioning-service/internal/cache"
	"github.com/FieldDesk/agent-provisioning-service/internal/config"
	"github.com/FieldDesk/agent-provisioning-service/internal/events"
	"github.com/FieldDesk/agent-provisioning-service/internal/provider"
	"github.com/FieldDesk/agent-provisioning-service/internal/repository"
	"github.com/FieldDesk/agent-provisioning-service/internal/services/knowledge"
	"github.com/FieldDesk/agent-provisioning-service/internal/services/provisioning"
	"github.com/FieldDesk/agent-provisioning-service/pkg/logger"
	"github.com/FieldDesk/agent-provisioning-service/pkg/redis"
	"github.com/FieldDesk/agent-provisioning-service/pkg/telephony"
	"github.com/FieldDesk/agent-provisioning-service/pkg/usage"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// HandlerManager creates all services and handlers and wires routes.
type HandlerManager struct {
	config      *config.Config
	repoManager repository.RepositoryManager
	eventBus    events.Bus
	lifecycle   *events.LifecycleTracker
	poller      *knowledge.Poller

	agentHandler     *AgentHandler
	knowledgeHandler *KnowledgeHandler
	voiceHandler     *VoiceHandler
	usageHandler     *UsageHandler
}

// NewHandlerManager creates and initializes all handlers and services
func NewHandlerManager(cfg *config.Config) (*HandlerManager, error) {
	// Initialize database connection
	repoManager, err := repository.NewRepositoryManager()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize repository manager: %w", err)
	}

	var redisService redis.RedisServiceInterface
	if svc, err := redis.NewRedisService(&redis.RedisConfig{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}); err != nil {
		// The usage monitor treats a missing cache as a miss, so boot
		// continues without redis.
		logger.Base().Warn("Redis unavailable, caching disabled", zap.Error(err))
	} else {
		redisService = svc
	}

	providerClient := provider.NewClient(cfg.ProviderBaseURL, cfg.ProviderAPIKey)
	numberService := telephony.NewNumberService(cfg.TwilioAccountSID, cfg.TwilioAuthToken)

	eventBus := events.NewBus()
	eventBus.Use(events.LoggingMiddleware)
	lifecycle := events.NewLifecycleTracker(eventBus)

	provisioningSvc := provisioning.NewService(repoManager, providerClient, numberService)
	provisioningSvc.SetEventBus(eventBus)
	knowledgeMgr := knowledge.NewManager(repoManager, providerClient)
	knowledgeMgr.SetEventBus(eventBus)
	usageMonitor := usage.NewMonitor(cfg.UsageBaseURL, redisService)
	voiceCatalog := cache.NewVoiceCatalog(redisService, 15*time.Minute)

	// Disabled unless configured; ingestion status otherwise advances only
	// on explicit refresh reads.
	var poller *knowledge.Poller
	if cfg.KBPollIntervalSeconds > 0 {
		poller = knowledge.NewPoller(knowledgeMgr, time.Duration(cfg.KBPollIntervalSeconds)*time.Second)
		poller.Start()
	}

	return &HandlerManager{
		config:           cfg,
		repoManager:      repoManager,
		eventBus:         eventBus,
		lifecycle:        lifecycle,
		poller:           poller,
		agentHandler:     NewAgentHandler(repoManager, provisioningSvc),
		knowledgeHandler: NewKnowledgeHandler(knowledgeMgr),
		voiceHandler:     NewVoiceHandler(repoManager, providerClient, voiceCatalog, eventBus),
		usageHandler:     NewUsageHandler(usageMonitor),
	}, nil
}

// Close releases long-lived resources held by the manager.
func (hm *HandlerManager) Close() error {
	if hm.poller != nil {
		hm.poller.Stop()
	}
	if err := hm.eventBus.Close(); err != nil {
		logger.Base().Warn("event bus close failed", zap.Error(err))
	}
	return hm.repoManager.Close()
}

// SetupAllRoutes registers every route with middleware applied.
func (hm *HandlerManager) SetupAllRoutes(router *mux.Router) {
	router.HandleFunc("/health", hm.handleHealth).Methods("GET")

	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(RecoveryMiddleware(hm.eventBus))
	apiRouter.Use(LoggingMiddleware)
	apiRouter.Use(ValidationMiddleware)

	// Agent configuration and provisioning
	apiRouter.HandleFunc("/tenants/{tenantId}/agent", hm.agentHandler.GetProfile).Methods("GET")
	apiRouter.HandleFunc("/tenants/{tenantId}/agent/draft", hm.agentHandler.SaveDraft).Methods("PUT")
	apiRouter.HandleFunc("/tenants/{tenantId}/agent/activate", hm.agentHandler.Activate).Methods("POST")
	apiRouter.HandleFunc("/tenants/{tenantId}/agent/retry", hm.agentHandler.Retry).Methods("POST")
	apiRouter.HandleFunc("/tenants/{tenantId}/agent", hm.agentHandler.Update).Methods("PATCH")
	apiRouter.HandleFunc("/tenants/{tenantId}/agent/pause", hm.agentHandler.Pause).Methods("POST")
	apiRouter.HandleFunc("/tenants/{tenantId}/agent/resume", hm.agentHandler.Resume).Methods("POST")
	apiRouter.HandleFunc("/tenants/{tenantId}/agent/last-attempt", hm.agentHandler.LastAttempt).Methods("GET")
	apiRouter.HandleFunc("/tenants/{tenantId}/agent/lifecycle", hm.handleLifecycle).Methods("GET")

	// Knowledge bases
	apiRouter.HandleFunc("/tenants/{tenantId}/knowledge-bases", hm.knowledgeHandler.List).Methods("GET")
	apiRouter.HandleFunc("/tenants/{tenantId}/knowledge-bases", hm.knowledgeHandler.Create).Methods("POST")
	apiRouter.HandleFunc("/tenants/{tenantId}/knowledge-bases/attach", hm.knowledgeHandler.Attach).Methods("POST")
	apiRouter.HandleFunc("/knowledge-bases/{kbId}/sources", hm.knowledgeHandler.AddSource).Methods("POST")
	apiRouter.HandleFunc("/knowledge-bases/{kbId}/status", hm.knowledgeHandler.RefreshStatus).Methods("GET")
	apiRouter.HandleFunc("/knowledge-bases/{kbId}", hm.knowledgeHandler.Delete).Methods("DELETE")

	// Voice catalog and selection
	apiRouter.HandleFunc("/tenants/{tenantId}/voices", hm.voiceHandler.List).Methods("GET")
	apiRouter.HandleFunc("/tenants/{tenantId}/voices/{voiceId}/preview", hm.voiceHandler.Preview).Methods("POST")
	apiRouter.HandleFunc("/tenants/{tenantId}/voices/select", hm.voiceHandler.Select).Methods("POST")

	// Usage
	apiRouter.HandleFunc("/tenants/{tenantId}/usage", hm.usageHandler.Get).Methods("GET")
}

func (hm *HandlerManager) handleLifecycle(w http.ResponseWriter, r *http.Request) {
	tenantID := mux.Vars(r)["tenantId"]
	state, ok := hm.lifecycle.Snapshot(tenantID)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no lifecycle events recorded for tenant"})
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (hm *HandlerManager) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := hm.repoManager.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
