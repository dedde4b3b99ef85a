package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/harishm17/study-buddy-sub001/internal/config"
	"github.com/harishm17/study-buddy-sub001/internal/llm"
	"github.com/harishm17/study-buddy-sub001/internal/prompts"
	"github.com/harishm17/study-buddy-sub001/internal/storage"
	"github.com/harishm17/study-buddy-sub001/internal/utils"
)

const (
	serviceName  = "studybuddy"
	checkTimeout = 3 * time.Second
)

type ReadinessCheck struct {
	Status  string `json:"status"` // "ok" | "failed"
	Message string `json:"message,omitempty"`
}

type ReadinessResponse struct {
	Status  string                    `json:"status"` // "ready" | "not_ready"
	Service string                    `json:"service"`
	Checks  map[string]ReadinessCheck `json:"checks"`
}

type HealthHandler struct {
	db       *gorm.DB
	provider llm.Provider
	prompts  prompts.PromptProvider
	store    storage.ObjectStore
	redis    *redis.Client
	config   *config.Config
}

// NewHealthHandler takes every dependency readiness depends on. provider may be nil in
// development, where content is mocked; rdb is nil when Redis is not configured.
func NewHealthHandler(db *gorm.DB, provider llm.Provider, pp prompts.PromptProvider, store storage.ObjectStore, rdb *redis.Client, cfg *config.Config) *HealthHandler {
	return &HealthHandler{db: db, provider: provider, prompts: pp, store: store, redis: rdb, config: cfg}
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	version := "dev"
	if h.config != nil && h.config.Version != "" {
		version = h.config.Version
	}
	utils.JSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": serviceName,
		"version": version,
	})
}

func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	checks := map[string]ReadinessCheck{
		"database": h.checkDatabase(ctx),
		"provider": h.checkProvider(),
		"prompts":  h.checkPrompts(),
		"storage":  h.checkStorage(ctx),
	}
	if h.redis != nil {
		checks["redis"] = result(h.redis.Ping(ctx).Err())
	}

	response := ReadinessResponse{Status: "ready", Service: serviceName, Checks: checks}
	for _, c := range checks {
		if c.Status != "ok" {
			response.Status = "not_ready"
			utils.JSON(w, http.StatusServiceUnavailable, response)
			return
		}
	}
	utils.JSON(w, http.StatusOK, response)
}

func (h *HealthHandler) checkDatabase(ctx context.Context) ReadinessCheck {
	if h.db == nil {
		return ReadinessCheck{Status: "failed", Message: "Database not initialized"}
	}
	sqlDB, err := h.db.DB()
	if err != nil {
		return result(err)
	}
	return result(sqlDB.PingContext(ctx))
}

func (h *HealthHandler) checkProvider() ReadinessCheck {
	if h.provider != nil {
		return ReadinessCheck{Status: "ok", Message: h.provider.Name()}
	}
	if h.config != nil && h.config.Environment == config.EnvDevelopment {
		return ReadinessCheck{Status: "ok", Message: "mock content"}
	}
	return ReadinessCheck{Status: "failed", Message: "AI provider not initialized"}
}

func (h *HealthHandler) checkPrompts() ReadinessCheck {
	if h.prompts == nil {
		return ReadinessCheck{Status: "failed", Message: "Prompt manager not initialized"}
	}
	if len(h.prompts.Names()) == 0 {
		return ReadinessCheck{Status: "failed", Message: "No prompt templates loaded"}
	}
	return ReadinessCheck{Status: "ok"}
}

func (h *HealthHandler) checkStorage(ctx context.Context) ReadinessCheck {
	if h.store == nil {
		return ReadinessCheck{Status: "failed", Message: "Object store not initialized"}
	}
	return result(h.store.Ping(ctx))
}

func result(err error) ReadinessCheck {
	if err != nil {
		return ReadinessCheck{Status: "failed", Message: err.Error()}
	}
	return ReadinessCheck{Status: "ok"}
}
