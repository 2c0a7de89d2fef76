package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ssogate/saml-provider/internal/cache"
	"github.com/ssogate/saml-provider/internal/config"
)

type HealthHandler struct {
	cfg       config.Config
	cache     cache.Cache
	logger    *zap.Logger
	startTime time.Time
}

func NewHealthHandler(cfg config.Config, cache cache.Cache, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		cfg:       cfg,
		cache:     cache,
		logger:    logger,
		startTime: time.Now(),
	}
}

type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Cache   CacheHealth   `json:"cache"`
	Backend BackendHealth `json:"backend"`
}

type CacheHealth struct {
	Type   string `json:"type"`
	Status string `json:"status"`
}

type BackendHealth struct {
	Mode   string `json:"mode"`
	Status string `json:"status"`
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := HealthResponse{
		Status: "healthy",
		Uptime: time.Since(h.startTime).String(),
	}

	response.Cache.Type = h.cfg.Cache.Type
	if err := h.cache.Set(ctx, "health:check", []byte("ok"), time.Minute); err != nil {
		response.Cache.Status = "error: " + err.Error()
		response.Status = "degraded"
	} else {
		response.Cache.Status = "connected"
		_ = h.cache.Delete(ctx, "health:check")
	}

	response.Backend.Mode = h.cfg.Backend.Mode
	if h.cfg.Backend.Mode == "http" {
		resp, err := http.Get(h.cfg.Backend.URL)
		if err != nil {
			response.Backend.Status = "unreachable"
			response.Status = "degraded"
		} else {
			resp.Body.Close()
			response.Backend.Status = "reachable"
		}
	} else {
		response.Backend.Status = "local"
	}

	w.Header().Set("Content-Type", "application/json")
	if response.Status != "healthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed to encode health response", zap.Error(err))
	}
}
