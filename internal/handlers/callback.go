package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ssogate/saml-provider/internal/altproviders"
	"github.com/ssogate/saml-provider/internal/cache"
	"github.com/ssogate/saml-provider/internal/config"
	"github.com/ssogate/saml-provider/pkg/security"
)

// CallbackHandler completes an alternate provider's login (currently OIDC
// only) and establishes a plain altprovider session cookie, distinct from
// the gateway's own samlsso.SessionRecord.
type CallbackHandler struct {
	cfg       config.Config
	cache     cache.Cache
	providers map[string]altproviders.Provider
	logger    *zap.Logger
}

func NewCallbackHandler(cfg config.Config, cache cache.Cache, providers map[string]altproviders.Provider, logger *zap.Logger) *CallbackHandler {
	return &CallbackHandler{
		cfg:       cfg,
		cache:     cache,
		providers: providers,
		logger:    logger,
	}
}

func (h *CallbackHandler) HandleOIDCCallback(providerID string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		provider, exists := h.providers[providerID]
		if !exists {
			h.logger.Error("provider not found", zap.String("provider_id", providerID))
			http.Error(w, "Invalid provider", http.StatusBadRequest)
			return
		}

		session, err := provider.HandleCallback(r.Context(), r)
		if err != nil {
			h.logger.Error("callback failed", zap.String("provider", providerID), zap.Error(err))
			http.Error(w, "Authentication failed: "+err.Error(), http.StatusUnauthorized)
			return
		}

		sessionID := uuid.New().String()
		session.ID = sessionID

		sessionData, err := json.Marshal(session)
		if err != nil {
			h.logger.Error("failed to marshal session", zap.Error(err))
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		ttl := time.Until(session.ExpiresAt)
		if err := h.cache.Set(r.Context(), "altsession:"+sessionID, sessionData, ttl); err != nil {
			h.logger.Error("failed to cache session", zap.Error(err))
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		cookie := security.CreateSessionCookie(h.cfg.Server, sessionID, ttl)
		cookie.Name = h.cfg.Server.CookieName + "-alt"
		http.SetCookie(w, cookie)

		h.logger.Info("alternate provider authentication successful",
			zap.String("provider", providerID),
			zap.String("session_id", sessionID),
		)

		http.Redirect(w, r, h.cfg.Server.BasePath+"/", http.StatusFound)
	}
}
