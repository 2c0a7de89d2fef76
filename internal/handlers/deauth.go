package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/ssogate/saml-provider/internal/cache"
	"github.com/ssogate/saml-provider/internal/config"
	"github.com/ssogate/saml-provider/internal/metrics"
	"github.com/ssogate/saml-provider/internal/samlsso"
	"github.com/ssogate/saml-provider/pkg/security"
)

// DeauthHandler drives samlsso.Provider.Deauthenticate for both
// IdP-initiated Single Logout (GET /auth/saml/slo) and user-initiated
// logout (POST /auth/logout).
type DeauthHandler struct {
	cfg     config.Config
	cache   cache.Cache
	saml    *samlsso.Provider
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewDeauthHandler(cfg config.Config, c cache.Cache, saml *samlsso.Provider, logger *zap.Logger, m *metrics.Metrics) *DeauthHandler {
	return &DeauthHandler{cfg: cfg, cache: c, saml: saml, logger: logger, metrics: m}
}

func (h *DeauthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var priorState *samlsso.ProviderState
	cookie, err := security.GetSessionCookie(r, h.cfg.Server.CookieName)
	if err == nil {
		if data, cacheErr := h.cache.Get(r.Context(), "session:"+cookie.Value); cacheErr == nil {
			var rec samlsso.SessionRecord
			if json.Unmarshal(data, &rec) == nil {
				priorState = &rec.State
			}
		}
	}

	result := h.saml.Deauthenticate(r.Context(), r, priorState)

	switch {
	case result.Redirected():
		h.observe("redirected")
		if err == nil {
			_ = h.cache.Delete(r.Context(), "session:"+cookie.Value)
			http.SetCookie(w, security.ClearSessionCookie(h.cfg.Server))
		}
		h.logger.Info("logout complete")
		http.Redirect(w, r, result.RedirectURL(), http.StatusFound)

	case result.Failed():
		h.observe("failed")
		h.logger.Warn("logout failed", zap.Error(result.Error()))
		http.Error(w, result.Error().Error(), samlsso.StatusCodeOf(result.Error()))

	default: // NotHandled
		h.observe("not_handled")
		http.Redirect(w, r, h.cfg.Server.BasePath+"/auth/select", http.StatusFound)
	}
}

func (h *DeauthHandler) observe(outcome string) {
	if h.metrics == nil {
		return
	}
	h.metrics.DeauthOutcomes.WithLabelValues(outcome).Inc()
}
