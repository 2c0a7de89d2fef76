package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ssogate/saml-provider/internal/altproviders"
	"github.com/ssogate/saml-provider/internal/cache"
	"github.com/ssogate/saml-provider/internal/config"
	"github.com/ssogate/saml-provider/internal/metrics"
	"github.com/ssogate/saml-provider/internal/samlsso"
	"github.com/ssogate/saml-provider/pkg/security"
)

type contextKey string

const (
	UserContextKey       contextKey = "user"
	AltSessionContextKey contextKey = "alt_session"
)

// altSessionRefreshWindow mirrors the near-expiry threshold the alternate
// provider chooser has always used for OIDC: a session within this window
// of its token's expiry is refreshed rather than rejected outright.
const altSessionRefreshWindow = 5 * time.Minute

// AltSessionContext is what Gate attaches to the request context when an
// alternate-provider (OIDC today) session cookie validates; it carries
// enough for the reverse proxy to inject that provider's own header
// mappings without reaching back into the provider map itself.
type AltSessionContext struct {
	Session  *altproviders.Session
	Provider altproviders.Provider
}

// AuthGate is the HTTP front door for both the gateway's own SAML algorithm
// and any alternate providers configured alongside it. It first looks for a
// validated alternate-provider session; failing that, it loads the prior
// ProviderState from the SAML session cookie, runs Authenticate, and
// translates every AuthenticationResult variant into the matching HTTP
// behavior.
type AuthGate struct {
	cfg          config.ServerConfig
	cache        cache.Cache
	saml         *samlsso.Provider
	altProviders map[string]altproviders.Provider
	logger       *zap.Logger
	metrics      *metrics.Metrics
}

func NewAuthGate(cfg config.ServerConfig, c cache.Cache, saml *samlsso.Provider, altProviders map[string]altproviders.Provider, logger *zap.Logger, m *metrics.Metrics) *AuthGate {
	return &AuthGate{cfg: cfg, cache: c, saml: saml, altProviders: altProviders, logger: logger, metrics: m}
}

func (g *AuthGate) sessionKey(cookieValue string) string {
	return "session:" + cookieValue
}

func (g *AuthGate) loadRecord(ctx context.Context, cookieValue string) *samlsso.SessionRecord {
	data, err := g.cache.Get(ctx, g.sessionKey(cookieValue))
	if err != nil {
		return nil
	}
	var rec samlsso.SessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		g.logger.Warn("failed to unmarshal session record", zap.Error(err))
		return nil
	}
	return &rec
}

func (g *AuthGate) storeRecord(ctx context.Context, cookieValue string, rec samlsso.SessionRecord) {
	data, err := json.Marshal(rec)
	if err != nil {
		g.logger.Error("failed to marshal session record", zap.Error(err))
		return
	}
	if err := g.cache.Set(ctx, g.sessionKey(cookieValue), data, g.cfg.SessionTTL); err != nil {
		g.logger.Error("failed to store session record", zap.Error(err))
	}
}

func (g *AuthGate) observe(start time.Time, result samlsso.AuthenticationResult) {
	if g.metrics == nil {
		return
	}
	outcome := "not_handled"
	switch {
	case result.Succeeded():
		outcome = "succeeded"
	case result.Redirected():
		outcome = "redirected"
	case result.Failed():
		outcome = "failed"
	}
	g.metrics.AuthOutcomes.WithLabelValues(outcome).Inc()
	g.metrics.AuthDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}

// Gate wraps next with the SAML authentication algorithm: on success the
// authenticated samlsso.User is attached to the request context; on
// redirect/failure it writes the HTTP response itself and next is not
// called. An alternate-provider session, established by a chooser-page
// login, grants access the same way without ever touching the SAML
// algorithm.
func (g *AuthGate) Gate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if altCtx, ok := g.resolveAltSession(r); ok {
			ctx := context.WithValue(r.Context(), AltSessionContextKey, altCtx)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		cookie, hasCookie := security.GetSessionCookie(r, g.cfg.CookieName)

		var priorState *samlsso.ProviderState
		var record *samlsso.SessionRecord
		if hasCookie == nil {
			record = g.loadRecord(r.Context(), cookie.Value)
			if record != nil {
				priorState = &record.State
			}
		}

		start := time.Now()
		result := g.saml.Authenticate(r.Context(), r, priorState)
		g.observe(start, result)

		switch {
		case result.Succeeded():
			cookieValue := ""
			if hasCookie == nil {
				cookieValue = cookie.Value
			} else {
				cookieValue = security.NewSessionID()
				security.SetSessionCookie(w, g.cfg, cookieValue)
			}

			newState := samlsso.ProviderState{}
			if priorState != nil {
				newState = *priorState
			}
			if st := result.State(); st != nil {
				newState = *st
			}
			g.storeRecord(r.Context(), cookieValue, samlsso.SessionRecord{
				User:  *result.User(),
				State: newState,
			})

			ctx := context.WithValue(r.Context(), UserContextKey, result.User())
			next.ServeHTTP(w, r.WithContext(ctx))

		case result.Redirected():
			if st := result.State(); st != nil {
				cookieValue := ""
				if hasCookie == nil {
					cookieValue = cookie.Value
				} else {
					cookieValue = security.NewSessionID()
					security.SetSessionCookie(w, g.cfg, cookieValue)
				}
				g.storeRecord(r.Context(), cookieValue, samlsso.SessionRecord{State: *st})
			}
			http.Redirect(w, r, result.RedirectURL(), http.StatusFound)

		case result.Failed():
			g.logger.Warn("authentication failed", zap.Error(result.Error()))
			http.Error(w, result.Error().Error(), samlsso.StatusCodeOf(result.Error()))

		default: // NotHandled
			http.Redirect(w, r, g.cfg.BasePath+"/auth/select", http.StatusFound)
		}
	})
}

// resolveAltSession looks for the alternate-provider session cookie and, if
// present, validates (or refreshes) the session it names against the
// provider that issued it. It never touches the gateway's own SAML cookie
// or cache namespace.
func (g *AuthGate) resolveAltSession(r *http.Request) (*AltSessionContext, bool) {
	if len(g.altProviders) == 0 {
		return nil, false
	}

	cookie, err := security.GetSessionCookie(r, g.cfg.CookieName+"-alt")
	if err != nil {
		return nil, false
	}

	data, err := g.cache.Get(r.Context(), "altsession:"+cookie.Value)
	if err != nil {
		return nil, false
	}

	var session altproviders.Session
	if err := json.Unmarshal(data, &session); err != nil {
		g.logger.Warn("failed to unmarshal alt session", zap.Error(err))
		return nil, false
	}

	provider, exists := g.altProviders[session.ProviderID]
	if !exists {
		g.logger.Warn("alt session references unknown provider", zap.String("provider_id", session.ProviderID))
		return nil, false
	}

	if err := provider.ValidateSession(r.Context(), &session); err != nil {
		if session.ProviderType != "oidc" || time.Until(session.TokenExpiry) >= altSessionRefreshWindow {
			g.logger.Warn("alt session invalid", zap.Error(err))
			return nil, false
		}

		refreshed, err := provider.RefreshSession(r.Context(), &session)
		if err != nil {
			g.logger.Warn("alt session refresh failed", zap.Error(err))
			return nil, false
		}
		session = *refreshed
		g.storeAltSession(r.Context(), cookie.Value, session)
	}

	return &AltSessionContext{Session: &session, Provider: provider}, true
}

func (g *AuthGate) storeAltSession(ctx context.Context, cookieValue string, session altproviders.Session) {
	data, err := json.Marshal(session)
	if err != nil {
		g.logger.Error("failed to marshal alt session", zap.Error(err))
		return
	}

	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		ttl = g.cfg.SessionTTL
	}
	if err := g.cache.Set(ctx, "altsession:"+cookieValue, data, ttl); err != nil {
		g.logger.Error("failed to store alt session", zap.Error(err))
	}
}

// GetUser retrieves the authenticated SAML user attached by Gate.
func GetUser(ctx context.Context) (*samlsso.User, bool) {
	user, ok := ctx.Value(UserContextKey).(*samlsso.User)
	return user, ok
}

// GetAltSession retrieves the alternate-provider session attached by Gate.
func GetAltSession(ctx context.Context) (*AltSessionContext, bool) {
	altCtx, ok := ctx.Value(AltSessionContextKey).(*AltSessionContext)
	return altCtx, ok
}
