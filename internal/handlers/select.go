package handlers

import (
	"embed"
	"encoding/json"
	"html/template"
	"net/http"

	"go.uber.org/zap"

	"github.com/ssogate/saml-provider/internal/altproviders"
	"github.com/ssogate/saml-provider/internal/cache"
	"github.com/ssogate/saml-provider/internal/config"
	"github.com/ssogate/saml-provider/internal/middleware"
)

//go:embed templates/*
var templatesFS embed.FS

// SelectHandler renders the alternate-provider chooser page (spec's
// "chain of alternate authentication providers" that runs alongside the
// SAML gateway). It never handles the gateway's own SAML flow, which runs
// through middleware.AuthGate instead.
type SelectHandler struct {
	cfg       config.Config
	cache     cache.Cache
	providers map[string]altproviders.Provider
	csrf      *middleware.CSRFMiddleware
	logger    *zap.Logger
	template  *template.Template
}

func NewSelectHandler(cfg config.Config, cache cache.Cache, providers map[string]altproviders.Provider, csrf *middleware.CSRFMiddleware, logger *zap.Logger) (*SelectHandler, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/select.html")
	if err != nil {
		return nil, err
	}

	return &SelectHandler{
		cfg:       cfg,
		cache:     cache,
		providers: providers,
		csrf:      csrf,
		logger:    logger,
		template:  tmpl,
	}, nil
}

type SelectPageData struct {
	Providers     []ProviderInfo
	CSRFToken     string
	PageTitle     string
	GradientStart string
	GradientEnd   string
	LogoURL       string
	SAMLLoginURL  string
}

type ProviderInfo struct {
	ID   string
	Name string
	Type string
}

func (h *SelectHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleGet(w, r)
	case http.MethodPost:
		h.handlePost(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *SelectHandler) initiateAuthForProvider(w http.ResponseWriter, r *http.Request, provider altproviders.Provider) {
	redirectURL := h.cfg.Server.BaseURL + h.cfg.Server.BasePath + "/auth/oidc/" + provider.ID() + "/callback"

	authRedirect, err := provider.InitiateAuth(r.Context(), redirectURL)
	if err != nil {
		h.logger.Error("failed to initiate auth", zap.String("provider", provider.ID()), zap.Error(err))
		http.Error(w, "Failed to initiate authentication", http.StatusInternalServerError)
		return
	}

	if authRedirect.CacheKey != "" && authRedirect.CacheData != nil {
		var data []byte
		switch v := authRedirect.CacheData.(type) {
		case []byte:
			data = v
		default:
			data, err = json.Marshal(v)
			if err != nil {
				h.logger.Error("failed to marshal cache data", zap.Error(err))
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}
		}

		if err := h.cache.Set(r.Context(), authRedirect.CacheKey, data, authRedirect.CacheTTL); err != nil {
			h.logger.Error("failed to cache auth state", zap.Error(err))
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
	}

	http.Redirect(w, r, authRedirect.URL, http.StatusFound)
}

func (h *SelectHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	csrfToken, err := h.csrf.GenerateCSRFToken(r.Context())
	if err != nil {
		h.logger.Error("failed to generate CSRF token", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	providers := make([]ProviderInfo, 0, len(h.providers))
	for _, provider := range h.providers {
		providers = append(providers, ProviderInfo{
			ID:   provider.ID(),
			Name: provider.Name(),
			Type: provider.Type(),
		})
	}

	logoURL := ""
	if h.cfg.UI.LogoPath != "" {
		logoURL = h.cfg.Server.BasePath + "/auth/select/logo"
	}

	data := SelectPageData{
		Providers:     providers,
		CSRFToken:     csrfToken,
		PageTitle:     h.cfg.UI.Title,
		GradientStart: h.cfg.UI.GradientStart,
		GradientEnd:   h.cfg.UI.GradientEnd,
		LogoURL:       logoURL,
		SAMLLoginURL:  h.cfg.Server.BasePath + "/auth/saml/login",
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.template.Execute(w, data); err != nil {
		h.logger.Error("failed to render template", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *SelectHandler) handlePost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}

	providerID := r.FormValue("provider")
	if providerID == "" {
		http.Error(w, "Provider is required", http.StatusBadRequest)
		return
	}

	provider, exists := h.providers[providerID]
	if !exists {
		http.Error(w, "Invalid provider", http.StatusBadRequest)
		return
	}

	h.initiateAuthForProvider(w, r, provider)
}

func (h *SelectHandler) ServeLogo(w http.ResponseWriter, r *http.Request) {
	if h.cfg.UI.LogoPath == "" {
		http.NotFound(w, r)
		return
	}

	http.ServeFile(w, r, h.cfg.UI.LogoPath)
}
