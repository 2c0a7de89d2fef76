package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ssogate/saml-provider/internal/handlers"
	"github.com/ssogate/saml-provider/internal/middleware"
	"github.com/ssogate/saml-provider/internal/proxy"
)

func (s *Server) setupRoutes() (http.Handler, error) {
	mux := http.NewServeMux()

	csrfMiddleware := middleware.NewCSRFMiddleware(s.cache, s.logger)
	authGate := middleware.NewAuthGate(s.cfg.Server, s.cache, s.samlProvider, s.altProviders, s.logger, s.metrics)

	selectHandler, err := handlers.NewSelectHandler(s.cfg, s.cache, s.altProviders, csrfMiddleware, s.logger)
	if err != nil {
		return nil, err
	}

	callbackHandler := handlers.NewCallbackHandler(s.cfg, s.cache, s.altProviders, s.logger)
	deauthHandler := handlers.NewDeauthHandler(s.cfg, s.cache, s.samlProvider, s.logger, s.metrics)
	healthHandler := handlers.NewHealthHandler(s.cfg, s.cache, s.logger)

	reverseProxy, err := proxy.NewReverseProxy(s.cfg.Backend, s.cfg.SAML.HeaderMappings, s.logger, s.metrics)
	if err != nil {
		return nil, err
	}

	mux.HandleFunc("/auth/select", selectHandler.ServeHTTP)
	mux.HandleFunc("/auth/select/logo", selectHandler.ServeLogo)

	for id, provider := range s.altProviders {
		if provider.Type() != "oidc" {
			continue
		}
		loginPath := "/auth/oidc/" + id + "/login"
		callbackPath := "/auth/oidc/" + id + "/callback"

		mux.HandleFunc(loginPath, func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, s.cfg.Server.BasePath+"/auth/select", http.StatusFound)
		})
		mux.HandleFunc(callbackPath, callbackHandler.HandleOIDCCallback(id))
	}

	// The gateway's own SAML handshake runs entirely through AuthGate, since
	// samlsso.Provider.Authenticate distinguishes the login redirect from the
	// ACS callback by inspecting the request itself.
	mux.Handle("/auth/saml/login", authGate.Gate(redirectHome(s.cfg.Server.BasePath)))
	mux.Handle("/auth/saml/acs", authGate.Gate(redirectHome(s.cfg.Server.BasePath)))

	mux.Handle("/auth/saml/slo", deauthHandler)
	mux.Handle("/auth/logout", csrfMiddleware.ValidateCSRF(deauthHandler))

	if s.spMetadata != nil {
		metadataHandler := handlers.NewMetadataHandler(s.spMetadata)
		mux.Handle("/auth/saml/metadata", metadataHandler)
	}

	mux.HandleFunc("/health", healthHandler.ServeHTTP)

	if s.cfg.Metrics.Enable {
		mux.Handle(s.cfg.Metrics.Path, promhttp.Handler())
	}

	mux.Handle("/", authGate.Gate(reverseProxy))

	handler := middleware.Recovery(s.logger)(
		middleware.Logging(s.logger)(
			addSecurityHeaders(mux),
		),
	)

	return handler, nil
}

// redirectHome is used after a successful SAML handshake leg. AuthGate
// never reaches this handler on a redirect or failure result, only once the
// session cookie has already been established.
func redirectHome(basePath string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, basePath+"/", http.StatusFound)
	})
}

func addSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		next.ServeHTTP(w, r)
	})
}
