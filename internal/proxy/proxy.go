// Package proxy forwards authenticated requests to the backend
// identity-aware cluster service, injecting identity headers derived from
// the samlsso.User the gate attached to the request context.
package proxy

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/ssogate/saml-provider/internal/config"
	"github.com/ssogate/saml-provider/internal/metrics"
	"github.com/ssogate/saml-provider/internal/middleware"
)

type ReverseProxy struct {
	proxy          *httputil.ReverseProxy
	cfg            config.BackendConfig
	logger         *zap.Logger
	headerMappings map[string]string
	metrics        *metrics.Metrics
}

func NewReverseProxy(cfg config.BackendConfig, headerMappings map[string]string, logger *zap.Logger, m *metrics.Metrics) (*ReverseProxy, error) {
	backendURL, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, err
	}

	proxy := httputil.NewSingleHostReverseProxy(backendURL)

	originalDirector := proxy.Director
	proxy.Director = func(req *http.Request) {
		originalDirector(req)
		req.Host = backendURL.Host
		req.URL.Scheme = backendURL.Scheme
		req.URL.Host = backendURL.Host
	}

	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Error("proxy error",
			zap.Error(err),
			zap.String("backend", backendURL.String()),
			zap.String("path", r.URL.Path),
		)
		if m != nil {
			m.ProxyRequests.WithLabelValues("error").Inc()
		}
		http.Error(w, "Bad Gateway", http.StatusBadGateway)
	}

	if m != nil {
		proxy.ModifyResponse = func(resp *http.Response) error {
			m.ProxyRequests.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()
			return nil
		}
	}

	return &ReverseProxy{
		proxy:          proxy,
		cfg:            cfg,
		logger:         logger,
		headerMappings: headerMappings,
		metrics:        m,
	}, nil
}

func (rp *ReverseProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if altCtx, ok := middleware.GetAltSession(r.Context()); ok {
		InjectAltHeaders(r, altCtx.Session, altCtx.Provider)
		rp.forward(w, r, altCtx.Session.ID)
		return
	}

	user, ok := middleware.GetUser(r.Context())
	if !ok {
		rp.logger.Error("no user in context")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	InjectHeaders(r, user, rp.headerMappings)
	rp.forward(w, r, user.ID)
}

func (rp *ReverseProxy) forward(w http.ResponseWriter, r *http.Request, identity string) {
	if rp.cfg.PreserveHost {
		r.Host = r.Header.Get("X-Forwarded-Host")
		if r.Host == "" {
			r.Host = r.Header.Get("Host")
		}
	}

	rp.logger.Debug("proxying request",
		zap.String("path", r.URL.Path),
		zap.String("backend", rp.cfg.URL),
		zap.String("identity", identity),
	)

	rp.proxy.ServeHTTP(w, r)
}
