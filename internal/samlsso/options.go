package samlsso

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// ProviderOptions is the immutable configuration a Provider is built from.
// Nothing about it changes once New returns; the provider instance is
// stateless and safe to share across concurrent requests.
type ProviderOptions struct {
	Protocol string
	Hostname string
	Port     int
	BasePath string
	Client   Backend
	Log      *zap.Logger

	// StrategyDecisions is optional; when set, each credential-extraction
	// strategy records its outcome against it.
	StrategyDecisions *prometheus.CounterVec

	// RedirectCapable decides whether req should receive a redirect rather
	// than an error body; delegated to the caller since the real
	// determination (AJAX/XHR probe vs. browser navigation) lives outside
	// this package. Defaults to CanRedirect.
	RedirectCapable func(req *http.Request) bool
}

func (o ProviderOptions) redirectCapable(req *http.Request) bool {
	if o.RedirectCapable != nil {
		return o.RedirectCapable(req)
	}
	return CanRedirect(req)
}

func (o ProviderOptions) acsURL() string {
	return fmt.Sprintf("%s://%s:%d%s/api/security/v1/saml", o.Protocol, o.Hostname, o.Port, o.BasePath)
}

func (o ProviderOptions) recordDecision(strategy, outcome string) {
	if o.StrategyDecisions == nil {
		return
	}
	o.StrategyDecisions.WithLabelValues(strategy, outcome).Inc()
}
