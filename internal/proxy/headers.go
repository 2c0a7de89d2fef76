package proxy

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/ssogate/saml-provider/internal/altproviders"
	"github.com/ssogate/saml-provider/internal/samlsso"
)

// InjectHeaders translates the authenticated user's attributes into the
// backend-facing headers configured for the gateway, per spec §4.J.
func InjectHeaders(req *http.Request, user *samlsso.User, headerMappings map[string]string) {
	for claim, header := range headerMappings {
		value, exists := user.Attributes[claim]
		if !exists {
			continue
		}
		if headerValue := formatHeaderValue(value); headerValue != "" {
			req.Header.Set(header, headerValue)
		}
	}

	req.Header.Set("X-Auth-User-Id", user.ID)
}

// InjectAltHeaders does the same translation for an alternate provider's
// session, using that provider's own claim-to-header mappings rather than
// the gateway's SAML attribute mappings.
func InjectAltHeaders(req *http.Request, session *altproviders.Session, provider altproviders.Provider) {
	for claim, header := range provider.GetHeaderMappings() {
		value, exists := session.UserInfo[claim]
		if !exists {
			continue
		}
		if headerValue := formatHeaderValue(value); headerValue != "" {
			req.Header.Set(header, headerValue)
		}
	}

	req.Header.Set("X-Auth-Provider", session.ProviderID)
	req.Header.Set("X-Auth-Provider-Type", session.ProviderType)
	req.Header.Set("X-Auth-Session-Id", session.ID)
}

func formatHeaderValue(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case []string:
		return strings.Join(v, ",")
	case []interface{}:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if str, ok := item.(string); ok {
				parts = append(parts, str)
			} else {
				parts = append(parts, fmt.Sprintf("%v", item))
			}
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprintf("%v", v)
	}
}
