// Package altproviders implements the chain of alternate authentication
// providers offered on the /auth/select chooser page alongside the SAML
// gateway itself (see config.ProviderConfig). Today the only alternate
// provider type is OIDC; the interface leaves room for more without
// touching the selector or session handling.
package altproviders

import (
	"context"
	"net/http"
	"time"
)

type Provider interface {
	ID() string
	Name() string
	Type() string

	InitiateAuth(ctx context.Context, redirectURL string) (*AuthRedirect, error)
	HandleCallback(ctx context.Context, req *http.Request) (*Session, error)
	ValidateSession(ctx context.Context, session *Session) error
	RefreshSession(ctx context.Context, session *Session) (*Session, error)

	GetHeaderMappings() map[string]string
}

// Session is an alternate provider's established login, independent of the
// samlsso.ProviderState the gateway's own SAML algorithm tracks.
type Session struct {
	ID           string                 `json:"id"`
	ProviderID   string                 `json:"provider_id"`
	ProviderType string                 `json:"provider_type"`
	UserInfo     map[string]interface{} `json:"user_info"`
	CreatedAt    time.Time              `json:"created_at"`
	ExpiresAt    time.Time              `json:"expires_at"`

	AccessToken  string    `json:"access_token,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	IDToken      string    `json:"id_token,omitempty"`
	TokenExpiry  time.Time `json:"token_expiry,omitempty"`

	CSRFToken string `json:"csrf_token"`
}

type OIDCState struct {
	State        string    `json:"state"`
	ProviderID   string    `json:"provider_id"`
	CodeVerifier string    `json:"code_verifier"`
	RedirectURL  string    `json:"redirect_url"`
	CreatedAt    time.Time `json:"created_at"`
}

type AuthRedirect struct {
	URL       string
	Method    string
	CacheKey  string
	CacheData interface{}
	CacheTTL  time.Duration
}
