package samlsso

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(backend Backend) *Provider {
	return New(ProviderOptions{
		Protocol: "https",
		Hostname: "gateway.internal",
		Port:     5601,
		BasePath: "/kbn",
		Client:   backend,
	})
}

func browserReq(t *testing.T, method, target string, body url.Values) *http.Request {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(body.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.Header.Set("Accept", "text/html")
	return req
}

func ajaxReq(t *testing.T, method, target string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	return req
}

// Scenario 1: first visit, no state, browser.
func TestAuthenticate_FirstVisitHandshake(t *testing.T) {
	backend := &fakeBackend{
		samlPrepare: func(ctx context.Context, acsURL string) (*SAMLPrepareResult, error) {
			assert.Equal(t, "https://gateway.internal:5601/kbn/api/security/v1/saml", acsURL)
			return &SAMLPrepareResult{ID: "req-1", Redirect: "https://idp/sso?..."}, nil
		},
	}
	p := newTestProvider(backend)
	req := browserReq(t, "GET", "/app/home", nil)

	result := p.Authenticate(context.Background(), req, nil)

	require.True(t, result.Redirected())
	assert.Equal(t, "https://idp/sso?...", result.RedirectURL())
	require.NotNil(t, result.State())
	assert.Equal(t, "req-1", result.State().RequestID)
	assert.Equal(t, "/kbn/app/home", result.State().NextURL)
}

// Scenario 2: ACS callback, SP-initiated.
func TestAuthenticate_ACSCallback_SPInitiated(t *testing.T) {
	backend := &fakeBackend{
		samlAuthenticate: func(ctx context.Context, ids []string, samlResponse string) (*TokenPair, error) {
			assert.Equal(t, []string{"req-1"}, ids)
			assert.Equal(t, "<base64>", samlResponse)
			return &TokenPair{AccessToken: "A", RefreshToken: "R"}, nil
		},
	}
	p := newTestProvider(backend)
	req := browserReq(t, "POST", "/kbn/auth/saml/acs", url.Values{"SAMLResponse": {"<base64>"}})
	state := &ProviderState{RequestID: "req-1", NextURL: "/app/home"}

	result := p.Authenticate(context.Background(), req, state)

	require.True(t, result.Redirected())
	assert.Equal(t, "/app/home", result.RedirectURL())
	require.NotNil(t, result.State())
	assert.Equal(t, "A", result.State().AccessToken)
	assert.Equal(t, "R", result.State().RefreshToken)
}

// Scenario 3: ACS callback, IdP-initiated.
func TestAuthenticate_ACSCallback_IdPInitiated(t *testing.T) {
	backend := &fakeBackend{
		samlAuthenticate: func(ctx context.Context, ids []string, samlResponse string) (*TokenPair, error) {
			assert.Empty(t, ids)
			return &TokenPair{AccessToken: "A", RefreshToken: "R"}, nil
		},
	}
	p := newTestProvider(backend)
	req := browserReq(t, "POST", "/kbn/auth/saml/acs", url.Values{"SAMLResponse": {"<base64>"}})

	result := p.Authenticate(context.Background(), req, nil)

	require.True(t, result.Redirected())
	assert.Equal(t, "/kbn/", result.RedirectURL())
}

// Scenario: mixed/corrupt state fails without calling the backend.
func TestAuthenticate_ACSCallback_CorruptState(t *testing.T) {
	backend := &fakeBackend{}
	p := newTestProvider(backend)
	req := browserReq(t, "POST", "/kbn/auth/saml/acs", url.Values{"SAMLResponse": {"<base64>"}})
	state := &ProviderState{RequestID: "req-1"} // missing NextURL

	result := p.Authenticate(context.Background(), req, state)

	require.True(t, result.Failed())
	var be *BackendError
	require.ErrorAs(t, result.Error(), &be)
	assert.Equal(t, 400, be.StatusCode)
}

// Scenario 4: established session, valid token.
func TestAuthenticate_EstablishedSession(t *testing.T) {
	backend := &fakeBackend{
		authenticateAsUser: func(ctx context.Context, req *http.Request) (*User, error) {
			assert.Equal(t, "Bearer A", req.Header.Get("Authorization"))
			return &User{ID: "U"}, nil
		},
	}
	p := newTestProvider(backend)
	req := browserReq(t, "GET", "/kbn/app/home", nil)
	state := &ProviderState{AccessToken: "A", RefreshToken: "R"}

	result := p.Authenticate(context.Background(), req, state)

	require.True(t, result.Succeeded())
	assert.Equal(t, "U", result.User().ID)
	assert.Nil(t, result.State())
	assert.Empty(t, req.Header.Get("Authorization"))
}

// Scenario 5: expired access, successful refresh.
func TestAuthenticate_ExpiredAccessSuccessfulRefresh(t *testing.T) {
	calls := 0
	backend := &fakeBackend{
		authenticateAsUser: func(ctx context.Context, req *http.Request) (*User, error) {
			calls++
			switch calls {
			case 1:
				assert.Equal(t, "Bearer A-expired", req.Header.Get("Authorization"))
				return nil, NewBackendError(401, "", "token expired")
			default:
				assert.Equal(t, "Bearer A2", req.Header.Get("Authorization"))
				return &User{ID: "U"}, nil
			}
		},
		getAccessToken: func(ctx context.Context, refreshToken string) (*TokenPair, error) {
			assert.Equal(t, "R", refreshToken)
			return &TokenPair{AccessToken: "A2", RefreshToken: "R2"}, nil
		},
	}
	p := newTestProvider(backend)
	req := browserReq(t, "GET", "/kbn/app/home", nil)
	state := &ProviderState{AccessToken: "A-expired", RefreshToken: "R"}

	result := p.Authenticate(context.Background(), req, state)

	require.True(t, result.Succeeded())
	assert.Equal(t, "U", result.User().ID)
	require.NotNil(t, result.State())
	assert.Equal(t, "A2", result.State().AccessToken)
	assert.Equal(t, "R2", result.State().RefreshToken)
	assert.Empty(t, req.Header.Get("Authorization"))
}

// Scenario 6: expired access, refresh rejected, AJAX client.
func TestAuthenticate_RefreshRejected_AJAX(t *testing.T) {
	backend := &fakeBackend{
		authenticateAsUser: func(ctx context.Context, req *http.Request) (*User, error) {
			return nil, NewBackendError(401, "", "expired")
		},
		getAccessToken: func(ctx context.Context, refreshToken string) (*TokenPair, error) {
			return nil, NewBackendError(400, "", "invalid_grant")
		},
	}
	p := newTestProvider(backend)
	req := ajaxReq(t, "GET", "/kbn/app/home")
	state := &ProviderState{AccessToken: "A-expired", RefreshToken: "R"}

	result := p.Authenticate(context.Background(), req, state)

	require.True(t, result.Failed())
	assert.Contains(t, result.Error().Error(), "Both access and refresh tokens are expired.")
}

// Refresh rejected but client CAN redirect: falls through to handshake.
func TestAuthenticate_RefreshRejected_Redirectable_FallsThroughToHandshake(t *testing.T) {
	backend := &fakeBackend{
		authenticateAsUser: func(ctx context.Context, req *http.Request) (*User, error) {
			return nil, NewBackendError(401, "", "expired")
		},
		getAccessToken: func(ctx context.Context, refreshToken string) (*TokenPair, error) {
			return nil, NewBackendError(400, "", "invalid_grant")
		},
		samlPrepare: func(ctx context.Context, acsURL string) (*SAMLPrepareResult, error) {
			return &SAMLPrepareResult{ID: "req-2", Redirect: "https://idp/sso?again"}, nil
		},
	}
	p := newTestProvider(backend)
	req := browserReq(t, "GET", "/kbn/app/home", nil)
	state := &ProviderState{AccessToken: "A-expired", RefreshToken: "R"}

	result := p.Authenticate(context.Background(), req, state)

	require.True(t, result.Redirected())
	assert.Equal(t, "https://idp/sso?again", result.RedirectURL())
}

// Scenario 7: IdP-initiated SLO.
func TestDeauthenticate_IdPInitiatedSLO(t *testing.T) {
	backend := &fakeBackend{
		samlInvalidate: func(ctx context.Context, queryString, acsURL string) (*LogoutResult, error) {
			assert.Equal(t, "SAMLRequest=<base64>&SigAlg=x", queryString)
			return &LogoutResult{Redirect: "https://idp/slo?..."}, nil
		},
	}
	p := newTestProvider(backend)
	req := httptest.NewRequest("GET", "/kbn/auth/saml/slo?SAMLRequest=<base64>&SigAlg=x", nil)

	result := p.Deauthenticate(context.Background(), req, nil)

	require.True(t, result.Redirected())
	assert.Equal(t, "https://idp/slo?...", result.RedirectURL())
}

// Scenario 8: user-initiated logout, no IdP SLO.
func TestDeauthenticate_UserInitiated_NoRedirect(t *testing.T) {
	backend := &fakeBackend{
		samlLogout: func(ctx context.Context, accessToken, refreshToken string) (*LogoutResult, error) {
			assert.Equal(t, "A", accessToken)
			assert.Equal(t, "R", refreshToken)
			return &LogoutResult{}, nil
		},
	}
	p := newTestProvider(backend)
	req := httptest.NewRequest("POST", "/kbn/auth/logout", nil)
	state := &ProviderState{AccessToken: "A", RefreshToken: "R"}

	result := p.Deauthenticate(context.Background(), req, state)

	require.True(t, result.Redirected())
	assert.Equal(t, "/logged_out", result.RedirectURL())
}

func TestDeauthenticate_NotHandled(t *testing.T) {
	p := newTestProvider(&fakeBackend{})
	req := httptest.NewRequest("POST", "/kbn/auth/logout", nil)

	result := p.Deauthenticate(context.Background(), req, nil)

	assert.True(t, result.NotHandled())
}

// Header neutrality invariant: NotHandled/Failed never leave the
// Authorization header mutated from its entry value.
func TestHeaderNeutrality_UnrecognizedScheme(t *testing.T) {
	p := newTestProvider(&fakeBackend{})
	req := browserReq(t, "GET", "/kbn/app/home", nil)
	req.Header.Set("Authorization", "Negotiate abc123")

	result := p.Authenticate(context.Background(), req, nil)

	assert.True(t, result.NotHandled())
	assert.Equal(t, "Negotiate abc123", req.Header.Get("Authorization"))
}

func TestHeaderNeutrality_FailedHeaderStrategy(t *testing.T) {
	backend := &fakeBackend{
		authenticateAsUser: func(ctx context.Context, req *http.Request) (*User, error) {
			return nil, NewBackendError(403, "", "forbidden")
		},
	}
	p := newTestProvider(backend)
	req := browserReq(t, "GET", "/kbn/app/home", nil)
	req.Header.Set("Authorization", "Bearer bad-token")

	result := p.Authenticate(context.Background(), req, nil)

	assert.True(t, result.Failed())
	assert.Equal(t, "Bearer bad-token", req.Header.Get("Authorization"))
}

// Strategy order: an Authorization header present (even unrecognized)
// preempts state/refresh/payload/handshake entirely.
func TestStrategyOrder_UnrecognizedSchemeShortCircuits(t *testing.T) {
	p := newTestProvider(&fakeBackend{}) // no closures set; any call panics
	req := browserReq(t, "POST", "/kbn/auth/saml/acs", url.Values{"SAMLResponse": {"<base64>"}})
	req.Header.Set("Authorization", "Digest abc")
	state := &ProviderState{AccessToken: "A", RefreshToken: "R"}

	result := p.Authenticate(context.Background(), req, state)

	assert.True(t, result.NotHandled())
}

// Single-use refresh race: two concurrent callers share a state with an
// expired access token and a single-use refresh token; the backend accepts
// exactly one GetAccessToken call and rejects the other with 400.
func TestSingleUseRefreshRace(t *testing.T) {
	used := false
	backend := &fakeBackend{
		authenticateAsUser: func(ctx context.Context, req *http.Request) (*User, error) {
			if req.Header.Get("Authorization") == "Bearer A-expired" {
				return nil, NewBackendError(401, "", "expired")
			}
			return &User{ID: "U"}, nil
		},
		getAccessToken: func(ctx context.Context, refreshToken string) (*TokenPair, error) {
			if used {
				return nil, NewBackendError(400, "", "invalid_grant")
			}
			used = true
			return &TokenPair{AccessToken: "A2", RefreshToken: "R2"}, nil
		},
	}
	p := newTestProvider(backend)
	state := &ProviderState{AccessToken: "A-expired", RefreshToken: "R"}

	winner := p.Authenticate(context.Background(), browserReq(t, "GET", "/kbn/x", nil), state)
	loser := p.Authenticate(context.Background(), ajaxReq(t, "GET", "/kbn/x"), state)

	assert.True(t, winner.Succeeded())
	assert.True(t, loser.Failed())
}

func TestACSURL(t *testing.T) {
	p := newTestProvider(&fakeBackend{})
	assert.Equal(t, "https://gateway.internal:5601/kbn/api/security/v1/saml", p.ACSURL())
}
