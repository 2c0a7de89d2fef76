package samlsso

import (
	"context"
	"net/http"

	"go.uber.org/zap"
)

// Provider is the SAML Web-SSO state machine (spec component E). It is
// immutable after New returns and carries no per-request state; callers own
// ProviderState and pass it in on every call.
type Provider struct {
	opts ProviderOptions
}

// New builds a Provider from opts. opts.Client must be non-nil.
func New(opts ProviderOptions) *Provider {
	return &Provider{opts: opts}
}

// ACSURL is the Assertion Consumer Service endpoint this provider presents
// to the backend/IdP: protocol://hostname:port/basePath/api/security/v1/saml.
func (p *Provider) ACSURL() string {
	return p.opts.acsURL()
}

// Authenticate runs the ordered strategy chain described in spec §4.E.1:
// header, state, refresh token, SAML payload (ACS callback), handshake.
// priorState may be nil.
func (p *Provider) Authenticate(ctx context.Context, req *http.Request, priorState *ProviderState) AuthenticationResult {
	if result, handled := p.viaHeader(ctx, req); handled {
		return result
	}

	if priorState != nil {
		if result, handled := p.viaState(ctx, req, priorState); handled {
			return result
		}
	}

	if priorState != nil {
		if result, handled := p.viaRefreshToken(ctx, req, priorState); handled {
			return result
		}
	}

	if _, ok := hasSAMLResponsePayload(req); ok {
		return p.viaPayload(ctx, req, priorState)
	}

	return p.viaHandshake(ctx, req)
}

// viaHeader is strategy 1. The bool return reports whether the chain should
// stop here (true) or continue to the next strategy (false, only for the
// "no header at all" case).
func (p *Provider) viaHeader(ctx context.Context, req *http.Request) (AuthenticationResult, bool) {
	state, _ := classifyAuthHeader(req)

	switch state {
	case authHeaderAbsent:
		logDecision(p.opts.Log, "no authorization header, trying next strategy")
		p.opts.recordDecision("header", "fallthrough")
		return AuthenticationResult{}, false

	case authHeaderNotRecognized:
		logDecision(p.opts.Log, "authorization header scheme not recognized, declining")
		p.opts.recordDecision("header", "declined")
		return NotHandledResult(), true

	default: // authHeaderBearer
		user, err := p.opts.Client.AuthenticateAsUser(ctx, req)
		if err != nil {
			logDecision(p.opts.Log, "bearer header authentication failed", zap.Error(err))
			p.opts.recordDecision("header", "failed")
			return Failed(err), true
		}
		logDecision(p.opts.Log, "authenticated via bearer header")
		p.opts.recordDecision("header", "succeeded")
		return Succeeded(*user), true
	}
}

// viaState is strategy 2.
func (p *Provider) viaState(ctx context.Context, req *http.Request, state *ProviderState) (AuthenticationResult, bool) {
	if !state.hasAccessToken() {
		return AuthenticationResult{}, false
	}

	req.Header.Set("Authorization", "Bearer "+state.AccessToken)
	user, err := p.opts.Client.AuthenticateAsUser(ctx, req)
	req.Header.Del("Authorization")
	if err == nil {
		logDecision(p.opts.Log, "authenticated via stored access token")
		p.opts.recordDecision("state", "succeeded")
		return Succeeded(*user), true
	}

	if classifyError(err) == categoryTokenExpired {
		logDecision(p.opts.Log, "stored access token expired, trying refresh")
		p.opts.recordDecision("state", "fallthrough")
		return AuthenticationResult{}, false
	}

	logDecision(p.opts.Log, "stored access token rejected", zap.Error(err))
	p.opts.recordDecision("state", "failed")
	return Failed(err), true
}

// viaRefreshToken is strategy 3.
func (p *Provider) viaRefreshToken(ctx context.Context, req *http.Request, state *ProviderState) (AuthenticationResult, bool) {
	if !state.hasRefreshToken() {
		return AuthenticationResult{}, false
	}

	tokens, err := p.opts.Client.GetAccessToken(ctx, state.RefreshToken)
	if err != nil {
		if classifyError(err) == categoryRefreshRejected {
			if p.opts.redirectCapable(req) {
				logDecision(p.opts.Log, "refresh rejected, falling through to handshake")
				p.opts.recordDecision("refresh_token", "fallthrough")
				return AuthenticationResult{}, false
			}
			logDecision(p.opts.Log, "refresh rejected and client cannot redirect")
			p.opts.recordDecision("refresh_token", "failed")
			return Failed(badRequest("Both access and refresh tokens are expired.")), true
		}
		logDecision(p.opts.Log, "refresh token request failed", zap.Error(err))
		p.opts.recordDecision("refresh_token", "failed")
		return Failed(err), true
	}

	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	user, err := p.opts.Client.AuthenticateAsUser(ctx, req)
	req.Header.Del("Authorization")
	if err != nil {
		logDecision(p.opts.Log, "authentication with refreshed token failed", zap.Error(err))
		p.opts.recordDecision("refresh_token", "failed")
		return Failed(err), true
	}

	logDecision(p.opts.Log, "authenticated via refreshed token")
	p.opts.recordDecision("refresh_token", "succeeded")
	return Succeeded(*user, ProviderState{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	}), true
}

// viaPayload is strategy 4, the ACS callback.
func (p *Provider) viaPayload(ctx context.Context, req *http.Request, priorState *ProviderState) AuthenticationResult {
	samlResponse, _ := hasSAMLResponsePayload(req)

	switch {
	case priorState.hasHandshakeFields():
		tokens, err := p.opts.Client.SAMLAuthenticate(ctx, []string{priorState.RequestID}, samlResponse)
		if err != nil {
			logDecision(p.opts.Log, "SP-initiated SAML authenticate failed", zap.Error(err))
			p.opts.recordDecision("payload", "failed")
			return Failed(err)
		}
		logDecision(p.opts.Log, "SP-initiated SAML authenticate succeeded")
		p.opts.recordDecision("payload", "succeeded")
		return RedirectTo(priorState.NextURL, ProviderState{
			AccessToken:  tokens.AccessToken,
			RefreshToken: tokens.RefreshToken,
		})

	case priorState == nil || (priorState.RequestID == "" && priorState.NextURL == ""):
		tokens, err := p.opts.Client.SAMLAuthenticate(ctx, nil, samlResponse)
		if err != nil {
			logDecision(p.opts.Log, "IdP-initiated SAML authenticate failed", zap.Error(err))
			p.opts.recordDecision("payload", "failed")
			return Failed(err)
		}
		logDecision(p.opts.Log, "IdP-initiated SAML authenticate succeeded")
		p.opts.recordDecision("payload", "succeeded")
		return RedirectTo(p.opts.BasePath+"/", ProviderState{
			AccessToken:  tokens.AccessToken,
			RefreshToken: tokens.RefreshToken,
		})

	default:
		logDecision(p.opts.Log, "SAML response arrived with corrupt state")
		p.opts.recordDecision("payload", "failed")
		return Failed(badRequest("SAML response state does not have corresponding request id or redirect URL."))
	}
}

// viaHandshake is strategy 5.
func (p *Provider) viaHandshake(ctx context.Context, req *http.Request) AuthenticationResult {
	if !p.opts.redirectCapable(req) {
		logDecision(p.opts.Log, "client cannot redirect, declining handshake")
		p.opts.recordDecision("handshake", "declined")
		return NotHandledResult()
	}

	prepared, err := p.opts.Client.SAMLPrepare(ctx, p.ACSURL())
	if err != nil {
		logDecision(p.opts.Log, "SAML prepare failed", zap.Error(err))
		p.opts.recordDecision("handshake", "failed")
		return Failed(err)
	}

	logDecision(p.opts.Log, "initiating SAML handshake")
	p.opts.recordDecision("handshake", "redirected")
	return RedirectTo(prepared.Redirect, ProviderState{
		RequestID: prepared.ID,
		NextURL:   p.opts.BasePath + req.URL.Path,
	})
}

// Deauthenticate drives the logout flow described in spec §4.E.2: IdP-initiated
// Single Logout when the request carries a SAMLRequest query, otherwise
// user-initiated logout against the stored access/refresh tokens.
func (p *Provider) Deauthenticate(ctx context.Context, req *http.Request, priorState *ProviderState) DeauthenticationResult {
	query, hasSAMLRequest := hasSAMLRequestQuery(req)

	if !priorState.hasAccessToken() && !hasSAMLRequest {
		return DeauthNotHandled()
	}

	var result *LogoutResult
	var err error

	if hasSAMLRequest {
		qs := req.URL.RawQuery
		logDecision(p.opts.Log, "IdP-initiated logout")
		result, err = p.opts.Client.SAMLInvalidate(ctx, qs, p.ACSURL())
		_ = query
	} else {
		logDecision(p.opts.Log, "user-initiated logout")
		result, err = p.opts.Client.SAMLLogout(ctx, priorState.AccessToken, priorState.RefreshToken)
	}

	if err != nil {
		logDecision(p.opts.Log, "logout failed", zap.Error(err))
		return DeauthFailed(err)
	}

	if result.Redirect != "" {
		return DeauthRedirectTo(result.Redirect)
	}
	return DeauthRedirectTo("/logged_out")
}
