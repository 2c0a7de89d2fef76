// Package samlsso implements the SAML 2.0 Web-SSO authentication provider
// that sits between the HTTP gateway and the backend identity-aware cluster
// service: an ordered credential-extraction algorithm, refresh-token
// recovery, and SP-/IdP-initiated handshake and logout flows.
package samlsso

// User is the identity the backend's as-user authenticate call returns.
type User struct {
	ID         string
	Attributes map[string]any
}

type resultKind int

const (
	kindNotHandled resultKind = iota
	kindSucceeded
	kindFailed
	kindRedirect
)

// AuthenticationResult is a tagged union: exactly one of NotHandled,
// Succeeded, Failed, or Redirect is active at a time. Construct it only
// through the package-level constructors below; there are no mutators.
type AuthenticationResult struct {
	kind        resultKind
	user        *User
	err         error
	redirectURL string
	state       *ProviderState
}

// NotHandledResult means this provider declines; the caller should try the
// next provider in the chain.
func NotHandledResult() AuthenticationResult {
	return AuthenticationResult{kind: kindNotHandled}
}

// Succeeded reports that the user was identified, optionally rotating the
// persisted ProviderState.
func Succeeded(user User, newState ...ProviderState) AuthenticationResult {
	r := AuthenticationResult{kind: kindSucceeded, user: &user}
	if len(newState) > 0 {
		r.state = &newState[0]
	}
	return r
}

// Failed reports a definite failure.
func Failed(err error) AuthenticationResult {
	return AuthenticationResult{kind: kindFailed, err: err}
}

// RedirectTo reports that the caller must respond with a redirect,
// optionally rotating the persisted ProviderState.
func RedirectTo(url string, newState ...ProviderState) AuthenticationResult {
	r := AuthenticationResult{kind: kindRedirect, redirectURL: url}
	if len(newState) > 0 {
		r.state = &newState[0]
	}
	return r
}

func (r AuthenticationResult) NotHandled() bool { return r.kind == kindNotHandled }
func (r AuthenticationResult) Failed() bool      { return r.kind == kindFailed }
func (r AuthenticationResult) Succeeded() bool   { return r.kind == kindSucceeded }
func (r AuthenticationResult) Redirected() bool  { return r.kind == kindRedirect }

// User is only meaningful when Succeeded() is true.
func (r AuthenticationResult) User() *User { return r.user }

// Error is only meaningful when Failed() is true.
func (r AuthenticationResult) Error() error { return r.err }

// RedirectURL is only meaningful when Redirected() is true.
func (r AuthenticationResult) RedirectURL() string { return r.redirectURL }

// State is only meaningful on Succeeded/Redirect, and only non-nil when the
// provider wants the caller to rotate the persisted ProviderState.
func (r AuthenticationResult) State() *ProviderState { return r.state }

type deauthKind int

const (
	deauthNotHandled deauthKind = iota
	deauthRedirect
	deauthFailed
)

// DeauthenticationResult is the tagged union returned by Deauthenticate.
type DeauthenticationResult struct {
	kind        deauthKind
	redirectURL string
	err         error
}

func DeauthNotHandled() DeauthenticationResult {
	return DeauthenticationResult{kind: deauthNotHandled}
}

func DeauthRedirectTo(url string) DeauthenticationResult {
	return DeauthenticationResult{kind: deauthRedirect, redirectURL: url}
}

func DeauthFailed(err error) DeauthenticationResult {
	return DeauthenticationResult{kind: deauthFailed, err: err}
}

func (r DeauthenticationResult) NotHandled() bool   { return r.kind == deauthNotHandled }
func (r DeauthenticationResult) Redirected() bool   { return r.kind == deauthRedirect }
func (r DeauthenticationResult) Failed() bool       { return r.kind == deauthFailed }
func (r DeauthenticationResult) RedirectURL() string { return r.redirectURL }
func (r DeauthenticationResult) Error() error       { return r.err }
