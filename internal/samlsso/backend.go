package samlsso

import (
	"context"
	"errors"
	"net/http"
)

// BackendError is the error surface every Backend call may fail with: an
// HTTP-like status code and an optional reason string lifted from the
// backend's {"error":{"reason": "..."}} body. The error classifier in
// errclass.go reads only these two fields.
type BackendError struct {
	StatusCode int
	Reason     string
	msg        string
}

func (e *BackendError) Error() string {
	if e.msg != "" {
		return e.msg
	}
	return "backend error"
}

func NewBackendError(statusCode int, reason, msg string) *BackendError {
	return &BackendError{StatusCode: statusCode, Reason: reason, msg: msg}
}

// StatusCodeOf translates a Failed()/DeauthFailed() error into the HTTP
// status the backend originally reported, per spec §7: Failed(backendError)
// is propagated unchanged and it's the HTTP layer's job to translate
// statusCode. Errors that aren't a *BackendError fall back to 500.
func StatusCodeOf(err error) int {
	var be *BackendError
	if errors.As(err, &be) && be.StatusCode != 0 {
		return be.StatusCode
	}
	return http.StatusInternalServerError
}

// SAMLPrepareResult is the response to samlPrepare.
type SAMLPrepareResult struct {
	ID       string
	Redirect string
}

// TokenPair is the response to samlAuthenticate and getAccessToken.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// LogoutResult is the response to samlLogout and samlInvalidate; Redirect is
// empty when the backend has nothing further for the caller to do.
type LogoutResult struct {
	Redirect string
}

// Backend is the narrow capability interface this provider calls into the
// identity-aware cluster service through. Two calling modes exist:
// AuthenticateAsUser forwards the caller's own Authorization header;
// the rest are privileged, as-internal calls made with a service identity.
type Backend interface {
	// AuthenticateAsUser forwards req's Authorization header to the backend
	// and returns the identified user, or a *BackendError.
	AuthenticateAsUser(ctx context.Context, req *http.Request) (*User, error)

	// SAMLPrepare begins an SP-initiated handshake for the given ACS URL.
	SAMLPrepare(ctx context.Context, acsURL string) (*SAMLPrepareResult, error)

	// SAMLAuthenticate exchanges a SAMLResponse for tokens. ids is the set
	// of outstanding request IDs this response may be answering (empty for
	// IdP-initiated flows).
	SAMLAuthenticate(ctx context.Context, ids []string, samlResponse string) (*TokenPair, error)

	// GetAccessToken exchanges a refresh token for a new access/refresh pair.
	GetAccessToken(ctx context.Context, refreshToken string) (*TokenPair, error)

	// SAMLLogout performs user-initiated logout for the given tokens.
	SAMLLogout(ctx context.Context, accessToken, refreshToken string) (*LogoutResult, error)

	// SAMLInvalidate handles an IdP-initiated logout request.
	SAMLInvalidate(ctx context.Context, queryString, acsURL string) (*LogoutResult, error)
}
