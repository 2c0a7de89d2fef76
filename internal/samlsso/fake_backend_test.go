package samlsso

import (
	"context"
	"net/http"
)

// fakeBackend is a scripted stand-in for Backend, used across the provider
// test table. Each field is a closure the test sets up per scenario; a nil
// closure means "this call should not happen" and panics if invoked.
type fakeBackend struct {
	authenticateAsUser func(ctx context.Context, req *http.Request) (*User, error)
	samlPrepare        func(ctx context.Context, acsURL string) (*SAMLPrepareResult, error)
	samlAuthenticate   func(ctx context.Context, ids []string, samlResponse string) (*TokenPair, error)
	getAccessToken     func(ctx context.Context, refreshToken string) (*TokenPair, error)
	samlLogout         func(ctx context.Context, accessToken, refreshToken string) (*LogoutResult, error)
	samlInvalidate     func(ctx context.Context, queryString, acsURL string) (*LogoutResult, error)
}

func (f *fakeBackend) AuthenticateAsUser(ctx context.Context, req *http.Request) (*User, error) {
	if f.authenticateAsUser == nil {
		panic("unexpected AuthenticateAsUser call")
	}
	return f.authenticateAsUser(ctx, req)
}

func (f *fakeBackend) SAMLPrepare(ctx context.Context, acsURL string) (*SAMLPrepareResult, error) {
	if f.samlPrepare == nil {
		panic("unexpected SAMLPrepare call")
	}
	return f.samlPrepare(ctx, acsURL)
}

func (f *fakeBackend) SAMLAuthenticate(ctx context.Context, ids []string, samlResponse string) (*TokenPair, error) {
	if f.samlAuthenticate == nil {
		panic("unexpected SAMLAuthenticate call")
	}
	return f.samlAuthenticate(ctx, ids, samlResponse)
}

func (f *fakeBackend) GetAccessToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if f.getAccessToken == nil {
		panic("unexpected GetAccessToken call")
	}
	return f.getAccessToken(ctx, refreshToken)
}

func (f *fakeBackend) SAMLLogout(ctx context.Context, accessToken, refreshToken string) (*LogoutResult, error) {
	if f.samlLogout == nil {
		panic("unexpected SAMLLogout call")
	}
	return f.samlLogout(ctx, accessToken, refreshToken)
}

func (f *fakeBackend) SAMLInvalidate(ctx context.Context, queryString, acsURL string) (*LogoutResult, error) {
	if f.samlInvalidate == nil {
		panic("unexpected SAMLInvalidate call")
	}
	return f.samlInvalidate(ctx, queryString, acsURL)
}
