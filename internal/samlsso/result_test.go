package samlsso

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResultConstructors(t *testing.T) {
	nh := NotHandledResult()
	assert.True(t, nh.NotHandled())
	assert.False(t, nh.Failed())
	assert.False(t, nh.Succeeded())
	assert.False(t, nh.Redirected())

	s := Succeeded(User{ID: "u1"})
	assert.True(t, s.Succeeded())
	assert.Equal(t, "u1", s.User().ID)
	assert.Nil(t, s.State())

	sWithState := Succeeded(User{ID: "u1"}, ProviderState{AccessToken: "a"})
	assert.NotNil(t, sWithState.State())
	assert.Equal(t, "a", sWithState.State().AccessToken)

	f := Failed(errors.New("boom"))
	assert.True(t, f.Failed())
	assert.EqualError(t, f.Error(), "boom")

	r := RedirectTo("https://example/", ProviderState{RequestID: "r1", NextURL: "/x"})
	assert.True(t, r.Redirected())
	assert.Equal(t, "https://example/", r.RedirectURL())
	assert.Equal(t, "r1", r.State().RequestID)
}

func TestDeauthResultConstructors(t *testing.T) {
	assert.True(t, DeauthNotHandled().NotHandled())

	r := DeauthRedirectTo("/logged_out")
	assert.True(t, r.Redirected())
	assert.Equal(t, "/logged_out", r.RedirectURL())

	f := DeauthFailed(errors.New("x"))
	assert.True(t, f.Failed())
	assert.EqualError(t, f.Error(), "x")
}
