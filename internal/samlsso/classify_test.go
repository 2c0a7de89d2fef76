package samlsso

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyAuthHeader(t *testing.T) {
	cases := []struct {
		name    string
		header  string
		want    authHeaderState
		wantTok string
	}{
		{"absent", "", authHeaderAbsent, ""},
		{"bearer lowercase", "bearer abc123", authHeaderBearer, "abc123"},
		{"Bearer mixed case", "Bearer abc123", authHeaderBearer, "abc123"},
		{"BEARER uppercase", "BEARER abc123", authHeaderBearer, "abc123"},
		{"negotiate scheme", "Negotiate xyz", authHeaderNotRecognized, ""},
		{"basic scheme", "Basic dXNlcjpwYXNz", authHeaderNotRecognized, ""},
		{"bearer with no token", "Bearer", authHeaderNotRecognized, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			state, tok := classifyAuthHeader(req)
			assert.Equal(t, tc.want, state)
			assert.Equal(t, tc.wantTok, tok)
		})
	}
}

func TestCanRedirect(t *testing.T) {
	browser := httptest.NewRequest("GET", "/", nil)
	browser.Header.Set("Accept", "text/html")
	assert.True(t, CanRedirect(browser))

	xhr := httptest.NewRequest("GET", "/", nil)
	xhr.Header.Set("X-Requested-With", "XMLHttpRequest")
	assert.False(t, CanRedirect(xhr))

	fetchNoNav := httptest.NewRequest("GET", "/", nil)
	fetchNoNav.Header.Set("Sec-Fetch-Mode", "cors")
	assert.False(t, CanRedirect(fetchNoNav))

	bare := httptest.NewRequest("GET", "/", nil)
	assert.True(t, CanRedirect(bare))
}
