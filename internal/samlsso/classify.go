package samlsso

import (
	"net/http"
	"strings"
)

// bearerScheme is compared case-insensitively against the Authorization
// header's scheme token.
const bearerScheme = "bearer"

// authHeaderState describes what classifyAuthHeader found.
type authHeaderState int

const (
	authHeaderAbsent authHeaderState = iota
	authHeaderBearer
	authHeaderNotRecognized
)

// classifyAuthHeader inspects the Authorization header without consuming it.
func classifyAuthHeader(req *http.Request) (authHeaderState, string) {
	header := req.Header.Get("Authorization")
	if header == "" {
		return authHeaderAbsent, ""
	}

	fields := strings.Fields(header)
	if len(fields) == 0 {
		return authHeaderNotRecognized, ""
	}

	if !strings.EqualFold(fields[0], bearerScheme) {
		return authHeaderNotRecognized, ""
	}

	if len(fields) < 2 {
		return authHeaderNotRecognized, ""
	}

	return authHeaderBearer, fields[1]
}

// hasSAMLResponsePayload reports whether req's body carries a non-empty
// SAMLResponse field. It reads req's body via ParseForm, which caches the
// parsed values on req, so calling it more than once is safe.
func hasSAMLResponsePayload(req *http.Request) (string, bool) {
	if err := req.ParseForm(); err != nil {
		return "", false
	}
	v := req.PostForm.Get("SAMLResponse")
	return v, v != ""
}

// hasSAMLRequestQuery reports whether req's query string carries a
// non-empty SAMLRequest field.
func hasSAMLRequestQuery(req *http.Request) (string, bool) {
	v := req.URL.Query().Get("SAMLRequest")
	return v, v != ""
}

// CanRedirect decides whether it is appropriate to answer req with an HTTP
// redirect, i.e. whether it looks like a browser navigation rather than an
// XHR/AJAX probe. Determining this precisely (from Accept headers, Sec-Fetch-*,
// X-Requested-With) is delegated to the caller via the RedirectCapable field
// on ProviderOptions; this default implementation covers the common case.
func CanRedirect(req *http.Request) bool {
	if strings.EqualFold(req.Header.Get("X-Requested-With"), "XMLHttpRequest") {
		return false
	}
	if mode := req.Header.Get("Sec-Fetch-Mode"); mode != "" && !strings.EqualFold(mode, "navigate") {
		return false
	}
	accept := req.Header.Get("Accept")
	return accept == "" || strings.Contains(accept, "text/html") || strings.Contains(accept, "*/*")
}
