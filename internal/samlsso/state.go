package samlsso

// ProviderState is persisted opaquely by the caller between requests. Every
// field is optional; the invariants that relate them are that requestId
// implies nextURL, and that accessToken may or may not carry refreshToken.
type ProviderState struct {
	RequestID    string `json:"requestId,omitempty"`
	NextURL      string `json:"nextURL,omitempty"`
	AccessToken  string `json:"accessToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

func (s *ProviderState) hasAccessToken() bool {
	return s != nil && s.AccessToken != ""
}

func (s *ProviderState) hasRefreshToken() bool {
	return s != nil && s.RefreshToken != ""
}

func (s *ProviderState) hasHandshakeFields() bool {
	return s != nil && s.RequestID != "" && s.NextURL != ""
}

func (s *ProviderState) hasPartialHandshake() bool {
	return s != nil && (s.RequestID != "") != (s.NextURL != "")
}

// SessionRecord is what the gateway persists under the session cookie's
// value: the last-known identity and the ProviderState needed to resume the
// strategy chain on the next request.
type SessionRecord struct {
	User  User          `json:"user"`
	State ProviderState `json:"state"`
}
