package samlsso

import "errors"

// errorCategory is the error classifier's output (component D).
type errorCategory int

const (
	categoryOther errorCategory = iota
	categoryTokenExpired
	categoryRefreshRejected
)

// tokenMissingReason is the specific backend bug workaround: a 500 carrying
// this reason string is treated the same as a 401. See spec §9's Open
// Question — this is kept unconditionally rather than made configurable.
const tokenMissingReason = "token document is missing and must be present"

// classifyError maps a backend error to TokenExpired, RefreshRejected, or
// Other. Only statusCode and the optional reason string are inspected.
func classifyError(err error) errorCategory {
	var be *BackendError
	if !errors.As(err, &be) {
		return categoryOther
	}

	switch {
	case be.StatusCode == 401:
		return categoryTokenExpired
	case be.StatusCode == 500 && be.Reason == tokenMissingReason:
		return categoryTokenExpired
	case be.StatusCode == 400:
		return categoryRefreshRejected
	default:
		return categoryOther
	}
}

// badRequest constructs a user-visible 400 error, used when SAMLResponse
// arrives with corrupt state or both tokens are expired with no way to
// redirect.
func badRequest(msg string) error {
	return NewBackendError(400, "", msg)
}
