package samlsso

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want errorCategory
	}{
		{"401 is token expired", NewBackendError(401, "", "x"), categoryTokenExpired},
		{"500 with magic reason is token expired", NewBackendError(500, tokenMissingReason, "x"), categoryTokenExpired},
		{"500 with other reason is other", NewBackendError(500, "something else", "x"), categoryOther},
		{"400 is refresh rejected", NewBackendError(400, "", "x"), categoryRefreshRejected},
		{"403 is other", NewBackendError(403, "", "x"), categoryOther},
		{"non-backend error is other", errors.New("boom"), categoryOther},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, classifyError(tc.err))
		})
	}
}
