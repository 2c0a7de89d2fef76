// Package backendclient provides concrete implementations of
// samlsso.Backend: an HTTP client that talks to a real backend cluster
// service, and a standalone backend that validates SAML assertions itself.
package backendclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ssogate/saml-provider/internal/config"
	"github.com/ssogate/saml-provider/internal/metrics"
	"github.com/ssogate/saml-provider/internal/samlsso"
)

// HTTPClient implements samlsso.Backend by issuing JSON-over-HTTP calls
// against a remote backend cluster service, following the wire contract in
// spec §6: as-user calls forward the caller's Authorization header, as-internal
// calls sign with a configured service-account token.
type HTTPClient struct {
	baseURL        *url.URL
	httpClient     *http.Client
	serviceAccount string
	metrics        *metrics.Metrics
}

// New builds an HTTPClient from cfg. m may be nil, in which case calls go
// unmeasured.
func New(cfg config.BackendConfig, m *metrics.Metrics) (*HTTPClient, error) {
	base, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid backend url: %w", err)
	}

	return &HTTPClient{
		baseURL: base,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		serviceAccount: cfg.ServiceAccountToken,
		metrics:        m,
	}, nil
}

func (c *HTTPClient) endpoint(path string) string {
	u := *c.baseURL
	u.Path = u.Path + path
	return u.String()
}

// doAsUser forwards req's own Authorization header.
func (c *HTTPClient) doAsUser(ctx context.Context, method, path string, authHeader string, out any) error {
	httpReq, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), nil)
	if err != nil {
		return err
	}
	if authHeader != "" {
		httpReq.Header.Set("Authorization", authHeader)
	}
	return c.do(httpReq, out)
}

// doAsInternal signs with the service-account token and sends body as JSON.
func (c *HTTPClient) doAsInternal(ctx context.Context, method, path string, body any, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), reader)
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.serviceAccount)

	return c.do(httpReq, out)
}

type errorBody struct {
	Error struct {
		Reason string `json:"reason"`
	} `json:"error"`
}

func (c *HTTPClient) do(httpReq *http.Request, out any) error {
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return samlsso.NewBackendError(0, "", err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var eb errorBody
		_ = json.NewDecoder(resp.Body).Decode(&eb)
		return samlsso.NewBackendError(resp.StatusCode, eb.Error.Reason,
			fmt.Sprintf("backend returned status %d", resp.StatusCode))
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// observe records a completed RPC call's outcome and latency, if m is configured.
func (c *HTTPClient) observe(method string, start time.Time, err error) {
	if c.metrics == nil {
		return
	}
	c.metrics.BackendLatency.WithLabelValues(method).Observe(time.Since(start).Seconds())
	success := "true"
	if err != nil {
		success = "false"
	}
	c.metrics.BackendCalls.WithLabelValues(method, success).Inc()
}

func (c *HTTPClient) AuthenticateAsUser(ctx context.Context, req *http.Request) (*samlsso.User, error) {
	start := time.Now()
	var user samlsso.User
	err := c.doAsUser(ctx, http.MethodPost, "/internal/security/authenticate", req.Header.Get("Authorization"), &user)
	c.observe("AuthenticateAsUser", start, err)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *HTTPClient) SAMLPrepare(ctx context.Context, acsURL string) (*samlsso.SAMLPrepareResult, error) {
	start := time.Now()
	var out samlsso.SAMLPrepareResult
	body := map[string]string{"acs": acsURL}
	err := c.doAsInternal(ctx, http.MethodPost, "/internal/security/saml/prepare", body, &out)
	c.observe("SAMLPrepare", start, err)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) SAMLAuthenticate(ctx context.Context, ids []string, samlResponse string) (*samlsso.TokenPair, error) {
	start := time.Now()
	var out samlsso.TokenPair
	body := map[string]any{"ids": ids, "content": samlResponse}
	err := c.doAsInternal(ctx, http.MethodPost, "/internal/security/saml/authenticate", body, &out)
	c.observe("SAMLAuthenticate", start, err)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) GetAccessToken(ctx context.Context, refreshToken string) (*samlsso.TokenPair, error) {
	start := time.Now()
	var out samlsso.TokenPair
	body := map[string]string{"grant_type": "refresh_token", "refresh_token": refreshToken}
	err := c.doAsInternal(ctx, http.MethodPost, "/internal/security/oauth2/token", body, &out)
	c.observe("GetAccessToken", start, err)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) SAMLLogout(ctx context.Context, accessToken, refreshToken string) (*samlsso.LogoutResult, error) {
	start := time.Now()
	var out samlsso.LogoutResult
	body := map[string]string{"token": accessToken, "refresh_token": refreshToken}
	err := c.doAsInternal(ctx, http.MethodPost, "/internal/security/saml/logout", body, &out)
	c.observe("SAMLLogout", start, err)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) SAMLInvalidate(ctx context.Context, queryString, acsURL string) (*samlsso.LogoutResult, error) {
	start := time.Now()
	var out samlsso.LogoutResult
	body := map[string]string{"queryString": queryString, "acs": acsURL}
	err := c.doAsInternal(ctx, http.MethodPost, "/internal/security/saml/invalidate", body, &out)
	c.observe("SAMLInvalidate", start, err)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
