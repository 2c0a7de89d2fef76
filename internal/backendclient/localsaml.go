package backendclient

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/crewjam/saml"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ssogate/saml-provider/internal/config"
	"github.com/ssogate/saml-provider/internal/samlsso"
)

// LocalSAMLBackend implements samlsso.Backend without an external cluster:
// it validates SAML assertions itself via crewjam/saml and mints its own
// access/refresh token pairs as HS256 JWTs. It exists for standalone
// deployments that have no separate identity-aware cluster service; see
// SPEC_FULL.md §4.G and §"Non-goals" for why this does not reintroduce the
// "implement the SAML wire format" non-goal — it delegates parsing/signature
// verification to crewjam/saml rather than reimplementing it.
type LocalSAMLBackend struct {
	sp          *saml.ServiceProvider
	signingKey  []byte
	accessTTL   time.Duration
	refreshTTL  time.Duration

	mu             sync.Mutex
	usedRefreshIDs map[string]struct{}
	pendingIDs     map[string]struct{}
}

// NewLocalSAMLBackend loads the SP key/certificate and IdP metadata from cfg
// and returns a ready-to-use standalone Backend. metadataURL is advertised in
// the SP's own metadata document.
func NewLocalSAMLBackend(ctx context.Context, cfg config.SAMLConfig, signingKey []byte, metadataURL string) (*LocalSAMLBackend, error) {
	certData, err := os.ReadFile(cfg.CertificatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read certificate: %w", err)
	}
	keyData, err := os.ReadFile(cfg.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key: %w", err)
	}

	certBlock, _ := pem.Decode(certData)
	if certBlock == nil {
		return nil, fmt.Errorf("failed to decode certificate PEM")
	}
	cert, err := x509.ParseCertificate(certBlock.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}

	keyBlock, _ := pem.Decode(keyData)
	if keyBlock == nil {
		return nil, fmt.Errorf("failed to decode private key PEM")
	}
	key, err := parseRSAKey(keyBlock.Bytes)
	if err != nil {
		return nil, err
	}

	idpMetadata, err := fetchIDPMetadata(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch IdP metadata: %w", err)
	}

	acsURL, err := url.Parse(cfg.ACSURL)
	if err != nil {
		return nil, fmt.Errorf("invalid acs url: %w", err)
	}
	metaURL, err := url.Parse(metadataURL)
	if err != nil {
		return nil, fmt.Errorf("invalid metadata url: %w", err)
	}

	sp := &saml.ServiceProvider{
		EntityID:          cfg.SPEntityID,
		Key:               key,
		Certificate:       cert,
		MetadataURL:       *metaURL,
		AcsURL:            *acsURL,
		IDPMetadata:       idpMetadata,
		AllowIDPInitiated: true,
	}

	return &LocalSAMLBackend{
		sp:             sp,
		signingKey:     signingKey,
		accessTTL:      15 * time.Minute,
		refreshTTL:     24 * time.Hour,
		usedRefreshIDs: make(map[string]struct{}),
		pendingIDs:     make(map[string]struct{}),
	}, nil
}

func parseRSAKey(der []byte) (*rsa.PrivateKey, error) {
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	key8, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	key, ok := key8.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is not RSA")
	}
	return key, nil
}

func fetchIDPMetadata(ctx context.Context, cfg config.SAMLConfig) (*saml.EntityDescriptor, error) {
	if cfg.IDPMetadataXML != "" {
		metadata := &saml.EntityDescriptor{}
		if err := xml.Unmarshal([]byte(cfg.IDPMetadataXML), metadata); err != nil {
			return nil, fmt.Errorf("failed to parse IdP metadata XML: %w", err)
		}
		return metadata, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.IDPMetadataURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch metadata: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("metadata request returned status %d", resp.StatusCode)
	}

	metadata := &saml.EntityDescriptor{}
	if err := xml.NewDecoder(resp.Body).Decode(metadata); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	return metadata, nil
}

// Metadata returns this SP's metadata document, served at the metadata route.
func (b *LocalSAMLBackend) Metadata() *saml.EntityDescriptor {
	return b.sp.Metadata()
}

type tokenClaims struct {
	jwt.RegisteredClaims
	Kind string `json:"kind"` // "access" or "refresh"
}

func (b *LocalSAMLBackend) mintTokenPair(subject string) (*samlsso.TokenPair, string, error) {
	now := time.Now()
	refreshID := uuid.New().String()

	access := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(b.accessTTL)),
		},
		Kind: "access",
	})
	accessStr, err := access.SignedString(b.signingKey)
	if err != nil {
		return nil, "", err
	}

	refresh := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        refreshID,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(b.refreshTTL)),
		},
		Kind: "refresh",
	})
	refreshStr, err := refresh.SignedString(b.signingKey)
	if err != nil {
		return nil, "", err
	}

	return &samlsso.TokenPair{AccessToken: accessStr, RefreshToken: refreshStr}, refreshID, nil
}

func (b *LocalSAMLBackend) parseToken(tokenStr string) (*tokenClaims, error) {
	claims := &tokenClaims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		return b.signingKey, nil
	})
	if err != nil {
		return nil, samlsso.NewBackendError(401, "", "invalid token: "+err.Error())
	}
	return claims, nil
}

func (b *LocalSAMLBackend) AuthenticateAsUser(ctx context.Context, req *http.Request) (*samlsso.User, error) {
	header := req.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return nil, samlsso.NewBackendError(401, "", "missing bearer token")
	}

	claims, err := b.parseToken(token)
	if err != nil {
		return nil, err
	}
	if claims.Kind != "access" {
		return nil, samlsso.NewBackendError(401, "", "not an access token")
	}

	return &samlsso.User{ID: claims.Subject, Attributes: map[string]any{"sub": claims.Subject}}, nil
}

func (b *LocalSAMLBackend) SAMLPrepare(ctx context.Context, acsURL string) (*samlsso.SAMLPrepareResult, error) {
	authReq, err := b.sp.MakeAuthenticationRequest(
		b.sp.GetSSOBindingLocation(saml.HTTPRedirectBinding),
		saml.HTTPRedirectBinding,
		saml.HTTPPostBinding,
	)
	if err != nil {
		return nil, samlsso.NewBackendError(500, "", "failed to create authentication request: "+err.Error())
	}

	redirectURL, err := authReq.Redirect("", b.sp)
	if err != nil {
		return nil, samlsso.NewBackendError(500, "", "failed to build redirect: "+err.Error())
	}

	b.mu.Lock()
	b.pendingIDs[authReq.ID] = struct{}{}
	b.mu.Unlock()

	return &samlsso.SAMLPrepareResult{ID: authReq.ID, Redirect: redirectURL.String()}, nil
}

func (b *LocalSAMLBackend) SAMLAuthenticate(ctx context.Context, ids []string, samlResponse string) (*samlsso.TokenPair, error) {
	if len(ids) > 0 {
		b.mu.Lock()
		_, pending := b.pendingIDs[ids[0]]
		if pending {
			delete(b.pendingIDs, ids[0])
		}
		b.mu.Unlock()
		if !pending {
			return nil, samlsso.NewBackendError(400, "", "unknown or already-consumed request id")
		}
	}

	fakeReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.sp.AcsURL.String(), strings.NewReader("SAMLResponse="+url.QueryEscape(samlResponse)))
	if err != nil {
		return nil, samlsso.NewBackendError(500, "", err.Error())
	}
	fakeReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if err := fakeReq.ParseForm(); err != nil {
		return nil, samlsso.NewBackendError(400, "", "invalid SAMLResponse encoding")
	}

	assertion, err := b.sp.ParseResponse(fakeReq, ids)
	if err != nil {
		return nil, samlsso.NewBackendError(401, "", "failed to validate SAML assertion: "+err.Error())
	}

	subject := ""
	if assertion.Subject != nil && assertion.Subject.NameID != nil {
		subject = assertion.Subject.NameID.Value
	}

	tokens, _, err := b.mintTokenPair(subject)
	if err != nil {
		return nil, samlsso.NewBackendError(500, "", err.Error())
	}

	return tokens, nil
}

func (b *LocalSAMLBackend) GetAccessToken(ctx context.Context, refreshToken string) (*samlsso.TokenPair, error) {
	claims, err := b.parseToken(refreshToken)
	if err != nil {
		return nil, samlsso.NewBackendError(400, "", "invalid refresh token")
	}
	if claims.Kind != "refresh" {
		return nil, samlsso.NewBackendError(400, "", "not a refresh token")
	}

	b.mu.Lock()
	_, alreadyUsed := b.usedRefreshIDs[claims.ID]
	if !alreadyUsed {
		b.usedRefreshIDs[claims.ID] = struct{}{}
	}
	b.mu.Unlock()

	if alreadyUsed {
		return nil, samlsso.NewBackendError(400, "", "refresh token already used")
	}

	tokens, _, err := b.mintTokenPair(claims.Subject)
	if err != nil {
		return nil, samlsso.NewBackendError(500, "", err.Error())
	}
	return tokens, nil
}

func (b *LocalSAMLBackend) SAMLLogout(ctx context.Context, accessToken, refreshToken string) (*samlsso.LogoutResult, error) {
	if claims, err := b.parseToken(refreshToken); err == nil {
		b.mu.Lock()
		b.usedRefreshIDs[claims.ID] = struct{}{}
		b.mu.Unlock()
	}
	return &samlsso.LogoutResult{}, nil
}

func (b *LocalSAMLBackend) SAMLInvalidate(ctx context.Context, queryString, acsURL string) (*samlsso.LogoutResult, error) {
	return &samlsso.LogoutResult{}, nil
}
