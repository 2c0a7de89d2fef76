package config

import (
	"fmt"
	"net/url"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks struct-level constraints via go-playground/validator tags,
// then the cross-field constraints validator tags cannot express: the
// redis-block-required-iff-type-redis rule, the exactly-one-of
// idp_metadata_url/idp_metadata_xml rule, and the backend-mode-dependent
// required fields.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if err := c.validateCacheCrossFields(); err != nil {
		return fmt.Errorf("cache config: %w", err)
	}

	if err := c.validateBackendCrossFields(); err != nil {
		return fmt.Errorf("backend config: %w", err)
	}

	if err := c.validateSAMLCrossFields(); err != nil {
		return fmt.Errorf("saml config: %w", err)
	}

	if err := c.validateProviderIDs(); err != nil {
		return fmt.Errorf("providers config: %w", err)
	}

	return nil
}

func (c *Config) validateCacheCrossFields() error {
	if c.Cache.Type != "redis" {
		return nil
	}
	if c.Cache.Redis == nil {
		return fmt.Errorf("redis config is required when type is redis")
	}
	if err := validate.Struct(c.Cache.Redis); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateBackendCrossFields() error {
	switch c.Backend.Mode {
	case "http":
		if c.Backend.URL == "" {
			return fmt.Errorf("url is required when mode is http")
		}
		if _, err := url.Parse(c.Backend.URL); err != nil {
			return fmt.Errorf("invalid url: %w", err)
		}
		if c.Backend.ServiceAccountToken == "" {
			return fmt.Errorf("service_account_token is required when mode is http")
		}
	case "local":
		// local mode draws its key material from SAML; nothing further
		// required here beyond validateSAMLCrossFields.
	}
	return nil
}

func (c *Config) validateSAMLCrossFields() error {
	if c.SAML.IDPMetadataURL == "" && c.SAML.IDPMetadataXML == "" {
		return fmt.Errorf("either idp_metadata_url or idp_metadata_xml is required")
	}
	if c.SAML.IDPMetadataURL != "" && c.SAML.IDPMetadataXML != "" {
		return fmt.Errorf("idp_metadata_url and idp_metadata_xml are mutually exclusive")
	}
	if c.SAML.SPEntityID == "" {
		return fmt.Errorf("sp_entity_id is required")
	}
	if c.SAML.ACSURL == "" {
		return fmt.Errorf("acs_url is required")
	}
	if _, err := url.Parse(c.SAML.ACSURL); err != nil {
		return fmt.Errorf("invalid acs_url: %w", err)
	}

	if c.Backend.Mode == "local" {
		if c.SAML.CertificatePath == "" {
			return fmt.Errorf("certificate_path is required when backend mode is local")
		}
		if c.SAML.PrivateKeyPath == "" {
			return fmt.Errorf("private_key_path is required when backend mode is local")
		}
		if c.SAML.SigningKey == "" {
			return fmt.Errorf("signing_key is required when backend mode is local")
		}
	}

	return nil
}

func (c *Config) validateProviderIDs() error {
	ids := make(map[string]bool, len(c.Providers))
	for i, provider := range c.Providers {
		if ids[provider.ID] {
			return fmt.Errorf("provider %d: duplicate id: %s", i, provider.ID)
		}
		ids[provider.ID] = true

		if provider.Type == "oidc" && provider.OIDC == nil {
			return fmt.Errorf("provider %s: oidc config is required", provider.ID)
		}
		if provider.OIDC != nil {
			hasOpenID := false
			for _, scope := range provider.OIDC.Scopes {
				if scope == "openid" {
					hasOpenID = true
					break
				}
			}
			if !hasOpenID {
				return fmt.Errorf("provider %s: 'openid' scope is required", provider.ID)
			}
		}
	}
	return nil
}
