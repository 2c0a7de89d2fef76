package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig     `yaml:"server" validate:"required"`
	Backend   BackendConfig    `yaml:"backend" validate:"required"`
	Cache     CacheConfig      `yaml:"cache" validate:"required"`
	SAML      SAMLConfig       `yaml:"saml" validate:"required"`
	Providers []ProviderConfig `yaml:"providers"`
	Logging   LoggingConfig    `yaml:"logging" validate:"required"`
	UI        UIConfig         `yaml:"ui"`
	Metrics   MetricsConfig    `yaml:"metrics"`
}

type ServerConfig struct {
	Host           string        `yaml:"host" validate:"required"`
	Port           int           `yaml:"port" validate:"required,min=1,max=65535"`
	Protocol       string        `yaml:"protocol" validate:"required,oneof=http https"`
	BaseURL        string        `yaml:"base_url" validate:"required,url"`
	BasePath       string        `yaml:"base_path"`
	CookieName     string        `yaml:"cookie_name" validate:"required"`
	CookieDomain   string        `yaml:"cookie_domain"`
	CookieSecure   bool          `yaml:"cookie_secure"`
	CookieHTTPOnly bool          `yaml:"cookie_http_only"`
	CookieSameSite string        `yaml:"cookie_same_site" validate:"oneof=lax strict none"`
	SessionTTL     time.Duration `yaml:"session_ttl" validate:"min=60000000000"`
}

type BackendConfig struct {
	Mode                string        `yaml:"mode" validate:"required,oneof=http local"`
	URL                 string        `yaml:"url"`
	Timeout             time.Duration `yaml:"timeout"`
	PreserveHost        bool          `yaml:"preserve_host"`
	ServiceAccountToken string        `yaml:"service_account_token"`
}

type CacheConfig struct {
	Type  string       `yaml:"type" validate:"required,oneof=memory redis"`
	Redis *RedisConfig `yaml:"redis,omitempty"`
}

type RedisConfig struct {
	Address    string `yaml:"address" validate:"required"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	PoolSize   int    `yaml:"pool_size"`
	MaxRetries int    `yaml:"max_retries"`
}

// SAMLConfig configures this service's own ACS endpoint and, in local
// backend mode, the SP key material and IdP metadata.
type SAMLConfig struct {
	IDPMetadataURL  string `yaml:"idp_metadata_url,omitempty"`
	IDPMetadataXML  string `yaml:"idp_metadata_xml,omitempty"`
	SPEntityID      string `yaml:"sp_entity_id"`
	ACSURL          string `yaml:"acs_url"`
	CertificatePath string `yaml:"certificate_path"`
	PrivateKeyPath  string `yaml:"private_key_path"`
	SigningKey      string `yaml:"signing_key"`
	HeaderMappings  map[string]string `yaml:"header_mappings"`
}

// ProviderConfig describes an alternate (non-SAML-gateway) provider offered
// on the /auth/select chooser page.
type ProviderConfig struct {
	ID             string            `yaml:"id" validate:"required"`
	Name           string            `yaml:"name" validate:"required"`
	Type           string            `yaml:"type" validate:"required,oneof=oidc"`
	OIDC           *OIDCConfig       `yaml:"oidc,omitempty"`
	HeaderMappings map[string]string `yaml:"header_mappings"`
}

type OIDCConfig struct {
	Issuer       string   `yaml:"issuer" validate:"required,url"`
	ClientID     string   `yaml:"client_id" validate:"required"`
	ClientSecret string   `yaml:"client_secret" validate:"required"`
	Scopes       []string `yaml:"scopes" validate:"required,min=1"`
	HD           string   `yaml:"hd,omitempty"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json console"`
}

type UIConfig struct {
	Enable        *bool  `yaml:"enable"`
	Title         string `yaml:"title"`
	GradientStart string `yaml:"gradient_start"`
	GradientEnd   string `yaml:"gradient_end"`
	LogoPath      string `yaml:"logo_path"`
}

type MetricsConfig struct {
	Enable bool   `yaml:"enable"`
	Path   string `yaml:"path"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.setDefaults()
	cfg.loadSecretsFromEnv()

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Protocol == "" {
		c.Server.Protocol = "https"
	}
	if c.Server.CookieName == "" {
		c.Server.CookieName = "ssogate-session"
	}
	if c.Server.CookieSameSite == "" {
		c.Server.CookieSameSite = "lax"
	}
	if c.Server.SessionTTL == 0 {
		c.Server.SessionTTL = 24 * time.Hour
	}

	if c.Backend.Mode == "" {
		c.Backend.Mode = "http"
	}
	if c.Backend.Timeout == 0 {
		c.Backend.Timeout = 30 * time.Second
	}

	if c.Cache.Type == "" {
		c.Cache.Type = "memory"
	}
	if c.Cache.Type == "redis" && c.Cache.Redis != nil {
		if c.Cache.Redis.PoolSize == 0 {
			c.Cache.Redis.PoolSize = 10
		}
		if c.Cache.Redis.MaxRetries == 0 {
			c.Cache.Redis.MaxRetries = 3
		}
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}

	if c.UI.Enable == nil {
		defaultEnable := true
		c.UI.Enable = &defaultEnable
	}
	if c.UI.Title == "" {
		c.UI.Title = "Sign In"
	}
	if c.UI.GradientStart == "" {
		c.UI.GradientStart = "#667eea"
	}
	if c.UI.GradientEnd == "" {
		c.UI.GradientEnd = "#764ba2"
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

func (c *Config) loadSecretsFromEnv() {
	for i := range c.Providers {
		provider := &c.Providers[i]
		if provider.OIDC == nil {
			continue
		}
		if v := os.Getenv(fmt.Sprintf("%s_CLIENT_ID", provider.ID)); v != "" {
			provider.OIDC.ClientID = v
		}
		if v := os.Getenv(fmt.Sprintf("%s_CLIENT_SECRET", provider.ID)); v != "" {
			provider.OIDC.ClientSecret = v
		}
	}

	if c.Cache.Type == "redis" && c.Cache.Redis != nil {
		if v := os.Getenv("REDIS_PASSWORD"); v != "" {
			c.Cache.Redis.Password = v
		}
	}

	if v := os.Getenv("SSOGATE_BACKEND_SERVICE_TOKEN"); v != "" {
		c.Backend.ServiceAccountToken = v
	}
	if v := os.Getenv("SSOGATE_SAML_SIGNING_KEY"); v != "" {
		c.SAML.SigningKey = v
	}
}

// MetadataURL is the SP metadata document URL this gateway advertises for
// its own SAML endpoint (used by the local backend in standalone mode).
func (c *Config) MetadataURL() string {
	return c.Server.BaseURL + c.Server.BasePath + "/auth/saml/metadata"
}
