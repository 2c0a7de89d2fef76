package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/crewjam/saml"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ssogate/saml-provider/internal/altproviders"
	"github.com/ssogate/saml-provider/internal/altproviders/oidc"
	"github.com/ssogate/saml-provider/internal/backendclient"
	"github.com/ssogate/saml-provider/internal/cache"
	"github.com/ssogate/saml-provider/internal/config"
	"github.com/ssogate/saml-provider/internal/metrics"
	"github.com/ssogate/saml-provider/internal/samlsso"
	"github.com/ssogate/saml-provider/internal/server"
)

const version = "1.0.0"

var configPath string

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "ssogate",
		Short: "SAML 2.0 Web-SSO authentication gateway",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "/etc/ssogate/config.yaml", "path to configuration file")

	root.AddCommand(newServeCommand())
	root.AddCommand(newValidateConfigCommand())
	root.AddCommand(newVersionCommand())

	return root
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "run the gateway's HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
}

func newValidateConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-config",
		Short: "load and validate the configuration file without starting the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			fmt.Println("config is valid")
			return nil
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print the gateway version and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("ssogate v%s\n", version)
			return nil
		},
	}
}

func runServe(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := setupLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer logger.Sync()
	logger.Info("starting ssogate", zap.String("version", version))

	cacheInstance, err := cache.New(cfg.Cache)
	if err != nil {
		return fmt.Errorf("failed to create cache: %w", err)
	}
	logger.Info("cache initialized", zap.String("type", cfg.Cache.Type))

	m := metrics.New(prometheus.DefaultRegisterer)

	var backend samlsso.Backend
	var spMetadata func() *saml.EntityDescriptor

	switch cfg.Backend.Mode {
	case "local":
		local, err := backendclient.NewLocalSAMLBackend(ctx, cfg.SAML, []byte(cfg.SAML.SigningKey), cfg.MetadataURL())
		if err != nil {
			return fmt.Errorf("failed to create local SAML backend: %w", err)
		}
		backend = local
		spMetadata = local.Metadata
	default:
		httpClient, err := backendclient.New(cfg.Backend, m)
		if err != nil {
			return fmt.Errorf("failed to create backend client: %w", err)
		}
		backend = httpClient
	}

	samlProvider := samlsso.New(samlsso.ProviderOptions{
		Protocol:          cfg.Server.Protocol,
		Hostname:          cfg.Server.Host,
		Port:              cfg.Server.Port,
		BasePath:          cfg.Server.BasePath,
		Client:            backend,
		Log:               logger,
		StrategyDecisions: m.AuthStrategyDecisions,
	})

	altProviderMap := make(map[string]altproviders.Provider, len(cfg.Providers))
	var providerErr error
	for _, providerCfg := range cfg.Providers {
		switch providerCfg.Type {
		case "oidc":
			provider, err := oidc.NewProvider(ctx, providerCfg, cacheInstance)
			if err != nil {
				providerErr = multierr.Append(providerErr, fmt.Errorf("provider %s: %w", providerCfg.ID, err))
				continue
			}
			altProviderMap[providerCfg.ID] = provider
		default:
			providerErr = multierr.Append(providerErr, fmt.Errorf("provider %s: unsupported type %s", providerCfg.ID, providerCfg.Type))
			continue
		}

		logger.Info("alternate provider initialized",
			zap.String("id", providerCfg.ID),
			zap.String("name", providerCfg.Name),
			zap.String("type", providerCfg.Type),
		)
	}
	if providerErr != nil {
		return fmt.Errorf("failed to initialize alternate providers: %w", providerErr)
	}

	srv, err := server.New(*cfg, cacheInstance, samlProvider, altProviderMap, spMetadata, logger, m)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Start()
}

func setupLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if strings.ToLower(cfg.Format) == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
