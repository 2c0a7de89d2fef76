package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/crewjam/saml"
	"go.uber.org/zap"

	"github.com/ssogate/saml-provider/internal/altproviders"
	"github.com/ssogate/saml-provider/internal/cache"
	"github.com/ssogate/saml-provider/internal/config"
	"github.com/ssogate/saml-provider/internal/metrics"
	"github.com/ssogate/saml-provider/internal/samlsso"
)

type Server struct {
	cfg          config.Config
	cache        cache.Cache
	samlProvider *samlsso.Provider
	altProviders map[string]altproviders.Provider
	spMetadata   func() *saml.EntityDescriptor
	logger       *zap.Logger
	metrics      *metrics.Metrics
	httpServer   *http.Server
}

// New builds a Server. spMetadata is nil unless the backend runs in local
// mode, in which case it returns this gateway's own SP metadata document.
func New(cfg config.Config, c cache.Cache, samlProvider *samlsso.Provider, altProviders map[string]altproviders.Provider, spMetadata func() *saml.EntityDescriptor, logger *zap.Logger, m *metrics.Metrics) (*Server, error) {
	return &Server{
		cfg:          cfg,
		cache:        c,
		samlProvider: samlProvider,
		altProviders: altProviders,
		spMetadata:   spMetadata,
		logger:       logger,
		metrics:      m,
	}, nil
}

func (s *Server) Start() error {
	router, err := s.setupRoutes()
	if err != nil {
		return fmt.Errorf("failed to setup routes: %w", err)
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting server",
			zap.String("host", s.cfg.Server.Host),
			zap.Int("port", s.cfg.Server.Port),
			zap.String("base_url", s.cfg.Server.BaseURL),
		)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		return s.Shutdown()
	}
}

func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.logger.Info("shutting down server")

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("error during server shutdown", zap.Error(err))
			return err
		}
	}

	if err := s.cache.Close(); err != nil {
		s.logger.Error("error closing cache", zap.Error(err))
	}

	s.logger.Info("server shutdown complete")
	return nil
}
