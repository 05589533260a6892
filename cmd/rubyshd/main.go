// Command rubyshd is the rubyshd process entrypoint: it loads
// configuration from the environment, populates the certificate store
// and template engine, and runs the dual-protocol server. Environment
// loading and PEM material are treated as external-collaborator
// concerns (spec.md §1), so this file stays a thin adapter over the
// core packages under internal/.
package main

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/rubyroobs/rubyshd/internal/cache"
	"github.com/rubyroobs/rubyshd/internal/certstore"
	"github.com/rubyroobs/rubyshd/internal/config"
	"github.com/rubyroobs/rubyshd/internal/logging"
	"github.com/rubyroobs/rubyshd/internal/pipeline"
	"github.com/rubyroobs/rubyshd/internal/render"
	"github.com/rubyroobs/rubyshd/internal/tlsserver"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "rubyshd:", err)
		os.Exit(1)
	}
}

func run() error {
	var cfg config.Config
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("parsing environment: %w", err)
	}

	logger := logging.New(cfg.LogLevel)

	stores, err := buildCertStore(&cfg)
	if err != nil {
		return err
	}

	engine := render.New(runtime.GOOS)
	if err := engine.LoadPartials(cfg.PartialsPath); err != nil {
		return fmt.Errorf("loading partials: %w", err)
	}
	if err := engine.LoadData(cfg.DataPath); err != nil {
		return fmt.Errorf("loading data: %w", err)
	}
	if err := engine.LoadErrdocs(cfg.ErrdocsPath); err != nil {
		return fmt.Errorf("loading errdocs: %w", err)
	}

	fileCache := cache.New(cfg.RenderedFileCacheSize)
	p := pipeline.New(cfg.PublicRootPath, engine, fileCache)

	srv := &tlsserver.Server{
		Addr:                 fmt.Sprintf(":%d", cfg.TLSListenPort),
		CertStore:            stores,
		Pipeline:             p,
		Logger:               logger,
		MaxRequestHeaderSize: cfg.MaxRequestHeaderSize,
		MaxOpenConnections:   cfg.MaxOpenConnections,
		ConnectionTimeout:    time.Duration(cfg.ConnectionTimeoutSeconds) * time.Second,
		DefaultHostname:      cfg.DefaultHostname,
	}

	logger.WithField("addr", srv.Addr).Info("starting rubyshd")
	return srv.ListenAndServe()
}

func buildCertStore(cfg *config.Config) (*certstore.Store, error) {
	store := certstore.New()
	if err := store.LoadServerCertificate(cfg.DefaultHostname, cfg.ServerCertificatePEMFilename, cfg.ServerPrivateKeyPEMFilename); err != nil {
		return nil, fmt.Errorf("loading server certificate: %w", err)
	}
	if cfg.ClientCACertificatePEMFilename != "" {
		if err := store.LoadClientCA(cfg.ClientCACertificatePEMFilename); err != nil {
			return nil, fmt.Errorf("loading client CA: %w", err)
		}
	}
	return store, nil
}
