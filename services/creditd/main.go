package creditd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"eurocredit/config"
)

// Main runs the credit engine daemon using the provided command line flags.
func Main() error {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "creditd.toml", "path to creditd config (toml or yaml)")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := New(stopCtx, cfg)
	if err != nil {
		return fmt.Errorf("build service: %w", err)
	}
	defer func() { _ = svc.Close() }()

	if cfg.HTTP.ListenAddress == "" {
		svc.Logger.Info("http listener disabled")
		<-stopCtx.Done()
		return nil
	}

	httpServer := &http.Server{
		Addr:         cfg.HTTP.ListenAddress,
		Handler:      svc.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(stopCtx)
	g.Go(func() error {
		svc.Logger.Info("creditd listening", "addr", cfg.HTTP.ListenAddress)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			_ = httpServer.Close()
			return err
		}
		return nil
	})
	return g.Wait()
}
