package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spigell/rozgar/internal/secrets"
	"github.com/spigell/rozgar/internal/server"
	"github.com/spigell/rozgar/internal/session"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	config, logger := setup()
	defer logger.Sync()

	logger.Info("starting the rozgar api", zap.String("version", version), zap.String("storage", config.Storage.Driver))

	secret, err := secrets.Load(secrets.Source{
		Name:  "session secret",
		Value: config.Session.Secret,
		File:  config.Session.SecretFile,
	})
	if err != nil {
		logger.Fatal("loading session secret", zap.Error(err), zap.String("hint", "set ROZGAR_SESSION_SECRET or session.secret-file"))
	}
	sessions, err := session.NewManager(secret, config.Session.TTL)
	if err != nil {
		logger.Fatal("creating session manager", zap.Error(err))
	}

	svc, err := newServices(ctx, config, logger)
	if err != nil {
		logger.Fatal("starting services", zap.Error(err))
	}
	defer svc.Close()

	uploader, err := newUploader(ctx, config.Media, logger)
	if err != nil {
		logger.Warn("audio resume upload is disabled", zap.Error(err))
	}

	api := server.New(server.Deps{
		Repo:      svc.repo,
		Engine:    svc.engine,
		Tracker:   svc.tracker,
		Assistant: svc.assistant,
		Sessions:  sessions,
		Media:     uploader,
		Logger:    logger.Named("http"),
	}, config.Server.Options)
	defer api.Close()

	httpServer := &http.Server{
		Addr:              config.Server.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       7 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", config.Server.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("http server failed", zap.Error(err))
			return
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
		return
	}
	logger.Info("server stopped cleanly")
}
