package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sofim-uhk/sofim/internal/models"
	"github.com/sofim-uhk/sofim/internal/server"
	"github.com/sofim-uhk/sofim/internal/watcher"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the HTTP API: chat on /api/v1/chat and the token-guarded admin
routes under /api/v1/admin.

Examples:
  sofim serve
  sofim serve --config ./config.yaml --sync full`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		initial, _ := cmd.Flags().GetString("sync")
		return runServe(cmd.Context(), initial)
	},
}

func init() {
	serveCmd.Flags().String("sync", "", "start a sync run of this mode (full, web, tabular) after startup")
}

// runServe blocks until ctx is cancelled by a signal or the listener fails.
func runServe(ctx context.Context, initialSync string) error {
	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			a.logger.Warn("shutdown", zap.Error(err))
		}
	}()
	logger := a.logger

	if initialSync != "" {
		mode, err := models.ParseMode(initialSync)
		if err != nil {
			return err
		}
		if err := a.runner.Start(ctx, mode); err != nil {
			return err
		}
	}

	tab := a.cfg.Sources.Tabular
	if tab.Watch && tab.Path != "" {
		w := watcher.New([]string{tab.Path}, func(path string) {
			logger.Info("tabular source changed", zap.String("path", path))
			if err := a.runner.Start(ctx, models.ModeTabular); err != nil {
				logger.Warn("tabular sync not started", zap.Error(err))
			}
		}, watcher.WithLogger(logger))
		if err := w.Start(ctx); err != nil {
			return err
		}
		defer w.Stop()
	}

	srv := server.NewServer(a.engine, a.runner, a.tracker, a.storage, a.index, &a.cfg.Server, logger)
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Warn("server shutdown", zap.Error(err))
	}
	if a.runner.Running() {
		logger.Info("waiting for the running sync to finish")
	}
	return nil
}
