package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hilthontt/letschat/dependency"
	"github.com/hilthontt/letschat/infrastructure/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP gateway",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.GetConfig()

		container, err := dependency.NewContainer(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("build container: %w", err)
		}
		log := container.Logger

		container.StartBackgroundJobs()

		srv := &http.Server{
			Addr:           cfg.GetServerAddress(),
			Handler:        container.SetupRouter(),
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   30 * time.Second,
			IdleTimeout:    60 * time.Second,
			MaxHeaderBytes: 1 << 20, // 1 MB
		}

		errCh := make(chan error, 1)
		go func() {
			log.Info("Server starting",
				zap.String("port", cfg.Server.ExternalPort),
				zap.String("mode", cfg.Server.RunMode),
				zap.String("queuePrefix", cfg.Sqs.QueuePrefix),
			)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		var serveErr error
		select {
		case sig := <-sigCh:
			log.Info("Shutting down server...", zap.String("signal", sig.String()))
		case serveErr = <-errCh:
			if serveErr != nil {
				log.Error("Server failed", zap.Error(serveErr))
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("Server forced to shutdown", zap.Error(err))
		}
		if err := container.Shutdown(ctx); err != nil {
			fmt.Fprintln(os.Stderr, "shutdown:", err)
		}
		return serveErr
	},
}
