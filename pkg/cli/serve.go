package cli

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sfbackup/pkg/cli/config"
	controller "github.com/m-mizutani/sfbackup/pkg/controller/http"
	"github.com/m-mizutani/sfbackup/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdServe() *cli.Command {
	var (
		serverCfg config.Server
		backupCfg backupConfig
	)

	flags := append(serverCfg.Flags(), backupCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server triggering backups",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := logging.From(ctx)

			logger.Info("Starting sfbackup server",
				slog.String("addr", serverCfg.Addr),
				slog.Bool("trigger_token", serverCfg.TriggerToken != ""),
			)

			p, err := backupCfg.build(ctx)
			if err != nil {
				return err
			}
			defer p.Close(ctx)

			opts := []controller.Option{
				controller.WithAddr(serverCfg.Addr),
				controller.WithTriggerToken(serverCfg.TriggerToken),
			}
			if p.recorder != nil {
				opts = append(opts, controller.WithRecorder(p.recorder))
			}

			// Create HTTP server with options
			server, err := controller.NewServer(ctx, p.backup, opts...)
			if err != nil {
				return goerr.Wrap(err, "failed to create HTTP server")
			}

			// Start server in goroutine
			go func() {
				logger.Info("HTTP server starting", slog.String("addr", serverCfg.Addr))
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("HTTP server error", slog.Any("error", err))
				}
			}()

			// Wait for interrupt signal
			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

			select {
			case <-ctx.Done():
				logger.Info("Context cancelled, shutting down...")
			case sig := <-sigChan:
				logger.Info("Signal received, shutting down...", slog.Any("signal", sig))
			}

			// Graceful shutdown, waiting for a background run to finish its current work
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				return goerr.Wrap(err, "failed to shutdown server gracefully")
			}

			logger.Info("Server shutdown complete")
			return nil
		},
	}
}
