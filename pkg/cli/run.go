package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/m-mizutani/sfbackup/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdRun() *cli.Command {
	var cfg backupConfig

	return &cli.Command{
		Name:    "run",
		Aliases: []string{"r"},
		Usage:   "Run the backup pipeline once",
		Flags:   cfg.Flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			p, err := cfg.build(ctx)
			if err != nil {
				return err
			}
			defer p.Close(ctx)

			run, err := p.backup.Run(ctx)
			if err != nil {
				if isNoExports(err) {
					// Nothing to back up yet; the next scheduled run will pick it up
					return nil
				}
				return err
			}

			logging.From(ctx).Info("Backup completed",
				"run_id", run.ID,
				"object", run.ObjectName,
				"duration", run.Duration(),
			)
			return nil
		},
	}
}
