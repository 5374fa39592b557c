package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/artpar/fieldschema/config"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow config reloads and schema changes",
	Long: `Keep the schema stores open and follow changes until interrupted.

The config file is watched for changes and reloaded on SIGHUP. A reload
applies the log level and loads new module definitions from modules.dir.
The database is polled for schema changes made by other fieldctl runs;
each one is logged with its audit summary.

Examples:
  fieldctl watch --config /etc/fieldschema/fieldschema.yaml
  fieldctl watch --interval 10s`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

var watchInterval time.Duration

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 2*time.Second, "How often to poll storage for schema changes")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(cfgFile); err != nil {
		return fmt.Errorf("config file required for watch: %w", err)
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	holder, err := config.NewHolder(cfgFile, a.Logger.With().Str("component", "config").Logger())
	if err != nil {
		return err
	}
	defer holder.Stop()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.Watch(ctx, holder)
	if err := holder.WatchFile(); err != nil {
		return err
	}
	holder.WatchSignals()

	if watchInterval <= 0 {
		return fmt.Errorf("--interval must be positive, got %s", watchInterval)
	}
	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()

	a.Logger.Info().Strs("modules", a.Modules()).Dur("interval", watchInterval).Msg("watching for changes")
	for {
		select {
		case <-ctx.Done():
			a.Logger.Info().Msg("shutting down")
			return nil
		case <-ticker.C:
			if _, err := a.Refresh(ctx); err != nil {
				a.Logger.Error().Err(err).Msg("schema refresh failed")
			}
		}
	}
}
