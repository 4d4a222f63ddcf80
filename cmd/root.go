package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/fieldcast/app"
	"github.com/kilianp07/fieldcast/config"
	"github.com/kilianp07/fieldcast/infra/logger"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:           "fieldcast",
	Short:         "Spatiotemporal prediction runner",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

// withService loads the configuration, builds the service and runs fn with
// a context cancelled on SIGINT or SIGTERM.
func withService(cmd *cobra.Command, fn func(ctx context.Context, cfg *config.Config, svc *app.Service) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()
	svc.StartMetrics(ctx)
	return fn(ctx, cfg, svc)
}
