package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/chargepal/fleetctl/pkg/api"
	"github.com/chargepal/fleetctl/pkg/config"
	"github.com/chargepal/fleetctl/pkg/controller"
	"github.com/chargepal/fleetctl/pkg/layout"
	"github.com/chargepal/fleetctl/pkg/livestore"
	"github.com/chargepal/fleetctl/pkg/log"
	"github.com/chargepal/fleetctl/pkg/planstore"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "chargepalctl",
	Short: "chargepalctl runs the ChargePal fleet controller",
	Long: `chargepalctl is the central fleet controller for a parking-lot
robot battery-charging service: it reconciles LiveStore bookings into
PlanStore, schedules charging/retrieval jobs, and serves the robot-
facing RPC façade.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"chargepalctl version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(serveCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the tick loop and RPC façade",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("config", "", "Path to a YAML config file (defaults baked in if omitted)")
}

func runServe(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := log.WithComponent("chargepalctl")
	logger.Info().Str("http_addr", cfg.HTTP.Addr).Dur("tick_interval", cfg.Tick()).Msg("starting chargepalctl")

	plan, err := planstore.Open(cfg.PlanStore.DataDir)
	if err != nil {
		return fmt.Errorf("open planstore: %w", err)
	}
	defer plan.Close()
	if err := plan.SeedDistances(layout.New()); err != nil {
		return fmt.Errorf("seed distances: %w", err)
	}

	live, err := livestore.Open(livestore.Config{
		MySQLDSN:   cfg.LiveStore.MySQLDSN,
		SQLitePath: cfg.LiveStore.SQLitePath,
	})
	if err != nil {
		return fmt.Errorf("open livestore: %w", err)
	}
	defer live.Close()

	ctrl := controller.New(controller.Config{TickInterval: cfg.Tick()}, plan, live)
	server := api.NewServer(ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		if err := ctrl.Run(ctx); err != nil {
			errCh <- fmt.Errorf("controller: %w", err)
		}
	}()
	go func() {
		if err := server.Start(ctx, cfg.HTTP.Addr); err != nil {
			errCh <- fmt.Errorf("api server: %w", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		logger.Error().Err(err).Msg("component exited unexpectedly")
	}

	cancel()
	ctrl.Stop()

	logger.Info().Msg("shutdown complete")
	return nil
}
