package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"hydra/internal/config"
	hydraerrors "hydra/internal/errors"
	"hydra/internal/llm"
	"hydra/internal/logging"
	serverhttp "hydra/internal/server/http"
	"hydra/internal/solver/app"
)

var version = "0.1.0"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "hydra-server",
		Short: "Concurrent solver orchestration server",
		Long: "hydra-server fans a problem statement out to concurrent solver agents,\n" +
			"each running an iterate/verify loop against a reasoning service, and\n" +
			"streams their progress over WebSocket.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	cmd.AddCommand(newVersionCommand())
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the server version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "hydra-server %s\n", version)
		},
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logging.SetLevel(cfg.LogLevel())
	logger := logging.NewComponentLogger("Main")
	logger.Info("Starting hydra-server %s", version)
	logger.Info("Model: %s, default agents: %d, max in-flight calls: %d",
		cfg.Adapter.Model, cfg.Solver.DefaultAgents, cfg.Solver.MaxInflightCalls)

	client := llm.NewClient(llm.Config{
		APIKey:  cfg.Adapter.APIKey,
		BaseURL: cfg.Adapter.BaseURL,
		Model:   cfg.Adapter.Model,
		Timeout: cfg.Adapter.Timeout,
		Referer: cfg.Adapter.Referer,
		Title:   cfg.Adapter.Title,
	})
	adapter := llm.NewReasoningService(client)

	metrics := app.NewMetrics(prometheus.DefaultRegisterer)
	broadcaster := app.NewEventBroadcaster(metrics)
	registry := app.NewRegistry(adapter, broadcaster, metrics, app.RegistryConfig{
		MaxInflightAdapterCalls: cfg.Solver.MaxInflightCalls,
		RetainedTasks:           cfg.Solver.RetainedTasks,
		Retry:                   hydraerrors.DefaultRetryConfig(),
	})

	server := serverhttp.NewServer(registry, broadcaster, serverhttp.ServerConfig{
		Host:          cfg.Server.Host,
		Port:          cfg.Server.Port,
		EnableCORS:    cfg.Server.EnableCORS,
		Debug:         cfg.Server.Debug,
		Version:       version,
		ReadHeader:    serverhttp.DefaultServerConfig().ReadHeader,
		DefaultAgents: cfg.Solver.DefaultAgents,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("Received %s, shutting down", sig)
	}

	if err := server.Stop(); err != nil {
		return err
	}
	logger.Info("Server stopped")
	return nil
}
