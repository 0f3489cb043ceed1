package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mochi-hpc/yokan-go/pkg/log"
	"github.com/mochi-hpc/yokan-go/pkg/metrics"
	"github.com/mochi-hpc/yokan-go/pkg/transport"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "yokan-provider",
	Short:   "yokan database provider",
	Version: Version,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	cobra.OnInitialize(initLogging)
	rootCmd.AddCommand(serveCmd)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOut, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(level), JSONOutput: jsonOut})
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Open the configured databases and serve RPCs",
	Long: `serve reads a YAML provider configuration describing which
databases to open at startup, then listens for RPCs and admin calls
until interrupted.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringP("config", "f", "", "provider configuration YAML file (required)")
	serveCmd.Flags().String("address", "127.0.0.1:8499", "address to serve RPCs on")
	serveCmd.Flags().String("metrics-address", "127.0.0.1:9499", "address to serve /metrics, /health, /ready, /live on")
	serveCmd.Flags().String("identity", transport.Identity, "provider identity string advertised to clients")
	_ = serveCmd.MarkFlagRequired("config")
}

func runServe(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	address, _ := cmd.Flags().GetString("address")
	metricsAddr, _ := cmd.Flags().GetString("metrics-address")
	identity, _ := cmd.Flags().GetString("identity")

	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := transport.RegisterProvider(identity); err != nil {
		return fmt.Errorf("register provider identity %q: %w", identity, err)
	}

	srv, err := newServerFromConfig(cfg)
	if err != nil {
		return err
	}
	if err := srv.Listen(address); err != nil {
		return err
	}

	logger := log.WithComponent("provider")
	logger.Info().Str("address", srv.Addr()).Int("databases", len(cfg.Databases)).Msg("provider ready")

	metrics.SetVersion(Version + "+" + Commit)
	metrics.RegisterComponent("rpc", true, "listening on "+srv.Addr())

	go func() {
		http.Handle("/metrics", metrics.Handler())
		http.Handle("/health", metrics.HealthHandler())
		http.Handle("/ready", metrics.ReadyHandler())
		http.Handle("/live", metrics.LivenessHandler())
		if err := http.ListenAndServe(metricsAddr, nil); err != nil {
			logger.Error().Err(err).Msg("metrics server error")
		}
	}()
	logger.Info().Str("address", metricsAddr).Msg("metrics endpoint ready")

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(); err != nil {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigCh:
		logger.Info().Msg("shutting down")
	case err := <-errCh:
		logger.Error().Err(err).Msg("rpc server error")
	}

	return srv.Close()
}
