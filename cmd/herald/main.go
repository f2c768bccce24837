package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/herald/pkg/api"
	"github.com/cuemby/herald/pkg/client"
	"github.com/cuemby/herald/pkg/config"
	"github.com/cuemby/herald/pkg/log"
	"github.com/cuemby/herald/pkg/manager"
	"github.com/cuemby/herald/pkg/metrics"
	"github.com/cuemby/herald/pkg/session/local"
	"github.com/cuemby/herald/pkg/storage"
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
	Use:   "herald",
	Short: "Herald - keeps game servers listed on friends lists",
	Long: `Herald runs a fleet of bot accounts that advertise game servers
as joinable sessions, keeping each bot's session and friend list in sync.

Run "herald serve" to start the server, then manage bots and servers
with the other commands.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Herald version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("api", "127.0.0.1:8080", "Herald API address")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(botCmd)
	rootCmd.AddCommand(serverCmd)
}

// newClient connects to the address in the --api flag
func newClient(cmd *cobra.Command) (*client.Client, error) {
	addr, _ := cmd.Flags().GetString("api")
	c, err := client.NewClient(addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to herald: %v", err)
	}
	return c, nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the herald server",
	Long: `Run the herald server: load every stored bot, start them, and
serve the HTTP API until interrupted.

Flags override values from the config file.`,
	RunE: runServe,
}

func init() {
	addServeFlags(serveCmd)
}

func addServeFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("config", "c", "", "YAML config file")
	cmd.Flags().String("api-addr", "", "Address for the HTTP API")
	cmd.Flags().String("data-dir", "", "Data directory for bot and server state")
	cmd.Flags().Bool("read-only", false, "Reject every mutating API request")
	cmd.Flags().String("log-level", "", "Log level (debug, info, warn, error)")
	cmd.Flags().Bool("log-json", false, "Log as JSON")
}

func loadServeConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("api-addr") {
		cfg.APIAddr, _ = flags.GetString("api-addr")
	}
	if flags.Changed("data-dir") {
		cfg.DataDir, _ = flags.GetString("data-dir")
	}
	if flags.Changed("read-only") {
		cfg.ReadOnly, _ = flags.GetBool("read-only")
	}
	if flags.Changed("log-level") {
		cfg.Log.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-json") {
		cfg.Log.JSON, _ = flags.GetBool("log-json")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadServeConfig(cmd)
	if err != nil {
		return err
	}

	log.Init(log.Config{
		Level:      cfg.LogLevel(),
		JSONOutput: cfg.Log.JSON,
	})
	logger := log.WithComponent("main")
	metrics.SetVersion(Version)

	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		return fmt.Errorf("failed to create data directory: %v", err)
	}

	store, err := storage.NewBoltStore(cfg.DataDir)
	if err != nil {
		metrics.SetComponentErr(metrics.ComponentStorage, err)
		return fmt.Errorf("failed to open storage: %v", err)
	}
	defer store.Close()
	metrics.SetComponentErr(metrics.ComponentStorage, nil)

	mgr := manager.NewManager(cfg.ManagerConfig(), store, local.NewFactory(local.Options{}))
	if err := mgr.Load(); err != nil {
		metrics.SetComponentErr(metrics.ComponentRegistry, err)
		return fmt.Errorf("failed to load bots: %v", err)
	}
	metrics.SetComponentErr(metrics.ComponentRegistry, nil)
	mgr.StartAll()

	collector := manager.NewMetricsCollector(mgr)
	collector.Start()

	apiServer := api.NewServer(mgr, api.Options{ReadOnly: cfg.ReadOnly})
	errCh := make(chan error, 1)
	go func() {
		if err := apiServer.Start(cfg.APIAddr); err != nil {
			errCh <- fmt.Errorf("API server error: %v", err)
		}
	}()

	logger.Info().
		Str("api_addr", cfg.APIAddr).
		Str("data_dir", cfg.DataDir).
		Str("version", Version).
		Msg("Herald is running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("Shutting down")
	case err := <-errCh:
		logger.Error().Err(err).Msg("API server failed, shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := apiServer.Stop(ctx); err != nil {
		logger.Warn().Err(err).Msg("API server did not stop cleanly")
	}
	collector.Stop()
	mgr.Shutdown()

	logger.Info().Msg("Shutdown complete")
	return nil
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server health",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		health, err := c.Health()
		if err != nil {
			return fmt.Errorf("failed to get health: %v", err)
		}

		fmt.Printf("Status:  %s\n", health.Status)
		if health.Version != "" {
			fmt.Printf("Version: %s\n", health.Version)
		}
		fmt.Printf("Uptime:  %s\n", health.Uptime)
		if len(health.Components) > 0 {
			fmt.Println("Components:")
			for _, name := range sortedKeys(health.Components) {
				fmt.Printf("  %-10s %s\n", name, health.Components[name])
			}
		}
		return nil
	},
}
