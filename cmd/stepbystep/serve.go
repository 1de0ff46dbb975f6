package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/log/global"

	"github.com/Cogwheel-Validator/spectra-step-by-step/config"
	"github.com/Cogwheel-Validator/spectra-step-by-step/host"
	"github.com/Cogwheel-Validator/spectra-step-by-step/lcd"
	"github.com/Cogwheel-Validator/spectra-step-by-step/rpc"
)

var (
	serveConfigPath  string
	serveGenesisPath string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Deploy a genesis on the in-memory chain and serve the strategy API",
	Long: `Load the server config (toml file, or STEPBYSTEP_* environment variables when --config is
not given), deploy the genesis it points at and serve the HTTP API. The genesis may be a local
toml/json file or an http(s) url.

Examples:
  stepbystep serve --config server.toml
  STEPBYSTEP_GENESIS_PATH=genesis.toml stepbystep serve`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "c", "", "server config toml file")
	serveCmd.Flags().StringVarP(&serveGenesisPath, "genesis", "g", "", "genesis file, overrides genesis_path of the config")
}

func runServe(cmd *cobra.Command, _ []string) error {
	var configPath *string
	if serveConfigPath != "" {
		configPath = &serveConfigPath
	}
	serverConfig, err := config.LoadServerConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load server config: %w", err)
	}
	if serveGenesisPath != "" {
		serverConfig.GenesisPath = serveGenesisPath
	}
	if serverConfig.GenesisPath == "" {
		return fmt.Errorf("no genesis given, set genesis_path or --genesis")
	}
	if serverConfig.EnableLogs {
		// the global provider delegates to the one NewServer installs
		shareLogger(global.GetLoggerProvider())
	}

	log.Info().
		Str("config", serveConfigPath).
		Str("genesis", serverConfig.GenesisPath).
		Msg("Starting step-by-step strategy server")

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	genesisPath := serverConfig.GenesisPath
	if config.IsRemoteGenesis(genesisPath) {
		dir, err := os.MkdirTemp("", "stepbystep-genesis-")
		if err != nil {
			return fmt.Errorf("failed to create genesis download dir: %w", err)
		}
		defer func() { _ = os.RemoveAll(dir) }()
		if genesisPath, err = config.FetchGenesis(ctx, genesisPath, dir); err != nil {
			return err
		}
	}
	genesis, err := config.LoadGenesis(genesisPath)
	if err != nil {
		return fmt.Errorf("failed to load genesis: %w", err)
	}

	chain, deployment, err := genesis.Build(ctx, host.WithMetrics(host.NewMetrics(prometheus.DefaultRegisterer)))
	if err != nil {
		return fmt.Errorf("failed to deploy genesis: %w", err)
	}

	var live rpc.LiveQuerier
	if len(serverConfig.LCDURLs) > 0 {
		client, err := lcd.NewClient(serverConfig.LCDURLs[0], serverConfig.LCDURLs[1:], lcd.DefaultFailoverConfig())
		if err != nil {
			return fmt.Errorf("failed to create lcd client: %w", err)
		}
		defer client.Close()
		live = client
		log.Info().
			Str("primary", serverConfig.LCDURLs[0]).
			Int("backups", len(serverConfig.LCDURLs)-1).
			Msg("LCD client initialized")
	}

	server, err := rpc.NewServer(ctx, buildServerConfig(serverConfig), rpc.NewService(chain, deployment, live))
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.Start(); err != nil {
			log.Error().Err(err).Msg("Server error")
			sigCh <- syscall.SIGTERM
		}
	}()

	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	return server.Shutdown(shutdownCtx)
}

// buildServerConfig converts the loaded config.ServerConfig to rpc.ServerConfig
func buildServerConfig(cfg *config.ServerConfig) *rpc.ServerConfig {
	serverConfig := &rpc.ServerConfig{
		Address:        cfg.Host + ":" + strconv.Itoa(cfg.Port),
		AllowedOrigins: cfg.AllowedOrigins,
		EnableMetrics:  cfg.EnableMetrics || cfg.UsePrometheus,
	}
	if cfg.RatePerMinute > 0 {
		serverConfig.RatePerMinute = &cfg.RatePerMinute
	}
	if cfg.MaxConcurrentRequests > 0 {
		serverConfig.MaxConcurrentRequests = &cfg.MaxConcurrentRequests
	}

	if cfg.EnableTracing || cfg.EnableMetrics || cfg.UsePrometheus || cfg.EnableLogs {
		serverConfig.OTelConfig = &rpc.OTelConfig{
			ServiceName:        cfg.ServiceName,
			ServiceVersion:     cfg.ServiceVersion,
			Environment:        cfg.Environment,
			EnableTracing:      cfg.EnableTracing,
			UseOTLPTraces:      cfg.UseOTLPTraces,
			OTLPTracesURL:      cfg.OTLPTracesURL,
			EnableMetrics:      cfg.EnableMetrics,
			UsePrometheus:      cfg.UsePrometheus,
			UseOTLPMetrics:     cfg.UseOTLPMetrics,
			OTLPMetricsURL:     cfg.OTLPMetricsURL,
			EnableLogs:         cfg.EnableLogs,
			UseOTLPLogs:        cfg.UseOTLPLogs,
			OTLPLogsURL:        cfg.OTLPLogsURL,
			InsecureOTLP:       cfg.InsecureOTLP,
			OTLPClientCertFile: cfg.OTLPClientCertFile,
			OTLPClientKeyFile:  cfg.OTLPClientKeyFile,
			OTLPCACertFile:     cfg.OTLPCACertFile,
			DevelopmentMode:    cfg.DevelopmentMode,
		}
	}
	return serverConfig
}
