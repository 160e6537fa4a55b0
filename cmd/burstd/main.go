package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudhands/burst/pkg/agent"
	"github.com/cloudhands/burst/pkg/audit"
	"github.com/cloudhands/burst/pkg/config"
	"github.com/cloudhands/burst/pkg/gateway"
	"github.com/cloudhands/burst/pkg/log"
	"github.com/cloudhands/burst/pkg/message"
	"github.com/cloudhands/burst/pkg/metrics"
	"github.com/cloudhands/burst/pkg/model"
	"github.com/cloudhands/burst/pkg/reconciler"
	"github.com/cloudhands/burst/pkg/scheduler"
	"github.com/cloudhands/burst/pkg/store/sqlstore"
	"github.com/cloudhands/burst/pkg/tokenpipe"
	"github.com/spf13/cobra"
)

var (
	// Version is set via ldflags during build.
	Version = "dev"
)

// defaultCustomizationScript is installed on every composed vApp that
// doesn't carry its own. PreCheckAgent deems a customisation script in
// place only when it has more than five lines, so this one is longer than
// that.
const defaultCustomizationScript = `#!/bin/sh
# burst guest customisation
set -e
umask 022
mkdir -p /var/log
echo "burst: customization complete" > /var/log/burst-customize.log
`

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "burstd",
	Short:   "burstd drives appliances through provisioning, health-check and lifecycle state on a remote IaaS provider",
	Version: Version,
	RunE:    run,
}

func init() {
	rootCmd.Flags().String("db", "file::memory:?cache=shared", "SQLite database DSN")
	rootCmd.Flags().String("config", "./burst.yaml", "provider configuration file")
	rootCmd.Flags().Int("interval", 1, "scheduling tick cap in seconds, for the idle sleep")
	rootCmd.Flags().String("log", "", "append-only log file path (default stderr)")
	rootCmd.Flags().BoolP("verbose", "v", false, "debug log verbosity")
	rootCmd.SetVersionTemplate("burstd {{.Version}}\n")
}

func run(cmd *cobra.Command, _ []string) error {
	dbDSN, _ := cmd.Flags().GetString("db")
	configPath, _ := cmd.Flags().GetString("config")
	logPath, _ := cmd.Flags().GetString("log")
	verbose, _ := cmd.Flags().GetBool("verbose")
	intervalSeconds, _ := cmd.Flags().GetInt("interval")

	logOutput, err := openLogOutput(logPath)
	if err != nil {
		return fmt.Errorf("burstd: open log output: %w", err)
	}
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}
	log.Init(log.Config{Level: level, JSONOutput: logPath != "", Output: logOutput})

	v, cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("burstd: load config: %w", err)
	}
	resolved, err := cfg.Resolve()
	if err != nil {
		return fmt.Errorf("burstd: resolve config: %w", err)
	}

	s, err := sqlstore.Open(dbDSN)
	if err != nil {
		return fmt.Errorf("burstd: open store: %w", err)
	}
	defer s.Close()

	controller, err := s.Component("burst.controller")
	if err != nil {
		return fmt.Errorf("burstd: resolve controller component (has the database been seeded?): %w", err)
	}

	gw := gateway.NewHTTPGateway(gateway.Config{
		RequestTimeout:   resolved.GatewayTimeout,
		BreakerThreshold: resolved.BreakerThreshold,
		BreakerTimeout:   resolved.BreakerTimeout,
		MaxRetries:       resolved.MaxRetries,
	})

	readers, err := openTokenPipes(resolved.Providers)
	if err != nil {
		return fmt.Errorf("burstd: open token pipes: %w", err)
	}

	provisioning := agent.NewProvisioningAgent(s, gw, controller.ID, defaultCustomizationScript)
	provisioning.Dwell = resolved.ProvisioningDwell

	agents := []agent.Agent{
		agent.NewPreProvisionAgent(s, gw, controller.ID),
		provisioning,
		agent.NewPreCheckAgent(s, gw, controller.ID),
		agent.NewPreOperationalAgent(s, gw, controller.ID),
		agent.NewPreStartAgent(s, gw, controller.ID),
		agent.NewPreStopAgent(s, gw, controller.ID),
		agent.NewPreDeleteAgent(s, gw, controller.ID),
		agent.NewTokenIngressAgent(s, gw, controller.ID, readers),
	}

	dispatcher := message.NewDispatcher()
	for _, a := range agents {
		for _, cb := range a.Callbacks() {
			dispatcher.Register(cb.Sample, cb.Handler)
		}
	}

	inbound := make(chan any, 64)
	sched := scheduler.New(s, dispatcher, agents, inbound, resolved.DispatchDeadline)
	sched.SetIdleInterval(time.Duration(intervalSeconds) * time.Second)

	auditBroker := audit.NewBroker()
	auditBroker.Start()
	defer auditBroker.Stop()
	sched.SetAuditBroker(auditBroker)

	providers, err := resolveProviders(s, resolved.Providers)
	if err != nil {
		return fmt.Errorf("burstd: resolve providers (has the database been seeded?): %w", err)
	}
	recon := reconciler.New(s, providers, 0, 0)
	recon.Start()
	defer recon.Stop()

	config.Watch(v, func(r config.Resolved) {
		log.Logger.Info().Int("providers", len(r.Providers)).Msg("burstd: configuration reloaded")
	})

	go serveMetrics(resolved.MetricsAddr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Logger.Info().Str("db", dbDSN).Int("agents", len(agents)).Msg("burstd: starting")
	sched.Operate(ctx, inbound)
	log.Logger.Info().Msg("burstd: shut down cleanly")
	return nil
}

func resolveProviders(s *sqlstore.Store, configured []config.ProviderConfig) ([]model.Provider, error) {
	providers := make([]model.Provider, 0, len(configured))
	for _, p := range configured {
		provider, err := s.ProviderByName(p.Name)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", p.Name, err)
		}
		providers = append(providers, provider)
	}
	return providers, nil
}

func openLogOutput(path string) (*os.File, error) {
	if path == "" {
		return os.Stderr, nil
	}
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
}

func openTokenPipes(providers []config.ProviderConfig) ([]*tokenpipe.Reader, error) {
	readers := make([]*tokenpipe.Reader, 0, len(providers))
	for _, p := range providers {
		if p.PipePath == "" {
			continue
		}
		r, err := tokenpipe.Open(p.PipePath)
		if err != nil {
			return nil, fmt.Errorf("burstd: open pipe for %s: %w", p.Name, err)
		}
		readers = append(readers, r)
	}
	return readers, nil
}

func serveMetrics(addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Logger.Error().Err(err).Str("addr", addr).Msg("burstd: metrics server stopped")
	}
}
