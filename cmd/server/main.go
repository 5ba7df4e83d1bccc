package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/micro-ha/netduma-telemetry/internal/aggregator"
	"github.com/micro-ha/netduma-telemetry/internal/config"
	"github.com/micro-ha/netduma-telemetry/internal/configsync"
	"github.com/micro-ha/netduma-telemetry/internal/dumaos"
	httpapi "github.com/micro-ha/netduma-telemetry/internal/http"
	"github.com/micro-ha/netduma-telemetry/internal/logging"
	"github.com/micro-ha/netduma-telemetry/internal/model"
	"github.com/micro-ha/netduma-telemetry/internal/oui"
	"github.com/micro-ha/netduma-telemetry/internal/poller"
	"github.com/micro-ha/netduma-telemetry/internal/service"
	"github.com/micro-ha/netduma-telemetry/internal/state"
	"github.com/micro-ha/netduma-telemetry/internal/storage"
)

var rootCmd = &cobra.Command{
	Use:   "netduma-telemetry",
	Short: "DumaOS router telemetry addon backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
}

func init() {
	config.SetDefaults()

	rootCmd.Flags().String("http-addr", "", "listen address for the HTTP API")
	rootCmd.Flags().String("db-path", "", "path to the sqlite registry database")
	rootCmd.Flags().String("log-level", "", "log level: debug, info, warn, error")
	_ = viper.BindPFlag("http_addr", rootCmd.Flags().Lookup("http-addr"))
	_ = viper.BindPFlag("db_path", rootCmd.Flags().Lookup("db-path"))
	_ = viper.BindPFlag("log_level", rootCmd.Flags().Lookup("log-level"))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)

	if err := os.MkdirAll(cfg.DBDir(), 0o755); err != nil {
		logger.Error("failed to create db directory", "err", err)
		return err
	}
	repo, err := storage.New(ctx, cfg.DBPath, logger)
	if err != nil {
		logger.Error("failed to initialize storage", "err", err)
		return err
	}
	defer repo.Close()

	cfgClient := configsync.NewClient(cfg.HABaseURL, cfg.SupervisorToken)
	cfgManager := configsync.NewManager(cfgClient, logger)
	if _, err := cfgManager.Refresh(ctx); err != nil {
		logger.Warn("initial config refresh failed", "err", err)
	}

	vendors, err := oui.LoadEmbedded()
	if err != nil {
		logger.Warn("vendor registry unavailable", "err", err)
	}

	store := state.New()
	svc := service.New(store, repo, aggregator.New(), cfgManager, vendors, logger, func(rc model.RouterConfig) service.RouterClient {
		return dumaos.NewClient(rc, logger)
	})
	devicePoller := poller.New(svc, cfgManager, logger)

	go runConfigFallbackRefresh(ctx, cfg.ConfigRefreshInterval, cfgManager, devicePoller, logger)

	if cfg.SupervisorToken != "" {
		watcher := configsync.NewWatcher(cfg.HABaseURL, cfg.SupervisorToken, logger)
		go watcher.Run(ctx, func() {
			refreshCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			changed, err := cfgManager.Refresh(refreshCtx)
			if err != nil {
				logger.Warn("config refresh from event failed", "err", err)
				return
			}
			if changed {
				devicePoller.TriggerRefresh()
			}
		})
	} else {
		logger.Warn("SUPERVISOR_TOKEN is empty; config event watcher disabled")
	}

	go devicePoller.Run(ctx)
	devicePoller.TriggerRefresh()

	api := httpapi.New(svc, devicePoller, logger)
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(api),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("server starting", "addr", server.Addr)
	if err := httpapi.RunServer(ctx, server); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server terminated with error", "err", err)
		return err
	}
	logger.Info("server stopped")
	return nil
}

func runConfigFallbackRefresh(ctx context.Context, interval time.Duration, cfg *configsync.Manager, p *poller.Poller, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			refreshCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			changed, err := cfg.Refresh(refreshCtx)
			cancel()
			if err != nil {
				logger.Warn("periodic config refresh failed", "err", err)
				continue
			}
			if changed {
				p.TriggerRefresh()
			}
		}
	}
}
