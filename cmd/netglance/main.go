// Command netglance runs the NetGlance monitoring server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/HerbHall/netglance/internal/alert"
	"github.com/HerbHall/netglance/internal/config"
	"github.com/HerbHall/netglance/internal/event"
	"github.com/HerbHall/netglance/internal/metrics"
	"github.com/HerbHall/netglance/internal/registry"
	"github.com/HerbHall/netglance/internal/server"
	"github.com/HerbHall/netglance/internal/store"
	"github.com/HerbHall/netglance/internal/topo"
	"github.com/HerbHall/netglance/internal/version"
	"github.com/HerbHall/netglance/internal/watch"
	"github.com/HerbHall/netglance/internal/ws"
	"github.com/HerbHall/netglance/pkg/plugin"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Info())
		os.Exit(0)
	}

	// Load configuration (before logger, so log level/format can be configured).
	viperCfg, err := server.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	cfg := config.New(viperCfg)

	logger, err := config.NewLogger(viperCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("NetGlance server starting", zap.String("version", version.Short()))

	if f := viperCfg.ConfigFileUsed(); f != "" {
		logger.Info("configuration loaded",
			zap.String("component", "config"),
			zap.String("source", f),
		)
	} else {
		logger.Warn("no configuration file found, using defaults",
			zap.String("component", "config"),
		)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Open the database. A failed open degrades to in-memory operation
	// instead of refusing to start: the topology stays editable and the
	// sweep keeps running, only persistence is lost.
	dsn := viperCfg.GetString("database.dsn")
	if dsn == "" {
		dsn = "./data/netglance.db"
	}
	db, err := store.New(dsn)
	if err != nil {
		logger.Warn("failed to open database, continuing without persistence",
			zap.String("component", "database"),
			zap.String("dsn", dsn),
			zap.Error(err),
		)
		db = nil
	} else {
		defer db.Close()
		if err := db.CheckVersion(ctx, version.Short()); err != nil {
			logger.Fatal("schema version check failed", zap.Error(err))
		}
		logger.Info("database initialized",
			zap.String("component", "database"),
			zap.String("dsn", dsn),
		)
	}

	// Shared services.
	bus := event.NewBus(logger.Named("event"))
	collector := metrics.NewCollector(prometheus.DefaultRegisterer, logger.Named("metrics"))
	collector.Start(ctx, 5*time.Second)
	defer collector.Stop()

	reg := registry.New(logger.Named("registry"))

	// Register all plugins (compile-time composition).
	topoModule := topo.New()
	topoModule.SetStorageObserver(collector.RecordStorageOp)
	modules := []plugin.Plugin{
		topoModule,
		watch.New(),
		alert.New(collector),
		ws.New(),
	}
	for _, m := range modules {
		if err := reg.Register(m); err != nil {
			logger.Fatal("failed to register plugin", zap.Error(err))
		}
	}

	if err := reg.Validate(); err != nil {
		logger.Fatal("plugin validation failed", zap.Error(err))
	}

	if err := reg.InitAll(ctx, func(name string) plugin.Dependencies {
		deps := plugin.Dependencies{
			Config:  cfg.Sub("plugins." + name),
			Logger:  logger.Named(name),
			Bus:     bus,
			Plugins: reg,
		}
		if db != nil {
			deps.Store = db
		}
		return deps
	}); err != nil {
		logger.Fatal("failed to initialize plugins", zap.Error(err))
	}

	if err := reg.StartAll(ctx); err != nil {
		logger.Fatal("failed to start plugins", zap.Error(err))
	}

	// Create and start the HTTP server.
	var srvCfg server.Config
	if err := viperCfg.UnmarshalKey("server", &srvCfg); err != nil {
		logger.Fatal("invalid server configuration", zap.Error(err))
	}
	addr := srvCfg.Addr()
	readyCheck := server.ReadinessChecker(func(ctx context.Context) error {
		if db == nil {
			// Degraded but intentionally serving.
			return nil
		}
		return db.DB().PingContext(ctx)
	})
	srv := server.New(addr, reg, logger.Named("server"), readyCheck, collector)

	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	logger.Info("NetGlance server ready", zap.String("addr", addr))

	// Wait for shutdown signal.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	reg.StopAll(shutdownCtx)

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}

	logger.Info("NetGlance server stopped")
}
