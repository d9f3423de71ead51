// Command shipnetsim-svc launches the maritime simulation engine's broker
// front end: it loads configuration, wires the ambient stack (logging,
// metrics, tracing, audit trail, results cache), acquires the single-instance
// lock, and runs the AMQP server until an interrupt or the broker connection
// drops.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"shipnetsim/pkg/audit"
	"shipnetsim/pkg/cache"
	"shipnetsim/pkg/config"
	"shipnetsim/pkg/logger"
	"shipnetsim/pkg/metrics"
	"shipnetsim/pkg/telemetry"
	"shipnetsim/services/shipnetsim-svc/internal/broker"
	"shipnetsim/services/shipnetsim-svc/internal/cargo"
	"shipnetsim/services/shipnetsim-svc/internal/coordinator"
	"shipnetsim/services/shipnetsim-svc/internal/dispatch"
	"shipnetsim/services/shipnetsim-svc/internal/lock"
	"shipnetsim/services/shipnetsim-svc/internal/network"
)

const defaultBrokerPort = 5672

func main() {
	hostname := flag.String("hostname", "localhost", "broker hostname")
	port := flag.Int("port", defaultBrokerPort, "broker port")
	flag.Parse()

	cfg, err := config.LoadWithServiceDefaults("shipnetsim-svc", defaultBrokerPort)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	// The CLI is the thin, authoritative source for host/port per the
	// launcher contract; everything else comes from the layered config.
	cfg.Broker.Host = *hostname
	cfg.Broker.Port = *port

	logger.InitWithConfig(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		FilePath:   cfg.Log.FilePath,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	})

	ctx := context.Background()

	if cfg.Tracing.Enabled {
		tp, err := telemetry.Init(ctx, telemetry.Config{
			Enabled:     cfg.Tracing.Enabled,
			Endpoint:    cfg.Tracing.Endpoint,
			ServiceName: cfg.App.Name,
			Version:     cfg.App.Version,
			Environment: cfg.App.Environment,
			SampleRate:  cfg.Tracing.SampleRate,
		})
		if err != nil {
			logger.Log.Warn("failed to init telemetry", "error", err)
		} else {
			defer func() {
				if err := tp.Shutdown(context.Background()); err != nil {
					logger.Log.Warn("failed to shutdown telemetry", "error", err)
				}
			}()
			logger.Log.Info("telemetry initialized", "endpoint", cfg.Tracing.Endpoint)
		}
	}

	metrics.InitMetrics(cfg.Metrics.Namespace, cfg.App.Name)
	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.StartMetricsServer(cfg.Metrics.Port); err != nil {
				logger.Log.Warn("metrics server stopped", "error", err)
			}
		}()
	}

	auditLogger, err := audit.New(&audit.Config{
		Enabled:     cfg.Audit.Enabled,
		Backend:     cfg.Audit.Backend,
		FilePath:    cfg.Audit.FilePath,
		BufferSize:  cfg.Audit.BufferSize,
		FlushPeriod: cfg.Audit.FlushPeriod,
	})
	if err != nil {
		logger.Log.Warn("failed to init audit logger", "error", err)
		auditLogger = &audit.NoopLogger{}
	}
	audit.SetGlobal(auditLogger)
	defer auditLogger.Close()

	holderToken := uuid.NewString()
	if cfg.Lock.ServiceName != "" {
		gate, err := lock.New(ctx, cfg.Lock.ServiceName, lock.Options{
			Addr:     cfg.Cache.Address(),
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
			TTL:      cfg.Lock.TTL,
		})
		if err != nil {
			logger.Log.Error("failed to reach single-instance lock backend", "error", err)
			os.Exit(1)
		}
		if err := gate.Acquire(ctx, holderToken); err != nil {
			logger.Log.Error("another instance is already running", "service", cfg.Lock.ServiceName, "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := gate.Release(context.Background()); err != nil {
				logger.Log.Warn("failed to release single-instance lock", "error", err)
			}
			gate.Close()
		}()
		logger.Log.Info("single-instance lock acquired", "service", cfg.Lock.ServiceName)
	}

	coord := coordinator.New(defaultNetworkFactory, cargo.NoopHandler{})
	coord.SetOutputDir(cfg.Simulation.DefaultOutputDir)

	if cfg.Cache.Enabled {
		resultsCache, err := cache.New(cache.FromConfig(&cfg.Cache))
		if err != nil {
			logger.Log.Warn("failed to init results cache, continuing without it", "error", err)
		} else {
			coord.SetResultsCache(resultsCache)
			defer resultsCache.Close()
		}
	}

	dispatcher := dispatch.New(coord)
	server := broker.New(cfg.Broker, dispatcher)
	coord.OnEvent = server.PublishEvent

	if m := metrics.Get(); m != nil {
		m.SetServiceInfo(cfg.App.Version, cfg.App.Environment)
	}

	logAuditEntry(ctx, auditLogger, audit.ActionCreate, "server.Start", map[string]any{
		"host":        cfg.Broker.Host,
		"port":        cfg.Broker.Port,
		"environment": cfg.App.Environment,
		"version":     cfg.App.Version,
	})

	logger.Log.Info("starting shipnetsim-svc",
		"broker_host", cfg.Broker.Host,
		"broker_port", cfg.Broker.Port,
		"environment", cfg.App.Environment,
		"version", cfg.App.Version,
	)

	runCtx, cancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Run(runCtx)
	}()

	waitForShutdown(errCh, cancel, server, auditLogger)
}

// defaultNetworkFactory is the broker's network loader. Geographic network
// ingestion from a file path is out of scope (§1: "the core invokes it as an
// opaque Network capability"); every path, including "default", resolves to
// a routable stub network so the broker's commands have something concrete
// to route ships through.
func defaultNetworkFactory(path, name string) (network.Network, error) {
	return network.NewStubNetwork(name, nil), nil
}

// waitForShutdown blocks until the broker's Run loop exits on its own or an
// interrupt/termination signal arrives, then tears everything down with a
// bounded grace period.
func waitForShutdown(errCh chan error, cancel context.CancelFunc, server *broker.Server, auditLogger audit.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Log.Error("broker server stopped with error", "error", err)
		}
	case sig := <-quit:
		logger.Log.Info("received shutdown signal", "signal", sig)
		cancel()
		select {
		case <-errCh:
		case <-time.After(30 * time.Second):
			logger.Log.Warn("timed out waiting for broker run loop to exit")
		}
	}

	logAuditEntry(context.Background(), auditLogger, audit.ActionUpdate, "server.Shutdown", map[string]any{"reason": "signal"})

	if err := server.Close(); err != nil {
		logger.Log.Warn("failed to close broker connection", "error", err)
	}
}

func logAuditEntry(ctx context.Context, auditLogger audit.Logger, action audit.Action, method string, meta map[string]any) {
	if auditLogger == nil {
		return
	}
	builder := audit.NewEntry().
		Service("shipnetsim-svc").
		Method(method).
		Action(action).
		Outcome(audit.OutcomeSuccess)
	for k, v := range meta {
		builder = builder.Meta(k, v)
	}
	if err := auditLogger.Log(ctx, builder.Build()); err != nil {
		logger.Log.Warn("failed to log audit entry", "error", err)
	}
}
