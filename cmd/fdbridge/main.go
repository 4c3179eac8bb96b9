package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dd0wney/cluso-fdb/pkg/bridge"
	"github.com/dd0wney/cluso-fdb/pkg/config"
	"github.com/dd0wney/cluso-fdb/pkg/logging"
	"github.com/dd0wney/cluso-fdb/pkg/metrics"
	"github.com/dd0wney/cluso-fdb/pkg/native"
	"github.com/dd0wney/cluso-fdb/pkg/native/sim"
	"github.com/dd0wney/cluso-fdb/pkg/remote"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	clusterFile := flag.String("cluster-file", "", "Cluster file path (empty = engine default)")
	dbName := flag.String("db", "", "Database name to open")
	engineMode := flag.String("engine", "", "Engine mode: sim or remote")
	engineAddr := flag.String("engine-addr", "", "Engine daemon address (remote mode)")
	metricsAddr := flag.String("metrics", "", "Metrics listen address, e.g. :9090 (empty = disabled)")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	applyFlags(&cfg, *clusterFile, *dbName, *engineMode, *engineAddr, *metricsAddr, *logLevel)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger := logging.NewJSONLogger(os.Stderr, logging.ParseLevel(cfg.LogLevel))
	reg := metrics.DefaultRegistry()

	log.Printf("🚀 fdbridge starting...")
	log.Printf("⚙️  Engine: %s", cfg.Engine.Mode)

	lib, cleanup, err := buildEngine(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to build engine: %v", err)
	}
	defer cleanup()

	br, err := bridge.NewBridge(lib, bridge.Config{
		APIVersion:          cfg.APIVersion,
		DefaultClusterFile:  cfg.ClusterFile,
		CompletionQueueSize: cfg.CompletionQueueSize,
		Logger:              logger,
		Metrics:             reg,
	})
	if err != nil {
		log.Fatalf("Failed to create bridge: %v", err)
	}
	if err := br.Start(); err != nil {
		log.Fatalf("Failed to start bridge: %v", err)
	}

	startTime := time.Now()
	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, reg, startTime)
		log.Printf("📊 Metrics: http://localhost%s/metrics", cfg.MetricsAddr)
	}

	// Open the configured database both ways: blocking for the handle we
	// keep, and async once to show the callback path.
	timer := logging.StartTimer(logger, "open database",
		logging.ClusterFile(cfg.ClusterFile),
		logging.DatabaseName(cfg.DatabaseName))
	db, err := br.Open(cfg.ClusterFile, cfg.DatabaseName)
	if err != nil {
		timer.EndError(err)
		log.Fatalf("Failed to open database: %v", err)
	}
	timer.End()
	log.Printf("✅ Database %q open", db.Name())

	future := br.OpenCluster(cfg.ClusterFile)
	future.OnReady(func() {
		if c, _, err := future.Poll(); err == nil {
			logger.Info("async cluster open completed", logging.ClusterFile(c.ClusterFile()))
			c.Close()
		} else {
			logger.Warn("async cluster open failed", logging.Error(err))
		}
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("🛑 Received %v, shutting down...", sig)

	db.Close()
	if err := br.Stop(); err != nil {
		log.Printf("Bridge stop: %v", err)
	}
	log.Printf("✅ Shutdown complete (open handles: %d, in flight: %d)",
		br.OpenHandleCount(), br.InFlightCount())
}

// applyFlags lets command-line flags override file config.
func applyFlags(cfg *config.Config, clusterFile, dbName, engineMode, engineAddr, metricsAddr, logLevel string) {
	if clusterFile != "" {
		cfg.ClusterFile = clusterFile
	}
	if dbName != "" {
		cfg.DatabaseName = dbName
	}
	if engineMode != "" {
		cfg.Engine.Mode = engineMode
	}
	if engineAddr != "" {
		cfg.Engine.Addr = engineAddr
	}
	if metricsAddr != "" {
		cfg.MetricsAddr = metricsAddr
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
}

// buildEngine constructs the native.Lib backing the bridge. The cleanup
// function runs after the bridge has stopped.
func buildEngine(cfg config.Config, logger logging.Logger) (native.Lib, func(), error) {
	switch cfg.Engine.Mode {
	case config.EngineRemote:
		client, err := remote.Dial(cfg.Engine.Addr, logger)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("🔗 Connected to engine daemon at %s", cfg.Engine.Addr)
		return client, func() { client.Close() }, nil
	default:
		opts := sim.DefaultOptions()
		opts.Latency = time.Duration(cfg.Engine.LatencyMS) * time.Millisecond
		return sim.NewEngine(opts), func() {}, nil
	}
}

func serveMetrics(addr string, reg *metrics.Registry, start time.Time) {
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			reg.UpdateSystemMetrics(start)
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg.GetPrometheusRegistry(), promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Printf("Metrics server failed: %v", err)
	}
}
