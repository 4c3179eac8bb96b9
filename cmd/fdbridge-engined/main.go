package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dd0wney/cluso-fdb/pkg/logging"
	"github.com/dd0wney/cluso-fdb/pkg/native/sim"
	"github.com/dd0wney/cluso-fdb/pkg/remote"
)

func main() {
	listen := flag.String("listen", "tcp://127.0.0.1:4500", "Listen address (mangos URL)")
	apiVersion := flag.Int("api-version", 101, "API version to pin the engine to")
	latencyMS := flag.Int("latency", 1, "Simulated completion latency in milliseconds")
	dbNames := flag.String("db-names", "DB", "Comma-separated database names the engine accepts")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	logger := logging.NewJSONLogger(os.Stderr, logging.ParseLevel(*logLevel))

	opts := sim.DefaultOptions()
	opts.Latency = time.Duration(*latencyMS) * time.Millisecond
	if *dbNames != "" {
		opts.ValidDatabaseNames = strings.Split(*dbNames, ",")
	}
	engine := sim.NewEngine(opts)

	log.Printf("🚀 fdbridge engine daemon starting...")

	// The daemon owns the engine's network lifecycle; clients negotiate
	// the API version against the one pinned here.
	if code := engine.SelectAPIVersion(*apiVersion); !code.OK() {
		log.Fatalf("Failed to pin API version %d: %s", *apiVersion, engine.ErrorString(code))
	}
	if code := engine.SetupNetwork(); !code.OK() {
		log.Fatalf("Failed to set up network: %s", engine.ErrorString(code))
	}
	netDone := make(chan struct{})
	go func() {
		defer close(netDone)
		if code := engine.RunNetwork(); !code.OK() {
			log.Printf("Network loop exited: %s", engine.ErrorString(code))
		}
	}()

	server, err := remote.NewServer(engine, *listen, logger)
	if err != nil {
		log.Fatalf("Failed to listen on %s: %v", *listen, err)
	}
	log.Printf("✅ Serving engine on %s (api version %d)", *listen, *apiVersion)

	serveDone := make(chan error, 1)
	go func() { serveDone <- server.Serve() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("🛑 Received %v, shutting down...", sig)
	case err := <-serveDone:
		if err != nil {
			log.Printf("Serve failed: %v", err)
		}
	}

	if err := server.Close(); err != nil {
		log.Printf("Server close: %v", err)
	}
	if code := engine.StopNetwork(); !code.OK() {
		log.Printf("Stop network: %s", engine.ErrorString(code))
	}
	<-netDone
	log.Printf("✅ Shutdown complete (open clusters: %d, open databases: %d)",
		engine.OpenClusterCount(), engine.OpenDatabaseCount())
}
