// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Command dhcpscryd passively observes DHCP traffic, classifies the client
// operating system from its option fingerprint (escalating to an SMB probe
// when the passive signal is weak), and serves the results over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"grimm.is/dhcpscry/internal/api"
	"grimm.is/dhcpscry/internal/config"
	"grimm.is/dhcpscry/internal/detect"
	"grimm.is/dhcpscry/internal/fingerprint"
	"grimm.is/dhcpscry/internal/listener"
	"grimm.is/dhcpscry/internal/logging"
	"grimm.is/dhcpscry/internal/pipeline"
	"grimm.is/dhcpscry/internal/smb"
	"grimm.is/dhcpscry/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	listenAddr := flag.String("listen", "", "override UDP listen address")
	webAddr := flag.String("web", "", "override HTTP listen address")
	dbPath := flag.String("db", "", "override sqlite database path (empty string in config disables persistence)")
	logLevel := flag.String("log-level", "", "override log level (debug, info, warn, error)")
	logJSON := flag.Bool("log-json", false, "log in JSON format")
	flag.Parse()

	if err := run(*configPath, *listenAddr, *webAddr, *dbPath, *logLevel, *logJSON); err != nil {
		fmt.Fprintln(os.Stderr, "dhcpscryd:", err)
		os.Exit(1)
	}
}

func run(configPath, listenAddr, webAddr, dbPath, logLevel string, logJSON bool) error {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if listenAddr != "" {
		cfg.ListenAddr = listenAddr
	}
	if webAddr != "" {
		cfg.WebAddr = webAddr
	}
	if dbPath != "" {
		cfg.DatabasePath = dbPath
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.LogLevel
	if logJSON {
		logCfg.Format = "json"
	}
	logging.SetDefault(logging.New(logCfg))
	logger := logging.WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Sinks: in-memory history ring, websocket live feed, and (optionally)
	// sqlite persistence.
	history := api.NewHistory(cfg.HistorySize)
	hub := api.NewHub()
	sinks := []pipeline.Sink{history, hub}

	var st *store.Store
	if cfg.DatabasePath != "" {
		var err error
		st, err = store.Open(cfg.DatabasePath)
		if err != nil {
			return err
		}
		defer st.Close()
		sinks = append(sinks, st)
		logger.Info("persisting observations", "path", cfg.DatabasePath)

		if cfg.RetentionDays > 0 {
			go cleanupLoop(ctx, st, time.Duration(cfg.RetentionDays)*24*time.Hour)
		}
	}

	detector := detect.New(detect.Config{
		EnableHybrid:        cfg.Detection.EnableHybrid,
		EnableSMBProbing:    cfg.Detection.EnableSMBProbing,
		Threshold:           cfg.Detection.SMBProbeConfidenceThreshold,
		ProbeTimeout:        cfg.Detection.SMBTimeout(),
		CacheTTL:            cfg.Detection.SMBCacheTTL(),
		MaxConcurrentProbes: cfg.Detection.MaxConcurrentProbes,
	}, detect.NewProbeCache(nil), smb.NewClient())

	p := pipeline.New(fingerprint.NewMatcher(nil), detector, nil, sinks...)

	l := listener.New(cfg.ListenAddr, p)
	if err := l.Start(ctx); err != nil {
		return err
	}
	defer l.Stop()

	server := api.NewServer(st, history, hub, nil)
	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(cfg.WebAddr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		return fmt.Errorf("web server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// cleanupLoop prunes stored observations past the retention window once an
// hour.
func cleanupLoop(ctx context.Context, st *store.Store, retention time.Duration) {
	logger := logging.WithComponent("cleanup")
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := st.Cleanup(retention)
			if err != nil {
				logger.Warn("retention cleanup failed", "error", err)
				continue
			}
			if deleted > 0 {
				logger.Info("pruned old observations", "deleted", deleted)
			}
		}
	}
}
