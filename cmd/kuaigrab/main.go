// cmd/kuaigrab/main.go
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

	"github.com/kuaigrab/kuaigrab/internal/api"
	"github.com/kuaigrab/kuaigrab/internal/config"
	"github.com/kuaigrab/kuaigrab/internal/download"
	"github.com/kuaigrab/kuaigrab/internal/extract"
	"github.com/kuaigrab/kuaigrab/internal/history"
	"github.com/kuaigrab/kuaigrab/internal/monitoring"
	"github.com/kuaigrab/kuaigrab/internal/resolver"
	"github.com/kuaigrab/kuaigrab/internal/scraper"
	"github.com/kuaigrab/kuaigrab/internal/service"
	"github.com/kuaigrab/kuaigrab/internal/task"
	"github.com/kuaigrab/kuaigrab/internal/utils"
)

// Version information (set by build flags)
var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	var (
		configFile  = flag.String("config", "", "path to YAML configuration file")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("kuaigrab %s (built %s)\n", version, buildTime)
		return
	}

	if err := run(*configFile); err != nil {
		fmt.Fprintf(os.Stderr, "kuaigrab: %v\n", err)
		os.Exit(1)
	}
}

func run(configFile string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	logger := utils.NewLoggerWithLevel(utils.ParseLevel(cfg.LogLevel))
	if cfg.Cookie == "" {
		logger.Warn("no session cookie configured; works that require login will fail at fetch time")
	}

	if err := cfg.EnsureDirs(); err != nil {
		return err
	}

	metrics := monitoring.New()

	client, err := scraper.New(scraper.Config{
		Cookie:        cfg.Cookie,
		UserAgent:     cfg.UserAgent,
		Proxy:         cfg.Proxy,
		Timeout:       cfg.Timeout,
		RetryAttempts: cfg.MaxRetries,
		RetryDelay:    cfg.RetryDelay,
		RateLimit:     cfg.RateLimit,
		RateBurst:     cfg.RateBurst,
	}, logger, metrics)
	if err != nil {
		return err
	}

	engine, err := download.NewEngine(download.Config{
		DownloadDir:   cfg.DownloadDir,
		TempDir:       cfg.TempDir,
		ChunkSize:     cfg.ChunkSize,
		MaxWorkers:    cfg.MaxWorkers,
		RetryAttempts: cfg.MaxRetries,
		RetryDelay:    cfg.RetryDelay,
		Proxy:         cfg.Proxy,
		Headers:       client.DownloadHeaders(),
	}, logger, metrics)
	if err != nil {
		return err
	}

	store, err := history.Open(cfg.HistoryDB)
	if err != nil {
		return err
	}
	defer store.Close()

	svc := service.New(
		resolver.New(client, logger),
		client,
		extract.New(logger, metrics),
		engine,
		task.NewRegistry(),
		store,
		logger,
		metrics,
	)

	server := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           api.NewServer(svc, metrics, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("listening on %s", cfg.ListenAddress)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
