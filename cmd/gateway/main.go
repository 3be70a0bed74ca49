package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/rpcwall/rpcwall/internal/api/handlers"
	"github.com/rpcwall/rpcwall/internal/config"
	"github.com/rpcwall/rpcwall/internal/database"
	"github.com/rpcwall/rpcwall/internal/firewall"
	"github.com/rpcwall/rpcwall/internal/gateway"
	"github.com/rpcwall/rpcwall/internal/logger"
	"github.com/rpcwall/rpcwall/internal/metrics"
	"github.com/rpcwall/rpcwall/internal/proxy"
	"github.com/rpcwall/rpcwall/internal/server"
	"github.com/rpcwall/rpcwall/internal/version"
	"github.com/rpcwall/rpcwall/internal/webhook"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Log to both stdout and a rotated file next to the database.
	logDir := filepath.Join(filepath.Dir(cfg.DatabasePath), "logs")
	_ = os.MkdirAll(logDir, 0o755)
	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, "rpcwall.log"),
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}
	logger.Init(cfg.Environment == "development", io.MultiWriter(os.Stdout, rotator))

	logger.Log().Infof("starting %s %s", version.Name, version.Full())

	if err := run(cfg); err != nil {
		logger.Log().WithError(err).Fatal("gateway exited")
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Persistence is optional. Without it, granted rules and registered
	// webhooks live only in memory.
	var archive *database.Archive
	if cfg.DatabasePath != "" {
		db, err := database.Open(cfg.DatabasePath)
		if err != nil {
			return err
		}
		archive = database.NewArchive(db)
	}

	webhookURLs := cfg.WebhookURLs
	if archive != nil {
		persisted, err := archive.LoadWebhooks()
		if err != nil {
			return err
		}
		webhookURLs = append(webhookURLs, persisted...)
	}

	notifier, err := webhook.NewNotifier(webhookURLs)
	if err != nil {
		return err
	}
	defer notifier.Close()

	alerter := webhook.NewAlerter(cfg.AlertURLs)
	defer alerter.Close()

	sink := webhook.Combine(notifier, alerter)

	var storeOpts []firewall.StoreOption
	if archive != nil {
		storeOpts = append(storeOpts, firewall.WithArchive(archive))
	}
	store := firewall.NewStore(sink, storeOpts...)
	if err := store.LoadStatic(cfg.AllowIPs, cfg.AllowAccounts); err != nil {
		return err
	}
	if archive != nil {
		if err := store.Restore(); err != nil {
			return err
		}
	}

	sweeper, err := firewall.NewSweeper(store, "@every 1m")
	if err != nil {
		return err
	}
	sweeper.Start()
	defer sweeper.Stop()

	engine := firewall.NewEngine(store, sink, cfg.AllowUnrestricted)

	httpFwd, err := proxy.NewHTTPForwarder(cfg.ProxyToURL, cfg.MaxBodySizeBytes, cfg.RequestTimeout())
	if err != nil {
		return err
	}
	wsFwd, err := proxy.NewWSForwarder(cfg.ProxyToURL, cfg.MaxBodySizeBytes, cfg.RequestTimeout())
	if err != nil {
		return err
	}

	gw, err := gateway.New(cfg, engine, httpFwd, wsFwd)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	metrics.Register(registry)

	var webhookArchive handlers.WebhookArchive
	if archive != nil {
		webhookArchive = archive
	}
	admin := server.New(cfg, store, notifier, webhookArchive, registry)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		logger.Log().WithField("addr", cfg.ListenAddr).Info("proxy front listening")
		errCh <- gw.Run(ctx)
	}()
	go func() {
		logger.Log().WithField("addr", cfg.AdminAddr).Info("admin API listening")
		errCh <- admin.Run(ctx)
	}()

	// The first listener to fail takes the other one down with it.
	err = <-errCh
	cancel()
	if second := <-errCh; err == nil {
		err = second
	}
	return err
}
