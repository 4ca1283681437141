package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/alejandrodnm/poolbid/config"
	"github.com/alejandrodnm/poolbid/internal/adapters/blur"
	"github.com/alejandrodnm/poolbid/internal/adapters/chain"
	"github.com/alejandrodnm/poolbid/internal/adapters/feed"
	"github.com/alejandrodnm/poolbid/internal/adapters/notify"
	"github.com/alejandrodnm/poolbid/internal/adapters/storage"
	"github.com/alejandrodnm/poolbid/internal/application/bidder"
	"github.com/alejandrodnm/poolbid/internal/domain"
	"github.com/alejandrodnm/poolbid/internal/metrics"
	"github.com/alejandrodnm/poolbid/internal/ports"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file (empty: env only)")
	dryRun := flag.Bool("dry-run", false, "decide and log without submitting or cancelling bids")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	report := flag.Bool("report", false, "print persisted bids and exit")
	generate := flag.String("generate-configs", "", "write per-collection overrides to this YAML file and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *dryRun {
		cfg.Bidder.DryRun = true
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	if *report {
		runReport(cfg.Storage.DSN)
		return
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "err", err)
		os.Exit(1)
	}

	slog.Info("poolbid starting",
		"config", *configPath,
		"collections", len(cfg.Bidder.Collections),
		"wallets", len(cfg.Bidder.PrivateKeys),
		"dry_run", cfg.Bidder.DryRun,
		"no_feed", cfg.Bidder.NoFeed,
		"rate_limit", cfg.API.RateLimit,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	signers := make([]domain.Signer, 0, len(cfg.Bidder.PrivateKeys))
	for i, key := range cfg.Bidder.PrivateKeys {
		s, err := chain.NewKeySigner(key)
		if err != nil {
			slog.Error("invalid private key", "index", i, "err", err)
			os.Exit(1)
		}
		signers = append(signers, s)
	}

	rpcURL := cfg.Chain.RPCURL
	if rpcURL == "" {
		rpcURL = chain.DefaultRPCURL
	}
	poolAddress := cfg.Chain.PoolAddress
	if poolAddress == "" {
		poolAddress = chain.DefaultPoolAddress
	}
	balances, err := chain.DialPoolBalance(rpcURL, poolAddress)
	if err != nil {
		slog.Error("failed to connect to chain", "err", err, "rpc", rpcURL)
		os.Exit(1)
	}
	defer balances.Close()

	market := blur.NewClient(blur.Options{
		BaseURL:    cfg.API.BaseURL,
		APIKey:     cfg.API.APIKey,
		RatePerSec: cfg.API.RateLimit,
		DryRun:     cfg.Bidder.DryRun,
	})

	wallets, err := bidder.LoginWallets(ctx, signers, market, balances, store)
	if err != nil {
		slog.Error("failed to sign in", "err", err)
		os.Exit(1)
	}

	collections, err := bidder.LoadCollections(ctx, cfg.Bidder.Collections, cfg.CollectionConfig, market, store, wallets[0])
	if err != nil {
		slog.Error("failed to load collections", "err", err)
		os.Exit(1)
	}

	if *generate != "" {
		if err := writeCollectionConfigs(*generate, cfg, collections); err != nil {
			slog.Error("failed to generate collection configs", "err", err)
			os.Exit(1)
		}
		slog.Info("collection configs written", "path", *generate, "collections", len(collections))
		return
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	if cfg.Metrics.Addr != "" {
		go serveMetrics(ctx, cfg.Metrics.Addr, registry)
	}

	var notifier ports.Notifier = notify.NewConsole()
	if cfg.Notify.DiscordHook != "" {
		notifier = notify.NewDiscord(cfg.Notify.DiscordHook)
	}

	engine := bidder.NewEngine(bidder.Deps{
		Market:   market,
		Balances: balances,
		Store:    store,
		Notifier: notifier,
		Metrics:  m,
	}, wallets)

	bidder.Recover(ctx, engine, collections)

	updater := bidder.NewUpdater(engine, collections)
	poller := bidder.NewPoller(market, updater, wallets[0])

	var pushFeed ports.Feed
	if !cfg.Bidder.NoFeed {
		client, err := feed.NewClient(cfg.API.WSServer, cfg.API.APIKey)
		if err != nil {
			slog.Error("invalid ws server", "err", err, "url", cfg.API.WSServer)
			os.Exit(1)
		}
		pushFeed = client
	}

	runner := bidder.NewRunner(engine, updater, poller, pushFeed, bidder.RunConfig{
		NoFeed:       cfg.Bidder.NoFeed,
		PollInterval: cfg.PollInterval(),
	})
	if err := runner.Run(ctx); err != nil {
		slog.Error("bidder exited with error", "err", err)
		os.Exit(1)
	}

	slog.Info("poolbid stopped cleanly", "failsafe_active", runner.FailsafeActive())
}

func serveMetrics(ctx context.Context, addr string, registry *prometheus.Registry) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           metrics.Handler(registry),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("metrics listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("metrics server failed", "err", err)
	}
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
