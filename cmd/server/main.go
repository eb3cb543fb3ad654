package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"

	apihttp "reelengine/internal/api/http"
	"reelengine/internal/app"
	"reelengine/internal/controller"
	"reelengine/internal/fetch"
	"reelengine/internal/metrics"
	"reelengine/internal/playback"
	"reelengine/internal/prefetch"
	"reelengine/internal/readiness"
	mongorepo "reelengine/internal/repository/mongo"
	"reelengine/internal/services/feed"
	"reelengine/internal/services/player/mpv"
	"reelengine/internal/telemetry"
)

func main() {
	cfg := app.LoadConfig()
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracer, err := telemetry.Init(context.Background(), "reel-engine")
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	logger.Info("configuration loaded",
		slog.String("service", "reel-engine"),
		slog.String("httpAddr", cfg.HTTPAddr),
		slog.String("logLevel", cfg.LogLevel),
		slog.String("logFormat", cfg.LogFormat),
		slog.String("feedURL", cfg.FeedURL),
		slog.String("cacheDir", cfg.CacheDir),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(rootCtx, 10*time.Second)
	defer cancel()

	var viewerStore *mongorepo.ViewerRepository
	mongoClient, err := mongorepo.Connect(ctx, cfg.MongoURI, options.Client().SetMonitor(otelmongo.NewMonitor()))
	if err != nil {
		logger.Warn("mongo connect failed, running without viewer store", slog.String("error", err.Error()))
	} else if err := mongoClient.Ping(ctx, readpref.Primary()); err != nil {
		logger.Warn("mongo ping failed, running without viewer store", slog.String("error", err.Error()))
		_ = mongoClient.Disconnect(ctx)
		mongoClient = nil
	} else {
		viewerStore = mongorepo.NewViewerRepository(mongoClient, cfg.MongoDatabase)
		if err := viewerStore.EnsureIndexes(ctx); err != nil {
			logger.Warn("mongo ensure indexes failed", slog.String("error", err.Error()))
		}
	}

	feedClient := feed.NewClient(cfg.FeedURL, nil, logger.With(slog.String("component", "feed")))

	fetcher := fetch.NewHTTPFetcher(nil, cfg.FetchRateBytes, logger.With(slog.String("component", "fetch")))
	tracker := readiness.NewTracker()
	cache := prefetch.NewCache(prefetch.Config{
		Dir:                  cfg.CacheDir,
		CacheSize:            cfg.CacheSize,
		BehindMargin:         cfg.BehindMargin,
		Hysteresis:           cfg.Hysteresis,
		BatchTrigger:         cfg.BatchTrigger,
		BatchSize:            cfg.BatchSize,
		FullConcurrency:      cfg.FullConcurrency,
		HighRangeBytes:       cfg.HighRangeBytes,
		BackgroundRangeBytes: cfg.BackgroundRangeBytes,
	}, fetcher, tracker, logger.With(slog.String("component", "prefetch")))

	playerA, err := mpv.New(ctx, cfg.MPVBinary, filepath.Join(cfg.MPVSocketDir, "reel-slot-a.sock"), logger)
	if err != nil {
		logger.Error("mpv init failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	playerB, err := mpv.New(ctx, cfg.MPVBinary, filepath.Join(cfg.MPVSocketDir, "reel-slot-b.sock"), logger)
	if err != nil {
		_ = playerA.Close()
		logger.Error("mpv init failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slots := playback.NewManager(playerA, playerB, logger.With(slog.String("component", "playback")),
		playback.WithPollInterval(cfg.PollInterval),
		playback.WithReadyTimeout(cfg.ReadyTimeout),
		playback.WithReadinessProbe(fetcher.Probe),
	)

	ctrlOpts := []controller.Option{
		controller.WithLikeSink(feedClient),
		controller.WithTapWindow(cfg.TapWindow),
		controller.WithPlaceholderDelay(cfg.PlaceholderDelay),
	}
	if viewerStore != nil {
		ctrlOpts = append(ctrlOpts, controller.WithViewerStore(viewerStore))
	}
	ctrl := controller.New(cache, slots, feedClient, logger.With(slog.String("component", "controller")), ctrlOpts...)

	serverOpts := []apihttp.ServerOption{
		apihttp.WithLogger(logger),
		apihttp.WithWindowInspector(cache),
	}
	if viewerStore != nil {
		serverOpts = append(serverOpts, apihttp.WithViewerStore(viewerStore))
	}
	if origin := strings.TrimSpace(cfg.AllowedOrigin); origin != "" {
		serverOpts = append(serverOpts, apihttp.WithAllowedOrigins(strings.Split(origin, ",")))
	}
	handler := apihttp.NewServer(ctrl, serverOpts...)

	// Events reach the UI through the websocket hub; the hub exists only
	// after server construction.
	ctrl.SetEventSink(handler.Hub())

	go ctrl.Run(rootCtx)

	// Prime the session in the background so the HTTP server starts
	// immediately even when the feed is slow.
	go func() {
		if err := ctrl.Start(rootCtx); err != nil {
			logger.Warn("initial feed load failed", slog.String("error", err.Error()))
		}
	}()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      0,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("server started", slog.String("addr", cfg.HTTPAddr))

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	handler.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown error", slog.String("error", err.Error()))
	}
	slots.Close()
	cache.Close()
	if mongoClient != nil {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			logger.Warn("mongo disconnect error", slog.String("error", err.Error()))
		}
	}

	logger.Info("server stopped")
}

func newLogger(levelRaw, formatRaw string) *slog.Logger {
	level := parseLogLevel(levelRaw)
	options := &slog.HandlerOptions{Level: level}
	format := strings.ToLower(strings.TrimSpace(formatRaw))
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, options))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, options))
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
