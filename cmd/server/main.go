package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	apihttp "recordsrecord/catalogservice/internal/api/http"
	"recordsrecord/catalogservice/internal/app"
	"recordsrecord/catalogservice/internal/catalog"
	"recordsrecord/catalogservice/internal/collection"
	"recordsrecord/catalogservice/internal/metrics"
	"recordsrecord/catalogservice/internal/providers/musicbrainz"
	"recordsrecord/catalogservice/internal/telemetry"
)

func main() {
	_ = godotenv.Load()

	cfg := app.LoadConfig()
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracer, err := telemetry.Init(context.Background(), "album-catalog")
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	logger.Info("configuration loaded",
		slog.String("service", "album-catalog"),
		slog.String("httpAddr", cfg.HTTPAddr),
		slog.String("logLevel", cfg.LogLevel),
		slog.String("logFormat", cfg.LogFormat),
		slog.Duration("requestTimeout", cfg.RequestTimeout),
		slog.String("musicbrainzEndpoint", cfg.MusicBrainzEndpoint),
		slog.String("coverartEndpoint", cfg.CoverArtEndpoint),
		slog.Bool("hasRedis", strings.TrimSpace(cfg.RedisURL) != ""),
		slog.Duration("genreCacheTTL", cfg.GenreCacheTTL),
		slog.String("dbPath", cfg.DBPath),
	)

	mbClient := musicbrainz.NewClient(musicbrainz.Config{
		Endpoint:  cfg.MusicBrainzEndpoint,
		UserAgent: cfg.UserAgent,
		RateRPS:   cfg.MusicBrainzRateRPS,
		Client: &http.Client{
			Timeout:   cfg.RequestTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	})

	genreCache := catalog.NewGenreCache(buildGenreCacheOptions(cfg, logger)...)
	resolver := catalog.NewGenreResolver(mbClient, genreCache)
	catalogService := catalog.NewService(mbClient, resolver,
		catalog.WithCoverArtEndpoint(cfg.CoverArtEndpoint),
	)

	store, err := collection.Open(cfg.DBPath)
	if err != nil {
		logger.Error("collection store open failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer store.Close()

	handler := apihttp.NewServer(catalogService,
		apihttp.WithLogger(logger),
		apihttp.WithCollection(store),
	).Handler()
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	logger.Info("album catalog service started",
		slog.String("addr", cfg.HTTPAddr),
		slog.Duration("timeout", cfg.RequestTimeout),
	)

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", slog.String("error", err.Error()))
	}
	logger.Info("album catalog service stopped")
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

func buildGenreCacheOptions(cfg app.Config, logger *slog.Logger) []catalog.GenreCacheOption {
	var opts []catalog.GenreCacheOption

	if cfg.GenreCacheDisabled {
		opts = append(opts, catalog.WithGenreCacheDisabled(true))
		return opts
	}
	if cfg.GenreCacheTTL > 0 {
		opts = append(opts, catalog.WithGenreCacheTTL(cfg.GenreCacheTTL))
	}

	redisURL := strings.TrimSpace(cfg.RedisURL)
	if redisURL == "" {
		return opts
	}
	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Warn("invalid redis url, using in-memory genre cache only", slog.String("error", err.Error()))
		return opts
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Warn("redis not reachable, using in-memory genre cache only", slog.String("error", err.Error()))
		return opts
	}
	logger.Info("redis connected", slog.String("addr", redisOpts.Addr))
	opts = append(opts, catalog.WithRedisBackend(catalog.NewRedisGenreBackend(redisClient)))

	return opts
}
