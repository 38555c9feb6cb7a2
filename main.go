package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/justinas/alice"

	"github.com/escolaware/portaria-bridge/internal/audit"
	"github.com/escolaware/portaria-bridge/internal/cache"
	"github.com/escolaware/portaria-bridge/internal/config"
	"github.com/escolaware/portaria-bridge/internal/jwt"
	"github.com/escolaware/portaria-bridge/internal/lookup"
	"github.com/escolaware/portaria-bridge/internal/observe"
	"github.com/escolaware/portaria-bridge/internal/photo"
	"github.com/escolaware/portaria-bridge/internal/relation"
	"github.com/escolaware/portaria-bridge/internal/secrets"
	"github.com/escolaware/portaria-bridge/internal/server"
	"github.com/escolaware/portaria-bridge/internal/sophia"
)

func configureServerRoutes(ctx context.Context, cfg config.Config, relations *relation.Store, hooks *server.ShutdownHooks) (http.Handler, error) {
	// wrap a mux such that HTTP telemetry is configured by default
	muxWithoutTelemetry := http.NewServeMux()
	mux := observe.NewMux(muxWithoutTelemetry)

	// configure middleware
	auditor := audit.Middleware()

	authorizer, err := jwt.Middleware(cfg.Authorization)
	if err != nil {
		return nil, fmt.Errorf("authorizer configuration failed: %w", err)
	}

	// The request body size is fairly limited to prevent accidental or
	// deliberate abuse. Given the current API shape, this is not configurable.
	requestLimitBytes := int64(20 << 10) // 20 KB
	requestLimiter := maxRequestSize(requestLimitBytes)

	authorizedRouteMiddleware := alice.New(requestLimiter, auditor, authorizer)
	standardRouteMiddleware := alice.New(requestLimiter)

	// setup the lookup service and its dependencies
	upstream, err := sophia.New(cfg.Sophia)
	if err != nil {
		return nil, fmt.Errorf("sophia configuration failed: %w", err)
	}

	results, err := cache.NewFromConfig[lookup.SearchResult](
		ctx, cfg.Cache,
		time.Duration(cfg.Cache.ResultTTLSeconds)*time.Second,
	)
	if err != nil {
		return nil, fmt.Errorf("result cache configuration failed: %w", err)
	}
	hooks.Add("result cache", results.Close)

	resolver := photo.NewResolver(cfg.Sophia.PhotoWorkers)

	service := lookup.NewService(upstream, results, resolver, relations)

	mux.Handle("GET /api/search", authorizedRouteMiddleware.Then(handleSearch(service)))
	mux.Handle("GET /api/students/{id}", authorizedRouteMiddleware.Then(handleStudentDetail(service)))

	// healthchecks are not included in telemetry or authorization
	muxWithoutTelemetry.Handle("GET /healthcheck", standardRouteMiddleware.Then(handleHealthCheck()))

	return mux, nil
}

func main() {
	configureLogging()

	logBuildInfo()

	err := launchServer()
	if err != nil {
		log.Fatal().Err(err).Msg("server failed to start")
	}
}

func launchServer() error {
	ctx := context.Background()
	hooks := &server.ShutdownHooks{}

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("configuration load failed: %w", err)
	}

	if err := secrets.Resolve(ctx, &cfg.Sophia); err != nil {
		return fmt.Errorf("credential resolution failed: %w", err)
	}

	// configure telemetry, including wrapping default HTTP client
	shutdownTelemetry, err := observe.Configure(ctx, cfg.Observe)
	if err != nil {
		return fmt.Errorf("telemetry bootstrap failed: %w", err)
	}
	hooks.AddContext("telemetry", shutdownTelemetry)

	http.DefaultTransport = observe.HTTPTransport(
		configureHTTPTransport(cfg.Server),
		cfg.Observe,
	)
	http.DefaultClient = &http.Client{
		Transport: http.DefaultTransport,
	}

	// the parent classification starts from the defaults and follows the
	// configured file when one is present
	relations := relation.NewStore()
	if path := cfg.Relation.ConfigPath; path != "" {
		watchCtx, stopWatch := context.WithCancel(ctx)
		hooks.Add("relation refresh", func() error { stopWatch(); return nil })

		interval := time.Duration(cfg.Relation.RefreshIntervalSeconds) * time.Second
		go relation.Watch(watchCtx, relations, path, interval)
	}

	// setup routing and dependencies
	handler, err := configureServerRoutes(ctx, cfg, relations, hooks)
	if err != nil {
		return fmt.Errorf("server routing configuration failed: %w", err)
	}

	err = server.Serve(ctx, cfg.Server, handler, hooks)
	if err != nil {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

func configureLogging() {
	// Set global level to the minimum: allows the Open Telemetry logging to be
	// configured separately. However, it means that any logger that sets its
	// level will log as this effectively disables the global level.
	zerolog.SetGlobalLevel(zerolog.Level(-128))

	// default level is Info
	log.Logger = log.Level(zerolog.InfoLevel)

	if os.Getenv("ENV") == "development" {
		log.Logger = log.
			Output(zerolog.ConsoleWriter{Out: os.Stdout}).
			Level(zerolog.DebugLevel)
	}

	zerolog.DefaultContextLogger = &log.Logger
}

func logBuildInfo() {
	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	ev := log.Info()
	for _, v := range buildInfo.Settings {
		if strings.HasPrefix(v.Key, "vcs.") ||
			strings.HasPrefix(v.Key, "GO") ||
			v.Key == "CGO_ENABLED" {
			ev = ev.Str(v.Key, v.Value)
		}
	}

	ev.Msg("build information")
}

func configureHTTPTransport(cfg config.ServerConfig) *http.Transport {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	transport.MaxIdleConns = cfg.OutgoingHTTPMaxIdleConns
	transport.MaxConnsPerHost = cfg.OutgoingHTTPMaxConnsPerHost

	return transport
}
