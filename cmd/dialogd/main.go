// Copyright (C) 2025 Artistic Drake (maintainers@chatalogue.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command dialogd starts the Chatalogue dialog server.
//
// Chatalogue turns free-text campus-course questions into catalog lookups
// and keeps multi-turn conversational state per session.
//
// Usage:
//
//	go run ./cmd/dialogd
//	go run ./cmd/dialogd -config dialogd.yaml -debug
//
// With the catalog database and OpenAI answers:
//
//	DATABASE_DSN="host=localhost user=courses dbname=courses" \
//	OPENAI_API_KEY=sk-... go run ./cmd/dialogd
//
// Example requests:
//
//	# Health check
//	curl http://localhost:8091/healthz
//
//	# Run one turn
//	curl -X POST http://localhost:8091/v1/dialog/process \
//	  -H "Content-Type: application/json" \
//	  -d '{"utterance": "who teaches MET CS 575?"}'
//
//	# Inspect the session
//	curl http://localhost:8091/v1/dialog/sessions/<session_id>
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/artisticdrake/CHATALOGUE/services/dialog"
	"github.com/artisticdrake/CHATALOGUE/services/dialog/config"
	"github.com/artisticdrake/CHATALOGUE/services/dialog/providers"
	"github.com/artisticdrake/CHATALOGUE/services/dialog/session"
	badgerstore "github.com/artisticdrake/CHATALOGUE/services/dialog/storage/badger"
	"github.com/artisticdrake/CHATALOGUE/services/dialog/store"
)

func main() {
	configPath := flag.String("config", "", "Path to the service config YAML")
	debug := flag.Bool("debug", false, "Enable debug logging and request logs")
	traceStdout := flag.Bool("trace-stdout", false, "Export spans to stdout")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		cfg.DatabaseDSN = dsn
	}

	lex, err := config.LoadLexiconFile(cfg.LexiconPath)
	if err != nil {
		log.Error("failed to load lexicon", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if *debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// W3C TraceContext propagation so trace context flows from incoming
	// headers through every pipeline stage.
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	shutdownTracing := setupTracing(*traceStdout, log)
	defer shutdownTracing()

	// Course catalog: gorm over postgres, or the null catalog when no DSN
	// is configured.
	var (
		executor providers.QueryExecutor = store.Null{}
		searcher providers.CourseSearcher = store.Null{}
		catalog  *store.Catalog
	)
	if cfg.DatabaseDSN != "" {
		catalog, err = store.Open(cfg.DatabaseDSN, log)
		if err != nil {
			log.Error("failed to open course catalog", slog.String("error", err.Error()))
			os.Exit(1)
		}
		executor = catalog
		searcher = catalog
	} else {
		log.Warn("no database DSN configured, catalog queries will return no rows")
	}

	// Fuzzy-resolution cache: best effort. When the cache directory can't
	// be opened the searcher runs uncached.
	cacheDir := cfg.Cache.Dir
	if cacheDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cacheDir = filepath.Join(home, ".chatalogue", "cache", "fuzzy")
		}
	}
	var cacheDB *badgerstore.DB
	if cacheDir != "" && cfg.DatabaseDSN != "" {
		db, err := badgerstore.Open(badgerstore.Config{Dir: cacheDir, TTL: cfg.Cache.TTL})
		if err != nil {
			log.Warn("resolution cache unavailable, fuzzy searches run uncached",
				slog.String("dir", cacheDir),
				slog.String("error", err.Error()),
			)
		} else {
			cacheDB = db
			searcher = badgerstore.NewCachingSearcher(db, searcher, cfg.Cache.TTL, log)
			log.Info("resolution cache opened", slog.String("dir", cacheDir))
		}
	}

	classifier, err := providers.NewClassifier(cfg.Providers.Classifier, lex)
	if err != nil {
		log.Error("failed to build classifier", slog.String("error", err.Error()))
		os.Exit(1)
	}
	extractor, err := providers.NewExtractor(cfg.Providers.Extractor, lex)
	if err != nil {
		log.Error("failed to build extractor", slog.String("error", err.Error()))
		os.Exit(1)
	}
	answerer, err := providers.NewAnswerer(cfg.Providers.Answerer, log)
	if err != nil {
		log.Error("failed to build answerer", slog.String("error", err.Error()))
		os.Exit(1)
	}

	sessions := session.NewManager(cfg.Sessions.MaxSessions, cfg.Sessions.IdleTimeout, log)
	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	sessions.StartSweeper(sweepCtx)

	svc := dialog.New(dialog.Deps{
		Log:        log,
		Lexicon:    lex,
		Sessions:   sessions,
		Classifier: classifier,
		Extractor:  extractor,
		Executor:   executor,
		Searcher:   searcher,
		Answerer:   answerer,
	})
	handlers := dialog.NewHandlers(svc, log)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("chatalogue-dialogd"))
	if *debug {
		router.Use(gin.Logger())
	}

	v1 := router.Group("/v1")
	dialog.RegisterRoutes(v1, handlers)
	dialog.RegisterHealthRoutes(router, handlers)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		log.Info("shutting down dialogd")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("server shutdown", slog.String("error", err.Error()))
		}
		if cacheDB != nil {
			if err := cacheDB.Close(); err != nil {
				log.Warn("failed to close resolution cache", slog.String("error", err.Error()))
			}
		}
		if catalog != nil {
			if err := catalog.Close(); err != nil {
				log.Warn("failed to close catalog", slog.String("error", err.Error()))
			}
		}
	}()

	log.Info("starting dialogd",
		slog.String("address", cfg.ListenAddr),
		slog.Bool("catalog", cfg.DatabaseDSN != ""),
		slog.String("classifier", cfg.Providers.Classifier.Kind),
		slog.String("extractor", cfg.Providers.Extractor.Kind),
		slog.String("answerer", cfg.Providers.Answerer.Kind),
	)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// setupTracing installs the tracer provider. Spans export to stdout when
// requested; otherwise the provider records locally and exports nothing,
// matching the default development setup.
func setupTracing(stdout bool, log *slog.Logger) func() {
	var opts []sdktrace.TracerProviderOption
	if stdout {
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			log.Warn("stdout trace exporter unavailable", slog.String("error", err.Error()))
		} else {
			opts = append(opts, sdktrace.WithBatcher(exporter))
		}
	}
	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Warn("tracer provider shutdown", slog.String("error", err.Error()))
		}
	}
}
