package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dropDatabas3/keysmith/internal/config"
	"github.com/dropDatabas3/keysmith/internal/engine"
	httpx "github.com/dropDatabas3/keysmith/internal/http"
	"github.com/dropDatabas3/keysmith/internal/http/handlers"
	jwtx "github.com/dropDatabas3/keysmith/internal/jwt"
	"github.com/dropDatabas3/keysmith/internal/observability/logger"
	"github.com/dropDatabas3/keysmith/internal/scheduler"
	"github.com/dropDatabas3/keysmith/internal/signals"
	"github.com/dropDatabas3/keysmith/internal/store"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

func main() {
	// .env si existe; si no, variables del sistema
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file found: %v", err)
	}

	cfgPath := flag.String("config", envOr("KEYSMITH_CONFIG", "config.yaml"), "ruta al config YAML")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.Log.Level,
		ServiceName: "keysmith",
	})
	defer func() { _ = logger.Sync() }()
	lg := logger.Named("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.New(ctx, cfg)
	if err != nil {
		lg.Fatal("store init failed", logger.Err(err))
	}
	defer func() { _ = st.Close() }()

	published := signals.New()
	eng, err := engine.New(st, scheduler.NewTimer(), jwtx.NewIssuer(cfg.Server.AppURL), published)
	if err != nil {
		lg.Fatal("engine init failed", logger.Err(err))
	}

	// Reconciliación inicial. Si la config es inválida arrancamos igual:
	// /readyz reporta not ready y un PUT /v1/admin/config puede destrabar.
	if _, err := eng.Reconcile(ctx, cfg.Token); err != nil {
		lg.Error("initial reconciliation failed", logger.Err(err))
	}

	issuerOrigin, err := jwtx.Origin(cfg.Server.AppURL)
	if err != nil {
		lg.Fatal("invalid app_url", logger.String("app_url", cfg.Server.AppURL), logger.Err(err))
	}

	router := httpx.NewRouter(httpx.RouterDeps{
		Discovery:   handlers.NewOIDCDiscoveryHandler(issuerOrigin),
		JWKS:        handlers.NewJWKSHandler(published, st),
		Readyz:      handlers.NewReadyzHandler(eng, st),
		AdminStatus: handlers.NewAdminStatusHandler(eng, published),
		AdminConfig: handlers.NewAdminConfigHandler(eng),
		AdminRotate: handlers.NewAdminRotateHandler(eng),
		AdminAPIKey: cfg.Server.AdminAPIKey,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info("listening", logger.String("addr", cfg.Server.Addr), logger.String("issuer", issuerOrigin))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		lg.Error("server exited with error", logger.Err(err))
		os.Exit(1)
	}
	lg.Info("bye")
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
