package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/guardian-ibera/firewatch/internal/config"
	"github.com/guardian-ibera/firewatch/internal/credential"
	"github.com/guardian-ibera/firewatch/internal/dashboard"
	"github.com/guardian-ibera/firewatch/internal/gateway"
	"github.com/guardian-ibera/firewatch/internal/geocode"
	"github.com/guardian-ibera/firewatch/internal/panel"
	"github.com/guardian-ibera/firewatch/internal/report"
	"github.com/guardian-ibera/firewatch/internal/server"
	"github.com/guardian-ibera/firewatch/internal/session"
	"github.com/guardian-ibera/firewatch/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})))

	tokens, closeTokens, err := openTokenStore(cfg)
	if err != nil {
		slog.Error("failed to open token store", "error", err)
		os.Exit(1)
	}
	defer closeTokens()

	cred := credential.New()
	gw := gateway.New(cfg, cred)
	sess := session.New(gw, tokens, cred)

	hub := server.NewHub(cfg.AllowedOrigins, func() any { return sess.Snapshot() })
	expire := func(err error) { sess.Expire(context.Background(), gateway.IssuedWith(err)) }

	dash := dashboard.New(gw,
		panel.WithListener(func(name string, state any) { hub.Publish("panel", name, state) }),
		panel.WithUnauthorizedHandler(expire),
	)

	flowOpts := []report.Option{
		report.WithListener(func(st report.State) { hub.Publish("report", "", st) }),
		report.WithUnauthorizedHandler(expire),
	}
	if cfg.MapsAPIKey != "" {
		geo, err := geocode.New(cfg.MapsAPIKey)
		if err != nil {
			slog.Error("failed to create geocoder", "error", err)
			os.Exit(1)
		}
		flowOpts = append(flowOpts, report.WithGeocoder(geo))
	} else {
		slog.Info("MAPS_API_KEY not set, reports are sent without place names")
	}
	flow := report.New(gw, flowOpts...)

	sess.OnChange(func(s session.Snapshot) {
		slog.Info("session changed", "state", s.State)
		if s.State != session.Authenticated {
			dash.Reset()
		}
		hub.Publish("session", "", s)
	})

	// Resolve the persisted session in the background; guarded routes wait
	// until it settles.
	go func() {
		if err := sess.Verify(context.Background()); err != nil {
			slog.Warn("session verification failed", "error", err)
		}
	}()

	srv := server.New(cfg, sess, gw, dash, flow, hub)
	httpServer := &http.Server{
		Addr:         "127.0.0.1:" + cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 2*cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "port", cfg.Port, "api", cfg.APIBaseURL)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	slog.Info("shutting down")

	hub.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
}

// openTokenStore uses Postgres when TOKEN_DATABASE_URL is set and the token
// file otherwise.
func openTokenStore(cfg *config.Config) (store.TokenStore, func(), error) {
	if cfg.TokenDatabaseURL == "" {
		slog.Info("using file token store", "path", cfg.TokenFile)
		return store.NewFile(cfg.TokenFile), func() {}, nil
	}

	db, err := sql.Open("postgres", cfg.TokenDatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("open token database: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("ping token database: %w", err)
	}

	client, err := os.Hostname()
	if err != nil || client == "" {
		client = "default"
	}
	pg := store.NewPostgres(db, client)
	if err := pg.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrate token database: %w", err)
	}
	slog.Info("using postgres token store", "client", client)
	return pg, func() { db.Close() }, nil
}
