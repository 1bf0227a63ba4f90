package main

import (
	"context"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/sovaehr/internal/authclient"
	"github.com/dukerupert/sovaehr/internal/config"
	"github.com/dukerupert/sovaehr/internal/database"
	"github.com/dukerupert/sovaehr/internal/guard"
	"github.com/dukerupert/sovaehr/internal/handler"
	"github.com/dukerupert/sovaehr/internal/logging"
	"github.com/dukerupert/sovaehr/internal/notify"
	"github.com/dukerupert/sovaehr/internal/server"
	"github.com/dukerupert/sovaehr/internal/session"
	"github.com/dukerupert/sovaehr/internal/storage"
	"github.com/dukerupert/sovaehr/internal/store"
	"github.com/dukerupert/sovaehr/internal/vault"
	"github.com/dukerupert/sovaehr/internal/view"
	ws "github.com/dukerupert/sovaehr/internal/websocket"
	"github.com/dukerupert/sovaehr/web"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)
	if cfg.AuthAPIIsSelf() {
		slog.Warn("SOVAEHR_AUTH_API_URL not set, auth requests go to the portal itself and will fail", "auth_api", cfg.Auth.APIURL)
	}

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	items := store.NewClientStorageStore(db)

	var sealer storage.Sealer
	if cfg.Storage.Secret != "" {
		v, err := vault.Load(cfg.Storage.Secret, items)
		if err != nil {
			slog.Error("failed to load storage vault", "error", err)
			os.Exit(1)
		}
		sealer = v
	} else {
		slog.Warn("SOVAEHR_STORAGE_SECRET not set, auth tokens are stored unencrypted")
	}

	var csrfKey []byte
	if cfg.Security.CSRFKey != "" {
		csrfKey, _ = cfg.CSRFKeyBytes()
	} else {
		slog.Warn("SOVAEHR_SECURITY_CSRF_KEY not set, form CSRF protection disabled")
	}

	loc, _ := cfg.Location()
	views, err := view.NewRenderer(loc)
	if err != nil {
		slog.Error("failed to load view templates", "error", err)
		os.Exit(1)
	}
	templates, err := handler.LoadTemplates(web.Templates)
	if err != nil {
		slog.Error("failed to load page templates", "error", err)
		os.Exit(1)
	}
	static, err := fs.Sub(web.Static, "static")
	if err != nil {
		slog.Error("failed to load static assets", "error", err)
		os.Exit(1)
	}

	durable := storage.NewDurable(items, sealer, session.TokenKey, session.LegacyTokenKey)
	tab := storage.NewTab()
	sessions := session.NewProvider(durable, tab, logger.With("component", "session"))

	hub := ws.NewHub(logger.With("component", "websocket"))
	toasts := notify.NewCenter(notify.NewBoard(), hub, notify.TimerScheduler{}, notify.Config{
		Mode:     notify.ModeReplace,
		Dwell:    notify.DwellGlobal,
		Closable: true,
	}, logger)

	authClient := authclient.New(cfg.Auth.APIURL,
		authclient.WithLogger(logger),
		authclient.WithSignUpRedirect(cfg.SignUpRedirect()),
	)

	srv := server.New(server.Deps{
		Templates: templates,
		Sessions:  sessions,
		Guard:     guard.New(logger.With("component", "guard")),
		Auth:      authClient,
		Toasts:    toasts,
		Hub:       hub,
		Source:    view.NewSampleSource(loc),
		Views:     views,
	}, server.Config{
		Static: static,
		Redirects: handler.Redirects{
			SignIn:  cfg.Redirect.SignIn,
			SignOut: cfg.Redirect.SignOut,
		},
		SecureCookies:  cfg.Security.SecureCookies,
		CSRFKey:        csrfKey,
		OriginPatterns: cfg.Security.OriginPatterns,
		RatePerSecond:  cfg.RateLimit.PerSecond,
		RateBurst:      cfg.RateLimit.Burst,
	}, logger)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Background cleanup goroutine
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	go func() {
		ticker := time.NewTicker(cfg.Storage.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n, err := durable.Cleanup(cfg.Storage.MaxAge); err != nil {
					slog.Error("cleanup stale storage", "error", err)
				} else if n > 0 {
					slog.Info("cleaned up stale storage", "count", n)
				}
				if n := tab.Cleanup(cfg.Storage.TabIdle); n > 0 {
					slog.Info("cleaned up idle tab storage", "count", n)
				}
				toasts.Cleanup(cfg.Storage.TabIdle)
				srv.RateLimiter().Cleanup()
			case <-cleanupCtx.Done():
				return
			}
		}
	}()

	go func() {
		slog.Info("sovaehr portal starting", "addr", ":"+cfg.Port, "auth_api", cfg.Auth.APIURL)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	cleanupCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}
	authClient.Wait()
}
