// Package server exposes the HTTP API: health, metrics, governance status and
// decisions, raw chat ingestion and admin controls. It injects correlation IDs
// into request contexts for consistent logging.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewMux returns the HTTP handler with all routes.
// The provided context bounds the rate limiter cleanup goroutine.
func NewMux(ctx context.Context, d Deps) http.Handler {
	authCfg := loadAuthConfig()
	limiter := newIPRateLimiter(ctx, loadRateLimiterConfig())
	h := NewHandlers(d)

	r := chi.NewRouter()
	r.Use(withCORS(loadCORSConfig()))
	r.Use(requestContext)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", h.HandleHealthz)
	r.Get("/readyz", h.HandleReadyz)

	r.Route("/governance", func(r chi.Router) {
		r.Get("/status", h.HandleStatus)
		r.Get("/events/{category}", h.HandleEventStatus)
		r.Get("/commands/{name}", h.HandleCommandStatus)
		r.With(rateLimit(limiter)).Post("/events/{category}/purchase", h.HandleEventPurchase)
		r.With(rateLimit(limiter)).Post("/commands/{name}", h.HandleCommandDispatch)
	})

	r.With(rateLimit(limiter)).Post("/chat/irc", h.HandleChatIRC)

	r.Route("/admin", func(r chi.Router) {
		r.Use(adminAuth(authCfg), rateLimit(limiter))
		r.Get("/policy", h.HandleAdminPolicy)
		r.Put("/policy", h.HandleAdminPolicy)
		r.Put("/clock", h.HandleAdminClock)
		r.Post("/cleanup", h.HandleAdminCleanup)
		r.Post("/save", h.HandleAdminSave)
	})
	return r
}

// Start runs the HTTP server and shuts down gracefully on context cancellation.
func Start(ctx context.Context, d Deps, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewMux(ctx, d),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		// WithoutCancel keeps context values but lets shutdown finish
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("http server shutdown error", slog.Any("err", err))
		}
	}()

	slog.Info("http server listening", slog.String("addr", addr), slog.String("component", "http"))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("http server error", slog.Any("err", err))
		return err
	}
	return nil
}
