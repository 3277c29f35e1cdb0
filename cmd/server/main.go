package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront-cart/internal/apiclient"
	"storefront-cart/internal/config"
	"storefront-cart/internal/logger"
	"storefront-cart/internal/metadata"
	"storefront-cart/internal/metrics"
	"storefront-cart/internal/middleware"
	"storefront-cart/internal/server"
	"storefront-cart/internal/shipping"

	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

var startServerFunc = func(srv *http.Server) error {
	return srv.ListenAndServe()
}

type app struct {
	handler  http.Handler
	sessions *server.SessionManager
	limiter  *middleware.Limiter
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg := config.LoadConfig()
	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	a := newServer(cfg)
	defer a.sessions.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go a.sessions.Run(ctx)
	go a.limiter.Run(ctx)

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.L().Info("storefront gateway listening",
			zap.String("addr", srv.Addr),
			zap.String("api", cfg.APIBaseURL),
		)
		errCh <- startServerFunc(srv)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.L().Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newServer wires the process-wide pieces: one HTTP transport, one zone
// store and one metadata cache shared by every session.
func newServer(cfg *config.Config) *app {
	httpClient := apiclient.NewHTTPClient(cfg.APITimeout)
	stats := &metrics.Gateway{}

	sessions := server.NewSessionManager(server.SessionOptions{
		APIBaseURL:      cfg.APIBaseURL,
		HTTPClient:      httpClient,
		RefreshAttempts: cfg.TokenRefreshMaxAttempts,
		Debounce:        cfg.CartDebounce,
		IdleTTL:         cfg.SessionIdleTTL,
		Metadata:        metadata.New(cfg.MetadataCacheSize),
		Zones:           shipping.NewZoneStore(apiclient.New(cfg.APIBaseURL, httpClient, nil, 0)),
		SecureCookie:    cfg.AppEnv == "production",
		Metrics:         stats,
	})
	limiter := middleware.NewLimiter(stats)

	return &app{
		handler:  setupRouter(server.NewHandler(sessions), limiter, cfg.CORSOrigin),
		sessions: sessions,
		limiter:  limiter,
	}
}

func setupRouter(h *server.Handler, limiter *middleware.Limiter, corsOrigin string) http.Handler {
	router := server.NewRouter(h,
		logger.RequestIDMiddleware,
		middleware.LoggingMiddleware,
		middleware.AuthMiddleware,
		limiter.Middleware,
	)
	return middleware.CORS(corsOrigin)(router)
}
