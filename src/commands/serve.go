package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/username/brokerbridge/src/config"
	"github.com/username/brokerbridge/src/handlers"
	"github.com/username/brokerbridge/src/logger"
	"github.com/username/brokerbridge/src/security"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, config.Cfg)
		},
	}
}

// newHandler assembles the router and the global middleware.
func newHandler(a *app, auth *security.AuthService) http.Handler {
	router := handlers.NewRouter(
		handlers.NewAuthHandler(auth),
		handlers.NewBrokerHandler(a.logins, a.imports, a.holdings, a.members, a.cfg.MaxUploadSizeBytes),
		handlers.NewHoldingsHandler(a.holdings),
	)

	limiter := rate.NewLimiter(rate.Limit(a.cfg.RateLimitPerSecond), a.cfg.RateLimitBurst)
	return handlers.CORSMiddleware(a.cfg.AllowedOrigins)(handlers.RateLimitMiddleware(limiter)(router))
}

func runServe(ctx context.Context, cfg *config.AppConfig) error {
	logger.L.Info("brokerbridge server starting...")

	if len(cfg.JWTSecret) < 32 {
		return errors.New("JWT_SECRET configuration invalid, must be at least 32 bytes")
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.L.Error("Failed to close database", "error", err)
		}
	}()

	auth := security.NewAuthService(cfg.JWTSecret, 0)

	serverAddr := ":" + cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      newHandler(a, auth),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // broker login + holdings fetch can take a while
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.L.Info("Server starting", "address", serverAddr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.L.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.L.Info("Server stopped gracefully.")
	return nil
}
