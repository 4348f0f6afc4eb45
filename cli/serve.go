package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/nijaru/yt-chat/handlers"
	"github.com/nijaru/yt-chat/middleware"
	"github.com/nijaru/yt-chat/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API with the session sweeper",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	service, err := app.Service(ctx)
	if err != nil {
		return err
	}

	go session.NewSweeper(app.store, cfg.Session.SweepInterval).Run(ctx)
	go app.limiter.Run(ctx, cfg.RateLimit.Window)

	mux := http.NewServeMux()
	handlers.NewHandler(service).Register(mux)

	var globalLimit func(http.Handler) http.Handler
	if cfg.RateLimit.GlobalRPM > 0 {
		globalLimit = middleware.NewRateLimiter(cfg.RateLimit.GlobalRPM, cfg.RateLimit.Burst).Middleware
	}

	server := &http.Server{
		Addr: ":" + cfg.Server.Port,
		Handler: middleware.Chain(mux,
			middleware.Logging,
			middleware.Recovery,
			globalLimit,
			middleware.Timeout(cfg.Server.RequestTimeout),
		),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logrus.WithField("port", cfg.Server.Port).Info("Listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return errors.Wrap(err, "listen")
		}
		return nil
	case <-ctx.Done():
	}

	logrus.Info("Shutting down the server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "server shutdown")
	}
	return nil
}
