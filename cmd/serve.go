package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"script_ai_server/internal/api"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	log := a.logger

	// Select Gin mode based on APP_ENV
	if a.cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
		log.Debug().Msg("running in gin debug mode")
	}

	router := gin.New()
	router.Use(api.Recovery(log))
	router.Use(api.RequestID())
	router.Use(api.AccessLog(log))
	router.Use(api.CORS(a.cfg.AllowedOrigins()))

	apiHandler := api.NewAPIHandler(a.generator, a.store, a.cfg.FrontendDir, log)
	api.RegisterRoutes(router, apiHandler)

	server := &http.Server{
		Addr:        a.cfg.ServerAddress,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// Generation can take MaxAttempts model calls plus the delays between them.
		WriteTimeout: writeTimeout(a.cfg.AI().MaxAttempts, a.cfg.AI().RequestTimeout, a.cfg.AI().RetryDelay),
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("address", a.cfg.ServerAddress).Msg("starting API server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("shutting down server")
	case err, ok := <-serverErr:
		if ok {
			log.Error().Err(err).Msg("API server listen error")
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("API server forced shutdown")
		return err
	}
	log.Info().Msg("API server gracefully stopped")
	return nil
}

func writeTimeout(attempts int, requestTimeout, retryDelay time.Duration) time.Duration {
	if requestTimeout <= 0 {
		return 0
	}
	return time.Duration(attempts)*(requestTimeout+retryDelay) + 30*time.Second
}
