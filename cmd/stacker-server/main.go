package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bobmcallan/stacker/internal/app"
	"github.com/bobmcallan/stacker/internal/common"
	"github.com/bobmcallan/stacker/internal/server"
)

func main() {
	a, err := app.NewApp(context.Background(), os.Getenv("STACKER_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize app: %v\n", err)
		os.Exit(1)
	}

	common.PrintBanner(a.Config, a.Logger)

	if err := a.StartScheduler(); err != nil {
		a.Logger.Error().Err(err).Msg("Failed to start execution scheduler")
		a.Close()
		os.Exit(1)
	}

	srv := server.NewServer(a)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	a.Logger.Info().
		Str("url", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)).
		Msg("Server ready")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	a.Logger.Info().Msg("Shutdown signal received")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		a.Logger.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	a.Close()
	common.PrintShutdownBanner(a.Logger)
	a.Logger.Info().Msg("Server stopped")
}
