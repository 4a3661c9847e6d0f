package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"yashubustudio/semgraph/internal/server"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve POST /analyze over HTTP",
	Run:   func(cmd *cobra.Command, args []string) { serve() },
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Error configuring semgraph: %s", err)
	}
	svc, err := newService(cfg)
	if err != nil {
		log.Fatalf("Failed to load embedding model: %s", err)
	}
	defer svc.Close()

	srv := server.Create(cfg.Server, svc, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Listening on: %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %s", err)
		}
	case <-ctx.Done():
		log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("Graceful shutdown failed: %s", err)
		}
	}
}
