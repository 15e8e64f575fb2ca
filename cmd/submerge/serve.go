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

	"github.com/John-Robertt/submerge/internal/httpapi"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve merged documents over HTTP",
		Long: `Serve starts the HTTP API:

  GET  /sub?src=<url>[&label=<label>]...   label pairs with the src before it
  POST /api/aggregate                      {"sources":[{"url":..,"label":..}]} or {"list":"..."}
  GET  /healthz
  GET  /metrics`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}

	cmd.Flags().StringP("listen", "l", "", "HTTP listen address (default from config, 127.0.0.1:25500)")
	cmd.Flags().Duration("convert-timeout", 0, "upper bound for one aggregation request (default from config)")
	cmd.Flags().Duration("read-header-timeout", 5*time.Second, "HTTP ReadHeaderTimeout")
	cmd.Flags().Duration("shutdown-timeout", 10*time.Second, "graceful shutdown wait after a signal")

	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		cfg.HTTP.Listen = listen
	}
	if d, _ := cmd.Flags().GetDuration("convert-timeout"); d > 0 {
		cfg.HTTP.ConvertTimeout = d
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	log, err := newLogger(cmd.ErrOrStderr(), cfg)
	if err != nil {
		return err
	}
	readHeaderTimeout, _ := cmd.Flags().GetDuration("read-header-timeout")
	shutdownTimeout, _ := cmd.Flags().GetDuration("shutdown-timeout")

	handler, err := httpapi.NewHandler(httpapi.Options{Config: cfg, Logger: log})
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              cfg.HTTP.Listen,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	log.Infof("listening on http://%s", cfg.HTTP.Listen)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")

		shCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shCtx); err != nil {
			log.WithError(err).Warn("graceful shutdown failed")
			_ = srv.Close()
		}

		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
