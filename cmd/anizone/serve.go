package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/Pal-droid/anizone/internal/config"
	"github.com/Pal-droid/anizone/internal/util"
)

const shutdownTimeout = 10 * time.Second

func init() {
	serveCmd.Flags().StringP("listen", "l", "", "Address to listen on")
	lo.Must0(v.BindPFlag(config.KeyListen, serveCmd.Flags().Lookup("listen")))

	serveCmd.Flags().Bool("json-logs", false, "Emit logs as JSON lines")
	lo.Must0(v.BindPFlag(config.KeyJSONLogs, serveCmd.Flags().Lookup("json-logs")))
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and streaming proxy",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := loadApp(v)
		if err != nil {
			return err
		}
		defer func() {
			if err := app.Close(); err != nil {
				util.Warn("Error closing local store", "error", err)
			}
		}()

		if !util.IsDebug {
			gin.SetMode(gin.ReleaseMode)
		}
		srv := &http.Server{
			Addr:              app.Config.Listen,
			Handler:           app.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			util.Info("HTTP server listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		select {
		case sig := <-sigCh:
			util.Info("Shutdown signal received", "signal", sig.String())
		case err := <-errCh:
			util.Error("HTTP server failed", "addr", srv.Addr, "error", err)
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			util.Error("Graceful shutdown failed", "error", err)
			return err
		}
		return nil
	},
}
