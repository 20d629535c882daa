package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/glefebvre/housou/internal/api"
	"github.com/glefebvre/housou/internal/config"
	"github.com/glefebvre/housou/internal/database"
	"github.com/glefebvre/housou/internal/logger"
	"github.com/glefebvre/housou/internal/shutdown"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the schedule viewer over HTTP",
		Long: `Start the web viewer. Every browser gets its own selections, kept in the
configured database, and the schedule configuration is cached for all of them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Get()
			if port > 0 {
				cfg.Server.Port = port
			}

			logger.InitializeLoggersWithFormat(cfg.GetAppLogLevel(), cfg.GetDatabaseLogLevel(), cfg.Logging.Format)
			defer logger.Sync()
			log := logger.AppLogger()

			undo, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...interface{}) {
				log.Debug(fmt.Sprintf(format, args...))
			}))
			if err != nil {
				log.Warn(fmt.Sprintf("failed to set GOMAXPROCS: %v", err))
			}
			defer undo()

			if cfg.GetAppLogLevel() != "debug" {
				gin.SetMode(gin.ReleaseMode)
			}

			if err := database.Initialize(cfg); err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}

			handler := shutdown.New(shutdownTimeout)
			handler.Register("database", func(ctx context.Context) error {
				return database.Close()
			})

			backend, err := newClient(cfg)
			if err != nil {
				database.Close()
				return err
			}

			server, err := api.NewServer(api.Options{
				Config:   cfg,
				Backend:  backend,
				DB:       database.Get(),
				Draining: handler.IsShuttingDown,
			})
			if err != nil {
				database.Close()
				return err
			}
			handler.Register("sessions", func(ctx context.Context) error {
				server.Close()
				return nil
			})

			httpServer := &http.Server{
				Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
				Handler:           server.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			handler.Register("http", httpServer.Shutdown)

			serveErr := make(chan error, 1)
			go func() {
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serveErr <- err
					handler.Trigger()
				}
			}()

			log.WithFields(map[string]interface{}{
				"addr":    httpServer.Addr,
				"backend": backend.BaseURL(),
			}).Info("Housou viewer listening")

			if err := handler.Wait(cmd.Context()); err != nil {
				return err
			}

			select {
			case err := <-serveErr:
				return fmt.Errorf("http server failed: %w", err)
			default:
				log.Info("Housou viewer stopped")
				return nil
			}
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides server.port)")
	return cmd
}
