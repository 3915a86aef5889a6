package cmd

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
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ziadkadry99/crm-agent/internal/server"
)

var serverPort int

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the REST API server",
	Long:  `Starts the crmagent HTTP server exposing HCP and interaction CRUD, the conversational agent and the audit log.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		port := a.cfg.Port
		if cmd.Flags().Changed("port") {
			port = serverPort
		}

		srv := server.New(server.Config{
			Port:     port,
			AllowAll: a.cfg.CORSAllowAll,
		}, server.Deps{
			Records:  a.records,
			Audit:    a.audit,
			Pipeline: a.pipeline,
			Logger:   a.logger,
		})

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a.logger.Info("crmagent server starting",
			zap.String("version", Version),
			zap.Int("port", port),
			zap.String("database", a.db.Path()))

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serving: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			a.logger.Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		return g.Wait()
	},
}

func init() {
	serverCmd.Flags().IntVar(&serverPort, "port", 8000, "Port to listen on (overrides config)")
	rootCmd.AddCommand(serverCmd)
}
