package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgallion1/naromat/internal/api"
	"github.com/dgallion1/naromat/internal/metrics"
	"github.com/dgallion1/naromat/internal/pipeline"
)

func serveCmd(gf *globalFlags) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the formatting HTTP service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(cmd, *gf)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Addr = addr
			}

			ctx := cmd.Context()
			m := metrics.New()
			orch := pipeline.NewOrchestrator(cfg.ParserOptions(), cfg.ResultTTL, m, log)
			orch.Start(ctx)
			defer orch.Stop()

			httpServer := &http.Server{
				Addr:         cfg.Addr,
				Handler:      api.NewServer(orch, m, log, cfg),
				ReadTimeout:  30 * time.Second,
				WriteTimeout: 60 * time.Second,
				IdleTimeout:  60 * time.Second,
			}

			// Graceful shutdown.
			go func() {
				<-ctx.Done()
				log.Info("shutting down...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				httpServer.Shutdown(shutdownCtx)
			}()

			log.Info("starting naromat", "addr", cfg.Addr, "version", Version, "auth", cfg.APIKey != "")
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config, :8090)")
	return cmd
}
