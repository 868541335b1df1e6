package main

import (
	"context"
	"errors"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"heartrisk/artifact"
	"heartrisk/db"
	httpapi "heartrisk/http"
	"heartrisk/monitoring"
	"heartrisk/pipeline"
)

func serveCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the assessment API and websocket sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			if addr != "" {
				cfg.HTTP.Addr = addr
			}
			logger := a.logger

			store, err := db.Open(cfg.Database.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			metrics := monitoring.NewMetrics()
			handler, err := httpapi.NewHandler(cfg.HTTP.CacheSize,
				httpapi.WithAuditStore(store),
				httpapi.WithMetrics(metrics),
				httpapi.WithLogger(logger),
				httpapi.WithCheckOrigin(originChecker(cfg.HTTP.AllowedOrigins)),
			)
			if err != nil {
				return err
			}

			artifacts := artifact.NewStore(cfg.Artifacts.Dir, logger)
			current := ""
			predictor, err := pipeline.LoadPredictor(artifacts, logger)
			switch {
			case err == nil:
				handler.SetPredictor(predictor)
				current = predictor.RunID()
				logger.Info("model bundle loaded", zap.String("run_id", current))
			case isMissingArtifact(err):
				logger.Warn("no trained model yet, predictions return 503 until training runs", zap.Error(err))
			default:
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if cfg.Artifacts.Watch {
				watcher := artifact.NewWatcher(artifacts, func(b *artifact.Bundle) {
					p, err := pipeline.NewPredictor(b, logger)
					if err != nil {
						logger.Warn("reloaded bundle rejected", zap.Error(err))
						metrics.ObserveReload(false)
						return
					}
					handler.SetPredictor(p)
					metrics.ObserveReload(true)
				}, logger,
					artifact.WithDebounce(cfg.Artifacts.ReloadDebounce),
					artifact.WithCurrentRun(current),
					artifact.WithErrorHandler(func(error) { metrics.ObserveReload(false) }),
				)
				go func() {
					if err := watcher.Run(ctx); err != nil {
						logger.Error("artifact watcher stopped", zap.Error(err))
					}
				}()
			}

			server := httpapi.NewServer(cfg.HTTP, handler, logger)
			errCh := make(chan error, 1)
			go func() { errCh <- server.Start() }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Stop(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}

func isMissingArtifact(err error) bool {
	var missing *artifact.MissingArtifactError
	return errors.As(err, &missing)
}

// originChecker accepts websocket upgrades from the configured origins.
// "*" allows any origin.
func originChecker(allowed []string) func(r *nethttp.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*nethttp.Request) bool { return true }
		}
		set[o] = struct{}{}
	}
	return func(r *nethttp.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
