package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/i2y/apiportal/internal/adapter/inbound/adminhttp"
	"github.com/i2y/apiportal/internal/adapter/inbound/s3events"
)

func newServeCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the catalog and admin API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), false, func(a *app) error {
				return serve(cmd.Context(), a, opts)
			})
		},
	}
}

func serve(ctx context.Context, a *app, opts *cliOptions) error {
	logger := a.logger

	// === Generic Sources ===
	if sources := a.genericSources(); len(sources) > 0 {
		ids, err := a.importer.ExecuteAll(ctx, sources, opts.actor)
		if err != nil {
			// Imports are retried on the next start; serving continues.
			logger.Warn("Some generic sources failed to import", slog.Any("error", err))
		}
		logger.Info("Imported generic sources", slog.Int("count", len(ids)))
	}

	// === HTTP Server ===
	handlers := adminhttp.NewHandlers(adminhttp.Deps{
		Store:         a.store,
		Rebuild:       a.rebuild,
		Visibility:    a.visibility,
		Documents:     a.documents,
		SDKGeneration: a.sdkGeneration,
		StorageEvents: a.storageEvents,
		Import:        a.importer,
	}, logger)
	server := &http.Server{
		Addr:         a.cfg.ListenAddr,
		Handler:      handlers.Router(),
		ReadTimeout:  a.cfg.ServerReadTimeout,
		WriteTimeout: a.cfg.ServerWriteTimeout,
		IdleTimeout:  a.cfg.ServerIdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// === Storage Watcher ===
	if a.fsStore != nil && a.cfg.Watch {
		g.Go(func() error {
			return a.fsStore.Watch(gctx, a.cfg.WatchDebounce, func(ctx context.Context, keys []string) {
				if _, err := a.storageEvents.Handle(ctx, keys); err != nil {
					logger.Error("Rebuild after storage change failed", slog.Any("error", err))
				}
			})
		})
	}

	// === Graceful Shutdown ===
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.Any("error", err))
			return err
		}
		logger.Info("HTTP server stopped gracefully")
		return nil
	})

	return g.Wait()
}

func newLambdaCmd(_ *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "lambda",
		Short: "Run as the storage-event rebuild function",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// The function performs rebuilds itself, so it never uses a remote trigger.
			return withApp(cmd.Context(), true, func(a *app) error {
				handler := s3events.NewHandler(a.storageEvents, a.rebuild, a.logger)
				lambda.StartWithOptions(handler.Handle, lambda.WithContext(cmd.Context()))
				return nil
			})
		},
	}
}
