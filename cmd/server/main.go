package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"orderdesk/internal/app"
	"orderdesk/internal/config"
	httpapi "orderdesk/internal/http"
	"orderdesk/internal/logger"
	"orderdesk/internal/service"
	"orderdesk/internal/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := logger.Init(cfg.LogLevel, cfg.LogJSON); err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Error(ctx, "server stopped with error", logger.ErrorF(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

var setupTracing = tracing.Setup

func run(ctx context.Context, cfg config.Config) error {
	shutdownTracing, err := setupTracing(ctx, cfg.OTLPEndpoint)
	if err != nil {
		return err
	}

	store, err := app.OpenStore(ctx, cfg)
	if err != nil {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
		defer cancel()
		return errors.Join(err, shutdownTracing(shutdownCtx))
	}
	sink := app.NewReceiptSink(cfg)
	svc := service.New(store, sink, app.ServiceOptions(cfg))

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           httpapi.NewRouter(httpapi.NewHandler(svc)),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		logger.Info(egCtx, "orderdesk listening",
			logger.String("address", server.Addr),
			logger.String("store", cfg.StoreDriver),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-egCtx.Done()
		logger.Info(egCtx, "shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(egCtx), cfg.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err, server.Close())
		}
		errs = append(errs,
			svc.WaitReceipts(shutdownCtx),
			sink.Close(),
			store.Close(shutdownCtx),
			shutdownTracing(shutdownCtx),
		)
		return errors.Join(errs...)
	})

	return eg.Wait()
}
