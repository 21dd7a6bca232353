package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"orderdesk/internal/app"
	"orderdesk/internal/config"
	"orderdesk/internal/excel"
	"orderdesk/internal/logger"
	"orderdesk/internal/service"
)

type options struct {
	path   string
	dryRun bool
}

func main() {
	var opts options
	flag.StringVar(&opts.path, "file", "", "path to the stock adjustment workbook (.xlsx)")
	flag.BoolVar(&opts.dryRun, "dry-run", false, "parse the workbook and print rows without applying them")
	flag.Parse()

	if opts.path == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := logger.Init(cfg.LogLevel, false); err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts); err != nil {
		log.Fatalf("import failed: %v", err)
	}
}

func run(ctx context.Context, cfg config.Config, opts options) error {
	file, err := os.Open(opts.path)
	if err != nil {
		return fmt.Errorf("open %s: %w", opts.path, err)
	}
	defer file.Close()

	rows, err := excel.ParseStockAdjustments(file)
	if err != nil {
		return err
	}
	if opts.dryRun {
		for _, row := range rows {
			fmt.Printf("row %d: %s/%s %+d %s\n", row.RowNumber, row.ProductID, row.VariantName, row.QuantityDelta, row.Notes)
		}
		return nil
	}

	store, err := app.OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = store.Close(closeCtx)
	}()

	svc := service.New(store, nil, app.ServiceOptions(cfg))
	results, err := svc.ImportAdjustments(ctx, rows)
	if err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if r.Status == service.RowFailed {
			failed++
			fmt.Printf("row %d: %s/%s failed: %s\n", r.RowNumber, r.ProductID, r.Variant, r.Message)
			continue
		}
		fmt.Printf("row %d: %s/%s now %d\n", r.RowNumber, r.ProductID, r.Variant, r.Stock.QuantityOnHand)
	}
	fmt.Printf("applied %d of %d rows\n", len(results)-failed, len(results))
	if failed > 0 {
		return fmt.Errorf("%d rows failed", failed)
	}
	return nil
}
