package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/dnldd/stocketl/service"
	"github.com/rs/zerolog/log"
)

// handleTermination processes context cancellation signals or interrupt signals from the OS.
func handleTermination(ctx context.Context, cancel context.CancelFunc) {
	// Listen for interrupt signals.
	signals := []os.Signal{os.Interrupt}
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, signals...)

	// Wait for the context to be cancelled or an interrupt signal.
	for {
		select {
		case <-ctx.Done():
			return

		case <-interrupt:
			cancel()
		}
	}
}

// run executes a single etl run and returns the process exit status.
func run() int {
	var cfg Config
	err := loadConfig(&cfg, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		return 1
	}

	logger, logCloser, err := newLogger(&cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "creating logger: %v\n", err)
		return 1
	}
	if logCloser != nil {
		defer logCloser.Close()
	}
	log.Logger = logger

	runCfg, err := loadRunConfiguration(cfg.RunConfig, cfg.PolygonAPIKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading run configuration: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go handleTermination(ctx, cancel)

	etlCfg := service.ETLConfig{
		Run:              runCfg,
		Backend:          cfg.DBBackend,
		DBEndpoint:       cfg.DBEndpoint,
		DBUser:           cfg.DBUser,
		DBPass:           cfg.DBPass,
		SQLitePath:       cfg.SQLitePath,
		HTTPTimeout:      cfg.HTTPTimeout,
		FrankfurterURL:   cfg.FrankfurterURL,
		PolygonURL:       cfg.PolygonURL,
		PricesFile:       cfg.PricesFile,
		PushgatewayURL:   cfg.Pushgateway,
		DropInconsistent: cfg.DropInconsistent,
	}
	etl, err := service.NewETL(ctx, &etlCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "creating etl service: %v\n", err)
		return 1
	}
	defer etl.Close()

	_, err = etl.Run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "etl run %s failed: %v\n", etl.RunID(), err)
		return 1
	}

	return 0
}

func main() {
	os.Exit(run())
}
