// Command valutahub is a simulated crypto/fiat trading platform.
// Users register, deposit virtual funds, trade at cached exchange rates
// and inspect their portfolio value in USD.
//
// Usage:
//
//	valutahub [--config config.yaml] <command> [flags]
//	valutahub help
//
// Optional environment variables (also read from .env):
//
//	VALUTAHUB_DATA_DIR, VALUTAHUB_UPDATE_INTERVAL, VALUTAHUB_REQUEST_TIMEOUT,
//	EXCHANGERATE_API_KEY
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/valutatrade/valutahub/config"
	"github.com/valutatrade/valutahub/internal/cli"
	"go.uber.org/zap"
)

func main() {
	// .env is optional, real env always wins
	_ = godotenv.Load()

	fs := flag.NewFlagSet("valutahub", flag.ExitOnError)
	configPath := fs.String("config", "", "path to YAML config (defaults apply when omitted)")
	if err := fs.Parse(os.Args[1:]); err != nil {
		log.Fatal(err)
	}

	cfg, err := config.Get(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	app, err := cli.NewApp(cfg, logger)
	if err != nil {
		logger.Fatal("failed to build application", zap.Error(err))
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, fs.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		app.Close()
		logger.Sync()
		os.Exit(1)
	}
}
