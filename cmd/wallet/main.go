package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Zet-money/zet-wallet-sub000/internal/buildinfo"
	"github.com/Zet-money/zet-wallet-sub000/internal/client/cli"
	"github.com/Zet-money/zet-wallet-sub000/internal/client/config"
	"github.com/Zet-money/zet-wallet-sub000/internal/logging"
)

func main() {
	buildinfo.PrintBuildData(os.Stdout)

	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(cfg.LogFormat, cfg.LogLevel, os.Stderr)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := cli.NewApp(ctx, cfg, logger, os.Stdin, os.Stdout)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := app.Run(ctx); err != nil {
		log.Fatalf("%v", err)
	}
}
