package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"

	"github.com/cardroom/headsup/internal/randutil"
	"github.com/cardroom/headsup/sdk"
)

var CLI struct {
	Server string `short:"s" help:"Server URL" default:"ws://localhost:8080/ws"`
	Name   string `short:"n" help:"Display name" default:"bot"`
	Seed   int64  `help:"Deterministic RNG seed (0 seeds from system entropy)" default:"0"`
	Debug  bool   `short:"d" help:"Enable debug logging"`
}

func main() {
	kctx := kong.Parse(&CLI)

	logger := log.New(os.Stderr)
	if CLI.Debug {
		logger.SetLevel(log.DebugLevel)
	}

	rng := randutil.NewSystem()
	if CLI.Seed != 0 {
		rng = randutil.New(CLI.Seed)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting bot", "server", CLI.Server, "name", CLI.Name)
	bot := sdk.NewBot(CLI.Server, CLI.Name, rng, logger)
	if err := bot.Run(ctx); err != nil {
		logger.Error("bot failed", "error", err)
		kctx.Exit(1)
	}
}
