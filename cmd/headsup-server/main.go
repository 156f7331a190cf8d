package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"golang.org/x/sync/errgroup"

	"github.com/cardroom/headsup/internal/randutil"
	"github.com/cardroom/headsup/internal/server"
)

var CLI struct {
	Config              string `short:"c" help:"Path to HCL configuration file" default:"headsup.hcl"`
	Port                int    `short:"p" help:"Port to listen on" default:"8080"`
	ActionTimeout       int    `help:"Action timeout in milliseconds" default:"0"`
	DisconnectGraceTime int    `help:"Disconnect grace time in milliseconds" default:"0"`
	AmpleTime           int    `help:"Disconnect grace time in seconds (legacy alias)" default:"0"`
	RemovalTimeout      int    `help:"Removal timeout in milliseconds" default:"0"`
	LogLevel            string `short:"l" help:"Log level (overrides config)"`
	Seed                int64  `help:"Deterministic RNG seed (0 seeds from system entropy)" default:"0"`
}

func main() {
	kctx := kong.Parse(&CLI)

	cfg, err := server.LoadConfig(CLI.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		kctx.Exit(1)
	}

	// Command line overrides.
	if CLI.Port != 0 {
		cfg.Server.Port = CLI.Port
	}
	if CLI.ActionTimeout != 0 {
		cfg.Game.ActionTimeoutMs = CLI.ActionTimeout
	}
	if CLI.AmpleTime != 0 {
		cfg.Game.GraceTimeoutMs = CLI.AmpleTime * 1000
	}
	if CLI.DisconnectGraceTime != 0 {
		cfg.Game.GraceTimeoutMs = CLI.DisconnectGraceTime
	}
	if CLI.RemovalTimeout != 0 {
		cfg.Game.RemovalTimeoutMs = CLI.RemovalTimeout
	}
	if CLI.LogLevel != "" {
		cfg.Server.LogLevel = CLI.LogLevel
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		kctx.Exit(1)
	}

	logger := log.New(os.Stderr)
	switch cfg.Server.LogLevel {
	case "debug":
		logger.SetLevel(log.DebugLevel)
	case "info":
		logger.SetLevel(log.InfoLevel)
	case "warn":
		logger.SetLevel(log.WarnLevel)
	case "error":
		logger.SetLevel(log.ErrorLevel)
	default:
		logger.SetLevel(log.InfoLevel)
	}

	rng := randutil.NewSystem()
	if CLI.Seed != 0 {
		rng = randutil.New(CLI.Seed)
	}

	logger.Info("starting heads-up server",
		"addr", cfg.ListenAddress(),
		"small_blind", cfg.Game.SmallBlind,
		"big_blind", cfg.Game.BigBlind,
		"action_timeout_ms", cfg.Game.ActionTimeoutMs)

	srv := server.New(cfg, logger, quartz.NewReal(), rng)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(ctx) })
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("server failed", "error", err)
		kctx.Exit(1)
	}
}
