package server

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// Default timings in milliseconds.
const (
	DefaultPort             = 8080
	DefaultActionTimeoutMs  = 30000
	DefaultPingIntervalMs   = 30000
	DefaultPongTimeoutMs    = 10000
	DefaultGraceTimeoutMs   = 30000
	DefaultRemovalTimeoutMs = 60000

	DefaultSmallBlind    = 2
	DefaultBigBlind      = 4
	DefaultStartingStack = 400
)

// Config is the complete server configuration, loadable from an HCL
// file with CLI flags layered on top.
type Config struct {
	Server ServerSettings `hcl:"server,block"`
	Game   GameSettings   `hcl:"game,block"`
}

// ServerSettings contains transport-level configuration.
type ServerSettings struct {
	Address  string `hcl:"address,optional"`
	Port     int    `hcl:"port,optional"`
	LogLevel string `hcl:"log_level,optional"`
}

// GameSettings contains table rules and timeouts. All durations are
// milliseconds.
type GameSettings struct {
	SmallBlind       int `hcl:"small_blind,optional"`
	BigBlind         int `hcl:"big_blind,optional"`
	StartingStack    int `hcl:"starting_stack,optional"`
	ActionTimeoutMs  int `hcl:"action_timeout_ms,optional"`
	PingIntervalMs   int `hcl:"ping_interval_ms,optional"`
	PongTimeoutMs    int `hcl:"pong_timeout_ms,optional"`
	GraceTimeoutMs   int `hcl:"grace_timeout_ms,optional"`
	RemovalTimeoutMs int `hcl:"removal_timeout_ms,optional"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerSettings{
			Address:  "",
			Port:     DefaultPort,
			LogLevel: "info",
		},
		Game: GameSettings{
			SmallBlind:       DefaultSmallBlind,
			BigBlind:         DefaultBigBlind,
			StartingStack:    DefaultStartingStack,
			ActionTimeoutMs:  DefaultActionTimeoutMs,
			PingIntervalMs:   DefaultPingIntervalMs,
			PongTimeoutMs:    DefaultPongTimeoutMs,
			GraceTimeoutMs:   DefaultGraceTimeoutMs,
			RemovalTimeoutMs: DefaultRemovalTimeoutMs,
		},
	}
}

// LoadConfig loads configuration from an HCL file, falling back to
// defaults when the file does not exist.
func LoadConfig(filename string) (*Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var config Config
	diags = gohcl.DecodeBody(file.Body, nil, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	defaults := DefaultConfig()
	if config.Server.Port == 0 {
		config.Server.Port = defaults.Server.Port
	}
	if config.Server.LogLevel == "" {
		config.Server.LogLevel = defaults.Server.LogLevel
	}
	if config.Game.SmallBlind == 0 {
		config.Game.SmallBlind = defaults.Game.SmallBlind
	}
	if config.Game.BigBlind == 0 {
		config.Game.BigBlind = defaults.Game.BigBlind
	}
	if config.Game.StartingStack == 0 {
		config.Game.StartingStack = defaults.Game.StartingStack
	}
	if config.Game.ActionTimeoutMs == 0 {
		config.Game.ActionTimeoutMs = defaults.Game.ActionTimeoutMs
	}
	if config.Game.PingIntervalMs == 0 {
		config.Game.PingIntervalMs = defaults.Game.PingIntervalMs
	}
	if config.Game.PongTimeoutMs == 0 {
		config.Game.PongTimeoutMs = defaults.Game.PongTimeoutMs
	}
	if config.Game.GraceTimeoutMs == 0 {
		config.Game.GraceTimeoutMs = defaults.Game.GraceTimeoutMs
	}
	if config.Game.RemovalTimeoutMs == 0 {
		config.Game.RemovalTimeoutMs = defaults.Game.RemovalTimeoutMs
	}
	return &config, nil
}

// Validate checks the configuration for usable values.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Game.SmallBlind <= 0 {
		return fmt.Errorf("small blind must be positive, got %d", c.Game.SmallBlind)
	}
	if c.Game.BigBlind <= c.Game.SmallBlind {
		return fmt.Errorf("big blind %d must be greater than small blind %d", c.Game.BigBlind, c.Game.SmallBlind)
	}
	if c.Game.StartingStack < c.Game.BigBlind {
		return fmt.Errorf("starting stack %d must cover the big blind %d", c.Game.StartingStack, c.Game.BigBlind)
	}
	if c.Game.ActionTimeoutMs <= 0 {
		return fmt.Errorf("action timeout must be positive, got %d", c.Game.ActionTimeoutMs)
	}
	if c.Game.PingIntervalMs <= 0 || c.Game.PongTimeoutMs <= 0 {
		return fmt.Errorf("heartbeat intervals must be positive")
	}
	if c.Game.GraceTimeoutMs <= 0 {
		return fmt.Errorf("disconnect grace time must be positive, got %d", c.Game.GraceTimeoutMs)
	}
	if c.Game.RemovalTimeoutMs <= 0 {
		return fmt.Errorf("removal timeout must be positive, got %d", c.Game.RemovalTimeoutMs)
	}
	return nil
}

// ListenAddress returns the host:port the HTTP server binds.
func (c *Config) ListenAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}
