package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/robotdriver/internal/infrastructure/config"
	"github.com/GriffinCanCode/robotdriver/internal/infrastructure/logging"
	"github.com/GriffinCanCode/robotdriver/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/robotdriver/internal/transport"
)

var version = "dev"

// Global is shared with every command's Run method.
type Global struct {
	Config  *config.Config
	Logger  *logging.Logger
	Metrics *monitoring.Metrics
}

// CLI definition & global flags.
type CLI struct {
	EnvFile   []string         `name:"env-file" help:"Dotenv files loaded before the environment" default:".env"`
	Prefix    string           `help:"Robot channel prefix (overrides ROBOT_PREFIX)"`
	Transport string           `help:"Transport kind: memory, nats or grpc (overrides TRANSPORT_KIND)"`
	Verbose   bool             `short:"v" help:"Enable debug logging"`
	Version   kong.VersionFlag `name:"version" help:"Show version and exit"`

	Provide ProvideCmd `cmd:"" help:"Run the simulated robot as a driver provider"`
	Consume ConsumeCmd `cmd:"" help:"Run a driver consumer behind the HTTP status API"`
	Bus     BusCmd     `cmd:"" help:"Host a gRPC bus for providers and consumers"`
	Status  StatusCmd  `cmd:"" help:"Print the robot state from a running API"`
	Target  TargetCmd  `cmd:"" help:"Send a joint target through a running API"`

	global *Global
}

// AfterApply loads configuration and sets up logging once flags are parsed.
func (c *CLI) AfterApply() error {
	cfg, err := config.Load(c.EnvFile...)
	if err != nil {
		return err
	}
	if c.Prefix != "" {
		cfg.Robot.Prefix = c.Prefix
	}
	if c.Transport != "" {
		cfg.Transport.Kind = c.Transport
	}
	if c.Verbose {
		cfg.Logging.Level = "debug"
	}
	cfg.Robot.Prefix = transport.NormalizePrefix(cfg.Robot.Prefix)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	logger = logger.With(zap.String("host", config.Hostname()))

	c.global = &Global{Config: cfg, Logger: logger, Metrics: monitoring.NewMetrics()}
	return nil
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("robotdriver"),
		kong.Description("Robot state synchronization over pub-sub transports."),
		kong.Vars{"version": version},
		kong.UsageOnError(),
	)

	err := kctx.Run(cli.global)
	if cli.global != nil {
		_ = cli.global.Logger.Sync()
	}
	kctx.FatalIfErrorf(err)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
