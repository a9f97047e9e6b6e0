package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Transport kinds.
const (
	TransportMemory = "memory"
	TransportNATS   = "nats"
	TransportGRPC   = "grpc"
)

// Config holds all process configuration.
type Config struct {
	Server    ServerConfig
	Robot     RobotConfig
	Transport TransportConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
	Sim       SimConfig
}

// ServerConfig holds the status API listen address.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// RobotConfig identifies the robot whose channels are used.
type RobotConfig struct {
	Prefix string `envconfig:"ROBOT_PREFIX" default:"robot/"`
}

// TransportConfig selects and addresses the pub-sub transport.
type TransportConfig struct {
	Kind           string        `envconfig:"TRANSPORT_KIND" default:"grpc"`
	NATSURL        string        `envconfig:"NATS_URL" default:"nats://127.0.0.1:4222"`
	BusAddress     string        `envconfig:"BUS_ADDR" default:"localhost:50061"`
	PublishTimeout time.Duration `envconfig:"BUS_PUBLISH_TIMEOUT" default:"2s"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig limits target submissions through the API.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"50"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"100"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// SimConfig configures the simulated robot.
type SimConfig struct {
	Profile        string        `envconfig:"SIM_PROFILE" default:""`
	RateHz         float64       `envconfig:"SIM_RATE_HZ" default:"100"`
	LimitsInterval time.Duration `envconfig:"SIM_LIMITS_INTERVAL" default:"1s"`
	MaxVelocity    float64       `envconfig:"SIM_MAX_VELOCITY" default:"1.0"`
	Watch          bool          `envconfig:"SIM_WATCH" default:"true"`
}

// Load reads the given .env files (missing files are skipped) and then the
// environment.
func Load(envFiles ...string) (*Config, error) {
	for _, path := range envFiles {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from the environment or returns the
// defaults.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Validate checks cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	switch c.Transport.Kind {
	case TransportMemory, TransportNATS, TransportGRPC:
	default:
		return fmt.Errorf("unknown transport kind %q", c.Transport.Kind)
	}
	if c.Sim.RateHz <= 0 {
		return fmt.Errorf("sim rate must be positive, got %g", c.Sim.RateHz)
	}
	if c.Sim.MaxVelocity <= 0 {
		return fmt.Errorf("sim max velocity must be positive, got %g", c.Sim.MaxVelocity)
	}
	if c.Sim.LimitsInterval <= 0 {
		return fmt.Errorf("sim limits interval must be positive, got %s", c.Sim.LimitsInterval)
	}
	return nil
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "0.0.0.0",
		},
		Robot: RobotConfig{
			Prefix: "robot/",
		},
		Transport: TransportConfig{
			Kind:           TransportGRPC,
			NATSURL:        "nats://127.0.0.1:4222",
			BusAddress:     "localhost:50061",
			PublishTimeout: 2 * time.Second,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 50,
			Burst:             100,
			Enabled:           true,
		},
		Sim: SimConfig{
			RateHz:         100,
			LimitsInterval: time.Second,
			MaxVelocity:    1.0,
			Watch:          true,
		},
	}
}

// Hostname returns the machine hostname for log context, or "unknown".
func Hostname() string {
	name, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return name
}
