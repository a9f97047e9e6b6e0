package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/robotdriver/internal/api/client"
	"github.com/GriffinCanCode/robotdriver/internal/driver"
	"github.com/GriffinCanCode/robotdriver/internal/infrastructure/config"
	"github.com/GriffinCanCode/robotdriver/internal/server"
)

// ProvideCmd implements the 'provide' command.
type ProvideCmd struct {
	Profile string  `short:"p" help:"Robot profile file (YAML or TOML)" type:"existingfile"`
	RateHz  float64 `name:"rate" help:"Joint state publish rate in Hz (overrides SIM_RATE_HZ)"`
}

func (p *ProvideCmd) Run(g *Global) error {
	cfg := g.Config
	if p.Profile != "" {
		cfg.Sim.Profile = p.Profile
	}
	if p.RateHz > 0 {
		cfg.Sim.RateHz = p.RateHz
	}
	if cfg.Transport.Kind == config.TransportMemory {
		return errors.New("provide needs a shared transport; use 'consume --transport memory' to run both sides in one process")
	}

	bus, err := server.DialBus(cfg.Transport, g.Logger, g.Metrics)
	if err != nil {
		return err
	}
	defer bus.Close()

	sim, err := server.NewSimulator(cfg, bus, g.Logger, g.Metrics)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()
	g.Logger.Info("Simulated robot running", zap.String("prefix", cfg.Robot.Prefix))
	return sim.Run(ctx)
}

// ConsumeCmd implements the 'consume' command.
type ConsumeCmd struct {
	Port string `help:"HTTP port (overrides PORT)"`
}

func (c *ConsumeCmd) Run(g *Global) error {
	if c.Port != "" {
		g.Config.Server.Port = c.Port
	}

	srv, err := server.NewServer(g.Config, g.Logger, g.Metrics)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()
	return srv.Run(ctx)
}

// BusCmd implements the 'bus' command.
type BusCmd struct {
	Addr string `help:"Listen address (overrides BUS_ADDR)"`
}

func (b *BusCmd) Run(g *Global) error {
	addr := g.Config.Transport.BusAddress
	if b.Addr != "" {
		addr = b.Addr
	}

	ctx, stop := signalContext()
	defer stop()
	return server.NewBusServer(addr, g.Logger, g.Metrics).Run(ctx)
}

// StatusCmd implements the 'status' command.
type StatusCmd struct {
	URL  string        `help:"Status API base URL" default:"http://localhost:8000"`
	Wait time.Duration `help:"Keep polling until ready for up to this long"`
}

func (s *StatusCmd) Run(g *Global) error {
	ctx, stop := signalContext()
	defer stop()

	api := client.New(s.URL)
	deadline := time.Now().Add(s.Wait)
	for {
		state, err := api.State(ctx)
		if err == nil {
			out, err := sonic.ConfigStd.MarshalIndent(state, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout, string(out))
			return nil
		}
		if !errors.Is(err, driver.ErrNotReady) || time.Now().After(deadline) {
			return err
		}
		g.Logger.Debug("Robot not ready yet", zap.Error(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
}

// TargetCmd implements the 'target' command.
type TargetCmd struct {
	URL       string    `help:"Status API base URL" default:"http://localhost:8000"`
	Positions []float64 `arg:"" help:"Joint positions, comma separated" sep:","`
}

func (t *TargetCmd) Run(g *Global) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.New(t.URL).SendTarget(ctx, t.Positions); err != nil {
		return err
	}
	g.Logger.Info("Target sent", zap.Int("joints", len(t.Positions)))
	return nil
}
