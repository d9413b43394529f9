// cmd/labctl/loop.go
package main

import (
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/tamzrod/modbus-labctl/internal/config"
	"github.com/tamzrod/modbus-labctl/internal/control"
	"github.com/tamzrod/modbus-labctl/internal/device"
	"github.com/tamzrod/modbus-labctl/internal/poller"
)

// staleAfterPolls is how many poll periods a cached value stays usable.
const staleAfterPolls = 3

// buildLoop binds one configured loop to its devices.
func buildLoop(lc config.LoopConfig, cfg *config.Config, reg *device.Registry, cache *poller.Cache, log *slog.Logger) (*control.Controller, error) {
	in, err := inputFor(lc.Name, lc.Input, cfg, reg, cache)
	if err != nil {
		return nil, err
	}

	out, ok := reg.Get(lc.Output.Device)
	if !ok {
		return nil, fmt.Errorf("loop %q: unknown output device %q", lc.Name, lc.Output.Device)
	}
	cmd := device.Command(lc.Output.Command)
	if !slices.Contains(out.Commands(), cmd) {
		return nil, fmt.Errorf("loop %q: output %s.%s: %w", lc.Name, lc.Output.Device, cmd, device.ErrUnsupported)
	}

	c := control.New(lc.Name, in,
		device.Sink{Device: out, Command: cmd, Scale: lc.Output.Scale, Offset: lc.Output.Offset},
		control.Options{
			Kp:                   lc.Kp,
			Ki:                   lc.Ki,
			ResetIntegralOnStart: lc.ResetIntegralOnStart,
			Logger:               log,
		})

	if il := lc.Interlock; il != nil {
		temp, err := inputFor(lc.Name, il.PortConfig, cfg, reg, cache)
		if err != nil {
			return nil, err
		}
		c.BindInterlock(&control.Interlock{
			Temperature: temp,
			Margin:      threshold(il.Margin),
			Ceiling:     threshold(il.Ceiling),
		})
	}

	return c, nil
}

func inputFor(loop string, pc config.PortConfig, cfg *config.Config, reg *device.Registry, cache *poller.Cache) (control.Input, error) {
	d, ok := reg.Get(pc.Device)
	if !ok {
		return nil, fmt.Errorf("loop %q: unknown device %q", loop, pc.Device)
	}
	m := device.Metric(pc.Metric)
	if !slices.Contains(d.Metrics(), m) {
		return nil, fmt.Errorf("loop %q: input %s.%s: %w", loop, pc.Device, m, device.ErrUnsupported)
	}

	if !pc.Cached {
		return device.Source{Device: d, Metric: m}, nil
	}
	return cache.Source(pc.Device, m, staleAfterPolls*pollInterval(cfg, pc.Device)), nil
}

// pollInterval is the shortest poll period configured for dev.
func pollInterval(cfg *config.Config, dev string) time.Duration {
	var best time.Duration
	for _, p := range cfg.Polls {
		if p.Device != dev {
			continue
		}
		d := time.Duration(p.IntervalMs) * time.Millisecond
		if best == 0 || d < best {
			best = d
		}
	}
	return best
}

func threshold(v *float64) float64 {
	if v == nil {
		return control.Off
	}
	return *v
}
