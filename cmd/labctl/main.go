// cmd/labctl/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/tamzrod/modbus-labctl/internal/bus"
	mbus "github.com/tamzrod/modbus-labctl/internal/bus/modbus"
	"github.com/tamzrod/modbus-labctl/internal/config"
	"github.com/tamzrod/modbus-labctl/internal/control"
	"github.com/tamzrod/modbus-labctl/internal/device"
	"github.com/tamzrod/modbus-labctl/internal/logging"
	"github.com/tamzrod/modbus-labctl/internal/metrics"
	"github.com/tamzrod/modbus-labctl/internal/poller"
	"github.com/tamzrod/modbus-labctl/internal/status"
	"github.com/tamzrod/modbus-labctl/internal/writer"
)

var version = "dev"

// superviseInterval is how often dropped buses are reopened and bus
// counters are folded into metrics.
const superviseInterval = 5 * time.Second

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: labctl <config.yaml>")
		os.Exit(2)
	}

	// --------------------
	// Load + validate config
	// --------------------

	cfg, err := config.Load(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.Logging, version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("labctl failed", "err", err)
		os.Exit(1)
	}
}

func modbusTransport(endpoint string, unitID uint8, timeout time.Duration) (bus.Transport, error) {
	return mbus.New(mbus.Config{Endpoint: endpoint, UnitID: unitID, Timeout: timeout})
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	// --------------------
	// Devices
	// --------------------

	reg, err := device.Build(cfg.Devices, modbusTransport, log)
	if err != nil {
		return fmt.Errorf("device build: %w", err)
	}
	defer func() {
		if err := reg.Close(); err != nil {
			log.Warn("closing devices", "err", err)
		}
	}()

	// --------------------
	// Outputs
	// --------------------

	writers, closeWriters, err := writer.Build(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	defer closeWriters()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		srv := serveMetrics(cfg.Metrics.Listen, m, log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	// Loops stop themselves on cancel, driving their outputs to zero,
	// before the buses close.
	var wg sync.WaitGroup
	ctx, cancel := context.WithCancel(ctx)
	defer wg.Wait()
	defer cancel()

	// --------------------
	// Per-device poll pipelines
	// --------------------

	cache := poller.NewCache()

	for _, pc := range cfg.Polls {
		p, err := poller.Build(pc, reg)
		if err != nil {
			return err
		}

		var sw writer.StatusWriter
		if writers != nil {
			sw = writers.Status(pc.Device)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			orchestrate(ctx, p, pipeline{cache: cache, writers: writers, status: sw, metrics: m, log: log})
		}()
	}

	// --------------------
	// Control loops
	// --------------------

	for _, lc := range cfg.Loops {
		lc := lc
		c, err := buildLoop(lc, cfg, reg, cache, log)
		if err != nil {
			return err
		}
		if lc.AutoStart {
			c.Start(lc.Setpoint)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			control.Run(ctx, c, time.Duration(lc.IntervalMs)*time.Millisecond, func(t control.Tick, err error) {
				if m != nil {
					m.ObserveTick(t, err)
				}
				if writers != nil {
					if werr := writers.Loops.WriteTick(t, err); werr != nil {
						log.Debug("loop publish failed", "loop", t.Loop, "err", werr)
					}
				}
			})
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		superviseBuses(ctx, reg, m, log)
	}()

	log.Info("labctl running",
		"devices", len(cfg.Devices), "polls", len(cfg.Polls), "loops", len(cfg.Loops))

	<-ctx.Done()
	log.Info("shutting down")
	return nil
}

// pipeline is where one device's poll results go.
type pipeline struct {
	cache   *poller.Cache
	writers *writer.Set
	status  writer.StatusWriter
	metrics *metrics.Metrics
	log     *slog.Logger
}

// orchestrate owns one device's status state and its 1 Hz seconds ticker.
func orchestrate(ctx context.Context, p *poller.Poller, pl pipeline) {
	dev := p.Device()
	tracker := status.NewTracker(dev)
	out := make(chan poller.PollResult)

	go p.Run(ctx, out)

	secTicker := time.NewTicker(time.Second)
	defer secTicker.Stop()

	writeStatus := func() {
		if pl.status == nil {
			return
		}
		if err := pl.status.WriteStatus(tracker.Snapshot()); err != nil {
			pl.log.Warn("status write failed", "device", dev, "err", err)
		}
	}

	// Full status write on start (identity re-assert).
	writeStatus()

	for {
		select {
		case <-ctx.Done():
			return

		case res := <-out:
			pl.cache.Update(res)
			if pl.metrics != nil {
				pl.metrics.ObservePoll(dev, res.Err)
			}
			if res.Err != nil {
				pl.log.Warn("poll failed", "device", dev, "err", res.Err)
			}

			if pl.writers != nil {
				if err := pl.writers.Values.Write(res); err != nil {
					pl.log.Warn("values publish failed", "device", dev, "err", err)
				}
			}

			if tracker.Observe(res.Err) {
				writeStatus()
			}

		case <-secTicker.C:
			if tracker.Tick() {
				writeStatus()
			}
		}
	}
}

// superviseBuses makes one reconnect attempt per tick for every bus whose
// transport dropped. No backoff beyond the tick.
func superviseBuses(ctx context.Context, reg *device.Registry, m *metrics.Metrics, log *slog.Logger) {
	t := time.NewTicker(superviseInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			for _, b := range reg.Buses() {
				if !b.IsOpen() {
					if err := b.Reconnect(); err != nil && !errors.Is(err, bus.ErrClosed) {
						log.Warn("reconnect failed", "bus", b.Name(), "err", err)
					}
				}
				if m != nil {
					m.ObserveBus(b.Name(), b.Stats())
				}
			}
		}
	}
}

func serveMetrics(addr string, m *metrics.Metrics, log *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", "addr", addr, "err", err)
		}
	}()
	log.Info("metrics listening", "addr", addr)
	return srv
}
