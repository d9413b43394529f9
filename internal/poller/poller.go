// internal/poller/poller.go
package poller

import (
	"errors"
	"fmt"
	"time"

	"github.com/tamzrod/modbus-labctl/internal/device"
)

// Config is the minimal runtime config the poller needs.
type Config struct {
	Interval time.Duration
	Metrics  []device.Metric
}

// Poller is a dumb, clock-driven reader of one device.
type Poller struct {
	cfg Config
	dev Reader
	now func() time.Time
}

// New creates a poller with immutable config.
func New(cfg Config, dev Reader) (*Poller, error) {
	if dev == nil {
		return nil, errors.New("poller: device required")
	}
	if cfg.Interval <= 0 {
		return nil, errors.New("poller: interval must be > 0")
	}
	if len(cfg.Metrics) == 0 {
		return nil, errors.New("poller: at least one metric required")
	}
	return &Poller{cfg: cfg, dev: dev, now: time.Now}, nil
}

// Device returns the polled device name.
func (p *Poller) Device() string { return p.dev.Name() }

// Interval returns the poll period.
func (p *Poller) Interval() time.Duration { return p.cfg.Interval }

// PollOnce performs exactly one poll cycle.
// All-or-nothing: any failure aborts the cycle.
func (p *Poller) PollOnce() PollResult {
	res := PollResult{
		Device: p.dev.Name(),
		At:     p.now(),
	}

	values := make(map[device.Metric]float64, len(p.cfg.Metrics))
	for _, m := range p.cfg.Metrics {
		v, err := p.dev.Get(m)
		if err != nil {
			res.Err = fmt.Errorf("poll %s.%s: %w", res.Device, m, err)
			return res
		}
		values[m] = v
	}

	// Commit only if all reads succeeded
	res.Values = values
	return res
}
