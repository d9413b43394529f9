// internal/poller/builder.go
package poller

import (
	"fmt"
	"slices"
	"time"

	"github.com/tamzrod/modbus-labctl/internal/config"
	"github.com/tamzrod/modbus-labctl/internal/device"
)

// Build constructs a Poller for a configured device.
// Metrics are checked against what the device kind can read.
func Build(pc config.PollConfig, reg *device.Registry) (*Poller, error) {
	d, ok := reg.Get(pc.Device)
	if !ok {
		return nil, fmt.Errorf("poll %q: unknown device", pc.Device)
	}

	known := d.Metrics()
	metrics := make([]device.Metric, 0, len(pc.Metrics))
	for _, name := range pc.Metrics {
		m := device.Metric(name)
		if !slices.Contains(known, m) {
			return nil, fmt.Errorf("poll %q: metric %q: %w", pc.Device, name, device.ErrUnsupported)
		}
		metrics = append(metrics, m)
	}

	return New(
		Config{
			Interval: time.Duration(pc.IntervalMs) * time.Millisecond,
			Metrics:  metrics,
		},
		d,
	)
}
