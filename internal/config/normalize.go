// internal/config/normalize.go
package config

import (
	"net"
	"strconv"
)

// Transport and scheduling defaults.
const (
	DefaultPort       = 502
	DefaultUnitID     = 1
	DefaultTimeoutMs  = 200
	DefaultIntervalMs = 1000
)

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	for i := range cfg.Devices {
		d := &cfg.Devices[i]

		// Bare hosts get the Modbus port so that "host" and "host:502"
		// resolve to the same shared bus.
		if _, _, err := net.SplitHostPort(d.Endpoint); err != nil {
			d.Endpoint = net.JoinHostPort(d.Endpoint, strconv.Itoa(DefaultPort))
		}
		if d.UnitID == 0 {
			d.UnitID = DefaultUnitID
		}
		if d.TimeoutMs == 0 {
			d.TimeoutMs = DefaultTimeoutMs
		}
	}

	for i := range cfg.Polls {
		if cfg.Polls[i].IntervalMs == 0 {
			cfg.Polls[i].IntervalMs = DefaultIntervalMs
		}
	}

	for i := range cfg.Loops {
		l := &cfg.Loops[i]
		if l.IntervalMs == 0 {
			l.IntervalMs = DefaultIntervalMs
		}
		if l.Output.Scale == 0 {
			l.Output.Scale = 1
		}
	}
}
