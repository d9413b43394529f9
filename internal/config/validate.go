// internal/config/validate.go
package config

import (
	"fmt"
	"slices"
)

// DeviceTypes are the accepted device type names. Matching is exact.
var DeviceTypes = []string{"mfc", "pump", "coupon"}

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	// ------------------------------------------------------------
	// AMBIENT
	// ------------------------------------------------------------

	if cfg.MQTT.Enabled && cfg.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
	}
	if cfg.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1, or 2")
	}

	// ------------------------------------------------------------
	// DEVICES
	// ------------------------------------------------------------

	devices := make(map[string]DeviceConfig, len(cfg.Devices))

	for _, d := range cfg.Devices {
		if d.Name == "" {
			return fmt.Errorf("device with endpoint %q has no name", d.Endpoint)
		}
		for i := 0; i < len(d.Name); i++ {
			if d.Name[i] > 0x7F {
				return fmt.Errorf("device %q: name must contain ASCII characters only", d.Name)
			}
		}
		if _, dup := devices[d.Name]; dup {
			return fmt.Errorf("device %q: duplicate name", d.Name)
		}
		if !slices.Contains(DeviceTypes, d.Type) {
			return fmt.Errorf("device %q: unknown type %q (want one of %v)", d.Name, d.Type, DeviceTypes)
		}
		if d.Endpoint == "" {
			return fmt.Errorf("device %q: endpoint is required", d.Name)
		}
		if d.TimeoutMs < 0 {
			return fmt.Errorf("device %q: timeout_ms must be >= 0", d.Name)
		}
		if d.FullScale < 0 {
			return fmt.Errorf("device %q: full_scale must be >= 0", d.Name)
		}
		devices[d.Name] = d
	}

	// ------------------------------------------------------------
	// POLLS
	// ------------------------------------------------------------

	// key = device | metric
	polled := make(map[string]bool)

	for _, p := range cfg.Polls {
		if _, ok := devices[p.Device]; !ok {
			return fmt.Errorf("poll: unknown device %q", p.Device)
		}
		if len(p.Metrics) == 0 {
			return fmt.Errorf("poll %q: at least one metric required", p.Device)
		}
		if p.IntervalMs < 0 {
			return fmt.Errorf("poll %q: interval_ms must be >= 0", p.Device)
		}
		for _, m := range p.Metrics {
			polled[p.Device+"|"+m] = true
		}
	}

	// ------------------------------------------------------------
	// LOOPS
	// ------------------------------------------------------------

	loops := make(map[string]bool, len(cfg.Loops))

	for _, l := range cfg.Loops {
		if l.Name == "" {
			return fmt.Errorf("loop with output %q has no name", l.Output.Device)
		}
		if loops[l.Name] {
			return fmt.Errorf("loop %q: duplicate name", l.Name)
		}
		loops[l.Name] = true

		if l.IntervalMs < 0 {
			return fmt.Errorf("loop %q: interval_ms must be >= 0", l.Name)
		}

		if err := validatePort(l.Name, "input", l.Input, devices, polled); err != nil {
			return err
		}

		if _, ok := devices[l.Output.Device]; !ok {
			return fmt.Errorf("loop %q: output: unknown device %q", l.Name, l.Output.Device)
		}
		if l.Output.Command == "" {
			return fmt.Errorf("loop %q: output: command is required", l.Name)
		}

		if il := l.Interlock; il != nil {
			if err := validatePort(l.Name, "interlock", il.PortConfig, devices, polled); err != nil {
				return err
			}
			if il.Margin == nil && il.Ceiling == nil {
				return fmt.Errorf("loop %q: interlock needs margin, ceiling or both", l.Name)
			}
		}
	}

	return nil
}

func validatePort(loop, what string, p PortConfig, devices map[string]DeviceConfig, polled map[string]bool) error {
	if _, ok := devices[p.Device]; !ok {
		return fmt.Errorf("loop %q: %s: unknown device %q", loop, what, p.Device)
	}
	if p.Metric == "" {
		return fmt.Errorf("loop %q: %s: metric is required", loop, what)
	}
	if p.Cached && !polled[p.Device+"|"+p.Metric] {
		return fmt.Errorf("loop %q: %s: cached metric %s.%s is not polled", loop, what, p.Device, p.Metric)
	}
	return nil
}
