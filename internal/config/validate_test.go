// internal/config/validate_test.go
package config

import (
	"strings"
	"testing"
)

func ptr(v float64) *float64 { return &v }

// helper to build a minimal valid config quickly
func base() *Config {
	return &Config{
		Devices: []DeviceConfig{
			{Name: "mfc1", Type: "mfc", Endpoint: "192.168.2.13"},
			{Name: "pump", Type: "pump", Endpoint: "192.168.2.14:502"},
		},
		Polls: []PollConfig{
			{Device: "mfc1", Metrics: []string{"flow", "temperature"}},
		},
		Loops: []LoopConfig{
			{
				Name:   "reactor",
				Kp:     0.018,
				Ki:     0.000013,
				Input:  PortConfig{Device: "mfc1", Metric: "flow"},
				Output: OutputConfig{Device: "pump", Command: "slew", Scale: 50000},
			},
		},
	}
}

// ---- tests ----

func TestValidate_Valid(t *testing.T) {
	if err := Validate(base()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_UnknownTypeRejected(t *testing.T) {
	cfg := base()
	cfg.Devices[0].Type = "mks_modbus_mfc" // substrings are not matched

	if err := Validate(cfg); err == nil {
		t.Fatalf("expected unknown type error, got nil")
	}
}

func TestValidate_DuplicateDevice(t *testing.T) {
	cfg := base()
	cfg.Devices = append(cfg.Devices, DeviceConfig{Name: "mfc1", Type: "mfc", Endpoint: "x"})

	if err := Validate(cfg); err == nil {
		t.Fatalf("expected duplicate error, got nil")
	}
}

func TestValidate_NonASCIIName(t *testing.T) {
	cfg := base()
	cfg.Devices[0].Name = "Durchfluß"

	if err := Validate(cfg); err == nil {
		t.Fatalf("expected ascii error, got nil")
	}
}

func TestValidate_LoopUnknownOutput(t *testing.T) {
	cfg := base()
	cfg.Loops[0].Output.Device = "ghost"

	if err := Validate(cfg); err == nil {
		t.Fatalf("expected unknown device error, got nil")
	}
}

func TestValidate_CachedInputMustBePolled(t *testing.T) {
	cfg := base()
	cfg.Loops[0].Input = PortConfig{Device: "mfc1", Metric: "valve", Cached: true}

	if err := Validate(cfg); err == nil {
		t.Fatalf("expected not polled error, got nil")
	}

	cfg.Loops[0].Input.Metric = "flow"
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_InterlockNeedsThreshold(t *testing.T) {
	cfg := base()
	cfg.Loops[0].Interlock = &InterlockConfig{
		PortConfig: PortConfig{Device: "mfc1", Metric: "temperature"},
	}

	if err := Validate(cfg); err == nil {
		t.Fatalf("expected threshold error, got nil")
	}

	cfg.Loops[0].Interlock.Ceiling = ptr(80)
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_MQTTNeedsBroker(t *testing.T) {
	cfg := base()
	cfg.MQTT.Enabled = true

	if err := Validate(cfg); err == nil {
		t.Fatalf("expected broker error, got nil")
	}
}

func TestValidate_DoesNotMutate(t *testing.T) {
	cfg := base()
	_ = Validate(cfg)

	if cfg.Devices[0].Endpoint != "192.168.2.13" {
		t.Fatalf("validate mutated endpoint: %s", cfg.Devices[0].Endpoint)
	}
}

func TestNormalize_Defaults(t *testing.T) {
	cfg := base()
	Normalize(cfg)

	d := cfg.Devices[0]
	if d.Endpoint != "192.168.2.13:502" {
		t.Fatalf("endpoint: got=%s want=192.168.2.13:502", d.Endpoint)
	}
	if d.UnitID != DefaultUnitID || d.TimeoutMs != DefaultTimeoutMs {
		t.Fatalf("transport defaults: unit=%d timeout=%d", d.UnitID, d.TimeoutMs)
	}
	if cfg.Devices[1].Endpoint != "192.168.2.14:502" {
		t.Fatalf("explicit port rewritten: %s", cfg.Devices[1].Endpoint)
	}
	if cfg.Polls[0].IntervalMs != DefaultIntervalMs || cfg.Loops[0].IntervalMs != DefaultIntervalMs {
		t.Fatalf("interval defaults not applied")
	}
}

func TestParse_YAML(t *testing.T) {
	doc := `
logging:
  level: debug
devices:
  - name: mfc1
    type: mfc
    endpoint: 192.168.2.13
    full_scale: 1000
  - name: heater
    type: coupon
    endpoint: 192.168.2.20
    unit_id: 3
polls:
  - device: mfc1
    metrics: [flow, temperature]
    interval_ms: 500
loops:
  - name: bed
    kp: 0.018
    ki: 0.000013
    setpoint: 120
    autostart: true
    input: {device: mfc1, metric: temperature, cached: true}
    output: {device: heater, command: setpoint, scale: 100}
    interlock:
      device: mfc1
      metric: temperature
      margin: 15
`
	cfg, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse err=%v", err)
	}

	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Fatalf("logging: %+v", cfg.Logging)
	}
	if cfg.Devices[1].UnitID != 3 || cfg.Devices[1].Endpoint != "192.168.2.20:502" {
		t.Fatalf("coupon device: %+v", cfg.Devices[1])
	}

	l := cfg.Loops[0]
	if l.Interlock == nil || l.Interlock.Device != "mfc1" || l.Interlock.Margin == nil || *l.Interlock.Margin != 15 {
		t.Fatalf("interlock: %+v", l.Interlock)
	}
	if l.Interlock.Ceiling != nil {
		t.Fatalf("ceiling should stay unset")
	}
	if !l.Input.Cached || l.Output.Scale != 100 {
		t.Fatalf("ports: %+v %+v", l.Input, l.Output)
	}
}

func TestParse_EnvOverride(t *testing.T) {
	t.Setenv("LABCTL_LOG_LEVEL", "warn")

	cfg, err := Parse([]byte("devices: []\n"))
	if err != nil {
		t.Fatalf("Parse err=%v", err)
	}
	if cfg.Logging.Level != "warn" {
		t.Fatalf("env override: got=%s", cfg.Logging.Level)
	}
}

func TestParse_BadYAML(t *testing.T) {
	_, err := Parse([]byte("devices: [\n"))
	if err == nil || !strings.Contains(err.Error(), "parsing config") {
		t.Fatalf("expected parse error, got %v", err)
	}
}
