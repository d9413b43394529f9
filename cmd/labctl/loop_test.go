// cmd/labctl/loop_test.go
package main

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/modbus-labctl/internal/bus"
	"github.com/tamzrod/modbus-labctl/internal/config"
	"github.com/tamzrod/modbus-labctl/internal/control"
	"github.com/tamzrod/modbus-labctl/internal/device"
	"github.com/tamzrod/modbus-labctl/internal/poller"
)

// nullTransport answers every read with zeros.
type nullTransport struct {
	open   bool
	writes int
}

func (n *nullTransport) Open() error       { n.open = true; return nil }
func (n *nullTransport) Close() error      { n.open = false; return nil }
func (n *nullTransport) IsOpen() bool      { return n.open }
func (n *nullTransport) LastError() string { return "" }

func (n *nullTransport) ReadInputRegisters(addr, qty uint16) ([]uint16, error) {
	return make([]uint16, qty), nil
}

func (n *nullTransport) ReadHoldingRegisters(addr, qty uint16) ([]uint16, error) {
	return make([]uint16, qty), nil
}

func (n *nullTransport) WriteSingleCoil(addr, value uint16) error {
	n.writes++
	return nil
}

func (n *nullTransport) WriteMultipleRegisters(addr uint16, regs []uint16) error {
	n.writes++
	return nil
}

func testConfig() *config.Config {
	margin := 15.0
	return &config.Config{
		Devices: []config.DeviceConfig{
			{Name: "mfc1", Type: "mfc", Endpoint: "10.0.0.1:502", UnitID: 1},
			{Name: "heater", Type: "coupon", Endpoint: "10.0.0.2:502", UnitID: 1},
		},
		Polls: []config.PollConfig{
			{Device: "mfc1", Metrics: []string{"temperature"}, IntervalMs: 500},
			{Device: "mfc1", Metrics: []string{"temperature"}, IntervalMs: 200},
		},
		Loops: []config.LoopConfig{
			{
				Name:      "bed",
				Kp:        0.01,
				Ki:        0.001,
				Input:     config.PortConfig{Device: "mfc1", Metric: "temperature", Cached: true},
				Output:    config.OutputConfig{Device: "heater", Command: "setpoint", Scale: 100},
				Interlock: &config.InterlockConfig{PortConfig: config.PortConfig{Device: "mfc1", Metric: "temperature"}, Margin: &margin},
			},
		},
	}
}

func testRegistry(t *testing.T, cfg *config.Config) *device.Registry {
	t.Helper()

	reg, err := device.Build(cfg.Devices, func(string, uint8, time.Duration) (bus.Transport, error) {
		return &nullTransport{}, nil
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close() })
	return reg
}

func TestBuildLoop(t *testing.T) {
	cfg := testConfig()
	reg := testRegistry(t, cfg)
	cache := poller.NewCache()

	c, err := buildLoop(cfg.Loops[0], cfg, reg, cache, nil)
	require.NoError(t, err)
	assert.Equal(t, "bed", c.Name())

	// cached input has no value yet: the tick is skipped
	c.Start(100)
	_, err = c.Compute()
	assert.ErrorIs(t, err, poller.ErrNoValue)

	cache.Update(poller.PollResult{Device: "mfc1", At: time.Now(), Values: map[device.Metric]float64{"temperature": 50}})
	tick, err := c.Compute()
	require.NoError(t, err)
	assert.False(t, tick.Tripped)
	assert.Equal(t, 50.0, tick.Measured)
	assert.Greater(t, tick.Output, 0.0)
}

func TestBuildLoop_UnsupportedCommand(t *testing.T) {
	cfg := testConfig()
	reg := testRegistry(t, cfg)
	cfg.Loops[0].Output.Command = "slew"

	_, err := buildLoop(cfg.Loops[0], cfg, reg, poller.NewCache(), nil)
	assert.ErrorIs(t, err, device.ErrUnsupported)
}

func TestBuildLoop_UnsupportedMetric(t *testing.T) {
	cfg := testConfig()
	reg := testRegistry(t, cfg)
	cfg.Loops[0].Input = config.PortConfig{Device: "heater", Metric: "flow"}

	_, err := buildLoop(cfg.Loops[0], cfg, reg, poller.NewCache(), nil)
	assert.ErrorIs(t, err, device.ErrUnsupported)
}

func TestPollInterval_Shortest(t *testing.T) {
	cfg := testConfig()

	assert.Equal(t, 200*time.Millisecond, pollInterval(cfg, "mfc1"))
	assert.Zero(t, pollInterval(cfg, "heater"))
}

func TestThreshold(t *testing.T) {
	v := 80.0
	assert.Equal(t, 80.0, threshold(&v))
	assert.True(t, math.IsInf(threshold(nil), 1))
	assert.Equal(t, control.Off, threshold(nil))
}
