// internal/device/mfc.go
package device

import (
	"log/slog"
	"math"

	"github.com/tamzrod/modbus-labctl/internal/bus"
	"github.com/tamzrod/modbus-labctl/internal/codec"
)

// MFC metrics and commands.
const (
	MetricFlow          Metric = "flow"           // sccm
	MetricTemperature   Metric = "temperature"    // degC
	MetricValve         Metric = "valve"          // percent open
	MetricControlStatus Metric = "control_status" // full Modbus control flag
	MetricSetpoint      Metric = "setpoint"

	CommandSetpoint     Command = "setpoint"
	CommandCloseValve   Command = "close_valve"
	CommandReleaseValve Command = "release_valve"
	CommandZeroFlow     Command = "zero_flow"
)

// MFC register map. All analog values are float32, high word first.
const (
	mfcFlowAddr          uint16 = 0x4000
	mfcTemperatureAddr   uint16 = 0x4002
	mfcValveAddr         uint16 = 0x4004
	mfcSetpointAddr      uint16 = 0xA000
	mfcControlStatusAddr uint16 = 0xA006
	mfcValveCoil         uint16 = 0xE002
	mfcZeroCoil          uint16 = 0xE003

	coilOn  uint16 = 0xFF00
	coilOff uint16 = 0x0000
)

// MFCOptions tunes an MFC instance.
type MFCOptions struct {
	// FullScale caps setpoint writes. Zero means no device-specific cap.
	FullScale float64
}

// MFC is a mass-flow controller.
type MFC struct {
	registerDevice
}

func mfcTable(opts MFCOptions) table {
	ceiling := float64(math.MaxFloat32)
	if opts.FullScale > 0 {
		ceiling = opts.FullScale
	}
	analog := func(addr uint16) codec.Field {
		return codec.FloatField(addr, -math.MaxFloat32, math.MaxFloat32)
	}

	return table{
		order: []Metric{MetricFlow, MetricTemperature, MetricValve, MetricControlStatus, MetricSetpoint},
		reads: map[Metric]readSpec{
			MetricFlow:          {field: analog(mfcFlowAddr), area: inputRegisters},
			MetricTemperature:   {field: analog(mfcTemperatureAddr), area: inputRegisters},
			MetricValve:         {field: analog(mfcValveAddr), area: inputRegisters},
			MetricControlStatus: {field: analog(mfcControlStatusAddr), area: holdingRegisters},
			MetricSetpoint:      {field: analog(mfcSetpointAddr), area: holdingRegisters},
		},
		writes: map[Command]writeSpec{
			CommandSetpoint:     {field: codec.FloatField(mfcSetpointAddr, 0, ceiling)},
			CommandCloseValve:   {field: codec.Field{Address: mfcValveCoil, Width: 1}, coil: true, value: coilOn},
			CommandReleaseValve: {field: codec.Field{Address: mfcValveCoil, Width: 1}, coil: true, value: coilOff},
			CommandZeroFlow:     {field: codec.Field{Address: mfcZeroCoil, Width: 1}, coil: true, value: 1},
		},
	}
}

// NewMFC opens the bus and returns the device.
func NewMFC(name string, b *bus.Bus, opts MFCOptions, log *slog.Logger) (*MFC, error) {
	if err := b.Open(); err != nil {
		return nil, err
	}
	return &MFC{registerDevice: newRegisterDevice(name, KindMFC, b, mfcTable(opts), log)}, nil
}

func (m *MFC) Flow() (float64, error)          { return m.Get(MetricFlow) }
func (m *MFC) Temperature() (float64, error)   { return m.Get(MetricTemperature) }
func (m *MFC) Valve() (float64, error)         { return m.Get(MetricValve) }
func (m *MFC) ControlStatus() (float64, error) { return m.Get(MetricControlStatus) }
func (m *MFC) Setpoint() (float64, error)      { return m.Get(MetricSetpoint) }

// SetSetpoint writes the flow setpoint.
func (m *MFC) SetSetpoint(v float64) error { return m.Set(CommandSetpoint, v) }

// CloseValve forces the valve fully closed.
func (m *MFC) CloseValve() error { return m.Set(CommandCloseValve, 0) }

// ReleaseValve returns the valve to setpoint control.
func (m *MFC) ReleaseValve() error { return m.Set(CommandReleaseValve, 0) }

// ZeroFlow triggers the flow zero calibration.
func (m *MFC) ZeroFlow() error { return m.Set(CommandZeroFlow, 0) }
