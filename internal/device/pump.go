// internal/device/pump.go
package device

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/tamzrod/modbus-labctl/internal/bus"
	"github.com/tamzrod/modbus-labctl/internal/codec"
)

// Pump write commands.
const (
	CommandSlew         Command = "slew"
	CommandHoldCurrent  Command = "holdCurrent"
	CommandRunCurrent   Command = "runCurrent"
	CommandTorque       Command = "torque"
	CommandMaxVelocity  Command = "maxVelocity"
	CommandError        Command = "error"
	CommandDriveEnable  Command = "driveEnable"
	CommandMicroStep    Command = "microStep"
	CommandEncodeEnable Command = "encodeEnable"
	CommandPosition     Command = "position"
	CommandMakeUp       Command = "makeUp"
)

// Pump read commands.
const (
	MetricStalled     Metric = "stalled"
	MetricMoving      Metric = "moving"
	MetricOutputFault Metric = "outputFault"
	MetricError       Metric = "error"
	MetricVelocity    Metric = "velocity"
	MetricPosition    Metric = "position"
)

const pumpErrorAddr uint16 = 0x0021

// pumpInit is the sequence that puts a freshly opened pump into a known-safe state.
var pumpInit = []struct {
	cmd   Command
	value float64
}{
	{CommandEncodeEnable, 1},
	{CommandError, 0},
	{CommandPosition, 0},
	{CommandMakeUp, 1},
	{CommandSlew, 0},
}

func pumpTable() table {
	i32 := func(addr uint16) codec.Field { return codec.IntField(addr, math.MinInt32, math.MaxInt32) }
	u16 := func(addr uint16) codec.Field { return codec.IntField(addr, 0, 0xFFFF) }

	return table{
		order: []Metric{MetricStalled, MetricMoving, MetricOutputFault, MetricError, MetricVelocity, MetricPosition},
		reads: map[Metric]readSpec{
			MetricStalled:     {field: u16(0x007B), area: holdingRegisters},
			MetricMoving:      {field: u16(0x004A), area: holdingRegisters},
			MetricOutputFault: {field: u16(0x004E), area: holdingRegisters},
			MetricError:       {field: u16(pumpErrorAddr), area: holdingRegisters},
			MetricVelocity:    {field: i32(0x0085), area: holdingRegisters},
			MetricPosition:    {field: i32(0x0057), area: holdingRegisters},
		},
		writes: map[Command]writeSpec{
			CommandSlew:         {field: codec.IntField(0x0078, -5000000, 5000000)},
			CommandHoldCurrent:  {field: codec.IntField(0x0029, 0, 100)},
			CommandRunCurrent:   {field: codec.IntField(0x0067, 0, 100)},
			CommandTorque:       {field: codec.IntField(0x00A6, 0, 100)},
			CommandMaxVelocity:  {field: codec.IntField(0x008B, 1, 2560000)},
			CommandError:        {field: codec.IntField(pumpErrorAddr, 0, 0)},
			CommandDriveEnable:  {field: codec.IntField(0x001C, 0, 1)},
			CommandMicroStep:    {field: codec.IntField(0x0048, 1, 256)},
			CommandEncodeEnable: {field: codec.IntField(0x001E, 0, 1)},
			CommandPosition:     {field: i32(0x0057)},
			CommandMakeUp:       {field: codec.IntField(0x00A0, 0, 2)},
		},
		reset:    pumpErrorAddr,
		hasReset: true,
	}
}

// Pump is the metering pump's stepper drive.
type Pump struct {
	registerDevice
}

// NewPump opens the bus and drives the pump through its init sequence.
// Any failed step fails construction.
func NewPump(name string, b *bus.Bus, log *slog.Logger) (*Pump, error) {
	if err := b.Open(); err != nil {
		return nil, err
	}

	p := &Pump{registerDevice: newRegisterDevice(name, KindPump, b, pumpTable(), log)}

	for _, step := range pumpInit {
		if err := p.Set(step.cmd, step.value); err != nil {
			return nil, fmt.Errorf("pump %s init %s=%g: %w", name, step.cmd, step.value, err)
		}
	}
	p.log.Info("pump initialized")

	return p, nil
}

// WriteSlew sends a raw velocity command.
func (p *Pump) WriteSlew(slew float64) error { return p.Set(CommandSlew, slew) }

// Halt stops the motor.
func (p *Pump) Halt() error { return p.Set(CommandSlew, 0) }

// ClearError writes the zero reset value to the error register.
func (p *Pump) ClearError() error { return p.Set(CommandError, 0) }

// SetFlow converts a volumetric flow into a slew command: slew = flow*a + b.
func (p *Pump) SetFlow(flow, a, b float64) error {
	return p.WriteSlew(math.Trunc(flow*a + b))
}

func (p *Pump) Velocity() (float64, error) { return p.Get(MetricVelocity) }
func (p *Pump) Position() (float64, error) { return p.Get(MetricPosition) }

// Stalled reports whether the drive detected a stall.
func (p *Pump) Stalled() (bool, error) { return p.flag(MetricStalled) }

// Moving reports whether the motor is turning.
func (p *Pump) Moving() (bool, error) { return p.flag(MetricMoving) }

func (p *Pump) flag(m Metric) (bool, error) {
	v, err := p.Get(m)
	if err != nil {
		return false, err
	}
	return v != 0, nil
}
