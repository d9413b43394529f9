// internal/device/device.go
package device

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/tamzrod/modbus-labctl/internal/bus"
	"github.com/tamzrod/modbus-labctl/internal/codec"
)

// ErrUnsupported is returned for a metric or command the device kind does not define.
var ErrUnsupported = errors.New("device: unsupported operation")

// Kind is the exact device type name used in configuration.
type Kind string

const (
	KindMFC    Kind = "mfc"
	KindPump   Kind = "pump"
	KindCoupon Kind = "coupon"
)

// Metric names a readable value.
type Metric string

// Command names a writable value.
type Command string

// Device is the capability every device kind exposes.
// Get and Set never panic; failures come back as errors wrapping bus.ErrCommunication
// or ErrUnsupported.
type Device interface {
	Name() string
	Kind() Kind
	Get(m Metric) (float64, error)
	Set(c Command, v float64) error
	Metrics() []Metric
	Commands() []Command
	Close() error
}

// area is the register space a read is issued against.
type area uint8

const (
	inputRegisters area = iota
	holdingRegisters
)

type readSpec struct {
	field codec.Field
	area  area
}

// writeSpec is either a register write (field) or a coil write with a fixed value.
type writeSpec struct {
	field codec.Field
	coil  bool
	value uint16
}

// table is the fixed address map of one device kind.
// With hasReset set, a failed write is followed by a zero write to reset.
type table struct {
	order  []Metric
	reads  map[Metric]readSpec
	writes map[Command]writeSpec

	reset    uint16
	hasReset bool
}

// registerDevice implements Device on top of a table and a shared bus.
type registerDevice struct {
	name string
	kind Kind
	bus  *bus.Bus
	tbl  table
	log  *slog.Logger
}

func newRegisterDevice(name string, kind Kind, b *bus.Bus, tbl table, log *slog.Logger) registerDevice {
	if log == nil {
		log = slog.Default()
	}
	return registerDevice{
		name: name,
		kind: kind,
		bus:  b,
		tbl:  tbl,
		log:  log.With("device", name, "kind", string(kind)),
	}
}

func (d *registerDevice) Name() string { return d.name }
func (d *registerDevice) Kind() Kind   { return d.kind }

// Metrics lists the readable metrics in table order.
func (d *registerDevice) Metrics() []Metric {
	return append([]Metric(nil), d.tbl.order...)
}

// Commands lists the writable commands, sorted.
func (d *registerDevice) Commands() []Command {
	out := make([]Command, 0, len(d.tbl.writes))
	for c := range d.tbl.writes {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

// Close closes the underlying bus. Devices sharing the bus are closed with it.
func (d *registerDevice) Close() error { return d.bus.Close() }

func (d *registerDevice) Get(m Metric) (float64, error) {
	spec, ok := d.tbl.reads[m]
	if !ok {
		return 0, fmt.Errorf("%w: %s cannot read %q", ErrUnsupported, d.kind, m)
	}

	var (
		regs []uint16
		err  error
	)
	count := uint16(spec.field.Width)
	if spec.area == inputRegisters {
		regs, err = d.bus.ReadInput(spec.field.Address, count)
	} else {
		regs, err = d.bus.ReadHolding(spec.field.Address, count)
	}
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", d.name, m, err)
	}

	v, err := spec.field.Decode(regs)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w: %w", d.name, m, bus.ErrCommunication, err)
	}
	return v, nil
}

func (d *registerDevice) Set(c Command, v float64) error {
	spec, ok := d.tbl.writes[c]
	if !ok {
		return fmt.Errorf("%w: %s cannot write %q", ErrUnsupported, d.kind, c)
	}

	if spec.coil {
		if err := d.bus.WriteCoil(spec.field.Address, spec.value); err != nil {
			d.resetAfterFailure()
			return fmt.Errorf("%s %s: %w", d.name, c, err)
		}
		return nil
	}

	if math.IsNaN(v) {
		d.log.Warn("write rejected", "command", string(c), "err", codec.ErrNotANumber)
		return fmt.Errorf("%s %s: %w", d.name, c, codec.ErrNotANumber)
	}

	if clipped, out := spec.field.Clip(v); out {
		d.log.Warn("value out of range",
			"command", string(c),
			"err", &codec.RangeError{Value: v, Min: spec.field.Min, Max: spec.field.Max, Clipped: clipped},
		)
	}

	words, _ := spec.field.Encode(v)

	if err := d.bus.WriteRegisters(spec.field.Address, words); err != nil {
		d.resetAfterFailure()
		return fmt.Errorf("%s %s: %w", d.name, c, err)
	}
	return nil
}

// resetAfterFailure clears this device's error register, if its kind has one.
// Other devices sharing the bus are not affected.
func (d *registerDevice) resetAfterFailure() {
	if d.tbl.hasReset {
		d.bus.ResetRegister(d.tbl.reset)
	}
}
