// internal/device/coupon.go
package device

import (
	"log/slog"

	"github.com/tamzrod/modbus-labctl/internal/bus"
	"github.com/tamzrod/modbus-labctl/internal/codec"
)

const couponSetpointAddr uint16 = 2100

// Coupon is the coupon valve actuator. It only accepts a setpoint.
type Coupon struct {
	registerDevice
}

func couponTable() table {
	return table{
		reads: map[Metric]readSpec{},
		writes: map[Command]writeSpec{
			CommandSetpoint: {field: codec.IntField(couponSetpointAddr, 0, 0xFFFF)},
		},
	}
}

// NewCoupon opens the bus and returns the device.
func NewCoupon(name string, b *bus.Bus, log *slog.Logger) (*Coupon, error) {
	if err := b.Open(); err != nil {
		return nil, err
	}
	return &Coupon{registerDevice: newRegisterDevice(name, KindCoupon, b, couponTable(), log)}, nil
}

// SetSetpoint writes the integer setpoint. Fractions are truncated.
func (c *Coupon) SetSetpoint(v float64) error { return c.Set(CommandSetpoint, v) }
