// internal/device/registry.go
package device

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/tamzrod/modbus-labctl/internal/bus"
	"github.com/tamzrod/modbus-labctl/internal/config"
)

// TransportFactory creates the transport for one endpoint. ONE attempt per call.
type TransportFactory func(endpoint string, unitID uint8, timeout time.Duration) (bus.Transport, error)

// Registry holds the live devices by name. Safe for concurrent use.
type Registry struct {
	devices *xsync.MapOf[string, Device]
	buses   *xsync.MapOf[string, *bus.Bus]
	log     *slog.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		devices: xsync.NewMapOf[string, Device](),
		buses:   xsync.NewMapOf[string, *bus.Bus](),
		log:     log,
	}
}

// Build constructs every configured device. Devices on the same endpoint and
// unit id share one Bus. Construction is all-or-nothing: on the first failure
// every bus opened so far is closed.
func Build(devices []config.DeviceConfig, factory TransportFactory, log *slog.Logger) (*Registry, error) {
	r := NewRegistry(log)

	for _, dc := range devices {
		b, err := r.busFor(dc, factory)
		if err != nil {
			_ = r.Close()
			return nil, err
		}

		d, err := newDevice(dc, b, r.log)
		if err != nil {
			_ = r.Close()
			return nil, fmt.Errorf("device %q: %w", dc.Name, err)
		}

		if err := r.Add(d); err != nil {
			_ = r.Close()
			return nil, err
		}
		r.log.Info("device ready", "device", dc.Name, "kind", dc.Type, "endpoint", dc.Endpoint)
	}

	return r, nil
}

func (r *Registry) busFor(dc config.DeviceConfig, factory TransportFactory) (*bus.Bus, error) {
	key := fmt.Sprintf("%s|%d", dc.Endpoint, dc.UnitID)
	if b, ok := r.buses.Load(key); ok {
		return b, nil
	}

	tr, err := factory(dc.Endpoint, dc.UnitID, time.Duration(dc.TimeoutMs)*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("device %q: transport: %w", dc.Name, err)
	}

	b := bus.New(key, tr, r.log)
	r.buses.Store(key, b)
	return b, nil
}

// newDevice instantiates by exact type name.
func newDevice(dc config.DeviceConfig, b *bus.Bus, log *slog.Logger) (Device, error) {
	switch Kind(dc.Type) {
	case KindMFC:
		return NewMFC(dc.Name, b, MFCOptions{FullScale: dc.FullScale}, log)
	case KindPump:
		return NewPump(dc.Name, b, log)
	case KindCoupon:
		return NewCoupon(dc.Name, b, log)
	default:
		return nil, fmt.Errorf("%w: unknown device type %q", ErrUnsupported, dc.Type)
	}
}

// Add registers a device under its name.
func (r *Registry) Add(d Device) error {
	if _, loaded := r.devices.LoadOrStore(d.Name(), d); loaded {
		return fmt.Errorf("device: duplicate name %q", d.Name())
	}
	return nil
}

// Get looks a device up by name.
func (r *Registry) Get(name string) (Device, bool) {
	return r.devices.Load(name)
}

// Names returns the registered device names, sorted.
func (r *Registry) Names() []string {
	var out []string
	r.devices.Range(func(name string, _ Device) bool {
		out = append(out, name)
		return true
	})
	slices.Sort(out)
	return out
}

// Buses returns every bus the registry owns.
func (r *Registry) Buses() []*bus.Bus {
	var out []*bus.Bus
	r.buses.Range(func(_ string, b *bus.Bus) bool {
		out = append(out, b)
		return true
	})
	return out
}

// Close closes every bus once.
func (r *Registry) Close() error {
	var errs []error
	r.buses.Range(func(key string, b *bus.Bus) bool {
		if err := b.Close(); err != nil {
			errs = append(errs, fmt.Errorf("bus %s: %w", key, err))
		}
		return true
	})
	return errors.Join(errs...)
}
