// internal/writer/builder.go
package writer

import (
	"github.com/tamzrod/modbus-labctl/internal/config"
	wmqtt "github.com/tamzrod/modbus-labctl/internal/writer/mqtt"
)

// Set bundles the writers sharing one broker connection.
type Set struct {
	Values Writer
	Loops  TickWriter

	plan Plan
	cli  endpointClient
}

// Status returns a status writer for one device.
func (s *Set) Status(device string) StatusWriter {
	return NewDeviceStatusWriter(s.plan, device, s.cli)
}

// Build connects to the broker and returns the writers plus a closer.
// With MQTT disabled it returns nil and a no-op closer.
func Build(cfg config.MQTTConfig) (*Set, func() error, error) {
	if !cfg.Enabled {
		return nil, func() error { return nil }, nil
	}

	c, err := wmqtt.Connect(cfg)
	if err != nil {
		return nil, nil, err
	}

	return newSet(Plan{Prefix: cfg.TopicPrefix}, c), c.Close, nil
}

func newSet(plan Plan, cli endpointClient) *Set {
	return &Set{
		Values: New(plan, cli),
		Loops:  NewTickWriter(plan, cli),
		plan:   plan,
		cli:    cli,
	}
}
