// internal/writer/status_writer.go
package writer

import (
	"errors"
	"fmt"

	"github.com/tamzrod/modbus-labctl/internal/status"
)

// deviceStatusWriter publishes one device's status as a retained message.
type deviceStatusWriter struct {
	topic string
	cli   endpointClient

	needFull bool
	last     status.Snapshot
}

// NewDeviceStatusWriter builds a status writer for one device.
func NewDeviceStatusWriter(plan Plan, device string, cli endpointClient) StatusWriter {
	return &deviceStatusWriter{
		topic:    plan.StatusTopic(device),
		cli:      cli,
		needFull: true, // full re-assert on first successful write
	}
}

// WriteStatus delivers a device status snapshot.
// Unchanged snapshots are skipped; on any failure the next call re-asserts.
func (sw *deviceStatusWriter) WriteStatus(s status.Snapshot) error {
	if sw.cli == nil {
		return errors.New("status writer: missing client")
	}
	if !sw.needFull && s == sw.last {
		return nil
	}

	if err := sw.cli.Publish(sw.topic, true, status.Encode(s)); err != nil {
		sw.needFull = true
		return fmt.Errorf("status writer: %w", err)
	}

	sw.needFull = false
	sw.last = s
	return nil
}
