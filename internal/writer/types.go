// internal/writer/types.go
package writer

import (
	"github.com/tamzrod/modbus-labctl/internal/control"
	"github.com/tamzrod/modbus-labctl/internal/poller"
	"github.com/tamzrod/modbus-labctl/internal/status"
)

// Plan is the topic layout shared by all writers.
type Plan struct {
	Prefix string
}

func (p Plan) ValuesTopic(device string) string { return p.Prefix + "/device/" + device + "/values" }
func (p Plan) StatusTopic(device string) string { return p.Prefix + "/device/" + device + "/status" }
func (p Plan) LoopTopic(loop string) string     { return p.Prefix + "/loop/" + loop }

// Writer delivers poll snapshots.
type Writer interface {
	Write(res poller.PollResult) error
}

// StatusWriter is the delivery-only contract for device status.
// It receives a snapshot and writes it verbatim.
type StatusWriter interface {
	WriteStatus(s status.Snapshot) error
}

// TickWriter delivers loop ticks.
type TickWriter interface {
	WriteTick(t control.Tick, err error) error
}
