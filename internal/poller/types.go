// internal/poller/types.go
package poller

import (
	"time"

	"github.com/tamzrod/modbus-labctl/internal/device"
)

// Reader is the device surface the poller needs.
type Reader interface {
	Name() string
	Get(m device.Metric) (float64, error)
}

// PollResult is a snapshot produced by one poll cycle.
type PollResult struct {
	Device string
	At     time.Time

	// Values holds every configured metric, or is nil when Err is set.
	Values map[device.Metric]float64
	Err    error // non-nil means the poll cycle failed
}
