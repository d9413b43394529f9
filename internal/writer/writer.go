// internal/writer/writer.go
package writer

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/tamzrod/modbus-labctl/internal/control"
	"github.com/tamzrod/modbus-labctl/internal/device"
	"github.com/tamzrod/modbus-labctl/internal/poller"
)

// endpointClient is the exact contract the writers use.
type endpointClient interface {
	Publish(topic string, retained bool, payload []byte) error
}

type writerImpl struct {
	plan Plan
	cli  endpointClient
}

// New returns a Writer publishing poll values.
func New(plan Plan, cli endpointClient) Writer {
	return &writerImpl{plan: plan, cli: cli}
}

type valuesPayload struct {
	Device string                    `json:"device"`
	At     time.Time                 `json:"at"`
	Values map[device.Metric]float64 `json:"values"`
}

// Write publishes a successful poll. Failed polls are reported via status only.
func (w *writerImpl) Write(res poller.PollResult) error {
	if res.Err != nil {
		return nil
	}

	b, err := json.Marshal(valuesPayload{Device: res.Device, At: res.At, Values: res.Values})
	if err != nil {
		return fmt.Errorf("writer: encode %s: %w", res.Device, err)
	}
	if err := w.cli.Publish(w.plan.ValuesTopic(res.Device), false, b); err != nil {
		return fmt.Errorf("writer: device=%s: %w", res.Device, err)
	}
	return nil
}

type tickWriter struct {
	plan Plan
	cli  endpointClient
}

// NewTickWriter returns a TickWriter publishing loop state.
func NewTickWriter(plan Plan, cli endpointClient) TickWriter {
	return &tickWriter{plan: plan, cli: cli}
}

type tickPayload struct {
	Loop         string    `json:"loop"`
	RunID        string    `json:"run_id,omitempty"`
	At           time.Time `json:"at"`
	State        string    `json:"state"`
	Setpoint     float64   `json:"setpoint"`
	Measured     *float64  `json:"measured,omitempty"`
	Error        float64   `json:"error"`
	Proportional float64   `json:"proportional"`
	Integral     float64   `json:"integral"`
	Output       float64   `json:"output"`
	Tripped      bool      `json:"tripped"`
	Temperature  *float64  `json:"temperature,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	Fault        string    `json:"fault,omitempty"`
}

func (w *tickWriter) WriteTick(t control.Tick, tickErr error) error {
	p := tickPayload{
		Loop:         t.Loop,
		RunID:        t.RunID,
		At:           t.At,
		State:        t.State.String(),
		Setpoint:     t.Setpoint,
		Measured:     finite(t.Measured),
		Error:        t.Error,
		Proportional: t.Proportional,
		Integral:     t.Integral,
		Output:       t.Output,
		Tripped:      t.Tripped,
		Temperature:  finite(t.Temperature),
		Reason:       t.Reason,
	}
	if tickErr != nil {
		p.Fault = tickErr.Error()
	}

	b, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("writer: encode loop %s: %w", t.Loop, err)
	}
	if err := w.cli.Publish(w.plan.LoopTopic(t.Loop), false, b); err != nil {
		return fmt.Errorf("writer: loop=%s: %w", t.Loop, err)
	}
	return nil
}

// finite maps NaN (not read this tick) to an absent field.
func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
