// internal/control/pi.go
package control

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFinite is returned for a process value that is NaN or infinite.
var ErrNotFinite = errors.New("control: process value not finite")

// Input is a process-value port.
type Input interface {
	Read() (float64, error)
}

// Output receives the normalized controller output in [0, 1].
type Output interface {
	Write(out float64) error
}

// State is the controller run state.
type State uint8

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "stopped"
}

// Options are the tuning and policy knobs of a Controller.
type Options struct {
	Kp float64
	Ki float64

	// ResetIntegralOnStart clears the integral on every Start.
	// When false the integral carries over a stop/start cycle.
	ResetIntegralOnStart bool

	Clock  func() time.Time
	Logger *slog.Logger
}

// Tick is the outcome of one Compute call.
type Tick struct {
	Loop  string
	RunID string
	At    time.Time
	State State

	Setpoint     float64
	Measured     float64
	Error        float64
	Proportional float64
	Integral     float64
	Output       float64

	Tripped     bool
	Temperature float64
	Reason      string
}

// Controller is a PI loop with anti-windup and an optional safety interlock.
// It has no scheduler: an external caller invokes Compute on its own cadence.
// All methods are safe for concurrent use.
type Controller struct {
	name string
	in   Input
	out  Output
	now  func() time.Time
	log  *slog.Logger

	mu           sync.Mutex
	kp, ki       float64
	resetOnStart bool
	interlock    *Interlock

	state     State
	setpoint  float64
	integral  float64
	output    float64
	last      time.Time
	secureOff bool
	runID     string
	tripped   bool
	lastTick  Tick
}

// New creates a stopped controller.
func New(name string, in Input, out Output, opts Options) *Controller {
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Controller{
		name:         name,
		in:           in,
		out:          out,
		now:          now,
		log:          log.With("loop", name),
		kp:           opts.Kp,
		ki:           opts.Ki,
		resetOnStart: opts.ResetIntegralOnStart,
		last:         now(),
	}
}

// Name returns the loop name.
func (c *Controller) Name() string { return c.name }

// BindInterlock attaches a safety interlock. nil detaches it.
func (c *Controller) BindInterlock(il *Interlock) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.interlock = il
}

// Configure replaces the gains.
func (c *Controller) Configure(kp, ki float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.kp, c.ki = kp, ki
}

// Start enters Running with a new setpoint and restarts the integration clock.
func (c *Controller) Start(setpoint float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.setpoint = setpoint
	c.state = Running
	c.last = c.now()
	c.runID = uuid.NewString()
	if c.resetOnStart {
		c.integral = 0
	}
	c.log.Info("loop started", "setpoint", setpoint, "run_id", c.runID)
}

// Stop enters Stopped and runs one last compute, which drives the output to zero.
func (c *Controller) Stop() (Tick, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = Stopped
	c.log.Info("loop stopped", "run_id", c.runID)
	return c.compute()
}

// SetSetpoint changes the target without touching the run state.
func (c *Controller) SetSetpoint(v float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setpoint = v
}

// SecureOff makes the next Compute output zero. The flag clears itself.
func (c *Controller) SecureOff() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.secureOff = true
}

// Last returns the most recent tick.
func (c *Controller) Last() Tick {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastTick
}

// Integral returns the accumulator.
func (c *Controller) Integral() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.integral
}

// Compute runs one control step and writes the output.
//
// A failed or non-finite process-value read skips the step: the output is
// neither recomputed nor rewritten and the error is returned.
func (c *Controller) Compute() (Tick, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.compute()
}

func (c *Controller) compute() (Tick, error) {
	t := Tick{
		Loop:        c.name,
		RunID:       c.runID,
		At:          c.now(),
		State:       c.state,
		Setpoint:    c.setpoint,
		Measured:    math.NaN(),
		Temperature: math.NaN(),
	}

	if c.interlock != nil {
		tripped, temp, reason := c.interlock.check(c.setpoint)
		t.Temperature = temp
		if tripped {
			if !c.tripped {
				c.log.Warn("safety interlock tripped", "reason", reason, "integral", c.integral)
			}
			c.tripped = true
			t.Tripped = true
			t.Reason = reason
			return c.emit(t, 0)
		}
		if c.tripped {
			c.log.Info("safety interlock cleared", "temperature", temp)
		}
		c.tripped = false
	}

	if c.state == Stopped || c.secureOff {
		t.Reason = "stopped"
		if c.secureOff {
			t.Reason = "secure-off"
			c.secureOff = false
		}
		return c.emit(t, 0)
	}

	measured, err := c.in.Read()
	if err == nil && (math.IsNaN(measured) || math.IsInf(measured, 0)) {
		err = fmt.Errorf("%w: %g", ErrNotFinite, measured)
	}
	if err != nil {
		c.log.Error("process value unavailable", "err", err)
		t.Output = c.output
		t.Integral = c.integral
		t.Reason = "no process value"
		c.lastTick = t
		return t, err
	}

	e := c.setpoint - measured
	p := c.kp * e

	now := t.At
	elapsed := now.Sub(c.last).Seconds()
	c.last = now

	c.integral += e * c.ki * elapsed

	raw := p + c.integral
	var out float64
	switch {
	case raw > 1:
		out = 1
		c.integral = out - p
	case raw < 0:
		out = 0
		c.integral = 0
	default:
		out = raw
	}
	if c.integral < 0 {
		c.integral = 0
	}

	t.Measured = measured
	t.Error = e
	t.Proportional = p
	return c.emit(t, out)
}

// emit commits out and writes it to the bound output.
func (c *Controller) emit(t Tick, out float64) (Tick, error) {
	c.output = out
	t.Output = out
	t.Integral = c.integral
	c.lastTick = t

	if c.out == nil {
		return t, nil
	}
	if err := c.out.Write(out); err != nil {
		c.log.Error("output write failed", "output", out, "err", err)
		return t, err
	}
	return t, nil
}
