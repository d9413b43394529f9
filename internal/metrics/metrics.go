// internal/metrics/metrics.go
package metrics

import (
	"math"
	"net/http"
	"sync"

	"github.com/bsm/openmetrics"
	"github.com/bsm/openmetrics/omhttp"

	"github.com/tamzrod/modbus-labctl/internal/bus"
	"github.com/tamzrod/modbus-labctl/internal/control"
)

// Metrics exposes loop and bus state in OpenMetrics text format.
type Metrics struct {
	reg *openmetrics.Registry

	setpoint    openmetrics.GaugeFamily
	measured    openmetrics.GaugeFamily
	output      openmetrics.GaugeFamily
	integral    openmetrics.GaugeFamily
	temperature openmetrics.GaugeFamily
	running     openmetrics.GaugeFamily
	tripped     openmetrics.GaugeFamily
	trips       openmetrics.CounterFamily
	tickErrors  openmetrics.CounterFamily

	busTransactions openmetrics.CounterFamily
	busFailures     openmetrics.CounterFamily
	busResets       openmetrics.CounterFamily

	pollErrors openmetrics.CounterFamily

	mu      sync.Mutex
	wasTrip map[string]bool
	lastBus map[string]bus.Stats
}

// New registers all families on a fresh registry.
func New() *Metrics {
	reg := openmetrics.NewRegistry()
	loop := []string{"loop"}

	return &Metrics{
		reg: reg,
		setpoint: reg.Gauge(openmetrics.Desc{
			Name:   "labctl_loop_setpoint",
			Help:   "Loop setpoint in process units",
			Labels: loop,
		}),
		measured: reg.Gauge(openmetrics.Desc{
			Name:   "labctl_loop_measured",
			Help:   "Last process value read by the loop",
			Labels: loop,
		}),
		output: reg.Gauge(openmetrics.Desc{
			Name:   "labctl_loop_output",
			Help:   "Normalized controller output in [0,1]",
			Labels: loop,
		}),
		integral: reg.Gauge(openmetrics.Desc{
			Name:   "labctl_loop_integral",
			Help:   "Integral accumulator",
			Labels: loop,
		}),
		temperature: reg.Gauge(openmetrics.Desc{
			Name:   "labctl_loop_interlock_temperature",
			Help:   "Temperature seen by the safety interlock",
			Labels: loop,
		}),
		running: reg.Gauge(openmetrics.Desc{
			Name:   "labctl_loop_running",
			Help:   "1 if the loop is running",
			Labels: loop,
		}),
		tripped: reg.Gauge(openmetrics.Desc{
			Name:   "labctl_loop_interlock_tripped",
			Help:   "1 while the safety interlock holds the output at zero",
			Labels: loop,
		}),
		trips: reg.Counter(openmetrics.Desc{
			Name:   "labctl_loop_interlock_trips",
			Help:   "Interlock trip events",
			Labels: loop,
		}),
		tickErrors: reg.Counter(openmetrics.Desc{
			Name:   "labctl_loop_tick_errors",
			Help:   "Ticks that failed to read or write",
			Labels: loop,
		}),
		busTransactions: reg.Counter(openmetrics.Desc{
			Name:   "labctl_bus_transactions",
			Help:   "Modbus transactions issued",
			Labels: []string{"bus"},
		}),
		busFailures: reg.Counter(openmetrics.Desc{
			Name:   "labctl_bus_failures",
			Help:   "Modbus transactions that failed",
			Labels: []string{"bus"},
		}),
		busResets: reg.Counter(openmetrics.Desc{
			Name:   "labctl_bus_error_resets",
			Help:   "Error register resets after a failed write",
			Labels: []string{"bus"},
		}),
		pollErrors: reg.Counter(openmetrics.Desc{
			Name:   "labctl_poll_errors",
			Help:   "Failed device polls",
			Labels: []string{"device"},
		}),
		wasTrip: make(map[string]bool),
		lastBus: make(map[string]bus.Stats),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *openmetrics.Registry { return m.reg }

// Handler serves the registry.
func (m *Metrics) Handler() http.Handler { return omhttp.NewHandler(m.reg) }

// ObserveTick records a loop tick. Trips are counted on the rising edge.
func (m *Metrics) ObserveTick(t control.Tick, err error) {
	if err != nil {
		m.tickErrors.With(t.Loop).Add(1)
	}

	m.setpoint.With(t.Loop).Set(t.Setpoint)
	m.output.With(t.Loop).Set(t.Output)
	m.integral.With(t.Loop).Set(t.Integral)
	m.running.With(t.Loop).Set(boolf(t.State == control.Running))
	m.tripped.With(t.Loop).Set(boolf(t.Tripped))

	// NaN means not read this tick; keep the last value.
	if !math.IsNaN(t.Measured) {
		m.measured.With(t.Loop).Set(t.Measured)
	}
	if !math.IsNaN(t.Temperature) {
		m.temperature.With(t.Loop).Set(t.Temperature)
	}

	m.mu.Lock()
	rising := t.Tripped && !m.wasTrip[t.Loop]
	m.wasTrip[t.Loop] = t.Tripped
	m.mu.Unlock()

	if rising {
		m.trips.With(t.Loop).Add(1)
	}
}

// ObserveBus folds cumulative bus counters into the registry.
func (m *Metrics) ObserveBus(name string, s bus.Stats) {
	m.mu.Lock()
	prev := m.lastBus[name]
	m.lastBus[name] = s
	m.mu.Unlock()

	if s.Transactions > prev.Transactions {
		m.busTransactions.With(name).Add(float64(s.Transactions - prev.Transactions))
	}
	if s.Failures > prev.Failures {
		m.busFailures.With(name).Add(float64(s.Failures - prev.Failures))
	}
	if s.Resets > prev.Resets {
		m.busResets.With(name).Add(float64(s.Resets - prev.Resets))
	}
}

// ObservePoll counts failed polls.
func (m *Metrics) ObservePoll(device string, err error) {
	if err != nil {
		m.pollErrors.With(device).Add(1)
	}
}

func boolf(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
