// internal/metrics/metrics_test.go
package metrics

import (
	"errors"
	"io"
	"math"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/modbus-labctl/internal/bus"
	"github.com/tamzrod/modbus-labctl/internal/control"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	return string(body)
}

// sample returns the value of one series line, or NaN when absent.
func sample(out, series string) float64 {
	for _, line := range strings.Split(out, "\n") {
		rest, ok := strings.CutPrefix(line, series+" ")
		if !ok {
			continue
		}
		f := strings.Fields(rest)
		if len(f) == 0 {
			return math.NaN()
		}
		v, err := strconv.ParseFloat(f[0], 64)
		if err != nil {
			return math.NaN()
		}
		return v
	}
	return math.NaN()
}

func TestObserveTick(t *testing.T) {
	m := New()

	m.ObserveTick(control.Tick{
		Loop:        "reactor",
		State:       control.Running,
		Setpoint:    120,
		Measured:    100,
		Output:      0.25,
		Integral:    0.1,
		Temperature: math.NaN(),
	}, nil)

	out := scrape(t, m)
	assert.InDelta(t, 120, sample(out, `labctl_loop_setpoint{loop="reactor"}`), 1e-9)
	assert.InDelta(t, 100, sample(out, `labctl_loop_measured{loop="reactor"}`), 1e-9)
	assert.InDelta(t, 0.25, sample(out, `labctl_loop_output{loop="reactor"}`), 1e-9)
	assert.InDelta(t, 1, sample(out, `labctl_loop_running{loop="reactor"}`), 1e-9)
	assert.True(t, math.IsNaN(sample(out, `labctl_loop_interlock_temperature{loop="reactor"}`)))
}

func TestObserveTick_TripsCountedOnRisingEdge(t *testing.T) {
	m := New()
	tick := control.Tick{Loop: "bed", Tripped: true, Measured: math.NaN(), Temperature: 95}

	m.ObserveTick(tick, nil)
	m.ObserveTick(tick, nil)
	tick.Tripped = false
	m.ObserveTick(tick, nil)
	tick.Tripped = true
	m.ObserveTick(tick, nil)

	out := scrape(t, m)
	assert.InDelta(t, 2, sample(out, `labctl_loop_interlock_trips_total{loop="bed"}`), 1e-9)
	assert.InDelta(t, 1, sample(out, `labctl_loop_interlock_tripped{loop="bed"}`), 1e-9)
	assert.InDelta(t, 95, sample(out, `labctl_loop_interlock_temperature{loop="bed"}`), 1e-9)
}

func TestObserveTick_Error(t *testing.T) {
	m := New()

	m.ObserveTick(control.Tick{Loop: "bed", Measured: math.NaN(), Temperature: math.NaN()}, errors.New("timeout"))

	assert.InDelta(t, 1, sample(scrape(t, m), `labctl_loop_tick_errors_total{loop="bed"}`), 1e-9)
}

func TestObserveBus_Deltas(t *testing.T) {
	m := New()

	m.ObserveBus("mfc1", bus.Stats{Transactions: 10, Failures: 1})
	m.ObserveBus("mfc1", bus.Stats{Transactions: 15, Failures: 1, Resets: 1})

	out := scrape(t, m)
	assert.InDelta(t, 15, sample(out, `labctl_bus_transactions_total{bus="mfc1"}`), 1e-9)
	assert.InDelta(t, 1, sample(out, `labctl_bus_failures_total{bus="mfc1"}`), 1e-9)
	assert.InDelta(t, 1, sample(out, `labctl_bus_error_resets_total{bus="mfc1"}`), 1e-9)
}

func TestObservePoll(t *testing.T) {
	m := New()

	m.ObservePoll("pump", nil)
	m.ObservePoll("pump", errors.New("boom"))

	assert.InDelta(t, 1, sample(scrape(t, m), `labctl_poll_errors_total{device="pump"}`), 1e-9)
}
