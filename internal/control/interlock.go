// internal/control/interlock.go
package control

import (
	"fmt"
	"math"
)

// Off disables one interlock threshold.
var Off = math.Inf(1)

// Interlock forces the output to zero when the bound temperature runs away.
// Margin (relative to the loop setpoint) and Ceiling (absolute) are independent
// thresholds; either may be Off.
type Interlock struct {
	Temperature Input
	Margin      float64
	Ceiling     float64
}

// check reads the temperature and reports whether the interlock trips.
// An unreadable or NaN temperature trips it.
func (il *Interlock) check(setpoint float64) (bool, float64, string) {
	temp, err := il.Temperature.Read()
	if err != nil {
		return true, math.NaN(), fmt.Sprintf("temperature unavailable: %v", err)
	}
	if math.IsNaN(temp) {
		return true, temp, "temperature not a number"
	}
	if temp > setpoint+il.Margin {
		return true, temp, fmt.Sprintf("temperature %.3g above setpoint %.3g + margin %.3g", temp, setpoint, il.Margin)
	}
	if temp > il.Ceiling {
		return true, temp, fmt.Sprintf("temperature %.3g above ceiling %.3g", temp, il.Ceiling)
	}
	return false, temp, ""
}
