// internal/codec/codec.go
package codec

import (
	"errors"
	"fmt"
	"math"
)

// RegisterSize is the width of one Modbus register in bits.
const RegisterSize = 16

// maxRegisterRange is the number of distinct values one register can carry.
const maxRegisterRange = 1 << RegisterSize

var (
	// ErrArity is returned when a decode receives a word count other than the field width.
	ErrArity = errors.New("codec: unexpected register count")

	// ErrNotANumber rejects a NaN write. NaN has no place in a legal range.
	ErrNotANumber = errors.New("codec: value is not a number")
)

// Encoding selects how a value is laid out in its register words.
type Encoding uint8

const (
	// Raw is an unsigned 16-bit integer in a single register.
	Raw Encoding = iota
	// Int32 is a two's-complement 32-bit integer split across two registers.
	Int32
	// Float32 is an IEEE-754 single split across two registers.
	Float32
)

func (e Encoding) String() string {
	switch e {
	case Raw:
		return "raw"
	case Int32:
		return "int32"
	case Float32:
		return "float32"
	default:
		return fmt.Sprintf("encoding(%d)", uint8(e))
	}
}

// WordOrder is the register order of a two-word value.
type WordOrder uint8

const (
	// HighFirst puts the most significant word at the lower address.
	HighFirst WordOrder = iota
	// LowFirst puts the least significant word at the lower address.
	LowFirst
)

// Field describes one register-addressed value.
// Geometry and legal range only: no IO.
type Field struct {
	Address  uint16
	Min      float64
	Max      float64
	Width    int
	Encoding Encoding
	Order    WordOrder
}

// WidthFor returns the register count needed for an integer range.
// A range whose magnitude fits one register uses one word, anything larger uses two.
func WidthFor(min, max float64) int {
	if math.Abs(min)+math.Abs(max) < maxRegisterRange {
		return 1
	}
	return 2
}

// IntField builds an integer field sized by WidthFor.
// Two-word integer fields are two's-complement, low word first.
func IntField(addr uint16, min, max float64) Field {
	f := Field{Address: addr, Min: min, Max: max, Width: WidthFor(min, max)}
	if f.Width == 2 {
		f.Encoding = Int32
		f.Order = LowFirst
	}
	return f
}

// FloatField builds a big-endian float32 field, high word first.
func FloatField(addr uint16, min, max float64) Field {
	return Field{
		Address:  addr,
		Min:      min,
		Max:      max,
		Width:    2,
		Encoding: Float32,
		Order:    HighFirst,
	}
}

// RangeError describes a value that was clipped into its legal range.
// It is reported, never used to reject a write.
type RangeError struct {
	Value   float64
	Min     float64
	Max     float64
	Clipped float64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("codec: value %g outside [%g, %g], clipped to %g", e.Value, e.Min, e.Max, e.Clipped)
}

// Clip returns v limited to [Min, Max] and whether it had to be changed.
// NaN maps to the in-range value closest to zero.
func (f Field) Clip(v float64) (float64, bool) {
	if math.IsNaN(v) {
		return f.nearestZero(), true
	}
	if v < f.Min {
		return f.Min, true
	}
	if v > f.Max {
		return f.Max, true
	}
	return v, false
}

func (f Field) nearestZero() float64 {
	switch {
	case f.Min > 0:
		return f.Min
	case f.Max < 0:
		return f.Max
	default:
		return 0
	}
}

// Encode clips v and packs it into Width words.
// It returns the words and the value actually packed.
func (f Field) Encode(v float64) ([]uint16, float64) {
	c, _ := f.Clip(v)

	switch f.Encoding {
	case Float32:
		bits := math.Float32bits(float32(c))
		return f.order(uint16(bits>>16), uint16(bits)), c

	case Int32:
		c = math.Trunc(c)
		u := uint32(int32(int64(c)))
		return f.order(uint16(u>>16), uint16(u)), c

	default:
		c = math.Trunc(c)
		if f.Width == 2 {
			u := uint32(int64(c))
			return f.order(uint16(u>>16), uint16(u)), c
		}
		return []uint16{uint16(int64(c))}, c
	}
}

// Decode is the inverse of Encode.
func (f Field) Decode(words []uint16) (float64, error) {
	if f.Width != 1 && f.Width != 2 {
		return 0, fmt.Errorf("%w: field width %d", ErrArity, f.Width)
	}
	if len(words) != f.Width {
		return 0, fmt.Errorf("%w: got=%d want=%d", ErrArity, len(words), f.Width)
	}

	if f.Width == 1 {
		return float64(words[0]), nil
	}

	hi, lo := words[0], words[1]
	if f.Order == LowFirst {
		hi, lo = words[1], words[0]
	}
	combined := uint32(hi)<<16 | uint32(lo)

	switch f.Encoding {
	case Float32:
		return float64(math.Float32frombits(combined)), nil
	case Int32:
		return float64(int32(combined)), nil
	default:
		return float64(combined), nil
	}
}

func (f Field) order(hi, lo uint16) []uint16 {
	if f.Order == LowFirst {
		return []uint16{lo, hi}
	}
	return []uint16{hi, lo}
}
