// internal/device/port.go
package device

// Source reads one metric from a device. It satisfies the controller's input port.
type Source struct {
	Device Device
	Metric Metric
}

func (s Source) Read() (float64, error) { return s.Device.Get(s.Metric) }

// Sink maps a normalized controller output onto a device command:
// value = out*Scale + Offset. A zero Scale is treated as 1.
type Sink struct {
	Device  Device
	Command Command
	Scale   float64
	Offset  float64
}

func (s Sink) Write(out float64) error {
	scale := s.Scale
	if scale == 0 {
		scale = 1
	}
	return s.Device.Set(s.Command, out*scale+s.Offset)
}
