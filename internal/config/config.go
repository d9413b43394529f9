// internal/config/config.go
package config

type Config struct {
	Logging LoggingConfig  `yaml:"logging"`
	MQTT    MQTTConfig     `yaml:"mqtt"`
	Metrics MetricsConfig  `yaml:"metrics"`
	Devices []DeviceConfig `yaml:"devices"`
	Polls   []PollConfig   `yaml:"polls"`
	Loops   []LoopConfig   `yaml:"loops"`
}

// ---- AMBIENT ----

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text, console
}

type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"` // tcp://host:1883
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         byte   `yaml:"qos"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"` // :9100
}

// ---- DEVICE ----

type DeviceConfig struct {
	Name      string `yaml:"name"`
	Type      string `yaml:"type"`     // mfc, pump, coupon (exact)
	Endpoint  string `yaml:"endpoint"` // host or host:port
	UnitID    uint8  `yaml:"unit_id"`
	TimeoutMs int    `yaml:"timeout_ms"`

	// MFC only: setpoint ceiling in device units.
	FullScale float64 `yaml:"full_scale"`
}

// ---- POLL ----

type PollConfig struct {
	Device     string   `yaml:"device"`
	Metrics    []string `yaml:"metrics"`
	IntervalMs int      `yaml:"interval_ms"`
}

// ---- LOOP ----

type LoopConfig struct {
	Name       string  `yaml:"name"`
	Kp         float64 `yaml:"kp"`
	Ki         float64 `yaml:"ki"`
	IntervalMs int     `yaml:"interval_ms"`

	// Setpoint is applied on start when AutoStart is set.
	Setpoint  float64 `yaml:"setpoint"`
	AutoStart bool    `yaml:"autostart"`

	ResetIntegralOnStart bool `yaml:"reset_integral_on_start"`

	Input     PortConfig       `yaml:"input"`
	Output    OutputConfig     `yaml:"output"`
	Interlock *InterlockConfig `yaml:"interlock"`
}

// PortConfig names one device metric.
// With Cached set the value comes from the device's poller instead of a fresh read.
type PortConfig struct {
	Device string `yaml:"device"`
	Metric string `yaml:"metric"`
	Cached bool   `yaml:"cached"`
}

// OutputConfig maps the [0,1] controller output to a device command.
type OutputConfig struct {
	Device  string  `yaml:"device"`
	Command string  `yaml:"command"`
	Scale   float64 `yaml:"scale"`
	Offset  float64 `yaml:"offset"`
}

// InterlockConfig thresholds are independent; a nil threshold is disabled.
type InterlockConfig struct {
	PortConfig `yaml:",inline"`
	Margin     *float64 `yaml:"margin"`
	Ceiling    *float64 `yaml:"ceiling"`
}
