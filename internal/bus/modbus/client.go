// internal/bus/modbus/client.go
package modbus

import (
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/goburrow/modbus"
)

// Transport defaults for the lab devices.
const (
	DefaultPort    = 502
	DefaultUnitID  = 1
	DefaultTimeout = 200 * time.Millisecond
)

// Client is a single Modbus TCP connection to one device.
// It implements bus.Transport. It does no locking: the owning Bus serializes calls.
type Client struct {
	handler *modbus.TCPClientHandler
	client  modbus.Client

	open    bool
	lastErr error
}

// Config is minimal transport config.
type Config struct {
	Endpoint string
	UnitID   uint8
	Timeout  time.Duration
}

// New creates an unconnected client. Missing port, unit id and timeout take the defaults.
func New(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("bus modbus: endpoint required")
	}
	if cfg.UnitID == 0 {
		cfg.UnitID = DefaultUnitID
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	h := modbus.NewTCPClientHandler(WithDefaultPort(cfg.Endpoint))
	h.Timeout = cfg.Timeout
	h.SlaveId = cfg.UnitID

	return &Client{
		handler: h,
		client:  modbus.NewClient(h),
	}, nil
}

// WithDefaultPort appends :502 to a bare host.
func WithDefaultPort(endpoint string) string {
	if _, _, err := net.SplitHostPort(endpoint); err == nil {
		return endpoint
	}
	return net.JoinHostPort(endpoint, strconv.Itoa(DefaultPort))
}

// Open dials the endpoint.
func (c *Client) Open() error {
	if err := c.handler.Connect(); err != nil {
		c.fail(err)
		return err
	}
	c.open = true
	return nil
}

// Close closes the TCP connection.
func (c *Client) Close() error {
	c.open = false
	return c.handler.Close()
}

// IsOpen reports whether the last dial or transaction left the connection usable.
func (c *Client) IsOpen() bool { return c.open }

// LastError returns the text of the most recent failure.
func (c *Client) LastError() string {
	if c.lastErr == nil {
		return ""
	}
	return c.lastErr.Error()
}

// ---- bus.Transport interface ----

func (c *Client) ReadInputRegisters(addr, qty uint16) ([]uint16, error) {
	b, err := c.client.ReadInputRegisters(addr, qty)
	if err != nil {
		c.fail(err)
		return nil, err
	}
	c.ok()
	return unpackRegisters(b), nil
}

func (c *Client) ReadHoldingRegisters(addr, qty uint16) ([]uint16, error) {
	b, err := c.client.ReadHoldingRegisters(addr, qty)
	if err != nil {
		c.fail(err)
		return nil, err
	}
	c.ok()
	return unpackRegisters(b), nil
}

// WriteSingleCoil sends ON (0xFF00) for any non-zero value, OFF otherwise.
func (c *Client) WriteSingleCoil(addr, value uint16) error {
	state := uint16(0x0000)
	if value != 0 {
		state = 0xFF00
	}
	if _, err := c.client.WriteSingleCoil(addr, state); err != nil {
		c.fail(err)
		return err
	}
	c.ok()
	return nil
}

func (c *Client) WriteMultipleRegisters(addr uint16, regs []uint16) error {
	qty := uint16(len(regs))
	payload := packRegisters(regs)

	if _, err := c.client.WriteMultipleRegisters(addr, qty, payload); err != nil {
		c.fail(err)
		return err
	}
	c.ok()
	return nil
}

// ---- state ----

func (c *Client) ok() {
	c.open = true
}

// fail records err. Exception responses leave the connection up; anything
// else is treated as transport death until the next successful call.
func (c *Client) fail(err error) {
	c.lastErr = err

	var mbErr *modbus.ModbusError
	if errors.As(err, &mbErr) {
		return
	}
	c.open = false
}

// ---- helpers (pure geometry) ----

func packRegisters(regs []uint16) []byte {
	out := make([]byte, len(regs)*2)
	for i, r := range regs {
		out[2*i] = byte(r >> 8)
		out[2*i+1] = byte(r)
	}
	return out
}

func unpackRegisters(data []byte) []uint16 {
	n := len(data) / 2
	out := make([]uint16, n)
	for i := 0; i < n; i++ {
		out[i] = uint16(data[2*i])<<8 | uint16(data[2*i+1])
	}
	return out
}
