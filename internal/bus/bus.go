// internal/bus/bus.go
package bus

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Transport is the register-level collaborator one Bus owns.
// Implementations do no locking of their own; Bus serializes every call.
type Transport interface {
	Open() error
	Close() error
	IsOpen() bool

	ReadInputRegisters(addr, qty uint16) ([]uint16, error)   // FC 4
	ReadHoldingRegisters(addr, qty uint16) ([]uint16, error) // FC 3
	WriteSingleCoil(addr, value uint16) error                // FC 5
	WriteMultipleRegisters(addr uint16, regs []uint16) error // FC 16

	// LastError describes the most recent transport failure, "" if none.
	LastError() string
}

// Stats is a point-in-time copy of bus counters.
type Stats struct {
	Transactions uint64
	Failures     uint64
	Resets       uint64
}

// Bus owns one physical connection and admits one transaction at a time.
// The lock is never held across two transactions.
type Bus struct {
	name string
	log  *slog.Logger

	mu     sync.Mutex
	tr     Transport
	closed bool

	transactions atomic.Uint64
	failures     atomic.Uint64
	resets       atomic.Uint64
}

// New wraps a transport. The connection is not opened until Open.
func New(name string, tr Transport, log *slog.Logger) *Bus {
	if log == nil {
		log = slog.Default()
	}
	return &Bus{
		name: name,
		tr:   tr,
		log:  log.With("bus", name),
	}
}

// Name returns the endpoint label the bus was created with.
func (b *Bus) Name() string { return b.name }

// Open opens the underlying connection if it is not already open.
func (b *Bus) Open() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	if b.tr.IsOpen() {
		return nil
	}
	if err := b.tr.Open(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrConnection, b.name, err)
	}
	return nil
}

// Reconnect closes and reopens the connection.
func (b *Bus) Reconnect() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	_ = b.tr.Close()
	if err := b.tr.Open(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrConnection, b.name, err)
	}
	b.log.Info("reconnected")
	return nil
}

// IsOpen reports the transport connection state.
func (b *Bus) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.closed && b.tr.IsOpen()
}

// Close closes the connection. Further transactions fail with ErrClosed.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	return b.tr.Close()
}

// Stats returns the transaction counters.
func (b *Bus) Stats() Stats {
	return Stats{
		Transactions: b.transactions.Load(),
		Failures:     b.failures.Load(),
		Resets:       b.resets.Load(),
	}
}

// Do takes the exclusive lock for exactly one transaction and runs op.
func (b *Bus) Do(op func(tr Transport) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("%w: %s: %w", ErrCommunication, b.name, ErrClosed)
	}

	b.transactions.Add(1)
	if err := op(b.tr); err != nil {
		b.failures.Add(1)
		return err
	}
	return nil
}

// ReadInput reads count input registers.
func (b *Bus) ReadInput(addr, count uint16) ([]uint16, error) {
	return b.read("read input", addr, count, Transport.ReadInputRegisters)
}

// ReadHolding reads count holding registers.
func (b *Bus) ReadHolding(addr, count uint16) ([]uint16, error) {
	return b.read("read holding", addr, count, Transport.ReadHoldingRegisters)
}

func (b *Bus) read(
	what string,
	addr, count uint16,
	fn func(Transport, uint16, uint16) ([]uint16, error),
) ([]uint16, error) {
	var regs []uint16

	err := b.Do(func(tr Transport) error {
		r, err := fn(tr, addr, count)
		if err != nil {
			return fmt.Errorf("%w: %s 0x%04X x%d: %w", ErrCommunication, what, addr, count, err)
		}
		if len(r) != int(count) {
			return fmt.Errorf("%w: %s 0x%04X: got %d registers, want %d", ErrCommunication, what, addr, len(r), count)
		}
		regs = r
		return nil
	})
	if err != nil {
		b.log.Error("read failed", "addr", addr, "count", count, "err", err)
		return nil, err
	}
	return regs, nil
}

// WriteRegisters writes regs starting at addr.
func (b *Bus) WriteRegisters(addr uint16, regs []uint16) error {
	err := b.Do(func(tr Transport) error {
		if err := tr.WriteMultipleRegisters(addr, regs); err != nil {
			return fmt.Errorf("%w: write 0x%04X x%d: %w (%s)", ErrCommunication, addr, len(regs), err, tr.LastError())
		}
		return nil
	})
	if err != nil {
		b.log.Error("write failed", "addr", addr, "count", len(regs), "err", err)
	}
	return err
}

// WriteCoil writes one coil. Any non-zero value means ON.
func (b *Bus) WriteCoil(addr, value uint16) error {
	err := b.Do(func(tr Transport) error {
		if err := tr.WriteSingleCoil(addr, value); err != nil {
			return fmt.Errorf("%w: coil 0x%04X=0x%04X: %w (%s)", ErrCommunication, addr, value, err, tr.LastError())
		}
		return nil
	})
	if err != nil {
		b.log.Error("coil write failed", "addr", addr, "value", value, "err", err)
	}
	return err
}

// ResetRegister writes zero to a device error register in its own
// transaction, after a failed write. Best-effort: a failed reset is logged
// and not retried.
func (b *Bus) ResetRegister(addr uint16) {
	b.resets.Add(1)
	err := b.Do(func(tr Transport) error {
		return tr.WriteMultipleRegisters(addr, []uint16{0})
	})
	if err != nil {
		b.log.Warn("error register reset failed", "addr", addr, "err", err)
	}
}
