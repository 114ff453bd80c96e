package gpio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cjeanneret/ovcap/internal/debug"
)

// Level represents the logical state of a GPIO pin.
type Level bool

const (
	Low  Level = false
	High Level = true
)

func (l Level) String() string {
	if l {
		return "HIGH"
	}
	return "LOW"
}

// PinMode indicates whether a GPIO is input or output.
type PinMode int

const (
	Input PinMode = iota
	Output
)

// MaxPin is the highest BCM GPIO number on the 40-pin header.
const MaxPin = 27

var (
	// ErrPinInUse is returned when a pin is already claimed by another owner.
	ErrPinInUse = errors.New("pin already in use")
	// ErrInvalidPin is returned for pin numbers outside the BCM header range.
	ErrInvalidPin = errors.New("invalid pin")
)

// Driver defines the abstract interface for controlling GPIOs.
// This allows plugging in a real Raspberry Pi implementation
// or a mock for development on PC.
//
// Pins are claimed before use; a claim lasts until Release or Close.
type Driver interface {
	SetupPin(pin int, mode PinMode) error
	WritePin(pin int, level Level) error
	ReadPin(pin int) (Level, error)
	Claim(pin int, owner string) error
	Release(pin int) error
	// SetClock routes a hardware clock of hz onto pin (GPCLK0 on BCM 4).
	SetClock(pin int, hz int) error
	Close() error
}

// NewDriver creates a GPIO driver based on the chosen mode.
// If mock is true, returns a MockDriver (for dev/test).
// If mock is false, returns a real RPiDriver (for Raspberry Pi).
func NewDriver(mock bool) (Driver, error) {
	if mock {
		debug.Info("Using MOCK GPIO driver (development mode)")
		return &MockDriver{}, nil
	}
	return NewRPiRealDriver()
}

// ValidPin reports whether pin is a usable BCM GPIO number.
func ValidPin(pin int) bool {
	return pin >= 0 && pin <= MaxPin
}

// ClaimAll claims every pin for owner, stopping at the first failure.
// Pins claimed before the failure stay claimed.
func ClaimAll(d Driver, owner string, pins ...int) error {
	for _, pin := range pins {
		if err := d.Claim(pin, owner); err != nil {
			return err
		}
	}
	return nil
}

// registry tracks pin ownership for a driver.
type registry struct {
	mu     sync.Mutex
	owners map[int]string
}

func (r *registry) claim(pin int, owner string) error {
	if !ValidPin(pin) {
		return fmt.Errorf("claim pin %d for %s: %w", pin, owner, ErrInvalidPin)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.owners == nil {
		r.owners = make(map[int]string)
	}
	if cur, ok := r.owners[pin]; ok {
		return fmt.Errorf("claim pin %d for %s (held by %s): %w", pin, owner, cur, ErrPinInUse)
	}
	r.owners[pin] = owner
	return nil
}

func (r *registry) release(pin int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.owners, pin)
}

func (r *registry) owner(pin int) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.owners[pin]
	return o, ok
}

func (r *registry) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.owners = nil
}

// MockDriver is a test implementation that logs actions and remembers
// the last level written to each pin. The zero value is ready to use.
type MockDriver struct {
	reg registry

	mu     sync.Mutex
	levels map[int]Level
	clocks map[int]int
}

func (m *MockDriver) SetupPin(pin int, mode PinMode) error {
	debug.GPIO("SetupPin", pin, mode)
	if !ValidPin(pin) {
		return fmt.Errorf("setup pin %d: %w", pin, ErrInvalidPin)
	}
	return nil
}

func (m *MockDriver) WritePin(pin int, level Level) error {
	debug.GPIO("WritePin", pin, level)
	if !ValidPin(pin) {
		return fmt.Errorf("write pin %d: %w", pin, ErrInvalidPin)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.levels == nil {
		m.levels = make(map[int]Level)
	}
	m.levels[pin] = level
	return nil
}

func (m *MockDriver) ReadPin(pin int) (Level, error) {
	debug.GPIO("ReadPin", pin, nil)
	if !ValidPin(pin) {
		return Low, fmt.Errorf("read pin %d: %w", pin, ErrInvalidPin)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.levels[pin], nil
}

func (m *MockDriver) Claim(pin int, owner string) error {
	debug.GPIO("Claim", pin, owner)
	return m.reg.claim(pin, owner)
}

func (m *MockDriver) Release(pin int) error {
	debug.GPIO("Release", pin, nil)
	m.reg.release(pin)
	return nil
}

func (m *MockDriver) SetClock(pin int, hz int) error {
	debug.GPIO("SetClock", pin, hz)
	if !ValidPin(pin) {
		return fmt.Errorf("clock pin %d: %w", pin, ErrInvalidPin)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.clocks == nil {
		m.clocks = make(map[int]int)
	}
	m.clocks[pin] = hz
	return nil
}

// Owner returns the owner of a claimed pin.
func (m *MockDriver) Owner(pin int) (string, bool) {
	return m.reg.owner(pin)
}

// Clock returns the frequency last routed to pin, 0 if none.
func (m *MockDriver) Clock(pin int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clocks[pin]
}

func (m *MockDriver) Close() error {
	debug.Trace("GPIO Close (mock)")
	m.reg.reset()
	return nil
}
