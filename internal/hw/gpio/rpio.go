package gpio

import (
	"fmt"
	"sync"

	"github.com/cjeanneret/ovcap/internal/debug"
	"github.com/stianeikeland/go-rpio/v4"
)

// gpclk0 is the only general purpose clock routed to the header on every Pi.
const gpclk0 = 4

// RPiDriver is the real implementation for Raspberry Pi using go-rpio.
type RPiDriver struct {
	reg registry

	mu   sync.Mutex
	pins map[int]rpio.Pin
}

// NewRPiRealDriver creates a real GPIO driver for Raspberry Pi.
// Requires running on a Raspberry Pi with access to /dev/gpiomem or as root.
func NewRPiRealDriver() (*RPiDriver, error) {
	debug.Info("Initializing real GPIO driver (go-rpio)")

	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("failed to open GPIO: %w (are you running on a Raspberry Pi?)", err)
	}

	debug.Verbose("GPIO memory mapped successfully")

	return &RPiDriver{
		pins: make(map[int]rpio.Pin),
	}, nil
}

func (r *RPiDriver) SetupPin(pin int, mode PinMode) error {
	debug.GPIO("SetupPin", pin, mode)
	if !ValidPin(pin) {
		return fmt.Errorf("setup pin %d: %w", pin, ErrInvalidPin)
	}

	p := rpio.Pin(pin)
	r.mu.Lock()
	r.pins[pin] = p
	r.mu.Unlock()

	switch mode {
	case Input:
		p.Input()
	case Output:
		p.Output()
	default:
		return fmt.Errorf("unknown pin mode: %d", mode)
	}

	return nil
}

func (r *RPiDriver) pin(pin int) (rpio.Pin, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pins[pin]
	return p, ok
}

func (r *RPiDriver) WritePin(pin int, level Level) error {
	debug.GPIO("WritePin", pin, level)

	p, ok := r.pin(pin)
	if !ok {
		// Pin not setup yet, setup as output
		if err := r.SetupPin(pin, Output); err != nil {
			return err
		}
		p, _ = r.pin(pin)
	}

	if level == High {
		p.High()
	} else {
		p.Low()
	}

	return nil
}

// ReadPin is on the pixel clock hot path; it only traces.
func (r *RPiDriver) ReadPin(pin int) (Level, error) {
	p, ok := r.pin(pin)
	if !ok {
		// Pin not setup yet, setup as input
		if err := r.SetupPin(pin, Input); err != nil {
			return Low, err
		}
		p, _ = r.pin(pin)
	}

	if p.Read() == rpio.High {
		return High, nil
	}
	return Low, nil
}

func (r *RPiDriver) Claim(pin int, owner string) error {
	debug.GPIO("Claim", pin, owner)
	return r.reg.claim(pin, owner)
}

func (r *RPiDriver) Release(pin int) error {
	debug.GPIO("Release", pin, nil)
	if p, ok := r.pin(pin); ok {
		p.Input()
	}
	r.reg.release(pin)
	return nil
}

func (r *RPiDriver) SetClock(pin int, hz int) error {
	debug.GPIO("SetClock", pin, hz)
	if pin != gpclk0 {
		return fmt.Errorf("clock output needs GPCLK0 (BCM %d), got pin %d: %w", gpclk0, pin, ErrInvalidPin)
	}
	if hz <= 0 {
		return fmt.Errorf("clock frequency must be > 0, got %d", hz)
	}

	p := rpio.Pin(pin)
	p.Clock()
	p.Freq(hz)

	r.mu.Lock()
	r.pins[pin] = p
	r.mu.Unlock()
	return nil
}

func (r *RPiDriver) Close() error {
	debug.Trace("GPIO Close (real driver)")

	// Reset all pins to input (safe state)
	r.mu.Lock()
	for pin, p := range r.pins {
		debug.Verbose("Resetting pin %d to input", pin)
		p.Input()
	}
	r.mu.Unlock()
	r.reg.reset()

	return rpio.Close()
}
