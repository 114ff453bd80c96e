package i2cbus

import (
	"fmt"

	"github.com/cjeanneret/ovcap/internal/debug"
	"github.com/cjeanneret/ovcap/internal/hw/gpio"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

// DefaultSpeed is the SCCB clock; the OV7670 is specified up to 400 kHz.
const DefaultSpeed = 100 * physic.KiloHertz

// Config describes the control bus.
type Config struct {
	Name   string // periph bus name, e.g. "1" for /dev/i2c-1; "" = first available
	SCLPin int
	SDAPin int
	Speed  physic.Frequency
	Mock   bool // use a simulated OV7670 register file instead of hardware
}

// Open claims the bus pins on g, then opens the bus.
// Pins claimed before a failure stay claimed.
func Open(g gpio.Driver, cfg Config) (i2c.BusCloser, error) {
	if cfg.SCLPin == cfg.SDAPin {
		return nil, fmt.Errorf("scl and sda must be different pins, both are %d", cfg.SCLPin)
	}
	if err := g.Claim(cfg.SCLPin, "i2c.scl"); err != nil {
		return nil, err
	}
	if err := g.Claim(cfg.SDAPin, "i2c.sda"); err != nil {
		return nil, err
	}

	speed := cfg.Speed
	if speed <= 0 {
		speed = DefaultSpeed
	}

	var bus i2c.BusCloser
	if cfg.Mock {
		debug.Info("Using SIMULATED I2C bus (development mode)")
		bus = NewSimBus()
	} else {
		if _, err := host.Init(); err != nil {
			return nil, fmt.Errorf("init host drivers: %w", err)
		}
		b, err := i2creg.Open(cfg.Name)
		if err != nil {
			return nil, fmt.Errorf("open i2c bus %q: %w", cfg.Name, err)
		}
		bus = b
	}

	if err := bus.SetSpeed(speed); err != nil {
		_ = bus.Close()
		return nil, fmt.Errorf("set i2c speed %s: %w", speed, err)
	}

	debug.Verbose("I2C bus %s open (scl=%d sda=%d speed=%s)", bus, cfg.SCLPin, cfg.SDAPin, speed)
	return bus, nil
}
