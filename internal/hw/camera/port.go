package camera

import (
	"context"
	"fmt"
	"time"

	"github.com/cjeanneret/ovcap/internal/debug"
	"github.com/cjeanneret/ovcap/internal/hw/gpio"
)

// NoPin marks an optional control line that is not wired.
const NoPin = -1

// Pins describes how the camera module is wired to the header (BCM numbers).
type Pins struct {
	Data     [8]int // D0..D7
	PCLK     int
	VSYNC    int
	HREF     int
	MCLK     int
	Shutdown int // PWDN, active HIGH. NoPin if not connected.
	Reset    int // RESET, active LOW. NoPin if not connected.
}

// frameReader reads one frame of rows x rowBytes bytes into dst.
type frameReader interface {
	ReadFrame(ctx context.Context, dst []byte, rowBytes, rows int, deadline time.Time) (int, error)
}

// pollEvery is how many pin reads happen between deadline/context checks.
const pollEvery = 1024

// ParallelPort samples the camera's 8-bit parallel output through a GPIO
// driver. Bytes are latched on the rising edge of PCLK while HREF is high;
// a frame starts on the falling edge of VSYNC.
type ParallelPort struct {
	gpio  gpio.Driver
	data  [8]int
	pclk  int
	vsync int
	href  int
}

// NewParallelPort configures the data and sync pins as inputs.
func NewParallelPort(g gpio.Driver, pins Pins) (*ParallelPort, error) {
	inputs := append(pins.Data[:], pins.PCLK, pins.VSYNC, pins.HREF)
	for _, pin := range inputs {
		if err := g.SetupPin(pin, gpio.Input); err != nil {
			return nil, fmt.Errorf("setup input pin %d: %w", pin, err)
		}
	}
	return &ParallelPort{
		gpio:  g,
		data:  pins.Data,
		pclk:  pins.PCLK,
		vsync: pins.VSYNC,
		href:  pins.HREF,
	}, nil
}

// ReadFrame waits for the start of a frame, then reads rows lines of
// rowBytes bytes each. It returns the number of bytes stored in dst.
func (p *ParallelPort) ReadFrame(ctx context.Context, dst []byte, rowBytes, rows int, deadline time.Time) (int, error) {
	if err := checkBuffer(dst, rowBytes*rows); err != nil {
		return 0, err
	}

	// Let the frame in progress finish, then catch the next one from its start.
	if err := p.waitLevel(ctx, p.vsync, gpio.High, deadline); err != nil {
		return 0, fmt.Errorf("wait vsync: %w", err)
	}
	if err := p.waitLevel(ctx, p.vsync, gpio.Low, deadline); err != nil {
		return 0, fmt.Errorf("wait frame start: %w", err)
	}
	debug.Trace("Parallel port: frame start")

	n := 0
	for row := 0; row < rows; row++ {
		if err := p.waitLevel(ctx, p.href, gpio.High, deadline); err != nil {
			return n, fmt.Errorf("wait href row %d: %w", row, err)
		}
		for col := 0; col < rowBytes; col++ {
			if err := p.waitLevel(ctx, p.pclk, gpio.Low, deadline); err != nil {
				return n, fmt.Errorf("row %d byte %d: %w", row, col, err)
			}
			if err := p.waitLevel(ctx, p.pclk, gpio.High, deadline); err != nil {
				return n, fmt.Errorf("row %d byte %d: %w", row, col, err)
			}
			b, err := p.readByte()
			if err != nil {
				return n, err
			}
			dst[n] = b
			n++
		}
		if err := p.waitLevel(ctx, p.href, gpio.Low, deadline); err != nil {
			return n, fmt.Errorf("wait href end row %d: %w", row, err)
		}
	}
	return n, nil
}

// readByte assembles D0..D7 into one byte, D0 being the least significant bit.
func (p *ParallelPort) readByte() (byte, error) {
	var b byte
	for bit, pin := range p.data {
		lvl, err := p.gpio.ReadPin(pin)
		if err != nil {
			return 0, fmt.Errorf("read data pin %d: %w", pin, err)
		}
		if lvl == gpio.High {
			b |= 1 << uint(bit)
		}
	}
	return b, nil
}

func (p *ParallelPort) waitLevel(ctx context.Context, pin int, want gpio.Level, deadline time.Time) error {
	for i := 0; ; i++ {
		lvl, err := p.gpio.ReadPin(pin)
		if err != nil {
			return err
		}
		if lvl == want {
			return nil
		}
		if i%pollEvery == pollEvery-1 {
			if err := ctx.Err(); err != nil {
				return err
			}
			if !deadline.IsZero() && time.Now().After(deadline) {
				return ErrFrameTimeout
			}
		}
	}
}
