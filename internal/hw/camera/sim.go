package camera

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/cjeanneret/ovcap/internal/debug"
	"periph.io/x/conn/v3/i2c"
)

// colorBars are the eight RGB565 bars of the sensor's colour-bar pattern.
var colorBars = [8]uint16{
	0xFFFF, // white
	0xFFE0, // yellow
	0x07FF, // cyan
	0x07E0, // green
	0xF81F, // magenta
	0xF800, // red
	0x001F, // blue
	0x0000, // black
}

// Sim is a development camera: it talks to an OV7670 register file over
// SCCB like the real driver but synthesizes colour bars instead of sampling
// the parallel port. Used with mock GPIO.
type Sim struct {
	regs sccb
	size Size
}

// NewSim probes the chip on bus and loads the default registers.
func NewSim(bus i2c.Bus) (*Sim, error) {
	s := &Sim{regs: newSCCB(bus), size: SizeDiv4}
	if err := s.regs.probe(); err != nil {
		return nil, err
	}
	if err := s.regs.writeAll(defaultRegs); err != nil {
		return nil, fmt.Errorf("load default registers: %w", err)
	}
	debug.Info("Camera: simulated OV7670 ready")
	return s, nil
}

func (s *Sim) Configure(size Size) error {
	if !size.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidSize, int(size))
	}
	if err := s.regs.configureSize(size); err != nil {
		return fmt.Errorf("configure %s: %w", size, err)
	}
	s.size = size
	return nil
}

func (s *Sim) Width() int {
	w, _ := s.size.Dimensions()
	return w
}

func (s *Sim) Height() int {
	_, h := s.size.Dimensions()
	return h
}

func (s *Sim) MaxFrameSize() int {
	return frameBytes(s.size)
}

// Capture writes big-endian RGB565 colour bars, as the sensor emits them.
func (s *Sim) Capture(ctx context.Context, buf []byte) (int, error) {
	need := frameBytes(s.size)
	if err := checkBuffer(buf, need); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	w, h := s.size.Dimensions()
	n := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			binary.BigEndian.PutUint16(buf[n:], colorBars[x*len(colorBars)/w])
			n += BytesPerPixel
		}
	}
	debug.Live("Camera: simulated frame %dx%d", w, h)
	return n, nil
}

func (s *Sim) Close() error { return nil }
