package camera

import (
	"context"
	"fmt"
	"time"

	"github.com/cjeanneret/ovcap/internal/debug"
	"github.com/cjeanneret/ovcap/internal/hw/gpio"
	"periph.io/x/conn/v3/i2c"
)

// OV7670Config holds the wiring and sensor settings of an OV7670 module.
type OV7670Config struct {
	Pins         Pins
	MCLKHz       int           // master clock fed on Pins.MCLK
	Prescaler    int           // CLKRC input clock divider, 1-64
	Colorspace   Colorspace
	FlipX        bool
	FlipY        bool
	TestPattern  TestPattern
	NightMode    int           // frame-rate reduction for low light: 0 (off), 2, 4 or 8
	FrameTimeout time.Duration // capture gives up after this long
}

// Delays of the power-up sequence. Variables so tests can shorten them.
var (
	resetPulse  = 1 * time.Millisecond
	resetSettle = 1 * time.Millisecond
)

const defaultFrameTimeout = 2 * time.Second

// OV7670 is a Camera implementation for an OV7670 module controlled over
// SCCB (I2C) with its pixel data sampled on the parallel port:
// - SIOC/SIOD: the I2C bus
// - D0..D7, PCLK, VSYNC, HREF: inputs
// - XCLK: master clock from GPCLK0
// - PWDN/RESET: optional outputs
//
// Bring-up sequence:
// 1. Claim every pin
// 2. Start the master clock
// 3. Release power-down, pulse reset
// 4. Soft reset over SCCB and check the chip ID
// 5. Load the default register table and apply the settings
type OV7670 struct {
	gpio gpio.Driver
	regs sccb
	port frameReader
	cfg  OV7670Config
	size Size
}

// NewOV7670 brings up the camera. The returned camera owns its pins until Close.
func NewOV7670(bus i2c.Bus, g gpio.Driver, cfg OV7670Config) (*OV7670, error) {
	if cfg.FrameTimeout <= 0 {
		cfg.FrameTimeout = defaultFrameTimeout
	}
	if cfg.Prescaler <= 0 {
		cfg.Prescaler = 1
	}
	if cfg.Prescaler > clkrcScale+1 {
		return nil, fmt.Errorf("prescaler must be 1-%d, got %d", clkrcScale+1, cfg.Prescaler)
	}
	night, ok := nightBits[cfg.NightMode]
	if !ok {
		return nil, fmt.Errorf("night mode must be 0, 2, 4 or 8, got %d", cfg.NightMode)
	}

	debug.Section("OV7670 bring-up")
	debug.PrintStruct("Camera pins", cfg.Pins)

	if err := claimPins(g, cfg.Pins); err != nil {
		return nil, err
	}

	port, err := NewParallelPort(g, cfg.Pins)
	if err != nil {
		return nil, err
	}

	c := &OV7670{
		gpio: g,
		regs: newSCCB(bus),
		port: port,
		cfg:  cfg,
		size: SizeDiv4,
	}

	if err := c.powerUp(); err != nil {
		return nil, err
	}

	// Soft reset, then wait for the register file to come back.
	if err := c.regs.write(regCom7, com7Reset); err != nil {
		return nil, fmt.Errorf("soft reset: %w", err)
	}
	time.Sleep(resetSettle)

	if err := c.regs.probe(); err != nil {
		return nil, err
	}

	if err := c.regs.write(regClkrc, byte(cfg.Prescaler-1)&clkrcScale); err != nil {
		return nil, err
	}
	if err := c.regs.writeAll(defaultRegs); err != nil {
		return nil, fmt.Errorf("load default registers: %w", err)
	}
	if err := c.applySettings(night); err != nil {
		return nil, err
	}
	if err := c.regs.configureSize(c.size); err != nil {
		return nil, fmt.Errorf("initial size: %w", err)
	}

	debug.Info("Camera: OV7670 ready (%s, mclk=%d Hz)", cfg.Colorspace, cfg.MCLKHz)
	return c, nil
}

func claimPins(g gpio.Driver, pins Pins) error {
	for i, pin := range pins.Data {
		if err := g.Claim(pin, fmt.Sprintf("ov7670.d%d", i)); err != nil {
			return err
		}
	}
	named := []struct {
		name string
		pin  int
	}{
		{"ov7670.pclk", pins.PCLK},
		{"ov7670.vsync", pins.VSYNC},
		{"ov7670.href", pins.HREF},
		{"ov7670.mclk", pins.MCLK},
		{"ov7670.pwdn", pins.Shutdown},
		{"ov7670.reset", pins.Reset},
	}
	for _, n := range named {
		if n.pin == NoPin {
			continue
		}
		if err := g.Claim(n.pin, n.name); err != nil {
			return err
		}
	}
	return nil
}

func (c *OV7670) powerUp() error {
	p := c.cfg.Pins

	if err := c.gpio.SetClock(p.MCLK, c.cfg.MCLKHz); err != nil {
		return fmt.Errorf("start master clock: %w", err)
	}

	if p.Shutdown != NoPin {
		if err := c.gpio.SetupPin(p.Shutdown, gpio.Output); err != nil {
			return err
		}
		if err := c.gpio.WritePin(p.Shutdown, gpio.Low); err != nil {
			return fmt.Errorf("release power-down: %w", err)
		}
	}

	if p.Reset != NoPin {
		if err := c.gpio.SetupPin(p.Reset, gpio.Output); err != nil {
			return err
		}
		if err := c.gpio.WritePin(p.Reset, gpio.Low); err != nil {
			return fmt.Errorf("assert reset: %w", err)
		}
		time.Sleep(resetPulse)
		if err := c.gpio.WritePin(p.Reset, gpio.High); err != nil {
			return fmt.Errorf("release reset: %w", err)
		}
		time.Sleep(resetSettle)
	}
	return nil
}

func (c *OV7670) applySettings(night byte) error {
	if err := c.setColorspace(c.cfg.Colorspace); err != nil {
		return err
	}

	var mvfp byte
	if c.cfg.FlipX {
		mvfp |= mvfpMirror
	}
	if c.cfg.FlipY {
		mvfp |= mvfpVFlip
	}
	if err := c.regs.update(regMvfp, mvfpMirror|mvfpVFlip, mvfp); err != nil {
		return fmt.Errorf("flip: %w", err)
	}

	if err := c.regs.update(regCom11, com11NMFR, night); err != nil {
		return fmt.Errorf("night mode: %w", err)
	}

	return c.setTestPattern(c.cfg.TestPattern)
}

func (c *OV7670) setColorspace(cs Colorspace) error {
	switch cs {
	case RGB565:
		if err := c.regs.update(regCom7, com7RGB, com7RGB); err != nil {
			return err
		}
		return c.regs.write(regCom15, com15RGB565|com15R00FF)
	case YUV422:
		if err := c.regs.update(regCom7, com7RGB, 0); err != nil {
			return err
		}
		return c.regs.write(regCom15, com15R00FF)
	default:
		return fmt.Errorf("%w: %d", ErrInvalidColorspace, int(cs))
	}
}

func (c *OV7670) setTestPattern(tp TestPattern) error {
	var xsc, ysc byte
	if tp&1 != 0 {
		xsc = scalingTestBit
	}
	if tp&2 != 0 {
		ysc = scalingTestBit
	}
	if err := c.regs.update(regXSC, scalingTestBit, xsc); err != nil {
		return fmt.Errorf("test pattern: %w", err)
	}
	if err := c.regs.update(regYSC, scalingTestBit, ysc); err != nil {
		return fmt.Errorf("test pattern: %w", err)
	}
	return nil
}

// Configure programs the scaling mode.
func (c *OV7670) Configure(size Size) error {
	if !size.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidSize, int(size))
	}
	debug.Verbose("Camera: configuring size %s", size)
	if err := c.regs.configureSize(size); err != nil {
		return fmt.Errorf("configure %s: %w", size, err)
	}
	c.size = size
	return nil
}

// Size returns the current scaling mode.
func (c *OV7670) Size() Size { return c.size }

func (c *OV7670) Width() int {
	w, _ := c.size.Dimensions()
	return w
}

func (c *OV7670) Height() int {
	_, h := c.size.Dimensions()
	return h
}

// MaxFrameSize is the exact byte count of one frame in the current mode.
func (c *OV7670) MaxFrameSize() int {
	return frameBytes(c.size)
}

// Capture reads one frame into buf. It fails if buf cannot hold the frame
// or the frame does not complete within the configured timeout.
func (c *OV7670) Capture(ctx context.Context, buf []byte) (int, error) {
	need := frameBytes(c.size)
	if err := checkBuffer(buf, need); err != nil {
		return 0, err
	}

	debug.Live("Camera: capturing %dx%d (%d bytes)", c.Width(), c.Height(), need)
	deadline := time.Now().Add(c.cfg.FrameTimeout)
	n, err := c.port.ReadFrame(ctx, buf[:need], c.Width()*BytesPerPixel, c.Height(), deadline)
	if err != nil {
		return n, fmt.Errorf("capture after %d bytes: %w", n, err)
	}
	return n, nil
}

// Close puts the sensor in power-down when possible and releases its pins.
func (c *OV7670) Close() error {
	p := c.cfg.Pins
	if p.Shutdown != NoPin {
		_ = c.gpio.WritePin(p.Shutdown, gpio.High)
	}
	pins := append(p.Data[:], p.PCLK, p.VSYNC, p.HREF, p.MCLK, p.Shutdown, p.Reset)
	for _, pin := range pins {
		if pin == NoPin {
			continue
		}
		if err := c.gpio.Release(pin); err != nil {
			return err
		}
	}
	return nil
}
