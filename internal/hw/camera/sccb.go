package camera

import (
	"fmt"

	"github.com/cjeanneret/ovcap/internal/debug"
	"periph.io/x/conn/v3/i2c"
)

// sccb is the camera's I2C-compatible register interface. SCCB has no
// repeated start, so a read is a register-address write followed by a
// separate one-byte read.
type sccb struct {
	dev *i2c.Dev
}

func newSCCB(bus i2c.Bus) sccb {
	return sccb{dev: &i2c.Dev{Bus: bus, Addr: ov7670Addr}}
}

func (s sccb) write(reg, val byte) error {
	debug.SCCB("write", reg, val)
	if err := s.dev.Tx([]byte{reg, val}, nil); err != nil {
		return fmt.Errorf("sccb write 0x%02X: %w", reg, err)
	}
	return nil
}

func (s sccb) read(reg byte) (byte, error) {
	if err := s.dev.Tx([]byte{reg}, nil); err != nil {
		return 0, fmt.Errorf("sccb select 0x%02X: %w", reg, err)
	}
	r := []byte{0}
	if err := s.dev.Tx(nil, r); err != nil {
		return 0, fmt.Errorf("sccb read 0x%02X: %w", reg, err)
	}
	debug.SCCB("read", reg, r[0])
	return r[0], nil
}

func (s sccb) writeAll(regs []regVal) error {
	for _, rv := range regs {
		if err := s.write(rv.reg, rv.val); err != nil {
			return err
		}
	}
	return nil
}

// update rewrites reg with the bits in mask replaced by val.
func (s sccb) update(reg, mask, val byte) error {
	cur, err := s.read(reg)
	if err != nil {
		return err
	}
	return s.write(reg, (cur&^mask)|(val&mask))
}

// probe checks the product and version registers.
func (s sccb) probe() error {
	pid, err := s.read(regPID)
	if err != nil {
		return err
	}
	ver, err := s.read(regVER)
	if err != nil {
		return err
	}
	if pid != ov7670PID || ver != ov7670VER {
		return fmt.Errorf("%w: PID=0x%02X VER=0x%02X, want 0x%02X/0x%02X",
			ErrUnsupportedChip, pid, ver, ov7670PID, ov7670VER)
	}
	debug.Verbose("Camera: found OV7670 (PID=0x%02X VER=0x%02X)", pid, ver)
	return nil
}

// configureSize programs the scaling and window registers for size.
func (s sccb) configureSize(size Size) error {
	xsc, err := s.read(regXSC)
	if err != nil {
		return err
	}
	ysc, err := s.read(regYSC)
	if err != nil {
		return err
	}
	return s.writeAll(frameControlRegs(size, xsc, ysc))
}
