package i2cbus

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cjeanneret/ovcap/internal/debug"
	"periph.io/x/conn/v3/physic"
)

// Simulated OV7670 identity.
const (
	SimAddr = 0x21
	SimPID  = 0x76
	SimVER  = 0x73

	regPID  = 0x0A
	regVER  = 0x0B
	regCom7 = 0x12

	com7Reset = 0x80
)

var (
	ErrNoDevice = errors.New("no device at address")
	ErrClosed   = errors.New("bus closed")
)

// SimBus is an in-memory I2C bus with a single OV7670 register file at
// address 0x21. Writes of the form {reg, val...} store values from reg
// onward; a write of {reg} alone selects the register read next.
type SimBus struct {
	mu     sync.Mutex
	regs   [256]byte
	ptr    byte
	pid    byte
	ver    byte
	speed  physic.Frequency
	closed bool
	txs    int
}

// NewSimBus returns a bus holding a freshly reset OV7670.
func NewSimBus() *SimBus {
	s := &SimBus{pid: SimPID, ver: SimVER}
	s.reset()
	return s
}

func (s *SimBus) reset() {
	s.regs = [256]byte{}
	s.regs[regPID] = s.pid
	s.regs[regVER] = s.ver
	s.ptr = 0
}

func (s *SimBus) String() string { return "sim-i2c" }

func (s *SimBus) Tx(addr uint16, w, r []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if addr != SimAddr {
		return fmt.Errorf("%w 0x%02X", ErrNoDevice, addr)
	}
	s.txs++

	if len(w) > 0 {
		s.ptr = w[0]
		for i, v := range w[1:] {
			s.store(w[0]+byte(i), v)
		}
	}
	for i := range r {
		r[i] = s.regs[s.ptr+byte(i)]
	}
	return nil
}

func (s *SimBus) store(reg, v byte) {
	switch reg {
	case regPID, regVER:
		return
	case regCom7:
		if v&com7Reset != 0 {
			debug.Trace("SimBus: soft reset")
			s.reset()
			return
		}
	}
	s.regs[reg] = v
}

func (s *SimBus) SetSpeed(f physic.Frequency) error {
	if f <= 0 {
		return fmt.Errorf("invalid speed %s", f)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.speed = f
	return nil
}

func (s *SimBus) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Reg returns the current value of a register.
func (s *SimBus) Reg(reg byte) byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.regs[reg]
}

// SetIdentity changes the product and version IDs the device reports,
// including after a soft reset.
func (s *SimBus) SetIdentity(pid, ver byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pid, s.ver = pid, ver
	s.regs[regPID], s.regs[regVER] = pid, ver
}

// Speed returns the last speed set on the bus.
func (s *SimBus) Speed() physic.Frequency {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speed
}

// Transactions returns how many transactions reached the device.
func (s *SimBus) Transactions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txs
}
