package capture

import (
	"context"
	"fmt"
	"io"

	"github.com/cjeanneret/ovcap/internal/debug"
	"github.com/cjeanneret/ovcap/internal/hw/camera"
	"periph.io/x/conn/v3/i2c"
)

// DefaultBytesPerPixel sizes the frame buffer. It is a safety margin far
// above the 2 bytes per pixel the sensor produces, not an image stride.
const DefaultBytesPerPixel = 25

// State is a step of the procedure. Runs only move forward.
type State int

const (
	Uninitialized State = iota
	BusReady
	DeviceReady
	Configured
	Captured
	Emitted
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case BusReady:
		return "bus-ready"
	case DeviceReady:
		return "device-ready"
	case Configured:
		return "configured"
	case Captured:
		return "captured"
	case Emitted:
		return "emitted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Hardware acquires the bus and the camera.
type Hardware interface {
	OpenBus() (i2c.BusCloser, error)
	OpenCamera(bus i2c.Bus) (camera.Camera, error)
}

// Params configures a run.
type Params struct {
	Size          camera.Size
	BytesPerPixel int // 0 = DefaultBytesPerPixel
}

// Result describes how far a run got. The bus and camera stay claimed;
// they are released when the process exits.
type Result struct {
	State     State
	Bus       i2c.BusCloser
	Camera    camera.Camera
	Width     int
	Height    int
	Allocated int
	Captured  int
}

// Procedure captures a single frame and dumps it to a sink.
// It is not safe for concurrent use and does not retry.
type Procedure struct {
	hw     Hardware
	sink   io.Writer
	params Params
}

func NewProcedure(hw Hardware, sink io.Writer, p Params) *Procedure {
	if p.BytesPerPixel <= 0 {
		p.BytesPerPixel = DefaultBytesPerPixel
	}
	return &Procedure{hw: hw, sink: sink, params: p}
}

// FrameBufferLen is the buffer size allocated for a width x height frame.
func FrameBufferLen(bytesPerPixel, width, height int) int {
	return bytesPerPixel * width * height
}

// Run walks Uninitialized → BusReady → DeviceReady → Configured → Captured → Emitted.
// Any failure stops the run and returns an *Error carrying the failing step.
// The returned Result is never nil.
func (p *Procedure) Run(ctx context.Context) (*Result, error) {
	res := &Result{State: Uninitialized}

	advance := func(to State) {
		debug.State(res.State.String(), to.String())
		res.State = to
	}
	fail := func(kind Kind, err error) (*Result, error) {
		e := &Error{Kind: kind, State: res.State, Err: err}
		debug.Error(e)
		return res, e
	}

	debug.Step(1, "Acquiring I2C bus")
	bus, err := p.hw.OpenBus()
	if err != nil {
		return fail(BusInit, err)
	}
	res.Bus = bus
	advance(BusReady)

	debug.Step(2, "Initializing camera")
	cam, err := p.hw.OpenCamera(bus)
	if err != nil {
		return fail(DeviceInit, err)
	}
	res.Camera = cam
	advance(DeviceReady)

	debug.Step(3, "Setting resolution mode")
	if err := cam.Configure(p.params.Size); err != nil {
		return fail(Config, err)
	}
	advance(Configured)

	debug.Step(4, "Allocating frame buffer")
	res.Width, res.Height = cam.Width(), cam.Height()
	size := FrameBufferLen(p.params.BytesPerPixel, res.Width, res.Height)
	if fs, ok := cam.(camera.FrameSizer); ok && fs.MaxFrameSize() > size {
		debug.Warn("Frame buffer of %d bytes below driver frame size %d; growing", size, fs.MaxFrameSize())
		size = fs.MaxFrameSize()
	}
	buf := make([]byte, size)
	res.Allocated = size
	debug.Value("Frame buffer bytes", size)

	debug.Step(5, "Capturing frame")
	n, err := cam.Capture(ctx, buf)
	if err != nil {
		return fail(Capture, err)
	}
	res.Captured = n
	advance(Captured)
	debug.Frame(p.params.Size.String(), res.Width, res.Height, res.Allocated, n)

	debug.Step(6, "Writing frame to output")
	if err := p.emit(buf); err != nil {
		return fail(Emit, err)
	}
	advance(Emitted)

	return res, nil
}

// emit writes the mode identifier line, then the raw buffer. No framing.
func (p *Procedure) emit(buf []byte) error {
	if _, err := fmt.Fprintf(p.sink, "%s\n", p.params.Size.ID()); err != nil {
		return fmt.Errorf("write mode: %w", err)
	}
	n, err := p.sink.Write(buf)
	if err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	if n < len(buf) {
		return fmt.Errorf("write frame: %d of %d bytes: %w", n, len(buf), io.ErrShortWrite)
	}
	return nil
}
