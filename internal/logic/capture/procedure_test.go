package capture

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/cjeanneret/ovcap/internal/hw/camera"
	"github.com/cjeanneret/ovcap/internal/hw/gpio"
	"github.com/cjeanneret/ovcap/internal/hw/i2cbus"
	"periph.io/x/conn/v3/i2c"
)

// mockCamera reports the nominal dimensions of the configured size and
// records every call.
type mockCamera struct {
	size         camera.Size
	configureErr error
	captureErr   error
	frameBytes   int // bytes written by Capture; 0 = 2 per pixel

	calls       []string
	capturedLen int
}

func (m *mockCamera) Configure(size camera.Size) error {
	m.calls = append(m.calls, "configure")
	if m.configureErr != nil {
		return m.configureErr
	}
	m.size = size
	return nil
}

func (m *mockCamera) Width() int {
	w, _ := m.size.Dimensions()
	return w
}

func (m *mockCamera) Height() int {
	_, h := m.size.Dimensions()
	return h
}

func (m *mockCamera) Capture(ctx context.Context, buf []byte) (int, error) {
	m.calls = append(m.calls, "capture")
	m.capturedLen = len(buf)
	if m.captureErr != nil {
		return 0, m.captureErr
	}
	n := m.frameBytes
	if n == 0 {
		n = m.Width() * m.Height() * 2
	}
	for i := 0; i < n; i++ {
		buf[i] = 0xAB
	}
	return n, nil
}

func (m *mockCamera) Close() error { return nil }

// mockHardware records which acquisition steps ran.
type mockHardware struct {
	busErr    error
	cameraErr error
	cam       *mockCamera

	busOpened    int
	cameraOpened int
}

func (h *mockHardware) OpenBus() (i2c.BusCloser, error) {
	h.busOpened++
	if h.busErr != nil {
		return nil, h.busErr
	}
	return i2cbus.NewSimBus(), nil
}

func (h *mockHardware) OpenCamera(bus i2c.Bus) (camera.Camera, error) {
	h.cameraOpened++
	if h.cameraErr != nil {
		return nil, h.cameraErr
	}
	return h.cam, nil
}

// recordingSink keeps each Write separately.
type recordingSink struct {
	writes [][]byte
	err    error
	short  bool
}

func (s *recordingSink) Write(p []byte) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.writes = append(s.writes, append([]byte(nil), p...))
	if s.short && len(s.writes) == 2 {
		return len(p) / 2, nil
	}
	return len(p), nil
}

func TestFrameBufferLen_AllSizes(t *testing.T) {
	for _, size := range camera.Sizes {
		t.Run(size.String(), func(t *testing.T) {
			cam := &mockCamera{}
			sink := &recordingSink{}
			res, err := NewProcedure(&mockHardware{cam: cam}, sink, Params{Size: size}).Run(context.Background())
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			w, h := size.Dimensions()
			want := 25 * w * h
			if res.Allocated != want {
				t.Errorf("allocated = %d, want %d", res.Allocated, want)
			}
			if cam.capturedLen != want {
				t.Errorf("buffer passed to capture = %d, want %d", cam.capturedLen, want)
			}
		})
	}
}

func TestRun_Div16Scenario(t *testing.T) {
	cam := &mockCamera{}
	sink := &recordingSink{}
	res, err := NewProcedure(&mockHardware{cam: cam}, sink, Params{Size: camera.SizeDiv16}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Width != 40 || res.Height != 30 {
		t.Errorf("dimensions = %dx%d, want 40x30", res.Width, res.Height)
	}
	if res.Allocated != 30000 {
		t.Errorf("allocated = %d, want 30000", res.Allocated)
	}
	if res.Captured != 2400 {
		t.Errorf("captured = %d, want 2400", res.Captured)
	}
	if res.State != Emitted {
		t.Errorf("state = %v, want %v", res.State, Emitted)
	}

	if len(sink.writes) != 2 {
		t.Fatalf("sink writes = %d, want 2", len(sink.writes))
	}
	if got := string(sink.writes[0]); got != "4\n" {
		t.Errorf("first write = %q, want %q", got, "4\n")
	}
	if len(sink.writes[1]) > 30000 {
		t.Errorf("second write = %d bytes, want <= 30000", len(sink.writes[1]))
	}
	if !bytes.Equal(sink.writes[1][:2400], bytes.Repeat([]byte{0xAB}, 2400)) {
		t.Error("frame bytes not emitted as captured")
	}
}

func TestRun_BusFailureStopsEverything(t *testing.T) {
	cam := &mockCamera{}
	hw := &mockHardware{cam: cam, busErr: errors.New("pin 3 busy")}
	sink := &recordingSink{}

	res, err := NewProcedure(hw, sink, Params{Size: camera.SizeDiv16}).Run(context.Background())
	if !errors.Is(err, ErrBusInit) {
		t.Fatalf("error = %v, want ErrBusInit", err)
	}
	if hw.cameraOpened != 0 {
		t.Errorf("camera opened %d times, want 0", hw.cameraOpened)
	}
	if len(cam.calls) != 0 {
		t.Errorf("camera calls = %v, want none", cam.calls)
	}
	if len(sink.writes) != 0 {
		t.Errorf("sink writes = %d, want 0", len(sink.writes))
	}
	if res.State != Uninitialized {
		t.Errorf("state = %v, want %v", res.State, Uninitialized)
	}
}

func TestRun_DeviceInitFailure(t *testing.T) {
	hw := &mockHardware{cam: &mockCamera{}, cameraErr: camera.ErrUnsupportedChip}
	res, err := NewProcedure(hw, &recordingSink{}, Params{Size: camera.SizeDiv16}).Run(context.Background())
	if !errors.Is(err, ErrDeviceInit) {
		t.Fatalf("error = %v, want ErrDeviceInit", err)
	}
	if !errors.Is(err, camera.ErrUnsupportedChip) {
		t.Errorf("driver error lost: %v", err)
	}
	if res.State != BusReady {
		t.Errorf("state = %v, want %v", res.State, BusReady)
	}
	if res.Bus == nil {
		t.Error("claimed bus should be reported")
	}
}

func TestRun_ConfigFailureSkipsCapture(t *testing.T) {
	cam := &mockCamera{configureErr: camera.ErrInvalidSize}
	sink := &recordingSink{}
	res, err := NewProcedure(&mockHardware{cam: cam}, sink, Params{Size: camera.SizeDiv16}).Run(context.Background())
	if !errors.Is(err, ErrConfig) {
		t.Fatalf("error = %v, want ErrConfig", err)
	}
	for _, c := range cam.calls {
		if c == "capture" {
			t.Error("capture must not run after a config failure")
		}
	}
	if len(sink.writes) != 0 {
		t.Errorf("sink writes = %d, want 0", len(sink.writes))
	}
	if res.State != DeviceReady {
		t.Errorf("state = %v, want %v", res.State, DeviceReady)
	}
}

func TestRun_CaptureFailure(t *testing.T) {
	cam := &mockCamera{captureErr: camera.ErrFrameTimeout}
	sink := &recordingSink{}
	res, err := NewProcedure(&mockHardware{cam: cam}, sink, Params{Size: camera.SizeDiv16}).Run(context.Background())
	if !errors.Is(err, ErrCapture) {
		t.Fatalf("error = %v, want ErrCapture", err)
	}
	if !errors.Is(err, camera.ErrFrameTimeout) {
		t.Errorf("driver error lost: %v", err)
	}
	if len(sink.writes) != 0 {
		t.Errorf("sink writes = %d, want 0", len(sink.writes))
	}
	if res.State != Configured {
		t.Errorf("state = %v, want %v", res.State, Configured)
	}
}

func TestRun_EmitFailure(t *testing.T) {
	_, err := NewProcedure(&mockHardware{cam: &mockCamera{}}, &recordingSink{err: errors.New("tty gone")}, Params{Size: camera.SizeDiv16}).Run(context.Background())
	if !errors.Is(err, ErrEmit) {
		t.Fatalf("error = %v, want ErrEmit", err)
	}

	_, err = NewProcedure(&mockHardware{cam: &mockCamera{}}, &recordingSink{short: true}, Params{Size: camera.SizeDiv16}).Run(context.Background())
	if !errors.Is(err, ErrEmit) {
		t.Fatalf("short write error = %v, want ErrEmit", err)
	}
}

// bigCamera reports a frame larger than the estimated buffer.
type bigCamera struct{ mockCamera }

func (b *bigCamera) MaxFrameSize() int { return 1 << 20 }

func TestRun_BufferNeverBelowDriverFrameSize(t *testing.T) {
	cam := &bigCamera{}
	hw := &mockHardware{}
	res, err := NewProcedure(hwFunc{hw, cam}, &recordingSink{}, Params{Size: camera.SizeDiv16}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Allocated != 1<<20 {
		t.Errorf("allocated = %d, want %d", res.Allocated, 1<<20)
	}
}

// hwFunc serves a fixed camera of any type.
type hwFunc struct {
	*mockHardware
	cam camera.Camera
}

func (h hwFunc) OpenCamera(bus i2c.Bus) (camera.Camera, error) { return h.cam, nil }

func TestRun_CustomBytesPerPixel(t *testing.T) {
	res, err := NewProcedure(&mockHardware{cam: &mockCamera{}}, &recordingSink{}, Params{Size: camera.SizeDiv16, BytesPerPixel: 2}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Allocated != 2400 {
		t.Errorf("allocated = %d, want 2400", res.Allocated)
	}
}

// simHardware wires the real bus and simulated camera to one GPIO driver.
type simHardware struct {
	gpio gpio.Driver
}

func (h *simHardware) OpenBus() (i2c.BusCloser, error) {
	return i2cbus.Open(h.gpio, i2cbus.Config{SCLPin: 3, SDAPin: 2, Mock: true})
}

func (h *simHardware) OpenCamera(bus i2c.Bus) (camera.Camera, error) {
	return camera.NewSim(bus)
}

func TestRun_SecondRunWithoutReleaseFails(t *testing.T) {
	hw := &simHardware{gpio: &gpio.MockDriver{}}

	sink := &recordingSink{}
	if _, err := NewProcedure(hw, sink, Params{Size: camera.SizeDiv16}).Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}

	_, err := NewProcedure(hw, &recordingSink{}, Params{Size: camera.SizeDiv16}).Run(context.Background())
	if !errors.Is(err, ErrBusInit) && !errors.Is(err, ErrDeviceInit) {
		t.Fatalf("second run error = %v, want bus or device init error", err)
	}
	if !errors.Is(err, gpio.ErrPinInUse) {
		t.Errorf("second run should fail on pin ownership, got %v", err)
	}
}

func TestError_Messages(t *testing.T) {
	err := &Error{Kind: Capture, Err: camera.ErrFrameTimeout}
	if err.Error() != "capture: frame capture timed out" {
		t.Errorf("Error() = %q", err.Error())
	}
	if errors.Is(err, ErrBusInit) {
		t.Error("capture error must not match ErrBusInit")
	}
}
