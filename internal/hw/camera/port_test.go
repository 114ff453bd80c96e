package camera

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cjeanneret/ovcap/internal/hw/gpio"
)

// scriptDriver replays a level sequence per pin; once a sequence is
// exhausted the pin keeps its last level.
type scriptDriver struct {
	gpio.MockDriver
	seq map[int][]gpio.Level
	pos map[int]int
}

func newScriptDriver() *scriptDriver {
	return &scriptDriver{seq: map[int][]gpio.Level{}, pos: map[int]int{}}
}

func (d *scriptDriver) push(pin int, levels ...gpio.Level) {
	d.seq[pin] = append(d.seq[pin], levels...)
}

func (d *scriptDriver) ReadPin(pin int) (gpio.Level, error) {
	s := d.seq[pin]
	if len(s) == 0 {
		return gpio.Low, nil
	}
	i := d.pos[pin]
	if i >= len(s) {
		return s[len(s)-1], nil
	}
	d.pos[pin] = i + 1
	return s[i], nil
}

// scriptFrame builds the waveform the port expects for rows of bytes.
func scriptFrame(d *scriptDriver, pins Pins, rows [][]byte) {
	// A frame is already in progress (VSYNC low), then the next one starts.
	d.push(pins.VSYNC, gpio.Low, gpio.High, gpio.Low)
	for _, row := range rows {
		d.push(pins.HREF, gpio.High)
		for _, b := range row {
			d.push(pins.PCLK, gpio.High, gpio.Low, gpio.High)
			for bit, pin := range pins.Data {
				d.push(pin, gpio.Level(b&(1<<uint(bit)) != 0))
			}
		}
		d.push(pins.HREF, gpio.Low)
	}
}

func TestParallelPort_ReadFrame(t *testing.T) {
	pins := testPins()
	d := newScriptDriver()
	rows := [][]byte{
		{0x00, 0xFF, 0xA5, 0x5A},
		{0x01, 0x80, 0x7E, 0xC3},
	}
	scriptFrame(d, pins, rows)

	port, err := NewParallelPort(d, pins)
	if err != nil {
		t.Fatalf("NewParallelPort: %v", err)
	}
	dst := make([]byte, 8)
	n, err := port.ReadFrame(context.Background(), dst, 4, 2, time.Now().Add(time.Second))
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if n != 8 {
		t.Fatalf("n = %d, want 8", n)
	}
	want := []byte{0x00, 0xFF, 0xA5, 0x5A, 0x01, 0x80, 0x7E, 0xC3}
	for i := range want {
		if dst[i] != want[i] {
			t.Errorf("byte %d = 0x%02X, want 0x%02X", i, dst[i], want[i])
		}
	}
}

func TestParallelPort_TimesOutWithoutVsync(t *testing.T) {
	port, err := NewParallelPort(&gpio.MockDriver{}, testPins())
	if err != nil {
		t.Fatal(err)
	}
	_, err = port.ReadFrame(context.Background(), make([]byte, 4), 2, 2, time.Now().Add(-time.Millisecond))
	if !errors.Is(err, ErrFrameTimeout) {
		t.Errorf("error = %v, want ErrFrameTimeout", err)
	}
}

func TestParallelPort_ContextCancelled(t *testing.T) {
	port, err := NewParallelPort(&gpio.MockDriver{}, testPins())
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = port.ReadFrame(ctx, make([]byte, 4), 2, 2, time.Time{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestParallelPort_BufferTooSmall(t *testing.T) {
	port, err := NewParallelPort(&gpio.MockDriver{}, testPins())
	if err != nil {
		t.Fatal(err)
	}
	_, err = port.ReadFrame(context.Background(), make([]byte, 3), 2, 2, time.Time{})
	if !errors.Is(err, ErrBufferTooSmall) {
		t.Errorf("error = %v, want ErrBufferTooSmall", err)
	}
}
