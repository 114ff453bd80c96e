package camera

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Camera is the high-level interface used by the rest of the application.
// It represents an abstract frame-grabbing camera, regardless of how it's
// controlled (SCCB + parallel bus, V4L2, simulation).
type Camera interface {
	// Configure programs the resolution mode. Width and Height reflect it afterwards.
	Configure(size Size) error
	Width() int
	Height() int
	// Capture fills buf with one raw frame and returns the number of bytes written.
	Capture(ctx context.Context, buf []byte) (int, error)
	Close() error
}

// FrameSizer is implemented by cameras that know the largest frame they can
// produce for the current mode.
type FrameSizer interface {
	MaxFrameSize() int
}

var (
	ErrInvalidSize       = errors.New("invalid size")
	ErrBufferTooSmall    = errors.New("buffer too small for frame")
	ErrUnsupportedChip   = errors.New("unsupported camera chip")
	ErrFrameTimeout      = errors.New("frame capture timed out")
	ErrInvalidColorspace = errors.New("invalid colorspace")
)

// Size is the OV7670 scaling mode. Values match the identifiers the
// driver library exposes, so Size(4) is the one-sixteenth mode.
type Size int

const (
	SizeDiv1  Size = iota // 640x480
	SizeDiv2              // 320x240
	SizeDiv4              // 160x120
	SizeDiv8              // 80x60
	SizeDiv16             // 40x30
)

// NativeWidth and NativeHeight are the VGA array dimensions.
const (
	NativeWidth  = 640
	NativeHeight = 480
)

// Sizes lists every supported mode, largest first.
var Sizes = []Size{SizeDiv1, SizeDiv2, SizeDiv4, SizeDiv8, SizeDiv16}

var sizeNames = map[Size]string{
	SizeDiv1:  "div1",
	SizeDiv2:  "div2",
	SizeDiv4:  "div4",
	SizeDiv8:  "div8",
	SizeDiv16: "div16",
}

// Valid reports whether s is a known mode.
func (s Size) Valid() bool {
	_, ok := sizeNames[s]
	return ok
}

func (s Size) String() string {
	if name, ok := sizeNames[s]; ok {
		return name
	}
	return fmt.Sprintf("size(%d)", int(s))
}

// ID is the numeric mode token written ahead of a frame.
func (s Size) ID() string {
	return fmt.Sprintf("%d", int(s))
}

// Dimensions returns the frame width and height of the mode.
func (s Size) Dimensions() (width, height int) {
	if !s.Valid() {
		return 0, 0
	}
	return NativeWidth >> uint(s), NativeHeight >> uint(s)
}

// ParseSize accepts "div1".."div16", "vga", "qvga", "qqvga" or the numeric identifier.
func ParseSize(s string) (Size, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	switch key {
	case "vga":
		return SizeDiv1, nil
	case "qvga":
		return SizeDiv2, nil
	case "qqvga":
		return SizeDiv4, nil
	}
	for size, name := range sizeNames {
		if key == name || key == size.ID() {
			return size, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
}

// Colorspace selects the pixel output format. Both formats use two bytes per pixel.
type Colorspace int

const (
	RGB565 Colorspace = iota
	YUV422
)

// BytesPerPixel is the real pixel stride of both colorspaces.
const BytesPerPixel = 2

func (c Colorspace) String() string {
	switch c {
	case RGB565:
		return "rgb565"
	case YUV422:
		return "yuv422"
	default:
		return fmt.Sprintf("colorspace(%d)", int(c))
	}
}

// ParseColorspace accepts "rgb565" (or "rgb") and "yuv422" (or "yuv").
func ParseColorspace(s string) (Colorspace, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "rgb565", "rgb":
		return RGB565, nil
	case "yuv422", "yuv":
		return YUV422, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidColorspace, s)
	}
}

// TestPattern selects the sensor's built-in test output.
type TestPattern int

const (
	PatternNone TestPattern = iota
	PatternShifting1
	PatternColorBar
	PatternColorBarFade
)

// ParseTestPattern accepts "none", "shifting1", "bars" and "fade".
func ParseTestPattern(s string) (TestPattern, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return PatternNone, nil
	case "shifting1":
		return PatternShifting1, nil
	case "bars", "color_bar":
		return PatternColorBar, nil
	case "fade", "color_bar_fade":
		return PatternColorBarFade, nil
	default:
		return 0, fmt.Errorf("unknown test pattern %q", s)
	}
}

// frameBytes returns the exact byte count of a frame for size.
func frameBytes(size Size) int {
	w, h := size.Dimensions()
	return w * h * BytesPerPixel
}

func checkBuffer(buf []byte, need int) error {
	if len(buf) < need {
		return fmt.Errorf("%w: have %d bytes, need %d", ErrBufferTooSmall, len(buf), need)
	}
	return nil
}
