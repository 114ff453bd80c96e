//go:build linux

package camera

import (
	"context"
	"time"

	"github.com/blackjack/webcam"
	"github.com/cjeanneret/ovcap/internal/debug"
	"github.com/pkg/errors"
)

func fourcc(a, b, c, d byte) webcam.PixelFormat {
	return webcam.PixelFormat(uint32(a) | uint32(b)<<8 | uint32(c)<<16 | uint32(d)<<24)
}

var v4l2Formats = map[Colorspace]webcam.PixelFormat{
	RGB565: fourcc('R', 'G', 'B', 'P'),
	YUV422: fourcc('Y', 'U', 'Y', 'V'),
}

// V4L2 drives a sensor bound to the kernel ov7670 driver through /dev/videoN.
// The kernel owns the SCCB bus and the parallel interface.
type V4L2 struct {
	cam     *webcam.Webcam
	device  string
	format  webcam.PixelFormat
	timeout time.Duration
	size    Size
	width   int
	height  int
}

// NewV4L2 opens the video device and checks it can produce cs.
func NewV4L2(device string, cs Colorspace, timeout time.Duration) (*V4L2, error) {
	format, ok := v4l2Formats[cs]
	if !ok {
		return nil, errors.Wrapf(ErrInvalidColorspace, "colorspace %d", int(cs))
	}
	if timeout <= 0 {
		timeout = defaultFrameTimeout
	}

	cam, err := webcam.Open(device)
	if err != nil {
		return nil, errors.Wrap(err, "Can not open device "+device)
	}
	if _, ok := cam.GetSupportedFormats()[format]; !ok {
		_ = cam.Close()
		return nil, errors.Errorf("%s does not support %s", device, cs)
	}

	debug.Info("Camera: V4L2 device %s opened (%s)", device, cs)
	return &V4L2{
		cam:     cam,
		device:  device,
		format:  format,
		timeout: timeout,
		size:    SizeDiv1,
		width:   NativeWidth,
		height:  NativeHeight,
	}, nil
}

func (v *V4L2) Configure(size Size) error {
	if !size.Valid() {
		return errors.Wrapf(ErrInvalidSize, "size %d", int(size))
	}
	w, h := size.Dimensions()
	_, gotW, gotH, err := v.cam.SetImageFormat(v.format, uint32(w), uint32(h))
	if err != nil {
		return errors.Wrap(err, "Can not set image format")
	}
	if int(gotW) != w || int(gotH) != h {
		return errors.Errorf("%s: device chose %dx%d for %s (%dx%d)", v.device, gotW, gotH, size, w, h)
	}
	v.size, v.width, v.height = size, w, h
	return nil
}

func (v *V4L2) Width() int  { return v.width }
func (v *V4L2) Height() int { return v.height }

func (v *V4L2) MaxFrameSize() int {
	return v.width * v.height * BytesPerPixel
}

// Capture streams until one frame arrives and copies it into buf.
func (v *V4L2) Capture(ctx context.Context, buf []byte) (int, error) {
	if err := v.cam.StartStreaming(); err != nil {
		return 0, errors.Wrap(err, "Can not start streaming")
	}
	defer func() { _ = v.cam.StopStreaming() }()

	secs := uint32((v.timeout + time.Second - 1) / time.Second)
	deadline := time.Now().Add(v.timeout)
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if time.Now().After(deadline) {
			return 0, ErrFrameTimeout
		}

		err := v.cam.WaitForFrame(secs)
		switch err.(type) {
		case nil:
		case *webcam.Timeout:
			return 0, errors.Wrap(ErrFrameTimeout, v.device)
		default:
			return 0, errors.Wrap(err, "Frame wait failed")
		}

		frame, err := v.cam.ReadFrame()
		if err != nil {
			return 0, errors.Wrap(err, "Read frame failed")
		}
		if len(frame) == 0 {
			continue
		}
		if err := checkBuffer(buf, len(frame)); err != nil {
			return 0, err
		}
		return copy(buf, frame), nil
	}
}

func (v *V4L2) Close() error {
	return v.cam.Close()
}
