//go:build !linux

package camera

import (
	"context"
	"fmt"
	"time"
)

type V4L2 struct{}

func NewV4L2(device string, cs Colorspace, timeout time.Duration) (*V4L2, error) {
	return nil, fmt.Errorf("v4l2 camera not supported on this platform")
}

func (v *V4L2) Configure(size Size) error { return fmt.Errorf("v4l2 camera not supported on this platform") }
func (v *V4L2) Width() int                { return 0 }
func (v *V4L2) Height() int               { return 0 }
func (v *V4L2) Capture(ctx context.Context, buf []byte) (int, error) {
	return 0, fmt.Errorf("v4l2 camera not supported on this platform")
}
func (v *V4L2) Close() error { return nil }
