package capture

import "fmt"

// Kind classifies where a run failed.
type Kind int

const (
	BusInit Kind = iota + 1
	DeviceInit
	Config
	Capture
	Emit
)

func (k Kind) String() string {
	switch k {
	case BusInit:
		return "bus init"
	case DeviceInit:
		return "device init"
	case Config:
		return "config"
	case Capture:
		return "capture"
	case Emit:
		return "emit"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error wraps the driver's native error with the failing step.
type Error struct {
	Kind  Kind
	State State // last state reached before the failure
	Err   error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String() + " error"
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the kind sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Err == nil && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrBusInit    error = &Error{Kind: BusInit}
	ErrDeviceInit error = &Error{Kind: DeviceInit}
	ErrConfig     error = &Error{Kind: Config}
	ErrCapture    error = &Error{Kind: Capture}
	ErrEmit       error = &Error{Kind: Emit}
)
