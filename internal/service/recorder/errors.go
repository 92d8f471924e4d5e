package recorder

import (
	"errors"
	"fmt"
)

// Raw device failures. Device implementations return (or wrap) these so the
// controller can categorize them.
var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrDeviceNotFound   = errors.New("device not found")
	ErrDeviceBusy       = errors.New("device busy")
	ErrInsecureContext  = errors.New("insecure context")
)

var (
	ErrNotRecording = errors.New("recorder is not recording")
	ErrEncoderStop  = errors.New("encoder did not acknowledge stop")
)

// DeviceErrorKind categorizes device access failures.
type DeviceErrorKind int

const (
	DeviceUnknown DeviceErrorKind = iota
	DeviceDenied
	DeviceAbsent
	DeviceBusy
	DeviceInsecureOrigin
)

func (k DeviceErrorKind) String() string {
	switch k {
	case DeviceDenied:
		return "denied"
	case DeviceAbsent:
		return "absent"
	case DeviceBusy:
		return "busy"
	case DeviceInsecureOrigin:
		return "insecure_origin"
	default:
		return "unknown"
	}
}

// DeviceAccessError is returned by Start when the microphone cannot be opened.
type DeviceAccessError struct {
	Kind DeviceErrorKind
	Err  error
}

func (e *DeviceAccessError) Error() string {
	return fmt.Sprintf("device access %s: %v", e.Kind, e.Err)
}

func (e *DeviceAccessError) Unwrap() error {
	return e.Err
}

// Message is the text shown to the user in the status line.
func (e *DeviceAccessError) Message() string {
	switch e.Kind {
	case DeviceDenied:
		return "Microphone access was denied. Allow microphone access and try again."
	case DeviceAbsent:
		return "No microphone was found. Connect a microphone and try again."
	case DeviceBusy:
		return "The microphone is already in use by another application."
	case DeviceInsecureOrigin:
		return "Microphone access requires a secure (HTTPS or localhost) connection."
	default:
		return fmt.Sprintf("Could not start recording: %v", e.Err)
	}
}

// classifyDeviceError maps a raw device failure to a DeviceAccessError.
func classifyDeviceError(err error) *DeviceAccessError {
	var dae *DeviceAccessError
	if errors.As(err, &dae) {
		return dae
	}

	kind := DeviceUnknown
	switch {
	case errors.Is(err, ErrPermissionDenied):
		kind = DeviceDenied
	case errors.Is(err, ErrDeviceNotFound):
		kind = DeviceAbsent
	case errors.Is(err, ErrDeviceBusy):
		kind = DeviceBusy
	case errors.Is(err, ErrInsecureContext):
		kind = DeviceInsecureOrigin
	}
	return &DeviceAccessError{Kind: kind, Err: err}
}
