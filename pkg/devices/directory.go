// Package devices knows which capture devices exist, which one is the
// system default, and how to temporarily point the default somewhere else
// for the duration of a recording session.
package devices

import "errors"

// InputDeviceInfo describes one capture device.
type InputDeviceInfo struct {
	UID       string
	Name      string
	IsDefault bool
}

// ErrNotSupported is returned where the platform offers no way to perform
// an operation (e.g. no default-input switcher installed).
var ErrNotSupported = errors.New("operation not supported on this platform")

// DeviceDirectory is the device enumeration/selection capability.
// One production implementation (malgo enumeration plus a subprocess
// switcher) and one in-memory fake for tests.
type DeviceDirectory interface {
	// CaptureDevices lists the available input devices.
	CaptureDevices() ([]InputDeviceInfo, error)
	// DefaultInputUID returns the UID of the current system default input.
	DefaultInputUID() (string, error)
	// SetDefaultInputUID points the system default input at the given device.
	SetDefaultInputUID(uid string) error
	// InputGain returns the device's input gain in [0, 1].
	InputGain(uid string) (float64, error)
	// SetInputGain sets the device's input gain in [0, 1].
	SetInputGain(uid string, gain float64) error
}
