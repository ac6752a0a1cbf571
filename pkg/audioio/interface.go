package audioio

import (
	"github.com/petrzlen/dictate-golang/pkg/models"
)

// DataCallback receives AudioFrames from the capture device.
//
// It runs on the real-time audio thread: it must never block on I/O,
// locks, or channel sends. Implementations hand work off to other
// goroutines through non-blocking sends.
type DataCallback func(frame models.AudioFrame)

// CaptureConfig describes how to open a capture stream.
type CaptureConfig struct {
	// Format to request from the device. The frames delivered to OnFrame
	// carry whatever the device actually produced.
	Format models.SampleFormat
	// Channels requested; 0 means the device's native channel count.
	Channels int
	// SampleRate requested; 0 means the device's native rate.
	SampleRate int
	// OnFrame is invoked from the real-time thread for every hardware buffer.
	OnFrame DataCallback
}

// CaptureStream is one live capture lifetime.
type CaptureStream interface {
	// AveragePower returns the RMS power of the most recent frame in dBFS (<= 0).
	AveragePower() float64
	// PeakPower returns the peak power of the most recent frame in dBFS (<= 0).
	PeakPower() float64
	// Close stops delivery and releases the device. Frames already in
	// flight when Close is called are dropped, never delivered late.
	// Safe to call more than once.
	Close() error
}

// InputProvider opens capture streams. One production implementation
// (malgo / miniaudio) and one fake for tests.
type InputProvider interface {
	Open(cfg CaptureConfig) (CaptureStream, error)
}
