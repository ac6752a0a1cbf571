package models

import (
	"time"
)

// Target format for everything leaving the capture pipeline:
// mono 16 kHz, which is what both the batch and the streaming
// recognition services want.
const (
	TargetSampleRate = 16000
	TargetChannels   = 1

	// ChunkSampleCount is the atomic unit of the live stream: 800 mono
	// PCM16 samples, i.e. 50ms of audio at 16 kHz.
	ChunkSampleCount = 800
	ChunkSizeBytes   = ChunkSampleCount * 2
)

// Mode selects what a recording session produces.
type Mode int

const (
	// ModeFile encodes the whole session into a temporary WAV file
	// handed to the caller on stop.
	ModeFile Mode = iota
	// ModeStream emits fixed-size PCM16 chunks to a sink while recording.
	ModeStream
)

func (m Mode) String() string {
	switch m {
	case ModeFile:
		return "file"
	case ModeStream:
		return "stream"
	default:
		return "unknown"
	}
}

// DeviceSelection names the capture device for a session.
// The zero value means "whatever the system default is".
type DeviceSelection struct {
	uid string
}

func SystemDefault() DeviceSelection {
	return DeviceSelection{}
}

func DeviceID(uid string) DeviceSelection {
	return DeviceSelection{uid: uid}
}

func (s DeviceSelection) IsSystemDefault() bool {
	return s.uid == ""
}

func (s DeviceSelection) UID() string {
	return s.uid
}

func (s DeviceSelection) String() string {
	if s.IsSystemDefault() {
		return "system-default"
	}
	return s.uid
}

// SampleFormat is the on-the-wire encoding of samples inside an AudioFrame.
type SampleFormat int

const (
	FormatS16 SampleFormat = iota
	FormatF32
)

func (f SampleFormat) BytesPerSample() int {
	switch f {
	case FormatS16:
		return 2
	case FormatF32:
		return 4
	default:
		return 0
	}
}

func (f SampleFormat) String() string {
	switch f {
	case FormatS16:
		return "s16"
	case FormatF32:
		return "f32"
	default:
		return "unknown"
	}
}

// AudioFrame is one hardware buffer worth of samples in the capture
// device's native format. Frames arrive at whatever cadence the device
// driver decides; nothing in the pipeline assumes a fixed frame size.
type AudioFrame struct {
	Data       []byte
	Format     SampleFormat
	SampleRate int
	Channels   int
}

// FrameCount returns the number of per-channel sample frames in the buffer.
func (f AudioFrame) FrameCount() int {
	bps := f.Format.BytesPerSample()
	if bps == 0 || f.Channels == 0 {
		return 0
	}
	return len(f.Data) / bps / f.Channels
}

// Duration is how much audio the frame covers.
func (f AudioFrame) Duration() time.Duration {
	if f.SampleRate == 0 {
		return 0
	}
	return time.Duration(float64(f.FrameCount()) / float64(f.SampleRate) * float64(time.Second))
}
