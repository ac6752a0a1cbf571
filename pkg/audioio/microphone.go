// Go cannot talk to microphones on its own; malgo (miniaudio bindings)
// does the platform heavy-lifting and hands us raw hardware buffers.
package audioio

import (
	"math"
	"strings"
	"sync/atomic"

	"github.com/gen2brain/malgo"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/petrzlen/dictate-golang/pkg/audio_utils"
	"github.com/petrzlen/dictate-golang/pkg/models"
)

// MalgoInput is the production InputProvider backed by miniaudio.
// Init once per process; the malgo context is expensive to create.
type MalgoInput struct {
	ctx *malgo.AllocatedContext
	log zerolog.Logger
}

func NewMalgoInput(logger zerolog.Logger) (*MalgoInput, error) {
	logger.Info().Msg("malgo init context (miniaudio)")
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		logger.Debug().Msg(strings.Replace("malgo: "+message, "\n", "", -1))
	})
	if err != nil {
		return nil, pkgerrors.Wrap(err, "cannot init malgo context")
	}
	return &MalgoInput{ctx: ctx, log: logger}, nil
}

// Open starts capturing from the system default input device.
// Device selection happens upstream by switching the system default.
func (p *MalgoInput) Open(cfg CaptureConfig) (CaptureStream, error) {
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = toMalgoFormat(cfg.Format)
	deviceConfig.Capture.Channels = uint32(cfg.Channels)
	deviceConfig.SampleRate = uint32(cfg.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	stream := &malgoStream{log: p.log}
	stream.storePower(silencePowerDB, silencePowerDB)

	onRecvFrames := func(pOutput, pInput []byte, framecount uint32) {
		// A stop request may land while the driver still has a buffer in
		// flight; such frames are dropped, never delivered late.
		if stream.stopped.Load() {
			return
		}
		// malgo reuses pInput across callbacks, copy before handing off.
		data := make([]byte, len(pInput))
		copy(data, pInput)

		frame := models.AudioFrame{
			Data:       data,
			Format:     stream.format,
			SampleRate: stream.sampleRate,
			Channels:   stream.channels,
		}
		if avg, peak, err := audio_utils.FramePower(frame); err == nil {
			stream.storePower(avg, peak)
		}
		if cfg.OnFrame != nil {
			cfg.OnFrame(frame)
		}
	}

	device, err := malgo.InitDevice(p.ctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onRecvFrames})
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "cannot init malgo capture device (format=%s channels=%d rate=%d)",
			cfg.Format, cfg.Channels, cfg.SampleRate)
	}

	// The device reports what it actually negotiated, which may differ
	// from the request (native rate, channel count).
	stream.device = device
	stream.format = fromMalgoFormat(device.CaptureFormat())
	stream.sampleRate = int(device.SampleRate())
	stream.channels = int(device.CaptureChannels())

	p.log.Info().
		Str("format", stream.format.String()).
		Int("sample_rate", stream.sampleRate).
		Int("channels", stream.channels).
		Msg("malgo START capture")
	if err = device.Start(); err != nil {
		device.Uninit()
		return nil, pkgerrors.Wrap(err, "cannot start malgo capture device")
	}
	return stream, nil
}

// Close releases the malgo context. Open streams must be closed first.
func (p *MalgoInput) Close() error {
	if err := p.ctx.Uninit(); err != nil {
		return pkgerrors.Wrap(err, "cannot uninit malgo context")
	}
	p.ctx.Free()
	return nil
}

const silencePowerDB = -120.0

type malgoStream struct {
	device     *malgo.Device
	log        zerolog.Logger
	format     models.SampleFormat
	sampleRate int
	channels   int

	stopped atomic.Bool
	// dBFS values as float bits; written from the audio callback,
	// read from the level-meter ticker.
	avgPowerBits  atomic.Uint64
	peakPowerBits atomic.Uint64
}

func (s *malgoStream) storePower(avg, peak float64) {
	s.avgPowerBits.Store(math.Float64bits(avg))
	s.peakPowerBits.Store(math.Float64bits(peak))
}

func (s *malgoStream) AveragePower() float64 {
	return math.Float64frombits(s.avgPowerBits.Load())
}

func (s *malgoStream) PeakPower() float64 {
	return math.Float64frombits(s.peakPowerBits.Load())
}

func (s *malgoStream) Close() error {
	if s.stopped.Swap(true) {
		return nil
	}
	s.log.Info().Msg("malgo STOP capture")
	if err := s.device.Stop(); err != nil {
		s.log.Debug().Err(err).Msg("malgo device stop failed")
	}
	s.device.Uninit()
	return nil
}

func toMalgoFormat(f models.SampleFormat) malgo.FormatType {
	switch f {
	case models.FormatS16:
		return malgo.FormatS16
	case models.FormatF32:
		return malgo.FormatF32
	default:
		return malgo.FormatUnknown
	}
}

func fromMalgoFormat(f malgo.FormatType) models.SampleFormat {
	switch f {
	case malgo.FormatS16:
		return models.FormatS16
	default:
		return models.FormatF32
	}
}
