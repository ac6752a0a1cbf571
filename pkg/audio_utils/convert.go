package audio_utils

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/petrzlen/dictate-golang/pkg/models"
)

// FormatConverter turns native-format AudioFrames into the fixed output
// formats the pipeline emits. One production implementation (PCMConverter);
// tests substitute their own to inject per-frame failures.
type FormatConverter interface {
	// ToPCM16Mono converts a frame to little-endian signed 16-bit mono
	// samples at targetRate.
	ToPCM16Mono(frame models.AudioFrame, targetRate int) ([]byte, error)
	// ToFloat32Mono converts a frame to 32-bit float mono samples at targetRate.
	ToFloat32Mono(frame models.AudioFrame, targetRate int) ([]float32, error)
}

// PCMConverter is the pure-Go production FormatConverter: decode native
// samples to float, downmix to mono, linear-resample, re-encode.
type PCMConverter struct{}

func NewPCMConverter() FormatConverter {
	return PCMConverter{}
}

func (PCMConverter) ToPCM16Mono(frame models.AudioFrame, targetRate int) ([]byte, error) {
	samples, err := decodeMono(frame)
	if err != nil {
		return nil, err
	}
	samples = Resample(samples, frame.SampleRate, targetRate)
	return Float32ToPCM16Bytes(samples), nil
}

func (PCMConverter) ToFloat32Mono(frame models.AudioFrame, targetRate int) ([]float32, error) {
	samples, err := decodeMono(frame)
	if err != nil {
		return nil, err
	}
	return Resample(samples, frame.SampleRate, targetRate), nil
}

// decodeMono parses the frame's raw bytes and averages channels down to one.
func decodeMono(frame models.AudioFrame) ([]float32, error) {
	if frame.Channels <= 0 {
		return nil, fmt.Errorf("frame has %d channels", frame.Channels)
	}
	if frame.SampleRate <= 0 {
		return nil, fmt.Errorf("frame has sample rate %d", frame.SampleRate)
	}

	bps := frame.Format.BytesPerSample()
	if bps == 0 {
		return nil, fmt.Errorf("unsupported sample format %s", frame.Format)
	}
	if len(frame.Data)%(bps*frame.Channels) != 0 {
		return nil, fmt.Errorf("frame data length %d does not align to %s x %d channels",
			len(frame.Data), frame.Format, frame.Channels)
	}

	interleaved, err := decodeSamples(frame.Data, frame.Format)
	if err != nil {
		return nil, err
	}
	if frame.Channels == 1 {
		return interleaved, nil
	}

	mono := make([]float32, len(interleaved)/frame.Channels)
	for i := range mono {
		var sum float32
		for ch := 0; ch < frame.Channels; ch++ {
			sum += interleaved[i*frame.Channels+ch]
		}
		mono[i] = sum / float32(frame.Channels)
	}
	return mono, nil
}

func decodeSamples(data []byte, format models.SampleFormat) ([]float32, error) {
	switch format {
	case models.FormatS16:
		samples := make([]float32, len(data)/2)
		for i := range samples {
			v := int16(binary.LittleEndian.Uint16(data[i*2:]))
			samples[i] = float32(v) / 32768.0
		}
		return samples, nil
	case models.FormatF32:
		samples := make([]float32, len(data)/4)
		for i := range samples {
			samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
		}
		return samples, nil
	default:
		return nil, fmt.Errorf("unsupported sample format %s", format)
	}
}

// Resample converts audio from one sample rate to another using linear
// interpolation, which is plenty for speech.
func Resample(samples []float32, fromRate, toRate int) []float32 {
	if fromRate == toRate || len(samples) == 0 {
		return samples
	}

	ratio := float64(fromRate) / float64(toRate)
	newLen := int(float64(len(samples)) / ratio)
	if newLen == 0 {
		return []float32{}
	}

	result := make([]float32, newLen)
	for i := 0; i < newLen; i++ {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		if srcIdx >= len(samples)-1 {
			result[i] = samples[len(samples)-1]
		} else {
			s1 := float64(samples[srcIdx])
			s2 := float64(samples[srcIdx+1])
			result[i] = float32(s1 + frac*(s2-s1))
		}
	}
	return result
}

// Float32ToPCM16Bytes clips to [-1, 1] and encodes as little-endian int16.
func Float32ToPCM16Bytes(samples []float32) []byte {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		v := int16(s * 32767.0)
		binary.LittleEndian.PutUint16(data[i*2:], uint16(v))
	}
	return data
}

// PCM16BytesToFloat32 is the inverse of Float32ToPCM16Bytes.
func PCM16BytesToFloat32(data []byte) []float32 {
	samples := make([]float32, len(data)/2)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(data[i*2:]))
		samples[i] = float32(v) / 32768.0
	}
	return samples
}
