package audio_utils

import (
	"math"

	"github.com/petrzlen/dictate-golang/pkg/models"
)

// silenceFloorDB is reported for all-zero buffers; log10(0) is -Inf and
// nothing downstream wants infinities.
const silenceFloorDB = -120.0

// FramePower measures a frame's average (RMS) and peak power in dBFS.
// Both values are <= 0, with 0 meaning full scale.
func FramePower(frame models.AudioFrame) (avgDB, peakDB float64, err error) {
	samples, err := decodeMono(frame)
	if err != nil {
		return 0, 0, err
	}
	avgDB, peakDB = SamplePower(samples)
	return avgDB, peakDB, nil
}

// SamplePower computes RMS and peak power in dBFS over float samples.
func SamplePower(samples []float32) (avgDB, peakDB float64) {
	if len(samples) == 0 {
		return silenceFloorDB, silenceFloorDB
	}

	var sumSquares float64
	var peak float64
	for _, s := range samples {
		v := float64(s)
		sumSquares += v * v
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}

	rms := math.Sqrt(sumSquares / float64(len(samples)))
	return amplitudeToDB(rms), amplitudeToDB(peak)
}

func amplitudeToDB(amplitude float64) float64 {
	if amplitude <= 0 {
		return silenceFloorDB
	}
	db := 20 * math.Log10(amplitude)
	if db < silenceFloorDB {
		return silenceFloorDB
	}
	return db
}
