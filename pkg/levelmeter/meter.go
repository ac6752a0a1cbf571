// Package levelmeter turns raw signal power into the 0..1 loudness value
// the UI animates while a dictation is being recorded.
package levelmeter

import (
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// PollInterval is the metering cadence: 20 Hz is smooth enough for a
	// waveform widget and cheap enough to not matter.
	PollInterval = 50 * time.Millisecond

	// FloorDB is where the meter bottoms out; quieter than -50 dB reads
	// as silence to a human anyway.
	FloorDB = -50.0

	// easingExponent emphasizes low-level signals so quiet speech still
	// produces visible motion.
	easingExponent = 1.1
)

// PowerSource supplies instantaneous power readings in dBFS (<= 0).
type PowerSource interface {
	AveragePower() float64
	PeakPower() float64
}

// Normalize maps a dBFS power value onto [0, 1]: clamp to [FloorDB, 0],
// rescale linearly, then ease with norm^1.1.
func Normalize(db float64) float64 {
	if db < FloorDB {
		db = FloorDB
	}
	if db > 0 {
		db = 0
	}
	norm := (db - FloorDB) / -FloorDB
	return math.Pow(norm, easingExponent)
}

// Meter polls a PowerSource at PollInterval and feeds normalized levels
// into a callback. It reports max(average, peak) at each tick so short
// transients stay visible. One Meter serves one recording session.
type Meter struct {
	onLevel func(float64)
	log     zerolog.Logger

	startOnce sync.Once
	stopOnce  sync.Once
	quit      chan struct{}
	done      chan struct{}
}

func NewMeter(onLevel func(float64), logger zerolog.Logger) *Meter {
	if onLevel == nil {
		onLevel = func(float64) {}
	}
	return &Meter{
		onLevel: onLevel,
		log:     logger,
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start begins polling src. Calling Start twice is a no-op.
func (m *Meter) Start(src PowerSource) {
	m.startOnce.Do(func() {
		go m.pollRoutine(src)
	})
}

func (m *Meter) pollRoutine(src PowerSource) {
	defer close(m.done)

	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.quit:
			return
		case <-ticker.C:
			power := math.Max(src.AveragePower(), src.PeakPower())
			m.onLevel(Normalize(power))
		}
	}
}

// Stop halts polling and emits exactly one final level of 0 so the UI
// always settles back to silence. Safe to call more than once.
func (m *Meter) Stop() {
	m.stopOnce.Do(func() {
		close(m.quit)
		<-m.done
		m.onLevel(0)
	})
}
