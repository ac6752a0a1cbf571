package audioio

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/petrzlen/dictate-golang/pkg/models"
)

// FakeInput is an in-memory InputProvider for tests: callers script
// frames into the opened stream with Feed and power readings with SetPower.
type FakeInput struct {
	// OpenErr, when set, makes Open fail (device-unavailable scenarios).
	OpenErr error

	mu      sync.Mutex
	streams []*FakeStream
}

func NewFakeInput() *FakeInput {
	return &FakeInput{}
}

func (f *FakeInput) Open(cfg CaptureConfig) (CaptureStream, error) {
	if f.OpenErr != nil {
		return nil, f.OpenErr
	}
	s := &FakeStream{cfg: cfg}
	s.SetPower(-120, -120)
	f.mu.Lock()
	f.streams = append(f.streams, s)
	f.mu.Unlock()
	return s, nil
}

// LastStream returns the most recently opened stream, or nil.
func (f *FakeInput) LastStream() *FakeStream {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.streams) == 0 {
		return nil
	}
	return f.streams[len(f.streams)-1]
}

// OpenCount reports how many streams were opened.
func (f *FakeInput) OpenCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.streams)
}

type FakeStream struct {
	cfg     CaptureConfig
	stopped atomic.Bool

	avgPowerBits  atomic.Uint64
	peakPowerBits atomic.Uint64
}

// Feed delivers a frame as if the hardware produced it. Frames fed after
// Close are dropped, mirroring the production stop-flag behavior.
func (s *FakeStream) Feed(frame models.AudioFrame) {
	if s.stopped.Load() {
		return
	}
	if s.cfg.OnFrame != nil {
		s.cfg.OnFrame(frame)
	}
}

func (s *FakeStream) SetPower(avg, peak float64) {
	s.avgPowerBits.Store(math.Float64bits(avg))
	s.peakPowerBits.Store(math.Float64bits(peak))
}

func (s *FakeStream) AveragePower() float64 {
	return math.Float64frombits(s.avgPowerBits.Load())
}

func (s *FakeStream) PeakPower() float64 {
	return math.Float64frombits(s.peakPowerBits.Load())
}

func (s *FakeStream) Closed() bool {
	return s.stopped.Load()
}

func (s *FakeStream) Close() error {
	s.stopped.Store(true)
	return nil
}

var _ InputProvider = (*FakeInput)(nil)
var _ CaptureStream = (*FakeStream)(nil)
