package levelmeter

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type stubPowerSource struct {
	mu   sync.Mutex
	avg  float64
	peak float64
}

func (s *stubPowerSource) set(avg, peak float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.avg, s.peak = avg, peak
}

func (s *stubPowerSource) AveragePower() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.avg
}

func (s *stubPowerSource) PeakPower() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peak
}

func TestNormalize_Boundaries(t *testing.T) {
	if got := Normalize(-50); got != 0 {
		t.Errorf("Normalize(-50): expected 0, got %f", got)
	}
	if got := Normalize(0); got != 1 {
		t.Errorf("Normalize(0): expected 1, got %f", got)
	}
}

func TestNormalize_Midpoint(t *testing.T) {
	// (25/50)^1.1 = 0.5^1.1 ~ 0.4665
	got := Normalize(-25)
	if math.Abs(got-0.4665) > 0.001 {
		t.Errorf("Normalize(-25): expected ~0.4665, got %f", got)
	}
}

func TestNormalize_ClampsOutsideRange(t *testing.T) {
	if got := Normalize(-90); got != 0 {
		t.Errorf("Normalize(-90): expected clamp to 0, got %f", got)
	}
	if got := Normalize(3); got != 1 {
		t.Errorf("Normalize(3): expected clamp to 1, got %f", got)
	}
}

func TestNormalize_Monotonic(t *testing.T) {
	prev := -1.0
	for db := -50.0; db <= 0; db += 2.5 {
		got := Normalize(db)
		if got <= prev {
			t.Fatalf("Normalize not increasing at %f dB: %f <= %f", db, got, prev)
		}
		prev = got
	}
}

func TestMeter_EmitsFinalZeroExactlyOnce(t *testing.T) {
	var mu sync.Mutex
	var levels []float64
	m := NewMeter(func(v float64) {
		mu.Lock()
		levels = append(levels, v)
		mu.Unlock()
	}, zerolog.Nop())

	src := &stubPowerSource{}
	src.set(-10, -5)

	m.Start(src)
	time.Sleep(3 * PollInterval)
	m.Stop()
	m.Stop() // second stop must not emit again

	mu.Lock()
	defer mu.Unlock()
	if len(levels) == 0 {
		t.Fatal("expected at least the final zero emission")
	}
	if last := levels[len(levels)-1]; last != 0 {
		t.Errorf("expected final level 0, got %f", last)
	}
	zeros := 0
	for _, v := range levels {
		if v == 0 {
			zeros++
		}
	}
	if zeros != 1 {
		t.Errorf("expected exactly one zero level (source is loud), got %d in %v", zeros, levels)
	}
}

func TestMeter_UsesLouderOfAverageAndPeak(t *testing.T) {
	var mu sync.Mutex
	var levels []float64
	m := NewMeter(func(v float64) {
		mu.Lock()
		levels = append(levels, v)
		mu.Unlock()
	}, zerolog.Nop())

	src := &stubPowerSource{}
	src.set(-50, -25) // peak is the reactive one here

	m.Start(src)
	time.Sleep(3 * PollInterval)
	m.Stop()

	want := Normalize(-25)
	mu.Lock()
	defer mu.Unlock()
	found := false
	for _, v := range levels[:len(levels)-1] {
		if math.Abs(v-want) < 0.0001 {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a level of %f (peak-driven), got %v", want, levels)
	}
}

func TestMeter_StopBeforeAnyTickStillEmitsZero(t *testing.T) {
	var mu sync.Mutex
	count := 0
	last := -1.0
	m := NewMeter(func(v float64) {
		mu.Lock()
		count++
		last = v
		mu.Unlock()
	}, zerolog.Nop())

	m.Start(&stubPowerSource{})
	m.Stop()

	mu.Lock()
	defer mu.Unlock()
	if count < 1 || last != 0 {
		t.Errorf("expected a single final 0, got %d emissions, last %f", count, last)
	}
}
